// Package session implements the live unit of browser automation: one
// browser context, one page, its screencast pipeline, network capture,
// input dispatch, and interaction recording.
//
// It also owns the two cross-connection stores: the live session map
// (Manager) and the holding area for cloned sessions awaiting client
// attachment (PendingStore).
package session
