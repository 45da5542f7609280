// Package netcache implements the content-addressed store of captured HTTP
// exchanges that backs deterministic session cloning.
//
// Entries are keyed by a fingerprint of method, URL, a fixed set of critical
// request headers, and (when present) a digest of the request body. The cache
// is size-bounded: admission is best-effort and a rejected entry is a logged
// no-op, never an error — a miss simply falls through to the live network.
package netcache
