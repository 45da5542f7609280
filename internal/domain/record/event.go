// Package record defines the recorded-interaction model: replayable event
// types, the append-only per-session event log, and the aggregator that
// coalesces high-frequency pointer motion into bounded log growth.
package record

import "time"

// EventType names one replayable interaction kind.
type EventType string

const (
	MousePressed  EventType = "mousePressed"
	MouseReleased EventType = "mouseReleased"
	MouseMoved    EventType = "mouseMoved"
	MouseWheel    EventType = "mouseWheel"
	KeyDown       EventType = "keyDown"
	KeyUp         EventType = "keyUp"
	Paste         EventType = "paste"
)

// replayable is the fixed set of event types that enter the log.
var replayable = map[EventType]bool{
	MousePressed:  true,
	MouseReleased: true,
	MouseMoved:    true,
	MouseWheel:    true,
	KeyDown:       true,
	KeyUp:         true,
	Paste:         true,
}

// Replayable reports whether events of this type are recorded and replayed.
func Replayable(t EventType) bool {
	return replayable[t]
}

// Aggregated reports whether events of this type are coalesced into one
// record per aggregation window instead of being appended individually.
func Aggregated(t EventType) bool {
	return t == MouseMoved || t == MouseWheel
}

// Payload carries the per-type event data. Fields are value types only, so
// copying an Event copies the payload with no shared state.
type Payload struct {
	X          float64 `json:"x,omitempty"`
	Y          float64 `json:"y,omitempty"`
	Button     string  `json:"button,omitempty"`
	ClickCount int     `json:"clickCount,omitempty"`
	Modifiers  int     `json:"modifiers,omitempty"`
	DeltaX     float64 `json:"deltaX,omitempty"`
	DeltaY     float64 `json:"deltaY,omitempty"`
	Key        string  `json:"key,omitempty"`
	Code       string  `json:"code,omitempty"`
	Text       string  `json:"text,omitempty"`
}

// Event is one user-interaction record.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp int64     `json:"timestamp"` // absolute, unix milliseconds
	Relative  int64     `json:"relative"`  // milliseconds since recording epoch
	Payload   Payload   `json:"payload"`
}

// at builds an event stamped against the given epoch.
func at(t EventType, p Payload, now time.Time, epoch time.Time) Event {
	return Event{
		Type:      t,
		Timestamp: now.UnixMilli(),
		Relative:  now.Sub(epoch).Milliseconds(),
		Payload:   p,
	}
}
