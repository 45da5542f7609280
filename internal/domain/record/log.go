package record

import (
	"sync"
	"time"
)

// Log is the append-only event history of one session. Every top-level
// navigation resets it, so the log always describes interactions against the
// current page only.
type Log struct {
	mu     sync.Mutex
	epoch  time.Time
	events []Event
}

// NewLog returns an empty log with its epoch set to now.
func NewLog(now time.Time) *Log {
	return &Log{epoch: now}
}

// Epoch returns the current recording epoch.
func (l *Log) Epoch() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.epoch
}

// Append records one event stamped against the current epoch.
func (l *Log) Append(t EventType, p Payload, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, at(t, p, now, l.epoch))
}

// AppendEvents adds pre-stamped events (aggregator flushes) in order.
func (l *Log) AppendEvents(events []Event) {
	if len(events) == 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, events...)
}

// Reset clears the history and restarts the epoch. Called on navigation.
func (l *Log) Reset(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = nil
	l.epoch = now
}

// Len returns the number of recorded events.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// Snapshot returns a value-independent copy of the history.
func (l *Log) Snapshot() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// Restore replaces the history wholesale. Used when materializing a clone
// whose log must match the source's at fork time.
func (l *Log) Restore(events []Event, epoch time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = make([]Event, len(events))
	copy(l.events, events)
	l.epoch = epoch
}
