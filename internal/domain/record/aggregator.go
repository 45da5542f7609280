package record

import (
	"sync"
	"time"
)

// DefaultWindow is the aggregation interval for pointer motion. One record
// per window bounds log growth to ~10 records/second under continuous
// movement regardless of raw input rate.
const DefaultWindow = 100 * time.Millisecond

// Aggregator coalesces mouse-move and wheel events. Moves keep the latest
// position; wheels sum deltas and keep the latest position. A flush emits at
// most one record per kind once its window has elapsed.
type Aggregator struct {
	mu     sync.Mutex
	window time.Duration

	movePending   bool
	move          Payload
	lastMoveFlush time.Time

	wheelPending   bool
	wheel          Payload
	lastWheelFlush time.Time
}

// NewAggregator creates an aggregator with the given window; zero or negative
// falls back to DefaultWindow.
func NewAggregator(window time.Duration) *Aggregator {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Aggregator{window: window}
}

// Offer feeds one motion event into the aggregator and returns any records
// whose window has elapsed. Events of non-aggregated types are returned
// unchanged as a single stamped record.
func (a *Aggregator) Offer(t EventType, p Payload, now time.Time, epoch time.Time) []Event {
	if !Aggregated(t) {
		return []Event{at(t, p, now, epoch)}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	switch t {
	case MouseMoved:
		a.move = p
		a.movePending = true
		if a.lastMoveFlush.IsZero() {
			a.lastMoveFlush = now
		}
	case MouseWheel:
		dx, dy := a.wheel.DeltaX+p.DeltaX, a.wheel.DeltaY+p.DeltaY
		a.wheel = p
		a.wheel.DeltaX, a.wheel.DeltaY = dx, dy
		a.wheelPending = true
		if a.lastWheelFlush.IsZero() {
			a.lastWheelFlush = now
		}
	}

	return a.flushDueLocked(now, epoch)
}

// FlushDue emits pending aggregates whose window has elapsed.
func (a *Aggregator) FlushDue(now time.Time, epoch time.Time) []Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.flushDueLocked(now, epoch)
}

// FlushAll unconditionally emits all pending aggregates. Used right before a
// fork so the manifest carries the freshest pointer state.
func (a *Aggregator) FlushAll(now time.Time, epoch time.Time) []Event {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []Event
	if a.movePending {
		out = append(out, at(MouseMoved, a.move, now, epoch))
		a.movePending = false
		a.lastMoveFlush = now
	}
	if a.wheelPending {
		out = append(out, at(MouseWheel, a.wheel, now, epoch))
		a.wheelPending = false
		a.wheel = Payload{}
		a.lastWheelFlush = now
	}
	return out
}

// Reset drops pending state and restarts both windows. Called on navigation.
func (a *Aggregator) Reset(now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.movePending = false
	a.wheelPending = false
	a.move = Payload{}
	a.wheel = Payload{}
	a.lastMoveFlush = now
	a.lastWheelFlush = now
}

func (a *Aggregator) flushDueLocked(now time.Time, epoch time.Time) []Event {
	var out []Event
	if a.movePending && now.Sub(a.lastMoveFlush) >= a.window {
		out = append(out, at(MouseMoved, a.move, now, epoch))
		a.movePending = false
		a.lastMoveFlush = now
	}
	if a.wheelPending && now.Sub(a.lastWheelFlush) >= a.window {
		out = append(out, at(MouseWheel, a.wheel, now, epoch))
		a.wheelPending = false
		a.wheel = Payload{}
		a.lastWheelFlush = now
	}
	return out
}
