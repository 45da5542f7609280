package record

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplayableSet(t *testing.T) {
	for _, typ := range []EventType{MousePressed, MouseReleased, MouseMoved, MouseWheel, KeyDown, KeyUp, Paste} {
		assert.True(t, Replayable(typ), string(typ))
	}
	assert.False(t, Replayable(EventType("resize")))

	assert.True(t, Aggregated(MouseMoved))
	assert.True(t, Aggregated(MouseWheel))
	assert.False(t, Aggregated(MousePressed))
}

func TestLogAppendAndReset(t *testing.T) {
	epoch := time.Now()
	l := NewLog(epoch)

	l.Append(MousePressed, Payload{X: 100, Y: 200, Button: "left"}, epoch.Add(50*time.Millisecond))
	l.Append(KeyDown, Payload{Key: "a", Code: "KeyA"}, epoch.Add(80*time.Millisecond))

	require.Equal(t, 2, l.Len())
	events := l.Snapshot()
	assert.Equal(t, int64(50), events[0].Relative)
	assert.Equal(t, int64(80), events[1].Relative)

	// Navigation resets history and epoch before anything else is recorded.
	navAt := epoch.Add(time.Second)
	l.Reset(navAt)
	assert.Equal(t, 0, l.Len())

	l.Append(KeyUp, Payload{Key: "a"}, navAt.Add(10*time.Millisecond))
	events = l.Snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, int64(10), events[0].Relative)
}

func TestLogSnapshotIsIndependent(t *testing.T) {
	l := NewLog(time.Now())
	l.Append(Paste, Payload{Text: "hi"}, time.Now())

	snap := l.Snapshot()
	snap[0].Payload.Text = "mutated"

	assert.Equal(t, "hi", l.Snapshot()[0].Payload.Text)
}

func TestAggregatorSingleWindowSingleRecord(t *testing.T) {
	epoch := time.Now()
	a := NewAggregator(100 * time.Millisecond)

	// 50 raw moves inside one window produce nothing yet.
	now := epoch
	for i := 0; i < 50; i++ {
		now = epoch.Add(time.Duration(i) * time.Millisecond)
		flushed := a.Offer(MouseMoved, Payload{X: float64(i), Y: float64(i * 2)}, now, epoch)
		assert.Empty(t, flushed)
	}

	// Once the window elapses exactly one record appears, carrying the
	// final coordinates.
	flushed := a.FlushDue(epoch.Add(150*time.Millisecond), epoch)
	require.Len(t, flushed, 1)
	assert.Equal(t, MouseMoved, flushed[0].Type)
	assert.Equal(t, float64(49), flushed[0].Payload.X)
	assert.Equal(t, float64(98), flushed[0].Payload.Y)
}

func TestAggregatorWheelSumsDeltas(t *testing.T) {
	epoch := time.Now()
	a := NewAggregator(100 * time.Millisecond)

	for i := 0; i < 5; i++ {
		a.Offer(MouseWheel, Payload{X: float64(10 + i), Y: 20, DeltaY: 3}, epoch.Add(time.Duration(i)*time.Millisecond), epoch)
	}

	flushed := a.FlushAll(epoch.Add(200*time.Millisecond), epoch)
	require.Len(t, flushed, 1)
	assert.Equal(t, MouseWheel, flushed[0].Type)
	assert.Equal(t, float64(15), flushed[0].Payload.DeltaY) // 5 * 3 summed
	assert.Equal(t, float64(14), flushed[0].Payload.X)      // latest position
}

func TestAggregatorNonAggregatedPassThrough(t *testing.T) {
	epoch := time.Now()
	a := NewAggregator(100 * time.Millisecond)

	out := a.Offer(MousePressed, Payload{X: 1, Y: 2, Button: "left"}, epoch.Add(time.Millisecond), epoch)
	require.Len(t, out, 1)
	assert.Equal(t, MousePressed, out[0].Type)
}

func TestAggregatorFlushOnLaterEvent(t *testing.T) {
	epoch := time.Now()
	a := NewAggregator(100 * time.Millisecond)

	a.Offer(MouseMoved, Payload{X: 1}, epoch, epoch)
	a.Offer(MouseMoved, Payload{X: 2}, epoch.Add(10*time.Millisecond), epoch)

	// A move arriving after the window closes flushes the aggregate.
	flushed := a.Offer(MouseMoved, Payload{X: 3}, epoch.Add(120*time.Millisecond), epoch)
	require.Len(t, flushed, 1)
	assert.Equal(t, float64(3), flushed[0].Payload.X)
}

func TestAggregatorReset(t *testing.T) {
	epoch := time.Now()
	a := NewAggregator(100 * time.Millisecond)

	a.Offer(MouseMoved, Payload{X: 5}, epoch, epoch)
	a.Reset(epoch.Add(time.Millisecond))

	assert.Empty(t, a.FlushAll(epoch.Add(time.Second), epoch))
}
