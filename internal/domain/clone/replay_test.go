package clone

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/TabForge/internal/domain/record"
	"github.com/GriffinCanCode/TabForge/internal/infrastructure/logging"
)

func TestMotionRunStopsAtDiscrete(t *testing.T) {
	events := []record.Event{
		{Type: record.MouseMoved},
		{Type: record.MouseWheel},
		{Type: record.MouseMoved},
		{Type: record.MousePressed},
		{Type: record.MouseMoved},
	}
	run := motionRun(events)
	require.Len(t, run, 3)
	assert.Equal(t, record.MouseMoved, run[2].Type)
}

func TestMotionRunEmptyOnDiscreteHead(t *testing.T) {
	events := []record.Event{{Type: record.KeyDown}, {Type: record.MouseMoved}}
	assert.Empty(t, motionRun(events))
}

func TestIsMotion(t *testing.T) {
	assert.True(t, isMotion(record.MouseMoved))
	assert.True(t, isMotion(record.MouseWheel))
	assert.False(t, isMotion(record.MousePressed))
	assert.False(t, isMotion(record.KeyDown))
	assert.False(t, isMotion(record.Paste))
}

func TestPauseSpeedZeroSkipsWaits(t *testing.T) {
	r := NewReplayer(nil, 0, logging.NewNop())
	start := time.Now()
	r.pause(context.Background(), 5000)
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestPauseCapsLongGaps(t *testing.T) {
	// A 10s recorded gap at 100x speed collapses to maxGap/100 = 10ms.
	r := NewReplayer(nil, 100, logging.NewNop())
	start := time.Now()
	r.pause(context.Background(), 10_000)
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 8*time.Millisecond)
	assert.Less(t, elapsed, 200*time.Millisecond)
}

func TestPauseHonorsCancellation(t *testing.T) {
	r := NewReplayer(nil, 1, logging.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	r.pause(ctx, 1000)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestReplayEmptySequence(t *testing.T) {
	r := NewReplayer(nil, 0, logging.NewNop())
	failed, err := r.Replay(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, failed)
}

func TestReplayAbortsWhenCancelled(t *testing.T) {
	r := NewReplayer(nil, 1, logging.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Replay(ctx, []record.Event{{Type: record.KeyDown, Relative: 0}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOptionsDefaults(t *testing.T) {
	var o Options
	o.defaults()
	assert.Equal(t, 30*time.Second, o.NavTimeout)
	assert.False(t, o.SkipAnimations, "animation freezing is opt-in")
	require.NotNil(t, o.OnProgress)

	var got Progress
	o.OnProgress = func(p Progress) { got = p }
	o.report(StageComplete)
	assert.Equal(t, StageComplete, got.Stage)
	assert.Equal(t, 100, got.Percent)
	assert.NotEmpty(t, got.Message)
}

func TestNeedsSettle(t *testing.T) {
	assert.True(t, needsSettle(record.MousePressed))
	assert.True(t, needsSettle(record.MouseReleased))
	assert.True(t, needsSettle(record.Paste))
	assert.False(t, needsSettle(record.KeyDown))
	assert.False(t, needsSettle(record.KeyUp))
	assert.False(t, needsSettle(record.MouseMoved))
	assert.False(t, needsSettle(record.MouseWheel))
}

func TestReplayCountsEveryFailedMotionDispatch(t *testing.T) {
	r := NewReplayer(nil, 0, logging.NewNop())
	r.dispatch = func(ev record.Event) error {
		if ev.Type == record.MouseMoved {
			return errors.New("dispatch refused")
		}
		return nil
	}

	events := make([]record.Event, 0, 6)
	for i := 0; i < 5; i++ {
		events = append(events, record.Event{Type: record.MouseMoved, Relative: int64(i)})
	}
	events = append(events, record.Event{Type: record.MousePressed, Relative: 5})

	failed, err := r.Replay(context.Background(), events)
	require.NoError(t, err)
	assert.Equal(t, 5, failed)
}

func TestReplayMotionRunCompletesBeforeDiscrete(t *testing.T) {
	r := NewReplayer(nil, 0, logging.NewNop())
	var mu sync.Mutex
	var seen []record.EventType
	r.dispatch = func(ev record.Event) error {
		mu.Lock()
		seen = append(seen, ev.Type)
		mu.Unlock()
		return nil
	}

	events := []record.Event{
		{Type: record.MouseMoved, Relative: 0},
		{Type: record.MouseWheel, Relative: 1},
		{Type: record.MousePressed, Relative: 2},
	}
	failed, err := r.Replay(context.Background(), events)
	require.NoError(t, err)
	assert.Zero(t, failed)
	require.Len(t, seen, 3)
	assert.Equal(t, record.MousePressed, seen[2], "discrete event must wait for the motion barrier")
}

func TestStageProgressAdvancesToComplete(t *testing.T) {
	stages := []Stage{StageInitializing, StageLoading, StageReplaying, StageComplete}
	prev := 0
	for _, s := range stages {
		pct, msg := stageProgress(s)
		assert.Greater(t, pct, prev, string(s))
		assert.NotEmpty(t, msg, string(s))
		prev = pct
	}
	assert.Equal(t, 100, prev)

	pct, _ := stageProgress(StageFailed)
	assert.Zero(t, pct)
}
