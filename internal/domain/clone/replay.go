package clone

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GriffinCanCode/TabForge/internal/domain/record"
	"github.com/GriffinCanCode/TabForge/internal/domain/session"
	"github.com/GriffinCanCode/TabForge/internal/infrastructure/logging"
)

const (
	// settleDelay gives the page a beat to process a discrete action before
	// the next event lands.
	settleDelay = 8 * time.Millisecond

	// motionBatchSize bounds how many motion events are in flight at once.
	motionBatchSize = 128

	// maxGap caps the recorded pause honored between events; long idle
	// stretches in the source recording compress to this.
	maxGap = time.Second
)

// Replayer drives a recorded event sequence into a page. Motion events
// (moves, wheels) within a contiguous run are dispatched concurrently in
// bounded batches; discrete events act as ordering barriers and run alone.
type Replayer struct {
	page     *rod.Page
	speed    float64 // 0 means no inter-event waits
	logger   *logging.Logger
	dispatch func(record.Event) error
}

// NewReplayer builds a replayer. Speed scales recorded gaps: 2.0 replays
// twice as fast, 0 drops waits entirely.
func NewReplayer(page *rod.Page, speed float64, logger *logging.Logger) *Replayer {
	if logger == nil {
		logger = logging.NewNop()
	}
	r := &Replayer{page: page, speed: speed, logger: logger.Named("replay")}
	r.dispatch = func(ev record.Event) error {
		return session.DispatchTo(r.page, ev.Type, ev.Payload)
	}
	return r
}

// Replay dispatches the events in recorded order. Individual dispatch
// failures are logged and skipped; replay only aborts on context
// cancellation. Returns the number of events that failed.
func (r *Replayer) Replay(ctx context.Context, events []record.Event) (int, error) {
	ordered := make([]record.Event, len(events))
	copy(ordered, events)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Relative < ordered[j].Relative
	})

	failed := 0
	i := 0
	prev := int64(-1)
	for i < len(ordered) {
		if err := ctx.Err(); err != nil {
			return failed, err
		}

		ev := ordered[i]
		if prev >= 0 {
			r.pause(ctx, ev.Relative-prev)
		}

		if isMotion(ev.Type) {
			batch := motionRun(ordered[i:])
			failed += r.dispatchBatch(batch)
			prev = batch[len(batch)-1].Relative
			i += len(batch)
			continue
		}

		if err := r.dispatch(ev); err != nil {
			failed++
			r.logger.Debug("replay dispatch failed",
				zap.String("type", string(ev.Type)), zap.Error(err))
		}
		if needsSettle(ev.Type) {
			time.Sleep(settleDelay)
		}
		prev = ev.Relative
		i++
	}
	return failed, nil
}

// pause sleeps the speed-scaled, capped gap between two recorded events.
func (r *Replayer) pause(ctx context.Context, gapMillis int64) {
	if r.speed <= 0 || gapMillis <= 0 {
		return
	}
	gap := time.Duration(gapMillis) * time.Millisecond
	if gap > maxGap {
		gap = maxGap
	}
	gap = time.Duration(float64(gap) / r.speed)

	t := time.NewTimer(gap)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// dispatchBatch fires a contiguous motion run in bounded concurrent slices.
// Within a slice order does not matter (each event is absolute-positioned);
// the slice boundary is a completion barrier. Returns how many events failed.
func (r *Replayer) dispatchBatch(batch []record.Event) int {
	var failed atomic.Int32
	for start := 0; start < len(batch); start += motionBatchSize {
		end := start + motionBatchSize
		if end > len(batch) {
			end = len(batch)
		}

		var g errgroup.Group
		for _, ev := range batch[start:end] {
			ev := ev
			g.Go(func() error {
				if err := r.dispatch(ev); err != nil {
					failed.Add(1)
					r.logger.Debug("motion dispatch failed",
						zap.String("type", string(ev.Type)), zap.Error(err))
				}
				return nil
			})
		}
		_ = g.Wait()
	}
	return int(failed.Load())
}

func isMotion(t record.EventType) bool {
	return t == record.MouseMoved || t == record.MouseWheel
}

// needsSettle names the actions the page gets a beat to process before the
// next event lands; key transitions dispatch back to back.
func needsSettle(t record.EventType) bool {
	return t == record.MousePressed || t == record.MouseReleased || t == record.Paste
}

// motionRun returns the longest prefix of consecutive motion events.
func motionRun(events []record.Event) []record.Event {
	n := 0
	for n < len(events) && isMotion(events[n].Type) {
		n++
	}
	return events[:n]
}
