package session

import (
	"context"
	"time"

	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// scState tracks the screencast lifecycle: stopped, starting, streaming.
// Stalls are handled by a startup watchdog that restarts the stream up to
// maxRestartAttempts times before giving up.
type scState int

const (
	scStopped scState = iota
	scStarting
	scStreaming
)

const (
	// startupWatchdogTimeout is how long we wait for the first frame before
	// assuming the compositor stalled.
	startupWatchdogTimeout = 2500 * time.Millisecond
	maxRestartAttempts     = 3
	maxCaptureWidth        = 1920
	maxCaptureHeight       = 1080
)

// intPtr adapts literals to the protocol's optional integer fields.
func intPtr(v int) *int { return &v }

// StartScreencast (re)starts capture at the given tier. Any existing stream
// is stopped first; tier switches always go through a full restart because
// quality parameters are fixed at stream start.
func (c *Context) StartScreencast(tier Tier) error {
	if !ValidTier(tier) {
		tier = TierSecondary
	}

	c.mu.Lock()
	c.stopStreamLocked()
	c.tier = tier
	c.scState = scStarting
	c.scAttempts = 0
	c.mu.Unlock()

	return c.startStream(tier)
}

// SetTier switches the active quality tier, restarting the stream.
func (c *Context) SetTier(tier Tier) error {
	return c.StartScreencast(tier)
}

// StopScreencast halts capture. Idempotent; "already stopped" errors from
// the engine are ignored.
func (c *Context) StopScreencast() {
	c.mu.Lock()
	c.stopStreamLocked()
	c.mu.Unlock()

	if c.page == nil {
		return
	}
	if err := (proto.PageStopScreencast{}).Call(c.page); err != nil {
		c.logger.Debug("stop screencast", zap.Error(err))
	}
}

// stopStreamLocked removes listeners and disarms the watchdog. Caller holds mu.
func (c *Context) stopStreamLocked() {
	if c.scCancel != nil {
		c.scCancel()
		c.scCancel = nil
	}
	if c.scWatchdog != nil {
		c.scWatchdog.Stop()
		c.scWatchdog = nil
	}
	c.scState = scStopped
}

// startStream installs fresh frame/visibility listeners, forces the page to
// produce an initial composite, and starts capture with tier parameters.
func (c *Context) startStream(tier Tier) error {
	spec := tier.Spec()

	cctx, cancel := context.WithCancel(context.Background())
	p := c.page.Context(cctx)

	go p.EachEvent(
		func(e *proto.PageScreencastFrame) {
			c.onFrame(e)
		},
		func(e *proto.PageScreencastVisibilityChanged) {
			if !e.Visible {
				c.reactivate()
			}
		},
	)()

	c.mu.Lock()
	c.scCancel = cancel
	c.mu.Unlock()

	// Headless engines sometimes never emit the first frame unless a
	// composite is forced; try each technique in order, stop at first success.
	c.forceComposite()

	err := proto.PageStartScreencast{
		Format:        proto.PageStartScreencastFormatJpeg,
		Quality:       intPtr(spec.Quality),
		MaxWidth:      intPtr(maxCaptureWidth),
		MaxHeight:     intPtr(maxCaptureHeight),
		EveryNthFrame: intPtr(spec.everyNthFrame()),
	}.Call(c.page)
	if err != nil {
		c.mu.Lock()
		c.stopStreamLocked()
		c.mu.Unlock()
		return err
	}

	c.armWatchdog(tier)
	c.logger.Debug("screencast starting",
		zap.String("tier", string(tier)),
		zap.Int("fps", spec.FPS),
		zap.Int("quality", spec.Quality))
	return nil
}

// onFrame relays one frame to the sink and confirms stream liveness.
func (c *Context) onFrame(e *proto.PageScreencastFrame) {
	// Ack first: the engine withholds further frames until the last one is
	// acknowledged.
	if err := (proto.PageScreencastFrameAck{SessionID: e.SessionID}).Call(c.page); err != nil {
		c.logger.Debug("frame ack", zap.Error(err))
	}

	c.mu.Lock()
	c.scState = scStreaming
	c.scAttempts = 0
	if c.scWatchdog != nil {
		c.scWatchdog.Reset(startupWatchdogTimeout)
	}
	sink := c.frameSink
	c.mu.Unlock()

	if sink == nil {
		return
	}

	frame := Frame{Data: e.Data}
	if e.Metadata != nil {
		frame.Width = int(e.Metadata.DeviceWidth)
		frame.Height = int(e.Metadata.DeviceHeight)
	}
	sink(frame)

	if c.metrics != nil {
		c.metrics.FramesSent.Inc()
		c.metrics.FrameBytes.Observe(float64(len(frame.Data)))
	}
}

// armWatchdog schedules a restart if no frame arrives in time.
func (c *Context) armWatchdog(tier Tier) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.scWatchdog != nil {
		c.scWatchdog.Stop()
	}
	c.scWatchdog = time.AfterFunc(startupWatchdogTimeout, func() {
		c.onWatchdogFired(tier)
	})
}

func (c *Context) onWatchdogFired(tier Tier) {
	c.mu.Lock()
	if c.closed || c.scState == scStopped {
		c.mu.Unlock()
		return
	}
	c.scAttempts++
	attempts := c.scAttempts
	if attempts > maxRestartAttempts {
		c.stopStreamLocked()
		c.mu.Unlock()
		// The session stays controllable without a preview; the stream comes
		// back on the next explicit tier switch or reconnect.
		c.logger.Error("screencast failed to produce frames, giving up",
			zap.Int("attempts", attempts-1))
		return
	}
	c.stopStreamLocked()
	c.scState = scStarting
	c.scAttempts = attempts
	c.mu.Unlock()

	c.logger.Warn("screencast stalled, restarting", zap.Int("attempt", attempts))
	if c.metrics != nil {
		c.metrics.ScreencastRestart.Inc()
	}
	if err := c.startStream(tier); err != nil {
		c.logger.Error("screencast restart failed", zap.Error(err))
	}
}

// reactivate runs when the engine reports the target hidden; independent of
// the watchdog restart path.
func (c *Context) reactivate() {
	c.logger.Debug("capture target hidden, forcing reactivation")
	go func() {
		if err := (proto.PageBringToFront{}).Call(c.page); err != nil {
			c.logger.Debug("bring to front", zap.Error(err))
		}
		c.forceComposite()
	}()
}

// forceComposite runs the foregrounding strategy chain: each technique is
// attempted in order, failures are logged, and the chain stops at the first
// success.
func (c *Context) forceComposite() {
	strategies := []struct {
		name string
		fn   func() error
	}{
		{"begin-frame", func() error {
			_, err := proto.HeadlessExperimentalBeginFrame{}.Call(c.page)
			return err
		}},
		{"screenshot", func() error {
			_, err := proto.PageCaptureScreenshot{
				Format:  proto.PageCaptureScreenshotFormatJpeg,
				Quality: intPtr(10),
			}.Call(c.page)
			return err
		}},
		{"viewport-jiggle", func() error {
			if err := (proto.EmulationSetDeviceMetricsOverride{
				Width:             c.profile.Width,
				Height:            c.profile.Height + 1,
				DeviceScaleFactor: c.profile.Scale,
				Mobile:            false,
			}).Call(c.page); err != nil {
				return err
			}
			return proto.EmulationSetDeviceMetricsOverride{
				Width:             c.profile.Width,
				Height:            c.profile.Height,
				DeviceScaleFactor: c.profile.Scale,
				Mobile:            false,
			}.Call(c.page)
		}},
	}

	for _, s := range strategies {
		if err := s.fn(); err != nil {
			c.logger.Debug("composite strategy failed",
				zap.String("strategy", s.name), zap.Error(err))
			continue
		}
		return
	}
}
