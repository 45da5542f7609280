package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/TabForge/internal/browser"
	"github.com/GriffinCanCode/TabForge/internal/domain/netcache"
	"github.com/GriffinCanCode/TabForge/internal/domain/record"
	"github.com/GriffinCanCode/TabForge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/TabForge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/TabForge/internal/shared/id"
)

// Frame is one screencast frame relayed to the frame sink.
type Frame struct {
	Data   []byte
	Width  int
	Height int
}

// PageSnapshot captures the page identity at a point in time.
type PageSnapshot struct {
	URL        string    `json:"url"`
	CapturedAt time.Time `json:"capturedAt"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	Scale      float64   `json:"scale"`
}

// Info is the metadata exposed on the listing endpoint.
type Info struct {
	ID        string         `json:"id"`
	URL       string         `json:"url"`
	Tier      Tier           `json:"tier"`
	Recording bool           `json:"recording"`
	CreatedAt time.Time      `json:"createdAt"`
	Events    int            `json:"events"`
	Cache     netcache.Stats `json:"cache"`
}

// Options configures a new session context.
type Options struct {
	ID          string
	Profile     browser.Profile
	NavTimeout  time.Duration
	CachePolicy netcache.Policy
	Window      time.Duration
	Logger      *logging.Logger
	Metrics     *monitoring.Metrics

	// URL seeds the last-observed URL for pages that already navigated
	// before adoption; the navigation watcher only sees changes from here on.
	URL string
}

func (o *Options) defaults() {
	if o.ID == "" {
		o.ID = id.NewSession()
	}
	if o.NavTimeout <= 0 {
		o.NavTimeout = 30 * time.Second
	}
	if o.Logger == nil {
		o.Logger = logging.NewNop()
	}
	if o.Profile.Width == 0 {
		o.Profile = browser.DefaultProfile(0, 0, 0)
	}
}

// Context is one live browser tab with its streaming, capture, and
// recording state. It is exclusively owned by a single connection slot
// (the live map or the pending store) at any time.
type Context struct {
	id          string
	page        *rod.Page
	bctx        *rod.Browser
	ownsContext bool
	profile     browser.Profile
	navTimeout  time.Duration

	cache *netcache.Cache
	log   *record.Log
	agg   *record.Aggregator

	logger  *logging.Logger
	metrics *monitoring.Metrics

	mu         sync.Mutex
	recording  bool
	tier       Tier
	currentURL string
	createdAt  time.Time
	closed     bool
	frameSink  func(Frame)

	navCancel     context.CancelFunc
	captureCancel context.CancelFunc

	// screencast state machine, guarded by mu
	scState    scState
	scCancel   context.CancelFunc
	scWatchdog *time.Timer
	scAttempts int
}

// New allocates a fresh browser context, opens a page with the fixed device
// profile applied, and arms navigation watching plus network capture.
func New(engine *browser.Engine, opts Options) (*Context, error) {
	opts.defaults()

	bctx, err := engine.NewContext()
	if err != nil {
		return nil, err
	}

	page, err := bctx.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = engine.DisposeContext(bctx)
		return nil, fmt.Errorf("open page: %w", err)
	}

	if err := opts.Profile.Apply(page); err != nil {
		_ = page.Close()
		_ = engine.DisposeContext(bctx)
		return nil, fmt.Errorf("apply device profile: %w", err)
	}

	c := build(bctx, page, true, opts)
	c.cache = netcache.New(opts.CachePolicy, opts.Logger.Named("netcache"))
	c.wireCacheMetrics()
	c.watchNavigation()

	if err := c.EnableCapture(); err != nil {
		// Capture is an optimization; a session without it still works.
		c.logger.Warn("network capture unavailable", zap.Error(err))
	}

	if c.metrics != nil {
		c.metrics.SessionsTotal.Inc()
	}
	return c, nil
}

// Wrap adopts an already-materialized page as a session context. Used for
// clone targets: the clone shares the source's browser context and therefore
// never owns it.
func Wrap(bctx *rod.Browser, page *rod.Page, cache *netcache.Cache, events []record.Event, epoch time.Time, opts Options) *Context {
	opts.defaults()

	c := build(bctx, page, false, opts)
	c.cache = cache
	c.log.Restore(events, epoch)
	c.wireCacheMetrics()
	c.watchNavigation()

	if err := c.EnableCapture(); err != nil {
		c.logger.Warn("network capture unavailable", zap.Error(err))
	}

	if c.metrics != nil {
		c.metrics.SessionsTotal.Inc()
	}
	return c
}

func build(bctx *rod.Browser, page *rod.Page, owns bool, opts Options) *Context {
	now := time.Now()
	return &Context{
		id:          opts.ID,
		page:        page,
		bctx:        bctx,
		ownsContext: owns,
		profile:     opts.Profile,
		navTimeout:  opts.NavTimeout,
		log:         record.NewLog(now),
		agg:         record.NewAggregator(opts.Window),
		logger:      opts.Logger.Named("session").With(zap.String("session_id", opts.ID)),
		metrics:     opts.Metrics,
		recording:   true,
		tier:        TierSecondary,
		currentURL:  opts.URL,
		createdAt:   now,
	}
}

func (c *Context) wireCacheMetrics() {
	if c.metrics == nil || c.cache == nil {
		return
	}
	m := c.metrics
	c.cache.OnStats(func(s netcache.Stats) {
		m.CacheEntries.Set(float64(s.Entries))
		m.CacheBytes.Set(float64(s.TotalBytes))
	})
}

// ID returns the session identifier.
func (c *Context) ID() string { return c.id }

// Page returns the underlying page.
func (c *Context) Page() *rod.Page { return c.page }

// ContextBrowser returns the browser-context handle this session runs in.
// Clone targets are opened against the same handle.
func (c *Context) ContextBrowser() *rod.Browser { return c.bctx }

// Cache returns the session's network cache.
func (c *Context) Cache() *netcache.Cache { return c.cache }

// Log returns the session's recorded-event log.
func (c *Context) Log() *record.Log { return c.log }

// Profile returns the device profile the page was created with.
func (c *Context) Profile() browser.Profile { return c.profile }

// CreatedAt returns the session creation time.
func (c *Context) CreatedAt() time.Time { return c.createdAt }

// SetFrameSink installs the callback receiving screencast frames.
func (c *Context) SetFrameSink(fn func(Frame)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frameSink = fn
}

// URL returns the last observed top-level URL.
func (c *Context) URL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentURL
}

// CurrentTier returns the active quality tier.
func (c *Context) CurrentTier() Tier {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tier
}

// Recording reports whether interaction recording is enabled.
func (c *Context) Recording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recording
}

// SetRecording flips recording; when enabled is nil the flag toggles.
// Returns the resulting state.
func (c *Context) SetRecording(enabled *bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if enabled != nil {
		c.recording = *enabled
	} else {
		c.recording = !c.recording
	}
	return c.recording
}

// Navigate loads the URL in the session's page. The navigation listener
// observes the resulting top-level change and resets the recording epoch.
func (c *Context) Navigate(url string) error {
	if err := c.page.Timeout(c.navTimeout).Navigate(url); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

// Snapshot captures the current page identity for manifests and clients.
func (c *Context) Snapshot() PageSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return PageSnapshot{
		URL:        c.currentURL,
		CapturedAt: time.Now(),
		Width:      c.profile.Width,
		Height:     c.profile.Height,
		Scale:      c.profile.Scale,
	}
}

// Describe returns listing metadata.
func (c *Context) Describe() Info {
	return Info{
		ID:        c.id,
		URL:       c.URL(),
		Tier:      c.CurrentTier(),
		Recording: c.Recording(),
		CreatedAt: c.createdAt,
		Events:    c.log.Len(),
		Cache:     c.cache.Stats(),
	}
}

// HandleInput records a replayable interaction (subject to aggregation) and
// forwards it to the browser fire-and-forget: a lost input beats a stalled
// message loop.
func (c *Context) HandleInput(t record.EventType, p record.Payload) {
	if !record.Replayable(t) {
		return
	}
	now := time.Now()

	if c.Recording() {
		epoch := c.log.Epoch()
		if record.Aggregated(t) {
			c.log.AppendEvents(c.agg.Offer(t, p, now, epoch))
		} else {
			// Pending motion must land before a discrete action so replay
			// preserves causal order.
			c.log.AppendEvents(c.agg.FlushAll(now, epoch))
			c.log.Append(t, p, now)
		}
	}

	if c.page == nil {
		return
	}
	go func() {
		if err := DispatchTo(c.page, t, p); err != nil {
			c.logger.Debug("input dispatch failed",
				zap.String("type", string(t)), zap.Error(err))
		}
	}()
}

// FlushPending drains aggregated motion into the log. Called before a fork
// so the manifest carries the freshest pointer state.
func (c *Context) FlushPending() {
	now := time.Now()
	c.log.AppendEvents(c.agg.FlushAll(now, c.log.Epoch()))
}

// watchNavigation observes top-level navigations; any URL change starts a
// fresh recording epoch.
func (c *Context) watchNavigation() {
	cctx, cancel := context.WithCancel(context.Background())
	c.navCancel = cancel
	p := c.page.Context(cctx)
	go p.EachEvent(func(e *proto.PageFrameNavigated) {
		if e.Frame == nil || e.Frame.ParentID != "" {
			return
		}
		c.onNavigated(e.Frame.URL)
	})()
}

func (c *Context) onNavigated(url string) {
	c.mu.Lock()
	changed := url != c.currentURL
	c.currentURL = url
	c.mu.Unlock()

	if !changed {
		return
	}
	now := time.Now()
	c.log.Reset(now)
	c.agg.Reset(now)
	c.logger.Debug("navigation reset recording epoch", zap.String("url", url))
}

// Teardown releases everything this session owns. Every step is
// best-effort: a failure in one never blocks the rest.
func (c *Context) Teardown() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.StopScreencast()

	if c.navCancel != nil {
		c.navCancel()
	}

	c.DisableCapture()

	if c.page != nil {
		if err := c.page.Close(); err != nil {
			c.logger.Debug("page close during teardown", zap.Error(err))
		}
	}

	// Clone targets share the source's browser context; only the original
	// owner releases it.
	if c.ownsContext && c.bctx != nil && c.bctx.BrowserContextID != "" {
		err := proto.TargetDisposeBrowserContext{
			BrowserContextID: c.bctx.BrowserContextID,
		}.Call(c.bctx)
		if err != nil {
			c.logger.Debug("context dispose during teardown", zap.Error(err))
		}
	}

	c.logger.Info("session torn down")
}
