package clone

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/TabForge/internal/domain/netcache"
	"github.com/GriffinCanCode/TabForge/internal/domain/session"
	"github.com/GriffinCanCode/TabForge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/TabForge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/TabForge/internal/shared/id"
)

// Stage names one phase of a fork.
type Stage string

const (
	StageInitializing Stage = "initializing"
	StageLoading      Stage = "loading"
	StageReplaying    Stage = "replaying"
	StageComplete     Stage = "complete"
	StageFailed       Stage = "failed"
)

// Progress is one fork status update pushed to the requesting client.
type Progress struct {
	Stage   Stage  `json:"stage"`
	Percent int    `json:"progress"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Options tunes one fork.
type Options struct {
	// Speed scales recorded inter-event gaps during replay; 0 drops waits.
	Speed float64
	// SkipAnimations pins CSS animation and transition durations to zero for
	// the duration of the replay, so input lands on settled layout.
	SkipAnimations bool
	// NavTimeout bounds the reconstruction page load.
	NavTimeout time.Duration
	// OnProgress, when set, receives each stage transition.
	OnProgress func(Progress)
}

func (o *Options) defaults() {
	if o.NavTimeout <= 0 {
		o.NavTimeout = 30 * time.Second
	}
	if o.OnProgress == nil {
		o.OnProgress = func(Progress) {}
	}
}

// report pushes one stage transition with its completion estimate.
func (o Options) report(stage Stage) {
	pct, msg := stageProgress(stage)
	o.OnProgress(Progress{Stage: stage, Percent: pct, Message: msg})
}

// stageProgress maps a stage onto the client-facing completion estimate.
func stageProgress(s Stage) (int, string) {
	switch s {
	case StageInitializing:
		return 10, "snapshotting source session"
	case StageLoading:
		return 40, "loading page from captured responses"
	case StageReplaying:
		return 70, "replaying recorded input"
	case StageComplete:
		return 100, "clone ready"
	default:
		return 0, ""
	}
}

// Orchestrator runs forks. Stateless beyond its wiring; safe for concurrent
// use.
type Orchestrator struct {
	logger  *logging.Logger
	metrics *monitoring.Metrics
}

// NewOrchestrator builds an orchestrator.
func NewOrchestrator(logger *logging.Logger, metrics *monitoring.Metrics) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Orchestrator{logger: logger.Named("clone"), metrics: metrics}
}

// Fork snapshots the source session and materializes an independent copy in
// the same browser context. The page load is served from the snapshotted
// cache, the recorded interactions are replayed, and the result is returned
// as a detached session ready to be parked for attachment.
//
// The source is never blocked: after the snapshot it keeps running
// untouched, and nothing the fork does afterwards is visible to it.
func (o *Orchestrator) Fork(ctx context.Context, src *session.Context, opts Options) (*session.Context, error) {
	opts.defaults()
	start := time.Now()

	cloneID := id.NewSession()
	logger := o.logger.With(
		zap.String("source_id", src.ID()),
		zap.String("clone_id", cloneID))

	opts.report(StageInitializing)
	m := Snapshot(src)
	logger.Info("fork snapshot taken",
		zap.Int("cache_entries", m.Cache.Len()),
		zap.Int("events", len(m.Events)),
		zap.String("url", m.Page.URL))

	clone, err := o.materialize(ctx, src, m, cloneID, opts, logger)
	if err != nil {
		opts.OnProgress(Progress{Stage: StageFailed, Error: err.Error()})
		o.observe("failure", start)
		return nil, err
	}

	opts.report(StageComplete)
	o.observe("success", start)
	logger.Info("fork complete", zap.Duration("took", time.Since(start)))
	return clone, nil
}

// materialize builds the clone page. On any error the partially-built page
// is closed before returning, so a failed fork leaves nothing behind.
func (o *Orchestrator) materialize(ctx context.Context, src *session.Context, m *Manifest, cloneID string, opts Options, logger *logging.Logger) (*session.Context, error) {
	bctx := src.ContextBrowser()
	page, err := bctx.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("open clone page: %w", err)
	}

	cleanup := func() { _ = page.Close() }

	profile := src.Profile()
	if err := profile.Apply(page); err != nil {
		cleanup()
		return nil, fmt.Errorf("apply device profile: %w", err)
	}

	stopServing, err := o.serveFromCache(page, m.Cache, logger)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("install cache interceptor: %w", err)
	}

	opts.report(StageLoading)
	if err := o.load(page, m.Page.URL, opts.NavTimeout); err != nil {
		stopServing()
		cleanup()
		return nil, err
	}
	if opts.SkipAnimations {
		o.suppressAnimations(page, logger)
	}

	opts.report(StageReplaying)
	replayer := NewReplayer(page, opts.Speed, logger)
	failed, err := replayer.Replay(ctx, m.Events)
	if err != nil {
		stopServing()
		cleanup()
		return nil, fmt.Errorf("replay interrupted: %w", err)
	}
	if failed > 0 {
		logger.Warn("replay finished with skipped events", zap.Int("skipped", failed))
	}
	if opts.SkipAnimations {
		o.restoreAnimations(page, logger)
	}

	// Hand the Fetch domain back before the wrapped session re-arms it for
	// live response capture.
	stopServing()

	return session.Wrap(bctx, page, m.Cache, m.Events, m.Epoch, session.Options{
		ID:         cloneID,
		Profile:    profile,
		NavTimeout: opts.NavTimeout,
		URL:        m.Page.URL,
		Logger:     o.logger,
		Metrics:    o.metrics,
	}), nil
}

// load navigates the clone page and waits for its DOM to land. A source
// that never navigated clones to a blank page with no load step.
func (o *Orchestrator) load(page *rod.Page, url string, timeout time.Duration) error {
	if url == "" || url == "about:blank" {
		return nil
	}
	p := page.Timeout(timeout)
	wait := p.WaitEvent(&proto.PageDomContentEventFired{})
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("clone navigation to %s: %w", url, err)
	}
	wait()
	return nil
}

// serveFromCache intercepts the clone's requests before they hit the network
// and fulfills them from the snapshot. Misses fall through to the live
// network so pages referencing uncaptured resources still render. Returns a
// stop function releasing the interception domain.
func (o *Orchestrator) serveFromCache(page *rod.Page, cache *netcache.Cache, logger *logging.Logger) (func(), error) {
	cctx, cancel := context.WithCancel(context.Background())
	p := page.Context(cctx)

	go p.EachEvent(func(e *proto.FetchRequestPaused) {
		o.onRequestPaused(page, cache, e, logger)
	})()

	err := proto.FetchEnable{
		Patterns: []*proto.FetchRequestPattern{
			{URLPattern: "*", RequestStage: proto.FetchRequestStageRequest},
		},
	}.Call(page)
	if err != nil {
		cancel()
		return nil, err
	}

	stop := func() {
		cancel()
		if err := (proto.FetchDisable{}).Call(page); err != nil {
			logger.Debug("release cache interceptor", zap.Error(err))
		}
	}
	return stop, nil
}

func (o *Orchestrator) onRequestPaused(page *rod.Page, cache *netcache.Cache, e *proto.FetchRequestPaused, logger *logging.Logger) {
	resp, ok := o.lookup(cache, e)
	if !ok {
		if err := (proto.FetchContinueRequest{RequestID: e.RequestID}).Call(page); err != nil {
			logger.Debug("continue uncached request", zap.Error(err))
		}
		return
	}

	headers := make([]*proto.FetchHeaderEntry, 0, len(resp.Headers))
	for k, v := range resp.Headers {
		headers = append(headers, &proto.FetchHeaderEntry{Name: k, Value: v})
	}

	err := proto.FetchFulfillRequest{
		RequestID:       e.RequestID,
		ResponseCode:    resp.Status,
		ResponseHeaders: headers,
		Body:            resp.Body,
	}.Call(page)
	if err != nil {
		logger.Debug("fulfill from cache", zap.String("url", resp.URL), zap.Error(err))
	}
}

func (o *Orchestrator) lookup(cache *netcache.Cache, e *proto.FetchRequestPaused) (*netcache.Response, bool) {
	if e.Request == nil {
		return nil, false
	}
	headers := make(map[string]string, len(e.Request.Headers))
	for k, v := range e.Request.Headers {
		headers[k] = v.Str()
	}
	key := netcache.ComputeKey(e.Request.Method, e.Request.URL, headers, []byte(e.Request.PostData))
	return cache.Lookup(key)
}

// animationFreezeID marks the temporary style override so it can be removed
// once replay finishes.
const animationFreezeID = "__animation_freeze"

// suppressAnimations pins CSS animations and transitions to zero duration so
// replay interacts with settled layout instead of mid-flight tweens.
func (o *Orchestrator) suppressAnimations(page *rod.Page, logger *logging.Logger) {
	_, err := page.Eval(`() => {
		const style = document.createElement('style');
		style.id = '` + animationFreezeID + `';
		style.textContent = '*, *::before, *::after {' +
			'animation-duration: 0s !important;' +
			'animation-delay: 0s !important;' +
			'transition-duration: 0s !important;' +
			'transition-delay: 0s !important;' +
			'scroll-behavior: auto !important; }';
		document.head.appendChild(style);
	}`)
	if err != nil {
		logger.Debug("animation suppression failed", zap.Error(err))
	}
}

// restoreAnimations removes the override so the attached clone behaves like
// a normal page.
func (o *Orchestrator) restoreAnimations(page *rod.Page, logger *logging.Logger) {
	_, err := page.Eval(`() => {
		const style = document.getElementById('` + animationFreezeID + `');
		if (style) style.remove();
	}`)
	if err != nil {
		logger.Debug("animation restore failed", zap.Error(err))
	}
}

func (o *Orchestrator) observe(outcome string, start time.Time) {
	if o.metrics == nil {
		return
	}
	o.metrics.ClonesTotal.WithLabelValues(outcome).Inc()
	o.metrics.CloneDuration.Observe(time.Since(start).Seconds())
}
