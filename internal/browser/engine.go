// Package browser owns the connection to the headless browser engine.
//
// It attaches to an existing instance when a control URL is configured and
// launches its own otherwise, hands out isolated browser contexts for
// sessions, and reports engine health. Everything above this package speaks
// rod pages and typed CDP calls; nothing above it launches processes.
package browser

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/TabForge/internal/infrastructure/config"
	"github.com/GriffinCanCode/TabForge/internal/infrastructure/logging"
)

// Engine manages one browser process shared by every session.
type Engine struct {
	cfg    config.BrowserConfig
	logger *logging.Logger

	mu      sync.Mutex
	browser *rod.Browser
}

// New creates an engine; Start must be called before use.
func New(cfg config.BrowserConfig, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{cfg: cfg, logger: logger.Named("browser")}
}

// Start connects to the configured control URL, or launches a browser when
// none is configured. Calling Start on a healthy engine is a no-op.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.browser != nil {
		if _, err := e.browser.Version(); err == nil {
			return nil
		}
		e.logger.Warn("stale browser connection, reconnecting")
		_ = e.browser.Close()
		e.browser = nil
	}

	controlURL := e.cfg.ControlURL
	if controlURL == "" {
		l := launcher.New().Headless(e.cfg.Headless)
		if e.cfg.BinPath != "" {
			l = l.Bin(e.cfg.BinPath)
		}
		url, err := l.Launch()
		if err != nil {
			return fmt.Errorf("launch browser: %w", err)
		}
		controlURL = url
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		return fmt.Errorf("connect to browser: %w", err)
	}

	e.browser = b
	e.logger.Info("browser connected", zap.String("control_url", controlURL))
	return nil
}

// NewContext creates an isolated browser context (own cookies and storage).
func (e *Engine) NewContext() (*rod.Browser, error) {
	e.mu.Lock()
	b := e.browser
	e.mu.Unlock()
	if b == nil {
		return nil, fmt.Errorf("browser engine not started")
	}

	bctx, err := b.Incognito()
	if err != nil {
		return nil, fmt.Errorf("create browser context: %w", err)
	}
	return bctx, nil
}

// DisposeContext tears down a context created by NewContext.
func (e *Engine) DisposeContext(bctx *rod.Browser) error {
	if bctx == nil || bctx.BrowserContextID == "" {
		return nil
	}
	return proto.TargetDisposeBrowserContext{BrowserContextID: bctx.BrowserContextID}.Call(bctx)
}

// Healthy reports whether the browser still answers protocol calls.
func (e *Engine) Healthy() bool {
	e.mu.Lock()
	b := e.browser
	e.mu.Unlock()
	if b == nil {
		return false
	}
	_, err := b.Version()
	return err == nil
}

// Close shuts the browser down.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.browser == nil {
		return nil
	}
	err := e.browser.Close()
	e.browser = nil
	return err
}
