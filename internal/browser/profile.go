package browser

import (
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// Profile is the fixed device identity applied to every page. A single
// consistent profile keeps captured responses replayable on clones and
// reduces automation fingerprinting surface.
type Profile struct {
	UserAgent      string
	AcceptLanguage string
	Platform       string
	Width          int
	Height         int
	Scale          float64
}

// DefaultProfile returns the stock desktop profile.
func DefaultProfile(width, height int, scale float64) Profile {
	if width <= 0 {
		width = 1280
	}
	if height <= 0 {
		height = 720
	}
	if scale <= 0 {
		scale = 1.0
	}
	return Profile{
		UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 " +
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		AcceptLanguage: "en-US,en;q=0.9",
		Platform:       "MacIntel",
		Width:          width,
		Height:         height,
		Scale:          scale,
	}
}

// stealthScript masks the most common headless signals before any page
// script runs. This is a navigator-level touch-up, not a full evasion suite.
const stealthScript = `
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
Object.defineProperty(navigator, 'languages', { get: () => ['en-US', 'en'] });
Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3] });
window.chrome = window.chrome || { runtime: {} };
if (window.navigator.permissions && window.navigator.permissions.query) {
	const origQuery = window.navigator.permissions.query.bind(window.navigator.permissions);
	window.navigator.permissions.query = (parameters) =>
		parameters.name === 'notifications'
			? Promise.resolve({ state: Notification.permission })
			: origQuery(parameters);
}
`

// Apply sets the device metrics, user agent, and init script on a fresh page.
// Must be called before the first navigation.
func (p Profile) Apply(page *rod.Page) error {
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      p.UserAgent,
		AcceptLanguage: p.AcceptLanguage,
		Platform:       p.Platform,
	}); err != nil {
		return err
	}

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             p.Width,
		Height:            p.Height,
		DeviceScaleFactor: p.Scale,
		Mobile:            false,
	}).Call(page); err != nil {
		return err
	}

	_, err := proto.PageAddScriptToEvaluateOnNewDocument{Source: stealthScript}.Call(page)
	return err
}
