// Package browser owns the Chromium instance behind a small Driver interface.
// The campaign engine only sees Driver and the sentinel errors in errors.go;
// everything rod- or CDP-specific stays on this side of the boundary.
package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/devices"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/SkyBlue997/MicrosoftRewardsPilot/internal/config"
	"github.com/SkyBlue997/MicrosoftRewardsPilot/internal/logging"
	"github.com/SkyBlue997/MicrosoftRewardsPilot/internal/types"
)

// Driver is the interaction capability the campaign engine runs against.
// Implementations must return the sentinel errors from errors.go (or context
// errors) so the failure classifier can act on them.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	Type(ctx context.Context, selector, text string) error
	Click(ctx context.Context, selector string) error
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error
	Evaluate(ctx context.Context, js string) (string, error)
	// LatestSurface discards the current page and attaches to the most
	// recently opened one, opening a fresh tab if none remain. Used to
	// recover from crashed or closed targets.
	LatestSurface(ctx context.Context) error
	// Reload refreshes the current page.
	Reload(ctx context.Context) error
	IsClosed() bool
}

// Manager launches (or attaches to) Chromium and hands out one Driver per
// device class. It is the only holder of the rod.Browser.
type Manager struct {
	cfg    config.BrowserConfig
	logger *zap.Logger

	mu         sync.Mutex
	browser    *rod.Browser
	launched   *launcher.Launcher
	controlURL string
}

// NewManager creates a manager for the given browser config.
func NewManager(cfg config.BrowserConfig) *Manager {
	return &Manager{cfg: cfg, logger: logging.Get(logging.CategoryBrowser)}
}

// Start connects to an existing Chrome via debugger_url or launches a new
// instance, optionally bound to an account profile directory.
func (m *Manager) Start(ctx context.Context, profileDir string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browser != nil {
		if _, err := m.browser.Version(); err == nil {
			return nil
		}
		m.logger.Warn("stale browser connection, reconnecting")
		_ = m.browser.Close()
		m.browser = nil
		m.controlURL = ""
	}

	controlURL := m.cfg.DebuggerURL
	if controlURL == "" {
		launch := launcher.New().Headless(m.cfg.Headless)
		if m.cfg.Binary != "" {
			launch = launch.Bin(m.cfg.Binary)
		}
		if profileDir != "" {
			launch = launch.UserDataDir(profileDir)
		}
		url, err := launch.Launch()
		if err != nil {
			return fmt.Errorf("launch chrome: %w", err)
		}
		m.launched = launch
		controlURL = url
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", mapError(err))
	}

	m.browser = browser
	m.controlURL = controlURL
	m.logger.Info("browser connected", zap.Bool("headless", m.cfg.Headless))
	return nil
}

// Shutdown closes the browser and, when we launched it ourselves, the
// underlying process.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var err error
	if m.browser != nil {
		err = m.browser.Close()
		m.browser = nil
	}
	if m.launched != nil {
		m.launched.Cleanup()
		m.launched = nil
	}
	m.controlURL = ""
	return err
}

// NewDriver opens a page for the given device class. Mobile gets a phone
// device profile via CDP emulation; desktop gets the configured viewport.
func (m *Manager) NewDriver(ctx context.Context, device types.DeviceClass) (Driver, error) {
	m.mu.Lock()
	browser := m.browser
	m.mu.Unlock()
	if browser == nil {
		return nil, ErrSessionClosed
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, mapError(err)
	}

	if device == types.DeviceMobile {
		if err := page.Emulate(devices.IPhoneX); err != nil {
			m.logger.Warn("mobile emulation failed", zap.Error(err))
		}
	} else {
		if err := (proto.EmulationSetDeviceMetricsOverride{
			Width:             m.cfg.ViewportWidth,
			Height:            m.cfg.ViewportHeight,
			DeviceScaleFactor: 1.0,
			Mobile:            false,
		}).Call(page); err != nil {
			m.logger.Warn("viewport override failed", zap.Error(err))
		}
	}

	return &rodDriver{
		browser: browser,
		page:    page,
		device:  device,
		cfg:     m.cfg,
		logger:  m.logger,
	}, nil
}

// rodDriver implements Driver on a single rod page.
type rodDriver struct {
	browser *rod.Browser
	cfg     config.BrowserConfig
	device  types.DeviceClass
	logger  *zap.Logger

	mu   sync.Mutex
	page *rod.Page
}

func (d *rodDriver) currentPage() *rod.Page {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.page
}

func (d *rodDriver) Navigate(ctx context.Context, url string) error {
	page := d.currentPage()
	if page == nil {
		return ErrTargetClosed
	}
	err := rod.Try(func() {
		p := page.Context(ctx).Timeout(d.cfg.NavigationTimeout())
		p.MustNavigate(url)
		p.MustWaitLoad()
	})
	return mapError(err)
}

func (d *rodDriver) Type(ctx context.Context, selector, text string) error {
	page := d.currentPage()
	if page == nil {
		return ErrTargetClosed
	}
	el, err := page.Context(ctx).Timeout(d.cfg.ElementTimeout()).Element(selector)
	if err != nil {
		return mapError(err)
	}
	if err := el.SelectAllText(); err != nil {
		return mapError(err)
	}
	if err := el.Input(text); err != nil {
		return mapError(err)
	}
	return nil
}

func (d *rodDriver) Click(ctx context.Context, selector string) error {
	page := d.currentPage()
	if page == nil {
		return ErrTargetClosed
	}
	el, err := page.Context(ctx).Timeout(d.cfg.ElementTimeout()).Element(selector)
	if err != nil {
		return mapError(err)
	}
	return mapError(el.Click(proto.InputMouseButtonLeft, 1))
}

func (d *rodDriver) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	page := d.currentPage()
	if page == nil {
		return ErrTargetClosed
	}
	if timeout <= 0 {
		timeout = d.cfg.ElementTimeout()
	}
	_, err := page.Context(ctx).Timeout(timeout).Element(selector)
	return mapError(err)
}

func (d *rodDriver) Evaluate(ctx context.Context, js string) (string, error) {
	page := d.currentPage()
	if page == nil {
		return "", ErrTargetClosed
	}
	res, err := page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:           js,
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil {
		return "", mapError(err)
	}
	if res == nil || res.Value.Nil() {
		return "", nil
	}
	return strings.Trim(res.Value.String(), `"`), nil
}

// LatestSurface re-attaches to the most recently opened page, creating a new
// one if the browser has none left.
func (d *rodDriver) LatestSurface(ctx context.Context) error {
	if d.browser == nil {
		return ErrSessionClosed
	}
	if _, err := d.browser.Version(); err != nil {
		return wrap(ErrSessionClosed, err)
	}

	pages, err := d.browser.Pages()
	if err != nil {
		return mapError(err)
	}

	var next *rod.Page
	if len(pages) > 0 {
		next = pages[len(pages)-1]
	} else {
		next, err = d.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
		if err != nil {
			return mapError(err)
		}
	}

	if d.device == types.DeviceMobile {
		if err := next.Emulate(devices.IPhoneX); err != nil {
			d.logger.Warn("mobile emulation on fresh surface failed", zap.Error(err))
		}
	}

	d.mu.Lock()
	old := d.page
	d.page = next
	d.mu.Unlock()
	if old != nil && old != next {
		_ = old.Close()
	}
	d.logger.Info("attached fresh interaction surface", zap.Int("open_pages", len(pages)))
	return nil
}

func (d *rodDriver) Reload(ctx context.Context) error {
	page := d.currentPage()
	if page == nil {
		return ErrTargetClosed
	}
	err := rod.Try(func() {
		p := page.Context(ctx).Timeout(d.cfg.NavigationTimeout())
		p.MustReload()
		p.MustWaitLoad()
	})
	return mapError(err)
}

// IsClosed reports whether the whole browser session is gone.
func (d *rodDriver) IsClosed() bool {
	if d.browser == nil {
		return true
	}
	_, err := d.browser.Version()
	return err != nil
}
