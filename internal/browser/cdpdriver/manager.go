// internal/browser/cdpdriver/manager.go
package cdpdriver

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/xkilldash9x/steady/internal/config"
)

const defaultStartupTimeout = 30 * time.Second

// Manager owns the browser process. Sessions (tabs) are created from it and
// must be closed before Shutdown returns cleanly.
type Manager struct {
	logger *zap.Logger
	cfg    config.BrowserConfig

	// allocatorCtx manages the browser process; every tab derives from it.
	allocatorCtx    context.Context
	allocatorCancel context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*Session
	wg       sync.WaitGroup
}

// NewManager launches the browser and verifies it answers before returning.
func NewManager(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		logger:   logger.Named("browser_manager"),
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
	if err := m.launchBrowser(ctx); err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	return m, nil
}

func (m *Manager) launchBrowser(ctx context.Context) error {
	m.logger.Info("Initializing browser allocator...")

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, buildAllocatorOptions(m.cfg)...)
	m.allocatorCtx = allocCtx
	m.allocatorCancel = cancel

	timeout := m.cfg.StartupTimeout
	if timeout <= 0 {
		timeout = defaultStartupTimeout
	}
	testCtx, cancelTest := context.WithTimeout(allocCtx, timeout)
	defer cancelTest()
	testCtx, cancelTestCtx := chromedp.NewContext(testCtx)
	defer cancelTestCtx()

	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		m.allocatorCancel()
		return fmt.Errorf("browser failed to start or respond: %w", err)
	}

	m.logger.Info("Browser launched successfully and is responsive.")
	return nil
}

// allocatorFlags returns the command line switches for cfg. Boolean false
// removes a switch chromedp would otherwise pass.
func allocatorFlags(cfg config.BrowserConfig) map[string]any {
	flags := map[string]any{
		"headless":                  cfg.Headless,
		"ignore-certificate-errors": cfg.IgnoreTLSErrors,
		"enable-automation":         false,
		"disable-blink-features":    "AutomationControlled",
		"disable-extensions":        true,
		"disable-gpu":               cfg.Headless,
	}
	if w, h := cfg.Viewport["width"], cfg.Viewport["height"]; w > 0 && h > 0 {
		flags["window-size"] = fmt.Sprintf("%d,%d", w, h)
	}

	// Container friendly defaults on linux.
	if runtime.GOOS == "linux" {
		flags["no-sandbox"] = true
		flags["disable-dev-shm-usage"] = true
		flags["disable-setuid-sandbox"] = true
	}

	// Configured args win over everything above.
	for _, arg := range cfg.Args {
		name, value, hasValue := strings.Cut(arg, "=")
		name = strings.TrimPrefix(name, "--")
		if name == "" {
			continue
		}
		if hasValue {
			flags[name] = value
		} else {
			flags[name] = true
		}
	}
	return flags
}

func buildAllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)

	flags := allocatorFlags(cfg)
	names := make([]string, 0, len(flags))
	for name := range flags {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		opts = append(opts, chromedp.Flag(name, flags[name]))
	}

	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	return opts
}

// NewSession opens a new tab. The caller owns it and must Close it.
func (m *Manager) NewSession(ctx context.Context) (*Session, error) {
	if err := m.allocatorCtx.Err(); err != nil {
		return nil, fmt.Errorf("browser is not running: %w", err)
	}

	s := newSession(m.allocatorCtx, m.cfg, m.logger)
	if err := s.open(ctx); err != nil {
		s.cancel()
		return nil, fmt.Errorf("failed to initialize session: %w", err)
	}

	m.wg.Add(1)
	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()
	s.onClose = func() {
		m.mu.Lock()
		delete(m.sessions, s.ID())
		m.mu.Unlock()
		m.wg.Done()
	}

	m.logger.Debug("New session created.", zap.String("session_id", s.ID()))
	return s, nil
}

// Shutdown closes any sessions still open, waits for them to finish
// (bounded by ctx) and terminates the browser process.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("Browser manager shutdown initiated.")

	m.mu.Lock()
	open := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		open = append(open, s)
	}
	m.mu.Unlock()

	var result *multierror.Error
	for _, s := range open {
		if err := s.Close(ctx); err != nil {
			result = multierror.Append(result, fmt.Errorf("session %s: %w", s.ID(), err))
		}
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("Shutdown deadline exceeded. Forcing browser termination.", zap.Error(ctx.Err()))
		result = multierror.Append(result, ctx.Err())
	}

	if m.allocatorCancel != nil {
		m.allocatorCancel()
		<-m.allocatorCtx.Done()
	}
	m.logger.Info("Browser process terminated.")
	return result.ErrorOrNil()
}
