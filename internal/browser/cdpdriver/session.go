// internal/browser/cdpdriver/session.go
package cdpdriver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/xkilldash9x/steady/internal/await"
	"github.com/xkilldash9x/steady/internal/config"
)

const closeTimeout = 10 * time.Second

// Session is a single browser tab. It is not safe for concurrent use; run
// one session per goroutine.
type Session struct {
	id     string
	tab    context.Context
	cancel context.CancelFunc
	cfg    config.BrowserConfig
	logger *zap.Logger
	driver *Driver

	closeOnce sync.Once
	closeErr  error
	onClose   func()
}

func newSession(allocCtx context.Context, cfg config.BrowserConfig, logger *zap.Logger) *Session {
	id := uuid.New().String()
	logger = logger.With(zap.String("session_id", id[:8]))
	tab, cancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(logger.Sugar().Debugf),
		chromedp.WithErrorf(logger.Sugar().Debugf),
	)
	return &Session{
		id:     id,
		tab:    tab,
		cancel: cancel,
		cfg:    cfg,
		logger: logger,
		driver: newDriver(tab, "steady-"+id[:8], logger),
	}
}

// open creates the tab and applies the configured viewport.
func (s *Session) open(ctx context.Context) error {
	runCtx, cancel := CombineContext(s.tab, ctx)
	defer cancel()

	var actions chromedp.Tasks
	if w, h := s.cfg.Viewport["width"], s.cfg.Viewport["height"]; w > 0 && h > 0 {
		actions = append(actions, chromedp.EmulateViewport(int64(w), int64(h)))
	}
	if err := chromedp.Run(runCtx, actions...); err != nil {
		return fmt.Errorf("failed to open tab: %w", err)
	}
	s.logger.Debug("Tab opened.")
	return nil
}

// ID returns the session's unique id.
func (s *Session) ID() string { return s.id }

// Driver returns the await.Driver bound to this tab.
func (s *Session) Driver() *Driver { return s.driver }

// Engine builds a wait engine over this tab that also treats CDP's
// "context destroyed" family of errors as transient.
func (s *Session) Engine(opts ...await.Option) *await.Engine {
	base := []await.Option{
		await.WithClassifier(await.Classifiers(await.DefaultClassifier, Classifier)),
		await.WithLogger(s.logger),
	}
	return await.NewEngine(s.driver, append(base, opts...)...)
}

// Navigate loads url and waits for the load event, bounded by
// browser.navigation_timeout.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if s.cfg.NavigationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.NavigationTimeout)
		defer cancel()
	}
	runCtx, cancel := CombineContext(s.tab, ctx)
	defer cancel()

	s.logger.Debug("Navigating.", zap.String("url", url))
	if err := chromedp.Run(runCtx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

// Run executes arbitrary chromedp actions against the tab.
func (s *Session) Run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := CombineContext(s.tab, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// Close releases the session's remote objects and closes the tab. It is
// safe to call more than once.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		var result *multierror.Error

		cleanup, cancel := context.WithTimeout(Detach(ctx), closeTimeout)
		defer cancel()
		runCtx, cancelRun := CombineContext(s.tab, cleanup)
		err := chromedp.Run(runCtx, runtime.ReleaseObjectGroup(s.driver.group))
		cancelRun()
		if err != nil && s.tab.Err() == nil {
			result = multierror.Append(result, fmt.Errorf("failed to release object group: %w", err))
		}

		if err := chromedp.Cancel(s.tab); err != nil && !errors.Is(err, context.Canceled) {
			result = multierror.Append(result, fmt.Errorf("failed to close tab: %w", err))
		}
		s.cancel()

		s.closeErr = result.ErrorOrNil()
		if s.onClose != nil {
			s.onClose()
		}
		s.logger.Debug("Session closed.", zap.Error(s.closeErr))
	})
	return s.closeErr
}
