// Package headless implements the render surface on a single headless Chrome tab.
package headless

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/JakeFAU/harvester/internal/crawler"
)

// Config controls the browser behind the surface.
type Config struct {
	Headless          bool
	ExecPath          string
	UserAgent         string
	NavigationTimeout time.Duration
}

// Surface drives one browser tab. Every browser call holds the mutex, so the
// tab is never driven concurrently.
type Surface struct {
	cfg    Config
	logger *zap.Logger

	mu          sync.Mutex
	started     bool
	allocCancel context.CancelFunc
	tab         context.Context
	tabCancel   context.CancelFunc
}

// New prepares a surface. The browser is launched on first use.
func New(cfg Config, logger *zap.Logger) *Surface {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 45 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", "new"))
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	tab, tabCancel := chromedp.NewContext(allocCtx)

	return &Surface{
		cfg:         cfg,
		logger:      logger.Named("surface"),
		allocCancel: allocCancel,
		tab:         tab,
		tabCancel:   tabCancel,
	}
}

// Close shuts the tab and the browser down.
func (s *Surface) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tabCancel()
	s.allocCancel()
}

// Navigate loads url and waits for the document body.
func (s *Surface) Navigate(ctx context.Context, url string) error {
	err := s.run(ctx, s.cfg.NavigationTimeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// Evaluate runs script and decodes its value into out. A nil out discards it.
func (s *Surface) Evaluate(ctx context.Context, script string, out any) error {
	if err := s.run(ctx, 0, chromedp.Evaluate(script, out)); err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	return nil
}

// Wait sleeps for d or until ctx is done. It does not touch the browser.
func (s *Surface) Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// FindControl returns the first selector matching a visible, enabled element.
func (s *Surface) FindControl(ctx context.Context, selectors []string) (string, bool, error) {
	if len(selectors) == 0 {
		return "", false, nil
	}
	script, err := findScript(selectors)
	if err != nil {
		return "", false, err
	}
	idx := -1
	if err := s.run(ctx, 0, chromedp.Evaluate(script, &idx)); err != nil {
		return "", false, fmt.Errorf("find control: %w", err)
	}
	if idx < 0 || idx >= len(selectors) {
		return "", false, nil
	}
	return selectors[idx], true, nil
}

// Click clicks the first visible element matching selector.
func (s *Surface) Click(ctx context.Context, selector string) error {
	script, err := clickScript(selector)
	if err != nil {
		return err
	}
	var clicked bool
	if err := s.run(ctx, 0, chromedp.Evaluate(script, &clicked)); err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	if !clicked {
		return fmt.Errorf("click %s: %w", selector, errNoElement)
	}
	return nil
}

// PressKey dispatches a key press to the page. Named keys such as "End" map
// to their DOM key codes.
func (s *Surface) PressKey(ctx context.Context, key string) error {
	if err := s.run(ctx, 0, chromedp.KeyEvent(keyFor(key))); err != nil {
		return fmt.Errorf("press %s: %w", key, err)
	}
	return nil
}

// HTML returns the serialized document.
func (s *Surface) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, 0, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read html: %w", err)
	}
	return html, nil
}

// Session reads the tab's cookies into a session for the source client.
func (s *Surface) Session(ctx context.Context) (crawler.Session, error) {
	var cookies []*network.Cookie
	err := s.run(ctx, 0, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return crawler.Session{}, fmt.Errorf("read cookies: %w", err)
	}
	sess := sessionFromCookies(cookies, s.cfg.UserAgent)
	s.logger.Debug("session captured", zap.Int("cookies", len(sess.Cookies)))
	return sess, nil
}

var errNoElement = errors.New("no visible element")

// run executes actions on the tab under the surface lock. ctx cancellation
// aborts the actions without closing the tab.
func (s *Surface) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.start(); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(s.tab)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	if timeout > 0 {
		var tcancel context.CancelFunc
		runCtx, tcancel = context.WithTimeout(runCtx, timeout)
		defer tcancel()
	}
	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

// start launches the browser on the tab context itself so later per-call
// contexts never own the target.
func (s *Surface) start() error {
	if s.started {
		return nil
	}
	err := chromedp.Run(s.tab, chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if s.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(s.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	}))
	if err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	s.started = true
	s.logger.Info("browser started", zap.Bool("headless", s.cfg.Headless))
	return nil
}

func keyFor(name string) string {
	switch name {
	case "End":
		return kb.End
	case "Home":
		return kb.Home
	case "PageDown":
		return kb.PageDown
	case "PageUp":
		return kb.PageUp
	case "Enter":
		return kb.Enter
	default:
		return name
	}
}

func sessionFromCookies(cookies []*network.Cookie, userAgent string) crawler.Session {
	sess := crawler.Session{Cookies: make(map[string]string, len(cookies)), Header: http.Header{}}
	for _, c := range cookies {
		if c == nil || c.Name == "" {
			continue
		}
		sess.Cookies[c.Name] = c.Value
	}
	if userAgent != "" {
		sess.Header.Set("User-Agent", userAgent)
	}
	return sess
}

var (
	_ crawler.Surface         = (*Surface)(nil)
	_ crawler.SessionProvider = (*Surface)(nil)
)
