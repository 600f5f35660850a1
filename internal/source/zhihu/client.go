// Package zhihu talks to the content source: JSON APIs through colly and
// server-rendered pages parsed with goquery.
package zhihu

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/harvester/internal/crawler"
	"github.com/JakeFAU/harvester/internal/metrics"
)

// Config controls the source client.
type Config struct {
	BaseURL     string
	APIURL      string
	ColumnURL   string
	UserAgent   string
	Cookies     string
	Timeout     time.Duration
	CommentPage int
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = crawler.SiteURL
	}
	if c.APIURL == "" {
		c.APIURL = c.BaseURL
	}
	if c.ColumnURL == "" {
		c.ColumnURL = crawler.ColumnURL
	}
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	if c.CommentPage <= 0 {
		c.CommentPage = 20
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	c.APIURL = strings.TrimRight(c.APIURL, "/")
	c.ColumnURL = strings.TrimRight(c.ColumnURL, "/")
	return c
}

// Client implements the search, detail, comment, creator and topic sources.
type Client struct {
	cfg    Config
	urls   sourceURLs
	base   *colly.Collector
	logger *zap.Logger

	mu      sync.RWMutex
	session crawler.Session
}

// New builds a Client. Cookies from cfg seed the default session.
func New(cfg Config, logger *zap.Logger) *Client {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	c.DisableCookies()
	c.WithTransport(newHTTPTransport())

	return &Client{
		cfg:     cfg,
		urls:    sourceURLs{base: cfg.BaseURL, column: cfg.ColumnURL},
		base:    c,
		logger:  logger.Named("zhihu"),
		session: crawler.Session{Cookies: ParseCookies(cfg.Cookies), Header: http.Header{}},
	}
}

// Session returns the client's current default session.
func (c *Client) Session(context.Context) (crawler.Session, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session, nil
}

// UseSession replaces the default session used by requests that carry none.
func (c *Client) UseSession(sess crawler.Session) {
	if sess.Empty() {
		return
	}
	c.mu.Lock()
	c.session = sess
	c.mu.Unlock()
}

func (c *Client) currentSession() crawler.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// get fetches rawURL with the session's cookies and returns the body. Status
// codes map onto the crawler error taxonomy.
func (c *Client) get(ctx context.Context, stage string, sess crawler.Session, rawURL string, accept string) ([]byte, error) {
	if sess.Empty() {
		sess = c.currentSession()
	}
	var (
		body     []byte
		status   int
		fetchErr error
	)
	collector := c.base.Clone()
	colly.StdlibContext(ctx)(collector)
	if c.cfg.UserAgent != "" {
		collector.UserAgent = c.cfg.UserAgent
	}
	collector.SetRequestTimeout(c.cfg.Timeout)

	collector.OnRequest(func(r *colly.Request) {
		setHeaders(r.Headers, sess, accept)
	})
	collector.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		fetchErr = err
	})

	start := time.Now()
	finished, err := c.visit(ctx, collector, rawURL)
	metrics.ObserveFetch(stage, time.Since(start))
	if !finished {
		// callbacks may still run; status and body are not ours to read.
		metrics.ObservePage(stage, "canceled")
		return nil, fmt.Errorf("get %s: %w", rawURL, err)
	}
	if err == nil && fetchErr != nil {
		err = fetchErr
	}
	if err != nil {
		metrics.ObservePage(stage, "error")
		return nil, classify(status, rawURL, err)
	}
	metrics.ObservePage(stage, "ok")
	c.logger.Debug("fetched", zap.String("stage", stage), zap.String("url", rawURL), zap.Int("status", status))
	return body, nil
}

// visit reports whether the collector finished before ctx was done.
func (c *Client) visit(ctx context.Context, collector *colly.Collector, rawURL string) (bool, error) {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return false, fmt.Errorf("visit canceled: %w", ctx.Err())
	case err := <-done:
		return true, err
	}
}

func classify(status int, rawURL string, err error) error {
	switch status {
	case http.StatusNotFound:
		return fmt.Errorf("get %s: %w", rawURL, crawler.ErrNotFound)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("get %s: status %d: %w", rawURL, status, crawler.ErrSessionExpired)
	case 0:
		return fmt.Errorf("get %s: %w", rawURL, err)
	default:
		return fmt.Errorf("get %s: status %d: %w", rawURL, status, err)
	}
}

func setHeaders(h *http.Header, sess crawler.Session, accept string) {
	if accept == "" {
		accept = "*/*"
	}
	h.Set("Accept", accept)
	h.Set("Accept-Language", "zh-CN,zh;q=0.9")
	h.Set("X-Api-Version", "3.0.91")
	h.Set("X-App-Za", "OS=Web")
	h.Set("X-Requested-With", "fetch")
	for key, values := range sess.Header {
		for i, v := range values {
			if i == 0 {
				h.Set(key, v)
				continue
			}
			h.Add(key, v)
		}
	}
	if cookie := sess.CookieHeader(); cookie != "" {
		h.Set("Cookie", cookie)
	}
}

// ParseCookies splits a "k=v; k2=v2" cookie string.
func ParseCookies(raw string) map[string]string {
	out := make(map[string]string)
	for _, part := range strings.Split(raw, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || strings.TrimSpace(name) == "" {
			continue
		}
		out[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	return out
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}

var (
	_ crawler.SearchSource    = (*Client)(nil)
	_ crawler.DetailSource    = (*Client)(nil)
	_ crawler.CommentSource   = (*Client)(nil)
	_ crawler.CreatorSource   = (*Client)(nil)
	_ crawler.TopicExtractor  = (*Client)(nil)
	_ crawler.SessionProvider = (*Client)(nil)
)
