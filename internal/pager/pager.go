// Package pager drives paged keyword search with per-keyword exhaustion detection.
package pager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/harvester/internal/crawler"
	"github.com/JakeFAU/harvester/internal/metrics"
	"github.com/JakeFAU/harvester/internal/progress"
)

// DefaultPageSize is the fixed number of results the search source returns per page.
const DefaultPageSize = 20

// State is the lifecycle state of one keyword.
type State string

// Keyword states.
const (
	StateInit      State = "init"
	StateFetching  State = "fetching"
	StateExhausted State = "exhausted"
	StateError     State = "error"
)

// Persister upserts a page of resolved items and returns those stored.
type Persister interface {
	Persist(ctx context.Context, items []crawler.ContentItem) []crawler.ContentItem
}

// CommentFanOut harvests the comments of stored items.
type CommentFanOut interface {
	Harvest(ctx context.Context, items []crawler.ContentItem) int
}

// Options configures paging.
type Options struct {
	MaxItems  int
	StartPage int
	PageSize  int
}

// KeywordResult summarizes one keyword's run. Items counts what the source
// returned and drives the budget; Stored counts what the sink accepted.
type KeywordResult struct {
	Keyword string
	State   State
	Pages   int
	Items   int
	Stored  int
	Err     error
}

// Pager walks search pages for each keyword in order. It holds the session
// shared by consecutive page requests, so one Pager must not run keywords
// concurrently.
type Pager struct {
	source   crawler.SearchSource
	sessions crawler.SessionProvider
	session  crawler.Session
	persist  Persister
	comments CommentFanOut
	opts     Options
	reporter *progress.Reporter
	logger   *zap.Logger
}

// New constructs a Pager. sessions may be nil when the source needs no refresh.
func New(
	source crawler.SearchSource,
	sessions crawler.SessionProvider,
	session crawler.Session,
	persist Persister,
	comments CommentFanOut,
	opts Options,
	reporter *progress.Reporter,
	logger *zap.Logger,
) *Pager {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.StartPage <= 0 {
		opts.StartPage = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pager{
		source:   source,
		sessions: sessions,
		session:  session,
		persist:  persist,
		comments: comments,
		opts:     opts,
		reporter: reporter,
		logger:   logger.Named("pager"),
	}
}

// Budget returns the effective per-keyword item ceiling: at least one page.
func (p *Pager) Budget() int {
	return max(p.opts.MaxItems, p.opts.PageSize)
}

// Run processes keywords strictly in order. A failing keyword is abandoned and
// the next one starts; cancellation stops before the next keyword or page.
func (p *Pager) Run(ctx context.Context, keywords []string) []KeywordResult {
	results := make([]KeywordResult, 0, len(keywords))
	for _, keyword := range keywords {
		if err := ctx.Err(); err != nil {
			p.logger.Info("search canceled before keyword", zap.String("keyword", keyword), zap.Error(err))
			break
		}
		res := p.runKeyword(ctx, keyword)
		metrics.ObserveKeyword(string(res.State))
		results = append(results, res)
	}
	return results
}

func (p *Pager) runKeyword(ctx context.Context, keyword string) KeywordResult {
	res := KeywordResult{Keyword: keyword, State: StateInit}
	budget := p.Budget()
	cursor := crawler.PageCursor{Page: p.opts.StartPage}
	logger := p.logger.With(zap.String("keyword", keyword))

	res.State = StateFetching
	for {
		if err := ctx.Err(); err != nil {
			return p.fail(logger, res, cursor.Page, err)
		}
		items, err := p.fetchPage(ctx, keyword, cursor.Page)
		res.Pages++
		if err != nil {
			return p.fail(logger, res, cursor.Page, err)
		}
		if len(items) == 0 {
			return p.exhaust(logger, res, "empty page")
		}

		for i := range items {
			items[i].SourceKeyword = keyword
		}
		stored := p.persist.Persist(context.WithoutCancel(ctx), items)
		res.Items += len(items)
		res.Stored += len(stored)
		logger.Debug("search page stored",
			zap.Int("page", cursor.Page),
			zap.Int("returned", len(items)),
			zap.Int("stored", len(stored)),
		)
		if p.comments != nil {
			p.comments.Harvest(ctx, stored)
		}

		if res.Items >= budget {
			return p.exhaust(logger, res, "budget reached")
		}
		if cursor, err = cursor.Advance(crawler.PageCursor{Page: cursor.Page + 1}); err != nil {
			return p.fail(logger, res, cursor.Page, err)
		}
	}
}

// fetchPage requests one page, refreshing the session once if it expired.
func (p *Pager) fetchPage(ctx context.Context, keyword string, page int) ([]crawler.ContentItem, error) {
	start := time.Now()
	items, err := p.source.SearchPage(ctx, p.session, keyword, page)
	if errors.Is(err, crawler.ErrSessionExpired) && p.sessions != nil {
		p.logger.Info("refreshing expired session", zap.String("keyword", keyword), zap.Int("page", page))
		sess, refreshErr := p.sessions.Session(ctx)
		if refreshErr != nil {
			return nil, fmt.Errorf("refresh session: %w", refreshErr)
		}
		p.session = sess
		items, err = p.source.SearchPage(ctx, p.session, keyword, page)
	}
	metrics.ObserveFetch("search", time.Since(start))
	if err != nil {
		metrics.ObservePage("search", "error")
		return nil, &crawler.FetchError{Stage: "search", Key: fmt.Sprintf("%s#%d", keyword, page), Err: err}
	}
	metrics.ObservePage("search", "ok")
	return items, nil
}

func (p *Pager) exhaust(logger *zap.Logger, res KeywordResult, reason string) KeywordResult {
	res.State = StateExhausted
	logger.Info("keyword exhausted",
		zap.String("reason", reason),
		zap.Int("pages", res.Pages),
		zap.Int("items", res.Items),
		zap.Int("stored", res.Stored),
	)
	p.reporter.Exhausted(res.Keyword, res.Items, reason)
	return res
}

func (p *Pager) fail(logger *zap.Logger, res KeywordResult, page int, err error) KeywordResult {
	res.State = StateError
	res.Err = err
	logger.Warn("abandoning keyword",
		zap.Int("page", page),
		zap.String("stage", "search"),
		zap.Error(err),
	)
	return res
}
