package dispatcher

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/JakeFAU/harvester/internal/crawler"
	"github.com/JakeFAU/harvester/internal/pager"
)

func (d *Dispatcher) runSearch(ctx context.Context, sum *Summary) {
	session := d.warmSession(ctx)
	counter := &countingFanOut{next: d.deps.Comments}
	p := pager.New(
		d.deps.Search,
		d.deps.Sessions,
		session,
		d.deps.Resolver,
		counter,
		pager.Options{MaxItems: d.opts.MaxItems, StartPage: d.opts.StartPage, PageSize: d.opts.PageSize},
		d.deps.Reporter,
		d.logger,
	)
	sum.Keywords = p.Run(ctx, nonBlank(d.opts.Keywords))
	for _, res := range sum.Keywords {
		sum.Items += res.Stored
	}
	sum.Comments = counter.total
}

// warmSession visits the warm-up page on the render surface and reads the
// resulting session. Failures leave an empty session; the source then decides.
func (d *Dispatcher) warmSession(ctx context.Context) crawler.Session {
	if d.deps.Surface != nil && d.opts.WarmupURL != "" {
		if err := d.deps.Surface.Navigate(ctx, d.opts.WarmupURL); err != nil {
			d.logger.Warn("search warm-up navigation failed", zap.String("url", d.opts.WarmupURL), zap.Error(err))
		}
	}
	if d.deps.Sessions == nil {
		return crawler.Session{}
	}
	session, err := d.deps.Sessions.Session(ctx)
	if err != nil {
		d.logger.Warn("reading search session failed", zap.Error(err))
		return crawler.Session{}
	}
	return session
}

func (d *Dispatcher) runDetail(ctx context.Context, sum *Summary) {
	refs, _ := d.references()
	sum.References = len(refs)
	stored := d.deps.Resolver.Resolve(ctx, refs)
	sum.Items = len(stored)
	sum.Comments = d.deps.Comments.Harvest(ctx, stored)
}

func (d *Dispatcher) runCreators(ctx context.Context, sum *Summary) {
	for _, target := range nonBlank(d.opts.Targets) {
		if ctx.Err() != nil {
			return
		}
		token := crawler.LastPathSegment(target)
		logger := d.logger.With(zap.String("creator", token))

		creator, err := d.deps.Creators.FetchCreator(ctx, token)
		if err != nil {
			if errors.Is(err, crawler.ErrNotFound) {
				logger.Warn("creator not found; skipping", zap.String("stage", "creator"))
			} else {
				logger.Warn("creator lookup failed; skipping", zap.String("stage", "creator"), zap.Error(err))
			}
			continue
		}
		if err := d.deps.Sink.StoreCreator(ctx, creator); err != nil {
			logger.Warn("storing creator failed", zap.String("stage", "store"), zap.Error(err))
		}
		sum.Creators++

		stored := d.sweepListing(ctx, creator, logger)
		sum.Items += len(stored)
		sum.Comments += d.deps.Comments.Harvest(ctx, stored)
	}
}

// sweepListing pages a creator's listing up to MaxItems, persisting each page
// as it arrives.
func (d *Dispatcher) sweepListing(ctx context.Context, creator crawler.Creator, logger *zap.Logger) []crawler.ContentItem {
	var stored []crawler.ContentItem
	cursor := crawler.FirstPage()
	seen := 0
	for seen < d.opts.MaxItems {
		if ctx.Err() != nil {
			break
		}
		items, next, err := d.deps.Creators.FetchCreatorListing(ctx, creator, cursor)
		if err != nil {
			logger.Warn("creator listing failed", zap.String("stage", "listing"), zap.Int("page", cursor.Page), zap.Error(err))
			break
		}
		if remaining := d.opts.MaxItems - seen; len(items) > remaining {
			items = items[:remaining]
		}
		seen += len(items)
		stored = append(stored, d.deps.Resolver.Persist(context.WithoutCancel(ctx), items)...)
		if next.Exhausted || len(items) == 0 {
			break
		}
		if cursor, err = cursor.Advance(next); err != nil {
			logger.Warn("creator listing cursor stalled", zap.Error(err))
			break
		}
	}
	logger.Info("creator listing exhausted", zap.Int("pages", cursor.Page), zap.Int("items", seen))
	d.deps.Reporter.Exhausted(creator.URLToken, seen, "listing")
	return stored
}

func (d *Dispatcher) runQuestions(ctx context.Context, sum *Summary) {
	var refs []crawler.Reference
	for _, target := range nonBlank(d.opts.Targets) {
		if ctx.Err() != nil {
			break
		}
		logger := d.logger.With(zap.String("topic", target))
		if err := d.extractTopic(ctx, target); err != nil {
			logger.Warn("question topic extraction failed", zap.String("stage", "topic"), zap.Error(err))
		} else {
			sum.Topics++
		}

		res, err := d.deps.Collector.Collect(ctx, target, d.opts.MaxItems)
		refs = append(refs, res.Refs...)
		if err != nil {
			logger.Warn("reference collection failed", zap.String("stage", "collect"), zap.Error(err))
			continue
		}
		logger.Info("references collected", zap.Int("count", len(res.Refs)), zap.Int("rounds", res.State.Rounds))
	}

	refs = dedupe(refs)
	sum.References = len(refs)
	if ctx.Err() != nil {
		d.logger.Info("question sweep canceled before resolve", zap.Int("references", len(refs)))
		return
	}
	stored := d.deps.Resolver.Resolve(ctx, refs)
	sum.Items = len(stored)
	sum.Comments = d.deps.Comments.Harvest(ctx, stored)
}

type countingFanOut struct {
	next  CommentFanOut
	total int
}

func (c *countingFanOut) Harvest(ctx context.Context, items []crawler.ContentItem) int {
	n := c.next.Harvest(ctx, items)
	c.total += n
	return n
}
