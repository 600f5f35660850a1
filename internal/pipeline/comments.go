package pipeline

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/harvester/internal/crawler"
	"github.com/JakeFAU/harvester/internal/metrics"
	"github.com/JakeFAU/harvester/internal/progress"
	"github.com/JakeFAU/harvester/internal/scheduler"
)

// CommentOptions controls comment fan-out.
type CommentOptions struct {
	Enabled bool
	// MaxPerItem caps comments stored per content item; zero pages to exhaustion.
	MaxPerItem int
	// Jitter is the exclusive upper bound of the random pause between pages.
	Jitter time.Duration
}

// CommentHarvester pages through the comments of persisted items, storing each
// page as it arrives.
type CommentHarvester struct {
	sched    *scheduler.Scheduler
	source   crawler.CommentSource
	sink     crawler.Sink
	opts     CommentOptions
	reporter *progress.Reporter
	logger   *zap.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewCommentHarvester constructs a CommentHarvester. reporter may be nil.
func NewCommentHarvester(
	sched *scheduler.Scheduler,
	source crawler.CommentSource,
	sink crawler.Sink,
	opts CommentOptions,
	reporter *progress.Reporter,
	logger *zap.Logger,
) *CommentHarvester {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommentHarvester{
		sched:    sched,
		source:   source,
		sink:     sink,
		opts:     opts,
		reporter: reporter,
		logger:   logger.Named("comments"),
		sleep:    sleepCtx,
	}
}

// Enabled reports whether comment harvesting is switched on.
func (h *CommentHarvester) Enabled() bool {
	return h != nil && h.opts.Enabled
}

// Harvest runs one comment task per item and returns the number of comments
// stored. It makes no source calls when comment harvesting is disabled.
func (h *CommentHarvester) Harvest(ctx context.Context, items []crawler.ContentItem) int {
	if !h.Enabled() || len(items) == 0 {
		return 0
	}
	units := make([]scheduler.Unit[int], len(items))
	for i, item := range items {
		units[i] = func(unitCtx context.Context) (int, error) {
			return h.harvestItem(ctx, unitCtx, item)
		}
	}
	total := 0
	for i, res := range scheduler.Run(ctx, h.sched, units) {
		total += res.Value
		if res.Err != nil {
			h.logger.Warn("comment harvest ended early",
				zap.String("key", items[i].Identity()),
				zap.String("stage", "comments"),
				zap.Error(res.Err),
			)
		}
	}
	return total
}

// harvestItem pages one item's comments. Page requests and stores run on
// workCtx so an in-progress page completes; parent is checked between pages.
func (h *CommentHarvester) harvestItem(parent, workCtx context.Context, item crawler.ContentItem) (int, error) {
	cursor := crawler.FirstPage()
	stored := 0
	for {
		if err := parent.Err(); err != nil {
			return stored, fmt.Errorf("comments for %s: %w", item.Identity(), err)
		}
		start := time.Now()
		page, next, err := h.source.FetchCommentsPage(workCtx, item, cursor)
		metrics.ObserveFetch("comments", time.Since(start))
		if err != nil {
			metrics.ObservePage("comments", "error")
			return stored, &crawler.FetchError{Stage: "comments", Key: item.Identity(), Err: err}
		}
		metrics.ObservePage("comments", "ok")

		page = h.capPage(page, stored)
		written := h.storePage(workCtx, item, page)
		stored += written
		h.reporter.CommentsStored(item.Identity(), written)

		if h.opts.MaxPerItem > 0 && stored >= h.opts.MaxPerItem {
			h.logger.Debug("comment cap reached", zap.String("key", item.Identity()), zap.Int("stored", stored))
			return stored, nil
		}
		if next.Exhausted || len(page) == 0 {
			h.logger.Debug("comments exhausted", zap.String("key", item.Identity()), zap.Int("stored", stored))
			return stored, nil
		}
		if cursor, err = cursor.Advance(next); err != nil {
			return stored, fmt.Errorf("comments for %s: %w", item.Identity(), err)
		}
		if err := h.sleep(parent, h.jitter()); err != nil {
			return stored, fmt.Errorf("comments for %s: %w", item.Identity(), err)
		}
	}
}

func (h *CommentHarvester) capPage(page []crawler.CommentItem, stored int) []crawler.CommentItem {
	if h.opts.MaxPerItem <= 0 {
		return page
	}
	remaining := h.opts.MaxPerItem - stored
	if remaining < len(page) {
		return page[:max(remaining, 0)]
	}
	return page
}

func (h *CommentHarvester) storePage(ctx context.Context, item crawler.ContentItem, page []crawler.CommentItem) int {
	written := 0
	for _, comment := range page {
		if err := h.sink.StoreComment(ctx, comment); err != nil {
			metrics.ObserveComments("dropped", 1)
			h.logger.Warn("dropping comment",
				zap.String("key", item.Identity()),
				zap.String("comment_id", comment.ID),
				zap.String("stage", "store"),
				zap.Error(err),
			)
			continue
		}
		written++
	}
	metrics.ObserveComments("stored", written)
	return written
}

func (h *CommentHarvester) jitter() time.Duration {
	if h.opts.Jitter <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(h.opts.Jitter)))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("sleep interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
