// Package pipeline resolves references into content items, persists them, and
// fans out comment harvesting over the persisted items.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/harvester/internal/crawler"
	"github.com/JakeFAU/harvester/internal/metrics"
	"github.com/JakeFAU/harvester/internal/progress"
	"github.com/JakeFAU/harvester/internal/scheduler"
)

// Pipeline fetches content details under the scheduler ceiling and upserts them.
type Pipeline struct {
	sched    *scheduler.Scheduler
	details  crawler.DetailSource
	sink     crawler.Sink
	reporter *progress.Reporter
	logger   *zap.Logger
}

// New constructs a Pipeline. reporter may be nil.
func New(
	sched *scheduler.Scheduler,
	details crawler.DetailSource,
	sink crawler.Sink,
	reporter *progress.Reporter,
	logger *zap.Logger,
) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		sched:    sched,
		details:  details,
		sink:     sink,
		reporter: reporter,
		logger:   logger.Named("pipeline"),
	}
}

// Resolve fetches every reference concurrently, then persists the successes in
// submission order. Failed references are logged and dropped; the returned slice
// holds only items that were stored.
func (p *Pipeline) Resolve(ctx context.Context, refs []crawler.Reference) []crawler.ContentItem {
	if len(refs) == 0 {
		return nil
	}
	units := make([]scheduler.Unit[crawler.ContentItem], len(refs))
	for i, ref := range refs {
		units[i] = func(unitCtx context.Context) (crawler.ContentItem, error) {
			return p.fetch(unitCtx, ref)
		}
	}
	results := scheduler.Run(ctx, p.sched, units)

	fetched := make([]crawler.ContentItem, 0, len(results))
	for i, res := range results {
		if !res.OK {
			p.drop(refs[i].Key(), string(refs[i].Kind()), stageOf(res.Err), res.Err)
			continue
		}
		fetched = append(fetched, res.Value)
	}
	// Items already fetched are written even if the run was aborted meanwhile.
	return p.Persist(context.WithoutCancel(ctx), fetched)
}

// Persist upserts already-resolved items one by one and returns those stored.
func (p *Pipeline) Persist(ctx context.Context, items []crawler.ContentItem) []crawler.ContentItem {
	stored := make([]crawler.ContentItem, 0, len(items))
	for _, item := range items {
		if err := p.sink.StoreContent(ctx, item); err != nil {
			p.drop(item.URL, string(item.Kind), "store", err)
			continue
		}
		metrics.ObserveItem(string(item.Kind), "stored")
		p.reporter.ItemStored(item.Identity(), string(item.Kind))
		stored = append(stored, item)
	}
	return stored
}

func (p *Pipeline) fetch(ctx context.Context, ref crawler.Reference) (crawler.ContentItem, error) {
	start := time.Now()
	defer func() { metrics.ObserveFetch("detail", time.Since(start)) }()

	var (
		item crawler.ContentItem
		err  error
	)
	switch r := ref.(type) {
	case crawler.AnswerRef:
		item, err = p.details.FetchAnswer(ctx, r)
	case crawler.ArticleRef:
		item, err = p.details.FetchArticle(ctx, r)
	case crawler.VideoRef:
		item, err = p.details.FetchVideo(ctx, r)
	default:
		return crawler.ContentItem{}, fmt.Errorf("resolve %T: unsupported reference", ref)
	}
	if err != nil {
		return crawler.ContentItem{}, &crawler.FetchError{Stage: "detail", Key: ref.Key(), Err: err}
	}
	return item, nil
}

func (p *Pipeline) drop(key, kind, stage string, err error) {
	metrics.ObserveItem(kind, "dropped")
	p.reporter.ItemDropped(key, kind, stage)
	p.logger.Warn("dropping content item",
		zap.String("key", key),
		zap.String("kind", kind),
		zap.String("stage", stage),
		zap.Error(err),
	)
}

func stageOf(err error) string {
	var fetchErr *crawler.FetchError
	switch {
	case errors.As(err, &fetchErr):
		if errors.Is(err, crawler.ErrNotFound) {
			return fetchErr.Stage + ":not_found"
		}
		return fetchErr.Stage
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "resolve"
	}
}
