// Package dispatcher selects the run mode and drives the matching harvest flow.
package dispatcher

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/harvester/internal/crawler"
	"github.com/JakeFAU/harvester/internal/pager"
	"github.com/JakeFAU/harvester/internal/progress"
	"github.com/JakeFAU/harvester/internal/scroll"
)

// Resolver fetches and persists content items.
type Resolver interface {
	Resolve(ctx context.Context, refs []crawler.Reference) []crawler.ContentItem
	Persist(ctx context.Context, items []crawler.ContentItem) []crawler.ContentItem
}

// CommentFanOut harvests comments for persisted items.
type CommentFanOut interface {
	Harvest(ctx context.Context, items []crawler.ContentItem) int
}

// ReferenceCollector gathers references from a scroll-driven page.
type ReferenceCollector interface {
	Collect(ctx context.Context, pageURL string, target int) (scroll.Result, error)
}

// Options carries the run-level configuration.
type Options struct {
	Mode      string
	Keywords  []string
	Targets   []string
	MaxItems  int
	StartPage int
	PageSize  int
	// WarmupURL is visited on the render surface before reading search session cookies.
	WarmupURL string
}

// Deps bundles the collaborators a run may need. Only those used by the
// selected mode must be set.
type Deps struct {
	Surface   crawler.Surface
	Sessions  crawler.SessionProvider
	Search    crawler.SearchSource
	Creators  crawler.CreatorSource
	Topics    crawler.TopicExtractor
	Sink      crawler.Sink
	Resolver  Resolver
	Comments  CommentFanOut
	Collector ReferenceCollector
	Reporter  *progress.Reporter
	Logger    *zap.Logger
}

// Summary reports what a run did.
type Summary struct {
	Mode       crawler.Mode
	Items      int
	Comments   int
	References int
	Creators   int
	Topics     int
	Keywords   []pager.KeywordResult
	Duration   time.Duration
}

// Dispatcher runs exactly one mode per Run call. It owns no retry logic.
type Dispatcher struct {
	opts   Options
	deps   Deps
	logger *zap.Logger
}

// New constructs a Dispatcher.
func New(opts Options, deps Deps) *Dispatcher {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{opts: opts, deps: deps, logger: logger.Named("dispatcher")}
}

// Run validates the configuration and executes the selected mode. Only
// configuration errors and cancellation are returned; per-item, per-keyword
// and per-topic failures are logged and contained.
func (d *Dispatcher) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	mode, err := d.Validate()
	if err != nil {
		return Summary{}, err
	}
	d.deps.Reporter.RunStarted()
	d.logger.Info("run started", zap.String("mode", string(mode)), zap.Int("max_items", d.opts.MaxItems))

	sum := Summary{Mode: mode}
	switch mode {
	case crawler.ModeSearch:
		d.runSearch(ctx, &sum)
	case crawler.ModeDetail:
		d.runDetail(ctx, &sum)
	case crawler.ModeCreator:
		d.runCreators(ctx, &sum)
	case crawler.ModeQuestion:
		d.runQuestions(ctx, &sum)
	}
	sum.Duration = time.Since(start)

	runErr := ctx.Err()
	d.deps.Reporter.RunFinished(sum.Duration, runErr)
	d.logger.Info("run finished",
		zap.String("mode", string(mode)),
		zap.Int("items", sum.Items),
		zap.Int("comments", sum.Comments),
		zap.Duration("duration", sum.Duration),
		zap.Error(runErr),
	)
	if runErr != nil {
		return sum, fmt.Errorf("run %s: %w", mode, runErr)
	}
	return sum, nil
}

var questionURL = regexp.MustCompile(`/question/(\d+)`)

// Validate checks the mode and its target list. Every failure is a
// *crawler.ConfigError.
func (d *Dispatcher) Validate() (crawler.Mode, error) {
	mode, err := crawler.ParseMode(strings.TrimSpace(d.opts.Mode))
	if err != nil {
		return "", err
	}
	if d.opts.MaxItems <= 0 {
		return "", &crawler.ConfigError{Field: "crawler.max_items", Reason: "must be positive"}
	}
	switch mode {
	case crawler.ModeSearch:
		if len(nonBlank(d.opts.Keywords)) == 0 {
			return "", &crawler.ConfigError{Field: "crawler.keywords", Reason: "search mode needs at least one keyword"}
		}
	case crawler.ModeDetail:
		if _, err := d.references(); err != nil {
			return "", err
		}
	case crawler.ModeCreator:
		targets := nonBlank(d.opts.Targets)
		if len(targets) == 0 {
			return "", &crawler.ConfigError{Field: "crawler.targets", Reason: "creator mode needs at least one creator url"}
		}
		for _, target := range targets {
			if crawler.LastPathSegment(target) == "" {
				return "", &crawler.ConfigError{Field: "crawler.targets", Reason: fmt.Sprintf("no creator token in %q", target)}
			}
		}
	case crawler.ModeQuestion:
		targets := nonBlank(d.opts.Targets)
		if len(targets) == 0 {
			return "", &crawler.ConfigError{Field: "crawler.targets", Reason: "question mode needs at least one question url"}
		}
		for _, target := range targets {
			if !questionURL.MatchString(target) {
				return "", &crawler.ConfigError{Field: "crawler.targets", Reason: fmt.Sprintf("not a question url: %q", target)}
			}
		}
	}
	return mode, nil
}

// references parses and de-duplicates the configured detail targets.
func (d *Dispatcher) references() ([]crawler.Reference, error) {
	targets := nonBlank(d.opts.Targets)
	if len(targets) == 0 {
		return nil, &crawler.ConfigError{Field: "crawler.targets", Reason: "detail mode needs at least one content url"}
	}
	refs := make([]crawler.Reference, 0, len(targets))
	for _, target := range targets {
		ref, err := crawler.ParseReference(target)
		if err != nil {
			return nil, &crawler.ConfigError{Field: "crawler.targets", Reason: err.Error()}
		}
		refs = append(refs, ref)
	}
	return dedupe(refs), nil
}

func dedupe(refs []crawler.Reference) []crawler.Reference {
	seen := make(map[string]struct{}, len(refs))
	out := refs[:0:0]
	for _, ref := range refs {
		if _, ok := seen[ref.Key()]; ok {
			continue
		}
		seen[ref.Key()] = struct{}{}
		out = append(out, ref)
	}
	return out
}

func nonBlank(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
