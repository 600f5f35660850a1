// Package scroll harvests reference keys from pages that reveal content only
// through scrolling and expand controls.
package scroll

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

// Options tunes the collection loop.
type Options struct {
	MaxEmptyRounds int
	EscalateAfter  int
	PollInterval   time.Duration
	MaxPolls       int
	// Settle is the pause after a scroll-to-bottom.
	Settle time.Duration
	// LoadMoreWait is the pause after clicking a load-more control.
	LoadMoreWait time.Duration
	// InitialWait is the pause after the first navigation.
	InitialWait time.Duration
	// Deadline bounds a single Collect call.
	Deadline time.Duration
}

// DefaultOptions returns the tuned defaults.
func DefaultOptions() Options {
	return Options{
		MaxEmptyRounds: 10,
		EscalateAfter:  3,
		PollInterval:   800 * time.Millisecond,
		MaxPolls:       5,
		Settle:         1500 * time.Millisecond,
		LoadMoreWait:   3 * time.Second,
		InitialWait:    3 * time.Second,
		Deadline:       10 * time.Minute,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxEmptyRounds <= 0 {
		o.MaxEmptyRounds = d.MaxEmptyRounds
	}
	if o.EscalateAfter <= 0 {
		o.EscalateAfter = d.EscalateAfter
	}
	if o.MaxPolls <= 0 {
		o.MaxPolls = d.MaxPolls
	}
	if o.Deadline <= 0 {
		o.Deadline = d.Deadline
	}
	return o
}

// aggressive sequence timings
const (
	bounceCount      = 2
	bounceTopPause   = 300 * time.Millisecond
	bounceBottomWait = 700 * time.Millisecond
	endKeyPause      = time.Second
	wheelPause       = 1500 * time.Millisecond
)

// Result is the outcome of one collection.
type Result struct {
	Refs  []crawler.Reference
	State State
}

// Collector drives the scroll/interact/stabilize/extract loop against a
// single render surface.
type Collector struct {
	surface    crawler.Surface
	strategies []Strategy
	opts       Options
	reporter   *progress.Reporter
	logger     *zap.Logger
}

// New constructs a Collector. A nil strategies slice selects DefaultStrategies.
func New(
	surface crawler.Surface,
	strategies []Strategy,
	opts Options,
	reporter *progress.Reporter,
	logger *zap.Logger,
) *Collector {
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{
		surface:    surface,
		strategies: strategies,
		opts:       opts.withDefaults(),
		reporter:   reporter,
		logger:     logger.Named("scroll"),
	}
}

// Collect navigates to pageURL and gathers up to target references. It stops
// when the target is reached, after MaxEmptyRounds rounds without new keys, or
// when the deadline passes; in the last case what was collected is returned
// without error. Cancellation of ctx returns the keys collected so far with
// the context error. Result order is collection order and carries no meaning.
func (c *Collector) Collect(ctx context.Context, pageURL string, target int) (Result, error) {
	st := newState(target)
	logger := c.logger.With(zap.String("topic", pageURL), zap.Int("target", target))
	if target <= 0 {
		return Result{State: *st}, nil
	}

	runCtx, cancel := context.WithTimeout(ctx, c.opts.Deadline)
	defer cancel()

	if err := c.surface.Navigate(runCtx, pageURL); err != nil {
		return Result{State: *st}, fmt.Errorf("navigate %s: %w", pageURL, err)
	}
	_ = c.surface.Wait(runCtx, c.opts.InitialWait)

	for st.Len() < st.Target && st.ConsecutiveEmpty < c.opts.MaxEmptyRounds {
		if runCtx.Err() != nil {
			break
		}
		st.Rounds++
		if st.Rounds > 1 {
			c.interact(runCtx, st, logger)
		}
		st.Stable = c.awaitStable(runCtx)
		if !st.Stable && runCtx.Err() == nil {
			logger.Warn("render stability not confirmed; extracting anyway", zap.Int("round", st.Rounds))
		}

		refs := c.extract(runCtx, logger)
		delta := st.merge(refs)
		metrics.ObserveScrollRound(delta > 0)
		logger.Debug("scroll round",
			zap.Int("round", st.Rounds),
			zap.Int("new", delta),
			zap.Int("total", st.Len()),
			zap.Stringer("tier", st.Tier),
		)

		if delta > 0 {
			st.ConsecutiveEmpty = 0
			continue
		}
		st.ConsecutiveEmpty++
		if st.ConsecutiveEmpty >= c.opts.EscalateAfter && st.Tier == TierNormal {
			st.Tier = TierAggressive
			st.EscalatedAt = st.Rounds
			logger.Info("escalating scroll tier", zap.Int("round", st.Rounds))
			c.reporter.Escalated(pageURL, st.Rounds)
		}
	}

	res := Result{Refs: st.result(), State: *st}
	if err := ctx.Err(); err != nil {
		logger.Info("collection canceled", zap.Int("collected", len(res.Refs)))
		return res, fmt.Errorf("collect %s: %w", pageURL, err)
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		res.State.DeadlineHit = true
		logger.Warn("collection deadline reached", zap.Duration("deadline", c.opts.Deadline), zap.Int("collected", len(res.Refs)))
	}
	reason := "target reached"
	switch {
	case res.State.DeadlineHit:
		reason = "deadline"
	case st.Len() < st.Target:
		reason = "empty rounds"
	}
	logger.Info("collection finished",
		zap.String("reason", reason),
		zap.Int("rounds", st.Rounds),
		zap.Int("collected", len(res.Refs)),
		zap.Int("escalations", st.Escalations),
	)
	c.reporter.Exhausted(pageURL, len(res.Refs), reason)
	return res, nil
}

// interact scrolls to the bottom, clicks a load-more control if one is
// available, and performs the aggressive sequence once escalated. Failures are
// logged; the round proceeds to extraction regardless.
func (c *Collector) interact(ctx context.Context, st *State, logger *zap.Logger) {
	if err := c.surface.Evaluate(ctx, scriptScrollBottom, nil); err != nil {
		logger.Debug("scroll to bottom failed", zap.Error(err))
	}
	_ = c.surface.Wait(ctx, c.opts.Settle)

	selector, found, err := c.surface.FindControl(ctx, LoadMoreControls)
	switch {
	case err != nil:
		logger.Debug("load-more lookup failed", zap.Error(err))
	case found:
		if err := c.surface.Click(ctx, selector); err != nil {
			logger.Debug("load-more click failed", zap.String("selector", selector), zap.Error(err))
		} else {
			_ = c.surface.Wait(ctx, c.opts.LoadMoreWait)
		}
	}

	if st.Tier == TierAggressive {
		c.aggressive(ctx, logger)
		st.Escalations++
		metrics.ObserveEscalation()
	}
}

func (c *Collector) aggressive(ctx context.Context, logger *zap.Logger) {
	for range bounceCount {
		if err := c.surface.Evaluate(ctx, scriptScrollTop, nil); err != nil {
			logger.Debug("bounce to top failed", zap.Error(err))
		}
		_ = c.surface.Wait(ctx, bounceTopPause)
		if err := c.surface.Evaluate(ctx, scriptScrollBottom, nil); err != nil {
			logger.Debug("bounce to bottom failed", zap.Error(err))
		}
		_ = c.surface.Wait(ctx, bounceBottomWait)
	}
	if err := c.surface.PressKey(ctx, "End"); err != nil {
		logger.Debug("end key failed", zap.Error(err))
	}
	_ = c.surface.Wait(ctx, endKeyPause)
	if err := c.surface.Evaluate(ctx, scriptWheel, nil); err != nil {
		logger.Debug("wheel event failed", zap.Error(err))
	}
	_ = c.surface.Wait(ctx, wheelPause)
}

// awaitStable polls the content height until it reads the same value twice
// in a row after the first reading, giving up after MaxPolls readings.
func (c *Collector) awaitStable(ctx context.Context) bool {
	last := int64(-1)
	unchanged := 0
	for poll := 1; poll <= c.opts.MaxPolls; poll++ {
		var height int64
		if err := c.surface.Evaluate(ctx, scriptHeight, &height); err != nil {
			return false
		}
		if height == last {
			unchanged++
		} else {
			unchanged = 0
			last = height
		}
		if unchanged >= 2 {
			return true
		}
		if poll < c.opts.MaxPolls {
			if err := c.surface.Wait(ctx, c.opts.PollInterval); err != nil {
				return false
			}
		}
	}
	return false
}

// extract runs the strategy chain; the first strategy yielding keys wins.
func (c *Collector) extract(ctx context.Context, logger *zap.Logger) []crawler.Reference {
	for _, strategy := range c.strategies {
		refs, err := strategy.Extract(ctx, c.surface)
		if err != nil {
			logger.Debug("extraction strategy failed", zap.String("strategy", strategy.Name()), zap.Error(err))
			continue
		}
		if len(refs) > 0 {
			return refs
		}
	}
	return nil
}
