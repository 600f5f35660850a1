// Package scheduler runs fetch units under a fixed concurrency ceiling.
package scheduler

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/harvester/internal/metrics"
)

// Unit is one schedulable piece of work. It receives a context that is not
// canceled when the caller's context is, so admitted units always finish.
type Unit[T any] func(ctx context.Context) (T, error)

// Result holds the outcome of the unit submitted at the same index. A unit that
// fails keeps whatever partial value it returned; OK is set only on success.
type Result[T any] struct {
	Value T
	OK    bool
	Err   error
}

// Scheduler bounds how many units run at once within one Run call. Concurrent
// or nested Run calls each get their own ceiling, so callers must not nest them
// when the ceiling is meant to hold globally.
type Scheduler struct {
	ceiling  int
	logger   *zap.Logger
	inFlight atomic.Int64
}

// New builds a Scheduler. Ceilings below one are raised to one.
func New(ceiling int, logger *zap.Logger) *Scheduler {
	if ceiling < 1 {
		ceiling = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{ceiling: ceiling, logger: logger.Named("scheduler")}
}

// Ceiling returns the configured concurrency limit.
func (s *Scheduler) Ceiling() int {
	return s.ceiling
}

// InFlight reports the number of units currently running.
func (s *Scheduler) InFlight() int {
	return int(s.inFlight.Load())
}

// Run executes units with at most s.Ceiling() running concurrently and returns
// results aligned with the input. A failing unit never cancels its siblings and
// is not retried. Cancellation of ctx is observed before each admission: units
// not yet started are marked with ctx.Err() while started ones run to completion.
func Run[T any](ctx context.Context, s *Scheduler, units []Unit[T]) []Result[T] {
	results := make([]Result[T], len(units))
	if len(units) == 0 {
		return results
	}

	detached := context.WithoutCancel(ctx)
	sem := make(chan struct{}, s.ceiling)
	var g errgroup.Group

	for i, unit := range units {
		if !s.admit(ctx, sem) {
			skipped := len(units) - i
			for j := i; j < len(units); j++ {
				results[j].Err = ctx.Err()
			}
			s.logger.Info("scheduler stopped admitting units",
				zap.Int("skipped", skipped),
				zap.Error(ctx.Err()),
			)
			break
		}
		g.Go(func() error {
			defer func() {
				s.inFlight.Add(-1)
				metrics.DecInFlight()
				<-sem
			}()
			value, err := unit(detached)
			results[i] = Result[T]{Value: value, OK: err == nil, Err: err}
			return nil
		})
	}

	_ = g.Wait()
	return results
}

func (s *Scheduler) admit(ctx context.Context, sem chan struct{}) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case <-ctx.Done():
		return false
	case sem <- struct{}{}:
		s.inFlight.Add(1)
		metrics.IncInFlight()
		return true
	}
}
