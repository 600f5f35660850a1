package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/harvester/internal/progress"
)

// PrometheusSink exports run-level progress metrics via Prometheus.
type PrometheusSink struct {
	runsStarted   prometheus.Counter
	runsCompleted *prometheus.CounterVec
	runsActive    prometheus.Gauge
	runRuntime    *prometheus.HistogramVec

	items       *prometheus.CounterVec
	comments    prometheus.Counter
	exhaustions *prometheus.CounterVec
	escalations prometheus.Counter

	tracker *runTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harvest_runs_started_total",
			Help: "Total harvest runs started.",
		}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvest_runs_completed_total",
			Help: "Total harvest runs completed partitioned by result.",
		}, []string{"result"}),
		runsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "harvest_runs_active",
			Help: "Current number of running harvests.",
		}),
		runRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "harvest_run_runtime_seconds",
			Help:    "Wall time per completed run.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		}, []string{"result"}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvest_progress_items_total",
			Help: "Audited content items partitioned by mode and outcome.",
		}, []string{"mode", "outcome"}),
		comments: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harvest_progress_comments_total",
			Help: "Audited comments stored.",
		}),
		exhaustions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvest_progress_exhaustions_total",
			Help: "Sources that reached exhaustion partitioned by mode.",
		}, []string{"mode"}),
		escalations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harvest_progress_escalations_total",
			Help: "Scroll collections that escalated to aggressive interaction.",
		}),
		tracker: newRunTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted,
		s.runsCompleted,
		s.runsActive,
		s.runRuntime,
		s.items,
		s.comments,
		s.exhaustions,
		s.escalations,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageRunStart:
			s.runsStarted.Inc()
			if s.tracker.start(evt.RunID) {
				s.runsActive.Inc()
			}
		case progress.StageRunDone:
			s.finishRun(evt, "success")
		case progress.StageRunError:
			s.finishRun(evt, "error")
		case progress.StageItemStored:
			s.items.WithLabelValues(evt.Mode, "stored").Inc()
		case progress.StageItemDropped:
			s.items.WithLabelValues(evt.Mode, "dropped").Inc()
		case progress.StageCommentsStored:
			s.comments.Add(float64(evt.Count))
		case progress.StageExhausted:
			s.exhaustions.WithLabelValues(evt.Mode).Inc()
		case progress.StageEscalated:
			s.escalations.Inc()
		}
	}
	return nil
}

func (s *PrometheusSink) finishRun(evt progress.Event, result string) {
	s.runsCompleted.WithLabelValues(result).Inc()
	if evt.Dur > 0 {
		s.runRuntime.WithLabelValues(result).Observe(evt.Dur.Seconds())
	}
	if s.tracker.complete(evt.RunID) {
		s.runsActive.Dec()
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type runTracker struct {
	mu      sync.Mutex
	running map[[16]byte]struct{}
}

func newRunTracker() *runTracker {
	return &runTracker{running: make(map[[16]byte]struct{})}
}

func (t *runTracker) start(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *runTracker) complete(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}
