package sinks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/JakeFAU/harvester/internal/progress"
)

// RunState is the coarse lifecycle state of a run.
type RunState string

// Run states tracked by the snapshot.
const (
	RunRunning RunState = "running"
	RunDone    RunState = "done"
	RunFailed  RunState = "failed"
)

// RunStatus aggregates the progress of one run.
type RunStatus struct {
	RunID          string    `json:"run_id"`
	Mode           string    `json:"mode"`
	State          RunState  `json:"state"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at,omitzero"`
	ItemsStored    int64     `json:"items_stored"`
	ItemsDropped   int64     `json:"items_dropped"`
	CommentsStored int64     `json:"comments_stored"`
	Exhaustions    int64     `json:"exhaustions"`
	Escalations    int64     `json:"escalations"`
	LastError      string    `json:"last_error,omitempty"`
}

// SnapshotSink keeps an in-memory aggregate per run for the status endpoint.
type SnapshotSink struct {
	mu   sync.RWMutex
	runs map[[16]byte]*RunStatus
}

// NewSnapshotSink returns an empty snapshot.
func NewSnapshotSink() *SnapshotSink {
	return &SnapshotSink{runs: make(map[[16]byte]*RunStatus)}
}

// Consume folds the batch into the per-run aggregates.
func (s *SnapshotSink) Consume(_ context.Context, batch []progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range batch {
		run := s.runs[evt.RunID]
		if run == nil {
			run = &RunStatus{
				RunID:     evt.RunUUID().String(),
				Mode:      evt.Mode,
				State:     RunRunning,
				StartedAt: evt.TS,
			}
			s.runs[evt.RunID] = run
		}
		switch evt.Stage {
		case progress.StageRunStart:
			run.StartedAt = evt.TS
		case progress.StageRunDone:
			run.State = RunDone
			run.FinishedAt = evt.TS
		case progress.StageRunError:
			run.State = RunFailed
			run.FinishedAt = evt.TS
			run.LastError = evt.Note
		case progress.StageItemStored:
			run.ItemsStored++
		case progress.StageItemDropped:
			run.ItemsDropped++
		case progress.StageCommentsStored:
			run.CommentsStored += evt.Count
		case progress.StageExhausted:
			run.Exhaustions++
		case progress.StageEscalated:
			run.Escalations++
		}
	}
	return nil
}

// Runs returns a copy of every tracked run, newest first.
func (s *SnapshotSink) Runs() []RunStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]RunStatus, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, *run)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out
}

// Close implements the Sink interface; it performs no action.
func (s *SnapshotSink) Close(context.Context) error {
	return nil
}
