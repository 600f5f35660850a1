package progress

import (
	"time"

	"github.com/google/uuid"
)

// Reporter stamps events with the run identity before handing them to an
// Emitter. A nil Reporter discards everything, so components can treat
// progress reporting as optional.
type Reporter struct {
	emitter Emitter
	runID   [16]byte
	mode    string
	now     func() time.Time
}

// NewReporter binds an emitter to one run.
func NewReporter(emitter Emitter, runID uuid.UUID, mode string, now func() time.Time) *Reporter {
	if emitter == nil {
		return nil
	}
	if now == nil {
		now = time.Now
	}
	return &Reporter{emitter: emitter, runID: UUIDToBytes(runID), mode: mode, now: now}
}

func (r *Reporter) emit(evt Event) {
	if r == nil {
		return
	}
	evt.RunID = r.runID
	evt.Mode = r.mode
	evt.TS = r.now().UTC()
	r.emitter.Emit(evt)
}

// RunStarted marks the beginning of the run.
func (r *Reporter) RunStarted() {
	r.emit(Event{Stage: StageRunStart})
}

// RunFinished marks the end of the run; a non-nil err records a failed run.
func (r *Reporter) RunFinished(dur time.Duration, err error) {
	if err != nil {
		r.emit(Event{Stage: StageRunError, Dur: dur, Note: err.Error()})
		return
	}
	r.emit(Event{Stage: StageRunDone, Dur: dur})
}

// ItemStored records a persisted content item.
func (r *Reporter) ItemStored(key, kind string) {
	r.emit(Event{Stage: StageItemStored, Key: key, Kind: kind})
}

// ItemDropped records a content item that was skipped, with the failing stage.
func (r *Reporter) ItemDropped(key, kind, stage string) {
	r.emit(Event{Stage: StageItemDropped, Key: key, Kind: kind, Note: stage})
}

// CommentsStored records one persisted page of comments.
func (r *Reporter) CommentsStored(key string, n int) {
	r.emit(Event{Stage: StageCommentsStored, Key: key, Count: int64(n)})
}

// Exhausted records a pager, listing or collector reaching its end.
func (r *Reporter) Exhausted(scope string, count int, reason string) {
	r.emit(Event{Stage: StageExhausted, Scope: scope, Count: int64(count), Note: reason})
}

// Escalated records the scroll collector switching to aggressive interaction.
func (r *Reporter) Escalated(scope string, round int) {
	r.emit(Event{Stage: StageEscalated, Scope: scope, Count: int64(round)})
}
