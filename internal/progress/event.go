// Package progress defines the audit events emitted while a harvest runs.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart       Stage = "RUN_START"
	StageRunDone        Stage = "RUN_DONE"
	StageRunError       Stage = "RUN_ERROR"
	StageItemStored     Stage = "ITEM_STORED"
	StageItemDropped    Stage = "ITEM_DROPPED"
	StageCommentsStored Stage = "COMMENTS_STORED"
	StageExhausted      Stage = "EXHAUSTED"
	StageEscalated      Stage = "ESCALATED"
)

// Event captures a single harvest milestone.
type Event struct {
	// RunID identifies the run using the 16-byte UUID form.
	RunID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	Stage Stage
	// Mode is the run mode that produced the event.
	Mode string
	// Scope names the keyword, topic or creator the event belongs to.
	Scope string
	// Key is the reference key or content identity.
	Key string
	// Kind is the content kind for item events.
	Kind string
	// Count carries a quantity such as comments stored or pages visited.
	Count int64
	Dur   time.Duration
	// Note lets emitters attach low-volume context (e.g. error text or stage).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone, StageRunError, StageEscalated:
	case StageItemStored, StageItemDropped:
		if e.Key == "" {
			return fmt.Errorf("%s requires key", e.Stage)
		}
	case StageCommentsStored:
		if e.Key == "" {
			return errors.New("comments stored requires key")
		}
		if e.Count < 0 {
			return errors.New("comment count must be >= 0")
		}
	case StageExhausted:
		if e.Scope == "" {
			return errors.New("exhausted requires scope")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}
