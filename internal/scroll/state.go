package scroll

import "github.com/JakeFAU/harvester/internal/crawler"

// Tier is the interaction intensity of the collector.
type Tier int

// Escalation tiers. Once Aggressive, a collection never returns to Normal.
const (
	TierNormal Tier = iota
	TierAggressive
)

func (t Tier) String() string {
	if t == TierAggressive {
		return "aggressive"
	}
	return "normal"
}

// State is the bookkeeping of one Collect call. It is owned by the driving
// goroutine and never shared.
type State struct {
	Target           int
	ConsecutiveEmpty int
	Tier             Tier
	Rounds           int
	// Escalations counts aggressive interaction sequences performed.
	Escalations int
	// EscalatedAt is the round in which the tier flipped, or zero.
	EscalatedAt int
	// Stable reports whether the last stability wait confirmed a settled page.
	Stable bool
	// DeadlineHit reports whether the collection stopped on its deadline.
	DeadlineHit bool

	seen  map[string]struct{}
	order []crawler.Reference
}

func newState(target int) *State {
	return &State{Target: target, seen: make(map[string]struct{})}
}

// Len returns the number of distinct references discovered so far.
func (s *State) Len() int {
	return len(s.order)
}

// merge adds unseen references and returns how many were new.
func (s *State) merge(refs []crawler.Reference) int {
	added := 0
	for _, ref := range refs {
		key := ref.Key()
		if _, ok := s.seen[key]; ok {
			continue
		}
		s.seen[key] = struct{}{}
		s.order = append(s.order, ref)
		added++
	}
	return added
}

// result truncates the discovered set to the target.
func (s *State) result() []crawler.Reference {
	n := min(len(s.order), max(s.Target, 0))
	return append([]crawler.Reference(nil), s.order[:n]...)
}
