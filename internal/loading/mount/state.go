package mount

import (
	"time"

	"github.com/vietddude/shell/internal/core/domain"
)

// Phase is an alias for domain.Phase for internal use.
type Phase = domain.Phase

// OrchestratorState holds the remount counters of one mount.
type OrchestratorState struct {
	RemountKey uint64 `json:"remount_key"`
	RetryCount int    `json:"retry_count"`
}

// ValidTransitions defines allowed phase changes.
// Loaded and Failed are the resting phases; Loading is transient.
var ValidTransitions = map[Phase][]Phase{
	domain.PhaseLoading: {domain.PhaseLoaded, domain.PhaseFailed},
	domain.PhaseLoaded:  {domain.PhaseLoading, domain.PhaseFailed},
	domain.PhaseFailed:  {domain.PhaseLoading},
}

// CanTransition checks if a change from one phase to another is valid.
func CanTransition(from, to Phase) bool {
	for _, target := range ValidTransitions[from] {
		if target == to {
			return true
		}
	}
	return false
}

// Transition represents a phase change with metadata.
type Transition struct {
	Remote    string
	From      Phase
	To        Phase
	Reason    string
	Err       error
	Timestamp time.Time
}

// NewTransition creates a new transition record.
func NewTransition(remote string, from, to Phase, reason string, err error) Transition {
	return Transition{
		Remote:    remote,
		From:      from,
		To:        to,
		Reason:    reason,
		Err:       err,
		Timestamp: time.Now(),
	}
}

// IsValid returns true if this transition is allowed by the state machine.
func (t Transition) IsValid() bool {
	return CanTransition(t.From, t.To)
}

// PhaseDescription returns a human-readable description of a phase.
func PhaseDescription(p Phase) string {
	switch p {
	case domain.PhaseLoading:
		return "Loading - remote module is being fetched"
	case domain.PhaseLoaded:
		return "Loaded - remote is rendering normally"
	case domain.PhaseFailed:
		return "Failed - fallback shown until retry or navigation"
	default:
		return "Unknown phase"
	}
}

// history keeps the last few transitions of a mount.
type history struct {
	size        int
	transitions []Transition
}

func (h *history) record(t Transition) {
	if len(h.transitions) >= h.size {
		copy(h.transitions, h.transitions[1:])
		h.transitions[len(h.transitions)-1] = t
		return
	}
	h.transitions = append(h.transitions, t)
}

func (h *history) snapshot() []Transition {
	out := make([]Transition, len(h.transitions))
	copy(out, h.transitions)
	return out
}
