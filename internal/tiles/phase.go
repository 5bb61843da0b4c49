package tiles

import "fmt"

// Phase is the orchestrator's position in the per-tile cycle.
type Phase int

// Phases, in the order a tile passes through them.
const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseGenerating
	PhaseSaving
	PhaseDistributing
	PhaseDone
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "Idle"
	case PhaseLoading:
		return "Loading"
	case PhaseGenerating:
		return "Generating"
	case PhaseSaving:
		return "Saving"
	case PhaseDistributing:
		return "Distributing"
	case PhaseDone:
		return "Done"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}
