package session

import "fmt"

// Phase is the lifecycle position of a scan session.
type Phase string

const (
	// PhaseIdle covers both "not started" and "paused".
	PhaseIdle        Phase = "idle"
	PhaseScanning    Phase = "scanning"
	PhaseDeciding    Phase = "deciding"
	PhaseCoolingDown Phase = "cooling_down"
	PhaseTerminated  Phase = "terminated"
)

var transitions = map[Phase][]Phase{
	PhaseIdle:        {PhaseScanning, PhaseTerminated},
	PhaseScanning:    {PhaseIdle, PhaseDeciding, PhaseTerminated},
	PhaseDeciding:    {PhaseScanning, PhaseCoolingDown, PhaseTerminated},
	PhaseCoolingDown: {PhaseScanning, PhaseTerminated},
	PhaseTerminated:  nil,
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to Phase) bool {
	for _, p := range transitions[from] {
		if p == to {
			return true
		}
	}
	return false
}

func (p Phase) IsTerminal() bool {
	return p == PhaseTerminated
}

func checkTransition(from, to Phase) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("illegal phase transition %s -> %s", from, to)
	}
	return nil
}
