package orchestrator

// State is a node of the run state machine:
//
//	Start → Cleaning → Synchronizing → Probing → {Aborted | Pipelining} → Done
//
// There is no retry edge.
type State int

const (
	StateStart State = iota
	StateCleaning
	StateSynchronizing
	StateProbing
	StatePipelining
	StateAborted
	StateDone
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateCleaning:
		return "cleaning"
	case StateSynchronizing:
		return "synchronizing"
	case StateProbing:
		return "probing"
	case StatePipelining:
		return "pipelining"
	case StateAborted:
		return "aborted"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

var transitions = map[State][]State{
	StateStart:         {StateCleaning},
	StateCleaning:      {StateSynchronizing, StateAborted},
	StateSynchronizing: {StateProbing, StateAborted},
	StateProbing:       {StatePipelining, StateAborted},
	StatePipelining:    {StateDone, StateAborted},
}

// CanTransition reports whether from → to is an edge of the machine.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
