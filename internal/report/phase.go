package report

// Phase is a state of the aggregator's state machine:
//
//	Created -> CollectingSystemInfo -> CollectingNetworkInfo
//	        -> [SweepingSubnet] -> Complete
//
// Any collecting phase may instead end in Aborted. Complete and Aborted are
// terminal.
type Phase int32

const (
	PhaseCreated Phase = iota
	PhaseCollectingSystemInfo
	PhaseCollectingNetworkInfo
	PhaseSweepingSubnet
	PhaseComplete
	PhaseAborted
)

func (p Phase) String() string {
	switch p {
	case PhaseCreated:
		return "created"
	case PhaseCollectingSystemInfo:
		return "collecting_system_info"
	case PhaseCollectingNetworkInfo:
		return "collecting_network_info"
	case PhaseSweepingSubnet:
		return "sweeping_subnet"
	case PhaseComplete:
		return "complete"
	case PhaseAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (p Phase) Terminal() bool {
	return p == PhaseComplete || p == PhaseAborted
}

// next lists the legal successors of each phase.
var next = map[Phase][]Phase{
	PhaseCreated:               {PhaseCollectingSystemInfo},
	PhaseCollectingSystemInfo:  {PhaseCollectingNetworkInfo, PhaseAborted},
	PhaseCollectingNetworkInfo: {PhaseSweepingSubnet, PhaseComplete, PhaseAborted},
	PhaseSweepingSubnet:        {PhaseComplete, PhaseAborted},
}

// canTransition reports whether from -> to is a legal transition.
func canTransition(from, to Phase) bool {
	for _, p := range next[from] {
		if p == to {
			return true
		}
	}
	return false
}
