package control

// State is the phase the control loop is in.
type State int

const (
	Idle State = iota
	Sample
	Classify
	Recommend
	Apply
	Shutdown
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Sample:
		return "sample"
	case Classify:
		return "classify"
	case Recommend:
		return "recommend"
	case Apply:
		return "apply"
	case Shutdown:
		return "shutdown"
	default:
		return "invalid"
	}
}
