package screen

// State is the lifecycle position of a screen. The framework only moves a
// screen from Created to Initialized; every other transition is made by the
// application through SetState.
type State uint8

const (
	Created State = iota
	Initialized
	TransitioningIn
	TransitioningOut
	Active
	Paused
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Initialized:
		return "initialized"
	case TransitioningIn:
		return "transitioning_in"
	case TransitioningOut:
		return "transitioning_out"
	case Active:
		return "active"
	case Paused:
		return "paused"
	default:
		return "unknown"
	}
}

// Mode decides whether a screen takes part in the update or render phase.
type Mode uint8

const (
	Always Mode = iota
	OnlyWhenActive
	Never
)

func (m Mode) String() string {
	switch m {
	case Always:
		return "always"
	case OnlyWhenActive:
		return "only_when_active"
	case Never:
		return "never"
	default:
		return "unknown"
	}
}

// ParseMode maps a config string onto a Mode.
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "always", "":
		return Always, true
	case "only_when_active", "active":
		return OnlyWhenActive, true
	case "never":
		return Never, true
	default:
		return Always, false
	}
}

func (m Mode) allows(active bool) bool {
	switch m {
	case Always:
		return true
	case OnlyWhenActive:
		return active
	default:
		return false
	}
}
