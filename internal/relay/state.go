package relay

import "time"

// State is the position of a session in its exchange.
type State int

const (
	StateConnecting State = iota
	StateSubscribed
	StateCollecting
	StateClosing
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateCollecting:
		return "collecting"
	case StateClosing:
		return "closing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// DefaultTimeout is the idle and acknowledgement window used when none is configured.
const DefaultTimeout = 10 * time.Second
