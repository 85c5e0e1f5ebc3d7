package cache

import "fmt"

// Phase is the lifecycle phase of the preload cache.
type Phase int

const (
	// PhaseNotStarted is the initial phase; nothing has been loaded.
	PhaseNotStarted Phase = iota
	// PhaseLoading means a preload cycle is in flight.
	PhaseLoading
	// PhaseCompleted means all snapshots were populated by the last cycle.
	PhaseCompleted
	// PhaseError means the last cycle failed. Earlier snapshots are kept.
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseNotStarted:
		return "NotStarted"
	case PhaseLoading:
		return "Loading"
	case PhaseCompleted:
		return "Completed"
	case PhaseError:
		return "Error"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// State is the tagged lifecycle value. Progress is meaningful only while
// loading and Message only on error.
type State struct {
	Phase    Phase
	Progress int
	Message  string
}

func NotStarted() State { return State{Phase: PhaseNotStarted} }

func Loading(progress int) State { return State{Phase: PhaseLoading, Progress: progress} }

func Completed() State { return State{Phase: PhaseCompleted} }

func Failed(message string) State { return State{Phase: PhaseError, Message: message} }

// Settled reports whether no load is in flight.
func (s State) Settled() bool {
	return s.Phase == PhaseCompleted || s.Phase == PhaseError
}

func (s State) String() string {
	switch s.Phase {
	case PhaseLoading:
		return fmt.Sprintf("Loading(%d)", s.Progress)
	case PhaseError:
		return fmt.Sprintf("Error(%s)", s.Message)
	default:
		return s.Phase.String()
	}
}
