package controller

import "fmt"

// State is the lifecycle position of a controller. Exactly one holds at a
// time; a controller that was never bound is Pending.
type State int

const (
	Pending State = iota
	Finished
	Empty
	Error
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Finished:
		return "finished"
	case Empty:
		return "empty"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Settled reports whether the state is final for the current binding.
func (s State) Settled() bool { return s != Pending }

// Mode selects the view or edit pipeline.
type Mode int

const (
	ModeView Mode = iota
	ModeNew
	ModeUpdate
)

func (m Mode) String() string {
	switch m {
	case ModeView:
		return "view"
	case ModeNew:
		return "new"
	case ModeUpdate:
		return "update"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Editing reports whether the mode builds edit contexts.
func (m Mode) Editing() bool { return m == ModeNew || m == ModeUpdate }

// ParseMode parses "view", "new" or "update".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "view":
		return ModeView, nil
	case "new":
		return ModeNew, nil
	case "update", "edit":
		return ModeUpdate, nil
	default:
		return ModeView, fmt.Errorf("unknown mode %q", s)
	}
}
