package editor

import "fmt"

// State is the controller's position in the edit flow. Saved, Cancelled,
// NoneFound, MultipleFound and Failed hold no draft and behave like Idle.
type State int

const (
	Idle State = iota
	AwaitingSelection
	NoneFound
	SingleFound
	MultipleFound
	Editing
	Saved
	Cancelled
	Failed
)

var stateNames = [...]string{
	Idle:              "idle",
	AwaitingSelection: "awaiting_selection",
	NoneFound:         "none_found",
	SingleFound:       "single_found",
	MultipleFound:     "multiple_found",
	Editing:           "editing",
	Saved:             "saved",
	Cancelled:         "cancelled",
	Failed:            "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// SelectionStatus classifies the last selection query.
type SelectionStatus int

const (
	StatusUnknown SelectionStatus = iota
	StatusNone
	StatusSingle
	StatusMultiple
	StatusError
)

func (s SelectionStatus) String() string {
	switch s {
	case StatusNone:
		return "none"
	case StatusSingle:
		return "single"
	case StatusMultiple:
		return "multiple"
	case StatusError:
		return "error"
	default:
		return ""
	}
}

func (s SelectionStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }
