package pipeline

import "fmt"

// State is a run's position in the pipeline.
type State string

const (
	StateIdle           State = "idle"
	StateAuthenticating State = "authenticating"
	StateUploading      State = "uploading"
	StatePublishing     State = "publishing"
	StateRecording      State = "recording"
	StateDone           State = "done"
	StateFailed         State = "failed"
)

// next lists the forward transition out of each non-terminal state.
// Any non-terminal state may also move to StateFailed.
var next = map[State]State{
	StateIdle:           StateAuthenticating,
	StateAuthenticating: StateUploading,
	StateUploading:      StatePublishing,
	StatePublishing:     StateRecording,
	StateRecording:      StateDone,
}

// IsTerminal reports whether the state is terminal.
func IsTerminal(s State) bool {
	return s == StateDone || s == StateFailed
}

func allowed(from, to State) bool {
	if IsTerminal(from) {
		return false
	}
	if to == StateFailed {
		return true
	}
	return next[from] == to
}

// machine tracks one run's state and the path it took.
type machine struct {
	current State
	trace   []State
}

func newMachine() *machine {
	return &machine{current: StateIdle, trace: []State{StateIdle}}
}

func (m *machine) advance(to State) error {
	if !allowed(m.current, to) {
		return fmt.Errorf("disallowed transition: %s -> %s", m.current, to)
	}
	m.current = to
	m.trace = append(m.trace, to)
	return nil
}
