package engine

import "fmt"

// State is a step of one execution.
type State int

const (
	StateIdle State = iota
	StateValidating
	StateRequesting
	StateNormalizing
	StateSucceeded
	StateFailed
)

var stateNames = [...]string{"idle", "validating", "requesting", "normalizing", "succeeded", "failed"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Terminal reports whether no further transition is allowed.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Requesting may repeat itself for the retry after a credential refresh.
var transitions = map[State][]State{
	StateIdle:        {StateValidating},
	StateValidating:  {StateRequesting, StateFailed},
	StateRequesting:  {StateRequesting, StateNormalizing, StateFailed},
	StateNormalizing: {StateSucceeded, StateFailed},
}

// Observer is told about every transition.
type Observer func(executionID string, from, to State)

// Machine tracks the state of one execution and rejects illegal moves.
type Machine struct {
	id       string
	state    State
	observer Observer
	history  []State
}

// NewMachine starts a machine in StateIdle.
func NewMachine(executionID string, observer Observer) *Machine {
	return &Machine{id: executionID, state: StateIdle, observer: observer, history: []State{StateIdle}}
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// History returns every state visited, in order.
func (m *Machine) History() []State {
	return append([]State(nil), m.history...)
}

// To moves to next.
func (m *Machine) To(next State) error {
	if !allowed(m.state, next) {
		return fmt.Errorf("illegal transition %s -> %s", m.state, next)
	}
	from := m.state
	m.state = next
	m.history = append(m.history, next)
	if m.observer != nil {
		m.observer(m.id, from, next)
	}
	return nil
}

// Fail moves to StateFailed from any non-terminal state.
func (m *Machine) Fail() {
	if m.state.Terminal() {
		return
	}
	from := m.state
	m.state = StateFailed
	m.history = append(m.history, StateFailed)
	if m.observer != nil {
		m.observer(m.id, from, StateFailed)
	}
}

func allowed(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
