package data

import (
	"errors"
	"fmt"

	"golang.org/x/exp/maps"
)

type State string

var ErrInvalidTransition = errors.New("invalid status transition")

type StateTransition struct {
	From State
	To   State
}

// StateMachine validates moves between states against a fixed transition table.
type StateMachine struct {
	CurrentState State
	Transitions  map[State]map[State]bool
}

func NewStateMachine(initialState State, transitions []StateTransition) *StateMachine {
	sm := &StateMachine{
		CurrentState: initialState,
		Transitions:  make(map[State]map[State]bool),
	}

	for _, t := range transitions {
		if sm.Transitions[t.From] == nil {
			sm.Transitions[t.From] = make(map[State]bool)
		}
		sm.Transitions[t.From][t.To] = true
	}

	return sm
}

func (sm *StateMachine) CanTransitionTo(targetState State) bool {
	return sm.Transitions[sm.CurrentState][targetState]
}

func (sm *StateMachine) TransitionTo(targetState State) error {
	if !sm.CanTransitionTo(targetState) {
		return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidTransition, sm.CurrentState, targetState)
	}
	sm.CurrentState = targetState
	return nil
}

// SourcesOf lists the states that may move into targetState.
func (sm *StateMachine) SourcesOf(targetState State) []State {
	sources := []State{}
	for from, targets := range sm.Transitions {
		if targets[targetState] {
			sources = append(sources, from)
		}
	}
	return sources
}

// Targets lists the states reachable from the current state.
func (sm *StateMachine) Targets() []State {
	return maps.Keys(sm.Transitions[sm.CurrentState])
}
