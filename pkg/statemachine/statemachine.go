package statemachine

import "context"

// State represents a state in the state machine.
type State interface {
	Name() string
}

// Event represents an event that can trigger a state transition.
type Event interface {
	Name() string
}

// Guard evaluates whether a transition is allowed for the given input.
type Guard func(ctx context.Context, from State, event Event, data any) bool

// Transition declares that event moves from to to when every guard passes.
type Transition struct {
	From   State
	To     State
	Event  Event
	Guards []Guard // All must pass
}

func (t Transition) allowed(ctx context.Context, from State, event Event, data any) bool {
	for _, guard := range t.Guards {
		if !guard(ctx, from, event, data) {
			return false
		}
	}
	return true
}

// StringState is a string-based State.
type StringState string

func (s StringState) Name() string {
	return string(s)
}

// StringEvent is a string-based Event.
type StringEvent string

func (e StringEvent) Name() string {
	return string(e)
}
