package statemachine

import (
	"context"
	"fmt"
)

// Table is an immutable transition table. It holds no current state: callers
// pass the state they loaded and persist the result themselves, so one Table
// is shared by every record without locking.
type Table struct {
	// [from][event] -> candidate transitions in declaration order
	transitions map[string]map[string][]Transition
}

// Option configures a Table during construction.
type Option func(*Table) error

// TransitionOption configures a single transition.
type TransitionOption func(*Transition)

// New builds a Table from the given options.
func New(opts ...Option) (*Table, error) {
	t := &Table{transitions: make(map[string]map[string][]Transition)}
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// MustNew is like New but panics on invalid declarations.
func MustNew(opts ...Option) *Table {
	t, err := New(opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to create transition table: %v", err))
	}
	return t
}

// WithTransition declares a single transition.
func WithTransition(from, to State, event Event, opts ...TransitionOption) Option {
	return func(t *Table) error {
		tr := Transition{From: from, To: to, Event: event}
		for _, opt := range opts {
			opt(&tr)
		}
		return t.add(tr)
	}
}

// WithTransitions declares several transitions at once.
func WithTransitions(transitions ...Transition) Option {
	return func(t *Table) error {
		for i, tr := range transitions {
			if err := t.add(tr); err != nil {
				return fmt.Errorf("transition[%d]: %w", i, err)
			}
		}
		return nil
	}
}

// WithGuard adds a guard to a transition. Nil guards are ignored.
func WithGuard(guards ...Guard) TransitionOption {
	return func(tr *Transition) {
		for _, g := range guards {
			if g != nil {
				tr.Guards = append(tr.Guards, g)
			}
		}
	}
}

func (t *Table) add(tr Transition) error {
	if tr.From == nil || tr.To == nil || tr.Event == nil {
		return ErrInvalidTransition
	}
	byEvent, ok := t.transitions[tr.From.Name()]
	if !ok {
		byEvent = make(map[string][]Transition)
		t.transitions[tr.From.Name()] = byEvent
	}
	// Several transitions per from/event branch on guards; the first match wins.
	byEvent[tr.Event.Name()] = append(byEvent[tr.Event.Name()], tr)
	return nil
}

// Target returns the state event leads to from the given state.
// It returns ErrNoTransitionAvailable when nothing is declared for the pair
// and ErrTransitionRejected when every candidate was refused by its guards.
func (t *Table) Target(ctx context.Context, from State, event Event, data any) (State, error) {
	if from == nil || event == nil {
		return nil, ErrInvalidEvent
	}
	candidates := t.transitions[from.Name()][event.Name()]
	if len(candidates) == 0 {
		return nil, NewErrNoTransitionAvailable(from.Name(), event.Name())
	}
	for _, tr := range candidates {
		if tr.allowed(ctx, from, event, data) {
			return tr.To, nil
		}
	}
	return nil, NewErrTransitionRejected(from.Name(), event.Name())
}

// CanFire reports whether event has an allowed transition from the given state.
func (t *Table) CanFire(ctx context.Context, from State, event Event, data any) bool {
	_, err := t.Target(ctx, from, event, data)
	return err == nil
}
