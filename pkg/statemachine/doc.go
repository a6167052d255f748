// Package statemachine declares finite state transitions as an immutable
// lookup table.
//
// Unlike an in-memory machine, a Table does not own the current state. The
// caller loads the state from storage, asks Target where an event leads, and
// persists the answer with its own conditional write. A single Table can
// therefore be shared across goroutines and processes without locks.
//
//	table := statemachine.MustNew(
//	    statemachine.WithTransition(trialing, active, paid,
//	        statemachine.WithGuard(providerActive),
//	    ),
//	    statemachine.WithTransition(active, canceled, deleted),
//	)
//	to, err := table.Target(ctx, rec.Status, paid, providerSub)
//	switch {
//	case statemachine.IsNoTransitionAvailableError(err):
//	    // the stored state does not accept the event
//	case statemachine.IsTransitionRejectedError(err):
//	    // a guard refused the input
//	}
//
// Candidates for the same state and event are tried in declaration order and
// the first one whose guards all pass wins.
package statemachine
