package session

// file: internal/session/statemachine.go

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/authsession/internal/fsm"
	"github.com/dkoosis/authsession/internal/logging"
)

// Session lifecycle states.
const (
	StateUninitialized fsm.State = "uninitialized"
	StateReconciling   fsm.State = "reconciling"
	StateSignedOut     fsm.State = "signed_out"
	StateSignedIn      fsm.State = "signed_in"
)

// Lifecycle events.
const (
	eventAuthStateChanged  fsm.Event = "auth_state_changed"
	eventResolvedSignedIn  fsm.Event = "resolved_signed_in"
	eventResolvedSignedOut fsm.Event = "resolved_signed_out"
)

// settled carries the snapshots on either side of a reconciliation commit.
type settled struct {
	prev, next *AuthUserWithProviders
}

// newStateMachine builds the lifecycle machine. onSignedIn runs when a
// reconciliation settles on a signed-in snapshot.
func newStateMachine(logger logging.Logger, onSignedIn func(ctx context.Context, s settled) error) (*fsm.Machine, error) {
	b := fsm.NewBuilder(StateUninitialized, logger)

	b.AddTransition(fsm.Transition{
		From:  []fsm.State{StateUninitialized, StateSignedOut, StateSignedIn},
		To:    StateReconciling,
		Event: eventAuthStateChanged,
	})
	b.AddTransition(fsm.Transition{
		From:  []fsm.State{StateReconciling},
		To:    StateSignedIn,
		Event: eventResolvedSignedIn,
		Action: func(ctx context.Context, _ fsm.State, data any) error {
			s, ok := data.(settled)
			if !ok {
				return errors.Newf("unexpected transition data %T", data)
			}
			return onSignedIn(ctx, s)
		},
	})
	b.AddTransition(fsm.Transition{
		From:  []fsm.State{StateReconciling},
		To:    StateSignedOut,
		Event: eventResolvedSignedOut,
	})

	m, err := b.Build()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build session state machine")
	}
	return m, nil
}
