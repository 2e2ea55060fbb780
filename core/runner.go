package core

import "context"

// Runner drives turns against stored conversations. Run starts a single
// turn and returns the channels over which its events and any fatal error
// are delivered. Both channels are closed when the turn finishes.
type Runner interface {
	// Run executes one turn for the given conversation. The returned turn
	// id identifies the execution for Cancel.
	Run(ctx context.Context, conversationID string, userContent Content) (string, <-chan Event, <-chan error, error)

	// Cancel aborts an in-flight turn by turn id.
	Cancel(turnID string) error
}
