// Package runner coordinates turn execution: it creates turn contexts,
// persists emitted events in order, applies state deltas and streams events
// to the caller. The runner owns the persist-then-resume handshake; agents
// never touch the stores directly.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"convo/core"
	"convo/document"
	"convo/knowledge"
	"convo/logging"
	"convo/session"
)

// Error codes attached to terminal error events.
const (
	codeRoundLimit      = "ROUND_LIMIT"
	codeGenerationError = "GENERATION_ERROR"
	codeInternal        = "INTERNAL"
)

// Agent is the execution surface the runner drives: one call per turn,
// events through the turn context, a closed error channel when done.
type Agent interface {
	GetName() string
	Run(turnCtx *core.TurnContext) (<-chan error, error)
}

// Options holds dependency + configuration overrides passed to New().
type Options struct {
	// MaxRounds caps reasoning rounds per turn; 0 means unlimited.
	MaxRounds int
	// EventBufferSize sets channel buffering for streamed events.
	EventBufferSize int
	Conversations   core.ConversationStore
	Documents       core.DocumentStore
	Knowledge       core.KnowledgeStore
	Logger          logging.Logger
}

// Runner executes turns against a single agent. Public methods are safe for
// concurrent use; turns on different conversations run independently.
type Runner struct {
	agent Agent

	maxRounds       int
	eventBufferSize int

	conversations core.ConversationStore
	documents     core.DocumentStore
	knowledge     core.KnowledgeStore
	logger        logging.Logger

	activeTurns map[string]context.CancelFunc
	mu          sync.Mutex
}

// New constructs a Runner with optional overrides. Stores default to the
// in-memory implementations.
func New(agent Agent, optFns ...func(o *Options)) *Runner {
	opts := Options{
		MaxRounds:       8,
		EventBufferSize: 100,
		Conversations:   session.NewInMemoryStore(),
		Documents:       document.NewInMemoryStore(),
		Knowledge:       knowledge.NewInMemoryStore(),
		Logger:          logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Runner{
		agent:           agent,
		maxRounds:       opts.MaxRounds,
		eventBufferSize: opts.EventBufferSize,
		conversations:   opts.Conversations,
		documents:       opts.Documents,
		knowledge:       opts.Knowledge,
		logger:          opts.Logger,
		activeTurns:     make(map[string]context.CancelFunc),
	}
}

// Run starts an asynchronous turn. The user content is persisted before the
// agent sees the conversation, so history is complete even if the turn dies
// immediately. The returned events channel streams everything the turn emits
// (partials included) and closes when the turn finishes; the errors channel
// carries at most one fatal error.
func (r *Runner) Run(
	ctx context.Context,
	conversationID string,
	userContent core.Content,
) (string, <-chan core.Event, <-chan error, error) {
	turnID := core.NewID()

	userEvent := core.NewUserContentEvent(turnID, &userContent)
	if err := r.conversations.AppendEvent(conversationID, userEvent); err != nil {
		return "", nil, nil, fmt.Errorf("append user event: %w", err)
	}

	conv, err := r.conversations.Get(conversationID)
	if err != nil {
		return "", nil, nil, fmt.Errorf("get conversation: %w", err)
	}

	eventsCh := make(chan core.Event, r.eventBufferSize)
	errorsCh := make(chan error, 1)
	agentEmit := make(chan core.Event, r.eventBufferSize)
	resumeCh := make(chan struct{}, 1)

	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.activeTurns[turnID] = cancel
	r.mu.Unlock()

	turnCtx := core.NewTurnContext(
		ctx,
		conversationID,
		turnID,
		userContent,
		r.maxRounds,
		agentEmit,
		resumeCh,
		conv,
		r.conversations,
		r.documents,
		r.knowledge,
		r.logger,
	)

	go func() {
		defer func() {
			close(agentEmit)
			cancel()
			r.mu.Lock()
			delete(r.activeTurns, turnID)
			r.mu.Unlock()
		}()

		flowErrs, err := r.agent.Run(turnCtx)
		if err != nil {
			r.reportFatal(turnCtx, agentEmit, errorsCh, err)
			return
		}
		for ferr := range flowErrs {
			if ferr != nil {
				r.reportFatal(turnCtx, agentEmit, errorsCh, ferr)
			}
		}
	}()

	go func() {
		defer func() { close(eventsCh); close(errorsCh) }()
		r.processEvents(turnCtx, conversationID, agentEmit, resumeCh, eventsCh, errorsCh, cancel)
	}()

	return turnID, eventsCh, errorsCh, nil
}

// Cancel aborts a running turn by id. In-flight tool invocations observe the
// cancellation and are recorded as CANCELLED results.
func (r *Runner) Cancel(turnID string) error {
	r.mu.Lock()
	cancel, exists := r.activeTurns[turnID]
	r.mu.Unlock()

	if !exists {
		return fmt.Errorf("turn %s not found", turnID)
	}
	cancel()
	return nil
}

// reportFatal translates a fatal turn error into a terminal error event on
// the stream plus a value on the errors channel.
func (r *Runner) reportFatal(turnCtx *core.TurnContext, agentEmit chan<- core.Event, errorsCh chan<- error, err error) {
	code := codeInternal
	switch {
	case errors.Is(err, core.ErrRoundLimit):
		code = codeRoundLimit
	case core.IsGenerationError(err):
		code = codeGenerationError
	}

	r.logger.Error("turn.failed",
		"turn_id", turnCtx.TurnID,
		"conversation_id", turnCtx.ConversationID,
		"code", code,
		"error", err.Error(),
	)

	ev := core.NewErrorEvent(turnCtx.TurnID, r.agent.GetName(), code, err.Error())
	select {
	case agentEmit <- ev:
	case <-turnCtx.Done():
	}

	select {
	case errorsCh <- err:
	default:
	}
}

func (r *Runner) processEvents(
	turnCtx *core.TurnContext,
	conversationID string,
	agentEmit <-chan core.Event,
	resumeCh chan<- struct{},
	eventsCh chan<- core.Event,
	errorsCh chan<- error,
	cancel context.CancelFunc,
) {
	for ev := range agentEmit {
		if len(ev.Actions.StateDelta) > 0 {
			if err := r.conversations.ApplyDelta(conversationID, ev.Actions.StateDelta); err != nil {
				r.failProcessing(agentEmit, errorsCh, cancel, fmt.Errorf("apply state delta: %w", err))
				return
			}
		}

		if !ev.IsPartial() && ev.Content != nil {
			if err := r.conversations.AppendEvent(conversationID, ev); err != nil {
				r.failProcessing(agentEmit, errorsCh, cancel, fmt.Errorf("append event: %w", err))
				return
			}
		}

		select {
		case eventsCh <- ev:
			r.logger.Debug("turn.event.delivered",
				"event_id", ev.ID, "conversation_id", conversationID, "partial", ev.IsPartial())
		case <-turnCtx.Done():
			r.drainEmit(agentEmit)
			return
		}

		if !ev.IsPartial() {
			select {
			case resumeCh <- struct{}{}:
			default:
			}
		}
	}
}

// failProcessing surfaces a persistence error and cancels the turn so the
// flow unblocks from its resume wait and the agent goroutine can finish.
func (r *Runner) failProcessing(agentEmit <-chan core.Event, errorsCh chan<- error, cancel context.CancelFunc, err error) {
	select {
	case errorsCh <- err:
	default:
	}
	cancel()
	r.drainEmit(agentEmit)
}

// drainEmit consumes remaining agent events so the error channel is not
// closed while the agent goroutine might still report a fatal error.
func (r *Runner) drainEmit(agentEmit <-chan core.Event) {
	for range agentEmit {
	}
}

// compile-time check
var _ core.Runner = (*Runner)(nil)
