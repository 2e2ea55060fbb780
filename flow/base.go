package flow

import (
	"fmt"

	"convo/core"
	"convo/model"
)

// TurnFlow is the default Flow: a reasoning/tool-execution loop with
// pluggable request processors. Each iteration is one round: refresh the
// conversation snapshot, assemble a request, call the model, persist the
// response, then either finish (final answer) or execute the requested
// tools and go around again.
type TurnFlow struct {
	agent      FlowAgent
	processors []RequestProcessor
	executor   InvocationExecutor
}

// NewTurnFlow creates a flow with the default processors (instructions,
// contents) and the given executor.
func NewTurnFlow(agent FlowAgent, executor InvocationExecutor) *TurnFlow {
	return &TurnFlow{
		agent:      agent,
		processors: []RequestProcessor{NewInstructionsProcessor(), NewContentsProcessor()},
		executor:   executor,
	}
}

// AddRequestProcessor appends a processor; registration order is execution
// order.
func (f *TurnFlow) AddRequestProcessor(p RequestProcessor) {
	f.processors = append(f.processors, p)
}

// Execute implements Flow.
func (f *TurnFlow) Execute(turnCtx *core.TurnContext) (<-chan error, error) {
	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)

		// An earlier interrupted turn may have left calls unanswered.
		// Reconstructed from history, they are executed before any new
		// reasoning so the pairing invariant is restored first.
		if pending := turnCtx.Conversation.PendingToolCalls(); len(pending) > 0 {
			turnCtx.LogInfo("turn.resume.pending_invocations", "count", len(pending))
			f.executor.Execute(turnCtx, f.agent, pending, f.emit(turnCtx))
			if turnCtx.Err() != nil {
				return
			}
		}

		for {
			if err := turnCtx.Rounds.Increment(); err != nil {
				errCh <- err
				return
			}

			last, err := f.runRound(turnCtx)
			if err != nil {
				errCh <- err
				return
			}
			if last == nil || turnCtx.Err() != nil {
				return
			}
			if len(last.GetToolResults()) > 0 {
				// Tool results demand another reasoning round.
				continue
			}
			if last.IsFinalAnswer() {
				return
			}
			turnCtx.LogWarn("turn.round.unexpected_tail", "partial", last.IsPartial())
			return
		}
	}()

	return errCh, nil
}

// emit returns the callback used for every outgoing event: send, then block
// until the runner confirms persistence.
func (f *TurnFlow) emit(turnCtx *core.TurnContext) func(core.Event) error {
	return func(ev core.Event) error {
		if err := turnCtx.EmitEvent(ev); err != nil {
			return err
		}
		if ev.IsPartial() {
			// Partials are forwarded but not persisted; no resume cycle.
			return nil
		}
		return turnCtx.WaitForResume()
	}
}

// runRound performs one reasoning round plus any tool executions it
// requests. It returns the last emitted event, or an error that must abort
// the turn.
func (f *TurnFlow) runRound(turnCtx *core.TurnContext) (*core.Event, error) {
	if err := turnCtx.RefreshConversation(); err != nil {
		return nil, fmt.Errorf("refresh conversation: %w", err)
	}

	req := &model.Request{Stream: f.agent.IsStreamingEnabled()}
	for _, p := range f.processors {
		if err := p.ProcessRequest(turnCtx, req, f.agent); err != nil {
			return nil, fmt.Errorf("request processor %s: %w", p.Name(), err)
		}
	}
	req.Tools = f.agent.ToolDefinitions()

	respCh, errCh := f.agent.GetModel().Generate(turnCtx.Context, *req)

	var last *core.Event
	emit := func(ev core.Event) error {
		if err := f.emit(turnCtx)(ev); err != nil {
			return err
		}
		if !ev.IsPartial() {
			last = &ev
		}
		return nil
	}

	for {
		select {
		case <-turnCtx.Done():
			return last, nil
		case err, ok := <-errCh:
			if ok && err != nil {
				return nil, core.NewGenerationError(err)
			}
			errCh = nil
			if respCh == nil {
				return last, nil
			}
		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				if errCh == nil {
					return last, nil
				}
				continue
			}

			ev := core.NewEvent(turnCtx.TurnID, f.agent.GetName())
			ev.Content = &resp.Content
			partial := resp.Partial
			ev.Partial = &partial

			calls := ev.GetToolCalls()
			if !resp.Partial && len(calls) == 0 {
				complete := true
				ev.TurnComplete = &complete
			}

			if err := emit(ev); err != nil {
				return last, nil
			}

			if len(calls) > 0 {
				// One result per call is emitted before reasoning resumes
				// in the next round; this round's stream is done.
				f.executor.Execute(turnCtx, f.agent, calls, emit)
				return last, nil
			}
		}
	}
}
