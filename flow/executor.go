package flow

import (
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"convo/core"
	"convo/tool"
)

// InvocationExecutor runs a batch of tool calls and emits exactly one result
// event per call through emit. Implementations must:
//   - Respect turn cancellation, emitting CANCELLED results for calls that
//     did not finish
//   - Recover panics and report them as failure results
//   - Preserve the order of results relative to the request when configured
//
// The emit callback handles persistence synchronization.
type InvocationExecutor interface {
	Execute(turnCtx *core.TurnContext, agent FlowAgent, calls []core.ToolCall, emit func(core.Event) error)
}

// ExecutorConfig configures the default parallel executor.
type ExecutorConfig struct {
	// MaxParallel bounds concurrent invocations; <=0 means len(calls).
	MaxParallel int
	// PreserveOrder buffers results and emits them in request order.
	PreserveOrder bool
	// InvocationTimeout bounds each call; 0 disables the bound. A call that
	// exceeds it yields a TIMEOUT failure result.
	InvocationTimeout time.Duration
}

type parallelExecutor struct {
	cfg ExecutorConfig
}

// NewParallelExecutor constructs the default executor.
func NewParallelExecutor(cfg ExecutorConfig) InvocationExecutor {
	return &parallelExecutor{cfg: cfg}
}

func (e *parallelExecutor) Execute(
	turnCtx *core.TurnContext,
	agent FlowAgent,
	calls []core.ToolCall,
	emit func(core.Event) error,
) {
	n := len(calls)
	if n == 0 {
		return
	}

	if n == 1 {
		ev := e.runOne(turnCtx, agent, calls[0])
		e.emitEvent(turnCtx, emit, ev, calls[0].Name)
		return
	}

	maxPar := e.cfg.MaxParallel
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}

	results := make([]core.Event, n)
	emitted := make([]bool, n)
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, maxPar)

	batchStart := time.Now()
	for i := range calls {
		if turnCtx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, call core.ToolCall) {
			defer wg.Done()
			defer func() { <-sem }()

			var ev core.Event
			if turnCtx.Err() != nil {
				ev = cancelledResult(turnCtx, agent, call)
			} else {
				ev = e.runOne(turnCtx, agent, call)
			}

			mu.Lock()
			results[idx] = ev
			emitted[idx] = true
			mu.Unlock()

			if !e.cfg.PreserveOrder {
				e.emitEvent(turnCtx, emit, ev, call.Name)
			}
		}(i, calls[i])
	}
	wg.Wait()

	// Calls skipped by cancellation still need a result so the pairing
	// invariant holds.
	for i := range calls {
		if !emitted[i] {
			results[i] = cancelledResult(turnCtx, agent, calls[i])
			if !e.cfg.PreserveOrder {
				e.emitEvent(turnCtx, emit, results[i], calls[i].Name)
			}
			emitted[i] = true
		}
	}

	if e.cfg.PreserveOrder {
		for i := range results {
			e.emitEvent(turnCtx, emit, results[i], calls[i].Name)
		}
	}

	turnCtx.LogDebug("turn.invocations.batch_complete",
		"agent", agent.GetName(),
		"count", n,
		"parallelism", maxPar,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)
}

// runOne executes a single call with panic recovery and the configured
// timeout bound.
func (e *parallelExecutor) runOne(turnCtx *core.TurnContext, agent FlowAgent, call core.ToolCall) core.Event {
	toolCtx := core.NewToolContext(turnCtx, call.ID)

	type outcome struct {
		result any
		err    error
	}
	done := make(chan outcome, 1)

	start := time.Now()
	go func() {
		var out outcome
		defer func() {
			if r := recover(); r != nil {
				turnCtx.LogError("turn.invocation.panic",
					"agent", agent.GetName(), "tool", call.Name, "recover", fmt.Sprintf("%v", r),
					"stack", string(debug.Stack()))
				out = outcome{err: tool.NewToolError(call.Name,
					fmt.Sprintf("panic: %v", r), tool.CodeExecutionError)}
			}
			done <- out
		}()
		result, err := agent.ExecuteTool(toolCtx, call.Name, call.Arguments)
		out = outcome{result: result, err: err}
	}()

	var result any
	var err error

	timeoutCh := neverTimeout
	if e.cfg.InvocationTimeout > 0 {
		timer := time.NewTimer(e.cfg.InvocationTimeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case out := <-done:
		result, err = out.result, out.err
	case <-turnCtx.Done():
		return cancelledResult(turnCtx, agent, call)
	case <-timeoutCh:
		err = tool.NewToolError(call.Name,
			fmt.Sprintf("invocation exceeded %s", e.cfg.InvocationTimeout), tool.CodeTimeout)
	}

	turnCtx.LogInfo("turn.invocation.executed",
		"agent", agent.GetName(),
		"tool", call.Name,
		"call_id", call.ID,
		"duration_ms", time.Since(start).Milliseconds(),
		"error", err != nil,
	)

	ev := core.NewToolResultEvent(turnCtx.TurnID, agent.GetName(), call.ID, call.Name, result, err)
	toolCtx.ApplyActionsTo(&ev)
	return ev
}

func (e *parallelExecutor) emitEvent(turnCtx *core.TurnContext, emit func(core.Event) error, ev core.Event, toolName string) {
	if err := emit(ev); err != nil {
		turnCtx.LogError("turn.invocation.emit_failed", "tool", toolName, "error", err.Error())
	}
}

// cancelledResult builds the failure result recorded for a call that was
// aborted by turn cancellation.
func cancelledResult(turnCtx *core.TurnContext, agent FlowAgent, call core.ToolCall) core.Event {
	err := tool.NewToolError(call.Name, "turn cancelled before completion", tool.CodeCancelled)
	return core.NewToolResultEvent(turnCtx.TurnID, agent.GetName(), call.ID, call.Name, nil, err)
}

// neverTimeout is a nil channel: selecting on it blocks forever.
var neverTimeout <-chan time.Time
