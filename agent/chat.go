// Package agent provides the conversational agent built on the turn flow:
// a model, a frozen tool surface and a system-prompt strategy bundled behind
// a single Run entry point.
package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"convo/core"
	"convo/flow"
	"convo/logging"
	"convo/model"
	"convo/tool"
)

// ChatAgentOptions configures a ChatAgent instance.
//
// Use functional options with NewChatAgent to override defaults.
type ChatAgentOptions struct {
	Instruction        Instruction
	EnableStreaming    bool
	MaxHistoryMessages int
	// MaxParallelTools bounds concurrent tool invocations per batch;
	// <=0 means unbounded.
	MaxParallelTools int
	// PreserveToolOrder emits tool results in request order.
	PreserveToolOrder bool
	// ToolTimeout bounds each tool invocation; 0 disables the bound.
	ToolTimeout time.Duration
	Logger      logging.Logger
}

// ChatAgent integrates a language model with a tool registry to run
// conversational turns. It implements flow.FlowAgent; the loop itself lives
// in the flow package.
type ChatAgent struct {
	name        string
	llm         model.Model
	registry    *tool.Registry
	instruction Instruction
	streaming   bool
	maxHistory  int
	flow        flow.Flow
	logger      logging.Logger
}

// DefaultInstruction is the system prompt used when no custom instruction is
// configured. The conversation id is embedded so the model can reference it.
func DefaultInstruction() Instruction {
	return NewInstructionFromFunc(func(turnCtx *core.TurnContext) (string, error) {
		return "You are a helpful assistant. Conversation ID: " + turnCtx.ConversationID, nil
	})
}

// NewChatAgent creates a conversational agent bound to a model and a tool
// registry. The registry should be frozen before the first turn; the agent
// never mutates it.
func NewChatAgent(name string, llm model.Model, registry *tool.Registry, optFns ...func(o *ChatAgentOptions)) *ChatAgent {
	opts := ChatAgentOptions{
		Instruction:        DefaultInstruction(),
		EnableStreaming:    true,
		MaxHistoryMessages: 50,
		PreserveToolOrder:  true,
		ToolTimeout:        30 * time.Second,
		Logger:             logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if registry == nil {
		registry = tool.NewRegistry(opts.Logger)
	}

	a := &ChatAgent{
		name:        name,
		llm:         llm,
		registry:    registry,
		instruction: opts.Instruction,
		streaming:   opts.EnableStreaming,
		maxHistory:  opts.MaxHistoryMessages,
		logger:      opts.Logger,
	}

	executor := flow.NewParallelExecutor(flow.ExecutorConfig{
		MaxParallel:       opts.MaxParallelTools,
		PreserveOrder:     opts.PreserveToolOrder,
		InvocationTimeout: opts.ToolTimeout,
	})
	a.flow = flow.NewTurnFlow(a, executor)

	return a
}

// Run executes one turn. Events travel through the turn context's emit
// channel; the returned channel carries at most one fatal error and is closed
// when the turn finishes.
func (a *ChatAgent) Run(turnCtx *core.TurnContext) (<-chan error, error) {
	return a.flow.Execute(turnCtx)
}

// Registry exposes the agent's tool surface.
func (a *ChatAgent) Registry() *tool.Registry { return a.registry }

// GetName implements flow.FlowAgent.
func (a *ChatAgent) GetName() string { return a.name }

// GetModel implements flow.FlowAgent.
func (a *ChatAgent) GetModel() model.Model { return a.llm }

// IsStreamingEnabled implements flow.FlowAgent.
func (a *ChatAgent) IsStreamingEnabled() bool { return a.streaming }

// MaxHistoryMessages implements flow.FlowAgent.
func (a *ChatAgent) MaxHistoryMessages() int { return a.maxHistory }

// ResolveInstructions implements flow.FlowAgent.
func (a *ChatAgent) ResolveInstructions(turnCtx *core.TurnContext) (string, error) {
	return a.instruction.Resolve(turnCtx)
}

// ToolDefinitions implements flow.FlowAgent.
func (a *ChatAgent) ToolDefinitions() []model.ToolDefinition {
	return a.registry.Descriptors()
}

// ExecuteTool implements flow.FlowAgent. Unknown names and malformed
// arguments are reported as classified tool errors so the model can observe
// them on the next round instead of aborting the turn.
func (a *ChatAgent) ExecuteTool(toolCtx *core.ToolContext, name, args string) (any, error) {
	impl, err := a.registry.Resolve(name)
	if err != nil {
		var unknown *core.UnknownToolError
		if errors.As(err, &unknown) {
			return nil, tool.NewToolError(name,
				fmt.Sprintf("tool %q is not registered for this conversation", name),
				tool.CodeUnknownTool)
		}
		return nil, err
	}

	argsMap := make(map[string]any)
	if args != "" {
		if err := json.Unmarshal([]byte(args), &argsMap); err != nil {
			return nil, tool.NewToolError(name,
				fmt.Sprintf("arguments are not valid JSON: %v", err),
				tool.CodeInvalidArguments)
		}
	}

	return impl.Call(toolCtx, argsMap)
}
