package flow

import (
	"fmt"

	"convo/core"
	"convo/internal/util"
	"convo/model"
)

// InstructionsProcessor resolves the agent's system instructions, rendering
// {{ }} placeholders from the conversation checkpoint.
type InstructionsProcessor struct{}

// NewInstructionsProcessor creates the instructions processor.
func NewInstructionsProcessor() *InstructionsProcessor { return &InstructionsProcessor{} }

// Name implements RequestProcessor.
func (p *InstructionsProcessor) Name() string { return "instructions" }

// ProcessRequest implements RequestProcessor.
func (p *InstructionsProcessor) ProcessRequest(turnCtx *core.TurnContext, req *model.Request, agent FlowAgent) error {
	instructions, err := agent.ResolveInstructions(turnCtx)
	if err != nil {
		return fmt.Errorf("resolve instructions: %w", err)
	}

	if turnCtx.Conversation != nil && turnCtx.Conversation.State != nil {
		rendered, err := util.RenderTemplate(instructions, turnCtx.Conversation.State)
		if err != nil {
			return fmt.Errorf("render instructions: %w", err)
		}
		instructions = rendered
	}

	req.Instructions = instructions
	turnCtx.LogDebug("turn.instructions.resolved", "agent", agent.GetName(), "length", len(instructions))

	return nil
}

// ContentsProcessor assembles the conversational history for the request,
// truncated to the agent's history window.
type ContentsProcessor struct{}

// NewContentsProcessor creates the contents processor.
func NewContentsProcessor() *ContentsProcessor { return &ContentsProcessor{} }

// Name implements RequestProcessor.
func (p *ContentsProcessor) Name() string { return "contents" }

// ProcessRequest implements RequestProcessor.
func (p *ContentsProcessor) ProcessRequest(turnCtx *core.TurnContext, req *model.Request, agent FlowAgent) error {
	var contents []core.Content

	if turnCtx.Conversation != nil {
		events := turnCtx.Conversation.History()
		if max := agent.MaxHistoryMessages(); max > 0 && len(events) > max {
			events = events[len(events)-max:]
		}
		for _, ev := range events {
			if ev.Content != nil && len(ev.Content.Parts) > 0 {
				contents = append(contents, *ev.Content)
			}
		}
	}

	req.Contents = contents
	return nil
}
