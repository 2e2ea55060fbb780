package model

import (
	"context"
	"errors"
	"testing"

	"convo/core"
)

func drain(t *testing.T, respCh <-chan Response, errCh <-chan error) ([]Response, error) {
	t.Helper()
	var responses []Response
	for r := range respCh {
		responses = append(responses, r)
	}
	return responses, <-errCh
}

func TestMockModel_CannedResponse(t *testing.T) {
	m := NewMockModel("test-model")
	m.AddResponse("hello", "hi there")

	respCh, errCh := m.Generate(context.Background(), Request{
		Contents: []core.Content{core.NewUserContent("hello")},
	})

	responses, err := drain(t, respCh, errCh)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(responses) != 1 || responses[0].Content.Text() != "hi there" {
		t.Fatalf("unexpected responses: %+v", responses)
	}
}

func TestMockModel_StreamingEmitsPartials(t *testing.T) {
	m := NewMockModel("test-model")
	m.AddResponse("hi", "ok")

	respCh, errCh := m.Generate(context.Background(), Request{
		Contents: []core.Content{core.NewUserContent("hi")},
		Stream:   true,
	})

	responses, err := drain(t, respCh, errCh)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Two partial char chunks plus the final.
	if len(responses) != 3 {
		t.Fatalf("expected 3 responses, got %d", len(responses))
	}
	if !responses[0].Partial || responses[len(responses)-1].Partial {
		t.Fatalf("partial flags wrong: %+v", responses)
	}
}

func TestMockModel_ScriptedToolCallTurns(t *testing.T) {
	m := NewMockModel("test-model")
	m.ScriptToolCall("call-1", "calculator", `{"operation":"add","a":2,"b":2}`)
	m.ScriptText("the answer is 4")

	respCh, errCh := m.Generate(context.Background(), Request{
		Contents: []core.Content{core.NewUserContent("what is 2+2?")},
	})
	responses, err := drain(t, respCh, errCh)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	calls := core.Event{Content: &responses[0].Content}.GetToolCalls()
	if len(calls) != 1 || calls[0].Name != "calculator" {
		t.Fatalf("expected scripted tool call first: %+v", responses[0])
	}

	respCh, errCh = m.Generate(context.Background(), Request{
		Contents: []core.Content{core.NewUserContent("ignored")},
	})
	responses, err = drain(t, respCh, errCh)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if responses[0].Content.Text() != "the answer is 4" {
		t.Fatalf("expected scripted text second: %+v", responses[0])
	}
	if m.Calls() != 2 {
		t.Fatalf("expected 2 generate calls, got %d", m.Calls())
	}
}

func TestMockModel_FailWith(t *testing.T) {
	m := NewMockModel("test-model")
	boom := errors.New("provider down")
	m.FailWith(boom)

	respCh, errCh := m.Generate(context.Background(), Request{
		Contents: []core.Content{core.NewUserContent("hi")},
	})
	_, err := drain(t, respCh, errCh)
	if !errors.Is(err, boom) {
		t.Fatalf("expected scripted failure, got %v", err)
	}
}
