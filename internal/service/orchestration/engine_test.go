package orchestration

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// scriptedModel replays canned responses, one per Generate call.
type scriptedModel struct {
	mu        sync.Mutex
	responses []*schema.Message
	inputs    [][]*schema.Message
	tools     []*schema.ToolInfo
}

func (m *scriptedModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inputs = append(m.inputs, input)
	if len(m.responses) == 0 {
		return nil, errors.New("script exhausted")
	}
	next := m.responses[0]
	m.responses = m.responses[1:]
	return next, nil
}

func (m *scriptedModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *scriptedModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	m.mu.Lock()
	m.tools = tools
	m.mu.Unlock()
	return m, nil
}

func TestNewAgentEngineRequiresModel(t *testing.T) {
	if _, err := NewAgentEngine(nil, 0); err == nil {
		t.Fatal("expected error without chat model")
	}
}

func TestAgentEngineExecutesToolCalls(t *testing.T) {
	chatModel := &scriptedModel{responses: []*schema.Message{
		schema.AssistantMessage("", []schema.ToolCall{{
			ID:   "call-1",
			Type: "function",
			Function: schema.FunctionCall{
				Name:      ToolSaveResume,
				Arguments: `{"resume":"<div id=\"resume\">draft</div>"}`,
			},
		}}),
		schema.AssistantMessage("Your resume is ready", nil),
	}}

	engine, err := NewAgentEngine(chatModel, 10)
	if err != nil {
		t.Fatalf("NewAgentEngine err: %v", err)
	}

	tools := &fakeTools{}
	out, err := engine.Run(context.Background(), Request{
		Task:    "Build a resume",
		History: []Turn{{Role: RoleUser, Content: "hello"}, {Role: RoleAssistant, Content: "hi"}},
	}, tools)
	if err != nil {
		t.Fatalf("Run err: %v", err)
	}
	if out != "Your resume is ready" {
		t.Fatalf("unexpected final text %q", out)
	}
	if tools.written != `<div id="resume">draft</div>` {
		t.Fatalf("expected save_resume to reach the binding, got %q", tools.written)
	}

	first := chatModel.inputs[0]
	if len(first) != 4 {
		t.Fatalf("expected system + 2 history + task messages, got %d", len(first))
	}
	if first[0].Role != schema.System || first[3].Content != "Build a resume" {
		t.Fatalf("unexpected prompt layout: %+v", first)
	}
	if len(chatModel.tools) != 7 {
		t.Fatalf("expected 7 tools bound to the model, got %d", len(chatModel.tools))
	}
}

func TestBuildHistoryMessagesSkipsUnknownRoles(t *testing.T) {
	msgs := buildHistoryMessages([]Turn{
		{Role: RoleUser, Content: "a"},
		{Role: "tool", Content: "b"},
		{Role: RoleAssistant, Content: "c"},
	})
	if len(msgs) != 2 || msgs[0].Role != schema.User || msgs[1].Role != schema.Assistant {
		t.Fatalf("unexpected history %+v", msgs)
	}
}
