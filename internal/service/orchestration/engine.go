package orchestration

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"
)

// DefaultMaxSteps bounds the agent's model/tool round trips per request.
const DefaultMaxSteps = 12

// AgentEngine runs an eino ReAct agent over a tool-calling chat model.
type AgentEngine struct {
	chatModel model.ToolCallingChatModel
	template  prompt.ChatTemplate
	maxSteps  int
}

// NewAgentEngine creates the engine. maxSteps <= 0 uses DefaultMaxSteps.
func NewAgentEngine(chatModel model.ToolCallingChatModel, maxSteps int) (*AgentEngine, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}

	template := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{instructions}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{task}"),
	)

	return &AgentEngine{
		chatModel: chatModel,
		template:  template,
		maxSteps:  maxSteps,
	}, nil
}

// Run builds an agent bound to tools and lets it work on req.
func (e *AgentEngine) Run(ctx context.Context, req Request, tools Tools) (string, error) {
	agent, err := react.NewAgent(ctx, &react.AgentConfig{
		ToolCallingModel: e.chatModel,
		ToolsConfig: compose.ToolsNodeConfig{
			Tools: NewEinoTools(tools),
		},
		MaxStep: e.maxSteps,
	})
	if err != nil {
		return "", fmt.Errorf("init react agent: %w", err)
	}

	messages, err := e.template.Format(ctx, map[string]any{
		"instructions": systemInstructions,
		"history":      buildHistoryMessages(req.History),
		"task":         req.Task,
	})
	if err != nil {
		return "", fmt.Errorf("format prompt: %w", err)
	}

	response, err := agent.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("agent generate: %w", err)
	}
	if response == nil {
		return "", errors.New("agent returned no message")
	}
	return response.Content, nil
}

func buildHistoryMessages(turns []Turn) []*schema.Message {
	if len(turns) == 0 {
		return nil
	}

	history := make([]*schema.Message, 0, len(turns))
	for _, turn := range turns {
		switch turn.Role {
		case RoleUser:
			history = append(history, schema.UserMessage(turn.Content))
		case RoleAssistant:
			history = append(history, schema.AssistantMessage(turn.Content, nil))
		}
	}
	return history
}
