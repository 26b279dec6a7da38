// Package agent implements a lightweight, framework-less tool-calling loop:
// the model proposes a tool call, the tool runs, and its result is fed back
// as an observation until the model produces a final answer or the iteration
// cap is reached.
package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hrygo/roomwise/plugin/ai"
)

// Tool is one callable capability of the agent.
type Tool interface {
	// Name returns the tool name presented to the model.
	Name() string

	// Description returns the tool description for the model.
	Description() string

	// Parameters returns the JSON Schema of the tool input.
	Parameters() string

	// Run executes the tool with the model-provided JSON input.
	Run(ctx context.Context, input string) (string, error)
}

// Config holds configuration for creating a new Agent.
type Config struct {
	// Name identifies this agent in logs.
	Name string

	// SystemPrompt is the base system prompt for the model.
	SystemPrompt string

	// MaxIterations caps the think→act→observe loop.
	MaxIterations int
}

// Callback is called during agent execution for events.
type Callback func(event string, data string)

// Event constants for callbacks.
const (
	EventToolUse    = "tool_use"
	EventToolResult = "tool_result"
	EventAnswer     = "answer"
)

// Agent runs the bounded reasoning loop over its tools.
type Agent struct {
	llm     ai.LLMService
	config  Config
	tools   []Tool
	toolMap map[string]Tool
}

// New creates an Agent with the given configuration.
func New(llm ai.LLMService, config Config, tools []Tool) *Agent {
	if config.MaxIterations <= 0 {
		config.MaxIterations = 10
	}
	toolMap := make(map[string]Tool, len(tools))
	for _, tool := range tools {
		toolMap[tool.Name()] = tool
	}
	return &Agent{
		llm:     llm,
		config:  config,
		tools:   tools,
		toolMap: toolMap,
	}
}

// Run executes the agent with the given input and returns the final answer.
func (a *Agent) Run(ctx context.Context, input string) (string, error) {
	return a.RunWithCallback(ctx, input, nil)
}

// RunWithCallback executes the agent with callback support.
//
// Tool failures, including malformed arguments, are surfaced to the model
// as observations rather than aborting the loop, so the model can correct
// itself in the next thinking step. The loop itself never retries a tool
// call; a retry is the model's decision. Only a model transport failure or
// hitting the iteration cap terminates with an error.
func (a *Agent) RunWithCallback(ctx context.Context, input string, callback Callback) (string, error) {
	messages := []ai.Message{
		ai.SystemPrompt(a.config.SystemPrompt),
		ai.UserMessage(input),
	}

	for iteration := 0; iteration < a.config.MaxIterations; iteration++ {
		resp, err := a.llm.ChatWithTools(ctx, messages, a.toolDescriptors())
		if err != nil {
			return "", fmt.Errorf("model call failed (iteration %d): %w", iteration+1, err)
		}

		// No tool calls means the model settled on a final answer.
		if len(resp.ToolCalls) == 0 {
			if callback != nil && resp.Content != "" {
				callback(EventAnswer, resp.Content)
			}
			return resp.Content, nil
		}

		// Record the model's turn, tool calls rendered as text.
		assistantText := resp.Content
		for _, tc := range resp.ToolCalls {
			assistantText += fmt.Sprintf("\n[Tool: %s(%s)]", tc.Name, tc.Arguments)
		}
		messages = append(messages, ai.AssistantMessage(assistantText))

		for _, tc := range resp.ToolCalls {
			if callback != nil {
				callback(EventToolUse, fmt.Sprintf("%s:%s", tc.Name, tc.Arguments))
			}

			observation, err := a.executeTool(ctx, tc.Name, tc.Arguments)
			if err != nil {
				observation = fmt.Sprintf("Error: %v", err)
				slog.Debug("tool returned error, surfacing as observation",
					"agent", a.config.Name, "tool", tc.Name, "error", err)
			}

			if callback != nil {
				callback(EventToolResult, observation)
			}
			messages = append(messages, ai.UserMessage(
				fmt.Sprintf("[Result from %s]: %s", tc.Name, observation)))
		}
	}

	return "", fmt.Errorf("max iterations (%d) exceeded", a.config.MaxIterations)
}

func (a *Agent) toolDescriptors() []ai.ToolDescriptor {
	descriptors := make([]ai.ToolDescriptor, len(a.tools))
	for i, tool := range a.tools {
		descriptors[i] = ai.ToolDescriptor{
			Name:        tool.Name(),
			Description: tool.Description(),
			Parameters:  tool.Parameters(),
		}
	}
	return descriptors
}

func (a *Agent) executeTool(ctx context.Context, name, input string) (string, error) {
	tool, exists := a.toolMap[name]
	if !exists {
		return "", fmt.Errorf("unknown tool: %s", name)
	}
	return tool.Run(ctx, input)
}
