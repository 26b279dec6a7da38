// Package ai provides the language model service used by the assistant:
// a provider-agnostic chat interface with native tool calling, and a
// connection handle that recycles stale connections with bounded retry.
package ai

import "context"

// Message represents a chat message.
type Message struct {
	Role    string // system, user, assistant
	Content string
}

// ToolDescriptor describes one callable tool to the model.
type ToolDescriptor struct {
	Name        string
	Description string
	Parameters  string // JSON Schema of the tool input
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	Name      string
	Arguments string // flat JSON object, as emitted by the model
}

// ChatResponse is the model's reply to a tool-enabled chat turn. When
// ToolCalls is empty, Content is the final answer.
type ChatResponse struct {
	Content   string
	ToolCalls []ToolCall
}

// LLMService is the LLM service interface.
type LLMService interface {
	// Chat performs a plain chat completion.
	Chat(ctx context.Context, messages []Message) (string, error)

	// ChatWithTools performs a chat completion with tool definitions and
	// returns either content or requested tool calls.
	ChatWithTools(ctx context.Context, messages []Message, tools []ToolDescriptor) (*ChatResponse, error)
}

// LLMConfig holds LLM provider configuration.
type LLMConfig struct {
	Provider    string // deepseek, openai, ollama
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
}

// SystemPrompt creates a system message.
func SystemPrompt(content string) Message {
	return Message{Role: "system", Content: content}
}

// UserMessage creates a user message.
func UserMessage(content string) Message {
	return Message{Role: "user", Content: content}
}

// AssistantMessage creates an assistant message.
func AssistantMessage(content string) Message {
	return Message{Role: "assistant", Content: content}
}
