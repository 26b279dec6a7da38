package ai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// openaiService implements LLMService on any OpenAI-compatible endpoint.
// DeepSeek and Ollama both speak this protocol.
type openaiService struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

// NewLLMService creates a new LLMService for the configured provider.
func NewLLMService(cfg *LLMConfig) (LLMService, error) {
	if cfg == nil {
		return nil, fmt.Errorf("LLM config is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("LLM model is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	switch cfg.Provider {
	case "deepseek":
		clientConfig.BaseURL = cfg.BaseURL
		if clientConfig.BaseURL == "" {
			clientConfig.BaseURL = "https://api.deepseek.com"
		}
	case "openai":
		if cfg.BaseURL != "" {
			clientConfig.BaseURL = cfg.BaseURL
		}
	case "ollama":
		clientConfig.BaseURL = cfg.BaseURL
		if clientConfig.BaseURL == "" {
			clientConfig.BaseURL = "http://localhost:11434/v1"
		}
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}

	return &openaiService{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}, nil
}

func (s *openaiService) Chat(ctx context.Context, messages []Message) (string, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.model,
		Messages:    convertMessages(messages),
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty chat response")
	}
	return resp.Choices[0].Message.Content, nil
}

func (s *openaiService) ChatWithTools(ctx context.Context, messages []Message, tools []ToolDescriptor) (*ChatResponse, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.model,
		Messages:    convertMessages(messages),
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
		Tools:       convertTools(tools),
	})
	if err != nil {
		return nil, fmt.Errorf("tool chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty chat response")
	}

	choice := resp.Choices[0].Message
	result := &ChatResponse{Content: choice.Content}
	for _, tc := range choice.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, ToolCall{
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return result, nil
}

func convertMessages(messages []Message) []openai.ChatCompletionMessage {
	converted := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		converted[i] = openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		}
	}
	return converted
}

func convertTools(tools []ToolDescriptor) []openai.Tool {
	converted := make([]openai.Tool, len(tools))
	for i, t := range tools {
		converted[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  json.RawMessage(t.Parameters),
			},
		}
	}
	return converted
}
