package ai

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewLLMService 测试服务构造与配置校验
func TestNewLLMService(t *testing.T) {
	t.Run("缺少配置", func(t *testing.T) {
		_, err := NewLLMService(nil)
		assert.Error(t, err)
	})

	t.Run("缺少模型", func(t *testing.T) {
		_, err := NewLLMService(&LLMConfig{Provider: "deepseek", APIKey: "sk-x"})
		assert.Error(t, err)
	})

	t.Run("不支持的提供方", func(t *testing.T) {
		_, err := NewLLMService(&LLMConfig{Provider: "mystery", Model: "m"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported LLM provider")
	})

	for _, provider := range []string{"deepseek", "openai", "ollama"} {
		t.Run(provider, func(t *testing.T) {
			svc, err := NewLLMService(&LLMConfig{Provider: provider, APIKey: "sk-x", Model: "m"})
			require.NoError(t, err)
			assert.NotNil(t, svc)
		})
	}
}

func TestConvertMessages(t *testing.T) {
	converted := convertMessages([]Message{
		SystemPrompt("系统"),
		UserMessage("用户"),
		AssistantMessage("助手"),
	})
	require.Len(t, converted, 3)
	assert.Equal(t, "system", converted[0].Role)
	assert.Equal(t, "user", converted[1].Role)
	assert.Equal(t, "assistant", converted[2].Role)
	assert.Equal(t, "用户", converted[1].Content)
}

func TestConvertTools(t *testing.T) {
	converted := convertTools([]ToolDescriptor{{
		Name:        "room_book",
		Description: "预订会议室",
		Parameters:  `{"type":"object"}`,
	}})
	require.Len(t, converted, 1)
	assert.Equal(t, "room_book", converted[0].Function.Name)
	raw, ok := converted[0].Function.Parameters.(json.RawMessage)
	require.True(t, ok)
	assert.JSONEq(t, `{"type":"object"}`, string(raw))
}
