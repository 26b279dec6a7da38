package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/roomwise/plugin/ai"
)

// scriptedLLM 按脚本依次返回应答，并记录收到的消息。
type scriptedLLM struct {
	responses []*ai.ChatResponse
	err       error
	calls     [][]ai.Message
}

func (s *scriptedLLM) Chat(ctx context.Context, messages []ai.Message) (string, error) {
	return "", fmt.Errorf("not used")
}

func (s *scriptedLLM) ChatWithTools(ctx context.Context, messages []ai.Message, tools []ai.ToolDescriptor) (*ai.ChatResponse, error) {
	s.calls = append(s.calls, messages)
	if s.err != nil {
		return nil, s.err
	}
	if len(s.responses) == 0 {
		return &ai.ChatResponse{Content: "（脚本耗尽）"}, nil
	}
	resp := s.responses[0]
	s.responses = s.responses[1:]
	return resp, nil
}

// echoTool 回显输入里的 value 字段。
type echoTool struct {
	runs int
}

func (t *echoTool) Name() string        { return "echo" }
func (t *echoTool) Description() string { return "回显输入" }
func (t *echoTool) Parameters() string {
	return `{"type":"object","properties":{"value":{"type":"string"}},"required":["value"]}`
}

func (t *echoTool) Run(ctx context.Context, input string) (string, error) {
	t.runs++
	var in struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal([]byte(input), &in); err != nil {
		return "", fmt.Errorf("invalid JSON input: %w", err)
	}
	return "echo: " + in.Value, nil
}

// TestAgent_ToolCallThenAnswer 测试一次工具调用后产出最终回答
func TestAgent_ToolCallThenAnswer(t *testing.T) {
	llm := &scriptedLLM{responses: []*ai.ChatResponse{
		{ToolCalls: []ai.ToolCall{{Name: "echo", Arguments: `{"value":"hello"}`}}},
		{Content: "完成了"},
	}}
	tool := &echoTool{}
	a := New(llm, Config{Name: "test", SystemPrompt: "你是测试助手"}, []Tool{tool})

	answer, err := a.Run(context.Background(), "请调用工具")
	require.NoError(t, err)
	assert.Equal(t, "完成了", answer)
	assert.Equal(t, 1, tool.runs)

	// 第二轮模型调用应带上工具结果观察。
	require.Len(t, llm.calls, 2)
	second := llm.calls[1]
	last := second[len(second)-1]
	assert.Equal(t, "user", last.Role)
	assert.Contains(t, last.Content, "[Result from echo]: echo: hello")
}

// TestAgent_MalformedArgsBecomeObservation 测试参数错误作为观察反馈而非终止
func TestAgent_MalformedArgsBecomeObservation(t *testing.T) {
	llm := &scriptedLLM{responses: []*ai.ChatResponse{
		{ToolCalls: []ai.ToolCall{{Name: "echo", Arguments: `{not json`}}},
		{Content: "已纠正"},
	}}
	a := New(llm, Config{Name: "test"}, []Tool{&echoTool{}})

	answer, err := a.Run(context.Background(), "调用")
	require.NoError(t, err)
	assert.Equal(t, "已纠正", answer)

	second := llm.calls[1]
	last := second[len(second)-1]
	assert.Contains(t, last.Content, "Error:")
	assert.Contains(t, last.Content, "invalid JSON input")
}

// TestAgent_UnknownTool 测试未知工具名作为观察反馈
func TestAgent_UnknownTool(t *testing.T) {
	llm := &scriptedLLM{responses: []*ai.ChatResponse{
		{ToolCalls: []ai.ToolCall{{Name: "missing", Arguments: `{}`}}},
		{Content: "好的"},
	}}
	a := New(llm, Config{Name: "test"}, []Tool{&echoTool{}})

	answer, err := a.Run(context.Background(), "调用")
	require.NoError(t, err)
	assert.Equal(t, "好的", answer)

	second := llm.calls[1]
	last := second[len(second)-1]
	assert.Contains(t, last.Content, "unknown tool: missing")
}

// TestAgent_MaxIterations 测试迭代上限强制终止
func TestAgent_MaxIterations(t *testing.T) {
	// 模型永远只发工具调用，从不收敛。
	llm := &scriptedLLM{}
	looping := make([]*ai.ChatResponse, 5)
	for i := range looping {
		looping[i] = &ai.ChatResponse{ToolCalls: []ai.ToolCall{{Name: "echo", Arguments: `{"value":"x"}`}}}
	}
	llm.responses = looping

	tool := &echoTool{}
	a := New(llm, Config{Name: "test", MaxIterations: 3}, []Tool{tool})

	_, err := a.Run(context.Background(), "调用")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max iterations (3) exceeded")
	assert.Equal(t, 3, tool.runs)
}

// TestAgent_ModelError 测试模型传输失败直接终止
func TestAgent_ModelError(t *testing.T) {
	llm := &scriptedLLM{err: fmt.Errorf("connection reset")}
	a := New(llm, Config{Name: "test"}, []Tool{&echoTool{}})

	_, err := a.Run(context.Background(), "调用")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

// TestAgent_Callback 测试事件回调依序触发
func TestAgent_Callback(t *testing.T) {
	llm := &scriptedLLM{responses: []*ai.ChatResponse{
		{ToolCalls: []ai.ToolCall{{Name: "echo", Arguments: `{"value":"y"}`}}},
		{Content: "结束"},
	}}
	a := New(llm, Config{Name: "test"}, []Tool{&echoTool{}})

	var events []string
	answer, err := a.RunWithCallback(context.Background(), "调用", func(event, data string) {
		events = append(events, event)
	})
	require.NoError(t, err)
	assert.Equal(t, "结束", answer)
	assert.Equal(t, []string{EventToolUse, EventToolResult, EventAnswer}, events)
}
