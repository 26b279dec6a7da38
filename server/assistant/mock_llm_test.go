package assistant

import (
	"context"
	"fmt"

	"github.com/hrygo/roomwise/plugin/ai"
)

// fakeLLM 按脚本依次应答 Chat 与 ChatWithTools 调用，记录收到的消息。
type fakeLLM struct {
	chatReplies []string
	chatErr     error
	chatCalls   [][]ai.Message

	toolReplies []*ai.ChatResponse
	toolErr     error
	toolCalls   [][]ai.Message
}

func (f *fakeLLM) Chat(ctx context.Context, messages []ai.Message) (string, error) {
	f.chatCalls = append(f.chatCalls, messages)
	if f.chatErr != nil {
		return "", f.chatErr
	}
	if len(f.chatReplies) == 0 {
		return "", fmt.Errorf("chat script exhausted")
	}
	reply := f.chatReplies[0]
	f.chatReplies = f.chatReplies[1:]
	return reply, nil
}

func (f *fakeLLM) ChatWithTools(ctx context.Context, messages []ai.Message, tools []ai.ToolDescriptor) (*ai.ChatResponse, error) {
	f.toolCalls = append(f.toolCalls, messages)
	if f.toolErr != nil {
		return nil, f.toolErr
	}
	if len(f.toolReplies) == 0 {
		return nil, fmt.Errorf("tool script exhausted")
	}
	resp := f.toolReplies[0]
	f.toolReplies = f.toolReplies[1:]
	return resp, nil
}
