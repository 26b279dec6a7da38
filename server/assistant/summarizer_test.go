package assistant

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/roomwise/store"
)

// TestWeightedTokenCount 测试中日韩表意字符按双倍计数
func TestWeightedTokenCount(t *testing.T) {
	tests := []struct {
		name  string
		turns []store.Turn
		want  int
	}{
		{name: "空日志", turns: nil, want: 0},
		{name: "纯ASCII", turns: []store.Turn{{Content: "hello"}}, want: 5},
		{name: "纯汉字", turns: []store.Turn{{Content: "会议室"}}, want: 6},
		{name: "中英混合", turns: []store.Turn{{Content: "订room"}}, want: 6},
		{name: "多轮累加", turns: []store.Turn{{Content: "ab"}, {Content: "订"}}, want: 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, weightedTokenCount(tt.turns))
		})
	}
}

// TestSummarizer_ShouldSummarize 测试压缩门槛
func TestSummarizer_ShouldSummarize(t *testing.T) {
	s := NewSummarizer(&fakeLLM{}, 100)

	t.Run("轮数不足", func(t *testing.T) {
		turns := make([]store.Turn, 4)
		for i := range turns {
			turns[i] = store.Turn{Content: strings.Repeat("长", 100)}
		}
		assert.False(t, s.ShouldSummarize(turns), "即使超重也不压缩")
	})

	t.Run("轮数够但不够重", func(t *testing.T) {
		turns := make([]store.Turn, 6)
		for i := range turns {
			turns[i] = store.Turn{Content: "短"}
		}
		assert.False(t, s.ShouldSummarize(turns))
	})

	t.Run("轮数和权重都达标", func(t *testing.T) {
		turns := make([]store.Turn, 6)
		for i := range turns {
			turns[i] = store.Turn{Content: strings.Repeat("重", 20)}
		}
		assert.True(t, s.ShouldSummarize(turns))
	})
}

// TestSummarizer_Compact 测试压缩后保留一条摘要加尾部三轮
func TestSummarizer_Compact(t *testing.T) {
	llm := &fakeLLM{chatReplies: []string{"用户常订宜山厅上午时段。"}}
	s := NewSummarizer(llm, 10)

	history := store.NewHistory(t.TempDir())
	for i := 0; i < 6; i++ {
		history.Append(store.Turn{Role: store.RoleUser, Content: fmt.Sprintf("第%d轮，内容够长足以超重", i)})
	}

	s.Compact(context.Background(), history)

	turns := history.Turns()
	require.Len(t, turns, 4)
	assert.Equal(t, store.RoleSystem, turns[0].Role)
	assert.Equal(t, "对话摘要：用户常订宜山厅上午时段。", turns[0].Content)
	assert.Contains(t, turns[3].Content, "第5轮")

	// 摘要请求里只包含被压缩的前缀轮。
	require.Len(t, llm.chatCalls, 1)
	prompt := llm.chatCalls[0][1].Content
	assert.Contains(t, prompt, "第2轮")
	assert.NotContains(t, prompt, "第3轮")
}

// TestSummarizer_DefaultCeiling 测试默认门槛下六轮重对话压缩为四轮
func TestSummarizer_DefaultCeiling(t *testing.T) {
	llm := &fakeLLM{chatReplies: []string{"摘要"}}
	s := NewSummarizer(llm, 0)

	history := store.NewHistory(t.TempDir())
	// 每轮 350 个汉字，加权 700，六轮共 4200，超过默认 4000。
	for i := 0; i < 6; i++ {
		history.Append(store.Turn{Role: store.RoleUser, Content: strings.Repeat("会", 350)})
	}

	s.Compact(context.Background(), history)
	assert.Equal(t, 4, history.Len())
}

// TestSummarizer_CompactIdempotent 测试压缩后的日志不会再次触发压缩
func TestSummarizer_CompactIdempotent(t *testing.T) {
	llm := &fakeLLM{chatReplies: []string{"摘要内容"}}
	s := NewSummarizer(llm, 10)

	history := store.NewHistory(t.TempDir())
	for i := 0; i < 6; i++ {
		history.Append(store.Turn{Role: store.RoleUser, Content: strings.Repeat("重", 30)})
	}

	s.Compact(context.Background(), history)
	require.Equal(t, 4, history.Len())

	s.Compact(context.Background(), history)
	assert.Equal(t, 4, history.Len(), "压缩后低于轮数门槛，不再压缩")
	assert.Len(t, llm.chatCalls, 1)
}

// TestSummarizer_FallbackOnModelFailure 测试模型失败时用兜底摘要继续压缩
func TestSummarizer_FallbackOnModelFailure(t *testing.T) {
	llm := &fakeLLM{chatErr: fmt.Errorf("model down")}
	s := NewSummarizer(llm, 10)

	history := store.NewHistory(t.TempDir())
	for i := 0; i < 6; i++ {
		history.Append(store.Turn{Role: store.RoleUser, Content: strings.Repeat("重", 30)})
	}

	s.Compact(context.Background(), history)

	turns := history.Turns()
	require.Len(t, turns, 4)
	assert.Equal(t, "对话摘要："+fallbackSummary, turns[0].Content)
}

// TestSummarizer_TruncatesLongSummary 测试超长摘要被截断
func TestSummarizer_TruncatesLongSummary(t *testing.T) {
	llm := &fakeLLM{chatReplies: []string{strings.Repeat("长", 500)}}
	s := NewSummarizer(llm, 10)

	history := store.NewHistory(t.TempDir())
	for i := 0; i < 6; i++ {
		history.Append(store.Turn{Role: store.RoleUser, Content: strings.Repeat("重", 30)})
	}

	s.Compact(context.Background(), history)

	turns := history.Turns()
	summary := strings.TrimPrefix(turns[0].Content, "对话摘要：")
	assert.Equal(t, summaryMaxRunes, len([]rune(summary)))
}
