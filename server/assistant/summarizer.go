// Package assistant composes the conversation pipeline: summarization
// compaction of the history, normalization of free-form requests into one
// canonical booking directive, and the per-session orchestration of the
// tool-dispatch agent.
package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/hrygo/roomwise/plugin/ai"
	"github.com/hrygo/roomwise/store"
)

const (
	// summaryMinTurns gates compaction: shorter logs are never summarized,
	// which also makes compaction idempotent (a compacted log is 1 summary
	// + summaryKeepTail turns, below this gate).
	summaryMinTurns = 5

	// summaryKeepTail is how many recent turns survive compaction verbatim.
	summaryKeepTail = 3

	// defaultTokenCeiling is the weighted token threshold above which the
	// history is compacted.
	defaultTokenCeiling = 4000

	// summaryMaxRunes bounds the generated summary.
	summaryMaxRunes = 300
)

// fallbackSummary replaces a failed model summary so compaction still
// succeeds from the caller's perspective.
const fallbackSummary = "早前的对话已压缩，包含若干会议室预订和查询记录，细节不再可用。"

// Summarizer decides when the conversation history has grown too large and
// compresses the older turns into one synthetic summary turn.
type Summarizer struct {
	llm          ai.LLMService
	tokenCeiling int
}

// NewSummarizer creates a summarizer. A non-positive ceiling selects the
// default.
func NewSummarizer(llm ai.LLMService, tokenCeiling int) *Summarizer {
	if tokenCeiling <= 0 {
		tokenCeiling = defaultTokenCeiling
	}
	return &Summarizer{llm: llm, tokenCeiling: tokenCeiling}
}

// ShouldSummarize reports whether the log is long and heavy enough to
// compact.
func (s *Summarizer) ShouldSummarize(turns []store.Turn) bool {
	if len(turns) < summaryMinTurns {
		return false
	}
	return weightedTokenCount(turns) > s.tokenCeiling
}

// Compact summarizes and compacts the history when the gate is met. It
// never fails the request: a model failure substitutes a generic summary,
// losing context but keeping the pipeline alive.
func (s *Summarizer) Compact(ctx context.Context, history *store.History) {
	turns := history.Turns()
	if !s.ShouldSummarize(turns) {
		return
	}

	head := turns[:len(turns)-summaryKeepTail]
	summary := s.generateSummary(ctx, head)

	history.Compact(store.Turn{
		Role:    store.RoleSystem,
		Content: "对话摘要：" + summary,
	}, summaryKeepTail)

	slog.Info("conversation history compacted",
		"summarized_turns", len(head),
		"kept_turns", summaryKeepTail,
		"summary_len", len(summary))
}

// generateSummary asks the model to compress the given turns, extracting
// booked rooms and times, stated preferences, and recurring patterns.
func (s *Summarizer) generateSummary(ctx context.Context, turns []store.Turn) string {
	var sb strings.Builder
	sb.WriteString("请总结以下会议室助手的对话内容，提取：已预订的会议室和时间、用户表达的偏好、反复出现的模式。总结不超过300字。\n\n")
	for _, turn := range turns {
		fmt.Fprintf(&sb, "[%s]: %s\n\n", roleLabel(turn.Role), turn.Content)
	}

	messages := []ai.Message{
		ai.SystemPrompt("你是一个专业的对话总结助手，擅长提取对话关键信息。请用简洁的语言总结对话要点。"),
		ai.UserMessage(sb.String()),
	}

	summary, err := s.llm.Chat(ctx, messages)
	if err != nil {
		slog.Warn("summary generation failed, using fallback", "error", err)
		return fallbackSummary
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return fallbackSummary
	}
	return truncateRunes(summary, summaryMaxRunes)
}

func roleLabel(role store.Role) string {
	switch role {
	case store.RoleUser:
		return "用户"
	case store.RoleAssistant:
		return "助手"
	default:
		return "系统"
	}
}

// weightedTokenCount approximates the token cost of the concatenated turn
// contents: CJK ideographs count double, everything else counts one.
func weightedTokenCount(turns []store.Turn) int {
	count := 0
	for _, turn := range turns {
		for _, r := range turn.Content {
			if unicode.Is(unicode.Han, r) {
				count += 2
			} else {
				count++
			}
		}
	}
	return count
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
