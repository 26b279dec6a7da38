package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/roomwise/internal/roomapi"
	"github.com/hrygo/roomwise/plugin/ai"
	"github.com/hrygo/roomwise/store"
)

// directiveLabel prefixes the canonical line the normalizer model must emit.
const directiveLabel = "operation:"

// historyTurnsForPrompt bounds how much recent history the normalizer sees.
const historyTurnsForPrompt = 6

// Normalizer turns a free-form user request into exactly one canonical
// booking directive, using the live availability snapshot so the directive
// always names a currently-free room (best effort; not transactional
// against the backend).
type Normalizer struct {
	llm ai.LLMService
}

// NewNormalizer creates a normalizer.
func NewNormalizer(llm ai.LLMService) *Normalizer {
	return &Normalizer{llm: llm}
}

// Normalize produces the canonical directive line for the given request.
// The model is constrained to a single labeled output line; when the label
// is missing a fallback heuristic takes the last non-empty line, which is a
// known source of ambiguity and therefore logged.
func (n *Normalizer) Normalize(ctx context.Context, userText, currentDate string, turns []store.Turn, avail *roomapi.Availability) (string, error) {
	raw, err := n.llm.Chat(ctx, []ai.Message{
		ai.SystemPrompt(n.systemPrompt(currentDate, avail)),
		ai.UserMessage(n.userPrompt(userText, turns)),
	})
	if err != nil {
		return "", errors.Wrap(err, "normalize intent")
	}

	directive, usedFallback := extractDirective(raw)
	if directive == "" {
		return "", errors.Errorf("normalizer produced no usable directive: %q", truncateForLog(raw, 200))
	}
	if usedFallback {
		slog.Warn("directive label missing, used last-line fallback",
			"directive", directive, "raw_len", len(raw))
	}
	return directive, nil
}

func (n *Normalizer) systemPrompt(currentDate string, avail *roomapi.Availability) string {
	var sb strings.Builder
	sb.WriteString("你是会议室预订意图解析器。当前日期是：")
	sb.WriteString(currentDate)
	sb.WriteString("。\n\n")

	sb.WriteString("以下是当天各会议室的实时状态：\n")
	sb.WriteString(formatAvailabilityForPrompt(avail))

	sb.WriteString(`
你的任务：把用户的请求解析成且仅成一行规范指令，格式二选一：
operation: 预订 room=<会议室> title=<会议标题> date=<YYYY-MM-DD> start=<HH:MM> end=<HH:MM>
operation: 无可用会议室 date=<YYYY-MM-DD> start=<HH:MM> end=<HH:MM>

规则：
1. 相对日期（今天、明天、后天、周几）按当前日期换算成 YYYY-MM-DD。
2. room 必须是该时段完全空闲的会议室。用户指定的会议室被占用时，换成同时段任一空闲会议室；没有任何空闲会议室时输出第二种格式。
3. 用户未说明会议标题时，从对话历史推断，推断不出则用"会议"。
4. 永远不要输出查询指令，只输出上述两种格式之一。
5. 输出只有这一行，不要解释。`)
	return sb.String()
}

func (n *Normalizer) userPrompt(userText string, turns []store.Turn) string {
	var sb strings.Builder
	if len(turns) > 0 {
		start := 0
		if len(turns) > historyTurnsForPrompt {
			start = len(turns) - historyTurnsForPrompt
		}
		sb.WriteString("最近对话：\n")
		for _, turn := range turns[start:] {
			fmt.Fprintf(&sb, "[%s]: %s\n", roleLabel(turn.Role), truncateRunes(turn.Content, 200))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("用户请求：")
	sb.WriteString(userText)
	return sb.String()
}

// formatAvailabilityForPrompt lists each room's free intervals, compact
// enough to inline into the system prompt.
func formatAvailabilityForPrompt(avail *roomapi.Availability) string {
	if avail == nil || avail.Err != "" {
		return "（状态查询失败，按所有会议室空闲处理，但预订可能被拒绝）\n"
	}

	var sb strings.Builder
	for _, room := range roomapi.Rooms {
		window, ok := avail.Rooms[room.Name]
		if !ok {
			continue
		}
		if len(window.Free) == 0 {
			fmt.Fprintf(&sb, "- %s：全时段占用\n", room.Name)
			continue
		}
		parts := make([]string, len(window.Free))
		for i, slot := range window.Free {
			parts[i] = slot.Start + "~" + slot.End
		}
		fmt.Fprintf(&sb, "- %s：空闲 %s\n", room.Name, strings.Join(parts, "、"))
	}
	return sb.String()
}

// extractDirective finds the labeled directive line in the model output.
// Without a label it falls back to the last non-empty line, stripping any
// leading label before a colon. The second return reports whether the
// fallback path fired.
func extractDirective(raw string) (string, bool) {
	lines := strings.Split(raw, "\n")

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(strings.ToLower(trimmed), directiveLabel) {
			return strings.TrimSpace(trimmed[len(directiveLabel):]), false
		}
	}

	// Fallback: last non-empty line, any leading label stripped.
	for i := len(lines) - 1; i >= 0; i-- {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" {
			continue
		}
		return stripLeadingLabel(trimmed), true
	}
	return "", true
}

// stripLeadingLabel removes a short leading "label:" prefix, tolerating the
// full-width colon. Longer prefixes are kept, since a colon deep in the
// line is more likely part of the directive itself.
func stripLeadingLabel(line string) string {
	for _, sep := range []string{":", "："} {
		if idx := strings.Index(line, sep); idx > 0 && idx <= 24 {
			rest := strings.TrimSpace(line[idx+len(sep):])
			if rest != "" {
				return rest
			}
		}
	}
	return line
}

func truncateForLog(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
