package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/roomwise/internal/roomapi"
	"github.com/hrygo/roomwise/plugin/ai"
	"github.com/hrygo/roomwise/plugin/ai/agent"
	"github.com/hrygo/roomwise/plugin/ai/agent/tools"
	"github.com/hrygo/roomwise/store"
)

// agentMaxIterations caps the tool-dispatch loop per request.
const agentMaxIterations = 10

// Session owns the state of one conversation: the durable history, the LLM
// connection handle, and the backend clients. A mutex serializes request
// cycles, so one process can host several independent sessions.
type Session struct {
	mu sync.Mutex

	history      *store.History
	handle       *ai.Handle
	availability *roomapi.AvailabilityClient
	booking      *roomapi.BookingClient
	tokenCeiling int
}

// NewSession creates a session around restored history and live clients.
func NewSession(history *store.History, handle *ai.Handle, availability *roomapi.AvailabilityClient, booking *roomapi.BookingClient, tokenCeiling int) *Session {
	return &Session{
		history:      history,
		handle:       handle,
		availability: availability,
		booking:      booking,
		tokenCeiling: tokenCeiling,
	}
}

// History exposes the session's conversation log.
func (s *Session) History() *store.History {
	return s.history
}

// Respond runs one full request cycle: refresh the model connection, compact
// the history if needed, fetch live availability for the inferred date,
// normalize the request into one canonical directive, let the agent execute
// it, then finalize and persist the history.
//
// Whatever stage fails, the history is still flushed before the error is
// returned; user-facing presentation of errors is the caller's concern.
func (s *Session) Respond(ctx context.Context, userText, currentDate string) (_ string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	logger := slog.With("method", "Session.Respond")
	logger.Info("received request", "message_len", len(userText), "date", currentDate)

	defer func() {
		if perr := s.history.Persist(); perr != nil {
			logger.Error("failed to persist history", "error", perr)
			if err == nil {
				err = perr
			}
		}
	}()

	now, parseErr := time.Parse("2006-01-02", currentDate)
	if parseErr != nil {
		now = time.Now()
	}

	// Always-fresh policy: the model endpoint degrades silently after idle
	// periods, so correctness wins over the reconnect latency.
	llm, err := s.handle.Refresh(ctx)
	if err != nil {
		return "", errors.Wrap(err, "refresh model connection")
	}

	s.history.Append(store.Turn{Role: store.RoleUser, Content: userText})

	NewSummarizer(llm, s.tokenCeiling).Compact(ctx, s.history)

	targetDate := resolveDate(userText, now)
	avail := s.availability.GetAvailability(ctx, targetDate, "", "", "")

	directive, err := NewNormalizer(llm).Normalize(ctx, userText, now.Format("2006-01-02"), s.history.Turns(), avail)
	if err != nil {
		return "", errors.Wrap(err, "normalize request")
	}
	logger.Debug("request normalized", "directive", directive)

	// Scratch turn; its content is overwritten with the finalized answer
	// once tool execution completes.
	s.history.Append(store.Turn{Role: store.RoleAssistant, Content: directive})

	answer, err := s.runAgent(ctx, llm, directive, targetDate)
	if err != nil {
		s.history.SetLastAssistantContent("抱歉，处理请求时出错：" + err.Error())
		return "", errors.Wrap(err, "dispatch agent")
	}

	s.history.SetLastAssistantContent(answer)
	logger.Info("request completed", "duration", time.Since(start), "response_len", len(answer))
	return answer, nil
}

func (s *Session) runAgent(ctx context.Context, llm ai.LLMService, directive, date string) (string, error) {
	dispatcher := agent.New(llm, agent.Config{
		Name:          "roomwise",
		SystemPrompt:  buildAgentPrompt(date),
		MaxIterations: agentMaxIterations,
	}, []agent.Tool{
		tools.NewRoomBookTool(s.booking),
		tools.NewRoomQueryTool(s.availability),
	})
	return dispatcher.Run(ctx, directive)
}

// buildAgentPrompt builds the system prompt for the tool-dispatch agent.
func buildAgentPrompt(date string) string {
	return fmt.Sprintf(`你是会议室预订助手。今天是 %s。

你会收到一条已经规范化的指令：
- "预订 room=... title=... date=... start=... end=..."：调用 room_book 执行预订。
- "无可用会议室 date=... start=... end=..."：用 room_query 确认该时段状态，然后向用户说明没有可用会议室，并给出最近的空闲时段。

## 原则
1. 预订失败时，结果里会列出同时段空闲的会议室，直接向用户推荐，不要重复尝试同一会议室。
2. 工具报错时检查参数格式后再试，不要把原始报错抛给用户。
3. 完成后用一两句简洁中文回复用户，说明结果（会议室、日期、时间段）。`, date)
}
