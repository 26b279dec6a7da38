// Package v1 exposes the assistant over a minimal HTTP surface. Anything
// richer (streaming, widgets, auth) belongs to the UI front-ends, which are
// external collaborators.
package v1

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/roomwise/server/assistant"
)

// ChatRequest is the body of POST /api/v1/chat.
type ChatRequest struct {
	Message string `json:"message"`
	// Date overrides the current date (YYYY-MM-DD); defaults to today.
	Date string `json:"date,omitempty"`
}

// ChatResponse is the reply of POST /api/v1/chat.
type ChatResponse struct {
	Response string `json:"response"`
}

// ChatService routes chat requests into the session orchestrator.
type ChatService struct {
	session *assistant.Session
	version string
}

// NewChatService creates the chat service.
func NewChatService(session *assistant.Session, version string) *ChatService {
	return &ChatService{session: session, version: version}
}

// Register mounts the service routes on the echo instance.
func (s *ChatService) Register(e *echo.Echo) {
	e.POST("/api/v1/chat", s.chat)
	e.GET("/healthz", s.healthz)
}

func (s *ChatService) chat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}
	if req.Date == "" {
		req.Date = time.Now().Format("2006-01-02")
	}

	answer, err := s.session.Respond(c.Request().Context(), req.Message, req.Date)
	if err != nil {
		slog.Error("chat request failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, ChatResponse{Response: answer})
}

func (s *ChatService) healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.version,
	})
}
