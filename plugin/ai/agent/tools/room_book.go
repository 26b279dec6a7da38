// Package tools provides the agent's two capabilities: booking a meeting
// room and querying room availability.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hrygo/roomwise/internal/roomapi"
)

// RoomBookTool submits a room reservation through the booking client.
type RoomBookTool struct {
	client *roomapi.BookingClient
}

// NewRoomBookTool creates a new booking tool.
func NewRoomBookTool(client *roomapi.BookingClient) *RoomBookTool {
	return &RoomBookTool{client: client}
}

// Name returns the tool name.
func (t *RoomBookTool) Name() string {
	return "room_book"
}

// Description returns the tool description for the model.
func (t *RoomBookTool) Description() string {
	return `预订一个会议室。需要会议室名称、会议标题、日期和起止时间。
预订失败时结果会列出同一时段仍然空闲的会议室，可直接向用户推荐。`
}

// Parameters returns the JSON Schema of the tool input.
func (t *RoomBookTool) Parameters() string {
	return `{
		"type": "object",
		"properties": {
			"room": {"type": "string", "description": "会议室名称，例如 宜山厅"},
			"title": {"type": "string", "description": "会议标题"},
			"date": {"type": "string", "description": "日期，YYYY-MM-DD"},
			"start_time": {"type": "string", "description": "开始时间，HH:MM"},
			"end_time": {"type": "string", "description": "结束时间，HH:MM"}
		},
		"required": ["room", "title", "date", "start_time", "end_time"]
	}`
}

// Run executes the booking and renders the outcome as model-readable text.
func (t *RoomBookTool) Run(ctx context.Context, inputJSON string) (string, error) {
	var input struct {
		Room      string `json:"room"`
		Title     string `json:"title"`
		Date      string `json:"date"`
		StartTime string `json:"start_time"`
		EndTime   string `json:"end_time"`
	}
	if err := json.Unmarshal([]byte(inputJSON), &input); err != nil {
		return "", fmt.Errorf("invalid JSON input: %w", err)
	}
	if input.Room == "" || input.Date == "" || input.StartTime == "" || input.EndTime == "" {
		return "", fmt.Errorf("room, date, start_time and end_time are required")
	}
	if input.Title == "" {
		input.Title = "会议"
	}

	result := t.client.Book(ctx, input.Room, input.Title, input.Date, input.StartTime, input.EndTime)
	if result.Success {
		return fmt.Sprintf("预订成功：%s %s %s-%s，会议ID %s。",
			result.Room, input.Date, input.StartTime, input.EndTime, result.MeetingID), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "预订失败：%s。", result.Reason)
	if len(result.Alternatives) > 0 {
		fmt.Fprintf(&sb, "该时段空闲的会议室：%s。", strings.Join(result.Alternatives, "、"))
	} else {
		sb.WriteString("该时段没有其他空闲会议室。")
	}
	return sb.String(), nil
}
