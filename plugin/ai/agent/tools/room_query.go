package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/hrygo/roomwise/internal/roomapi"
)

// RoomQueryTool reports busy/free intervals per room for one date and window.
type RoomQueryTool struct {
	client *roomapi.AvailabilityClient
}

// NewRoomQueryTool creates a new availability query tool.
func NewRoomQueryTool(client *roomapi.AvailabilityClient) *RoomQueryTool {
	return &RoomQueryTool{client: client}
}

// Name returns the tool name.
func (t *RoomQueryTool) Name() string {
	return "room_query"
}

// Description returns the tool description for the model.
func (t *RoomQueryTool) Description() string {
	return `查询会议室在某日期某时段的占用情况。
不指定时段时默认查询 09:00-20:00，不指定会议室时返回所有会议室。`
}

// Parameters returns the JSON Schema of the tool input.
func (t *RoomQueryTool) Parameters() string {
	return `{
		"type": "object",
		"properties": {
			"date": {"type": "string", "description": "日期，YYYY-MM-DD"},
			"start_time": {"type": "string", "description": "开始时间，HH:MM，默认 09:00"},
			"end_time": {"type": "string", "description": "结束时间，HH:MM，默认 20:00"},
			"room": {"type": "string", "description": "会议室名称，可选"}
		},
		"required": ["date"]
	}`
}

// Run executes the availability query and renders it as model-readable text.
// A degraded (empty) availability result is still reported as text so the
// model can explain the situation instead of failing the turn.
func (t *RoomQueryTool) Run(ctx context.Context, inputJSON string) (string, error) {
	var input struct {
		Date      string `json:"date"`
		StartTime string `json:"start_time"`
		EndTime   string `json:"end_time"`
		Room      string `json:"room"`
	}
	if err := json.Unmarshal([]byte(inputJSON), &input); err != nil {
		return "", fmt.Errorf("invalid JSON input: %w", err)
	}
	if input.Date == "" {
		return "", fmt.Errorf("date is required")
	}

	avail := t.client.GetAvailability(ctx, input.Date, input.StartTime, input.EndTime, input.Room)
	return FormatAvailability(avail), nil
}

// FormatAvailability renders an availability result as a per-room text
// listing of free and busy intervals.
func FormatAvailability(avail *roomapi.Availability) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s-%s 会议室状态：\n", avail.Date, avail.Start, avail.End)

	if avail.Err != "" {
		fmt.Fprintf(&sb, "查询失败（%s），无法确认会议室状态。\n", avail.Err)
		return sb.String()
	}

	names := make([]string, 0, len(avail.Rooms))
	for name := range avail.Rooms {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		window := avail.Rooms[name]
		fmt.Fprintf(&sb, "- %s：空闲 %s", name, formatSlots(window.Free))
		if len(window.Busy) > 0 {
			fmt.Fprintf(&sb, "，占用 %s", formatSlots(window.Busy))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func formatSlots(slots []roomapi.TimeSlot) string {
	if len(slots) == 0 {
		return "无"
	}
	parts := make([]string, len(slots))
	for i, slot := range slots {
		parts[i] = slot.Start + "~" + slot.End
	}
	return strings.Join(parts, "、")
}
