// Command mockapi is an in-memory stand-in for the room booking backend,
// meant for local development of the assistant. It serves the same two
// endpoints the real backend does, keeps bookings in memory, and rejects
// overlapping reservations.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/lithammer/shortuuid/v4"
)

var roomNames = []string{"宜山厅", "徐汇厅", "浦东厅", "静安厅", "黄浦厅", "乐山厅"}

type booking struct {
	MeetingID string
	Room      string
	Name      string
	Start     time.Time
	End       time.Time
}

type mockBackend struct {
	mu       sync.Mutex
	bookings []booking
}

type slotPayload struct {
	Start string `json:"start_time"`
	End   string `json:"end_time"`
}

type roomPayload struct {
	AvailableTime []slotPayload `json:"available_time"`
	BusyTime      []slotPayload `json:"busy_time"`
}

func (b *mockBackend) availability(c echo.Context) error {
	date := c.QueryParam("date")
	if date == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "date is required")
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "date must be YYYY-MM-DD")
	}
	roomFilter := c.QueryParam("room")

	b.mu.Lock()
	defer b.mu.Unlock()

	rooms := make(map[string]roomPayload)
	for _, name := range roomNames {
		if roomFilter != "" && name != roomFilter {
			continue
		}
		payload := roomPayload{
			AvailableTime: []slotPayload{},
			BusyTime:      []slotPayload{},
		}
		for _, bk := range b.bookings {
			if bk.Room != name || bk.Start.Format("2006-01-02") != date {
				continue
			}
			payload.BusyTime = append(payload.BusyTime, slotPayload{
				Start: bk.Start.Format("15:04:05"),
				End:   bk.End.Format("15:04:05"),
			})
		}
		rooms[name] = payload
	}

	return c.JSON(http.StatusOK, map[string]any{
		"date":  date,
		"rooms": rooms,
	})
}

type bookRequest struct {
	RoomName      string `json:"room_name"`
	MeetingName   string `json:"meeting_name"`
	StartDatetime string `json:"start_datetime"`
	EndDatetime   string `json:"end_datetime"`
	CallerID      string `json:"caller_id"`
	ContactID     string `json:"contact_id"`
	Description   string `json:"description"`
	TotalMembers  int    `json:"total_members"`
}

func (b *mockBackend) book(c echo.Context) error {
	var req bookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	known := false
	for _, name := range roomNames {
		if name == req.RoomName {
			known = true
			break
		}
	}
	if !known {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "failed",
			"message": fmt.Sprintf("会议室 %s 不存在", req.RoomName),
		})
	}

	start, err := time.Parse("2006-01-02 15:04", req.StartDatetime)
	if err != nil {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "failed",
			"message": "start_datetime 格式错误，应为 YYYY-MM-DD HH:MM",
		})
	}
	end, err := time.Parse("2006-01-02 15:04", req.EndDatetime)
	if err != nil || !end.After(start) {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "failed",
			"message": "end_datetime 无效",
		})
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, bk := range b.bookings {
		if bk.Room == req.RoomName && start.Before(bk.End) && bk.Start.Before(end) {
			return c.JSON(http.StatusOK, map[string]string{
				"status":  "failed",
				"message": fmt.Sprintf("会议室 %s 在该时段已被预订（%s）", bk.Room, bk.Name),
			})
		}
	}

	meetingID := shortuuid.New()
	b.bookings = append(b.bookings, booking{
		MeetingID: meetingID,
		Room:      req.RoomName,
		Name:      req.MeetingName,
		Start:     start,
		End:       end,
	})
	slog.Info("booking accepted",
		"meeting_id", meetingID, "room", req.RoomName, "name", req.MeetingName,
		"start", req.StartDatetime, "end", req.EndDatetime, "caller", req.CallerID)

	return c.JSON(http.StatusOK, map[string]string{
		"status":     "success",
		"meeting_id": meetingID,
		"message":    fmt.Sprintf("已预订 %s：%s", req.RoomName, req.MeetingName),
	})
}

func main() {
	port := flag.Int("port", 8000, "port to listen on")
	flag.Parse()

	backend := &mockBackend{}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.GET("/room-availability", backend.availability)
	e.POST("/book-room", backend.book)

	address := fmt.Sprintf(":%d", *port)
	slog.Info("mock booking backend started", "address", address, "rooms", len(roomNames))
	if err := e.Start(address); err != nil && err != http.ErrServerClosed {
		slog.Error("mock backend stopped", "error", err)
		os.Exit(1)
	}
}
