package roomapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bookingBackend 模拟预订后端，/book-room 按脚本应答，
// /room-availability 返回给定的占用表。
type bookingBackend struct {
	t            *testing.T
	bookHandler  http.HandlerFunc
	busyByRoom   map[string][]TimeSlot
	bookRequests []bookRequest
	availCalls   int
}

func (b *bookingBackend) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/book-room":
			var req bookRequest
			require.NoError(b.t, json.NewDecoder(r.Body).Decode(&req))
			b.bookRequests = append(b.bookRequests, req)
			b.bookHandler(w, r)
		case "/room-availability":
			b.availCalls++
			rooms := make(map[string]map[string][]TimeSlot)
			for room, busy := range b.busyByRoom {
				rooms[room] = map[string][]TimeSlot{
					"available_time": {},
					"busy_time":      busy,
				}
			}
			json.NewEncoder(w).Encode(map[string]any{
				"date":  r.URL.Query().Get("date"),
				"rooms": rooms,
			})
		default:
			http.NotFound(w, r)
		}
	}
}

func newBookingClient(t *testing.T, backend *bookingBackend) *BookingClient {
	t.Helper()
	backend.t = t
	srv := httptest.NewServer(backend.handler())
	t.Cleanup(srv.Close)
	availability := NewAvailabilityClient(srv.URL)
	return NewBookingClient(srv.URL, "caller-1", "contact-1", availability)
}

// TestBook_Success 测试预订成功
func TestBook_Success(t *testing.T) {
	backend := &bookingBackend{
		bookHandler: func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{
				"status":     "success",
				"meeting_id": "m-123",
				"message":    "已预订",
			})
		},
	}
	client := newBookingClient(t, backend)

	result := client.Book(context.Background(), "宜山", "周会", "2026-09-01", "10:00", "11:00")
	assert.True(t, result.Success)
	assert.Equal(t, "宜山厅", result.Room, "缩写名解析为规范名")
	assert.Equal(t, "m-123", result.MeetingID)
	assert.Empty(t, result.Alternatives)

	require.Len(t, backend.bookRequests, 1)
	req := backend.bookRequests[0]
	assert.Equal(t, "宜山厅", req.RoomName)
	assert.Equal(t, "周会", req.MeetingName)
	assert.Equal(t, "2026-09-01 10:00", req.StartDatetime)
	assert.Equal(t, "2026-09-01 11:00", req.EndDatetime)
	assert.Equal(t, "caller-1", req.CallerID)
	assert.Equal(t, "contact-1", req.ContactID)
	assert.Zero(t, backend.availCalls, "成功时不重查空闲")
}

// TestBook_FailedWithAlternatives 测试失败后列出同时段空闲会议室
func TestBook_FailedWithAlternatives(t *testing.T) {
	backend := &bookingBackend{
		bookHandler: func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{
				"status":  "failed",
				"message": "该时段已被占用",
			})
		},
		busyByRoom: map[string][]TimeSlot{
			"宜山厅": {{Start: "09:00:00", End: "20:00:00"}},
			"徐汇厅": {{Start: "10:00:00", End: "11:00:00"}},
		},
	}
	client := newBookingClient(t, backend)

	result := client.Book(context.Background(), "宜山厅", "评审", "2026-09-01", "10:00", "11:00")
	assert.False(t, result.Success)
	assert.Equal(t, "该时段已被占用", result.Reason)
	assert.Equal(t, 1, backend.availCalls)

	// 宜山厅（刚失败）和徐汇厅（同时段占用）不出现在备选里。
	assert.NotContains(t, result.Alternatives, "宜山厅")
	assert.NotContains(t, result.Alternatives, "徐汇厅")
	assert.Contains(t, result.Alternatives, "浦东厅")
	assert.Contains(t, result.Alternatives, "乐山厅")
}

// TestBook_FailedEmptyMessage 测试后端失败但无 message 时用默认原因
func TestBook_FailedEmptyMessage(t *testing.T) {
	backend := &bookingBackend{
		bookHandler: func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{"status": "failed"})
		},
	}
	client := newBookingClient(t, backend)

	result := client.Book(context.Background(), "宜山厅", "评审", "2026-09-01", "10:00", "11:00")
	assert.False(t, result.Success)
	assert.Equal(t, "预订失败", result.Reason)
}

// TestBook_UnknownRoom 测试未知会议室直接拒绝，不发请求
func TestBook_UnknownRoom(t *testing.T) {
	backend := &bookingBackend{
		bookHandler: func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("不应发起预订请求")
		},
	}
	client := newBookingClient(t, backend)

	result := client.Book(context.Background(), "月球厅", "评审", "2026-09-01", "10:00", "11:00")
	assert.False(t, result.Success)
	assert.Contains(t, result.Reason, "未找到会议室")
	assert.Empty(t, result.Alternatives)
	assert.Empty(t, backend.bookRequests)
}

// TestBook_TransportError 测试传输失败不重试且仍尝试给出备选
func TestBook_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	availability := NewAvailabilityClient(srv.URL)
	client := NewBookingClient(srv.URL, "caller-1", "contact-1", availability)

	result := client.Book(context.Background(), "宜山厅", "评审", "2026-09-01", "10:00", "11:00")
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Reason)
	// 空闲查询同样失败时备选为空，而不是凭空捏造。
	assert.Empty(t, result.Alternatives)
}
