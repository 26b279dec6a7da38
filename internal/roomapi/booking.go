package roomapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/pkg/errors"
)

// ErrRoomNotFound is returned when a user-supplied room name resolves to no
// entry of the static room table.
var ErrRoomNotFound = errors.New("room not found")

// BookingResult is the outcome of one booking attempt. On failure,
// Alternatives lists rooms reported free for the same window so the caller
// can propose them without another round trip.
type BookingResult struct {
	Success      bool     `json:"success"`
	Room         string   `json:"room"`
	MeetingID    string   `json:"meeting_id,omitempty"`
	Reason       string   `json:"reason,omitempty"`
	Alternatives []string `json:"alternatives,omitempty"`
}

// BookingClient submits room reservations to the backend.
type BookingClient struct {
	baseURL      string
	callerID     string
	contactID    string
	client       *http.Client
	availability *AvailabilityClient
}

// NewBookingClient creates a booking client. The availability client is used
// to look up alternative rooms after a failed booking.
func NewBookingClient(baseURL, callerID, contactID string, availability *AvailabilityClient) *BookingClient {
	return &BookingClient{
		baseURL:      baseURL,
		callerID:     callerID,
		contactID:    contactID,
		client:       &http.Client{Timeout: requestTimeout},
		availability: availability,
	}
}

// bookRequest mirrors the body of POST /book-room.
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

// bookResponse mirrors the backend response of POST /book-room.
type bookResponse struct {
	Status    string `json:"status"`
	MeetingID string `json:"meeting_id"`
	Message   string `json:"message"`
}

// Book submits one reservation. The room name may be abbreviated; it is
// resolved against the static room table first. The booking call is a single
// synchronous request and is never retried here, so a timed-out request
// cannot silently double-book; retrying is the caller's decision.
//
// On backend-reported failure or any transport error the result carries the
// rooms still free for the same window as alternatives.
func (c *BookingClient) Book(ctx context.Context, room, title, date, start, end string) *BookingResult {
	canonical, err := ResolveRoom(room)
	if err != nil {
		slog.Warn("booking rejected, unknown room", "room", room, "date", date)
		return &BookingResult{
			Success: false,
			Room:    room,
			Reason:  "未找到会议室: " + room,
		}
	}

	result := &BookingResult{Room: canonical}

	resp, err := c.submit(ctx, canonical, title, date, start, end)
	switch {
	case err != nil:
		slog.Warn("booking request failed",
			"room", canonical, "date", date, "start", start, "end", end, "error", err)
		result.Reason = err.Error()
	case resp.Status == "success":
		result.Success = true
		result.MeetingID = resp.MeetingID
		slog.Info("booking confirmed",
			"room", canonical, "date", date, "start", start, "end", end, "meeting_id", resp.MeetingID)
		return result
	default:
		result.Reason = resp.Message
		if result.Reason == "" {
			result.Reason = "预订失败"
		}
	}

	result.Alternatives = c.alternatives(ctx, canonical, date, start, end)
	return result
}

func (c *BookingClient) submit(ctx context.Context, room, title, date, start, end string) (*bookResponse, error) {
	body, err := json.Marshal(bookRequest{
		RoomName:      room,
		MeetingName:   title,
		StartDatetime: date + " " + start,
		EndDatetime:   date + " " + end,
		CallerID:      c.callerID,
		ContactID:     c.contactID,
		Description:   title,
		TotalMembers:  1,
	})
	if err != nil {
		return nil, errors.Wrap(err, "encode booking request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/book-room", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build booking request")
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "booking request failed")
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		return nil, errors.Errorf("booking backend returned %d: %s", httpResp.StatusCode, string(raw))
	}

	var resp bookResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, errors.Wrap(err, "decode booking response")
	}
	return &resp, nil
}

// alternatives re-queries availability for the same window and returns the
// rooms reported fully free, excluding the one that just failed.
func (c *BookingClient) alternatives(ctx context.Context, failedRoom, date, start, end string) []string {
	if c.availability == nil {
		return nil
	}

	// The availability client has its own timeout; bound the extra lookup so
	// a stuck backend does not double the booking latency.
	lookupCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	avail := c.availability.GetAvailability(lookupCtx, date, start, end, "")
	if avail.Err != "" {
		return nil
	}

	var alternatives []string
	for _, name := range avail.FreeRooms(start, end) {
		if name != failedRoom {
			alternatives = append(alternatives, name)
		}
	}
	return alternatives
}
