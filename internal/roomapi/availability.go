package roomapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
)

const (
	// DefaultStartTime and DefaultEndTime bound an availability query when
	// the caller does not narrow the window.
	DefaultStartTime = "09:00"
	DefaultEndTime   = "20:00"

	// gridStep is the granularity of the availability grid.
	gridStep = 30 // minutes

	requestTimeout = 30 * time.Second
)

// AvailabilityClient queries per-room busy/free intervals from the backend.
type AvailabilityClient struct {
	baseURL string
	client  *http.Client
}

// NewAvailabilityClient creates an availability client for the given backend
// base URL.
func NewAvailabilityClient(baseURL string) *AvailabilityClient {
	return &AvailabilityClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: requestTimeout},
	}
}

// rawAvailability mirrors the backend response of GET /room-availability.
type rawAvailability struct {
	Date  string `json:"date"`
	Rooms map[string]struct {
		AvailableTime []TimeSlot `json:"available_time"`
		BusyTime      []TimeSlot `json:"busy_time"`
	} `json:"rooms"`
}

// GetAvailability returns the busy/free intervals of each room for one date
// and time window, at half-hour granularity. Rooms the backend never
// mentions are reported fully free. The method never fails the caller: on
// transport or parse errors it returns an empty result with Err set, so the
// conversation can still respond.
func (c *AvailabilityClient) GetAvailability(ctx context.Context, date, start, end, room string) *Availability {
	if start == "" {
		start = DefaultStartTime
	}
	if end == "" {
		end = DefaultEndTime
	}

	result := &Availability{
		Date:  date,
		Start: start,
		End:   end,
		Rooms: make(map[string]*RoomWindow),
	}

	raw, err := c.fetch(ctx, date, start, end, room)
	if err != nil {
		slog.Warn("availability query degraded to empty result",
			"date", date, "start", start, "end", end, "error", err)
		result.Err = err.Error()
		return result
	}

	startMin, err := parseClock(start)
	if err != nil {
		result.Err = fmt.Sprintf("invalid start time %q", start)
		return result
	}
	endMin, err := parseClock(end)
	if err != nil || endMin <= startMin {
		result.Err = fmt.Sprintf("invalid window %q-%q", start, end)
		return result
	}

	for _, name := range queriedRooms(raw, room) {
		var busy []TimeSlot
		if entry, ok := raw.Rooms[name]; ok {
			busy = entry.BusyTime
		}
		result.Rooms[name] = buildRoomWindow(startMin, endMin, busy)
	}
	return result
}

func (c *AvailabilityClient) fetch(ctx context.Context, date, start, end, room string) (*rawAvailability, error) {
	query := url.Values{}
	query.Set("date", date)
	query.Set("start_time", start)
	query.Set("end_time", end)
	if room != "" {
		query.Set("room", room)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/room-availability?"+query.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "build availability request")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "availability request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.Errorf("availability backend returned %d: %s", resp.StatusCode, string(body))
	}

	var raw rawAvailability
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "decode availability response")
	}
	return &raw, nil
}

// queriedRooms returns the rooms an availability result should cover: the
// static table (or just the filtered room) plus anything extra the backend
// reported.
func queriedRooms(raw *rawAvailability, room string) []string {
	var names []string
	if room != "" {
		names = append(names, room)
	} else {
		names = append(names, RoomNames()...)
	}
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		seen[n] = true
	}
	for n := range raw.Rooms {
		if !seen[n] {
			names = append(names, n)
			seen[n] = true
		}
	}
	return names
}

// buildRoomWindow walks the half-hour grid over [startMin, endMin), marks
// each point busy when a backend busy interval covers it, and merges
// consecutive same-status points into intervals. A merged run ends at the
// next grid boundary, so adjacent free half-hours collapse into one slot.
func buildRoomWindow(startMin, endMin int, busySlots []TimeSlot) *RoomWindow {
	window := &RoomWindow{}

	runStart := startMin
	runBusy := slotsCover(busySlots, startMin)
	for point := startMin + gridStep; point < endMin; point += gridStep {
		pointBusy := slotsCover(busySlots, point)
		if pointBusy == runBusy {
			continue
		}
		appendSlot(window, runBusy, runStart, point)
		runStart = point
		runBusy = pointBusy
	}
	appendSlot(window, runBusy, runStart, endMin)

	return window
}

func appendSlot(window *RoomWindow, busy bool, startMin, endMin int) {
	slot := TimeSlot{Start: formatClock(startMin), End: formatClock(endMin)}
	if busy {
		window.Busy = append(window.Busy, slot)
	} else {
		window.Free = append(window.Free, slot)
	}
}

// slotsCover reports whether any interval covers the given grid point.
// Unparseable backend intervals are skipped, which leaves their points free.
func slotsCover(slots []TimeSlot, pointMin int) bool {
	for _, slot := range slots {
		start, err1 := parseClock(slot.Start)
		end, err2 := parseClock(slot.End)
		if err1 != nil || err2 != nil {
			continue
		}
		if start <= pointMin && pointMin < end {
			return true
		}
	}
	return false
}

// parseClock parses "HH:MM" or "HH:MM:SS" into minutes since midnight.
func parseClock(s string) (int, error) {
	if len(s) < 5 {
		return 0, errors.Errorf("invalid clock value %q", s)
	}
	var hour, minute int
	if _, err := fmt.Sscanf(s[:5], "%02d:%02d", &hour, &minute); err != nil {
		return 0, errors.Wrapf(err, "invalid clock value %q", s)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, errors.Errorf("clock value out of range %q", s)
	}
	return hour*60 + minute, nil
}

// formatClock renders minutes since midnight as "HH:MM:SS".
func formatClock(min int) string {
	return fmt.Sprintf("%02d:%02d:00", min/60, min%60)
}
