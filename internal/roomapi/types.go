// Package roomapi wraps the room booking backend HTTP API.
// It exposes two thin clients: availability queries that normalize the
// backend's per-room occupancy into gap-free busy/free intervals, and a
// booking client that submits reservations and proposes alternatives on
// failure.
package roomapi

import "strings"

// TimeSlot is one contiguous interval within a queried window.
type TimeSlot struct {
	Start string `json:"start_time"`
	End   string `json:"end_time"`
}

// RoomWindow holds the busy and free intervals of one room for a queried
// window. The two lists are time-ordered, disjoint, and together cover the
// window without gaps.
type RoomWindow struct {
	Busy []TimeSlot `json:"busy_time"`
	Free []TimeSlot `json:"available_time"`
}

// Availability is the normalized result of one availability query.
// When the backend could not be reached or its response could not be parsed,
// Rooms is empty and Err carries the degrade reason; the conversation keeps
// going with whatever the caller can make of that.
type Availability struct {
	Date  string                 `json:"date"`
	Start string                 `json:"start_time"`
	End   string                 `json:"end_time"`
	Rooms map[string]*RoomWindow `json:"rooms"`
	Err   string                 `json:"error,omitempty"`
}

// Room is one entry of the static backend room table.
type Room struct {
	Name  string // canonical backend identifier, e.g. 宜山厅
	Alias string // pinyin alias accepted in user input, e.g. yishan
}

// Rooms is the static room table of the booking backend.
var Rooms = []Room{
	{Name: "宜山厅", Alias: "yishan"},
	{Name: "徐汇厅", Alias: "xuhui"},
	{Name: "浦东厅", Alias: "pudong"},
	{Name: "静安厅", Alias: "jingan"},
	{Name: "黄浦厅", Alias: "huangpu"},
	{Name: "乐山厅", Alias: "leshan"},
}

// RoomNames returns the canonical names of the static room table.
func RoomNames() []string {
	names := make([]string, len(Rooms))
	for i, r := range Rooms {
		names[i] = r.Name
	}
	return names
}

// ResolveRoom maps a possibly-abbreviated room name to its canonical backend
// identifier by substring match against the static room table. The match is
// tried against the canonical name (宜山 → 宜山厅) and the pinyin alias
// (Yishan → 宜山厅), case-insensitively. Returns ErrRoomNotFound when no
// entry matches.
func ResolveRoom(input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", ErrRoomNotFound
	}
	lowered := strings.ToLower(trimmed)

	for _, r := range Rooms {
		if strings.Contains(r.Name, trimmed) || strings.Contains(trimmed, r.Name) {
			return r.Name, nil
		}
		if r.Alias != "" && strings.Contains(lowered, r.Alias) {
			return r.Name, nil
		}
	}
	return "", ErrRoomNotFound
}

// IsFree reports whether the room is reported free for the full
// [start, end) interval. Times are "HH:MM" strings.
func (a *Availability) IsFree(room, start, end string) bool {
	window, ok := a.Rooms[room]
	if !ok {
		return false
	}
	startMin, err := parseClock(start)
	if err != nil {
		return false
	}
	endMin, err := parseClock(end)
	if err != nil {
		return false
	}
	for _, slot := range window.Free {
		slotStart, err1 := parseClock(slot.Start)
		slotEnd, err2 := parseClock(slot.End)
		if err1 != nil || err2 != nil {
			continue
		}
		if slotStart <= startMin && endMin <= slotEnd {
			return true
		}
	}
	return false
}

// FreeRooms returns the rooms reported free for the full [start, end)
// interval, in room-table order.
func (a *Availability) FreeRooms(start, end string) []string {
	var free []string
	for _, r := range Rooms {
		if a.IsFree(r.Name, start, end) {
			free = append(free, r.Name)
		}
	}
	return free
}
