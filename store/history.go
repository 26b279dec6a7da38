// Package store owns the durable conversation history: an append-only log of
// turns persisted to a primary file plus hourly snapshot copies, with
// crash-recovery fallback from primary to snapshot to empty.
package store

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"
)

// Role identifies the author of a turn.
type Role string

const (
	RoleUser      Role = "USER"
	RoleAssistant Role = "ASSISTANT"
	RoleSystem    Role = "SYSTEM"
)

// Turn is one message of the conversation. Turns are immutable once
// appended, with one documented exception: the content of the most recent
// assistant turn may be overwritten with the finalized answer after tool
// execution completes (see History.SetLastAssistantContent).
type Turn struct {
	Role    Role
	Content string
}

const (
	primaryFileName  = "history.txt"
	snapshotDirName  = "snapshots"
	snapshotInterval = time.Hour
)

// History is the ordered conversation log. It is append-only except for
// summarization compaction, which atomically replaces the prefix with one
// synthetic system turn. Safe for concurrent use.
type History struct {
	mu           sync.Mutex
	turns        []Turn
	primaryPath  string
	snapshotDir  string
	lastSnapshot time.Time
}

// NewHistory creates a history rooted in the given data directory. Call
// Restore to load persisted state.
func NewHistory(dataDir string) *History {
	return &History{
		primaryPath: filepath.Join(dataDir, primaryFileName),
		snapshotDir: filepath.Join(dataDir, snapshotDirName),
	}
}

// Append adds a turn to the end of the log.
func (h *History) Append(turn Turn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append(h.turns, turn)
}

// Turns returns an ordered copy of the log.
func (h *History) Turns() []Turn {
	h.mu.Lock()
	defer h.mu.Unlock()
	turns := make([]Turn, len(h.turns))
	copy(turns, h.turns)
	return turns
}

// Len returns the number of turns in the log.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.turns)
}

// Clear removes all turns.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = nil
}

// SetLastAssistantContent overwrites the content of the most recent
// assistant turn, so persisted history reflects the resolved outcome rather
// than intermediate scratch reasoning. Returns false when no assistant turn
// exists.
func (h *History) SetLastAssistantContent(content string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := len(h.turns) - 1; i >= 0; i-- {
		if h.turns[i].Role == RoleAssistant {
			h.turns[i].Content = content
			return true
		}
	}
	return false
}

// Compact atomically replaces the log prefix with the given summary turn,
// keeping the last keepTail turns verbatim.
func (h *History) Compact(summary Turn, keepTail int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if keepTail < 0 {
		keepTail = 0
	}
	if keepTail > len(h.turns) {
		keepTail = len(h.turns)
	}
	tail := h.turns[len(h.turns)-keepTail:]
	compacted := make([]Turn, 0, keepTail+1)
	compacted = append(compacted, summary)
	compacted = append(compacted, tail...)
	h.turns = compacted
}

// Persist writes the full log to the primary file and, at most once per
// hour, to a timestamped snapshot copy. Snapshots accumulate without
// eviction; that resource growth is a known tradeoff.
func (h *History) Persist() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	data := serializeTurns(h.turns)
	if err := writeFileAtomic(h.primaryPath, data); err != nil {
		return errors.Wrap(err, "persist history")
	}

	if time.Since(h.lastSnapshot) < snapshotInterval {
		return nil
	}
	if err := os.MkdirAll(h.snapshotDir, 0o750); err != nil {
		return errors.Wrap(err, "create snapshot dir")
	}
	name := fmt.Sprintf("history-%s-%s.txt", time.Now().Format("20060102-150405"), shortuuid.New()[:8])
	if err := os.WriteFile(filepath.Join(h.snapshotDir, name), data, 0o640); err != nil {
		return errors.Wrap(err, "write snapshot")
	}
	h.lastSnapshot = time.Now()
	slog.Debug("history snapshot written", "snapshot", name, "turns", len(h.turns))
	return nil
}

// Restore loads persisted history. It reads the primary file first; if that
// is absent or corrupt it falls back to the most recently modified snapshot,
// and if that fails too it starts with an empty log. Restore logs each
// degradation but never fails.
func (h *History) Restore() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastSnapshot = h.newestSnapshotTime()

	turns, err := loadTurns(h.primaryPath)
	if err == nil {
		h.turns = turns
		return
	}
	missing := os.IsNotExist(errors.Cause(err))
	if !missing {
		slog.Warn("primary history unreadable, falling back to snapshot",
			"path", h.primaryPath, "error", err)
	}

	snapshots := h.snapshotsNewestFirst()
	if missing && len(snapshots) == 0 {
		// First run, nothing to recover.
		h.turns = nil
		return
	}

	for _, path := range snapshots {
		turns, err := loadTurns(path)
		if err != nil {
			slog.Warn("snapshot unreadable", "path", path, "error", err)
			continue
		}
		slog.Info("history restored from snapshot", "path", path, "turns", len(turns))
		h.turns = turns
		return
	}

	slog.Warn("no usable history found, starting with an empty log", "path", h.primaryPath)
	h.turns = nil
}

// snapshotsNewestFirst lists snapshot files ordered by modification time,
// newest first.
func (h *History) snapshotsNewestFirst() []string {
	entries, err := os.ReadDir(h.snapshotDir)
	if err != nil {
		return nil
	}

	type snapshot struct {
		path    string
		modTime time.Time
	}
	var snapshots []snapshot
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "history-") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		snapshots = append(snapshots, snapshot{
			path:    filepath.Join(h.snapshotDir, entry.Name()),
			modTime: info.ModTime(),
		})
	}
	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].modTime.After(snapshots[j].modTime)
	})

	paths := make([]string, len(snapshots))
	for i, s := range snapshots {
		paths[i] = s.path
	}
	return paths
}

func (h *History) newestSnapshotTime() time.Time {
	paths := h.snapshotsNewestFirst()
	if len(paths) == 0 {
		return time.Time{}
	}
	info, err := os.Stat(paths[0])
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

func loadTurns(path string) ([]Turn, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read history file")
	}
	turns, err := parseTurns(string(data))
	if err != nil {
		return nil, errors.Wrapf(err, "parse history file %s", path)
	}
	return turns, nil
}

// serializeTurns renders turns as newline-delimited "ROLE: text" records
// separated by blank lines. The format is part of the external persistence
// contract.
func serializeTurns(turns []Turn) []byte {
	var sb strings.Builder
	for _, turn := range turns {
		sb.WriteString(string(turn.Role))
		sb.WriteString(": ")
		sb.WriteString(turn.Content)
		sb.WriteString("\n\n")
	}
	return []byte(sb.String())
}

// parseTurns is the inverse of serializeTurns. Lines following a record
// header belong to the same turn until a blank line; a non-blank line that
// starts no record marks the file corrupt.
func parseTurns(data string) ([]Turn, error) {
	var turns []Turn
	inRecord := false
	for _, line := range strings.Split(data, "\n") {
		if strings.TrimSpace(line) == "" {
			inRecord = false
			continue
		}
		if inRecord {
			turns[len(turns)-1].Content += "\n" + line
			continue
		}
		role, content, ok := splitRecordHeader(line)
		if !ok {
			return nil, errors.Errorf("malformed record header %q", truncate(line, 80))
		}
		turns = append(turns, Turn{Role: role, Content: content})
		inRecord = true
	}
	return turns, nil
}

func splitRecordHeader(line string) (Role, string, bool) {
	for _, role := range []Role{RoleUser, RoleAssistant, RoleSystem} {
		prefix := string(role) + ": "
		if strings.HasPrefix(line, prefix) {
			return role, strings.TrimPrefix(line, prefix), true
		}
		if line == string(role)+":" {
			return role, "", true
		}
	}
	return "", "", false
}

// writeFileAtomic writes via a temp file and rename so a crash mid-write
// cannot corrupt the primary file.
func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
