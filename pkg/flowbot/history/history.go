// Package history keeps an undo/redo log of graph snapshots.
//
// The log stores deep copies: callers may keep mutating their store after
// pushing. Pushing a state identical to the current entry is a no-op, and
// the log is bounded, dropping its oldest entries first.
package history

import (
	"bytes"
	"encoding/json"

	"github.com/flowbot-dev/flowbot/pkg/flowbot"
)

// DefaultLimit is the default maximum number of retained snapshots.
const DefaultLimit = 50

// Log is an append-only snapshot log with an undo/redo cursor.
// It is not safe for concurrent use; editing is single-threaded.
type Log struct {
	entries [][]byte
	cursor  int // index of the current entry, -1 when empty
	limit   int
}

// New creates a log bounded at DefaultLimit entries.
func New() *Log {
	return NewWithLimit(DefaultLimit)
}

// NewWithLimit creates a log bounded at limit entries.
func NewWithLimit(limit int) *Log {
	if limit < 1 {
		limit = 1
	}
	return &Log{cursor: -1, limit: limit}
}

// Push records a snapshot as the new current state. Any redo tail beyond
// the cursor is discarded. Pushing a state equal to the current entry is
// ignored so restore round-trips do not pollute the log.
func (l *Log) Push(snap *flowbot.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	if l.cursor >= 0 && bytes.Equal(l.entries[l.cursor], data) {
		return nil
	}
	l.entries = append(l.entries[:l.cursor+1], data)
	if len(l.entries) > l.limit {
		drop := len(l.entries) - l.limit
		l.entries = l.entries[drop:]
	}
	l.cursor = len(l.entries) - 1
	return nil
}

// CanUndo reports whether an earlier snapshot exists.
func (l *Log) CanUndo() bool {
	return l.cursor > 0
}

// CanRedo reports whether a later snapshot exists.
func (l *Log) CanRedo() bool {
	return l.cursor >= 0 && l.cursor < len(l.entries)-1
}

// Undo moves the cursor back and returns that snapshot.
// Returns (nil, false) when there is nothing to undo.
func (l *Log) Undo() (*flowbot.Snapshot, bool) {
	if !l.CanUndo() {
		return nil, false
	}
	l.cursor--
	return l.current()
}

// Redo moves the cursor forward and returns that snapshot.
// Returns (nil, false) when there is nothing to redo.
func (l *Log) Redo() (*flowbot.Snapshot, bool) {
	if !l.CanRedo() {
		return nil, false
	}
	l.cursor++
	return l.current()
}

// Len returns the number of retained snapshots.
func (l *Log) Len() int {
	return len(l.entries)
}

// Clear drops all entries.
func (l *Log) Clear() {
	l.entries = nil
	l.cursor = -1
}

func (l *Log) current() (*flowbot.Snapshot, bool) {
	var snap flowbot.Snapshot
	if err := json.Unmarshal(l.entries[l.cursor], &snap); err != nil {
		return nil, false
	}
	return &snap, true
}
