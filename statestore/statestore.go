// Package statestore is the durable key-value store behind session
// persistence: window layout, each pane's last location and sort mode,
// per-pane cursor history, and the cross-pane recent-directories list.
//
// It is grounded on rclone's lib/kv: a refcounted singleton *DB per
// facility name (so many callers opening the "same" store share one
// underlying bbolt.DB and one set of open file handles), with
// Start/Stop instead of a bare Open/Close so the last caller out closes
// it. bbolt is the same embedded store rclone's kv package wraps.
package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/duofs/duofs/vpath"
)

// ErrInactive is returned by Stop on a DB that has already been fully
// stopped, mirroring lib/kv's own ErrInactive.
var ErrInactive = errors.New("statestore: database is not active")

const (
	bucketWindowLayout  = "window_layout"
	bucketPaneState     = "pane_state"
	bucketCursorHistory = "cursor_history"
	bucketRecentDirs    = "recent_directories"
)

// MaxCursorHistory bounds how many directories are remembered per pane,
// and MaxRecentDirectories bounds the shared recent-directories list.
// Both are fixed constants of this package.
const (
	MaxCursorHistory     = 50
	MaxRecentDirectories = 100
)

var (
	dbMapMu sync.Mutex
	dbMap   = map[string]*DB{}
)

// DB is a refcounted handle onto one bbolt-backed state file.
type DB struct {
	path string
	bolt *bolt.DB
	refs int
}

// Start opens (or returns the already-open, refcounted) state store at
// path, creating the ambient buckets on first open.
func Start(ctx context.Context, path string) (*DB, error) {
	dbMapMu.Lock()
	defer dbMapMu.Unlock()
	if db, ok := dbMap[path]; ok {
		db.refs++
		return db, nil
	}
	b, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, err
	}
	err = b.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{bucketWindowLayout, bucketPaneState, bucketCursorHistory, bucketRecentDirs} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		b.Close()
		return nil, err
	}
	db := &DB{path: path, bolt: b, refs: 1}
	dbMap[path] = db
	return db, nil
}

// Stop releases one reference, closing the underlying bbolt.DB when the
// last reference is released. commit is accepted for symmetry with
// lib/kv's Stop but bbolt always commits each Update transaction as it
// completes, so there is nothing extra to flush here.
func (db *DB) Stop(commit bool) error {
	dbMapMu.Lock()
	defer dbMapMu.Unlock()
	if db.refs <= 0 {
		return ErrInactive
	}
	db.refs--
	if db.refs > 0 {
		return nil
	}
	delete(dbMap, db.path)
	return db.bolt.Close()
}

// Exit forcibly closes every open state store, for process shutdown.
func Exit() {
	dbMapMu.Lock()
	defer dbMapMu.Unlock()
	for path, db := range dbMap {
		db.bolt.Close()
		delete(dbMap, path)
	}
}

func (db *DB) get(bucket, key string, out interface{}) (bool, error) {
	var data []byte
	err := db.bolt.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		v := b.Get([]byte(key))
		if v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if data == nil {
		return false, nil
	}
	return true, json.Unmarshal(data, out)
}

func (db *DB) put(bucket, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return db.bolt.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		return b.Put([]byte(key), data)
	})
}

// WindowLayout is the saved geometry of the dual-pane window: split
// position and which side last had focus.
type WindowLayout struct {
	SplitRatio  float64 `json:"split_ratio"`
	FocusedSide string  `json:"focused_side"`
}

// SaveWindowLayout persists the window layout.
func (db *DB) SaveWindowLayout(layout WindowLayout) error {
	return db.put(bucketWindowLayout, "layout", layout)
}

// LoadWindowLayout returns the last saved window layout, or ok=false if
// none was ever saved.
func (db *DB) LoadWindowLayout() (layout WindowLayout, ok bool, err error) {
	ok, err = db.get(bucketWindowLayout, "layout", &layout)
	return layout, ok, err
}

// PaneState is one pane's restorable state: its current directory, sort
// mode and focused entry, so reopening the manager drops the user back
// where they left off.
type PaneState struct {
	Directory    string `json:"directory"`
	SortMode     string `json:"sort_mode"`
	FocusedEntry string `json:"focused_entry"`
}

// SavePaneState persists side's (e.g. "left"/"right") current state.
func (db *DB) SavePaneState(side string, state PaneState) error {
	return db.put(bucketPaneState, side, state)
}

// LoadPaneState returns side's last saved state.
func (db *DB) LoadPaneState(side string) (state PaneState, ok bool, err error) {
	ok, err = db.get(bucketPaneState, side, &state)
	return state, ok, err
}

// SavePaneCursorPosition records that the cursor in side's history was
// last at directory with the given focused entry name, moving it to the
// most-recent position (the tail) of the ordered history, stamping it
// with the current time, and evicting the oldest entry once
// MaxCursorHistory is exceeded. Re-saving an already-present directory
// replaces its entry (new focused name and timestamp) and moves it to
// the tail rather than duplicating it, matching the most-recently-used
// reordering the
// original path-cursor history keeps.
func (db *DB) SavePaneCursorPosition(side, directory, focusedEntry string) error {
	history, _, err := db.cursorHistory(side)
	if err != nil {
		return err
	}
	history = moveToTail(history, directory, focusedEntry, time.Now())
	if len(history) > MaxCursorHistory {
		history = history[len(history)-MaxCursorHistory:]
	}
	return db.put(bucketCursorHistory, side, history)
}

// LoadPaneCursorPosition returns the focused entry last recorded for
// directory within side's history, if any.
func (db *DB) LoadPaneCursorPosition(side, directory string) (focusedEntry string, ok bool, err error) {
	history, _, err := db.cursorHistory(side)
	if err != nil {
		return "", false, err
	}
	for _, e := range history {
		if e.DirectoryPath == directory {
			return e.FocusedName, true, nil
		}
	}
	return "", false, nil
}

// GetOrderedPaneHistory returns side's visited directories, oldest
// first and tail being the most recently visited, each carrying the
// entry that was focused there and when it was last visited.
func (db *DB) GetOrderedPaneHistory(side string) ([]vpath.CursorHistoryEntry, error) {
	history, _, err := db.cursorHistory(side)
	if err != nil {
		return nil, err
	}
	return history, nil
}

// ClearPaneHistory discards side's cursor history entirely.
func (db *DB) ClearPaneHistory(side string) error {
	return db.bolt.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketCursorHistory)).Delete([]byte(side))
	})
}

func (db *DB) cursorHistory(side string) ([]vpath.CursorHistoryEntry, bool, error) {
	var history []vpath.CursorHistoryEntry
	ok, err := db.get(bucketCursorHistory, side, &history)
	return history, ok, err
}

func moveToTail(history []vpath.CursorHistoryEntry, directory, focusedEntry string, now time.Time) []vpath.CursorHistoryEntry {
	out := make([]vpath.CursorHistoryEntry, 0, len(history)+1)
	for _, e := range history {
		if e.DirectoryPath != directory {
			out = append(out, e)
		}
	}
	return append(out, vpath.CursorHistoryEntry{
		DirectoryPath: directory,
		FocusedName:   focusedEntry,
		Timestamp:     now,
	})
}

// RecordRecentDirectory adds directory to the front of the shared
// recent-directories list (most recent first), deduplicating and
// trimming to MaxRecentDirectories.
func (db *DB) RecordRecentDirectory(directory string) error {
	var recents []string
	if _, err := db.get(bucketRecentDirs, "all", &recents); err != nil {
		return err
	}
	filtered := make([]string, 0, len(recents)+1)
	filtered = append(filtered, directory)
	for _, d := range recents {
		if d != directory {
			filtered = append(filtered, d)
		}
	}
	if len(filtered) > MaxRecentDirectories {
		filtered = filtered[:MaxRecentDirectories]
	}
	return db.put(bucketRecentDirs, "all", filtered)
}

// RecentDirectories returns the shared recent-directories list, most
// recent first.
func (db *DB) RecentDirectories() ([]string, error) {
	var recents []string
	if _, err := db.get(bucketRecentDirs, "all", &recents); err != nil {
		return nil, err
	}
	return recents, nil
}
