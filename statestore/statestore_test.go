package statestore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duofs/duofs/vpath"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.bolt")
	db, err := Start(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Stop(true) })
	return db
}

func TestStartRefcounting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.bolt")
	ctx := context.Background()
	db1, err := Start(ctx, path)
	require.NoError(t, err)
	db2, err := Start(ctx, path)
	require.NoError(t, err)
	assert.Same(t, db1, db2)
	assert.Equal(t, 2, db1.refs)

	require.NoError(t, db1.Stop(true))
	assert.Equal(t, 1, db1.refs)
	require.NoError(t, db2.Stop(true))

	err = db2.Stop(true)
	assert.ErrorIs(t, err, ErrInactive)
}

func TestWindowLayoutRoundTrip(t *testing.T) {
	db := openTestDB(t)
	_, ok, err := db.LoadWindowLayout()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, db.SaveWindowLayout(WindowLayout{SplitRatio: 0.5, FocusedSide: "left"}))
	got, ok, err := db.LoadWindowLayout()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0.5, got.SplitRatio)
	assert.Equal(t, "left", got.FocusedSide)
}

func TestPaneStateRoundTrip(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.SavePaneState("left", PaneState{Directory: "/tmp", SortMode: "name"}))
	got, ok, err := db.LoadPaneState("left")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "/tmp", got.Directory)

	_, ok, err = db.LoadPaneState("right")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCursorHistoryOrderingAndMoveToTail(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.SavePaneCursorPosition("left", "/a", "a.txt"))
	require.NoError(t, db.SavePaneCursorPosition("left", "/b", "b.txt"))
	require.NoError(t, db.SavePaneCursorPosition("left", "/a", "a2.txt"))

	history, err := db.GetOrderedPaneHistory("left")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "/b", history[0].DirectoryPath)
	assert.Equal(t, "b.txt", history[0].FocusedName)
	assert.Equal(t, "/a", history[1].DirectoryPath, "/a should move to the tail on revisit")
	assert.Equal(t, "a2.txt", history[1].FocusedName)
	assert.False(t, history[1].Timestamp.IsZero())
	assert.True(t, !history[1].Timestamp.Before(history[0].Timestamp), "revisited entry's timestamp should not precede the older entry's")

	focused, ok, err := db.LoadPaneCursorPosition("left", "/a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a2.txt", focused)
}

// TestCursorHistoryEntryType confirms GetOrderedPaneHistory returns the
// shared vpath.CursorHistoryEntry type rather than a lossy directory-only
// projection, so a caller can reproduce (directory, focused name) pairs
// straight from the history.
func TestCursorHistoryEntryType(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.SavePaneCursorPosition("left", "/a", "a.txt"))

	history, err := db.GetOrderedPaneHistory("left")
	require.NoError(t, err)
	require.Len(t, history, 1)
	var _ vpath.CursorHistoryEntry = history[0]
}

func TestCursorHistoryBounded(t *testing.T) {
	db := openTestDB(t)
	for i := 0; i < MaxCursorHistory+10; i++ {
		require.NoError(t, db.SavePaneCursorPosition("left", filepath.Join("/", "dir", string(rune('a'+i%26)), string(rune(i))), "x"))
	}
	history, err := db.GetOrderedPaneHistory("left")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(history), MaxCursorHistory)
}

func TestClearPaneHistory(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.SavePaneCursorPosition("left", "/a", "f"))
	require.NoError(t, db.ClearPaneHistory("left"))
	history, err := db.GetOrderedPaneHistory("left")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestRecentDirectories(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.RecordRecentDirectory("/a"))
	require.NoError(t, db.RecordRecentDirectory("/b"))
	require.NoError(t, db.RecordRecentDirectory("/a"))

	got, err := db.RecentDirectories()
	require.NoError(t, err)
	assert.Equal(t, []string{"/a", "/b"}, got)
}
