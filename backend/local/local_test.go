package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duofs/duofs/vpath"
)

func mustParse(t *testing.T, s string) vpath.Path {
	t.Helper()
	p, err := backend{}.Parse(s)
	require.NoError(t, err)
	return p
}

func TestParseRoundTrip(t *testing.T) {
	dir := t.TempDir()
	p := mustParse(t, dir)
	p2, err := backend{}.Parse(p.String())
	require.NoError(t, err)
	assert.Equal(t, p.String(), p2.String())
}

func TestCapabilities(t *testing.T) {
	p := New(t.TempDir())
	assert.True(t, p.SupportsWriteOperations())
	assert.True(t, p.SupportsDirectoryRename())
	assert.True(t, p.SupportsFileEditing())
	assert.False(t, p.RequiresExtractionForReading())
	assert.True(t, p.SupportsStreamingRead())
	assert.Equal(t, vpath.StrategyStreaming, p.GetSearchStrategy())
	assert.False(t, p.IsRemote())
}

func TestWriteReadStat(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	p := New(filepath.Join(dir, "a.txt"))
	require.NoError(t, p.WriteText(ctx, "AAA"))

	got, err := p.ReadText(ctx)
	require.NoError(t, err)
	assert.Equal(t, "AAA", got)

	meta, err := p.Stat(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), meta.Size)
	assert.Equal(t, vpath.KindFile, meta.Kind)
}

func TestIterdirSorted(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	for _, name := range []string{"c.txt", "a.txt", "b.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}
	p := New(dir)
	entries, err := p.Iterdir(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "a.txt", entries[0].Name())
	assert.Equal(t, "b.txt", entries[1].Name())
	assert.Equal(t, "c.txt", entries[2].Name())
}

func TestCopyToSameScheme(t *testing.T) {
	ctx := context.Background()
	srcDir := t.TempDir()
	dstDir := t.TempDir()
	src := New(filepath.Join(srcDir, "a.txt"))
	require.NoError(t, src.WriteText(ctx, "AAA"))
	dst := New(filepath.Join(dstDir, "a.txt"))

	require.NoError(t, src.CopyTo(ctx, dst))
	got, err := dst.ReadText(ctx)
	require.NoError(t, err)
	assert.Equal(t, "AAA", got)
	// source untouched
	_, err = src.ReadText(ctx)
	require.NoError(t, err)
}

func TestCopyDirRecursive(t *testing.T) {
	ctx := context.Background()
	srcDir := t.TempDir()
	dstDir := filepath.Join(t.TempDir(), "out")
	require.NoError(t, os.MkdirAll(filepath.Join(srcDir, "sub"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "readme.txt"), []byte("R"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "sub", "inner.txt"), []byte("I"), 0644))

	src := New(srcDir)
	dst := New(dstDir)
	require.NoError(t, src.CopyTo(ctx, dst))

	got, err := New(filepath.Join(dstDir, "readme.txt")).ReadText(ctx)
	require.NoError(t, err)
	assert.Equal(t, "R", got)
	got, err = New(filepath.Join(dstDir, "sub", "inner.txt")).ReadText(ctx)
	require.NoError(t, err)
	assert.Equal(t, "I", got)
}

func TestMoveToSameDevice(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	src := New(filepath.Join(dir, "note.txt"))
	require.NoError(t, src.WriteText(ctx, "hi"))
	dst := New(filepath.Join(dir, "moved.txt"))

	require.NoError(t, src.MoveTo(ctx, dst, false))
	exists, err := src.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)
	got, err := dst.ReadText(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hi", got)
}

func TestMoveToRefusesOverwriteWithoutFlag(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	src := New(filepath.Join(dir, "note.txt"))
	require.NoError(t, src.WriteText(ctx, "hi"))
	dst := New(filepath.Join(dir, "existing.txt"))
	require.NoError(t, dst.WriteText(ctx, "old"))

	err := src.MoveTo(ctx, dst, false)
	require.Error(t, err)
}

func TestRmdirRejectsFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	p := New(filepath.Join(dir, "a.txt"))
	require.NoError(t, p.WriteText(ctx, "x"))
	err := p.Rmdir(ctx)
	require.Error(t, err)
}

func TestNameStemSuffix(t *testing.T) {
	p := New("/tmp/dir/archive.tar.gz")
	assert.Equal(t, "archive.tar.gz", p.Name())
	assert.Equal(t, ".gz", p.Suffix())
	assert.Equal(t, "archive.tar", p.Stem())
}
