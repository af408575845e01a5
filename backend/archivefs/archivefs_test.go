package archivefs

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/duofs/duofs/backend/local"
	"github.com/duofs/duofs/vpath"
)

func writeTestZip(t *testing.T, dir string) string {
	t.Helper()
	zipPath := filepath.Join(dir, "sample.zip")
	f, err := os.Create(zipPath)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("top.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("top level"))
	require.NoError(t, err)
	w, err = zw.Create("sub/inner.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("inner"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return zipPath
}

func rootPathFor(t *testing.T, zipPath string) vpath.Path {
	t.Helper()
	host, err := vpath.Parse(zipPath)
	require.NoError(t, err)
	return Root(host.String())
}

func TestParseRoundTrip(t *testing.T) {
	dir := t.TempDir()
	zipPath := writeTestZip(t, dir)
	root := rootPathFor(t, zipPath)

	child := root.Join("sub").Join("inner.txt")
	p2, err := vpath.Parse(child.String())
	require.NoError(t, err)
	assert.Equal(t, child.String(), p2.String())
}

func TestIterdirAndVirtualDir(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	zipPath := writeTestZip(t, dir)
	root := rootPathFor(t, zipPath)

	entries, err := root.Iterdir(ctx)
	require.NoError(t, err)
	names := map[string]bool{}
	for _, e := range entries {
		names[e.Name()] = true
	}
	assert.True(t, names["top.txt"])
	assert.True(t, names["sub"])

	sub := root.Join("sub")
	isDir, err := sub.IsDir(ctx)
	require.NoError(t, err)
	assert.True(t, isDir, "sub should be a synthesized virtual directory")
}

func TestReadEntry(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	zipPath := writeTestZip(t, dir)
	root := rootPathFor(t, zipPath)

	got, err := root.Join("sub").Join("inner.txt").ReadText(ctx)
	require.NoError(t, err)
	assert.Equal(t, "inner", got)
}

func TestCapabilities(t *testing.T) {
	dir := t.TempDir()
	zipPath := writeTestZip(t, dir)
	root := rootPathFor(t, zipPath)

	assert.False(t, root.SupportsWriteOperations())
	assert.False(t, root.SupportsDirectoryRename())
	assert.False(t, root.SupportsFileEditing())
	assert.True(t, root.RequiresExtractionForReading())
	assert.False(t, root.SupportsStreamingRead())
	assert.Equal(t, vpath.StrategyBuffered, root.GetSearchStrategy())
}

func TestCopyToExtractsOutOfArchive(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	zipPath := writeTestZip(t, dir)
	root := rootPathFor(t, zipPath)

	outDir := filepath.Join(t.TempDir(), "out")
	dst, err := vpath.Parse(outDir)
	require.NoError(t, err)
	require.NoError(t, root.CopyTo(ctx, dst))

	data, err := os.ReadFile(filepath.Join(outDir, "sub", "inner.txt"))
	require.NoError(t, err)
	assert.Equal(t, "inner", string(data))
}

func TestWriteOperationsRejected(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	zipPath := writeTestZip(t, dir)
	root := rootPathFor(t, zipPath)

	err := root.Join("new.txt").WriteBytes(ctx, []byte("x"))
	require.Error(t, err)
}

func TestGlobMatchesTopLevel(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	zipPath := writeTestZip(t, dir)
	root := rootPathFor(t, zipPath)

	matches, err := root.Glob(ctx, "*.txt")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "top.txt", matches[0].Name())
}
