package archivecache

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duofs/duofs/vpath"
)

func TestIndexChildrenAndVirtualDir(t *testing.T) {
	idx := &Index{
		Entries: []Entry{
			{Path: "a.txt", Kind: vpath.KindFile},
			{Path: "sub/b.txt", Kind: vpath.KindFile},
			{Path: "sub/nested/c.txt", Kind: vpath.KindFile},
		},
	}
	root := idx.Children("")
	require.Len(t, root, 2)
	names := map[string]bool{}
	for _, e := range root {
		names[e.Path] = true
	}
	assert.True(t, names["a.txt"])
	assert.True(t, names["sub"])

	sub := idx.Children("sub")
	require.Len(t, sub, 2)

	assert.True(t, idx.IsVirtualDir("sub"))
	assert.False(t, idx.IsVirtualDir("a.txt"))
}

func TestIndexLookup(t *testing.T) {
	idx := &Index{Entries: []Entry{{Path: "x.txt", Size: 3}}}
	e, ok := idx.Lookup("x.txt")
	require.True(t, ok)
	assert.Equal(t, uint64(3), e.Size)
	_, ok = idx.Lookup("missing")
	assert.False(t, ok)
}

// fakeReadAtCloser adapts a bytes.Reader to ReadAtCloser for tests.
type fakeReadAtCloser struct {
	*bytes.Reader
}

func (f *fakeReadAtCloser) Close() error { return nil }

func buildZip(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("dir/file.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestIndexZip(t *testing.T) {
	data := buildZip(t)
	entries, err := indexZip(context.Background(), "test.zip", &fakeReadAtCloser{bytes.NewReader(data)}, int64(len(data)))
	require.NoError(t, err)
	var found bool
	for _, e := range entries {
		if e.Path == "dir/file.txt" {
			found = true
			assert.Equal(t, uint64(5), e.Size)
		}
	}
	assert.True(t, found)
}

func buildTar(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	body := []byte("payload")
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name:    "nested/thing.bin",
		Size:    int64(len(body)),
		Mode:    0644,
		ModTime: time.Now(),
	}))
	_, err := tw.Write(body)
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	return buf.Bytes()
}

func TestIndexTarPlain(t *testing.T) {
	data := buildTar(t)
	entries, err := indexTarPlain(context.Background(), "test.tar", &fakeReadAtCloser{bytes.NewReader(data)}, int64(len(data)))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "nested/thing.bin", entries[0].Path)
	assert.Equal(t, int64(0), entries[0].StorageOffset)
}

func TestIndexerForLongestSuffixWins(t *testing.T) {
	fn, suffix, ok := indexerFor("archive.tar.gz")
	require.True(t, ok)
	assert.Equal(t, ".tar.gz", suffix)
	assert.NotNil(t, fn)

	fn, suffix, ok = indexerFor("plain.gz")
	require.True(t, ok)
	assert.Equal(t, ".gz", suffix)
	assert.NotNil(t, fn)
}

// fakeOpener is an in-memory Opener for cache tests.
type fakeOpener struct {
	data    []byte
	mod     time.Time
	opens   int
}

func (f *fakeOpener) Stat(ctx context.Context) (vpath.EntryMetadata, error) {
	return vpath.EntryMetadata{Size: uint64(len(f.data)), ModTime: f.mod, Kind: vpath.KindFile}, nil
}

func (f *fakeOpener) OpenRead(ctx context.Context, options ...vpath.OpenOption) (io.ReadCloser, error) {
	f.opens++
	return io.NopCloser(bytes.NewReader(f.data)), nil
}

func TestCacheGetIndexCachesUntilMTimeChanges(t *testing.T) {
	data := buildZip(t)
	opener := &fakeOpener{data: data, mod: time.Unix(1000, 0)}
	c := New(Options{})

	idx1, err := c.GetIndex(context.Background(), "a.zip", opener)
	require.NoError(t, err)
	idx2, err := c.GetIndex(context.Background(), "a.zip", opener)
	require.NoError(t, err)
	assert.Same(t, idx1, idx2)
	assert.Equal(t, 1, opener.opens)

	opener.mod = time.Unix(2000, 0)
	idx3, err := c.GetIndex(context.Background(), "a.zip", opener)
	require.NoError(t, err)
	assert.NotSame(t, idx1, idx3)
	assert.Equal(t, 2, opener.opens)
}

func TestCacheContentEviction(t *testing.T) {
	c := New(Options{MaxContentEntries: 2, MaxContentBytes: 1 << 20})
	c.PutContent("a.zip", 1, "one", []byte("1"))
	c.PutContent("a.zip", 1, "two", []byte("2"))
	c.PutContent("a.zip", 1, "three", []byte("3"))

	_, ok := c.GetContent("a.zip", 1, "one")
	assert.False(t, ok, "least recently used entry should have been evicted")

	_, ok = c.GetContent("a.zip", 1, "two")
	assert.True(t, ok)
	_, ok = c.GetContent("a.zip", 1, "three")
	assert.True(t, ok)
}

func TestCacheContentByteBoundEviction(t *testing.T) {
	c := New(Options{MaxContentEntries: 100, MaxContentBytes: 10})
	c.PutContent("a.zip", 1, "big", bytes.Repeat([]byte("x"), 8))
	c.PutContent("a.zip", 1, "small", []byte("yyy"))
	_, ok := c.GetContent("a.zip", 1, "big")
	assert.False(t, ok)
}

func TestCacheTextLikeSniffsContent(t *testing.T) {
	c := New(Options{})
	c.PutContent("a.zip", 1, "readme.txt", []byte("plain prose, nothing fancy here"))
	c.PutContent("a.zip", 1, "photo.png", []byte("\x89PNG\r\n\x1a\n"+string(bytes.Repeat([]byte{0}, 32))))

	textLike, found := c.TextLike("a.zip", 1, "readme.txt")
	require.True(t, found)
	assert.True(t, textLike)

	textLike, found = c.TextLike("a.zip", 1, "photo.png")
	require.True(t, found)
	assert.False(t, textLike)

	_, found = c.TextLike("a.zip", 1, "never-extracted.bin")
	assert.False(t, found)
}
