package archivecache

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWriterZipRoundTripsThroughIndexer(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter("out.zip", &buf)
	require.NoError(t, err)

	require.NoError(t, w.WriteDir("sub", time.Now()))
	require.NoError(t, w.WriteFile("sub/file.txt", time.Now(), 5, bytes.NewReader([]byte("hello"))))
	require.NoError(t, w.Close())

	data := buf.Bytes()
	entries, err := indexZip(context.Background(), "out.zip", &fakeReadAtCloser{bytes.NewReader(data)}, int64(len(data)))
	require.NoError(t, err)

	var found bool
	for _, e := range entries {
		if e.Path == "sub/file.txt" {
			found = true
			assert.Equal(t, uint64(5), e.Size)
		}
	}
	assert.True(t, found)
}

func TestNewWriterTarGzRoundTripsThroughIndexer(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter("out.tar.gz", &buf)
	require.NoError(t, err)

	require.NoError(t, w.WriteFile("thing.bin", time.Now(), 7, bytes.NewReader([]byte("payload"))))
	require.NoError(t, w.Close())

	data := buf.Bytes()
	entries, err := indexTarGzip(context.Background(), "out.tar.gz", &fakeReadAtCloser{bytes.NewReader(data)}, int64(len(data)))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "thing.bin", entries[0].Path)
	assert.Equal(t, uint64(7), entries[0].Size)
}

func TestNewWriterRejectsUnknownSuffix(t *testing.T) {
	var buf bytes.Buffer
	_, err := NewWriter("notes.txt", &buf)
	assert.Error(t, err)
}
