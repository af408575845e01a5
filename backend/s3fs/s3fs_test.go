package s3fs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duofs/duofs/vpath"
)

func TestParseRoundTrip(t *testing.T) {
	p, err := backend{}.Parse("s3://my-bucket/some/key.txt")
	require.NoError(t, err)
	assert.Equal(t, "s3://my-bucket/some/key.txt", p.String())

	root, err := backend{}.Parse("s3://")
	require.NoError(t, err)
	assert.Equal(t, "s3://", root.String())

	bucketOnly, err := backend{}.Parse("s3://my-bucket")
	require.NoError(t, err)
	assert.Equal(t, "s3://my-bucket", bucketOnly.String())
}

func TestJoinAndParent(t *testing.T) {
	root := Path{}
	bucket := root.Join("my-bucket")
	assert.Equal(t, "s3://my-bucket", bucket.String())

	key := bucket.Join("dir").Join("file.txt")
	assert.Equal(t, "s3://my-bucket/dir/file.txt", key.String())

	parent := key.Parent()
	assert.Equal(t, "s3://my-bucket/dir", parent.String())
}

func TestNameStemSuffix(t *testing.T) {
	p := New("bucket", "path/to/archive.tar.gz")
	assert.Equal(t, "archive.tar.gz", p.Name())
	assert.Equal(t, ".gz", p.Suffix())
	assert.Equal(t, "archive.tar", p.Stem())
}

func TestCapabilities(t *testing.T) {
	p := New("bucket", "key")
	assert.True(t, p.SupportsWriteOperations())
	assert.False(t, p.SupportsDirectoryRename())
	assert.True(t, p.SupportsStreamingRead())
	assert.Equal(t, vpath.StrategyBuffered, p.GetSearchStrategy())
	assert.True(t, p.IsRemote())
}

func TestDirPrefix(t *testing.T) {
	assert.Equal(t, "", Path{}.dirPrefix())
	assert.Equal(t, "dir/", New("b", "dir").dirPrefix())
}
