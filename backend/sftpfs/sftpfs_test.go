package sftpfs

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFileInfo is a minimal os.FileInfo for exercising the stat cache
// without a real SFTP server.
type fakeFileInfo struct {
	name string
}

func (f fakeFileInfo) Name() string       { return f.name }
func (f fakeFileInfo) Size() int64        { return 42 }
func (f fakeFileInfo) Mode() os.FileMode  { return 0644 }
func (f fakeFileInfo) ModTime() time.Time { return time.Unix(1000, 0) }
func (f fakeFileInfo) IsDir() bool        { return false }
func (f fakeFileInfo) Sys() interface{}   { return nil }

func TestParseWithUserAndPort(t *testing.T) {
	p, err := backend{}.Parse("scp://alice@example.com:2222/home/alice/docs")
	require.NoError(t, err)
	got := p.(Path)
	assert.Equal(t, "alice", got.user)
	assert.Equal(t, "example.com", got.host)
	assert.Equal(t, "2222", got.port)
	assert.Equal(t, "/home/alice/docs", got.remote)
}

func TestParseDefaultsPortAndUser(t *testing.T) {
	p, err := backend{}.Parse("scp://example.com/")
	require.NoError(t, err)
	got := p.(Path)
	assert.Equal(t, "22", got.port)
	assert.NotEmpty(t, got.user)
	assert.Equal(t, "/", got.remote)
}

func TestJoinAndParent(t *testing.T) {
	p := Path{user: "bob", host: "h", port: "22", remote: "/a"}
	child := p.Join("b")
	assert.Equal(t, "scp://bob@h:22/a/b", child.String())
	assert.Equal(t, "scp://bob@h:22/a", child.Parent().String())
}

func TestNameStemSuffix(t *testing.T) {
	p := Path{user: "u", host: "h", port: "22", remote: "/dir/archive.tar.gz"}
	assert.Equal(t, "archive.tar.gz", p.Name())
	assert.Equal(t, ".gz", p.Suffix())
}

func TestCapabilities(t *testing.T) {
	p := Path{user: "u", host: "h", port: "22", remote: "/x"}
	assert.True(t, p.SupportsWriteOperations())
	assert.True(t, p.SupportsDirectoryRename())
	assert.True(t, p.SupportsFileEditing())
	assert.True(t, p.IsRemote())
}

// TestConnStatCacheHitsAfterBulkListing exercises the cache a listing
// populates: a stat for a path cached by a prior Iterdir (or a direct
// stat) is served without touching the network, the improvement
// test_ssh_bulk_stat_performance.py measures in the original.
func TestConnStatCacheHitsAfterBulkListing(t *testing.T) {
	c := &conn{stats: map[string]statEntry{}}

	_, ok := c.cachedStat("/dir/file0.txt")
	assert.False(t, ok, "nothing cached yet")

	for i := 0; i < 100; i++ {
		c.cacheStat("/dir/file"+string(rune('0'+i%10))+".txt", fakeFileInfo{name: "file.txt"})
	}

	fi, ok := c.cachedStat("/dir/file0.txt")
	require.True(t, ok)
	assert.Equal(t, int64(42), fi.Size())
}

func TestConnStatCacheInvalidation(t *testing.T) {
	c := &conn{stats: map[string]statEntry{}}
	c.cacheStat("/dir/a.txt", fakeFileInfo{name: "a.txt"})

	_, ok := c.cachedStat("/dir/a.txt")
	require.True(t, ok)

	c.invalidateStat("/dir/a.txt")
	_, ok = c.cachedStat("/dir/a.txt")
	assert.False(t, ok, "invalidated entries must force a fresh stat")
}

func TestConnStatCacheExpiresAfterTTL(t *testing.T) {
	c := &conn{stats: map[string]statEntry{}}
	c.stats["/dir/a.txt"] = statEntry{fi: fakeFileInfo{name: "a.txt"}, cached: time.Now().Add(-statCacheTTL - time.Second)}

	_, ok := c.cachedStat("/dir/a.txt")
	assert.False(t, ok, "stale entries past statCacheTTL must not be served")
}
