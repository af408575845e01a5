package archivecache

import (
	"bytes"
	"container/list"
	"context"
	"io"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"

	"github.com/duofs/duofs/duoerr"
	"github.com/duofs/duofs/vpath"
)

// Opener stats and opens a host archive file. It is the narrow slice of
// vpath.Path the cache needs, so archivecache doesn't import any
// concrete backend.
type Opener interface {
	Stat(ctx context.Context) (vpath.EntryMetadata, error)
	OpenRead(ctx context.Context, options ...vpath.OpenOption) (io.ReadCloser, error)
}

// ReadAtCloser is what an opened host archive needs to support: seeking
// for zip's random access central directory, sequential read for tar.
type ReadAtCloser interface {
	Read(p []byte) (int, error)
	ReadAt(p []byte, off int64) (int, error)
	Seek(offset int64, whence int) (int64, error)
	Close() error
}

// Options bounds the Cache's resource usage. Zero values fall back to
// the package defaults; the precise numbers are an implementation
// choice the spec leaves open (see DESIGN.md).
type Options struct {
	MaxContentEntries int
	MaxContentBytes   int64
}

// DefaultOptions is this package's own default bound: 256 entries or
// 256 MiB of cached content, whichever is reached first.
var DefaultOptions = Options{
	MaxContentEntries: 256,
	MaxContentBytes:   256 * 1024 * 1024,
}

type indexKey struct {
	hostPath string
	hostMod  int64 // UnixNano, so a zero-value time.Time key is distinguishable from "unset"
}

type contentKey struct {
	hostPath  string
	hostMod   int64
	entryPath string
}

// Cache holds both the (host_path, host_mtime) -> Index map from spec
// 4.2 and the bounded extracted-bytes content cache, LRU evicted.
type Cache struct {
	opt Options

	mu      sync.Mutex
	indexes map[indexKey]*Index

	contentMu    sync.Mutex
	contentBytes int64
	contentLRU   *list.List // front = most recently used
	contentMap   map[contentKey]*list.Element
}

type contentCacheEntry struct {
	key      contentKey
	data     []byte
	textLike bool
}

// New builds a Cache with opt bounds (DefaultOptions if opt is the zero
// value).
func New(opt Options) *Cache {
	if opt.MaxContentEntries == 0 {
		opt.MaxContentEntries = DefaultOptions.MaxContentEntries
	}
	if opt.MaxContentBytes == 0 {
		opt.MaxContentBytes = DefaultOptions.MaxContentBytes
	}
	return &Cache{
		opt:        opt,
		indexes:    make(map[indexKey]*Index),
		contentLRU: list.New(),
		contentMap: make(map[contentKey]*list.Element),
	}
}

// Indexer builds an Index by fully scanning a freshly opened host
// archive. Each supported format registers one via RegisterIndexer.
type Indexer func(ctx context.Context, hostPath string, r ReadAtCloser, size int64) ([]Entry, error)

var (
	indexerMu sync.RWMutex
	indexers  = map[string]Indexer{} // by suffix, longest match wins
)

// RegisterIndexer associates suffix (e.g. ".tar.gz") with an Indexer.
// Called from each format's init(), mirroring the archiver.Register
// pattern in rclone's backend/archive/archiver.
func RegisterIndexer(suffix string, fn Indexer) {
	indexerMu.Lock()
	defer indexerMu.Unlock()
	indexers[suffix] = fn
}

// indexerFor finds the most specific registered indexer for hostPath by
// longest matching suffix, so ".tar.gz" is preferred over ".gz".
func indexerFor(hostPath string) (Indexer, string, bool) {
	indexerMu.RLock()
	defer indexerMu.RUnlock()
	var best string
	var bestFn Indexer
	for suffix, fn := range indexers {
		if len(suffix) > len(best) && hasSuffix(hostPath, suffix) {
			best = suffix
			bestFn = fn
		}
	}
	if best == "" {
		return nil, "", false
	}
	return bestFn, best, true
}

func hasSuffix(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}

// GetIndex returns the Index for the archive at hostPath, consulting
// the cache first and rebuilding (replacing any stale entry) when the
// host file's mtime has changed since it was cached.
func (c *Cache) GetIndex(ctx context.Context, hostPath string, host Opener) (*Index, error) {
	meta, err := host.Stat(ctx)
	if err != nil {
		return nil, err
	}
	key := indexKey{hostPath: hostPath, hostMod: meta.ModTime.UnixNano()}

	c.mu.Lock()
	if idx, ok := c.indexes[key]; ok {
		c.mu.Unlock()
		return idx, nil
	}
	c.mu.Unlock()

	idx, err := c.buildIndex(ctx, hostPath, host, meta)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	// Evict any stale entry for this host path under an old mtime.
	for k := range c.indexes {
		if k.hostPath == hostPath && k != key {
			delete(c.indexes, k)
		}
	}
	c.indexes[key] = idx
	c.mu.Unlock()
	return idx, nil
}

// asReadAtCloser adapts an opened host stream to the seek+random-access
// shape zip indexing needs. A stream that already satisfies ReadAtCloser
// (the local backend's *os.File, the sftp backend's *sftp.File) is used
// directly; anything else (a plain sequential stream, such as an s3
// object body) is buffered into memory first.
func asReadAtCloser(rc io.ReadCloser) (ReadAtCloser, error) {
	if ra, ok := rc.(ReadAtCloser); ok {
		return ra, nil
	}
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	return &bufferedReadAtCloser{Reader: bytes.NewReader(data)}, nil
}

type bufferedReadAtCloser struct {
	*bytes.Reader
}

func (b *bufferedReadAtCloser) Close() error { return nil }

func (c *Cache) buildIndex(ctx context.Context, hostPath string, host Opener, meta vpath.EntryMetadata) (*Index, error) {
	fn, _, ok := indexerFor(hostPath)
	if !ok {
		return nil, duoerr.Newf(duoerr.ArchiveFormatError, "index", hostPath, "unrecognized archive suffix")
	}
	rc, err := host.OpenRead(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	r, err := asReadAtCloser(rc)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	entries, err := fn(ctx, hostPath, r, int64(meta.Size))
	if err != nil {
		return nil, duoerr.New(duoerr.ArchiveFormatError, "index", hostPath, err)
	}
	return &Index{HostPath: hostPath, HostMTime: meta.ModTime, Entries: entries}, nil
}

// InvalidateHost drops every cached index for hostPath, used when a
// caller knows the host file changed out from under a cached mtime
// (e.g. it was just overwritten by this process).
func (c *Cache) InvalidateHost(hostPath string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.indexes {
		if k.hostPath == hostPath {
			delete(c.indexes, k)
		}
	}
}

// GetContent returns cached extracted bytes for (hostPath, hostMTime,
// entryPath) if present, moving the entry to the front of the LRU.
func (c *Cache) GetContent(hostPath string, hostMTime int64, entryPath string) ([]byte, bool) {
	c.contentMu.Lock()
	defer c.contentMu.Unlock()
	key := contentKey{hostPath, hostMTime, entryPath}
	el, ok := c.contentMap[key]
	if !ok {
		return nil, false
	}
	c.contentLRU.MoveToFront(el)
	return el.Value.(*contentCacheEntry).data, true
}

// PutContent stores extracted bytes for (hostPath, hostMTime,
// entryPath), evicting least-recently-used entries until both bounds
// are satisfied. It also sniffs data with mimetype.Detect to classify
// the entry as text-like or binary, consumed by TextLike to answer the
// should_cache_for_search() capability query without re-reading the
// archive, matching backend/compress's use of mimetype to decide
// compressibility.
func (c *Cache) PutContent(hostPath string, hostMTime int64, entryPath string, data []byte) {
	sniffed := mimetype.Detect(data)
	textLike := strings.HasPrefix(sniffed.String(), "text/") || sniffed.Is("application/json") || sniffed.Is("application/xml")

	c.contentMu.Lock()
	defer c.contentMu.Unlock()
	key := contentKey{hostPath, hostMTime, entryPath}
	if el, ok := c.contentMap[key]; ok {
		old := el.Value.(*contentCacheEntry)
		c.contentBytes -= int64(len(old.data))
		old.data = data
		old.textLike = textLike
		c.contentBytes += int64(len(data))
		c.contentLRU.MoveToFront(el)
	} else {
		el := c.contentLRU.PushFront(&contentCacheEntry{key: key, data: data, textLike: textLike})
		c.contentMap[key] = el
		c.contentBytes += int64(len(data))
	}
	c.evict()
}

// TextLike reports whether the most recently cached content for
// (hostPath, hostMTime, entryPath) sniffed as text, and whether any
// sniff result is cached at all (found=false before the entry has ever
// been extracted once).
func (c *Cache) TextLike(hostPath string, hostMTime int64, entryPath string) (textLike, found bool) {
	c.contentMu.Lock()
	defer c.contentMu.Unlock()
	key := contentKey{hostPath, hostMTime, entryPath}
	el, ok := c.contentMap[key]
	if !ok {
		return false, false
	}
	return el.Value.(*contentCacheEntry).textLike, true
}

func (c *Cache) evict() {
	for (len(c.contentMap) > c.opt.MaxContentEntries || c.contentBytes > c.opt.MaxContentBytes) && c.contentLRU.Len() > 0 {
		back := c.contentLRU.Back()
		if back == nil {
			return
		}
		entry := back.Value.(*contentCacheEntry)
		c.contentLRU.Remove(back)
		delete(c.contentMap, entry.key)
		c.contentBytes -= int64(len(entry.data))
	}
}
