// Package archivefs provides a vpath.Path implementation that browses
// inside an archive file without ever extracting it to disk, in the
// style of rclone's backend/archive: a thin wrapper Fs around whichever
// remote actually holds the archive bytes, here generalized from
// wrapping an fs.Fs to wrapping any vpath.Path.
//
// The cache of which entries an archive contains, and of recently
// extracted entry bytes, lives in package archivecache; this package
// only knows how to address one entry within one archive and how to
// turn that address into a round-trippable URI.
package archivefs

import (
	"bytes"
	"context"
	"io"
	"path"
	"strings"
	"time"

	"github.com/duofs/duofs/archivecache"
	"github.com/duofs/duofs/duoerr"
	"github.com/duofs/duofs/vpath"
)

// sharedCache is the process-wide archive index/content cache, mirroring
// rclone's fs/cache pinned-singleton registry but scoped to this one
// backend rather than the whole Fs graph.
var sharedCache = archivecache.New(archivecache.Options{})

func init() {
	vpath.Register(backend{})
}

type backend struct{}

func (backend) Scheme() vpath.Scheme { return vpath.SchemeArchive }

func (backend) Parse(uri string) (vpath.Path, error) {
	const prefix = "archive://"
	if !strings.HasPrefix(uri, prefix) {
		return nil, duoerr.New(duoerr.InvalidPath, "parse", uri, nil)
	}
	rest := uri[len(prefix):]
	// spec.md §3.1/§6.2: archive://<host_path>#<inner_key>. The host
	// path itself is a round-tripped canonical Path string (local,
	// s3 or scp) and none of those ever contain '#', so splitting on
	// the first occurrence is unambiguous.
	hash := strings.IndexByte(rest, '#')
	if hash < 0 {
		return nil, duoerr.Newf(duoerr.InvalidPath, "parse", uri, "missing '#' separating host archive from inner key")
	}
	hostURI, entryPath := rest[:hash], rest[hash+1:]
	if hostURI == "" {
		return nil, duoerr.Newf(duoerr.InvalidPath, "parse", uri, "empty host archive path")
	}
	return Path{hostURI: hostURI, entryPath: strings.Trim(entryPath, "/")}, nil
}

// Root returns the Path addressing the top of the archive hosted at
// hostURI (the canonical String() of some other scheme's Path, usually
// local, pointing at the .zip/.tar.gz/etc file itself).
func Root(hostURI string) Path {
	return Path{hostURI: hostURI}
}

// Path addresses one entry (file, directory, or the archive root) inside
// a host archive file. It is a value type: the host archive is only
// opened lazily, on demand, by resolving hostURI through vpath.Parse.
type Path struct {
	hostURI   string
	entryPath string // "" is the archive root
}

var _ vpath.Path = Path{}

func (p Path) String() string {
	return "archive://" + p.hostURI + "#" + p.entryPath
}

func (p Path) Scheme() vpath.Scheme { return vpath.SchemeArchive }

func (p Path) host() (vpath.Path, error) {
	h, err := vpath.Parse(p.hostURI)
	if err != nil {
		return nil, duoerr.New(duoerr.InvalidPath, "resolve_host", p.hostURI, err)
	}
	return h, nil
}

func (p Path) index(ctx context.Context) (*archivecache.Index, vpath.Path, error) {
	host, err := p.host()
	if err != nil {
		return nil, nil, err
	}
	idx, err := sharedCache.GetIndex(ctx, p.hostURI, host)
	if err != nil {
		return nil, nil, err
	}
	return idx, host, nil
}

func (p Path) Iterdir(ctx context.Context) ([]vpath.Path, error) {
	idx, _, err := p.index(ctx)
	if err != nil {
		return nil, err
	}
	children := idx.Children(p.entryPath)
	out := make([]vpath.Path, 0, len(children))
	for _, c := range children {
		out = append(out, Path{hostURI: p.hostURI, entryPath: c.Path})
	}
	return out, nil
}

func (p Path) entry(ctx context.Context) (archivecache.Entry, bool, error) {
	idx, _, err := p.index(ctx)
	if err != nil {
		return archivecache.Entry{}, false, err
	}
	e, ok := idx.Lookup(p.entryPath)
	return e, ok, nil
}

func (p Path) Exists(ctx context.Context) (bool, error) {
	if p.entryPath == "" {
		return true, nil
	}
	idx, _, err := p.index(ctx)
	if err != nil {
		return false, err
	}
	if _, ok := idx.Lookup(p.entryPath); ok {
		return true, nil
	}
	return idx.IsVirtualDir(p.entryPath), nil
}

func (p Path) IsDir(ctx context.Context) (bool, error) {
	if p.entryPath == "" {
		return true, nil
	}
	idx, _, err := p.index(ctx)
	if err != nil {
		return false, err
	}
	if e, ok := idx.Lookup(p.entryPath); ok {
		return e.Kind == vpath.KindDir, nil
	}
	return idx.IsVirtualDir(p.entryPath), nil
}

func (p Path) IsFile(ctx context.Context) (bool, error) {
	isDir, err := p.IsDir(ctx)
	if err != nil {
		return false, err
	}
	if isDir {
		return false, nil
	}
	exists, err := p.Exists(ctx)
	return exists, err
}

func (p Path) IsSymlink(ctx context.Context) (bool, error) {
	e, ok, err := p.entry(ctx)
	if err != nil {
		return false, err
	}
	return ok && e.Kind == vpath.KindSymlink, nil
}

func (p Path) Stat(ctx context.Context) (vpath.EntryMetadata, error) {
	if p.entryPath == "" {
		host, err := p.host()
		if err != nil {
			return vpath.EntryMetadata{}, err
		}
		meta, err := host.Stat(ctx)
		if err != nil {
			return vpath.EntryMetadata{}, err
		}
		meta.Kind = vpath.KindDir
		return meta, nil
	}
	idx, host, err := p.index(ctx)
	if err != nil {
		return vpath.EntryMetadata{}, err
	}
	if e, ok := idx.Lookup(p.entryPath); ok {
		return vpath.EntryMetadata{Size: e.Size, ModTime: e.ModTime, Kind: e.Kind}, nil
	}
	if idx.IsVirtualDir(p.entryPath) {
		meta, err := host.Stat(ctx)
		if err != nil {
			return vpath.EntryMetadata{}, err
		}
		return vpath.EntryMetadata{Kind: vpath.KindDir, ModTime: meta.ModTime}, nil
	}
	return vpath.EntryMetadata{}, duoerr.New(duoerr.NotFound, "stat", p.String(), nil)
}

func (p Path) ReadBytes(ctx context.Context) ([]byte, error) {
	idx, host, err := p.index(ctx)
	if err != nil {
		return nil, err
	}
	e, ok := idx.Lookup(p.entryPath)
	if !ok {
		return nil, duoerr.New(duoerr.NotFound, "read_bytes", p.String(), nil)
	}
	if e.Kind == vpath.KindDir {
		return nil, duoerr.New(duoerr.UnsupportedOperation, "read_bytes", p.String(), nil)
	}
	return sharedCache.ExtractEntry(ctx, p.hostURI, host, e)
}

func (p Path) ReadText(ctx context.Context) (string, error) {
	b, err := p.ReadBytes(ctx)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// OpenRead extracts the entry fully (through the content cache) and
// hands back an in-memory reader: archives report
// RequiresExtractionForReading, so nothing upstream expects a true
// streaming handle here.
func (p Path) OpenRead(ctx context.Context, options ...vpath.OpenOption) (io.ReadCloser, error) {
	b, err := p.ReadBytes(ctx)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (p Path) WriteText(ctx context.Context, s string) error {
	return duoerr.New(duoerr.UnsupportedOperation, "write_text", p.String(), nil)
}

func (p Path) WriteBytes(ctx context.Context, b []byte) error {
	return duoerr.New(duoerr.UnsupportedOperation, "write_bytes", p.String(), nil)
}

func (p Path) Touch(ctx context.Context) error {
	return duoerr.New(duoerr.UnsupportedOperation, "touch", p.String(), nil)
}

func (p Path) Mkdir(ctx context.Context) error {
	return duoerr.New(duoerr.UnsupportedOperation, "mkdir", p.String(), nil)
}

func (p Path) Unlink(ctx context.Context) error {
	return duoerr.New(duoerr.UnsupportedOperation, "unlink", p.String(), nil)
}

func (p Path) Rmdir(ctx context.Context) error {
	return duoerr.New(duoerr.UnsupportedOperation, "rmdir", p.String(), nil)
}

func (p Path) Rename(ctx context.Context, newName string) (vpath.Path, error) {
	return nil, duoerr.New(duoerr.UnsupportedOperation, "rename", p.String(), nil)
}

// CopyTo reads this entry (or recursively, this directory's entries)
// out of the archive and writes it to dst; the archive side is always
// the source, since archives never accept writes.
func (p Path) CopyTo(ctx context.Context, dst vpath.Path) error {
	isDir, err := p.IsDir(ctx)
	if err != nil {
		return err
	}
	if isDir {
		if err := dst.Mkdir(ctx); err != nil {
			return err
		}
		children, err := p.Iterdir(ctx)
		if err != nil {
			return err
		}
		for _, c := range children {
			if err := c.CopyTo(ctx, dst.Join(c.Name())); err != nil {
				return err
			}
		}
		return nil
	}
	b, err := p.ReadBytes(ctx)
	if err != nil {
		return err
	}
	return dst.WriteBytes(ctx, b)
}

func (p Path) MoveTo(ctx context.Context, dst vpath.Path, overwrite bool) error {
	return duoerr.New(duoerr.UnsupportedOperation, "move", p.String(), nil)
}

func (p Path) Glob(ctx context.Context, pattern string) ([]vpath.Path, error) {
	children, err := p.Iterdir(ctx)
	if err != nil {
		return nil, err
	}
	var out []vpath.Path
	for _, c := range children {
		if ok, _ := path.Match(pattern, c.Name()); ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (p Path) Rglob(ctx context.Context, pattern string) ([]vpath.Path, error) {
	idx, _, err := p.index(ctx)
	if err != nil {
		return nil, err
	}
	var out []vpath.Path
	for _, e := range idx.Entries {
		if !strings.HasPrefix(e.Path, prefixOf(p.entryPath)) {
			continue
		}
		name := e.Path
		if slash := strings.LastIndexByte(name, '/'); slash >= 0 {
			name = name[slash+1:]
		}
		if ok, _ := path.Match(pattern, name); ok {
			out = append(out, Path{hostURI: p.hostURI, entryPath: e.Path})
		}
	}
	return out, nil
}

func prefixOf(dir string) string {
	if dir == "" {
		return ""
	}
	return dir + "/"
}

func (p Path) Join(segment string) vpath.Path {
	joined := segment
	if p.entryPath != "" {
		joined = p.entryPath + "/" + segment
	}
	return Path{hostURI: p.hostURI, entryPath: joined}
}

func (p Path) Parent() vpath.Path {
	if p.entryPath == "" {
		host, err := p.host()
		if err != nil {
			return p
		}
		return host.Parent()
	}
	if slash := strings.LastIndexByte(p.entryPath, '/'); slash >= 0 {
		return Path{hostURI: p.hostURI, entryPath: p.entryPath[:slash]}
	}
	return Path{hostURI: p.hostURI, entryPath: ""}
}

func (p Path) Name() string {
	if p.entryPath == "" {
		host, err := p.host()
		if err != nil {
			return p.hostURI
		}
		return host.Name()
	}
	if slash := strings.LastIndexByte(p.entryPath, '/'); slash >= 0 {
		return p.entryPath[slash+1:]
	}
	return p.entryPath
}

func (p Path) Stem() string {
	n := p.Name()
	if dot := strings.LastIndexByte(n, '.'); dot > 0 {
		return n[:dot]
	}
	return n
}

func (p Path) Suffix() string {
	n := p.Name()
	if dot := strings.LastIndexByte(n, '.'); dot > 0 {
		return n[dot:]
	}
	return ""
}

func (p Path) SupportsWriteOperations() bool        { return false }
func (p Path) SupportsDirectoryRename() bool        { return false }
func (p Path) SupportsFileEditing() bool            { return false }
func (p Path) RequiresExtractionForReading() bool   { return true }
func (p Path) SupportsStreamingRead() bool          { return false }
func (p Path) GetSearchStrategy() vpath.SearchStrategy { return vpath.StrategyBuffered }

// ShouldCacheForSearch defaults to true (archive entries require
// extraction to read, so the search subsystem should cache rather than
// re-extract per query) unless this entry was already extracted once
// and sniffed as binary - images, video, already-compressed blobs - in
// which case caching its bytes for text search buys nothing.
func (p Path) ShouldCacheForSearch() bool {
	host, err := p.host()
	if err != nil {
		return true
	}
	meta, err := host.Stat(context.Background())
	if err != nil {
		return true
	}
	textLike, found := sharedCache.TextLike(p.hostURI, meta.ModTime.UnixNano(), p.entryPath)
	if !found {
		return true
	}
	return textLike
}

func (p Path) IsRemote() bool {
	host, err := p.host()
	if err != nil {
		return false
	}
	return host.IsRemote()
}

func (p Path) GetDisplayPrefix() string {
	host, err := p.host()
	if err != nil {
		return ""
	}
	return host.Name() + "!"
}

func (p Path) GetDisplayTitle() string {
	if p.entryPath == "" {
		return p.GetDisplayPrefix()
	}
	return p.GetDisplayPrefix() + p.entryPath
}

func (p Path) GetExtendedMetadata(ctx context.Context) (vpath.ExtendedMetadata, error) {
	meta, err := p.Stat(ctx)
	if err != nil {
		return vpath.ExtendedMetadata{}, err
	}
	details := []vpath.KeyValue{
		{Label: "Archive", Value: p.hostURI},
		{Label: "Entry", Value: p.entryPath},
	}
	if !meta.ModTime.IsZero() {
		details = append(details, vpath.KeyValue{Label: "Modified", Value: meta.ModTime.Format(time.RFC3339)})
	}
	return vpath.ExtendedMetadata{
		Type:    "archive entry",
		Details: details,
	}, nil
}
