// Package local provides a vpath.Path implementation rooted at the
// native filesystem, in the style of rclone's backend/local: a thin
// Options struct decoded from config tags, and a value type wrapping an
// absolute native path that does every operation with direct os calls.
package local

import (
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/duofs/duofs/duoerr"
	"github.com/duofs/duofs/internal/configstruct"
	"github.com/duofs/duofs/vpath"
)

// Options configures the local backend. There is currently one knob;
// more follow the same config-tag pattern rclone uses throughout its
// backends.
type Options struct {
	NoFollowSymlinks bool `config:"no_follow_symlinks"`
}

var opt = Options{}

func init() {
	if err := configstruct.Set(configstruct.Empty{}, &opt); err != nil {
		panic(err)
	}
	vpath.Register(backend{})
}

// backend implements vpath.Backend for the file scheme.
type backend struct{}

func (backend) Scheme() vpath.Scheme { return vpath.SchemeFile }

func (backend) Parse(uri string) (vpath.Path, error) {
	if uri == "" {
		return nil, duoerr.New(duoerr.InvalidPath, "parse", uri, nil)
	}
	abs, err := filepath.Abs(uri)
	if err != nil {
		return nil, duoerr.New(duoerr.InvalidPath, "parse", uri, err)
	}
	return Path{native: filepath.Clean(abs)}, nil
}

// New wraps an already-absolute native path directly, for callers (such
// as the archive backend, locating its host file) that already hold a
// resolved path and don't want to round-trip through Parse.
func New(native string) Path {
	return Path{native: filepath.Clean(native)}
}

// Path is a native filesystem location. It is a value type: cheap to
// copy, carrying nothing but the cleaned absolute path string.
type Path struct {
	native string
}

var _ vpath.Path = Path{}

func (p Path) String() string     { return p.native }
func (p Path) Scheme() vpath.Scheme { return vpath.SchemeFile }

func classify(op, path string, err error) error {
	if err == nil {
		return nil
	}
	if os.IsNotExist(err) {
		return duoerr.New(duoerr.NotFound, op, path, err)
	}
	if os.IsExist(err) {
		return duoerr.New(duoerr.AlreadyExists, op, path, err)
	}
	if os.IsPermission(err) {
		return duoerr.New(duoerr.PermissionDenied, op, path, err)
	}
	if isNoSpace(err) {
		return duoerr.New(duoerr.DiskSpaceExhausted, op, path, err)
	}
	return duoerr.New(duoerr.Other, op, path, err)
}

func (p Path) Iterdir(ctx context.Context) ([]vpath.Path, error) {
	infos, err := ioutil.ReadDir(p.native)
	if err != nil {
		return nil, classify("iterdir", p.native, err)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name() < infos[j].Name() })
	out := make([]vpath.Path, 0, len(infos))
	for _, fi := range infos {
		out = append(out, Path{native: filepath.Join(p.native, fi.Name())})
	}
	return out, nil
}

func (p Path) lstat() (os.FileInfo, error) {
	return os.Lstat(p.native)
}

func (p Path) Exists(ctx context.Context) (bool, error) {
	_, err := p.lstat()
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, classify("exists", p.native, err)
}

func (p Path) IsDir(ctx context.Context) (bool, error) {
	fi, err := p.lstat()
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, classify("is_dir", p.native, err)
	}
	return fi.IsDir(), nil
}

func (p Path) IsFile(ctx context.Context) (bool, error) {
	fi, err := p.lstat()
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, classify("is_file", p.native, err)
	}
	return fi.Mode().IsRegular(), nil
}

func (p Path) IsSymlink(ctx context.Context) (bool, error) {
	fi, err := p.lstat()
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, classify("is_symlink", p.native, err)
	}
	return fi.Mode()&os.ModeSymlink != 0, nil
}

func (p Path) Stat(ctx context.Context) (vpath.EntryMetadata, error) {
	fi, err := p.lstat()
	if err != nil {
		return vpath.EntryMetadata{}, classify("stat", p.native, err)
	}
	kind := vpath.KindFile
	switch {
	case fi.Mode()&os.ModeSymlink != 0:
		kind = vpath.KindSymlink
	case fi.IsDir():
		kind = vpath.KindDir
	}
	return vpath.EntryMetadata{
		Size:     uint64(fi.Size()),
		ModTime:  fi.ModTime(),
		ModeBits: uint32(fi.Mode().Perm()),
		Kind:     kind,
	}, nil
}

func (p Path) ReadBytes(ctx context.Context) ([]byte, error) {
	b, err := ioutil.ReadFile(p.native)
	if err != nil {
		return nil, classify("read_bytes", p.native, err)
	}
	return b, nil
}

func (p Path) ReadText(ctx context.Context) (string, error) {
	b, err := p.ReadBytes(ctx)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (p Path) OpenRead(ctx context.Context, options ...vpath.OpenOption) (io.ReadCloser, error) {
	f, err := os.Open(p.native)
	if err != nil {
		return nil, classify("open_read", p.native, err)
	}
	return f, nil
}

func (p Path) WriteText(ctx context.Context, s string) error {
	return p.WriteBytes(ctx, []byte(s))
}

func (p Path) WriteBytes(ctx context.Context, b []byte) error {
	if err := ioutil.WriteFile(p.native, b, 0644); err != nil {
		return classify("write_bytes", p.native, err)
	}
	return nil
}

func (p Path) Touch(ctx context.Context) error {
	now := time.Now()
	if err := os.Chtimes(p.native, now, now); err == nil {
		return nil
	}
	f, err := os.OpenFile(p.native, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return classify("touch", p.native, err)
	}
	return f.Close()
}

func (p Path) Mkdir(ctx context.Context) error {
	if err := os.MkdirAll(p.native, 0777); err != nil {
		return classify("mkdir", p.native, err)
	}
	return nil
}

func (p Path) Unlink(ctx context.Context) error {
	if err := os.Remove(p.native); err != nil {
		return classify("unlink", p.native, err)
	}
	return nil
}

func (p Path) Rmdir(ctx context.Context) error {
	fi, err := p.lstat()
	if err != nil {
		return classify("rmdir", p.native, err)
	}
	if !fi.IsDir() {
		return duoerr.New(duoerr.UnsupportedOperation, "rmdir", p.native, nil)
	}
	if err := os.Remove(p.native); err != nil {
		return classify("rmdir", p.native, err)
	}
	return nil
}

func (p Path) Rename(ctx context.Context, newName string) (vpath.Path, error) {
	dst := filepath.Join(filepath.Dir(p.native), newName)
	if err := os.Rename(p.native, dst); err != nil {
		return nil, classify("rename", p.native, err)
	}
	return Path{native: dst}, nil
}

// CopyTo copies this path to dst. When dst is also a local Path this
// takes the native byte-copy fast path (matching rclone's preference
// for a same-scheme native copy over streaming); otherwise it streams
// through io.Copy via the generic Path contract.
func (p Path) CopyTo(ctx context.Context, dst vpath.Path) error {
	isDir, err := p.IsDir(ctx)
	if err != nil {
		return err
	}
	if isDir {
		return p.copyDirTo(ctx, dst)
	}
	if local, ok := dst.(Path); ok {
		return p.copyFileNative(local)
	}
	return streamCopy(ctx, p, dst)
}

func (p Path) copyDirTo(ctx context.Context, dst vpath.Path) error {
	if err := dst.Mkdir(ctx); err != nil {
		return err
	}
	children, err := p.Iterdir(ctx)
	if err != nil {
		return err
	}
	for _, child := range children {
		childName := child.Name()
		if err := child.CopyTo(ctx, dst.Join(childName)); err != nil {
			return err
		}
	}
	return nil
}

func (p Path) copyFileNative(dst Path) error {
	in, err := os.Open(p.native)
	if err != nil {
		return classify("copy", p.native, err)
	}
	defer in.Close()
	out, err := os.OpenFile(dst.native, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return classify("copy", dst.native, err)
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return classify("copy", dst.native, err)
	}
	if fi, err := p.lstat(); err == nil {
		_ = os.Chtimes(dst.native, fi.ModTime(), fi.ModTime())
	}
	return nil
}

// streamCopy is the cross-scheme fallback: read fully from src, write
// fully to dst. Backends that can stream larger-than-memory transfers
// more cheaply may still call this for the small/simple case.
func streamCopy(ctx context.Context, src, dst vpath.Path) error {
	r, err := src.OpenRead(ctx)
	if err != nil {
		return err
	}
	defer r.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return duoerr.New(duoerr.Other, "copy", src.String(), err)
	}
	return dst.WriteBytes(ctx, buf.Bytes())
}

// MoveTo moves this path to dst. Same-device moves take the native
// os.Rename fast path; everything else falls back to copy+delete.
func (p Path) MoveTo(ctx context.Context, dst vpath.Path, overwrite bool) error {
	if exists, _ := dst.Exists(ctx); exists && !overwrite {
		return duoerr.New(duoerr.AlreadyExists, "move", dst.String(), nil)
	}
	if local, ok := dst.(Path); ok {
		if err := os.Rename(p.native, local.native); err == nil {
			return nil
		}
		// EXDEV or similar: fall through to copy+delete.
	}
	if err := p.CopyTo(ctx, dst); err != nil {
		return err
	}
	isDir, err := p.IsDir(ctx)
	if err != nil {
		return err
	}
	if isDir {
		return os.RemoveAll(p.native)
	}
	return p.Unlink(ctx)
}

func (p Path) Glob(ctx context.Context, pattern string) ([]vpath.Path, error) {
	matches, err := filepath.Glob(filepath.Join(p.native, pattern))
	if err != nil {
		return nil, duoerr.New(duoerr.InvalidPath, "glob", pattern, err)
	}
	out := make([]vpath.Path, 0, len(matches))
	for _, m := range matches {
		out = append(out, Path{native: m})
	}
	return out, nil
}

func (p Path) Rglob(ctx context.Context, pattern string) ([]vpath.Path, error) {
	var out []vpath.Path
	err := filepath.Walk(p.native, func(walkPath string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		ok, err := filepath.Match(pattern, info.Name())
		if err != nil {
			return err
		}
		if ok {
			out = append(out, Path{native: walkPath})
		}
		return nil
	})
	if err != nil {
		return nil, classify("rglob", p.native, err)
	}
	return out, nil
}

func (p Path) Join(segment string) vpath.Path {
	return Path{native: filepath.Join(p.native, segment)}
}

func (p Path) Parent() vpath.Path {
	return Path{native: filepath.Dir(p.native)}
}

func (p Path) Name() string {
	return filepath.Base(p.native)
}

func (p Path) Stem() string {
	n := p.Name()
	return strings.TrimSuffix(n, filepath.Ext(n))
}

func (p Path) Suffix() string {
	return filepath.Ext(p.native)
}

func (p Path) SupportsWriteOperations() bool     { return true }
func (p Path) SupportsDirectoryRename() bool     { return true }
func (p Path) SupportsFileEditing() bool         { return true }
func (p Path) RequiresExtractionForReading() bool { return false }
func (p Path) SupportsStreamingRead() bool       { return true }
func (p Path) GetSearchStrategy() vpath.SearchStrategy { return vpath.StrategyStreaming }
func (p Path) ShouldCacheForSearch() bool        { return false }
func (p Path) IsRemote() bool                    { return false }

func (p Path) GetDisplayPrefix() string { return "" }
func (p Path) GetDisplayTitle() string  { return p.native }

func (p Path) GetExtendedMetadata(ctx context.Context) (vpath.ExtendedMetadata, error) {
	meta, err := p.Stat(ctx)
	if err != nil {
		return vpath.ExtendedMetadata{}, err
	}
	return vpath.ExtendedMetadata{
		Type: "local",
		Details: []vpath.KeyValue{
			{Label: "Path", Value: p.native},
			{Label: "Mode", Value: os.FileMode(meta.ModeBits).String()},
		},
		FormatHint: "",
	}, nil
}
