// Package vpath is the polymorphic filesystem facade: a single Path
// contract unifying local files, archive entries and remote stores
// behind one interface, in the spirit of rclone's fs.Fs/fs.Object split
// but collapsed into one value type per the spec this module targets.
//
// Concrete backends live under backend/... and register themselves in
// the package-wide registry via Register from an init() func, exactly as rclone's
// backends call fs.Register.
package vpath

import (
	"context"
	"io"
	"time"
)

// Scheme identifies which backend owns a Path.
type Scheme string

// The four schemes the core understands.
const (
	SchemeFile    Scheme = "file"
	SchemeArchive Scheme = "archive"
	SchemeS3      Scheme = "s3"
	SchemeSftp    Scheme = "scp"
)

// Kind classifies what an entry is on disk (or in an archive, or on a
// remote store).
type Kind int

// The entry kinds.
const (
	KindFile Kind = iota
	KindDir
	KindSymlink
)

func (k Kind) String() string {
	switch k {
	case KindDir:
		return "dir"
	case KindSymlink:
		return "symlink"
	default:
		return "file"
	}
}

// EntryMetadata is the stat() result common to every scheme.
type EntryMetadata struct {
	Size     uint64
	ModTime  time.Time
	ModeBits uint32
	Kind     Kind
}

// SearchStrategy hints to the (out of core) search subsystem how best to
// scan a Path's contents.
type SearchStrategy int

// The search strategies a capability query may report.
const (
	StrategyStreaming SearchStrategy = iota
	StrategyExtracted
	StrategyBuffered
)

// ExtendedMetadata is consumed by the (out of core) info dialog, text
// viewer title bars, and search strategy selection. The UI never
// branches on scheme; it only reads this.
type ExtendedMetadata struct {
	Type       string
	Details    []KeyValue
	FormatHint string
}

// KeyValue is one (label, value) pair of extended metadata.
type KeyValue struct {
	Label string
	Value string
}

// OpenOption carries options to OpenRead, e.g. a byte-range request; the
// set is intentionally open ended, mirroring rclone's fs.OpenOption.
type OpenOption interface {
	Header() (key, value string)
}

// Path is the polymorphic filesystem facade. Every operation returns a
// *duoerr.Error on failure so callers can classify without knowing which
// backend produced it.
type Path interface {
	// String returns the canonical, round-trippable URI for this path.
	String() string
	// Scheme returns the scheme tag.
	Scheme() Scheme

	Iterdir(ctx context.Context) ([]Path, error)
	Exists(ctx context.Context) (bool, error)
	IsDir(ctx context.Context) (bool, error)
	IsFile(ctx context.Context) (bool, error)
	IsSymlink(ctx context.Context) (bool, error)
	Stat(ctx context.Context) (EntryMetadata, error)

	ReadBytes(ctx context.Context) ([]byte, error)
	ReadText(ctx context.Context) (string, error)
	OpenRead(ctx context.Context, options ...OpenOption) (io.ReadCloser, error)

	WriteText(ctx context.Context, s string) error
	WriteBytes(ctx context.Context, b []byte) error
	Touch(ctx context.Context) error
	Mkdir(ctx context.Context) error
	Unlink(ctx context.Context) error
	Rmdir(ctx context.Context) error
	Rename(ctx context.Context, newName string) (Path, error)

	// CopyTo copies this path (file or dir, recursively) to dst.
	// Same-scheme backends may take a native fast path; cross-scheme
	// copies always stream.
	CopyTo(ctx context.Context, dst Path) error
	// MoveTo moves this path to dst. overwrite controls whether an
	// existing dst is replaced.
	MoveTo(ctx context.Context, dst Path, overwrite bool) error

	Glob(ctx context.Context, pattern string) ([]Path, error)
	Rglob(ctx context.Context, pattern string) ([]Path, error)

	Join(segment string) Path
	Parent() Path
	Name() string
	Stem() string
	Suffix() string

	// Capability queries, consulted by the UI before attempting an
	// operation; see the table in the spec's capability section.
	SupportsWriteOperations() bool
	SupportsDirectoryRename() bool
	SupportsFileEditing() bool
	RequiresExtractionForReading() bool
	SupportsStreamingRead() bool
	GetSearchStrategy() SearchStrategy
	ShouldCacheForSearch() bool
	IsRemote() bool

	// Display metadata, so the UI never branches on scheme.
	GetDisplayPrefix() string
	GetDisplayTitle() string
	GetExtendedMetadata(ctx context.Context) (ExtendedMetadata, error)
}

// Equal reports whether two paths are the same location, by canonical
// string comparison (testable property 1: parse(str(p)) == p implies
// this is also a well defined equivalence).
func Equal(a, b Path) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.String() == b.String()
}
