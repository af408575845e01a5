package task

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/duofs/duofs/archivecache"
	"github.com/duofs/duofs/duoerr"
	"github.com/duofs/duofs/internal/logging"
	"github.com/duofs/duofs/internal/pacer"
	"github.com/duofs/duofs/vpath"
)

// Stats is the progress snapshot reported to a ProgressSink, grounded on
// rclone's fs/accounting.Transfer. CopyEntry reports one snapshot per
// copied file, after the copy completes; nothing is reported part-way
// through an entry, and RateBPS is left at zero.
type Stats struct {
	BytesDone    uint64
	BytesTotal   uint64
	EntriesDone  int
	EntriesTotal int
	RateBPS      float64
}

// ProgressSink receives progress updates during Executing. EntriesTotal
// is reported once, before any copying begins, per spec.md's "total
// count is reported before copying begins".
type ProgressSink interface {
	EntriesTotal(n int)
	Progress(Stats)
}

// chunkSize is 64 KiB. No code in this package reads it: progress is
// reported per entry, not per chunk.
const chunkSize = 64 * 1024

// entryPlan is one planned source->destination pairing discovered during
// enumeration.
type entryPlan struct {
	src    vpath.Path
	dst    vpath.Path
	isDir  bool
	relDir string
}

// CacheInvalidator is consulted after a move/copy/delete so cached
// directory listings for the affected parents don't go stale; the
// archivecache.Cache satisfies it directly via InvalidateHost.
type CacheInvalidator interface {
	InvalidateHost(hostPath string)
}

// Executor performs the actual I/O for copy/move/delete/archive
// create/extract. It never calls back into the UI; conflicts are
// resolved by the driver before Execute is called again for the
// remaining entries.
type Executor struct {
	Log          *logging.ObjectLogger
	Cache        CacheInvalidator
	RemoteRetries int
	remotePacer  *pacer.Pacer
}

// NewExecutor builds an Executor. remoteRetries bounds the RemoteError
// retry loop added in SPEC_FULL's supplemented-feature list; 0 disables
// retrying.
func NewExecutor(log *logging.ObjectLogger, cache CacheInvalidator, remoteRetries int) *Executor {
	return &Executor{
		Log:           log,
		Cache:         cache,
		RemoteRetries: remoteRetries,
		remotePacer:   pacer.New(pacer.RetriesOption(remoteRetries)),
	}
}

// Enumerate walks sources recursively (files are leaves; directories are
// walked with Iterdir), producing the flat entry list copy/move/delete
// operate over, each paired with its destination under destDir preserving
// the relative subpath from its source root.
func (ex *Executor) Enumerate(ctx context.Context, sources []vpath.Path, destDir vpath.Path) ([]entryPlan, error) {
	var plans []entryPlan
	for _, src := range sources {
		if err := ex.enumerateOne(ctx, src, src.Name(), destDir, &plans); err != nil {
			return nil, err
		}
	}
	return plans, nil
}

func (ex *Executor) enumerateOne(ctx context.Context, src vpath.Path, rel string, destDir vpath.Path, out *[]entryPlan) error {
	isDir, err := src.IsDir(ctx)
	if err != nil {
		return err
	}
	dst := joinRel(destDir, rel)
	*out = append(*out, entryPlan{src: src, dst: dst, isDir: isDir, relDir: rel})
	if !isDir {
		return nil
	}
	children, err := src.Iterdir(ctx)
	if err != nil {
		return err
	}
	for _, c := range children {
		if err := ex.enumerateOne(ctx, c, rel+"/"+c.Name(), destDir, out); err != nil {
			return err
		}
	}
	return nil
}

func joinRel(base vpath.Path, rel string) vpath.Path {
	cur := base
	for _, seg := range splitRel(rel) {
		cur = cur.Join(seg)
	}
	return cur
}

func splitRel(rel string) []string {
	var segs []string
	start := 0
	for i := 0; i <= len(rel); i++ {
		if i == len(rel) || rel[i] == '/' {
			if i > start {
				segs = append(segs, rel[start:i])
			}
			start = i + 1
		}
	}
	return segs
}

// CopyEntry copies one planned entry (directory or file), reporting
// progress via sink. Directories are created with Mkdir; files take the
// same-scheme native fast path inside Path.CopyTo when available, or
// stream cross-scheme.
func (ex *Executor) CopyEntry(ctx context.Context, plan entryPlan, sink ProgressSink) error {
	if plan.isDir {
		if err := plan.dst.Mkdir(ctx); err != nil && duoerr.As(err) != duoerr.AlreadyExists {
			return err
		}
		return nil
	}

	var size uint64
	if meta, err := plan.src.Stat(ctx); err == nil {
		size = meta.Size
	}

	err := ex.callRemote(plan.src, plan.dst, func() (bool, error) {
		return ex.copyFile(ctx, plan.src, plan.dst, size, sink)
	})
	if err != nil {
		return err
	}
	if ex.Cache != nil {
		ex.Cache.InvalidateHost(plan.dst.Parent().String())
	}
	return nil
}

func (ex *Executor) copyFile(ctx context.Context, src, dst vpath.Path, size uint64, sink ProgressSink) (bool, error) {
	err := src.CopyTo(ctx, dst)
	if err != nil {
		return ex.isRemoteRetriable(err), err
	}
	if sink != nil {
		sink.Progress(Stats{BytesDone: size, BytesTotal: size, EntriesDone: 1, EntriesTotal: 1})
	}
	return false, nil
}

// callRemote wraps fn in the remote-retry pacer when either endpoint of
// the operation is a remote backend, matching the supplemented-feature
// "per-entry retry with exponential backoff for remote backends".
func (ex *Executor) callRemote(src, dst vpath.Path, fn pacer.Paced) error {
	if ex.remotePacer == nil || ex.RemoteRetries == 0 || (!src.IsRemote() && !dst.IsRemote()) {
		_, err := fn()
		return err
	}
	return ex.remotePacer.Call(func() (bool, error) {
		retry, err := fn()
		return retry && !duoerr.IsNoRetry(err), err
	})
}

func (ex *Executor) isRemoteRetriable(err error) bool {
	return duoerr.As(err) == duoerr.RemoteError
}

// DeleteEntry removes one planned source entry: Unlink for a file, Rmdir
// for an (already-emptied) directory. Move calls this bottom-up after a
// successful copy.
func (ex *Executor) DeleteEntry(ctx context.Context, src vpath.Path, isDir bool) error {
	var err error
	if isDir {
		err = src.Rmdir(ctx)
	} else {
		err = src.Unlink(ctx)
	}
	if err != nil {
		return err
	}
	if ex.Cache != nil {
		ex.Cache.InvalidateHost(src.Parent().String())
	}
	return nil
}

// archiveEntryPlan is one directory or file discovered while walking
// sources for archive creation, paired with the relative path it gets
// inside the archive.
type archiveEntryPlan struct {
	src     vpath.Path
	rel     string
	isDir   bool
	modTime time.Time
}

// enumerateForArchive walks sources the same way Enumerate does, but
// without a destDir: archive member names are source-relative, not
// rebased onto a destination tree.
func (ex *Executor) enumerateForArchive(ctx context.Context, sources []vpath.Path) ([]archiveEntryPlan, error) {
	var out []archiveEntryPlan
	var walk func(p vpath.Path, rel string) error
	walk = func(p vpath.Path, rel string) error {
		isDir, err := p.IsDir(ctx)
		if err != nil {
			return err
		}
		var modTime time.Time
		if meta, err := p.Stat(ctx); err == nil {
			modTime = meta.ModTime
		}
		out = append(out, archiveEntryPlan{src: p, rel: rel, isDir: isDir, modTime: modTime})
		if !isDir {
			return nil
		}
		children, err := p.Iterdir(ctx)
		if err != nil {
			return err
		}
		for _, c := range children {
			if err := walk(c, rel+"/"+c.Name()); err != nil {
				return err
			}
		}
		return nil
	}
	for _, s := range sources {
		if err := walk(s, s.Name()); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (ex *Executor) writeArchiveFile(ctx context.Context, w archivecache.EntryWriter, e archiveEntryPlan) error {
	var size int64
	if meta, err := e.src.Stat(ctx); err == nil {
		size = int64(meta.Size)
	}
	rc, err := e.src.OpenRead(ctx)
	if err != nil {
		return err
	}
	defer rc.Close()
	return w.WriteFile(e.rel, e.modTime, size, rc)
}

// CreateArchive streams sources into a new archive at dest, built
// entirely in a local temp file and only made visible at dest once
// complete - renamed into place for a local destination, or read back
// and written whole for a remote one - so a cancelled or failed run
// never leaves a partial archive at dest, per spec.md §4.4.5's "closed
// atomically" requirement. shouldStop is polled between entries for
// user cancellation, the same signal runCopyOrMove checks per plan.
func (ex *Executor) CreateArchive(ctx context.Context, sources []vpath.Path, dest vpath.Path, format string, sink ProgressSink, shouldStop func() bool) error {
	tmp, err := os.CreateTemp("", "duofs-archive-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once successfully renamed away

	name := dest.Name()
	if format != "" {
		name = "archive" + format
	}
	writer, err := archivecache.NewWriter(name, tmp)
	if err != nil {
		tmp.Close()
		return err
	}

	entries, err := ex.enumerateForArchive(ctx, sources)
	if err != nil {
		tmp.Close()
		return err
	}
	if sink != nil {
		sink.EntriesTotal(len(entries))
	}

	var done int
	var failed error
	for _, e := range entries {
		if shouldStop != nil && shouldStop() {
			failed = duoerr.New(duoerr.Cancelled, "create", dest.String(), nil)
			break
		}
		if cerr := ctx.Err(); cerr != nil {
			failed = cerr
			break
		}
		if e.isDir {
			if err := writer.WriteDir(e.rel, e.modTime); err != nil {
				failed = err
				break
			}
			continue
		}
		if err := ex.writeArchiveFile(ctx, writer, e); err != nil {
			failed = err
			break
		}
		done++
		if sink != nil {
			sink.Progress(Stats{EntriesDone: done, EntriesTotal: len(entries)})
		}
	}

	if closeErr := writer.Close(); failed == nil {
		failed = closeErr
	}
	if cerr := tmp.Close(); failed == nil {
		failed = cerr
	}
	if failed != nil {
		return failed
	}

	if dest.Scheme() == vpath.SchemeFile {
		if err := os.Rename(tmpPath, dest.String()); err != nil {
			return err
		}
	} else {
		data, err := os.ReadFile(tmpPath)
		if err != nil {
			return err
		}
		if err := dest.WriteBytes(ctx, data); err != nil {
			return err
		}
	}
	if ex.Cache != nil {
		ex.Cache.InvalidateHost(dest.Parent().String())
	}
	return nil
}

// ExtractArchiveEntry writes entry's content to dst (the caller has
// already resolved dst against destDir and any conflict rename),
// creating parent directories as needed, per spec.md §4.4.5.
func (ex *Executor) ExtractArchiveEntry(ctx context.Context, entry archivecache.Entry, content io.Reader, dst vpath.Path) error {
	if entry.Kind == vpath.KindDir {
		return dst.Mkdir(ctx)
	}
	parent := dst.Parent()
	if err := parent.Mkdir(ctx); err != nil && duoerr.As(err) != duoerr.AlreadyExists {
		return err
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return err
	}
	return dst.WriteBytes(ctx, data)
}
