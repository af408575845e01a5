// Package archivecache is the content-addressed index of archive
// entries described by the spec's Archive Cache component: on
// Path.Iterdir for an archive scheme the cache is consulted first, and
// on miss the archive is fully indexed and the result cached, keyed by
// (host_path, host_mtime) so a modified archive on disk is re-indexed
// rather than served stale.
//
// This is grounded on rclone's own archive handling
// (backend/archive/zip's dirtree-building NewFs and fs/cache's
// pinned-singleton-by-key pattern) generalized from "wrap an archive as
// an fs.Fs" down to "index an archive's entries".
package archivecache

import (
	"strings"
	"time"

	"github.com/duofs/duofs/vpath"
)

// Entry is one record of an archive's central directory (or, for tar,
// one header), generalized across formats.
type Entry struct {
	Path          string // entry path within the archive, always "/"-separated
	Size          uint64
	ModTime       time.Time
	Kind          vpath.Kind
	StorageOffset int64 // format-specific: byte offset (zip) or sequential header index (every tar variant)
}

// Index is the list of entries found in one archive, in the order the
// format's indexer returned them. Directories the archive only implies
// are not stored here; Children synthesizes them on the fly.
type Index struct {
	HostPath  string
	HostMTime time.Time
	Entries   []Entry // as recorded in the archive, in indexer order
}

// Children returns the immediate children of dir (the empty string
// meaning the archive root), matching spec's iterdir contract: entries
// in the index whose path begins with dir+"/" and has no further "/"
// past that prefix.
func (idx *Index) Children(dir string) []Entry {
	prefix := dir
	if prefix != "" {
		prefix += "/"
	}
	seen := make(map[string]bool)
	var out []Entry
	for _, e := range idx.Entries {
		if prefix != "" && !strings.HasPrefix(e.Path, prefix) {
			continue
		}
		if prefix == "" && e.Path == "" {
			continue
		}
		rest := e.Path[len(prefix):]
		if rest == "" {
			continue
		}
		if slash := strings.IndexByte(rest, '/'); slash >= 0 {
			childName := rest[:slash]
			childPath := prefix + childName
			if seen[childPath] {
				continue
			}
			seen[childPath] = true
			out = append(out, Entry{Path: childPath, Kind: vpath.KindDir})
			continue
		}
		if seen[e.Path] {
			continue
		}
		seen[e.Path] = true
		out = append(out, e)
	}
	return out
}

// Lookup finds the entry for an exact path, if present.
func (idx *Index) Lookup(entryPath string) (Entry, bool) {
	for _, e := range idx.Entries {
		if e.Path == entryPath {
			return e, true
		}
	}
	return Entry{}, false
}

// IsVirtualDir reports whether dir has children in the index even
// though no entry explicitly names it as a directory - the "virtual
// directory" case from the spec.
func (idx *Index) IsVirtualDir(dir string) bool {
	if _, ok := idx.Lookup(dir); ok {
		return false
	}
	return len(idx.Children(dir)) > 0
}
