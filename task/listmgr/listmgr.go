// Package listmgr holds the pure, no-I/O functions that operate on a
// vpath.Pane's entries: sorting, filtering, selection summaries. It is
// grounded on rclone's fs/operations pure helpers (SuffixName and
// friends) — pieces of operations logic that need no Fs at all.
package listmgr

import (
	"path"
	"sort"
	"strings"

	"github.com/duofs/duofs/vpath"
)

// SuffixName appends a disambiguating suffix (".conflict", a counter, ...)
// to name before its final extension, mirroring rclone's
// operations.SuffixName: only the last extension follows the suffix, so
// "archive.tar.gz" becomes "archive.tar.conflict.gz".
func SuffixName(name, suffix string) string {
	ext := path.Ext(name)
	if ext == "" {
		return name + suffix
	}
	return strings.TrimSuffix(name, ext) + suffix + ext
}

// Info is the pure, scheme-agnostic summary a listing footer/status bar
// renders: total entry count, size of the selection (or, with nothing
// selected, of every entry) and how many of those are directories.
type Info struct {
	TotalEntries  int
	SelectedSize  uint64
	SelectedDirs  int
	SelectedCount int
}

// sortKey captures what Sort needs to know about each entry without
// touching the filesystem again, since metadata is already attached to
// the Pane's cached stat results by the caller via statOf.
type sortKey struct {
	path    vpath.Path
	size    uint64
	modTime int64
	isDir   bool
}

// Sort reorders pn.Entries in place according to pn.SortMode (and
// pn.SortReverse), always placing directories before files within a
// sort mode, matching the conventional dual-pane-manager ordering.
// statOf supplies the metadata Sort needs; an entry for which statOf
// reports ok=false is sorted as a file, by whatever size and time statOf
// returned for it.
func Sort(pn *vpath.Pane, statOf func(p vpath.Path) (size uint64, modTime int64, isDir bool, ok bool)) {
	keys := make([]sortKey, len(pn.Entries))
	for i, e := range pn.Entries {
		size, modTime, isDir, ok := statOf(e)
		keys[i] = sortKey{path: e, size: size, modTime: modTime, isDir: isDir}
		if !ok {
			keys[i].isDir = false
		}
	}

	less := func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.isDir != b.isDir {
			return a.isDir
		}
		if pn.SortReverse {
			a, b = b, a
		}
		switch pn.SortMode {
		case vpath.SortBySize:
			if a.size != b.size {
				return a.size < b.size
			}
		case vpath.SortByDate:
			if a.modTime != b.modTime {
				return a.modTime < b.modTime
			}
		case vpath.SortByExt:
			ea, eb := path.Ext(a.path.Name()), path.Ext(b.path.Name())
			if ea != eb {
				return ea < eb
			}
		case vpath.SortByType:
			ta, tb := path.Ext(a.path.Name()), path.Ext(b.path.Name())
			if ta != tb {
				return ta < tb
			}
		}
		return a.path.Name() < b.path.Name()
	}

	order := make([]int, len(keys))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return less(order[i], order[j]) })

	sorted := make([]vpath.Path, len(pn.Entries))
	for i, idx := range order {
		sorted[i] = pn.Entries[idx]
	}
	pn.Entries = sorted
}

// Filter returns the subset of entries whose Name() matches glob,
// leaving pn untouched; the UI applies the result via pn.SetEntries to
// preserve the rebuild-without-dropping-selection invariant.
func Filter(entries []vpath.Path, glob string) ([]vpath.Path, error) {
	if glob == "" {
		return entries, nil
	}
	out := make([]vpath.Path, 0, len(entries))
	for _, e := range entries {
		ok, err := path.Match(glob, e.Name())
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// Summarize computes Info for pn given a stat lookup, operating over the
// selection if non-empty or the full listing otherwise.
func Summarize(pn *vpath.Pane, statOf func(p vpath.Path) (size uint64, isDir bool, ok bool)) Info {
	targets := pn.Entries
	if len(pn.Selected) > 0 {
		targets = nil
		for _, e := range pn.Entries {
			if pn.IsSelected(e) {
				targets = append(targets, e)
			}
		}
	}
	info := Info{TotalEntries: len(pn.Entries), SelectedCount: len(pn.Selected)}
	for _, t := range targets {
		size, isDir, ok := statOf(t)
		if !ok {
			continue
		}
		if isDir {
			info.SelectedDirs++
			continue
		}
		info.SelectedSize += size
	}
	return info
}
