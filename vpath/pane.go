package vpath

import "time"

// SortMode orders a Pane's entries.
type SortMode int

// The sort modes a Pane may use.
const (
	SortByName SortMode = iota
	SortBySize
	SortByDate
	SortByExt
	SortByType
)

// Pane is a per-side directory listing and cursor state. Its entries are
// rebuilt on refresh and replaced atomically; selection survives a
// rebuild because membership is keyed by canonical path string, not by
// index or Path identity.
type Pane struct {
	Path         Path
	Entries      []Path
	FocusedIndex int
	ScrollOffset int
	Selected     map[string]struct{}
	SortMode     SortMode
	SortReverse  bool
	FilterGlob   string
}

// NewPane returns an empty Pane rooted at p.
func NewPane(p Path) *Pane {
	return &Pane{
		Path:     p,
		Selected: make(map[string]struct{}),
	}
}

// IsSelected reports whether p is marked selected in this pane.
func (pn *Pane) IsSelected(p Path) bool {
	_, ok := pn.Selected[p.String()]
	return ok
}

// ToggleSelection flips the selection state of p and returns the new
// state.
func (pn *Pane) ToggleSelection(p Path) bool {
	key := p.String()
	if _, ok := pn.Selected[key]; ok {
		delete(pn.Selected, key)
		return false
	}
	pn.Selected[key] = struct{}{}
	return true
}

// SelectedPaths returns the subset of Entries currently selected, in
// Entries order. If nothing is selected, it falls back to the single
// focused entry (mirroring the "no explicit selection means act on the
// cursor" convention most dual-pane managers use).
func (pn *Pane) SelectedPaths() []Path {
	var out []Path
	for _, e := range pn.Entries {
		if pn.IsSelected(e) {
			out = append(out, e)
		}
	}
	if len(out) == 0 && pn.FocusedIndex >= 0 && pn.FocusedIndex < len(pn.Entries) {
		out = append(out, pn.Entries[pn.FocusedIndex])
	}
	return out
}

// Focused returns the currently focused entry, or nil if Entries is
// empty.
func (pn *Pane) Focused() Path {
	if pn.FocusedIndex < 0 || pn.FocusedIndex >= len(pn.Entries) {
		return nil
	}
	return pn.Entries[pn.FocusedIndex]
}

// SetEntries atomically replaces the listing, clamping FocusedIndex back
// into range. Selection is left untouched: it is rebuilt against the new
// Entries by canonical string, so stale selections for paths no longer
// present simply never surface again but are not deleted, matching the
// spec's "rebuilding entries does not drop selection" invariant.
func (pn *Pane) SetEntries(entries []Path) {
	pn.Entries = entries
	if len(entries) == 0 {
		pn.FocusedIndex = 0
		return
	}
	if pn.FocusedIndex >= len(entries) {
		pn.FocusedIndex = len(entries) - 1
	}
	if pn.FocusedIndex < 0 {
		pn.FocusedIndex = 0
	}
}

// CursorHistoryEntry records one visited directory and the entry that
// was focused when the pane last left it.
type CursorHistoryEntry struct {
	DirectoryPath string    `json:"directory_path"`
	FocusedName   string    `json:"focused_name"`
	Timestamp     time.Time `json:"timestamp"`
}
