package listmgr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duofs/duofs/backend/local"
	"github.com/duofs/duofs/vpath"
)

func TestSuffixName(t *testing.T) {
	for _, test := range []struct {
		name, suffix, want string
	}{
		{"report.txt", ".conflict", "report.conflict.txt"},
		{"archive.tar.gz", ".conflict", "archive.tar.conflict.gz"},
		{"Makefile", ".conflict", "Makefile.conflict"},
	} {
		assert.Equal(t, test.want, SuffixName(test.name, test.suffix), test.name)
	}
}

func entries(names ...string) []vpath.Path {
	out := make([]vpath.Path, len(names))
	for i, n := range names {
		out[i] = local.New("/tmp/" + n)
	}
	return out
}

func TestSortByNameDirsFirst(t *testing.T) {
	pn := vpath.NewPane(local.New("/tmp"))
	pn.SetEntries(entries("b.txt", "a.txt", "zdir", "adir"))
	isDir := map[string]bool{"/tmp/zdir": true, "/tmp/adir": true}

	Sort(pn, func(p vpath.Path) (uint64, int64, bool, bool) {
		return 0, 0, isDir[p.String()], true
	})

	var names []string
	for _, e := range pn.Entries {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{"adir", "zdir", "a.txt", "b.txt"}, names)
}

func TestSortBySizeReverse(t *testing.T) {
	pn := vpath.NewPane(local.New("/tmp"))
	pn.SetEntries(entries("a", "b", "c"))
	pn.SortMode = vpath.SortBySize
	pn.SortReverse = true
	sizes := map[string]uint64{"/tmp/a": 10, "/tmp/b": 30, "/tmp/c": 20}

	Sort(pn, func(p vpath.Path) (uint64, int64, bool, bool) {
		return sizes[p.String()], 0, false, true
	})

	var names []string
	for _, e := range pn.Entries {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{"b", "c", "a"}, names)
}

func TestFilterGlob(t *testing.T) {
	got, err := Filter(entries("a.txt", "b.go", "c.txt"), "*.txt")
	require.NoError(t, err)
	var names []string
	for _, e := range got {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{"a.txt", "c.txt"}, names)
}

func TestFilterEmptyGlobReturnsAll(t *testing.T) {
	all := entries("a", "b")
	got, err := Filter(all, "")
	require.NoError(t, err)
	assert.Equal(t, all, got)
}

func TestSummarizeFallsBackToAllWhenNoSelection(t *testing.T) {
	pn := vpath.NewPane(local.New("/tmp"))
	pn.SetEntries(entries("a", "b"))
	sizes := map[string]uint64{"/tmp/a": 5, "/tmp/b": 7}

	info := Summarize(pn, func(p vpath.Path) (uint64, bool, bool) {
		return sizes[p.String()], false, true
	})
	assert.Equal(t, uint64(12), info.SelectedSize)
	assert.Equal(t, 2, info.TotalEntries)
	assert.Equal(t, 0, info.SelectedCount)
}

func TestSummarizeUsesSelectionWhenPresent(t *testing.T) {
	pn := vpath.NewPane(local.New("/tmp"))
	pn.SetEntries(entries("a", "b"))
	pn.ToggleSelection(local.New("/tmp/a"))
	sizes := map[string]uint64{"/tmp/a": 5, "/tmp/b": 7}

	info := Summarize(pn, func(p vpath.Path) (uint64, bool, bool) {
		return sizes[p.String()], false, true
	})
	assert.Equal(t, uint64(5), info.SelectedSize)
	assert.Equal(t, 1, info.SelectedCount)
}
