package archivecache

import (
	"archive/zip"
	"context"
	"strings"

	"github.com/duofs/duofs/vpath"
)

func init() {
	RegisterIndexer(".zip", indexZip)
}

// indexZip builds an Index from a zip central directory, grounded on
// rclone's backend/zip reading each zip.File's Name/FileInfo into its
// own in-memory directory tree (dirtree.New in readZip). Unlike tar,
// zip's central directory gives us every entry's data offset up front,
// so StorageOffset is a true byte offset usable for random access.
func indexZip(_ context.Context, hostPath string, r ReadAtCloser, size int64) ([]Entry, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	for _, f := range zr.File {
		p := strings.Trim(strings.ReplaceAll(f.Name, "\\", "/"), "/")
		if p == "" {
			continue
		}
		kind := vpath.KindFile
		if f.FileInfo().IsDir() {
			kind = vpath.KindDir
		}
		offset, err := f.DataOffset()
		if err != nil {
			offset = 0
		}
		entries = append(entries, Entry{
			Path:          p,
			Size:          f.UncompressedSize64,
			ModTime:       f.Modified,
			Kind:          kind,
			StorageOffset: offset,
		})
	}
	return entries, nil
}
