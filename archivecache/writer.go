package archivecache

import (
	"archive/tar"
	"archive/zip"
	"io"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/duofs/duofs/duoerr"
)

// EntryWriter streams entries into a new archive, one directory or file
// at a time, in the format its constructor was chosen for. Grounded on
// archive/zip.Writer and archive/tar.Writer's own Create/WriteHeader
// shape, which rclone's backend/archive never needed (it only reads
// archives) but the zip and tar packages themselves model directly.
type EntryWriter interface {
	WriteDir(relPath string, modTime time.Time) error
	WriteFile(relPath string, modTime time.Time, size int64, r io.Reader) error
	Close() error
}

// NewWriter picks an EntryWriter for name's suffix (".zip", ".tar",
// ".tar.gz"/".tgz"), mirroring indexerFor's longest-suffix-wins
// dispatch so creation and indexing agree on what a given filename
// means.
func NewWriter(name string, w io.Writer) (EntryWriter, error) {
	switch {
	case hasSuffix(name, ".zip"):
		return &zipWriter{zw: zip.NewWriter(w)}, nil
	case hasSuffix(name, ".tar.gz"), hasSuffix(name, ".tgz"):
		gz := gzip.NewWriter(w)
		return &tarWriter{tw: tar.NewWriter(gz), gz: gz}, nil
	case hasSuffix(name, ".tar"):
		return &tarWriter{tw: tar.NewWriter(w)}, nil
	default:
		return nil, duoerr.Newf(duoerr.ArchiveFormatError, "create", name, "unsupported archive format for writing")
	}
}

type zipWriter struct {
	zw *zip.Writer
}

func (z *zipWriter) WriteDir(relPath string, modTime time.Time) error {
	hdr := &zip.FileHeader{Name: normalizeDirName(relPath), Modified: modTime}
	hdr.SetMode(0755)
	_, err := z.zw.CreateHeader(hdr)
	return err
}

func (z *zipWriter) WriteFile(relPath string, modTime time.Time, size int64, r io.Reader) error {
	hdr := &zip.FileHeader{Name: strings.TrimPrefix(relPath, "/"), Method: zip.Deflate, Modified: modTime}
	hdr.SetMode(0644)
	w, err := z.zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, r)
	return err
}

func (z *zipWriter) Close() error { return z.zw.Close() }

func normalizeDirName(relPath string) string {
	relPath = strings.TrimPrefix(relPath, "/")
	if !strings.HasSuffix(relPath, "/") {
		relPath += "/"
	}
	return relPath
}

type tarWriter struct {
	tw *tar.Writer
	gz *gzip.Writer
}

func (t *tarWriter) WriteDir(relPath string, modTime time.Time) error {
	return t.tw.WriteHeader(&tar.Header{
		Name:     normalizeDirName(relPath),
		Typeflag: tar.TypeDir,
		Mode:     0755,
		ModTime:  modTime,
	})
}

func (t *tarWriter) WriteFile(relPath string, modTime time.Time, size int64, r io.Reader) error {
	if err := t.tw.WriteHeader(&tar.Header{
		Name:     strings.TrimPrefix(relPath, "/"),
		Typeflag: tar.TypeReg,
		Mode:     0644,
		Size:     size,
		ModTime:  modTime,
	}); err != nil {
		return err
	}
	_, err := io.Copy(t.tw, r)
	return err
}

func (t *tarWriter) Close() error {
	if err := t.tw.Close(); err != nil {
		return err
	}
	if t.gz != nil {
		return t.gz.Close()
	}
	return nil
}
