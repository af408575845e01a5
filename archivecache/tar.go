package archivecache

import (
	"archive/tar"
	"context"
	"io"
	"strings"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"

	"github.com/duofs/duofs/vpath"
)

func init() {
	RegisterIndexer(".tar", indexTarPlain)
	RegisterIndexer(".tar.gz", indexTarGzip)
	RegisterIndexer(".tgz", indexTarGzip)
	RegisterIndexer(".tar.bz2", indexTarBzip2)
	RegisterIndexer(".tbz2", indexTarBzip2)
	RegisterIndexer(".tar.xz", indexTarXz)
	RegisterIndexer(".txz", indexTarXz)
}

func indexTarPlain(_ context.Context, _ string, r ReadAtCloser, _ int64) ([]Entry, error) {
	return scanTar(r)
}

func indexTarGzip(_ context.Context, _ string, r ReadAtCloser, _ int64) ([]Entry, error) {
	gr, err := gzip.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer gr.Close()
	return scanTar(gr)
}

func indexTarBzip2(_ context.Context, _ string, r ReadAtCloser, _ int64) ([]Entry, error) {
	br, err := bzip2.NewReader(r, nil)
	if err != nil {
		return nil, err
	}
	defer br.Close()
	return scanTar(br)
}

func indexTarXz(_ context.Context, _ string, r ReadAtCloser, _ int64) ([]Entry, error) {
	xr, err := xz.NewReader(r)
	if err != nil {
		return nil, err
	}
	return scanTar(xr)
}

// scanTar walks a tar stream sequentially, which is the only access
// pattern available once the stream is behind gzip/bzip2/xz
// decompression. StorageOffset becomes the entry's position in that
// sequential walk (its index, not a byte offset) so the backend knows
// to re-walk from the start and count rather than seek.
func scanTar(r io.Reader) ([]Entry, error) {
	tr := tar.NewReader(r)
	var entries []Entry
	for i := 0; ; i++ {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		p := strings.Trim(strings.ReplaceAll(hdr.Name, "\\", "/"), "/")
		if p == "" {
			continue
		}
		kind := vpath.KindFile
		switch hdr.Typeflag {
		case tar.TypeDir:
			kind = vpath.KindDir
		case tar.TypeSymlink, tar.TypeLink:
			kind = vpath.KindSymlink
		}
		entries = append(entries, Entry{
			Path:          p,
			Size:          uint64(hdr.Size),
			ModTime:       hdr.ModTime,
			Kind:          kind,
			StorageOffset: int64(i),
		})
	}
	return entries, nil
}
