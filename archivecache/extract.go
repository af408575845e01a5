package archivecache

import (
	"archive/tar"
	"archive/zip"
	"context"
	"io"
	"strings"
	"sync"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"

	"github.com/duofs/duofs/duoerr"
)

// Extractor pulls the decompressed bytes of one entry out of a freshly
// opened host archive. Each format registers one alongside its Indexer.
type Extractor func(ctx context.Context, hostPath string, r ReadAtCloser, size int64, entry Entry) ([]byte, error)

var (
	extractorMu sync.RWMutex
	extractors  = map[string]Extractor{}
)

// RegisterExtractor associates suffix with an Extractor, mirroring
// RegisterIndexer.
func RegisterExtractor(suffix string, fn Extractor) {
	extractorMu.Lock()
	defer extractorMu.Unlock()
	extractors[suffix] = fn
}

func extractorFor(hostPath string) (Extractor, string, bool) {
	extractorMu.RLock()
	defer extractorMu.RUnlock()
	var best string
	var bestFn Extractor
	for suffix, fn := range extractors {
		if len(suffix) > len(best) && hasSuffix(hostPath, suffix) {
			best = suffix
			bestFn = fn
		}
	}
	if best == "" {
		return nil, "", false
	}
	return bestFn, best, true
}

// ExtractEntry returns the decompressed bytes of entry within the
// archive at hostPath, consulting the content cache first and
// populating it on miss.
func (c *Cache) ExtractEntry(ctx context.Context, hostPath string, host Opener, entry Entry) ([]byte, error) {
	meta, err := host.Stat(ctx)
	if err != nil {
		return nil, err
	}
	mtime := meta.ModTime.UnixNano()
	if data, ok := c.GetContent(hostPath, mtime, entry.Path); ok {
		return data, nil
	}

	fn, _, ok := extractorFor(hostPath)
	if !ok {
		return nil, duoerr.Newf(duoerr.ArchiveFormatError, "extract", hostPath, "unrecognized archive suffix")
	}
	rc, err := host.OpenRead(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	r, err := asReadAtCloser(rc)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	data, err := fn(ctx, hostPath, r, int64(meta.Size), entry)
	if err != nil {
		return nil, duoerr.New(duoerr.ArchiveFormatError, "extract", hostPath, err)
	}
	c.PutContent(hostPath, mtime, entry.Path, data)
	return data, nil
}

func init() {
	RegisterExtractor(".zip", extractZip)
	RegisterExtractor(".tar", extractTarPlain)
	RegisterExtractor(".tar.gz", extractTarGzip)
	RegisterExtractor(".tgz", extractTarGzip)
	RegisterExtractor(".tar.bz2", extractTarBzip2)
	RegisterExtractor(".tbz2", extractTarBzip2)
	RegisterExtractor(".tar.xz", extractTarXz)
	RegisterExtractor(".txz", extractTarXz)
	RegisterExtractor(".gz", extractSingle(func(r io.Reader) (io.Reader, error) { return gzip.NewReader(r) }))
	RegisterExtractor(".bz2", extractSingle(func(r io.Reader) (io.Reader, error) { return bzip2.NewReader(r, nil) }))
	RegisterExtractor(".xz", extractSingle(func(r io.Reader) (io.Reader, error) { return xz.NewReader(r) }))
}

func extractZip(_ context.Context, _ string, r ReadAtCloser, size int64, entry Entry) ([]byte, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, err
	}
	for _, f := range zr.File {
		p := normalizeZipName(f.Name)
		if p != entry.Path {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, duoerr.New(duoerr.NotFound, "extract", entry.Path, nil)
}

func extractTarPlain(_ context.Context, _ string, r ReadAtCloser, _ int64, entry Entry) ([]byte, error) {
	return extractFromTarStream(r, entry)
}

func extractTarGzip(_ context.Context, _ string, r ReadAtCloser, _ int64, entry Entry) ([]byte, error) {
	gr, err := gzip.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer gr.Close()
	return extractFromTarStream(gr, entry)
}

func extractTarBzip2(_ context.Context, _ string, r ReadAtCloser, _ int64, entry Entry) ([]byte, error) {
	br, err := bzip2.NewReader(r, nil)
	if err != nil {
		return nil, err
	}
	defer br.Close()
	return extractFromTarStream(br, entry)
}

func extractTarXz(_ context.Context, _ string, r ReadAtCloser, _ int64, entry Entry) ([]byte, error) {
	xr, err := xz.NewReader(r)
	if err != nil {
		return nil, err
	}
	return extractFromTarStream(xr, entry)
}

// extractFromTarStream walks the tar sequentially to the entry's
// recorded position (StorageOffset, a sequential index for every tar
// variant) and reads its body. Matching by position rather than by
// re-comparing names keeps identical-looking paths (which tar permits,
// unlike zip's unique central directory) correctly disambiguated.
func extractFromTarStream(r io.Reader, entry Entry) ([]byte, error) {
	tr := tar.NewReader(r)
	for i := int64(0); ; i++ {
		_, err := tr.Next()
		if err == io.EOF {
			return nil, duoerr.New(duoerr.NotFound, "extract", entry.Path, nil)
		}
		if err != nil {
			return nil, err
		}
		if i == entry.StorageOffset {
			return io.ReadAll(tr)
		}
	}
}

// extractSingle builds an Extractor for the lone-compressed-file
// formats, where the archive's one entry is the whole decompressed
// stream.
func extractSingle(newReader func(io.Reader) (io.Reader, error)) Extractor {
	return func(_ context.Context, _ string, r ReadAtCloser, _ int64, _ Entry) ([]byte, error) {
		dr, err := newReader(r)
		if err != nil {
			return nil, err
		}
		if c, ok := dr.(io.Closer); ok {
			defer c.Close()
		}
		return io.ReadAll(dr)
	}
}

func normalizeZipName(name string) string {
	return strings.Trim(strings.ReplaceAll(name, "\\", "/"), "/")
}
