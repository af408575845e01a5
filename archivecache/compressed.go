package archivecache

import (
	"context"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/duofs/duofs/vpath"
)

func init() {
	RegisterIndexer(".gz", indexSingleGzip)
	RegisterIndexer(".bz2", indexSingleBzip2)
	RegisterIndexer(".xz", indexSingleXz)
}

// indexSingleGzip/-Bzip2/-Xz handle a lone compressed file (not a tar
// archive) as a single virtual entry wrapping the decompressed
// content, named after the compressed file's basename minus the suffix.
// For gzip, the name stored in the gzip header is used instead when the
// header carries one.
func indexSingleGzip(_ context.Context, hostPath string, r ReadAtCloser, _ int64) ([]Entry, error) {
	gr, err := gzip.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer gr.Close()
	name := gr.Name
	if name == "" {
		name = virtualMemberName(hostPath, ".gz")
	}
	mod := gr.ModTime
	if mod.IsZero() {
		mod = time.Now()
	}
	return []Entry{{Path: name, Kind: vpath.KindFile, ModTime: mod}}, nil
}

func indexSingleBzip2(_ context.Context, hostPath string, _ ReadAtCloser, _ int64) ([]Entry, error) {
	return []Entry{{Path: virtualMemberName(hostPath, ".bz2"), Kind: vpath.KindFile}}, nil
}

func indexSingleXz(_ context.Context, hostPath string, _ ReadAtCloser, _ int64) ([]Entry, error) {
	return []Entry{{Path: virtualMemberName(hostPath, ".xz"), Kind: vpath.KindFile}}, nil
}

func virtualMemberName(hostPath, suffix string) string {
	base := hostPath
	if idx := strings.LastIndexByte(base, '/'); idx >= 0 {
		base = base[idx+1:]
	}
	return strings.TrimSuffix(base, suffix)
}
