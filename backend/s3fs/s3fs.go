// Package s3fs provides a vpath.Path implementation backed by an S3
// bucket, adapted from rclone's backend/s3: the same aws-sdk-go
// session/client construction and the same bucket/key split, trimmed to
// the single default credential chain and one region per process that
// this module's scope needs (no per-remote endpoint quirks, no object
// versioning, no server-side encryption knobs - see DESIGN.md for what
// was cut and why).
package s3fs

import (
	"bytes"
	"context"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	"github.com/duofs/duofs/duoerr"
	"github.com/duofs/duofs/internal/configstruct"
	"github.com/duofs/duofs/vpath"
)

// Options configures the s3 backend, decoded the same way rclone
// decodes backend options: a struct of config tags.
type Options struct {
	Region   string `config:"region"`
	Endpoint string `config:"endpoint"`
}

var opt = Options{Region: "us-east-1"}

func init() {
	if err := configstruct.Set(configstruct.Empty{}, &opt); err != nil {
		panic(err)
	}
	vpath.Register(backend{})
}

type backend struct{}

func (backend) Scheme() vpath.Scheme { return vpath.SchemeS3 }

func (backend) Parse(uri string) (vpath.Path, error) {
	const prefix = "s3://"
	if !strings.HasPrefix(uri, prefix) {
		return nil, duoerr.New(duoerr.InvalidPath, "parse", uri, nil)
	}
	rest := strings.Trim(uri[len(prefix):], "/")
	if rest == "" {
		return Path{}, nil // the bucket-listing root
	}
	parts := strings.SplitN(rest, "/", 2)
	bucket := parts[0]
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}
	return Path{bucket: bucket, key: key}, nil
}

// clientCache holds one *s3.S3 client per (region, endpoint) pair,
// mirroring rclone's s3Connection but collapsed to the single
// credential chain aws-sdk-go's session.NewSession already resolves
// (environment, shared config file, EC2/ECS role).
var (
	clientMu sync.Mutex
	clients  = map[string]*s3.S3{}
)

func client() (*s3.S3, error) {
	key := opt.Region + "|" + opt.Endpoint
	clientMu.Lock()
	defer clientMu.Unlock()
	if c, ok := clients[key]; ok {
		return c, nil
	}
	cfg := aws.NewConfig().WithRegion(opt.Region)
	if opt.Endpoint != "" {
		cfg = cfg.WithEndpoint(opt.Endpoint).WithS3ForcePathStyle(true)
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, duoerr.New(duoerr.RemoteError, "s3_session", "", err)
	}
	c := s3.New(sess)
	clients[key] = c
	return c, nil
}

// Path addresses an S3 bucket (key == "" and bucket == "") for the
// process-default listing root, a bucket (key == ""), or an object
// (key != "") within one.
type Path struct {
	bucket string
	key    string
}

var _ vpath.Path = Path{}

// New wraps an already-known bucket/key pair directly.
func New(bucket, key string) Path {
	return Path{bucket: bucket, key: strings.Trim(key, "/")}
}

func (p Path) String() string {
	if p.bucket == "" {
		return "s3://"
	}
	if p.key == "" {
		return "s3://" + p.bucket
	}
	return "s3://" + p.bucket + "/" + p.key
}

func (p Path) Scheme() vpath.Scheme { return vpath.SchemeS3 }

func classify(op, path string, err error) error {
	if err == nil {
		return nil
	}
	if aerr, ok := err.(awserr.Error); ok {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, s3.ErrCodeNoSuchBucket, "NotFound":
			return duoerr.New(duoerr.NotFound, op, path, err)
		case "Forbidden", "AccessDenied":
			return duoerr.New(duoerr.PermissionDenied, op, path, err)
		}
	}
	return duoerr.New(duoerr.RemoteError, op, path, err)
}

func (p Path) isRoot() bool { return p.bucket == "" }

func (p Path) dirPrefix() string {
	if p.key == "" {
		return ""
	}
	return p.key + "/"
}

func (p Path) Iterdir(ctx context.Context) ([]vpath.Path, error) {
	c, err := client()
	if err != nil {
		return nil, err
	}
	if p.isRoot() {
		out, err := c.ListBucketsWithContext(ctx, &s3.ListBucketsInput{})
		if err != nil {
			return nil, classify("iterdir", p.String(), err)
		}
		var result []vpath.Path
		for _, b := range out.Buckets {
			result = append(result, Path{bucket: aws.StringValue(b.Name)})
		}
		return result, nil
	}
	prefix := p.dirPrefix()
	var result []vpath.Path
	err = c.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket:    aws.String(p.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	}, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, cp := range page.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.StringValue(cp.Prefix), prefix), "/")
			result = append(result, Path{bucket: p.bucket, key: prefix + name})
		}
		for _, obj := range page.Contents {
			k := aws.StringValue(obj.Key)
			if k == prefix {
				continue // the directory marker object itself
			}
			result = append(result, Path{bucket: p.bucket, key: k})
		}
		return true
	})
	if err != nil {
		return nil, classify("iterdir", p.String(), err)
	}
	return result, nil
}

func (p Path) Exists(ctx context.Context) (bool, error) {
	if p.isRoot() {
		return true, nil
	}
	_, err := p.Stat(ctx)
	if err == nil {
		return true, nil
	}
	if duoerr.Is(err, duoerr.NotFound) {
		return false, nil
	}
	return false, err
}

func (p Path) IsDir(ctx context.Context) (bool, error) {
	if p.isRoot() || p.key == "" {
		return true, nil
	}
	if strings.HasSuffix(p.key, "/") {
		return true, nil
	}
	c, err := client()
	if err != nil {
		return false, err
	}
	out, err := c.ListObjectsV2WithContext(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(p.bucket),
		Prefix:  aws.String(p.key + "/"),
		MaxKeys: aws.Int64(1),
	})
	if err != nil {
		return false, classify("is_dir", p.String(), err)
	}
	return len(out.Contents) > 0 || len(out.CommonPrefixes) > 0, nil
}

func (p Path) IsFile(ctx context.Context) (bool, error) {
	isDir, err := p.IsDir(ctx)
	if err != nil {
		return false, err
	}
	if isDir {
		return false, nil
	}
	return p.Exists(ctx)
}

func (p Path) IsSymlink(ctx context.Context) (bool, error) { return false, nil }

func (p Path) Stat(ctx context.Context) (vpath.EntryMetadata, error) {
	if p.isRoot() || p.key == "" {
		return vpath.EntryMetadata{Kind: vpath.KindDir}, nil
	}
	c, err := client()
	if err != nil {
		return vpath.EntryMetadata{}, err
	}
	out, err := c.HeadObjectWithContext(ctx, &s3.HeadObjectInput{Bucket: aws.String(p.bucket), Key: aws.String(p.key)})
	if err != nil {
		if isDir, derr := p.IsDir(ctx); derr == nil && isDir {
			return vpath.EntryMetadata{Kind: vpath.KindDir}, nil
		}
		return vpath.EntryMetadata{}, classify("stat", p.String(), err)
	}
	return vpath.EntryMetadata{
		Size:    uint64(aws.Int64Value(out.ContentLength)),
		ModTime: aws.TimeValue(out.LastModified),
		Kind:    vpath.KindFile,
	}, nil
}

func (p Path) ReadBytes(ctx context.Context) ([]byte, error) {
	r, err := p.OpenRead(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (p Path) ReadText(ctx context.Context) (string, error) {
	b, err := p.ReadBytes(ctx)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (p Path) OpenRead(ctx context.Context, options ...vpath.OpenOption) (io.ReadCloser, error) {
	c, err := client()
	if err != nil {
		return nil, err
	}
	in := &s3.GetObjectInput{Bucket: aws.String(p.bucket), Key: aws.String(p.key)}
	for _, o := range options {
		k, v := o.Header()
		if strings.EqualFold(k, "Range") {
			in.Range = aws.String(v)
		}
	}
	out, err := c.GetObjectWithContext(ctx, in)
	if err != nil {
		return nil, classify("open_read", p.String(), err)
	}
	return out.Body, nil
}

func (p Path) WriteText(ctx context.Context, s string) error {
	return p.WriteBytes(ctx, []byte(s))
}

func (p Path) WriteBytes(ctx context.Context, b []byte) error {
	c, err := client()
	if err != nil {
		return err
	}
	uploader := s3manager.NewUploaderWithClient(c)
	_, err = uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(p.key),
		Body:   bytes.NewReader(b),
	})
	if err != nil {
		return classify("write_bytes", p.String(), err)
	}
	return nil
}

func (p Path) Touch(ctx context.Context) error {
	exists, err := p.Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return p.WriteBytes(ctx, nil)
}

// Mkdir writes a zero-byte directory-marker object, the same convention
// rclone's s3 backend uses (createDirectoryMarker) for empty directories
// that would otherwise be invisible in a prefix-only listing.
func (p Path) Mkdir(ctx context.Context) error {
	if p.key == "" {
		return nil
	}
	marker := Path{bucket: p.bucket, key: strings.TrimSuffix(p.key, "/") + "/"}
	return marker.WriteBytes(ctx, nil)
}

func (p Path) Unlink(ctx context.Context) error {
	c, err := client()
	if err != nil {
		return err
	}
	_, err = c.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{Bucket: aws.String(p.bucket), Key: aws.String(p.key)})
	if err != nil {
		return classify("unlink", p.String(), err)
	}
	return nil
}

func (p Path) Rmdir(ctx context.Context) error {
	children, err := p.Iterdir(ctx)
	if err != nil {
		return err
	}
	if len(children) > 0 {
		return duoerr.New(duoerr.UnsupportedOperation, "rmdir", p.String(), nil)
	}
	marker := Path{bucket: p.bucket, key: strings.TrimSuffix(p.key, "/") + "/"}
	_ = marker.Unlink(ctx)
	return nil
}

func (p Path) Rename(ctx context.Context, newName string) (vpath.Path, error) {
	return nil, duoerr.New(duoerr.UnsupportedOperation, "rename", p.String(), nil)
}

func (p Path) CopyTo(ctx context.Context, dst vpath.Path) error {
	isDir, err := p.IsDir(ctx)
	if err != nil {
		return err
	}
	if isDir {
		if err := dst.Mkdir(ctx); err != nil {
			return err
		}
		children, err := p.Iterdir(ctx)
		if err != nil {
			return err
		}
		for _, c := range children {
			if err := c.CopyTo(ctx, dst.Join(c.Name())); err != nil {
				return err
			}
		}
		return nil
	}
	if other, ok := dst.(Path); ok {
		c, err := client()
		if err != nil {
			return err
		}
		_, err = c.CopyObjectWithContext(ctx, &s3.CopyObjectInput{
			Bucket:     aws.String(other.bucket),
			Key:        aws.String(other.key),
			CopySource: aws.String(p.bucket + "/" + p.key),
		})
		if err != nil {
			return classify("copy", dst.String(), err)
		}
		return nil
	}
	b, err := p.ReadBytes(ctx)
	if err != nil {
		return err
	}
	return dst.WriteBytes(ctx, b)
}

func (p Path) MoveTo(ctx context.Context, dst vpath.Path, overwrite bool) error {
	if exists, _ := dst.Exists(ctx); exists && !overwrite {
		return duoerr.New(duoerr.AlreadyExists, "move", dst.String(), nil)
	}
	if err := p.CopyTo(ctx, dst); err != nil {
		return err
	}
	return p.Unlink(ctx)
}

func (p Path) Glob(ctx context.Context, pattern string) ([]vpath.Path, error) {
	children, err := p.Iterdir(ctx)
	if err != nil {
		return nil, err
	}
	var out []vpath.Path
	for _, c := range children {
		if ok, _ := path.Match(pattern, c.Name()); ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (p Path) Rglob(ctx context.Context, pattern string) ([]vpath.Path, error) {
	c, err := client()
	if err != nil {
		return nil, err
	}
	var out []vpath.Path
	err = c.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(p.bucket),
		Prefix: aws.String(p.dirPrefix()),
	}, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, obj := range page.Contents {
			k := aws.StringValue(obj.Key)
			name := k
			if idx := strings.LastIndexByte(k, '/'); idx >= 0 {
				name = k[idx+1:]
			}
			if ok, _ := path.Match(pattern, name); ok {
				out = append(out, Path{bucket: p.bucket, key: k})
			}
		}
		return true
	})
	if err != nil {
		return nil, classify("rglob", p.String(), err)
	}
	return out, nil
}

func (p Path) Join(segment string) vpath.Path {
	if p.isRoot() {
		return Path{bucket: segment}
	}
	if p.key == "" {
		return Path{bucket: p.bucket, key: segment}
	}
	return Path{bucket: p.bucket, key: p.key + "/" + segment}
}

func (p Path) Parent() vpath.Path {
	if p.key == "" {
		return Path{}
	}
	if idx := strings.LastIndexByte(p.key, '/'); idx >= 0 {
		return Path{bucket: p.bucket, key: p.key[:idx]}
	}
	return Path{bucket: p.bucket}
}

func (p Path) Name() string {
	if p.isRoot() {
		return ""
	}
	if p.key == "" {
		return p.bucket
	}
	k := strings.TrimSuffix(p.key, "/")
	if idx := strings.LastIndexByte(k, '/'); idx >= 0 {
		return k[idx+1:]
	}
	return k
}

func (p Path) Stem() string {
	n := p.Name()
	if dot := strings.LastIndexByte(n, '.'); dot > 0 {
		return n[:dot]
	}
	return n
}

func (p Path) Suffix() string {
	n := p.Name()
	if dot := strings.LastIndexByte(n, '.'); dot > 0 {
		return n[dot:]
	}
	return ""
}

func (p Path) SupportsWriteOperations() bool        { return true }
func (p Path) SupportsDirectoryRename() bool        { return false }
func (p Path) SupportsFileEditing() bool            { return false }
func (p Path) RequiresExtractionForReading() bool   { return false }
func (p Path) SupportsStreamingRead() bool          { return true }
func (p Path) GetSearchStrategy() vpath.SearchStrategy { return vpath.StrategyBuffered }
func (p Path) ShouldCacheForSearch() bool           { return true }
func (p Path) IsRemote() bool                       { return true }

func (p Path) GetDisplayPrefix() string { return "s3://" }
func (p Path) GetDisplayTitle() string  { return p.String() }

func (p Path) GetExtendedMetadata(ctx context.Context) (vpath.ExtendedMetadata, error) {
	meta, err := p.Stat(ctx)
	if err != nil {
		return vpath.ExtendedMetadata{}, err
	}
	details := []vpath.KeyValue{{Label: "Bucket", Value: p.bucket}, {Label: "Key", Value: p.key}}
	if !meta.ModTime.IsZero() {
		details = append(details, vpath.KeyValue{Label: "Modified", Value: meta.ModTime.Format(time.RFC3339)})
	}
	return vpath.ExtendedMetadata{Type: "s3 object", Details: details}, nil
}
