// Package sftpfs provides a vpath.Path implementation backed by an SFTP
// server, adapted from rclone's backend/sftp: the same
// ssh.ClientConfig-plus-pkg/sftp.Client pairing, collapsed to one
// pooled connection per (user, host, port) rather than rclone's full
// connection pool, since a terminal file manager's concurrency needs
// are modest compared to a sync engine moving many files in parallel.
package sftpfs

import (
	"context"
	"io"
	"net"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"

	"github.com/duofs/duofs/duoerr"
	"github.com/duofs/duofs/vpath"
)

func init() {
	vpath.Register(backend{})
}

type backend struct{}

func (backend) Scheme() vpath.Scheme { return vpath.SchemeSftp }

// Parse accepts scp://[user@]host[:port]/abs/path. Authentication is
// resolved out of band (ssh-agent), matching how a terminal file
// manager's remote bookmarks are expected to carry no embedded secret.
func (backend) Parse(uri string) (vpath.Path, error) {
	const prefix = "scp://"
	if !strings.HasPrefix(uri, prefix) {
		return nil, duoerr.New(duoerr.InvalidPath, "parse", uri, nil)
	}
	rest := uri[len(prefix):]
	slash := strings.IndexByte(rest, '/')
	hostPart := rest
	remote := "/"
	if slash >= 0 {
		hostPart = rest[:slash]
		remote = rest[slash:]
	}
	user := ""
	hostport := hostPart
	if at := strings.IndexByte(hostPart, '@'); at >= 0 {
		user = hostPart[:at]
		hostport = hostPart[at+1:]
	}
	host, port := hostport, "22"
	if idx := strings.LastIndexByte(hostport, ':'); idx >= 0 {
		host, port = hostport[:idx], hostport[idx+1:]
	}
	if user == "" {
		user = currentUser()
	}
	return Path{user: user, host: host, port: port, remote: path.Clean(remote)}, nil
}

func currentUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return os.Getenv("LOGNAME")
}

// statEntry is one cached Lstat result, aged out after statCacheTTL so a
// long-lived connection doesn't serve arbitrarily stale metadata for a
// file that changed on the remote side out of band.
type statEntry struct {
	fi     os.FileInfo
	cached time.Time
}

// statCacheTTL bounds how long a cached stat (whether obtained directly
// or harvested from a directory listing) is trusted before stat()
// re-fetches it over the wire.
const statCacheTTL = 30 * time.Second

// conn bundles a live ssh + sftp client pair for one (user, host, port),
// plus the bulk-stat cache every Path sharing that connection consults:
// Iterdir's single READDIR round trip populates one entry per child, so
// a subsequent Stat() on any of those children is a cache hit rather
// than its own round trip, the same reduction tfm's SSHConnection/
// SSHCache pairing measures (one list call instead of one-list-plus-
// one-stat-per-file).
type conn struct {
	ssh  *ssh.Client
	sftp *sftp.Client

	statMu sync.Mutex
	stats  map[string]statEntry
}

func (c *conn) cacheStat(remote string, fi os.FileInfo) {
	c.statMu.Lock()
	defer c.statMu.Unlock()
	c.stats[remote] = statEntry{fi: fi, cached: time.Now()}
}

func (c *conn) cachedStat(remote string) (os.FileInfo, bool) {
	c.statMu.Lock()
	defer c.statMu.Unlock()
	e, ok := c.stats[remote]
	if !ok || time.Since(e.cached) > statCacheTTL {
		return nil, false
	}
	return e.fi, true
}

// invalidateStat drops any cached stat for remote, called after any
// operation that creates, removes, or otherwise changes what a future
// Lstat on that path would report.
func (c *conn) invalidateStat(remote string) {
	c.statMu.Lock()
	defer c.statMu.Unlock()
	delete(c.stats, remote)
}

var (
	connMu sync.Mutex
	conns  = map[string]*conn{}
)

func dial(user, host, port string) (*conn, error) {
	key := user + "@" + host + ":" + port
	connMu.Lock()
	defer connMu.Unlock()
	if c, ok := conns[key]; ok {
		return c, nil
	}

	config := &ssh.ClientConfig{
		User:            user,
		Auth:            authMethods(),
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         30 * time.Second,
	}
	addr := net.JoinHostPort(host, port)
	sshClient, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return nil, duoerr.New(duoerr.RemoteError, "dial", addr, err)
	}
	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, duoerr.New(duoerr.RemoteError, "sftp_handshake", addr, err)
	}
	c := &conn{ssh: sshClient, sftp: sftpClient, stats: map[string]statEntry{}}
	conns[key] = c
	return c, nil
}

// authMethods prefers a running ssh-agent, the same default rclone's
// sftp backend falls back to when no explicit key or password is
// configured (KeyUseAgent).
func authMethods() []ssh.AuthMethod {
	sock := os.Getenv("SSH_AUTH_SOCK")
	if sock == "" {
		return nil
	}
	conn, err := net.Dial("unix", sock)
	if err != nil {
		return nil
	}
	ag := agent.NewClient(conn)
	return []ssh.AuthMethod{ssh.PublicKeysCallback(ag.Signers)}
}

// Path addresses one location on an SFTP server.
type Path struct {
	user, host, port, remote string
}

var _ vpath.Path = Path{}

func (p Path) String() string {
	return "scp://" + p.user + "@" + p.host + ":" + p.port + p.remote
}

func (p Path) Scheme() vpath.Scheme { return vpath.SchemeSftp }

func (p Path) conn() (*conn, error) {
	return dial(p.user, p.host, p.port)
}

func (p Path) client() (*sftp.Client, error) {
	c, err := p.conn()
	if err != nil {
		return nil, err
	}
	return c.sftp, nil
}

func classify(op, path string, err error) error {
	if err == nil {
		return nil
	}
	if os.IsNotExist(err) {
		return duoerr.New(duoerr.NotFound, op, path, err)
	}
	if os.IsPermission(err) {
		return duoerr.New(duoerr.PermissionDenied, op, path, err)
	}
	if _, ok := err.(*sftp.StatusError); ok {
		return duoerr.New(duoerr.RemoteError, op, path, err)
	}
	return duoerr.New(duoerr.RemoteError, op, path, err)
}

func (p Path) Iterdir(ctx context.Context) ([]vpath.Path, error) {
	c, err := p.conn()
	if err != nil {
		return nil, err
	}
	infos, err := c.sftp.ReadDir(p.remote)
	if err != nil {
		return nil, classify("iterdir", p.remote, err)
	}
	out := make([]vpath.Path, 0, len(infos))
	for _, fi := range infos {
		childRemote := path.Join(p.remote, fi.Name())
		c.cacheStat(childRemote, fi)
		out = append(out, Path{user: p.user, host: p.host, port: p.port, remote: childRemote})
	}
	return out, nil
}

// stat consults the connection's bulk-stat cache before issuing its own
// Lstat round trip, and populates the cache on a miss so a repeated
// stat of the same path (common when a listing is re-stat'd for
// display metadata right after Iterdir) doesn't cost its own call.
func (p Path) stat() (os.FileInfo, error) {
	c, err := p.conn()
	if err != nil {
		return nil, err
	}
	if fi, ok := c.cachedStat(p.remote); ok {
		return fi, nil
	}
	fi, err := c.sftp.Lstat(p.remote)
	if err != nil {
		return nil, err
	}
	c.cacheStat(p.remote, fi)
	return fi, nil
}

func (p Path) Exists(ctx context.Context) (bool, error) {
	_, err := p.stat()
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, classify("exists", p.remote, err)
}

func (p Path) IsDir(ctx context.Context) (bool, error) {
	fi, err := p.stat()
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, classify("is_dir", p.remote, err)
	}
	return fi.IsDir(), nil
}

func (p Path) IsFile(ctx context.Context) (bool, error) {
	fi, err := p.stat()
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, classify("is_file", p.remote, err)
	}
	return fi.Mode().IsRegular(), nil
}

func (p Path) IsSymlink(ctx context.Context) (bool, error) {
	fi, err := p.stat()
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, classify("is_symlink", p.remote, err)
	}
	return fi.Mode()&os.ModeSymlink != 0, nil
}

func (p Path) Stat(ctx context.Context) (vpath.EntryMetadata, error) {
	fi, err := p.stat()
	if err != nil {
		return vpath.EntryMetadata{}, classify("stat", p.remote, err)
	}
	kind := vpath.KindFile
	switch {
	case fi.Mode()&os.ModeSymlink != 0:
		kind = vpath.KindSymlink
	case fi.IsDir():
		kind = vpath.KindDir
	}
	return vpath.EntryMetadata{
		Size:     uint64(fi.Size()),
		ModTime:  fi.ModTime(),
		ModeBits: uint32(fi.Mode().Perm()),
		Kind:     kind,
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
	c, err := p.client()
	if err != nil {
		return nil, err
	}
	f, err := c.Open(p.remote)
	if err != nil {
		return nil, classify("open_read", p.remote, err)
	}
	return f, nil
}

func (p Path) WriteText(ctx context.Context, s string) error {
	return p.WriteBytes(ctx, []byte(s))
}

func (p Path) WriteBytes(ctx context.Context, b []byte) error {
	c, err := p.conn()
	if err != nil {
		return err
	}
	f, err := c.sftp.Create(p.remote)
	if err != nil {
		return classify("write_bytes", p.remote, err)
	}
	defer f.Close()
	if _, err := f.Write(b); err != nil {
		return classify("write_bytes", p.remote, err)
	}
	c.invalidateStat(p.remote)
	return nil
}

func (p Path) Touch(ctx context.Context) error {
	c, err := p.conn()
	if err != nil {
		return err
	}
	defer c.invalidateStat(p.remote)
	now := time.Now()
	if err := c.sftp.Chtimes(p.remote, now, now); err == nil {
		return nil
	}
	f, err := c.sftp.Create(p.remote)
	if err != nil {
		return classify("touch", p.remote, err)
	}
	return f.Close()
}

func (p Path) Mkdir(ctx context.Context) error {
	c, err := p.conn()
	if err != nil {
		return err
	}
	if err := c.sftp.MkdirAll(p.remote); err != nil {
		return classify("mkdir", p.remote, err)
	}
	c.invalidateStat(p.remote)
	return nil
}

func (p Path) Unlink(ctx context.Context) error {
	c, err := p.conn()
	if err != nil {
		return err
	}
	if err := c.sftp.Remove(p.remote); err != nil {
		return classify("unlink", p.remote, err)
	}
	c.invalidateStat(p.remote)
	return nil
}

func (p Path) Rmdir(ctx context.Context) error {
	fi, err := p.stat()
	if err != nil {
		return classify("rmdir", p.remote, err)
	}
	if !fi.IsDir() {
		return duoerr.New(duoerr.UnsupportedOperation, "rmdir", p.remote, nil)
	}
	c, err := p.conn()
	if err != nil {
		return err
	}
	if err := c.sftp.RemoveDirectory(p.remote); err != nil {
		return classify("rmdir", p.remote, err)
	}
	c.invalidateStat(p.remote)
	return nil
}

func (p Path) Rename(ctx context.Context, newName string) (vpath.Path, error) {
	c, err := p.conn()
	if err != nil {
		return nil, err
	}
	dst := path.Join(path.Dir(p.remote), newName)
	if err := c.sftp.Rename(p.remote, dst); err != nil {
		return nil, classify("rename", p.remote, err)
	}
	c.invalidateStat(p.remote)
	c.invalidateStat(dst)
	return Path{user: p.user, host: p.host, port: p.port, remote: dst}, nil
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
	r, err := p.OpenRead(ctx)
	if err != nil {
		return err
	}
	defer r.Close()
	b, err := io.ReadAll(r)
	if err != nil {
		return duoerr.New(duoerr.RemoteError, "copy", p.remote, err)
	}
	return dst.WriteBytes(ctx, b)
}

func (p Path) MoveTo(ctx context.Context, dst vpath.Path, overwrite bool) error {
	if exists, _ := dst.Exists(ctx); exists && !overwrite {
		return duoerr.New(duoerr.AlreadyExists, "move", dst.String(), nil)
	}
	if other, ok := dst.(Path); ok && other.user == p.user && other.host == p.host && other.port == p.port {
		c, err := p.conn()
		if err != nil {
			return err
		}
		if err := c.sftp.Rename(p.remote, other.remote); err == nil {
			c.invalidateStat(p.remote)
			c.invalidateStat(other.remote)
			return nil
		}
	}
	if err := p.CopyTo(ctx, dst); err != nil {
		return err
	}
	isDir, err := p.IsDir(ctx)
	if err != nil {
		return err
	}
	if isDir {
		c, cerr := p.conn()
		if cerr != nil {
			return cerr
		}
		err := c.sftp.RemoveDirectory(p.remote)
		c.invalidateStat(p.remote)
		return err
	}
	return p.Unlink(ctx)
}

func (p Path) Glob(ctx context.Context, pattern string) ([]vpath.Path, error) {
	c, err := p.client()
	if err != nil {
		return nil, err
	}
	matches, err := c.Glob(path.Join(p.remote, pattern))
	if err != nil {
		return nil, duoerr.New(duoerr.InvalidPath, "glob", pattern, err)
	}
	out := make([]vpath.Path, 0, len(matches))
	for _, m := range matches {
		out = append(out, Path{user: p.user, host: p.host, port: p.port, remote: m})
	}
	return out, nil
}

func (p Path) Rglob(ctx context.Context, pattern string) ([]vpath.Path, error) {
	c, err := p.client()
	if err != nil {
		return nil, err
	}
	var out []vpath.Path
	walker := c.Walk(p.remote)
	for walker.Step() {
		if walker.Err() != nil {
			continue
		}
		ok, err := path.Match(pattern, walker.Stat().Name())
		if err == nil && ok {
			out = append(out, Path{user: p.user, host: p.host, port: p.port, remote: walker.Path()})
		}
	}
	return out, nil
}

func (p Path) Join(segment string) vpath.Path {
	return Path{user: p.user, host: p.host, port: p.port, remote: path.Join(p.remote, segment)}
}

func (p Path) Parent() vpath.Path {
	return Path{user: p.user, host: p.host, port: p.port, remote: path.Dir(p.remote)}
}

func (p Path) Name() string {
	return path.Base(p.remote)
}

func (p Path) Stem() string {
	n := p.Name()
	return strings.TrimSuffix(n, path.Ext(n))
}

func (p Path) Suffix() string {
	return path.Ext(p.remote)
}

func (p Path) SupportsWriteOperations() bool        { return true }
func (p Path) SupportsDirectoryRename() bool        { return true }
func (p Path) SupportsFileEditing() bool            { return true }
func (p Path) RequiresExtractionForReading() bool   { return false }
func (p Path) SupportsStreamingRead() bool          { return true }
func (p Path) GetSearchStrategy() vpath.SearchStrategy { return vpath.StrategyBuffered }
func (p Path) ShouldCacheForSearch() bool           { return true }
func (p Path) IsRemote() bool                       { return true }

func (p Path) GetDisplayPrefix() string { return p.user + "@" + p.host }
func (p Path) GetDisplayTitle() string  { return p.remote }

func (p Path) GetExtendedMetadata(ctx context.Context) (vpath.ExtendedMetadata, error) {
	meta, err := p.Stat(ctx)
	if err != nil {
		return vpath.ExtendedMetadata{}, err
	}
	return vpath.ExtendedMetadata{
		Type: "sftp",
		Details: []vpath.KeyValue{
			{Label: "Host", Value: p.host + ":" + p.port},
			{Label: "Path", Value: p.remote},
			{Label: "Mode", Value: os.FileMode(meta.ModeBits).String()},
		},
	}, nil
}
