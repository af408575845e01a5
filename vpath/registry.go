package vpath

import (
	"sync"

	"github.com/duofs/duofs/duoerr"
)

// Backend knows how to parse a URI of one scheme into a Path. Concrete
// backends implement this and call Register from an init() func, the
// same pattern rclone uses for fs.Register/fs.RegInfo.
type Backend interface {
	// Scheme is the URI scheme this backend owns.
	Scheme() Scheme
	// Parse turns a well formed URI for this scheme into a Path.
	Parse(uri string) (Path, error)
}

var (
	registryMu sync.RWMutex
	registry   = map[Scheme]Backend{}
)

// Register adds a backend to the process-wide registry. Adding a new
// scheme requires calling Register from the new backend's init() and
// nothing else; the UI and task engine never branch on scheme.
func Register(b Backend) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[b.Scheme()] = b
}

// Lookup returns the backend registered for scheme, if any.
func Lookup(s Scheme) (Backend, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	b, ok := registry[s]
	return b, ok
}

// Parse dispatches uri to the backend for its scheme and returns the
// resulting Path. It is the sole entry point components outside the
// backends should use to turn a string into a Path.
func Parse(uri string) (Path, error) {
	scheme, err := sniffScheme(uri)
	if err != nil {
		return nil, err
	}
	b, ok := Lookup(scheme)
	if !ok {
		return nil, duoerr.Newf(duoerr.InvalidPath, "parse", uri, "no backend registered for scheme %q", scheme)
	}
	return b.Parse(uri)
}

// sniffScheme reads the leading "scheme://" of uri, defaulting to
// SchemeFile for strings with no such prefix (a bare native path).
func sniffScheme(uri string) (Scheme, error) {
	for _, s := range []Scheme{SchemeArchive, SchemeS3, SchemeSftp} {
		prefix := string(s) + "://"
		if len(uri) >= len(prefix) && uri[:len(prefix)] == prefix {
			return s, nil
		}
	}
	if uri == "" {
		return "", duoerr.New(duoerr.InvalidPath, "parse", uri, nil)
	}
	return SchemeFile, nil
}
