// Package datasource opens the raw inputs of a pipeline. A source reference
// is a bare path, a file:// URL, an http(s):// URL or an s3://bucket/key URL;
// the scheme selects a factory registered by a backend package.
package datasource

import (
	"context"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// Options carries settings for every source kind. Each factory reads the
// fields it needs.
type Options struct {
	HTTPTimeout time.Duration
	HTTPRetries int

	S3Region         string
	S3Endpoint       string
	S3ForcePathStyle bool
}

// Factory builds a Source for a parsed reference.
type Factory func(ref *url.URL, opt Options) (Source, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a factory available for scheme. Backend packages call it
// from init.
func Register(scheme string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[strings.ToLower(scheme)] = f
}

// Schemes lists the registered schemes.
func Schemes() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for s := range factories {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Resolve parses ref and returns a Source from the factory registered for its
// scheme. References without a scheme are local paths.
func Resolve(ref string, opt Options) (Source, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, errors.New("datasource: empty reference")
	}
	u, err := Parse(ref)
	if err != nil {
		return nil, err
	}
	mu.RLock()
	f, ok := factories[u.Scheme]
	mu.RUnlock()
	if !ok {
		return nil, errors.Errorf("datasource: no source registered for scheme %q (have %v)", u.Scheme, Schemes())
	}
	src, err := f(u, opt)
	if err != nil {
		return nil, errors.Wrapf(err, "datasource: %s", ref)
	}
	return src, nil
}

// Parse turns ref into a URL, mapping bare paths to the file scheme.
func Parse(ref string) (*url.URL, error) {
	if !strings.Contains(ref, "://") {
		return &url.URL{Scheme: "file", Path: ref}, nil
	}
	u, err := url.Parse(ref)
	if err != nil {
		return nil, errors.Wrapf(err, "datasource: parse %q", ref)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	return u, nil
}
