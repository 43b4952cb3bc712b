// Package file implements a local filesystem-backed data source.
package file

import (
	"context"
	"io"
	"net/url"
	"os"

	"github.com/pkg/errors"

	"movieetl/internal/datasource"
)

func init() {
	datasource.Register("file", func(ref *url.URL, _ datasource.Options) (datasource.Source, error) {
		p := ref.Path
		if ref.Host != "" && ref.Host != "localhost" {
			// file://relative/path parses the first segment as host.
			p = ref.Host + p
		}
		if p == "" {
			return nil, errors.New("file: empty path")
		}
		return NewLocal(p), nil
	})
}

// Local is a filesystem data source that opens files from the local disk.
type Local struct{ path string }

// NewLocal returns a new Local data source bound to the provided filesystem
// path.
func NewLocal(path string) *Local { return &Local{path: path} }

// Path returns the bound path.
func (l *Local) Path() string { return l.path }

// Open opens the configured path for reading. A canceled context fails
// before touching the filesystem. Filesystem errors keep their cause so
// errors.Is(err, os.ErrNotExist) still works.
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, errors.WithMessagef(err, "file: open %s", l.path)
	}
	adviseSequential(f)
	return f, nil
}
