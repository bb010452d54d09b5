// Package source abstracts where pipeline inputs come from.  The loader and
// index builder read everything through an Opener, so local files and object
// storage are interchangeable, and names ending in ".gz" decompress
// transparently on either path.
package source

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// Opener resolves a source name to a readable stream.  Implementations wrap
// gzip decompression so callers always see plain bytes.
type Opener interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// FileOpener reads sources from the local filesystem.
type FileOpener struct{}

// NewFileOpener returns a filesystem-backed opener.
func NewFileOpener() *FileOpener {
	return &FileOpener{}
}

// Open opens a local file, decompressing ".gz" names.
func (FileOpener) Open(_ context.Context, name string) (io.ReadCloser, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	return MaybeGzip(f, name)
}

// MaybeGzip wraps rc in a gzip reader when the name carries a ".gz" suffix.
// The returned closer closes both the decompressor and the underlying
// stream.  On a bad gzip header the underlying stream is closed before the
// error comes back.
func MaybeGzip(rc io.ReadCloser, name string) (io.ReadCloser, error) {
	if !strings.HasSuffix(strings.ToLower(name), ".gz") {
		return rc, nil
	}
	zr, err := gzip.NewReader(rc)
	if err != nil {
		rc.Close()
		return nil, err
	}
	return &gzipReadCloser{zr: zr, under: rc}, nil
}

type gzipReadCloser struct {
	zr    *gzip.Reader
	under io.ReadCloser
}

func (g *gzipReadCloser) Read(p []byte) (int, error) {
	return g.zr.Read(p)
}

func (g *gzipReadCloser) Close() error {
	zerr := g.zr.Close()
	uerr := g.under.Close()
	if zerr != nil {
		return zerr
	}
	return uerr
}
