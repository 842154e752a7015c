package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"

	"github.com/yourorg/rucio-tools/internal/config"
)

var (
	// ErrNotFound indicates the object does not exist.
	ErrNotFound = errors.New("object not found")
	// ErrUnsupportedScheme indicates a URI the store cannot handle.
	ErrUnsupportedScheme = errors.New("unsupported scheme")
)

// ObjectStore defines the minimal operations the upload client needs on an RSE.
type ObjectStore interface {
	// Get returns a reader for the given URI and its size.
	Get(ctx context.Context, uri string) (io.ReadCloser, int64, error)
	// Put writes content to the given URI; returns the final URI.
	Put(ctx context.Context, uri string, body io.Reader) (string, error)
	// Stat returns the object size or ErrNotFound.
	Stat(ctx context.Context, uri string) (int64, error)
}

// Open returns the store that serves rse, chosen by the scheme of its prefix.
func Open(ctx context.Context, rse config.RSE) (ObjectStore, error) {
	u, err := url.Parse(rse.Prefix)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "s3":
		return NewS3(ctx, S3Options{Endpoint: rse.Endpoint, Region: rse.Region, PathStyle: rse.PathStyle})
	case "file":
		return FileStore{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme)
	}
}
