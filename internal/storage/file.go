package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
)

// FileStore serves file:// RSEs, e.g. a POSIX area shared with an xrootd door.
type FileStore struct{}

func filePath(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", err
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme)
	}
	if u.Path == "" {
		return "", errors.New("invalid file uri")
	}
	return filepath.FromSlash(u.Path), nil
}

func (FileStore) Get(ctx context.Context, uri string) (io.ReadCloser, int64, error) {
	p, err := filePath(uri)
	if err != nil {
		return nil, 0, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, 0, fmt.Errorf("%w: %s", ErrNotFound, uri)
		}
		return nil, 0, err
	}
	info, _ := f.Stat()
	size := int64(0)
	if info != nil {
		size = info.Size()
	}
	return f, size, nil
}

// Put writes to a temp file next to the target and renames it into place,
// so readers never see a partial file.
func (FileStore) Put(ctx context.Context, uri string, body io.Reader) (string, error) {
	p, err := filePath(uri)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), "."+filepath.Base(p)+".part-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return "", err
	}
	return uri, nil
}

func (FileStore) Stat(ctx context.Context, uri string) (int64, error) {
	p, err := filePath(uri)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("%w: %s", ErrNotFound, uri)
		}
		return 0, err
	}
	return info.Size(), nil
}
