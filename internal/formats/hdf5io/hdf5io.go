// Package hdf5io opens HDF5 files for the validator through scigolib/hdf5.
package hdf5io

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/scigolib/hdf5"
	"go.uber.org/zap"

	"github.com/yourorg/rucio-tools/internal/logging"
	"github.com/yourorg/rucio-tools/internal/validate"
)

type Backend struct {
	log *zap.Logger
}

func New(log *zap.Logger) *Backend {
	return &Backend{log: logging.OrNop(log).Named("hdf5io")}
}

func (*Backend) Format() validate.Format { return validate.FormatHDF5 }

func (b *Backend) Open(ctx context.Context, path string) (h validate.Handle, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", validate.ErrOpen, err)
	}
	raw.Close()

	defer func() {
		if r := recover(); r != nil {
			h, err = nil, fmt.Errorf("%w: %v", validate.ErrZombie, r)
		}
	}()
	f, err := hdf5.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", validate.ErrZombie, err)
	}
	b.log.Debug("opened", zap.String("path", path))
	return &handle{f: f}, nil
}

type handle struct {
	f      *hdf5.File
	closed bool
}

func (h *handle) IsZombie() bool { return false }
func (h *handle) IsOpen() bool   { return !h.closed }

// Keys lists every object below the root group.
func (h *handle) Keys() (keys []validate.Key, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("walk: %v", r)
		}
	}()
	h.f.Walk(func(path string, obj hdf5.Object) {
		if path == "/" {
			return
		}
		keys = append(keys, key{path: path, obj: obj})
	})
	return keys, nil
}

func (h *handle) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	return h.f.Close()
}

type key struct {
	path string
	obj  hdf5.Object
}

func (k key) Name() string { return k.path }

// Read parses the object header and decodes the values with the reader
// matching the datatype. Groups read their attributes.
func (k key) Read() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: %v", k.path, r)
		}
	}()
	switch v := k.obj.(type) {
	case *hdf5.Group:
		if v == nil {
			return fmt.Errorf("%s: nil group", k.path)
		}
		_, err := v.Attributes()
		return err
	case *hdf5.Dataset:
		if v == nil {
			return fmt.Errorf("%s: nil dataset", k.path)
		}
		return readDataset(v)
	case nil:
		return fmt.Errorf("%s: no object", k.path)
	default:
		return fmt.Errorf("%s: unsupported object %T", k.path, v)
	}
}

func readDataset(ds *hdf5.Dataset) error {
	info, err := ds.Info()
	if err != nil {
		return err
	}
	// Info is "Dataset: <class> (size=N bytes), <dataspace>, <layout>"
	class := strings.TrimPrefix(info, "Dataset: ")
	numeric := strings.HasPrefix(class, "integer") || strings.HasPrefix(class, "float")
	switch {
	case numeric && (strings.Contains(class, "(size=4 bytes)") || strings.Contains(class, "(size=8 bytes)")):
		// the float64 reader converts 4 and 8 byte numbers only
		_, err = ds.Read()
	case strings.HasPrefix(class, "string"):
		_, err = ds.ReadStrings()
	case strings.HasPrefix(class, "compound"):
		_, err = ds.ReadCompound()
	default:
		// no value reader for this class; the header parsed
		_, err = ds.Attributes()
	}
	return err
}
