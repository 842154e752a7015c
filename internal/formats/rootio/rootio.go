// Package rootio opens ROOT files for the validator through go-hep's groot.
package rootio

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go-hep.org/x/hep/groot"
	"go-hep.org/x/hep/groot/riofs"
	"go.uber.org/zap"

	"github.com/yourorg/rucio-tools/internal/logging"
	"github.com/yourorg/rucio-tools/internal/validate"
)

type Backend struct {
	log *zap.Logger
}

func New(log *zap.Logger) *Backend {
	return &Backend{log: logging.OrNop(log).Named("rootio")}
}

func (*Backend) Format() validate.Format { return validate.FormatROOT }

// Open separates files the OS cannot read (ErrOpen) from readable files
// groot rejects (ErrZombie).
func (b *Backend) Open(ctx context.Context, path string) (h validate.Handle, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", validate.ErrOpen, err)
	}
	raw.Close()

	// groot panics on some truncated headers
	defer func() {
		if r := recover(); r != nil {
			h, err = nil, fmt.Errorf("%w: %v", validate.ErrZombie, r)
		}
	}()
	f, err := groot.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", validate.ErrZombie, err)
	}
	recovered, scanErr := countRecovered(f, path)
	if scanErr != nil {
		b.log.Debug("record scan failed", zap.String("path", path), zap.Error(scanErr))
	}
	b.log.Debug("opened", zap.String("path", path), zap.Int("keys", len(f.Keys())), zap.Int("recovered", recovered))
	return &handle{f: f, recovered: recovered}, nil
}

type handle struct {
	f         *riofs.File
	recovered int
	closed    bool
}

// groot reports a file it cannot parse as an open error, so an opened
// handle is never a zombie.
func (h *handle) IsZombie() bool { return false }
func (h *handle) IsOpen() bool   { return !h.closed }

// Recovered is the number of key records found past the end the header
// records, i.e. data a writer never finalized.
func (h *handle) Recovered() int { return h.recovered }

func (h *handle) Keys() ([]validate.Key, error) {
	keys := h.f.Keys()
	out := make([]validate.Key, 0, len(keys))
	for i := range keys {
		out = append(out, key{k: &keys[i]})
	}
	return out, nil
}

func (h *handle) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	return h.f.Close()
}

type key struct {
	k *riofs.Key
}

func (k key) Name() string { return k.k.Name() }

func (k key) Read() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("decode %s: %v", k.k.Name(), r)
		}
	}()
	obj, err := k.k.Object()
	if err != nil {
		return err
	}
	if obj == nil {
		return errors.New("nil object")
	}
	return nil
}
