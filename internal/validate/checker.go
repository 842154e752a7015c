package validate

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/yourorg/rucio-tools/internal/logging"
	"github.com/yourorg/rucio-tools/internal/metrics"
)

// Check names the gate a file failed.
type Check string

const (
	CheckExists   Check = "exists"
	CheckEmpty    Check = "empty"
	CheckOpen     Check = "open"
	CheckZombie   Check = "zombie"
	CheckIsOpen   Check = "is_open"
	CheckRecovery Check = "recovery"
	CheckKeys     Check = "keys"
	CheckRead     Check = "read"
)

// Result is the verdict for one file.
type Result struct {
	Path    string `json:"path"`
	Valid   bool   `json:"valid"`
	Check   Check  `json:"check,omitempty"`
	Message string `json:"message"`
}

// Checker runs the structural checks against files using one backend per format.
type Checker struct {
	backends map[Format]Backend
	log      *zap.Logger
}

func NewChecker(log *zap.Logger, backends ...Backend) *Checker {
	c := &Checker{backends: make(map[Format]Backend, len(backends)), log: logging.OrNop(log).Named("validate")}
	for _, b := range backends {
		c.backends[b.Format()] = b
	}
	return c
}

// Validate runs the checks in order and stops at the first failure.
func (c *Checker) Validate(ctx context.Context, path string) Result {
	r := c.validate(ctx, path)
	result := "valid"
	if !r.Valid {
		result = "invalid"
	}
	metrics.FilesValidated.WithLabelValues(result, string(r.Check)).Inc()
	return r
}

func (c *Checker) validate(ctx context.Context, path string) Result {
	fail := func(check Check, format string, args ...any) Result {
		msg := fmt.Sprintf(format, args...)
		c.log.Debug("check failed", zap.String("path", path), zap.String("check", string(check)), zap.String("reason", msg))
		return Result{Path: path, Check: check, Message: msg}
	}

	info, err := os.Stat(path)
	if err != nil {
		return fail(CheckExists, "File does not exist: %s", path)
	}
	if info.Size() == 0 {
		return fail(CheckEmpty, "File is empty: %s", path)
	}

	format := Detect(path)
	b, ok := c.backends[format]
	if !ok {
		c.log.Debug("no backend", zap.String("format", string(format)))
		return fail(CheckOpen, "Failed to open file: %s", path)
	}
	h, err := b.Open(ctx, path)
	if err != nil {
		c.log.Debug("open failed", zap.String("path", path), zap.Error(err))
		if errors.Is(err, ErrZombie) {
			return fail(CheckZombie, "File is zombie (corrupted): %s", path)
		}
		return fail(CheckOpen, "Failed to open file: %s", path)
	}
	defer func() {
		if err := h.Close(); err != nil {
			c.log.Debug("close failed", zap.String("path", path), zap.Error(err))
		}
	}()

	if h.IsZombie() {
		return fail(CheckZombie, "File is zombie (corrupted): %s", path)
	}
	if !h.IsOpen() {
		return fail(CheckIsOpen, "File is not open: %s", path)
	}
	if rec, ok := h.(Recoverer); ok && rec.Recovered() > 0 {
		return fail(CheckRecovery, "File required recovery (possibly corrupted): %s", path)
	}

	keys, err := h.Keys()
	if err != nil {
		c.log.Debug("listing keys failed", zap.String("path", path), zap.Error(err))
	}
	if len(keys) == 0 {
		return fail(CheckKeys, "File contains no keys/objects: %s", path)
	}
	for _, k := range keys {
		if err := k.Read(); err != nil {
			c.log.Debug("read failed", zap.String("path", path), zap.String("key", k.Name()), zap.Error(err))
			return fail(CheckRead, "Failed to read object '%s' from file: %s", k.Name(), path)
		}
	}

	c.log.Debug("file valid", zap.String("path", path), zap.String("format", string(format)), zap.Int("keys", len(keys)))
	return Result{Path: path, Valid: true, Message: "File is valid"}
}
