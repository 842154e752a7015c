package validate

import (
	"context"
	"errors"
)

var (
	// ErrOpen indicates the file could not be opened at all.
	ErrOpen = errors.New("cannot open file")
	// ErrZombie indicates the file opened but its header or directory is unusable.
	ErrZombie = errors.New("zombie file")
)

// Backend opens one file format.
type Backend interface {
	Format() Format
	// Open returns ErrZombie (wrapped) when the bytes are readable but the
	// format library rejects them, and ErrOpen for anything else.
	Open(ctx context.Context, path string) (Handle, error)
}

// Handle is an opened file.
type Handle interface {
	IsZombie() bool
	IsOpen() bool
	Keys() ([]Key, error)
	Close() error
}

// Key is a top-level object of an opened file.
type Key interface {
	Name() string
	// Read decodes the object behind the key.
	Read() error
}

// Recoverer is implemented by handles whose library can rebuild the key list
// of a file that was not closed cleanly. Recovered returns how many keys had
// to be recovered.
type Recoverer interface {
	Recovered() int
}
