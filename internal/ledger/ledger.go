package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// ErrNotFound indicates no trace exists for the DID.
var ErrNotFound = errors.New("no trace recorded")

// Trace is the journal entry for one upload attempt.
type Trace struct {
	ID      string    `json:"id"`
	Time    time.Time `json:"time"`
	Scope   string    `json:"scope"`
	Name    string    `json:"name"`
	Dataset string    `json:"dataset,omitempty"`
	RSE     string    `json:"rse"`
	Path    string    `json:"path"`
	Bytes   int64     `json:"bytes"`
	Adler32 string    `json:"adler32,omitempty"`
	State   string    `json:"state"`
	Error   string    `json:"error,omitempty"`
}

const (
	tracePrefix = "trace/"
	didPrefix   = "did/"
)

// Ledger is a local badger journal of upload traces.
type Ledger struct {
	db *badger.DB
}

// DefaultDir returns $XDG_CACHE_HOME/rucio-tools/ledger (or the OS cache dir).
func DefaultDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "rucio-tools", "ledger")
}

// Open opens (or creates) the journal in dir. An empty dir keeps it in memory.
func Open(dir string) (*Ledger, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
		opts = badger.DefaultOptions(dir)
	}
	db, err := badger.Open(opts.WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	return &Ledger{db: db}, nil
}

func (l *Ledger) Close() error { return l.db.Close() }

func traceKey(t Trace) []byte {
	return []byte(fmt.Sprintf("%s%020d/%s", tracePrefix, t.Time.UnixNano(), t.ID))
}

func didKey(scope, name string) []byte {
	return []byte(didPrefix + scope + ":" + name)
}

// Record stores t, filling ID and Time when unset. The per-DID index always
// points at the latest trace.
func (l *Ledger) Record(ctx context.Context, t Trace) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Time.IsZero() {
		t.Time = time.Now().UTC()
	}
	v, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return l.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(traceKey(t), v); err != nil {
			return err
		}
		return txn.Set(didKey(t.Scope, t.Name), v)
	})
}

// Latest returns the most recent trace for scope:name.
func (l *Ledger) Latest(scope, name string) (Trace, error) {
	var t Trace
	err := l.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(didKey(scope, name))
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error { return json.Unmarshal(v, &t) })
	})
	return t, err
}

// List returns up to limit traces, newest first. limit <= 0 returns all.
func (l *Ledger) List(limit int) ([]Trace, error) {
	var out []Trace
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(tracePrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		// reverse iteration starts at the greatest key <= seek
		seek := append([]byte(tracePrefix), 0xff)
		for it.Seek(seek); it.ValidForPrefix([]byte(tracePrefix)); it.Next() {
			var t Trace
			if err := it.Item().Value(func(v []byte) error { return json.Unmarshal(v, &t) }); err != nil {
				return err
			}
			out = append(out, t)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
		return nil
	})
	return out, err
}
