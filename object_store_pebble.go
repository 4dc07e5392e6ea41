package atomlog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cockroachdb/pebble"
)

// PebbleObjectStore is an ObjectStore backed by a local pebble database, one
// key per object path. It gives the harness a durable single-host object
// store without a remote bucket. Like the other implementations, it never
// arbitrates ownership.
type PebbleObjectStore struct {
	db *pebble.DB
}

// PebbleObjectStoreOptions hold all requirements to build a pebble object store
type PebbleObjectStoreOptions struct {
	// DataDir is the directory that will be used to store the pebble
	// database on the disk. It's required
	DataDir string

	// Options allows advanced pebble tuning. If nil, defaults are used
	Options *pebble.Options
}

// NewPebbleObjectStore instantiate a pebble object store under options.DataDir
func NewPebbleObjectStore(options PebbleObjectStoreOptions) (*PebbleObjectStore, error) {
	if options.DataDir == "" {
		return nil, ErrDataDirRequired
	}
	pebbleOptions := options.Options
	if pebbleOptions == nil {
		pebbleOptions = &pebble.Options{}
	}
	db, err := pebble.Open(options.DataDir, pebbleOptions)
	if err != nil {
		return nil, err
	}
	return &PebbleObjectStore{db: db}, nil
}

// Close will close the pebble database
func (p *PebbleObjectStore) Close() error {
	return p.db.Close()
}

// Put stores data under path
func (p *PebbleObjectStore) Put(ctx context.Context, path string, data []byte, overwrite bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !overwrite {
		_, closer, err := p.db.Get([]byte(path))
		switch {
		case err == nil:
			_ = closer.Close()
			return fmt.Errorf("put %s: %w", path, ErrObjectAlreadyExists)
		case !errors.Is(err, pebble.ErrNotFound):
			return err
		}
	}
	return p.db.Set([]byte(path), data, pebble.Sync)
}

// Get returns the content stored under path
func (p *PebbleObjectStore) Get(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	value, closer, err := p.db.Get([]byte(path))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, fmt.Errorf("get %s: %w", path, ErrObjectNotFound)
		}
		return nil, err
	}
	defer func() {
		_ = closer.Close()
	}()
	return append([]byte{}, value...), nil
}

// Exists reports whether an object is stored under path
func (p *PebbleObjectStore) Exists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, closer, err := p.db.Get([]byte(path))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	_ = closer.Close()
	return true, nil
}

// List returns all paths starting with prefix in lexical order. Pebble keys
// are already sorted so a bounded iterator is enough
func (p *PebbleObjectStore) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: prefixUpperBound([]byte(prefix)),
	})
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = iter.Close()
	}()

	var paths []string
	for iter.First(); iter.Valid(); iter.Next() {
		path := string(iter.Key())
		if !strings.HasPrefix(path, prefix) {
			break
		}
		paths = append(paths, path)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	return paths, nil
}

// prefixUpperBound returns the smallest key greater than every key starting
// with prefix, or nil when no such bound exists
func prefixUpperBound(prefix []byte) []byte {
	bound := append([]byte{}, prefix...)
	for i := len(bound) - 1; i >= 0; i-- {
		if bound[i] < 0xff {
			bound[i]++
			return bound[:i+1]
		}
	}
	return nil
}
