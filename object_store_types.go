package atomlog

import "context"

// ObjectStore is an interface abstracting the byte-blob store holding staged
// and canonical commit objects. Implementations must provide read-after-write
// consistency for a given path but are never trusted to arbitrate ownership:
// Put with overwrite=false may be implemented as a non-atomic check-then-write,
// the commit protocol only relies on the ledger for mutual exclusion.
type ObjectStore interface {
	// Put stores data under path. When overwrite is false and the path
	// already holds an object, ErrObjectAlreadyExists is returned
	Put(ctx context.Context, path string, data []byte, overwrite bool) error

	// Get returns the content stored under path or ErrObjectNotFound
	Get(ctx context.Context, path string) ([]byte, error)

	// Exists reports whether an object is stored under path
	Exists(ctx context.Context, path string) (bool, error)

	// List returns all paths starting with prefix in lexical order
	List(ctx context.Context, prefix string) ([]string, error)
}
