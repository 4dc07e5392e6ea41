package atomlog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DiskObjectStore is an ObjectStore storing each object as a file under a
// root directory. It mirrors the consistency profile of a remote blob store:
// O_EXCL protects a single path but nothing coordinates distinct paths, so
// ownership still belongs to the ledger.
type DiskObjectStore struct {
	// dataDir is the root directory holding all objects
	dataDir string
}

// DiskObjectStoreOptions hold all requirements to build a disk object store
type DiskObjectStoreOptions struct {
	// DataDir is the root directory that will be used to store all objects
	// on the disk. It's required
	DataDir string
}

// NewDiskObjectStore instantiate a disk object store under options.DataDir
func NewDiskObjectStore(options DiskObjectStoreOptions) (*DiskObjectStore, error) {
	if options.DataDir == "" {
		return nil, ErrDataDirRequired
	}
	if err := createDirectoryIfNotExist(options.DataDir, 0750); err != nil {
		return nil, err
	}
	return &DiskObjectStore{dataDir: options.DataDir}, nil
}

// Put stores data under path
func (d *DiskObjectStore) Put(ctx context.Context, path string, data []byte, overwrite bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	filename := filepath.Join(d.dataDir, filepath.FromSlash(path))
	if err := createDirectoryIfNotExist(filepath.Dir(filename), 0750); err != nil {
		return err
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	file, err := os.OpenFile(filename, flags, 0644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("put %s: %w", path, ErrObjectAlreadyExists)
		}
		return err
	}
	if _, err := file.Write(data); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

// Get returns the content stored under path
func (d *DiskObjectStore) Get(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(d.dataDir, filepath.FromSlash(path)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("get %s: %w", path, ErrObjectNotFound)
		}
		return nil, err
	}
	return data, nil
}

// Exists reports whether an object is stored under path
func (d *DiskObjectStore) Exists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := os.Stat(filepath.Join(d.dataDir, filepath.FromSlash(path)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// List returns all paths starting with prefix in lexical order
func (d *DiskObjectStore) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var paths []string
	err := filepath.WalkDir(d.dataDir, func(filename string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(d.dataDir, filename)
		if err != nil {
			return err
		}
		path := filepath.ToSlash(rel)
		if strings.HasPrefix(path, prefix) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}
