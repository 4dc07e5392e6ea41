package atomlog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackc/fake"
	"github.com/stretchr/testify/assert"
)

func TestObjectStores(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	stores := map[string]func(t *testing.T) ObjectStore{
		"memory": func(t *testing.T) ObjectStore {
			return NewMemoryObjectStore()
		},
		"disk": func(t *testing.T) ObjectStore {
			dataDir := filepath.Join(os.TempDir(), "atomlog_test", "object_store", t.Name())
			t.Cleanup(func() {
				assert.Nil(os.RemoveAll(dataDir))
			})
			store, err := NewDiskObjectStore(DiskObjectStoreOptions{DataDir: dataDir})
			assert.Nil(err)
			return store
		},
	}

	for name, build := range stores {
		t.Run(name+"_put_get_exists", func(t *testing.T) {
			store := build(t)
			content := []byte(fake.CharactersN(64))

			assert.Nil(store.Put(ctx, "logs/a/00000001.rec", content, false))
			data, err := store.Get(ctx, "logs/a/00000001.rec")
			assert.Nil(err)
			assert.Equal(content, data)

			exists, err := store.Exists(ctx, "logs/a/00000001.rec")
			assert.Nil(err)
			assert.True(exists)

			exists, err = store.Exists(ctx, "logs/a/missing.rec")
			assert.Nil(err)
			assert.False(exists)

			_, err = store.Get(ctx, "logs/a/missing.rec")
			assert.ErrorIs(err, ErrObjectNotFound)
		})

		t.Run(name+"_overwrite_semantics", func(t *testing.T) {
			store := build(t)

			assert.Nil(store.Put(ctx, "logs/b/object.rec", []byte("first"), false))
			err := store.Put(ctx, "logs/b/object.rec", []byte("second"), false)
			assert.ErrorIs(err, ErrObjectAlreadyExists)

			data, err := store.Get(ctx, "logs/b/object.rec")
			assert.Nil(err)
			assert.Equal([]byte("first"), data)

			assert.Nil(store.Put(ctx, "logs/b/object.rec", []byte("second"), true))
			data, err = store.Get(ctx, "logs/b/object.rec")
			assert.Nil(err)
			assert.Equal([]byte("second"), data)
		})

		t.Run(name+"_list_prefix_ordering", func(t *testing.T) {
			store := build(t)

			assert.Nil(store.Put(ctx, "logs/c/_log/00000000000000000002.rec", []byte("2"), false))
			assert.Nil(store.Put(ctx, "logs/c/_log/00000000000000000000.rec", []byte("0"), false))
			assert.Nil(store.Put(ctx, "logs/c/_log/00000000000000000001.rec", []byte("1"), false))
			assert.Nil(store.Put(ctx, "logs/d/_log/00000000000000000000.rec", []byte("x"), false))

			paths, err := store.List(ctx, "logs/c/_log/")
			assert.Nil(err)
			assert.Equal([]string{
				"logs/c/_log/00000000000000000000.rec",
				"logs/c/_log/00000000000000000001.rec",
				"logs/c/_log/00000000000000000002.rec",
			}, paths)

			paths, err = store.List(ctx, "logs/z/")
			assert.Nil(err)
			assert.Empty(paths)
		})
	}
}
