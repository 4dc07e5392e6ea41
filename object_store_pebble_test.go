package atomlog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPebbleObjectStore(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	t.Run("new_pebble_object_store_no_datadir", func(t *testing.T) {
		_, err := NewPebbleObjectStore(PebbleObjectStoreOptions{})
		assert.ErrorIs(err, ErrDataDirRequired)
	})

	t.Run("put_get_list", func(t *testing.T) {
		dataDir := filepath.Join(os.TempDir(), "atomlog_test", "pebble", "put_get_list")
		defer func() {
			assert.Nil(os.RemoveAll(dataDir))
		}()

		store, err := NewPebbleObjectStore(PebbleObjectStoreOptions{DataDir: dataDir})
		assert.Nil(err)
		defer func() {
			assert.Nil(store.Close())
		}()

		assert.Nil(store.Put(ctx, "log/_log/00000000000000000000.rec", []byte("zero"), false))
		assert.Nil(store.Put(ctx, "log/_log/00000000000000000001.rec", []byte("one"), false))
		assert.Nil(store.Put(ctx, "log/_log/.tmp/staged.rec", []byte("staged"), false))

		err = store.Put(ctx, "log/_log/00000000000000000000.rec", []byte("other"), false)
		assert.ErrorIs(err, ErrObjectAlreadyExists)

		data, err := store.Get(ctx, "log/_log/00000000000000000001.rec")
		assert.Nil(err)
		assert.Equal([]byte("one"), data)

		_, err = store.Get(ctx, "log/_log/00000000000000000002.rec")
		assert.ErrorIs(err, ErrObjectNotFound)

		exists, err := store.Exists(ctx, "log/_log/.tmp/staged.rec")
		assert.Nil(err)
		assert.True(exists)

		paths, err := store.List(ctx, "log/_log/0")
		assert.Nil(err)
		assert.Equal([]string{
			"log/_log/00000000000000000000.rec",
			"log/_log/00000000000000000001.rec",
		}, paths)
	})

	t.Run("prefix_upper_bound", func(t *testing.T) {
		assert.Equal([]byte("logt"), prefixUpperBound([]byte("logs")))
		assert.Equal([]byte{0x62}, prefixUpperBound([]byte{0x61, 0xff, 0xff}))
		assert.Nil(prefixUpperBound([]byte{0xff, 0xff}))
	})
}
