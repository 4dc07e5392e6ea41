package atomlog

import (
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaths(t *testing.T) {
	assert := assert.New(t)

	t.Run("canonical_path_is_deterministic", func(t *testing.T) {
		assert.Equal("logs/orders/_log/00000000000000000007.rec", canonicalPathFor("logs/orders", 7))
		assert.Equal(canonicalPathFor("logs/orders", 7), canonicalPathFor("logs/orders", 7))
	})

	t.Run("canonical_paths_sort_versionwise", func(t *testing.T) {
		paths := []string{
			canonicalPathFor("logs/orders", 100),
			canonicalPathFor("logs/orders", 9),
			canonicalPathFor("logs/orders", 10),
		}
		sort.Strings(paths)
		assert.Equal(canonicalPathFor("logs/orders", 9), paths[0])
		assert.Equal(canonicalPathFor("logs/orders", 10), paths[1])
		assert.Equal(canonicalPathFor("logs/orders", 100), paths[2])
	})

	t.Run("temp_paths_are_unique_per_attempt", func(t *testing.T) {
		first := tempPathFor("logs/orders", 7)
		second := tempPathFor("logs/orders", 7)
		assert.NotEqual(first, second)
		assert.True(strings.HasPrefix(first, "logs/orders/_log/.tmp/"))
		assert.True(strings.HasPrefix(first, logPrefixFor("logs/orders")))
	})
}

func TestEncoding(t *testing.T) {
	assert := assert.New(t)

	t.Run("uint64_round_trip", func(t *testing.T) {
		for _, value := range []uint64{0, 1, 255, 1 << 20, 1<<63 - 1} {
			assert.Equal(value, decodeUint64FromBytes(encodeUint64ToBytes(value)))
		}
	})
}
