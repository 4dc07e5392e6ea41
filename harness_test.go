package atomlog

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHarness(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	t.Run("validation", func(t *testing.T) {
		_, err := NewHarness(nil, HarnessOptions{LogID: "logs/run"})
		assert.ErrorIs(err, ErrStoreRequired)

		store, _ := newTestStore(t, NewMemoryLedger())
		_, err = NewHarness(store, HarnessOptions{})
		assert.ErrorIs(err, ErrLogIDRequired)
	})

	t.Run("sixteen_writers_two_readers_exactly_once", func(t *testing.T) {
		store, _ := newTestStore(t, NewMemoryLedger())
		harness, err := NewHarness(store, HarnessOptions{
			LogID:                    "logs/run",
			Writers:                  16,
			Readers:                  2,
			Transactions:             16,
			PollIntervalMilliseconds: 5,
		})
		assert.Nil(err)

		report, err := harness.Run(ctx)
		assert.Nil(err)
		assert.Equal(uint64(16), report.FinalCount)
		assert.Equal(uint(16), report.Transactions)
		assert.Greater(report.TxPerSec, 0.0)

		// a direct count filtered by run id agrees with the report
		count, err := harness.CountRun(ctx)
		assert.Nil(err)
		assert.Equal(uint64(16), count)
	})

	t.Run("payloads_are_tagged_and_distinct", func(t *testing.T) {
		store, _ := newTestStore(t, NewMemoryLedger())
		harness, err := NewHarness(store, HarnessOptions{
			LogID:                    "logs/run",
			Writers:                  4,
			Readers:                  1,
			Transactions:             8,
			PollIntervalMilliseconds: 5,
		})
		assert.Nil(err)

		_, err = harness.Run(ctx)
		assert.Nil(err)

		seen := make(map[uint]bool)
		reader := store.ReadFrom("logs/run", 0)
		for i := 0; i < 8; i++ {
			record, err := reader.Next(ctx)
			assert.Nil(err)

			var payload workloadPayload
			assert.Nil(json.Unmarshal(record.Payload, &payload))
			assert.Equal(harness.RunID(), payload.RunID)
			assert.False(seen[payload.N])
			seen[payload.N] = true
		}
	})

	t.Run("two_runs_share_one_log", func(t *testing.T) {
		store, _ := newTestStore(t, NewMemoryLedger())

		first, err := NewHarness(store, HarnessOptions{
			LogID:                    "logs/shared",
			Writers:                  4,
			Readers:                  1,
			Transactions:             6,
			PollIntervalMilliseconds: 5,
		})
		assert.Nil(err)
		second, err := NewHarness(store, HarnessOptions{
			LogID:                    "logs/shared",
			Writers:                  4,
			Readers:                  1,
			Transactions:             10,
			PollIntervalMilliseconds: 5,
		})
		assert.Nil(err)

		_, err = first.Run(ctx)
		assert.Nil(err)
		_, err = second.Run(ctx)
		assert.Nil(err)

		// run-id filtering keeps the counts independent
		firstCount, err := first.CountRun(ctx)
		assert.Nil(err)
		assert.Equal(uint64(6), firstCount)

		total, err := store.CountWhere(ctx, "logs/shared", 0, nil)
		assert.Nil(err)
		assert.Equal(uint64(16), total)
	})

	t.Run("exactly_once_under_ambiguous_failures", func(t *testing.T) {
		inner := NewMemoryLedger()
		faulty, err := NewFaultyLedger(inner, FaultyLedgerOptions{
			ErrorRates: map[string]float64{OpPutIfAbsent: 0.2, OpUpdate: 0.1},
			Seed:       99,
		})
		assert.Nil(err)

		store, err := NewStore(NewMemoryObjectStore(), faulty, StoreOptions{
			RetryBackoffMilliseconds: 1,
			MaxUnavailableRetries:    20,
		})
		assert.Nil(err)

		harness, err := NewHarness(store, HarnessOptions{
			LogID:                    "logs/run",
			Writers:                  16,
			Readers:                  2,
			Transactions:             16,
			PollIntervalMilliseconds: 5,
		})
		assert.Nil(err)

		report, err := harness.Run(ctx)
		assert.Nil(err)
		assert.Equal(uint64(16), report.FinalCount)
	})
}
