package atomlog

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Lord-Y/atomlog/logger"
)

// NewHarness instantiate a workload harness driving the provided store
func NewHarness(store *Store, options HarnessOptions) (*Harness, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if options.LogID == "" {
		return nil, ErrLogIDRequired
	}
	if options.Writers == 0 {
		options.Writers = defaultWriters
	}
	if options.Readers == 0 {
		options.Readers = defaultReaders
	}
	if options.Transactions == 0 {
		options.Transactions = defaultTransactions
	}
	if options.PollIntervalMilliseconds == 0 {
		options.PollIntervalMilliseconds = defaultPollInterval
	}
	if options.Logger == nil {
		options.Logger = logger.NewLogger()
	}

	return &Harness{
		store:   store,
		options: options,
		logger:  options.Logger,
		runID:   uuid.NewString(),
	}, nil
}

// Run drives the workload: Writers workers drain Transactions one-commit
// transactions while Readers workers poll the visible count of the run, then
// readers are stopped, a final authoritative count is taken and compared to
// Transactions. Any worker error halts the run and is returned as is; a count
// mismatch is reported through ErrCountMismatch.
func (h *Harness) Run(ctx context.Context) (Report, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	h.logger.Info().
		Str("logId", h.options.LogID).
		Str("runId", h.runID).
		Uint("writers", h.options.Writers).
		Uint("readers", h.options.Readers).
		Uint("transactions", h.options.Transactions).
		Msg("Starting workload")

	stopReading := make(chan struct{})
	readerErrors := make(chan error, h.options.Readers)
	var readers sync.WaitGroup
	for i := uint(0); i < h.options.Readers; i++ {
		readers.Add(1)
		go func(reader uint) {
			defer readers.Done()
			readerErrors <- h.readLoop(ctx, reader, stopReading)
		}(i)
	}

	start := time.Now()
	writeErr := h.runWriters(ctx)
	elapsed := time.Since(start)

	close(stopReading)
	readers.Wait()
	close(readerErrors)

	if writeErr != nil {
		return Report{}, writeErr
	}
	for err := range readerErrors {
		if err != nil {
			return Report{}, err
		}
	}

	finalCount, err := h.CountRun(ctx)
	if err != nil {
		return Report{}, err
	}

	report := Report{
		RunID:        h.runID,
		Transactions: h.options.Transactions,
		FinalCount:   finalCount,
		Elapsed:      elapsed,
		TxPerSec:     float64(h.options.Transactions) / elapsed.Seconds(),
	}
	if finalCount != uint64(h.options.Transactions) {
		return report, fmt.Errorf("expected %d records, observed %d: %w", h.options.Transactions, finalCount, ErrCountMismatch)
	}

	h.logger.Info().
		Str("runId", h.runID).
		Uint64("records", finalCount).
		Msgf("%.02f tx / sec", report.TxPerSec)
	return report, nil
}

// RunID returns the identifier tagged on every payload of this harness
func (h *Harness) RunID() string {
	return h.runID
}

// runWriters spreads Transactions one-commit transactions over Writers
// concurrent workers and returns the first error encountered
func (h *Harness) runWriters(ctx context.Context) error {
	jobs := make(chan uint, h.options.Transactions)
	for n := uint(0); n < h.options.Transactions; n++ {
		jobs <- n
	}
	close(jobs)

	writerErrors := make(chan error, h.options.Writers)
	var writers sync.WaitGroup
	for i := uint(0); i < h.options.Writers; i++ {
		writers.Add(1)
		go func() {
			defer writers.Done()
			for n := range jobs {
				if err := h.writeTransaction(ctx, n); err != nil {
					writerErrors <- err
					return
				}
			}
			writerErrors <- nil
		}()
	}
	writers.Wait()
	close(writerErrors)

	for err := range writerErrors {
		if err != nil {
			return err
		}
	}
	return nil
}

// writeTransaction commits one payload tagged with the run id and a random
// discriminator at the next free version of the target log
func (h *Harness) writeTransaction(ctx context.Context, n uint) error {
	payload, err := json.Marshal(workloadPayload{
		RunID: h.runID,
		ID:    rand.Intn(1 << 16),
		N:     n,
	})
	if err != nil {
		return err
	}

	version, err := h.store.Append(ctx, h.options.LogID, payload)
	if err != nil {
		return fmt.Errorf("transaction %d: %w", n, err)
	}
	h.logger.Debug().Str("runId", h.runID).Uint("transaction", n).Uint64("version", version).Msg("Committed transaction")
	return nil
}

// readLoop polls the visible record count of the run until stopped, logging a
// progress line per poll. The observed count must never decrease: commits only
// extend the contiguous visible prefix of the log
func (h *Harness) readLoop(ctx context.Context, reader uint, stop <-chan struct{}) error {
	interval := time.Duration(h.options.PollIntervalMilliseconds) * time.Millisecond
	var previous uint64
	for {
		select {
		case <-stop:
			return nil
		case <-ctx.Done():
			return nil
		default:
		}

		count, err := h.CountRun(ctx)
		if err != nil {
			return fmt.Errorf("reader %d: %w", reader, err)
		}
		if count < previous {
			return fmt.Errorf("reader %d observed count going backwards, %d then %d", reader, previous, count)
		}
		previous = count
		h.logger.Info().Str("runId", h.runID).Uint("reader", reader).Msgf("Reading %d rows ...", count)

		select {
		case <-stop:
			return nil
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

// CountRun returns the number of committed records tagged with this harness
// run id, walking the full log through the store read path
func (h *Harness) CountRun(ctx context.Context) (uint64, error) {
	return h.store.CountWhere(ctx, h.options.LogID, 0, func(record CommitRecord) bool {
		var payload workloadPayload
		if err := json.Unmarshal(record.Payload, &payload); err != nil {
			return false
		}
		return payload.RunID == h.runID
	})
}
