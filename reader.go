package atomlog

import (
	"context"
	"errors"
	"fmt"
)

// ReadFrom returns a reader iterating the records of logID in version order,
// starting at startVersion
func (s *Store) ReadFrom(logID string, startVersion uint64) *LogReader {
	return &LogReader{
		store: s,
		logID: logID,
		next:  startVersion,
	}
}

// Next returns the next committed record or ErrEndOfLog at the first version
// with no ledger entry, which defines the current log length. A version is
// never observed partially written: incomplete commits are recovered before
// being returned, so the visible log is always a contiguous prefix.
func (r *LogReader) Next(ctx context.Context) (CommitRecord, error) {
	entry, err := r.store.getEntry(ctx, r.logID, r.next)
	if errors.Is(err, ErrEntryNotFound) {
		return CommitRecord{}, ErrEndOfLog
	}
	if err != nil {
		return CommitRecord{}, err
	}

	var payload []byte
	if entry.Complete {
		payload, err = r.store.readCanonical(ctx, entry.LogID, entry.Version)
		if errors.Is(err, ErrObjectNotFound) {
			// complete without a canonical object should not happen, but a
			// ledger entry referencing a staged object is always recoverable
			payload, err = r.store.recoverEntry(ctx, entry)
		}
	} else {
		payload, err = r.store.recoverEntry(ctx, entry)
	}
	if err != nil {
		return CommitRecord{}, err
	}

	record := CommitRecord{
		LogID:   r.logID,
		Version: r.next,
		Path:    canonicalPathFor(r.logID, r.next),
		Payload: payload,
	}
	r.next++
	return record, nil
}

// Version returns the version the next call to Next will probe
func (r *LogReader) Version() uint64 {
	return r.next
}

// readCanonical reads the canonical object of (logID, version) with bounded
// retries on transient failures
func (s *Store) readCanonical(ctx context.Context, logID string, version uint64) ([]byte, error) {
	canonical := canonicalPathFor(logID, version)
	var attempt uint
	for {
		data, err := s.objects.Get(ctx, canonical)
		if err == nil || !errors.Is(err, ErrServiceUnavailable) {
			return data, err
		}

		attempt++
		if attempt > s.options.MaxUnavailableRetries {
			return nil, fmt.Errorf("reading %s: %w", canonical, ErrServiceUnavailable)
		}
		if err := s.sleepBackoff(ctx, attempt); err != nil {
			return nil, err
		}
	}
}

// recoverEntry materializes the canonical object of a claimed but incomplete
// ledger entry from its staged object, then flips the entry complete. It is
// safe to run concurrently from multiple callers: content for a version is
// fixed the instant its claim is won, so concurrent recoveries can only race
// on a redundant copy, which is harmless.
func (s *Store) recoverEntry(ctx context.Context, entry LedgerEntry) ([]byte, error) {
	payload, err := s.objects.Get(ctx, entry.TempPath)
	if err != nil {
		return nil, fmt.Errorf("reading staged object %s: %w", entry.TempPath, err)
	}

	if err := s.materialize(ctx, entry.LogID, entry.Version, payload); err != nil {
		return nil, err
	}
	s.markComplete(ctx, entry)
	s.metrics.recoveries.Inc()
	s.logger.Info().Str("logId", entry.LogID).Uint64("version", entry.Version).Msg("Recovered incomplete commit")
	return payload, nil
}

// CountWhere walks logID from startVersion and counts the records matching
// the provided predicate. A nil predicate matches every record
func (s *Store) CountWhere(ctx context.Context, logID string, startVersion uint64, match func(CommitRecord) bool) (uint64, error) {
	reader := s.ReadFrom(logID, startVersion)
	var count uint64
	for {
		record, err := reader.Next(ctx)
		if errors.Is(err, ErrEndOfLog) {
			return count, nil
		}
		if err != nil {
			return count, err
		}
		if match == nil || match(record) {
			count++
		}
	}
}
