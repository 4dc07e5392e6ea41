package atomlog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Lord-Y/atomlog/logger"
)

// NewStore instantiate a commit log store with the provided collaborators
func NewStore(objects ObjectStore, ledger Ledger, options StoreOptions) (*Store, error) {
	if objects == nil {
		return nil, ErrObjectStoreRequired
	}
	if ledger == nil {
		return nil, ErrLedgerRequired
	}
	if options.Logger == nil {
		options.Logger = logger.NewLogger()
	}
	if options.MaxUnavailableRetries == 0 {
		options.MaxUnavailableRetries = defaultMaxUnavailableRetries
	}
	if options.RetryBackoffMilliseconds == 0 {
		options.RetryBackoffMilliseconds = defaultRetryBackoff
	}
	if options.MaxConflictRetries == 0 {
		options.MaxConflictRetries = defaultMaxConflictRetries
	}

	return &Store{
		objects: objects,
		ledger:  ledger,
		options: options,
		logger:  options.Logger,
		metrics: newMetrics(options.MetricsNamespace, options.MetricsRegistry),
	}, nil
}

// Commit writes payload as version of logID. It returns nil when this writer
// won the version, ErrVersionConflict when another writer already claimed it,
// ErrServiceUnavailable when retries against the external services are
// exhausted and ErrCorruptRecovery when a canonical object with divergent
// content is found, which can only happen if the ledger broke its
// linearizability contract.
//
// On ErrVersionConflict the caller owns the retry: recompute the intended
// content against the new latest version and commit again at version+1,
// or use Append which implements that loop.
func (s *Store) Commit(ctx context.Context, logID string, version uint64, payload []byte) error {
	if logID == "" {
		return ErrLogIDRequired
	}

	start := time.Now()
	tempPath, err := s.stageTempObject(ctx, logID, version, payload)
	if err != nil {
		return err
	}

	entry := LedgerEntry{
		LogID:     logID,
		Version:   version,
		TempPath:  tempPath,
		CreatedAt: time.Now().UTC(),
	}
	won, err := s.claim(ctx, entry)
	if err != nil {
		return err
	}
	if !won {
		s.metrics.versionConflicts.Inc()
		return fmt.Errorf("log %s version %d: %w", logID, version, ErrVersionConflict)
	}

	if err := s.materialize(ctx, logID, version, payload); err != nil {
		return err
	}
	s.markComplete(ctx, entry)
	s.metrics.commits.Inc()
	s.metrics.commitDuration.Observe(float64(time.Since(start)) / float64(time.Second))
	return nil
}

// stageTempObject writes payload to a fresh staged path. Each retry uses a new
// path so a previous attempt that failed ambiguously can never collide
func (s *Store) stageTempObject(ctx context.Context, logID string, version uint64, payload []byte) (string, error) {
	var attempt uint
	for {
		tempPath := tempPathFor(logID, version)
		err := s.objects.Put(ctx, tempPath, payload, false)
		if err == nil {
			return tempPath, nil
		}
		if !errors.Is(err, ErrServiceUnavailable) && !errors.Is(err, ErrObjectAlreadyExists) {
			return "", err
		}

		attempt++
		if attempt > s.options.MaxUnavailableRetries {
			return "", fmt.Errorf("staging log %s version %d: %w", logID, version, ErrServiceUnavailable)
		}
		s.logger.Debug().Err(err).Str("logId", logID).Uint64("version", version).Msgf("Retrying staged object write, attempt %d", attempt)
		if err := s.sleepBackoff(ctx, attempt); err != nil {
			return "", err
		}
	}
}

// claim attempts to win entry's version through the ledger conditional write.
// It returns (true, nil) when this writer owns the version and (false, nil)
// when another writer does. Ambiguous outcomes are reconciled by re-reading
// the ledger before deciding: blindly retrying would either double-claim or
// falsely report a conflict.
func (s *Store) claim(ctx context.Context, entry LedgerEntry) (bool, error) {
	var attempt uint
	for {
		err := s.ledger.PutIfAbsent(ctx, entry)
		switch {
		case err == nil:
			return true, nil

		case errors.Is(err, ErrEntryAlreadyExists):
			// The key may hold our own write from a previous attempt
			// that failed ambiguously after being applied
			current, err := s.getEntry(ctx, entry.LogID, entry.Version)
			if err != nil {
				return false, err
			}
			return current.TempPath == entry.TempPath, nil

		case isAmbiguous(err):
			s.metrics.ambiguousOutcomes.Inc()
			current, err := s.getEntry(ctx, entry.LogID, entry.Version)
			switch {
			case err == nil && current.TempPath == entry.TempPath:
				return true, nil
			case err == nil:
				return false, nil
			case errors.Is(err, ErrEntryNotFound):
				// the write was not applied, safe to retry
			default:
				return false, err
			}

		case errors.Is(err, ErrServiceUnavailable):
			// transient, retry below

		default:
			return false, err
		}

		attempt++
		if attempt > s.options.MaxUnavailableRetries {
			return false, fmt.Errorf("claiming log %s version %d: %w", entry.LogID, entry.Version, ErrServiceUnavailable)
		}
		s.logger.Debug().Str("logId", entry.LogID).Uint64("version", entry.Version).Msgf("Retrying ledger claim, attempt %d", attempt)
		if err := s.sleepBackoff(ctx, attempt); err != nil {
			return false, err
		}
	}
}

// materialize copies payload to the canonical path of (logID, version). The
// copy is idempotent: a canonical object holding identical content, produced
// by a concurrent recovery, is treated as success. Divergent content is fatal
// since no two writers can ever have won the same version.
func (s *Store) materialize(ctx context.Context, logID string, version uint64, payload []byte) error {
	canonical := canonicalPathFor(logID, version)
	var attempt uint
	for {
		err := s.objects.Put(ctx, canonical, payload, false)
		switch {
		case err == nil:
			return nil

		case errors.Is(err, ErrObjectAlreadyExists):
			existing, err := s.objects.Get(ctx, canonical)
			if err != nil {
				return err
			}
			if !bytes.Equal(existing, payload) {
				return fmt.Errorf("canonical object %s: %w", canonical, ErrCorruptRecovery)
			}
			return nil

		case errors.Is(err, ErrServiceUnavailable):
			attempt++
			if attempt > s.options.MaxUnavailableRetries {
				return fmt.Errorf("materializing %s: %w", canonical, ErrServiceUnavailable)
			}
			if err := s.sleepBackoff(ctx, attempt); err != nil {
				return err
			}

		default:
			return err
		}
	}
}

// markComplete flips the ledger entry to complete on a best-effort basis.
// A failure here does not fail the commit, it only forces a later reader to
// run recovery before trusting the canonical object.
func (s *Store) markComplete(ctx context.Context, entry LedgerEntry) {
	entry.Complete = true
	if ttl := s.options.CompletedEntryTTLSeconds; ttl > 0 {
		entry.ExpireTime = time.Now().UTC().Add(time.Duration(ttl) * time.Second).Unix()
	}
	if err := s.ledger.Update(ctx, entry); err != nil {
		s.metrics.incompleteCommits.Inc()
		s.logger.Warn().Err(err).Str("logId", entry.LogID).Uint64("version", entry.Version).Msg("Fail to mark ledger entry complete, a later reader will recover it")
	}
}

// getEntry reads a ledger entry with bounded retries on transient failures.
// Reads are idempotent so ambiguous outcomes are plain retries here
func (s *Store) getEntry(ctx context.Context, logID string, version uint64) (LedgerEntry, error) {
	var attempt uint
	for {
		entry, err := s.ledger.Get(ctx, logID, version)
		if err == nil || !errors.Is(err, ErrServiceUnavailable) {
			return entry, err
		}

		attempt++
		if attempt > s.options.MaxUnavailableRetries {
			return LedgerEntry{}, fmt.Errorf("reading ledger entry log %s version %d: %w", logID, version, ErrServiceUnavailable)
		}
		if err := s.sleepBackoff(ctx, attempt); err != nil {
			return LedgerEntry{}, err
		}
	}
}

// LatestVersion returns the highest claimed version of logID and whether any
// version was ever claimed. It is always derived from the ledger, never from
// in-process state, since independent processes may be racing
func (s *Store) LatestVersion(ctx context.Context, logID string) (version uint64, found bool, err error) {
	if logID == "" {
		return 0, false, ErrLogIDRequired
	}

	var attempt uint
	for {
		entry, err := s.ledger.Latest(ctx, logID)
		switch {
		case err == nil:
			return entry.Version, true, nil
		case errors.Is(err, ErrEntryNotFound):
			return 0, false, nil
		case errors.Is(err, ErrServiceUnavailable):
			attempt++
			if attempt > s.options.MaxUnavailableRetries {
				return 0, false, fmt.Errorf("reading latest version of log %s: %w", logID, ErrServiceUnavailable)
			}
			if err := s.sleepBackoff(ctx, attempt); err != nil {
				return 0, false, err
			}
		default:
			return 0, false, err
		}
	}
}

// Append commits payload at the next free version of logID using the standard
// optimistic-concurrency loop: derive the target version from the ledger,
// commit, and on ErrVersionConflict re-derive and retry, capped by
// MaxConflictRetries. It returns the version the payload was committed at.
func (s *Store) Append(ctx context.Context, logID string, payload []byte) (uint64, error) {
	var attempt uint
	for {
		var version uint64
		latest, found, err := s.LatestVersion(ctx, logID)
		if err != nil {
			return 0, err
		}
		if found {
			version = latest + 1
		}

		err = s.Commit(ctx, logID, version, payload)
		if err == nil {
			return version, nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return 0, err
		}

		attempt++
		if attempt > s.options.MaxConflictRetries {
			return 0, fmt.Errorf("appending to log %s after %d conflicts: %w", logID, attempt, ErrConflictRetriesExhausted)
		}
		s.logger.Debug().Str("logId", logID).Uint64("version", version).Msgf("Version conflict, recomputing target version, attempt %d", attempt)
		if err := s.sleepBackoff(ctx, attempt); err != nil {
			return 0, err
		}
	}
}

// sleepBackoff applies the exponential backoff of the provided attempt
func (s *Store) sleepBackoff(ctx context.Context, attempt uint) error {
	base := time.Duration(s.options.RetryBackoffMilliseconds) * time.Millisecond
	return sleepContext(ctx, backoffDuration(base, attempt))
}
