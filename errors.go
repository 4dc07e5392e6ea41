package atomlog

import (
	"errors"
	"fmt"
)

var (
	ErrLogIDRequired            = errors.New("log id is required")
	ErrDataDirRequired          = errors.New("data dir is required")
	ErrObjectStoreRequired      = errors.New("object store is required")
	ErrLedgerRequired           = errors.New("ledger is required")
	ErrStoreRequired            = errors.New("store is required")
	ErrVersionConflict          = errors.New("version already claimed by another writer")
	ErrConflictRetriesExhausted = errors.New("version conflict retries exhausted")
	ErrServiceUnavailable       = errors.New("service unavailable")
	ErrCorruptRecovery          = errors.New("canonical and staged content diverge")
	ErrEndOfLog                 = errors.New("no further log entries")
	ErrObjectAlreadyExists      = errors.New("object already exists")
	ErrObjectNotFound           = errors.New("object not found")
	ErrEntryAlreadyExists       = errors.New("ledger entry already exists")
	ErrEntryNotFound            = errors.New("ledger entry not found")
	ErrCountMismatch            = errors.New("final record count mismatch")
)

// UnavailableError is returned by object store or ledger implementations when
// an operation failed at the transport level. Ambiguous reports whether the
// server may have applied the operation before the failure, in which case the
// caller must re-read real state before deciding the outcome.
type UnavailableError struct {
	// Op is the operation that failed, like putIfAbsent or update
	Op string

	// Ambiguous is true when the failure happened after the server
	// may have applied the write
	Ambiguous bool

	// Err is the underlying transport error
	Err error
}

func (e *UnavailableError) Error() string {
	if e.Ambiguous {
		return fmt.Sprintf("%s failed with ambiguous outcome: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// Is permits errors.Is(err, ErrServiceUnavailable) to classify any
// UnavailableError as transient without losing the ambiguous flag
func (e *UnavailableError) Is(target error) bool {
	return target == ErrServiceUnavailable
}

// isAmbiguous reports whether err carries an ambiguous transport outcome
func isAmbiguous(err error) bool {
	var unavailable *UnavailableError
	return errors.As(err, &unavailable) && unavailable.Ambiguous
}
