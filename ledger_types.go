package atomlog

import (
	"context"
	"time"
)

// LedgerEntry is the authoritative claim record for one version of a log.
// It is created once by the writer winning the version and its Complete flag
// transitions false to true exactly once, idempotently.
type LedgerEntry struct {
	// LogID is the stable identifier of the log owning the entry
	LogID string `json:"logId"`

	// Version is the position of the commit in the log, starting at 0
	Version uint64 `json:"version"`

	// TempPath is the staged object holding the payload. It is written
	// before the claim so its existence is guaranteed once the entry exists
	TempPath string `json:"tempPath"`

	// Complete is true once the canonical object has been materialized
	Complete bool `json:"complete"`

	// CreatedAt is the claim time, informational only
	CreatedAt time.Time `json:"createdAt"`

	// ExpireTime is an optional unix timestamp hinting external janitors
	// when a completed entry may be expired. The protocol itself never
	// deletes entries
	ExpireTime int64 `json:"expireTime,omitempty"`
}

// Ledger is an interface abstracting the strongly consistent conditional-write
// service arbitrating version ownership. PutIfAbsent must be linearizable:
// a call returning nil is globally the unique winner for (LogID, Version).
type Ledger interface {
	// PutIfAbsent atomically inserts entry keyed by (LogID, Version).
	// ErrEntryAlreadyExists is returned when the key is already claimed.
	// An UnavailableError with Ambiguous set means the insert may or may
	// not have been applied and the caller must re-read before deciding
	PutIfAbsent(ctx context.Context, entry LedgerEntry) error

	// Update overwrites the entry keyed by (LogID, Version)
	Update(ctx context.Context, entry LedgerEntry) error

	// Get returns the entry keyed by (logID, version) or ErrEntryNotFound
	Get(ctx context.Context, logID string, version uint64) (LedgerEntry, error)

	// Latest returns the entry with the highest claimed version for logID
	// or ErrEntryNotFound when no version was ever claimed
	Latest(ctx context.Context, logID string) (LedgerEntry, error)
}
