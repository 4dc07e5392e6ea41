package atomlog

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

const (
	// defaultMaxUnavailableRetries is the number of retries performed on
	// transient or ambiguous outcomes before surfacing ErrServiceUnavailable
	defaultMaxUnavailableRetries uint = 5

	// defaultRetryBackoff is the base duration of the exponential backoff
	// applied between retries, expressed in milliseconds
	defaultRetryBackoff uint = 50

	// defaultMaxConflictRetries is the number of times Append will recompute
	// its target version after ErrVersionConflict before giving up
	defaultMaxConflictRetries uint = 32
)

// StoreOptions hold all requirements to build a commit log store
type StoreOptions struct {
	// Logger expose zerolog so it can be override
	Logger *zerolog.Logger

	// MaxUnavailableRetries is the bounded number of retries applied to
	// transient and ambiguous outcomes. Defaults to 5
	MaxUnavailableRetries uint

	// RetryBackoffMilliseconds is the base of the exponential backoff
	// between retries. Defaults to 50
	RetryBackoffMilliseconds uint

	// MaxConflictRetries caps the optimistic retry loop of Append.
	// Defaults to 32
	MaxConflictRetries uint

	// CompletedEntryTTLSeconds, when greater than 0, stamps completed
	// ledger entries with an expire time external janitors may honor.
	// The protocol itself never deletes entries
	CompletedEntryTTLSeconds uint64

	// MetricsRegistry, when provided, receives the store prometheus
	// collectors
	MetricsRegistry prometheus.Registerer

	// MetricsNamespace is the prometheus namespace of the store collectors
	MetricsNamespace string
}

// Store orchestrates the two-phase commit protocol over an object store and a
// conditional-write ledger. It keeps no in-process log state: version
// ownership and log length are always derived from the ledger so independent
// processes may race safely.
type Store struct {
	objects ObjectStore
	ledger  Ledger
	options StoreOptions

	// logger is used to log messages
	logger *zerolog.Logger

	// metrics expose prometheus counters of the commit protocol
	metrics *metrics
}

// CommitRecord is one committed version of a log as seen by readers
type CommitRecord struct {
	// LogID is the stable identifier of the log owning the record
	LogID string

	// Version is the position of the record in the log
	Version uint64

	// Path is the canonical object path holding Payload
	Path string

	// Payload is the opaque record content
	Payload []byte
}

// LogReader iterates the committed records of one log in version order,
// transparently repairing incomplete commits. It is resumable: Next may be
// called again after ErrEndOfLog and will observe versions committed since
type LogReader struct {
	store *Store
	logID string
	next  uint64
}
