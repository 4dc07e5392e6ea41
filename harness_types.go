package atomlog

import (
	"time"

	"github.com/rs/zerolog"
)

const (
	// defaultWriters is the number of concurrent writer workers
	defaultWriters uint = 2

	// defaultReaders is the number of concurrent reader workers
	defaultReaders uint = 2

	// defaultTransactions is the number of one-commit transactions to run
	defaultTransactions uint = 16

	// defaultPollInterval is the reader poll interval in milliseconds
	defaultPollInterval uint = 1000
)

// HarnessOptions hold all requirements to build a workload harness
type HarnessOptions struct {
	// LogID is the log targeted by the workload. It's required
	LogID string

	// Writers is the number of concurrent writer workers. Defaults to 2
	Writers uint

	// Readers is the number of concurrent reader workers. Defaults to 2
	Readers uint

	// Transactions is the total number of one-commit transactions spread
	// over the writer workers. Defaults to 16
	Transactions uint

	// PollIntervalMilliseconds is the delay between two reader polls.
	// Defaults to 1000
	PollIntervalMilliseconds uint

	// Logger expose zerolog so it can be override
	Logger *zerolog.Logger
}

// Harness drives concurrent writers and continuous readers against one
// logical log, then asserts exactly-once gap-free visibility of every
// transaction. Workers coordinate only through the store's external services,
// never through shared in-process state.
type Harness struct {
	store   *Store
	options HarnessOptions
	logger  *zerolog.Logger

	// runID tags every payload written by this run so counts can be
	// filtered when the target log is shared
	runID string
}

// Report is the outcome of a harness run. TxPerSec is a performance signal,
// not a correctness gate
type Report struct {
	// RunID is the identifier tagged on every payload of the run
	RunID string

	// Transactions is the number of transactions submitted
	Transactions uint

	// FinalCount is the authoritative record count observed after all
	// writers completed
	FinalCount uint64

	// Elapsed is the wall-clock duration of the write phase
	Elapsed time.Duration

	// TxPerSec is Transactions divided by Elapsed
	TxPerSec float64
}

// workloadPayload is the content committed by each writer transaction,
// partitioned by (run_id, id) with a random discriminator
type workloadPayload struct {
	RunID string `json:"run_id"`
	ID    int    `json:"id"`
	N     uint   `json:"n"`
}
