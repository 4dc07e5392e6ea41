package atomlog

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Lord-Y/atomlog/logger"
)

const (
	// OpPutIfAbsent is the error rate key of ledger conditional inserts
	OpPutIfAbsent string = "put_if_absent"
	// OpUpdate is the error rate key of ledger updates
	OpUpdate string = "update"
	// OpGet is the error rate key of ledger reads, Latest included
	OpGet string = "get"
)

// FaultyLedgerOptions hold all requirements to build a failure injecting ledger
type FaultyLedgerOptions struct {
	// ErrorRates maps an operation kind to an error probability in [0,1].
	// Keys are OpPutIfAbsent, OpUpdate and OpGet
	ErrorRates map[string]float64

	// Seed makes the injection sequence reproducible when not 0
	Seed int64

	// Logger expose zerolog so it can be override
	Logger *zerolog.Logger
}

// FaultyLedger wraps a Ledger and probabilistically turns operations into
// transport failures to exercise the recovery paths of the store. It only
// perturbs the channel: an injected putIfAbsent failure may hide a write that
// actually reached the ledger, never a fabricated one, so real ledger state
// remains the ground truth the store reconciles against.
type FaultyLedger struct {
	ledger Ledger
	rates  map[string]float64
	logger *zerolog.Logger
	mu     sync.Mutex
	rand   *rand.Rand
}

// NewFaultyLedger instantiate a failure injecting proxy around ledger
func NewFaultyLedger(ledger Ledger, options FaultyLedgerOptions) (*FaultyLedger, error) {
	if ledger == nil {
		return nil, ErrLedgerRequired
	}
	for op, rate := range options.ErrorRates {
		if op != OpPutIfAbsent && op != OpUpdate && op != OpGet {
			return nil, fmt.Errorf("unknown operation kind %s", op)
		}
		if rate < 0 || rate > 1 {
			return nil, fmt.Errorf("error rate of %s must be within [0,1], got %f", op, rate)
		}
	}
	if options.Logger == nil {
		options.Logger = logger.NewLogger()
	}

	source := rand.NewSource(options.Seed)
	if options.Seed == 0 {
		source = rand.NewSource(rand.Int63())
	}
	return &FaultyLedger{
		ledger: ledger,
		rates:  options.ErrorRates,
		logger: options.Logger,
		rand:   rand.New(source),
	}, nil
}

// trigger reports whether an error must be injected for the provided
// operation kind, and for write operations whether the underlying write must
// still be applied before failing, simulating an ambiguous outcome
func (f *FaultyLedger) trigger(op string) (inject, applied bool) {
	rate, ok := f.rates[op]
	if !ok || rate == 0 {
		return false, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rand.Float64() < rate, f.rand.Intn(2) == 0
}

// PutIfAbsent forwards to the wrapped ledger unless an injection triggers.
// A triggered injection either applies the write then reports an ambiguous
// transport failure, or drops the write and reports the same failure
func (f *FaultyLedger) PutIfAbsent(ctx context.Context, entry LedgerEntry) error {
	inject, applied := f.trigger(OpPutIfAbsent)
	if !inject {
		return f.ledger.PutIfAbsent(ctx, entry)
	}

	if applied {
		if err := f.ledger.PutIfAbsent(ctx, entry); err != nil && !errors.Is(err, ErrEntryAlreadyExists) {
			return err
		}
	}
	f.logger.Debug().Str("logId", entry.LogID).Uint64("version", entry.Version).Bool("applied", applied).Msg("Injected putIfAbsent failure")
	return &UnavailableError{Op: "putIfAbsent", Ambiguous: true, Err: errors.New("injected transport failure")}
}

// Update forwards to the wrapped ledger unless an injection triggers
func (f *FaultyLedger) Update(ctx context.Context, entry LedgerEntry) error {
	inject, applied := f.trigger(OpUpdate)
	if !inject {
		return f.ledger.Update(ctx, entry)
	}

	if applied {
		if err := f.ledger.Update(ctx, entry); err != nil {
			return err
		}
	}
	f.logger.Debug().Str("logId", entry.LogID).Uint64("version", entry.Version).Bool("applied", applied).Msg("Injected update failure")
	return &UnavailableError{Op: "update", Ambiguous: true, Err: errors.New("injected transport failure")}
}

// Get forwards to the wrapped ledger unless an injection triggers
func (f *FaultyLedger) Get(ctx context.Context, logID string, version uint64) (LedgerEntry, error) {
	if inject, _ := f.trigger(OpGet); inject {
		f.logger.Debug().Str("logId", logID).Uint64("version", version).Msg("Injected get failure")
		return LedgerEntry{}, &UnavailableError{Op: "get", Err: errors.New("injected transport failure")}
	}
	return f.ledger.Get(ctx, logID, version)
}

// Latest forwards to the wrapped ledger unless an injection triggers
func (f *FaultyLedger) Latest(ctx context.Context, logID string) (LedgerEntry, error) {
	if inject, _ := f.trigger(OpGet); inject {
		f.logger.Debug().Str("logId", logID).Msg("Injected latest failure")
		return LedgerEntry{}, &UnavailableError{Op: "latest", Err: errors.New("injected transport failure")}
	}
	return f.ledger.Latest(ctx, logID)
}

// ParseErrorRates parses a per-operation error rate mapping like
// put_if_absent=0.2,update=0.1,get=0.05. An empty string maps to no injection
func ParseErrorRates(value string) (map[string]float64, error) {
	rates := make(map[string]float64)
	if strings.TrimSpace(value) == "" {
		return rates, nil
	}
	for _, pair := range strings.Split(value, ",") {
		op, rate, found := strings.Cut(strings.TrimSpace(pair), "=")
		if !found {
			return nil, fmt.Errorf("malformed error rate %q, expected op=rate", pair)
		}
		parsed, err := strconv.ParseFloat(rate, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed error rate %q: %w", pair, err)
		}
		rates[op] = parsed
	}
	return rates, nil
}
