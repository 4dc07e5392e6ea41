package atomlog

import (
	"context"
	"fmt"
	"sync"
)

// MemoryLedger is an in-process Ledger used by tests and the default harness
// mode. A single mutex serializes conditional writes, which trivially
// satisfies the linearizability required from the claim arbiter.
type MemoryLedger struct {
	mu      sync.RWMutex
	entries map[string]map[uint64]LedgerEntry
	latest  map[string]uint64
}

// NewMemoryLedger instantiate an in-memory ledger
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		entries: make(map[string]map[uint64]LedgerEntry),
		latest:  make(map[string]uint64),
	}
}

// PutIfAbsent atomically inserts entry keyed by (LogID, Version)
func (m *MemoryLedger) PutIfAbsent(ctx context.Context, entry LedgerEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	versions, ok := m.entries[entry.LogID]
	if !ok {
		versions = make(map[uint64]LedgerEntry)
		m.entries[entry.LogID] = versions
	}
	if _, ok := versions[entry.Version]; ok {
		return fmt.Errorf("log %s version %d: %w", entry.LogID, entry.Version, ErrEntryAlreadyExists)
	}
	versions[entry.Version] = entry
	if current, ok := m.latest[entry.LogID]; !ok || entry.Version > current {
		m.latest[entry.LogID] = entry.Version
	}
	return nil
}

// Update overwrites the entry keyed by (LogID, Version)
func (m *MemoryLedger) Update(ctx context.Context, entry LedgerEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	versions, ok := m.entries[entry.LogID]
	if !ok {
		return fmt.Errorf("log %s version %d: %w", entry.LogID, entry.Version, ErrEntryNotFound)
	}
	if _, ok := versions[entry.Version]; !ok {
		return fmt.Errorf("log %s version %d: %w", entry.LogID, entry.Version, ErrEntryNotFound)
	}
	versions[entry.Version] = entry
	return nil
}

// Get returns the entry keyed by (logID, version)
func (m *MemoryLedger) Get(ctx context.Context, logID string, version uint64) (LedgerEntry, error) {
	if err := ctx.Err(); err != nil {
		return LedgerEntry{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[logID][version]
	if !ok {
		return LedgerEntry{}, fmt.Errorf("log %s version %d: %w", logID, version, ErrEntryNotFound)
	}
	return entry, nil
}

// Latest returns the entry with the highest claimed version for logID
func (m *MemoryLedger) Latest(ctx context.Context, logID string) (LedgerEntry, error) {
	if err := ctx.Err(); err != nil {
		return LedgerEntry{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	version, ok := m.latest[logID]
	if !ok {
		return LedgerEntry{}, fmt.Errorf("log %s: %w", logID, ErrEntryNotFound)
	}
	return m.entries[logID][version], nil
}
