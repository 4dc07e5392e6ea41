package atomlog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

const (
	// dbFileName is the name of the database file
	dbFileName string = "atomlog.db"
	// bucketEntriesName will be used to store ledger entries
	bucketEntriesName string = "atomlog_entries"
)

// BoltLedgerOptions hold all requirements to build a bolt ledger
type BoltLedgerOptions struct {
	// DataDir is the default data directory that will be used to store the
	// ledger on the disk. It's required
	DataDir string

	// Options hold all bolt options
	Options *bolt.Options
}

// BoltLedger is a Ledger backed by a local bbolt database. Bolt runs a single
// write transaction at a time, which makes the conditional insert a real CAS
// for every process sharing the database file.
type BoltLedger struct {
	// dataDir is the default data directory that will be used to store all data on the disk
	dataDir string

	// db allows us to manipulate the k/v database
	db *bolt.DB
}

// NewBoltLedger instantiate a bolt ledger under options.DataDir
func NewBoltLedger(options BoltLedgerOptions) (*BoltLedger, error) {
	if options.DataDir == "" {
		return nil, ErrDataDirRequired
	}
	dbdir := filepath.Join(options.DataDir, "db")
	if err := createDirectoryIfNotExist(dbdir, 0750); err != nil {
		return nil, fmt.Errorf("fail to create directory %s: %w", dbdir, err)
	}

	db, err := bolt.Open(filepath.Join(dbdir, dbFileName), 0600, options.Options)
	if err != nil {
		return nil, err
	}

	ledger := &BoltLedger{
		dataDir: options.DataDir,
		db:      db,
	}
	if err := ledger.initializeBuckets(); err != nil {
		return nil, err
	}
	return ledger, nil
}

// initializeBuckets will initialize all buckets required by the ledger
func (b *BoltLedger) initializeBuckets() error {
	return b.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketEntriesName))
		return err
	})
}

// Close will close bolt database
func (b *BoltLedger) Close() error {
	return b.db.Close()
}

// entryKey builds the bolt key of (logID, version). The log id is separated
// from the big endian version by a zero byte so cursor iteration over one log
// stays in version order
func entryKey(logID string, version uint64) []byte {
	key := make([]byte, 0, len(logID)+9)
	key = append(key, logID...)
	key = append(key, 0x00)
	return append(key, encodeUint64ToBytes(version)...)
}

// PutIfAbsent atomically inserts entry keyed by (LogID, Version)
func (b *BoltLedger) PutIfAbsent(ctx context.Context, entry LedgerEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	value, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketEntriesName))
		key := entryKey(entry.LogID, entry.Version)
		if bucket.Get(key) != nil {
			return fmt.Errorf("log %s version %d: %w", entry.LogID, entry.Version, ErrEntryAlreadyExists)
		}
		return bucket.Put(key, value)
	})
}

// Update overwrites the entry keyed by (LogID, Version)
func (b *BoltLedger) Update(ctx context.Context, entry LedgerEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	value, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketEntriesName))
		key := entryKey(entry.LogID, entry.Version)
		if bucket.Get(key) == nil {
			return fmt.Errorf("log %s version %d: %w", entry.LogID, entry.Version, ErrEntryNotFound)
		}
		return bucket.Put(key, value)
	})
}

// Get returns the entry keyed by (logID, version)
func (b *BoltLedger) Get(ctx context.Context, logID string, version uint64) (entry LedgerEntry, err error) {
	if err := ctx.Err(); err != nil {
		return LedgerEntry{}, err
	}
	err = b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketEntriesName))
		value := bucket.Get(entryKey(logID, version))
		if value == nil {
			return fmt.Errorf("log %s version %d: %w", logID, version, ErrEntryNotFound)
		}
		return json.Unmarshal(value, &entry)
	})
	return
}

// Latest returns the entry with the highest claimed version for logID
func (b *BoltLedger) Latest(ctx context.Context, logID string) (entry LedgerEntry, err error) {
	if err := ctx.Err(); err != nil {
		return LedgerEntry{}, err
	}
	err = b.db.View(func(tx *bolt.Tx) error {
		cursor := tx.Bucket([]byte(bucketEntriesName)).Cursor()
		prefix := append([]byte(logID), 0x00)

		var value []byte
		for key, v := cursor.Seek(prefix); key != nil && bytes.HasPrefix(key, prefix); key, v = cursor.Next() {
			value = v
		}
		if value == nil {
			return fmt.Errorf("log %s: %w", logID, ErrEntryNotFound)
		}
		return json.Unmarshal(value, &entry)
	})
	return
}
