package main

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/Lord-Y/atomlog"
)

// noopCleanup is returned for collaborators holding no resources
func noopCleanup() {}

// buildObjectStore instantiate the object store selected by name
func buildObjectStore(name, dataDir string) (atomlog.ObjectStore, func(), error) {
	switch name {
	case "", "memory":
		return atomlog.NewMemoryObjectStore(), noopCleanup, nil

	case "disk":
		store, err := atomlog.NewDiskObjectStore(atomlog.DiskObjectStoreOptions{
			DataDir: filepath.Join(dataDir, "objects"),
		})
		if err != nil {
			return nil, nil, err
		}
		return store, noopCleanup, nil

	case "pebble":
		store, err := atomlog.NewPebbleObjectStore(atomlog.PebbleObjectStoreOptions{
			DataDir: filepath.Join(dataDir, "objects"),
		})
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown object store implementation %s", name)
	}
}

// buildLedger instantiate the ledger selected by configuration, wrapped by the
// failure injecting proxy when error rates are set
func buildLedger(log *zerolog.Logger) (atomlog.Ledger, func(), error) {
	var (
		ledger  atomlog.Ledger
		cleanup func()
	)

	switch name := viper.GetString("ledger"); name {
	case "", "memory":
		ledger, cleanup = atomlog.NewMemoryLedger(), noopCleanup

	case "bolt":
		boltLedger, err := atomlog.NewBoltLedger(atomlog.BoltLedgerOptions{
			DataDir: viper.GetString("data-dir"),
		})
		if err != nil {
			return nil, nil, err
		}
		ledger, cleanup = boltLedger, func() { _ = boltLedger.Close() }

	case "redis":
		redisLedger, err := atomlog.NewRedisLedger(atomlog.RedisLedgerOptions{
			Addr: viper.GetString("redis-addr"),
		})
		if err != nil {
			return nil, nil, err
		}
		ledger, cleanup = redisLedger, func() { _ = redisLedger.Close() }

	default:
		return nil, nil, fmt.Errorf("unknown ledger implementation %s", name)
	}

	rates, err := atomlog.ParseErrorRates(viper.GetString("error-rates"))
	if err != nil {
		return nil, nil, err
	}
	if len(rates) > 0 {
		faulty, err := atomlog.NewFaultyLedger(ledger, atomlog.FaultyLedgerOptions{
			ErrorRates: rates,
			Seed:       viper.GetInt64("error-rates-seed"),
			Logger:     log,
		})
		if err != nil {
			return nil, nil, err
		}
		ledger = faulty
	}
	return ledger, cleanup, nil
}
