package main

import (
	"context"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Lord-Y/atomlog"
	"github.com/Lord-Y/atomlog/logger"
)

func main() {
	log := logger.NewLogger()

	viper.SetEnvPrefix("atomlog")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	viper.SetDefault("log-id", "workload")
	viper.SetDefault("writers", 2)
	viper.SetDefault("readers", 2)
	viper.SetDefault("transactions", 16)
	viper.SetDefault("poll-interval-ms", 1000)
	viper.SetDefault("ledger", "memory")
	viper.SetDefault("object-store", "memory")
	viper.SetDefault("data-dir", "")
	viper.SetDefault("redis-addr", "")
	viper.SetDefault("error-rates", "")
	viper.SetDefault("error-rates-seed", 0)

	rootCmd := &cobra.Command{
		Use:   "atomlog",
		Short: "Atomic commit log workload harness",
		Long: "atomlog drives concurrent writers and continuous readers against one " +
			"commit log and asserts exactly-once, gap-free visibility. Every flag can " +
			"also be set through ATOMLOG_* environment variables.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkload(cmd.Context(), log)
		},
		SilenceUsage: true,
	}

	flags := rootCmd.Flags()
	flags.String("log-id", viper.GetString("log-id"), "identifier of the target log")
	flags.Uint("writers", viper.GetUint("writers"), "number of concurrent writer workers")
	flags.Uint("readers", viper.GetUint("readers"), "number of concurrent reader workers")
	flags.Uint("transactions", viper.GetUint("transactions"), "total number of one-commit transactions")
	flags.Uint("poll-interval-ms", viper.GetUint("poll-interval-ms"), "reader poll interval in milliseconds")
	flags.String("ledger", viper.GetString("ledger"), "ledger implementation: memory, bolt or redis")
	flags.String("object-store", viper.GetString("object-store"), "object store implementation: memory, disk or pebble")
	flags.String("data-dir", viper.GetString("data-dir"), "data directory for the bolt ledger and disk/pebble object stores")
	flags.String("redis-addr", viper.GetString("redis-addr"), "redis server address for the redis ledger")
	flags.String("error-rates", viper.GetString("error-rates"), "per-operation ledger error rates, like put_if_absent=0.2,update=0.1,get=0.05")
	flags.Int64("error-rates-seed", viper.GetInt64("error-rates-seed"), "seed making the failure injection reproducible, 0 picks a random one")
	if err := viper.BindPFlags(flags); err != nil {
		log.Fatal().Err(err).Msg("Fail to bind flags")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("Workload failed")
	}
}

// runWorkload builds the configured collaborators and runs the harness once
func runWorkload(ctx context.Context, log *zerolog.Logger) error {
	objects, objectsCleanup, err := buildObjectStore(viper.GetString("object-store"), viper.GetString("data-dir"))
	if err != nil {
		return err
	}
	defer objectsCleanup()

	ledger, ledgerCleanup, err := buildLedger(log)
	if err != nil {
		return err
	}
	defer ledgerCleanup()

	store, err := atomlog.NewStore(objects, ledger, atomlog.StoreOptions{Logger: log})
	if err != nil {
		return err
	}

	harness, err := atomlog.NewHarness(store, atomlog.HarnessOptions{
		LogID:                    viper.GetString("log-id"),
		Writers:                  viper.GetUint("writers"),
		Readers:                  viper.GetUint("readers"),
		Transactions:             viper.GetUint("transactions"),
		PollIntervalMilliseconds: viper.GetUint("poll-interval-ms"),
		Logger:                   log,
	})
	if err != nil {
		return err
	}

	report, err := harness.Run(ctx)
	if err != nil {
		return err
	}
	log.Info().
		Str("runId", report.RunID).
		Uint64("records", report.FinalCount).
		Dur("elapsed", report.Elapsed).
		Msgf("Workload completed, %.02f tx / sec", report.TxPerSec)
	return nil
}
