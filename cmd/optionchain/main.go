package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Hongssd/optionchain"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "optionchain",
	Short: "Normalize CBOE SPX option intervals into strike and delta indexed chains",
	Long: `optionchain reads CBOE UnderlyingOptionsIntervals day files, keeps one root per
expiration, backfills implied volatility and greeks, indexes every chain by strike
and by delta and writes the quotes to the configured sink.`,
}

var loadCmd = &cobra.Command{
	Use:   "load [files...]",
	Short: "Load the given day files, or every day file under --dir",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		m := mustMarketData(ctx, cmd)
		defer m.Close()

		summary, err := m.Load(ctx, args)
		if err != nil {
			log.Fatalf("error loading: %v", err)
		}
		report(cmd, m, summary)
		if summary.FailedDays() > 0 {
			log.Warnf("%d day(s) failed", summary.FailedDays())
		}
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Rescan --dir on a cron schedule and load new day files",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		m := mustMarketData(ctx, cmd)
		defer m.Close()

		w := m.NewWatcher(func(summary *optionchain.RunSummary) {
			report(cmd, m, summary)
		})
		if err := w.Start(ctx); err != nil {
			log.Fatalf("error starting watcher: %v", err)
		}
		<-ctx.Done()
		w.Stop()
	},
}

func mustMarketData(ctx context.Context, cmd *cobra.Command) *optionchain.ChainMarketData {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		log.Fatalf("error getting config: %v", err)
	}
	cfg, err := optionchain.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}

	flags := cmd.Flags()
	if flags.Changed("dir") {
		cfg.Run.DataDir, _ = flags.GetString("dir")
	}
	if flags.Changed("workers") {
		cfg.Run.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("sink") {
		kind, _ := flags.GetString("sink")
		cfg.Sink.Kind = optionchain.SinkKind(kind)
	}
	if flags.Changed("summary-json") {
		cfg.Run.SummaryJSON, _ = flags.GetString("summary-json")
	}
	if flags.Changed("log-level") {
		cfg.Log.Level, _ = flags.GetString("log-level")
	}

	logger := log.StandardLogger()
	if err := cfg.Log.Apply(logger); err != nil {
		log.Fatalf("error configuring log: %v", err)
	}
	optionchain.SetLogger(logger)

	m, err := optionchain.NewChainMarketData(ctx, *cfg)
	if err != nil {
		log.Fatalf("error starting: %v", err)
	}
	return m
}

func report(cmd *cobra.Command, m *optionchain.ChainMarketData, summary *optionchain.RunSummary) {
	summary.Render(cmd.OutOrStdout())
	if path := m.Config.Run.SummaryJSON; path != "" {
		if err := summary.WriteJSON(path); err != nil {
			log.Errorf("error writing summary: %v", err)
		}
	}
}

func main() {
	rootCmd.PersistentFlags().String("config", "", "Path to the yaml config file. OPTIONCHAIN_* environment variables override it.")
	rootCmd.PersistentFlags().String("dir", "", "Directory scanned for UnderlyingOptionsIntervals_*.zip day files.")
	rootCmd.PersistentFlags().Int("workers", optionchain.DefaultWorkers, "Days processed in parallel, at most 16.")
	rootCmd.PersistentFlags().String("sink", "", "Where quotes go: none, jsonl, sqlite or postgres.")
	rootCmd.PersistentFlags().String("summary-json", "", "Write the run summary as JSON to this path.")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error.")

	rootCmd.AddCommand(loadCmd, watchCmd)
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
