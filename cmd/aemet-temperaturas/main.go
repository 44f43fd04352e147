package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/PedroFenixia/aemet-temperaturas/config"
	"github.com/PedroFenixia/aemet-temperaturas/internal/models"
	"github.com/PedroFenixia/aemet-temperaturas/internal/repositories"
	"github.com/PedroFenixia/aemet-temperaturas/internal/services/collector"
	"github.com/PedroFenixia/aemet-temperaturas/internal/store"
	"github.com/PedroFenixia/aemet-temperaturas/pkg/observe"
)

var version = "dev"

var (
	flagAPIKey   string
	flagCapitals bool
	flagProvince string
	flagConfig   string
)

var rootCmd = &cobra.Command{
	Use:   "aemet-temperaturas",
	Short: "Daily min/max temperature collector for Spanish municipalities",
	Long: `aemet-temperaturas fetches today's forecast minimum and maximum
temperatures for the ~8100 Spanish municipalities from the AEMET OpenData
API and accumulates them into a rolling 7-day JSON dataset.

Meant to be run once a day from cron; it fetches, merges, writes and exits.`,
	SilenceUsage: true,
	RunE:         run,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("aemet-temperaturas %s\n", version)
	},
}

func init() {
	rootCmd.Flags().StringVar(&flagAPIKey, "api-key", "", "AEMET OpenData API key (overrides env var and key file)")
	rootCmd.Flags().BoolVar(&flagCapitals, "capitals", false, "collect only provincial capitals (fast, ~2 min)")
	rootCmd.Flags().StringVar(&flagProvince, "province", "", "restrict the full run to provinces matching this name")
	rootCmd.Flags().StringVar(&flagConfig, "config", "", "path to YAML config file")

	rootCmd.AddCommand(versionCmd)
}

func run(cmd *cobra.Command, args []string) error {
	cnf, err := config.NewConfig(flagConfig)
	if err != nil {
		return err
	}

	apiKey, err := cnf.ResolveAPIKey(flagAPIKey)
	if err != nil {
		return err
	}

	writers := []io.Writer{os.Stdout}
	if logFile, ferr := os.OpenFile(cnf.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644); ferr == nil {
		defer logFile.Close()
		writers = append(writers, logFile)
	} else {
		fmt.Fprintf(os.Stderr, "cannot open log file %s: %v\n", cnf.LogFile, ferr)
	}
	l := observe.NewZapLogger(cnf.AppName, writers...)
	defer l.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	catalog := models.DefaultCatalog()
	client := repositories.NewOpenDataClient(cnf.BaseURL, apiKey, cnf.RequestTimeout, repositories.RetryPolicy{
		MaxAttempts:       cnf.MaxRetries,
		RateLimitBackoff:  cnf.RateLimitBackoff,
		NetworkRetryPause: cnf.NetworkRetryPause,
	}, l)
	directory := repositories.NewDirectory(client, cnf.CacheFile, catalog, l)
	coll := collector.New(directory, client, collector.Pacing{
		BatchSize:     cnf.BatchSize,
		BatchWindow:   cnf.BatchWindow,
		RequestPause:  cnf.RequestPause,
		CapitalPause:  cnf.CapitalPause,
		ProgressEvery: cnf.ProgressEvery,
	}, l)

	mode := "all municipalities"
	if flagCapitals {
		mode = "capitals only"
	} else if flagProvince != "" {
		mode = "province " + flagProvince
	}
	l.Info("collection starting", map[string]any{"mode": mode, "version": version})

	var byProvince map[string][]models.Record
	if flagCapitals {
		byProvince, err = coll.CollectCapitals(ctx)
	} else {
		byProvince, err = coll.CollectAll(ctx, flagProvince)
	}
	if err != nil {
		l.Error(err)
		return err
	}

	total, withData := 0, 0
	for _, records := range byProvince {
		for _, r := range records {
			total++
			if r.Min != nil {
				withData++
			}
		}
	}
	if total == 0 {
		l.Fatal("no records collected, aborting")
	}
	l.Info("collection summary", map[string]any{
		"municipalities": total,
		"with_data":      withData,
	})

	if _, err := store.New(cnf.DataFile, l).MergeAndSave(byProvince, cnf.RetentionDays); err != nil {
		l.Error(err)
		return err
	}

	l.Info("collection finished successfully")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
