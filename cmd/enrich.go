package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vetbridge/provider-cli/internal/enrich"
	"github.com/vetbridge/provider-cli/internal/provider"
	"github.com/vetbridge/provider-cli/internal/resilience"
	"github.com/vetbridge/provider-cli/internal/runlog"
	"github.com/vetbridge/provider-cli/pkg/places"
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Resolve Google Places identity for provider records",
	Long:  "Looks up each provider lacking a place identity against the Places API and writes an enriched copy of the dataset. Per-record failures are logged and the record passes through unchanged; rerun with --only to retry just the failed ids.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		// Credential check comes first: a missing key aborts before any
		// file or network activity.
		if cfg.Places.APIKey == "" {
			return eris.New("enrich: missing Places API key (set PROVIDER_PLACES_API_KEY or places.api_key)")
		}

		inPath, _ := cmd.Flags().GetString("in")
		outPath, _ := cmd.Flags().GetString("out")
		countryBias, _ := cmd.Flags().GetString("country-bias")
		only, _ := cmd.Flags().GetString("only")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		force, _ := cmd.Flags().GetBool("force")
		concurrency, _ := cmd.Flags().GetInt("concurrency")

		if inPath == "" {
			inPath = cfg.Data.BaseFile
		}
		if concurrency <= 0 {
			concurrency = cfg.Enrich.Concurrency
		}

		log := zap.L().With(zap.String("command", "enrich"))

		providers, err := provider.Load(inPath)
		if err != nil {
			return err
		}

		client, closeClient, err := buildPlacesClient()
		if err != nil {
			return err
		}
		defer closeClient()

		enricher := enrich.New(client, enrich.Options{
			CountryBias: countryBias,
			Only:        splitIDList(only),
			Force:       force,
			Concurrency: concurrency,
			Interval:    time.Duration(cfg.Enrich.IntervalMs) * time.Millisecond,
			Retry:       retryConfig(),
		})

		var rl *runlog.Log
		runID := ""
		if !dryRun {
			if rl = openRunLog(); rl != nil {
				defer rl.Close()
				if runID, err = rl.Start(ctx, "enrich", len(providers)); err != nil {
					log.Warn("run log unavailable", zap.Error(err))
					runID = ""
				}
			}
		}

		log.Info("starting enrichment",
			zap.String("in", inPath),
			zap.Int("records", len(providers)),
			zap.Bool("force", force),
			zap.Bool("dry_run", dryRun),
		)

		enriched, report, err := enricher.Run(ctx, providers)
		if err != nil {
			if runID != "" {
				_ = rl.Fail(context.WithoutCancel(ctx), runID, err)
			}
			return eris.Wrap(err, "enrich: run")
		}

		if dryRun {
			return provider.Print(os.Stdout, enriched)
		}

		if err := provider.Write(outPath, enriched); err != nil {
			if runID != "" {
				_ = rl.Fail(ctx, runID, err)
			}
			return err
		}

		if runID != "" {
			if err := rl.Complete(ctx, runID, report.Enriched, report.Skipped, report.Failed); err != nil {
				log.Warn("run log update failed", zap.Error(err))
			}
		}

		log.Info("enrichment complete",
			zap.String("out", outPath),
			zap.Int("enriched", report.Enriched),
			zap.Int("skipped", report.Skipped),
			zap.Int("failed", report.Failed),
			zap.Strings("failed_ids", report.FailedIDs),
		)

		return nil
	},
}

func init() {
	enrichCmd.Flags().String("in", "", "base dataset path (defaults to data.base_file)")
	enrichCmd.Flags().String("out", "", "output path for the enriched dataset")
	enrichCmd.Flags().String("country-bias", "", "comma-separated region codes; the API accepts one bias value, so only the first is used")
	enrichCmd.Flags().String("only", "", "comma-separated record ids to process; all others pass through")
	enrichCmd.Flags().Bool("dry-run", false, "print the computed dataset instead of writing it")
	enrichCmd.Flags().Bool("force", false, "re-resolve records that already have a place identity")
	enrichCmd.Flags().Bool("overwrite-geo", false, "carried for pipeline symmetry; coordinates are only overwritten at merge time")
	enrichCmd.Flags().Int("concurrency", 0, "bounded parallel lookups (defaults to enrich.concurrency); pacing is shared")
	_ = enrichCmd.MarkFlagRequired("out")

	rootCmd.AddCommand(enrichCmd)
}

// buildPlacesClient assembles the API client, wrapped in the SQLite lookup
// cache when enabled. The returned closer is a no-op for the bare client.
func buildPlacesClient() (places.Client, func(), error) {
	client := places.NewClient(cfg.Places.APIKey,
		places.WithBaseURL(cfg.Places.BaseURL),
		places.WithTimeout(time.Duration(cfg.Places.TimeoutSecs)*time.Second),
	)

	if !cfg.Cache.Enabled {
		return client, func() {}, nil
	}

	cached, err := places.NewCachedClient(client, cfg.Cache.Path)
	if err != nil {
		return nil, nil, eris.Wrap(err, "enrich: open lookup cache")
	}
	return cached, func() { _ = cached.Close() }, nil
}

func retryConfig() resilience.RetryConfig {
	rc := resilience.DefaultRetryConfig()
	if cfg.Enrich.RetryAttempts > 0 {
		rc.MaxAttempts = cfg.Enrich.RetryAttempts
	}
	return rc
}

// openRunLog opens the run history database, degrading to nil on failure.
func openRunLog() *runlog.Log {
	rl, err := runlog.Open(cfg.RunLog.Path)
	if err != nil {
		zap.L().Warn("run log unavailable", zap.Error(err))
		return nil
	}
	return rl
}

func splitIDList(csv string) []string {
	if csv == "" {
		return nil
	}
	var ids []string
	for _, id := range strings.Split(csv, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
