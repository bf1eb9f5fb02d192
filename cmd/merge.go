package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vetbridge/provider-cli/internal/merge"
	"github.com/vetbridge/provider-cli/internal/provider"
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Fold an enriched dataset back onto the base dataset",
	Long:  "Overlays gmaps blocks from an enrichment output onto the curated base dataset by id. Curator-authored fields always come from base; lat/lng are replaced only with --overwrite-geo and a valid enriched location.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		basePath, _ := cmd.Flags().GetString("base")
		enrichedPath, _ := cmd.Flags().GetString("enriched")
		outPath, _ := cmd.Flags().GetString("out")
		overwriteGeo, _ := cmd.Flags().GetBool("overwrite-geo")

		if basePath == "" {
			basePath = cfg.Data.BaseFile
		}

		log := zap.L().With(zap.String("command", "merge"))

		base, err := provider.Load(basePath)
		if err != nil {
			return err
		}
		enriched, err := provider.Load(enrichedPath)
		if err != nil {
			return err
		}

		var rl = openRunLog()
		runID := ""
		if rl != nil {
			defer rl.Close()
			if runID, err = rl.Start(ctx, "merge", len(base)); err != nil {
				log.Warn("run log unavailable", zap.Error(err))
				runID = ""
			}
		}

		merged := merge.Merge(base, enriched, merge.Options{OverwriteGeo: overwriteGeo})
		matched := merge.Matched(base, enriched)

		if err := provider.Write(outPath, merged); err != nil {
			if runID != "" {
				_ = rl.Fail(ctx, runID, err)
			}
			return err
		}

		if runID != "" {
			if err := rl.Complete(ctx, runID, matched, 0, 0); err != nil {
				log.Warn("run log update failed", zap.Error(err))
			}
		}

		log.Info("merge complete",
			zap.String("base", basePath),
			zap.String("enriched", enrichedPath),
			zap.String("out", outPath),
			zap.Int("records", len(merged)),
			zap.Int("matched", matched),
			zap.Bool("overwrite_geo", overwriteGeo),
		)

		return nil
	},
}

func init() {
	mergeCmd.Flags().String("base", "", "base dataset path (defaults to data.base_file)")
	mergeCmd.Flags().String("enriched", "", "enriched dataset path")
	mergeCmd.Flags().String("out", "", "output path for the merged dataset")
	mergeCmd.Flags().Bool("overwrite-geo", false, "replace curator lat/lng with the enriched gmaps location")
	_ = mergeCmd.MarkFlagRequired("enriched")
	_ = mergeCmd.MarkFlagRequired("out")

	rootCmd.AddCommand(mergeCmd)
}
