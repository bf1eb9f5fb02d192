package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vetbridge/provider-cli/internal/provider"
	"github.com/vetbridge/provider-cli/internal/runlog"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show enrichment coverage and recent runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		inPath, _ := cmd.Flags().GetString("in")
		limit, _ := cmd.Flags().GetInt("runs")
		if inPath == "" {
			inPath = cfg.Data.BaseFile
		}

		providers, err := provider.Load(inPath)
		if err != nil {
			return err
		}

		formatCoverage(os.Stdout, inPath, providers)

		rl := openRunLog()
		if rl == nil {
			return nil
		}
		defer rl.Close()

		showRuns(ctx, os.Stdout, rl, limit)

		return nil
	},
}

// coverage is per-country enrichment progress.
type coverage struct {
	country  string
	total    int
	resolved int
}

func formatCoverage(w io.Writer, path string, providers []provider.Provider) {
	byCountry := make(map[string]*coverage)
	resolved := 0
	for _, p := range providers {
		c := byCountry[p.Country]
		if c == nil {
			c = &coverage{country: p.Country}
			byCountry[p.Country] = c
		}
		c.total++
		if p.Resolved() {
			c.resolved++
			resolved++
		}
	}

	rows := make([]*coverage, 0, len(byCountry))
	for _, c := range byCountry {
		rows = append(rows, c)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].country < rows[j].country })

	fmt.Fprintf(w, "%s: %d/%d records enriched\n\n", path, resolved, len(providers))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "COUNTRY\tRECORDS\tENRICHED")
	for _, c := range rows {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", c.country, c.total, c.resolved)
	}
	tw.Flush()
}

// showRuns prints recent run history. Run-log reads are best-effort like the
// writes: a failure is a warning, never an error for the command.
func showRuns(ctx context.Context, w io.Writer, rl *runlog.Log, limit int) {
	entries, err := rl.Recent(ctx, limit)
	if err != nil {
		zap.L().Warn("run log read failed", zap.Error(err))
		return
	}
	if len(entries) == 0 {
		return
	}
	formatRuns(w, entries)
}

func formatRuns(w io.Writer, entries []runlog.Entry) {
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tTOOL\tSTATUS\tRECORDS\tENRICHED\tSKIPPED\tFAILED\tSTARTED")
	for _, e := range entries {
		id := e.ID
		if len(id) > 8 {
			id = id[:8]
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			id, e.Tool, e.Status, e.Records, e.Enriched, e.Skipped, e.Failed,
			e.StartedAt.Format("2006-01-02 15:04"),
		)
	}
	tw.Flush()
}

func init() {
	statusCmd.Flags().String("in", "", "dataset path (defaults to data.base_file)")
	statusCmd.Flags().Int("runs", 10, "number of recent runs to show")
	rootCmd.AddCommand(statusCmd)
}
