package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/vetbridge/provider-cli/internal/provider"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check dataset integrity",
	Long:  "Verifies required fields, unique ids, and coordinate sanity for a provider dataset. Exits non-zero if any issue is found.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		inPath, _ := cmd.Flags().GetString("in")
		if inPath == "" {
			inPath = cfg.Data.BaseFile
		}

		providers, err := provider.Load(inPath)
		if err != nil {
			return err
		}

		issues := provider.Validate(providers)
		formatIssues(os.Stdout, inPath, len(providers), issues)

		if len(issues) > 0 {
			return eris.Errorf("validate: %d issue(s) in %s", len(issues), inPath)
		}
		return nil
	},
}

func formatIssues(w io.Writer, path string, records int, issues []provider.Issue) {
	if len(issues) == 0 {
		fmt.Fprintf(w, "%s: %d records, no issues\n", path, records)
		return
	}
	fmt.Fprintf(w, "%s: %d records, %d issue(s)\n", path, records, len(issues))
	for _, issue := range issues {
		fmt.Fprintf(w, "  %s\n", issue)
	}
}

func init() {
	validateCmd.Flags().String("in", "", "dataset path (defaults to data.base_file)")
	rootCmd.AddCommand(validateCmd)
}
