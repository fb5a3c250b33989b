package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"claudehist/internal/cli"
)

var flagRunsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show recent sync runs",
	RunE:  runRuns,
}

func init() {
	runsCmd.Flags().IntVarP(&flagRunsLimit, "limit", "l", 20, "Number of rows to show")
	rootCmd.AddCommand(runsCmd)
}

func runRuns(_ *cobra.Command, _ []string) error {
	if err := setupLogging(); err != nil {
		return err
	}

	db, err := openBackend()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	rows, err := db.Query(`
		SELECT run_timestamp, source, files_processed, records_inserted,
		       errors_count, duration_seconds, status
		FROM etl_runs
		ORDER BY run_timestamp DESC
		LIMIT ?`, flagRunsLimit)
	if err != nil {
		return err
	}

	cli.RenderRuns(os.Stdout, rows, stdoutIsTTY())
	return nil
}
