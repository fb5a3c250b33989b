package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"claudehist/internal/cli"
	"claudehist/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show row counts per table",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(_ *cobra.Command, _ []string) error {
	if err := setupLogging(); err != nil {
		return err
	}

	db, err := openBackend()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	counts := make(map[string]int64, len(store.DomainTables))
	for _, name := range store.DomainTables {
		row, err := db.QueryOne("SELECT COUNT(*) AS n FROM " + name)
		if err != nil {
			return err
		}
		if row != nil {
			counts[name] = row.Int64("n")
		}
	}

	cli.RenderStats(os.Stdout, store.DomainTables, counts, stdoutIsTTY())
	return nil
}
