// Package cmd wires the claudehist command-line interface.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"claudehist/internal/cli"
	"claudehist/internal/config"
	"claudehist/internal/pipeline"
	"claudehist/internal/state"
	"claudehist/internal/store"
)

var (
	flagSource     string
	flagDB         string
	flagForce      bool
	flagSources    string
	flagVerbose    bool
	flagQuiet      bool
	flagLogLevel   string
	flagDryRun     bool
	flagRemote     bool
	flagRemoteDB   string
	flagNoFallback bool
)

var rootCmd = &cobra.Command{
	Use:   "claudehist",
	Short: "Mirror Claude Code session history into SQLite or D1",
	Long: "claudehist incrementally syncs a Claude Code data directory " +
		"(sessions, todos, file history, shell snapshots, prompt history, plans)\n" +
		"into a local SQLite database, or into a remote Cloudflare D1 database via wrangler.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runSync,
}

// Execute is the entry point called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Warning:", err)
		cfg = config.Default()
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flagSource, "source", "s", cfg.General.SourceDir, "Claude data directory")
	pf.StringVarP(&flagDB, "db", "d", cfg.General.DBPath, "Local database path")
	pf.BoolVar(&flagRemote, "remote", cfg.Remote.Enabled, "Use remote D1 database via wrangler")
	pf.StringVar(&flagRemoteDB, "remote-db", cfg.Remote.Database, "D1 database name")
	pf.BoolVar(&flagNoFallback, "no-fallback", !cfg.Remote.FallbackToLocal, "Treat remote connection failure as fatal")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging")
	pf.BoolVarP(&flagQuiet, "quiet", "q", false, "Only log errors")
	pf.StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, warn, error); overrides --verbose/--quiet")

	rootCmd.Flags().BoolVarP(&flagForce, "force", "f", false, "Re-process all files (ignore incremental state)")
	rootCmd.Flags().StringVar(&flagSources, "sources", "", "Comma-separated sources to extract (projects,todos,file-history,history,plans,shell-snapshots)")
	rootCmd.Flags().BoolVarP(&flagDryRun, "dry-run", "n", false, "Count records without writing")
}

func setupLogging() error {
	level := slog.LevelInfo
	switch {
	case flagQuiet:
		level = slog.LevelError
	case flagVerbose:
		level = slog.LevelDebug
	}
	if flagLogLevel != "" {
		parsed, err := config.ParseLogLevel(flagLogLevel)
		if err != nil {
			return err
		}
		level = parsed
	}
	config.SetupLogging(level)
	return nil
}

// openBackend selects and connects the backend per the flags.
func openBackend() (store.Backend, error) {
	kind := store.KindLocal
	if flagRemote {
		kind = store.KindRemote
	}
	return store.Open(store.Options{
		Kind:            kind,
		Path:            flagDB,
		RemoteDB:        flagRemoteDB,
		FallbackToLocal: !flagNoFallback,
	})
}

func stdoutIsTTY() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

func runSync(_ *cobra.Command, _ []string) error {
	if err := setupLogging(); err != nil {
		return err
	}

	db, err := openBackend()
	if err != nil {
		return err
	}
	defer func() {
		// Close flushes the remote write buffer; a failure here means
		// buffered rows were dropped and must not pass silently.
		if cerr := db.Close(); cerr != nil {
			slog.Error("closing database", "error", cerr)
		}
	}()

	if err := db.SetupSchema(); err != nil {
		return err
	}

	tracker := state.New(db, flagForce)

	var sources []string
	if flagSources != "" {
		sources = strings.Split(flagSources, ",")
	}

	summary, err := pipeline.Run(db, tracker, pipeline.Options{
		SourceDir: flagSource,
		Sources:   sources,
		DryRun:    flagDryRun,
	})
	if err != nil {
		return err
	}

	cli.RenderSummary(os.Stdout, summary, stdoutIsTTY())

	if !summary.OK() {
		return fmt.Errorf("completed with %d errors", summary.TotalErrors)
	}
	return nil
}
