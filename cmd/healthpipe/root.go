// ABOUTME: Root Cobra command for healthpipe CLI.
// ABOUTME: Handles config and database lifecycle via PersistentPre/PostRunE.
package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/harperreed/healthpipe/internal/config"
	"github.com/harperreed/healthpipe/internal/storage"
	"github.com/spf13/cobra"
)

var (
	cfg     *config.Config
	db      *storage.DB
	dataDir string
	logger  = log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: false})
)

var rootCmd = &cobra.Command{
	Use:   "healthpipe",
	Short: "Personal health data ingestion pipeline",
	Long: `Healthpipe ingests personal health exports into one relational store.

WHAT IT DOES:

  Ingestion      CSV, JSON, and XML exports from fitness trackers, health
                 apps, and device vendors
  Normalization  every timestamp lands in one canonical format, every
                 reading carries its unit and a confidence score
  Deduplication  files are fingerprinted; unchanged files are skipped on
                 re-runs, and re-ingesting a file updates in place
  Mapping        records fan out into typed tables: fitness, vitals,
                 sleep, habits, symptoms, medications, location

QUICK START:

  $ healthpipe ingest --spec fitbit.json export.csv   # Ingest a CSV export
  $ healthpipe ingest apple_export.xml                # Sample a large XML export
  $ healthpipe query --start 2024-01-01 --end 2024-01-31
  $ healthpipe sources                                # What's been ingested
  $ healthpipe delete --source fitbit                 # Remove one source

LARGE EXPORTS:

  XML exports (Apple Health and similar) are streamed and sampled rather
  than parsed whole. Use 'healthpipe sample' to preview what a sampling
  pass would yield before ingesting.

MCP INTEGRATION:

  Run 'healthpipe mcp' to start the Model Context Protocol server for use
  with Claude Desktop or other MCP-compatible AI assistants:

  {
    "mcpServers": {
      "healthpipe": { "command": "healthpipe", "args": ["mcp"] }
    }
  }

DATA STORAGE:

  Records land in SQLite at ~/.local/share/healthpipe/healthpipe.db.
  File fingerprints live alongside it, in JSON or Badger depending on
  the configured cache backend.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Commands that never touch the store
		if cmd.Name() == "version" || cmd.Name() == "help" || cmd.Name() == "sample" {
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if dataDir != "" {
			cfg.DataDir = dataDir
		}

		db, err = storage.Open(cfg.DBPath())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		if cfg.BatchSize > 0 {
			db.SetBatchSize(cfg.BatchSize)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if db != nil {
			return db.Close()
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("healthpipe 1.0.0")
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "override the data directory")
	rootCmd.AddCommand(versionCmd)
}
