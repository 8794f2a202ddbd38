// ABOUTME: CLI command for deleting ingested records.
// ABOUTME: Removes one source's records and their child rows.
package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:     "delete --source <name>",
	Aliases: []string{"del", "rm"},
	Short:   "Delete one source's records",
	Long: `Delete every record ingested from one source, including the typed
child rows that hang off them.

The source's file fingerprints are untouched; re-running ingest on the
same unchanged files will still skip them. Use 'ingest --force' to
re-ingest after a delete.

EXAMPLES:

  healthpipe delete --source fitbit
  healthpipe rm --source apple_export

CAUTION:

  This permanently deletes the records. There is no undo.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if deleteSource == "" {
			return fmt.Errorf("--source is required")
		}

		result, err := db.DeleteBySource(deleteSource)
		if err != nil {
			return fmt.Errorf("failed to delete records: %w", err)
		}

		if result.DeletedRecords == 0 {
			fmt.Printf("No records for source %q.\n", deleteSource)
			return nil
		}

		color.Yellow("✗ Deleted %d record(s) from %s", result.DeletedRecords, deleteSource)
		fmt.Printf("  %s\n",
			color.New(color.Faint).Sprintf("%d related row(s) removed", result.DeletedRelated))
		return nil
	},
}

var deleteSource string

func init() {
	deleteCmd.Flags().StringVar(&deleteSource, "source", "", "source whose records to delete")
	rootCmd.AddCommand(deleteCmd)
}
