// ABOUTME: CLI commands for querying the relational store.
// ABOUTME: Date-range and per-source queries plus a source inventory.
package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/harperreed/healthpipe/internal/storage"
	"github.com/spf13/cobra"
)

var (
	queryStart  string
	queryEnd    string
	querySource string
	queryLimit  int
)

var queryCmd = &cobra.Command{
	Use:     "query",
	Aliases: []string{"q"},
	Short:   "Query ingested health records",
	Long: `Query ingested records by date range or source.

OUTPUT FORMAT:

  Each line shows: ID  TIMESTAMP  SOURCE  TYPE  FIELDS

  The ID is an 8-character prefix you can use with other commands.

DATE BOUNDS:

  Bounds accept any supported timestamp format. A date-only end bound
  covers its whole day.

EXAMPLES:

  healthpipe query --start 2024-01-01 --end 2024-01-31
  healthpipe query --source fitbit
  healthpipe query --source fitbit -n 50`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var rows []*storage.Row
		var err error
		switch {
		case querySource != "":
			rows, err = db.RecordsBySource(querySource, queryLimit)
		case queryStart != "" && queryEnd != "":
			rows, err = db.RecordsByDateRange(queryStart, queryEnd)
		default:
			return fmt.Errorf("need either --source or both --start and --end")
		}
		if err != nil {
			return fmt.Errorf("query failed: %w", err)
		}

		if len(rows) == 0 {
			fmt.Println("No records found.")
			return nil
		}

		faint := color.New(color.Faint)
		for _, r := range rows {
			fmt.Printf("%s %s %s %s %s\n",
				faint.Sprint(r.ID[:8]),
				faint.Sprint(r.Timestamp),
				padRight(r.Source, 12),
				padRight(r.DataType, 10),
				rowFields(r))
		}
		return nil
	},
}

// rowFields renders a row's populated child columns as key=value pairs.
func rowFields(r *storage.Row) string {
	var parts []string
	add := func(name string, v any) { parts = append(parts, fmt.Sprintf("%s=%v", name, v)) }

	if r.ActivityType.Valid {
		add("activity", r.ActivityType.String)
	}
	if r.Steps.Valid {
		add("steps", r.Steps.Float64)
	}
	if r.Distance.Valid {
		add("distance", r.Distance.Float64)
	}
	if r.Calories.Valid {
		add("calories", r.Calories.Float64)
	}
	if r.BPSystolic.Valid && r.BPDiastolic.Valid {
		parts = append(parts, fmt.Sprintf("bp=%.0f/%.0f", r.BPSystolic.Float64, r.BPDiastolic.Float64))
	}
	if r.HeartRate.Valid {
		add("hr", r.HeartRate.Float64)
	}
	if r.Weight.Valid {
		add("weight", r.Weight.Float64)
	}
	if r.SleepDuration.Valid {
		add("sleep_min", r.SleepDuration.Float64)
	}
	if r.HabitName.Valid {
		add("habit", r.HabitName.String)
	}
	if r.SymptomName.Valid {
		add("symptom", r.SymptomName.String)
	}
	if r.MedicationName.Valid {
		add("medication", r.MedicationName.String)
	}
	if r.PlaceName.Valid {
		add("place", r.PlaceName.String)
	}
	return strings.Join(parts, " ")
}

func padRight(s string, length int) string {
	if len(s) >= length {
		return s
	}
	return s + strings.Repeat(" ", length-len(s))
}

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List ingested sources",
	Long:  `List every ingested data source with its record count.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sources, err := db.Sources()
		if err != nil {
			return fmt.Errorf("failed to list sources: %w", err)
		}

		if len(sources) == 0 {
			fmt.Println("No sources found.")
			return nil
		}

		names := make([]string, 0, len(sources))
		for name := range sources {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			fmt.Printf("%s %d\n", padRight(name, 16), sources[name])
		}
		return nil
	},
}

func init() {
	queryCmd.Flags().StringVar(&queryStart, "start", "", "range start (any supported timestamp format)")
	queryCmd.Flags().StringVar(&queryEnd, "end", "", "range end, inclusive")
	queryCmd.Flags().StringVar(&querySource, "source", "", "filter by source name")
	queryCmd.Flags().IntVarP(&queryLimit, "limit", "n", 20, "max results for source queries")
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(sourcesCmd)
}
