// ABOUTME: CLI command for ingesting health export files.
// ABOUTME: Routes files to CSV, JSON, or sampled-XML extraction.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/harperreed/healthpipe/internal/checksum"
	"github.com/harperreed/healthpipe/internal/extract"
	"github.com/harperreed/healthpipe/internal/models"
	"github.com/harperreed/healthpipe/internal/pipeline"
	"github.com/harperreed/healthpipe/internal/sampler"
	"github.com/spf13/cobra"
)

var (
	ingestSpecPath    string
	ingestSource      string
	ingestForce       bool
	ingestRequired    []string
	ingestMaxEntries  int
	ingestSampleEvery int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [files...]",
	Short: "Ingest health export files",
	Long: `Ingest one or more health export files into the relational store.

FORMATS:

  .csv   Tabular exports. Requires --spec describing the columns.
  .json  Record arrays, wrapped arrays, or single objects. Requires --spec.
  .xml   Large markup exports (Apple Health style). Streamed and sampled;
         no spec needed, entry attributes are mapped by type identifier.

SOURCE SPECS:

  A spec is a JSON file naming the source, its data type, and the columns
  to extract:

  {
    "name": "fitbit",
    "data_type": "vitals",
    "timestamp_column": "date",
    "fields": [
      {"column": "hr", "field": "heart_rate", "unit": "bpm", "kind": "metric"}
    ]
  }

CHANGE DETECTION:

  Files already ingested are fingerprinted and skipped on re-runs. A file
  that changed since the last run is re-ingested, updating its records in
  place. Use --force to re-ingest regardless.

EXAMPLES:

  healthpipe ingest --spec fitbit.json daily.csv
  healthpipe ingest --spec oura.json sleep1.json sleep2.json
  healthpipe ingest --source apple export.xml
  healthpipe ingest --force --spec fitbit.json daily.csv`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var spec extract.SourceSpec
		if ingestSpecPath != "" {
			loaded, err := loadSourceSpec(ingestSpecPath)
			if err != nil {
				return err
			}
			spec = loaded
		}

		for _, path := range args {
			if needsSpec(path) && ingestSpecPath == "" {
				return fmt.Errorf("%s needs --spec describing its columns", path)
			}
		}

		store, closeStore, err := cfg.OpenCacheStore()
		if err != nil {
			return fmt.Errorf("failed to open checksum cache: %w", err)
		}
		defer closeStore()

		cache := checksum.Load(store, logger)
		cache.SetHasher(cfg.Hasher())
		if ingestForce {
			// A fresh cache sees every file as changed.
			cache = checksum.New()
			cache.SetHasher(cfg.Hasher())
		}

		result, err := pipeline.Run(cmd.Context(), args, cache, func(path string) ([]*models.BaseRecord, error) {
			return extractFile(path, spec)
		}, db, pipeline.Options{
			RequiredFields: ingestRequired,
			Logger:         logger,
		})
		if err != nil {
			return fmt.Errorf("ingest failed: %w", err)
		}

		if !ingestForce {
			if err := cache.Save(store); err != nil {
				return fmt.Errorf("failed to save checksum cache: %w", err)
			}
		}

		printIngestSummary(result)
		return nil
	},
}

// needsSpec reports whether a file's format requires a source spec.
func needsSpec(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".json":
		return true
	}
	return false
}

// extractFile routes one file to the extractor for its format.
func extractFile(path string, spec extract.SourceSpec) ([]*models.BaseRecord, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		res, err := extract.CSV(path, spec, logger)
		return res.Records, err
	case ".json":
		res, err := extract.JSON(path, spec, logger)
		return res.Records, err
	case ".xml":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		source := ingestSource
		if source == "" {
			source = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		records, stats, err := sampler.CollectRecords(f, samplerConfig(), source)
		if err != nil {
			return nil, err
		}
		logger.Info("sampled export",
			"path", path, "seen", stats.TotalSeen, "yielded", stats.Yielded, "state", stats.State)
		return records, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", path)
	}
}

func samplerConfig() sampler.Config {
	sc := sampler.Config{
		MaxEntries:  cfg.Sampler.MaxEntries,
		SampleEvery: cfg.Sampler.SampleEvery,
		MaxBuffer:   cfg.Sampler.MaxBuffer,
		Logger:      logger,
	}
	if ingestMaxEntries > 0 {
		sc.MaxEntries = ingestMaxEntries
	}
	if ingestSampleEvery > 0 {
		sc.SampleEvery = ingestSampleEvery
	}
	return sc
}

func printIngestSummary(result *pipeline.Result) {
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	faint := color.New(color.Faint)

	for _, f := range result.Files {
		if f.Err != nil {
			red.Printf("✗ %s: %v\n", f.Path, f.Err)
			continue
		}
		line := fmt.Sprintf("✓ %s: %d records", f.Path, f.Extracted)
		if f.Dropped > 0 {
			line += faint.Sprintf(" (%d dropped)", f.Dropped)
		}
		green.Println(line)
	}
	if result.SkippedUnchanged > 0 {
		faint.Printf("%d unchanged file(s) skipped\n", result.SkippedUnchanged)
	}
	if result.Insert != nil {
		fmt.Printf("Inserted %d of %d records in %d batch(es)\n",
			result.Insert.Inserted, result.Insert.TotalRecords, result.Insert.Batches)
		for _, e := range result.Insert.ErrorDetails {
			red.Printf("  record %s (%s): %s\n", e.RecordID, e.Source, e.Message)
		}
	}
}

// loadSourceSpec reads a SourceSpec JSON file.
func loadSourceSpec(path string) (extract.SourceSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return extract.SourceSpec{}, fmt.Errorf("read spec %s: %w", path, err)
	}
	var spec extract.SourceSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return extract.SourceSpec{}, fmt.Errorf("parse spec %s: %w", path, err)
	}
	if spec.Name == "" {
		return extract.SourceSpec{}, fmt.Errorf("spec %s: missing name", path)
	}
	if !models.IsValidDataType(string(spec.DataType)) {
		return extract.SourceSpec{}, fmt.Errorf("spec %s: unknown data type %q", path, spec.DataType)
	}
	return spec, nil
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestSpecPath, "spec", "s", "", "source spec JSON file (required for csv/json)")
	ingestCmd.Flags().StringVar(&ingestSource, "source", "", "source name for sampled XML exports (default: file name)")
	ingestCmd.Flags().BoolVarP(&ingestForce, "force", "f", false, "re-ingest even if files are unchanged")
	ingestCmd.Flags().StringSliceVar(&ingestRequired, "required", nil, "fields a record must carry to be kept")
	ingestCmd.Flags().IntVar(&ingestMaxEntries, "max-entries", 0, "sampling cap for XML exports")
	ingestCmd.Flags().IntVar(&ingestSampleEvery, "sample-every", 0, "keep every Nth XML entry")
	rootCmd.AddCommand(ingestCmd)
}
