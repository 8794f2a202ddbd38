// ABOUTME: Ties change detection, extraction, validation, and mapping together.
// ABOUTME: Returns immutable results; the caller owns cache persistence.
package pipeline

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/harperreed/healthpipe/internal/checksum"
	"github.com/harperreed/healthpipe/internal/models"
	"github.com/harperreed/healthpipe/internal/storage"
)

// Extractor turns one source file into BaseRecords. Implementations are
// source specific and live with the caller; extract.CSV and extract.JSON
// partially apply into this shape.
type Extractor func(path string) ([]*models.BaseRecord, error)

// Options tunes one run.
type Options struct {
	// RequiredFields overrides the validator's default required set.
	RequiredFields []string
	Logger         *log.Logger
}

// FileReport is the outcome for one input file.
type FileReport struct {
	Path      string
	Extracted int
	Dropped   int
	// Err is set when the whole file failed; its records are zero and
	// the file stays unmarked so the next run retries it.
	Err error
}

// Result is the immutable summary of one pipeline run.
type Result struct {
	Files            []FileReport
	SkippedUnchanged int
	Insert           *storage.InsertResult
}

// Records returns the total records extracted across all files.
func (r *Result) Records() int {
	n := 0
	for _, f := range r.Files {
		n += f.Extracted
	}
	return n
}

// Run filters paths through the change-detection cache, extracts and
// validates records from each changed file, writes them through the
// relational mapper, and marks successfully extracted files processed in
// the cache. Per-file and per-record failures are aggregated into the
// Result; only a destination-level failure returns an error. The caller
// persists the cache afterwards.
func Run(ctx context.Context, paths []string, cache *checksum.Cache, ext Extractor, db *storage.DB, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	changed := cache.Changed(paths)
	res := &Result{SkippedUnchanged: len(paths) - len(changed)}
	if res.SkippedUnchanged > 0 {
		logger.Info("skipping unchanged files", "count", res.SkippedUnchanged)
	}

	var records []*models.BaseRecord
	for _, path := range changed {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("run cancelled: %w", err)
		}

		report := FileReport{Path: path}
		recs, err := ext(path)
		if err != nil {
			report.Err = err
			res.Files = append(res.Files, report)
			logger.Error("file extraction failed", "path", path, "err", err)
			continue
		}

		for _, rec := range recs {
			if ok, missing := models.Validate(rec, opts.RequiredFields...); !ok {
				report.Dropped++
				logger.Warn("dropping invalid record", "path", path, "id", rec.ID, "missing", missing)
				continue
			}
			records = append(records, rec)
			report.Extracted++
		}
		res.Files = append(res.Files, report)
		logger.Info("extracted file", "path", path, "records", report.Extracted, "dropped", report.Dropped)
	}

	insert, err := db.InsertRecords(records)
	res.Insert = insert
	if err != nil {
		return res, fmt.Errorf("map records: %w", err)
	}
	for _, detail := range insert.ErrorDetails {
		logger.Warn("record failed to insert", "id", detail.RecordID, "source", detail.Source, "err", detail.Message)
	}

	for _, report := range res.Files {
		if report.Err != nil {
			continue
		}
		if err := cache.MarkProcessed(report.Path); err != nil {
			logger.Warn("could not mark file processed", "path", report.Path, "err", err)
		}
	}
	return res, nil
}
