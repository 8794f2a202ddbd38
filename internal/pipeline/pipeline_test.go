// ABOUTME: Tests for the end-to-end pipeline seam.
// ABOUTME: Covers change skipping, per-file failure isolation, and marking.
package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/harperreed/healthpipe/internal/checksum"
	"github.com/harperreed/healthpipe/internal/extract"
	"github.com/harperreed/healthpipe/internal/models"
	"github.com/harperreed/healthpipe/internal/storage"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func openDB(t *testing.T) *storage.DB {
	t.Helper()
	d, err := storage.Open(filepath.Join(t.TempDir(), "pipe.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func stepsExtractor() Extractor {
	spec := extract.SourceSpec{
		Name:            "pedometer",
		DataType:        models.TypeFitness,
		TimestampColumn: "date",
		Fields:          []extract.FieldSpec{{Column: "steps", Unit: "steps"}},
	}
	return func(path string) ([]*models.BaseRecord, error) {
		res, err := extract.CSV(path, spec, nil)
		if err != nil {
			return nil, err
		}
		return res.Records, nil
	}
}

func TestRunEndToEnd(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.csv", "date,steps\n2023-01-15,9000\n2023-01-16,9500\n")
	b := writeFile(t, dir, "b.csv", "date,steps\n2023-01-17,8000\n")
	db := openDB(t)
	cache := checksum.New()

	res, err := Run(context.Background(), []string{a, b}, cache, stepsExtractor(), db, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Records() != 3 {
		t.Errorf("Records = %d, want 3", res.Records())
	}
	if res.Insert.Inserted != 3 || res.Insert.Errors != 0 {
		t.Errorf("insert = %+v, want 3/0", res.Insert)
	}

	// Second run over unchanged inputs does nothing.
	res2, err := Run(context.Background(), []string{a, b}, cache, stepsExtractor(), db, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if res2.SkippedUnchanged != 2 || res2.Records() != 0 {
		t.Errorf("second run: skipped=%d records=%d, want 2/0", res2.SkippedUnchanged, res2.Records())
	}
}

func TestRunFileFailureIsolated(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.csv", "date,steps\n2023-01-15,9000\n")
	missing := filepath.Join(dir, "missing.csv")
	db := openDB(t)
	cache := checksum.New()

	res, err := Run(context.Background(), []string{good, missing}, cache, stepsExtractor(), db, Options{})
	if err != nil {
		t.Fatalf("per-file failure should not fail the run: %v", err)
	}
	if res.Records() != 1 {
		t.Errorf("Records = %d, want 1 from the good file", res.Records())
	}

	var failed *FileReport
	for i := range res.Files {
		if res.Files[i].Path == missing {
			failed = &res.Files[i]
		}
	}
	if failed == nil || failed.Err == nil {
		t.Fatal("expected a file report carrying the extraction error")
	}
	if !errors.Is(failed.Err, extract.ErrExtraction) {
		t.Errorf("file error = %v, want ErrExtraction", failed.Err)
	}

	// The failed file stays unmarked: a later run retries it.
	if changed := cache.Changed([]string{good, missing}); len(changed) != 1 || changed[0] != missing {
		t.Errorf("changed after run = %v, want only the failed file", changed)
	}
}

func TestRunCancelled(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.csv", "date,steps\n2023-01-15,9000\n")
	db := openDB(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, []string{a}, checksum.New(), stepsExtractor(), db, Options{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestRunEmptyFileYieldsNothing(t *testing.T) {
	dir := t.TempDir()
	empty := writeFile(t, dir, "empty.csv", "")
	db := openDB(t)

	res, err := Run(context.Background(), []string{empty}, checksum.New(), stepsExtractor(), db, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Records() != 0 || res.Insert.Errors != 0 {
		t.Errorf("empty file: records=%d errors=%d, want 0/0", res.Records(), res.Insert.Errors)
	}
	if len(res.Files) != 1 || res.Files[0].Err != nil {
		t.Errorf("empty file should report cleanly, got %+v", res.Files)
	}
}
