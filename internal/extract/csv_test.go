// ABOUTME: Tests for the delimited-text extractor.
// ABOUTME: Covers delimiter detection, bad rows, and the 0-byte edge case.
package extract

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/harperreed/healthpipe/internal/models"
)

func specForSteps() SourceSpec {
	return SourceSpec{
		Name:            "pedometer",
		DataType:        models.TypeFitness,
		SubType:         "steps",
		TimestampColumn: "date",
		Fields: []FieldSpec{
			{Column: "steps", Unit: "steps"},
			{Column: "note", Kind: KindScalar},
		},
	}
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDetectDelimiter(t *testing.T) {
	tests := []struct {
		name   string
		sample string
		want   rune
	}{
		{"comma", "date,steps\n2023-01-15,9000\n", ','},
		{"semicolon", "date;steps\n2023-01-15;9000\n", ';'},
		{"tie prefers comma", "date\n2023-01-15\n", ','},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectDelimiter([]byte(tt.sample)); got != tt.want {
				t.Errorf("DetectDelimiter = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCSVExtract(t *testing.T) {
	path := writeTemp(t, "steps.csv", "date,steps,note\n2023-01-15,9214,walked\n2023-01-16,10002,\n")

	res, err := CSV(path, specForSteps(), nil)
	if err != nil {
		t.Fatalf("CSV error: %v", err)
	}
	if len(res.Records) != 2 {
		t.Fatalf("records = %d, want 2", len(res.Records))
	}

	rec := res.Records[0]
	if rec.Timestamp != "01/15/2023 00:00:00" {
		t.Errorf("Timestamp = %q", rec.Timestamp)
	}
	if rec.Source != "pedometer" || rec.DataType != models.TypeFitness {
		t.Errorf("provenance = %s/%s", rec.Source, rec.DataType)
	}
	steps, ok := rec.Metric("steps")
	if !ok || steps.Value != 9214 || steps.Unit != "steps" {
		t.Errorf("steps = %+v, ok=%v", steps, ok)
	}
	if note, _ := rec.Field("note"); note != "walked" {
		t.Errorf("note = %v, want walked", note)
	}
}

func TestCSVSemicolonDelimited(t *testing.T) {
	path := writeTemp(t, "steps.csv", "date;steps;note\n2023-01-15;9214;ok\n")

	res, err := CSV(path, specForSteps(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Records) != 1 {
		t.Fatalf("records = %d, want 1", len(res.Records))
	}
	if mv, ok := res.Records[0].Metric("steps"); !ok || mv.Value != 9214 {
		t.Errorf("steps = %+v", mv)
	}
}

func TestCSVEmptyFile(t *testing.T) {
	path := writeTemp(t, "empty.csv", "")

	res, err := CSV(path, specForSteps(), nil)
	if err != nil {
		t.Fatalf("0-byte file should not error, got %v", err)
	}
	if len(res.Records) != 0 || len(res.Skipped) != 0 {
		t.Errorf("0-byte file: records=%d skipped=%d, want 0/0", len(res.Records), len(res.Skipped))
	}
}

func TestCSVBadRowsAreSkippedNotFatal(t *testing.T) {
	path := writeTemp(t, "mixed.csv", "date,steps\nnot-a-date,5\n2023-01-16,9000\n,3\n")

	res, err := CSV(path, specForSteps(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Records) != 1 {
		t.Fatalf("records = %d, want 1 survivor", len(res.Records))
	}
	if len(res.Skipped) != 2 {
		t.Errorf("skipped = %d, want 2", len(res.Skipped))
	}
}

func TestCSVMissingFile(t *testing.T) {
	_, err := CSV(filepath.Join(t.TempDir(), "nope.csv"), specForSteps(), nil)
	if !errors.Is(err, ErrExtraction) {
		t.Errorf("error = %v, want ErrExtraction", err)
	}
}

func TestCSVConfidenceOverride(t *testing.T) {
	path := writeTemp(t, "noisy.csv", "date,hr\n2023-01-15,61\n")
	spec := SourceSpec{
		Name:            "wrist",
		DataType:        models.TypeHealth,
		TimestampColumn: "date",
		Fields:          []FieldSpec{{Column: "hr", Field: "heart_rate", Unit: "bpm", Confidence: 0.7}},
	}

	res, err := CSV(path, spec, nil)
	if err != nil {
		t.Fatal(err)
	}
	mv, ok := res.Records[0].Metric("heart_rate")
	if !ok || mv.Confidence != 0.7 {
		t.Errorf("heart_rate = %+v, want confidence 0.7", mv)
	}
}
