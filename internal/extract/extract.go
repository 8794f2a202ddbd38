// ABOUTME: Extractor contract shared by the delimited-text and JSON paths.
// ABOUTME: SourceSpec keeps per-source field heuristics outside this package.
package extract

import (
	"errors"

	"github.com/harperreed/healthpipe/internal/models"
)

// ErrExtraction marks a source file that could not be read or parsed at
// all. That file contributes zero records; other files continue.
var ErrExtraction = errors.New("extraction failed")

// FieldKind distinguishes numeric observations from plain scalars.
type FieldKind string

const (
	KindMetric FieldKind = "metric"
	KindScalar FieldKind = "scalar"
)

// FieldSpec maps one source column (or JSON key) onto a BaseRecord
// extension field.
type FieldSpec struct {
	// Column is the CSV header or JSON key to read.
	Column string `json:"column"`
	// Field is the extension field name; empty means reuse Column.
	Field string `json:"field,omitempty"`
	// Unit applies to metric fields with no unit of their own.
	Unit string `json:"unit,omitempty"`
	// Kind defaults to metric.
	Kind FieldKind `json:"kind,omitempty"`
	// Confidence overrides the default 1.0 when the source is known to
	// be noisy; zero means default.
	Confidence float64 `json:"confidence,omitempty"`
}

// SourceSpec is the caller-supplied description of one source file
// family. The field-recognition heuristics that produce a SourceSpec
// live with the caller; this package only executes one.
type SourceSpec struct {
	Name            string          `json:"name"`
	DataType        models.DataType `json:"data_type"`
	SubType         string          `json:"sub_type,omitempty"`
	TimestampColumn string          `json:"timestamp_column,omitempty"`
	Timezone        string          `json:"timezone,omitempty"`
	Fields          []FieldSpec     `json:"fields"`
}

// timestampColumn applies the default lookup order when the spec does
// not name a column.
var defaultTimestampColumns = []string{"timestamp", "date", "time", "startDate", "start_time"}

func (s SourceSpec) timestampColumns() []string {
	if s.TimestampColumn != "" {
		return []string{s.TimestampColumn}
	}
	return defaultTimestampColumns
}

// Skip records one dropped row and why, for the run summary.
type Skip struct {
	Row    int
	Reason string
}

// Result is the immutable outcome of extracting one file.
type Result struct {
	Records []*models.BaseRecord
	Skipped []Skip
}

func (s SourceSpec) field(f FieldSpec) string {
	if f.Field != "" {
		return f.Field
	}
	return f.Column
}
