// ABOUTME: Delimited-text extractor with comma/semicolon auto-detection.
// ABOUTME: Produces BaseRecords through a caller-supplied SourceSpec.
package extract

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/harperreed/healthpipe/internal/models"
	"github.com/harperreed/healthpipe/internal/timestamp"
)

// sampleSize is how much of the file feeds delimiter detection.
const sampleSize = 4096

// DetectDelimiter picks comma or semicolon by comparing separator
// frequency in a content sample.
func DetectDelimiter(sample []byte) rune {
	commas := bytes.Count(sample, []byte{','})
	semis := bytes.Count(sample, []byte{';'})
	if semis > commas {
		return ';'
	}
	return ','
}

// CSV extracts BaseRecords from a delimited text file. A file that
// cannot be read or whose header cannot be parsed wraps ErrExtraction;
// a 0-byte file yields zero records and no error. Individual bad rows
// are skipped with a logged reason, never failing the file.
func CSV(path string, spec SourceSpec, logger *log.Logger) (Result, error) {
	if logger == nil {
		logger = log.Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("%w: read %s: %v", ErrExtraction, path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return Result{}, nil
	}

	sample := data
	if len(sample) > sampleSize {
		sample = sample[:sampleSize]
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = DetectDelimiter(sample)
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return Result{}, fmt.Errorf("%w: header %s: %v", ErrExtraction, path, err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[h] = i
	}

	var out Result
	rowNum := 1
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		rowNum++
		if err != nil {
			out.Skipped = append(out.Skipped, Skip{Row: rowNum, Reason: err.Error()})
			logger.Warn("skipping malformed row", "path", path, "row", rowNum, "err", err)
			continue
		}

		cell := func(col string) (string, bool) {
			i, ok := index[col]
			if !ok || i >= len(row) {
				return "", false
			}
			return row[i], true
		}

		ts, ok := firstCell(cell, spec.timestampColumns())
		if !ok || ts == "" {
			out.Skipped = append(out.Skipped, Skip{Row: rowNum, Reason: "missing timestamp"})
			logger.Warn("skipping row without timestamp", "path", path, "row", rowNum)
			continue
		}

		rec, err := buildRecord(rowRaw(header, row), ts, spec)
		if err != nil {
			out.Skipped = append(out.Skipped, Skip{Row: rowNum, Reason: err.Error()})
			if errors.Is(err, timestamp.ErrUnparseable) {
				logger.Warn("skipping row with unparseable timestamp", "path", path, "row", rowNum, "timestamp", ts)
			} else {
				logger.Warn("skipping row", "path", path, "row", rowNum, "err", err)
			}
			continue
		}

		for _, f := range spec.Fields {
			v, ok := cell(f.Column)
			if !ok || v == "" {
				continue
			}
			setField(rec, spec, f, v)
		}

		if ok, missing := models.Validate(rec); !ok {
			out.Skipped = append(out.Skipped, Skip{Row: rowNum, Reason: "missing required field " + missing})
			logger.Warn("skipping invalid record", "path", path, "row", rowNum, "missing", missing)
			continue
		}
		out.Records = append(out.Records, rec)
	}
	return out, nil
}

func firstCell(cell func(string) (string, bool), cols []string) (string, bool) {
	for _, c := range cols {
		if v, ok := cell(c); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

func rowRaw(header, row []string) json.RawMessage {
	m := make(map[string]string, len(header))
	for i, h := range header {
		if i < len(row) {
			m[h] = row[i]
		}
	}
	raw, _ := json.Marshal(m)
	return raw
}

func buildRecord(raw json.RawMessage, ts string, spec SourceSpec) (*models.BaseRecord, error) {
	if spec.Timezone != "" {
		normalized, err := timestamp.NormalizeIn(ts, spec.Timezone)
		if err != nil {
			return nil, fmt.Errorf("record timestamp: %w", err)
		}
		ts = normalized
	}
	return models.NewBaseRecord(raw, ts, spec.Name, spec.DataType, spec.SubType)
}

func setField(rec *models.BaseRecord, spec SourceSpec, f FieldSpec, v any) {
	name := spec.field(f)
	if f.Kind == KindScalar {
		rec.SetField(name, v)
		return
	}
	if f.Confidence > 0 {
		rec.SetField(name, models.NewMetricValueConfidence(v, f.Unit, f.Confidence))
		return
	}
	rec.SetField(name, models.NewMetricValue(v, f.Unit))
}
