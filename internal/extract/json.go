// ABOUTME: Nested-JSON document extractor.
// ABOUTME: Accepts a top-level array or a wrapper object with a records key.
package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	"github.com/harperreed/healthpipe/internal/models"
)

// wrapperKeys are tried in order when the document is an object rather
// than a bare array.
var wrapperKeys = []string{"records", "data", "entries"}

// JSON extracts BaseRecords from a nested JSON document. Unreadable or
// undecodable documents wrap ErrExtraction; a 0-byte file yields zero
// records and no error. Nested objects under mapped fields are kept
// intact, so grouped observations like blood_pressure survive as nested
// MetricValues.
func JSON(path string, spec SourceSpec, logger *log.Logger) (Result, error) {
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

	docs, err := decodeDocuments(data)
	if err != nil {
		return Result{}, fmt.Errorf("%w: decode %s: %v", ErrExtraction, path, err)
	}

	var out Result
	for i, doc := range docs {
		ts, ok := firstKey(doc, spec.timestampColumns())
		if !ok {
			out.Skipped = append(out.Skipped, Skip{Row: i, Reason: "missing timestamp"})
			logger.Warn("skipping document without timestamp", "path", path, "index", i)
			continue
		}

		raw, _ := json.Marshal(doc)
		rec, err := buildRecord(raw, ts, spec)
		if err != nil {
			out.Skipped = append(out.Skipped, Skip{Row: i, Reason: err.Error()})
			logger.Warn("skipping document", "path", path, "index", i, "err", err)
			continue
		}

		for _, f := range spec.Fields {
			v, ok := doc[f.Column]
			if !ok || v == nil {
				continue
			}
			if nested, isMap := v.(map[string]any); isMap {
				rec.SetField(spec.field(f), nested)
				continue
			}
			setField(rec, spec, f, v)
		}

		if ok, missing := models.Validate(rec); !ok {
			out.Skipped = append(out.Skipped, Skip{Row: i, Reason: "missing required field " + missing})
			logger.Warn("skipping invalid record", "path", path, "index", i, "missing", missing)
			continue
		}
		out.Records = append(out.Records, rec)
	}
	return out, nil
}

func decodeDocuments(data []byte) ([]map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var arr []map[string]any
	if err := dec.Decode(&arr); err == nil {
		return arr, nil
	}

	dec = json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	for _, key := range wrapperKeys {
		inner, ok := obj[key].([]any)
		if !ok {
			continue
		}
		docs := make([]map[string]any, 0, len(inner))
		for _, v := range inner {
			if m, ok := v.(map[string]any); ok {
				docs = append(docs, m)
			}
		}
		return docs, nil
	}
	// A single record object.
	return []map[string]any{obj}, nil
}

func firstKey(doc map[string]any, keys []string) (string, bool) {
	for _, k := range keys {
		if v, ok := doc[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s, true
			}
		}
	}
	return "", false
}
