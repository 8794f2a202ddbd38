// ABOUTME: Field extraction helpers shared by the child-table writers.
// ABOUTME: Everything degrades to NULL when a field is absent, never throws.
package storage

import (
	"database/sql"

	"github.com/harperreed/healthpipe/internal/models"
)

// extractMetricValue reads the numeric value at path, NULL when absent.
func extractMetricValue(rec *models.BaseRecord, path string) sql.NullFloat64 {
	mv, ok := rec.Metric(path)
	if !ok {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: mv.Value, Valid: true}
}

// extractMetricUnit reads the unit at path, falling back to defaultUnit
// when the metric exists without one and NULL when the metric is absent.
func extractMetricUnit(rec *models.BaseRecord, path, defaultUnit string) sql.NullString {
	mv, ok := rec.Metric(path)
	if !ok {
		return sql.NullString{}
	}
	unit := mv.Unit
	if unit == "" {
		unit = defaultUnit
	}
	return sql.NullString{String: unit, Valid: true}
}

// extractMetricConfidence reads the confidence at path, NULL when absent.
func extractMetricConfidence(rec *models.BaseRecord, path string) sql.NullFloat64 {
	mv, ok := rec.Metric(path)
	if !ok {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: mv.Confidence, Valid: true}
}

// firstMetricValue tries paths in order and returns the first present.
func firstMetricValue(rec *models.BaseRecord, paths ...string) sql.NullFloat64 {
	for _, p := range paths {
		if v := extractMetricValue(rec, p); v.Valid {
			return v
		}
	}
	return sql.NullFloat64{}
}

// minConfidence takes the lowest confidence among the present metrics,
// the conservative quality signal for a row built from several fields.
func minConfidence(rec *models.BaseRecord, paths ...string) sql.NullFloat64 {
	out := sql.NullFloat64{}
	for _, p := range paths {
		c := extractMetricConfidence(rec, p)
		if !c.Valid {
			continue
		}
		if !out.Valid || c.Float64 < out.Float64 {
			out = c
		}
	}
	return out
}

// extractScalarString reads a plain string field, NULL when absent.
func extractScalarString(rec *models.BaseRecord, path string) sql.NullString {
	v, ok := rec.Field(path)
	if !ok {
		return sql.NullString{}
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// firstScalarString reads path, then falls back to a literal value.
func firstScalarString(rec *models.BaseRecord, path, fallback string) sql.NullString {
	if s := extractScalarString(rec, path); s.Valid {
		return s
	}
	if fallback == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: fallback, Valid: true}
}

// extractScalarBool reads a boolean-ish field, NULL when absent.
func extractScalarBool(rec *models.BaseRecord, path string) sql.NullBool {
	v, ok := rec.Field(path)
	if !ok {
		return sql.NullBool{}
	}
	switch x := v.(type) {
	case bool:
		return sql.NullBool{Bool: x, Valid: true}
	case string:
		return sql.NullBool{Bool: x == "true" || x == "yes" || x == "1", Valid: true}
	}
	return sql.NullBool{Bool: models.ToFloat(v) != 0, Valid: true}
}

// nullString maps the empty string to NULL.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// hasAny reports whether any of the named fields is present.
func hasAny(rec *models.BaseRecord, paths ...string) bool {
	for _, p := range paths {
		if _, ok := rec.Field(p); ok {
			return true
		}
	}
	return false
}

// anyValid reports whether at least one extracted value is non-NULL, the
// gate that keeps empty child rows out of the schema.
func anyValid(vals ...sql.NullFloat64) bool {
	for _, v := range vals {
		if v.Valid {
			return true
		}
	}
	return false
}
