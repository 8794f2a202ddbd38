// ABOUTME: MetricValue, the {value, unit, confidence} wrapper attached to
// ABOUTME: every numeric observation a source produces.
package models

import (
	"encoding/json"
	"strconv"
)

// MetricValue wraps a single numeric observation with its unit and a
// confidence score in [0,1]. Immutable once constructed.
type MetricValue struct {
	Value      float64 `json:"value"`
	Unit       string  `json:"unit"`
	Confidence float64 `json:"confidence"`
}

// NewMetricValue builds a MetricValue with full confidence. The value is
// coerced to float64 from whatever loose type the source handed over.
func NewMetricValue(value any, unit string) MetricValue {
	return NewMetricValueConfidence(value, unit, 1.0)
}

// NewMetricValueConfidence builds a MetricValue with an explicit
// confidence, coercing both numbers. Confidence is clamped to [0,1].
func NewMetricValueConfidence(value any, unit string, confidence any) MetricValue {
	c := ToFloat(confidence)
	if c < 0 {
		c = 0
	}
	if c > 1 {
		c = 1
	}
	return MetricValue{
		Value:      ToFloat(value),
		Unit:       unit,
		Confidence: c,
	}
}

// ToFloat coerces the loosely typed values extractors produce (parsed
// JSON numbers, CSV cell strings, markup attribute strings) to float64.
// Unconvertible values coerce to 0.
func ToFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case uint:
		return float64(x)
	case uint64:
		return float64(x)
	case bool:
		if x {
			return 1
		}
		return 0
	case json.Number:
		f, _ := x.Float64()
		return f
	case string:
		f, _ := strconv.ParseFloat(x, 64)
		return f
	case nil:
		return 0
	}
	return 0
}
