// ABOUTME: BaseRecord, the unified record shape every source extractor
// ABOUTME: produces, plus the DataType enum and required-field validation.
package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/harperreed/healthpipe/internal/timestamp"
)

// DataType classifies a BaseRecord into one of the fixed storage
// categories. The relational mapper switches exhaustively over this set.
type DataType string

const (
	TypeFitness     DataType = "fitness"
	TypeHealth      DataType = "health"
	TypeSleep       DataType = "sleep"
	TypeHabits      DataType = "habits"
	TypeSymptoms    DataType = "symptoms"
	TypeMedications DataType = "medications"
	TypeLocation    DataType = "location"
	TypeMixed       DataType = "mixed"
	TypeUnknown     DataType = "unknown"
)

// AllDataTypes lists every valid data type.
var AllDataTypes = []DataType{
	TypeFitness, TypeHealth, TypeSleep, TypeHabits,
	TypeSymptoms, TypeMedications, TypeLocation, TypeMixed, TypeUnknown,
}

// IsValidDataType checks if a string is a valid data type.
func IsValidDataType(s string) bool {
	for _, dt := range AllDataTypes {
		if string(dt) == s {
			return true
		}
	}
	return false
}

// BaseRecord is the canonical record the pipeline passes around. Fields
// holds the source-specific extension fields; values are MetricValue,
// scalars, or nested maps of the same. Never mutated after validation.
type BaseRecord struct {
	ID          uuid.UUID       `json:"id"`
	Timestamp   string          `json:"timestamp"`
	Source      string          `json:"source"`
	DataType    DataType        `json:"dataType"`
	SubType     string          `json:"subType,omitempty"`
	ProcessedAt string          `json:"processed_at"`
	RawData     json.RawMessage `json:"raw_data,omitempty"`
	Fields      map[string]any  `json:"-"`
}

// NewBaseRecord creates a BaseRecord with a fresh identifier, the source
// timestamp normalized to canonical form, and processedAt stamped with
// the current canonical time. A timestamp that fails normalization fails
// this one record; the error wraps timestamp.ErrUnparseable so callers
// can drop the record and continue the batch.
func NewBaseRecord(raw json.RawMessage, ts, source string, dataType DataType, subType string) (*BaseRecord, error) {
	normalized, err := timestamp.Normalize(ts)
	if err != nil {
		return nil, fmt.Errorf("record timestamp: %w", err)
	}
	return &BaseRecord{
		ID:          uuid.New(),
		Timestamp:   normalized,
		Source:      source,
		DataType:    dataType,
		SubType:     subType,
		ProcessedAt: timestamp.Now(),
		RawData:     raw,
		Fields:      make(map[string]any),
	}, nil
}

// SetField attaches a source-specific extension field.
func (r *BaseRecord) SetField(name string, value any) {
	if r.Fields == nil {
		r.Fields = make(map[string]any)
	}
	r.Fields[name] = value
}

// Field looks up an extension field by name. Dotted paths descend into
// nested maps, so "blood_pressure.systolic" reaches the systolic
// MetricValue inside a blood_pressure group.
func (r *BaseRecord) Field(path string) (any, bool) {
	if r.Fields == nil {
		return nil, false
	}
	parts := strings.Split(path, ".")
	var cur any = r.Fields
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	if cur == nil {
		return nil, false
	}
	return cur, true
}

// Metric looks up an extension field and returns it as a MetricValue.
// Bare scalars are wrapped with full confidence and no unit.
func (r *BaseRecord) Metric(path string) (MetricValue, bool) {
	v, ok := r.Field(path)
	if !ok {
		return MetricValue{}, false
	}
	switch x := v.(type) {
	case MetricValue:
		return x, true
	case *MetricValue:
		return *x, true
	case map[string]any:
		if _, hasValue := x["value"]; !hasValue {
			return MetricValue{}, false
		}
		conf := any(1.0)
		if c, ok := x["confidence"]; ok {
			conf = c
		}
		unit, _ := x["unit"].(string)
		return NewMetricValueConfidence(x["value"], unit, conf), true
	case float64, float32, int, int64, json.Number:
		return NewMetricValue(x, ""), true
	case string:
		return MetricValue{}, false
	}
	return MetricValue{}, false
}

// MarshalJSON renders the canonical output shape: the fixed columns plus
// the extension fields flattened to the top level.
func (r *BaseRecord) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"id":           r.ID.String(),
		"timestamp":    r.Timestamp,
		"source":       r.Source,
		"dataType":     string(r.DataType),
		"processed_at": r.ProcessedAt,
	}
	if r.SubType != "" {
		out["subType"] = r.SubType
	}
	if len(r.RawData) > 0 {
		out["raw_data"] = r.RawData
	}
	for k, v := range r.Fields {
		if _, taken := out[k]; !taken {
			out[k] = v
		}
	}
	return json.Marshal(out)
}
