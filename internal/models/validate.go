// ABOUTME: Required-field validation for BaseRecords.
// ABOUTME: Reports the first missing field instead of failing the batch.
package models

import "errors"

// ErrValidation marks a record that failed required-field validation.
var ErrValidation = errors.New("record validation failed")

// DefaultRequiredFields is the validation applied when the caller does
// not override the required set.
var DefaultRequiredFields = []string{"timestamp"}

// Validate checks that every required field is present and non-empty on
// the record. It returns false plus the name of the first missing field;
// it never panics or returns an error, so a caller can skip the one bad
// record and keep the batch going.
func Validate(r *BaseRecord, required ...string) (bool, string) {
	if r == nil {
		return false, "record"
	}
	if len(required) == 0 {
		required = DefaultRequiredFields
	}
	for _, f := range required {
		if !hasField(r, f) {
			return false, f
		}
	}
	return true, ""
}

func hasField(r *BaseRecord, name string) bool {
	switch name {
	case "id":
		return r.ID.String() != "00000000-0000-0000-0000-000000000000"
	case "timestamp":
		return r.Timestamp != ""
	case "source":
		return r.Source != ""
	case "dataType":
		return r.DataType != ""
	case "subType":
		return r.SubType != ""
	case "processed_at":
		return r.ProcessedAt != ""
	case "raw_data":
		return len(r.RawData) > 0
	}
	_, ok := r.Field(name)
	return ok
}
