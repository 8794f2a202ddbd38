// ABOUTME: Sampled markup entries and their conversion into BaseRecords.
// ABOUTME: Uses the same type-mapping table as the conventional extractors.
package sampler

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"

	"github.com/harperreed/healthpipe/internal/extract"
	"github.com/harperreed/healthpipe/internal/models"
	"github.com/harperreed/healthpipe/internal/timestamp"
)

// Entry is one structured element lifted out of the stream: its tag name
// and flattened attributes. Inner elements of paired entries are not
// retained.
type Entry struct {
	Tag   string
	Attrs map[string]string
}

// parseEntry decodes a complete entry fragment. Fragments the decoder
// rejects are skipped by the scanner rather than failing the stream.
func parseEntry(tag string, fragment []byte) (Entry, bool) {
	dec := xml.NewDecoder(bytes.NewReader(fragment))
	for {
		tok, err := dec.Token()
		if err != nil {
			return Entry{}, false
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		attrs := make(map[string]string, len(start.Attr))
		for _, a := range start.Attr {
			attrs[a.Name.Local] = a.Value
		}
		return Entry{Tag: tag, Attrs: attrs}, true
	}
}

// timestampAttrs is the lookup order for an entry's observation time.
var timestampAttrs = []string{"startDate", "creationDate", "date", "timestamp"}

// Record converts a sampled entry into a BaseRecord through the shared
// field-to-type mapping table, so the streaming path and the
// conventional path produce the same shape. Entries with unmapped type
// codes return ok=false and are dropped by the caller; a bad timestamp
// returns an error that fails only this entry.
func Record(e Entry, source string) (*models.BaseRecord, bool, error) {
	code := e.Attrs["type"]
	if code == "" && e.Tag == "Workout" {
		code = e.Attrs["workoutActivityType"]
		if code == "" {
			code = "Workout"
		}
	}
	spec, mapped := extract.TypeForCode(code)
	if !mapped {
		return nil, false, nil
	}

	ts := ""
	for _, attr := range timestampAttrs {
		if v := e.Attrs[attr]; v != "" {
			ts = v
			break
		}
	}
	if ts == "" {
		return nil, false, fmt.Errorf("entry %s: %w: no timestamp attribute", code, timestamp.ErrUnparseable)
	}

	raw, _ := json.Marshal(e.Attrs)
	rec, err := models.NewBaseRecord(raw, ts, source, spec.DataType, spec.SubType)
	if err != nil {
		return nil, false, fmt.Errorf("entry %s: %w", code, err)
	}

	unit := e.Attrs["unit"]
	if unit == "" {
		unit = spec.Unit
	}

	// Paired start/end entries (sleep, workouts) carry a duration; point
	// observations carry a value.
	if end := e.Attrs["endDate"]; end != "" {
		if mins, derr := timestamp.Duration(ts, end); derr == nil {
			rec.SetField("duration_minutes", models.NewMetricValue(mins, "min"))
			if st, nerr := timestamp.Normalize(ts); nerr == nil {
				rec.SetField("start_time", st)
			}
			if et, nerr := timestamp.Normalize(end); nerr == nil {
				rec.SetField("end_time", et)
			}
		}
	}
	if v := e.Attrs["value"]; v != "" {
		if _, taken := rec.Field(spec.Field); !taken {
			rec.SetField(spec.Field, models.NewMetricValue(v, unit))
		}
	}
	if d := e.Attrs["duration"]; d != "" {
		rec.SetField("duration_minutes", models.NewMetricValue(d, "min"))
	}

	if ok, missing := models.Validate(rec); !ok {
		return nil, false, fmt.Errorf("entry %s: missing %s: %w", code, missing, models.ErrValidation)
	}
	return rec, true, nil
}

// CollectRecords runs a full sampled scan and materializes the
// BaseRecords, dropping unmapped and unparseable entries with a logged
// reason. On a stream failure the records gathered so far are returned
// alongside the error.
func CollectRecords(r io.ReadCloser, cfg Config, source string) ([]*models.BaseRecord, Stats, error) {
	cfg = cfg.withDefaults()
	logger := cfg.Logger

	sc := NewScanner(r, cfg)
	var records []*models.BaseRecord
	for sc.Scan() {
		rec, ok, err := Record(sc.Entry(), source)
		if err != nil {
			logger.Warn("dropping sampled entry", "source", source, "err", err)
			continue
		}
		if !ok {
			logger.Debug("dropping entry with unmapped type", "source", source, "type", sc.Entry().Attrs["type"])
			continue
		}
		records = append(records, rec)
	}
	return records, sc.Stats(), sc.Err()
}
