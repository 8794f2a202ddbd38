// ABOUTME: Fans BaseRecords out into the parent and child tables.
// ABOUTME: Batched transactions, upsert by record id, per-record error capture.
package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/harperreed/healthpipe/internal/models"
	"github.com/harperreed/healthpipe/internal/timestamp"
)

// InsertError pins one failed record to its reason so the caller can
// locate and re-run the offending input.
type InsertError struct {
	RecordID string
	Source   string
	Message  string
}

// InsertResult summarizes one InsertRecords call.
type InsertResult struct {
	TotalRecords int
	Inserted     int
	Errors       int
	Batches      int
	ErrorDetails []InsertError
}

// InsertRecords writes records in batched transactions. Each record
// lands one parent row plus the child row matching its data type;
// symptom and medication child rows are added independently whenever
// those fields are present. Writes upsert by record id, so re-running
// the pipeline over seen records is idempotent. A record that fails to
// insert is captured in ErrorDetails and does not abort its batch; only
// a failure to begin or commit a transaction escalates.
func (d *DB) InsertRecords(records []*models.BaseRecord) (*InsertResult, error) {
	res := &InsertResult{TotalRecords: len(records)}

	for start := 0; start < len(records); start += d.batchSize {
		end := start + d.batchSize
		if end > len(records) {
			end = len(records)
		}

		tx, err := d.db.Begin()
		if err != nil {
			return res, fmt.Errorf("begin batch transaction: %w", err)
		}
		res.Batches++

		for _, rec := range records[start:end] {
			if err := insertRecord(tx, rec); err != nil {
				res.Errors++
				res.ErrorDetails = append(res.ErrorDetails, InsertError{
					RecordID: rec.ID.String(),
					Source:   rec.Source,
					Message:  err.Error(),
				})
				continue
			}
			res.Inserted++
		}

		if err := tx.Commit(); err != nil {
			return res, fmt.Errorf("commit batch transaction: %w", err)
		}
	}
	return res, nil
}

func insertRecord(tx *sql.Tx, rec *models.BaseRecord) error {
	recorded, err := timestamp.Parse(rec.Timestamp)
	if err != nil {
		return fmt.Errorf("record %s: %w", rec.ID, err)
	}

	_, err = tx.Exec(`
		INSERT INTO health_records (id, timestamp, recorded_at, source, data_type, sub_type, processed_at, raw_data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			timestamp = excluded.timestamp,
			recorded_at = excluded.recorded_at,
			source = excluded.source,
			data_type = excluded.data_type,
			sub_type = excluded.sub_type,
			processed_at = excluded.processed_at,
			raw_data = excluded.raw_data
	`,
		rec.ID.String(),
		rec.Timestamp,
		recorded.Format(time.RFC3339),
		rec.Source,
		string(rec.DataType),
		nullString(rec.SubType),
		rec.ProcessedAt,
		nullString(string(rec.RawData)),
	)
	if err != nil {
		return fmt.Errorf("insert parent row: %w", err)
	}

	// Exhaustive over the DataType enum; an unhandled category is a bug
	// surfaced per record, not a silent drop.
	switch rec.DataType {
	case models.TypeFitness:
		err = insertFitness(tx, rec)
	case models.TypeHealth:
		err = insertVitals(tx, rec)
	case models.TypeSleep:
		err = insertSleep(tx, rec)
	case models.TypeHabits:
		err = insertHabit(tx, rec)
	case models.TypeSymptoms:
		err = insertSymptom(tx, rec)
	case models.TypeMedications:
		err = insertMedication(tx, rec)
	case models.TypeLocation:
		err = insertLocation(tx, rec)
	case models.TypeMixed, models.TypeUnknown:
		// Parent row only; anything useful lands via the independent
		// symptom/medication checks below.
	default:
		return fmt.Errorf("unmapped data type %q", rec.DataType)
	}
	if err != nil {
		return err
	}

	// Symptom and medication rows are written regardless of the primary
	// category whenever the fields are present.
	if rec.DataType != models.TypeSymptoms && hasAny(rec, "symptom_name", "symptom", "severity") {
		if err := insertSymptom(tx, rec); err != nil {
			return err
		}
	}
	if rec.DataType != models.TypeMedications && hasAny(rec, "medication_name", "medication", "dosage") {
		if err := insertMedication(tx, rec); err != nil {
			return err
		}
	}
	return nil
}

func insertFitness(tx *sql.Tx, rec *models.BaseRecord) error {
	duration := extractMetricValue(rec, "duration_minutes")
	distance := extractMetricValue(rec, "distance")
	calories := extractMetricValue(rec, "calories")
	steps := extractMetricValue(rec, "steps")
	avgHR := firstMetricValue(rec, "avg_heart_rate", "heart_rate")
	if !anyValid(duration, distance, calories, steps, avgHR) {
		return nil
	}
	_, err := tx.Exec(`
		INSERT INTO fitness_metrics (record_id, activity_type, duration_minutes, distance, distance_unit, calories, steps, avg_heart_rate, confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(record_id) DO UPDATE SET
			activity_type = excluded.activity_type,
			duration_minutes = excluded.duration_minutes,
			distance = excluded.distance,
			distance_unit = excluded.distance_unit,
			calories = excluded.calories,
			steps = excluded.steps,
			avg_heart_rate = excluded.avg_heart_rate,
			confidence = excluded.confidence
	`,
		rec.ID.String(),
		firstScalarString(rec, "activity_type", rec.SubType),
		duration, distance,
		extractMetricUnit(rec, "distance", "km"),
		calories, steps, avgHR,
		minConfidence(rec, "duration_minutes", "distance", "calories", "steps", "avg_heart_rate", "heart_rate"),
	)
	if err != nil {
		return fmt.Errorf("insert fitness_metrics: %w", err)
	}
	return nil
}

func insertVitals(tx *sql.Tx, rec *models.BaseRecord) error {
	sys := firstMetricValue(rec, "blood_pressure.systolic", "blood_pressure_systolic")
	dia := firstMetricValue(rec, "blood_pressure.diastolic", "blood_pressure_diastolic")
	hr := firstMetricValue(rec, "heart_rate")
	weight := extractMetricValue(rec, "weight")
	temp := extractMetricValue(rec, "temperature")
	spo2 := extractMetricValue(rec, "spo2")
	if !anyValid(sys, dia, hr, weight, temp, spo2) {
		return nil
	}
	_, err := tx.Exec(`
		INSERT INTO health_vitals (record_id, blood_pressure_systolic, blood_pressure_diastolic, heart_rate, weight, weight_unit, temperature, spo2, confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(record_id) DO UPDATE SET
			blood_pressure_systolic = excluded.blood_pressure_systolic,
			blood_pressure_diastolic = excluded.blood_pressure_diastolic,
			heart_rate = excluded.heart_rate,
			weight = excluded.weight,
			weight_unit = excluded.weight_unit,
			temperature = excluded.temperature,
			spo2 = excluded.spo2,
			confidence = excluded.confidence
	`,
		rec.ID.String(),
		sys, dia, hr, weight,
		extractMetricUnit(rec, "weight", "kg"),
		temp, spo2,
		minConfidence(rec, "blood_pressure.systolic", "blood_pressure.diastolic", "heart_rate", "weight", "temperature", "spo2"),
	)
	if err != nil {
		return fmt.Errorf("insert health_vitals: %w", err)
	}
	return nil
}

func insertSleep(tx *sql.Tx, rec *models.BaseRecord) error {
	duration := extractMetricValue(rec, "duration_minutes")
	quality := extractMetricValue(rec, "quality")
	deep := extractMetricValue(rec, "deep_minutes")
	rem := extractMetricValue(rec, "rem_minutes")
	light := extractMetricValue(rec, "light_minutes")
	start := extractScalarString(rec, "start_time")
	end := extractScalarString(rec, "end_time")
	if !anyValid(duration, quality, deep, rem, light) && !start.Valid && !end.Valid {
		return nil
	}
	_, err := tx.Exec(`
		INSERT INTO sleep_sessions (record_id, start_time, end_time, duration_minutes, quality, deep_minutes, rem_minutes, light_minutes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(record_id) DO UPDATE SET
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			duration_minutes = excluded.duration_minutes,
			quality = excluded.quality,
			deep_minutes = excluded.deep_minutes,
			rem_minutes = excluded.rem_minutes,
			light_minutes = excluded.light_minutes
	`,
		rec.ID.String(), start, end, duration, quality, deep, rem, light,
	)
	if err != nil {
		return fmt.Errorf("insert sleep_sessions: %w", err)
	}
	return nil
}

func insertHabit(tx *sql.Tx, rec *models.BaseRecord) error {
	name := firstScalarString(rec, "habit_name", rec.SubType)
	count := extractMetricValue(rec, "count")
	streak := extractMetricValue(rec, "streak")
	status := extractScalarString(rec, "status")
	if !name.Valid && !status.Valid && !anyValid(count, streak) {
		return nil
	}
	_, err := tx.Exec(`
		INSERT INTO habits (record_id, habit_name, status, count, streak)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(record_id) DO UPDATE SET
			habit_name = excluded.habit_name,
			status = excluded.status,
			count = excluded.count,
			streak = excluded.streak
	`,
		rec.ID.String(), name, status, count, streak,
	)
	if err != nil {
		return fmt.Errorf("insert habits: %w", err)
	}
	return nil
}

func insertSymptom(tx *sql.Tx, rec *models.BaseRecord) error {
	name := firstScalarString(rec, "symptom_name", "")
	if !name.Valid {
		name = extractScalarString(rec, "symptom")
	}
	severity := extractMetricValue(rec, "severity")
	duration := extractMetricValue(rec, "duration_minutes")
	notes := extractScalarString(rec, "notes")
	if !name.Valid && !anyValid(severity) {
		return nil
	}
	_, err := tx.Exec(`
		INSERT INTO symptoms (record_id, symptom_name, severity, duration_minutes, notes)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(record_id) DO UPDATE SET
			symptom_name = excluded.symptom_name,
			severity = excluded.severity,
			duration_minutes = excluded.duration_minutes,
			notes = excluded.notes
	`,
		rec.ID.String(), name, severity, duration, notes,
	)
	if err != nil {
		return fmt.Errorf("insert symptoms: %w", err)
	}
	return nil
}

func insertMedication(tx *sql.Tx, rec *models.BaseRecord) error {
	name := extractScalarString(rec, "medication_name")
	if !name.Valid {
		name = extractScalarString(rec, "medication")
	}
	dosage := extractMetricValue(rec, "dosage")
	frequency := extractScalarString(rec, "frequency")
	taken := extractScalarBool(rec, "taken")
	if !name.Valid && !anyValid(dosage) {
		return nil
	}
	_, err := tx.Exec(`
		INSERT INTO medications (record_id, medication_name, dosage, dosage_unit, frequency, taken)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(record_id) DO UPDATE SET
			medication_name = excluded.medication_name,
			dosage = excluded.dosage,
			dosage_unit = excluded.dosage_unit,
			frequency = excluded.frequency,
			taken = excluded.taken
	`,
		rec.ID.String(), name, dosage,
		extractMetricUnit(rec, "dosage", "mg"),
		frequency, taken,
	)
	if err != nil {
		return fmt.Errorf("insert medications: %w", err)
	}
	return nil
}

func insertLocation(tx *sql.Tx, rec *models.BaseRecord) error {
	lat := extractMetricValue(rec, "latitude")
	lon := extractMetricValue(rec, "longitude")
	alt := extractMetricValue(rec, "altitude")
	acc := extractMetricValue(rec, "accuracy")
	place := extractScalarString(rec, "place_name")
	if !anyValid(lat, lon, alt, acc) && !place.Valid {
		return nil
	}
	_, err := tx.Exec(`
		INSERT INTO location_data (record_id, latitude, longitude, altitude, accuracy, place_name)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(record_id) DO UPDATE SET
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			altitude = excluded.altitude,
			accuracy = excluded.accuracy,
			place_name = excluded.place_name
	`,
		rec.ID.String(), lat, lon, alt, acc, place,
	)
	if err != nil {
		return fmt.Errorf("insert location_data: %w", err)
	}
	return nil
}
