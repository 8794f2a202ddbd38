// ABOUTME: Query helpers over the mapped records.
// ABOUTME: Denormalized rows left-joining every child table.
package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/harperreed/healthpipe/internal/timestamp"
)

// Row is one denormalized record: the parent columns plus every child
// table's columns, NULL where no child row exists.
type Row struct {
	ID          string
	Timestamp   string
	RecordedAt  string
	Source      string
	DataType    string
	SubType     sql.NullString
	ProcessedAt sql.NullString
	RawData     sql.NullString

	ActivityType    sql.NullString
	FitnessDuration sql.NullFloat64
	Distance        sql.NullFloat64
	DistanceUnit    sql.NullString
	Calories        sql.NullFloat64
	Steps           sql.NullFloat64
	AvgHeartRate    sql.NullFloat64

	BPSystolic  sql.NullFloat64
	BPDiastolic sql.NullFloat64
	HeartRate   sql.NullFloat64
	Weight      sql.NullFloat64
	WeightUnit  sql.NullString
	Temperature sql.NullFloat64
	SpO2        sql.NullFloat64

	SleepStart    sql.NullString
	SleepEnd      sql.NullString
	SleepDuration sql.NullFloat64
	SleepQuality  sql.NullFloat64

	HabitName   sql.NullString
	HabitStatus sql.NullString
	HabitCount  sql.NullFloat64
	HabitStreak sql.NullFloat64

	SymptomName     sql.NullString
	SymptomSeverity sql.NullFloat64

	MedicationName  sql.NullString
	Dosage          sql.NullFloat64
	DosageUnit      sql.NullString
	MedicationTaken sql.NullBool

	Latitude  sql.NullFloat64
	Longitude sql.NullFloat64
	PlaceName sql.NullString
}

const denormalizedSelect = `
	SELECT
		hr.id, hr.timestamp, hr.recorded_at, hr.source, hr.data_type, hr.sub_type, hr.processed_at, hr.raw_data,
		fm.activity_type, fm.duration_minutes, fm.distance, fm.distance_unit, fm.calories, fm.steps, fm.avg_heart_rate,
		hv.blood_pressure_systolic, hv.blood_pressure_diastolic, hv.heart_rate, hv.weight, hv.weight_unit, hv.temperature, hv.spo2,
		ss.start_time, ss.end_time, ss.duration_minutes, ss.quality,
		h.habit_name, h.status, h.count, h.streak,
		sy.symptom_name, sy.severity,
		m.medication_name, m.dosage, m.dosage_unit, m.taken,
		ld.latitude, ld.longitude, ld.place_name
	FROM health_records hr
	LEFT JOIN fitness_metrics fm ON fm.record_id = hr.id
	LEFT JOIN health_vitals hv ON hv.record_id = hr.id
	LEFT JOIN sleep_sessions ss ON ss.record_id = hr.id
	LEFT JOIN habits h ON h.record_id = hr.id
	LEFT JOIN symptoms sy ON sy.record_id = hr.id
	LEFT JOIN medications m ON m.record_id = hr.id
	LEFT JOIN location_data ld ON ld.record_id = hr.id
`

// RecordsByDateRange returns denormalized rows whose observation time
// falls inside [startDate, endDate], both inclusive. Inputs accept any
// supported timestamp format; date-only bounds cover their whole day.
func (d *DB) RecordsByDateRange(startDate, endDate string) ([]*Row, error) {
	start, err := parseBound(startDate)
	if err != nil {
		return nil, fmt.Errorf("start date: %w", err)
	}
	end, err := parseBound(endDate)
	if err != nil {
		return nil, fmt.Errorf("end date: %w", err)
	}
	// An end bound with no time component means "through that day".
	if end.Hour() == 0 && end.Minute() == 0 && end.Second() == 0 {
		end = end.Add(24*time.Hour - time.Second)
	}

	rows, err := d.db.Query(
		denormalizedSelect+" WHERE hr.recorded_at >= ? AND hr.recorded_at <= ? ORDER BY hr.recorded_at",
		start.Format(time.RFC3339), end.Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("query by date range: %w", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

// RecordsBySource returns a source's denormalized rows, newest first.
// A limit of 0 returns everything.
func (d *DB) RecordsBySource(source string, limit int) ([]*Row, error) {
	query := denormalizedSelect + " WHERE hr.source = ? ORDER BY hr.recorded_at DESC"
	args := []any{source}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query by source: %w", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

// RecordByID returns the denormalized row for one record. The id may be
// a prefix; the lookup fails if the prefix is ambiguous.
func (d *DB) RecordByID(id string) (*Row, error) {
	rows, err := d.db.Query(denormalizedSelect+" WHERE hr.id LIKE ? || '%' LIMIT 2", id)
	if err != nil {
		return nil, fmt.Errorf("query by id: %w", err)
	}
	defer rows.Close()

	matches, err := scanRows(rows)
	if err != nil {
		return nil, err
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("record not found: %s", id)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("ambiguous record id: %s", id)
	}
}

// Sources lists every distinct source with its record count.
func (d *DB) Sources() (map[string]int, error) {
	rows, err := d.db.Query("SELECT source, COUNT(*) FROM health_records GROUP BY source")
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var source string
		var n int
		if err := rows.Scan(&source, &n); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		out[source] = n
	}
	return out, rows.Err()
}

// CountRows counts the rows in one table, for run summaries and tests.
func (d *DB) CountRows(table string) (int, error) {
	allowed := table == "health_records"
	for _, t := range childTables {
		if t == table {
			allowed = true
		}
	}
	if !allowed {
		return 0, fmt.Errorf("unknown table %q", table)
	}
	var n int
	if err := d.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

func parseBound(input string) (time.Time, error) {
	canonical, err := timestamp.Normalize(input)
	if err != nil {
		return time.Time{}, err
	}
	return timestamp.Parse(canonical)
}

func scanRows(rows *sql.Rows) ([]*Row, error) {
	var out []*Row
	for rows.Next() {
		var r Row
		err := rows.Scan(
			&r.ID, &r.Timestamp, &r.RecordedAt, &r.Source, &r.DataType, &r.SubType, &r.ProcessedAt, &r.RawData,
			&r.ActivityType, &r.FitnessDuration, &r.Distance, &r.DistanceUnit, &r.Calories, &r.Steps, &r.AvgHeartRate,
			&r.BPSystolic, &r.BPDiastolic, &r.HeartRate, &r.Weight, &r.WeightUnit, &r.Temperature, &r.SpO2,
			&r.SleepStart, &r.SleepEnd, &r.SleepDuration, &r.SleepQuality,
			&r.HabitName, &r.HabitStatus, &r.HabitCount, &r.HabitStreak,
			&r.SymptomName, &r.SymptomSeverity,
			&r.MedicationName, &r.Dosage, &r.DosageUnit, &r.MedicationTaken,
			&r.Latitude, &r.Longitude, &r.PlaceName,
		)
		if err != nil {
			return nil, fmt.Errorf("scan record row: %w", err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}
