// ABOUTME: Tests for the relational mapper's insert path.
// ABOUTME: Covers child fan-out, batching, idempotency, and per-record errors.
package storage

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/harperreed/healthpipe/internal/models"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func newRecord(t *testing.T, ts, source string, dt models.DataType) *models.BaseRecord {
	t.Helper()
	rec, err := models.NewBaseRecord(nil, ts, source, dt, "")
	if err != nil {
		t.Fatal(err)
	}
	return rec
}

func mustCount(t *testing.T, d *DB, table string) int {
	t.Helper()
	n, err := d.CountRows(table)
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func TestInsertBloodPressureRecord(t *testing.T) {
	d := openTestDB(t)

	rec := newRecord(t, "01/15/2023 08:30:00", "omron", models.TypeHealth)
	rec.SetField("blood_pressure", map[string]any{
		"systolic":  models.NewMetricValue(120, "mmHg"),
		"diastolic": models.NewMetricValue(80, "mmHg"),
	})

	res, err := d.InsertRecords([]*models.BaseRecord{rec})
	if err != nil {
		t.Fatalf("InsertRecords: %v", err)
	}
	if res.Inserted != 1 || res.Errors != 0 {
		t.Fatalf("inserted=%d errors=%d, want 1/0", res.Inserted, res.Errors)
	}

	if n := mustCount(t, d, "health_records"); n != 1 {
		t.Errorf("health_records = %d, want 1", n)
	}
	if n := mustCount(t, d, "health_vitals"); n != 1 {
		t.Errorf("health_vitals = %d, want 1", n)
	}

	rows, err := d.RecordsBySource("omron", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	row := rows[0]
	if !row.BPSystolic.Valid || row.BPSystolic.Float64 != 120 {
		t.Errorf("systolic = %+v, want 120", row.BPSystolic)
	}
	if !row.BPDiastolic.Valid || row.BPDiastolic.Float64 != 80 {
		t.Errorf("diastolic = %+v, want 80", row.BPDiastolic)
	}
}

func TestInsertIsIdempotent(t *testing.T) {
	d := openTestDB(t)

	var records []*models.BaseRecord
	for i := 0; i < 5; i++ {
		rec := newRecord(t, fmt.Sprintf("2023-01-%02d 07:00:00", i+1), "fit", models.TypeFitness)
		rec.SetField("steps", models.NewMetricValue(9000+i, "steps"))
		records = append(records, rec)
	}

	for run := 0; run < 2; run++ {
		res, err := d.InsertRecords(records)
		if err != nil {
			t.Fatalf("run %d: %v", run, err)
		}
		if res.Errors != 0 {
			t.Fatalf("run %d: errors = %d, details %v", run, res.Errors, res.ErrorDetails)
		}
	}

	if n := mustCount(t, d, "health_records"); n != 5 {
		t.Errorf("health_records = %d after reinsert, want 5", n)
	}
	if n := mustCount(t, d, "fitness_metrics"); n != 5 {
		t.Errorf("fitness_metrics = %d after reinsert, want 5", n)
	}
}

func TestInsertBatching(t *testing.T) {
	d := openTestDB(t)
	d.SetBatchSize(1000)

	records := make([]*models.BaseRecord, 2500)
	for i := range records {
		rec := newRecord(t, "2023-01-15 08:00:00", "bulk", models.TypeHealth)
		rec.SetField("heart_rate", models.NewMetricValue(60+i%40, "bpm"))
		records[i] = rec
	}

	res, err := d.InsertRecords(records)
	if err != nil {
		t.Fatal(err)
	}
	if res.Batches != 3 {
		t.Errorf("Batches = %d, want 3", res.Batches)
	}
	if res.Inserted != 2500 || res.Errors != 0 {
		t.Errorf("inserted=%d errors=%d, want 2500/0", res.Inserted, res.Errors)
	}
	if res.TotalRecords != 2500 {
		t.Errorf("TotalRecords = %d, want 2500", res.TotalRecords)
	}
}

func TestInsertPerRecordFailureDoesNotAbortBatch(t *testing.T) {
	d := openTestDB(t)

	good := newRecord(t, "2023-01-15 08:00:00", "src", models.TypeHealth)
	good.SetField("heart_rate", models.NewMetricValue(61, "bpm"))

	bad := newRecord(t, "2023-01-15 09:00:00", "src", models.TypeHealth)
	bad.Timestamp = "corrupted mid-pipeline"

	res, err := d.InsertRecords([]*models.BaseRecord{bad, good})
	if err != nil {
		t.Fatalf("batch should still commit, got %v", err)
	}
	if res.Inserted != 1 || res.Errors != 1 {
		t.Fatalf("inserted=%d errors=%d, want 1/1", res.Inserted, res.Errors)
	}
	detail := res.ErrorDetails[0]
	if detail.RecordID != bad.ID.String() || detail.Message == "" {
		t.Errorf("error detail = %+v, want the bad record pinned", detail)
	}
	if n := mustCount(t, d, "health_records"); n != 1 {
		t.Errorf("health_records = %d, want the good record committed", n)
	}
}

func TestSymptomRowIndependentOfDataType(t *testing.T) {
	d := openTestDB(t)

	rec := newRecord(t, "2023-01-15 08:00:00", "journal", models.TypeHealth)
	rec.SetField("heart_rate", models.NewMetricValue(88, "bpm"))
	rec.SetField("symptom_name", "headache")
	rec.SetField("severity", models.NewMetricValue(6, "scale"))
	rec.SetField("medication_name", "ibuprofen")
	rec.SetField("dosage", models.NewMetricValue(400, "mg"))

	res, err := d.InsertRecords([]*models.BaseRecord{rec})
	if err != nil || res.Errors != 0 {
		t.Fatalf("insert: err=%v details=%v", err, res.ErrorDetails)
	}

	// One parent, but three child tables populated.
	if n := mustCount(t, d, "health_vitals"); n != 1 {
		t.Errorf("health_vitals = %d, want 1", n)
	}
	if n := mustCount(t, d, "symptoms"); n != 1 {
		t.Errorf("symptoms = %d, want 1", n)
	}
	if n := mustCount(t, d, "medications"); n != 1 {
		t.Errorf("medications = %d, want 1", n)
	}
}

func TestNoChildRowWithoutRelevantFields(t *testing.T) {
	d := openTestDB(t)

	rec := newRecord(t, "2023-01-15 08:00:00", "misc", models.TypeMixed)

	if _, err := d.InsertRecords([]*models.BaseRecord{rec}); err != nil {
		t.Fatal(err)
	}
	if n := mustCount(t, d, "health_records"); n != 1 {
		t.Errorf("health_records = %d, want 1", n)
	}
	for _, table := range childTables {
		if n := mustCount(t, d, table); n != 0 {
			t.Errorf("%s = %d, want 0", table, n)
		}
	}
}

func TestInsertFitnessWithConfidence(t *testing.T) {
	d := openTestDB(t)

	rec, err := models.NewBaseRecord(nil, "2023-01-15 07:00:00", "watch", models.TypeFitness, "run")
	if err != nil {
		t.Fatal(err)
	}
	rec.SetField("distance", models.NewMetricValueConfidence(5.2, "km", 0.9))
	rec.SetField("duration_minutes", models.NewMetricValue(31, "min"))

	if _, err := d.InsertRecords([]*models.BaseRecord{rec}); err != nil {
		t.Fatal(err)
	}

	rows, err := d.RecordsBySource("watch", 0)
	if err != nil {
		t.Fatal(err)
	}
	row := rows[0]
	if !row.Distance.Valid || row.Distance.Float64 != 5.2 {
		t.Errorf("distance = %+v", row.Distance)
	}
	if !row.DistanceUnit.Valid || row.DistanceUnit.String != "km" {
		t.Errorf("distance_unit = %+v", row.DistanceUnit)
	}
	if !row.ActivityType.Valid || row.ActivityType.String != "run" {
		t.Errorf("activity_type = %+v, want subtype fallback", row.ActivityType)
	}
}

func TestDeleteBySource(t *testing.T) {
	d := openTestDB(t)

	for i := 0; i < 3; i++ {
		rec := newRecord(t, "2023-01-15 08:00:00", "doomed", models.TypeHealth)
		rec.SetField("heart_rate", models.NewMetricValue(60, "bpm"))
		if _, err := d.InsertRecords([]*models.BaseRecord{rec}); err != nil {
			t.Fatal(err)
		}
	}
	keep := newRecord(t, "2023-01-15 08:00:00", "kept", models.TypeHealth)
	keep.SetField("heart_rate", models.NewMetricValue(61, "bpm"))
	if _, err := d.InsertRecords([]*models.BaseRecord{keep}); err != nil {
		t.Fatal(err)
	}

	res, err := d.DeleteBySource("doomed")
	if err != nil {
		t.Fatal(err)
	}
	if res.DeletedRecords != 3 {
		t.Errorf("DeletedRecords = %d, want 3", res.DeletedRecords)
	}
	if res.DeletedRelated != 3 {
		t.Errorf("DeletedRelated = %d, want 3", res.DeletedRelated)
	}
	if n := mustCount(t, d, "health_records"); n != 1 {
		t.Errorf("remaining records = %d, want the kept one", n)
	}
}

func TestReset(t *testing.T) {
	d := openTestDB(t)

	rec := newRecord(t, "2023-01-15 08:00:00", "src", models.TypeHealth)
	rec.SetField("heart_rate", models.NewMetricValue(60, "bpm"))
	if _, err := d.InsertRecords([]*models.BaseRecord{rec}); err != nil {
		t.Fatal(err)
	}
	if err := d.Reset(); err != nil {
		t.Fatal(err)
	}
	if n := mustCount(t, d, "health_records"); n != 0 {
		t.Errorf("health_records = %d after reset, want 0", n)
	}
}

func TestEveryDataTypeHasMappingRule(t *testing.T) {
	d := openTestDB(t)

	for _, dt := range models.AllDataTypes {
		rec := newRecord(t, "2023-01-15 08:00:00", "enum", dt)
		res, err := d.InsertRecords([]*models.BaseRecord{rec})
		if err != nil {
			t.Fatalf("%s: %v", dt, err)
		}
		if res.Errors != 0 {
			t.Errorf("%s: unmapped category, details %v", dt, res.ErrorDetails)
		}
	}
}
