// ABOUTME: Relational schema for the normalized record model.
// ABOUTME: One parent table plus seven per-category child tables.
package storage

import "fmt"

// childTables lists every child table in creation order. Drops run the
// list in reverse so the parent always goes last.
var childTables = []string{
	"fitness_metrics",
	"health_vitals",
	"sleep_sessions",
	"habits",
	"symptoms",
	"medications",
	"location_data",
}

// schemaStatements creates the tables in dependency order, parent before
// children. Creation is idempotent.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS health_records (
		id TEXT PRIMARY KEY,
		timestamp TEXT NOT NULL,
		recorded_at DATETIME NOT NULL,
		source TEXT NOT NULL,
		data_type TEXT NOT NULL,
		sub_type TEXT,
		processed_at TEXT,
		raw_data TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS fitness_metrics (
		record_id TEXT PRIMARY KEY,
		activity_type TEXT,
		duration_minutes REAL,
		distance REAL,
		distance_unit TEXT,
		calories REAL,
		steps REAL,
		avg_heart_rate REAL,
		confidence REAL,
		FOREIGN KEY (record_id) REFERENCES health_records(id) ON DELETE CASCADE
	)`,

	`CREATE TABLE IF NOT EXISTS health_vitals (
		record_id TEXT PRIMARY KEY,
		blood_pressure_systolic REAL,
		blood_pressure_diastolic REAL,
		heart_rate REAL,
		weight REAL,
		weight_unit TEXT,
		temperature REAL,
		spo2 REAL,
		confidence REAL,
		FOREIGN KEY (record_id) REFERENCES health_records(id) ON DELETE CASCADE
	)`,

	`CREATE TABLE IF NOT EXISTS sleep_sessions (
		record_id TEXT PRIMARY KEY,
		start_time TEXT,
		end_time TEXT,
		duration_minutes REAL,
		quality REAL,
		deep_minutes REAL,
		rem_minutes REAL,
		light_minutes REAL,
		FOREIGN KEY (record_id) REFERENCES health_records(id) ON DELETE CASCADE
	)`,

	`CREATE TABLE IF NOT EXISTS habits (
		record_id TEXT PRIMARY KEY,
		habit_name TEXT,
		status TEXT,
		count REAL,
		streak REAL,
		FOREIGN KEY (record_id) REFERENCES health_records(id) ON DELETE CASCADE
	)`,

	`CREATE TABLE IF NOT EXISTS symptoms (
		record_id TEXT PRIMARY KEY,
		symptom_name TEXT,
		severity REAL,
		duration_minutes REAL,
		notes TEXT,
		FOREIGN KEY (record_id) REFERENCES health_records(id) ON DELETE CASCADE
	)`,

	`CREATE TABLE IF NOT EXISTS medications (
		record_id TEXT PRIMARY KEY,
		medication_name TEXT,
		dosage REAL,
		dosage_unit TEXT,
		frequency TEXT,
		taken INTEGER,
		FOREIGN KEY (record_id) REFERENCES health_records(id) ON DELETE CASCADE
	)`,

	`CREATE TABLE IF NOT EXISTS location_data (
		record_id TEXT PRIMARY KEY,
		latitude REAL,
		longitude REAL,
		altitude REAL,
		accuracy REAL,
		place_name TEXT,
		FOREIGN KEY (record_id) REFERENCES health_records(id) ON DELETE CASCADE
	)`,

	`CREATE INDEX IF NOT EXISTS idx_records_recorded ON health_records(recorded_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_records_source ON health_records(source)`,
	`CREATE INDEX IF NOT EXISTS idx_records_type ON health_records(data_type)`,
	`CREATE INDEX IF NOT EXISTS idx_records_source_recorded ON health_records(source, recorded_at DESC)`,
}

// initSchema creates or updates the database schema.
func (d *DB) initSchema() error {
	for _, stmt := range schemaStatements {
		if _, err := d.db.Exec(stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// Reset drops every table, children before parent, and recreates the
// schema empty.
func (d *DB) Reset() error {
	for i := len(childTables) - 1; i >= 0; i-- {
		if _, err := d.db.Exec("DROP TABLE IF EXISTS " + childTables[i]); err != nil {
			return fmt.Errorf("drop %s: %w", childTables[i], err)
		}
	}
	if _, err := d.db.Exec("DROP TABLE IF EXISTS health_records"); err != nil {
		return fmt.Errorf("drop health_records: %w", err)
	}
	return d.initSchema()
}
