// ABOUTME: MCP tool implementations for ingested health records.
// ABOUTME: Read-only query tools over the relational store.
package mcp

import (
	"context"
	"fmt"

	"github.com/harperreed/healthpipe/internal/storage"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func (s *Server) registerTools() {
	// query_records
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "query_records",
		Description: "Query health records by date range or source",
	}, s.handleQueryRecords)

	// list_sources
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_sources",
		Description: "List ingested data sources with record counts",
	}, s.handleListSources)

	// get_record
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_record",
		Description: "Get one health record by ID or ID prefix",
	}, s.handleGetRecord)
}

// Tool input/output types

type queryRecordsInput struct {
	StartDate string `json:"start_date,omitempty" jsonschema:"Range start (any supported timestamp format)"`
	EndDate   string `json:"end_date,omitempty" jsonschema:"Range end, inclusive; date-only covers the whole day"`
	Source    string `json:"source,omitempty" jsonschema:"Filter by source name instead of date range"`
	Limit     int    `json:"limit,omitempty" jsonschema:"Max results for source queries (default 20)"`
}

type listSourcesInput struct{}

type getRecordInput struct {
	ID string `json:"id" jsonschema:"Record ID or prefix"`
}

type sourceOutput struct {
	Source string `json:"source"`
	Count  int    `json:"count"`
}

// Tool handlers

func (s *Server) handleQueryRecords(ctx context.Context, req *mcp.CallToolRequest, input queryRecordsInput) (*mcp.CallToolResult, any, error) {
	var rows []*storage.Row
	var err error

	switch {
	case input.Source != "":
		limit := input.Limit
		if limit <= 0 {
			limit = 20
		}
		rows, err = s.db.RecordsBySource(input.Source, limit)
	case input.StartDate != "" && input.EndDate != "":
		rows, err = s.db.RecordsByDateRange(input.StartDate, input.EndDate)
	default:
		return nil, nil, fmt.Errorf("need either source or both start_date and end_date")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query records: %w", err)
	}

	if len(rows) == 0 {
		return nil, map[string]interface{}{"message": "No records found."}, nil
	}

	out := make([]map[string]any, 0, len(rows))
	for _, r := range rows {
		out = append(out, rowView(r))
	}
	return nil, out, nil
}

func (s *Server) handleListSources(ctx context.Context, req *mcp.CallToolRequest, input listSourcesInput) (*mcp.CallToolResult, any, error) {
	sources, err := s.db.Sources()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list sources: %w", err)
	}

	if len(sources) == 0 {
		return nil, map[string]interface{}{"message": "No sources found."}, nil
	}

	out := make([]sourceOutput, 0, len(sources))
	for name, n := range sources {
		out = append(out, sourceOutput{Source: name, Count: n})
	}
	return nil, out, nil
}

func (s *Server) handleGetRecord(ctx context.Context, req *mcp.CallToolRequest, input getRecordInput) (*mcp.CallToolResult, any, error) {
	row, err := s.db.RecordByID(input.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get record: %w", err)
	}
	return nil, rowView(row), nil
}

// rowView flattens a denormalized row into a map holding only the
// columns that are actually populated.
func rowView(r *storage.Row) map[string]any {
	out := map[string]any{
		"id":        r.ID,
		"timestamp": r.Timestamp,
		"source":    r.Source,
		"data_type": r.DataType,
	}
	if r.SubType.Valid {
		out["sub_type"] = r.SubType.String
	}

	if r.ActivityType.Valid {
		out["activity_type"] = r.ActivityType.String
	}
	if r.FitnessDuration.Valid {
		out["duration_minutes"] = r.FitnessDuration.Float64
	}
	if r.Distance.Valid {
		out["distance"] = r.Distance.Float64
	}
	if r.DistanceUnit.Valid {
		out["distance_unit"] = r.DistanceUnit.String
	}
	if r.Calories.Valid {
		out["calories"] = r.Calories.Float64
	}
	if r.Steps.Valid {
		out["steps"] = r.Steps.Float64
	}
	if r.AvgHeartRate.Valid {
		out["avg_heart_rate"] = r.AvgHeartRate.Float64
	}
	if r.BPSystolic.Valid {
		out["blood_pressure_systolic"] = r.BPSystolic.Float64
	}
	if r.BPDiastolic.Valid {
		out["blood_pressure_diastolic"] = r.BPDiastolic.Float64
	}
	if r.HeartRate.Valid {
		out["heart_rate"] = r.HeartRate.Float64
	}
	if r.Weight.Valid {
		out["weight"] = r.Weight.Float64
	}
	if r.WeightUnit.Valid {
		out["weight_unit"] = r.WeightUnit.String
	}
	if r.Temperature.Valid {
		out["temperature"] = r.Temperature.Float64
	}
	if r.SpO2.Valid {
		out["spo2"] = r.SpO2.Float64
	}
	if r.SleepStart.Valid {
		out["start_time"] = r.SleepStart.String
	}
	if r.SleepEnd.Valid {
		out["end_time"] = r.SleepEnd.String
	}
	if r.SleepDuration.Valid {
		out["sleep_duration_minutes"] = r.SleepDuration.Float64
	}
	if r.SleepQuality.Valid {
		out["sleep_quality"] = r.SleepQuality.Float64
	}
	if r.HabitName.Valid {
		out["habit_name"] = r.HabitName.String
	}
	if r.HabitStatus.Valid {
		out["habit_status"] = r.HabitStatus.String
	}
	if r.HabitCount.Valid {
		out["habit_count"] = r.HabitCount.Float64
	}
	if r.HabitStreak.Valid {
		out["habit_streak"] = r.HabitStreak.Float64
	}
	if r.SymptomName.Valid {
		out["symptom_name"] = r.SymptomName.String
	}
	if r.SymptomSeverity.Valid {
		out["symptom_severity"] = r.SymptomSeverity.Float64
	}
	if r.MedicationName.Valid {
		out["medication_name"] = r.MedicationName.String
	}
	if r.Dosage.Valid {
		out["dosage"] = r.Dosage.Float64
	}
	if r.DosageUnit.Valid {
		out["dosage_unit"] = r.DosageUnit.String
	}
	if r.MedicationTaken.Valid {
		out["taken"] = r.MedicationTaken.Bool
	}
	if r.Latitude.Valid {
		out["latitude"] = r.Latitude.Float64
	}
	if r.Longitude.Valid {
		out["longitude"] = r.Longitude.Float64
	}
	if r.PlaceName.Valid {
		out["place_name"] = r.PlaceName.String
	}
	return out
}
