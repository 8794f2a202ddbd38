// ABOUTME: Tests for MCP server, tools, and resources.
// ABOUTME: Covers NewServer, query tool handlers, and resource handlers.
package mcp

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harperreed/healthpipe/internal/models"
	"github.com/harperreed/healthpipe/internal/storage"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// setupTestDB creates a test database in a temp directory.
func setupTestDB(t *testing.T) *storage.DB {
	t.Helper()

	db, err := storage.Open(filepath.Join(t.TempDir(), "healthpipe.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db
}

func seedRecord(t *testing.T, db *storage.DB, ts, source string, dataType models.DataType, fields map[string]any) *models.BaseRecord {
	t.Helper()

	rec, err := models.NewBaseRecord(nil, ts, source, dataType, "")
	if err != nil {
		t.Fatalf("Failed to build record: %v", err)
	}
	for k, v := range fields {
		rec.SetField(k, v)
	}
	result, err := db.InsertRecords([]*models.BaseRecord{rec})
	if err != nil {
		t.Fatalf("Failed to insert record: %v", err)
	}
	if result.Inserted != 1 {
		t.Fatalf("Inserted = %d, want 1", result.Inserted)
	}
	return rec
}

func TestNewServer(t *testing.T) {
	db := setupTestDB(t)

	server, err := NewServer(db)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}

	if server == nil {
		t.Fatal("Expected non-nil server")
	}
	if server.mcpServer == nil {
		t.Error("Expected non-nil mcpServer")
	}
	if server.db == nil {
		t.Error("Expected non-nil db")
	}
}

func TestHandleQueryRecords(t *testing.T) {
	db := setupTestDB(t)
	server, _ := NewServer(db)
	ctx := context.Background()

	seedRecord(t, db, "03/15/2024 08:00:00", "fitbit", models.TypeHealth, map[string]any{
		"heart_rate": models.NewMetricValue(62.0, "bpm"),
	})
	seedRecord(t, db, "03/16/2024 07:30:00", "strava", models.TypeFitness, map[string]any{
		"steps": models.NewMetricValue(10432.0, "count"),
	})

	tests := []struct {
		name      string
		input     queryRecordsInput
		wantErr   bool
		errSubstr string
	}{
		{
			name:  "date range covering both",
			input: queryRecordsInput{StartDate: "2024-03-15", EndDate: "2024-03-16"},
		},
		{
			name:  "date range in canonical format",
			input: queryRecordsInput{StartDate: "03/15/2024 00:00:00", EndDate: "03/15/2024 23:59:59"},
		},
		{
			name:  "by source",
			input: queryRecordsInput{Source: "fitbit"},
		},
		{
			name:  "by source with limit",
			input: queryRecordsInput{Source: "strava", Limit: 1},
		},
		{
			name:      "no filters",
			input:     queryRecordsInput{},
			wantErr:   true,
			errSubstr: "need either",
		},
		{
			name:      "start without end",
			input:     queryRecordsInput{StartDate: "2024-03-15"},
			wantErr:   true,
			errSubstr: "need either",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, output, err := server.handleQueryRecords(ctx, &mcp.CallToolRequest{}, tt.input)

			if tt.wantErr {
				if err == nil {
					t.Error("Expected error, got nil")
				} else if tt.errSubstr != "" && !strings.Contains(err.Error(), tt.errSubstr) {
					t.Errorf("Error %q should contain %q", err.Error(), tt.errSubstr)
				}
				return
			}

			if err != nil {
				t.Errorf("Unexpected error: %v", err)
				return
			}
			if output == nil {
				t.Error("Expected non-nil output")
			}
		})
	}
}

func TestHandleQueryRecordsEmpty(t *testing.T) {
	db := setupTestDB(t)
	server, _ := NewServer(db)
	ctx := context.Background()

	_, output, err := server.handleQueryRecords(ctx, &mcp.CallToolRequest{}, queryRecordsInput{
		Source: "nonexistent",
	})
	if err != nil {
		t.Errorf("Unexpected error: %v", err)
	}

	// Should return a message map for empty results
	msg, ok := output.(map[string]interface{})
	if !ok {
		t.Fatal("Expected message map output")
	}
	if msg["message"] == "" {
		t.Error("Expected non-empty message")
	}
}

func TestHandleListSources(t *testing.T) {
	db := setupTestDB(t)
	server, _ := NewServer(db)
	ctx := context.Background()

	seedRecord(t, db, "03/15/2024 08:00:00", "fitbit", models.TypeHealth, map[string]any{
		"heart_rate": models.NewMetricValue(62.0, "bpm"),
	})
	seedRecord(t, db, "03/15/2024 09:00:00", "fitbit", models.TypeHealth, map[string]any{
		"heart_rate": models.NewMetricValue(70.0, "bpm"),
	})
	seedRecord(t, db, "03/16/2024 07:30:00", "strava", models.TypeFitness, map[string]any{
		"steps": models.NewMetricValue(10432.0, "count"),
	})

	_, output, err := server.handleListSources(ctx, &mcp.CallToolRequest{}, listSourcesInput{})
	if err != nil {
		t.Errorf("Unexpected error: %v", err)
	}

	sources, ok := output.([]sourceOutput)
	if !ok {
		t.Fatal("Expected source slice output")
	}
	if len(sources) != 2 {
		t.Errorf("Expected 2 sources, got %d", len(sources))
	}

	counts := map[string]int{}
	for _, s := range sources {
		counts[s.Source] = s.Count
	}
	if counts["fitbit"] != 2 {
		t.Errorf("fitbit count = %d, want 2", counts["fitbit"])
	}
	if counts["strava"] != 1 {
		t.Errorf("strava count = %d, want 1", counts["strava"])
	}
}

func TestHandleListSourcesEmpty(t *testing.T) {
	db := setupTestDB(t)
	server, _ := NewServer(db)
	ctx := context.Background()

	_, output, err := server.handleListSources(ctx, &mcp.CallToolRequest{}, listSourcesInput{})
	if err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if output == nil {
		t.Error("Expected non-nil output")
	}
}

func TestHandleGetRecord(t *testing.T) {
	db := setupTestDB(t)
	server, _ := NewServer(db)
	ctx := context.Background()

	rec := seedRecord(t, db, "03/15/2024 08:00:00", "fitbit", models.TypeHealth, map[string]any{
		"heart_rate": models.NewMetricValue(62.0, "bpm"),
	})

	// Lookup by prefix
	_, output, err := server.handleGetRecord(ctx, &mcp.CallToolRequest{}, getRecordInput{
		ID: rec.ID.String()[:8],
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	view, ok := output.(map[string]any)
	if !ok {
		t.Fatal("Expected map output")
	}
	if view["id"] != rec.ID.String() {
		t.Errorf("id = %v, want %s", view["id"], rec.ID.String())
	}
	if view["heart_rate"] != 62.0 {
		t.Errorf("heart_rate = %v, want 62", view["heart_rate"])
	}
}

func TestHandleGetRecordNotFound(t *testing.T) {
	db := setupTestDB(t)
	server, _ := NewServer(db)
	ctx := context.Background()

	_, _, err := server.handleGetRecord(ctx, &mcp.CallToolRequest{}, getRecordInput{
		ID: "nonexistent",
	})

	if err == nil {
		t.Error("Expected error for nonexistent record")
	}
}

func TestHandleRecentResource(t *testing.T) {
	db := setupTestDB(t)
	server, _ := NewServer(db)
	ctx := context.Background()

	result, err := server.handleRecentResource(ctx, &mcp.ReadResourceRequest{})
	if err != nil {
		t.Errorf("Unexpected error: %v", err)
	}

	if result == nil {
		t.Fatal("Expected non-nil result")
	}
	if len(result.Contents) == 0 {
		t.Fatal("Expected non-empty contents")
	}
	if result.Contents[0].URI != "healthpipe://recent" {
		t.Errorf("URI = %s, want healthpipe://recent", result.Contents[0].URI)
	}
	if result.Contents[0].MIMEType != "application/json" {
		t.Errorf("MIMEType = %s, want application/json", result.Contents[0].MIMEType)
	}
	if result.Contents[0].Text == "" {
		t.Error("Expected non-empty Text")
	}
}

func TestHandleSourcesResource(t *testing.T) {
	db := setupTestDB(t)
	server, _ := NewServer(db)
	ctx := context.Background()

	seedRecord(t, db, "03/15/2024 08:00:00", "fitbit", models.TypeHealth, map[string]any{
		"heart_rate": models.NewMetricValue(62.0, "bpm"),
	})

	result, err := server.handleSourcesResource(ctx, &mcp.ReadResourceRequest{})
	if err != nil {
		t.Errorf("Unexpected error: %v", err)
	}

	if result == nil {
		t.Fatal("Expected non-nil result")
	}
	if result.Contents[0].URI != "healthpipe://sources" {
		t.Errorf("URI = %s, want healthpipe://sources", result.Contents[0].URI)
	}
	if !strings.Contains(result.Contents[0].Text, "fitbit") {
		t.Error("Expected fitbit in sources resource")
	}
}
