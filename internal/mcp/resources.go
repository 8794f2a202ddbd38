// ABOUTME: MCP resource implementations for ingested health records.
// ABOUTME: Provides healthpipe://recent and healthpipe://sources resources.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func (s *Server) registerResources() {
	// healthpipe://recent - Last 7 days of records
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         "healthpipe://recent",
		Name:        "Recent Health Records",
		Description: "Health records from the last 7 days across all sources",
		MIMEType:    "application/json",
	}, s.handleRecentResource)

	// healthpipe://sources - Source inventory with record counts
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         "healthpipe://sources",
		Name:        "Ingested Sources",
		Description: "Every ingested data source with its record count",
		MIMEType:    "application/json",
	}, s.handleSourcesResource)
}

// Resource handlers

func (s *Server) handleRecentResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	now := time.Now()
	start := now.AddDate(0, 0, -7).Format("2006-01-02")
	end := now.Format("2006-01-02")

	rows, err := s.db.RecordsByDateRange(start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}

	records := make([]map[string]any, 0, len(rows))
	for _, r := range rows {
		records = append(records, rowView(r))
	}

	result := map[string]interface{}{
		"start":   start,
		"end":     end,
		"count":   len(records),
		"records": records,
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      "healthpipe://recent",
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

func (s *Server) handleSourcesResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	sources, err := s.db.Sources()
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}

	result := map[string]interface{}{
		"sources": sources,
		"count":   len(sources),
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      "healthpipe://sources",
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}
