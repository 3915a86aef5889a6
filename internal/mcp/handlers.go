package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/crm-agent/internal/records"
)

// handleLogInteraction runs the full agent pipeline over a note.
func (s *Server) handleLogInteraction(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := request.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: text"), nil
	}

	res := s.pipeline.Process(ctx, text, request.GetString("rep_id", ""))
	if !res.Success {
		return mcp.NewToolResultError(res.Error), nil
	}
	return mcp.NewToolResultText(res.AIResponse), nil
}

func (s *Server) handleEditInteraction(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("interaction_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: interaction_id"), nil
	}
	instruction, err := request.RequireString("edit_request")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: edit_request"), nil
	}

	res := s.pipeline.Edit(ctx, id, instruction, request.GetString("rep_id", ""))
	if !res.Success {
		return mcp.NewToolResultError(res.Error), nil
	}
	return jsonResult(res.Interaction)
}

func (s *Server) handleSearchHCP(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: name"), nil
	}

	limit := request.GetInt("limit", 5)
	if limit <= 0 {
		limit = 5
	}

	hcps, err := s.records.SearchHCPByName(ctx, name, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	if len(hcps) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No HCP matches %q.", name)), nil
	}
	return mcp.NewToolResultText(formatHCPs(hcps)), nil
}

func (s *Server) handleSentimentAnalyzer(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := request.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: text"), nil
	}

	res, err := s.pipeline.AnalyzeSentiment(ctx, text)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("sentiment analysis failed: %v", err)), nil
	}
	return jsonResult(res)
}

func (s *Server) handleFollowupSuggestor(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	summary, err := request.RequireString("summary")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: summary"), nil
	}

	items, err := s.pipeline.SuggestFollowUps(ctx, summary, request.GetString("sentiment", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("follow-up suggestion failed: %v", err)), nil
	}
	return jsonResult(items)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// formatHCPs renders matches one per line for agent consumption.
func formatHCPs(hcps []records.HCP) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d HCP(s):\n", len(hcps))
	for _, h := range hcps {
		fmt.Fprintf(&sb, "- %s (id: %s)", h.Name, h.ID)
		var details []string
		for _, d := range []string{h.Speciality, h.Organisation} {
			if d != "" {
				details = append(details, d)
			}
		}
		if len(details) > 0 {
			fmt.Fprintf(&sb, " [%s]", strings.Join(details, ", "))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
