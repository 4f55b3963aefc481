package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/eventsage/internal/indexer"
	"github.com/dshills/eventsage/internal/pipeline"
	"github.com/dshills/eventsage/pkg/logger"
	"github.com/dshills/eventsage/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams = -32602 // Invalid method parameters
	ErrorCodeInternalError = -32603 // Internal JSON-RPC error
	ErrorCodeEmptyQuery    = -32001 // Question or query is empty
	ErrorCodeInvalidEvent  = -32002 // Event failed validation
	ErrorCodeUnavailable   = -32003 // Upstream provider failed, safe to retry
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 100
)

// handleAskEvents handles the ask_events tool invocation
func (s *Server) handleAskEvents(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	question, _ := args["question"].(string)
	if strings.TrimSpace(question) == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "question parameter is required and cannot be empty", map[string]interface{}{
			"param":  "question",
			"reason": "missing or empty",
		})
	}

	ans, err := s.svc.Ask(ctx, question)
	if err != nil {
		return nil, s.toolError(ctx, "ask_events", err)
	}

	response := map[string]interface{}{
		"answer":      ans.Text,
		"strategy":    string(ans.Strategy),
		"provider":    ans.Provider,
		"cache_hit":   ans.CacheHit,
		"duration_ms": ans.Duration.Milliseconds(),
	}
	if ans.Count != nil {
		response["count"] = *ans.Count
	}
	if getBoolDefault(args, "include_events", false) {
		response["events"] = summaries(ans.Events)
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSearchEvents handles the search_events tool invocation
func (s *Server) handleSearchEvents(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, _ := args["query"].(string)
	if strings.TrimSpace(query) == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", defaultSearchLimit)
	if limit < 1 || limit > maxSearchLimit {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	res, err := s.svc.Search(ctx, query)
	if err != nil {
		return nil, s.toolError(ctx, "search_events", err)
	}

	events := res.Events
	if len(events) > limit {
		events = events[:limit]
	}
	response := map[string]interface{}{
		"strategy": string(res.Strategy),
		"intent":   string(res.Classification.Intent),
		"total":    len(res.Events),
		"events":   summaries(events),
	}
	if res.Count != nil {
		response["count"] = *res.Count
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleAddEvent handles the add_event tool invocation
func (s *Server) handleAddEvent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	in, err := decodeEventInput(args)
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid event arguments", map[string]interface{}{
			"reason": err.Error(),
		})
	}

	ev, err := s.svc.AddInput(ctx, in)
	if err != nil {
		return nil, s.toolError(ctx, "add_event", err)
	}

	response := map[string]interface{}{
		"created": true,
		"event":   summary(ev, 0),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := s.svc.Status(ctx)
	if err != nil {
		return nil, s.toolError(ctx, "get_status", err)
	}

	idx := status.Index
	statistics := map[string]interface{}{
		"total_events":   idx.TotalEvents,
		"free_events":    idx.FreeEvents,
		"schema_version": idx.SchemaVersion,
		"build_mode":     idx.BuildMode,
	}
	if idx.FirstEventDate != nil {
		statistics["first_event_date"] = idx.FirstEventDate.Format(types.DateLayout)
	}
	if idx.LastEventDate != nil {
		statistics["last_event_date"] = idx.LastEventDate.Format(types.DateLayout)
	}

	response := map[string]interface{}{
		"indexed":    idx.TotalEvents > 0,
		"statistics": statistics,
		"embedding": map[string]interface{}{
			"provider":         status.EmbeddingProvider,
			"model":            status.EmbeddingModel,
			"dimension":        status.EmbeddingDim,
			"stored_dimension": idx.EmbeddingDim,
			"stored_model":     idx.EmbeddingModel,
		},
		"answer_provider": status.AnswerProvider,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// toolError maps a service error onto an MCP error code
func (s *Server) toolError(ctx context.Context, tool string, err error) error {
	switch {
	case errors.Is(err, pipeline.ErrEmptyQuestion):
		return newMCPError(ErrorCodeEmptyQuery, err.Error(), nil)
	case errors.Is(err, types.ErrInvalidEvent):
		return newMCPError(ErrorCodeInvalidEvent, "invalid event", map[string]interface{}{
			"reason": err.Error(),
		})
	case errors.Is(err, types.ErrRetryable), errors.Is(err, context.DeadlineExceeded):
		s.log.Warn(ctx, "tool temporarily unavailable", logger.String("tool", tool), logger.Error(err))
		return newMCPError(ErrorCodeUnavailable, "service temporarily unavailable", map[string]interface{}{
			"error": err.Error(),
		})
	default:
		s.log.Error(ctx, "tool failed", logger.String("tool", tool), logger.Error(err))
		return newMCPError(ErrorCodeInternalError, tool+" failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// decodeEventInput round-trips the raw arguments through JSON so the
// field names match the HTTP add-event body
func decodeEventInput(args map[string]interface{}) (indexer.EventInput, error) {
	var in indexer.EventInput
	raw, err := json.Marshal(args)
	if err != nil {
		return in, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		return in, err
	}
	return in, nil
}

func summary(ev *types.Event, score float64) map[string]interface{} {
	out := map[string]interface{}{
		"id":               ev.ID,
		"name":             ev.Name,
		"domain":           ev.Domain,
		"date":             ev.DateString(),
		"mode":             string(ev.Mode),
		"registration_fee": ev.RegistrationFee,
		"description":      ev.Description,
	}
	for key, val := range map[string]string{
		"time":                 ev.Time,
		"venue":                ev.Venue,
		"faculty_coordinators": ev.FacultyCoordinators,
		"student_coordinators": ev.StudentCoordinators,
		"speakers":             ev.Speakers,
		"perks":                ev.Perks,
		"collaboration":        ev.Collaboration,
	} {
		if !types.IsBlank(val) {
			out[key] = val
		}
	}
	if score > 0 {
		out["score"] = score
	}
	return out
}

func summaries(events []types.RankedEvent) []map[string]interface{} {
	out := make([]map[string]interface{}, len(events))
	for i := range events {
		out[i] = summary(&events[i].Event, events[i].FinalScore)
	}
	return out
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}
