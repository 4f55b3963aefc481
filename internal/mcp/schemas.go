package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// askEventsTool returns the tool definition for ask_events
func askEventsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "ask_events",
		Description: "Answer a natural-language question about university events",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"question": map[string]interface{}{
					"type":        "string",
					"description": "Question, e.g. 'free AI events in March 2025' or 'how many events in 2024?'",
				},
				"include_events": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, return the retrieved events alongside the answer",
					"default":     false,
				},
			},
			Required: []string{"question"},
		},
	}
}

// searchEventsTool returns the tool definition for search_events
func searchEventsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_events",
		Description: "Retrieve events matching a question without generating an answer",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query (event name, domain, month, person or free text)",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of events to return (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
			},
			Required: []string{"query"},
		},
	}
}

// addEventTool returns the tool definition for add_event
func addEventTool() mcp.Tool {
	str := func(desc string) map[string]interface{} {
		return map[string]interface{}{"type": "string", "description": desc}
	}
	return mcp.Tool{
		Name:        "add_event",
		Description: "Add one event to the catalog and index it for search",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"name":   str("Event name"),
				"domain": str("Topic area, e.g. AI, Robotics"),
				"date":   str("Event date, YYYY-MM-DD"),
				"time":   str("Start time"),
				"venue":  str("Venue"),
				"mode": map[string]interface{}{
					"type":        "string",
					"description": "Attendance mode",
					"enum":        []string{"online", "offline", "hybrid"},
					"default":     "offline",
				},
				"faculty_coordinators": str("Faculty coordinators"),
				"student_coordinators": str("Student coordinators"),
				"speakers":             str("Speakers"),
				"registration_fee": map[string]interface{}{
					"type":        "number",
					"description": "Registration fee, 0 for free events",
					"minimum":     0,
					"default":     0,
				},
				"perks":         str("Perks for participants"),
				"collaboration": str("Collaborating organizations"),
				"description":   str("Event description"),
			},
			Required: []string{"name", "domain", "date", "description"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report index statistics and the active embedding and answer providers",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
