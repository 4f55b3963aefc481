// Package mcp implements the Model Context Protocol (MCP) server for eventsage.
//
// The server exposes four tools to MCP clients:
//   - ask_events: Answer a question about the event catalog
//   - search_events: Retrieve matching events without generating an answer
//   - add_event: Add and index one event
//   - get_status: Report index statistics and provider information
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// stdout carries protocol frames only. Logs go to stderr.
//
// # Basic Usage
//
//	eventsage mcp --config eventsage.yaml
//
// # Tool: ask_events
//
//	Request:
//	{
//	  "name": "ask_events",
//	  "arguments": {"question": "free AI events in March 2025"}
//	}
//
//	Response:
//	{
//	  "answer": "## AI Summit\n...",
//	  "strategy": "hybrid",
//	  "provider": "openai",
//	  "cache_hit": false,
//	  "duration_ms": 812
//	}
//
// # Tool: search_events
//
//	Request:
//	{
//	  "name": "search_events",
//	  "arguments": {"query": "robotics workshop", "limit": 5}
//	}
//
//	Response:
//	{
//	  "strategy": "exact_name",
//	  "intent": "domain",
//	  "total": 1,
//	  "events": [{"id": 2, "name": "Robotics Workshop", "date": "2025-03-20", ...}]
//	}
//
// # Tool: add_event
//
// Arguments use the same field names as the HTTP add-event body. name,
// domain, date and description are required; the rest default to "N/A",
// mode "offline" and fee 0.
//
// # Error Handling
//
// Handlers return *MCPError values:
//   - -32602: Invalid params (missing/invalid arguments)
//   - -32603: Internal error (database, embedder, etc.)
//   - -32001: Empty question or query
//   - -32002: Event failed validation
//   - -32003: Answer or embedding provider unavailable, retry later
//
// # MCP Client Configuration
//
//	{
//	  "mcpServers": {
//	    "eventsage": {
//	      "command": "/usr/local/bin/eventsage",
//	      "args": ["mcp"],
//	      "env": {
//	        "EVENTSAGE_DB_PATH": "/var/lib/eventsage/events.db",
//	        "EVENTSAGE_LLM_PROVIDER": "openai",
//	        "EVENTSAGE_LLM_API_KEY": "your-api-key"
//	      }
//	    }
//	  }
//	}
package mcp
