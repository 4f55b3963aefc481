package mcp

import (
	"context"
	"io"
	"log"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/eventsage/internal/app"
	"github.com/dshills/eventsage/internal/indexer"
	"github.com/dshills/eventsage/internal/pipeline"
	"github.com/dshills/eventsage/internal/router"
	"github.com/dshills/eventsage/pkg/logger"
	"github.com/dshills/eventsage/pkg/types"
)

const (
	// ServerName is the MCP server name
	ServerName = "eventsage"
)

// ServerVersion is reported during the MCP handshake; main overrides it
// with the build version.
var ServerVersion = "dev"

// Service is the subset of app.Service the tools call
type Service interface {
	Ask(ctx context.Context, question string) (*pipeline.Answer, error)
	Search(ctx context.Context, question string) (*router.Result, error)
	AddInput(ctx context.Context, in indexer.EventInput) (*types.Event, error)
	Status(ctx context.Context) (*app.Status, error)
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp *server.MCPServer
	svc Service
	log logger.Logger
}

// NewServer creates a new MCP server instance
func NewServer(svc Service, log logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	s := &Server{
		mcp: server.NewMCPServer(
			ServerName,
			ServerVersion,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
		svc: svc,
		log: log.Named("mcp"),
	}
	s.registerTools()
	return s
}

// Serve runs the stdio transport until ctx is cancelled or stdin closes.
// stdout carries protocol frames only; diagnostics go to errLog.
func (s *Server) Serve(ctx context.Context, stdin io.Reader, stdout io.Writer, errLog *log.Logger) error {
	stdio := server.NewStdioServer(s.mcp)
	if errLog != nil {
		stdio.SetErrorLogger(errLog)
	}
	s.log.Info(ctx, "mcp server listening on stdio")
	return stdio.Listen(ctx, stdin, stdout)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(askEventsTool(), s.handleAskEvents)
	s.mcp.AddTool(searchEventsTool(), s.handleSearchEvents)
	s.mcp.AddTool(addEventTool(), s.handleAddEvent)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}
