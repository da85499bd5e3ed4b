// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the client operations for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/axanet/internal/apperr"
	"github.com/starford/axanet/internal/history"
	"github.com/starford/axanet/internal/manager"
	"github.com/starford/axanet/internal/models"
)

const defaultRecent = 5

// Server wraps the MCP server with client tools.
type Server struct {
	mcp *server.MCPServer
	mgr *manager.Manager
}

// New creates a new MCP server with all client tools registered.
func New(mgr *manager.Manager, version string) *Server {
	s := &Server{mgr: mgr}

	s.mcp = server.NewMCPServer(
		"Axanet",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("create_client",
		mcp.WithDescription("Create a client record. The identifier is derived from the name, "+
			"so names differing only in case or spacing collide."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Client display name")),
		mcp.WithString("service", mcp.Required(), mcp.Description("Service contracted by the client")),
		mcp.WithString("notes", mcp.Description("Free-text notes")),
	), s.createClient)

	s.mcp.AddTool(mcp.NewTool("update_client",
		mcp.WithDescription("Change the service and/or notes of a client. Omitted fields are left unchanged."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Client name or identifier")),
		mcp.WithString("service", mcp.Description("New service")),
		mcp.WithString("notes", mcp.Description("New notes")),
	), s.updateClient)

	s.mcp.AddTool(mcp.NewTool("consult_client",
		mcp.WithDescription("Read a full client record. The consultation is logged in the record's history."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Client name or identifier")),
	), s.consultClient)

	s.mcp.AddTool(mcp.NewTool("delete_client",
		mcp.WithDescription("Delete a client record permanently."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Client name or identifier")),
	), s.deleteClient)

	s.mcp.AddTool(mcp.NewTool("list_clients",
		mcp.WithDescription("List all client summaries ordered by name."),
	), s.listClients)

	s.mcp.AddTool(mcp.NewTool("search_clients",
		mcp.WithDescription("Case-insensitive substring search over client name, service and notes."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search text")),
	), s.searchClients)

	s.mcp.AddTool(mcp.NewTool("client_stats",
		mcp.WithDescription("Record count, per-action history counts and most recently touched clients."),
		mcp.WithNumber("recent", mcp.Description("How many recently touched clients to return (default 5)")),
	), s.clientStats)

	s.mcp.AddTool(mcp.NewTool("get_record_format",
		mcp.WithDescription("Returns the on-disk client record format, including the history entry kinds."),
	), s.getRecordFormat)

	// Resource: record format.
	s.mcp.AddResource(
		mcp.NewResource(recordFormatURI, "Client Record Format",
			mcp.WithResourceDescription("JSON layout of client records and their action history."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readRecordFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) createClient(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	service, err := req.RequireString("service")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	in := manager.CreateInput{Name: name, Service: service}
	if v, nErr := req.RequireString("notes"); nErr == nil {
		in.Notes = v
	}

	c, err := s.mgr.Create(ctx, in)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(c)
}

func (s *Server) updateClient(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var in manager.UpdateInput
	if v, sErr := req.RequireString("service"); sErr == nil {
		in.Service = &v
	}
	if v, nErr := req.RequireString("notes"); nErr == nil {
		in.Notes = &v
	}

	res, err := s.mgr.Update(ctx, name, in)
	if err != nil {
		return toolError(err), nil
	}
	if len(res.Changes) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("no changes: %s", res.Client.ID)), nil
	}
	return jsonResult(res)
}

func (s *Server) consultClient(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c, err := s.mgr.Consult(ctx, name)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(struct {
		Client  *models.Client  `json:"client"`
		Summary history.Summary `json:"summary"`
	}{c, history.Summarize(c, defaultRecent)})
}

func (s *Server) deleteClient(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sum, err := s.mgr.Delete(ctx, name)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s", sum.ID)), nil
}

func (s *Server) listClients(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := s.mgr.List(ctx)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(list)
}

func (s *Server) searchClients(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.mgr.Search(ctx, query)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(results)
}

func (s *Server) clientStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	recent := defaultRecent
	if v, err := req.RequireFloat("recent"); err == nil {
		recent = int(v)
	}
	st, err := s.mgr.Stats(ctx, recent)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(st)
}

func (s *Server) getRecordFormat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(RecordFormat), nil
}

func (s *Server) readRecordFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      recordFormatURI,
			MIMEType: "text/markdown",
			Text:     RecordFormat,
		},
	}, nil
}

// toolError renders err with a short category prefix.
func toolError(err error) *mcp.CallToolResult {
	prefix := "error"
	switch apperr.Kind(err) {
	case apperr.ErrNotFound:
		prefix = "not found"
	case apperr.ErrConflict:
		prefix = "already exists"
	case apperr.ErrValidation:
		prefix = "invalid input"
	case apperr.ErrStorage, apperr.ErrIndexCorrupt:
		prefix = "storage failure"
	}
	return mcp.NewToolResultError(fmt.Sprintf("%s: %v", prefix, err))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}
