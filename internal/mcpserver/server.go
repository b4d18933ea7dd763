// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Vellum compile and preview tools for LLM integration
// via stdio transport.
package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/halvar/vellum/internal/compiler"
	"github.com/halvar/vellum/internal/docstore"
	"github.com/halvar/vellum/internal/segment"
)

// Server wraps the MCP server with Vellum tools.
type Server struct {
	mcp      *server.MCPServer
	compiler compiler.Service
	store    docstore.Store
}

// New creates a new MCP server with all Vellum tools registered.
func New(c compiler.Service, store docstore.Store) *Server {
	s := &Server{compiler: c, store: store}

	s.mcp = server.NewMCPServer(
		"Vellum",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("compile_document",
		mcp.WithDescription("Compile LaTeX source into a PDF. Returns the artifact base64-encoded, "+
			"or the compiler's diagnostic output when the source does not compile."),
		mcp.WithString("content", mcp.Required(), mcp.Description("Complete LaTeX source")),
	), s.compileDocument)

	s.mcp.AddTool(mcp.NewTool("preview_segments",
		mcp.WithDescription("Split LaTeX source into ordered text/math segments as used by the "+
			"inline preview. Useful for checking which spans will be typeset as math."),
		mcp.WithString("content", mcp.Required(), mcp.Description("LaTeX source to segment")),
	), s.previewSegments)

	s.mcp.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List all stored documents with their ids and titles."),
	), s.listDocuments)

	s.mcp.AddTool(mcp.NewTool("read_document",
		mcp.WithDescription("Read the full LaTeX source of a stored document."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Document id")),
	), s.readDocument)

	s.mcp.AddTool(mcp.NewTool("save_document",
		mcp.WithDescription("Store a new LaTeX document and return its assigned id."),
		mcp.WithString("title", mcp.Description("Optional document title")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Complete LaTeX source")),
	), s.saveDocument)

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

func (s *Server) compileDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if strings.TrimSpace(content) == "" {
		return mcp.NewToolResultError("content is empty"), nil
	}
	artifact, err := s.compiler.Compile(ctx, content)
	if err != nil {
		ce := compiler.AsError(err)
		if ce.Diagnostic != "" {
			return mcp.NewToolResultError(fmt.Sprintf("%s:\n%s", ce.Kind, ce.Diagnostic)), nil
		}
		return mcp.NewToolResultError(ce.Error()), nil
	}
	return mcp.NewToolResultText(base64.StdEncoding.EncodeToString(artifact)), nil
}

func (s *Server) previewSegments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(segment.Split(content), "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	metas, err := s.store.List()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(metas) == 0 {
		return mcp.NewToolResultText("no documents"), nil
	}
	var lines []string
	for _, m := range metas {
		lines = append(lines, fmt.Sprintf("%s\t%s", m.ID, m.Title))
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) readDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.store.Get(id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	return mcp.NewToolResultText(doc.Content), nil
}

func (s *Server) saveDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	title := ""
	if t, tErr := req.RequireString("title"); tErr == nil {
		title = t
	}
	doc, err := s.store.Save(title, content)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("saved: %s", doc.ID)), nil
}
