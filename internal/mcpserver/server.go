// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes export and catalogue tools for LLM integration via stdio
// transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/onexport/internal/apperr"
	"github.com/starford/onexport/internal/exporter"
	"github.com/starford/onexport/internal/index"
)

const layoutURI = "onexport://output-layout"

// Exporter runs an export of inline hierarchy markup.
type Exporter interface {
	Export(ctx context.Context, markup string) (*exporter.Report, error)
}

// Server wraps the MCP server with onexport tools.
type Server struct {
	mcp *server.MCPServer
	exp Exporter
	cat index.Catalogue
}

// New creates a new MCP server with all tools registered.
func New(exp Exporter, cat index.Catalogue, version string) *Server {
	s := &Server{exp: exp, cat: cat}

	s.mcp = server.NewMCPServer(
		"onexport",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("export_notebook",
		mcp.WithDescription("Export a notebook hierarchy to the output tree. "+
			"Returns the run report with written files and per-page failures. "+
			"Read the layout contract via the onexport://output-layout resource."),
		mcp.WithString("markup", mcp.Required(), mcp.Description("Hierarchy XML containing one Notebook element")),
	), s.exportNotebook)

	s.mcp.AddTool(mcp.NewTool("list_pages",
		mcp.WithDescription("List exported pages in document order, optionally for one section."),
		mcp.WithString("notebook", mcp.Description("Notebook slug (empty for all)")),
		mcp.WithString("section", mcp.Description("Section id (empty for all)")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of pages (default 50)")),
	), s.listPages)

	s.mcp.AddTool(mcp.NewTool("search_pages",
		mcp.WithDescription("Full-text search through exported page names and bodies."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of hits (default 20)")),
	), s.searchPages)

	s.mcp.AddTool(mcp.NewTool("read_page",
		mcp.WithDescription("Read one exported page: header fields, output path and body."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Page id as it appears in the hierarchy")),
	), s.readPage)

	s.mcp.AddTool(mcp.NewTool("list_exports",
		mcp.WithDescription("List recent export runs, newest first."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of runs (default 20)")),
	), s.listExports)

	s.mcp.AddResource(
		mcp.NewResource(layoutURI, "Output Layout Contract",
			mcp.WithResourceDescription("Directory and header format of exported notebooks."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readLayoutResource,
	)

	return s
}

// ServeStdio serves the protocol over in and out until in is exhausted or
// ctx is cancelled. Cancellation is a clean stop.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	err := server.NewStdioServer(s.mcp).Listen(ctx, in, out)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) exportNotebook(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	markup, err := req.RequireString("markup")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rep, err := s.exp.Export(ctx, markup)
	if rep == nil {
		return mcp.NewToolResultError(fmt.Sprintf("%s: %v", apperr.Kind(err), err)), nil
	}
	// A partial run still produced files; the report lists what failed.
	return jsonResult(rep)
}

func (s *Server) listPages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pages, total, err := s.cat.ListPages(ctx, index.PageFilter{
		NotebookSlug: req.GetString("notebook", ""),
		SectionID:    req.GetString("section", ""),
		Limit:        req.GetInt("limit", 50),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"pages": pages, "total": total})
}

func (s *Server) searchPages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.cat.Search(ctx, query, req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results)
}

func (s *Server) readPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	page, err := s.cat.GetPage(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(page)
}

func (s *Server) listExports(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runs, err := s.cat.ListExports(ctx, req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(runs) == 0 {
		return mcp.NewToolResultText("no exports recorded"), nil
	}
	return jsonResult(runs)
}

func (s *Server) readLayoutResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      layoutURI,
			MIMEType: "text/markdown",
			Text:     OutputLayoutContract,
		},
	}, nil
}
