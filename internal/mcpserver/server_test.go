package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/onexport/internal/exporter"
	"github.com/starford/onexport/internal/generator"
	"github.com/starford/onexport/internal/index"
	"github.com/starford/onexport/internal/testutil"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	db := testutil.TestDB(t)
	svc := exporter.New(generator.Config{Root: t.TempDir(), Collection: "notes"},
		exporter.WithCatalogue(db),
		exporter.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	return New(svc, db, "test")
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so handlers are called
	// directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "export_notebook":
		result, err = srv.exportNotebook(ctx, req)
	case "list_pages":
		result, err = srv.listPages(ctx, req)
	case "search_pages":
		result, err = srv.searchPages(ctx, req)
	case "read_page":
		result, err = srv.readPage(ctx, req)
	case "list_exports":
		result, err = srv.listExports(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestExportNotebookAndReadPage(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "export_notebook", map[string]any{"markup": testutil.SampleHierarchy()})
	if r.IsError {
		t.Fatalf("export failed: %s", resultText(r))
	}
	var rep exporter.Report
	if err := json.Unmarshal([]byte(resultText(r)), &rep); err != nil {
		t.Fatalf("report is not JSON: %v", err)
	}
	if rep.Written != 2 {
		t.Errorf("written = %d", rep.Written)
	}

	id := testutil.PageID(testutil.SectionID("AAAA"), "E1")
	r = callTool(t, srv, "read_page", map[string]any{"id": id})
	if r.IsError {
		t.Fatalf("read failed: %s", resultText(r))
	}
	var page index.PageRow
	if err := json.Unmarshal([]byte(resultText(r)), &page); err != nil {
		t.Fatal(err)
	}
	if page.Name != "Kickoff" || page.Path != "projects/kickoff.yaml" {
		t.Errorf("page = %+v", page)
	}
}

func TestExportNotebook_Malformed(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "export_notebook", map[string]any{"markup": "<nope>"})
	if !r.IsError || !strings.HasPrefix(resultText(r), "malformed_input") {
		t.Errorf("result = %q (error %v)", resultText(r), r.IsError)
	}
}

func TestExportNotebook_MissingArgument(t *testing.T) {
	srv := testServer(t)
	if r := callTool(t, srv, "export_notebook", map[string]any{}); !r.IsError {
		t.Error("expected error without markup")
	}
}

func TestListAndSearchPages(t *testing.T) {
	srv := testServer(t)
	_ = callTool(t, srv, "export_notebook", map[string]any{"markup": testutil.SampleHierarchy()})

	r := callTool(t, srv, "list_pages", map[string]any{"limit": float64(1)})
	var list struct {
		Pages []index.PageRow `json:"pages"`
		Total int             `json:"total"`
	}
	if err := json.Unmarshal([]byte(resultText(r)), &list); err != nil {
		t.Fatal(err)
	}
	if list.Total != 2 || len(list.Pages) != 1 {
		t.Errorf("list = %+v", list)
	}

	r = callTool(t, srv, "search_pages", map[string]any{"query": "Follow"})
	if !strings.Contains(resultText(r), "projects/follow-up.yaml") {
		t.Errorf("search result = %q", resultText(r))
	}
}

func TestReadPageMissing(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "read_page", map[string]any{"id": "nope"})
	if !r.IsError {
		t.Error("expected error for missing page")
	}
}

func TestListExports(t *testing.T) {
	srv := testServer(t)
	if r := callTool(t, srv, "list_exports", nil); resultText(r) != "no exports recorded" {
		t.Errorf("empty list = %q", resultText(r))
	}
	_ = callTool(t, srv, "export_notebook", map[string]any{"markup": testutil.SampleHierarchy()})
	r := callTool(t, srv, "list_exports", nil)
	if !strings.Contains(resultText(r), `"outcome": "success"`) {
		t.Errorf("list = %q", resultText(r))
	}
}

func TestLayoutResource(t *testing.T) {
	srv := testServer(t)
	contents, err := srv.readLayoutResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil || len(contents) != 1 {
		t.Fatalf("resource = %v, %v", contents, err)
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok || !strings.Contains(tc.Text, "notebook.xml") {
		t.Errorf("unexpected resource contents: %+v", contents[0])
	}
}

func TestServeStdio_AnswersUntilEOF(t *testing.T) {
	srv := testServer(t)
	in := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"test","version":"1"}}}` + "\n")
	var out strings.Builder
	if err := srv.ServeStdio(context.Background(), in, &out); err != nil {
		t.Fatalf("ServeStdio: %v", err)
	}
	if !strings.Contains(out.String(), `"name":"onexport"`) {
		t.Errorf("initialize response = %q", out.String())
	}
}

func TestServeStdio_StopsOnCancel(t *testing.T) {
	srv := testServer(t)
	in, w := io.Pipe()
	t.Cleanup(func() { w.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ServeStdio(ctx, in, io.Discard) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("ServeStdio after cancel: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ServeStdio did not return after cancel")
	}
}
