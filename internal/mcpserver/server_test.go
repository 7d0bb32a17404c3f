package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/quire/internal/contentservice"
	"github.com/starford/quire/internal/engine"
	"github.com/starford/quire/internal/index"
	"github.com/starford/quire/internal/scan"
	"github.com/starford/quire/internal/testutil"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	_, store := testutil.ContentTree(t, map[string]string{
		"index.md":         "---\ntitle: Home\n---\n[about](/about) [gone](/gone)\n",
		"about.md":         "---\ntitle: About\n---\nA findable page.\n",
		"_drafts/about.md": "---\ntitle: About\npermalink: /about-v2\n---\n",
	})
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	eng := engine.New(store, engine.Options{Scan: scan.DefaultOptions()}, logger, nil)
	return New(contentservice.NewService(eng, nil, logger), "test")
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so handlers are called directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "validate_content":
		result, err = srv.validateContent(ctx, req)
	case "lookup_document":
		result, err = srv.lookupDocument(ctx, req)
	case "list_broken_links":
		result, err = srv.listBrokenLinks(ctx, req)
	case "list_revisions":
		result, err = srv.listRevisions(ctx, req)
	case "search_documents":
		result, err = srv.searchDocuments(ctx, req)
	case "get_backlinks":
		result, err = srv.getBacklinks(ctx, req)
	case "list_runs":
		result, err = srv.listRuns(ctx, req)
	case "get_run":
		result, err = srv.getRun(ctx, req)
	case "get_front_matter_contract":
		result, err = srv.getContract(ctx, req)
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

func TestValidateContent(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "validate_content", map[string]any{
		"path":    "new.md",
		"content": "---\ntitle: New\n---\n[home](/) [nowhere](/nowhere)\n",
	})
	var v contentservice.Validation
	if err := json.Unmarshal([]byte(resultText(r)), &v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v.Valid || len(v.BrokenLinks) != 1 || v.BrokenLinks[0] != "/nowhere" {
		t.Errorf("validation = %+v", v)
	}
}

func TestValidateContent_Malformed(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "validate_content", map[string]any{"content": "---\ntitle: open\n"})
	if !strings.Contains(resultText(r), `"malformed"`) {
		t.Errorf("result = %s", resultText(r))
	}
}

func TestValidateContent_MissingContent(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "validate_content", map[string]any{})
	if !r.IsError {
		t.Error("expected error for missing content")
	}
}

func TestLookupDocument(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "lookup_document", map[string]any{"permalink": "about/"})
	var d contentservice.DocumentDetail
	if err := json.Unmarshal([]byte(resultText(r)), &d); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if d.Permalink != "/about" || len(d.Backlinks) != 1 {
		t.Errorf("detail = %+v", d)
	}

	r = callTool(t, srv, "lookup_document", map[string]any{"permalink": "/nope"})
	if !r.IsError {
		t.Error("expected error for missing document")
	}
}

func TestListBrokenLinks(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "list_broken_links", nil)
	if got := resultText(r); got != "/ -> /gone" {
		t.Errorf("broken = %q", got)
	}
}

func TestListRevisions(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "list_revisions", nil)
	var rev contentservice.Revisions
	if err := json.Unmarshal([]byte(resultText(r)), &rev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rev.Revisions) != 1 || rev.Revisions[0].Superseded[0].Permalink != "/about-v2" {
		t.Errorf("revisions = %+v", rev)
	}
}

func TestSearchDocuments(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "search_documents", map[string]any{"query": "findable"})
	if !strings.Contains(resultText(r), `"/about"`) {
		t.Errorf("search = %s", resultText(r))
	}
}

func TestGetBacklinks(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "get_backlinks", map[string]any{"permalink": "/about"})
	if text := resultText(r); text != "/" {
		t.Errorf("backlinks = %q, want /", text)
	}

	r = callTool(t, srv, "get_backlinks", map[string]any{"permalink": "/gone"})
	if text := resultText(r); text != "/" {
		t.Errorf("backlinks to missing target = %q, want /", text)
	}

	r = callTool(t, srv, "get_backlinks", map[string]any{"permalink": "/lonely"})
	if text := resultText(r); text != "no backlinks found" {
		t.Errorf("backlinks = %q", text)
	}
}

func TestContract(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "get_front_matter_contract", nil)
	if !strings.Contains(resultText(r), "permalink") {
		t.Error("contract missing permalink rules")
	}

	contents, err := srv.readContractResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil || len(contents) != 1 {
		t.Fatalf("resource = %v, %v", contents, err)
	}
	if tc, ok := contents[0].(mcp.TextResourceContents); !ok || tc.URI != ContractURI {
		t.Errorf("resource contents = %#v", contents[0])
	}
}

func TestRunTools(t *testing.T) {
	srv := testServer(t)
	callTool(t, srv, "list_broken_links", nil)

	var runs []index.RunRow
	r := callTool(t, srv, "list_runs", map[string]any{"limit": 5})
	if err := json.Unmarshal([]byte(resultText(r)), &runs); err != nil || len(runs) != 1 {
		t.Fatalf("runs = %s, err = %v", resultText(r), err)
	}

	r = callTool(t, srv, "get_run", map[string]any{"run_id": runs[0].ID, "kind": "broken_link"})
	var detail contentservice.RunDetail
	if err := json.Unmarshal([]byte(resultText(r)), &detail); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if detail.Run.ID != runs[0].ID || len(detail.Issues) != 1 || detail.Issues[0].Detail != "/gone" {
		t.Errorf("detail = %+v", detail)
	}

	r = callTool(t, srv, "get_run", map[string]any{"run_id": "nope"})
	if !r.IsError || !strings.Contains(resultText(r), "not found") {
		t.Errorf("missing run = %s", resultText(r))
	}
}
