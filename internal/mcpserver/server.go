// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Quire validation tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/quire/internal/apperr"
	"github.com/starford/quire/internal/contentservice"
	"github.com/starford/quire/internal/permalink"
)

// ContractURI addresses the front-matter contract resource.
const ContractURI = "quire://front-matter"

// Server wraps the MCP server with Quire tools.
type Server struct {
	mcp *server.MCPServer
	svc *contentservice.Service
}

// New creates a new MCP server with all Quire tools registered.
func New(svc *contentservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Quire",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithRecovery(),
	)

	s.mcp.AddTool(mcp.NewTool("validate_content",
		mcp.WithDescription("Check a document against the current site without writing it: "+
			"front-matter parsing, permalink conflicts, broken internal links and related revisions. "+
			"Read the contract first via get_front_matter_contract or the "+ContractURI+" resource."),
		mcp.WithString("content", mcp.Required(), mcp.Description("Full file content including the --- front-matter block")),
		mcp.WithString("path", mcp.Description("Optional path relative to the content root (e.g. _posts/2024-01-01-hello.md)")),
	), s.validateContent)

	s.mcp.AddTool(mcp.NewTool("lookup_document",
		mcp.WithDescription("Return every document registered under a permalink, with its links and backlinks."),
		mcp.WithString("permalink", mcp.Required(), mcp.Description("Site permalink, e.g. /java/useful-classes")),
	), s.lookupDocument)

	s.mcp.AddTool(mcp.NewTool("list_broken_links",
		mcp.WithDescription("List internal links whose target has no published document."),
	), s.listBrokenLinks)

	s.mcp.AddTool(mcp.NewTool("list_revisions",
		mcp.WithDescription("List revision groups: drafts superseded by a published document, "+
			"ambiguous groups with several published documents and drafts never published."),
	), s.listRevisions)

	s.mcp.AddTool(mcp.NewTool("search_documents",
		mcp.WithDescription("Full-text search through document titles and bodies."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchDocuments)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find all documents that link to the specified permalink."),
		mcp.WithString("permalink", mcp.Required(), mcp.Description("Permalink to find backlinks for")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("list_runs",
		mcp.WithDescription("List recorded validation runs, newest first."),
		mcp.WithNumber("limit", mcp.Description("Max runs (default 20)")),
	), s.listRuns)

	s.mcp.AddTool(mcp.NewTool("get_run",
		mcp.WithDescription("Return one recorded run with its stored report and findings."),
		mcp.WithString("run_id", mcp.Required(), mcp.Description("Run ID as returned by list_runs")),
		mcp.WithString("kind", mcp.Description("Optional finding kind filter, e.g. broken_link")),
	), s.getRun)

	s.mcp.AddTool(mcp.NewTool("get_front_matter_contract",
		mcp.WithDescription("Returns the front-matter contract documents must follow. "+
			"Call this before writing content."),
	), s.getContract)

	// Resource: front-matter contract.
	s.mcp.AddResource(
		mcp.NewResource(ContractURI, "Front-matter Contract",
			mcp.WithResourceDescription("Recognized front-matter keys and site conventions."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
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

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) validateContent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path := req.GetString("path", "")
	v, err := s.svc.Validate(ctx, path, []byte(content))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(v)
}

func (s *Server) lookupDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("permalink")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	link := permalink.Normalize(raw)
	doc, err := s.svc.GetDocument(ctx, link)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("not found: %s", link)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(doc)
}

func (s *Server) listBrokenLinks(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	links, err := s.svc.BrokenLinks(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(links) == 0 {
		return mcp.NewToolResultText("no broken links"), nil
	}
	lines := make([]string, len(links))
	for i, l := range links {
		lines[i] = l.Source + " -> " + l.Target
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) listRevisions(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rev, err := s.svc.Revisions(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(rev)
}

func (s *Server) searchDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results)
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("permalink")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	bl, err := s.svc.Backlinks(ctx, permalink.Normalize(raw))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(bl) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	return mcp.NewToolResultText(strings.Join(bl, "\n")), nil
}

func (s *Server) listRuns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runs, err := s.svc.Runs(ctx, req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(runs)
}

func (s *Server) getRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("run_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	detail, err := s.svc.Run(ctx, id, req.GetString("kind", ""))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("not found: run %s", id)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(detail)
}

func (s *Server) getContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(FrontMatterContract), nil
}

func (s *Server) readContractResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      ContractURI,
			MIMEType: "text/markdown",
			Text:     FrontMatterContract,
		},
	}, nil
}
