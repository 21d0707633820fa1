// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes storysync tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/storysync/internal/storyservice"
)

const storyFormatURI = "storysync://story-format"

// Server wraps the MCP server with storysync tools.
type Server struct {
	mcp *server.MCPServer
	svc *storyservice.Service
}

// New creates a new MCP server with all storysync tools registered.
func New(svc *storyservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"storysync",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("push_stories",
		mcp.WithDescription("Push every local user story to the GitHub project board. "+
			"Creates or updates one board item per story file and archives board items "+
			"whose story file no longer exists."),
	), s.pushStories)

	s.mcp.AddTool(mcp.NewTool("pull_stories",
		mcp.WithDescription("Pull every board item into the local story directory, "+
			"rewriting title and status while keeping other frontmatter and the body."),
	), s.pullStories)

	s.mcp.AddTool(mcp.NewTool("list_stories",
		mcp.WithDescription("List local user stories with their id, title and status."),
		mcp.WithString("format", mcp.Description("Output format: text (default, one tab-separated line per story) or json")),
	), s.listStories)

	s.mcp.AddTool(mcp.NewTool("read_story",
		mcp.WithDescription("Read the full Markdown content of a local user story."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Story id (file name without .md, e.g. story-1)")),
	), s.readStory)

	s.mcp.AddTool(mcp.NewTool("get_story_contract",
		mcp.WithDescription("Returns the story file format contract. "+
			"Call this before editing story files so they stay synchronizable."),
	), s.getStoryContract)

	s.mcp.AddResource(
		mcp.NewResource(storyFormatURI, "Story Format Contract",
			mcp.WithResourceDescription("Markdown story format understood by the synchronizer."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readStoryFormatResource,
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

func (s *Server) pushStories(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.svc.Push(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Synced %d/%d user stories (%d archived)",
		res.UpdatedStories, res.TotalStories, res.ArchivedStories)), nil
}

func (s *Server) pullStories(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.svc.Pull(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Pulled %d/%d user stories",
		res.WrittenStories, res.TotalItems)), nil
}

func (s *Server) listStories(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stories, err := s.svc.ListStories(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if req.GetString("format", "text") == "json" {
		return mcp.NewToolResultText(storiesJSON(stories)), nil
	}
	if len(stories) == 0 {
		return mcp.NewToolResultText("no stories found"), nil
	}
	var lines []string
	for _, st := range stories {
		lines = append(lines, fmt.Sprintf("%s\t%s\t%s", st.ID, st.Status, st.Title))
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) readStory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	story, err := s.svc.GetStory(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	return mcp.NewToolResultText(story.Content), nil
}

func (s *Server) getStoryContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(StoryFormatContract), nil
}

func (s *Server) readStoryFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      storyFormatURI,
			MIMEType: "text/markdown",
			Text:     StoryFormatContract,
		},
	}, nil
}

func storiesJSON(v any) string {
	out, _ := json.MarshalIndent(v, "", "  ")
	return string(out)
}
