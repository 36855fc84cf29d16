package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/ivy/internal/session"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Sessions Sessions
}

// NewMCPServer creates an MCP server exposing the intake conversation as tools.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"ivy",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("ivy guides a school student through a career-discovery conversation. "+
			"Start a session, relay each student message with process_turn, and show the reply."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("start_session",
			mcp.WithDescription("Open a new career-discovery session and return its id and greeting."),
		),
		mcpStartSession(deps),
	)

	s.AddTool(
		mcp.NewTool("process_turn",
			mcp.WithDescription("Send one student message to a session and return Ivy's reply and the updated profile."),
			mcp.WithString("session_id", mcp.Description("Session id from start_session"), mcp.Required()),
			mcp.WithString("text", mcp.Description("What the student said"), mcp.Required()),
		),
		mcpProcessTurn(deps),
	)

	s.AddTool(
		mcp.NewTool("get_profile",
			mcp.WithDescription("Return the profile gathered so far in a session."),
			mcp.WithString("session_id", mcp.Description("Session id from start_session"), mcp.Required()),
		),
		mcpGetProfile(deps),
	)

	s.AddTool(
		mcp.NewTool("end_session",
			mcp.WithDescription("End a session and discard everything gathered in it."),
			mcp.WithString("session_id", mcp.Description("Session id from start_session"), mcp.Required()),
		),
		mcpEndSession(deps),
	)

	return s
}

func mcpStartSession(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		started, err := deps.Sessions.Create(ctx)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to start session: %v", err)), nil
		}
		return mcpJSON(started)
	}
}

func mcpProcessTurn(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("session_id")
		if err != nil {
			return mcpError("session_id is required"), nil
		}
		text, err := req.RequireString("text")
		if err != nil {
			return mcpError("text is required"), nil
		}

		res, err := deps.Sessions.Turn(ctx, id, text)
		if err != nil {
			return mcpSessionError(err), nil
		}
		return mcpJSON(res)
	}
}

func mcpGetProfile(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("session_id")
		if err != nil {
			return mcpError("session_id is required"), nil
		}
		info, err := deps.Sessions.Get(ctx, id)
		if err != nil {
			return mcpSessionError(err), nil
		}
		return mcpJSON(info)
	}
}

func mcpEndSession(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("session_id")
		if err != nil {
			return mcpError("session_id is required"), nil
		}
		if err := deps.Sessions.Delete(ctx, id); err != nil {
			return mcpSessionError(err), nil
		}
		return mcpText(fmt.Sprintf("Ended session %s", id)), nil
	}
}

func mcpSessionError(err error) *mcp.CallToolResult {
	if errors.Is(err, session.ErrNotFound) {
		return mcpError("session not found")
	}
	return mcpError(err.Error())
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
