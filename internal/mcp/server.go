package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/magi/internal/models"
	"github.com/joescharf/magi/internal/review"
)

// ToolName is the name of the review tool.
const ToolName = "code_review"

// Reviewer runs one review and returns its history record.
type Reviewer interface {
	Review(ctx context.Context, userInput, code string, timeout time.Duration) (*models.ReviewRecord, error)
}

// Server exposes the review service as MCP tools.
type Server struct {
	reviewer Reviewer
	version  string
}

// NewServer creates the MCP server wrapper.
func NewServer(r Reviewer, version string) *Server {
	if version == "" {
		version = "dev"
	}
	return &Server{reviewer: r, version: version}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("magi", s.version, server.WithToolCapabilities(true))
	srv.AddTool(s.codeReviewTool())
	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	stdioServer := server.NewStdioServer(s.MCPServer())
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// ServeSSE serves the SSE transport on addr until ctx is cancelled. The event
// stream is at /sse. baseURL is the externally reachable origin advertised to
// clients; empty derives it from addr.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	if baseURL == "" {
		baseURL = "http://" + listenHost(addr)
	}
	sse := server.NewSSEServer(s.MCPServer(), server.WithBaseURL(baseURL))

	errCh := make(chan error, 1)
	go func() { errCh <- sse.Start(addr) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return sse.Shutdown(shutdownCtx)
	}
}

// listenHost turns ":8000" into "127.0.0.1:8000".
func listenHost(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "127.0.0.1" + addr
	}
	return addr
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// code_review
func (s *Server) codeReviewTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool(ToolName,
		mcp.WithDescription("Submit code to the three MAGI reviewers and return their majority decision. "+
			"Returns JSON with reviews, result (POSITIVE/NEGATIVE), passed, magi_state and code."),
		mcp.WithString("code", mcp.Required(), mcp.Description("Code to review")),
		mcp.WithString("user_input", mcp.Description("What the code is supposed to do")),
		mcp.WithNumber("timeout_seconds", mcp.Description("Review timeout in seconds (default from config)")),
	)
	return tool, s.handleCodeReview
}

func (s *Server) handleCodeReview(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := request.RequireString("code")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: code"), nil
	}
	userInput := request.GetString("user_input", "")

	var timeout time.Duration
	if secs := request.GetFloat("timeout_seconds", 0); secs > 0 {
		timeout = time.Duration(secs * float64(time.Second))
	}

	rec, err := s.reviewer.Review(ctx, userInput, code, timeout)
	if err != nil {
		if errors.Is(err, review.ErrTimeout) {
			return mcp.NewToolResultError(fmt.Sprintf("review timed out: %v", err)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("review failed: %v", err)), nil
	}

	data, err := json.Marshal(rec.Outcome)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal outcome: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
