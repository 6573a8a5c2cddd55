package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/joescharf/magi/internal/models"
	"github.com/joescharf/magi/internal/review"
)

// DefaultGrace is how long past the review timeout the client waits for the
// server's answer.
const DefaultGrace = 30 * time.Second

// RemoteReviewer calls the code_review tool of a MAGI MCP server over SSE.
type RemoteReviewer struct {
	URL     string
	Version string
	// Grace extends the client-side wait beyond timeout; zero means DefaultGrace.
	Grace time.Duration
}

// Review connects to the server, runs one review and decodes its outcome.
// timeout <= 0 leaves the server's default in effect and bounds the wait by
// ctx alone. Otherwise the call gives up after timeout plus Grace and returns
// an error matching review.ErrTimeout.
func (r *RemoteReviewer) Review(ctx context.Context, userInput, code string, timeout time.Duration) (*models.ReviewOutcome, error) {
	if timeout <= 0 {
		return r.call(ctx, userInput, code, timeout)
	}
	limit := timeout + r.grace()
	callCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	out, err := r.call(callCtx, userInput, code, timeout)
	if err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: no answer from %s within %s", review.ErrTimeout, r.URL, limit)
	}
	return out, err
}

func (r *RemoteReviewer) grace() time.Duration {
	if r.Grace <= 0 {
		return DefaultGrace
	}
	return r.Grace
}

func (r *RemoteReviewer) call(ctx context.Context, userInput, code string, timeout time.Duration) (*models.ReviewOutcome, error) {
	c, err := client.NewSSEMCPClient(r.URL)
	if err != nil {
		return nil, fmt.Errorf("create mcp client: %w", err)
	}
	defer func() { _ = c.Close() }()

	if err := c.Start(ctx); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", r.URL, err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "magi", Version: r.version()}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		return nil, fmt.Errorf("initialize mcp session: %w", err)
	}

	args := map[string]any{
		"user_input": userInput,
		"code":       code,
	}
	if timeout > 0 {
		args["timeout_seconds"] = timeout.Seconds()
	}
	callReq := mcp.CallToolRequest{}
	callReq.Params.Name = ToolName
	callReq.Params.Arguments = args

	result, err := c.CallTool(ctx, callReq)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", ToolName, err)
	}
	return decodeOutcome(result)
}

func (r *RemoteReviewer) version() string {
	if r.Version == "" {
		return "dev"
	}
	return r.Version
}

// decodeOutcome turns a tool result into an outcome, or the tool's error.
func decodeOutcome(result *mcp.CallToolResult) (*models.ReviewOutcome, error) {
	text := toolText(result)
	if result.IsError {
		return nil, errors.New(text)
	}

	var out models.ReviewOutcome
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, fmt.Errorf("decode review outcome: %w", err)
	}
	out.RestoreNames()
	return &out, nil
}

func toolText(result *mcp.CallToolResult) string {
	var b strings.Builder
	for _, c := range result.Content {
		switch tc := c.(type) {
		case mcp.TextContent:
			b.WriteString(tc.Text)
		case *mcp.TextContent:
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}
