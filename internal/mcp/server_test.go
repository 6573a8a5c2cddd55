package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/magi/internal/auth"
	"github.com/joescharf/magi/internal/gateway"
	"github.com/joescharf/magi/internal/gateway/gatewaytest"
	"github.com/joescharf/magi/internal/models"
	"github.com/joescharf/magi/internal/review"
)

// ---------------------------------------------------------------------------
// Mock implementations
// ---------------------------------------------------------------------------

// mockReviewer implements Reviewer for testing.
type mockReviewer struct {
	outcome *models.ReviewOutcome
	err     error

	calls      int
	gotInput   string
	gotCode    string
	gotTimeout time.Duration
}

func (m *mockReviewer) Review(_ context.Context, userInput, code string, timeout time.Duration) (*models.ReviewRecord, error) {
	m.calls++
	m.gotInput, m.gotCode, m.gotTimeout = userInput, code, timeout
	if m.err != nil {
		return &models.ReviewRecord{Status: models.RecordStatusError, Error: m.err.Error()}, m.err
	}
	return &models.ReviewRecord{Status: models.RecordStatusPassed, Outcome: m.outcome}, nil
}

func passingOutcome() *models.ReviewOutcome {
	return &models.ReviewOutcome{
		RequestID: "req-1",
		Reviews:   []string{"Reviewer melchior: POSITIVE"},
		Result:    models.DecisionPositive,
		Passed:    true,
		State: map[string]*models.AgentState{
			"melchior": {Content: "POSITIVE", Decision: models.DecisionPositive, Completed: true, Phase: models.AgentPhaseCompleted, Messages: []models.Fragment{}},
		},
		Code: "x = 1",
	}
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// callToolReq builds a mcpgo.CallToolRequest with the given name and arguments.
func callToolReq(name string, args map[string]any) mcpgo.CallToolRequest {
	return mcpgo.CallToolRequest{
		Params: mcpgo.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// resultText extracts the concatenated text from a CallToolResult.
func resultText(t *testing.T, result *mcpgo.CallToolResult) string {
	t.Helper()
	var b strings.Builder
	for _, c := range result.Content {
		tc, ok := c.(mcpgo.TextContent)
		if ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestNewServer(t *testing.T) {
	srv := NewServer(&mockReviewer{}, "")
	assert.Equal(t, "dev", srv.version)
	assert.NotNil(t, srv.MCPServer())
}

func TestCodeReviewTool_Definition(t *testing.T) {
	tool, _ := NewServer(&mockReviewer{}, "1.0.0").codeReviewTool()
	assert.Equal(t, "code_review", tool.Name)
	assert.Contains(t, tool.InputSchema.Properties, "code")
	assert.Contains(t, tool.InputSchema.Properties, "user_input")
	assert.Contains(t, tool.InputSchema.Properties, "timeout_seconds")
	assert.Equal(t, []string{"code"}, tool.InputSchema.Required)
}

func TestHandleCodeReview(t *testing.T) {
	rv := &mockReviewer{outcome: passingOutcome()}
	srv := NewServer(rv, "1.0.0")

	req := callToolReq(ToolName, map[string]any{
		"user_input":      "add two numbers",
		"code":            "x = 1",
		"timeout_seconds": 2.5,
	})
	result, err := srv.handleCodeReview(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, result.IsError)

	assert.Equal(t, "add two numbers", rv.gotInput)
	assert.Equal(t, "x = 1", rv.gotCode)
	assert.Equal(t, 2500*time.Millisecond, rv.gotTimeout)

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &out))
	assert.Equal(t, "POSITIVE", out["result"])
	assert.Equal(t, true, out["passed"])
	assert.Equal(t, "x = 1", out["code"])
	assert.Contains(t, out, "reviews")
	state := out["magi_state"].(map[string]any)
	mel := state["melchior"].(map[string]any)
	assert.Equal(t, "completed", mel["status"])
}

func TestHandleCodeReview_DefaultTimeout(t *testing.T) {
	rv := &mockReviewer{outcome: passingOutcome()}
	_, err := NewServer(rv, "").handleCodeReview(context.Background(), callToolReq(ToolName, map[string]any{"code": "x"}))
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), rv.gotTimeout)
	assert.Empty(t, rv.gotInput)
}

func TestHandleCodeReview_MissingCode(t *testing.T) {
	rv := &mockReviewer{}
	result, err := NewServer(rv, "").handleCodeReview(context.Background(), callToolReq(ToolName, map[string]any{"user_input": "x"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "code")
	assert.Equal(t, 0, rv.calls)
}

func TestHandleCodeReview_Timeout(t *testing.T) {
	rv := &mockReviewer{err: &review.TimeoutError{RequestID: "r", Timeout: time.Second, Total: 3}}
	result, err := NewServer(rv, "").handleCodeReview(context.Background(), callToolReq(ToolName, map[string]any{"code": "x"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "timed out")
}

func TestHandleCodeReview_SessionError(t *testing.T) {
	rv := &mockReviewer{err: &review.SessionError{Op: "open", Err: errors.New("connection refused")}}
	result, err := NewServer(rv, "").handleCodeReview(context.Background(), callToolReq(ToolName, map[string]any{"code": "x"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "connection refused")
}

func TestListenHost(t *testing.T) {
	assert.Equal(t, "127.0.0.1:8000", listenHost(":8000"))
	assert.Equal(t, "0.0.0.0:9000", listenHost("0.0.0.0:9000"))
}

func TestDecodeOutcome_Error(t *testing.T) {
	_, err := decodeOutcome(mcpgo.NewToolResultError("review failed: boom"))
	require.Error(t, err)
	assert.Equal(t, "review failed: boom", err.Error())

	_, err = decodeOutcome(mcpgo.NewToolResultText("not json"))
	assert.Error(t, err)
}

// ---------------------------------------------------------------------------
// Over SSE
// ---------------------------------------------------------------------------

func TestRemoteReviewer_RoundTrip(t *testing.T) {
	rv := &mockReviewer{outcome: passingOutcome()}
	ts := mcpserver.NewTestServer(NewServer(rv, "1.0.0").MCPServer())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	remote := &RemoteReviewer{URL: ts.URL + "/sse"}
	out, err := remote.Review(ctx, "ctx", "x = 1", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, out.Passed)
	assert.Equal(t, models.DecisionPositive, out.Result)
	require.Contains(t, out.State, "melchior")
	assert.Equal(t, "melchior", out.State["melchior"].Name)
	assert.Equal(t, 30*time.Second, rv.gotTimeout)
}

func TestRemoteReviewer_ToolError(t *testing.T) {
	rv := &mockReviewer{err: &review.TimeoutError{RequestID: "r", Timeout: time.Second, Total: 3}}
	ts := mcpserver.NewTestServer(NewServer(rv, "").MCPServer())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := (&RemoteReviewer{URL: ts.URL + "/sse"}).Review(ctx, "", "x", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

// The tool driving a real review against a fake gateway.
func TestHandleCodeReview_EndToEnd(t *testing.T) {
	gw := gatewaytest.NewServer(t, func(c *gatewaytest.Conn) {
		if _, err := c.ReadRequest(); err != nil {
			return
		}
		for _, a := range models.DefaultAgents() {
			_ = c.Reply(a.ID, "NEGATIVE", gateway.StatusCompleted)
		}
	})

	cfg := review.Config{
		GatewayURL:     gw.URL,
		Credentials:    auth.Credentials{AppID: "app", AppSecret: "secret"},
		Timeout:        5 * time.Second,
		Agents:         models.DefaultAgents(),
		PositiveMarker: "POSITIVE",
	}
	svc := review.NewService(review.NewOrchestrator(cfg), nil, nil)

	result, err := NewServer(svc, "").handleCodeReview(context.Background(), callToolReq(ToolName, map[string]any{"code": "x = 1"}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var out models.ReviewOutcome
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &out))
	assert.False(t, out.Passed)
	assert.Equal(t, models.DecisionNegative, out.Result)
	assert.Len(t, out.Reviews, 3)
}

// stalledReviewer never answers until released.
type stalledReviewer struct{ release chan struct{} }

func (s *stalledReviewer) Review(ctx context.Context, _, _ string, _ time.Duration) (*models.ReviewRecord, error) {
	select {
	case <-s.release:
	case <-ctx.Done():
	}
	return nil, errors.New("released")
}

func TestRemoteReviewer_ClientSideTimeout(t *testing.T) {
	rv := &stalledReviewer{release: make(chan struct{})}
	ts := mcpserver.NewTestServer(NewServer(rv, "").MCPServer())
	defer ts.Close()
	defer close(rv.release)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	remote := &RemoteReviewer{URL: ts.URL + "/sse", Grace: 50 * time.Millisecond}
	start := time.Now()
	_, err := remote.Review(ctx, "", "x", 100*time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, review.ErrTimeout)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRemoteReviewer_Grace(t *testing.T) {
	assert.Equal(t, DefaultGrace, (&RemoteReviewer{}).grace())
	assert.Equal(t, time.Second, (&RemoteReviewer{Grace: time.Second}).grace())
}
