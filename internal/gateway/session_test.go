package gateway_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/magi/internal/gateway"
	"github.com/joescharf/magi/internal/gateway/gatewaytest"
)

func openSession(t *testing.T, url string) *gateway.Session {
	t.Helper()
	s, err := gateway.Open(context.Background(), url, "app-1", "abcdef0123", gateway.Options{HandshakeTimeout: 2 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestConnectURL(t *testing.T) {
	got, err := gateway.ConnectURL("ws://127.0.0.1:8000/ws", "app-1", "abcdef0123")
	require.NoError(t, err)
	assert.Equal(t, "ws://127.0.0.1:8000/ws?appid=app-1&token=abcdef0123", got)
}

func TestConnectURL_KeepsExistingQuery(t *testing.T) {
	got, err := gateway.ConnectURL("wss://gw.example.com/ws?region=eu", "a", "t")
	require.NoError(t, err)
	assert.Contains(t, got, "region=eu")
	assert.Contains(t, got, "appid=a")
	assert.Contains(t, got, "token=t")
}

func TestOpen_SendsCredentials(t *testing.T) {
	srv := gatewaytest.NewServer(t, func(c *gatewaytest.Conn) {})
	openSession(t, srv.URL)

	queries := srv.Queries()
	require.Len(t, queries, 1)
	assert.Equal(t, "app-1", queries[0].Get("appid"))
	assert.Equal(t, "abcdef0123", queries[0].Get("token"))
}

func TestOpen_Unreachable(t *testing.T) {
	_, err := gateway.Open(context.Background(), "ws://127.0.0.1:1/ws", "a", "t", gateway.Options{HandshakeTimeout: time.Second})
	require.Error(t, err)

	var cerr *gateway.ConnectionError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "ws://127.0.0.1:1/ws", cerr.URL)
}

func TestSendReceive_RoundTrip(t *testing.T) {
	got := make(chan gateway.JudgementRequest, 1)
	srv := gatewaytest.NewServer(t, func(c *gatewaytest.Conn) {
		req, err := c.ReadRequest()
		if err != nil {
			return
		}
		got <- req
		_ = c.Reply("agent-a", "looks POSITIVE", gateway.StatusCompleted)
	})
	s := openSession(t, srv.URL)

	ctx := context.Background()
	req := gateway.JudgementRequest{
		Type:      gateway.TypeAgentJudgement,
		RequestID: "req-1",
		Request:   "<user_input>\nx\n</user_input>",
		Timestamp: 1700000000.5,
		Agents:    []gateway.AgentRef{{AgentID: "agent-a"}},
	}
	require.NoError(t, s.Send(ctx, req))

	msg, err := s.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, gateway.TypeAgentResponse, msg.Type)
	assert.Equal(t, "req-1", msg.RequestID)
	assert.Equal(t, "agent-a", msg.AgentID)
	assert.Equal(t, "looks POSITIVE", msg.Content)
	assert.True(t, msg.Terminal())

	assert.Equal(t, req, <-got)
}

func TestReceive_SkipsMalformedFrames(t *testing.T) {
	srv := gatewaytest.NewServer(t, func(c *gatewaytest.Conn) {
		_ = c.WriteRaw("not json")
		_ = c.ReplyFor("req-1", "agent-a", "hi", gateway.StatusStreaming)
	})
	s := openSession(t, srv.URL)

	msg, err := s.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hi", msg.Content)
	assert.False(t, msg.Terminal())
}

func TestReceive_CleanCloseIsEndOfStream(t *testing.T) {
	srv := gatewaytest.NewServer(t, func(c *gatewaytest.Conn) {
		c.CloseNormal()
	})
	s := openSession(t, srv.URL)

	_, err := s.Receive(context.Background())
	assert.ErrorIs(t, err, gateway.ErrEndOfStream)
}

func TestReceive_DropIsReceiveError(t *testing.T) {
	srv := gatewaytest.NewServer(t, func(c *gatewaytest.Conn) {
		c.Drop()
	})
	s := openSession(t, srv.URL)

	_, err := s.Receive(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, gateway.ErrEndOfStream)

	var rerr *gateway.ReceiveError
	assert.True(t, errors.As(err, &rerr))
}

func TestReceive_ContextDeadline(t *testing.T) {
	srv := gatewaytest.NewServer(t, func(c *gatewaytest.Conn) {})
	s := openSession(t, srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := s.Receive(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestClose_Idempotent(t *testing.T) {
	srv := gatewaytest.NewServer(t, func(c *gatewaytest.Conn) {})
	s, err := gateway.Open(context.Background(), srv.URL, "a", "t", gateway.Options{})
	require.NoError(t, err)

	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}

func TestSend_AfterClose(t *testing.T) {
	srv := gatewaytest.NewServer(t, func(c *gatewaytest.Conn) {})
	s := openSession(t, srv.URL)
	require.NoError(t, s.Close())

	err := s.Send(context.Background(), map[string]string{"type": "ping"})
	var serr *gateway.SendError
	require.True(t, errors.As(err, &serr))
	assert.ErrorIs(t, err, gateway.ErrClosed)
}

func TestReceive_AfterClose(t *testing.T) {
	srv := gatewaytest.NewServer(t, func(c *gatewaytest.Conn) {})
	s := openSession(t, srv.URL)
	require.NoError(t, s.Close())

	_, err := s.Receive(context.Background())
	assert.ErrorIs(t, err, gateway.ErrClosed)
}
