// Package gatewaytest provides an in-process fake review gateway for tests.
package gatewaytest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/joescharf/magi/internal/gateway"
)

// Handler scripts the gateway side of one connection. When it returns
// without closing, the connection stays open and silent until the client
// hangs up.
type Handler func(c *Conn)

// Server is a fake gateway listening on a local WebSocket endpoint.
type Server struct {
	srv *httptest.Server

	// URL is the ws:// base URL clients should dial.
	URL string

	mu      sync.Mutex
	queries []url.Values
}

// NewServer starts a fake gateway that runs h for every connection.
func NewServer(t testing.TB, h Handler) *Server {
	t.Helper()
	s := &Server{}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.queries = append(s.queries, r.URL.Query())
		s.mu.Unlock()

		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := &Conn{ws: ws}
		h(c)
		if !c.done {
			c.drain()
		}
	}))
	s.URL = "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/ws"
	t.Cleanup(s.srv.Close)
	return s
}

// Queries returns the query parameters of every connection accepted so far.
func (s *Server) Queries() []url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]url.Values, len(s.queries))
	copy(out, s.queries)
	return out
}

// Conn is the gateway side of one client connection.
type Conn struct {
	ws   *websocket.Conn
	done bool

	// Request is the last judgement request read by ReadRequest.
	Request gateway.JudgementRequest
}

// ReadRequest reads and decodes the client's judgement request.
func (c *Conn) ReadRequest() (gateway.JudgementRequest, error) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return gateway.JudgementRequest{}, err
	}
	var req gateway.JudgementRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return gateway.JudgementRequest{}, err
	}
	c.Request = req
	return req, nil
}

// Reply sends an agent_response for the last request read.
func (c *Conn) Reply(agentID, content, status string) error {
	return c.ReplyFor(c.Request.RequestID, agentID, content, status)
}

// ReplyFor sends an agent_response carrying an explicit request id.
func (c *Conn) ReplyFor(requestID, agentID, content, status string) error {
	return c.ws.WriteJSON(gateway.AgentResponse{
		Type:      gateway.TypeAgentResponse,
		RequestID: requestID,
		AgentID:   agentID,
		Content:   content,
		Status:    status,
	})
}

// WriteRaw sends a text frame verbatim.
func (c *Conn) WriteRaw(data string) error {
	return c.ws.WriteMessage(websocket.TextMessage, []byte(data))
}

// CloseNormal performs a clean close handshake.
func (c *Conn) CloseNormal() {
	c.done = true
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
		time.Now().Add(time.Second))
	// Wait for the client's close reply before tearing down.
	c.drain()
}

// Drop tears the TCP connection down without a close frame.
func (c *Conn) Drop() {
	c.done = true
	_ = c.ws.UnderlyingConn().Close()
}

// drain reads until the client goes away, then closes the socket.
func (c *Conn) drain() {
	_ = c.ws.SetReadDeadline(time.Now().Add(10 * time.Second))
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			break
		}
	}
	_ = c.ws.Close()
}
