// Package gateway owns the authenticated WebSocket channel to the review
// gateway. One Session serves exactly one review.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// closeGrace bounds the close handshake write.
const closeGrace = time.Second

// Options tunes how a session is dialed.
type Options struct {
	HandshakeTimeout time.Duration
}

// Session is one authenticated, message-oriented gateway connection.
type Session struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	closeOnce sync.Once
	closeErr  error
	mu        sync.Mutex
	closed    bool
}

// ConnectURL returns baseURL with the appid and token query parameters set.
func ConnectURL(baseURL, appID, token string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse gateway url: %w", err)
	}
	q := u.Query()
	q.Set("appid", appID)
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Open dials the gateway at baseURL authenticated as appID with token.
func Open(ctx context.Context, baseURL, appID, token string, opts Options) (*Session, error) {
	target, err := ConnectURL(baseURL, appID, token)
	if err != nil {
		return nil, &ConnectionError{URL: baseURL, Err: err}
	}

	dialer := websocket.Dialer{HandshakeTimeout: opts.HandshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, target, nil)
	if err != nil {
		cerr := &ConnectionError{URL: baseURL, Err: err}
		if resp != nil {
			cerr.Status = resp.StatusCode
			_ = resp.Body.Close()
		}
		return nil, cerr
	}

	slog.Debug("gateway_connected", "url", baseURL)
	return &Session{conn: conn}, nil
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Send encodes v as JSON and writes it as a single text frame.
func (s *Session) Send(ctx context.Context, v any) error {
	if s.isClosed() {
		return &SendError{Err: ErrClosed}
	}

	data, err := json.Marshal(v)
	if err != nil {
		return &SendError{Err: fmt.Errorf("encode message: %w", err)}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	deadline, _ := ctx.Deadline()
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return &SendError{Err: err}
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return &SendError{Err: err}
	}
	return nil
}

// Receive blocks until the next agent message arrives, the gateway closes the
// channel (ErrEndOfStream), the read fails (*ReceiveError) or ctx is done
// (ctx.Err()). Frames that do not decode are logged and skipped.
func (s *Session) Receive(ctx context.Context) (*AgentResponse, error) {
	if s.isClosed() {
		return nil, &ReceiveError{Err: ErrClosed}
	}

	// Clear any deadline left by a previous call before arming this one.
	if err := s.conn.SetReadDeadline(time.Time{}); err != nil {
		return nil, &ReceiveError{Err: err}
	}
	stop := context.AfterFunc(ctx, func() {
		_ = s.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			var ce *websocket.CloseError
			if errors.As(err, &ce) && ce.Code != websocket.CloseAbnormalClosure {
				slog.Debug("gateway_closed", "code", ce.Code, "text", ce.Text)
				return nil, ErrEndOfStream
			}
			return nil, &ReceiveError{Err: err}
		}

		var msg AgentResponse
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("gateway_malformed_frame", "error", err, "bytes", len(data))
			continue
		}
		return &msg, nil
	}
}

// Close releases the connection. It is safe to call more than once and after
// a failed Send or Receive; only the first call does any work.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		// WriteControl may run concurrently with a blocked Send.
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeGrace))

		s.closeErr = s.conn.Close()
		slog.Debug("gateway_session_closed")
	})
	return s.closeErr
}
