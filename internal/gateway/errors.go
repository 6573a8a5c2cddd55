package gateway

import (
	"errors"
	"fmt"
)

// ErrEndOfStream is returned by Receive when the gateway closed the channel
// cleanly.
var ErrEndOfStream = errors.New("gateway closed the connection")

// ErrClosed is returned when using a session after Close.
var ErrClosed = errors.New("session closed")

// ConnectionError reports a failure to establish the gateway channel.
type ConnectionError struct {
	URL    string
	Status int // HTTP status of a rejected handshake, 0 if none
	Err    error
}

func (e *ConnectionError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("connect %s: handshake rejected (HTTP %d): %v", e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("connect %s: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// SendError reports a failed write on an open or closed session.
type SendError struct {
	Err error
}

func (e *SendError) Error() string { return "send: " + e.Err.Error() }

func (e *SendError) Unwrap() error { return e.Err }

// ReceiveError reports an abnormal read failure.
type ReceiveError struct {
	Err error
}

func (e *ReceiveError) Error() string { return "receive: " + e.Err.Error() }

func (e *ReceiveError) Unwrap() error { return e.Err }
