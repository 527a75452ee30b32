// Package transport abstracts packet delivery between the match server and
// its clients.
//
// The engine core only needs per-session sends, receive notifications, and
// connect/disconnect events. Implementations may invoke callbacks from their
// own goroutines; the match session registry queues incoming data and drains
// it at the tick boundary.
package transport

import "errors"

// ErrSessionNotFound reports a send to a session the transport no longer
// tracks.
var ErrSessionNotFound = errors.New("transport: session not found")

// SessionID identifies one connected client for the lifetime of its
// connection.
type SessionID string

// Callbacks receives transport events. Nil members are skipped.
type Callbacks struct {
	OnConnect    func(SessionID)
	OnDisconnect func(SessionID)
	OnReceive    func(SessionID, []byte)
}

// Connect invokes the OnConnect callback if set.
func (c Callbacks) Connect(id SessionID) {
	if c.OnConnect != nil {
		c.OnConnect(id)
	}
}

// Disconnect invokes the OnDisconnect callback if set.
func (c Callbacks) Disconnect(id SessionID) {
	if c.OnDisconnect != nil {
		c.OnDisconnect(id)
	}
}

// Receive invokes the OnReceive callback if set.
func (c Callbacks) Receive(id SessionID, payload []byte) {
	if c.OnReceive != nil {
		c.OnReceive(id, payload)
	}
}

// Transport delivers opaque packets to connected sessions.
type Transport interface {
	// Send delivers payload to the session, or ErrSessionNotFound.
	Send(id SessionID, payload []byte) error
	// Disconnect closes the session with a reason, notifying OnDisconnect.
	Disconnect(id SessionID, reason string) error
	// Close tears the transport down, disconnecting every session.
	Close() error
}
