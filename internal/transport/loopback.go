package transport

import "github.com/google/uuid"

// Loopback is an in-process transport for tests and local tooling. It is not
// safe for concurrent use; callers drive both ends from one goroutine.
type Loopback struct {
	cb      Callbacks
	clients map[SessionID]*LoopbackClient
}

// NewLoopback creates a loopback transport delivering events to cb.
func NewLoopback(cb Callbacks) *Loopback {
	return &Loopback{cb: cb, clients: map[SessionID]*LoopbackClient{}}
}

// Connect attaches a new client end and fires OnConnect.
func (l *Loopback) Connect() *LoopbackClient {
	c := &LoopbackClient{t: l, id: SessionID(uuid.NewString())}
	l.clients[c.id] = c
	l.cb.Connect(c.id)
	return c
}

// Send implements Transport.
func (l *Loopback) Send(id SessionID, payload []byte) error {
	c, ok := l.clients[id]
	if !ok {
		return ErrSessionNotFound
	}
	buf := make([]byte, len(payload))
	copy(buf, payload)
	c.received = append(c.received, buf)
	return nil
}

// Disconnect implements Transport.
func (l *Loopback) Disconnect(id SessionID, reason string) error {
	c, ok := l.clients[id]
	if !ok {
		return ErrSessionNotFound
	}
	c.closeReason = reason
	delete(l.clients, id)
	l.cb.Disconnect(id)
	return nil
}

// Close implements Transport.
func (l *Loopback) Close() error {
	for id := range l.clients {
		_ = l.Disconnect(id, "transport closed")
	}
	return nil
}

// LoopbackClient is the client end of one loopback session.
type LoopbackClient struct {
	t           *Loopback
	id          SessionID
	received    [][]byte
	closeReason string
}

// ID returns the session id the server sees for this client.
func (c *LoopbackClient) ID() SessionID { return c.id }

// Send delivers payload to the server end.
func (c *LoopbackClient) Send(payload []byte) {
	buf := make([]byte, len(payload))
	copy(buf, payload)
	c.t.cb.Receive(c.id, buf)
}

// Received returns every payload the server has sent, oldest first.
func (c *LoopbackClient) Received() [][]byte { return c.received }

// TakeReceived returns the pending payloads and clears the buffer.
func (c *LoopbackClient) TakeReceived() [][]byte {
	out := c.received
	c.received = nil
	return out
}

// CloseReason reports the reason given when the server disconnected this
// client, if it has.
func (c *LoopbackClient) CloseReason() string { return c.closeReason }

// Disconnect closes the session from the client side.
func (c *LoopbackClient) Disconnect() {
	if _, ok := c.t.clients[c.id]; ok {
		delete(c.t.clients, c.id)
		c.t.cb.Disconnect(c.id)
	}
}
