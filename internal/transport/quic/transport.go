// Package quic provides the QUIC-backed transport for hosted matches.
//
// Each client connection carries one bidirectional stream with
// length-prefixed packets. Session ids are fresh UUIDs per connection.
package quic

import (
	"context"
	"crypto/tls"
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/quic-go/quic-go"

	"github.com/louisbranch/skirmish.space/internal/transport"
)

// maxFrameSize bounds a single packet frame. Oversized frames disconnect the
// sender.
const maxFrameSize = 1 << 20

const (
	codeNormalClose   quic.ApplicationErrorCode = 0x0
	codeProtocolAbuse quic.ApplicationErrorCode = 0xbad
)

// Config carries the listener settings.
type Config struct {
	Addr string
	TLS  *tls.Config
	QUIC *quic.Config
	Log  *log.Logger
}

type client struct {
	id      transport.SessionID
	conn    quic.Connection
	stream  quic.Stream
	writeMu sync.Mutex
}

// Transport is a QUIC listener implementing transport.Transport. Callbacks
// fire on transport goroutines.
type Transport struct {
	listener *quic.Listener
	cb       transport.Callbacks
	log      *log.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	clients map[transport.SessionID]*client
}

// Listen starts a QUIC listener on cfg.Addr and begins accepting clients.
func Listen(cfg Config, cb transport.Callbacks) (*Transport, error) {
	listener, err := quic.ListenAddr(cfg.Addr, cfg.TLS, cfg.QUIC)
	if err != nil {
		return nil, fmt.Errorf("quic listen %s: %w", cfg.Addr, err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t := &Transport{
		listener: listener,
		cb:       cb,
		log:      cfg.Log,
		ctx:      ctx,
		cancel:   cancel,
		clients:  map[transport.SessionID]*client{},
	}
	t.wg.Add(1)
	go t.acceptLoop()
	return t, nil
}

// Addr returns the listener address, with the ephemeral port resolved.
func (t *Transport) Addr() net.Addr { return t.listener.Addr() }

func (t *Transport) acceptLoop() {
	defer t.wg.Done()
	for {
		conn, err := t.listener.Accept(t.ctx)
		if err != nil {
			select {
			case <-t.ctx.Done():
				return
			default:
				t.log.Printf("accept connection: %v", err)
				continue
			}
		}
		t.wg.Add(1)
		go t.handleConnection(conn)
	}
}

// handleConnection waits for the client's packet stream, registers the
// session, and pumps incoming frames until the connection dies.
func (t *Transport) handleConnection(conn quic.Connection) {
	defer t.wg.Done()
	stream, err := conn.AcceptStream(t.ctx)
	if err != nil {
		_ = conn.CloseWithError(codeNormalClose, "no packet stream")
		return
	}
	c := &client{
		id:     transport.SessionID(uuid.NewString()),
		conn:   conn,
		stream: stream,
	}
	t.mu.Lock()
	t.clients[c.id] = c
	t.mu.Unlock()
	t.cb.Connect(c.id)

	t.readLoop(c)
}

func (t *Transport) readLoop(c *client) {
	defer t.drop(c.id, codeNormalClose, "")
	var header [4]byte
	for {
		if _, err := io.ReadFull(c.stream, header[:]); err != nil {
			return
		}
		length := binary.LittleEndian.Uint32(header[:])
		if length > maxFrameSize {
			t.log.Printf("session %s: frame of %d bytes exceeds limit", c.id, length)
			t.drop(c.id, codeProtocolAbuse, "frame too large")
			return
		}
		payload := make([]byte, length)
		if _, err := io.ReadFull(c.stream, payload); err != nil {
			return
		}
		t.cb.Receive(c.id, payload)
	}
}

// Send implements transport.Transport.
func (t *Transport) Send(id transport.SessionID, payload []byte) error {
	t.mu.RLock()
	c, ok := t.clients[id]
	t.mu.RUnlock()
	if !ok {
		return transport.ErrSessionNotFound
	}
	frame := make([]byte, 4+len(payload))
	binary.LittleEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[4:], payload)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.stream.Write(frame); err != nil {
		return fmt.Errorf("send to %s: %w", id, err)
	}
	return nil
}

// Disconnect implements transport.Transport.
func (t *Transport) Disconnect(id transport.SessionID, reason string) error {
	if !t.drop(id, codeProtocolAbuse, reason) {
		return transport.ErrSessionNotFound
	}
	return nil
}

// drop removes the session and closes its connection. It reports whether the
// session was still tracked, and fires OnDisconnect only for the goroutine
// that actually removed it.
func (t *Transport) drop(id transport.SessionID, code quic.ApplicationErrorCode, reason string) bool {
	t.mu.Lock()
	c, ok := t.clients[id]
	if ok {
		delete(t.clients, id)
	}
	t.mu.Unlock()
	if !ok {
		return false
	}
	_ = c.conn.CloseWithError(code, reason)
	t.cb.Disconnect(id)
	return true
}

// Close implements transport.Transport.
func (t *Transport) Close() error {
	t.cancel()
	err := t.listener.Close()
	t.mu.Lock()
	clients := make([]*client, 0, len(t.clients))
	for _, c := range t.clients {
		clients = append(clients, c)
	}
	t.mu.Unlock()
	for _, c := range clients {
		t.drop(c.id, codeNormalClose, "server shutdown")
	}
	t.wg.Wait()
	return err
}
