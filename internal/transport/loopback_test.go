package transport

import "testing"

func TestLoopbackDelivery(t *testing.T) {
	var events []string
	var got []byte
	l := NewLoopback(Callbacks{
		OnConnect:    func(id SessionID) { events = append(events, "connect") },
		OnDisconnect: func(id SessionID) { events = append(events, "disconnect") },
		OnReceive:    func(id SessionID, payload []byte) { got = payload },
	})
	c := l.Connect()
	c.Send([]byte("ping"))
	if string(got) != "ping" {
		t.Fatalf("server received %q", got)
	}
	if err := l.Send(c.ID(), []byte("pong")); err != nil {
		t.Fatalf("send: %v", err)
	}
	if recv := c.TakeReceived(); len(recv) != 1 || string(recv[0]) != "pong" {
		t.Fatalf("client received %q", recv)
	}
	if len(c.Received()) != 0 {
		t.Fatal("TakeReceived did not clear the buffer")
	}
	if err := l.Disconnect(c.ID(), "bye"); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if c.CloseReason() != "bye" {
		t.Fatalf("close reason %q", c.CloseReason())
	}
	if err := l.Send(c.ID(), nil); err != ErrSessionNotFound {
		t.Fatalf("send after disconnect: %v", err)
	}
	if len(events) != 2 || events[0] != "connect" || events[1] != "disconnect" {
		t.Fatalf("events: %v", events)
	}
}

func TestLoopbackCloseDisconnectsAll(t *testing.T) {
	var disconnects int
	l := NewLoopback(Callbacks{OnDisconnect: func(SessionID) { disconnects++ }})
	a := l.Connect()
	b := l.Connect()
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if disconnects != 2 {
		t.Fatalf("want 2 disconnects, got %d", disconnects)
	}
	if a.CloseReason() == "" || b.CloseReason() == "" {
		t.Fatal("close reason not recorded")
	}
}
