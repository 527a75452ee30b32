package match

import (
	"sync"

	"github.com/louisbranch/skirmish.space/internal/content"
	"github.com/louisbranch/skirmish.space/internal/errors"
	"github.com/louisbranch/skirmish.space/internal/protocol"
	"github.com/louisbranch/skirmish.space/internal/transport"
)

type sessionState int

const (
	// stateConnecting covers the window between the transport accepting a
	// connection and a valid Auth packet. Authenticated sessions hold a
	// roster slot and may download content; joined sessions have reported
	// Ready and may send input.
	stateConnecting sessionState = iota
	stateAuthenticated
	stateJoined
)

type session struct {
	id     transport.SessionID
	state  sessionState
	handle PlayerHandle
}

type eventKind int

const (
	eventConnect eventKind = iota
	eventDisconnect
	eventPacket
)

type sessionEvent struct {
	kind    eventKind
	session transport.SessionID
	payload []byte
}

// Sessions bridges the transport's goroutines to the tick goroutine. The
// callbacks only append to a queue; all session and match state mutates
// inside drain, which the match calls at the top of every tick.
type Sessions struct {
	match         *Match
	playerElement string
	trans         transport.Transport

	mu      sync.Mutex
	pending []sessionEvent

	states map[transport.SessionID]*session
}

func newSessions(m *Match, playerElement string) *Sessions {
	return &Sessions{
		match:         m,
		playerElement: playerElement,
		states:        make(map[transport.SessionID]*session),
	}
}

func (s *Sessions) callbacks() transport.Callbacks {
	return transport.Callbacks{
		OnConnect: func(id transport.SessionID) {
			s.enqueue(sessionEvent{kind: eventConnect, session: id})
		},
		OnDisconnect: func(id transport.SessionID) {
			s.enqueue(sessionEvent{kind: eventDisconnect, session: id})
		},
		OnReceive: func(id transport.SessionID, payload []byte) {
			buf := make([]byte, len(payload))
			copy(buf, payload)
			s.enqueue(sessionEvent{kind: eventPacket, session: id, payload: buf})
		},
	}
}

func (s *Sessions) enqueue(ev sessionEvent) {
	s.mu.Lock()
	s.pending = append(s.pending, ev)
	s.mu.Unlock()
}

// drain applies every queued transport event in arrival order. Runs on the
// tick goroutine only.
func (s *Sessions) drain() {
	s.mu.Lock()
	events := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, ev := range events {
		switch ev.kind {
		case eventConnect:
			s.states[ev.session] = &session{id: ev.session}
		case eventDisconnect:
			s.remove(ev.session)
		case eventPacket:
			sess, ok := s.states[ev.session]
			if !ok {
				continue
			}
			s.handlePacket(sess, ev.payload)
		}
	}
}

// Count reports the number of tracked sessions, joined or not.
func (s *Sessions) Count() int { return len(s.states) }

func (s *Sessions) remove(id transport.SessionID) {
	sess, ok := s.states[id]
	if !ok {
		return
	}
	delete(s.states, id)
	if sess.state != stateConnecting {
		s.match.Leave(sess.handle)
	}
}

// kick tears a session down for a protocol violation. The session is
// removed before the transport disconnect, so the resulting disconnect
// event drains as a no-op.
func (s *Sessions) kick(sess *session, reason string) {
	s.match.log.Printf("session %s kicked: %s", sess.id, reason)
	s.remove(sess.id)
	if s.trans != nil {
		if err := s.trans.Disconnect(sess.id, reason); err != nil {
			s.match.log.Printf("disconnect session %s: %v", sess.id, err)
		}
	}
}

func (s *Sessions) send(id transport.SessionID, p protocol.Packet) {
	if s.trans == nil {
		return
	}
	if err := s.trans.Send(id, protocol.Encode(p)); err != nil {
		s.match.log.Printf("send to session %s: %v", id, err)
	}
}

func (s *Sessions) closeAll(reason string) {
	for id, sess := range s.states {
		delete(s.states, id)
		if sess.state != stateConnecting {
			s.match.Leave(sess.handle)
		}
		if s.trans != nil {
			_ = s.trans.Disconnect(id, reason)
		}
	}
}

func (s *Sessions) handlePacket(sess *session, payload []byte) {
	packet, err := protocol.Decode(payload)
	if err != nil {
		s.kick(sess, "malformed packet")
		return
	}

	switch p := packet.(type) {
	case *protocol.Auth:
		if sess.state != stateConnecting {
			s.kick(sess, "duplicate auth")
			return
		}
		s.handleAuth(sess, p)
	case *protocol.DownloadAssetRequest:
		if sess.state == stateConnecting {
			s.kick(sess, "download before auth")
			return
		}
		data, err := s.match.assets.Content(p.Path)
		if errors.CodeOf(err) == errors.CodeContentMissingPath {
			s.kick(sess, "requested unlisted asset "+p.Path)
			return
		}
		if err != nil {
			s.match.log.Printf("read asset %s: %v", p.Path, err)
			return
		}
		s.send(sess.id, &protocol.DownloadAssetResponse{Path: p.Path, Content: data})
	case *protocol.DownloadScriptRequest:
		if sess.state == stateConnecting {
			s.kick(sess, "download before auth")
			return
		}
		data, ok := s.match.scripts.Content(p.Path)
		if !ok {
			s.kick(sess, "requested unlisted script "+p.Path)
			return
		}
		s.send(sess.id, &protocol.DownloadScriptResponse{Path: p.Path, Content: data})
	case *protocol.Ready:
		if sess.state != stateAuthenticated {
			s.kick(sess, "ready out of order")
			return
		}
		sess.state = stateJoined
		s.match.Ready(sess.handle)
		if s.playerElement != "" {
			if _, err := s.match.SpawnPlayerEntity(sess.handle, s.playerElement); err != nil {
				s.match.log.Printf("spawn avatar: %v", err)
			}
		}
	case *protocol.PlayerInput:
		if sess.state != stateJoined {
			s.kick(sess, "input before ready")
			return
		}
		player, ok := s.match.Player(sess.handle)
		if !ok {
			return
		}
		s.match.applyInput(player, p)
	case *protocol.ScriptPacket:
		if sess.state != stateJoined {
			s.kick(sess, "script packet before ready")
			return
		}
		name, err := s.match.strings.GetString(p.NameIndex)
		if err != nil {
			s.kick(sess, "unknown script packet name")
			return
		}
		s.match.handleScriptPacket(sess.handle, name, p.Content)
	default:
		s.kick(sess, "unexpected packet from client")
	}
}

// handleAuth joins the player and streams the initial sync sequence: the
// assigned slot, the match snapshot, both content manifests, and the
// network string table.
func (s *Sessions) handleAuth(sess *session, auth *protocol.Auth) {
	player, err := s.match.Join(auth.PlayerName, sess.id)
	if err != nil {
		s.kick(sess, "match is full")
		return
	}
	sess.state = stateAuthenticated
	sess.handle = player.Handle()

	s.send(sess.id, &protocol.AuthSuccess{PlayerIndex: player.Handle().Index()})
	s.send(sess.id, s.match.BuildMatchData())
	s.send(sess.id, &protocol.AssetList{Assets: assetEntries(s.match.assets.List())})
	s.send(sess.id, &protocol.ScriptList{Scripts: scriptEntries(s.match.scripts.List())})
	s.send(sess.id, &protocol.NetworkStrings{Strings: s.match.strings.Strings()})
}

func assetEntries(entries []content.AssetEntry) []protocol.AssetEntry {
	out := make([]protocol.AssetEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, protocol.AssetEntry{Path: e.Path, Size: e.Size, Checksum: e.Checksum})
	}
	return out
}

func scriptEntries(entries []content.ScriptEntry) []protocol.ScriptEntry {
	out := make([]protocol.ScriptEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, protocol.ScriptEntry{Path: e.Path, Checksum: e.Checksum})
	}
	return out
}
