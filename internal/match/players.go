package match

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/louisbranch/skirmish.space/internal/property"
	"github.com/louisbranch/skirmish.space/internal/transport"
)

// PlayerHandle is a generation-checked reference into the player arena. A
// handle held past its player's release resolves to nothing instead of a
// recycled slot.
type PlayerHandle struct {
	index      uint16
	generation uint32
}

// Index returns the player's slot index, the value clients see as their
// player index.
func (h PlayerHandle) Index() uint16 { return h.index }

// Player is one roster entry. Created and destroyed only by the session
// registry.
type Player struct {
	handle  PlayerHandle
	name    string
	session transport.SessionID
	layer   property.LayerIndex
	ready   bool
	entity  property.EntityID
	table   *lua.LTable
}

// Handle returns the player's arena handle.
func (p *Player) Handle() PlayerHandle { return p.handle }

// Name returns the display name from the auth handshake.
func (p *Player) Name() string { return p.name }

// Session returns the transport session the player is attached to.
func (p *Player) Session() transport.SessionID { return p.session }

// Layer returns the terrain layer the player is assigned to.
func (p *Player) Layer() property.LayerIndex { return p.layer }

// Ready reports whether the client has confirmed readiness.
func (p *Player) Ready() bool { return p.ready }

// Entity returns the id of the entity the player controls, or zero.
func (p *Player) Entity() property.EntityID { return p.entity }

// ScriptTable returns the player's script-facing table.
func (p *Player) ScriptTable() *lua.LTable { return p.table }

type playerSlot struct {
	player     *Player
	generation uint32
}

// playerArena stores players in index-addressed slots. Freed slots are
// reused with a bumped generation so stale handles cannot alias a new
// player.
type playerArena struct {
	slots []playerSlot
	free  []uint16
	count int
}

func (a *playerArena) alloc(name string, session transport.SessionID) *Player {
	var index uint16
	if n := len(a.free); n > 0 {
		index = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		index = uint16(len(a.slots))
		a.slots = append(a.slots, playerSlot{})
	}
	slot := &a.slots[index]
	p := &Player{
		handle:  PlayerHandle{index: index, generation: slot.generation},
		name:    name,
		session: session,
	}
	slot.player = p
	a.count++
	return p
}

func (a *playerArena) resolve(h PlayerHandle) (*Player, bool) {
	if int(h.index) >= len(a.slots) {
		return nil, false
	}
	slot := &a.slots[h.index]
	if slot.player == nil || slot.generation != h.generation {
		return nil, false
	}
	return slot.player, true
}

// release frees the handle's slot. Releasing an unknown or stale handle is a
// no-op.
func (a *playerArena) release(h PlayerHandle) bool {
	if _, ok := a.resolve(h); !ok {
		return false
	}
	slot := &a.slots[h.index]
	slot.player = nil
	slot.generation++
	a.free = append(a.free, h.index)
	a.count--
	return true
}

// snapshot returns the live roster in slot order. The returned slice is
// stable for one tick's traversal regardless of joins and leaves requested
// while iterating.
func (a *playerArena) snapshot() []*Player {
	out := make([]*Player, 0, a.count)
	for i := range a.slots {
		if p := a.slots[i].player; p != nil {
			out = append(out, p)
		}
	}
	return out
}
