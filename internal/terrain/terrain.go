// Package terrain holds the layered world state of one match.
//
// A Terrain owns an ordered set of layers built from the compiled map. Each
// layer carries its tile grid and the live entities on it. Spawns and kills
// requested while a tick is running are deferred and applied at the next
// layer advance, so scripted callbacks never observe a half-mutated entity
// set.
package terrain

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"
	lua "github.com/yuin/gopher-lua"

	"github.com/louisbranch/skirmish.space/internal/mapfile"
	"github.com/louisbranch/skirmish.space/internal/property"
)

// NoOwner marks an entity not controlled by any player.
const NoOwner = -1

// Entity is one live simulation object on a layer.
type Entity struct {
	id      property.EntityID
	element string
	layer   property.LayerIndex

	// Owner is the slot index of the controlling player, or NoOwner.
	Owner      int
	Properties property.Map

	home *Layer
	pos  mgl64.Vec2
	vel  mgl64.Vec2

	script  *lua.LTable
	inputFn func(lua.LValue)
	dead    bool
}

// ID returns the entity's match-unique identifier.
func (e *Entity) ID() property.EntityID { return e.id }

// Element returns the name of the scripted template the entity was spawned
// from.
func (e *Entity) Element() string { return e.element }

// Layer returns the index of the layer the entity lives on.
func (e *Entity) Layer() property.LayerIndex { return e.layer }

// Position returns the entity's world position.
func (e *Entity) Position() mgl64.Vec2 { return e.pos }

// SetPosition moves the entity to a world position.
func (e *Entity) SetPosition(p mgl64.Vec2) { e.pos = p }

// Velocity returns the entity's linear velocity.
func (e *Entity) Velocity() mgl64.Vec2 { return e.vel }

// SetVelocity replaces the entity's linear velocity.
func (e *Entity) SetVelocity(v mgl64.Vec2) { e.vel = v }

// Kill queues the entity for removal from its layer.
func (e *Entity) Kill() { e.home.Kill(e.id) }

// ScriptTable returns the entity's bound script handle, or nil.
func (e *Entity) ScriptTable() *lua.LTable { return e.script }

// SubscribeInputUpdate registers the callback input state changes are
// forwarded to.
func (e *Entity) SubscribeInputUpdate(fn func(lua.LValue)) { e.inputFn = fn }

// UpdateInput forwards a new input state to the entity's subscribed handler,
// if any.
func (e *Entity) UpdateInput(input lua.LValue) {
	if e.inputFn != nil {
		e.inputFn(input)
	}
}

// Spawn describes an entity about to be created on a layer. Owner must be
// NoOwner for entities no player controls.
type Spawn struct {
	Element    string
	Owner      int
	Position   mgl64.Vec2
	Properties property.Map
	Script     *lua.LTable
}

// Layer is one simulation stratum: a tile grid plus the entities on it. Its
// index within the terrain is its identity.
type Layer struct {
	terrain *Terrain
	index   property.LayerIndex
	width   uint16
	height  uint16
	tiles   []uint32

	entities []*Entity
	byID     map[property.EntityID]*Entity
	spawns   []*Entity
	kills    []property.EntityID
}

// Index returns the layer's position within the terrain.
func (l *Layer) Index() property.LayerIndex { return l.index }

// Width returns the tile grid width.
func (l *Layer) Width() uint16 { return l.width }

// Height returns the tile grid height.
func (l *Layer) Height() uint16 { return l.height }

// Tiles returns the layer's tile grid in row-major order. The caller must
// not mutate it.
func (l *Layer) Tiles() []uint32 { return l.tiles }

// Tile returns the tile at (x, y), or 0 when out of bounds.
func (l *Layer) Tile(x, y uint16) uint32 {
	if x >= l.width || y >= l.height {
		return 0
	}
	return l.tiles[int(y)*int(l.width)+int(x)]
}

// SetTile writes the tile at (x, y). Out-of-bounds writes are ignored.
func (l *Layer) SetTile(x, y uint16, tile uint32) {
	if x >= l.width || y >= l.height {
		return
	}
	l.tiles[int(y)*int(l.width)+int(x)] = tile
}

// Spawn queues an entity for creation on the layer. The entity receives its
// identifier immediately but only becomes visible to lookups and iteration
// at the next layer advance.
func (l *Layer) Spawn(s Spawn) *Entity {
	if s.Properties == nil {
		s.Properties = property.Map{}
	}
	e := &Entity{
		id:         l.terrain.nextEntityID(),
		element:    s.Element,
		layer:      l.index,
		Owner:      s.Owner,
		Properties: s.Properties,
		home:       l,
		pos:        s.Position,
		script:     s.Script,
	}
	l.spawns = append(l.spawns, e)
	return e
}

// Kill queues the entity for removal at the next layer advance. An entity
// still waiting in the spawn queue is dropped immediately and never becomes
// live.
func (l *Layer) Kill(id property.EntityID) {
	for i, e := range l.spawns {
		if e.id == id {
			l.spawns = append(l.spawns[:i], l.spawns[i+1:]...)
			return
		}
	}
	l.kills = append(l.kills, id)
}

// KillOwned removes every entity belonging to the given player slot,
// spawns still queued included.
func (l *Layer) KillOwned(owner int) {
	queued := l.spawns[:0]
	for _, e := range l.spawns {
		if e.Owner != owner {
			queued = append(queued, e)
		}
	}
	l.spawns = queued
	for _, e := range l.entities {
		if !e.dead && e.Owner == owner {
			l.kills = append(l.kills, e.id)
		}
	}
}

// Entity returns the live entity with the given id.
func (l *Layer) Entity(id property.EntityID) (*Entity, bool) {
	e, ok := l.byID[id]
	return e, ok
}

// ForEachEntity visits every live entity. Spawns and kills requested during
// iteration are deferred, so the visited set is stable for one pass.
func (l *Layer) ForEachEntity(fn func(*Entity)) {
	for _, e := range l.entities {
		if !e.dead {
			fn(e)
		}
	}
}

// Len reports the number of live entities on the layer.
func (l *Layer) Len() int { return len(l.entities) }

// advance applies the deferred spawn and kill lists, then integrates entity
// motion over dt.
func (l *Layer) advance(dt time.Duration) {
	for _, id := range l.kills {
		e, ok := l.byID[id]
		if !ok {
			continue
		}
		e.dead = true
		delete(l.byID, id)
		l.terrain.forget(id)
	}
	l.kills = l.kills[:0]
	live := l.entities[:0]
	for _, e := range l.entities {
		if !e.dead {
			live = append(live, e)
		}
	}
	l.entities = live

	for _, e := range l.spawns {
		l.entities = append(l.entities, e)
		l.byID[e.id] = e
		l.terrain.remember(e)
	}
	l.spawns = l.spawns[:0]

	secs := dt.Seconds()
	for _, e := range l.entities {
		e.pos = e.pos.Add(e.vel.Mul(secs))
	}
}

// Terrain is the full layered world of one match.
type Terrain struct {
	layers []*Layer
	nextID property.EntityID
	byID   map[property.EntityID]*Entity
}

// New builds a terrain from the compiled map's layer data. The tile grids
// are copied so the map value stays untouched.
func New(m *mapfile.Map) *Terrain {
	t := &Terrain{byID: map[property.EntityID]*Entity{}}
	for i, src := range m.Layers {
		tiles := make([]uint32, len(src.Tiles))
		copy(tiles, src.Tiles)
		t.layers = append(t.layers, &Layer{
			terrain: t,
			index:   property.LayerIndex(i),
			width:   src.Width,
			height:  src.Height,
			tiles:   tiles,
			byID:    map[property.EntityID]*Entity{},
		})
	}
	return t
}

// Layers returns the ordered layer list.
func (t *Terrain) Layers() []*Layer { return t.layers }

// Layer returns the layer at the given index.
func (t *Terrain) Layer(index property.LayerIndex) (*Layer, bool) {
	if int(index) >= len(t.layers) {
		return nil, false
	}
	return t.layers[index], true
}

// Entity resolves a live entity id anywhere on the terrain.
func (t *Terrain) Entity(id property.EntityID) (*Entity, bool) {
	e, ok := t.byID[id]
	return e, ok
}

// Update advances every layer exactly once, in index order. Layers have no
// cross-layer ordering dependency.
func (t *Terrain) Update(dt time.Duration) {
	for _, layer := range t.layers {
		layer.advance(dt)
	}
}

func (t *Terrain) nextEntityID() property.EntityID {
	t.nextID++
	return t.nextID
}

func (t *Terrain) remember(e *Entity) { t.byID[e.id] = e }

func (t *Terrain) forget(id property.EntityID) { delete(t.byID, id) }
