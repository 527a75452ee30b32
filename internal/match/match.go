// Package match hosts one authoritative game simulation: the fixed-tick
// loop, the player roster, content synchronization, and the session registry
// bridging the transport to the single tick goroutine.
package match

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/louisbranch/skirmish.space/internal/content"
	"github.com/louisbranch/skirmish.space/internal/errors"
	"github.com/louisbranch/skirmish.space/internal/mapfile"
	"github.com/louisbranch/skirmish.space/internal/platform/id"
	"github.com/louisbranch/skirmish.space/internal/property"
	"github.com/louisbranch/skirmish.space/internal/protocol"
	"github.com/louisbranch/skirmish.space/internal/scripting"
	"github.com/louisbranch/skirmish.space/internal/terrain"
	"github.com/louisbranch/skirmish.space/internal/transport"
)

// Config describes one hosted match.
type Config struct {
	Name         string
	TickDuration time.Duration
	MaxPlayers   int

	// Map is the compiled map the match simulates.
	Map *mapfile.Map

	// ScriptDir is the root all script paths resolve against. AssetDir is
	// the root of the binary assets referenced by the map manifest.
	ScriptDir string
	AssetDir  string

	// Gamemode names <ScriptDir>/gamemodes/<Gamemode>.lua.
	Gamemode           string
	GamemodeProperties property.Map

	// PlayerElement, when set, names the entity element spawned for each
	// joining player on their default layer.
	PlayerElement string

	// ChecksumCachePath, when set, enables the persistent checksum cache.
	ChecksumCachePath string

	Logger *log.Logger
}

// Match is one authoritative game simulation. All methods must be called
// from the tick goroutine; transport callbacks hand off through the session
// registry's queue.
type Match struct {
	id           string
	name         string
	tickDuration time.Duration
	maxPlayers   int
	log          *log.Logger

	mapData  *mapfile.Map
	terrain  *terrain.Terrain
	assets   *content.Assets
	scripts  *content.Scripts
	cache    *content.ChecksumCache
	runtime  *scripting.Runtime
	gamemode *scripting.Gamemode
	entities *scripting.Store
	weapons  *scripting.Store
	strings  *protocol.StringStore
	sessions *Sessions

	players     playerArena
	accumulator time.Duration
	ticks       uint64
}

// New builds a match from its compiled map, content directories, and
// gamemode. The gamemode's Init event has fired by the time New returns.
func New(cfg Config) (*Match, error) {
	if cfg.Map == nil {
		return nil, fmt.Errorf("match %s: map is required", cfg.Name)
	}
	if cfg.TickDuration <= 0 {
		return nil, fmt.Errorf("match %s: tick duration is required", cfg.Name)
	}
	if cfg.MaxPlayers <= 0 {
		return nil, fmt.Errorf("match %s: max players is required", cfg.Name)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	matchID, err := id.NewID()
	if err != nil {
		return nil, fmt.Errorf("match %s: %w", cfg.Name, err)
	}
	m := &Match{
		id:           matchID,
		name:         cfg.Name,
		tickDuration: cfg.TickDuration,
		maxPlayers:   cfg.MaxPlayers,
		log:          logger,
		mapData:      cfg.Map,
		terrain:      terrain.New(cfg.Map),
		strings:      protocol.NewStringStore(),
	}

	if cfg.ChecksumCachePath != "" {
		cache, err := content.OpenChecksumCache(cfg.ChecksumCachePath)
		if err != nil {
			return nil, fmt.Errorf("match %s: %w", cfg.Name, err)
		}
		m.cache = cache
	}
	m.assets = content.NewAssets(cfg.AssetDir, logger, m.cache)
	for _, asset := range cfg.Map.Assets {
		m.assets.RegisterPrecomputed(asset.Path, asset.Size, asset.Checksum)
	}
	m.scripts = content.NewScripts(cfg.ScriptDir, logger)
	for _, script := range cfg.Map.Scripts {
		if err := m.scripts.Register(script.Path); err != nil {
			logger.Printf("register client script %s: %v", script.Path, err)
		}
	}

	rt, err := scripting.NewRuntime(cfg.ScriptDir, cfg.TickDuration, logger, scripting.TimerLibrary{})
	if err != nil {
		m.close()
		return nil, fmt.Errorf("match %s: %w", cfg.Name, err)
	}
	m.runtime = rt

	m.entities = scripting.NewStore(rt, logger, "entity", emptySchema())
	m.weapons = scripting.NewStore(rt, logger, "weapon", emptySchema())
	loadStore := func(store *scripting.Store, dir string) {
		if _, err := os.Stat(filepath.Join(cfg.ScriptDir, dir)); err != nil {
			return
		}
		if err := store.Load(dir); err != nil {
			logger.Printf("load %s store: %v", dir, err)
		}
	}
	loadStore(m.entities, "entities")
	loadStore(m.weapons, "weapons")

	gm, err := scripting.LoadGamemode(rt, logger, "gamemodes", cfg.Gamemode, cfg.GamemodeProperties)
	if err != nil {
		m.close()
		return nil, fmt.Errorf("match %s: %w", cfg.Name, err)
	}
	m.gamemode = gm

	m.sessions = newSessions(m, cfg.PlayerElement)

	m.gamemode.Trigger(scripting.EventInit)
	return m, nil
}

func emptySchema() *property.Schema {
	schema, _ := property.NewSchema()
	return schema
}

// ID returns the unique instance identifier assigned at creation.
func (m *Match) ID() string { return m.id }

// Name returns the display name the match was configured with.
func (m *Match) Name() string { return m.name }

// TickDuration returns the fixed simulation step.
func (m *Match) TickDuration() time.Duration { return m.tickDuration }

// Ticks reports how many fixed ticks have executed.
func (m *Match) Ticks() uint64 { return m.ticks }

// Terrain exposes the match's layered world.
func (m *Match) Terrain() *terrain.Terrain { return m.terrain }

// Assets exposes the asset registry.
func (m *Match) Assets() *content.Assets { return m.assets }

// Scripts exposes the client script registry.
func (m *Match) Scripts() *content.Scripts { return m.scripts }

// Gamemode exposes the active gamemode.
func (m *Match) Gamemode() *scripting.Gamemode { return m.gamemode }

// Runtime exposes the scripting runtime.
func (m *Match) Runtime() *scripting.Runtime { return m.runtime }

// Strings exposes the network string store.
func (m *Match) Strings() *protocol.StringStore { return m.strings }

// Sessions exposes the session registry.
func (m *Match) Sessions() *Sessions { return m.sessions }

// SetTransport attaches the transport outgoing packets are sent through.
func (m *Match) SetTransport(t transport.Transport) { m.sessions.trans = t }

// Callbacks returns the transport callbacks feeding the session queue. Safe
// to invoke from transport goroutines.
func (m *Match) Callbacks() transport.Callbacks { return m.sessions.callbacks() }

// Update accumulates elapsed wall time and executes zero or more fixed
// ticks. Simulation state only ever advances in whole ticks.
func (m *Match) Update(elapsed time.Duration) {
	m.accumulator += elapsed
	for m.accumulator >= m.tickDuration {
		m.accumulator -= m.tickDuration
		m.tick()
	}
}

// tick runs one fixed simulation step: queued session commands first, then
// the terrain advance, then the gamemode's tick callback, then the
// coroutine scheduler.
func (m *Match) tick() {
	m.runtime.BeginTick()
	m.sessions.drain()
	m.terrain.Update(m.tickDuration)
	m.gamemode.Trigger(scripting.EventTick)
	m.runtime.Update()
	m.ticks++
}

// Shutdown fires the final lifecycle notification, disconnects every
// session, and tears down the scripting runtime after discarding its
// outstanding coroutines.
func (m *Match) Shutdown() {
	m.gamemode.Trigger(scripting.EventMatchEnd)
	m.sessions.closeAll("match shutdown")
	m.close()
}

func (m *Match) close() {
	if m.runtime != nil {
		m.runtime.Close()
		m.runtime = nil
	}
	if m.cache != nil {
		_ = m.cache.Close()
		m.cache = nil
	}
}

// Join adds a player to the roster. It fails with a capacity error when the
// match is full, leaving the roster unchanged. The new player lands on the
// default layer and the PlayerJoined event fires; readiness notifications
// wait for the client's explicit Ready.
func (m *Match) Join(name string, session transport.SessionID) (*Player, error) {
	if m.players.count >= m.maxPlayers {
		return nil, errors.E(errors.CodeCapacityMatchFull, "match %s is full (%d players)", m.name, m.maxPlayers)
	}
	p := m.players.alloc(name, session)
	p.layer = 0

	state := m.runtime.State()
	p.table = state.NewTable()
	state.SetField(p.table, "Index", lua.LNumber(p.handle.index))
	state.SetField(p.table, "Name", lua.LString(name))

	m.gamemode.Trigger(scripting.EventPlayerJoined, p.table)
	return p, nil
}

// SpawnPlayerEntity creates the player's controlled avatar from the named
// entity element on the player's layer. The element's initializer runs
// against a fresh script handle and input forwarding is wired on success.
func (m *Match) SpawnPlayerEntity(h PlayerHandle, element string) (*terrain.Entity, error) {
	p, ok := m.players.resolve(h)
	if !ok {
		return nil, errors.E(errors.CodeProtocolOutOfOrder, "spawn for a released player handle")
	}
	layer, ok := m.terrain.Layer(p.layer)
	if !ok {
		return nil, errors.E(errors.CodeContentInvalidMapFile, "player layer %d does not exist", p.layer)
	}
	e := layer.Spawn(terrain.Spawn{
		Element: element,
		Owner:   int(h.index),
		Script:  m.runtime.State().NewTable(),
	})
	if err := m.entities.InitializeEntity(element, e); err != nil {
		m.log.Printf("initialize player entity %s: %v", element, err)
	}
	p.entity = e.ID()
	return e, nil
}

// Ready marks the player's client as loaded and fires the PlayerReady
// event.
func (m *Match) Ready(h PlayerHandle) {
	p, ok := m.players.resolve(h)
	if !ok || p.ready {
		return
	}
	p.ready = true
	m.gamemode.Trigger(scripting.EventPlayerReady, p.table)
}

// Leave removes the player from the roster and every layer, releasing the
// entities it owned. Safe to call with a handle that never completed the
// join handshake.
func (m *Match) Leave(h PlayerHandle) {
	p, ok := m.players.resolve(h)
	if !ok {
		return
	}
	for _, layer := range m.terrain.Layers() {
		layer.KillOwned(int(h.index))
	}
	m.gamemode.Trigger(scripting.EventPlayerLeave, p.table)
	m.players.release(h)
}

// ForEachPlayer visits the roster in slot order. The traversal is stable
// for one tick: joins and leaves requested during iteration take effect at
// the next tick boundary.
func (m *Match) ForEachPlayer(fn func(*Player)) {
	for _, p := range m.players.snapshot() {
		fn(p)
	}
}

// PlayerCount reports the live roster size.
func (m *Match) PlayerCount() int { return m.players.count }

// Player resolves a handle to its live roster entry.
func (m *Match) Player(h PlayerHandle) (*Player, bool) { return m.players.resolve(h) }

// applyInput forwards a decoded input snapshot to the player's controlled
// entity.
func (m *Match) applyInput(p *Player, in *protocol.PlayerInput) {
	if p.entity == 0 {
		return
	}
	e, ok := m.terrain.Entity(p.entity)
	if !ok {
		return
	}
	state := m.runtime.State()
	tbl := state.NewTable()
	state.SetField(tbl, "Direction", scripting.PushValue(state, property.Vec2(in.Direction)))
	state.SetField(tbl, "Jump", lua.LBool(in.Jump))
	state.SetField(tbl, "Attack", lua.LBool(in.Attack))
	e.UpdateInput(tbl)
}

// BuildMatchData snapshots the initial state a client needs before entity
// replication: background, tile size, and current per-layer tile grids.
func (m *Match) BuildMatchData() *protocol.MatchData {
	data := &protocol.MatchData{
		BackgroundColor: m.mapData.BackgroundColor,
		TileSize:        m.mapData.TileSize,
	}
	for _, layer := range m.terrain.Layers() {
		tiles := make([]uint32, len(layer.Tiles()))
		copy(tiles, layer.Tiles())
		data.Layers = append(data.Layers, protocol.MatchLayer{
			Width:  layer.Width(),
			Height: layer.Height(),
			Tiles:  tiles,
		})
	}
	return data
}

// BroadcastScriptPacket sends a script-defined payload to every joined
// session, interning the packet name in the network string table.
func (m *Match) BroadcastScriptPacket(name string, payload []byte) {
	index := m.strings.RegisterString(name)
	packet := &protocol.ScriptPacket{NameIndex: index, Content: payload}
	m.ForEachPlayer(func(p *Player) {
		m.sessions.send(p.session, packet)
	})
}

// handleScriptPacket routes a client script packet to the gamemode handler
// registered under its name. A name no handler listens on is logged and
// dropped; the client cannot know which events the gamemode subscribes to.
func (m *Match) handleScriptPacket(h PlayerHandle, name string, payload []byte) {
	p, ok := m.players.resolve(h)
	if !ok {
		return
	}
	if _, err := m.gamemode.TriggerCustom(name, p.table, lua.LString(payload)); err != nil {
		m.log.Printf("script packet %q from %s: %v", name, p.name, err)
	}
}
