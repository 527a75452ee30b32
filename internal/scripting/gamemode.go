package scripting

import (
	"fmt"
	"log"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"

	"github.com/louisbranch/skirmish.space/internal/errors"
	"github.com/louisbranch/skirmish.space/internal/property"
)

// Event identifies a built-in gamemode lifecycle event.
type Event int

const (
	// EventInit fires once after the gamemode script has loaded.
	EventInit Event = iota
	// EventTick fires every fixed simulation tick.
	EventTick
	// EventPlayerJoined fires when a player joins the match roster.
	EventPlayerJoined
	// EventPlayerLeave fires when a player leaves or disconnects.
	EventPlayerLeave
	// EventPlayerReady fires once a joined client reports readiness.
	EventPlayerReady
	// EventRoundStart fires at the start of each round.
	EventRoundStart
	// EventMatchEnd fires on the final tick of a shutdown sequence.
	EventMatchEnd

	eventCount
)

var eventNames = [eventCount]string{
	EventInit:         "Init",
	EventTick:         "Tick",
	EventPlayerJoined: "PlayerJoined",
	EventPlayerLeave:  "PlayerLeave",
	EventPlayerReady:  "PlayerReady",
	EventRoundStart:   "RoundStart",
	EventMatchEnd:     "MatchEnd",
}

var eventByName = func() map[string]Event {
	m := make(map[string]Event, eventCount)
	for ev, name := range eventNames {
		m[name] = Event(ev)
	}
	return m
}()

func (e Event) String() string {
	if e < 0 || e >= eventCount {
		return fmt.Sprintf("Event(%d)", int(e))
	}
	return eventNames[e]
}

type callback struct {
	fn    *lua.LFunction
	async bool
}

// Gamemode holds the event handler tables of one match's rules script and
// dispatches named events to scripted listeners. One gamemode is active per
// match.
//
// The gamemode script receives a GM global and registers handlers on it:
//
//	GM.Properties = { { Key = "roundDuration", Type = "float", Default = 120 } }
//	GM:On("PlayerJoined", function(self, player) ... end)
//	GM:OnAsync("RoundStart", function(self) ... end)
type Gamemode struct {
	rt    *Runtime
	log   *log.Logger
	name  string
	table *lua.LTable
	props property.Map

	builtin     [eventCount][]callback
	customNames map[string]int
	custom      [][]callback
}

// LoadGamemode executes <dir>/<name>.lua and captures the handlers it
// registers. props is validated against the schema the script declares.
// Gamemode load failure is fatal to match construction.
func LoadGamemode(rt *Runtime, logger *log.Logger, dir, name string, props property.Map) (*Gamemode, error) {
	gm := &Gamemode{
		rt:          rt,
		log:         logger,
		name:        name,
		customNames: map[string]int{},
	}
	state := rt.State()
	tbl := state.NewTable()
	gm.table = tbl
	state.SetField(tbl, "Name", lua.LString(name))
	state.SetField(tbl, "On", state.NewFunction(gm.luaOn(false)))
	state.SetField(tbl, "OnAsync", state.NewFunction(gm.luaOn(true)))
	state.SetGlobal("GM", tbl)

	if _, err := rt.Load(filepath.Join(dir, name+".lua")); err != nil {
		return nil, fmt.Errorf("gamemode %s: %w", name, err)
	}

	schema, err := parseSchema(state, state.GetField(tbl, "Properties"))
	if err != nil {
		return nil, fmt.Errorf("gamemode %s schema: %w", name, err)
	}
	gm.props, err = schema.Apply(props)
	if err != nil {
		return nil, fmt.Errorf("gamemode %s properties: %w", name, err)
	}

	// Replace the schema declaration with the resolved values so scripts
	// read GM.Properties.key directly.
	values := state.NewTable()
	for key, v := range gm.props {
		state.SetField(values, key, PushValue(state, v))
	}
	state.SetField(tbl, "Properties", values)
	return gm, nil
}

// Name returns the gamemode's script name.
func (gm *Gamemode) Name() string { return gm.name }

// Table returns the gamemode's script table (the GM global).
func (gm *Gamemode) Table() *lua.LTable { return gm.table }

// Properties returns the resolved gamemode property map.
func (gm *Gamemode) Properties() property.Map { return gm.props }

func (gm *Gamemode) luaOn(async bool) lua.LGFunction {
	return func(L *lua.LState) int {
		name := L.CheckString(2)
		fn := L.CheckFunction(3)
		gm.registerHandler(name, fn, async)
		return 0
	}
}

// registerHandler appends a handler for a built-in event, or for a custom
// event created on first registration under that name.
func (gm *Gamemode) registerHandler(name string, fn *lua.LFunction, async bool) {
	cb := callback{fn: fn, async: async}
	if ev, ok := eventByName[name]; ok {
		gm.builtin[ev] = append(gm.builtin[ev], cb)
		return
	}
	idx, ok := gm.customNames[name]
	if !ok {
		idx = len(gm.custom)
		gm.customNames[name] = idx
		gm.custom = append(gm.custom, nil)
	}
	gm.custom[idx] = append(gm.custom[idx], cb)
}

// Trigger invokes every handler registered for ev in registration order.
// A failing synchronous handler aborts only its own body; siblings still run.
// Async handlers are scheduled on a coroutine and execute on a later tick.
// Returns true iff at least one synchronous handler ran without error.
func (gm *Gamemode) Trigger(ev Event, args ...lua.LValue) bool {
	_, _, clean := gm.dispatch(ev.String(), gm.builtin[ev], false, args)
	return clean
}

// Query dispatches ev like Trigger but short-circuits on the first handler
// returning a non-nil result, which it reports along with true.
func (gm *Gamemode) Query(ev Event, args ...lua.LValue) (lua.LValue, bool) {
	result, produced, _ := gm.dispatch(ev.String(), gm.builtin[ev], true, args)
	return result, produced
}

// TriggerCustom dispatches a script-defined event by name. Dispatching a
// name no handler was registered under is a caller error, not a no-op.
func (gm *Gamemode) TriggerCustom(name string, args ...lua.LValue) (bool, error) {
	idx, ok := gm.customNames[name]
	if !ok {
		return false, errors.E(errors.CodeScriptNoEvent, "gamemode %s has no event %q", gm.name, name)
	}
	_, _, clean := gm.dispatch(name, gm.custom[idx], false, args)
	return clean, nil
}

func (gm *Gamemode) dispatch(event string, callbacks []callback, wantResult bool, args []lua.LValue) (lua.LValue, bool, bool) {
	state := gm.rt.State()
	callArgs := append([]lua.LValue{gm.table}, args...)
	clean := false
	for _, cb := range callbacks {
		if cb.async {
			task, err := gm.rt.NewTask(cb.fn, callArgs...)
			if err != nil {
				gm.log.Printf("gamemode %s event %s: schedule handler: %v", gm.name, event, err)
				continue
			}
			task.Schedule()
			continue
		}
		if err := state.CallByParam(lua.P{Fn: cb.fn, NRet: 1, Protect: true}, callArgs...); err != nil {
			gm.log.Printf("gamemode %s event %s: %v", gm.name, event, err)
			continue
		}
		ret := state.Get(-1)
		state.Pop(1)
		clean = true
		if wantResult && ret != lua.LNil {
			return ret, true, clean
		}
	}
	return lua.LNil, false, clean
}
