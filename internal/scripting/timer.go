package scripting

import (
	"math"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// TimerLibrary exposes the timer table to scripts: cooperative sleeps for
// asynchronous tasks and the scripted match clock.
type TimerLibrary struct{}

// Name implements Library.
func (TimerLibrary) Name() string { return "timer" }

// Register implements Library.
func (TimerLibrary) Register(rt *Runtime) {
	state := rt.state
	sched := rt.scheduler

	tbl := state.NewTable()
	state.SetField(tbl, "Sleep", state.NewFunction(func(L *lua.LState) int {
		ms := float64(L.CheckNumber(1))
		t := sched.current
		if t == nil {
			L.RaiseError("timer.Sleep called outside an asynchronous task")
			return 0
		}
		d := time.Duration(ms * float64(time.Millisecond))
		ticks := uint64(math.Ceil(float64(d) / float64(sched.tickDuration)))
		if ticks < 1 {
			ticks = 1
		}
		t.wakeTick = sched.tick + ticks
		return L.Yield()
	}))
	state.SetField(tbl, "Clock", state.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LNumber(sched.clock().Seconds() * 1000))
		return 1
	}))
	state.SetGlobal("timer", tbl)
}
