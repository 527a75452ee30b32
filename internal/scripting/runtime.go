// Package scripting embeds the Lua VM that drives match gameplay.
//
// A Runtime owns one root Lua state per match plus a cooperative coroutine
// scheduler. All script execution happens on the tick goroutine; asynchronous
// work is expressed as tasks that yield and are resumed by the scheduler once
// per tick. Element stores and the gamemode build on the Runtime.
package scripting

import (
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/louisbranch/skirmish.space/internal/errors"
	"github.com/louisbranch/skirmish.space/internal/random"
)

// Library registers a set of script-visible functions on a Runtime.
type Library interface {
	// Name identifies the library in logs.
	Name() string
	// Register installs the library's globals into the runtime's root state.
	Register(rt *Runtime)
}

// Runtime owns the root Lua state and the coroutine scheduler for one match.
// It is not safe for concurrent use; all methods must be called from the tick
// goroutine.
type Runtime struct {
	state     *lua.LState
	rootDir   string
	log       *log.Logger
	scheduler *scheduler
}

// NewRuntime creates a runtime rooted at dir. tickDuration is the match's
// fixed tick length, used to convert timer delays into wake ticks.
func NewRuntime(dir string, tickDuration time.Duration, logger *log.Logger, libs ...Library) (*Runtime, error) {
	state := lua.NewState()
	rt := &Runtime{
		state:   state,
		rootDir: dir,
		log:     logger,
	}
	sched, err := newScheduler(state, tickDuration, logger)
	if err != nil {
		state.Close()
		return nil, fmt.Errorf("scripting: init scheduler: %w", err)
	}
	rt.scheduler = sched
	if err := rt.seedRandom(); err != nil {
		state.Close()
		return nil, err
	}
	for _, lib := range libs {
		lib.Register(rt)
	}
	return rt, nil
}

// seedRandom seeds Lua's math.random so scripted rolls differ between match
// instances.
func (rt *Runtime) seedRandom() error {
	seed, err := random.NewSeed()
	if err != nil {
		return fmt.Errorf("scripting: seed random: %w", err)
	}
	mathTable := rt.state.GetGlobal("math")
	fn, ok := rt.state.GetField(mathTable, "randomseed").(*lua.LFunction)
	if !ok {
		return nil
	}
	return rt.state.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, lua.LNumber(seed))
}

// State exposes the root Lua state for library registration and value
// construction. Callers must not retain it past the runtime's Close.
func (rt *Runtime) State() *lua.LState { return rt.state }

// RootDir reports the directory script paths are resolved against.
func (rt *Runtime) RootDir() string { return rt.rootDir }

// Load parses and executes the script at path (relative to the runtime root)
// on the root state and returns its result. It blocks the caller until the
// script completes and is meant for trusted startup and reload content only.
func (rt *Runtime) Load(path string) (lua.LValue, error) {
	full := filepath.Join(rt.rootDir, path)
	if _, err := os.Stat(full); err != nil {
		return lua.LNil, errors.Wrap(errors.CodeContentMissingPath, fmt.Errorf("script %s: %w", path, err))
	}
	fn, err := rt.state.LoadFile(full)
	if err != nil {
		return lua.LNil, errors.Wrap(errors.CodeScriptParse, fmt.Errorf("parse %s: %w", path, err))
	}
	rt.state.Push(fn)
	if err := rt.state.PCall(0, 1, nil); err != nil {
		return lua.LNil, errors.Wrap(errors.CodeScriptRuntime, fmt.Errorf("run %s: %w", path, err))
	}
	ret := rt.state.Get(-1)
	rt.state.Pop(1)
	return ret, nil
}

// LoadAsync compiles the script at path into a task bound to a fresh or
// recycled coroutine slot. The script does not execute until the task is
// resumed or scheduled.
func (rt *Runtime) LoadAsync(path string) (*Task, error) {
	full := filepath.Join(rt.rootDir, path)
	if _, err := os.Stat(full); err != nil {
		return nil, errors.Wrap(errors.CodeContentMissingPath, fmt.Errorf("script %s: %w", path, err))
	}
	fn, err := rt.state.LoadFile(full)
	if err != nil {
		return nil, errors.Wrap(errors.CodeScriptParse, fmt.Errorf("parse %s: %w", path, err))
	}
	return rt.scheduler.newTask(fn), nil
}

// NewTask wraps an already-built Lua function in a task. Arguments are bound
// at creation time and passed on the task's first resume.
func (rt *Runtime) NewTask(fn *lua.LFunction, args ...lua.LValue) (*Task, error) {
	if len(args) == 0 {
		return rt.scheduler.newTask(fn), nil
	}
	bound, err := rt.scheduler.bindArgs(fn, args)
	if err != nil {
		return nil, err
	}
	return rt.scheduler.newTask(bound), nil
}

// LoadDirectory executes every .lua file under dir (relative to the runtime
// root), recursively, in lexical order. Per-file failures are logged and the
// remaining files still load; only an unreadable root is an error.
func (rt *Runtime) LoadDirectory(dir string) error {
	full := filepath.Join(rt.rootDir, dir)
	var files []string
	err := filepath.WalkDir(full, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == ".lua" {
			rel, err := filepath.Rel(rt.rootDir, path)
			if err != nil {
				return err
			}
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(errors.CodeContentMissingPath, fmt.Errorf("script dir %s: %w", dir, err))
	}
	sort.Strings(files)
	for _, file := range files {
		if _, err := rt.Load(file); err != nil {
			rt.log.Printf("load %s: %v", file, err)
		}
	}
	return nil
}

// CallMethod invokes tbl's method name with tbl as the receiver and returns
// the first result. A missing method is a no-op.
func (rt *Runtime) CallMethod(tbl *lua.LTable, name string, args ...lua.LValue) (lua.LValue, error) {
	fn, ok := rt.state.GetField(tbl, name).(*lua.LFunction)
	if !ok {
		return lua.LNil, nil
	}
	callArgs := append([]lua.LValue{tbl}, args...)
	if err := rt.state.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, callArgs...); err != nil {
		return lua.LNil, errors.Wrap(errors.CodeScriptRuntime, fmt.Errorf("call %s: %w", name, err))
	}
	ret := rt.state.Get(-1)
	rt.state.Pop(1)
	return ret, nil
}

// BeginTick advances the scheduler clock. The match calls it once at the top
// of every fixed tick, before any scripted callback runs.
func (rt *Runtime) BeginTick() { rt.scheduler.beginTick() }

// Update resumes every due task once. Called once per tick after the
// deterministic simulation advance.
func (rt *Runtime) Update() { rt.scheduler.update() }

// Clock reports scripted match time, derived from the tick counter.
func (rt *Runtime) Clock() time.Duration { return rt.scheduler.clock() }

// Close discards all outstanding tasks and tears down the Lua state.
// Coroutines hold references into the VM, so they are drained first.
func (rt *Runtime) Close() {
	rt.scheduler.drain()
	rt.state.Close()
}
