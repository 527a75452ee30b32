package scripting

import (
	"fmt"
	"log"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/louisbranch/skirmish.space/internal/errors"
)

// maxIdleSlots caps how many finished coroutine slots are retained for reuse.
// Excess slots are discarded rather than pooled.
const maxIdleSlots = 20

// runnerSource is the body every coroutine slot runs. It executes one task
// function per cycle and yields a done marker plus the task's result, then
// waits suspended for the next task. The slot never finishes on its own,
// which is what makes it recyclable.
const runnerSource = `
local done = ...
return function(fn)
	while true do
		fn = coroutine.yield(done, fn())
	end
end
`

// binderSource builds a zero-argument closure over a function and its
// arguments so every task enters its slot with a uniform signature.
const binderSource = `
return function(fn, ...)
	local n = select('#', ...)
	local args = {...}
	return function()
		return fn(unpack(args, 1, n))
	end
end
`

// Task is one unit of asynchronous script execution bound to a coroutine
// slot. A task runs only when resumed, either directly or by the scheduler
// once it has been scheduled or has yielded.
type Task struct {
	s        *scheduler
	fn       *lua.LFunction
	thread   *lua.LState
	queued   bool
	done     bool
	wakeTick uint64
	result   lua.LValue
	err      error
}

// Done reports whether the task has run to completion or error.
func (t *Task) Done() bool { return t.done }

// Err returns the task's terminal error, if any.
func (t *Task) Err() error { return t.err }

// Result returns the task's first return value once it is done.
func (t *Task) Result() lua.LValue {
	if t.result == nil {
		return lua.LNil
	}
	return t.result
}

// Resume runs the task on the current goroutine until it completes or yields.
// A yielded task is enrolled with the scheduler and resumed on later ticks.
func (t *Task) Resume() (bool, error) {
	if t.done {
		return true, t.err
	}
	t.s.resume(t)
	if !t.done {
		t.s.enroll(t)
	}
	return t.done, t.err
}

// Schedule enrolls the task to start during a later scheduler update, never
// during the current tick.
func (t *Task) Schedule() {
	if t.done {
		return
	}
	if t.wakeTick <= t.s.tick {
		t.wakeTick = t.s.tick + 1
	}
	t.s.enroll(t)
}

// scheduler drives the cooperative coroutine pool. All access is from the
// tick goroutine.
type scheduler struct {
	root         *lua.LState
	log          *log.Logger
	tickDuration time.Duration
	tick         uint64
	running      []*Task
	idle         []*lua.LState
	current      *Task
	marker       *lua.LUserData
	runner       *lua.LFunction
	binder       *lua.LFunction
}

func newScheduler(root *lua.LState, tickDuration time.Duration, logger *log.Logger) (*scheduler, error) {
	s := &scheduler{
		root:         root,
		log:          logger,
		tickDuration: tickDuration,
		marker:       root.NewUserData(),
	}
	runner, err := loadChunk(root, "runner", runnerSource, s.marker)
	if err != nil {
		return nil, err
	}
	binder, err := loadChunk(root, "binder", binderSource)
	if err != nil {
		return nil, err
	}
	s.runner = runner
	s.binder = binder
	return s, nil
}

// loadChunk compiles src and runs it with args, returning the function the
// chunk returns.
func loadChunk(root *lua.LState, name, src string, args ...lua.LValue) (*lua.LFunction, error) {
	chunk, err := root.LoadString(src)
	if err != nil {
		return nil, fmt.Errorf("compile %s chunk: %w", name, err)
	}
	if err := root.CallByParam(lua.P{Fn: chunk, NRet: 1, Protect: true}, args...); err != nil {
		return nil, fmt.Errorf("build %s chunk: %w", name, err)
	}
	fn, ok := root.Get(-1).(*lua.LFunction)
	root.Pop(1)
	if !ok {
		return nil, fmt.Errorf("%s chunk did not return a function", name)
	}
	return fn, nil
}

func (s *scheduler) newTask(fn *lua.LFunction) *Task {
	return &Task{s: s, fn: fn}
}

// bindArgs wraps fn and args into a zero-argument callable.
func (s *scheduler) bindArgs(fn *lua.LFunction, args []lua.LValue) (*lua.LFunction, error) {
	callArgs := append([]lua.LValue{fn}, args...)
	if err := s.root.CallByParam(lua.P{Fn: s.binder, NRet: 1, Protect: true}, callArgs...); err != nil {
		return nil, errors.Wrap(errors.CodeScriptRuntime, fmt.Errorf("bind task arguments: %w", err))
	}
	bound, ok := s.root.Get(-1).(*lua.LFunction)
	s.root.Pop(1)
	if !ok {
		return nil, errors.E(errors.CodeScriptRuntime, "bind task arguments: no closure returned")
	}
	return bound, nil
}

func (s *scheduler) enroll(t *Task) {
	if t.queued {
		return
	}
	t.queued = true
	s.running = append(s.running, t)
}

// beginTick advances the scheduler clock. Called at the top of each fixed
// tick, before scripted callbacks run, so tasks scheduled during the tick
// wake no earlier than the next one.
func (s *scheduler) beginTick() {
	s.tick++
}

func (s *scheduler) clock() time.Duration {
	return time.Duration(s.tick) * s.tickDuration
}

// update resumes every due task once. Finished tasks return their slot to
// the idle pool (if under the cap), yielded tasks stay enrolled, errored
// tasks are logged and discarded.
func (s *scheduler) update() {
	queue := s.running
	s.running = nil
	var kept []*Task
	for _, t := range queue {
		if t.done {
			continue
		}
		if t.wakeTick > s.tick {
			kept = append(kept, t)
			continue
		}
		s.resume(t)
		if t.done {
			t.queued = false
			continue
		}
		kept = append(kept, t)
	}
	// Tasks enrolled while resuming run no earlier than the next update.
	s.running = append(kept, s.running...)
}

// resume runs one task step on its coroutine slot.
func (s *scheduler) resume(t *Task) {
	prev := s.current
	s.current = t
	defer func() { s.current = prev }()

	var (
		st   lua.ResumeState
		err  error
		rets []lua.LValue
	)
	if t.thread == nil {
		thread, fresh := s.acquire()
		t.thread = thread
		if fresh {
			st, err, rets = s.root.Resume(thread, s.runner, t.fn)
		} else {
			st, err, rets = s.root.Resume(thread, nil, t.fn)
		}
	} else {
		st, err, rets = s.root.Resume(t.thread, nil)
	}

	switch st {
	case lua.ResumeError:
		t.done = true
		t.err = errors.Wrap(errors.CodeScriptRuntime, fmt.Errorf("task: %w", err))
		t.thread = nil
		s.log.Printf("discarding errored task: %v", err)
	case lua.ResumeOK:
		// The runner loop never returns, so a dead slot means the VM tore it
		// down underneath us. Treat the task as finished and drop the slot.
		t.done = true
		t.thread = nil
	case lua.ResumeYield:
		if len(rets) > 0 && rets[0] == lua.LValue(s.marker) {
			t.done = true
			if len(rets) > 1 {
				t.result = rets[1]
			}
			s.release(t.thread)
			t.thread = nil
			return
		}
		// The task itself yielded. A yield without an explicit wake tick
		// means "resume next update".
		if t.wakeTick <= s.tick {
			t.wakeTick = s.tick + 1
		}
	}
}

// acquire returns an idle coroutine slot, or a fresh one when the pool is
// empty. The second result reports whether the slot still needs its runner
// started.
func (s *scheduler) acquire() (*lua.LState, bool) {
	if n := len(s.idle); n > 0 {
		thread := s.idle[n-1]
		s.idle = s.idle[:n-1]
		return thread, false
	}
	thread, _ := s.root.NewThread()
	return thread, true
}

func (s *scheduler) release(thread *lua.LState) {
	if len(s.idle) < maxIdleSlots {
		s.idle = append(s.idle, thread)
	}
}

// drain forcibly discards every running task and the idle pool. There is no
// cancellation primitive for in-flight tasks, so shutdown drops them wholesale
// before the VM closes.
func (s *scheduler) drain() {
	if n := len(s.running); n > 0 {
		s.log.Printf("discarding %d in-flight tasks on shutdown", n)
	}
	for _, t := range s.running {
		t.done = true
		t.queued = false
		t.thread = nil
	}
	s.running = nil
	s.idle = nil
}
