package scripting

import (
	"strings"
	"testing"

	lua "github.com/yuin/gopher-lua"

	"github.com/louisbranch/skirmish.space/internal/errors"
	"github.com/louisbranch/skirmish.space/internal/property"
)

func loadTestGamemode(t *testing.T, rt *Runtime, src string, props property.Map) *Gamemode {
	t.Helper()
	writeScript(t, rt, "gamemodes/test.lua", src)
	gm, err := LoadGamemode(rt, rt.log, "gamemodes", "test", props)
	if err != nil {
		t.Fatalf("load gamemode: %v", err)
	}
	return gm
}

func TestGamemodeSyncHandlersRunInRegistrationOrder(t *testing.T) {
	rt, _ := newTestRuntime(t)
	initTrace(t, rt)
	gm := loadTestGamemode(t, rt, `
GM:On("Init", function(self) table.insert(trace, "first") end)
GM:On("Init", function(self) table.insert(trace, "second") end)
`, nil)
	if !gm.Trigger(EventInit) {
		t.Fatal("trigger reported no clean handler")
	}
	got := trace(t, rt)
	if len(got) != 2 || got[0] != "first" || got[1] != "second" {
		t.Fatalf("want first,second, got %v", got)
	}
}

func TestGamemodeFailingHandlerDoesNotStopSiblings(t *testing.T) {
	rt, logs := newTestRuntime(t)
	initTrace(t, rt)
	gm := loadTestGamemode(t, rt, `
GM:On("PlayerJoined", function(self) table.insert(trace, "first") end)
GM:On("PlayerJoined", function(self) error("boom") end)
GM:On("PlayerJoined", function(self) table.insert(trace, "third") end)
`, nil)
	if !gm.Trigger(EventPlayerJoined) {
		t.Fatal("trigger reported no clean handler")
	}
	got := trace(t, rt)
	if len(got) != 2 || got[0] != "first" || got[1] != "third" {
		t.Fatalf("siblings did not survive the failing handler: %v", got)
	}
	if !strings.Contains(logs.String(), "PlayerJoined") {
		t.Fatalf("handler failure not logged: %q", logs.String())
	}
}

func TestGamemodeTriggerAllHandlersFail(t *testing.T) {
	rt, _ := newTestRuntime(t)
	gm := loadTestGamemode(t, rt, `
GM:On("RoundStart", function(self) error("a") end)
GM:On("RoundStart", function(self) error("b") end)
`, nil)
	if gm.Trigger(EventRoundStart) {
		t.Fatal("trigger reported clean with every handler failing")
	}
}

func TestGamemodeQueryShortCircuits(t *testing.T) {
	rt, _ := newTestRuntime(t)
	initTrace(t, rt)
	gm := loadTestGamemode(t, rt, `
GM:On("MatchEnd", function(self) table.insert(trace, "h1") end)
GM:On("MatchEnd", function(self) return "winner" end)
GM:On("MatchEnd", function(self) table.insert(trace, "h3") end)
`, nil)
	result, ok := gm.Query(EventMatchEnd)
	if !ok || result != lua.LString("winner") {
		t.Fatalf("want winner, got %v (%v)", result, ok)
	}
	for _, step := range trace(t, rt) {
		if step == "h3" {
			t.Fatal("query did not short-circuit after the first result")
		}
	}
}

func TestGamemodeQueryNoResult(t *testing.T) {
	rt, _ := newTestRuntime(t)
	gm := loadTestGamemode(t, rt, `
GM:On("MatchEnd", function(self) end)
`, nil)
	if result, ok := gm.Query(EventMatchEnd); ok || result != lua.LNil {
		t.Fatalf("want no result, got %v (%v)", result, ok)
	}
}

func TestGamemodeAsyncHandlerDeferredToLaterTick(t *testing.T) {
	rt, _ := newTestRuntime(t)
	initTrace(t, rt)
	gm := loadTestGamemode(t, rt, `
GM:On("Tick", function(self) table.insert(trace, "sync") end)
GM:OnAsync("Tick", function(self) table.insert(trace, "async") end)
`, nil)
	rt.BeginTick()
	gm.Trigger(EventTick)
	rt.Update()
	got := trace(t, rt)
	if len(got) != 1 || got[0] != "sync" {
		t.Fatalf("async handler ran in the firing tick: %v", got)
	}
	tick(rt)
	got = trace(t, rt)
	if len(got) != 2 || got[1] != "async" {
		t.Fatalf("async handler did not run on a later tick: %v", got)
	}
}

func TestGamemodeCustomEvents(t *testing.T) {
	rt, _ := newTestRuntime(t)
	initTrace(t, rt)
	gm := loadTestGamemode(t, rt, `
GM:On("SuddenDeath", function(self, reason) table.insert(trace, reason) end)
`, nil)
	clean, err := gm.TriggerCustom("SuddenDeath", lua.LString("overtime"))
	if err != nil || !clean {
		t.Fatalf("custom trigger: clean=%v err=%v", clean, err)
	}
	if got := trace(t, rt); len(got) != 1 || got[0] != "overtime" {
		t.Fatalf("custom handler did not receive args: %v", got)
	}
	_, err = gm.TriggerCustom("Unregistered")
	if code := errors.CodeOf(err); code != errors.CodeScriptNoEvent {
		t.Fatalf("want %s, got %v", errors.CodeScriptNoEvent, err)
	}
}

func TestGamemodePropertiesValidatedWithDefaults(t *testing.T) {
	rt, _ := newTestRuntime(t)
	gm := loadTestGamemode(t, rt, `
GM.Properties = {
	{ Key = "roundDuration", Type = "float", Default = 120 },
	{ Key = "mapPool", Type = "string", Array = true, Default = {} },
}
`, property.Map{"roundDuration": property.Float(60)})
	props := gm.Properties()
	if v, _ := props["roundDuration"].AsFloat(); v != 60 {
		t.Fatalf("override lost, got %v", v)
	}
	if props["mapPool"].Len() != 0 {
		t.Fatalf("default array not applied: %v", props["mapPool"])
	}
	// Scripts read the resolved values through GM.Properties.
	v := rt.State().GetField(gm.Table(), "Properties")
	values, ok := v.(*lua.LTable)
	if !ok {
		t.Fatalf("GM.Properties is %v", v)
	}
	if n := rt.State().GetField(values, "roundDuration"); n != lua.LNumber(60) {
		t.Fatalf("script-visible property is %v", n)
	}
}

func TestGamemodeRejectsBadProperty(t *testing.T) {
	rt, _ := newTestRuntime(t)
	writeScript(t, rt, "gamemodes/strict.lua", `
GM.Properties = { { Key = "limit", Type = "integer" } }
`)
	_, err := LoadGamemode(rt, rt.log, "gamemodes", "strict", property.Map{"limit": property.String("ten")})
	if class := errors.ClassOf(errors.CodeOf(err)); class != errors.ClassSchema {
		t.Fatalf("want schema error, got %v", err)
	}
}

func TestGamemodeMissingScript(t *testing.T) {
	rt, _ := newTestRuntime(t)
	_, err := LoadGamemode(rt, rt.log, "gamemodes", "absent", nil)
	if code := errors.CodeOf(err); code != errors.CodeContentMissingPath {
		t.Fatalf("want %s, got %v", errors.CodeContentMissingPath, err)
	}
}
