package scripting

import (
	"bytes"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	lua "github.com/yuin/gopher-lua"

	"github.com/louisbranch/skirmish.space/internal/errors"
	"github.com/louisbranch/skirmish.space/internal/property"
)

type testEntity struct {
	tbl   *lua.LTable
	input func(lua.LValue)
}

func (e *testEntity) ScriptTable() *lua.LTable                 { return e.tbl }
func (e *testEntity) SubscribeInputUpdate(fn func(lua.LValue)) { e.input = fn }

type testSimEntity struct {
	testEntity
	pos    mgl64.Vec2
	vel    mgl64.Vec2
	killed bool
}

func (e *testSimEntity) Position() mgl64.Vec2     { return e.pos }
func (e *testSimEntity) SetPosition(p mgl64.Vec2) { e.pos = p }
func (e *testSimEntity) Velocity() mgl64.Vec2     { return e.vel }
func (e *testSimEntity) SetVelocity(v mgl64.Vec2) { e.vel = v }
func (e *testSimEntity) Kill()                    { e.killed = true }

func baseEntitySchema(t *testing.T) *property.Schema {
	t.Helper()
	health := property.Integer(1)
	scale := property.Float(1)
	schema, err := property.NewSchema(
		property.Definition{Key: "health", Kind: property.KindInteger, Default: &health},
		property.Definition{Key: "scale", Kind: property.KindFloat, Default: &scale},
	)
	if err != nil {
		t.Fatalf("base schema: %v", err)
	}
	return schema
}

func loadTestStore(t *testing.T) (*Store, *Runtime, *bytes.Buffer) {
	t.Helper()
	rt, logs := newTestRuntime(t)
	writeScript(t, rt, "entities/crate.lua", `
ENTITY.Name = "crate"
ENTITY.Properties = {
	{ Key = "health", Type = "integer", Default = 100 },
	{ Key = "size", Type = "vec2" },
}
function ENTITY:Initialize()
	self.initialized = true
end
function ENTITY:OnInputUpdate(input)
	self.lastInput = input
end
`)
	writeScript(t, rt, "entities/barrel.lua", `ENTITY.Name = "barrel"`)
	writeScript(t, rt, "entities/dup.lua", `ENTITY.Name = "crate"`)
	writeScript(t, rt, "entities/nameless.lua", `ENTITY.Properties = {}`)
	store := NewStore(rt, rt.log, "entity", baseEntitySchema(t))
	if err := store.Load("entities"); err != nil {
		t.Fatalf("load store: %v", err)
	}
	return store, rt, logs
}

func TestStoreLoadsElementsAndSkipsBadEntries(t *testing.T) {
	store, _, logs := loadTestStore(t)
	if store.Len() != 2 {
		t.Fatalf("want 2 elements, got %d", store.Len())
	}
	if _, ok := store.Get("crate"); !ok {
		t.Fatal("crate not registered")
	}
	if _, ok := store.Get("barrel"); !ok {
		t.Fatal("barrel not registered")
	}
	if !strings.Contains(logs.String(), "dup.lua") {
		t.Fatalf("duplicate name not logged: %q", logs.String())
	}
	if !strings.Contains(logs.String(), "nameless.lua") {
		t.Fatalf("nameless entry not logged: %q", logs.String())
	}
}

func TestStoreSchemaMergeElementWins(t *testing.T) {
	store, _, _ := loadTestStore(t)
	crate, _ := store.Get("crate")
	def, ok := crate.Schema.Lookup("health")
	if !ok {
		t.Fatal("merged schema lost health")
	}
	if v, _ := def.Default.AsInteger(); v != 100 {
		t.Fatalf("element default did not win: %v", def.Default)
	}
	if _, ok := crate.Schema.Lookup("scale"); !ok {
		t.Fatal("merged schema lost base-only key scale")
	}
	if def, _ := crate.Schema.Lookup("size"); !def.Required() {
		t.Fatal("size should be required, it has no default")
	}
	// barrel declares nothing, so it carries exactly the base schema.
	barrel, _ := store.Get("barrel")
	if barrel.Schema.Len() != 2 {
		t.Fatalf("barrel schema has %d keys, want 2", barrel.Schema.Len())
	}
}

func TestInitializeEntityWiresInput(t *testing.T) {
	store, rt, _ := loadTestStore(t)
	ent := &testEntity{tbl: rt.State().NewTable()}
	if err := store.InitializeEntity("crate", ent); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if rt.State().GetField(ent.tbl, "initialized") != lua.LTrue {
		t.Fatal("initializer did not run")
	}
	if ent.input == nil {
		t.Fatal("input updates not subscribed")
	}
	ent.input(lua.LString("jump"))
	if got := rt.State().GetField(ent.tbl, "lastInput"); got != lua.LString("jump") {
		t.Fatalf("input not forwarded, got %v", got)
	}
}

func TestInitializeEntityBindsElementLibrary(t *testing.T) {
	rt, _ := newTestRuntime(t)
	writeScript(t, rt, "entities/mover.lua", `
ENTITY.Name = "mover"
function ENTITY:Initialize()
	local pos = self:GetPosition()
	self:SetVelocity({ pos[1] * 2, pos[2] * 2 })
end
function ENTITY:OnInputUpdate(input)
	if input == "stop" then
		self:Kill()
	end
end
`)
	store := NewStore(rt, rt.log, "entity", baseEntitySchema(t))
	if err := store.Load("entities"); err != nil {
		t.Fatalf("load store: %v", err)
	}
	ent := &testSimEntity{
		testEntity: testEntity{tbl: rt.State().NewTable()},
		pos:        mgl64.Vec2{3, -5},
	}
	if err := store.InitializeEntity("mover", ent); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if want := (mgl64.Vec2{6, -10}); ent.vel != want {
		t.Fatalf("want velocity %v, got %v", want, ent.vel)
	}
	ent.input(lua.LString("stop"))
	if !ent.killed {
		t.Fatal("script Kill did not reach the entity")
	}
}

func TestInitializeEntityRejectsBadVectorArgument(t *testing.T) {
	rt, _ := newTestRuntime(t)
	writeScript(t, rt, "entities/glitch.lua", `
ENTITY.Name = "glitch"
function ENTITY:Initialize()
	self:SetPosition("north")
end
`)
	store := NewStore(rt, rt.log, "entity", baseEntitySchema(t))
	if err := store.Load("entities"); err != nil {
		t.Fatalf("load store: %v", err)
	}
	ent := &testSimEntity{testEntity: testEntity{tbl: rt.State().NewTable()}}
	err := store.InitializeEntity("glitch", ent)
	if code := errors.CodeOf(err); code != errors.CodeScriptRuntime {
		t.Fatalf("want %s, got %v", errors.CodeScriptRuntime, err)
	}
}

func TestInitializeEntityFailureLeavesEntityUninitialized(t *testing.T) {
	rt, _ := newTestRuntime(t)
	writeScript(t, rt, "entities/bomb.lua", `
ENTITY.Name = "bomb"
function ENTITY:Initialize()
	error("fuse")
end
`)
	store := NewStore(rt, rt.log, "entity", baseEntitySchema(t))
	if err := store.Load("entities"); err != nil {
		t.Fatalf("load store: %v", err)
	}
	ent := &testEntity{tbl: rt.State().NewTable()}
	err := store.InitializeEntity("bomb", ent)
	if code := errors.CodeOf(err); code != errors.CodeScriptRuntime {
		t.Fatalf("want %s, got %v", errors.CodeScriptRuntime, err)
	}
	if ent.input != nil {
		t.Fatal("failed initialization must not subscribe input updates")
	}
}

func TestInitializeEntityUnknownElement(t *testing.T) {
	store, rt, _ := loadTestStore(t)
	err := store.InitializeEntity("ghost", &testEntity{tbl: rt.State().NewTable()})
	if code := errors.CodeOf(err); code != errors.CodeContentInvalidScript {
		t.Fatalf("want %s, got %v", errors.CodeContentInvalidScript, err)
	}
}

func TestInitializeEntityWithoutScriptTableIsNoOp(t *testing.T) {
	store, _, _ := loadTestStore(t)
	if err := store.InitializeEntity("crate", &testEntity{}); err != nil {
		t.Fatalf("want no-op, got %v", err)
	}
}
