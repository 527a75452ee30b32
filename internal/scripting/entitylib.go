package scripting

import (
	"github.com/go-gl/mathgl/mgl64"
	lua "github.com/yuin/gopher-lua"

	"github.com/louisbranch/skirmish.space/internal/property"
)

// SimEntity extends Entity with the simulation state the element library
// exposes to scripts. Entities that implement it get position, velocity,
// and kill methods bound onto their script handle at initialization.
type SimEntity interface {
	Entity
	Position() mgl64.Vec2
	SetPosition(mgl64.Vec2)
	Velocity() mgl64.Vec2
	SetVelocity(mgl64.Vec2)
	Kill()
}

// bindEntityMethods installs the element library methods on the entity's
// script handle. Scripts call them with method syntax:
//
//	local pos = self:GetPosition()
//	self:SetVelocity({ 120, 0 })
//	self:Kill()
//
// Vectors cross the boundary as numerically indexed component tables.
func bindEntityMethods(state *lua.LState, tbl *lua.LTable, ent SimEntity) {
	state.SetField(tbl, "GetPosition", state.NewFunction(func(L *lua.LState) int {
		p := ent.Position()
		L.Push(vecTable(L, p[:]))
		return 1
	}))
	state.SetField(tbl, "SetPosition", state.NewFunction(func(L *lua.LState) int {
		ent.SetPosition(checkVec2(L, "SetPosition"))
		return 0
	}))
	state.SetField(tbl, "GetVelocity", state.NewFunction(func(L *lua.LState) int {
		v := ent.Velocity()
		L.Push(vecTable(L, v[:]))
		return 1
	}))
	state.SetField(tbl, "SetVelocity", state.NewFunction(func(L *lua.LState) int {
		ent.SetVelocity(checkVec2(L, "SetVelocity"))
		return 0
	}))
	state.SetField(tbl, "Kill", state.NewFunction(func(L *lua.LState) int {
		ent.Kill()
		return 0
	}))
}

// checkVec2 reads the first method argument after self as a vec2 component
// table, raising a Lua error on mismatch.
func checkVec2(L *lua.LState, method string) mgl64.Vec2 {
	val, err := ToValue(L.CheckAny(2), property.KindVec2, false)
	if err != nil {
		L.RaiseError("%s: %v", method, err)
	}
	v, _ := val.AsVec2()
	return v
}
