package scripting

import (
	"github.com/go-gl/mathgl/mgl64"
	lua "github.com/yuin/gopher-lua"

	"github.com/louisbranch/skirmish.space/internal/errors"
	"github.com/louisbranch/skirmish.space/internal/property"
)

// PushValue converts a property value into its Lua representation. Vectors
// become array-style tables, entity ids and layer indices become numbers.
func PushValue(state *lua.LState, v property.Value) lua.LValue {
	if v.IsArray() {
		tbl := state.CreateTable(v.Len(), 0)
		for i := 0; i < v.Len(); i++ {
			tbl.RawSetInt(i+1, pushScalar(state, v, i))
		}
		return tbl
	}
	return pushScalar(state, v, -1)
}

func pushScalar(state *lua.LState, v property.Value, index int) lua.LValue {
	payload := v.Payload()
	switch v.Kind() {
	case property.KindBool:
		b := scalarAt[bool](payload, index)
		return lua.LBool(b)
	case property.KindInteger:
		return lua.LNumber(scalarAt[int64](payload, index))
	case property.KindFloat:
		return lua.LNumber(scalarAt[float64](payload, index))
	case property.KindString:
		return lua.LString(scalarAt[string](payload, index))
	case property.KindVec2:
		v := scalarAt[mgl64.Vec2](payload, index)
		return vecTable(state, v[:])
	case property.KindVec3:
		v := scalarAt[mgl64.Vec3](payload, index)
		return vecTable(state, v[:])
	case property.KindVec4:
		v := scalarAt[mgl64.Vec4](payload, index)
		return vecTable(state, v[:])
	case property.KindEntity:
		return lua.LNumber(scalarAt[property.EntityID](payload, index))
	case property.KindLayer:
		return lua.LNumber(scalarAt[property.LayerIndex](payload, index))
	}
	return lua.LNil
}

// scalarAt reads either the scalar payload (index < 0) or one element of an
// array payload.
func scalarAt[T any](payload any, index int) T {
	if index < 0 {
		return payload.(T)
	}
	return payload.([]T)[index]
}

func vecTable(state *lua.LState, components []float64) *lua.LTable {
	tbl := state.CreateTable(len(components), 0)
	for i, c := range components {
		tbl.RawSetInt(i+1, lua.LNumber(c))
	}
	return tbl
}

// ToValue converts a Lua value into a property value of the given kind.
// Array values are read from numerically indexed tables.
func ToValue(lv lua.LValue, kind property.Kind, array bool) (property.Value, error) {
	if !array {
		return toScalar(lv, kind)
	}
	tbl, ok := lv.(*lua.LTable)
	if !ok {
		return property.Value{}, errors.E(errors.CodeSchemaTypeMismatch, "%s array: expected table, got %s", kind, lv.Type())
	}
	n := tbl.Len()
	elems := make([]property.Value, n)
	for i := 0; i < n; i++ {
		elem, err := toScalar(tbl.RawGetInt(i+1), kind)
		if err != nil {
			return property.Value{}, err
		}
		elems[i] = elem
	}
	return collectArray(kind, elems), nil
}

func toScalar(lv lua.LValue, kind property.Kind) (property.Value, error) {
	mismatch := func() error {
		return errors.E(errors.CodeSchemaTypeMismatch, "expected %s, got %s", kind, lv.Type())
	}
	switch kind {
	case property.KindBool:
		b, ok := lv.(lua.LBool)
		if !ok {
			return property.Value{}, mismatch()
		}
		return property.Bool(bool(b)), nil
	case property.KindInteger:
		n, ok := lv.(lua.LNumber)
		if !ok {
			return property.Value{}, mismatch()
		}
		return property.Integer(int64(n)), nil
	case property.KindFloat:
		n, ok := lv.(lua.LNumber)
		if !ok {
			return property.Value{}, mismatch()
		}
		return property.Float(float64(n)), nil
	case property.KindString:
		s, ok := lv.(lua.LString)
		if !ok {
			return property.Value{}, mismatch()
		}
		return property.String(string(s)), nil
	case property.KindVec2:
		c, err := vecComponents(lv, 2)
		if err != nil {
			return property.Value{}, err
		}
		return property.Vec2(mgl64.Vec2{c[0], c[1]}), nil
	case property.KindVec3:
		c, err := vecComponents(lv, 3)
		if err != nil {
			return property.Value{}, err
		}
		return property.Vec3(mgl64.Vec3{c[0], c[1], c[2]}), nil
	case property.KindVec4:
		c, err := vecComponents(lv, 4)
		if err != nil {
			return property.Value{}, err
		}
		return property.Vec4(mgl64.Vec4{c[0], c[1], c[2], c[3]}), nil
	case property.KindEntity:
		n, ok := lv.(lua.LNumber)
		if !ok {
			return property.Value{}, mismatch()
		}
		return property.Entity(property.EntityID(n)), nil
	case property.KindLayer:
		n, ok := lv.(lua.LNumber)
		if !ok {
			return property.Value{}, mismatch()
		}
		return property.Layer(property.LayerIndex(n)), nil
	}
	return property.Value{}, errors.E(errors.CodeSchemaTypeMismatch, "unknown property kind %d", kind)
}

func vecComponents(lv lua.LValue, n int) ([]float64, error) {
	tbl, ok := lv.(*lua.LTable)
	if !ok || tbl.Len() != n {
		return nil, errors.E(errors.CodeSchemaTypeMismatch, "expected vec%d table, got %s", n, lv.Type())
	}
	out := make([]float64, n)
	for i := range out {
		c, ok := tbl.RawGetInt(i + 1).(lua.LNumber)
		if !ok {
			return nil, errors.E(errors.CodeSchemaTypeMismatch, "vec%d component %d is not a number", n, i+1)
		}
		out[i] = float64(c)
	}
	return out, nil
}

// collectArray packs scalar values of one kind into an array value.
func collectArray(kind property.Kind, elems []property.Value) property.Value {
	switch kind {
	case property.KindBool:
		return property.BoolArray(collect(elems, property.Value.AsBool))
	case property.KindInteger:
		return property.IntegerArray(collect(elems, property.Value.AsInteger))
	case property.KindFloat:
		return property.FloatArray(collect(elems, property.Value.AsFloat))
	case property.KindString:
		return property.StringArray(collect(elems, property.Value.AsString))
	case property.KindVec2:
		return property.Vec2Array(collect(elems, property.Value.AsVec2))
	case property.KindVec3:
		return property.Vec3Array(collect(elems, property.Value.AsVec3))
	case property.KindVec4:
		return property.Vec4Array(collect(elems, property.Value.AsVec4))
	case property.KindEntity:
		return property.EntityArray(collect(elems, property.Value.AsEntity))
	default:
		return property.LayerArray(collect(elems, property.Value.AsLayer))
	}
}

func collect[T any](elems []property.Value, get func(property.Value) (T, bool)) []T {
	out := make([]T, len(elems))
	for i, e := range elems {
		out[i], _ = get(e)
	}
	return out
}
