package scripting

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	lua "github.com/yuin/gopher-lua"

	"github.com/louisbranch/skirmish.space/internal/errors"
	"github.com/louisbranch/skirmish.space/internal/property"
)

func TestLuaValueRoundTrip(t *testing.T) {
	rt, _ := newTestRuntime(t)
	state := rt.State()
	values := []property.Value{
		property.Bool(true),
		property.Integer(-7),
		property.Float(2.5),
		property.String("crate"),
		property.Vec2(mgl64.Vec2{1, 2}),
		property.Vec3(mgl64.Vec3{1, 2, 3}),
		property.Vec4(mgl64.Vec4{1, 2, 3, 4}),
		property.Entity(42),
		property.Layer(3),
		property.IntegerArray([]int64{1, 2, 3}),
		property.StringArray([]string{"a", "b"}),
		property.Vec2Array([]mgl64.Vec2{{1, 2}, {3, 4}}),
	}
	for _, want := range values {
		lv := PushValue(state, want)
		got, err := ToValue(lv, want.Kind(), want.IsArray())
		if err != nil {
			t.Fatalf("%s: %v", want.Kind(), err)
		}
		if !property.Equal(want, got) {
			t.Fatalf("%s: want %+v, got %+v", want.Kind(), want, got)
		}
	}
}

func TestToValueTypeMismatch(t *testing.T) {
	_, err := ToValue(lua.LString("nope"), property.KindInteger, false)
	if code := errors.CodeOf(err); code != errors.CodeSchemaTypeMismatch {
		t.Fatalf("want %s, got %v", errors.CodeSchemaTypeMismatch, err)
	}
	_, err = ToValue(lua.LNumber(1), property.KindString, true)
	if code := errors.CodeOf(err); code != errors.CodeSchemaTypeMismatch {
		t.Fatalf("array: want %s, got %v", errors.CodeSchemaTypeMismatch, err)
	}
}

func TestToValueVectorArity(t *testing.T) {
	rt, _ := newTestRuntime(t)
	tbl := rt.State().NewTable()
	tbl.RawSetInt(1, lua.LNumber(1))
	_, err := ToValue(tbl, property.KindVec3, false)
	if code := errors.CodeOf(err); code != errors.CodeSchemaTypeMismatch {
		t.Fatalf("want %s, got %v", errors.CodeSchemaTypeMismatch, err)
	}
}
