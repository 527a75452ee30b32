// Package property implements the tagged value model used for all scripted
// element and gamemode configuration.
//
// A Value carries a type tag, an array flag, and a payload. Values are
// validated against a per-element Schema at assignment time, so downstream
// consumers (scripting handles, the wire codec) never see a payload whose tag
// disagrees with its declared type.
package property

import "github.com/go-gl/mathgl/mgl64"

// Kind is the type tag of a property value.
type Kind uint8

const (
	// KindBool tags boolean payloads.
	KindBool Kind = iota
	// KindInteger tags signed 64-bit integer payloads.
	KindInteger
	// KindFloat tags 64-bit float payloads.
	KindFloat
	// KindString tags string payloads.
	KindString
	// KindVec2 tags two-component vector payloads.
	KindVec2
	// KindVec3 tags three-component vector payloads.
	KindVec3
	// KindVec4 tags four-component vector payloads.
	KindVec4
	// KindEntity tags entity-reference payloads.
	KindEntity
	// KindLayer tags layer-reference payloads.
	KindLayer
)

var kindNames = map[Kind]string{
	KindBool:    "bool",
	KindInteger: "integer",
	KindFloat:   "float",
	KindString:  "string",
	KindVec2:    "vec2",
	KindVec3:    "vec3",
	KindVec4:    "vec4",
	KindEntity:  "entity",
	KindLayer:   "layer",
}

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// KindByName resolves a kind from its lowercase name, as used by element
// definition scripts.
func KindByName(name string) (Kind, bool) {
	for kind, kindName := range kindNames {
		if kindName == name {
			return kind, true
		}
	}
	return 0, false
}

// EntityID identifies a simulation entity within a match. Zero is never a
// valid id.
type EntityID int64

// LayerIndex identifies a terrain layer by its position within the terrain.
type LayerIndex uint16

// NoLayer marks the absence of a layer reference.
const NoLayer LayerIndex = 0xffff

// Value is a tagged property payload, either a scalar or a homogeneous array.
// The zero Value is a scalar false boolean.
type Value struct {
	kind  Kind
	array bool
	data  any
}

// Bool builds a scalar boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, data: b} }

// Integer builds a scalar integer value.
func Integer(n int64) Value { return Value{kind: KindInteger, data: n} }

// Float builds a scalar float value.
func Float(f float64) Value { return Value{kind: KindFloat, data: f} }

// String builds a scalar string value.
func String(s string) Value { return Value{kind: KindString, data: s} }

// Vec2 builds a scalar two-component vector value.
func Vec2(v mgl64.Vec2) Value { return Value{kind: KindVec2, data: v} }

// Vec3 builds a scalar three-component vector value.
func Vec3(v mgl64.Vec3) Value { return Value{kind: KindVec3, data: v} }

// Vec4 builds a scalar four-component vector value.
func Vec4(v mgl64.Vec4) Value { return Value{kind: KindVec4, data: v} }

// Entity builds a scalar entity-reference value.
func Entity(id EntityID) Value { return Value{kind: KindEntity, data: id} }

// Layer builds a scalar layer-reference value.
func Layer(index LayerIndex) Value { return Value{kind: KindLayer, data: index} }

// BoolArray builds an array boolean value.
func BoolArray(b []bool) Value { return Value{kind: KindBool, array: true, data: cloneSlice(b)} }

// IntegerArray builds an array integer value.
func IntegerArray(n []int64) Value {
	return Value{kind: KindInteger, array: true, data: cloneSlice(n)}
}

// FloatArray builds an array float value.
func FloatArray(f []float64) Value {
	return Value{kind: KindFloat, array: true, data: cloneSlice(f)}
}

// StringArray builds an array string value.
func StringArray(s []string) Value {
	return Value{kind: KindString, array: true, data: cloneSlice(s)}
}

// Vec2Array builds an array two-component vector value.
func Vec2Array(v []mgl64.Vec2) Value {
	return Value{kind: KindVec2, array: true, data: cloneSlice(v)}
}

// Vec3Array builds an array three-component vector value.
func Vec3Array(v []mgl64.Vec3) Value {
	return Value{kind: KindVec3, array: true, data: cloneSlice(v)}
}

// Vec4Array builds an array four-component vector value.
func Vec4Array(v []mgl64.Vec4) Value {
	return Value{kind: KindVec4, array: true, data: cloneSlice(v)}
}

// EntityArray builds an array entity-reference value.
func EntityArray(ids []EntityID) Value {
	return Value{kind: KindEntity, array: true, data: cloneSlice(ids)}
}

// LayerArray builds an array layer-reference value.
func LayerArray(indices []LayerIndex) Value {
	return Value{kind: KindLayer, array: true, data: cloneSlice(indices)}
}

func cloneSlice[T any](in []T) []T {
	out := make([]T, len(in))
	copy(out, in)
	return out
}

// Kind reports the value's type tag.
func (v Value) Kind() Kind { return v.kind }

// IsArray reports whether the value holds a homogeneous array payload.
func (v Value) IsArray() bool { return v.array }

// Payload exposes the raw payload. Scalars are bool, int64, float64, string,
// mgl64.Vec2/3/4, EntityID, or LayerIndex; arrays are slices of the same.
func (v Value) Payload() any {
	if v.data == nil {
		return false
	}
	return v.data
}

// AsBool returns the scalar boolean payload.
func (v Value) AsBool() (bool, bool) {
	if v.data == nil {
		return false, v.kind == KindBool && !v.array
	}
	b, ok := v.data.(bool)
	return b, ok
}

// AsInteger returns the scalar integer payload.
func (v Value) AsInteger() (int64, bool) {
	n, ok := v.data.(int64)
	return n, ok
}

// AsFloat returns the scalar float payload.
func (v Value) AsFloat() (float64, bool) {
	f, ok := v.data.(float64)
	return f, ok
}

// AsString returns the scalar string payload.
func (v Value) AsString() (string, bool) {
	s, ok := v.data.(string)
	return s, ok
}

// AsVec2 returns the scalar two-component vector payload.
func (v Value) AsVec2() (mgl64.Vec2, bool) {
	vec, ok := v.data.(mgl64.Vec2)
	return vec, ok
}

// AsVec3 returns the scalar three-component vector payload.
func (v Value) AsVec3() (mgl64.Vec3, bool) {
	vec, ok := v.data.(mgl64.Vec3)
	return vec, ok
}

// AsVec4 returns the scalar four-component vector payload.
func (v Value) AsVec4() (mgl64.Vec4, bool) {
	vec, ok := v.data.(mgl64.Vec4)
	return vec, ok
}

// AsEntity returns the scalar entity-reference payload.
func (v Value) AsEntity() (EntityID, bool) {
	id, ok := v.data.(EntityID)
	return id, ok
}

// AsLayer returns the scalar layer-reference payload.
func (v Value) AsLayer() (LayerIndex, bool) {
	index, ok := v.data.(LayerIndex)
	return index, ok
}

// Len reports the number of elements in an array value, or 1 for scalars.
func (v Value) Len() int {
	if !v.array {
		return 1
	}
	switch data := v.data.(type) {
	case []bool:
		return len(data)
	case []int64:
		return len(data)
	case []float64:
		return len(data)
	case []string:
		return len(data)
	case []mgl64.Vec2:
		return len(data)
	case []mgl64.Vec3:
		return len(data)
	case []mgl64.Vec4:
		return len(data)
	case []EntityID:
		return len(data)
	case []LayerIndex:
		return len(data)
	default:
		return 0
	}
}

// Equal reports whether two values have the same tag, array flag, and payload.
func Equal(a, b Value) bool {
	if a.kind != b.kind || a.array != b.array {
		return false
	}
	if !a.array {
		return a.Payload() == b.Payload()
	}
	switch lhs := a.Payload().(type) {
	case []bool:
		return slicesEqual(lhs, b.data.([]bool))
	case []int64:
		return slicesEqual(lhs, b.data.([]int64))
	case []float64:
		return slicesEqual(lhs, b.data.([]float64))
	case []string:
		return slicesEqual(lhs, b.data.([]string))
	case []mgl64.Vec2:
		return slicesEqual(lhs, b.data.([]mgl64.Vec2))
	case []mgl64.Vec3:
		return slicesEqual(lhs, b.data.([]mgl64.Vec3))
	case []mgl64.Vec4:
		return slicesEqual(lhs, b.data.([]mgl64.Vec4))
	case []EntityID:
		return slicesEqual(lhs, b.data.([]EntityID))
	case []LayerIndex:
		return slicesEqual(lhs, b.data.([]LayerIndex))
	default:
		return false
	}
}

func slicesEqual[T comparable](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
