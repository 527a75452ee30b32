package protocol

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/louisbranch/skirmish.space/internal/errors"
	"github.com/louisbranch/skirmish.space/internal/property"
)

// WriteValue appends a property value as {kind, array flag, payload}. Array
// payloads are length-prefixed homogeneous sequences of the scalar encoding.
func WriteValue(w *Writer, v property.Value) {
	w.WriteUint8(uint8(v.Kind()))
	w.WriteBool(v.IsArray())
	if !v.IsArray() {
		writeScalar(w, v)
		return
	}
	w.WriteUnsigned(uint64(v.Len()))
	switch payload := v.Payload().(type) {
	case []bool:
		for _, b := range payload {
			w.WriteBool(b)
		}
	case []int64:
		for _, n := range payload {
			w.WriteSigned(n)
		}
	case []float64:
		for _, f := range payload {
			w.WriteFloat64(f)
		}
	case []string:
		for _, s := range payload {
			w.WriteString(s)
		}
	case []mgl64.Vec2:
		for _, vec := range payload {
			writeVec(w, vec[:])
		}
	case []mgl64.Vec3:
		for _, vec := range payload {
			writeVec(w, vec[:])
		}
	case []mgl64.Vec4:
		for _, vec := range payload {
			writeVec(w, vec[:])
		}
	case []property.EntityID:
		for _, id := range payload {
			w.WriteSigned(int64(id))
		}
	case []property.LayerIndex:
		for _, index := range payload {
			w.WriteUint16(uint16(index))
		}
	}
}

func writeScalar(w *Writer, v property.Value) {
	switch payload := v.Payload().(type) {
	case bool:
		w.WriteBool(payload)
	case int64:
		w.WriteSigned(payload)
	case float64:
		w.WriteFloat64(payload)
	case string:
		w.WriteString(payload)
	case mgl64.Vec2:
		writeVec(w, payload[:])
	case mgl64.Vec3:
		writeVec(w, payload[:])
	case mgl64.Vec4:
		writeVec(w, payload[:])
	case property.EntityID:
		w.WriteSigned(int64(payload))
	case property.LayerIndex:
		w.WriteUint16(uint16(payload))
	}
}

func writeVec(w *Writer, components []float64) {
	for _, c := range components {
		w.WriteFloat64(c)
	}
}

// ReadValue consumes a property value written by WriteValue.
func ReadValue(r *Reader) (property.Value, error) {
	kindByte, err := r.ReadUint8()
	if err != nil {
		return property.Value{}, err
	}
	kind := property.Kind(kindByte)
	if kind > property.KindLayer {
		return property.Value{}, errors.E(errors.CodeProtocolMalformedPacket, "unknown property kind %d", kindByte)
	}
	isArray, err := r.ReadBool()
	if err != nil {
		return property.Value{}, err
	}
	if !isArray {
		return readScalar(r, kind)
	}

	count, err := r.ReadUnsigned()
	if err != nil {
		return property.Value{}, err
	}
	// Every scalar encoding takes at least one byte, so a valid count can
	// never exceed the unread payload.
	if count > uint64(r.Remaining()) {
		return property.Value{}, errors.E(errors.CodeProtocolMalformedPacket, "array count %d exceeds payload", count)
	}
	n := int(count)
	switch kind {
	case property.KindBool:
		out := make([]bool, n)
		for i := range out {
			if out[i], err = r.ReadBool(); err != nil {
				return property.Value{}, err
			}
		}
		return property.BoolArray(out), nil
	case property.KindInteger:
		out := make([]int64, n)
		for i := range out {
			if out[i], err = r.ReadSigned(); err != nil {
				return property.Value{}, err
			}
		}
		return property.IntegerArray(out), nil
	case property.KindFloat:
		out := make([]float64, n)
		for i := range out {
			if out[i], err = r.ReadFloat64(); err != nil {
				return property.Value{}, err
			}
		}
		return property.FloatArray(out), nil
	case property.KindString:
		out := make([]string, n)
		for i := range out {
			if out[i], err = r.ReadString(); err != nil {
				return property.Value{}, err
			}
		}
		return property.StringArray(out), nil
	case property.KindVec2:
		out := make([]mgl64.Vec2, n)
		for i := range out {
			if err = readVec(r, out[i][:]); err != nil {
				return property.Value{}, err
			}
		}
		return property.Vec2Array(out), nil
	case property.KindVec3:
		out := make([]mgl64.Vec3, n)
		for i := range out {
			if err = readVec(r, out[i][:]); err != nil {
				return property.Value{}, err
			}
		}
		return property.Vec3Array(out), nil
	case property.KindVec4:
		out := make([]mgl64.Vec4, n)
		for i := range out {
			if err = readVec(r, out[i][:]); err != nil {
				return property.Value{}, err
			}
		}
		return property.Vec4Array(out), nil
	case property.KindEntity:
		out := make([]property.EntityID, n)
		for i := range out {
			raw, err := r.ReadSigned()
			if err != nil {
				return property.Value{}, err
			}
			out[i] = property.EntityID(raw)
		}
		return property.EntityArray(out), nil
	case property.KindLayer:
		out := make([]property.LayerIndex, n)
		for i := range out {
			raw, err := r.ReadUint16()
			if err != nil {
				return property.Value{}, err
			}
			out[i] = property.LayerIndex(raw)
		}
		return property.LayerArray(out), nil
	}
	return property.Value{}, errors.E(errors.CodeProtocolMalformedPacket, "unknown property kind %d", kindByte)
}

func readScalar(r *Reader, kind property.Kind) (property.Value, error) {
	switch kind {
	case property.KindBool:
		b, err := r.ReadBool()
		if err != nil {
			return property.Value{}, err
		}
		return property.Bool(b), nil
	case property.KindInteger:
		n, err := r.ReadSigned()
		if err != nil {
			return property.Value{}, err
		}
		return property.Integer(n), nil
	case property.KindFloat:
		f, err := r.ReadFloat64()
		if err != nil {
			return property.Value{}, err
		}
		return property.Float(f), nil
	case property.KindString:
		s, err := r.ReadString()
		if err != nil {
			return property.Value{}, err
		}
		return property.String(s), nil
	case property.KindVec2:
		var vec mgl64.Vec2
		if err := readVec(r, vec[:]); err != nil {
			return property.Value{}, err
		}
		return property.Vec2(vec), nil
	case property.KindVec3:
		var vec mgl64.Vec3
		if err := readVec(r, vec[:]); err != nil {
			return property.Value{}, err
		}
		return property.Vec3(vec), nil
	case property.KindVec4:
		var vec mgl64.Vec4
		if err := readVec(r, vec[:]); err != nil {
			return property.Value{}, err
		}
		return property.Vec4(vec), nil
	case property.KindEntity:
		raw, err := r.ReadSigned()
		if err != nil {
			return property.Value{}, err
		}
		return property.Entity(property.EntityID(raw)), nil
	case property.KindLayer:
		raw, err := r.ReadUint16()
		if err != nil {
			return property.Value{}, err
		}
		return property.Layer(property.LayerIndex(raw)), nil
	}
	return property.Value{}, errors.E(errors.CodeProtocolMalformedPacket, "unknown property kind %d", kind)
}

func readVec(r *Reader, components []float64) error {
	for i := range components {
		c, err := r.ReadFloat64()
		if err != nil {
			return err
		}
		components[i] = c
	}
	return nil
}
