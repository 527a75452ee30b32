package protocol

import (
	"bytes"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/louisbranch/skirmish.space/internal/errors"
	"github.com/louisbranch/skirmish.space/internal/property"
)

func TestAuthHandshakeRoundTrip(t *testing.T) {
	decoded, err := Decode(Encode(&Auth{PlayerName: "mitsou"}))
	if err != nil {
		t.Fatalf("decode auth: %v", err)
	}
	auth, ok := decoded.(*Auth)
	if !ok || auth.PlayerName != "mitsou" {
		t.Fatalf("unexpected packet %#v", decoded)
	}
}

func TestMatchDataRoundTrip(t *testing.T) {
	original := &MatchData{
		BackgroundColor: 0x87ceebff,
		TileSize:        64,
		Layers: []MatchLayer{
			{Width: 2, Height: 2, Tiles: []uint32{0, 1, 2, 3}},
			{Width: 1, Height: 2, Tiles: []uint32{7, 9}},
		},
	}

	decoded, err := Decode(Encode(original))
	if err != nil {
		t.Fatalf("decode match data: %v", err)
	}
	matchData := decoded.(*MatchData)
	if matchData.BackgroundColor != original.BackgroundColor {
		t.Fatalf("background mismatch: %x", matchData.BackgroundColor)
	}
	if matchData.TileSize != 64 {
		t.Fatalf("tile size mismatch: %v", matchData.TileSize)
	}
	if len(matchData.Layers) != 2 {
		t.Fatalf("expected 2 layers, got %d", len(matchData.Layers))
	}
	for i, layer := range matchData.Layers {
		want := original.Layers[i]
		if layer.Width != want.Width || layer.Height != want.Height {
			t.Fatalf("layer %d dimension mismatch", i)
		}
		for j, tile := range layer.Tiles {
			if tile != want.Tiles[j] {
				t.Fatalf("layer %d tile %d mismatch: %d", i, j, tile)
			}
		}
	}
}

func TestMatchDataTileCountBeyondPayload(t *testing.T) {
	w := NewWriter()
	w.WriteUint8(uint8(OpMatchData))
	w.WriteUint32(0x87ceebff)
	w.WriteFloat64(64)
	w.WriteUnsigned(1)
	w.WriteUint16(0xffff)
	w.WriteUint16(0xffff)

	_, err := Decode(w.Bytes())
	if errors.CodeOf(err) != errors.CodeProtocolMalformedPacket {
		t.Fatalf("decode error = %v, want malformed packet", err)
	}
}

func TestContentListRoundTrip(t *testing.T) {
	assets := &AssetList{Assets: []AssetEntry{
		{Path: "tex/a.png", Size: 1234, Checksum: []byte{0xaa, 0xbb}},
	}}
	decoded, err := Decode(Encode(assets))
	if err != nil {
		t.Fatalf("decode asset list: %v", err)
	}
	list := decoded.(*AssetList)
	if len(list.Assets) != 1 || list.Assets[0].Path != "tex/a.png" || list.Assets[0].Size != 1234 {
		t.Fatalf("unexpected asset list %#v", list)
	}
	if !bytes.Equal(list.Assets[0].Checksum, []byte{0xaa, 0xbb}) {
		t.Fatalf("checksum mismatch %x", list.Assets[0].Checksum)
	}

	scripts := &ScriptList{Scripts: []ScriptEntry{{Path: "entities/box.lua", Checksum: []byte{1}}}}
	decoded, err = Decode(Encode(scripts))
	if err != nil {
		t.Fatalf("decode script list: %v", err)
	}
	if got := decoded.(*ScriptList).Scripts[0].Path; got != "entities/box.lua" {
		t.Fatalf("unexpected script path %q", got)
	}
}

func TestPlayerInputRoundTrip(t *testing.T) {
	original := &PlayerInput{Direction: mgl64.Vec2{-1, 0.5}, Jump: true}
	decoded, err := Decode(Encode(original))
	if err != nil {
		t.Fatalf("decode input: %v", err)
	}
	input := decoded.(*PlayerInput)
	if input.Direction != original.Direction || !input.Jump || input.Attack {
		t.Fatalf("unexpected input %#v", input)
	}
}

func TestDecodeUnknownOpcode(t *testing.T) {
	_, err := Decode([]byte{0xf0})
	if errors.CodeOf(err) != errors.CodeProtocolUnknownOpcode {
		t.Fatalf("expected unknown opcode code, got %v", err)
	}
}

func TestDecodeTruncatedPacket(t *testing.T) {
	payload := Encode(&Auth{PlayerName: "someone"})
	_, err := Decode(payload[:2])
	if errors.CodeOf(err) != errors.CodeProtocolMalformedPacket {
		t.Fatalf("expected malformed packet code, got %v", err)
	}
}

func TestDecodeEmptyPayload(t *testing.T) {
	_, err := Decode(nil)
	if errors.CodeOf(err) != errors.CodeProtocolMalformedPacket {
		t.Fatalf("expected malformed packet code, got %v", err)
	}
}

func TestPropertyValueRoundTrip(t *testing.T) {
	values := []property.Value{
		property.Bool(true),
		property.Bool(false),
		property.Integer(-9000),
		property.Float(13.37),
		property.String("hello"),
		property.String(""),
		property.Vec2(mgl64.Vec2{1, -2}),
		property.Vec3(mgl64.Vec3{1, -2, 3.5}),
		property.Vec4(mgl64.Vec4{0, 1, 2, 3}),
		property.Entity(property.EntityID(77)),
		property.Layer(property.LayerIndex(2)),
		property.Layer(property.NoLayer),
		property.BoolArray([]bool{true, false, true}),
		property.IntegerArray([]int64{-1, 0, 1 << 40}),
		property.FloatArray([]float64{0.5, -0.5}),
		property.StringArray([]string{"a", "", "c"}),
		property.Vec2Array([]mgl64.Vec2{{1, 2}, {3, 4}}),
		property.Vec3Array([]mgl64.Vec3{{1, 2, 3}}),
		property.Vec4Array([]mgl64.Vec4{{1, 2, 3, 4}}),
		property.EntityArray([]property.EntityID{1, 2, 3}),
		property.LayerArray([]property.LayerIndex{0, 1, property.NoLayer}),
		property.IntegerArray(nil),
	}

	for _, original := range values {
		w := NewWriter()
		WriteValue(w, original)
		r := NewReader(w.Bytes())
		decoded, err := ReadValue(r)
		if err != nil {
			t.Fatalf("decode %s (array=%t): %v", original.Kind(), original.IsArray(), err)
		}
		if !property.Equal(original, decoded) {
			t.Fatalf("round trip mismatch for %s (array=%t): %#v != %#v",
				original.Kind(), original.IsArray(), decoded.Payload(), original.Payload())
		}
		if r.Remaining() != 0 {
			t.Fatalf("expected full consumption for %s, %d bytes left", original.Kind(), r.Remaining())
		}
	}
}

func TestPropertyValueUnknownKind(t *testing.T) {
	_, err := ReadValue(NewReader([]byte{0x7f, 0x00}))
	if errors.CodeOf(err) != errors.CodeProtocolMalformedPacket {
		t.Fatalf("expected malformed packet code, got %v", err)
	}
}
