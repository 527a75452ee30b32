// Package mapfile reads and writes compiled match maps.
//
// A compiled map bundles the binary layer/tile data a match needs at
// construction time with the asset and client-script manifests produced by
// the map compiler. The match engine consumes the result as an opaque value;
// editing and compiling maps belongs to external tooling.
package mapfile

import (
	"fmt"
	"os"

	"github.com/louisbranch/skirmish.space/internal/errors"
	"github.com/louisbranch/skirmish.space/internal/protocol"
)

var magic = [4]byte{'S', 'K', 'M', 'F'}

const formatVersion = 1

// Layer is one compiled terrain layer.
type Layer struct {
	Width  uint16
	Height uint16
	Tiles  []uint32
}

// ManifestAsset is one pre-computed asset registration.
type ManifestAsset struct {
	Path     string
	Size     uint64
	Checksum []byte
}

// ManifestScript is one pre-computed client script reference.
type ManifestScript struct {
	Path     string
	Checksum []byte
}

// Map is a compiled match map.
type Map struct {
	Name            string
	BackgroundColor uint32
	TileSize        float64
	Layers          []Layer
	Assets          []ManifestAsset
	Scripts         []ManifestScript
}

// LoadFromBinary reads a compiled map from disk.
func LoadFromBinary(path string) (*Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.CodeContentMissingPath, fmt.Errorf("read map %s: %w", path, err))
	}
	m, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode map %s: %w", path, err)
	}
	return m, nil
}

// SaveToBinary writes a compiled map to disk.
func (m *Map) SaveToBinary(path string) error {
	if err := os.WriteFile(path, m.Encode(), 0o644); err != nil {
		return fmt.Errorf("write map %s: %w", path, err)
	}
	return nil
}

// Encode serializes the compiled map.
func (m *Map) Encode() []byte {
	w := protocol.NewWriter()
	for _, b := range magic {
		w.WriteUint8(b)
	}
	w.WriteUint8(formatVersion)
	w.WriteString(m.Name)
	w.WriteUint32(m.BackgroundColor)
	w.WriteFloat64(m.TileSize)

	w.WriteUnsigned(uint64(len(m.Layers)))
	for _, layer := range m.Layers {
		w.WriteUint16(layer.Width)
		w.WriteUint16(layer.Height)
		for _, tile := range layer.Tiles {
			w.WriteUnsigned(uint64(tile))
		}
	}

	w.WriteUnsigned(uint64(len(m.Assets)))
	for _, asset := range m.Assets {
		w.WriteString(asset.Path)
		w.WriteUnsigned(asset.Size)
		w.WriteBytes(asset.Checksum)
	}

	w.WriteUnsigned(uint64(len(m.Scripts)))
	for _, script := range m.Scripts {
		w.WriteString(script.Path)
		w.WriteBytes(script.Checksum)
	}
	return w.Bytes()
}

// Decode parses a compiled map payload.
func Decode(data []byte) (*Map, error) {
	r := protocol.NewReader(data)
	for i, want := range magic {
		b, err := r.ReadUint8()
		if err != nil {
			return nil, errors.E(errors.CodeContentInvalidMapFile, "truncated header")
		}
		if b != want {
			return nil, errors.E(errors.CodeContentInvalidMapFile, "bad magic byte %d", i)
		}
	}
	version, err := r.ReadUint8()
	if err != nil {
		return nil, errors.E(errors.CodeContentInvalidMapFile, "truncated header")
	}
	if version != formatVersion {
		return nil, errors.E(errors.CodeContentInvalidMapFile, "unsupported version %d", version)
	}

	m := &Map{}
	if m.Name, err = r.ReadString(); err != nil {
		return nil, invalid(err)
	}
	if m.BackgroundColor, err = r.ReadUint32(); err != nil {
		return nil, invalid(err)
	}
	if m.TileSize, err = r.ReadFloat64(); err != nil {
		return nil, invalid(err)
	}

	layerCount, err := r.ReadUnsigned()
	if err != nil {
		return nil, invalid(err)
	}
	if layerCount > uint64(r.Remaining()) {
		return nil, errors.E(errors.CodeContentInvalidMapFile, "layer count %d exceeds payload", layerCount)
	}
	m.Layers = make([]Layer, layerCount)
	for i := range m.Layers {
		layer := &m.Layers[i]
		if layer.Width, err = r.ReadUint16(); err != nil {
			return nil, invalid(err)
		}
		if layer.Height, err = r.ReadUint16(); err != nil {
			return nil, invalid(err)
		}
		tileCount := int(layer.Width) * int(layer.Height)
		if tileCount > r.Remaining() {
			return nil, errors.E(errors.CodeContentInvalidMapFile, "tile count %d exceeds payload", tileCount)
		}
		layer.Tiles = make([]uint32, tileCount)
		for j := range layer.Tiles {
			tile, err := r.ReadUnsigned()
			if err != nil {
				return nil, invalid(err)
			}
			layer.Tiles[j] = uint32(tile)
		}
	}

	assetCount, err := r.ReadUnsigned()
	if err != nil {
		return nil, invalid(err)
	}
	if assetCount > uint64(r.Remaining()) {
		return nil, errors.E(errors.CodeContentInvalidMapFile, "asset count %d exceeds payload", assetCount)
	}
	m.Assets = make([]ManifestAsset, assetCount)
	for i := range m.Assets {
		asset := &m.Assets[i]
		if asset.Path, err = r.ReadString(); err != nil {
			return nil, invalid(err)
		}
		if asset.Size, err = r.ReadUnsigned(); err != nil {
			return nil, invalid(err)
		}
		if asset.Checksum, err = r.ReadBytes(); err != nil {
			return nil, invalid(err)
		}
	}

	scriptCount, err := r.ReadUnsigned()
	if err != nil {
		return nil, invalid(err)
	}
	if scriptCount > uint64(r.Remaining()) {
		return nil, errors.E(errors.CodeContentInvalidMapFile, "script count %d exceeds payload", scriptCount)
	}
	m.Scripts = make([]ManifestScript, scriptCount)
	for i := range m.Scripts {
		script := &m.Scripts[i]
		if script.Path, err = r.ReadString(); err != nil {
			return nil, invalid(err)
		}
		if script.Checksum, err = r.ReadBytes(); err != nil {
			return nil, invalid(err)
		}
	}

	if r.Remaining() != 0 {
		return nil, errors.E(errors.CodeContentInvalidMapFile, "%d trailing bytes", r.Remaining())
	}
	return m, nil
}

func invalid(err error) error {
	return errors.Wrap(errors.CodeContentInvalidMapFile, err)
}
