package protocol

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/louisbranch/skirmish.space/internal/errors"
)

// Opcode identifies a packet type on the wire.
type Opcode uint8

const (
	// OpAuth is the client's authentication request.
	OpAuth Opcode = iota + 1
	// OpAuthSuccess acknowledges authentication.
	OpAuthSuccess
	// OpMatchData carries the minimum state a client needs before entity
	// replication: background color, tile size, and per-layer tiles.
	OpMatchData
	// OpAssetList enumerates (path, size, checksum) for registered assets.
	OpAssetList
	// OpScriptList enumerates (path, checksum) for client-visible scripts.
	OpScriptList
	// OpDownloadAssetRequest asks for one asset's raw bytes.
	OpDownloadAssetRequest
	// OpDownloadAssetResponse carries one asset's raw bytes.
	OpDownloadAssetResponse
	// OpDownloadScriptRequest asks for one client script's raw bytes.
	OpDownloadScriptRequest
	// OpDownloadScriptResponse carries one client script's raw bytes.
	OpDownloadScriptResponse
	// OpReady reports that the client finished loading content.
	OpReady
	// OpPlayerInput carries one input snapshot.
	OpPlayerInput
	// OpNetworkStrings bootstraps the client's string table.
	OpNetworkStrings
	// OpScriptPacket carries an opaque script-defined payload, named through
	// the string table.
	OpScriptPacket
)

// Packet is a decoded wire message.
type Packet interface {
	Opcode() Opcode
	encode(w *Writer)
}

// Encode serializes a packet, opcode first.
func Encode(p Packet) []byte {
	w := NewWriter()
	w.WriteUint8(uint8(p.Opcode()))
	p.encode(w)
	return w.Bytes()
}

// Decode parses a received payload into a typed packet. Unknown opcodes and
// truncated payloads are ProtocolErrors; the caller is expected to
// disconnect the offending session.
func Decode(data []byte) (Packet, error) {
	r := NewReader(data)
	op, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	var packet Packet
	switch Opcode(op) {
	case OpAuth:
		packet = &Auth{}
	case OpAuthSuccess:
		packet = &AuthSuccess{}
	case OpMatchData:
		packet = &MatchData{}
	case OpAssetList:
		packet = &AssetList{}
	case OpScriptList:
		packet = &ScriptList{}
	case OpDownloadAssetRequest:
		packet = &DownloadAssetRequest{}
	case OpDownloadAssetResponse:
		packet = &DownloadAssetResponse{}
	case OpDownloadScriptRequest:
		packet = &DownloadScriptRequest{}
	case OpDownloadScriptResponse:
		packet = &DownloadScriptResponse{}
	case OpReady:
		packet = &Ready{}
	case OpPlayerInput:
		packet = &PlayerInput{}
	case OpNetworkStrings:
		packet = &NetworkStrings{}
	case OpScriptPacket:
		packet = &ScriptPacket{}
	default:
		return nil, errors.E(errors.CodeProtocolUnknownOpcode, "opcode %d", op)
	}
	if err := packet.(decoder).decode(r); err != nil {
		return nil, err
	}
	return packet, nil
}

type decoder interface {
	decode(r *Reader) error
}

// Auth is the client's authentication request.
type Auth struct {
	PlayerName string
}

// Opcode implements Packet.
func (*Auth) Opcode() Opcode { return OpAuth }

func (p *Auth) encode(w *Writer) {
	w.WriteString(p.PlayerName)
}

func (p *Auth) decode(r *Reader) (err error) {
	p.PlayerName, err = r.ReadString()
	return err
}

// AuthSuccess acknowledges authentication and assigns the player index.
type AuthSuccess struct {
	PlayerIndex uint16
}

// Opcode implements Packet.
func (*AuthSuccess) Opcode() Opcode { return OpAuthSuccess }

func (p *AuthSuccess) encode(w *Writer) {
	w.WriteUint16(p.PlayerIndex)
}

func (p *AuthSuccess) decode(r *Reader) (err error) {
	p.PlayerIndex, err = r.ReadUint16()
	return err
}

// MatchLayer is one layer's dimensions and tile content.
type MatchLayer struct {
	Width  uint16
	Height uint16
	Tiles  []uint32
}

// MatchData carries the initial match state sent right after AuthSuccess.
type MatchData struct {
	BackgroundColor uint32
	TileSize        float64
	Layers          []MatchLayer
}

// Opcode implements Packet.
func (*MatchData) Opcode() Opcode { return OpMatchData }

func (p *MatchData) encode(w *Writer) {
	w.WriteUint32(p.BackgroundColor)
	w.WriteFloat64(p.TileSize)
	w.WriteUnsigned(uint64(len(p.Layers)))
	for _, layer := range p.Layers {
		w.WriteUint16(layer.Width)
		w.WriteUint16(layer.Height)
		for _, tile := range layer.Tiles {
			w.WriteUnsigned(uint64(tile))
		}
	}
}

func (p *MatchData) decode(r *Reader) error {
	var err error
	if p.BackgroundColor, err = r.ReadUint32(); err != nil {
		return err
	}
	if p.TileSize, err = r.ReadFloat64(); err != nil {
		return err
	}
	layerCount, err := r.ReadUnsigned()
	if err != nil {
		return err
	}
	if layerCount > uint64(r.Remaining()) {
		return errors.E(errors.CodeProtocolMalformedPacket, "layer count %d exceeds payload", layerCount)
	}
	p.Layers = make([]MatchLayer, layerCount)
	for i := range p.Layers {
		layer := &p.Layers[i]
		if layer.Width, err = r.ReadUint16(); err != nil {
			return err
		}
		if layer.Height, err = r.ReadUint16(); err != nil {
			return err
		}
		tileCount := int(layer.Width) * int(layer.Height)
		if tileCount > r.Remaining() {
			return errors.E(errors.CodeProtocolMalformedPacket, "tile count %d exceeds payload", tileCount)
		}
		layer.Tiles = make([]uint32, tileCount)
		for j := range layer.Tiles {
			tile, err := r.ReadUnsigned()
			if err != nil {
				return err
			}
			layer.Tiles[j] = uint32(tile)
		}
	}
	return nil
}

// AssetEntry describes one registered asset for the client content diff.
type AssetEntry struct {
	Path     string
	Size     uint64
	Checksum []byte
}

// AssetList enumerates the match's registered assets.
type AssetList struct {
	Assets []AssetEntry
}

// Opcode implements Packet.
func (*AssetList) Opcode() Opcode { return OpAssetList }

func (p *AssetList) encode(w *Writer) {
	w.WriteUnsigned(uint64(len(p.Assets)))
	for _, asset := range p.Assets {
		w.WriteString(asset.Path)
		w.WriteUnsigned(asset.Size)
		w.WriteBytes(asset.Checksum)
	}
}

func (p *AssetList) decode(r *Reader) error {
	count, err := r.ReadUnsigned()
	if err != nil {
		return err
	}
	if count > uint64(r.Remaining()) {
		return errors.E(errors.CodeProtocolMalformedPacket, "asset count %d exceeds payload", count)
	}
	p.Assets = make([]AssetEntry, count)
	for i := range p.Assets {
		asset := &p.Assets[i]
		if asset.Path, err = r.ReadString(); err != nil {
			return err
		}
		if asset.Size, err = r.ReadUnsigned(); err != nil {
			return err
		}
		if asset.Checksum, err = r.ReadBytes(); err != nil {
			return err
		}
	}
	return nil
}

// ScriptEntry describes one client-visible script for the content diff.
type ScriptEntry struct {
	Path     string
	Checksum []byte
}

// ScriptList enumerates the match's client-visible scripts.
type ScriptList struct {
	Scripts []ScriptEntry
}

// Opcode implements Packet.
func (*ScriptList) Opcode() Opcode { return OpScriptList }

func (p *ScriptList) encode(w *Writer) {
	w.WriteUnsigned(uint64(len(p.Scripts)))
	for _, script := range p.Scripts {
		w.WriteString(script.Path)
		w.WriteBytes(script.Checksum)
	}
}

func (p *ScriptList) decode(r *Reader) error {
	count, err := r.ReadUnsigned()
	if err != nil {
		return err
	}
	if count > uint64(r.Remaining()) {
		return errors.E(errors.CodeProtocolMalformedPacket, "script count %d exceeds payload", count)
	}
	p.Scripts = make([]ScriptEntry, count)
	for i := range p.Scripts {
		script := &p.Scripts[i]
		if script.Path, err = r.ReadString(); err != nil {
			return err
		}
		if script.Checksum, err = r.ReadBytes(); err != nil {
			return err
		}
	}
	return nil
}

// DownloadAssetRequest asks for one asset's raw bytes.
type DownloadAssetRequest struct {
	Path string
}

// Opcode implements Packet.
func (*DownloadAssetRequest) Opcode() Opcode { return OpDownloadAssetRequest }

func (p *DownloadAssetRequest) encode(w *Writer) {
	w.WriteString(p.Path)
}

func (p *DownloadAssetRequest) decode(r *Reader) (err error) {
	p.Path, err = r.ReadString()
	return err
}

// DownloadAssetResponse carries one asset's raw bytes.
type DownloadAssetResponse struct {
	Path    string
	Content []byte
}

// Opcode implements Packet.
func (*DownloadAssetResponse) Opcode() Opcode { return OpDownloadAssetResponse }

func (p *DownloadAssetResponse) encode(w *Writer) {
	w.WriteString(p.Path)
	w.WriteBytes(p.Content)
}

func (p *DownloadAssetResponse) decode(r *Reader) error {
	var err error
	if p.Path, err = r.ReadString(); err != nil {
		return err
	}
	p.Content, err = r.ReadBytes()
	return err
}

// DownloadScriptRequest asks for one client script's raw bytes.
type DownloadScriptRequest struct {
	Path string
}

// Opcode implements Packet.
func (*DownloadScriptRequest) Opcode() Opcode { return OpDownloadScriptRequest }

func (p *DownloadScriptRequest) encode(w *Writer) {
	w.WriteString(p.Path)
}

func (p *DownloadScriptRequest) decode(r *Reader) (err error) {
	p.Path, err = r.ReadString()
	return err
}

// DownloadScriptResponse carries one client script's raw bytes.
type DownloadScriptResponse struct {
	Path    string
	Content []byte
}

// Opcode implements Packet.
func (*DownloadScriptResponse) Opcode() Opcode { return OpDownloadScriptResponse }

func (p *DownloadScriptResponse) encode(w *Writer) {
	w.WriteString(p.Path)
	w.WriteBytes(p.Content)
}

func (p *DownloadScriptResponse) decode(r *Reader) error {
	var err error
	if p.Path, err = r.ReadString(); err != nil {
		return err
	}
	p.Content, err = r.ReadBytes()
	return err
}

// Ready reports that the client finished loading content and may receive
// entity replication.
type Ready struct{}

// Opcode implements Packet.
func (*Ready) Opcode() Opcode { return OpReady }

func (*Ready) encode(*Writer) {}

func (*Ready) decode(*Reader) error { return nil }

// PlayerInput carries one input snapshot, applied at the next tick boundary.
type PlayerInput struct {
	Direction mgl64.Vec2
	Jump      bool
	Attack    bool
}

// Opcode implements Packet.
func (*PlayerInput) Opcode() Opcode { return OpPlayerInput }

func (p *PlayerInput) encode(w *Writer) {
	w.WriteFloat64(p.Direction[0])
	w.WriteFloat64(p.Direction[1])
	w.WriteBool(p.Jump)
	w.WriteBool(p.Attack)
}

func (p *PlayerInput) decode(r *Reader) error {
	var err error
	if p.Direction[0], err = r.ReadFloat64(); err != nil {
		return err
	}
	if p.Direction[1], err = r.ReadFloat64(); err != nil {
		return err
	}
	if p.Jump, err = r.ReadBool(); err != nil {
		return err
	}
	p.Attack, err = r.ReadBool()
	return err
}

// NetworkStrings bootstraps the client's string table in server insertion
// order.
type NetworkStrings struct {
	Strings []string
}

// Opcode implements Packet.
func (*NetworkStrings) Opcode() Opcode { return OpNetworkStrings }

func (p *NetworkStrings) encode(w *Writer) {
	w.WriteUnsigned(uint64(len(p.Strings)))
	for _, s := range p.Strings {
		w.WriteString(s)
	}
}

func (p *NetworkStrings) decode(r *Reader) error {
	count, err := r.ReadUnsigned()
	if err != nil {
		return err
	}
	if count > uint64(r.Remaining()) {
		return errors.E(errors.CodeProtocolMalformedPacket, "string count %d exceeds payload", count)
	}
	p.Strings = make([]string, count)
	for i := range p.Strings {
		if p.Strings[i], err = r.ReadString(); err != nil {
			return err
		}
	}
	return nil
}

// ScriptPacket carries an opaque script-defined payload. The packet name is
// interned in the network string table and travels as its index.
type ScriptPacket struct {
	NameIndex uint32
	Content   []byte
}

// Opcode implements Packet.
func (*ScriptPacket) Opcode() Opcode { return OpScriptPacket }

func (p *ScriptPacket) encode(w *Writer) {
	w.WriteUnsigned(uint64(p.NameIndex))
	w.WriteBytes(p.Content)
}

func (p *ScriptPacket) decode(r *Reader) error {
	nameIndex, err := r.ReadUnsigned()
	if err != nil {
		return err
	}
	p.NameIndex = uint32(nameIndex)
	p.Content, err = r.ReadBytes()
	return err
}
