package protocol

import "github.com/louisbranch/skirmish.space/internal/errors"

// StringStore is the bidirectional string-to-index table shared between
// server and client so repeated strings never travel on the wire twice.
//
// Index assignment order is insertion order and must be identical on both
// sides: entries are never renumbered or evicted within a match's lifetime.
type StringStore struct {
	strings []string
	indices map[string]uint32
}

// NewStringStore returns an empty string store.
func NewStringStore() *StringStore {
	return &StringStore{indices: make(map[string]uint32)}
}

// RegisterString interns s and returns its index. Registering an already
// known string returns the existing index.
func (s *StringStore) RegisterString(str string) uint32 {
	if index, ok := s.indices[str]; ok {
		return index
	}
	index := uint32(len(s.strings))
	s.strings = append(s.strings, str)
	s.indices[str] = index
	return index
}

// GetString resolves an index received on the wire. An out-of-range index is
// a ProtocolError.
func (s *StringStore) GetString(index uint32) (string, error) {
	if int(index) >= len(s.strings) {
		return "", errors.E(errors.CodeProtocolUnknownString, "string index %d out of range", index)
	}
	return s.strings[index], nil
}

// GetStringIndex reports the index assigned to str, if any.
func (s *StringStore) GetStringIndex(str string) (uint32, bool) {
	index, ok := s.indices[str]
	return index, ok
}

// Count reports the number of interned strings.
func (s *StringStore) Count() int {
	return len(s.strings)
}

// Strings returns the interned strings in insertion order, for client
// bootstrap packets.
func (s *StringStore) Strings() []string {
	out := make([]string, len(s.strings))
	copy(out, s.strings)
	return out
}
