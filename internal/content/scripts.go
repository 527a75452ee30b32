package content

import (
	"crypto/sha1"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/louisbranch/skirmish.space/internal/errors"
)

// ScriptEntry is one catalog row delivered in the client script list.
type ScriptEntry struct {
	Path     string
	Checksum []byte
}

type scriptRecord struct {
	checksum []byte
	content  []byte
}

// Scripts catalogs the client-side scripts of one match. Unlike assets, the
// raw bytes are kept in memory for on-demand delivery.
type Scripts struct {
	dir string
	log *log.Logger

	order   []string
	entries map[string]*scriptRecord
}

// NewScripts creates a script registry rooted at dir.
func NewScripts(dir string, logger *log.Logger) *Scripts {
	return &Scripts{
		dir:     dir,
		log:     logger,
		entries: map[string]*scriptRecord{},
	}
}

// Register reads the script at path (relative to the registry root),
// computes its checksum, and stores the content. Re-registration is
// last-write-wins.
func (s *Scripts) Register(path string) error {
	data, err := os.ReadFile(filepath.Join(s.dir, path))
	if err != nil {
		return errors.Wrap(errors.CodeContentMissingPath, fmt.Errorf("script %s: %w", path, err))
	}
	sum := sha1.Sum(data)
	if existing, ok := s.entries[path]; ok {
		existing.checksum = sum[:]
		existing.content = data
		return nil
	}
	s.order = append(s.order, path)
	s.entries[path] = &scriptRecord{checksum: sum[:], content: data}
	return nil
}

// Reload re-reads every cataloged script, overwriting stale checksums.
// Per-entry failures are logged and skipped.
func (s *Scripts) Reload() {
	for _, path := range s.order {
		if err := s.Register(path); err != nil {
			s.log.Printf("reload script %s: %v", path, err)
		}
	}
}

// List enumerates the catalog in registration order, for the client script
// list.
func (s *Scripts) List() []ScriptEntry {
	out := make([]ScriptEntry, 0, len(s.order))
	for _, path := range s.order {
		out = append(out, ScriptEntry{Path: path, Checksum: s.entries[path].checksum})
	}
	return out
}

// Content returns a cataloged script's raw bytes.
func (s *Scripts) Content(path string) ([]byte, bool) {
	record, ok := s.entries[path]
	if !ok {
		return nil, false
	}
	return record.content, true
}

// Len reports the number of cataloged scripts.
func (s *Scripts) Len() int { return len(s.order) }

// Dir returns the root directory script paths resolve against.
func (s *Scripts) Dir() string { return s.dir }
