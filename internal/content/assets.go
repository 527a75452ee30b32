// Package content tracks the assets and client scripts a match serves to its
// clients.
//
// Both registries address content by SHA-1 checksum. Clients diff the
// registry enumeration against their local cache by path and checksum and
// download only what they are missing, so a changed checksum means "clients
// must re-fetch".
package content

import (
	"context"
	"crypto/sha1"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/louisbranch/skirmish.space/internal/errors"
)

// AssetEntry is one catalog row delivered in the client asset list.
type AssetEntry struct {
	Path     string
	Size     uint64
	Checksum []byte
}

// Assets catalogs the binary assets (textures, sounds) of one match.
// Re-registration is last-write-wins: the newest size and checksum replace
// the old entry at its original list position.
type Assets struct {
	dir   string
	log   *log.Logger
	cache *ChecksumCache

	order   []string
	entries map[string]*AssetEntry
}

// NewAssets creates an asset registry rooted at dir. cache may be nil, in
// which case every registration hashes the file.
func NewAssets(dir string, logger *log.Logger, cache *ChecksumCache) *Assets {
	return &Assets{
		dir:     dir,
		log:     logger,
		cache:   cache,
		entries: map[string]*AssetEntry{},
	}
}

// Register computes size and checksum for the asset at path (relative to the
// registry root) and inserts or updates its catalog entry.
func (a *Assets) Register(ctx context.Context, path string) error {
	full := filepath.Join(a.dir, path)
	info, err := os.Stat(full)
	if err != nil {
		return errors.Wrap(errors.CodeContentMissingPath, fmt.Errorf("asset %s: %w", path, err))
	}
	size, mtime := info.Size(), info.ModTime().UnixMilli()

	checksum, hit, err := a.cache.Get(ctx, path, size, mtime)
	if err != nil {
		a.log.Printf("checksum cache lookup %s: %v", path, err)
		hit = false
	}
	if !hit {
		checksum, err = hashFile(full)
		if err != nil {
			return errors.Wrap(errors.CodeContentInvalidAsset, fmt.Errorf("asset %s: %w", path, err))
		}
		if err := a.cache.Put(ctx, path, size, mtime, checksum); err != nil {
			a.log.Printf("checksum cache store %s: %v", path, err)
		}
	}
	a.insert(AssetEntry{Path: path, Size: uint64(size), Checksum: checksum})
	return nil
}

// RegisterPrecomputed inserts or updates a catalog entry from manifest data
// without touching the filesystem.
func (a *Assets) RegisterPrecomputed(path string, size uint64, checksum []byte) {
	a.insert(AssetEntry{Path: path, Size: size, Checksum: checksum})
}

func (a *Assets) insert(entry AssetEntry) {
	if existing, ok := a.entries[entry.Path]; ok {
		*existing = entry
		return
	}
	a.order = append(a.order, entry.Path)
	a.entries[entry.Path] = &entry
}

// Reload re-registers every cataloged asset, overwriting stale checksums.
// Per-entry failures are logged and skipped; the reload never aborts.
func (a *Assets) Reload(ctx context.Context) {
	for _, path := range a.order {
		if err := a.Register(ctx, path); err != nil {
			a.log.Printf("reload asset %s: %v", path, err)
		}
	}
}

// Lookup returns the catalog entry for path.
func (a *Assets) Lookup(path string) (AssetEntry, bool) {
	entry, ok := a.entries[path]
	if !ok {
		return AssetEntry{}, false
	}
	return *entry, true
}

// List enumerates the catalog in registration order, for the client asset
// list.
func (a *Assets) List() []AssetEntry {
	out := make([]AssetEntry, 0, len(a.order))
	for _, path := range a.order {
		out = append(out, *a.entries[path])
	}
	return out
}

// Content reads a cataloged asset's raw bytes for on-demand delivery.
func (a *Assets) Content(path string) ([]byte, error) {
	if _, ok := a.entries[path]; !ok {
		return nil, errors.E(errors.CodeContentMissingPath, "asset %s is not cataloged", path)
	}
	data, err := os.ReadFile(filepath.Join(a.dir, path))
	if err != nil {
		return nil, errors.Wrap(errors.CodeContentMissingPath, fmt.Errorf("asset %s: %w", path, err))
	}
	return data, nil
}

// Len reports the number of cataloged assets.
func (a *Assets) Len() int { return len(a.order) }

// Dir returns the root directory asset paths resolve against.
func (a *Assets) Dir() string { return a.dir }

func hashFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}
