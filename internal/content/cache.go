package content

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/louisbranch/skirmish.space/internal/content/migrations"
	"github.com/louisbranch/skirmish.space/internal/platform/storage/sqlitemigrate"
)

// ChecksumCache persists content checksums keyed by (path, size, mtime) so a
// registry reload only rehashes files that actually changed.
type ChecksumCache struct {
	sqlDB *sql.DB
}

// OpenChecksumCache opens (or creates) the cache database at path and applies
// embedded migrations.
func OpenChecksumCache(path string) (*ChecksumCache, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("cache path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open checksum cache: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping checksum cache: %w", err)
	}
	if err := sqlitemigrate.Apply(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &ChecksumCache{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (c *ChecksumCache) Close() error {
	if c == nil || c.sqlDB == nil {
		return nil
	}
	return c.sqlDB.Close()
}

// Get returns the cached checksum for path when size and mtime still match.
func (c *ChecksumCache) Get(ctx context.Context, path string, size, mtime int64) ([]byte, bool, error) {
	if c == nil || c.sqlDB == nil {
		return nil, false, nil
	}
	var checksum []byte
	err := c.sqlDB.QueryRowContext(ctx,
		"SELECT checksum FROM checksums WHERE path = ? AND size = ? AND mtime = ?",
		path, size, mtime,
	).Scan(&checksum)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("lookup checksum %s: %w", path, err)
	}
	return checksum, true, nil
}

// Put records the checksum for path at the given size and mtime, replacing
// any previous entry for the path.
func (c *ChecksumCache) Put(ctx context.Context, path string, size, mtime int64, checksum []byte) error {
	if c == nil || c.sqlDB == nil {
		return nil
	}
	_, err := c.sqlDB.ExecContext(ctx,
		`INSERT INTO checksums (path, size, mtime, checksum) VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET size = excluded.size, mtime = excluded.mtime, checksum = excluded.checksum`,
		path, size, mtime, checksum,
	)
	if err != nil {
		return fmt.Errorf("store checksum %s: %w", path, err)
	}
	return nil
}
