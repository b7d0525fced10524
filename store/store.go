// Package store keeps program images in a SQLite database, addressed by the
// SHA-256 of their canonical encoding and optionally by name.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/smalljs/image"
)

var log = commonlog.GetLogger("smalljs.store")

// ErrNotFound indicates the requested image doesn't exist.
var ErrNotFound = errors.New("image not found")

// ErrAmbiguous indicates a hash prefix matching more than one image.
var ErrAmbiguous = errors.New("ambiguous image reference")

// minPrefix is the shortest hash prefix Resolve accepts.
const minPrefix = 6

// Entry describes a stored image.
type Entry struct {
	Hash    string
	Name    string
	Size    int
	Created time.Time
}

// Store is a SQLite-backed image store. It is safe for concurrent use.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the store at path, creating parent directories.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS images (
		hash TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		data BLOB NOT NULL,
		created_at INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}
	if _, err := db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS images_name ON images (name)"); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating index: %w", err)
	}

	log.Debugf("opened image store %s", path)
	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Put stores img under name and returns its hash. Storing the same image
// again only updates the name when a non-empty one is given.
func (s *Store) Put(ctx context.Context, name string, img *image.Image) (string, error) {
	data, err := image.Marshal(img)
	if err != nil {
		return "", err
	}
	hash := image.HashBytes(data)

	_, err = s.db.ExecContext(ctx, `INSERT INTO images (hash, name, data, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(hash) DO UPDATE SET name = CASE WHEN excluded.name != '' THEN excluded.name ELSE images.name END`,
		hash, name, data, time.Now().Unix())
	if err != nil {
		return "", fmt.Errorf("saving image: %w", err)
	}
	log.Infof("stored image %s (%s, %d bytes)", hash[:12], name, len(data))
	return hash, nil
}

// Get loads the image with the exact hash.
func (s *Store) Get(ctx context.Context, hash string) (*image.Image, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT data FROM images WHERE hash = ?", hash).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, hash)
		}
		return nil, fmt.Errorf("querying image: %w", err)
	}
	if got := image.HashBytes(data); got != hash {
		return nil, fmt.Errorf("image %s: stored data hashes to %s", hash, got)
	}
	return image.Unmarshal(data)
}

// Resolve finds an image by name, full hash or unique hash prefix. Names
// win over hashes; the most recent image carrying a name is returned.
func (s *Store) Resolve(ctx context.Context, ref string) (*image.Image, string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx,
		"SELECT hash FROM images WHERE name = ? ORDER BY created_at DESC, rowid DESC LIMIT 1", ref).Scan(&hash)
	switch {
	case err == nil:
	case errors.Is(err, sql.ErrNoRows):
		hash, err = s.resolvePrefix(ctx, ref)
		if err != nil {
			return nil, "", err
		}
	default:
		return nil, "", fmt.Errorf("querying image: %w", err)
	}

	img, err := s.Get(ctx, hash)
	if err != nil {
		return nil, "", err
	}
	return img, hash, nil
}

func (s *Store) resolvePrefix(ctx context.Context, prefix string) (string, error) {
	if len(prefix) < minPrefix || strings.ContainsAny(prefix, "%_") {
		return "", fmt.Errorf("%w: %s", ErrNotFound, prefix)
	}
	rows, err := s.db.QueryContext(ctx, "SELECT hash FROM images WHERE hash LIKE ? LIMIT 2", strings.ToLower(prefix)+"%")
	if err != nil {
		return "", fmt.Errorf("querying image: %w", err)
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return "", fmt.Errorf("scanning image: %w", err)
		}
		hashes = append(hashes, h)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("querying image: %w", err)
	}

	switch len(hashes) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrNotFound, prefix)
	case 1:
		return hashes[0], nil
	}
	return "", fmt.Errorf("%w: %s", ErrAmbiguous, prefix)
}

// List returns all stored images, newest first.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT hash, name, length(data), created_at FROM images ORDER BY created_at DESC, rowid DESC")
	if err != nil {
		return nil, fmt.Errorf("listing images: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var created int64
		if err := rows.Scan(&e.Hash, &e.Name, &e.Size, &created); err != nil {
			return nil, fmt.Errorf("scanning image: %w", err)
		}
		e.Created = time.Unix(created, 0)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing images: %w", err)
	}
	return entries, nil
}

// Delete removes the image with the exact hash.
func (s *Store) Delete(ctx context.Context, hash string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM images WHERE hash = ?", hash)
	if err != nil {
		return fmt.Errorf("deleting image: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, hash)
	}
	return nil
}
