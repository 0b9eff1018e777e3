package notestore

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure go sqlite driver
)

const sqliteStateTableName = "notehub_state"

// SQLiteStateBackend stores the snapshot in a single-row SQLite table. The
// compare-and-swap lives in the UPDATE's WHERE clause, so two processes
// sharing the database file cannot overwrite each other's writes unseen.
type SQLiteStateBackend struct {
	path     string
	stateKey string

	initOnce sync.Once
	initErr  error
	db       *sql.DB
}

func NewSQLiteStateBackend(path string) (*SQLiteStateBackend, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, &ValidationError{Field: "path", Reason: "must not be empty"}
	}
	return &SQLiteStateBackend{path: path, stateKey: "default"}, nil
}

func (b *SQLiteStateBackend) Load(ctx context.Context) ([]byte, string, error) {
	if b == nil {
		return nil, "", nil
	}
	if err := b.ensureReady(); err != nil {
		return nil, "", err
	}
	var revision string
	var payload []byte
	err := b.db.QueryRowContext(ctx,
		`SELECT revision, payload FROM `+sqliteStateTableName+` WHERE state_key = ?`,
		b.stateKey).Scan(&revision, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", err
	}
	return payload, revision, nil
}

func (b *SQLiteStateBackend) Save(ctx context.Context, data []byte, ifRevision string) (string, error) {
	if b == nil || data == nil {
		return "", ErrValidation
	}
	if err := b.ensureReady(); err != nil {
		return "", err
	}
	revision := uuid.NewString()
	if ifRevision == "" {
		result, err := b.db.ExecContext(ctx,
			`INSERT INTO `+sqliteStateTableName+` (state_key, revision, payload) VALUES (?, ?, ?)
			 ON CONFLICT (state_key) DO NOTHING`,
			b.stateKey, revision, data)
		if err != nil {
			return "", err
		}
		inserted, err := result.RowsAffected()
		if err != nil {
			return "", err
		}
		if inserted == 0 {
			return "", ErrRevisionConflict
		}
		return revision, nil
	}
	result, err := b.db.ExecContext(ctx,
		`UPDATE `+sqliteStateTableName+` SET revision = ?, payload = ? WHERE state_key = ? AND revision = ?`,
		revision, data, b.stateKey, ifRevision)
	if err != nil {
		return "", err
	}
	updated, err := result.RowsAffected()
	if err != nil {
		return "", err
	}
	if updated == 0 {
		return "", ErrRevisionConflict
	}
	return revision, nil
}

func (b *SQLiteStateBackend) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

func (b *SQLiteStateBackend) ensureReady() error {
	if b == nil {
		return ErrValidation
	}
	b.initOnce.Do(func() {
		dir := filepath.Dir(b.path)
		if dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				b.initErr = err
				return
			}
		}
		db, err := sql.Open("sqlite", b.path)
		if err != nil {
			b.initErr = err
			return
		}
		if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS ` + sqliteStateTableName + ` (
			state_key TEXT PRIMARY KEY,
			revision TEXT NOT NULL,
			payload BLOB NOT NULL
		)`); err != nil {
			_ = db.Close()
			b.initErr = err
			return
		}
		b.db = db
	})
	return b.initErr
}
