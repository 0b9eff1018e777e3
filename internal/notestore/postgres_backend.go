package notestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

const (
	postgresStateTableName = "notehub_state"
	postgresStateKey       = "default"
)

type sqlOpenFunc func(driverName, dsn string) (*sql.DB, error)

// PostgresStateBackend stores the snapshot in a single-row Postgres table
// with an optimistic-concurrency revision column.
type PostgresStateBackend struct {
	dsn       string
	tableName string
	stateKey  string
	openDB    sqlOpenFunc

	initOnce sync.Once
	initErr  error
	db       *sql.DB
}

func NewPostgresStateBackend(dsn string) (*PostgresStateBackend, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, &ValidationError{Field: "dsn", Reason: "must not be empty"}
	}
	return &PostgresStateBackend{
		dsn:       dsn,
		tableName: postgresStateTableName,
		stateKey:  postgresStateKey,
		openDB:    sql.Open,
	}, nil
}

func (b *PostgresStateBackend) Load(ctx context.Context) ([]byte, string, error) {
	if b == nil {
		return nil, "", nil
	}
	if err := b.ensureReady(ctx); err != nil {
		return nil, "", err
	}
	query := fmt.Sprintf("SELECT revision, payload FROM %s WHERE state_key = $1", postgresQuoteIdentifier(b.tableName))
	var revision string
	var payload []byte
	err := b.db.QueryRowContext(ctx, query, b.stateKey).Scan(&revision, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", err
	}
	return payload, revision, nil
}

func (b *PostgresStateBackend) Save(ctx context.Context, data []byte, ifRevision string) (string, error) {
	if b == nil || data == nil {
		return "", ErrValidation
	}
	if err := b.ensureReady(ctx); err != nil {
		return "", err
	}
	revision := uuid.NewString()
	if ifRevision == "" {
		query := fmt.Sprintf(`
			INSERT INTO %s (state_key, revision, payload, updated_at)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (state_key) DO NOTHING`, postgresQuoteIdentifier(b.tableName))
		result, err := b.db.ExecContext(ctx, query, b.stateKey, revision, data)
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
	query := fmt.Sprintf(`
		UPDATE %s SET revision = $1, payload = $2, updated_at = NOW()
		WHERE state_key = $3 AND revision = $4`, postgresQuoteIdentifier(b.tableName))
	result, err := b.db.ExecContext(ctx, query, revision, data, b.stateKey, ifRevision)
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

func (b *PostgresStateBackend) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

func (b *PostgresStateBackend) ensureReady(ctx context.Context) error {
	if b == nil {
		return ErrValidation
	}
	b.initOnce.Do(func() {
		db, err := b.openDB("postgres", b.dsn)
		if err != nil {
			b.initErr = err
			return
		}
		query := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				state_key TEXT PRIMARY KEY,
				revision TEXT NOT NULL,
				payload BYTEA NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`, postgresQuoteIdentifier(b.tableName))
		if _, err := db.ExecContext(ctx, query); err != nil {
			_ = db.Close()
			b.initErr = err
			return
		}
		b.db = db
	})
	return b.initErr
}

func postgresQuoteIdentifier(identifier string) string {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return `""`
	}
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}
