package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

const sessionsTable = "lookout.workflow_sessions"

// Schema creates the sessions table.
const Schema = `CREATE SCHEMA IF NOT EXISTS lookout;
CREATE TABLE IF NOT EXISTS lookout.workflow_sessions (
	session_id TEXT PRIMARY KEY,
	stage      TEXT NOT NULL,
	data       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);`

// PostgresStore upserts the whole record in one statement.
type PostgresStore struct {
	db *sql.DB
	qb sq.StatementBuilderType
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, qb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar)}
}

// EnsureSchema applies Schema. Every statement is idempotent.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (p *PostgresStore) Save(ctx context.Context, s *Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	query, args, err := p.qb.Insert(sessionsTable).
		Columns("session_id", "stage", "data", "created_at", "updated_at").
		Values(s.SessionID, string(s.Stage), data, s.CreatedAt, s.UpdatedAt).
		Suffix("ON CONFLICT (session_id) DO UPDATE SET stage = EXCLUDED.stage, data = EXCLUDED.data, updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert session %s: %w", s.SessionID, err)
	}
	return nil
}

func (p *PostgresStore) Load(ctx context.Context, id string) (*Session, error) {
	query, args, err := p.qb.Select("data").From(sessionsTable).Where(sq.Eq{"session_id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	var data []byte
	if err := p.db.QueryRowContext(ctx, query, args...).Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode state %s: %w", id, err)
	}
	return &s, nil
}

func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}
