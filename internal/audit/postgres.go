package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

const createTable = `CREATE TABLE IF NOT EXISTS command_audit (
    id          UUID PRIMARY KEY,
    at          TIMESTAMPTZ NOT NULL,
    actor       TEXT NOT NULL,
    command     TEXT NOT NULL,
    target      TEXT NOT NULL DEFAULT '',
    outcome     TEXT NOT NULL
)`

// PostgresSink appends entries to the command_audit table.
type PostgresSink struct {
	db *sql.DB
}

func NewPostgresSink(databaseURL string) (*PostgresSink, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, createTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create command_audit: %w", err)
	}
	return &PostgresSink{db: db}, nil
}

func (p *PostgresSink) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}

func (p *PostgresSink) Record(ctx context.Context, e Entry) error {
	if p == nil || p.db == nil {
		return nil
	}
	const q = `INSERT INTO command_audit (id, at, actor, command, target, outcome)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (id) DO NOTHING`
	_, err := p.db.ExecContext(ctx, q, e.ID, e.At, e.Actor, e.Command, e.Target, string(e.Outcome))
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}
