package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// DB wraps sql.DB for Postgres using pgx.
type DB struct {
	Client *sql.DB
}

// NewDB creates a Postgres connection with sane defaults.
func NewDB(connString string) (*DB, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	return &DB{Client: db}, db.PingContext(context.Background())
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}

// Migrate applies the bootstrap schema. It is idempotent and safe to run at
// startup; production deployments can run migrations/ out of band instead.
func (d *DB) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS employees (
		id             UUID PRIMARY KEY,
		employee_id    TEXT UNIQUE NOT NULL,
		name           TEXT UNIQUE NOT NULL,
		email          TEXT UNIQUE NOT NULL,
		phone          TEXT UNIQUE NOT NULL,
		department     TEXT NOT NULL DEFAULT '',
		designation    TEXT NOT NULL DEFAULT '',
		password_hash  TEXT NOT NULL,
		profile_photos JSONB NOT NULL DEFAULT '[]',
		profile_photo  TEXT,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS attendance (
		employee_id    TEXT NOT NULL REFERENCES employees(employee_id),
		day            DATE NOT NULL,
		check_in_time  TIMESTAMPTZ NOT NULL,
		check_out_time TIMESTAMPTZ,
		status         TEXT NOT NULL DEFAULT 'Present',
		ppe_compliant  BOOLEAN NOT NULL DEFAULT FALSE,
		ppe_items      JSONB NOT NULL DEFAULT '{}',
		ppe_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (employee_id, day)
	);

	CREATE INDEX IF NOT EXISTS idx_attendance_day ON attendance(day);
	`
	if _, err := d.Client.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
