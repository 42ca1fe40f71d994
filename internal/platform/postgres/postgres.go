// Package postgres opens the connection pool and bootstraps the schema shared
// by the submission, audit, and directory stores.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx connection pool using the provided DSN.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 16
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Schema is applied idempotently at startup and by integration tests.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	role TEXT NOT NULL,
	clinic_id UUID NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_users_clinic ON users(clinic_id);

CREATE TABLE IF NOT EXISTS submissions (
	id UUID PRIMARY KEY,
	clinic_id UUID NOT NULL,
	exam_type TEXT NOT NULL,
	status TEXT NOT NULL,
	form_data JSONB NOT NULL DEFAULT '{}'::jsonb,
	patient_name TEXT NOT NULL,
	patient_identifier TEXT NOT NULL,
	patient_date_of_birth DATE,
	patient_email TEXT NOT NULL DEFAULT '',
	patient_mobile TEXT NOT NULL DEFAULT '',
	examination_date DATE,
	created_by_id UUID NOT NULL,
	assigned_doctor_id UUID,
	assigned_to_id UUID,
	assigned_to_role TEXT NOT NULL DEFAULT '',
	assigned_at TIMESTAMPTZ,
	assigned_by_id UUID,
	approved_by_id UUID,
	approved_at TIMESTAMPTZ,
	submitted_at TIMESTAMPTZ,
	rejected_reason TEXT NOT NULL DEFAULT '',
	last_reviewed_by_id UUID,
	doctor_edit_by_id UUID,
	deleted_at TIMESTAMPTZ,
	version BIGINT NOT NULL DEFAULT 1,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_submissions_clinic_status ON submissions(clinic_id, status);
CREATE INDEX IF NOT EXISTS idx_submissions_created_by ON submissions(created_by_id);
CREATE INDEX IF NOT EXISTS idx_submissions_assigned_to ON submissions(assigned_to_id);

CREATE TABLE IF NOT EXISTS submission_audit_log (
	id UUID PRIMARY KEY,
	seq BIGINT GENERATED ALWAYS AS IDENTITY UNIQUE,
	submission_id UUID NOT NULL REFERENCES submissions(id),
	user_id UUID NOT NULL,
	event_type TEXT NOT NULL,
	changes JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_submission ON submission_audit_log(submission_id, created_at, seq);`

// EnsureSchema creates the tables if needed.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
