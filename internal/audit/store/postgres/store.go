package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"examflow/internal/audit"
	"examflow/pkg/domain"
	txcontext "examflow/pkg/platform/tx"
)

// Store implements audit.Store on the submission_audit_log table. Appends
// join the transaction carried in the context so entries commit atomically
// with the submission row they describe.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

type dbExecutor interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.pool
}

func (s *Store) Append(ctx context.Context, entry *audit.Entry) error {
	changes, err := audit.EncodeChanges(entry.Changes)
	if err != nil {
		return fmt.Errorf("marshal audit changes: %w", err)
	}

	const query = `
		INSERT INTO submission_audit_log (id, submission_id, user_id, event_type, changes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING seq`
	err = s.execer(ctx).QueryRow(ctx, query,
		entry.ID.UUID(),
		entry.SubmissionID.UUID(),
		entry.UserID.UUID(),
		entry.EventType.String(),
		changes,
		entry.Timestamp,
	).Scan(&entry.Sequence)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (s *Store) ListBySubmission(ctx context.Context, submissionID domain.SubmissionID) ([]audit.Entry, error) {
	const query = `
		SELECT id, submission_id, user_id, event_type, changes, created_at, seq
		FROM submission_audit_log
		WHERE submission_id = $1
		ORDER BY created_at ASC, seq ASC`
	rows, err := s.execer(ctx).Query(ctx, query, submissionID.UUID())
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var (
			id, subID, userID uuid.UUID
			eventType         string
			raw               []byte
			at                time.Time
			seq               int64
		)
		if err := rows.Scan(&id, &subID, &userID, &eventType, &raw, &at, &seq); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		changes, err := audit.DecodeChanges(audit.EventType(eventType), raw)
		if err != nil {
			return nil, err
		}
		entries = append(entries, audit.Entry{
			ID:           domain.AuditEntryID(id),
			SubmissionID: domain.SubmissionID(subID),
			UserID:       domain.UserID(userID),
			EventType:    audit.EventType(eventType),
			Timestamp:    at,
			Sequence:     seq,
			Changes:      changes,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}
