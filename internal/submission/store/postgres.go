package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"examflow/internal/submission/models"
	"examflow/pkg/domain"
	"examflow/pkg/platform/sentinel"
	txcontext "examflow/pkg/platform/tx"
)

// PostgresStore persists submissions in PostgreSQL. Writes join the
// transaction carried in the context.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

type dbExecutor interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.pool
}

const submissionColumns = `id, clinic_id, exam_type, status, form_data,
	patient_name, patient_identifier, patient_date_of_birth, patient_email, patient_mobile, examination_date,
	created_by_id, assigned_doctor_id, assigned_to_id, assigned_to_role, assigned_at, assigned_by_id,
	approved_by_id, approved_at, submitted_at, rejected_reason, last_reviewed_by_id, doctor_edit_by_id,
	deleted_at, version, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, sub *models.Submission) error {
	_, err := s.execer(ctx).Exec(ctx, `
		INSERT INTO submissions (`+submissionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17,
			$18, $19, $20, $21, $22, $23, $24, $25, $26, $27)
	`,
		sub.ID.UUID(), sub.ClinicID.UUID(), string(sub.ExamType), string(sub.Status), formData(sub.FormData),
		sub.PatientName, sub.PatientIdentifier, sub.PatientDateOfBirth, sub.PatientEmail, sub.PatientMobile, sub.ExaminationDate,
		sub.CreatedByID.UUID(), userArg(sub.AssignedDoctorID), userArg(sub.AssignedToID), string(sub.AssignedToRole), sub.AssignedAt, userArg(sub.AssignedByID),
		userArg(sub.ApprovedByID), sub.ApprovedAt, sub.SubmittedAt, sub.RejectedReason, userArg(sub.LastReviewedByID), userArg(sub.DoctorEditByID),
		sub.DeletedAt, sub.Version, sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("submission %s already exists: %w", sub.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.SubmissionID) (*models.Submission, error) {
	row := s.execer(ctx).QueryRow(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, id.UUID())
	sub, err := scanSubmission(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("submission %s: %w", id, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find submission: %w", err)
	}
	return sub, nil
}

// UpdateIfUnchanged writes every mutable column guarded by the expected
// status and version. Zero affected rows means another writer won.
func (s *PostgresStore) UpdateIfUnchanged(ctx context.Context, sub *models.Submission, expectedStatus models.Status, expectedVersion int64) error {
	tag, err := s.execer(ctx).Exec(ctx, `
		UPDATE submissions SET
			exam_type = $4, status = $5, form_data = $6,
			patient_name = $7, patient_identifier = $8, patient_date_of_birth = $9,
			patient_email = $10, patient_mobile = $11, examination_date = $12,
			assigned_doctor_id = $13, assigned_to_id = $14, assigned_to_role = $15,
			assigned_at = $16, assigned_by_id = $17,
			approved_by_id = $18, approved_at = $19, submitted_at = $20,
			rejected_reason = $21, last_reviewed_by_id = $22, doctor_edit_by_id = $23,
			deleted_at = $24, updated_at = $25,
			version = version + 1
		WHERE id = $1 AND status = $2 AND version = $3
	`,
		sub.ID.UUID(), string(expectedStatus), expectedVersion,
		string(sub.ExamType), string(sub.Status), formData(sub.FormData),
		sub.PatientName, sub.PatientIdentifier, sub.PatientDateOfBirth,
		sub.PatientEmail, sub.PatientMobile, sub.ExaminationDate,
		userArg(sub.AssignedDoctorID), userArg(sub.AssignedToID), string(sub.AssignedToRole),
		sub.AssignedAt, userArg(sub.AssignedByID),
		userArg(sub.ApprovedByID), sub.ApprovedAt, sub.SubmittedAt,
		sub.RejectedReason, userArg(sub.LastReviewedByID), userArg(sub.DoctorEditByID),
		sub.DeletedAt, sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update submission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("submission %s changed concurrently: %w", sub.ID, sentinel.ErrConflict)
	}
	sub.Version = expectedVersion + 1
	return nil
}

// List returns one page of matching rows, newest first.
func (s *PostgresStore) List(ctx context.Context, q models.Query) ([]*models.Submission, error) {
	where, args := buildPredicate(q)
	args = append(args, q.Filters.Limit, q.Filters.Offset())
	sql := fmt.Sprintf(`SELECT %s FROM submissions WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		submissionColumns, where, len(args)-1, len(args))

	rows, err := s.execer(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var out []*models.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Count(ctx context.Context, q models.Query) (int, error) {
	where, args := buildPredicate(q)
	var total int
	if err := s.execer(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM submissions WHERE `+where, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count submissions: %w", err)
	}
	return total, nil
}

// buildPredicate renders models.Query.Matches as SQL.
func buildPredicate(q models.Query) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q.Scope.ClinicWide {
		clauses = append(clauses, "clinic_id = "+arg(q.Scope.ClinicID.UUID()))
	} else {
		p := arg(q.Scope.ParticipantID.UUID())
		scope := fmt.Sprintf("created_by_id = %s OR approved_by_id = %s OR assigned_to_id = %s", p, p, p)
		if q.Scope.ReviewClinicID != nil {
			scope += fmt.Sprintf(" OR (clinic_id = %s AND status = %s)",
				arg(q.Scope.ReviewClinicID.UUID()), arg(string(models.StatusPendingApproval)))
		}
		clauses = append(clauses, "("+scope+")")
	}

	f := q.Filters
	if !f.IncludeDeleted {
		clauses = append(clauses, "deleted_at IS NULL")
	}
	if f.Status != "" {
		clauses = append(clauses, "status = "+arg(string(f.Status)))
	}
	if f.ExamType != "" {
		clauses = append(clauses, "exam_type = "+arg(string(f.ExamType)))
	}
	if f.PatientName != "" {
		clauses = append(clauses, "patient_name ILIKE "+arg("%"+escapeLike(f.PatientName)+"%"))
	}
	if f.PatientIdentifier != "" {
		clauses = append(clauses, "patient_identifier = "+arg(f.PatientIdentifier))
	}
	if f.CreatedFrom != nil {
		clauses = append(clauses, "created_at >= "+arg(*f.CreatedFrom))
	}
	if f.CreatedTo != nil {
		clauses = append(clauses, "created_at <= "+arg(*f.CreatedTo))
	}
	return strings.Join(clauses, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }

func scanSubmission(row pgx.Row) (*models.Submission, error) {
	var (
		sub                                                       models.Submission
		id, clinicID, createdBy                                   uuid.UUID
		examType, status, assignedToRole                          string
		assignedDoctor, assignedTo, assignedBy, approvedBy        *uuid.UUID
		lastReviewedBy, doctorEditBy                              *uuid.UUID
		dob, examDate, assignedAt, approvedAt, submittedAt, delAt *time.Time
	)
	err := row.Scan(
		&id, &clinicID, &examType, &status, &sub.FormData,
		&sub.PatientName, &sub.PatientIdentifier, &dob, &sub.PatientEmail, &sub.PatientMobile, &examDate,
		&createdBy, &assignedDoctor, &assignedTo, &assignedToRole, &assignedAt, &assignedBy,
		&approvedBy, &approvedAt, &submittedAt, &sub.RejectedReason, &lastReviewedBy, &doctorEditBy,
		&delAt, &sub.Version, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	sub.ID = domain.SubmissionID(id)
	sub.ClinicID = domain.ClinicID(clinicID)
	sub.ExamType = models.ExamType(examType)
	sub.Status = models.Status(status)
	sub.PatientDateOfBirth = dob
	sub.ExaminationDate = examDate
	sub.CreatedByID = domain.UserID(createdBy)
	sub.AssignedDoctorID = userFrom(assignedDoctor)
	sub.AssignedToID = userFrom(assignedTo)
	sub.AssignedToRole = domain.Role(assignedToRole)
	sub.AssignedAt = assignedAt
	sub.AssignedByID = userFrom(assignedBy)
	sub.ApprovedByID = userFrom(approvedBy)
	sub.ApprovedAt = approvedAt
	sub.SubmittedAt = submittedAt
	sub.LastReviewedByID = userFrom(lastReviewedBy)
	sub.DoctorEditByID = userFrom(doctorEditBy)
	sub.DeletedAt = delAt
	if sub.FormData == nil {
		sub.FormData = map[string]any{}
	}
	return &sub, nil
}

func userArg(id *domain.UserID) *uuid.UUID {
	if id == nil {
		return nil
	}
	u := id.UUID()
	return &u
}

func userFrom(u *uuid.UUID) *domain.UserID {
	if u == nil {
		return nil
	}
	id := domain.UserID(*u)
	return &id
}

func formData(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
