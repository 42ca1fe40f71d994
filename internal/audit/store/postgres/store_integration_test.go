//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/suite"

	"examflow/internal/audit"
	auditpg "examflow/internal/audit/store/postgres"
	"examflow/internal/submission/models"
	submissionstore "examflow/internal/submission/store"
	"examflow/pkg/domain"
	txcontext "examflow/pkg/platform/tx"
	"examflow/pkg/testutil/containers"
)

type AuditStoreSuite struct {
	suite.Suite
	postgres    *containers.PostgresContainer
	store       *auditpg.Store
	submissions *submissionstore.PostgresStore
}

func TestAuditStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(AuditStoreSuite))
}

func (s *AuditStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = auditpg.New(s.postgres.Pool)
	s.submissions = submissionstore.NewPostgres(s.postgres.Pool)
}

func (s *AuditStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "submission_audit_log", "submissions"))
}

func (s *AuditStoreSuite) submission() *models.Submission {
	creator := models.Actor{UserID: domain.UserID(uuid.New()), Role: domain.RoleNurse, ClinicID: domain.ClinicID(uuid.New())}
	sub, err := models.NewSubmission(domain.NewSubmissionID(), creator, models.CreateInput{
		ExamType:          models.ExamTypeWorkPermit,
		FormData:          map[string]any{},
		PatientName:       "Maria Santos",
		PatientIdentifier: "G1234567N",
	}, time.Now().UTC())
	s.Require().NoError(err)
	s.Require().NoError(s.submissions.Create(context.Background(), sub))
	return sub
}

func (s *AuditStoreSuite) TestAppendAndListInInsertionOrder() {
	ctx := context.Background()
	sub := s.submission()
	at := time.Now().UTC().Truncate(time.Microsecond)
	actor := domain.UserID(uuid.New())

	created, err := audit.NewEntry(sub.ID, actor, audit.EventCreated, audit.CreatedChanges{Status: "draft", ExamType: "work_permit"}, at)
	s.Require().NoError(err)
	assigned, err := audit.NewEntry(sub.ID, actor, audit.EventAssigned, audit.AssignedChanges{AssignedToID: actor, AssignedToName: "Dr Tan", AssignedToRole: domain.RoleDoctor}, at)
	s.Require().NoError(err)

	s.Require().NoError(s.store.Append(ctx, created))
	s.Require().NoError(s.store.Append(ctx, assigned))
	s.Less(created.Sequence, assigned.Sequence)

	entries, err := s.store.ListBySubmission(ctx, sub.ID)
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	s.Equal(audit.EventCreated, entries[0].EventType)
	s.Equal(audit.EventAssigned, entries[1].EventType)
	s.Equal(assigned.Changes, entries[1].Changes)
	s.True(at.Equal(entries[0].Timestamp))
}

func (s *AuditStoreSuite) TestRolledBackTransactionLeavesNoEntry() {
	ctx := context.Background()
	sub := s.submission()

	tx, err := s.postgres.Pool.BeginTx(ctx, pgx.TxOptions{})
	s.Require().NoError(err)
	entry, err := audit.NewEntry(sub.ID, domain.UserID(uuid.New()), audit.EventDeleted, audit.DeletedChanges{PatientName: "Maria Santos"}, time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.store.Append(txcontext.WithTx(ctx, tx), entry))
	s.Require().NoError(tx.Rollback(ctx))

	entries, err := s.store.ListBySubmission(ctx, sub.ID)
	s.Require().NoError(err)
	s.Empty(entries)
}

func (s *AuditStoreSuite) TestAppendRequiresExistingSubmission() {
	entry, err := audit.NewEntry(domain.NewSubmissionID(), domain.UserID(uuid.New()), audit.EventCreated, audit.CreatedChanges{}, time.Now())
	s.Require().NoError(err)
	err = s.store.Append(context.Background(), entry)
	var pgErr *pgconn.PgError
	s.Require().True(errors.As(err, &pgErr))
	s.Equal("23503", pgErr.Code, "foreign key violation")
}
