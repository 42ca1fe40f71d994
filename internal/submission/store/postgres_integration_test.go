//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"examflow/internal/submission/models"
	"examflow/internal/submission/store"
	"examflow/pkg/domain"
	"examflow/pkg/platform/sentinel"
	"examflow/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
	clinic   domain.ClinicID
	nurse    models.Actor
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.Pool)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateTables(ctx, "submission_audit_log", "submissions"))
	s.clinic = domain.ClinicID(uuid.New())
	s.nurse = models.Actor{UserID: domain.UserID(uuid.New()), Role: domain.RoleNurse, ClinicID: s.clinic}
}

func (s *PostgresStoreSuite) create(name string, createdAt time.Time) *models.Submission {
	dob := time.Date(1990, 5, 17, 0, 0, 0, 0, time.UTC)
	sub, err := models.NewSubmission(domain.NewSubmissionID(), s.nurse, models.CreateInput{
		ExamType:           models.ExamTypeSixMonthlyMDW,
		FormData:           map[string]any{"height": 158.0, "weight": 52.5},
		PatientName:        name,
		PatientIdentifier:  "G" + uuid.NewString()[:7],
		PatientDateOfBirth: &dob,
		PatientEmail:       "patient@example.com",
	}, createdAt.UTC().Truncate(time.Microsecond))
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(context.Background(), sub))
	return sub
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	sub := s.create("Maria Santos", time.Now())

	found, err := s.store.FindByID(ctx, sub.ID)
	s.Require().NoError(err)
	s.Equal(sub.ID, found.ID)
	s.Equal(sub.ClinicID, found.ClinicID)
	s.Equal(models.StatusDraft, found.Status)
	s.Equal(52.5, found.FormData["weight"])
	s.Require().NotNil(found.PatientDateOfBirth)
	s.Equal("1990-05-17", found.PatientDateOfBirth.Format(time.DateOnly))
	s.Nil(found.AssignedToID)
	s.Equal(int64(1), found.Version)

	_, err = s.store.FindByID(ctx, domain.NewSubmissionID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestUpdateIfUnchangedPersistsTransition() {
	ctx := context.Background()
	sub := s.create("Maria Santos", time.Now())
	target := domain.UserID(uuid.New())

	next := sub.Clone()
	_, err := next.Assign(target, domain.RoleDoctor, s.nurse.UserID, time.Now().UTC())
	s.Require().NoError(err)
	s.Require().NoError(s.store.UpdateIfUnchanged(ctx, next, models.StatusDraft, 1))
	s.Equal(int64(2), next.Version)

	found, err := s.store.FindByID(ctx, sub.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusInProgress, found.Status)
	s.Require().NotNil(found.AssignedToID)
	s.Equal(target, *found.AssignedToID)
	s.Equal(domain.RoleDoctor, found.AssignedToRole)
	s.Equal(int64(2), found.Version)

	err = s.store.UpdateIfUnchanged(ctx, sub.Clone(), models.StatusDraft, 1)
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestConcurrentRejectsHaveOneWinner() {
	ctx := context.Background()
	sub := s.create("Maria Santos", time.Now())
	pending := sub.Clone()
	s.Require().NoError(pending.SubmitForApproval(s.nurse, time.Now().UTC()))
	s.Require().NoError(s.store.UpdateIfUnchanged(ctx, pending, models.StatusDraft, 1))

	const reviewers = 20
	var (
		wg        sync.WaitGroup
		wins      atomic.Int32
		conflicts atomic.Int32
	)
	for range reviewers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			next := pending.Clone()
			if err := next.Reject(domain.UserID(uuid.New()), "blood test missing", time.Now().UTC()); err != nil {
				return
			}
			err := s.store.UpdateIfUnchanged(ctx, next, models.StatusPendingApproval, pending.Version)
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), wins.Load())
	s.Equal(int32(reviewers-1), conflicts.Load())
}

func (s *PostgresStoreSuite) TestListAndCountShareThePredicate() {
	ctx := context.Background()
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	s.create("Maria Santos", base)
	s.create("Maria_Clara Reyes", base.Add(time.Hour))
	newest := s.create("Siti Aminah", base.Add(2*time.Hour))

	q := models.Query{
		Scope:   models.Scope{ParticipantID: s.nurse.UserID},
		Filters: models.ListFilters{Page: 1, Limit: 2},
	}
	page, err := s.store.List(ctx, q)
	s.Require().NoError(err)
	s.Require().Len(page, 2)
	s.Equal(newest.ID, page[0].ID)

	total, err := s.store.Count(ctx, q)
	s.Require().NoError(err)
	s.Equal(3, total)

	q.Filters.PatientName = "maria_"
	total, err = s.store.Count(ctx, q)
	s.Require().NoError(err)
	s.Equal(1, total, "underscore is matched literally")

	q.Filters.PatientName = ""
	q.Scope = models.Scope{ParticipantID: domain.UserID(uuid.New())}
	total, err = s.store.Count(ctx, q)
	s.Require().NoError(err)
	s.Zero(total)

	clinic := s.clinic
	q.Scope.ReviewClinicID = &clinic
	total, err = s.store.Count(ctx, q)
	s.Require().NoError(err)
	s.Zero(total, "review clinic only exposes pending_approval rows")
}
