package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"examflow/pkg/domain"
	"examflow/pkg/platform/sentinel"
)

// Postgres reads users from the users table.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) Lookup(ctx context.Context, id domain.UserID) (*User, error) {
	var (
		userID   uuid.UUID
		clinicID uuid.UUID
		role     string
		u        User
	)
	err := p.pool.QueryRow(ctx, `
		SELECT id, name, role, clinic_id
		FROM users
		WHERE id = $1
	`, id.UUID()).Scan(&userID, &u.Name, &role, &clinicID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", id, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	u.ID = domain.UserID(userID)
	u.Role = domain.Role(role)
	u.ClinicID = domain.ClinicID(clinicID)
	return &u, nil
}

// Upsert inserts or updates a user; used by seeding and tests.
func (p *Postgres) Upsert(ctx context.Context, u User) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO users (id, name, role, clinic_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			role = EXCLUDED.role,
			clinic_id = EXCLUDED.clinic_id
	`, u.ID.UUID(), u.Name, string(u.Role), u.ClinicID.UUID())
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}
