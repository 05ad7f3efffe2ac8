package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/civic-issue-service/internal/domain"
	apperrors "github.com/spec-kit/civic-issue-service/pkg/util"
)

// UserRepository persists users and the reporter ledger. Ledger mutations
// are expressed as atomic increments returning the new totals, so callers
// never read-modify-write point counters.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	CreditPoints(ctx context.Context, userID string, points, reportedDelta, resolvedDelta int) (*domain.ReporterTotals, error)
	AwardBadge(ctx context.Context, userID, badge string) (bool, error)
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository instantiates repository.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

const userColumns = `id, name, email, password_hash, phone, city, role, authority_type,
               points, issues_reported, issues_resolved, badges, created_at, updated_at`

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (name, email, password_hash, phone, city, role, authority_type)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, points, issues_reported, issues_resolved, badges, created_at, updated_at`
	if err := r.pool.QueryRow(ctx, query,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.Phone,
		user.City,
		user.Role,
		user.AuthorityType,
	).Scan(
		&user.ID,
		&user.Points,
		&user.IssuesReported,
		&user.IssuesResolved,
		&user.Badges,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return apperrors.NewConflict("email already registered", map[string]any{"email": user.Email})
		}
		return apperrors.NewInternalError(err)
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.fetchSingle(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.fetchSingle(ctx, `SELECT `+userColumns+` FROM users WHERE email=$1`, email)
}

func (r *userRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.User, error) {
	var user domain.User
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Phone,
		&user.City,
		&user.Role,
		&user.AuthorityType,
		&user.Points,
		&user.IssuesReported,
		&user.IssuesResolved,
		&user.Badges,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"id": arg})
		}
		return nil, apperrors.NewInternalError(err)
	}
	return &user, nil
}

// CreditPoints adds the deltas in one statement and returns the resulting
// totals, so concurrent credits never lose updates.
func (r *userRepository) CreditPoints(ctx context.Context, userID string, points, reportedDelta, resolvedDelta int) (*domain.ReporterTotals, error) {
	return creditPoints(ctx, r.pool, userID, points, reportedDelta, resolvedDelta)
}

// creditPoints runs the ledger increment on any querier, so transition
// transactions can carry a credit alongside the issue update.
func creditPoints(ctx context.Context, q querier, userID string, points, reportedDelta, resolvedDelta int) (*domain.ReporterTotals, error) {
	const query = `
        UPDATE users SET points = points + $2,
            issues_reported = issues_reported + $3,
            issues_resolved = issues_resolved + $4,
            updated_at = NOW()
        WHERE id=$1
        RETURNING points, issues_reported, issues_resolved, badges`
	var totals domain.ReporterTotals
	if err := q.QueryRow(ctx, query, userID, points, reportedDelta, resolvedDelta).Scan(
		&totals.Points,
		&totals.IssuesReported,
		&totals.IssuesResolved,
		&totals.Badges,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"id": userID})
		}
		return nil, apperrors.NewInternalError(err)
	}
	return &totals, nil
}

// AwardBadge appends the badge unless already held. Returns whether the
// badge was newly awarded; set semantics are enforced in the WHERE clause.
func (r *userRepository) AwardBadge(ctx context.Context, userID, badge string) (bool, error) {
	const query = `
        UPDATE users SET badges = array_append(badges, $2), updated_at = NOW()
        WHERE id=$1 AND NOT ($2 = ANY(badges))`
	cmd, err := r.pool.Exec(ctx, query, userID, badge)
	if err != nil {
		return false, apperrors.NewInternalError(err)
	}
	return cmd.RowsAffected() == 1, nil
}
