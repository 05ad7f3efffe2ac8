package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/civic-issue-service/internal/domain"
	apperrors "github.com/spec-kit/civic-issue-service/pkg/util"
)

// AuthorityRepository persists authority records and their workload
// counters. Counter updates are single-statement increments.
type AuthorityRepository interface {
	GetByType(ctx context.Context, authorityType domain.AuthorityType) (*domain.Authority, error)
	List(ctx context.Context) ([]domain.Authority, error)
	IncrementActive(ctx context.Context, authorityType domain.AuthorityType, delta int) error
	RecordResolution(ctx context.Context, authorityType domain.AuthorityType, resolutionHours float64) error
}

type authorityRepository struct {
	pool *pgxpool.Pool
}

// NewAuthorityRepository instantiates repository.
func NewAuthorityRepository(pool *pgxpool.Pool) AuthorityRepository {
	return &authorityRepository{pool: pool}
}

const authorityColumns = `id, name, type, email, phone, city, sla_hours, escalation_threshold_hours,
               active_issues, resolved_issues, avg_resolution_hours, created_at, updated_at`

func (r *authorityRepository) GetByType(ctx context.Context, authorityType domain.AuthorityType) (*domain.Authority, error) {
	query := `SELECT ` + authorityColumns + ` FROM authorities WHERE type=$1`
	authority, err := scanAuthority(r.pool.QueryRow(ctx, query, authorityType))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("authority", map[string]any{"type": authorityType})
		}
		return nil, apperrors.NewInternalError(err)
	}
	return authority, nil
}

func (r *authorityRepository) List(ctx context.Context) ([]domain.Authority, error) {
	query := `SELECT ` + authorityColumns + ` FROM authorities ORDER BY resolved_issues DESC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	defer rows.Close()

	var result []domain.Authority
	for rows.Next() {
		authority, err := scanAuthority(rows)
		if err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		result = append(result, *authority)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return result, nil
}

func (r *authorityRepository) IncrementActive(ctx context.Context, authorityType domain.AuthorityType, delta int) error {
	const query = `
        UPDATE authorities SET active_issues = GREATEST(active_issues + $2, 0), updated_at = NOW()
        WHERE type=$1`
	if _, err := r.pool.Exec(ctx, query, authorityType, delta); err != nil {
		return apperrors.NewInternalError(err)
	}
	return nil
}

// RecordResolution retires one active issue and folds the resolution time
// into the running average.
func (r *authorityRepository) RecordResolution(ctx context.Context, authorityType domain.AuthorityType, resolutionHours float64) error {
	const query = `
        UPDATE authorities SET
            active_issues = GREATEST(active_issues - 1, 0),
            resolved_issues = resolved_issues + 1,
            avg_resolution_hours = ((avg_resolution_hours * resolved_issues) + $2) / (resolved_issues + 1),
            updated_at = NOW()
        WHERE type=$1`
	if _, err := r.pool.Exec(ctx, query, authorityType, resolutionHours); err != nil {
		return apperrors.NewInternalError(err)
	}
	return nil
}

func scanAuthority(row rowScanner) (*domain.Authority, error) {
	var authority domain.Authority
	if err := row.Scan(
		&authority.ID,
		&authority.Name,
		&authority.Type,
		&authority.Email,
		&authority.Phone,
		&authority.City,
		&authority.SLAHours,
		&authority.EscalationThresholdHrs,
		&authority.ActiveIssues,
		&authority.ResolvedIssues,
		&authority.AvgResolutionHours,
		&authority.CreatedAt,
		&authority.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &authority, nil
}
