package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/civic-issue-service/internal/domain"
	apperrors "github.com/spec-kit/civic-issue-service/pkg/util"
)

// EscalationRepository stores escalation requests. At most one pending
// escalation may exist per issue (partial unique index); decided escalations
// are immutable. Create and ApplyAcceptance span the escalation row and the
// version-checked issue update in one transaction, so a concurrent
// transition rolls back both sides.
type EscalationRepository interface {
	Create(ctx context.Context, escalation *domain.Escalation, issue *domain.Issue, entry *domain.TimelineEntry) error
	GetByID(ctx context.Context, id string) (*domain.Escalation, error)
	GetPendingByIssue(ctx context.Context, issueID string) (*domain.Escalation, error)
	ListPending(ctx context.Context, limit, offset int) ([]domain.Escalation, error)
	ListByIssue(ctx context.Context, issueID string) ([]domain.Escalation, error)
	ApplyAcceptance(ctx context.Context, id string, issue *domain.Issue, entry *domain.TimelineEntry) (*domain.Escalation, error)
	Decide(ctx context.Context, id string, status domain.EscalationStatus) (*domain.Escalation, error)
}

type escalationRepository struct {
	pool *pgxpool.Pool
}

// NewEscalationRepository instantiates repository.
func NewEscalationRepository(pool *pgxpool.Pool) EscalationRepository {
	return &escalationRepository{pool: pool}
}

const escalationColumns = `id, issue_id, from_authority, to_authority, reason, escalation_level,
               status, requested_by, created_at, decided_at`

// Create inserts the pending escalation together with the requesting
// timeline entry on the issue. The issue's status, authority, and level are
// written back unchanged; the version bump records the request against
// concurrent transitions.
func (r *escalationRepository) Create(ctx context.Context, escalation *domain.Escalation, issue *domain.Issue, entry *domain.TimelineEntry) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const query = `
        INSERT INTO escalations (issue_id, from_authority, to_authority, reason, escalation_level, status, requested_by)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at`
	if err := tx.QueryRow(ctx, query,
		escalation.IssueID,
		escalation.FromAuthority,
		escalation.ToAuthority,
		escalation.Reason,
		escalation.Level,
		escalation.Status,
		escalation.RequestedBy,
	).Scan(&escalation.ID, &escalation.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return apperrors.NewConflict("a pending escalation already exists for this issue",
				map[string]any{"issue_id": escalation.IssueID})
		}
		return apperrors.NewInternalError(err)
	}

	if err := applyIssueTransition(ctx, tx, issue, entry); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return apperrors.NewInternalError(err)
	}
	return nil
}

func (r *escalationRepository) GetByID(ctx context.Context, id string) (*domain.Escalation, error) {
	query := `SELECT ` + escalationColumns + ` FROM escalations WHERE id=$1`
	escalation, err := scanEscalation(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("escalation", map[string]any{"id": id})
		}
		return nil, apperrors.NewInternalError(err)
	}
	return escalation, nil
}

func (r *escalationRepository) GetPendingByIssue(ctx context.Context, issueID string) (*domain.Escalation, error) {
	query := `SELECT ` + escalationColumns + ` FROM escalations WHERE issue_id=$1 AND status='pending'`
	escalation, err := scanEscalation(r.pool.QueryRow(ctx, query, issueID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, apperrors.NewInternalError(err)
	}
	return escalation, nil
}

func (r *escalationRepository) ListPending(ctx context.Context, limit, offset int) ([]domain.Escalation, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + escalationColumns + ` FROM escalations WHERE status='pending'
        ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	return r.list(ctx, query, limit, offset)
}

func (r *escalationRepository) ListByIssue(ctx context.Context, issueID string) ([]domain.Escalation, error) {
	query := `SELECT ` + escalationColumns + ` FROM escalations WHERE issue_id=$1 ORDER BY created_at ASC`
	return r.list(ctx, query, issueID)
}

// ApplyAcceptance decides the escalation as accepted and moves the issue to
// the destination authority in the same transaction. A stale issue version
// rolls the decision back, leaving the escalation pending and the acceptance
// retryable.
func (r *escalationRepository) ApplyAcceptance(ctx context.Context, id string, issue *domain.Issue, entry *domain.TimelineEntry) (*domain.Escalation, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const decide = `
        UPDATE escalations SET status='accepted', decided_at=NOW()
        WHERE id=$1 AND status='pending'
        RETURNING ` + escalationColumns
	escalation, err := scanEscalation(tx.QueryRow(ctx, decide, id))
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewInternalError(err)
		}
		return nil, r.classifyMissedDecision(ctx, id)
	}

	issue.Authority = escalation.ToAuthority
	issue.EscalationLevel = escalation.Level
	if err := applyIssueTransition(ctx, tx, issue, entry); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return escalation, nil
}

// Decide transitions a pending escalation to accepted or rejected. The
// status guard in the WHERE clause makes a second decision fail.
func (r *escalationRepository) Decide(ctx context.Context, id string, status domain.EscalationStatus) (*domain.Escalation, error) {
	const query = `
        UPDATE escalations SET status=$2, decided_at=NOW()
        WHERE id=$1 AND status='pending'
        RETURNING ` + escalationColumns
	escalation, err := scanEscalation(r.pool.QueryRow(ctx, query, id, status))
	if err == nil {
		return escalation, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewInternalError(err)
	}
	return nil, r.classifyMissedDecision(ctx, id)
}

// classifyMissedDecision distinguishes an unknown escalation from one that
// was already decided.
func (r *escalationRepository) classifyMissedDecision(ctx context.Context, id string) error {
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return apperrors.NewConflict("escalation already decided", map[string]any{"escalation_id": id})
}

func (r *escalationRepository) list(ctx context.Context, query string, args ...any) ([]domain.Escalation, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	defer rows.Close()

	var result []domain.Escalation
	for rows.Next() {
		escalation, err := scanEscalation(rows)
		if err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		result = append(result, *escalation)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return result, nil
}

func scanEscalation(row rowScanner) (*domain.Escalation, error) {
	var escalation domain.Escalation
	if err := row.Scan(
		&escalation.ID,
		&escalation.IssueID,
		&escalation.FromAuthority,
		&escalation.ToAuthority,
		&escalation.Reason,
		&escalation.Level,
		&escalation.Status,
		&escalation.RequestedBy,
		&escalation.CreatedAt,
		&escalation.DecidedAt,
	); err != nil {
		return nil, err
	}
	return &escalation, nil
}
