package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/civic-issue-service/internal/domain"
	apperrors "github.com/spec-kit/civic-issue-service/pkg/util"
)

// IssueFilter captures listing parameters.
type IssueFilter struct {
	ReporterID  *string
	AssigneeID  *string
	Authority   *domain.AuthorityType
	Statuses    []domain.IssueStatus
	Categories  []domain.IssueCategory
	Severities  []domain.IssueSeverity
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// IssueRepository encapsulates issue persistence. Transition application is
// atomic: the version-checked issue update and the timeline append commit
// together or not at all.
type IssueRepository interface {
	Create(ctx context.Context, issue *domain.Issue, entry *domain.TimelineEntry) error
	GetByID(ctx context.Context, id string) (*domain.Issue, error)
	GetByComplaintID(ctx context.Context, complaintID string) (*domain.Issue, error)
	ListWithFilter(ctx context.Context, filter IssueFilter) ([]domain.Issue, error)
	ApplyTransition(ctx context.Context, issue *domain.Issue, entry *domain.TimelineEntry) error
	ApplyResolution(ctx context.Context, issue *domain.Issue, entry *domain.TimelineEntry, points int) (*domain.ReporterTotals, error)
	ListTimeline(ctx context.Context, issueID string) ([]domain.TimelineEntry, error)
	ListSLABreached(ctx context.Context, now time.Time, limit int) ([]domain.Issue, error)
}

type issueRepository struct {
	pool *pgxpool.Pool
}

// NewIssueRepository instantiates repository.
func NewIssueRepository(pool *pgxpool.Pool) IssueRepository {
	return &issueRepository{pool: pool}
}

const issueColumns = `id, complaint_id, title, description, category, severity, status,
               address, latitude, longitude, photos, train_number,
               reporter_id, assignee_id, authority, escalation_level, sla_deadline,
               version, created_at, updated_at`

func (r *issueRepository) Create(ctx context.Context, issue *domain.Issue, entry *domain.TimelineEntry) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const insertIssue = `
        INSERT INTO issues (complaint_id, title, description, category, severity, status,
                            address, latitude, longitude, photos, train_number,
                            reporter_id, authority, escalation_level, sla_deadline)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
        RETURNING id, version, created_at, updated_at`
	if err := tx.QueryRow(ctx, insertIssue,
		issue.ComplaintID,
		issue.Title,
		issue.Description,
		issue.Category,
		issue.Severity,
		issue.Status,
		issue.Location.Address,
		issue.Location.Latitude,
		issue.Location.Longitude,
		issue.Photos,
		issue.TrainNumber,
		issue.ReporterID,
		issue.Authority,
		issue.EscalationLevel,
		issue.SLADeadline,
	).Scan(&issue.ID, &issue.Version, &issue.CreatedAt, &issue.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return apperrors.NewConflict("complaint identifier already exists", map[string]any{"complaint_id": issue.ComplaintID})
		}
		return apperrors.NewInternalError(err)
	}

	entry.IssueID = issue.ID
	if err := insertTimelineEntry(ctx, tx, entry); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return apperrors.NewInternalError(err)
	}
	issue.Timeline = []domain.TimelineEntry{*entry}
	return nil
}

func (r *issueRepository) GetByID(ctx context.Context, id string) (*domain.Issue, error) {
	query := fmt.Sprintf(`SELECT %s FROM issues WHERE id=$1`, issueColumns)
	return r.fetchSingle(ctx, query, id)
}

func (r *issueRepository) GetByComplaintID(ctx context.Context, complaintID string) (*domain.Issue, error) {
	query := fmt.Sprintf(`SELECT %s FROM issues WHERE complaint_id=$1`, issueColumns)
	return r.fetchSingle(ctx, query, complaintID)
}

func (r *issueRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Issue, error) {
	issue, err := scanIssue(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("issue", map[string]any{"id": arg})
		}
		return nil, apperrors.NewInternalError(err)
	}
	return issue, nil
}

// ApplyTransition commits the mutated issue fields and one timeline entry as
// a unit. The WHERE clause on version serializes concurrent transitions for
// the same issue; a stale version surfaces as Conflict without mutating.
func (r *issueRepository) ApplyTransition(ctx context.Context, issue *domain.Issue, entry *domain.TimelineEntry) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := applyIssueTransition(ctx, tx, issue, entry); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return apperrors.NewInternalError(err)
	}
	return nil
}

// ApplyResolution is ApplyTransition plus the reporter's resolve credit in
// the same transaction: the issue cannot reach resolved without the points
// landing, and a version conflict rolls both back.
func (r *issueRepository) ApplyResolution(ctx context.Context, issue *domain.Issue, entry *domain.TimelineEntry, points int) (*domain.ReporterTotals, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := applyIssueTransition(ctx, tx, issue, entry); err != nil {
		return nil, err
	}
	totals, err := creditPoints(ctx, tx, issue.ReporterID, points, 0, 1)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return totals, nil
}

// applyIssueTransition runs the version-checked issue update and the timeline
// insert on the caller's transaction.
func applyIssueTransition(ctx context.Context, tx pgx.Tx, issue *domain.Issue, entry *domain.TimelineEntry) error {
	const update = `
        UPDATE issues SET status=$1, assignee_id=$2, authority=$3, escalation_level=$4,
            version=version+1, updated_at=NOW()
        WHERE id=$5 AND version=$6
        RETURNING version, updated_at`
	if err := tx.QueryRow(ctx, update,
		issue.Status,
		issue.AssigneeID,
		issue.Authority,
		issue.EscalationLevel,
		issue.ID,
		issue.Version,
	).Scan(&issue.Version, &issue.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return classifyMissedUpdate(ctx, tx, issue.ID)
		}
		return apperrors.NewInternalError(err)
	}

	entry.IssueID = issue.ID
	return insertTimelineEntry(ctx, tx, entry)
}

func classifyMissedUpdate(ctx context.Context, q querier, issueID string) error {
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM issues WHERE id=$1)`, issueID).Scan(&exists); err != nil {
		return apperrors.NewInternalError(err)
	}
	if !exists {
		return apperrors.NewNotFound("issue", map[string]any{"id": issueID})
	}
	return apperrors.NewConflict("issue was modified concurrently", map[string]any{"issue_id": issueID})
}

func insertTimelineEntry(ctx context.Context, tx pgx.Tx, entry *domain.TimelineEntry) error {
	const insert = `
        INSERT INTO issue_timeline (issue_id, status, comment, actor_id)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	if err := tx.QueryRow(ctx, insert,
		entry.IssueID,
		entry.Status,
		entry.Comment,
		entry.ActorID,
	).Scan(&entry.ID, &entry.CreatedAt); err != nil {
		return apperrors.NewInternalError(err)
	}
	return nil
}

// ListTimeline returns entries in insert order; ids are assigned
// sequentially so they follow the per-issue serialization of transitions.
func (r *issueRepository) ListTimeline(ctx context.Context, issueID string) ([]domain.TimelineEntry, error) {
	const query = `
        SELECT id, issue_id, status, comment, actor_id, created_at
        FROM issue_timeline WHERE issue_id=$1 ORDER BY id ASC`
	rows, err := r.pool.Query(ctx, query, issueID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	defer rows.Close()

	var result []domain.TimelineEntry
	for rows.Next() {
		var entry domain.TimelineEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.IssueID,
			&entry.Status,
			&entry.Comment,
			&entry.ActorID,
			&entry.CreatedAt,
		); err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		result = append(result, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return result, nil
}

func (r *issueRepository) ListWithFilter(ctx context.Context, filter IssueFilter) ([]domain.Issue, error) {
	base := fmt.Sprintf(`SELECT %s FROM issues`, issueColumns)
	clauses := []string{"1=1"}
	args := []any{}

	if filter.ReporterID != nil {
		args = append(args, *filter.ReporterID)
		clauses = append(clauses, fmt.Sprintf("reporter_id=$%d", len(args)))
	}
	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("assignee_id=$%d", len(args)))
	}
	if filter.Authority != nil {
		args = append(args, *filter.Authority)
		clauses = append(clauses, fmt.Sprintf("authority=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Categories) > 0 {
		placeholders := make([]string, len(filter.Categories))
		for i, category := range filter.Categories {
			args = append(args, category)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("category IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Severities) > 0 {
		placeholders := make([]string, len(filter.Severities))
		for i, severity := range filter.Severities {
			args = append(args, severity)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("severity IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	defer rows.Close()
	return scanIssues(rows)
}

// ListSLABreached returns non-settled issues past their SLA deadline without
// a pending escalation, oldest deadline first.
func (r *issueRepository) ListSLABreached(ctx context.Context, now time.Time, limit int) ([]domain.Issue, error) {
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`
        SELECT %s FROM issues
        WHERE status NOT IN ('resolved','closed')
          AND sla_deadline < $1
          AND NOT EXISTS (
              SELECT 1 FROM escalations e
              WHERE e.issue_id = issues.id AND e.status = 'pending'
          )
        ORDER BY sla_deadline ASC
        LIMIT %d`, issueColumns, limit)

	rows, err := r.pool.Query(ctx, query, now)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	defer rows.Close()
	return scanIssues(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func scanIssue(row rowScanner) (*domain.Issue, error) {
	var issue domain.Issue
	if err := row.Scan(
		&issue.ID,
		&issue.ComplaintID,
		&issue.Title,
		&issue.Description,
		&issue.Category,
		&issue.Severity,
		&issue.Status,
		&issue.Location.Address,
		&issue.Location.Latitude,
		&issue.Location.Longitude,
		&issue.Photos,
		&issue.TrainNumber,
		&issue.ReporterID,
		&issue.AssigneeID,
		&issue.Authority,
		&issue.EscalationLevel,
		&issue.SLADeadline,
		&issue.Version,
		&issue.CreatedAt,
		&issue.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &issue, nil
}

func scanIssues(rows pgx.Rows) ([]domain.Issue, error) {
	var result []domain.Issue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		result = append(result, *issue)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return result, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
