package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/job-board/internal/domain"
)

// ApplicationFilter narrows application listings and counts.
// JobOwner restricts to applications on jobs created by that user.
type ApplicationFilter struct {
	UserID   *string
	JobID    *string
	JobOwner *string
	Status   *domain.ApplicationStatus
	Limit    int
	Offset   int
}

// ApplicationRepository encapsulates application persistence.
type ApplicationRepository interface {
	Create(ctx context.Context, app *domain.Application) error
	// UpdateStatus writes app.Status only while the stored status is still
	// from, and returns ErrStatusChanged otherwise.
	UpdateStatus(ctx context.Context, app *domain.Application, from domain.ApplicationStatus) error
	// UpdateScore and UpdateNotes write one column each and refresh
	// app.Status from the stored row.
	UpdateScore(ctx context.Context, app *domain.Application) error
	UpdateNotes(ctx context.Context, app *domain.Application) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.Application, error)
	GetDetail(ctx context.Context, id string) (*domain.ApplicationDetail, error)
	GetByUserAndJob(ctx context.Context, userID, jobID string) (*domain.Application, error)
	ListByUser(ctx context.Context, userID string) ([]domain.ApplicationDetail, error)
	// ListByJob orders by score (unscored last) then newest first.
	ListByJob(ctx context.Context, jobID string) ([]domain.ApplicationDetail, error)
	List(ctx context.Context, filter ApplicationFilter) ([]domain.ApplicationDetail, error)
	Count(ctx context.Context, filter ApplicationFilter) (int, error)
	CountByStatus(ctx context.Context, filter ApplicationFilter) (map[domain.ApplicationStatus]int, error)
	ListCVFilenames(ctx context.Context) ([]string, error)
	IsCVReferenced(ctx context.Context, filename string) (bool, error)
}

type applicationRepository struct {
	pool *pgxpool.Pool
}

// NewApplicationRepository instantiates repository.
func NewApplicationRepository(pool *pgxpool.Pool) ApplicationRepository {
	return &applicationRepository{pool: pool}
}

const applicationColumns = `id, user_id, job_id, status, score, cover_letter, notes, cv_filename, created_at, updated_at`

const applicationDetailSelect = `
        SELECT a.id, a.user_id, a.job_id, a.status, a.score, a.cover_letter, a.notes, a.cv_filename, a.created_at, a.updated_at,
               u.id, u.first_name, u.last_name, u.email, u.phone, u.role, u.is_active, u.created_at,
               j.id, j.title, j.description, j.deadline, j.created_by, j.created_at
        FROM applications a
        JOIN users u ON u.id = a.user_id
        JOIN jobs j ON j.id = a.job_id`

const (
	orderNewest = ` ORDER BY a.created_at DESC`
	orderScore  = ` ORDER BY a.score DESC NULLS LAST, a.created_at DESC`
)

func (r *applicationRepository) Create(ctx context.Context, app *domain.Application) error {
	const query = `
        INSERT INTO applications (user_id, job_id, status, score, cover_letter, notes, cv_filename)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		app.UserID,
		app.JobID,
		app.Status,
		app.Score,
		app.CoverLetter,
		app.Notes,
		app.CVFilename,
	).Scan(&app.ID, &app.CreatedAt, &app.UpdatedAt)
	return translate(err)
}

func (r *applicationRepository) UpdateStatus(ctx context.Context, app *domain.Application, from domain.ApplicationStatus) error {
	const query = `
        UPDATE applications SET status=$1, updated_at=NOW()
        WHERE id=$2 AND status=$3
        RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query, app.Status, app.ID, from).Scan(&app.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM applications WHERE id=$1)`, app.ID).Scan(&exists); err != nil {
			return translate(err)
		}
		if exists {
			return ErrStatusChanged
		}
		return ErrNotFound
	}
	return translate(err)
}

func (r *applicationRepository) UpdateScore(ctx context.Context, app *domain.Application) error {
	const query = `
        UPDATE applications SET score=$1, updated_at=NOW()
        WHERE id=$2
        RETURNING status, updated_at`
	return translate(r.pool.QueryRow(ctx, query, app.Score, app.ID).Scan(&app.Status, &app.UpdatedAt))
}

func (r *applicationRepository) UpdateNotes(ctx context.Context, app *domain.Application) error {
	const query = `
        UPDATE applications SET notes=$1, updated_at=NOW()
        WHERE id=$2
        RETURNING status, updated_at`
	return translate(r.pool.QueryRow(ctx, query, app.Notes, app.ID).Scan(&app.Status, &app.UpdatedAt))
}

func (r *applicationRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM applications WHERE id=$1`, id)
	if err != nil {
		return translate(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *applicationRepository) GetByID(ctx context.Context, id string) (*domain.Application, error) {
	app, err := scanApplication(r.pool.QueryRow(ctx, `SELECT `+applicationColumns+` FROM applications WHERE id=$1`, id))
	if err != nil {
		return nil, translate(err)
	}
	return app, nil
}

func (r *applicationRepository) GetByUserAndJob(ctx context.Context, userID, jobID string) (*domain.Application, error) {
	const query = `SELECT ` + applicationColumns + ` FROM applications WHERE user_id=$1 AND job_id=$2`
	app, err := scanApplication(r.pool.QueryRow(ctx, query, userID, jobID))
	if err != nil {
		return nil, translate(err)
	}
	return app, nil
}

func (r *applicationRepository) GetDetail(ctx context.Context, id string) (*domain.ApplicationDetail, error) {
	detail, err := scanApplicationDetail(r.pool.QueryRow(ctx, applicationDetailSelect+` WHERE a.id=$1`, id))
	if err != nil {
		return nil, translate(err)
	}
	return detail, nil
}

func (r *applicationRepository) ListByUser(ctx context.Context, userID string) ([]domain.ApplicationDetail, error) {
	return r.listDetails(ctx, ApplicationFilter{UserID: &userID}, orderNewest)
}

func (r *applicationRepository) ListByJob(ctx context.Context, jobID string) ([]domain.ApplicationDetail, error) {
	return r.listDetails(ctx, ApplicationFilter{JobID: &jobID}, orderScore)
}

func (r *applicationRepository) List(ctx context.Context, filter ApplicationFilter) ([]domain.ApplicationDetail, error) {
	return r.listDetails(ctx, filter, orderNewest)
}

func (r *applicationRepository) listDetails(ctx context.Context, filter ApplicationFilter, order string) ([]domain.ApplicationDetail, error) {
	where, args := applicationWhere(filter)
	query := applicationDetailSelect + ` WHERE ` + where + order + limitOffset(filter.Limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var result []domain.ApplicationDetail
	for rows.Next() {
		detail, err := scanApplicationDetail(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *detail)
	}
	return result, rows.Err()
}

func (r *applicationRepository) Count(ctx context.Context, filter ApplicationFilter) (int, error) {
	where, args := applicationWhere(filter)
	query := `SELECT COUNT(*) FROM applications a JOIN jobs j ON j.id = a.job_id WHERE ` + where
	var n int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, translate(err)
	}
	return n, nil
}

func (r *applicationRepository) CountByStatus(ctx context.Context, filter ApplicationFilter) (map[domain.ApplicationStatus]int, error) {
	where, args := applicationWhere(filter)
	query := `SELECT a.status, COUNT(*) FROM applications a JOIN jobs j ON j.id = a.job_id WHERE ` + where + ` GROUP BY a.status`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	counts := make(map[domain.ApplicationStatus]int, len(domain.ApplicationStatuses))
	for _, status := range domain.ApplicationStatuses {
		counts[status] = 0
	}
	for rows.Next() {
		var (
			status domain.ApplicationStatus
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (r *applicationRepository) ListCVFilenames(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT cv_filename FROM applications WHERE cv_filename IS NOT NULL`)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (r *applicationRepository) IsCVReferenced(ctx context.Context, filename string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM applications WHERE cv_filename=$1)`, filename).Scan(&exists)
	if err != nil {
		return false, translate(err)
	}
	return exists, nil
}

func applicationWhere(filter ApplicationFilter) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}
	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		clauses = append(clauses, fmt.Sprintf("a.user_id=$%d", len(args)))
	}
	if filter.JobID != nil {
		args = append(args, *filter.JobID)
		clauses = append(clauses, fmt.Sprintf("a.job_id=$%d", len(args)))
	}
	if filter.JobOwner != nil {
		args = append(args, *filter.JobOwner)
		clauses = append(clauses, fmt.Sprintf("j.created_by=$%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("a.status=$%d", len(args)))
	}
	return strings.Join(clauses, " AND "), args
}

func scanApplication(row pgx.Row) (*domain.Application, error) {
	var app domain.Application
	if err := row.Scan(
		&app.ID,
		&app.UserID,
		&app.JobID,
		&app.Status,
		&app.Score,
		&app.CoverLetter,
		&app.Notes,
		&app.CVFilename,
		&app.CreatedAt,
		&app.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &app, nil
}

func scanApplicationDetail(row pgx.Row) (*domain.ApplicationDetail, error) {
	var d domain.ApplicationDetail
	if err := row.Scan(
		&d.ID,
		&d.UserID,
		&d.JobID,
		&d.Status,
		&d.Score,
		&d.CoverLetter,
		&d.Notes,
		&d.CVFilename,
		&d.CreatedAt,
		&d.UpdatedAt,
		&d.Applicant.ID,
		&d.Applicant.FirstName,
		&d.Applicant.LastName,
		&d.Applicant.Email,
		&d.Applicant.Phone,
		&d.Applicant.Role,
		&d.Applicant.IsActive,
		&d.Applicant.CreatedAt,
		&d.Job.ID,
		&d.Job.Title,
		&d.Job.Description,
		&d.Job.Deadline,
		&d.Job.CreatedBy,
		&d.Job.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &d, nil
}
