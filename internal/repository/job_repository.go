package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/job-board/internal/domain"
)

// JobFilter narrows job listings. ActiveOn keeps jobs whose deadline is on or
// after the given day; ExpiredOn keeps jobs whose deadline is before it.
type JobFilter struct {
	CreatedBy *string
	ActiveOn  *time.Time
	ExpiredOn *time.Time
	Search    string
	Limit     int
	Offset    int
}

// JobRepository encapsulates job persistence.
type JobRepository interface {
	Create(ctx context.Context, job *domain.Job) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.Job, error)
	List(ctx context.Context, filter JobFilter) ([]domain.Job, error)
	Count(ctx context.Context, filter JobFilter) (int, error)
}

type jobRepository struct {
	pool *pgxpool.Pool
}

// NewJobRepository instantiates repository.
func NewJobRepository(pool *pgxpool.Pool) JobRepository {
	return &jobRepository{pool: pool}
}

const jobColumns = `id, title, description, deadline, created_by, created_at`

func (r *jobRepository) Create(ctx context.Context, job *domain.Job) error {
	const query = `
        INSERT INTO jobs (title, description, deadline, created_by)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, query,
		job.Title,
		job.Description,
		job.Deadline,
		job.CreatedBy,
	).Scan(&job.ID, &job.CreatedAt)
	return translate(err)
}

func (r *jobRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM jobs WHERE id=$1`, id)
	if err != nil {
		return translate(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *jobRepository) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	job, err := scanJob(r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id=$1`, id))
	if err != nil {
		return nil, translate(err)
	}
	return job, nil
}

func (r *jobRepository) List(ctx context.Context, filter JobFilter) ([]domain.Job, error) {
	where, args := jobWhere(filter)
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE ` + where + ` ORDER BY created_at DESC` +
		limitOffset(filter.Limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var result []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *job)
	}
	return result, rows.Err()
}

func (r *jobRepository) Count(ctx context.Context, filter JobFilter) (int, error) {
	where, args := jobWhere(filter)
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM jobs WHERE `+where, args...).Scan(&n); err != nil {
		return 0, translate(err)
	}
	return n, nil
}

func jobWhere(filter JobFilter) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}
	if filter.CreatedBy != nil {
		args = append(args, *filter.CreatedBy)
		clauses = append(clauses, fmt.Sprintf("created_by=$%d", len(args)))
	}
	if filter.ActiveOn != nil {
		args = append(args, *filter.ActiveOn)
		clauses = append(clauses, fmt.Sprintf("deadline >= $%d::date", len(args)))
	}
	if filter.ExpiredOn != nil {
		args = append(args, *filter.ExpiredOn)
		clauses = append(clauses, fmt.Sprintf("deadline < $%d::date", len(args)))
	}
	if term := strings.TrimSpace(filter.Search); term != "" {
		args = append(args, "%"+strings.ToLower(term)+"%")
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(title) LIKE %s OR LOWER(description) LIKE %s)", placeholder, placeholder))
	}
	return strings.Join(clauses, " AND "), args
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var job domain.Job
	if err := row.Scan(
		&job.ID,
		&job.Title,
		&job.Description,
		&job.Deadline,
		&job.CreatedBy,
		&job.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &job, nil
}
