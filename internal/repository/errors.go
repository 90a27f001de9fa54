package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound             = errors.New("record not found")
	ErrDuplicateEmail       = errors.New("email already registered")
	ErrDuplicatePhone       = errors.New("phone already registered")
	ErrDuplicateApplication = errors.New("application already exists for this job")
	ErrDuplicateCV          = errors.New("cv filename already referenced")
	// ErrReferenced is returned when a delete would orphan dependent rows.
	ErrReferenced = errors.New("record is referenced by other records")
	// ErrCheckViolation is returned when a value breaks a column check.
	ErrCheckViolation = errors.New("value violates a check constraint")
	// ErrStatusChanged is returned when a status update finds the stored
	// status is no longer the one the caller read.
	ErrStatusChanged = errors.New("status changed since it was read")
)

const (
	sqlStateUniqueViolation     = "23505"
	sqlStateForeignKeyViolation = "23503"
	sqlStateCheckViolation      = "23514"
)

// Constraint names declared in migrations/001_init.sql.
const (
	constraintUsersEmail      = "users_email_unique"
	constraintUsersPhone      = "users_phone_unique"
	constraintApplicationPair = "applications_user_job_unique"
	constraintApplicationCV   = "applications_cv_filename_unique"
)

// translate maps driver errors onto repository sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case sqlStateUniqueViolation:
		switch pgErr.ConstraintName {
		case constraintUsersEmail:
			return ErrDuplicateEmail
		case constraintUsersPhone:
			return ErrDuplicatePhone
		case constraintApplicationPair:
			return ErrDuplicateApplication
		case constraintApplicationCV:
			return ErrDuplicateCV
		}
	case sqlStateForeignKeyViolation:
		return ErrReferenced
	case sqlStateCheckViolation:
		return ErrCheckViolation
	}
	return err
}
