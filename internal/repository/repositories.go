package repository

import "github.com/jackc/pgx/v5/pgxpool"

// Repositories bundles every store the services need.
type Repositories struct {
	Users        UserRepository
	Jobs         JobRepository
	Applications ApplicationRepository
}

// NewPostgresRepositories wires the pgx-backed implementations.
func NewPostgresRepositories(pool *pgxpool.Pool) Repositories {
	return Repositories{
		Users:        NewUserRepository(pool),
		Jobs:         NewJobRepository(pool),
		Applications: NewApplicationRepository(pool),
	}
}
