// Package repository provides database access for the Amplify backend.
//
// Queries are hand-written against database/sql with the pgx stdlib
// driver. The repository returns domain types; translating database errors
// into domain errors is the service layer's job, so methods here wrap
// failures with operation context only.
package repository

import (
	"database/sql"
)

// Repository bundles all query groups over one connection pool.
type Repository struct {
	db *sql.DB
}

// New creates a Repository.
func New(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// DB exposes the underlying pool for health checks.
func (r *Repository) DB() *sql.DB {
	return r.db
}
