// Package user stores the couple's members.
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/doubloon-app/doubloon/internal/domain/common"
)

// User is one member of the couple.
type User struct {
	ID        uuid.UUID `db:"id"`
	Name      string    `db:"name"`
	Email     *string   `db:"email"`
	CreatedAt time.Time `db:"created_at"`
}

var _ UserRepo = (*PostgresUserRepo)(nil)

// UserRepo defines the contract for user persistence.
type UserRepo interface {
	// GetOrCreateByName returns the user with the given name,
	// case-insensitively, creating it on first use.
	GetOrCreateByName(ctx context.Context, name string) (*User, error)
	GetByName(ctx context.Context, name string) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)
}

// PgxPool abstracts the subset of pgxpool.Pool used by the repository to allow mocking in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ PgxPool = (*pgxpool.Pool)(nil)

type PostgresUserRepo struct {
	logger *slog.Logger
	pgpool PgxPool
}

func NewPostgresUserRepo(pgpool PgxPool, logger *slog.Logger) *PostgresUserRepo {
	return &PostgresUserRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

// GetByName retrieves a user by name, case-insensitively.
func (r *PostgresUserRepo) GetByName(ctx context.Context, name string) (*User, error) {
	query := `
		SELECT id, name, email, created_at
		FROM users
		WHERE LOWER(name) = LOWER($1)
	`

	rows, err := r.pgpool.Query(ctx, query, name)
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	u, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[User])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user %q not found: %w", name, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	return &u, nil
}

// GetOrCreateByName returns the named user, creating it on first use.
func (r *PostgresUserRepo) GetOrCreateByName(ctx context.Context, name string) (*User, error) {
	u, err := r.GetByName(ctx, name)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	created := &User{ID: uuid.New(), Name: name}
	query := `INSERT INTO users (id, name) VALUES ($1, $2)`
	if _, err := r.pgpool.Exec(ctx, query, created.ID, created.Name); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	r.logger.Info("created user", slog.String("name", name))
	return created, nil
}

// ListUsers returns all members.
func (r *PostgresUserRepo) ListUsers(ctx context.Context) ([]*User, error) {
	query := `SELECT id, name, email, created_at FROM users ORDER BY name`

	rows, err := r.pgpool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	users, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[User])
	if err != nil {
		return nil, fmt.Errorf("failed to scan users: %w", err)
	}

	return users, nil
}
