// Package category manages the category tree used for classification.
package category

import (
	"context"
	"embed"
	"encoding/json"
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

//go:embed defaults.json
var defaultsFS embed.FS

// Category is one node of the category tree. Macro groups have a nil
// parent; leaf categories point at their group.
type Category struct {
	ID               uuid.UUID  `db:"id"`
	Name             string     `db:"name"`
	ParentCategoryID *uuid.UUID `db:"parent_category_id"`
	CategoryType     string     `db:"category_type"` // "expense", "income", "transfer"
	IsSharedDefault  bool       `db:"is_shared_default"`
	CreatedAt        time.Time  `db:"created_at"`
}

// DefaultCategory mirrors one entry of defaults.json.
type DefaultCategory struct {
	Name            string `json:"name"`
	Parent          string `json:"parent"`
	CategoryType    string `json:"category_type"`
	IsSharedDefault bool   `json:"is_shared_default"`
}

// DefaultCategories returns the embedded seed set.
func DefaultCategories() ([]DefaultCategory, error) {
	data, err := defaultsFS.ReadFile("defaults.json")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded defaults: %w", err)
	}

	var defaults []DefaultCategory
	if err := json.Unmarshal(data, &defaults); err != nil {
		return nil, fmt.Errorf("failed to decode embedded defaults: %w", err)
	}

	return defaults, nil
}

var _ CategoryRepo = (*PostgresCategoryRepo)(nil)

// CategoryRepo defines the contract for category persistence.
type CategoryRepo interface {
	ListCategories(ctx context.Context) ([]*Category, error)
	// GetByName resolves a category by name, case-insensitively.
	GetByName(ctx context.Context, name string) (*Category, error)
	// SeedDefaults inserts the embedded default set, skipping names that
	// already exist. Safe to run on every startup.
	SeedDefaults(ctx context.Context) error
}

// PgxPool abstracts the subset of pgxpool.Pool used by the repository to allow mocking in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ PgxPool = (*pgxpool.Pool)(nil)

type PostgresCategoryRepo struct {
	logger *slog.Logger
	pgpool PgxPool
}

func NewPostgresCategoryRepo(pgpool PgxPool, logger *slog.Logger) *PostgresCategoryRepo {
	return &PostgresCategoryRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

// ListCategories returns the whole tree, groups before their children.
func (r *PostgresCategoryRepo) ListCategories(ctx context.Context) ([]*Category, error) {
	query := `
		SELECT id, name, parent_category_id, category_type, is_shared_default, created_at
		FROM categories
		ORDER BY parent_category_id NULLS FIRST, name
	`

	rows, err := r.pgpool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	categories, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[Category])
	if err != nil {
		return nil, fmt.Errorf("failed to scan categories: %w", err)
	}

	return categories, nil
}

// GetByName resolves a category by name, case-insensitively.
func (r *PostgresCategoryRepo) GetByName(ctx context.Context, name string) (*Category, error) {
	query := `
		SELECT id, name, parent_category_id, category_type, is_shared_default, created_at
		FROM categories
		WHERE LOWER(name) = LOWER($1)
	`

	rows, err := r.pgpool.Query(ctx, query, name)
	if err != nil {
		return nil, fmt.Errorf("failed to query category: %w", err)
	}

	category, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[Category])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("category %q not found: %w", name, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan category: %w", err)
	}

	return &category, nil
}

// SeedDefaults inserts the embedded default tree. Groups are inserted
// first so children can reference them; existing names are left alone.
func (r *PostgresCategoryRepo) SeedDefaults(ctx context.Context) error {
	defaults, err := DefaultCategories()
	if err != nil {
		return err
	}

	seeded := 0
	for _, def := range defaults {
		var parentID *uuid.UUID
		if def.Parent != "" {
			parent, err := r.GetByName(ctx, def.Parent)
			if err != nil {
				return fmt.Errorf("failed to resolve parent %q: %w", def.Parent, err)
			}
			parentID = &parent.ID
		}

		query := `
			INSERT INTO categories (id, name, parent_category_id, category_type, is_shared_default)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (name) DO NOTHING
		`
		tag, err := r.pgpool.Exec(ctx, query, uuid.New(), def.Name, parentID, def.CategoryType, def.IsSharedDefault)
		if err != nil {
			return fmt.Errorf("failed to seed category %q: %w", def.Name, err)
		}
		seeded += int(tag.RowsAffected())
	}

	if seeded > 0 {
		r.logger.Info("seeded default categories", slog.Int("count", seeded))
	}
	return nil
}
