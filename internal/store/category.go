package store

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/taskhub/apiserver/internal/db"
	"github.com/taskhub/apiserver/types"
)

// CategoryRepository handles persistence for categories.
type CategoryRepository struct {
	db db.DBTX
}

func NewCategoryRepository(conn db.DBTX) *CategoryRepository {
	return &CategoryRepository{db: conn}
}

const categoryColumns = `id, name, creator_id, is_general, created_at`

func scanCategory(row rowScanner) (types.Category, error) {
	var category types.Category
	var creator sql.NullInt64
	err := row.Scan(
		&category.ID,
		&category.Name,
		&creator,
		&category.IsGeneral,
		&category.CreatedAt,
	)
	category.CreatorID = intPtr(creator)
	return category, err
}

func (r *CategoryRepository) queryOne(ctx context.Context, op, query string, args ...any) (types.Category, error) {
	category, err := scanCategory(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Category{}, ErrNotFound
		}
		return types.Category{}, translate(op, err)
	}
	return category, nil
}

// GetOrCreateDefault returns the Default Category, inserting it as a general
// category when no row carries the reserved name. The partial unique index on
// the name keeps concurrent callers on a single row. The returned row is not
// repaired; callers check Consistent.
func (r *CategoryRepository) GetOrCreateDefault(ctx context.Context) (types.Category, error) {
	const insert = `
		INSERT INTO categories (name, creator_id, is_general, created_at)
		VALUES ($1, NULL, TRUE, $2)
		ON CONFLICT (name) WHERE name = 'Default Category' DO NOTHING`
	if _, err := r.db.ExecContext(ctx, insert, types.DefaultCategoryName, time.Now()); err != nil {
		return types.Category{}, translate("create default category", err)
	}

	query := `SELECT ` + categoryColumns + ` FROM categories WHERE name = $1`
	return r.queryOne(ctx, "get default category", query, types.DefaultCategoryName)
}

// MarkGeneral rewrites only the columns that break the general-category
// invariant on category id.
func (r *CategoryRepository) MarkGeneral(ctx context.Context, id int, setGeneral, clearCreator bool) error {
	if !setGeneral && !clearCreator {
		return nil
	}
	var sets []string
	if setGeneral {
		sets = append(sets, "is_general = TRUE")
	}
	if clearCreator {
		sets = append(sets, "creator_id = NULL")
	}
	query := `UPDATE categories SET ` + strings.Join(sets, ", ") + ` WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return translate("repair category", err)
	}
	return affectedOrNotFound(result)
}

// Get returns a category regardless of who may see it.
func (r *CategoryRepository) Get(ctx context.Context, id int) (types.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE id = $1`
	return r.queryOne(ctx, "get category", query, id)
}

// GetVisible returns a category only when it is general or created by viewerID.
func (r *CategoryRepository) GetVisible(ctx context.Context, id, viewerID int) (types.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories
		WHERE id = $1 AND (is_general OR creator_id = $2)`
	return r.queryOne(ctx, "get category", query, id, viewerID)
}

// ListVisible returns general categories followed by those created by viewerID.
func (r *CategoryRepository) ListVisible(ctx context.Context, viewerID int) ([]types.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories
		WHERE is_general OR creator_id = $1
		ORDER BY is_general DESC, name, id`
	rows, err := r.db.QueryContext(ctx, query, viewerID)
	if err != nil {
		return nil, translate("list categories", err)
	}
	defer rows.Close()

	categories := make([]types.Category, 0)
	for rows.Next() {
		category, err := scanCategory(rows)
		if err != nil {
			return nil, translate("scan category", err)
		}
		categories = append(categories, category)
	}
	if err := rows.Err(); err != nil {
		return nil, translate("list categories", err)
	}
	return categories, nil
}

func (r *CategoryRepository) Create(ctx context.Context, category types.Category) (types.Category, error) {
	category.CreatedAt = time.Now()

	const query = `
		INSERT INTO categories (name, creator_id, is_general, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		category.Name,
		nullInt(category.CreatorID),
		category.IsGeneral,
		category.CreatedAt,
	).Scan(&category.ID); err != nil {
		return types.Category{}, translate("create category", err)
	}
	return category, nil
}

func (r *CategoryRepository) Rename(ctx context.Context, id int, name string) error {
	const query = `UPDATE categories SET name = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, name, id)
	if err != nil {
		return translate("rename category", err)
	}
	return affectedOrNotFound(result)
}

func (r *CategoryRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM categories WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return translate("delete category", err)
	}
	return affectedOrNotFound(result)
}

func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}
