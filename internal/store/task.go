package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/taskhub/apiserver/internal/db"
	"github.com/taskhub/apiserver/types"
)

// TaskRepository handles persistence for tasks.
type TaskRepository struct {
	db db.DBTX
}

func NewTaskRepository(conn db.DBTX) *TaskRepository {
	return &TaskRepository{db: conn}
}

const taskColumns = `id, user_id, category_id, name, description, due_date, is_completed, created_at, updated_at`

func scanTask(row rowScanner) (types.Task, error) {
	var task types.Task
	var category sql.NullInt64
	var description sql.NullString
	var dueDate sql.NullTime
	err := row.Scan(
		&task.ID,
		&task.UserID,
		&category,
		&task.Name,
		&description,
		&dueDate,
		&task.IsCompleted,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	task.CategoryID = intPtr(category)
	task.Description = stringPtr(description)
	task.DueDate = timePtr(dueDate)
	return task, err
}

func (r *TaskRepository) Get(ctx context.Context, id int) (types.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	task, err := scanTask(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Task{}, ErrNotFound
		}
		return types.Task{}, translate("get task", err)
	}
	return task, nil
}

func taskWhere(filter types.TaskFilter) (string, []any) {
	var conds []string
	var args []any
	if filter.OwnerID != nil {
		args = append(args, *filter.OwnerID)
		conds = append(conds, "user_id = "+placeholder(len(args)))
	}
	if filter.DueFrom != nil {
		args = append(args, *filter.DueFrom)
		conds = append(conds, "due_date >= "+placeholder(len(args)))
	}
	if filter.DueTo != nil {
		args = append(args, *filter.DueTo)
		conds = append(conds, "due_date <= "+placeholder(len(args)))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List returns a page of tasks matching filter along with the total count.
func (r *TaskRepository) List(ctx context.Context, filter types.TaskFilter) ([]types.Task, int, error) {
	where, args := taskWhere(filter)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks`+where, args...).Scan(&total); err != nil {
		return nil, 0, translate("count tasks", err)
	}

	query := `SELECT ` + taskColumns + ` FROM tasks` + where + ` ORDER BY id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += " LIMIT " + placeholder(len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += " OFFSET " + placeholder(len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, translate("list tasks", err)
	}
	defer rows.Close()

	tasks := make([]types.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, 0, translate("scan task", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, translate("list tasks", err)
	}
	return tasks, total, nil
}

func (r *TaskRepository) Create(ctx context.Context, task types.Task) (types.Task, error) {
	now := time.Now()
	task.CreatedAt = now
	task.UpdatedAt = now

	const query = `
		INSERT INTO tasks (user_id, category_id, name, description, due_date, is_completed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		task.UserID,
		nullInt(task.CategoryID),
		task.Name,
		nullString(task.Description),
		nullTime(task.DueDate),
		task.IsCompleted,
		task.CreatedAt,
		task.UpdatedAt,
	).Scan(&task.ID); err != nil {
		return types.Task{}, translate("create task", err)
	}
	return task, nil
}

func (r *TaskRepository) Update(ctx context.Context, task types.Task) (types.Task, error) {
	task.UpdatedAt = time.Now()

	const query = `
		UPDATE tasks
		SET user_id = $1,
			category_id = $2,
			name = $3,
			description = $4,
			due_date = $5,
			is_completed = $6,
			updated_at = $7
		WHERE id = $8`
	result, err := r.db.ExecContext(
		ctx,
		query,
		task.UserID,
		nullInt(task.CategoryID),
		task.Name,
		nullString(task.Description),
		nullTime(task.DueDate),
		task.IsCompleted,
		task.UpdatedAt,
		task.ID,
	)
	if err != nil {
		return types.Task{}, translate("update task", err)
	}
	if err := affectedOrNotFound(result); err != nil {
		return types.Task{}, err
	}
	return task, nil
}

func (r *TaskRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM tasks WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return translate("delete task", err)
	}
	return affectedOrNotFound(result)
}
