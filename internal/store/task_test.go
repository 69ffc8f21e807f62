package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskhub/apiserver/types"
)

var taskRowColumns = []string{"id", "user_id", "category_id", "name", "description", "due_date", "is_completed", "created_at", "updated_at"}

func TestTaskWhere(t *testing.T) {
	owner := 3
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	where, args := taskWhere(types.TaskFilter{})
	assert.Empty(t, where)
	assert.Empty(t, args)

	where, args = taskWhere(types.TaskFilter{OwnerID: &owner, DueFrom: &from, DueTo: &to})
	assert.Equal(t, " WHERE user_id = $1 AND due_date >= $2 AND due_date <= $3", where)
	assert.Equal(t, []any{3, from, to}, args)

	where, args = taskWhere(types.TaskFilter{DueTo: &to})
	assert.Equal(t, " WHERE due_date <= $1", where)
	assert.Equal(t, []any{to}, args)
}

func TestTaskRepository_List(t *testing.T) {
	conn, mock := newMock(t)
	repo := NewTaskRepository(conn)
	owner := 3
	now := time.Now()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM tasks WHERE user_id = \$1`).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))
	mock.ExpectQuery(`FROM tasks WHERE user_id = \$1 ORDER BY id LIMIT \$2 OFFSET \$3`).
		WithArgs(3, 5, 10).
		WillReturnRows(sqlmock.NewRows(taskRowColumns).
			AddRow(11, 3, nil, "Pay rent", "monthly", now, false, now, now).
			AddRow(12, 3, 4, "Call mom", nil, nil, true, now, now))

	tasks, total, err := repo.List(context.Background(), types.TaskFilter{OwnerID: &owner, Limit: 5, Offset: 10})
	require.NoError(t, err)
	assert.Equal(t, 12, total)
	require.Len(t, tasks, 2)
	assert.Nil(t, tasks[0].CategoryID)
	require.NotNil(t, tasks[0].Description)
	assert.Equal(t, "monthly", *tasks[0].Description)
	assert.Nil(t, tasks[1].DueDate)
	require.NotNil(t, tasks[1].CategoryID)
	assert.Equal(t, 4, *tasks[1].CategoryID)
}

func TestTaskRepository_Update(t *testing.T) {
	conn, mock := newMock(t)
	repo := NewTaskRepository(conn)

	mock.ExpectExec(`UPDATE tasks\s+SET user_id = \$1`).
		WithArgs(3, nil, "Pay rent", nil, nil, true, sqlmock.AnyArg(), 11).
		WillReturnResult(sqlmock.NewResult(0, 1))

	task, err := repo.Update(context.Background(), types.Task{ID: 11, UserID: 3, Name: "Pay rent", IsCompleted: true})
	require.NoError(t, err)
	assert.False(t, task.UpdatedAt.IsZero())
}

func TestTaskRepository_Delete_Missing(t *testing.T) {
	conn, mock := newMock(t)
	repo := NewTaskRepository(conn)

	mock.ExpectExec(`DELETE FROM tasks WHERE id = \$1`).
		WithArgs(11).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.Delete(context.Background(), 11), ErrNotFound)
}
