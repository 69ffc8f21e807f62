package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskhub/apiserver/types"
)

var profileRowColumns = []string{"user_id", "name", "location", "image_key", "role", "status", "default_category_id", "created_at", "updated_at"}

func TestProfileRepository_Ensure(t *testing.T) {
	conn, mock := newMock(t)
	repo := NewProfileRepository(conn)
	now := time.Now()

	mock.ExpectExec(`INSERT INTO profiles .* ON CONFLICT \(user_id\) DO NOTHING`).
		WithArgs(4, "user", "approved", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`FROM profiles WHERE user_id = \$1`).
		WithArgs(4).
		WillReturnRows(sqlmock.NewRows(profileRowColumns).AddRow(4, "Dana", "", "", "admin", "approved", 11, now, now))

	profile, err := repo.Ensure(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, types.RoleAdmin, profile.Role)
	require.NotNil(t, profile.DefaultCategoryID)
	assert.Equal(t, 11, *profile.DefaultCategoryID)
}

func TestProfileRepository_Update_ClearsDefault(t *testing.T) {
	conn, mock := newMock(t)
	repo := NewProfileRepository(conn)

	mock.ExpectExec(`UPDATE profiles\s+SET name = \$1`).
		WithArgs("Dana", "Oslo", "", nil, sqlmock.AnyArg(), 4).
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := repo.Update(context.Background(), types.Profile{UserID: 4, Name: "Dana", Location: "Oslo"})
	require.NoError(t, err)
}

func TestProfileRepository_Update_UnknownCategory(t *testing.T) {
	conn, mock := newMock(t)
	repo := NewProfileRepository(conn)
	category := 77

	mock.ExpectExec(`UPDATE profiles`).
		WithArgs("Dana", "", "", 77, sqlmock.AnyArg(), 4).
		WillReturnError(&pq.Error{Code: "23503"})

	_, err := repo.Update(context.Background(), types.Profile{UserID: 4, Name: "Dana", DefaultCategoryID: &category})
	assert.ErrorIs(t, err, ErrReferenced)
}

func TestProfileRepository_AssignDefaultCategory(t *testing.T) {
	conn, mock := newMock(t)
	repo := NewProfileRepository(conn)

	mock.ExpectExec(`WHERE user_id = \$3 AND default_category_id IS NULL`).
		WithArgs(9, sqlmock.AnyArg(), 4).
		WillReturnResult(sqlmock.NewResult(0, 0))

	changed, err := repo.AssignDefaultCategory(context.Background(), 4, 9)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestProfileRepository_ReferencesCategory(t *testing.T) {
	conn, mock := newMock(t)
	repo := NewProfileRepository(conn)

	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM profiles WHERE default_category_id = \$1\)`).
		WithArgs(9).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	referenced, err := repo.ReferencesCategory(context.Background(), 9)
	require.NoError(t, err)
	assert.True(t, referenced)
}
