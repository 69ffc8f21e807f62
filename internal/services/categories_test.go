package services

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskhub/apiserver/internal/authz"
	"github.com/taskhub/apiserver/types"
)

func actorOf(u types.User, role types.Role) authz.Actor {
	return authz.Actor{UserID: u.ID, Email: u.Email, Role: role}
}

func intRef(v int) *int { return &v }

func TestDefaultCategoryIsSharedSingleton(t *testing.T) {
	st := newMemStore()
	svc := NewCategoryService(st, nil)
	ctx := context.Background()

	first, err := svc.DefaultCategory(ctx)
	require.NoError(t, err)
	second, err := svc.DefaultCategory(ctx)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.True(t, first.IsGeneral)
	assert.Nil(t, first.CreatorID)
	assert.Len(t, st.categoriesNamed(types.DefaultCategoryName), 1)
}

func TestDefaultCategoryConcurrentFirstUse(t *testing.T) {
	st := newMemStore()
	svc := NewCategoryService(st, nil)

	const workers = 16
	ids := make([]int, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := svc.DefaultCategory(context.Background())
			assert.NoError(t, err)
			ids[i] = c.ID
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Len(t, st.categoriesNamed(types.DefaultCategoryName), 1)
}

func TestDefaultCategoryRepairsLegacyRow(t *testing.T) {
	st := newMemStore()
	owner := st.seedUser("owner@x.com", types.RoleUser)
	st.data.categories[99] = types.Category{ID: 99, Name: types.DefaultCategoryName, CreatorID: intRef(owner.ID)}

	c, err := NewCategoryService(st, nil).DefaultCategory(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 99, c.ID)
	assert.True(t, c.IsGeneral)
	assert.Nil(t, c.CreatorID)
	stored := st.data.categories[99]
	assert.True(t, stored.IsGeneral)
	assert.Nil(t, stored.CreatorID)
}

func TestResolveDefaultAssignsOnce(t *testing.T) {
	st := newMemStore()
	u := st.seedUser("a@x.com", types.RoleUser)
	svc := NewCategoryService(st, nil)

	id, err := svc.ResolveDefault(context.Background(), u.ID)
	require.NoError(t, err)
	again, err := svc.ResolveDefault(context.Background(), u.ID)
	require.NoError(t, err)

	assert.Equal(t, id, again)
	require.NotNil(t, st.profile(u.ID).DefaultCategoryID)
	assert.Equal(t, id, *st.profile(u.ID).DefaultCategoryID)
}

func TestCategoryCreateIsPersonal(t *testing.T) {
	st := newMemStore()
	a := st.seedUser("a@x.com", types.RoleSuperAdmin)
	svc := NewCategoryService(st, nil)

	view, err := svc.Create(context.Background(), actorOf(a, types.RoleSuperAdmin), "  Work ")
	require.NoError(t, err)

	assert.Equal(t, "Work", view.Name)
	assert.False(t, view.IsGeneral)
	assert.True(t, view.IsEditable)
	assert.Equal(t, types.CategoryTypePersonal, view.Type)
	stored := st.data.categories[view.ID]
	require.NotNil(t, stored.CreatorID)
	assert.Equal(t, a.ID, *stored.CreatorID)
}

func TestCategoryNameValidation(t *testing.T) {
	st := newMemStore()
	a := st.seedUser("a@x.com", types.RoleUser)
	svc := NewCategoryService(st, nil)
	actor := actorOf(a, types.RoleUser)

	tests := []struct {
		name  string
		input string
	}{
		{"empty", "   "},
		{"reserved", "default category"},
		{"too long", strings.Repeat("x", 101)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), actor, tt.input)
			assert.Equal(t, KindValidation, KindOf(err))
		})
	}
}

func TestCategoryScenario(t *testing.T) {
	st := newMemStore()
	ctx := context.Background()
	profiles := NewProfileService(st, nil, nil)
	svc := NewCategoryService(st, nil)

	a := st.seedUser("a@x.com", types.RoleUser)
	b := st.seedUser("b@x.com", types.RoleUser)
	actorA, actorB := actorOf(a, types.RoleUser), actorOf(b, types.RoleUser)

	details, err := profiles.Get(ctx, actorA)
	require.NoError(t, err)
	require.NotNil(t, details.DefaultCategoryID)
	def := st.data.categories[*details.DefaultCategoryID]
	assert.Equal(t, types.DefaultCategoryName, def.Name)

	work, err := svc.Create(ctx, actorA, "Work")
	require.NoError(t, err)
	assert.True(t, work.IsEditable)

	// B does not see A's personal category at all.
	_, err = svc.Get(ctx, actorB, work.ID)
	assert.Equal(t, KindNotFound, KindOf(err))
	viewsB, err := svc.List(ctx, actorB)
	require.NoError(t, err)
	for _, v := range viewsB {
		assert.NotEqual(t, work.ID, v.ID)
	}
	_, err = svc.Update(ctx, actorB, work.ID, "Mine")
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Equal(t, KindNotFound, KindOf(svc.Delete(ctx, actorB, work.ID)))

	// Nobody edits the shared default through the standard path.
	_, err = svc.Update(ctx, actorA, def.ID, "Renamed")
	assert.Equal(t, KindPermission, KindOf(err))
	assert.Equal(t, KindPermission, KindOf(svc.Delete(ctx, actorOf(a, types.RoleSuperAdmin), def.ID)))

	renamed, err := svc.Update(ctx, actorA, work.ID, "Office")
	require.NoError(t, err)
	assert.Equal(t, "Office", renamed.Name)

	require.NoError(t, svc.Delete(ctx, actorA, work.ID))
	_, err = svc.Get(ctx, actorA, work.ID)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestCategoryListOrderAndEditability(t *testing.T) {
	st := newMemStore()
	ctx := context.Background()
	svc := NewCategoryService(st, nil)
	a := st.seedUser("a@x.com", types.RoleUser)
	actor := actorOf(a, types.RoleUser)

	_, err := svc.CreateGeneral(ctx, "Shared")
	require.NoError(t, err)
	_, err = svc.Create(ctx, actor, "Alpha")
	require.NoError(t, err)

	views, err := svc.List(ctx, actor)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "Shared", views[0].Name)
	assert.False(t, views[0].IsEditable)
	assert.Equal(t, types.CategoryTypeGeneral, views[0].Type)
	assert.Equal(t, "Alpha", views[1].Name)
	assert.True(t, views[1].IsEditable)
}

func TestDeleteCategoryUsedAsDefaultConflicts(t *testing.T) {
	st := newMemStore()
	ctx := context.Background()
	svc := NewCategoryService(st, nil)
	profiles := NewProfileService(st, nil, nil)
	a := st.seedUser("a@x.com", types.RoleUser)
	actor := actorOf(a, types.RoleUser)

	work, err := svc.Create(ctx, actor, "Work")
	require.NoError(t, err)
	_, err = profiles.Update(ctx, actor, ProfileUpdate{DefaultCategoryID: intRef(work.ID)})
	require.NoError(t, err)

	err = svc.Delete(ctx, actor, work.ID)
	assert.Equal(t, KindConflict, KindOf(err))
	_, err = svc.Get(ctx, actor, work.ID)
	assert.NoError(t, err)
}

func TestDeleteCategoryUncategorizesTasks(t *testing.T) {
	st := newMemStore()
	ctx := context.Background()
	svc := NewCategoryService(st, nil)
	tasks := NewTaskService(st, nil)
	a := st.seedUser("a@x.com", types.RoleUser)
	actor := actorOf(a, types.RoleUser)

	work, err := svc.Create(ctx, actor, "Work")
	require.NoError(t, err)
	task, err := tasks.Create(ctx, actor, TaskInput{Name: "report", CategoryID: intRef(work.ID)})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, actor, work.ID))

	reloaded, err := tasks.Get(ctx, actor, task.ID)
	require.NoError(t, err)
	assert.Nil(t, reloaded.CategoryID)
}
