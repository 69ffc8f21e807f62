package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskhub/apiserver/types"
)

func intPtr(v int) *int { return &v }

var (
	alice = Actor{UserID: 1, Role: types.RoleUser}
	bob   = Actor{UserID: 2, Role: types.RoleUser}
	admin = Actor{UserID: 3, Role: types.RoleAdmin}
	root  = Actor{UserID: 4, Role: types.RoleSuperAdmin}
)

func TestVisibleCategories(t *testing.T) {
	general := types.Category{ID: 1, IsGeneral: true}
	alices := types.Category{ID: 2, CreatorID: intPtr(alice.UserID)}

	scope := VisibleCategories(bob)
	assert.True(t, scope.Includes(general))
	assert.False(t, scope.Includes(alices))
	assert.True(t, VisibleCategories(alice).Includes(alices))

	// roles do not widen category visibility
	assert.False(t, VisibleCategories(root).Includes(alices))
}

func TestCanEditCategory(t *testing.T) {
	general := types.Category{IsGeneral: true}
	work := types.Category{Name: "Work", CreatorID: intPtr(alice.UserID)}

	assert.True(t, CanEditCategory(alice, work))
	for _, actor := range []Actor{bob, admin, root} {
		assert.False(t, CanEditCategory(actor, work), "actor %d", actor.UserID)
		assert.False(t, CanEditCategory(actor, general), "actor %d", actor.UserID)
	}
	assert.False(t, CanEditCategory(alice, general))
}

func TestCanDeleteCategory(t *testing.T) {
	work := types.Category{Name: "Work", CreatorID: intPtr(alice.UserID)}

	assert.Equal(t, Allow, CanDeleteCategory(alice, work, false))
	assert.Equal(t, DenyConflict, CanDeleteCategory(alice, work, true))
	assert.Equal(t, DenyPermission, CanDeleteCategory(bob, work, false))
	assert.Equal(t, DenyPermission, CanDeleteCategory(root, work, true))
	assert.Equal(t, DenyPermission, CanDeleteCategory(root, types.Category{IsGeneral: true}, false))
}

func TestVisibleTasks(t *testing.T) {
	mine := types.Task{ID: 1, UserID: alice.UserID}
	theirs := types.Task{ID: 2, UserID: bob.UserID}

	scope := VisibleTasks(alice)
	require.NotNil(t, scope.OwnerID)
	assert.Equal(t, alice.UserID, *scope.OwnerID)
	assert.True(t, scope.Includes(mine))
	assert.False(t, scope.Includes(theirs))

	for _, actor := range []Actor{admin, root} {
		scope := VisibleTasks(actor)
		assert.Nil(t, scope.OwnerID)
		assert.True(t, scope.Includes(mine))
		assert.True(t, scope.Includes(theirs))
	}
}

func TestCanMutateTask(t *testing.T) {
	task := types.Task{UserID: alice.UserID}

	assert.True(t, CanMutateTask(alice, task))
	assert.False(t, CanMutateTask(bob, task))
	assert.True(t, CanMutateTask(admin, task))
	assert.True(t, CanMutateTask(root, task))

	assert.False(t, CanReassignTask(alice))
	assert.False(t, CanReassignTask(admin))
	assert.True(t, CanReassignTask(root))
}

func TestRequireAtLeast(t *testing.T) {
	assert.False(t, RequireAtLeast(alice, types.RoleAdmin))
	assert.True(t, RequireAtLeast(admin, types.RoleAdmin))
	assert.False(t, RequireAtLeast(admin, types.RoleSuperAdmin))
	assert.True(t, RequireAtLeast(root, types.RoleSuperAdmin))
	assert.False(t, RequireAtLeast(Actor{UserID: 9}, types.RoleUser))
}

func TestCanDeleteAccount(t *testing.T) {
	assert.Equal(t, DenyPermission, CanDeleteAccount(admin, bob.UserID))
	assert.Equal(t, DenyConflict, CanDeleteAccount(root, root.UserID))
	assert.Equal(t, Allow, CanDeleteAccount(root, bob.UserID))
}

func TestCanChooseRole(t *testing.T) {
	assert.True(t, CanChooseRole(admin, types.RoleUser))
	assert.False(t, CanChooseRole(admin, types.RoleAdmin))
	assert.True(t, CanChooseRole(root, types.RoleSuperAdmin))
	assert.False(t, CanChooseRole(alice, types.RoleUser))
}
