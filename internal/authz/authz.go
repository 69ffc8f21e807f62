// Package authz decides what an authenticated actor may see and change.
// Every function here is pure: the callers load the records and apply the
// resulting scopes to their queries.
package authz

import "github.com/taskhub/apiserver/types"

// Actor is the resolved identity of the caller.
type Actor struct {
	UserID int
	Email  string
	Role   types.Role
}

// Decision is the outcome of a check that can fail in more than one way.
type Decision int

const (
	Allow Decision = iota
	DenyPermission
	DenyConflict
)

// CategoryScope restricts category reads to general categories plus those
// created by ViewerID.
type CategoryScope struct {
	ViewerID int
}

// Includes reports whether c is inside the scope.
func (s CategoryScope) Includes(c types.Category) bool {
	return c.IsGeneral || c.OwnedBy(s.ViewerID)
}

// TaskScope restricts task reads to OwnerID; a nil OwnerID means all tasks.
type TaskScope struct {
	OwnerID *int
}

// Includes reports whether t is inside the scope.
func (s TaskScope) Includes(t types.Task) bool {
	return s.OwnerID == nil || t.UserID == *s.OwnerID
}

// RequireAtLeast gates admin-only and superadmin-only operations.
func RequireAtLeast(actor Actor, min types.Role) bool {
	return actor.Role.AtLeast(min)
}

// VisibleCategories returns the categories scope of actor. Roles do not widen it.
func VisibleCategories(actor Actor) CategoryScope {
	return CategoryScope{ViewerID: actor.UserID}
}

// CanEditCategory: only the creator of a personal category may change it.
func CanEditCategory(actor Actor, c types.Category) bool {
	return !c.IsGeneral && c.OwnedBy(actor.UserID)
}

// CanDeleteCategory applies the edit rule, then refuses categories still in
// use as some profile's default.
func CanDeleteCategory(actor Actor, c types.Category, referencedAsDefault bool) Decision {
	if !CanEditCategory(actor, c) {
		return DenyPermission
	}
	if referencedAsDefault {
		return DenyConflict
	}
	return Allow
}

// VisibleTasks: admins and superadmins see every task, users only their own.
func VisibleTasks(actor Actor) TaskScope {
	if actor.Role.Privileged() {
		return TaskScope{}
	}
	owner := actor.UserID
	return TaskScope{OwnerID: &owner}
}

// CanMutateTask reports whether actor may update or delete t.
func CanMutateTask(actor Actor, t types.Task) bool {
	return actor.Role.Privileged() || t.UserID == actor.UserID
}

// CanReassignTask reports whether actor may move a task to another owner.
func CanReassignTask(actor Actor) bool {
	return actor.Role.AtLeast(types.RoleSuperAdmin)
}

// CanDeleteAccount: superadmin only, and never their own account.
func CanDeleteAccount(actor Actor, targetUserID int) Decision {
	if !actor.Role.AtLeast(types.RoleSuperAdmin) {
		return DenyPermission
	}
	if actor.UserID == targetUserID {
		return DenyConflict
	}
	return Allow
}

// CanChooseRole reports whether actor may grant role to a newly approved
// account. Anything above the default role needs a superadmin.
func CanChooseRole(actor Actor, role types.Role) bool {
	if role == types.RoleUser {
		return actor.Role.Privileged()
	}
	return actor.Role.AtLeast(types.RoleSuperAdmin)
}
