// Package rbac maps community roles to permitted actions.
// This is the single source of truth for permissions: every mutating
// endpoint resolves the caller's membership role and checks it here
// before touching the database.
package rbac

import (
	"github.com/commune-hq/commune/dao/model"
)

type Permission string

const (
	PermViewCommunity   Permission = "community:view"
	PermEditCommunity   Permission = "community:edit"
	PermDeleteCommunity Permission = "community:delete"

	PermManageMembers Permission = "members:manage"
	PermManageInvites Permission = "invites:manage"

	PermCreateProject        Permission = "project:create"
	PermEditProject          Permission = "project:edit"
	PermDeleteProject        Permission = "project:delete"
	PermManageProjectMembers Permission = "project:members"

	PermCreateTask Permission = "task:create"
	PermEditTask   Permission = "task:edit"
	PermDeleteTask Permission = "task:delete"
	PermAssignTask Permission = "task:assign"
)

var viewerGrants = []Permission{
	PermViewCommunity,
	PermCreateTask,
}

// Admins and the owner share the full action set; the difference
// between the two roles is lifecycle (owner departure deletes the
// community), not permissions.
var adminGrants = []Permission{
	PermViewCommunity,
	PermEditCommunity,
	PermDeleteCommunity,
	PermManageMembers,
	PermManageInvites,
	PermCreateProject,
	PermEditProject,
	PermDeleteProject,
	PermManageProjectMembers,
	PermCreateTask,
	PermEditTask,
	PermDeleteTask,
	PermAssignTask,
}

var grants = map[model.MemberRole][]Permission{
	model.MemberRoleViewer: viewerGrants,
	model.MemberRoleAdmin:  adminGrants,
	model.MemberRoleOwner:  adminGrants,
}

// Can reports whether role is allowed to perform p.
func Can(role model.MemberRole, p Permission) bool {
	for _, g := range grants[role] {
		if g == p {
			return true
		}
	}
	return false
}

// Permissions returns the action set of a role. The returned slice is
// shared; callers must not mutate it.
func Permissions(role model.MemberRole) []Permission {
	return grants[role]
}

// Elevated reports whether the role may manage the community itself
// (admin or owner).
func Elevated(role model.MemberRole) bool {
	return role == model.MemberRoleAdmin || role == model.MemberRoleOwner
}
