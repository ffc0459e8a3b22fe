package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/commune-hq/commune/dao/model"
)

func TestViewerGrants(t *testing.T) {
	assert.True(t, Can(model.MemberRoleViewer, PermViewCommunity))
	assert.True(t, Can(model.MemberRoleViewer, PermCreateTask))

	assert.False(t, Can(model.MemberRoleViewer, PermManageMembers))
	assert.False(t, Can(model.MemberRoleViewer, PermEditCommunity))
	assert.False(t, Can(model.MemberRoleViewer, PermDeleteCommunity))
	assert.False(t, Can(model.MemberRoleViewer, PermManageInvites))
	assert.False(t, Can(model.MemberRoleViewer, PermCreateProject))
	assert.False(t, Can(model.MemberRoleViewer, PermAssignTask))
}

func TestAdminAndOwnerShareFullGrants(t *testing.T) {
	for _, p := range Permissions(model.MemberRoleAdmin) {
		assert.True(t, Can(model.MemberRoleOwner, p), "owner missing %s", p)
	}
	for _, p := range Permissions(model.MemberRoleOwner) {
		assert.True(t, Can(model.MemberRoleAdmin, p), "admin missing %s", p)
	}
	assert.True(t, Can(model.MemberRoleAdmin, PermDeleteCommunity))
	assert.True(t, Can(model.MemberRoleOwner, PermManageMembers))
}

func TestUnknownRoleHasNoGrants(t *testing.T) {
	var none model.MemberRole
	assert.False(t, Can(none, PermViewCommunity))
	assert.Empty(t, Permissions(none))
}

func TestElevated(t *testing.T) {
	assert.False(t, Elevated(model.MemberRoleViewer))
	assert.True(t, Elevated(model.MemberRoleAdmin))
	assert.True(t, Elevated(model.MemberRoleOwner))
}
