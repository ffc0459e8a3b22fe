package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commune-hq/commune/dao/model"
)

func TestCreateCommunity(t *testing.T) {
	db := newTestDB(t)
	svc := NewMembershipService(db)
	ctx := context.Background()
	owner := createUser(t, db, "alice")

	community, err := svc.CreateCommunity(ctx, owner.ID, CreateCommunityReq{Name: "gophers"})
	require.NoError(t, err)

	// the creator's OWNER membership is written in the same transaction
	assert.Equal(t, model.MemberRoleOwner, memberRole(t, db, community.ID, owner.ID))
	assert.EqualValues(t, 1, outboxEvents(t, db, "community.created"))

	_, err = svc.CreateCommunity(ctx, owner.ID, CreateCommunityReq{Name: "gophers"})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = svc.CreateCommunity(ctx, owner.ID, CreateCommunityReq{Name: ""})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestJoinPublicCommunity(t *testing.T) {
	db := newTestDB(t)
	svc := NewMembershipService(db)
	ctx := context.Background()
	owner := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	community := createCommunity(t, db, owner.ID, "gophers", false)

	require.NoError(t, svc.Join(ctx, bob.ID, community.ID, ""))
	assert.Equal(t, model.MemberRoleViewer, memberRole(t, db, community.ID, bob.ID))

	// joining twice is a conflict, not a second row
	err := svc.Join(ctx, bob.ID, community.ID, "")
	assert.ErrorIs(t, err, ErrConflict)
	assert.EqualValues(t, 2, countRows(t, db, &model.CommunityMember{}, "community_id = ?", community.ID))
}

func TestJoinPrivateCommunityRequiresInvite(t *testing.T) {
	db := newTestDB(t)
	svc := NewMembershipService(db)
	invites := NewInviteService(db, nil)
	ctx := context.Background()
	owner := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	community := createCommunity(t, db, owner.ID, "secret", true)

	err := svc.Join(ctx, bob.ID, community.ID, "")
	assert.ErrorIs(t, err, ErrForbidden)

	err = svc.Join(ctx, bob.ID, community.ID, "no-such-code")
	assert.ErrorIs(t, err, ErrForbidden)

	// expired invites do not open the door
	expired, err := invites.Issue(ctx, owner.ID, community.ID, -time.Hour, "")
	require.NoError(t, err)
	err = svc.Join(ctx, bob.ID, community.ID, expired.Code)
	assert.ErrorIs(t, err, ErrForbidden)

	invite, err := invites.Issue(ctx, owner.ID, community.ID, time.Hour, "")
	require.NoError(t, err)
	require.NoError(t, svc.Join(ctx, bob.ID, community.ID, invite.Code))
	assert.Equal(t, model.MemberRoleViewer, memberRole(t, db, community.ID, bob.ID))
}

func TestLeave(t *testing.T) {
	db := newTestDB(t)
	svc := NewMembershipService(db)
	ctx := context.Background()
	owner := createUser(t, db, "alice")
	admin := createUser(t, db, "bob")
	viewer := createUser(t, db, "carol")
	community := createCommunity(t, db, owner.ID, "gophers", false)
	addMember(t, db, community.ID, admin.ID, model.MemberRoleAdmin)
	addMember(t, db, community.ID, viewer.ID, model.MemberRoleViewer)

	// a viewer can always leave
	require.NoError(t, svc.Leave(ctx, viewer.ID, community.ID))
	assert.EqualValues(t, 0, countRows(t, db, &model.CommunityMember{},
		"community_id = ? AND user_id = ?", community.ID, viewer.ID))

	// an admin can leave while the owner remains to manage the community
	require.NoError(t, svc.Leave(ctx, admin.ID, community.ID))

	// leaving twice: the membership is gone
	err := svc.Leave(ctx, admin.ID, community.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLeaveLastAdmin(t *testing.T) {
	db := newTestDB(t)
	svc := NewMembershipService(db)
	ctx := context.Background()
	admin := createUser(t, db, "bob")
	viewer := createUser(t, db, "carol")

	// a community without an owner row (e.g. imported data) must not be
	// left unmanaged by its only admin
	community := &model.Community{Name: "orphaned", CreatedByID: admin.ID}
	require.NoError(t, db.Create(community).Error)
	addMember(t, db, community.ID, admin.ID, model.MemberRoleAdmin)
	addMember(t, db, community.ID, viewer.ID, model.MemberRoleViewer)

	err := svc.Leave(ctx, admin.ID, community.ID)
	assert.ErrorIs(t, err, ErrConflict)

	// once a second admin exists the first one may go
	second := createUser(t, db, "dave")
	addMember(t, db, community.ID, second.ID, model.MemberRoleAdmin)
	require.NoError(t, svc.Leave(ctx, admin.ID, community.ID))
}

func TestOwnerLeaveCascades(t *testing.T) {
	db := newTestDB(t)
	svc := NewMembershipService(db)
	projects := NewProjectService(db)
	tasks := NewTaskService(db)
	chats := NewChatService(db)
	ctx := context.Background()
	owner := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	community := createCommunity(t, db, owner.ID, "gophers", false)
	addMember(t, db, community.ID, bob.ID, model.MemberRoleViewer)

	project, err := projects.Create(ctx, owner.ID, community.ID, ProjectReq{Name: "website"})
	require.NoError(t, err)
	_, err = tasks.Create(ctx, owner.ID, community.ID, TaskReq{Title: "deploy", ProjectID: &project.ID})
	require.NoError(t, err)
	room, err := chats.CreateGroupRoom(ctx, owner.ID, community.ID, "general")
	require.NoError(t, err)
	_, err = chats.SaveMessage(ctx, owner.ID, room.ID, "hello")
	require.NoError(t, err)

	require.NoError(t, svc.Leave(ctx, owner.ID, community.ID))

	assert.EqualValues(t, 0, countRows(t, db, &model.Community{}, "id = ?", community.ID))
	assert.EqualValues(t, 0, countRows(t, db, &model.CommunityMember{}, "community_id = ?", community.ID))
	assert.EqualValues(t, 0, countRows(t, db, &model.Project{}, "community_id = ?", community.ID))
	assert.EqualValues(t, 0, countRows(t, db, &model.ProjectMember{}, "project_id = ?", project.ID))
	assert.EqualValues(t, 0, countRows(t, db, &model.Task{}, "community_id = ?", community.ID))
	assert.EqualValues(t, 0, countRows(t, db, &model.ChatRoom{}, "community_id = ?", community.ID))
	assert.EqualValues(t, 0, countRows(t, db, &model.ChatMessage{}, "room_id = ?", room.ID))
	assert.EqualValues(t, 1, outboxEvents(t, db, "community.deleted"))
}

func TestChangeRole(t *testing.T) {
	db := newTestDB(t)
	svc := NewMembershipService(db)
	ctx := context.Background()
	owner := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	carol := createUser(t, db, "carol")
	community := createCommunity(t, db, owner.ID, "gophers", false)
	addMember(t, db, community.ID, bob.ID, model.MemberRoleViewer)
	addMember(t, db, community.ID, carol.ID, model.MemberRoleViewer)

	// a viewer cannot manage members
	err := svc.ChangeRole(ctx, bob.ID, community.ID, carol.ID, model.MemberRoleAdmin)
	assert.ErrorIs(t, err, ErrForbidden)

	// the owner promotes bob
	require.NoError(t, svc.ChangeRole(ctx, owner.ID, community.ID, bob.ID, model.MemberRoleAdmin))
	assert.Equal(t, model.MemberRoleAdmin, memberRole(t, db, community.ID, bob.ID))

	// an admin may manage members too
	require.NoError(t, svc.ChangeRole(ctx, bob.ID, community.ID, carol.ID, model.MemberRoleAdmin))

	// the owner role is never granted
	err = svc.ChangeRole(ctx, owner.ID, community.ID, bob.ID, model.MemberRoleOwner)
	assert.ErrorIs(t, err, ErrInvalid)

	// the owner's role is immutable
	err = svc.ChangeRole(ctx, bob.ID, community.ID, owner.ID, model.MemberRoleViewer)
	assert.ErrorIs(t, err, ErrForbidden)

	// demoting back to viewer works while other admins remain
	require.NoError(t, svc.ChangeRole(ctx, owner.ID, community.ID, carol.ID, model.MemberRoleViewer))
	assert.Equal(t, model.MemberRoleViewer, memberRole(t, db, community.ID, carol.ID))

	// unknown target
	err = svc.ChangeRole(ctx, owner.ID, community.ID, 9999, model.MemberRoleAdmin)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDemoteLastAdmin(t *testing.T) {
	db := newTestDB(t)
	svc := NewMembershipService(db)
	ctx := context.Background()
	admin := createUser(t, db, "bob")
	other := createUser(t, db, "carol")

	community := &model.Community{Name: "orphaned", CreatedByID: admin.ID}
	require.NoError(t, db.Create(community).Error)
	addMember(t, db, community.ID, admin.ID, model.MemberRoleAdmin)
	addMember(t, db, community.ID, other.ID, model.MemberRoleAdmin)

	// demoting one of two admins is fine
	require.NoError(t, svc.ChangeRole(ctx, admin.ID, community.ID, other.ID, model.MemberRoleViewer))

	// demoting the only remaining admin is not
	err := svc.ChangeRole(ctx, admin.ID, community.ID, admin.ID, model.MemberRoleViewer)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestRemoveMember(t *testing.T) {
	db := newTestDB(t)
	svc := NewMembershipService(db)
	ctx := context.Background()
	owner := createUser(t, db, "alice")
	admin := createUser(t, db, "bob")
	viewer := createUser(t, db, "carol")
	community := createCommunity(t, db, owner.ID, "gophers", false)
	addMember(t, db, community.ID, admin.ID, model.MemberRoleAdmin)
	addMember(t, db, community.ID, viewer.ID, model.MemberRoleViewer)

	// kicking yourself is not how you leave
	err := svc.RemoveMember(ctx, admin.ID, community.ID, admin.ID)
	assert.ErrorIs(t, err, ErrInvalid)

	// the owner cannot be kicked
	err = svc.RemoveMember(ctx, admin.ID, community.ID, owner.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	// a viewer cannot kick
	err = svc.RemoveMember(ctx, viewer.ID, community.ID, admin.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, svc.RemoveMember(ctx, admin.ID, community.ID, viewer.ID))
	assert.EqualValues(t, 1, outboxEvents(t, db, "member.removed"))
}

func TestDeleteCommunity(t *testing.T) {
	db := newTestDB(t)
	svc := NewMembershipService(db)
	ctx := context.Background()
	owner := createUser(t, db, "alice")
	viewer := createUser(t, db, "bob")
	community := createCommunity(t, db, owner.ID, "gophers", false)
	addMember(t, db, community.ID, viewer.ID, model.MemberRoleViewer)

	err := svc.DeleteCommunity(ctx, viewer.ID, community.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, svc.DeleteCommunity(ctx, owner.ID, community.ID))
	assert.EqualValues(t, 0, countRows(t, db, &model.Community{}, "id = ?", community.ID))
}

func TestRecreateDeletedCommunityName(t *testing.T) {
	db := newTestDB(t)
	svc := NewMembershipService(db)
	ctx := context.Background()
	owner := createUser(t, db, "alice")

	// owner leave cascades the community away; no tombstone may hold the
	// name in the unique index
	community := createCommunity(t, db, owner.ID, "gophers", false)
	require.NoError(t, svc.Leave(ctx, owner.ID, community.ID))
	var ghosts int64
	require.NoError(t, db.Unscoped().Model(&model.Community{}).
		Where("id = ?", community.ID).Count(&ghosts).Error)
	assert.EqualValues(t, 0, ghosts)

	reborn, err := svc.CreateCommunity(ctx, owner.ID, CreateCommunityReq{Name: "gophers"})
	require.NoError(t, err)
	assert.NotEqual(t, community.ID, reborn.ID)

	// same after an explicit delete
	require.NoError(t, svc.DeleteCommunity(ctx, owner.ID, reborn.ID))
	_, err = svc.CreateCommunity(ctx, owner.ID, CreateCommunityReq{Name: "gophers"})
	require.NoError(t, err)
}

func TestGetCommunityVisibility(t *testing.T) {
	db := newTestDB(t)
	svc := NewMembershipService(db)
	ctx := context.Background()
	owner := createUser(t, db, "alice")
	stranger := createUser(t, db, "mallory")
	public := createCommunity(t, db, owner.ID, "town-square", false)
	private := createCommunity(t, db, owner.ID, "back-room", true)

	_, err := svc.GetCommunity(ctx, stranger.ID, public.ID)
	assert.NoError(t, err)

	// a private community is indistinguishable from a missing one
	_, err = svc.GetCommunity(ctx, stranger.ID, private.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.GetCommunity(ctx, owner.ID, private.ID)
	assert.NoError(t, err)
}

func TestListCommunities(t *testing.T) {
	db := newTestDB(t)
	svc := NewMembershipService(db)
	ctx := context.Background()
	owner := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	createCommunity(t, db, owner.ID, "open-1", false)
	createCommunity(t, db, owner.ID, "open-2", false)
	private := createCommunity(t, db, owner.ID, "hidden", true)

	// bob sees only the public ones
	rows, count, err := svc.ListCommunities(ctx, bob.ID, CommunityFilter{}, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
	assert.Len(t, rows, 2)

	// the owner additionally sees their private community
	_, count, err = svc.ListCommunities(ctx, owner.ID, CommunityFilter{}, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	addMember(t, db, private.ID, bob.ID, model.MemberRoleViewer)
	_, count, err = svc.ListCommunities(ctx, bob.ID, CommunityFilter{}, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	// name search and ordering
	rows, count, err = svc.ListCommunities(ctx, bob.ID, CommunityFilter{NameLike: "open"}, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	rows, _, err = svc.ListCommunities(ctx, bob.ID, CommunityFilter{Order: "name"}, 0, 10)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "hidden", rows[0].Name)

	_, _, err = svc.ListCommunities(ctx, bob.ID, CommunityFilter{Order: "bogus"}, 0, 10)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestListMembers(t *testing.T) {
	db := newTestDB(t)
	svc := NewMembershipService(db)
	ctx := context.Background()
	owner := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	stranger := createUser(t, db, "mallory")
	community := createCommunity(t, db, owner.ID, "gophers", false)
	addMember(t, db, community.ID, bob.ID, model.MemberRoleViewer)

	rows, count, err := svc.ListMembers(ctx, owner.ID, community.ID, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
	require.Len(t, rows, 2)
	assert.NotZero(t, rows[0].User.ID)

	_, _, err = svc.ListMembers(ctx, stranger.ID, community.ID, 0, 10)
	assert.ErrorIs(t, err, ErrNotFound)
}
