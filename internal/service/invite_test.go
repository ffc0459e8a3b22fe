package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commune-hq/commune/dao/model"
)

func TestIssueInvite(t *testing.T) {
	db := newTestDB(t)
	invites := NewInviteService(db, nil)
	ctx := context.Background()
	owner := createUser(t, db, "alice")
	viewer := createUser(t, db, "bob")
	community := createCommunity(t, db, owner.ID, "secret", true)
	addMember(t, db, community.ID, viewer.ID, model.MemberRoleViewer)

	// viewers cannot invite
	_, err := invites.Issue(ctx, viewer.ID, community.ID, time.Hour, "")
	assert.ErrorIs(t, err, ErrForbidden)

	invite, err := invites.Issue(ctx, owner.ID, community.ID, time.Hour, "")
	require.NoError(t, err)
	assert.NotEmpty(t, invite.Code)
	assert.True(t, invite.ExpiresAt.After(time.Now().UTC()))

	// non-members see neither the community nor its invites
	stranger := createUser(t, db, "mallory")
	_, err = invites.Issue(ctx, stranger.ID, community.ID, time.Hour, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRevokeInvite(t *testing.T) {
	db := newTestDB(t)
	invites := NewInviteService(db, nil)
	ctx := context.Background()
	owner := createUser(t, db, "alice")
	community := createCommunity(t, db, owner.ID, "secret", true)

	invite, err := invites.Issue(ctx, owner.ID, community.ID, time.Hour, "")
	require.NoError(t, err)

	require.NoError(t, invites.Revoke(ctx, owner.ID, community.ID, invite.Code))
	assert.EqualValues(t, 0, countRows(t, db, &model.Invite{}, "community_id = ?", community.ID))

	err = invites.Revoke(ctx, owner.ID, community.ID, invite.Code)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListInvites(t *testing.T) {
	db := newTestDB(t)
	invites := NewInviteService(db, nil)
	ctx := context.Background()
	owner := createUser(t, db, "alice")
	viewer := createUser(t, db, "bob")
	community := createCommunity(t, db, owner.ID, "secret", true)
	addMember(t, db, community.ID, viewer.ID, model.MemberRoleViewer)

	_, err := invites.Issue(ctx, owner.ID, community.ID, time.Hour, "")
	require.NoError(t, err)
	_, err = invites.Issue(ctx, owner.ID, community.ID, time.Hour, "")
	require.NoError(t, err)

	rows, err := invites.List(ctx, owner.ID, community.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	_, err = invites.List(ctx, viewer.ID, community.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestPruneExpiredInvites(t *testing.T) {
	db := newTestDB(t)
	members := NewMembershipService(db)
	invites := NewInviteService(db, nil)
	ctx := context.Background()
	owner := createUser(t, db, "alice")
	community := createCommunity(t, db, owner.ID, "secret", true)

	_, err := invites.Issue(ctx, owner.ID, community.ID, -time.Hour, "")
	require.NoError(t, err)
	fresh, err := invites.Issue(ctx, owner.ID, community.ID, time.Hour, "")
	require.NoError(t, err)

	deleted, err := members.PruneExpiredInvites(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)
	assert.EqualValues(t, 1, countRows(t, db, &model.Invite{}, "code = ?", fresh.Code))
}
