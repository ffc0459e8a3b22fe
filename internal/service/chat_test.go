package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commune-hq/commune/dao/model"
)

func TestDirectRoom(t *testing.T) {
	db := newTestDB(t)
	chats := NewChatService(db)
	ctx := context.Background()
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	_, err := chats.DirectRoom(ctx, alice.ID, alice.ID)
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = chats.DirectRoom(ctx, alice.ID, 999)
	assert.ErrorIs(t, err, ErrNotFound)

	room, err := chats.DirectRoom(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RoomTypeDirect, room.Type)
	assert.EqualValues(t, 2, countRows(t, db, &model.ChatRoomMember{}, "room_id = ?", room.ID))

	// the Members association resolves through room_id
	var loaded model.ChatRoom
	require.NoError(t, db.Preload("Members").First(&loaded, room.ID).Error)
	assert.Len(t, loaded.Members, 2)

	// the same room comes back from either side
	again, err := chats.DirectRoom(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, room.ID, again.ID)
	assert.EqualValues(t, 1, countRows(t, db, &model.ChatRoom{}, "type = ?", model.RoomTypeDirect))
}

func TestGroupRoom(t *testing.T) {
	db := newTestDB(t)
	chats := NewChatService(db)
	ctx := context.Background()
	owner := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	stranger := createUser(t, db, "mallory")
	community := createCommunity(t, db, owner.ID, "gophers", false)
	addMember(t, db, community.ID, bob.ID, model.MemberRoleViewer)

	_, err := chats.CreateGroupRoom(ctx, owner.ID, community.ID, "")
	assert.ErrorIs(t, err, ErrInvalid)

	// non-members cannot open rooms in the community
	_, err = chats.CreateGroupRoom(ctx, stranger.ID, community.ID, "general")
	assert.ErrorIs(t, err, ErrNotFound)

	room, err := chats.CreateGroupRoom(ctx, owner.ID, community.ID, "general")
	require.NoError(t, err)

	require.NoError(t, chats.JoinGroupRoom(ctx, bob.ID, room.ID))
	err = chats.JoinGroupRoom(ctx, bob.ID, room.ID)
	assert.ErrorIs(t, err, ErrConflict)

	err = chats.JoinGroupRoom(ctx, stranger.ID, room.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// direct rooms are not joinable
	direct, err := chats.DirectRoom(ctx, owner.ID, bob.ID)
	require.NoError(t, err)
	err = chats.JoinGroupRoom(ctx, stranger.ID, direct.ID)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestMessages(t *testing.T) {
	db := newTestDB(t)
	chats := NewChatService(db)
	ctx := context.Background()
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	mallory := createUser(t, db, "mallory")

	room, err := chats.DirectRoom(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	_, err = chats.SaveMessage(ctx, alice.ID, room.ID, "")
	assert.ErrorIs(t, err, ErrInvalid)

	// outsiders cannot post, and cannot tell the room exists
	_, err = chats.SaveMessage(ctx, mallory.ID, room.ID, "hi")
	assert.ErrorIs(t, err, ErrNotFound)

	for _, content := range []string{"one", "two", "three"} {
		_, err = chats.SaveMessage(ctx, alice.ID, room.ID, content)
		require.NoError(t, err)
	}

	msgs, count, err := chats.ListMessages(ctx, bob.ID, room.ID, 0, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)
	require.Len(t, msgs, 2)
	// newest first
	assert.Equal(t, "three", msgs[0].Content)

	_, _, err = chats.ListMessages(ctx, mallory.ID, room.ID, 0, 10)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListRooms(t *testing.T) {
	db := newTestDB(t)
	chats := NewChatService(db)
	ctx := context.Background()
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	carol := createUser(t, db, "carol")
	community := createCommunity(t, db, alice.ID, "gophers", false)

	_, err := chats.DirectRoom(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	_, err = chats.CreateGroupRoom(ctx, alice.ID, community.ID, "general")
	require.NoError(t, err)

	rooms, err := chats.ListRooms(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, rooms, 2)

	rooms, err = chats.ListRooms(ctx, carol.ID)
	require.NoError(t, err)
	assert.Empty(t, rooms)
}
