package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commune-hq/commune/dao/model"
)

func TestSendMail(t *testing.T) {
	db := newTestDB(t)
	mails := NewMailService(db, nil)
	ctx := context.Background()
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	_, err := mails.Send(ctx, alice.ID, alice.ID, "hello", "me")
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = mails.Send(ctx, alice.ID, 999, "hello", "void")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = mails.Send(ctx, alice.ID, bob.ID, "", "empty subject")
	assert.ErrorIs(t, err, ErrInvalid)

	mail, err := mails.Send(ctx, alice.ID, bob.ID, "hello", "hi bob")
	require.NoError(t, err)
	assert.Nil(t, mail.ReadAt)
}

func TestMarkRead(t *testing.T) {
	db := newTestDB(t)
	mails := NewMailService(db, nil)
	ctx := context.Background()
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	mail, err := mails.Send(ctx, alice.ID, bob.ID, "hello", "hi")
	require.NoError(t, err)

	// only the recipient can mark the mail read
	err = mails.MarkRead(ctx, alice.ID, mail.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, mails.MarkRead(ctx, bob.ID, mail.ID))
	got, err := mails.Get(ctx, bob.ID, mail.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ReadAt)

	// marking twice keeps the original timestamp
	first := *got.ReadAt
	require.NoError(t, mails.MarkRead(ctx, bob.ID, mail.ID))
	got, err = mails.Get(ctx, bob.ID, mail.ID)
	require.NoError(t, err)
	assert.Equal(t, first, *got.ReadAt)
}

func TestDeleteMail(t *testing.T) {
	db := newTestDB(t)
	mails := NewMailService(db, nil)
	ctx := context.Background()
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	mallory := createUser(t, db, "mallory")

	mail, err := mails.Send(ctx, alice.ID, bob.ID, "hello", "hi")
	require.NoError(t, err)

	err = mails.Delete(ctx, mallory.ID, mail.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// the sender's delete hides it from the outbox only
	require.NoError(t, mails.Delete(ctx, alice.ID, mail.ID))
	_, err = mails.Get(ctx, alice.ID, mail.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = mails.Get(ctx, bob.ID, mail.ID)
	require.NoError(t, err)

	// once both sides delete, the row is gone
	require.NoError(t, mails.Delete(ctx, bob.ID, mail.ID))
	assert.EqualValues(t, 0, countRows(t, db, &model.Mail{}, "id = ?", mail.ID))
}

func TestMailboxes(t *testing.T) {
	db := newTestDB(t)
	mails := NewMailService(db, nil)
	ctx := context.Background()
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	for _, subject := range []string{"first", "second", "third"} {
		_, err := mails.Send(ctx, alice.ID, bob.ID, subject, "body")
		require.NoError(t, err)
	}
	_, err := mails.Send(ctx, bob.ID, alice.ID, "reply", "body")
	require.NoError(t, err)

	inbox, count, err := mails.Inbox(ctx, bob.ID, 0, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)
	require.Len(t, inbox, 2)
	// newest first
	assert.Equal(t, "third", inbox[0].Subject)

	outbox, count, err := mails.Outbox(ctx, alice.ID, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)
	assert.Len(t, outbox, 3)

	inbox, count, err = mails.Inbox(ctx, alice.ID, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
	assert.Equal(t, "reply", inbox[0].Subject)
}
