package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/commune-hq/commune/dao"
	"github.com/commune-hq/commune/dao/model"
)

// newTestDB opens an isolated in-memory database and applies the full
// migration chain, so tests run against the real schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, dao.Migrate(db))
	return db
}

func createUser(t *testing.T, db *gorm.DB, name string) *model.User {
	t.Helper()
	user := &model.User{
		Name:   name,
		Email:  name + "@example.com",
		Role:   model.RoleUser,
		Status: model.StatusActive,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// createCommunity creates a community owned by ownerID through the
// service so the owner membership and outbox row exist.
func createCommunity(t *testing.T, db *gorm.DB, ownerID uint, name string, private bool) *model.Community {
	t.Helper()
	svc := NewMembershipService(db)
	community, err := svc.CreateCommunity(context.Background(), ownerID, CreateCommunityReq{
		Name:      name,
		IsPrivate: private,
	})
	require.NoError(t, err)
	return community
}

// addMember inserts a membership row directly, bypassing join rules.
func addMember(t *testing.T, db *gorm.DB, communityID, userID uint, role model.MemberRole) {
	t.Helper()
	require.NoError(t, db.Create(&model.CommunityMember{
		CommunityID: communityID,
		UserID:      userID,
		Role:        role,
		JoinedAt:    now(),
	}).Error)
}

func memberRole(t *testing.T, db *gorm.DB, communityID, userID uint) model.MemberRole {
	t.Helper()
	var member model.CommunityMember
	err := db.Where("community_id = ? AND user_id = ?", communityID, userID).First(&member).Error
	require.NoError(t, err)
	return member.Role
}

func countRows(t *testing.T, db *gorm.DB, m any, query string, args ...any) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(m).Where(query, args...).Count(&count).Error)
	return count
}

func outboxEvents(t *testing.T, db *gorm.DB, eventType string) int64 {
	t.Helper()
	return countRows(t, db, &model.EventOutbox{}, "event_type = ?", eventType)
}
