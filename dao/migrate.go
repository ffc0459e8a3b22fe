package dao

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/commune-hq/commune/dao/model"
)

// Migrate applies all pending schema migrations. New migrations are
// appended with increasing ids; existing entries must never be edited.
func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "202508010001",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(
					&model.User{},
					&model.Community{},
					&model.CommunityMember{},
					&model.Invite{},
				)
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(
					"invites", "community_members", "communities", "users",
				)
			},
		},
		{
			ID: "202508010002",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(
					&model.Project{},
					&model.ProjectMember{},
					&model.Task{},
				)
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("tasks", "project_members", "projects")
			},
		},
		{
			ID: "202508050001",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(
					&model.ChatRoom{},
					&model.ChatRoomMember{},
					&model.ChatMessage{},
					&model.Mail{},
				)
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(
					"mails", "chat_messages", "chat_room_members", "chat_rooms",
				)
			},
		},
		{
			ID: "202508120001",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&model.EventOutbox{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("event_outboxes")
			},
		},
	})
	return m.Migrate()
}
