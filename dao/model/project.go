package model

import (
	"time"

	"gorm.io/gorm"
)

// Project belongs to exactly one community.
type Project struct {
	gorm.Model
	CommunityID uint   `gorm:"not null;index;comment:所属社区"`
	Name        string `gorm:"type:varchar(64);not null;comment:项目名称"`
	Description string `gorm:"type:text;comment:项目描述"`
	Emoji       string `gorm:"type:varchar(16);comment:项目图标"`
	CreatedByID uint   `gorm:"not null;comment:创建者"`

	Members []ProjectMember
}

// ProjectMember is unique on (project_id, user_id) and hard-deleted,
// same as CommunityMember. Only community members may appear here.
type ProjectMember struct {
	ID        uint      `gorm:"primaryKey"`
	ProjectID uint      `gorm:"not null;uniqueIndex:uk_project_user;comment:项目ID"`
	UserID    uint      `gorm:"not null;index;uniqueIndex:uk_project_user;comment:用户ID"`
	JoinedAt  time.Time `gorm:"not null;comment:加入时间"`
	CreatedAt time.Time

	User User
}
