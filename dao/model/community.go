package model

import (
	"time"

	"gorm.io/gorm"
)

// Community is the top-level collaboration unit. Members, invites,
// projects and tasks exist only in relation to it.
type Community struct {
	gorm.Model
	Name        string `gorm:"uniqueIndex;type:varchar(64);not null;comment:社区名称"`
	Description string `gorm:"type:text;comment:社区描述"`
	IsPrivate   bool   `gorm:"not null;default:false;comment:私有社区需要邀请码加入"`
	CreatedByID uint   `gorm:"not null;index;comment:创建者"`

	Members []CommunityMember
	Invites []Invite
}

// CommunityMember is the join row between a user and a community,
// unique on (community_id, user_id). Join rows are hard-deleted: a
// soft-delete tombstone would block re-joining through the unique index.
type CommunityMember struct {
	ID          uint       `gorm:"primaryKey"`
	CommunityID uint       `gorm:"not null;uniqueIndex:uk_community_user;comment:社区ID"`
	UserID      uint       `gorm:"not null;index;uniqueIndex:uk_community_user;comment:用户ID"`
	Role        MemberRole `gorm:"not null;comment:社区内角色 (viewer, admin, owner)"`
	JoinedAt    time.Time  `gorm:"not null;comment:加入时间"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	User User `gorm:"foreignKey:UserID"`
}

// Invite is a time-limited code permitting membership in a private
// community. One code may admit several distinct users; a given user
// can redeem it at most once because the membership row is unique.
type Invite struct {
	ID          uint      `gorm:"primaryKey"`
	Code        string    `gorm:"uniqueIndex;type:varchar(64);not null;comment:邀请码"`
	CommunityID uint      `gorm:"not null;index;comment:社区ID"`
	IssuerID    uint      `gorm:"not null;comment:签发人"`
	ExpiresAt   time.Time `gorm:"index;not null;comment:过期时间"`
	CreatedAt   time.Time
}
