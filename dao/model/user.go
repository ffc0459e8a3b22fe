package model

import (
	"gorm.io/gorm"
)

// User is the basic entity of the system
type User struct {
	gorm.Model
	Name     string  `gorm:"uniqueIndex;type:varchar(32);not null;comment:用户名"`
	Nickname *string `gorm:"type:varchar(32);comment:昵称"`
	Email    string  `gorm:"uniqueIndex;type:varchar(128);not null;comment:邮箱"`
	Password *string `gorm:"type:varchar(128);comment:密码"`
	Role     Role    `gorm:"not null;comment:平台角色 (guest, user, admin)"`
	Status   Status  `gorm:"not null;comment:用户状态 (pending, active, inactive)"`

	Memberships []CommunityMember
}
