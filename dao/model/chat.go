package model

import (
	"time"

	"gorm.io/gorm"
)

// ChatRoom is either a direct conversation between exactly two users
// (PairKey identifies the pair) or a group room inside a community.
type ChatRoom struct {
	gorm.Model
	Type        RoomType `gorm:"not null;comment:房间类型 (direct, group)"`
	Name        string   `gorm:"type:varchar(64);comment:群聊名称，私聊为空"`
	CommunityID *uint    `gorm:"index;comment:群聊所属社区，私聊为空"`
	PairKey     *string  `gorm:"uniqueIndex;type:varchar(32);comment:私聊去重键 minUID:maxUID"`
	CreatedByID uint     `gorm:"not null;comment:创建者"`

	Members []ChatRoomMember `gorm:"foreignKey:RoomID"`
}

// ChatRoomMember is unique on (room_id, user_id) and hard-deleted.
type ChatRoomMember struct {
	ID       uint      `gorm:"primaryKey"`
	RoomID   uint      `gorm:"not null;uniqueIndex:uk_room_user;comment:房间ID"`
	UserID   uint      `gorm:"not null;index;uniqueIndex:uk_room_user;comment:用户ID"`
	JoinedAt time.Time `gorm:"not null;comment:加入时间"`
}

type ChatMessage struct {
	gorm.Model
	RoomID   uint   `gorm:"not null;index;comment:房间ID"`
	SenderID uint   `gorm:"not null;comment:发送者"`
	Content  string `gorm:"type:text;not null;comment:消息内容"`
}
