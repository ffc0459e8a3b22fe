package model

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EventOutbox rows are written in the same transaction as the domain
// mutation they describe and delivered asynchronously by the relay.
type EventOutbox struct {
	gorm.Model
	EventID     string         `gorm:"uniqueIndex;type:varchar(36);not null;comment:事件ID"`
	EventType   string         `gorm:"type:varchar(32);not null;comment:事件类型"`
	CommunityID uint           `gorm:"index;comment:关联社区"`
	Payload     datatypes.JSON `gorm:"not null;comment:事件内容"`
	Status      EventStatus    `gorm:"not null;index;comment:投递状态 (pending, sent, failed)"`
	Retry       int            `gorm:"not null;default:0;comment:重试次数"`
}
