package model

import (
	"time"

	"gorm.io/gorm"
)

// Mail is an in-app message between two users. Each side deletes its
// copy independently; the row is kept until both sides have deleted.
type Mail struct {
	gorm.Model
	FromID      uint       `gorm:"not null;index;comment:发件人"`
	ToID        uint       `gorm:"not null;index;comment:收件人"`
	Subject     string     `gorm:"type:varchar(200);not null;comment:主题"`
	Body        string     `gorm:"type:text;comment:正文"`
	ReadAt      *time.Time `gorm:"comment:已读时间"`
	FromDeleted bool       `gorm:"not null;default:false;comment:发件人已删除"`
	ToDeleted   bool       `gorm:"not null;default:false;comment:收件人已删除"`
}
