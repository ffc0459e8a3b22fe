package model

import (
	"time"

	"gorm.io/gorm"
)

// Task belongs to a community and optionally to one of its projects.
// ProjectID, if set, must reference a project of the same community;
// AssignedToID, if set, must hold a membership in the community. Both
// are enforced by the task service, not by the schema.
type Task struct {
	gorm.Model
	CommunityID  uint         `gorm:"not null;index;comment:所属社区"`
	ProjectID    *uint        `gorm:"index;comment:所属项目，可为空"`
	Title        string       `gorm:"type:varchar(200);not null;comment:标题"`
	Description  string       `gorm:"type:text;comment:描述"`
	Status       TaskStatus   `gorm:"not null;comment:状态 (todo, in progress, done)"`
	Priority     TaskPriority `gorm:"not null;comment:优先级 (low, medium, high, urgent)"`
	AssignedToID *uint        `gorm:"index;comment:指派给的成员，可为空"`
	CreatedByID  uint         `gorm:"not null;comment:创建者"`
	DueDate      *time.Time   `gorm:"comment:截止时间"`
}
