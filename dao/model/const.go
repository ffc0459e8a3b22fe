// 定义与数据库表字段对应的常量
// 由于 Gin 框架在进行参数校验时，如果给了 required 标签，则不能传入零值
// 所以在定义常量时，最好将零值排除在外，请使用 iota + 1 定义第一个常量
package model

// Role is the user's role in the platform.
type Role uint8

const (
	RoleGuest Role = iota + 1
	RoleUser
	RoleAdmin
)

// MemberRole is the user's role inside a community.
// Owner is singular and founding: it is assigned when the community is
// created and never granted afterwards.
type MemberRole uint8

const (
	MemberRoleViewer MemberRole = iota + 1
	MemberRoleAdmin
	MemberRoleOwner
)

// User status
type Status uint8

const (
	StatusPending  Status = iota + 1 // Pending status, not yet activated
	StatusActive                     // Active status
	StatusInactive                   // Inactive status
)

// Task status
type TaskStatus uint8

const (
	TaskStatusTodo TaskStatus = iota + 1
	TaskStatusInProgress
	TaskStatusDone
)

// Task priority
type TaskPriority uint8

const (
	TaskPriorityLow TaskPriority = iota + 1
	TaskPriorityMedium
	TaskPriorityHigh
	TaskPriorityUrgent
)

// Chat room type
type RoomType uint8

const (
	RoomTypeDirect RoomType = iota + 1 // 私聊，恰好两个成员
	RoomTypeGroup                      // 群聊，社区成员可加入
)

// Outbox event status
type EventStatus uint8

const (
	EventStatusPending EventStatus = iota + 1
	EventStatusSent
	EventStatusFailed
)
