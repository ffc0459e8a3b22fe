package service

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/commune-hq/commune/dao/model"
	"github.com/commune-hq/commune/pkg/rbac"
)

type TaskService struct {
	db *gorm.DB
}

func NewTaskService(db *gorm.DB) *TaskService {
	return &TaskService{db: db}
}

type TaskReq struct {
	Title        string
	Description  string
	Status       model.TaskStatus
	Priority     model.TaskPriority
	ProjectID    *uint
	AssignedToID *uint
	DueDate      *time.Time
}

// Create validates the referential rules before inserting: the project,
// if given, must belong to the same community, and the assignee must be
// a community member.
func (s *TaskService) Create(ctx context.Context, callerID, communityID uint, req TaskReq) (*model.Task, error) {
	if req.Title == "" || len(req.Title) > 200 {
		return nil, invalid("task title must be 1-200 characters")
	}
	if req.Status == 0 {
		req.Status = model.TaskStatusTodo
	}
	if req.Priority == 0 {
		req.Priority = model.TaskPriorityMedium
	}

	task := &model.Task{
		CommunityID:  communityID,
		ProjectID:    req.ProjectID,
		Title:        req.Title,
		Description:  req.Description,
		Status:       req.Status,
		Priority:     req.Priority,
		AssignedToID: req.AssignedToID,
		CreatedByID:  callerID,
		DueDate:      req.DueDate,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		role, err := resolveRole(tx, callerID, communityID)
		if err != nil {
			return err
		}
		if !rbac.Can(role, rbac.PermCreateTask) {
			return forbidden("insufficient role to create tasks")
		}
		if req.AssignedToID != nil && !rbac.Can(role, rbac.PermAssignTask) {
			return forbidden("insufficient role to assign tasks")
		}
		if err = s.checkReferences(tx, communityID, req.ProjectID, req.AssignedToID); err != nil {
			return err
		}
		return tx.Create(task).Error
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// Update edits a task. The author and the assignee may edit their own
// task; anyone with the EditTask permission may edit any task.
// Reassignment additionally requires the AssignTask permission.
func (s *TaskService) Update(ctx context.Context, callerID, communityID, taskID uint, req TaskReq) (*model.Task, error) {
	var task model.Task
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		role, err := resolveRole(tx, callerID, communityID)
		if err != nil {
			return err
		}
		if err = findCommunityTask(tx, communityID, taskID, &task); err != nil {
			return err
		}

		owns := task.CreatedByID == callerID ||
			(task.AssignedToID != nil && *task.AssignedToID == callerID)
		if !owns && !rbac.Can(role, rbac.PermEditTask) {
			return forbidden("insufficient role to edit this task")
		}

		reassigned := !equalUintPtr(task.AssignedToID, req.AssignedToID)
		if reassigned && !rbac.Can(role, rbac.PermAssignTask) {
			return forbidden("insufficient role to assign tasks")
		}

		if err = s.checkReferences(tx, communityID, req.ProjectID, req.AssignedToID); err != nil {
			return err
		}

		if req.Title != "" {
			if len(req.Title) > 200 {
				return invalid("task title must be 1-200 characters")
			}
			task.Title = req.Title
		}
		task.Description = req.Description
		if req.Status != 0 {
			task.Status = req.Status
		}
		if req.Priority != 0 {
			task.Priority = req.Priority
		}
		task.ProjectID = req.ProjectID
		task.AssignedToID = req.AssignedToID
		task.DueDate = req.DueDate
		return tx.Save(&task).Error
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// Delete removes a task. The author may delete their own; otherwise the
// DeleteTask permission is required.
func (s *TaskService) Delete(ctx context.Context, callerID, communityID, taskID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		role, err := resolveRole(tx, callerID, communityID)
		if err != nil {
			return err
		}
		var task model.Task
		if err = findCommunityTask(tx, communityID, taskID, &task); err != nil {
			return err
		}
		if task.CreatedByID != callerID && !rbac.Can(role, rbac.PermDeleteTask) {
			return forbidden("insufficient role to delete this task")
		}
		return tx.Delete(&model.Task{}, taskID).Error
	})
}

// TaskFilter narrows List; zero values mean "no filter".
type TaskFilter struct {
	Status       model.TaskStatus
	Priority     model.TaskPriority
	ProjectID    *uint
	AssignedToID *uint
}

// Get returns one task. Members only.
func (s *TaskService) Get(ctx context.Context, callerID, communityID, taskID uint) (*model.Task, error) {
	if _, err := resolveRole(s.db.WithContext(ctx), callerID, communityID); err != nil {
		return nil, err
	}
	var task model.Task
	if err := findCommunityTask(s.db.WithContext(ctx), communityID, taskID, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// List pages through a community's tasks, newest first. Members only.
func (s *TaskService) List(ctx context.Context, callerID, communityID uint, filter TaskFilter, offset, limit int) ([]model.Task, int64, error) {
	if _, err := resolveRole(s.db.WithContext(ctx), callerID, communityID); err != nil {
		return nil, 0, err
	}
	q := s.db.WithContext(ctx).Model(&model.Task{}).Where("community_id = ?", communityID)
	if filter.Status != 0 {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Priority != 0 {
		q = q.Where("priority = ?", filter.Priority)
	}
	if filter.ProjectID != nil {
		q = q.Where("project_id = ?", *filter.ProjectID)
	}
	if filter.AssignedToID != nil {
		q = q.Where("assigned_to_id = ?", *filter.AssignedToID)
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return nil, 0, err
	}
	var tasks []model.Task
	err := q.Order("id DESC").Offset(offset).Limit(limit).Find(&tasks).Error
	return tasks, count, err
}

// checkReferences enforces the two cross-entity invariants: a task's
// project belongs to the task's community, and its assignee holds a
// membership there.
func (s *TaskService) checkReferences(tx *gorm.DB, communityID uint, projectID, assignedToID *uint) error {
	if projectID != nil {
		var count int64
		if err := tx.Model(&model.Project{}).
			Where("id = ? AND community_id = ?", *projectID, communityID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return notFound("project does not belong to this community")
		}
	}
	if assignedToID != nil {
		var count int64
		if err := tx.Model(&model.CommunityMember{}).
			Where("community_id = ? AND user_id = ?", communityID, *assignedToID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return notFound("assignee is not a member of this community")
		}
	}
	return nil
}

func findCommunityTask(tx *gorm.DB, communityID, taskID uint, out *model.Task) error {
	err := tx.Where("id = ? AND community_id = ?", taskID, communityID).First(out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound("task not found")
	}
	return err
}

func equalUintPtr(a, b *uint) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
