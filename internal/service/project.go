package service

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/commune-hq/commune/dao/model"
	"github.com/commune-hq/commune/pkg/rbac"
)

type ProjectService struct {
	db *gorm.DB
}

func NewProjectService(db *gorm.DB) *ProjectService {
	return &ProjectService{db: db}
}

type ProjectReq struct {
	Name        string
	Description string
	Emoji       string
}

// Create adds a project to the community; the creator becomes its first
// project member.
func (s *ProjectService) Create(ctx context.Context, callerID, communityID uint, req ProjectReq) (*model.Project, error) {
	if req.Name == "" || len(req.Name) > 64 {
		return nil, invalid("project name must be 1-64 characters")
	}
	project := &model.Project{
		CommunityID: communityID,
		Name:        req.Name,
		Description: req.Description,
		Emoji:       req.Emoji,
		CreatedByID: callerID,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		role, err := resolveRole(tx, callerID, communityID)
		if err != nil {
			return err
		}
		if !rbac.Can(role, rbac.PermCreateProject) {
			return forbidden("insufficient role to create projects")
		}
		if err = tx.Create(project).Error; err != nil {
			return err
		}
		return tx.Create(&model.ProjectMember{
			ProjectID: project.ID,
			UserID:    callerID,
			JoinedAt:  now(),
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return project, nil
}

// Update patches a project's fields.
func (s *ProjectService) Update(ctx context.Context, callerID, communityID, projectID uint, req ProjectReq) (*model.Project, error) {
	var project model.Project
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		role, err := resolveRole(tx, callerID, communityID)
		if err != nil {
			return err
		}
		if !rbac.Can(role, rbac.PermEditProject) {
			return forbidden("insufficient role to edit projects")
		}
		if err = findCommunityProject(tx, communityID, projectID, &project); err != nil {
			return err
		}
		if req.Name != "" {
			if len(req.Name) > 64 {
				return invalid("project name must be 1-64 characters")
			}
			project.Name = req.Name
		}
		project.Description = req.Description
		project.Emoji = req.Emoji
		return tx.Save(&project).Error
	})
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// Delete removes the project and its member rows; tasks that referenced
// it are detached, not deleted.
func (s *ProjectService) Delete(ctx context.Context, callerID, communityID, projectID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		role, err := resolveRole(tx, callerID, communityID)
		if err != nil {
			return err
		}
		if !rbac.Can(role, rbac.PermDeleteProject) {
			return forbidden("insufficient role to delete projects")
		}
		var project model.Project
		if err = findCommunityProject(tx, communityID, projectID, &project); err != nil {
			return err
		}

		if err = tx.Model(&model.Task{}).
			Where("project_id = ?", projectID).
			Update("project_id", nil).Error; err != nil {
			return err
		}
		if err = tx.Where("project_id = ?", projectID).Delete(&model.ProjectMember{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Project{}, projectID).Error
	})
}

// AddMember puts a community member on the project roster.
func (s *ProjectService) AddMember(ctx context.Context, callerID, communityID, projectID, userID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		role, err := resolveRole(tx, callerID, communityID)
		if err != nil {
			return err
		}
		if !rbac.Can(role, rbac.PermManageProjectMembers) {
			return forbidden("insufficient role to manage project members")
		}
		var project model.Project
		if err = findCommunityProject(tx, communityID, projectID, &project); err != nil {
			return err
		}

		var count int64
		if err = tx.Model(&model.CommunityMember{}).
			Where("community_id = ? AND user_id = ?", communityID, userID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return invalid("user is not a member of this community")
		}

		if err = tx.Model(&model.ProjectMember{}).
			Where("project_id = ? AND user_id = ?", projectID, userID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return conflict("user is already a project member")
		}

		return tx.Create(&model.ProjectMember{
			ProjectID: projectID,
			UserID:    userID,
			JoinedAt:  now(),
		}).Error
	})
}

// RemoveMember takes a user off the project roster.
func (s *ProjectService) RemoveMember(ctx context.Context, callerID, communityID, projectID, userID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		role, err := resolveRole(tx, callerID, communityID)
		if err != nil {
			return err
		}
		if !rbac.Can(role, rbac.PermManageProjectMembers) {
			return forbidden("insufficient role to manage project members")
		}
		var project model.Project
		if err = findCommunityProject(tx, communityID, projectID, &project); err != nil {
			return err
		}

		res := tx.Where("project_id = ? AND user_id = ?", projectID, userID).
			Delete(&model.ProjectMember{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return notFound("project member not found")
		}
		return nil
	})
}

// Get returns one project. Members only.
func (s *ProjectService) Get(ctx context.Context, callerID, communityID, projectID uint) (*model.Project, error) {
	if _, err := resolveRole(s.db.WithContext(ctx), callerID, communityID); err != nil {
		return nil, err
	}
	var project model.Project
	if err := findCommunityProject(s.db.WithContext(ctx), communityID, projectID, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// List pages through a community's projects. Members only.
func (s *ProjectService) List(ctx context.Context, callerID, communityID uint, offset, limit int) ([]model.Project, int64, error) {
	if _, err := resolveRole(s.db.WithContext(ctx), callerID, communityID); err != nil {
		return nil, 0, err
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.Project{}).
		Where("community_id = ?", communityID).Count(&count).Error; err != nil {
		return nil, 0, err
	}
	var projects []model.Project
	err := s.db.WithContext(ctx).
		Where("community_id = ?", communityID).
		Order("id DESC").
		Offset(offset).Limit(limit).
		Find(&projects).Error
	return projects, count, err
}

// ListMembers returns the project roster. Community members only.
func (s *ProjectService) ListMembers(ctx context.Context, callerID, communityID, projectID uint) ([]model.ProjectMember, error) {
	if _, err := resolveRole(s.db.WithContext(ctx), callerID, communityID); err != nil {
		return nil, err
	}
	var project model.Project
	if err := findCommunityProject(s.db.WithContext(ctx), communityID, projectID, &project); err != nil {
		return nil, err
	}
	var members []model.ProjectMember
	err := s.db.WithContext(ctx).
		Preload("User").
		Where("project_id = ?", projectID).
		Order("id ASC").
		Find(&members).Error
	return members, err
}

// findCommunityProject loads a project and verifies it belongs to the
// community; a mismatch is indistinguishable from a missing project.
func findCommunityProject(tx *gorm.DB, communityID, projectID uint, out *model.Project) error {
	err := tx.Where("id = ? AND community_id = ?", projectID, communityID).First(out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound("project not found")
	}
	return err
}
