package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/commune-hq/commune/dao/model"
	"github.com/commune-hq/commune/pkg/rbac"
)

// MembershipService owns the community and membership lifecycle. All
// methods that mutate run inside one transaction; checks happen after
// the community row is locked, never from an earlier read.
type MembershipService struct {
	db *gorm.DB
}

func NewMembershipService(db *gorm.DB) *MembershipService {
	return &MembershipService{db: db}
}

type CreateCommunityReq struct {
	Name        string
	Description string
	IsPrivate   bool
}

// CreateCommunity creates the community and its OWNER membership
// atomically in the same transaction.
func (s *MembershipService) CreateCommunity(ctx context.Context, creatorID uint, req CreateCommunityReq) (*model.Community, error) {
	if req.Name == "" || len(req.Name) > 64 {
		return nil, invalid("community name must be 1-64 characters")
	}

	community := &model.Community{
		Name:        req.Name,
		Description: req.Description,
		IsPrivate:   req.IsPrivate,
		CreatedByID: creatorID,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Community{}).Where("name = ?", req.Name).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return conflict("community name already taken")
		}
		if err := tx.Create(community).Error; err != nil {
			return err
		}
		if err := tx.Create(&model.CommunityMember{
			CommunityID: community.ID,
			UserID:      creatorID,
			Role:        model.MemberRoleOwner,
			JoinedAt:    now(),
		}).Error; err != nil {
			return err
		}
		return insertOutbox(tx, "community.created", community.ID, map[string]any{
			"communityId": community.ID,
			"name":        community.Name,
			"createdBy":   creatorID,
		})
	})
	if err != nil {
		return nil, err
	}
	return community, nil
}

type UpdateCommunityReq struct {
	Name        *string
	Description *string
	IsPrivate   *bool
}

// UpdateCommunity patches name/description/privacy. ADMIN/OWNER only.
func (s *MembershipService) UpdateCommunity(ctx context.Context, callerID, communityID uint, req UpdateCommunityReq) (*model.Community, error) {
	var community *model.Community
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		community, err = lockCommunity(tx, communityID)
		if err != nil {
			return err
		}
		role, err := resolveRole(tx, callerID, communityID)
		if err != nil {
			return err
		}
		if !rbac.Can(role, rbac.PermEditCommunity) {
			return forbidden("insufficient role to edit this community")
		}
		if req.Name != nil {
			if *req.Name == "" || len(*req.Name) > 64 {
				return invalid("community name must be 1-64 characters")
			}
			var count int64
			if err = tx.Model(&model.Community{}).
				Where("name = ? AND id <> ?", *req.Name, communityID).
				Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return conflict("community name already taken")
			}
			community.Name = *req.Name
		}
		if req.Description != nil {
			community.Description = *req.Description
		}
		if req.IsPrivate != nil {
			community.IsPrivate = *req.IsPrivate
		}
		return tx.Save(community).Error
	})
	if err != nil {
		return nil, err
	}
	return community, nil
}

// Join adds the caller as a VIEWER. Private communities require a
// valid, unexpired invite code; a duplicate join is a conflict. Both
// checks run after the community row is locked.
func (s *MembershipService) Join(ctx context.Context, userID, communityID uint, inviteCode string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		community, err := lockCommunity(tx, communityID)
		if err != nil {
			return err
		}

		var count int64
		if err = tx.Model(&model.CommunityMember{}).
			Where("community_id = ? AND user_id = ?", communityID, userID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return conflict("already a member of this community")
		}

		if community.IsPrivate {
			if inviteCode == "" {
				return forbidden("joining a private community requires an invite")
			}
			var invite model.Invite
			err = tx.Where("code = ? AND community_id = ?", inviteCode, communityID).
				First(&invite).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return forbidden("invalid invite code")
			}
			if err != nil {
				return err
			}
			if invite.ExpiresAt.Before(now()) {
				return forbidden("invite has expired")
			}
		}

		if err = tx.Create(&model.CommunityMember{
			CommunityID: communityID,
			UserID:      userID,
			Role:        model.MemberRoleViewer,
			JoinedAt:    now(),
		}).Error; err != nil {
			return err
		}
		return insertOutbox(tx, "member.joined", communityID, map[string]any{
			"communityId": communityID,
			"userId":      userID,
		})
	})
}

// Leave removes the caller's membership. A VIEWER always may; an ADMIN
// only while another admin (the owner counts) remains; the OWNER
// leaving deletes the whole community.
func (s *MembershipService) Leave(ctx context.Context, userID, communityID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		community, err := lockCommunity(tx, communityID)
		if err != nil {
			return err
		}
		role, err := resolveRole(tx, userID, communityID)
		if err != nil {
			return err
		}

		if role == model.MemberRoleOwner {
			return s.cascadeDelete(tx, community, userID)
		}

		if role == model.MemberRoleAdmin {
			remaining, err := countOtherAdmins(tx, communityID, userID)
			if err != nil {
				return err
			}
			if remaining == 0 {
				return conflict("cannot leave as last admin")
			}
		}

		if err = tx.Where("community_id = ? AND user_id = ?", communityID, userID).
			Delete(&model.CommunityMember{}).Error; err != nil {
			return err
		}
		return insertOutbox(tx, "member.left", communityID, map[string]any{
			"communityId": communityID,
			"userId":      userID,
		})
	})
}

// ChangeRole promotes or demotes a member. Owner targets are immutable
// and the OWNER role is never granted. Demoting the last admin is a
// conflict, counted inside the same transaction as the write.
func (s *MembershipService) ChangeRole(ctx context.Context, callerID, communityID, targetID uint, newRole model.MemberRole) error {
	if newRole != model.MemberRoleViewer && newRole != model.MemberRoleAdmin {
		return invalid("role must be viewer or admin")
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockCommunity(tx, communityID); err != nil {
			return err
		}
		callerRole, err := resolveRole(tx, callerID, communityID)
		if err != nil {
			return err
		}
		if !rbac.Can(callerRole, rbac.PermManageMembers) {
			return forbidden("insufficient role to manage members")
		}

		var target model.CommunityMember
		err = tx.Where("community_id = ? AND user_id = ?", communityID, targetID).
			First(&target).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("member not found")
		}
		if err != nil {
			return err
		}
		if target.Role == model.MemberRoleOwner {
			return forbidden("cannot change the owner's role")
		}
		if target.Role == newRole {
			return nil
		}

		if target.Role == model.MemberRoleAdmin && newRole == model.MemberRoleViewer {
			remaining, err := countOtherAdmins(tx, communityID, targetID)
			if err != nil {
				return err
			}
			if remaining == 0 {
				return conflict("cannot demote last admin")
			}
		}

		if err = tx.Model(&target).Update("role", newRole).Error; err != nil {
			return err
		}
		return insertOutbox(tx, "member.role_changed", communityID, map[string]any{
			"communityId": communityID,
			"userId":      targetID,
			"role":        newRole,
			"changedBy":   callerID,
		})
	})
}

// RemoveMember kicks a member. Same admin guard as Leave; the owner
// cannot be kicked and callers use Leave for themselves.
func (s *MembershipService) RemoveMember(ctx context.Context, callerID, communityID, targetID uint) error {
	if callerID == targetID {
		return invalid("use leave to remove yourself")
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockCommunity(tx, communityID); err != nil {
			return err
		}
		callerRole, err := resolveRole(tx, callerID, communityID)
		if err != nil {
			return err
		}
		if !rbac.Can(callerRole, rbac.PermManageMembers) {
			return forbidden("insufficient role to manage members")
		}

		var target model.CommunityMember
		err = tx.Where("community_id = ? AND user_id = ?", communityID, targetID).
			First(&target).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("member not found")
		}
		if err != nil {
			return err
		}
		if target.Role == model.MemberRoleOwner {
			return forbidden("cannot remove the owner")
		}
		if target.Role == model.MemberRoleAdmin {
			remaining, err := countOtherAdmins(tx, communityID, targetID)
			if err != nil {
				return err
			}
			if remaining == 0 {
				return conflict("cannot remove last admin")
			}
		}

		if err = tx.Delete(&model.CommunityMember{}, target.ID).Error; err != nil {
			return err
		}
		return insertOutbox(tx, "member.removed", communityID, map[string]any{
			"communityId": communityID,
			"userId":      targetID,
			"removedBy":   callerID,
		})
	})
}

// DeleteCommunity removes the community and every dependent row in one
// transaction. ADMIN/OWNER only.
func (s *MembershipService) DeleteCommunity(ctx context.Context, callerID, communityID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		community, err := lockCommunity(tx, communityID)
		if err != nil {
			return err
		}
		role, err := resolveRole(tx, callerID, communityID)
		if err != nil {
			return err
		}
		if !rbac.Can(role, rbac.PermDeleteCommunity) {
			return forbidden("insufficient role to delete this community")
		}
		return s.cascadeDelete(tx, community, callerID)
	})
}

// cascadeDelete removes memberships, invites, projects, project
// members, tasks, community chat rooms and their messages, then the
// community row itself. Runs inside the caller's transaction so a
// failure anywhere rolls the whole operation back. Deletes are
// unscoped: a soft-delete tombstone would keep the community name in
// its unique index and leave orphaned rows behind.
func (s *MembershipService) cascadeDelete(tx *gorm.DB, community *model.Community, actorID uint) error {
	cid := community.ID

	if err := tx.Where("community_id = ?", cid).Delete(&model.CommunityMember{}).Error; err != nil {
		return err
	}
	if err := tx.Where("community_id = ?", cid).Delete(&model.Invite{}).Error; err != nil {
		return err
	}

	var projectIDs []uint
	if err := tx.Unscoped().Model(&model.Project{}).Where("community_id = ?", cid).
		Pluck("id", &projectIDs).Error; err != nil {
		return err
	}
	if len(projectIDs) > 0 {
		if err := tx.Where("project_id IN ?", projectIDs).Delete(&model.ProjectMember{}).Error; err != nil {
			return err
		}
	}
	if err := tx.Unscoped().Where("community_id = ?", cid).Delete(&model.Task{}).Error; err != nil {
		return err
	}
	if err := tx.Unscoped().Where("community_id = ?", cid).Delete(&model.Project{}).Error; err != nil {
		return err
	}

	var roomIDs []uint
	if err := tx.Unscoped().Model(&model.ChatRoom{}).Where("community_id = ?", cid).
		Pluck("id", &roomIDs).Error; err != nil {
		return err
	}
	if len(roomIDs) > 0 {
		if err := tx.Unscoped().Where("room_id IN ?", roomIDs).Delete(&model.ChatMessage{}).Error; err != nil {
			return err
		}
		if err := tx.Where("room_id IN ?", roomIDs).Delete(&model.ChatRoomMember{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("community_id = ?", cid).Delete(&model.ChatRoom{}).Error; err != nil {
			return err
		}
	}

	if err := tx.Unscoped().Delete(&model.Community{}, cid).Error; err != nil {
		return err
	}
	return insertOutbox(tx, "community.deleted", cid, map[string]any{
		"communityId": cid,
		"name":        community.Name,
		"deletedBy":   actorID,
	})
}

// countOtherAdmins counts admins of the community other than excludeID.
// The owner counts as an admin for the last-admin guard: a community
// whose owner remains is never left unmanaged.
func countOtherAdmins(tx *gorm.DB, communityID, excludeID uint) (int64, error) {
	var count int64
	err := tx.Model(&model.CommunityMember{}).
		Where("community_id = ? AND user_id <> ? AND role IN ?",
			communityID, excludeID,
			[]model.MemberRole{model.MemberRoleAdmin, model.MemberRoleOwner}).
		Count(&count).Error
	return count, err
}

// MemberCount returns the number of members of a community.
func (s *MembershipService) MemberCount(ctx context.Context, communityID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.CommunityMember{}).
		Where("community_id = ?", communityID).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count members: %w", err)
	}
	return count, nil
}

// PruneExpiredInvites deletes invites whose expiry passed before the
// cutoff. Called by the cron sweeper.
func (s *MembershipService) PruneExpiredInvites(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("expires_at < ?", cutoff).
		Delete(&model.Invite{})
	return res.RowsAffected, res.Error
}

// GetCommunity returns a community. Private communities are only
// visible to their members; to anyone else they do not exist.
func (s *MembershipService) GetCommunity(ctx context.Context, callerID, communityID uint) (*model.Community, error) {
	var community model.Community
	err := s.db.WithContext(ctx).First(&community, communityID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("community not found")
	}
	if err != nil {
		return nil, err
	}
	if community.IsPrivate {
		if _, err = resolveRole(s.db.WithContext(ctx), callerID, communityID); err != nil {
			return nil, err
		}
	}
	return &community, nil
}

// CommunityFilter narrows and orders ListCommunities. Zero values mean
// "no filter" and newest first.
type CommunityFilter struct {
	NameLike string
	Order    string // newest (default), oldest, name
}

func (f CommunityFilter) orderClause() (string, error) {
	switch f.Order {
	case "", "newest":
		return "id DESC", nil
	case "oldest":
		return "id ASC", nil
	case "name":
		return "name ASC", nil
	default:
		return "", invalid("order must be newest, oldest or name")
	}
}

// ListCommunities pages through public communities plus the caller's
// private ones.
func (s *MembershipService) ListCommunities(ctx context.Context, callerID uint, filter CommunityFilter, offset, limit int) ([]model.Community, int64, error) {
	order, err := filter.orderClause()
	if err != nil {
		return nil, 0, err
	}
	base := s.db.WithContext(ctx).Model(&model.Community{}).
		Where("is_private = ? OR id IN (?)", false,
			s.db.Model(&model.CommunityMember{}).Select("community_id").Where("user_id = ?", callerID))
	if filter.NameLike != "" {
		base = base.Where("name LIKE ?", "%"+filter.NameLike+"%")
	}

	var count int64
	if err := base.Count(&count).Error; err != nil {
		return nil, 0, err
	}
	var communities []model.Community
	err = base.Order(order).Offset(offset).Limit(limit).Find(&communities).Error
	return communities, count, err
}

// ListMine returns the caller's memberships with communities preloaded.
func (s *MembershipService) ListMine(ctx context.Context, callerID uint) ([]model.CommunityMember, error) {
	var memberships []model.CommunityMember
	err := s.db.WithContext(ctx).
		Where("user_id = ?", callerID).
		Order("id ASC").
		Find(&memberships).Error
	return memberships, err
}

// ListMembers pages through a community's roster. Members only.
func (s *MembershipService) ListMembers(ctx context.Context, callerID, communityID uint, offset, limit int) ([]model.CommunityMember, int64, error) {
	if _, err := resolveRole(s.db.WithContext(ctx), callerID, communityID); err != nil {
		return nil, 0, err
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.CommunityMember{}).
		Where("community_id = ?", communityID).Count(&count).Error; err != nil {
		return nil, 0, err
	}
	var members []model.CommunityMember
	err := s.db.WithContext(ctx).
		Preload("User").
		Where("community_id = ?", communityID).
		Order("role DESC, id ASC").
		Offset(offset).Limit(limit).
		Find(&members).Error
	return members, count, err
}
