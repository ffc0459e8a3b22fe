package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/commune-hq/commune/dao/model"
	"github.com/commune-hq/commune/pkg/logutils"
	"github.com/commune-hq/commune/pkg/mailer"
	"github.com/commune-hq/commune/pkg/rbac"
)

// InviteService issues and revokes invite codes. Redemption happens in
// MembershipService.Join, inside the join transaction.
type InviteService struct {
	db     *gorm.DB
	mailer *mailer.Mailer // optional, nil when SMTP is disabled
}

func NewInviteService(db *gorm.DB, m *mailer.Mailer) *InviteService {
	return &InviteService{db: db, mailer: m}
}

// Issue creates a new invite code valid for ttl. When email is set and
// SMTP is configured the code is mailed out; a mail failure does not
// fail the issuance.
func (s *InviteService) Issue(ctx context.Context, issuerID, communityID uint, ttl time.Duration, email string) (*model.Invite, error) {
	var invite *model.Invite
	var communityName string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		community, err := lockCommunity(tx, communityID)
		if err != nil {
			return err
		}
		communityName = community.Name
		role, err := resolveRole(tx, issuerID, communityID)
		if err != nil {
			return err
		}
		if !rbac.Can(role, rbac.PermManageInvites) {
			return forbidden("insufficient role to issue invites")
		}

		invite = &model.Invite{
			Code:        uuid.NewString(),
			CommunityID: communityID,
			IssuerID:    issuerID,
			ExpiresAt:   now().Add(ttl),
		}
		return tx.Create(invite).Error
	})
	if err != nil {
		return nil, err
	}

	if email != "" && s.mailer != nil {
		if err := s.mailer.SendInvite(email, communityName, invite.Code, invite.ExpiresAt); err != nil {
			logutils.Log.WithField("community", communityID).Warnf("invite mail failed: %v", err)
		}
	}
	return invite, nil
}

// Revoke deletes an invite by code.
func (s *InviteService) Revoke(ctx context.Context, callerID, communityID uint, code string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockCommunity(tx, communityID); err != nil {
			return err
		}
		role, err := resolveRole(tx, callerID, communityID)
		if err != nil {
			return err
		}
		if !rbac.Can(role, rbac.PermManageInvites) {
			return forbidden("insufficient role to revoke invites")
		}

		var invite model.Invite
		err = tx.Where("code = ? AND community_id = ?", code, communityID).First(&invite).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("invite not found")
		}
		if err != nil {
			return err
		}
		return tx.Delete(&model.Invite{}, invite.ID).Error
	})
}

// List returns the community's invites, newest first. Managers only.
func (s *InviteService) List(ctx context.Context, callerID, communityID uint) ([]model.Invite, error) {
	role, err := resolveRole(s.db.WithContext(ctx), callerID, communityID)
	if err != nil {
		return nil, err
	}
	if !rbac.Can(role, rbac.PermManageInvites) {
		return nil, forbidden("insufficient role to list invites")
	}
	var invites []model.Invite
	err = s.db.WithContext(ctx).
		Where("community_id = ?", communityID).
		Order("id DESC").
		Find(&invites).Error
	return invites, err
}
