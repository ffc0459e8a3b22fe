// Package service holds the membership and role invariant engine: all
// compound mutations (join/leave/role change/cascade delete and the
// task/project referential rules) run here inside single database
// transactions, with the invariant re-checked immediately before the
// write rather than from a value read earlier in the request.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/commune-hq/commune/dao/model"
)

// lockForUpdate takes a row lock as the serialization point for
// check-then-act sequences. sqlite (used by the tests) is single-writer
// and has no FOR UPDATE syntax, so the clause is postgres-only.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// lockCommunity loads the community under a FOR UPDATE lock. Every
// membership mutation locks the parent row first so that two
// transactions racing on the same community serialize, which closes the
// last-admin and duplicate-join races.
func lockCommunity(tx *gorm.DB, communityID uint) (*model.Community, error) {
	var community model.Community
	err := lockForUpdate(tx).First(&community, communityID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("community not found")
	}
	if err != nil {
		return nil, err
	}
	return &community, nil
}

// resolveRole looks up the membership row for (userID, communityID).
// A missing row surfaces as NotFound, deliberately indistinguishable
// from a missing community, so non-members cannot enumerate private
// communities.
func resolveRole(tx *gorm.DB, userID, communityID uint) (model.MemberRole, error) {
	var member model.CommunityMember
	err := tx.Where("community_id = ? AND user_id = ?", communityID, userID).
		First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, notFound("community not found")
	}
	if err != nil {
		return 0, err
	}
	return member.Role, nil
}

// insertOutbox records a domain event in the same transaction as the
// mutation it describes. The relay delivers it after commit.
func insertOutbox(tx *gorm.DB, eventType string, communityID uint, payload map[string]any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return tx.Create(&model.EventOutbox{
		EventID:     uuid.NewString(),
		EventType:   eventType,
		CommunityID: communityID,
		Payload:     datatypes.JSON(raw),
		Status:      model.EventStatusPending,
	}).Error
}

func now() time.Time { return time.Now().UTC() }

// ResolveRole is the read-only entry used by handlers that only need
// the caller's role (e.g. to shape a response).
func ResolveRole(ctx context.Context, db *gorm.DB, userID, communityID uint) (model.MemberRole, error) {
	return resolveRole(db.WithContext(ctx), userID, communityID)
}
