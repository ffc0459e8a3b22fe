package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/commune-hq/commune/dao/model"
)

type ChatService struct {
	db *gorm.DB
}

func NewChatService(db *gorm.DB) *ChatService {
	return &ChatService{db: db}
}

// DirectRoom returns the direct room between the two users, creating it
// on first use. The pair key makes the room unique per pair regardless
// of who opened it.
func (s *ChatService) DirectRoom(ctx context.Context, userID, peerID uint) (*model.ChatRoom, error) {
	if userID == peerID {
		return nil, invalid("cannot open a direct room with yourself")
	}
	var peer model.User
	if err := s.db.WithContext(ctx).First(&peer, peerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("user not found")
		}
		return nil, err
	}

	key := pairKey(userID, peerID)
	var room model.ChatRoom
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("pair_key = ?", key).First(&room).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		room = model.ChatRoom{
			Type:        model.RoomTypeDirect,
			PairKey:     &key,
			CreatedByID: userID,
		}
		if err = tx.Create(&room).Error; err != nil {
			return err
		}
		members := []model.ChatRoomMember{
			{RoomID: room.ID, UserID: userID, JoinedAt: now()},
			{RoomID: room.ID, UserID: peerID, JoinedAt: now()},
		}
		return tx.Create(&members).Error
	})
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// CreateGroupRoom opens a group room inside a community. Any community
// member may create one; the creator joins immediately.
func (s *ChatService) CreateGroupRoom(ctx context.Context, callerID, communityID uint, name string) (*model.ChatRoom, error) {
	if name == "" || len(name) > 64 {
		return nil, invalid("room name must be 1-64 characters")
	}
	var room *model.ChatRoom
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := resolveRole(tx, callerID, communityID); err != nil {
			return err
		}
		room = &model.ChatRoom{
			Type:        model.RoomTypeGroup,
			Name:        name,
			CommunityID: &communityID,
			CreatedByID: callerID,
		}
		if err := tx.Create(room).Error; err != nil {
			return err
		}
		return tx.Create(&model.ChatRoomMember{
			RoomID:   room.ID,
			UserID:   callerID,
			JoinedAt: now(),
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return room, nil
}

// JoinGroupRoom adds a community member to a group room.
func (s *ChatService) JoinGroupRoom(ctx context.Context, callerID, roomID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var room model.ChatRoom
		err := tx.First(&room, roomID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("room not found")
		}
		if err != nil {
			return err
		}
		if room.Type != model.RoomTypeGroup || room.CommunityID == nil {
			return invalid("direct rooms cannot be joined")
		}
		if _, err = resolveRole(tx, callerID, *room.CommunityID); err != nil {
			return err
		}

		var count int64
		if err = tx.Model(&model.ChatRoomMember{}).
			Where("room_id = ? AND user_id = ?", roomID, callerID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return conflict("already in this room")
		}
		return tx.Create(&model.ChatRoomMember{
			RoomID:   roomID,
			UserID:   callerID,
			JoinedAt: now(),
		}).Error
	})
}

// SaveMessage persists an inbound message after verifying the sender is
// in the room. Messages are stored before they are broadcast.
func (s *ChatService) SaveMessage(ctx context.Context, senderID, roomID uint, content string) (*model.ChatMessage, error) {
	if content == "" || len(content) > 4000 {
		return nil, invalid("message must be 1-4000 characters")
	}
	if err := s.RequireRoomMember(ctx, senderID, roomID); err != nil {
		return nil, err
	}
	msg := &model.ChatMessage{
		RoomID:   roomID,
		SenderID: senderID,
		Content:  content,
	}
	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return nil, fmt.Errorf("save message: %w", err)
	}
	return msg, nil
}

// RequireRoomMember fails with NotFound when the user is not in the
// room (the room's existence is not revealed to outsiders).
func (s *ChatService) RequireRoomMember(ctx context.Context, userID, roomID uint) error {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.ChatRoomMember{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count == 0 {
		return notFound("room not found")
	}
	return nil
}

// ListRooms returns every room the user belongs to, newest first.
func (s *ChatService) ListRooms(ctx context.Context, userID uint) ([]model.ChatRoom, error) {
	var rooms []model.ChatRoom
	err := s.db.WithContext(ctx).
		Joins("JOIN chat_room_members m ON m.room_id = chat_rooms.id AND m.user_id = ?", userID).
		Order("chat_rooms.id DESC").
		Find(&rooms).Error
	return rooms, err
}

// ListMessages pages through a room's history, newest first.
func (s *ChatService) ListMessages(ctx context.Context, userID, roomID uint, offset, limit int) ([]model.ChatMessage, int64, error) {
	if err := s.RequireRoomMember(ctx, userID, roomID); err != nil {
		return nil, 0, err
	}
	var count int64
	q := s.db.WithContext(ctx).Model(&model.ChatMessage{}).Where("room_id = ?", roomID)
	if err := q.Count(&count).Error; err != nil {
		return nil, 0, err
	}
	var msgs []model.ChatMessage
	err := s.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("id DESC").
		Offset(offset).Limit(limit).
		Find(&msgs).Error
	return msgs, count, err
}

func pairKey(a, b uint) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}
