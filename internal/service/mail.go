package service

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/commune-hq/commune/dao/model"
	"github.com/commune-hq/commune/pkg/logutils"
	"github.com/commune-hq/commune/pkg/mailer"
)

// MailService is the in-app mailbox. Each side of a mail deletes its
// own copy; the row disappears once both sides have.
type MailService struct {
	db     *gorm.DB
	mailer *mailer.Mailer // optional SMTP notification, nil when disabled
}

func NewMailService(db *gorm.DB, m *mailer.Mailer) *MailService {
	return &MailService{db: db, mailer: m}
}

// Send delivers an in-app mail and, when SMTP is configured, notifies
// the recipient's e-mail address. The notification is best effort.
func (s *MailService) Send(ctx context.Context, fromID, toID uint, subject, body string) (*model.Mail, error) {
	if subject == "" || len(subject) > 200 {
		return nil, invalid("subject must be 1-200 characters")
	}
	if fromID == toID {
		return nil, invalid("cannot mail yourself")
	}
	var recipient model.User
	if err := s.db.WithContext(ctx).First(&recipient, toID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("recipient not found")
		}
		return nil, err
	}

	mail := &model.Mail{
		FromID:  fromID,
		ToID:    toID,
		Subject: subject,
		Body:    body,
	}
	if err := s.db.WithContext(ctx).Create(mail).Error; err != nil {
		return nil, err
	}

	if s.mailer != nil {
		if err := s.mailer.NotifyNewMail(recipient.Email, subject); err != nil {
			logutils.Log.WithField("to", toID).Warnf("mail notification failed: %v", err)
		}
	}
	return mail, nil
}

// MarkRead stamps the read time. Only the recipient sees the mail.
func (s *MailService) MarkRead(ctx context.Context, userID, mailID uint) error {
	var mail model.Mail
	err := s.db.WithContext(ctx).
		Where("id = ? AND to_id = ? AND to_deleted = ?", mailID, userID, false).
		First(&mail).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound("mail not found")
	}
	if err != nil {
		return err
	}
	if mail.ReadAt != nil {
		return nil
	}
	t := now()
	return s.db.WithContext(ctx).Model(&mail).Update("read_at", t).Error
}

// Delete hides the mail from the caller's side and removes the row once
// neither side can see it.
func (s *MailService) Delete(ctx context.Context, userID, mailID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var mail model.Mail
		err := lockForUpdate(tx).First(&mail, mailID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("mail not found")
		}
		if err != nil {
			return err
		}

		switch userID {
		case mail.FromID:
			mail.FromDeleted = true
		case mail.ToID:
			mail.ToDeleted = true
		default:
			return notFound("mail not found")
		}

		if mail.FromDeleted && mail.ToDeleted {
			return tx.Delete(&model.Mail{}, mail.ID).Error
		}
		return tx.Save(&mail).Error
	})
}

// Get returns a single mail visible to the caller.
func (s *MailService) Get(ctx context.Context, userID, mailID uint) (*model.Mail, error) {
	var mail model.Mail
	err := s.db.WithContext(ctx).
		Where("id = ?", mailID).
		Where(
			s.db.Where("to_id = ? AND to_deleted = ?", userID, false).
				Or("from_id = ? AND from_deleted = ?", userID, false),
		).
		First(&mail).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("mail not found")
	}
	if err != nil {
		return nil, err
	}
	return &mail, nil
}

// Inbox pages through received mail, unread and newest first.
func (s *MailService) Inbox(ctx context.Context, userID uint, offset, limit int) ([]model.Mail, int64, error) {
	return s.page(ctx, "to_id = ? AND to_deleted = ?", userID, offset, limit)
}

// Outbox pages through sent mail.
func (s *MailService) Outbox(ctx context.Context, userID uint, offset, limit int) ([]model.Mail, int64, error) {
	return s.page(ctx, "from_id = ? AND from_deleted = ?", userID, offset, limit)
}

func (s *MailService) page(ctx context.Context, cond string, userID uint, offset, limit int) ([]model.Mail, int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.Mail{}).
		Where(cond, userID, false).Count(&count).Error; err != nil {
		return nil, 0, err
	}
	var mails []model.Mail
	err := s.db.WithContext(ctx).
		Where(cond, userID, false).
		Order("id DESC").
		Offset(offset).Limit(limit).
		Find(&mails).Error
	return mails, count, err
}
