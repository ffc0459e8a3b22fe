package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/commune-hq/commune/internal/resputil"
	"github.com/commune-hq/commune/internal/service"
	"github.com/commune-hq/commune/pkg/chat"
	"github.com/commune-hq/commune/pkg/codes"
	"github.com/commune-hq/commune/pkg/mailer"
)

type Manager interface {
	GetName() string
	RegisterPublic(group *gin.RouterGroup)
	RegisterProtected(group *gin.RouterGroup)
	RegisterAdmin(group *gin.RouterGroup)
}

// RegisterConfig is the dependency bag passed to every manager
// constructor. Optional integrations (SMTP, Redis) are nil when
// disabled.
type RegisterConfig struct {
	DB     *gorm.DB
	Mailer *mailer.Mailer
	Codes  *codes.Store
	Hub    *chat.Hub

	Members  *service.MembershipService
	Invites  *service.InviteService
	Projects *service.ProjectService
	Tasks    *service.TaskService
	Chats    *service.ChatService
	Mails    *service.MailService
}

// Registers collects manager constructors via init() in each file.
var Registers []func(*RegisterConfig) Manager

// handleServiceError translates service error kinds into the response
// envelope. Unclassified errors become 500 without leaking internals.
func handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		resputil.NotFoundError(c, err.Error())
	case errors.Is(err, service.ErrForbidden):
		resputil.ForbiddenError(c, err.Error())
	case errors.Is(err, service.ErrConflict):
		resputil.ConflictError(c, err.Error())
	case errors.Is(err, service.ErrInvalid):
		resputil.BadRequestError(c, err.Error())
	default:
		resputil.Error(c, err.Error(), resputil.NotSpecified)
	}
}
