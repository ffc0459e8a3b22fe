package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/commune-hq/commune/internal/resputil"
	"github.com/commune-hq/commune/internal/service"
	"github.com/commune-hq/commune/internal/util"
	"github.com/commune-hq/commune/pkg/config"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewInviteMgr)
}

type InviteMgr struct {
	name    string
	invites *service.InviteService
}

func NewInviteMgr(conf *RegisterConfig) Manager {
	return &InviteMgr{
		name:    "invites",
		invites: conf.Invites,
	}
}

func (mgr *InviteMgr) GetName() string { return mgr.name }

func (mgr *InviteMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *InviteMgr) RegisterProtected(g *gin.RouterGroup) {
	g.POST("communities/:id/invites", mgr.Issue)
	g.GET("communities/:id/invites", mgr.List)
	g.DELETE("communities/:id/invites/:code", mgr.Revoke)
}

func (mgr *InviteMgr) RegisterAdmin(_ *gin.RouterGroup) {}

type (
	IssueInviteReq struct {
		// TTLHours overrides the configured default when positive.
		TTLHours int `json:"ttlHours"`
		// Email, when set, receives the code by mail.
		Email string `json:"email" binding:"omitempty,email"`
	}

	InviteCodeURI struct {
		ID   uint   `uri:"id" binding:"required"`
		Code string `uri:"code" binding:"required"`
	}
)

// Issue godoc
//
//	@Summary		Issue an invite code
//	@Description	Admin or owner only; optionally mails the code out
//	@Tags			Invite
//	@Accept			json
//	@Produce		json
//	@Security		Bearer
//	@Param			id		path		int	true	"community id"
//	@Param			data	body		IssueInviteReq	true	"invite request"
//	@Success		200		{object}	resputil.Response[model.Invite]	"invite with code and expiry"
//	@Failure		403		{object}	resputil.Response[any]	"insufficient role"
//	@Router			/v1/communities/{id}/invites [post]
func (mgr *InviteMgr) Issue(c *gin.Context) {
	var uri CommunityURI
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	var req IssueInviteReq
	if err := c.ShouldBind(&req); err != nil && c.Request.ContentLength > 0 {
		resputil.BadRequestError(c, err.Error())
		return
	}
	ttlHours := req.TTLHours
	if ttlHours <= 0 {
		ttlHours = config.GetConfig().Invite.TTLHours
	}
	token := util.GetToken(c)
	invite, err := mgr.invites.Issue(c, token.UserID, uri.ID,
		time.Duration(ttlHours)*time.Hour, req.Email)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	resputil.Success(c, invite)
}

// List godoc
//
//	@Summary		List a community's invites
//	@Description	Admin or owner only
//	@Tags			Invite
//	@Produce		json
//	@Security		Bearer
//	@Param			id	path		int	true	"community id"
//	@Success		200	{object}	resputil.Response[[]model.Invite]	"invites"
//	@Router			/v1/communities/{id}/invites [get]
func (mgr *InviteMgr) List(c *gin.Context) {
	var uri CommunityURI
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	token := util.GetToken(c)
	invites, err := mgr.invites.List(c, token.UserID, uri.ID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	resputil.Success(c, invites)
}

// Revoke godoc
//
//	@Summary		Revoke an invite code
//	@Description	Admin or owner only
//	@Tags			Invite
//	@Produce		json
//	@Security		Bearer
//	@Param			id		path		int		true	"community id"
//	@Param			code	path		string	true	"invite code"
//	@Success		200		{object}	resputil.Response[any]	"revoked"
//	@Failure		404		{object}	resputil.Response[any]	"invite not found"
//	@Router			/v1/communities/{id}/invites/{code} [delete]
func (mgr *InviteMgr) Revoke(c *gin.Context) {
	var uri InviteCodeURI
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	token := util.GetToken(c)
	if err := mgr.invites.Revoke(c, token.UserID, uri.ID, uri.Code); err != nil {
		handleServiceError(c, err)
		return
	}
	resputil.Success(c, gin.H{})
}
