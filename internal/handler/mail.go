package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/commune-hq/commune/dao/model"
	"github.com/commune-hq/commune/internal/payload"
	"github.com/commune-hq/commune/internal/resputil"
	"github.com/commune-hq/commune/internal/service"
	"github.com/commune-hq/commune/internal/util"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewMailMgr)
}

type MailMgr struct {
	name  string
	mails *service.MailService
}

func NewMailMgr(conf *RegisterConfig) Manager {
	return &MailMgr{
		name:  "mails",
		mails: conf.Mails,
	}
}

func (mgr *MailMgr) GetName() string { return mgr.name }

func (mgr *MailMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *MailMgr) RegisterProtected(g *gin.RouterGroup) {
	g.POST("mails", mgr.Send)
	g.GET("mails", mgr.List)
	g.GET("mails/:mailID", mgr.Get)
	g.PUT("mails/:mailID/read", mgr.MarkRead)
	g.DELETE("mails/:mailID", mgr.Delete)
}

func (mgr *MailMgr) RegisterAdmin(_ *gin.RouterGroup) {}

type (
	MailURI struct {
		MailID uint `uri:"mailID" binding:"required"`
	}

	MailListQuery struct {
		payload.ListReqQuery
		Box string `form:"box" binding:"omitempty,oneof=inbox outbox"`
	}

	SendMailReq struct {
		ToID    uint   `json:"toID" binding:"required"`
		Subject string `json:"subject" binding:"required,max=200"`
		Body    string `json:"body"`
	}
)

// Send godoc
//
//	@Summary		Send an in-app mail
//	@Description	Delivers to the recipient's inbox; notifies by e-mail when SMTP is configured
//	@Tags			Mail
//	@Accept			json
//	@Produce		json
//	@Security		Bearer
//	@Param			data	body		SendMailReq	true	"mail"
//	@Success		200		{object}	resputil.Response[model.Mail]	"sent mail"
//	@Failure		404		{object}	resputil.Response[any]	"recipient not found"
//	@Router			/v1/mails [post]
func (mgr *MailMgr) Send(c *gin.Context) {
	var req SendMailReq
	if err := c.ShouldBind(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	token := util.GetToken(c)
	mail, err := mgr.mails.Send(c, token.UserID, req.ToID, req.Subject, req.Body)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	resputil.Success(c, mail)
}

// List godoc
//
//	@Summary		Read my mailbox
//	@Description	box selects inbox (default) or outbox
//	@Tags			Mail
//	@Produce		json
//	@Security		Bearer
//	@Param			page_index	query		int		true	"0-based page"
//	@Param			page_size	query		int		true	"page size"
//	@Param			box			query		string	false	"inbox or outbox"
//	@Success		200			{object}	resputil.Response[payload.ListResp[model.Mail]]	"mail"
//	@Router			/v1/mails [get]
func (mgr *MailMgr) List(c *gin.Context) {
	var query MailListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	fetch := mgr.mails.Inbox
	if query.Box == "outbox" {
		fetch = mgr.mails.Outbox
	}
	token := util.GetToken(c)
	offset, limit := payload.Window(*query.PageIndex, *query.PageSize)
	rows, count, err := fetch(c, token.UserID, offset, limit)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	resputil.Success(c, payload.ListResp[model.Mail]{Rows: rows, Count: count})
}

// Get godoc
//
//	@Summary		Read one mail
//	@Tags			Mail
//	@Produce		json
//	@Security		Bearer
//	@Param			mailID	path		int	true	"mail id"
//	@Success		200		{object}	resputil.Response[model.Mail]	"mail"
//	@Failure		404		{object}	resputil.Response[any]	"mail not found"
//	@Router			/v1/mails/{mailID} [get]
func (mgr *MailMgr) Get(c *gin.Context) {
	var uri MailURI
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	token := util.GetToken(c)
	mail, err := mgr.mails.Get(c, token.UserID, uri.MailID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	resputil.Success(c, mail)
}

// MarkRead godoc
//
//	@Summary		Mark a mail as read
//	@Description	Recipient only; idempotent
//	@Tags			Mail
//	@Produce		json
//	@Security		Bearer
//	@Param			mailID	path		int	true	"mail id"
//	@Success		200		{object}	resputil.Response[any]	"marked"
//	@Router			/v1/mails/{mailID}/read [put]
func (mgr *MailMgr) MarkRead(c *gin.Context) {
	var uri MailURI
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	token := util.GetToken(c)
	if err := mgr.mails.MarkRead(c, token.UserID, uri.MailID); err != nil {
		handleServiceError(c, err)
		return
	}
	resputil.Success(c, gin.H{})
}

// Delete godoc
//
//	@Summary		Delete a mail from my view
//	@Description	Hides the mail on the caller's side; the row disappears once both sides deleted it
//	@Tags			Mail
//	@Produce		json
//	@Security		Bearer
//	@Param			mailID	path		int	true	"mail id"
//	@Success		200		{object}	resputil.Response[any]	"deleted"
//	@Router			/v1/mails/{mailID} [delete]
func (mgr *MailMgr) Delete(c *gin.Context) {
	var uri MailURI
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	token := util.GetToken(c)
	if err := mgr.mails.Delete(c, token.UserID, uri.MailID); err != nil {
		handleServiceError(c, err)
		return
	}
	resputil.Success(c, gin.H{})
}
