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
	Registers = append(Registers, NewCommunityMgr)
}

type CommunityMgr struct {
	name    string
	members *service.MembershipService
}

func NewCommunityMgr(conf *RegisterConfig) Manager {
	return &CommunityMgr{
		name:    "communities",
		members: conf.Members,
	}
}

func (mgr *CommunityMgr) GetName() string { return mgr.name }

func (mgr *CommunityMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *CommunityMgr) RegisterProtected(g *gin.RouterGroup) {
	g.POST("communities", mgr.Create)
	g.GET("communities", mgr.List)
	// a static "communities/mine" sibling of ":id" would not route
	g.GET("my/communities", mgr.ListMine)
	g.GET("communities/:id", mgr.Get)
	g.PUT("communities/:id", mgr.Update)
	g.DELETE("communities/:id", mgr.Delete)

	g.POST("communities/:id/join", mgr.Join)
	g.POST("communities/:id/leave", mgr.Leave)
	g.GET("communities/:id/members", mgr.ListMembers)
	g.PUT("communities/:id/members/:userID/role", mgr.ChangeRole)
	g.DELETE("communities/:id/members/:userID", mgr.RemoveMember)
}

func (mgr *CommunityMgr) RegisterAdmin(_ *gin.RouterGroup) {}

type (
	CommunityURI struct {
		ID uint `uri:"id" binding:"required"`
	}
	MemberURI struct {
		ID     uint `uri:"id" binding:"required"`
		UserID uint `uri:"userID" binding:"required"`
	}

	CreateCommunityReq struct {
		Name        string `json:"name" binding:"required,max=64"`
		Description string `json:"description"`
		IsPrivate   bool   `json:"isPrivate"`
	}

	UpdateCommunityReq struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
		IsPrivate   *bool   `json:"isPrivate"`
	}

	CommunityListQuery struct {
		payload.ListReqQuery
		NameLike string `form:"name_like"`
		Order    string `form:"order" binding:"omitempty,oneof=newest oldest name"`
	}

	// CommunityDetail is the GET response: the community plus its size.
	CommunityDetail struct {
		model.Community
		MemberCount int64 `json:"memberCount"`
	}

	JoinReq struct {
		InviteCode string `json:"inviteCode"`
	}

	ChangeRoleReq struct {
		Role model.MemberRole `json:"role" binding:"required"`
	}
)

// Create godoc
//
//	@Summary		Create a community
//	@Description	Creates the community and its owner membership atomically
//	@Tags			Community
//	@Accept			json
//	@Produce		json
//	@Security		Bearer
//	@Param			data	body		CreateCommunityReq	true	"community"
//	@Success		200		{object}	resputil.Response[model.Community]	"created community"
//	@Failure		409		{object}	resputil.Response[any]	"name already taken"
//	@Router			/v1/communities [post]
func (mgr *CommunityMgr) Create(c *gin.Context) {
	var req CreateCommunityReq
	if err := c.ShouldBind(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	token := util.GetToken(c)
	community, err := mgr.members.CreateCommunity(c, token.UserID, service.CreateCommunityReq{
		Name:        req.Name,
		Description: req.Description,
		IsPrivate:   req.IsPrivate,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	resputil.Success(c, community)
}

// List godoc
//
//	@Summary		Browse communities
//	@Description	Pages through public communities plus the caller's private ones
//	@Tags			Community
//	@Produce		json
//	@Security		Bearer
//	@Param			page_index	query		int	true	"0-based page"
//	@Param			page_size	query		int	true	"page size"
//	@Param			name_like	query		string	false	"name substring filter"
//	@Param			order		query		string	false	"newest (default), oldest or name"
//	@Success		200			{object}	resputil.Response[payload.ListResp[model.Community]]	"communities"
//	@Router			/v1/communities [get]
func (mgr *CommunityMgr) List(c *gin.Context) {
	var query CommunityListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	token := util.GetToken(c)
	offset, limit := payload.Window(*query.PageIndex, *query.PageSize)
	rows, count, err := mgr.members.ListCommunities(c, token.UserID, service.CommunityFilter{
		NameLike: query.NameLike,
		Order:    query.Order,
	}, offset, limit)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	resputil.Success(c, payload.ListResp[model.Community]{Rows: rows, Count: count})
}

// ListMine godoc
//
//	@Summary		List my memberships
//	@Tags			Community
//	@Produce		json
//	@Security		Bearer
//	@Success		200	{object}	resputil.Response[[]model.CommunityMember]	"memberships"
//	@Router			/v1/my/communities [get]
func (mgr *CommunityMgr) ListMine(c *gin.Context) {
	token := util.GetToken(c)
	memberships, err := mgr.members.ListMine(c, token.UserID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	resputil.Success(c, memberships)
}

// Get godoc
//
//	@Summary		Get a community
//	@Description	Private communities are only visible to members
//	@Tags			Community
//	@Produce		json
//	@Security		Bearer
//	@Param			id	path		int	true	"community id"
//	@Success		200	{object}	resputil.Response[CommunityDetail]	"community with member count"
//	@Failure		404	{object}	resputil.Response[any]	"community not found"
//	@Router			/v1/communities/{id} [get]
func (mgr *CommunityMgr) Get(c *gin.Context) {
	var uri CommunityURI
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	token := util.GetToken(c)
	community, err := mgr.members.GetCommunity(c, token.UserID, uri.ID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	count, err := mgr.members.MemberCount(c, uri.ID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	resputil.Success(c, CommunityDetail{Community: *community, MemberCount: count})
}

// Update godoc
//
//	@Summary		Update a community
//	@Description	Admin or owner only
//	@Tags			Community
//	@Accept			json
//	@Produce		json
//	@Security		Bearer
//	@Param			id		path		int	true	"community id"
//	@Param			data	body		UpdateCommunityReq	true	"fields to change"
//	@Success		200		{object}	resputil.Response[model.Community]	"updated community"
//	@Failure		403		{object}	resputil.Response[any]	"insufficient role"
//	@Router			/v1/communities/{id} [put]
func (mgr *CommunityMgr) Update(c *gin.Context) {
	var uri CommunityURI
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	var req UpdateCommunityReq
	if err := c.ShouldBind(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	token := util.GetToken(c)
	community, err := mgr.members.UpdateCommunity(c, token.UserID, uri.ID, service.UpdateCommunityReq{
		Name:        req.Name,
		Description: req.Description,
		IsPrivate:   req.IsPrivate,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	resputil.Success(c, community)
}

// Delete godoc
//
//	@Summary		Delete a community
//	@Description	Removes the community and every dependent row in one transaction
//	@Tags			Community
//	@Produce		json
//	@Security		Bearer
//	@Param			id	path		int	true	"community id"
//	@Success		200	{object}	resputil.Response[any]	"deleted"
//	@Failure		403	{object}	resputil.Response[any]	"insufficient role"
//	@Router			/v1/communities/{id} [delete]
func (mgr *CommunityMgr) Delete(c *gin.Context) {
	var uri CommunityURI
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	token := util.GetToken(c)
	if err := mgr.members.DeleteCommunity(c, token.UserID, uri.ID); err != nil {
		handleServiceError(c, err)
		return
	}
	resputil.Success(c, gin.H{})
}

// Join godoc
//
//	@Summary		Join a community
//	@Description	Private communities require a valid invite code
//	@Tags			Community
//	@Accept			json
//	@Produce		json
//	@Security		Bearer
//	@Param			id		path		int	true	"community id"
//	@Param			data	body		JoinReq	false	"invite code"
//	@Success		200		{object}	resputil.Response[any]	"joined"
//	@Failure		403		{object}	resputil.Response[any]	"invite required or invalid"
//	@Failure		409		{object}	resputil.Response[any]	"already a member"
//	@Router			/v1/communities/{id}/join [post]
func (mgr *CommunityMgr) Join(c *gin.Context) {
	var uri CommunityURI
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	var req JoinReq
	if err := c.ShouldBind(&req); err != nil && c.Request.ContentLength > 0 {
		resputil.BadRequestError(c, err.Error())
		return
	}
	token := util.GetToken(c)
	if err := mgr.members.Join(c, token.UserID, uri.ID, req.InviteCode); err != nil {
		handleServiceError(c, err)
		return
	}
	resputil.Success(c, gin.H{})
}

// Leave godoc
//
//	@Summary		Leave a community
//	@Description	The owner leaving deletes the community; the last admin cannot leave
//	@Tags			Community
//	@Produce		json
//	@Security		Bearer
//	@Param			id	path		int	true	"community id"
//	@Success		200	{object}	resputil.Response[any]	"left"
//	@Failure		409	{object}	resputil.Response[any]	"last admin"
//	@Router			/v1/communities/{id}/leave [post]
func (mgr *CommunityMgr) Leave(c *gin.Context) {
	var uri CommunityURI
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	token := util.GetToken(c)
	if err := mgr.members.Leave(c, token.UserID, uri.ID); err != nil {
		handleServiceError(c, err)
		return
	}
	resputil.Success(c, gin.H{})
}

// ListMembers godoc
//
//	@Summary		List community members
//	@Tags			Community
//	@Produce		json
//	@Security		Bearer
//	@Param			id			path		int	true	"community id"
//	@Param			page_index	query		int	true	"0-based page"
//	@Param			page_size	query		int	true	"page size"
//	@Success		200			{object}	resputil.Response[payload.ListResp[model.CommunityMember]]	"members"
//	@Router			/v1/communities/{id}/members [get]
func (mgr *CommunityMgr) ListMembers(c *gin.Context) {
	var uri CommunityURI
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	var query payload.ListReqQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	token := util.GetToken(c)
	offset, limit := payload.Window(*query.PageIndex, *query.PageSize)
	rows, count, err := mgr.members.ListMembers(c, token.UserID, uri.ID, offset, limit)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	resputil.Success(c, payload.ListResp[model.CommunityMember]{Rows: rows, Count: count})
}

// ChangeRole godoc
//
//	@Summary		Change a member's role
//	@Description	Admin or owner only; the owner's role is immutable
//	@Tags			Community
//	@Accept			json
//	@Produce		json
//	@Security		Bearer
//	@Param			id		path		int	true	"community id"
//	@Param			userID	path		int	true	"target user id"
//	@Param			data	body		ChangeRoleReq	true	"new role"
//	@Success		200		{object}	resputil.Response[any]	"role changed"
//	@Failure		409		{object}	resputil.Response[any]	"would demote the last admin"
//	@Router			/v1/communities/{id}/members/{userID}/role [put]
func (mgr *CommunityMgr) ChangeRole(c *gin.Context) {
	var uri MemberURI
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	var req ChangeRoleReq
	if err := c.ShouldBind(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	token := util.GetToken(c)
	if err := mgr.members.ChangeRole(c, token.UserID, uri.ID, uri.UserID, req.Role); err != nil {
		handleServiceError(c, err)
		return
	}
	resputil.Success(c, gin.H{})
}

// RemoveMember godoc
//
//	@Summary		Remove a member
//	@Description	Admin or owner only; the owner cannot be removed
//	@Tags			Community
//	@Produce		json
//	@Security		Bearer
//	@Param			id		path		int	true	"community id"
//	@Param			userID	path		int	true	"target user id"
//	@Success		200		{object}	resputil.Response[any]	"removed"
//	@Failure		409		{object}	resputil.Response[any]	"would remove the last admin"
//	@Router			/v1/communities/{id}/members/{userID} [delete]
func (mgr *CommunityMgr) RemoveMember(c *gin.Context) {
	var uri MemberURI
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	token := util.GetToken(c)
	if err := mgr.members.RemoveMember(c, token.UserID, uri.ID, uri.UserID); err != nil {
		handleServiceError(c, err)
		return
	}
	resputil.Success(c, gin.H{})
}
