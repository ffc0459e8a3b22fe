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
	Registers = append(Registers, NewProjectMgr)
}

type ProjectMgr struct {
	name     string
	projects *service.ProjectService
}

func NewProjectMgr(conf *RegisterConfig) Manager {
	return &ProjectMgr{
		name:     "projects",
		projects: conf.Projects,
	}
}

func (mgr *ProjectMgr) GetName() string { return mgr.name }

func (mgr *ProjectMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *ProjectMgr) RegisterProtected(g *gin.RouterGroup) {
	g.POST("communities/:id/projects", mgr.Create)
	g.GET("communities/:id/projects", mgr.List)
	g.GET("communities/:id/projects/:projectID", mgr.Get)
	g.PUT("communities/:id/projects/:projectID", mgr.Update)
	g.DELETE("communities/:id/projects/:projectID", mgr.Delete)

	g.GET("communities/:id/projects/:projectID/members", mgr.ListMembers)
	g.POST("communities/:id/projects/:projectID/members/:userID", mgr.AddMember)
	g.DELETE("communities/:id/projects/:projectID/members/:userID", mgr.RemoveMember)
}

func (mgr *ProjectMgr) RegisterAdmin(_ *gin.RouterGroup) {}

type (
	ProjectURI struct {
		ID        uint `uri:"id" binding:"required"`
		ProjectID uint `uri:"projectID" binding:"required"`
	}
	ProjectMemberURI struct {
		ID        uint `uri:"id" binding:"required"`
		ProjectID uint `uri:"projectID" binding:"required"`
		UserID    uint `uri:"userID" binding:"required"`
	}

	ProjectReq struct {
		Name        string `json:"name" binding:"required,max=64"`
		Description string `json:"description"`
		Emoji       string `json:"emoji" binding:"max=16"`
	}
)

// Create godoc
//
//	@Summary		Create a project
//	@Description	Admin or owner only; the creator joins the project roster
//	@Tags			Project
//	@Accept			json
//	@Produce		json
//	@Security		Bearer
//	@Param			id		path		int	true	"community id"
//	@Param			data	body		ProjectReq	true	"project"
//	@Success		200		{object}	resputil.Response[model.Project]	"created project"
//	@Failure		403		{object}	resputil.Response[any]	"insufficient role"
//	@Router			/v1/communities/{id}/projects [post]
func (mgr *ProjectMgr) Create(c *gin.Context) {
	var uri CommunityURI
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	var req ProjectReq
	if err := c.ShouldBind(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	token := util.GetToken(c)
	project, err := mgr.projects.Create(c, token.UserID, uri.ID, service.ProjectReq{
		Name:        req.Name,
		Description: req.Description,
		Emoji:       req.Emoji,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	resputil.Success(c, project)
}

// List godoc
//
//	@Summary		List a community's projects
//	@Tags			Project
//	@Produce		json
//	@Security		Bearer
//	@Param			id			path		int	true	"community id"
//	@Param			page_index	query		int	true	"0-based page"
//	@Param			page_size	query		int	true	"page size"
//	@Success		200			{object}	resputil.Response[payload.ListResp[model.Project]]	"projects"
//	@Router			/v1/communities/{id}/projects [get]
func (mgr *ProjectMgr) List(c *gin.Context) {
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
	rows, count, err := mgr.projects.List(c, token.UserID, uri.ID, offset, limit)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	resputil.Success(c, payload.ListResp[model.Project]{Rows: rows, Count: count})
}

// Get godoc
//
//	@Summary		Get a project
//	@Tags			Project
//	@Produce		json
//	@Security		Bearer
//	@Param			id			path		int	true	"community id"
//	@Param			projectID	path		int	true	"project id"
//	@Success		200			{object}	resputil.Response[model.Project]	"project"
//	@Failure		404			{object}	resputil.Response[any]	"project not found"
//	@Router			/v1/communities/{id}/projects/{projectID} [get]
func (mgr *ProjectMgr) Get(c *gin.Context) {
	var uri ProjectURI
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	token := util.GetToken(c)
	project, err := mgr.projects.Get(c, token.UserID, uri.ID, uri.ProjectID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	resputil.Success(c, project)
}

// Update godoc
//
//	@Summary		Update a project
//	@Description	Admin or owner only
//	@Tags			Project
//	@Accept			json
//	@Produce		json
//	@Security		Bearer
//	@Param			id			path		int	true	"community id"
//	@Param			projectID	path		int	true	"project id"
//	@Param			data		body		ProjectReq	true	"fields to change"
//	@Success		200			{object}	resputil.Response[model.Project]	"updated project"
//	@Router			/v1/communities/{id}/projects/{projectID} [put]
func (mgr *ProjectMgr) Update(c *gin.Context) {
	var uri ProjectURI
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	var req ProjectReq
	if err := c.ShouldBind(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	token := util.GetToken(c)
	project, err := mgr.projects.Update(c, token.UserID, uri.ID, uri.ProjectID, service.ProjectReq{
		Name:        req.Name,
		Description: req.Description,
		Emoji:       req.Emoji,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	resputil.Success(c, project)
}

// Delete godoc
//
//	@Summary		Delete a project
//	@Description	Tasks that referenced the project are detached, not deleted
//	@Tags			Project
//	@Produce		json
//	@Security		Bearer
//	@Param			id			path		int	true	"community id"
//	@Param			projectID	path		int	true	"project id"
//	@Success		200			{object}	resputil.Response[any]	"deleted"
//	@Router			/v1/communities/{id}/projects/{projectID} [delete]
func (mgr *ProjectMgr) Delete(c *gin.Context) {
	var uri ProjectURI
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	token := util.GetToken(c)
	if err := mgr.projects.Delete(c, token.UserID, uri.ID, uri.ProjectID); err != nil {
		handleServiceError(c, err)
		return
	}
	resputil.Success(c, gin.H{})
}

// ListMembers godoc
//
//	@Summary		List the project roster
//	@Tags			Project
//	@Produce		json
//	@Security		Bearer
//	@Param			id			path		int	true	"community id"
//	@Param			projectID	path		int	true	"project id"
//	@Success		200			{object}	resputil.Response[[]model.ProjectMember]	"project members"
//	@Router			/v1/communities/{id}/projects/{projectID}/members [get]
func (mgr *ProjectMgr) ListMembers(c *gin.Context) {
	var uri ProjectURI
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	token := util.GetToken(c)
	members, err := mgr.projects.ListMembers(c, token.UserID, uri.ID, uri.ProjectID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	resputil.Success(c, members)
}

// AddMember godoc
//
//	@Summary		Add a user to the project
//	@Description	The user must already be a community member
//	@Tags			Project
//	@Produce		json
//	@Security		Bearer
//	@Param			id			path		int	true	"community id"
//	@Param			projectID	path		int	true	"project id"
//	@Param			userID		path		int	true	"user id"
//	@Success		200			{object}	resputil.Response[any]	"added"
//	@Failure		409			{object}	resputil.Response[any]	"already a project member"
//	@Router			/v1/communities/{id}/projects/{projectID}/members/{userID} [post]
func (mgr *ProjectMgr) AddMember(c *gin.Context) {
	var uri ProjectMemberURI
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	token := util.GetToken(c)
	if err := mgr.projects.AddMember(c, token.UserID, uri.ID, uri.ProjectID, uri.UserID); err != nil {
		handleServiceError(c, err)
		return
	}
	resputil.Success(c, gin.H{})
}

// RemoveMember godoc
//
//	@Summary		Remove a user from the project
//	@Tags			Project
//	@Produce		json
//	@Security		Bearer
//	@Param			id			path		int	true	"community id"
//	@Param			projectID	path		int	true	"project id"
//	@Param			userID		path		int	true	"user id"
//	@Success		200			{object}	resputil.Response[any]	"removed"
//	@Failure		404			{object}	resputil.Response[any]	"project member not found"
//	@Router			/v1/communities/{id}/projects/{projectID}/members/{userID} [delete]
func (mgr *ProjectMgr) RemoveMember(c *gin.Context) {
	var uri ProjectMemberURI
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	token := util.GetToken(c)
	if err := mgr.projects.RemoveMember(c, token.UserID, uri.ID, uri.ProjectID, uri.UserID); err != nil {
		handleServiceError(c, err)
		return
	}
	resputil.Success(c, gin.H{})
}
