package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/commune-hq/commune/dao/model"
	"github.com/commune-hq/commune/internal/payload"
	"github.com/commune-hq/commune/internal/resputil"
	"github.com/commune-hq/commune/internal/service"
	"github.com/commune-hq/commune/internal/util"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewTaskMgr)
}

type TaskMgr struct {
	name  string
	tasks *service.TaskService
}

func NewTaskMgr(conf *RegisterConfig) Manager {
	return &TaskMgr{
		name:  "tasks",
		tasks: conf.Tasks,
	}
}

func (mgr *TaskMgr) GetName() string { return mgr.name }

func (mgr *TaskMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *TaskMgr) RegisterProtected(g *gin.RouterGroup) {
	g.POST("communities/:id/tasks", mgr.Create)
	g.GET("communities/:id/tasks", mgr.List)
	g.GET("communities/:id/tasks/:taskID", mgr.Get)
	g.PUT("communities/:id/tasks/:taskID", mgr.Update)
	g.DELETE("communities/:id/tasks/:taskID", mgr.Delete)
}

func (mgr *TaskMgr) RegisterAdmin(_ *gin.RouterGroup) {}

type (
	TaskURI struct {
		ID     uint `uri:"id" binding:"required"`
		TaskID uint `uri:"taskID" binding:"required"`
	}

	TaskReq struct {
		Title        string             `json:"title" binding:"required,max=200"`
		Description  string             `json:"description"`
		Status       model.TaskStatus   `json:"status"`
		Priority     model.TaskPriority `json:"priority"`
		ProjectID    *uint              `json:"projectID"`
		AssignedToID *uint              `json:"assignedToID"`
		DueDate      *time.Time         `json:"dueDate"`
	}

	TaskListQuery struct {
		PageIndex    *int               `form:"page_index" binding:"required"`
		PageSize     *int               `form:"page_size" binding:"required"`
		Status       model.TaskStatus   `form:"status"`
		Priority     model.TaskPriority `form:"priority"`
		ProjectID    *uint              `form:"projectID"`
		AssignedToID *uint              `form:"assignedToID"`
	}
)

func (r *TaskReq) toService() service.TaskReq {
	return service.TaskReq{
		Title:        r.Title,
		Description:  r.Description,
		Status:       r.Status,
		Priority:     r.Priority,
		ProjectID:    r.ProjectID,
		AssignedToID: r.AssignedToID,
		DueDate:      r.DueDate,
	}
}

// Create godoc
//
//	@Summary		Create a task
//	@Description	Any member may create; assigning requires admin or owner
//	@Tags			Task
//	@Accept			json
//	@Produce		json
//	@Security		Bearer
//	@Param			id		path		int	true	"community id"
//	@Param			data	body		TaskReq	true	"task"
//	@Success		200		{object}	resputil.Response[model.Task]	"created task"
//	@Failure		404		{object}	resputil.Response[any]	"project or assignee not in this community"
//	@Router			/v1/communities/{id}/tasks [post]
func (mgr *TaskMgr) Create(c *gin.Context) {
	var uri CommunityURI
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	var req TaskReq
	if err := c.ShouldBind(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	token := util.GetToken(c)
	task, err := mgr.tasks.Create(c, token.UserID, uri.ID, req.toService())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	resputil.Success(c, task)
}

// List godoc
//
//	@Summary		List tasks
//	@Description	Optional filters on status, priority, project and assignee
//	@Tags			Task
//	@Produce		json
//	@Security		Bearer
//	@Param			id			path		int	true	"community id"
//	@Param			page_index	query		int	true	"0-based page"
//	@Param			page_size	query		int	true	"page size"
//	@Success		200			{object}	resputil.Response[payload.ListResp[model.Task]]	"tasks"
//	@Router			/v1/communities/{id}/tasks [get]
func (mgr *TaskMgr) List(c *gin.Context) {
	var uri CommunityURI
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	var query TaskListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	token := util.GetToken(c)
	offset, limit := payload.Window(*query.PageIndex, *query.PageSize)
	rows, count, err := mgr.tasks.List(c, token.UserID, uri.ID, service.TaskFilter{
		Status:       query.Status,
		Priority:     query.Priority,
		ProjectID:    query.ProjectID,
		AssignedToID: query.AssignedToID,
	}, offset, limit)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	resputil.Success(c, payload.ListResp[model.Task]{Rows: rows, Count: count})
}

// Get godoc
//
//	@Summary		Get a task
//	@Tags			Task
//	@Produce		json
//	@Security		Bearer
//	@Param			id		path		int	true	"community id"
//	@Param			taskID	path		int	true	"task id"
//	@Success		200		{object}	resputil.Response[model.Task]	"task"
//	@Failure		404		{object}	resputil.Response[any]	"task not found"
//	@Router			/v1/communities/{id}/tasks/{taskID} [get]
func (mgr *TaskMgr) Get(c *gin.Context) {
	var uri TaskURI
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	token := util.GetToken(c)
	task, err := mgr.tasks.Get(c, token.UserID, uri.ID, uri.TaskID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	resputil.Success(c, task)
}

// Update godoc
//
//	@Summary		Update a task
//	@Description	The author and assignee may edit their own task; reassignment requires admin or owner
//	@Tags			Task
//	@Accept			json
//	@Produce		json
//	@Security		Bearer
//	@Param			id		path		int	true	"community id"
//	@Param			taskID	path		int	true	"task id"
//	@Param			data	body		TaskReq	true	"fields to change"
//	@Success		200		{object}	resputil.Response[model.Task]	"updated task"
//	@Router			/v1/communities/{id}/tasks/{taskID} [put]
func (mgr *TaskMgr) Update(c *gin.Context) {
	var uri TaskURI
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	var req TaskReq
	if err := c.ShouldBind(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	token := util.GetToken(c)
	task, err := mgr.tasks.Update(c, token.UserID, uri.ID, uri.TaskID, req.toService())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	resputil.Success(c, task)
}

// Delete godoc
//
//	@Summary		Delete a task
//	@Description	The author may delete their own task; otherwise admin or owner
//	@Tags			Task
//	@Produce		json
//	@Security		Bearer
//	@Param			id		path		int	true	"community id"
//	@Param			taskID	path		int	true	"task id"
//	@Success		200		{object}	resputil.Response[any]	"deleted"
//	@Router			/v1/communities/{id}/tasks/{taskID} [delete]
func (mgr *TaskMgr) Delete(c *gin.Context) {
	var uri TaskURI
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	token := util.GetToken(c)
	if err := mgr.tasks.Delete(c, token.UserID, uri.ID, uri.TaskID); err != nil {
		handleServiceError(c, err)
		return
	}
	resputil.Success(c, gin.H{})
}
