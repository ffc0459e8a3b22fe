package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"k8s.io/utils/ptr"

	"github.com/commune-hq/commune/dao/model"
	"github.com/commune-hq/commune/internal/payload"
	"github.com/commune-hq/commune/internal/resputil"
	"github.com/commune-hq/commune/internal/util"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewUserMgr)
}

type UserMgr struct {
	name string
	db   *gorm.DB
}

func NewUserMgr(conf *RegisterConfig) Manager {
	return &UserMgr{
		name: "users",
		db:   conf.DB,
	}
}

func (mgr *UserMgr) GetName() string { return mgr.name }

func (mgr *UserMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *UserMgr) RegisterProtected(g *gin.RouterGroup) {
	g.GET("users/me", mgr.GetProfile)
	g.PUT("users/me", mgr.UpdateProfile)
}

func (mgr *UserMgr) RegisterAdmin(g *gin.RouterGroup) {
	g.GET("users", mgr.List)
	g.PUT("users/:userID/role", mgr.ChangePlatformRole)
	g.PUT("users/:userID/status", mgr.ChangeStatus)
}

type (
	UserURI struct {
		UserID uint `uri:"userID" binding:"required"`
	}

	// UserResp never carries the password hash.
	UserResp struct {
		ID       uint         `json:"id"`
		Name     string       `json:"name"`
		Nickname *string      `json:"nickname"`
		Email    string       `json:"email"`
		Role     model.Role   `json:"role"`
		Status   model.Status `json:"status"`
	}

	UpdateProfileReq struct {
		Nickname *string `json:"nickname"`
		// Changing the password requires the current one.
		OldPassword string `json:"oldPassword"`
		NewPassword string `json:"newPassword" binding:"omitempty,min=8,max=72"`
	}

	PlatformRoleReq struct {
		Role model.Role `json:"role" binding:"required"`
	}

	StatusReq struct {
		Status model.Status `json:"status" binding:"required"`
	}
)

func toUserResp(u *model.User) UserResp {
	return UserResp{
		ID:       u.ID,
		Name:     u.Name,
		Nickname: u.Nickname,
		Email:    u.Email,
		Role:     u.Role,
		Status:   u.Status,
	}
}

// GetProfile godoc
//
//	@Summary		Get my profile
//	@Tags			User
//	@Produce		json
//	@Security		Bearer
//	@Success		200	{object}	resputil.Response[UserResp]	"profile"
//	@Router			/v1/users/me [get]
func (mgr *UserMgr) GetProfile(c *gin.Context) {
	token := util.GetToken(c)
	var user model.User
	if err := mgr.db.WithContext(c).First(&user, token.UserID).Error; err != nil {
		resputil.NotFoundError(c, "user not found")
		return
	}
	resputil.Success(c, toUserResp(&user))
}

// UpdateProfile godoc
//
//	@Summary		Update my profile
//	@Description	Nickname and, given the current password, the password
//	@Tags			User
//	@Accept			json
//	@Produce		json
//	@Security		Bearer
//	@Param			data	body		UpdateProfileReq	true	"fields to change"
//	@Success		200		{object}	resputil.Response[UserResp]	"updated profile"
//	@Failure		403		{object}	resputil.Response[any]	"wrong current password"
//	@Router			/v1/users/me [put]
func (mgr *UserMgr) UpdateProfile(c *gin.Context) {
	var req UpdateProfileReq
	if err := c.ShouldBind(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	token := util.GetToken(c)
	var user model.User
	if err := mgr.db.WithContext(c).First(&user, token.UserID).Error; err != nil {
		resputil.NotFoundError(c, "user not found")
		return
	}

	if req.Nickname != nil {
		user.Nickname = req.Nickname
	}
	if req.NewPassword != "" {
		if user.Password == nil ||
			bcrypt.CompareHashAndPassword([]byte(*user.Password), []byte(req.OldPassword)) != nil {
			resputil.ForbiddenError(c, "current password does not match")
			return
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			resputil.Error(c, err.Error(), resputil.NotSpecified)
			return
		}
		user.Password = ptr.To(string(hash))
	}

	if err := mgr.db.WithContext(c).Save(&user).Error; err != nil {
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}
	resputil.Success(c, toUserResp(&user))
}

// List godoc
//
//	@Summary		List users
//	@Description	Platform admin only
//	@Tags			User
//	@Produce		json
//	@Security		Bearer
//	@Param			page_index	query		int	true	"0-based page"
//	@Param			page_size	query		int	true	"page size"
//	@Success		200			{object}	resputil.Response[payload.ListResp[UserResp]]	"users"
//	@Router			/v1/admin/users [get]
func (mgr *UserMgr) List(c *gin.Context) {
	var query payload.ListReqQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	offset, limit := payload.Window(*query.PageIndex, *query.PageSize)

	var count int64
	if err := mgr.db.WithContext(c).Model(&model.User{}).Count(&count).Error; err != nil {
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}
	var users []model.User
	if err := mgr.db.WithContext(c).
		Order("id ASC").
		Offset(offset).Limit(limit).
		Find(&users).Error; err != nil {
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}

	rows := lo.Map(users, func(u model.User, _ int) UserResp {
		return toUserResp(&u)
	})
	resputil.Success(c, payload.ListResp[UserResp]{Rows: rows, Count: count})
}

// ChangePlatformRole godoc
//
//	@Summary		Change a user's platform role
//	@Description	Platform admin only; admins cannot demote themselves
//	@Tags			User
//	@Accept			json
//	@Produce		json
//	@Security		Bearer
//	@Param			userID	path		int	true	"user id"
//	@Param			data	body		PlatformRoleReq	true	"new role"
//	@Success		200		{object}	resputil.Response[any]	"changed"
//	@Router			/v1/admin/users/{userID}/role [put]
func (mgr *UserMgr) ChangePlatformRole(c *gin.Context) {
	var uri UserURI
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	var req PlatformRoleReq
	if err := c.ShouldBind(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	token := util.GetToken(c)
	if uri.UserID == token.UserID {
		resputil.BadRequestError(c, "cannot change your own platform role")
		return
	}
	res := mgr.db.WithContext(c).Model(&model.User{}).
		Where("id = ?", uri.UserID).
		Update("role", req.Role)
	if res.Error != nil {
		resputil.Error(c, res.Error.Error(), resputil.NotSpecified)
		return
	}
	if res.RowsAffected == 0 {
		resputil.NotFoundError(c, "user not found")
		return
	}
	resputil.Success(c, gin.H{})
}

// ChangeStatus godoc
//
//	@Summary		Activate or deactivate a user
//	@Description	Platform admin only; a deactivated user cannot log in or mutate
//	@Tags			User
//	@Accept			json
//	@Produce		json
//	@Security		Bearer
//	@Param			userID	path		int	true	"user id"
//	@Param			data	body		StatusReq	true	"new status"
//	@Success		200		{object}	resputil.Response[any]	"changed"
//	@Router			/v1/admin/users/{userID}/status [put]
func (mgr *UserMgr) ChangeStatus(c *gin.Context) {
	var uri UserURI
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	var req StatusReq
	if err := c.ShouldBind(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	token := util.GetToken(c)
	if uri.UserID == token.UserID {
		resputil.BadRequestError(c, "cannot change your own status")
		return
	}
	res := mgr.db.WithContext(c).Model(&model.User{}).
		Where("id = ?", uri.UserID).
		Update("status", req.Status)
	if res.Error != nil {
		resputil.Error(c, res.Error.Error(), resputil.NotSpecified)
		return
	}
	if res.RowsAffected == 0 {
		resputil.NotFoundError(c, "user not found")
		return
	}
	resputil.Success(c, gin.H{})
}
