package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	ldap "github.com/go-ldap/ldap/v3"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"k8s.io/utils/ptr"

	"github.com/commune-hq/commune/dao/model"
	"github.com/commune-hq/commune/internal/resputil"
	"github.com/commune-hq/commune/internal/util"
	"github.com/commune-hq/commune/pkg/codes"
	"github.com/commune-hq/commune/pkg/config"
	"github.com/commune-hq/commune/pkg/logutils"
	"github.com/commune-hq/commune/pkg/mailer"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewAuthMgr)
}

type AuthMgr struct {
	name     string
	db       *gorm.DB
	tokenMgr *util.TokenManager
	mailer   *mailer.Mailer
	codes    *codes.Store
}

func NewAuthMgr(conf *RegisterConfig) Manager {
	return &AuthMgr{
		name:     "auth",
		db:       conf.DB,
		tokenMgr: util.GetTokenMgr(),
		mailer:   conf.Mailer,
		codes:    conf.Codes,
	}
}

func (mgr *AuthMgr) GetName() string { return mgr.name }

func (mgr *AuthMgr) RegisterPublic(g *gin.RouterGroup) {
	g.POST("/signup", mgr.Signup)
	g.POST("/signup/code", mgr.RequestSignupCode)
	g.POST("/login", mgr.Login)
	g.POST("/refresh", mgr.RefreshToken)
}

func (mgr *AuthMgr) RegisterProtected(_ *gin.RouterGroup) {}
func (mgr *AuthMgr) RegisterAdmin(_ *gin.RouterGroup)     {}

type (
	SignupReq struct {
		Username string `json:"username" binding:"required,min=2,max=32"`
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=8,max=72"`
		Nickname string `json:"nickname"`
		// Code is the e-mailed verification code, required only when
		// e-mail verification is enabled.
		Code string `json:"code"`
	}

	LoginReq struct {
		Username   string `json:"username" binding:"required"`
		Password   string `json:"password" binding:"required"`
		AuthMethod string `json:"auth" binding:"required"` // [normal, ldap]
	}

	LoginResp struct {
		AccessToken  string     `json:"accessToken"`
		RefreshToken string     `json:"refreshToken"`
		RolePlatform model.Role `json:"rolePlatform"`
	}
)

const (
	AuthMethodNormal = "normal"
	AuthMethodLDAP   = "ldap"
)

// RequestSignupCode godoc
//
//	@Summary		Request an e-mail verification code
//	@Description	Sends a one-shot code to the given address when e-mail verification is enabled
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			data	body		SignupCodeReq	true	"email"
//	@Success		200		{object}	resputil.Response[any]	"code sent"
//	@Failure		400		{object}	resputil.Response[any]	"request parameter error"
//	@Router			/v1/signup/code [post]
func (mgr *AuthMgr) RequestSignupCode(c *gin.Context) {
	var req SignupCodeReq
	if err := c.ShouldBind(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	if !mgr.verificationEnabled() {
		resputil.BadRequestError(c, "e-mail verification is not enabled")
		return
	}
	code, err := mgr.codes.IssueSignupCode(c, req.Email)
	if err != nil {
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}
	if err := mgr.mailer.SendVerificationCode(req.Email, code, codes.DefaultTTL); err != nil {
		logutils.Log.Error("send verification code: ", err)
		resputil.Error(c, "failed to send verification code", resputil.NotSpecified)
		return
	}
	resputil.Success(c, gin.H{})
}

type SignupCodeReq struct {
	Email string `json:"email" binding:"required,email"`
}

// Signup godoc
//
//	@Summary		Register a new account
//	@Description	Creates a user with a bcrypt password hash
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			data	body		SignupReq	true	"signup request"
//	@Success		200		{object}	resputil.Response[LoginResp]	"tokens for the new account"
//	@Failure		400		{object}	resputil.Response[any]	"request parameter error"
//	@Failure		409		{object}	resputil.Response[any]	"username or email taken"
//	@Router			/v1/signup [post]
func (mgr *AuthMgr) Signup(c *gin.Context) {
	var req SignupReq
	if err := c.ShouldBind(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}

	if mgr.verificationEnabled() {
		if req.Code == "" {
			resputil.HTTPError(c, http.StatusForbidden, "e-mail verification code required", resputil.UserEmailNotVerified)
			return
		}
		if err := mgr.codes.ConsumeSignupCode(c, req.Email, req.Code); err != nil {
			resputil.HTTPError(c, http.StatusForbidden, err.Error(), resputil.UserEmailNotVerified)
			return
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}
	user := model.User{
		Name:     req.Username,
		Email:    req.Email,
		Password: ptr.To(string(hash)),
		Role:     model.RoleUser,
		Status:   model.StatusActive,
	}
	if req.Nickname != "" {
		user.Nickname = ptr.To(req.Nickname)
	}

	err = mgr.db.WithContext(c).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.User{}).
			Where("name = ? OR email = ?", req.Username, req.Email).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return errors.New("username or email already registered")
		}
		return tx.Create(&user).Error
	})
	if err != nil {
		resputil.ConflictError(c, err.Error())
		return
	}

	mgr.respondWithTokens(c, &user)
}

// Login godoc
//
//	@Summary		User login
//	@Description	Verifies credentials and returns JWT tokens
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			data	body		LoginReq	true	"login request"
//	@Success		200		{object}	resputil.Response[LoginResp]	"JWT tokens"
//	@Failure		400		{object}	resputil.Response[any]	"request parameter error"
//	@Failure		401		{object}	resputil.Response[any]	"wrong username or password"
//	@Router			/v1/login [post]
func (mgr *AuthMgr) Login(c *gin.Context) {
	var req LoginReq
	if err := c.ShouldBind(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}

	l := logutils.Log.WithFields(logutils.Fields{
		"username": req.Username,
		"auth":     req.AuthMethod,
	})

	switch req.AuthMethod {
	case AuthMethodNormal:
		if err := mgr.normalAuth(c, req.Username, req.Password); err != nil {
			l.Error("invalid credentials: ", err)
			resputil.HTTPError(c, http.StatusUnauthorized, "Invalid credentials", resputil.InvalidCredentials)
			return
		}
	case AuthMethodLDAP:
		if err := mgr.ldapAuth(req.Username, req.Password); err != nil {
			l.Error("invalid credentials: ", err)
			resputil.HTTPError(c, http.StatusUnauthorized, "Invalid credentials", resputil.InvalidCredentials)
			return
		}
	default:
		l.Error("invalid auth method: ", req.AuthMethod)
		resputil.HTTPError(c, http.StatusBadRequest, "Invalid auth method", resputil.InvalidRequest)
		return
	}

	var user model.User
	err := mgr.db.WithContext(c).Where("name = ?", req.Username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// LDAP-authenticated users get a local account on first login.
		if req.AuthMethod != AuthMethodLDAP {
			resputil.HTTPError(c, http.StatusUnauthorized, "Invalid credentials", resputil.InvalidCredentials)
			return
		}
		user = model.User{
			Name:   req.Username,
			Email:  req.Username + "@" + config.GetConfig().Host,
			Role:   model.RoleUser,
			Status: model.StatusActive,
		}
		if err = mgr.db.WithContext(c).Create(&user).Error; err != nil {
			l.Error("create ldap user: ", err)
			resputil.Error(c, "Create user failed", resputil.NotSpecified)
			return
		}
	} else if err != nil {
		l.Error(err)
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}

	if user.Status != model.StatusActive {
		resputil.HTTPError(c, http.StatusUnauthorized, "User is not active", resputil.UserNotAllowed)
		return
	}

	mgr.respondWithTokens(c, &user)
}

func (mgr *AuthMgr) respondWithTokens(c *gin.Context, user *model.User) {
	msg := util.JWTMessage{
		UserID:       user.ID,
		Username:     user.Name,
		RolePlatform: user.Role,
	}
	accessToken, refreshToken, err := mgr.tokenMgr.CreateTokens(&msg)
	if err != nil {
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}
	resputil.Success(c, LoginResp{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		RolePlatform: user.Role,
	})
}

func (mgr *AuthMgr) normalAuth(c *gin.Context, username, password string) error {
	var user model.User
	if err := mgr.db.WithContext(c).Where("name = ?", username).First(&user).Error; err != nil {
		return fmt.Errorf("user not found")
	}
	if user.Password == nil {
		return fmt.Errorf("user does not have a password")
	}
	if bcrypt.CompareHashAndPassword([]byte(*user.Password), []byte(password)) != nil {
		return fmt.Errorf("wrong username or password")
	}
	return nil
}

func (mgr *AuthMgr) ldapAuth(username, password string) error {
	authConfig := config.GetConfig().LDAP
	if !authConfig.Enable {
		return fmt.Errorf("ldap auth is disabled")
	}
	l, err := ldap.DialURL(authConfig.Address)
	if err != nil {
		return err
	}
	defer l.Close()

	if err = l.Bind(authConfig.UserName, authConfig.Password); err != nil {
		return err
	}

	searchRequest := ldap.NewSearchRequest(
		authConfig.SearchDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 0, 0, false,
		fmt.Sprintf("(sAMAccountName=%s)", username),
		[]string{"dn"},
		nil,
	)
	searchResult, err := l.Search(searchRequest)
	if err != nil {
		return err
	}
	if len(searchResult.Entries) != 1 {
		return fmt.Errorf("user not found or too many entries returned")
	}
	return l.Bind(searchResult.Entries[0].DN, password)
}

type (
	RefreshReq struct {
		RefreshToken string `json:"refreshToken" binding:"required"`
	}

	RefreshResp struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
)

// RefreshToken godoc
//
//	@Summary		Refresh the access token
//	@Description	Exchanges a refresh token for a new token pair
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			data	body		RefreshReq	true	"refresh token"
//	@Success		200		{object}	resputil.Response[RefreshResp]	"new tokens"
//	@Failure		401		{object}	resputil.Response[any]	"refresh token invalid"
//	@Router			/v1/refresh [post]
func (mgr *AuthMgr) RefreshToken(c *gin.Context) {
	var request RefreshReq
	if err := c.ShouldBind(&request); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}

	claims, err := mgr.tokenMgr.CheckRefreshToken(request.RefreshToken)
	if err != nil {
		resputil.HTTPError(c, http.StatusUnauthorized, "Invalid refresh token", resputil.TokenExpired)
		return
	}

	// Re-read the user so a role change or deactivation takes effect at
	// refresh time.
	var user model.User
	if err := mgr.db.WithContext(c).First(&user, claims.UserID).Error; err != nil {
		resputil.HTTPError(c, http.StatusUnauthorized, "User not found", resputil.TokenInvalid)
		return
	}
	if user.Status != model.StatusActive {
		resputil.HTTPError(c, http.StatusUnauthorized, "User is not active", resputil.UserNotAllowed)
		return
	}

	msg := util.JWTMessage{
		UserID:       user.ID,
		Username:     user.Name,
		RolePlatform: user.Role,
	}
	accessToken, refreshToken, err := mgr.tokenMgr.CreateTokens(&msg)
	if err != nil {
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}
	resputil.Success(c, RefreshResp{AccessToken: accessToken, RefreshToken: refreshToken})
}

func (mgr *AuthMgr) verificationEnabled() bool {
	return config.GetConfig().Signup.RequireEmailVerification &&
		mgr.codes != nil && mgr.mailer != nil
}
