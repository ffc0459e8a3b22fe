package util

import (
	"sync"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/commune-hq/commune/dao/model"
	"github.com/commune-hq/commune/pkg/config"
	"github.com/commune-hq/commune/pkg/logutils"
)

type (
	JWTClaims struct {
		UserID       uint       `json:"ui"`
		Username     string     `json:"un"`
		RolePlatform model.Role `json:"rp"`
		jwt.RegisteredClaims
	}
	JWTMessage struct {
		UserID       uint       `json:"userID"`       // User ID
		Username     string     `json:"username"`     // Username
		RolePlatform model.Role `json:"rolePlatform"` // Role in platform (e.g. guest, user, admin)
	}
)

type TokenManager struct {
	secretKey       string
	refreshKey      string
	accessTokenTTL  int
	refreshTokenTTL int
}

var (
	once     sync.Once
	tokenMgr *TokenManager
)

func GetTokenMgr() *TokenManager {
	once.Do(func() {
		tokenConfig := config.NewTokenConf()
		tokenMgr = newTokenManager(tokenConfig.AccessTokenSecret,
			tokenConfig.RefreshTokenSecret,
			tokenConfig.AccessTokenExpiryHour,
			tokenConfig.RefreshTokenExpiryHour,
		)
	})
	return tokenMgr
}

func newTokenManager(secretKey, refreshKey string, accessTokenTTL, refreshTokenTTL int) *TokenManager {
	return &TokenManager{
		secretKey,
		refreshKey,
		accessTokenTTL,
		refreshTokenTTL,
	}
}

func (tm *TokenManager) createToken(msg *JWTMessage, key string, ttl int) (string, error) {
	expiresAt := time.Now().Add(time.Hour * time.Duration(ttl))

	claims := &JWTClaims{
		UserID:       msg.UserID,
		Username:     msg.Username,
		RolePlatform: msg.RolePlatform,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(key))
}

// CreateTokens creates a new access token and a new refresh token
func (tm *TokenManager) CreateTokens(msg *JWTMessage) (
	accessToken string, refreshToken string, err error) {
	accessToken, err = tm.createToken(msg, tm.secretKey, tm.accessTokenTTL)
	if err != nil {
		logutils.Log.Error(err)
		return "", "", err
	}
	refreshToken, err = tm.createToken(msg, tm.refreshKey, tm.refreshTokenTTL)
	if err != nil {
		logutils.Log.Error(err)
		return "", "", err
	}
	return accessToken, refreshToken, nil
}

func (tm *TokenManager) CheckToken(requestToken string) (JWTMessage, error) {
	return tm.check(requestToken, tm.secretKey)
}

// CheckRefreshToken validates a refresh token and returns its payload.
func (tm *TokenManager) CheckRefreshToken(requestToken string) (JWTMessage, error) {
	return tm.check(requestToken, tm.refreshKey)
}

func (tm *TokenManager) check(requestToken, key string) (JWTMessage, error) {
	claims := JWTClaims{}
	_, err := jwt.ParseWithClaims(requestToken, &claims, func(_ *jwt.Token) (any, error) {
		return []byte(key), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	return JWTMessage{
		UserID:       claims.UserID,
		Username:     claims.Username,
		RolePlatform: claims.RolePlatform,
	}, err
}
