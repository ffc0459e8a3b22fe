package resputil

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the JSON envelope of every endpoint. The generic
// parameter only exists for swagger; at runtime gin.H is used.
type Response[T any] struct {
	Code ErrorCode `json:"code"`
	Data T         `json:"data"`
	Msg  string    `json:"msg"`
}

func wrapResponse(c *gin.Context, httpCode int, msg string, data interface{}, code ErrorCode) {
	c.JSON(httpCode, gin.H{
		"code": code,
		"data": data,
		"msg":  msg,
	})
}

func Success(c *gin.Context, data interface{}) {
	wrapResponse(c, http.StatusOK, "", data, OK)
}

// Error reports a failure the handler cannot classify further.
func Error(c *gin.Context, msg string, errorCode ErrorCode) {
	wrapResponse(c, http.StatusInternalServerError, msg, nil, errorCode)
}

// HTTPError reports a failure with an explicit HTTP status.
func HTTPError(c *gin.Context, httpCode int, msg string, errorCode ErrorCode) {
	wrapResponse(c, httpCode, msg, nil, errorCode)
}

func BadRequestError(c *gin.Context, msg string) {
	wrapResponse(c, http.StatusBadRequest, msg, nil, InvalidRequest)
}

func NotFoundError(c *gin.Context, msg string) {
	wrapResponse(c, http.StatusNotFound, msg, nil, ResourceNotFound)
}

func ForbiddenError(c *gin.Context, msg string) {
	wrapResponse(c, http.StatusForbidden, msg, nil, UserNotAllowed)
}

func ConflictError(c *gin.Context, msg string) {
	wrapResponse(c, http.StatusConflict, msg, nil, StateConflict)
}
