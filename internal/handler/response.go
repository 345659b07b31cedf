package handler

import (
	"net/http"

	"github.com/blues/pss/internal/presale"
	"github.com/gin-gonic/gin"
)

// SuccessResponse 成功响应
func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ErrorResponse 错误响应
func ErrorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, Response{
		Success: false,
		Message: message,
		Data:    nil,
	})
}

// EngineErrorResponse 按错误类别映射HTTP状态码
func EngineErrorResponse(c *gin.Context, err error) {
	ErrorResponse(c, statusOf(err), err.Error())
}

func statusOf(err error) int {
	switch presale.KindOf(err) {
	case presale.KindInvalidConfiguration, presale.KindTemporalViolation, presale.KindCapacityExceeded:
		return http.StatusBadRequest
	case presale.KindStateConflict, presale.KindSolvencyViolation:
		return http.StatusConflict
	case presale.KindAuthorizationFailure:
		return http.StatusForbidden
	case presale.KindTransferFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
