package http

import (
	"errors"
	"net/http"

	"collaborative-kanban/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// HandleServiceError 按错误类别映射 HTTP 状态码。未归类的错误一律返回 500 并记录完整错误。
func HandleServiceError(c *gin.Context, err error) {
	var svcErr *service.Error
	if !errors.As(err, &svcErr) {
		logrus.WithError(err).WithField("path", c.FullPath()).Error("Unhandled internal server error")
		ErrorResponse(c, http.StatusInternalServerError, "An unexpected error occurred")
		return
	}

	switch {
	case errors.Is(err, service.ErrUnauthorized):
		ErrorResponse(c, http.StatusUnauthorized, svcErr.Message)
	case errors.Is(err, service.ErrForbidden):
		ErrorResponse(c, http.StatusForbidden, svcErr.Message)
	case errors.Is(err, service.ErrNotFound):
		ErrorResponse(c, http.StatusNotFound, svcErr.Message)
	case errors.Is(err, service.ErrBadRequest):
		ErrorResponse(c, http.StatusBadRequest, svcErr.Message)
	case errors.Is(err, service.ErrConflict):
		ErrorResponse(c, http.StatusConflict, svcErr.Message)
	default:
		logrus.WithError(err).WithField("path", c.FullPath()).Error("Unhandled internal server error")
		ErrorResponse(c, http.StatusInternalServerError, "An unexpected error occurred")
	}
}
