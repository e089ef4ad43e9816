package http

import (
	"net/http"
	"strconv"

	"collaborative-kanban/internal/middleware"
	"collaborative-kanban/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func ErrorResponse(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{"error": message})
}

func SuccessResponse(c *gin.Context, code int, data interface{}) {
	c.JSON(code, data)
}

// currentUser 读取 Auth 中间件设置的用户 ID，缺失时直接返回 401
func currentUser(c *gin.Context) (string, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		logrus.WithField("path", c.FullPath()).Warn("Handler: User ID not found in context, middleware missing or failed?")
		ErrorResponse(c, http.StatusUnauthorized, "User not authenticated")
	}
	return userID, ok
}

// bindJSON 绑定请求体，失败时返回 400
func bindJSON(c *gin.Context, req interface{}, handler string) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		logrus.WithError(err).Warnf("Handler.%s: Invalid input format", handler)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": err.Error()})
		return false
	}
	return true
}

// pageFromQuery 读取 page/limit 查询参数，非法值按默认处理
func pageFromQuery(c *gin.Context, def int) service.Page {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	return service.NewPage(page, limit, def)
}
