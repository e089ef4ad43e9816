package middleware

import (
	"errors"
	"net/http"

	"collaborative-kanban/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RefKind 指明路由参数是哪种实体的 ID
type RefKind int

const (
	RefBoard RefKind = iota
	RefList
	RefTask
)

// RequireBoardAccess 校验当前用户是路由参数所属看板的成员，并把看板 ID 写入 "board_id"。
// 必须放在 Auth 之后。
func RequireBoardAccess(guard *service.AccessGuard, param string, kind RefKind) gin.HandlerFunc {
	if guard == nil {
		panic("AccessGuard cannot be nil for RequireBoardAccess middleware")
	}

	return func(c *gin.Context) {
		id := c.Param(param)
		var ref service.BoardRef
		switch kind {
		case RefList:
			ref = service.BoardOfList(id)
		case RefTask:
			ref = service.BoardOfTask(id)
		default:
			ref = service.BoardByID(id)
		}

		userID, _ := UserID(c)
		logCtx := logrus.WithFields(logrus.Fields{"user_id": userID, param: id})
		board, err := guard.RequireMember(c.Request.Context(), userID, ref)
		if err != nil {
			var svcErr *service.Error
			switch {
			case errors.As(err, &svcErr) && errors.Is(err, service.ErrUnauthorized):
				c.JSON(http.StatusUnauthorized, gin.H{"error": svcErr.Message})
			case errors.As(err, &svcErr) && errors.Is(err, service.ErrForbidden):
				logCtx.Warn("Board access denied")
				c.JSON(http.StatusForbidden, gin.H{"error": svcErr.Message})
			case errors.As(err, &svcErr) && errors.Is(err, service.ErrNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": svcErr.Message})
			default:
				logCtx.WithError(err).Error("Board access check failed")
				c.JSON(http.StatusInternalServerError, gin.H{"error": "An unexpected error occurred"})
			}
			c.Abort()
			return
		}

		c.Set("board_id", board.ID)
		c.Next()
	}
}
