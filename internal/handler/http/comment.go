package http

import (
	"net/http"

	"collaborative-kanban/internal/service"

	"github.com/gin-gonic/gin"
)

// CommentHandler 处理任务评论
type CommentHandler struct {
	commentService *service.CommentService
}

func NewCommentHandler(commentService *service.CommentService) *CommentHandler {
	if commentService == nil {
		panic("CommentService cannot be nil for CommentHandler")
	}
	return &CommentHandler{commentService: commentService}
}

type addCommentRequest struct {
	Content string `json:"content" binding:"required"`
}

// ListComments 处理 GET /api/tasks/:taskId/comments
func (h *CommentHandler) ListComments(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	comments, err := h.commentService.ListComments(c.Request.Context(), userID, c.Param("taskId"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"comments": comments})
}

// AddComment 处理 POST /api/tasks/:taskId/comments
func (h *CommentHandler) AddComment(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req addCommentRequest
	if !bindJSON(c, &req, "AddComment") {
		return
	}
	comment, err := h.commentService.AddComment(c.Request.Context(), userID, c.Param("taskId"), req.Content)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, gin.H{"comment": comment})
}
