package http

import (
	"net/http"

	"collaborative-kanban/internal/service"

	"github.com/gin-gonic/gin"
)

// ListHandler 处理列表相关的请求
type ListHandler struct {
	listService *service.ListService
}

// NewListHandler 创建 ListHandler 实例
func NewListHandler(listService *service.ListService) *ListHandler {
	if listService == nil {
		panic("ListService cannot be nil for ListHandler")
	}
	return &ListHandler{listService: listService}
}

type createListRequest struct {
	Name     string `json:"name" binding:"required"`
	Position *int   `json:"position"`
}

// GetLists 处理 GET /api/boards/:boardId/lists
func (h *ListHandler) GetLists(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	lists, err := h.listService.GetLists(c.Request.Context(), userID, c.Param("boardId"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"lists": lists})
}

// CreateList 处理 POST /api/boards/:boardId/lists
func (h *ListHandler) CreateList(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req createListRequest
	if !bindJSON(c, &req, "CreateList") {
		return
	}
	list, err := h.listService.CreateList(c.Request.Context(), userID, c.Param("boardId"), req.Name, req.Position)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, gin.H{"list": list})
}

// UpdateList 处理 PUT /api/lists/:listId
func (h *ListHandler) UpdateList(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req service.UpdateListInput
	if !bindJSON(c, &req, "UpdateList") {
		return
	}
	list, err := h.listService.UpdateList(c.Request.Context(), userID, c.Param("listId"), req)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"list": list})
}

// DeleteList 处理 DELETE /api/lists/:listId
func (h *ListHandler) DeleteList(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.listService.DeleteList(c.Request.Context(), userID, c.Param("listId")); err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"message": "List deleted successfully"})
}
