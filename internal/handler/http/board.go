package http

import (
	"net/http"

	"collaborative-kanban/internal/hub"
	"collaborative-kanban/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// PresenceSource 提供看板的实时在线快照，由 hub.Hub 实现
type PresenceSource interface {
	Presence(boardID string) []hub.PresenceUser
}

// BoardHandler 处理看板、成员、活动、搜索和在线快照相关的请求
type BoardHandler struct {
	boardService    *service.BoardService
	taskService     *service.TaskService
	activityService *service.ActivityService
	presence        PresenceSource
}

// NewBoardHandler 创建 BoardHandler 实例
func NewBoardHandler(boardService *service.BoardService, taskService *service.TaskService, activityService *service.ActivityService, presence PresenceSource) *BoardHandler {
	if boardService == nil {
		panic("BoardService cannot be nil for BoardHandler")
	}
	if taskService == nil {
		panic("TaskService cannot be nil for BoardHandler")
	}
	if activityService == nil {
		panic("ActivityService cannot be nil for BoardHandler")
	}
	if presence == nil {
		panic("PresenceSource cannot be nil for BoardHandler")
	}
	return &BoardHandler{
		boardService:    boardService,
		taskService:     taskService,
		activityService: activityService,
		presence:        presence,
	}
}

type createBoardRequest struct {
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description"`
	Color       string   `json:"color"`
	MemberIDs   []string `json:"memberIds"`
}

type addMemberRequest struct {
	UserID string `json:"userId" binding:"required"`
}

// ListBoards 处理 GET /api/boards?page=&limit=&search=
func (h *BoardHandler) ListBoards(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	page, err := h.boardService.ListBoards(c.Request.Context(), userID, c.Query("search"), pageFromQuery(c, service.DefaultBoardPageSize))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, page)
}

// SearchBoards 处理 GET /api/boards/search?q=
func (h *BoardHandler) SearchBoards(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	q := c.Query("q")
	if q == "" {
		ErrorResponse(c, http.StatusBadRequest, "search query is required")
		return
	}
	page, err := h.boardService.ListBoards(c.Request.Context(), userID, q, pageFromQuery(c, service.DefaultBoardPageSize))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, page)
}

// CreateBoard 处理 POST /api/boards
func (h *BoardHandler) CreateBoard(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req createBoardRequest
	if !bindJSON(c, &req, "CreateBoard") {
		return
	}

	board, err := h.boardService.CreateBoard(c.Request.Context(), userID, service.CreateBoardInput{
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
		MemberIDs:   req.MemberIDs,
	})
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	logrus.WithFields(logrus.Fields{"user_id": userID, "board_id": board.ID}).Info("Handler.CreateBoard: Board created")
	SuccessResponse(c, http.StatusCreated, gin.H{"board": board})
}

// GetBoard 处理 GET /api/boards/:boardId
func (h *BoardHandler) GetBoard(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	board, err := h.boardService.GetBoard(c.Request.Context(), userID, c.Param("boardId"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"board": board})
}

// UpdateBoard 处理 PUT /api/boards/:boardId
func (h *BoardHandler) UpdateBoard(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req service.UpdateBoardInput
	if !bindJSON(c, &req, "UpdateBoard") {
		return
	}
	board, err := h.boardService.UpdateBoard(c.Request.Context(), userID, c.Param("boardId"), req)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"board": board})
}

// DeleteBoard 处理 DELETE /api/boards/:boardId
func (h *BoardHandler) DeleteBoard(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.boardService.DeleteBoard(c.Request.Context(), userID, c.Param("boardId")); err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"message": "Board deleted successfully"})
}

// ListMembers 处理 GET /api/boards/:boardId/members
func (h *BoardHandler) ListMembers(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	members, err := h.boardService.ListMembers(c.Request.Context(), userID, c.Param("boardId"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"members": members})
}

// AddMember 处理 POST /api/boards/:boardId/members
func (h *BoardHandler) AddMember(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req addMemberRequest
	if !bindJSON(c, &req, "AddMember") {
		return
	}
	member, err := h.boardService.AddMember(c.Request.Context(), userID, c.Param("boardId"), req.UserID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, gin.H{"member": member})
}

// RemoveMember 处理 DELETE /api/boards/:boardId/members/:userId
func (h *BoardHandler) RemoveMember(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.boardService.RemoveMember(c.Request.Context(), userID, c.Param("boardId"), c.Param("userId")); err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"message": "Member removed successfully"})
}

// SearchTasks 处理 GET /api/boards/:boardId/search?q=
func (h *BoardHandler) SearchTasks(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	tasks, err := h.taskService.SearchTasks(c.Request.Context(), userID, c.Param("boardId"), c.Query("q"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"tasks": tasks})
}

// ListActivities 处理 GET /api/boards/:boardId/activities
func (h *BoardHandler) ListActivities(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	page, err := h.activityService.ListActivities(c.Request.Context(), userID, c.Param("boardId"), pageFromQuery(c, service.DefaultActivityPageSize))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, page)
}

// Presence 处理 GET /api/boards/:boardId/presence。成员校验由 RequireBoardAccess 完成。
func (h *BoardHandler) Presence(c *gin.Context) {
	boardID := c.GetString("board_id")
	if boardID == "" {
		boardID = c.Param("boardId")
	}
	SuccessResponse(c, http.StatusOK, gin.H{"boardId": boardID, "users": h.presence.Presence(boardID)})
}
