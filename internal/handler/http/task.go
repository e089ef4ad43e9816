package http

import (
	"bytes"
	"encoding/json"
	"net/http"

	"collaborative-kanban/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// TaskHandler 处理任务、任务移动和负责人相关的请求
type TaskHandler struct {
	taskService *service.TaskService
}

// NewTaskHandler 创建 TaskHandler 实例
func NewTaskHandler(taskService *service.TaskService) *TaskHandler {
	if taskService == nil {
		panic("TaskService cannot be nil for TaskHandler")
	}
	return &TaskHandler{taskService: taskService}
}

type createTaskRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	DueDate     string `json:"dueDate"`
	Position    *int   `json:"position"`
	Cid         string `json:"cid"`
}

// updateTaskRequest 中 dueDate 为 null 表示清空，缺省表示不修改
type updateTaskRequest struct {
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	Priority    *string         `json:"priority"`
	Status      *string         `json:"status"`
	DueDate     json.RawMessage `json:"dueDate"`
	Position    *int            `json:"position"`
}

func (r updateTaskRequest) toInput() (service.UpdateTaskInput, bool) {
	in := service.UpdateTaskInput{
		Title:       r.Title,
		Description: r.Description,
		Priority:    r.Priority,
		Status:      r.Status,
		Position:    r.Position,
	}
	if len(r.DueDate) > 0 {
		var due string
		if !bytes.Equal(bytes.TrimSpace(r.DueDate), []byte("null")) {
			if err := json.Unmarshal(r.DueDate, &due); err != nil {
				return in, false
			}
		}
		in.DueDate = &due
	}
	return in, true
}

type moveTaskRequest struct {
	ListID   string `json:"listId" binding:"required"`
	Position *int   `json:"position" binding:"required"`
}

type assignRequest struct {
	UserID string `json:"userId" binding:"required"`
}

// ListTasks 处理 GET /api/lists/:listId/tasks?page=&limit=
func (h *TaskHandler) ListTasks(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	page, err := h.taskService.ListTasks(c.Request.Context(), userID, c.Param("listId"), pageFromQuery(c, service.DefaultTaskPageSize))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, page)
}

// CreateTask 处理 POST /api/lists/:listId/tasks。响应原样带回客户端的 cid。
func (h *TaskHandler) CreateTask(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req createTaskRequest
	if !bindJSON(c, &req, "CreateTask") {
		return
	}

	task, err := h.taskService.CreateTask(c.Request.Context(), userID, c.Param("listId"), service.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		DueDate:     req.DueDate,
		Position:    req.Position,
		Cid:         req.Cid,
	})
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	logrus.WithFields(logrus.Fields{"user_id": userID, "task_id": task.ID, "cid": req.Cid}).Debug("Handler.CreateTask: Task created")
	body := gin.H{"task": task}
	if req.Cid != "" {
		body["cid"] = req.Cid
	}
	SuccessResponse(c, http.StatusCreated, body)
}

// GetTask 处理 GET /api/tasks/:taskId
func (h *TaskHandler) GetTask(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	task, err := h.taskService.GetTask(c.Request.Context(), userID, c.Param("taskId"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"task": task})
}

// UpdateTask 处理 PUT /api/tasks/:taskId
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req updateTaskRequest
	if !bindJSON(c, &req, "UpdateTask") {
		return
	}
	in, valid := req.toInput()
	if !valid {
		ErrorResponse(c, http.StatusBadRequest, "dueDate must be a string or null")
		return
	}

	task, err := h.taskService.UpdateTask(c.Request.Context(), userID, c.Param("taskId"), in)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"task": task})
}

// MoveTask 处理 PUT /api/tasks/:taskId/move
func (h *TaskHandler) MoveTask(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req moveTaskRequest
	if !bindJSON(c, &req, "MoveTask") {
		return
	}
	task, err := h.taskService.MoveTask(c.Request.Context(), userID, c.Param("taskId"), req.ListID, *req.Position)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"task": task})
}

// DeleteTask 处理 DELETE /api/tasks/:taskId
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.taskService.DeleteTask(c.Request.Context(), userID, c.Param("taskId")); err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"message": "Task deleted successfully"})
}

// AssignTask 处理 POST /api/tasks/:taskId/assign
func (h *TaskHandler) AssignTask(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req assignRequest
	if !bindJSON(c, &req, "AssignTask") {
		return
	}
	assignment, err := h.taskService.AssignTask(c.Request.Context(), userID, c.Param("taskId"), req.UserID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, gin.H{"assignment": assignment})
}

// UnassignTask 处理 DELETE /api/tasks/:taskId/assign/:userId
func (h *TaskHandler) UnassignTask(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.taskService.UnassignTask(c.Request.Context(), userID, c.Param("taskId"), c.Param("userId")); err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"message": "User unassigned successfully"})
}
