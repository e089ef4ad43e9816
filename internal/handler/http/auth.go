package http

import (
	"net/http"

	"collaborative-kanban/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// AuthHandler 封装了与用户认证相关的 HTTP 处理逻辑
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler 创建 AuthHandler 实例
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	if authService == nil {
		panic("AuthService cannot be nil for AuthHandler")
	}
	return &AuthHandler{authService: authService}
}

// RegisterRequest 定义注册请求的结构体。详细的格式校验在 Service 层完成。
type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginRequest 定义登录请求的结构体
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Register 处理 POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if !bindJSON(c, &req, "Register") {
		return
	}

	result, err := h.authService.Register(c.Request.Context(), req.Username, req.Password, req.Email)
	if err != nil {
		logrus.WithError(err).WithField("username", req.Username).Warn("Handler.Register: Registration failed")
		HandleServiceError(c, err)
		return
	}

	logrus.WithField("user_id", result.User.ID).Info("Handler.Register: User registered successfully")
	SuccessResponse(c, http.StatusCreated, gin.H{
		"message": "User registered successfully",
		"user":    result.User,
		"token":   result.Token,
	})
}

// Login 处理 POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req, "Login") {
		return
	}

	result, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		logrus.WithError(err).WithField("email", req.Email).Warn("Handler.Login: Authentication failed")
		HandleServiceError(c, err)
		return
	}

	logrus.WithField("user_id", result.User.ID).Info("Handler.Login: User logged in successfully")
	SuccessResponse(c, http.StatusOK, gin.H{
		"message": "Login successful",
		"user":    result.User,
		"token":   result.Token,
	})
}

// Me 处理 GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	user, err := h.authService.GetUser(c.Request.Context(), userID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"user": user})
}

// Users 处理 GET /api/auth/users，返回可邀请的其他用户
func (h *AuthHandler) Users(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	users, err := h.authService.ListUsers(c.Request.Context(), userID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"users": users})
}
