package http

import (
	"collaborative-kanban/internal/middleware"
	"collaborative-kanban/internal/service"

	"github.com/gin-gonic/gin"
)

// Handlers 汇总 /api 下的所有处理器
type Handlers struct {
	Auth    *AuthHandler
	Board   *BoardHandler
	List    *ListHandler
	Task    *TaskHandler
	Comment *CommentHandler
}

// RegisterRoutes 在 /api 下注册全部 REST 路由。除注册和登录外都需要 JWT。
func RegisterRoutes(router gin.IRouter, hs Handlers, guard *service.AccessGuard, jwtSecret string) {
	auth := middleware.Auth(jwtSecret)
	api := router.Group("/api")

	authRoutes := api.Group("/auth")
	{
		authRoutes.POST("/register", hs.Auth.Register)
		authRoutes.POST("/login", hs.Auth.Login)
		authRoutes.GET("/me", auth, hs.Auth.Me)
		authRoutes.GET("/users", auth, hs.Auth.Users)
	}

	boards := api.Group("/boards", auth)
	{
		boards.GET("", hs.Board.ListBoards)
		boards.POST("", hs.Board.CreateBoard)
		boards.GET("/search", hs.Board.SearchBoards)
	}

	board := api.Group("/boards/:boardId", auth, middleware.RequireBoardAccess(guard, "boardId", middleware.RefBoard))
	{
		board.GET("", hs.Board.GetBoard)
		board.PUT("", hs.Board.UpdateBoard)
		board.DELETE("", hs.Board.DeleteBoard)
		board.GET("/members", hs.Board.ListMembers)
		board.POST("/members", hs.Board.AddMember)
		board.DELETE("/members/:userId", hs.Board.RemoveMember)
		board.GET("/search", hs.Board.SearchTasks)
		board.GET("/activities", hs.Board.ListActivities)
		board.GET("/presence", hs.Board.Presence)
		board.GET("/lists", hs.List.GetLists)
		board.POST("/lists", hs.List.CreateList)
	}

	list := api.Group("/lists/:listId", auth, middleware.RequireBoardAccess(guard, "listId", middleware.RefList))
	{
		list.PUT("", hs.List.UpdateList)
		list.DELETE("", hs.List.DeleteList)
		list.GET("/tasks", hs.Task.ListTasks)
		list.POST("/tasks", hs.Task.CreateTask)
	}

	task := api.Group("/tasks/:taskId", auth, middleware.RequireBoardAccess(guard, "taskId", middleware.RefTask))
	{
		task.GET("", hs.Task.GetTask)
		task.PUT("", hs.Task.UpdateTask)
		task.DELETE("", hs.Task.DeleteTask)
		task.PUT("/move", hs.Task.MoveTask)
		task.POST("/assign", hs.Task.AssignTask)
		task.DELETE("/assign/:userId", hs.Task.UnassignTask)
		task.GET("/comments", hs.Comment.ListComments)
		task.POST("/comments", hs.Comment.AddComment)
	}
}
