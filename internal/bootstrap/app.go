package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	httpHandler "collaborative-kanban/internal/handler/http"
	wsHandler "collaborative-kanban/internal/handler/websocket"
	"collaborative-kanban/internal/hub"
	gormpersistence "collaborative-kanban/internal/infra/persistence/gorm"
	"collaborative-kanban/internal/infra/setup"
	redisstate "collaborative-kanban/internal/infra/state/redis"
	"collaborative-kanban/internal/middleware"
	"collaborative-kanban/internal/service"
	"collaborative-kanban/internal/tasks"
	"collaborative-kanban/internal/worker"
)

// roomSweepSchedule 是清理空房间的周期
const roomSweepSchedule = "@every 5m"

// App 结构体包含应用的所有组件和配置
type App struct {
	Config      *Config
	Log         *logrus.Logger
	DB          *gorm.DB
	RedisClient *redis.Client
	AsynqClient *asynq.Client
	AsynqServer *worker.WorkerServer
	Hub         *hub.Hub
	HttpServer  *http.Server

	redisClientOpt asynq.RedisClientOpt
	scheduler      *asynq.Scheduler
}

// NewApp 创建并初始化应用的所有组件
func NewApp() (*App, error) {
	// 1. 加载配置
	cfg, err := LoadConfig()
	if err != nil {
		// logrus 还未配置，直接写 stderr
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return nil, err
	}

	// 2. 初始化 Logger。各包使用全局 logrus，因此直接配置标准 logger。
	log := logrus.StandardLogger()
	if cfg.AppEnv == "production" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, ForceColors: true})
	}
	logLevel, _ := logrus.ParseLevel(cfg.LogLevel) // cfg.LogLevel 已被 LoadConfig 验证
	log.SetLevel(logLevel)
	log.SetOutput(os.Stdout)
	log.Infof("Logger initialized (Level: %s, Format: %T)", logLevel.String(), log.Formatter)

	// 3. 初始化基础设施
	log.Info("Initializing infrastructure...")
	db, err := setup.InitDB(setup.DBOptions{
		Driver:   cfg.DBDriver,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		Name:     cfg.DBName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init DB: %w", err)
	}
	if err := setup.MigrateDB(db); err != nil {
		return nil, fmt.Errorf("failed to migrate DB: %w", err)
	}
	log.WithField("driver", cfg.DBDriver).Info("Database initialized and migrated")

	redisClient, err := setup.InitRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("failed to init Redis: %w", err)
	}
	redisClientOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
	asynqClient := asynq.NewClient(redisClientOpt)
	log.Info("Infrastructure initialized successfully")

	// 4. 初始化 Repositories
	userRepo := gormpersistence.NewGormUserRepository(db)
	boardRepo := gormpersistence.NewGormBoardRepository(db)
	listRepo := gormpersistence.NewGormListRepository(db)
	taskRepo := gormpersistence.NewGormTaskRepository(db)
	commentRepo := gormpersistence.NewGormCommentRepository(db)
	activityRepo := gormpersistence.NewGormActivityRepository(db)
	boardCache := redisstate.NewRedisBoardCache(redisClient, cfg.KeyPrefix)
	log.Info("Repositories initialized")

	// 5. Access Guard -> Hub -> Services (Hub 用 Guard 校验加入房间，Service 用 Hub 广播)
	guard := service.NewAccessGuard(boardRepo, listRepo, taskRepo)
	hubInstance := hub.NewHub(guard)

	authService, err := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.JWTExpiryHours)
	if err != nil {
		return nil, fmt.Errorf("failed to create AuthService: %w", err)
	}
	activityService := service.NewActivityService(activityRepo, guard)
	var recorder service.ActivityRecorder = activityService
	if cfg.ActivityAsync {
		recorder = tasks.NewQueuedActivityRecorder(asynqClient)
		log.Info("Activity records will be written by the worker")
	}
	boardService := service.NewBoardService(boardRepo, userRepo, guard, recorder, boardCache, cfg.BoardCacheTTL, hubInstance)
	listService := service.NewListService(listRepo, guard, recorder, boardCache, hubInstance)
	taskService := service.NewTaskService(taskRepo, guard, recorder, boardCache, hubInstance)
	commentService := service.NewCommentService(commentRepo, guard, recorder, hubInstance)
	log.Info("Services initialized")

	// 6. 初始化 Handlers
	handlers := httpHandler.Handlers{
		Auth:    httpHandler.NewAuthHandler(authService),
		Board:   httpHandler.NewBoardHandler(boardService, taskService, activityService, hubInstance),
		List:    httpHandler.NewListHandler(listService),
		Task:    httpHandler.NewTaskHandler(taskService),
		Comment: httpHandler.NewCommentHandler(commentService),
	}
	socketHandler := wsHandler.NewWebSocketHandler(hubInstance, authService, cfg.JWTSecret, cfg.CORSAllowedOrigin)

	// 7. 初始化 Worker Server
	workerServer := worker.NewWorkerServer(redisClientOpt, activityService, hubInstance, log)

	// 8. 初始化 Gin Engine 和路由
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(log))
	router.Use(corsMiddleware(cfg.CORSAllowedOrigin))

	router.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "pong"}) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws", socketHandler.HandleConnection)

	apiRouter := router.Group("", middleware.RateLimit(redisClient, cfg.KeyPrefix, cfg.RateLimitMax, cfg.RateLimitWindow))
	httpHandler.RegisterRoutes(apiRouter, handlers, guard, cfg.JWTSecret)
	log.Info("Router setup complete")

	httpServer := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		Config:         cfg,
		Log:            log,
		DB:             db,
		RedisClient:    redisClient,
		AsynqClient:    asynqClient,
		AsynqServer:    workerServer,
		Hub:            hubInstance,
		HttpServer:     httpServer,
		redisClientOpt: redisClientOpt,
	}, nil
}

// Start 启动应用的所有后台 Goroutine 和 HTTP 服务器
func (a *App) Start() {
	go a.Hub.Run()
	a.Log.Info("Hub routine started")

	go a.AsynqServer.Start()
	a.Log.Info("Asynq worker server routine started")

	a.registerPeriodicTasks()

	go func() {
		a.Log.Infof("HTTP server starting to listen on %s", a.HttpServer.Addr)
		if err := a.HttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Fatalf("Failed to start HTTP server: %v", err)
		}
		a.Log.Info("HTTP server stopped listening.")
	}()
}

func (a *App) registerPeriodicTasks() {
	scheduler := asynq.NewScheduler(a.redisClientOpt, &asynq.SchedulerOpts{})

	payload, err := tasks.NewRoomSweepTask()
	if err != nil {
		a.Log.Errorf("Failed to create room sweep task payload: %v", err)
		return
	}
	entryID, err := scheduler.Register(roomSweepSchedule, asynq.NewTask(tasks.TypeRoomSweep, payload), asynq.Queue("low"))
	if err != nil {
		a.Log.Errorf("Could not register periodic room sweep task: %v", err)
		return
	}
	a.Log.Infof("Periodic room sweep task registered with schedule '%s' (EntryID: %s)", roomSweepSchedule, entryID)

	// Start 不阻塞，Shutdown 时再停止
	if err := scheduler.Start(); err != nil {
		a.Log.Errorf("Asynq scheduler failed to start: %v", err)
		return
	}
	a.scheduler = scheduler
	a.Log.Info("Asynq scheduler started")
}

// Shutdown 优雅地关闭应用
func (a *App) Shutdown() {
	a.Log.Info("Shutting down application...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 1. 停止接收新请求
	if err := a.HttpServer.Shutdown(ctx); err != nil {
		a.Log.Errorf("Error shutting down HTTP server: %v", err)
	} else {
		a.Log.Info("HTTP server shut down gracefully.")
	}

	// 2. 关闭所有 WebSocket 连接
	if a.Hub != nil {
		if err := a.Hub.Stop(ctx); err != nil {
			a.Log.Errorf("Error stopping hub: %v", err)
		}
	}

	// 3. 停止定时任务和 Worker
	if a.scheduler != nil {
		a.scheduler.Shutdown()
	}
	if a.AsynqServer != nil {
		a.AsynqServer.Shutdown()
	}

	// 4. 关闭 Asynq Client 和 Redis 连接
	if a.AsynqClient != nil {
		if err := a.AsynqClient.Close(); err != nil {
			a.Log.Errorf("Error closing Asynq client: %v", err)
		}
	}
	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Log.Errorf("Error closing Redis connection: %v", err)
		}
	}

	// 5. 关闭数据库连接池
	if sqlDB, err := a.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			a.Log.Errorf("Error closing database connection: %v", err)
		}
	}

	a.Log.Info("Application shutdown complete.")
}

// corsMiddleware 设置跨域响应头，OPTIONS 预检请求直接返回
func corsMiddleware(allowedOrigin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// LoggerMiddleware 创建一个 Gin 中间件用于记录请求日志
func LoggerMiddleware(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		c.Next()
		latency := time.Since(startTime)
		statusCode := c.Writer.Status()
		path := c.Request.URL.Path
		if query := c.Request.URL.Query(); len(query) > 0 {
			if query.Has("token") {
				query.Set("token", "REDACTED")
			}
			path = path + "?" + query.Encode()
		}

		fields := logrus.Fields{
			"status_code": statusCode,
			"latency_ms":  latency.Milliseconds(),
			"client_ip":   c.ClientIP(),
			"method":      c.Request.Method,
			"path":        path,
		}
		if userID, ok := middleware.UserID(c); ok {
			fields["user_id"] = userID
		}
		entry := log.WithFields(fields)

		if errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String(); errorMessage != "" {
			entry.Error(errorMessage)
			return
		}
		switch {
		case statusCode >= 500:
			entry.Error("Server error")
		case statusCode >= 400:
			entry.Warn("Client error")
		default:
			entry.Info("Request handled")
		}
	}
}
