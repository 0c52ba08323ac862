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
	gorillahandlers "github.com/gorilla/handlers"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	httpHandler "collaborative-rooms/internal/handler/http"
	wsHandler "collaborative-rooms/internal/handler/websocket"
	"collaborative-rooms/internal/hub"
	gormpersistence "collaborative-rooms/internal/infra/persistence/gorm"
	"collaborative-rooms/internal/infra/setup"
	redisstate "collaborative-rooms/internal/infra/state/redis"
	"collaborative-rooms/internal/middleware"
	"collaborative-rooms/internal/service"
	"collaborative-rooms/internal/tasks"
	"collaborative-rooms/internal/worker"
)

// startupSweepUnique 是启动清理任务的去重窗口
const startupSweepUnique = 10 * time.Minute

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
}

// NewLogger 按配置创建日志器，并同步配置 logrus 的全局日志器
func NewLogger(cfg *Config) *logrus.Logger {
	log := logrus.StandardLogger()
	if cfg.IsProduction() {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	logLevel, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	log.SetLevel(logLevel)
	log.SetOutput(os.Stdout)
	return log
}

// NewApp 创建并初始化应用的所有组件
func NewApp(cfg *Config) (*App, error) {
	// 1. 初始化 Logger
	log := NewLogger(cfg)
	log.Infof("Logger initialized (Level: %s, Env: %s)", log.GetLevel(), cfg.AppEnv)

	// 2. 初始化基础设施
	log.Info("Initializing infrastructure...")
	gormLevel := gormlogger.Warn
	if cfg.IsProduction() {
		gormLevel = gormlogger.Error
	}
	db, err := setup.InitDB(setup.DBOptions{
		Driver:     cfg.DBDriver,
		User:       cfg.DBUser,
		Password:   cfg.DBPassword,
		Host:       cfg.DBHost,
		Port:       cfg.DBPort,
		Name:       cfg.DBName,
		SQLitePath: cfg.SQLitePath,
		LogLevel:   gormLevel,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init DB: %w", err)
	}
	if err := setup.MigrateDB(db); err != nil {
		return nil, fmt.Errorf("failed to migrate DB: %w", err)
	}
	log.Info("Database migrated")

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

	// 3. 初始化 Repositories
	userRepo := gormpersistence.NewGormUserRepository(db)
	roomRepo := gormpersistence.NewGormRoomRepository(db)
	roundRepo := gormpersistence.NewGormRoundRepository(db)
	strokeRepo := gormpersistence.NewGormStrokeRepository(db)
	chatRepo := gormpersistence.NewGormChatRepository(db)
	presenceRepo := redisstate.NewRedisPresenceRepository(redisClient, cfg.KeyPrefix)
	publisher := redisstate.NewRedisEventPublisher(redisClient, cfg.KeyPrefix)
	cacheProbe := redisstate.NewRedisCacheProbe(redisClient, cfg.KeyPrefix)
	runMarkers := redisstate.NewRedisRunMarkerRepository(redisClient, cfg.KeyPrefix)
	log.Info("Repositories initialized")

	// 4. 初始化 Services
	identityService, err := service.NewIdentityService(userRepo, cfg.JWTSecret, cfg.JWTExpiryHours, service.SystemClock)
	if err != nil {
		return nil, fmt.Errorf("failed to create IdentityService: %w", err)
	}
	roomService := service.NewRoomService(roomRepo, userRepo, publisher, service.SystemClock)
	presenceService := service.NewPresenceService(presenceRepo, userRepo, publisher, cfg.PresenceGrace, service.SystemClock)
	roundService := service.NewRoundService(roundRepo, roomRepo, roomService, publisher, service.SystemClock)
	canvasService := service.NewCanvasService(strokeRepo, roomService, publisher, service.SystemClock)
	chatService := service.NewChatService(chatRepo, userRepo, roomService, publisher, service.SystemClock)
	retentionService := service.NewRetentionService(roomRepo, roundRepo, strokeRepo, chatRepo, presenceRepo, runMarkers, service.RetentionPolicy{
		RoundStaleAfter: cfg.RoundStaleAfter,
		ChatRetention:   cfg.ChatRetention,
		StrokeRetention: cfg.StrokeRetention,
		RoomIdleAfter:   cfg.RoomIdleAfter,
		RoundResetEvery: cfg.RoundResetEvery,
	}, service.SystemClock)
	log.Info("Services initialized")

	// 5. 初始化 Hub
	hubInstance := hub.NewHub(presenceService, canvasService, chatService, hub.Options{
		RedisClient:      redisClient,
		KeyPrefix:        cfg.KeyPrefix,
		PresenceInterval: cfg.PresenceBroadcast,
	})

	// 6. 初始化 Worker Server 和周期任务
	workerServer := worker.NewWorkerServer(redisClientOpt, retentionService, tasks.RetentionSchedule(), cfg.WorkerConcurrency, log)
	if err := workerServer.RegisterSchedule(); err != nil {
		return nil, fmt.Errorf("failed to register periodic tasks: %w", err)
	}

	// 7. 初始化 Gin Engine 和路由
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(log))
	router.Use(middleware.RateLimit(redisClient, cfg.KeyPrefix, cfg.RateLimitMax, cfg.RateLimitWindow))

	authMiddleware := middleware.Auth(cfg.JWTSecret)
	httpHandler.RegisterRoutes(router, httpHandler.Handlers{
		Session:  httpHandler.NewSessionHandler(identityService),
		Room:     httpHandler.NewRoomHandler(roomService),
		Presence: httpHandler.NewPresenceHandler(roomService, presenceService),
		Round:    httpHandler.NewRoundHandler(roundService),
		Canvas:   httpHandler.NewCanvasHandler(canvasService),
		Chat:     httpHandler.NewChatHandler(chatService),
		Health:   httpHandler.NewHealthHandler(db, cacheProbe),
	}, authMiddleware)
	ws := wsHandler.NewWebSocketHandler(hubInstance, roomService, cfg.CORSAllowedOrigins)
	router.GET("/ws/rooms/:code", authMiddleware, ws.HandleConnection)
	log.Info("Router setup complete")

	// 8. 初始化 HTTP Server
	httpServer := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           CORS(cfg.CORSAllowedOrigins)(router),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	app := &App{
		Config:      cfg,
		Log:         log,
		DB:          db,
		RedisClient: redisClient,
		AsynqClient: asynqClient,
		AsynqServer: workerServer,
		Hub:         hubInstance,
		HttpServer:  httpServer,
	}
	log.Info("Application assembled successfully")
	return app, nil
}

// CORS 返回包装整个 HTTP 处理器的 CORS 中间件
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return gorillahandlers.CORS(
		gorillahandlers.AllowedOrigins(allowedOrigins),
		gorillahandlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions}),
		gorillahandlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Requested-With"}),
		gorillahandlers.ExposedHeaders([]string{"X-RateLimit-Limit", "X-RateLimit-Remaining"}),
		gorillahandlers.AllowCredentials(),
	)
}

// Start 启动应用的所有后台 Goroutine 和 HTTP 服务器
func (a *App) Start() error {
	a.Hub.Start(context.Background())
	a.Log.Info("Hub started")

	if err := a.AsynqServer.Start(); err != nil {
		return err
	}
	a.Log.Info("Asynq worker server and scheduler started")

	if a.Config.SweepOnStart {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := tasks.EnqueueStartupSweep(ctx, a.AsynqClient, startupSweepUnique); err != nil {
			a.Log.WithError(err).Warn("Failed to enqueue startup retention sweep")
		}
		cancel()
	}

	go func() {
		a.Log.Infof("HTTP server starting to listen on %s", a.HttpServer.Addr)
		if err := a.HttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Fatalf("Failed to start HTTP server: %v", err)
		}
		a.Log.Info("HTTP server stopped listening.")
	}()
	return nil
}

// Shutdown 优雅地关闭应用
func (a *App) Shutdown() {
	a.Log.Info("Shutting down application...")

	// 1. 停止接收新请求
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.HttpServer.Shutdown(ctx); err != nil {
		a.Log.Errorf("Error shutting down HTTP server: %v", err)
	} else {
		a.Log.Info("HTTP server shut down gracefully.")
	}

	// 2. 停止 Hub (关闭所有 WebSocket 连接)
	if a.Hub != nil {
		a.Hub.Stop()
	}

	// 3. 优雅关闭 Worker Server
	if a.AsynqServer != nil {
		a.AsynqServer.Shutdown()
	}

	// 4. 关闭 Asynq Client
	if a.AsynqClient != nil {
		if err := a.AsynqClient.Close(); err != nil {
			a.Log.Errorf("Error closing Asynq client: %v", err)
		}
	}

	// 5. 关闭 Redis 连接
	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Log.Errorf("Error closing Redis connection: %v", err)
		} else {
			a.Log.Info("Redis connection closed.")
		}
	}

	// 6. 关闭数据库连接
	if sqlDB, err := a.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			a.Log.Errorf("Error closing database connection: %v", err)
		} else {
			a.Log.Info("Database connection closed.")
		}
	}

	a.Log.Info("Application shutdown complete.")
}
