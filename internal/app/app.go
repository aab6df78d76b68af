package app

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"commune_backend/internal/config"
	"commune_backend/internal/handlers"
	"commune_backend/internal/linkmeta"
	"commune_backend/internal/logger"
	"commune_backend/internal/models"
	"commune_backend/internal/realtime"
	"commune_backend/internal/repositories"
	"commune_backend/internal/routes"
	"commune_backend/internal/services"
	"commune_backend/internal/validator"
	"commune_backend/ws"
)

func Run() {
	config.LoadConfig()
	cfg := config.AppConfig

	logger.Init(cfg.Server.Env)
	logger.Info("Logger initialized", "env", cfg.Server.Env)

	gormDB, err := gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{})
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		logger.Fatal("Failed to get *sql.DB from GORM", "error", err)
	}
	if err = sqlDB.Ping(); err != nil {
		logger.Fatal("Database unavailable", "error", err)
	}
	logger.Info("Database connected")

	if err = migrate(gormDB); err != nil {
		logger.Fatal("Migration failed", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bus := newBus(ctx, cfg)
	defer bus.Close()

	router, pool := SetupRouter(ctx, cfg, gormDB, bus)

	go pool.Start(ctx)

	address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{Addr: address, Handler: router}

	go func() {
		logger.Info("Server starting", "address", address)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server startup error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}
}

func migrate(gormDB *gorm.DB) error {
	return gormDB.AutoMigrate(
		&models.User{},
		&models.Section{},
		&models.SectionSubscription{},
		&models.Post{},
		&models.Comment{},
		&models.Reaction{},
		&models.Link{},
		&models.Notification{},
		&models.MetadataJob{},
	)
}

func newBus(ctx context.Context, cfg *config.Config) realtime.Bus {
	if cfg.Redis.Addr == "" {
		logger.Warn("No redis address configured, using in-memory bus; events will not cross processes")
		return realtime.NewMemoryBus()
	}

	redisBus := realtime.NewRedisBus(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err := redisBus.Ping(ctx); err != nil {
		logger.Fatal("Redis unavailable", "addr", cfg.Redis.Addr, "error", err)
	}
	logger.Info("Event bus connected", "addr", cfg.Redis.Addr)
	return redisBus
}

// SetupRouter assembles every component of the process: repositories,
// services, the delivery hub, the notification materializer and the metadata
// worker pool. The pool is returned unstarted so tests can drive it directly.
func SetupRouter(ctx context.Context, cfg *config.Config, gormDB *gorm.DB, bus realtime.Bus) (*gin.Engine, *linkmeta.Pool) {
	publisher := realtime.NewPublisher(bus)

	userRepo := repositories.NewUserRepository(gormDB)
	sectionRepo := repositories.NewSectionRepository(gormDB)
	postRepo := repositories.NewPostRepository(gormDB)
	notificationRepo := repositories.NewNotificationRepository(gormDB)
	linkRepo := repositories.NewLinkRepository(gormDB)
	jobRepo := repositories.NewMetadataJobRepository(gormDB)

	linkService := services.NewLinkService(linkRepo, jobRepo)
	authService := services.NewAuthService(userRepo)
	sectionService := services.NewSectionService(sectionRepo)
	postService := services.NewPostService(postRepo, sectionRepo, userRepo, linkService, publisher)
	commentService := services.NewCommentService(postRepo, userRepo, linkService, publisher)
	reactionService := services.NewReactionService(postRepo, publisher)
	notificationService := services.NewNotificationService(notificationRepo)

	mentionParser := services.NewMentionParser(userRepo)
	materializer := services.NewNotificationMaterializer(notificationRepo, sectionRepo, postRepo, mentionParser, publisher)
	if err := materializer.Run(ctx, bus); err != nil {
		logger.Fatal("Failed to start notification materializer", "error", err)
	}

	hub := ws.NewHub()
	if err := hub.Run(ctx, bus); err != nil {
		logger.Fatal("Failed to attach delivery hub to bus", "error", err)
	}
	go func() {
		<-ctx.Done()
		hub.Shutdown()
	}()

	wsHandler := ws.NewHandler(hub, cfg.WS.SendQueueDepth, cfg.WSWriteTimeout(), cfg.WSPongTimeout())

	pool := linkmeta.NewPool(jobRepo, linkRepo, postRepo, publisher, linkmeta.PoolConfig{
		Workers:      cfg.LinkMeta.Workers,
		MaxAttempts:  cfg.LinkMeta.MaxAttempts,
		BackoffBase:  cfg.LinkMetaBackoffBase(),
		BackoffCap:   cfg.LinkMetaBackoffCap(),
		PollInterval: cfg.LinkMetaPollInterval(),
		FetchTimeout: cfg.LinkMetaFetchTimeout(),
	})

	base := handlers.NewBaseHandler(validator.New())
	appHandlers := &routes.AppHandlers{
		AuthHandler:         handlers.NewAuthHandler(base, authService),
		SectionHandler:      handlers.NewSectionHandler(base, sectionService, postService),
		PostHandler:         handlers.NewPostHandler(base, postService, commentService, reactionService),
		NotificationHandler: handlers.NewNotificationHandler(base, notificationService),
	}

	router := newGinRouter(cfg)
	routes.RegisterRoutes(router, appHandlers, wsHandler)
	return router, pool
}

func newGinRouter(cfg *config.Config) *gin.Engine {
	if cfg.Server.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger())
	return router
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
