package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/ritzdacanay24/the-fi-company-mrq/internal/config"
	"github.com/ritzdacanay24/the-fi-company-mrq/internal/middleware"
	"github.com/ritzdacanay24/the-fi-company-mrq/internal/mrq/entity"
	"github.com/ritzdacanay24/the-fi-company-mrq/internal/mrq/handler"
	"github.com/ritzdacanay24/the-fi-company-mrq/internal/mrq/repository"
	"github.com/ritzdacanay24/the-fi-company-mrq/internal/mrq/service"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 加载 .env 文件
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting material request service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	// 初始化数据库
	db, err := initDatabase(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}

	// AutoMigrate
	if err := db.AutoMigrate(
		&entity.User{},
		&entity.MaterialRequest{},
		&entity.MaterialRequestItem{},
		&entity.ReviewAssignment{},
	); err != nil {
		zapLogger.Warn("AutoMigrate warning", zap.Error(err))
	}

	// 手动补充索引和列（AutoMigrate 对已有表可能跳过）
	migrationSQL := []string{
		"CREATE INDEX IF NOT EXISTS idx_material_requests_status ON material_requests(status)",
		"CREATE INDEX IF NOT EXISTS idx_material_requests_requested_by ON material_requests(requested_by)",
		"CREATE INDEX IF NOT EXISTS idx_material_request_items_request ON material_request_items(request_id)",
		"CREATE INDEX IF NOT EXISTS idx_review_assignments_request ON review_assignments(request_id)",
		"CREATE INDEX IF NOT EXISTS idx_review_assignments_item ON review_assignments(item_id)",
		"CREATE INDEX IF NOT EXISTS idx_review_assignments_reviewer ON review_assignments(reviewer_id, review_status)",
		"ALTER TABLE material_requests ADD COLUMN IF NOT EXISTS review_details TEXT DEFAULT ''",
		"ALTER TABLE review_assignments ADD COLUMN IF NOT EXISTS escalated_from VARCHAR(36) DEFAULT ''",
	}
	for _, sql := range migrationSQL {
		if err := db.Exec(sql).Error; err != nil {
			zapLogger.Warn("Migration SQL warning (may already exist)", zap.String("sql", sql), zap.Error(err))
		}
	}
	zapLogger.Info("Database migration completed")

	// 初始化Redis
	rdb := initRedis(cfg.Redis)

	// 初始化依赖
	repos := repository.NewRepositories(db)
	services := service.NewServices(db, repos, rdb, cfg, zapLogger)
	handlers := handler.NewHandlers(services)

	// 看板快照后台刷新
	refresherCtx, stopRefresher := context.WithCancel(context.Background())
	defer stopRefresher()
	services.Request.StartBoardRefresher(refresherCtx, service.BoardRefreshInterval)

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	// 注册路由
	registerRoutes(router, handlers, cfg)

	// 创建HTTP服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 启动服务器
	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")
	stopRefresher()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exited")
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
	}

	db, err := gorm.Open(postgres.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return db, nil
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func registerRoutes(r *gin.Engine, h *handler.Handlers, cfg *config.Config) {
	// 健康检查
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 版本信息
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
		})
	})

	// API v1
	v1 := r.Group("/api/v1/mrq")
	v1.Use(middleware.JWTAuth(cfg.JWT.Secret))
	{
		// 看板
		v1.GET("/board", h.Request.Board)
		v1.GET("/board/export", h.Request.ExportBoard)

		// 物料请求
		requests := v1.Group("/requests")
		{
			requests.GET("", h.Request.List)
			requests.POST("", h.Request.Create)
			requests.GET("/:id", h.Request.Get)
			requests.PATCH("/:id/status", h.Request.UpdateStatus)
			requests.GET("/:id/flow", h.Request.AnalyzeFlow)
			requests.POST("/:id/flow", h.Request.ExecuteFlow)

			// 评审
			requests.POST("/:id/reviews", h.Review.SendForReview)
			requests.GET("/:id/reviews/summary", h.Review.DepartmentSummary)

			// 批量审定
			requests.POST("/:id/items/bulk-approve", h.Validation.BulkApprove)
			requests.POST("/:id/items/bulk-reject", h.Validation.BulkReject)
			requests.POST("/:id/items/bulk-comment", h.Validation.BulkComment)
			requests.POST("/:id/items/bulk-cancel-reviews", h.Validation.BulkCancelReviews)

			// 附件
			requests.POST("/:id/attachments", h.Attachment.Upload)
		}

		// 明细项单项审定
		items := v1.Group("/items")
		{
			items.POST("/:id/approve", h.Validation.ApproveItem)
			items.POST("/:id/reject", h.Validation.RejectItem)
			items.POST("/:id/reset", h.Validation.ResetItem)
			items.POST("/:id/comment", h.Validation.CommentItem)
		}

		// 评审操作
		reviews := v1.Group("/reviews")
		{
			reviews.GET("/dashboard", h.Review.Dashboard)
			reviews.POST("/bulk-items", h.Review.BulkItemReviews)
			reviews.POST("/:id/submit", h.Review.Submit)
			reviews.POST("/:id/cancel", h.Review.Cancel)
			reviews.POST("/:id/escalate", h.Review.Escalate)
			reviews.POST("/:id/reassign", h.Review.Reassign)
			reviews.POST("/:id/remind", h.Review.Remind)
			reviews.POST("/:id/clarify", h.Review.Clarify)
		}

		// 附件下载链接
		v1.GET("/attachments/url", h.Attachment.DownloadURL)
	}
}
