package service

import (
	"errors"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"github.com/ritzdacanay24/the-fi-company-mrq/internal/config"
	"github.com/ritzdacanay24/the-fi-company-mrq/internal/mrq/repository"
	"github.com/ritzdacanay24/the-fi-company-mrq/internal/shared/notify"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 服务层哨兵错误
var (
	// ErrOperationInFlight 同一请求的同类操作还在进行中，重复触发被拒绝
	ErrOperationInFlight = errors.New("operation already in flight for this request")
	// ErrMissingIdentity 目标记录缺少持久化ID，更新被中止
	ErrMissingIdentity = errors.New("record has no persistent id")
)

// IsInFlight 是否为同类操作在途的冲突错误
func IsInFlight(err error) bool {
	return errors.Is(err, ErrOperationInFlight)
}

// Services 服务集合
type Services struct {
	Request    *RequestService
	Review     *ReviewService
	Validation *ValidationService
	Export     *ExportService
	Attachment *AttachmentService
	Notify     *notify.Client
}

// NewServices 创建服务集合
func NewServices(db *gorm.DB, repos *repository.Repositories, rdb *redis.Client, cfg *config.Config, logger *zap.Logger) *Services {
	// 初始化通知网关客户端
	var notifyClient *notify.Client
	if cfg.Notify.BaseURL != "" && cfg.Notify.ClientID != "" {
		notifyClient = notify.NewClient(cfg.Notify.BaseURL, cfg.Notify.ClientID, cfg.Notify.ClientSecret)
	}

	// 初始化MinIO客户端
	var minioClient *minio.Client
	if cfg.MinIO.Endpoint != "" {
		var err error
		minioClient, err = minio.New(cfg.MinIO.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, ""),
			Secure: cfg.MinIO.UseSSL,
		})
		if err != nil {
			logger.Warn("MinIO init failed, attachments disabled", zap.Error(err))
			minioClient = nil
		}
	}

	requestSvc := NewRequestService(repos.Request, repos.Item, rdb, notifyClient, logger)
	if cfg.Board.RecentWindowDays > 0 {
		requestSvc.SetRecentWindowDays(cfg.Board.RecentWindowDays)
	}
	reviewSvc := NewReviewService(db, repos.Review, repos.Item, repos.Request, repos.User, notifyClient, logger)
	validationSvc := NewValidationService(db, repos.Item, repos.Request, logger)
	validationSvc.SetReviewService(reviewSvc)
	validationSvc.SetRequestService(requestSvc)

	return &Services{
		Request:    requestSvc,
		Review:     reviewSvc,
		Validation: validationSvc,
		Export:     NewExportService(requestSvc),
		Attachment: NewAttachmentService(minioClient, cfg.MinIO.Bucket),
		Notify:     notifyClient,
	}
}
