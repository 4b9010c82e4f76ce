package service

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
)

// AttachmentService 请求附件存储服务（评审证据、图纸等）
type AttachmentService struct {
	client *minio.Client
	bucket string
}

// NewAttachmentService 创建附件服务
func NewAttachmentService(client *minio.Client, bucket string) *AttachmentService {
	return &AttachmentService{client: client, bucket: bucket}
}

// Enabled 对象存储是否可用
func (s *AttachmentService) Enabled() bool {
	return s.client != nil
}

// Upload 上传附件，返回对象键
func (s *AttachmentService) Upload(ctx context.Context, requestID, filename, contentType string, size int64, reader io.Reader) (string, error) {
	if s.client == nil {
		return "", fmt.Errorf("对象存储未配置")
	}

	objectKey := path.Join("requests", requestID, uuid.New().String()[:8]+"-"+filename)
	_, err := s.client.PutObject(ctx, s.bucket, objectKey, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("上传附件失败: %w", err)
	}
	return objectKey, nil
}

// PresignedURL 生成附件的临时下载链接
func (s *AttachmentService) PresignedURL(ctx context.Context, objectKey string) (string, error) {
	if s.client == nil {
		return "", fmt.Errorf("对象存储未配置")
	}

	reqParams := make(url.Values)
	reqParams.Set("response-content-disposition", "attachment; filename=\""+path.Base(objectKey)+"\"")
	u, err := s.client.PresignedGetObject(ctx, s.bucket, objectKey, 15*time.Minute, reqParams)
	if err != nil {
		return "", fmt.Errorf("生成下载链接失败: %w", err)
	}
	return u.String(), nil
}
