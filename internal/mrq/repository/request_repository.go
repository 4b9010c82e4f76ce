package repository

import (
	"context"
	"errors"
	"time"

	"github.com/ritzdacanay24/the-fi-company-mrq/internal/mrq/entity"
	"gorm.io/gorm"
)

// RequestRepository 物料请求仓库
type RequestRepository struct {
	db *gorm.DB
}

// NewRequestRepository 创建物料请求仓库
func NewRequestRepository(db *gorm.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// FindByID 根据ID查找请求（含明细项和评审）
func (r *RequestRepository) FindByID(ctx context.Context, id string) (*entity.MaterialRequest, error) {
	var req entity.MaterialRequest
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Items.Reviews").
		Preload("Requester").
		Where("id = ?", id).
		First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &req, nil
}

// List 获取请求列表（看板读取路径，带聚合计数和评审快照）
func (r *RequestRepository) List(ctx context.Context, filters map[string]interface{}) ([]entity.MaterialRequest, error) {
	var requests []entity.MaterialRequest

	query := r.db.WithContext(ctx)

	if status, ok := filters["status"].(string); ok && status != "" {
		query = query.Where("status = ?", status)
	}
	if department, ok := filters["department"].(string); ok && department != "" {
		query = query.Where("department = ?", department)
	}
	if priority, ok := filters["priority"].(string); ok && priority != "" {
		query = query.Where("priority = ?", priority)
	}
	if requestedBy, ok := filters["requested_by"].(string); ok && requestedBy != "" {
		query = query.Where("requested_by = ?", requestedBy)
	}

	err := query.
		Preload("Requester").
		Order("created_at DESC").
		Find(&requests).Error

	return requests, err
}

// Create 创建请求
func (r *RequestRepository) Create(ctx context.Context, req *entity.MaterialRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

// Update 更新请求
func (r *RequestRepository) Update(ctx context.Context, req *entity.MaterialRequest) error {
	return r.db.WithContext(ctx).Save(req).Error
}

// UpdateStatus 更新请求状态并维护对应的完结时间戳
func (r *RequestRepository) UpdateStatus(ctx context.Context, id, status string, now time.Time) error {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": now,
	}
	switch status {
	case entity.RequestStatusComplete:
		updates["completed_at"] = now
	case entity.RequestStatusDelivered:
		updates["delivered_at"] = now
	case entity.RequestStatusClosed:
		updates["closed_at"] = now
	}

	result := r.db.WithContext(ctx).
		Model(&entity.MaterialRequest{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// RecalcCounters 按明细项重算请求的聚合计数（同一事务内调用）
func (r *RequestRepository) RecalcCounters(ctx context.Context, tx *gorm.DB, requestID string) error {
	if tx == nil {
		tx = r.db
	}

	var items []entity.MaterialRequestItem
	if err := tx.WithContext(ctx).Where("request_id = ?", requestID).Find(&items).Error; err != nil {
		return err
	}

	var approved, rejected, pending int
	for _, item := range items {
		switch item.ValidationStatus {
		case entity.ItemValidationApproved:
			approved++
		case entity.ItemValidationRejected:
			rejected++
		default:
			pending++
		}
	}

	progress := 0
	if len(items) > 0 {
		progress = (approved + rejected) * 100 / len(items)
	}

	var pendingReviews int64
	if err := tx.WithContext(ctx).
		Model(&entity.ReviewAssignment{}).
		Where("request_id = ? AND review_status IN ?", requestID,
			[]string{entity.ReviewStatusAssigned, entity.ReviewStatusPending}).
		Count(&pendingReviews).Error; err != nil {
		return err
	}

	return tx.WithContext(ctx).
		Model(&entity.MaterialRequest{}).
		Where("id = ?", requestID).
		Updates(map[string]interface{}{
			"item_count":          len(items),
			"approved_items":      approved,
			"rejected_items":      rejected,
			"pending_validations": pending,
			"validation_progress": progress,
			"pending_reviews":     pendingReviews,
		}).Error
}

// UpdateReviewDetails 刷新请求上的评审明细快照
func (r *RequestRepository) UpdateReviewDetails(ctx context.Context, tx *gorm.DB, requestID, details string) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).
		Model(&entity.MaterialRequest{}).
		Where("id = ?", requestID).
		Update("review_details", details).Error
}
