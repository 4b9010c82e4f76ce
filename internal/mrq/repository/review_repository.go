package repository

import (
	"context"
	"errors"
	"time"

	"github.com/ritzdacanay24/the-fi-company-mrq/internal/mrq/entity"
	"gorm.io/gorm"
)

// ReviewRepository 评审指派仓库
type ReviewRepository struct {
	db *gorm.DB
}

// NewReviewRepository 创建评审指派仓库
func NewReviewRepository(db *gorm.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// FindByID 根据ID查找评审
func (r *ReviewRepository) FindByID(ctx context.Context, id string) (*entity.ReviewAssignment, error) {
	var review entity.ReviewAssignment
	err := r.db.WithContext(ctx).
		Preload("Reviewer").
		Where("id = ?", id).
		First(&review).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &review, nil
}

// ListByItem 获取单个明细项的全部评审
func (r *ReviewRepository) ListByItem(ctx context.Context, itemID string) ([]entity.ReviewAssignment, error) {
	var reviews []entity.ReviewAssignment
	err := r.db.WithContext(ctx).
		Preload("Reviewer").
		Where("item_id = ?", itemID).
		Order("assigned_at ASC").
		Find(&reviews).Error
	return reviews, err
}

// ListByItems 批量获取多个明细项的评审，按明细项ID分组
func (r *ReviewRepository) ListByItems(ctx context.Context, itemIDs []string) (map[string][]entity.ReviewAssignment, error) {
	var reviews []entity.ReviewAssignment
	err := r.db.WithContext(ctx).
		Preload("Reviewer").
		Where("item_id IN ?", itemIDs).
		Order("assigned_at ASC").
		Find(&reviews).Error
	if err != nil {
		return nil, err
	}

	grouped := make(map[string][]entity.ReviewAssignment, len(itemIDs))
	for _, review := range reviews {
		grouped[review.ItemID] = append(grouped[review.ItemID], review)
	}
	return grouped, nil
}

// ListByRequest 获取请求下的全部评审
func (r *ReviewRepository) ListByRequest(ctx context.Context, requestID string) ([]entity.ReviewAssignment, error) {
	var reviews []entity.ReviewAssignment
	err := r.db.WithContext(ctx).
		Preload("Reviewer").
		Where("request_id = ?", requestID).
		Order("assigned_at ASC").
		Find(&reviews).Error
	return reviews, err
}

// ListPendingByReviewer 获取指派给某评审人的未完结评审
func (r *ReviewRepository) ListPendingByReviewer(ctx context.Context, reviewerID string) ([]entity.ReviewAssignment, error) {
	var reviews []entity.ReviewAssignment
	err := r.db.WithContext(ctx).
		Where("reviewer_id = ? AND review_status IN ?", reviewerID,
			[]string{entity.ReviewStatusAssigned, entity.ReviewStatusPending}).
		Order("due_date ASC").
		Find(&reviews).Error
	return reviews, err
}

// Create 创建评审
func (r *ReviewRepository) Create(ctx context.Context, review *entity.ReviewAssignment) error {
	return r.db.WithContext(ctx).Create(review).Error
}

// CreateInTx 在事务内创建评审
func (r *ReviewRepository) CreateInTx(ctx context.Context, tx *gorm.DB, review *entity.ReviewAssignment) error {
	return tx.WithContext(ctx).Create(review).Error
}

// Update 更新评审
func (r *ReviewRepository) Update(ctx context.Context, review *entity.ReviewAssignment) error {
	return r.db.WithContext(ctx).Save(review).Error
}

// UpdateInTx 在事务内更新评审
func (r *ReviewRepository) UpdateInTx(ctx context.Context, tx *gorm.DB, review *entity.ReviewAssignment) error {
	return tx.WithContext(ctx).Save(review).Error
}

// DepartmentCount 部门评审汇总行
type DepartmentCount struct {
	Department string `json:"department"`
	Status     string `json:"status"`
	Count      int64  `json:"count"`
}

// SummaryByDepartment 请求下按部门与状态汇总评审数量
func (r *ReviewRepository) SummaryByDepartment(ctx context.Context, requestID string) ([]DepartmentCount, error) {
	var rows []DepartmentCount
	err := r.db.WithContext(ctx).
		Model(&entity.ReviewAssignment{}).
		Select("department, review_status AS status, COUNT(*) AS count").
		Where("request_id = ?", requestID).
		Group("department, review_status").
		Order("department ASC").
		Find(&rows).Error
	return rows, err
}

// CountOverdueByReviewer 某评审人超过截止时间的未完结评审数
func (r *ReviewRepository) CountOverdueByReviewer(ctx context.Context, reviewerID string, now time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.ReviewAssignment{}).
		Where("reviewer_id = ? AND review_status IN ? AND due_date < ?", reviewerID,
			[]string{entity.ReviewStatusAssigned, entity.ReviewStatusPending}, now).
		Count(&count).Error
	return count, err
}
