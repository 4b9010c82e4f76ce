package repository

import (
	"context"
	"errors"

	"github.com/ritzdacanay24/the-fi-company-mrq/internal/mrq/entity"
	"gorm.io/gorm"
)

// ItemRepository 物料明细项仓库
type ItemRepository struct {
	db *gorm.DB
}

// NewItemRepository 创建物料明细项仓库
func NewItemRepository(db *gorm.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

// FindByID 根据ID查找明细项
func (r *ItemRepository) FindByID(ctx context.Context, id string) (*entity.MaterialRequestItem, error) {
	var item entity.MaterialRequestItem
	err := r.db.WithContext(ctx).
		Preload("Reviews").
		Where("id = ?", id).
		First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

// ListByRequest 获取请求下的全部明细项
func (r *ItemRepository) ListByRequest(ctx context.Context, requestID string) ([]entity.MaterialRequestItem, error) {
	var items []entity.MaterialRequestItem
	err := r.db.WithContext(ctx).
		Preload("Reviews").
		Where("request_id = ?", requestID).
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}

// Create 创建明细项
func (r *ItemRepository) Create(ctx context.Context, item *entity.MaterialRequestItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

// Update 更新明细项
func (r *ItemRepository) Update(ctx context.Context, item *entity.MaterialRequestItem) error {
	return r.db.WithContext(ctx).Save(item).Error
}

// UpdateInTx 在事务内更新明细项
func (r *ItemRepository) UpdateInTx(ctx context.Context, tx *gorm.DB, item *entity.MaterialRequestItem) error {
	return tx.WithContext(ctx).Save(item).Error
}
