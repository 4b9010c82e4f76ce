package repository

import (
	"errors"

	"gorm.io/gorm"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("record not found")

// Repositories 仓库集合
type Repositories struct {
	Request *RequestRepository
	Item    *ItemRepository
	Review  *ReviewRepository
	User    *UserRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Request: NewRequestRepository(db),
		Item:    NewItemRepository(db),
		Review:  NewReviewRepository(db),
		User:    NewUserRepository(db),
	}
}
