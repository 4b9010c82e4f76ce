package entity

import "time"

// 物料请求原始状态常量（后端落库值）
const (
	RequestStatusPendingValidation = "pending_validation"
	RequestStatusApproved          = "approved"
	RequestStatusReadyForPicking   = "ready_for_picking"
	RequestStatusPicking           = "picking"
	RequestStatusInProgress        = "in_progress"
	RequestStatusComplete          = "complete"
	RequestStatusDelivered         = "delivered"
	RequestStatusClosed            = "closed"
)

// 请求优先级常量
const (
	RequestPriorityHigh   = "high"
	RequestPriorityMedium = "medium"
	RequestPriorityLow    = "low"
)

// MaterialRequest 物料请求
type MaterialRequest struct {
	ID            string `json:"id" gorm:"primaryKey;size:36"`
	RequestNumber string `json:"request_number" gorm:"size:50;uniqueIndex;not null"`
	Status        string `json:"status" gorm:"size:30;not null;default:'pending_validation'"`
	Priority      string `json:"priority" gorm:"size:10;not null;default:'medium'"`
	Department    string `json:"department" gorm:"size:100"`
	RequestedBy   string `json:"requested_by" gorm:"size:36;not null"`
	Comments      string `json:"comments" gorm:"type:text"`

	// 聚合计数，物料项变更时由服务层在同一事务内重算
	ItemCount          int `json:"item_count" gorm:"default:0"`
	ValidationProgress int `json:"validation_progress" gorm:"default:0"`
	PendingValidations int `json:"pending_validations" gorm:"default:0"`
	ApprovedItems      int `json:"approved_items" gorm:"default:0"`
	RejectedItems      int `json:"rejected_items" gorm:"default:0"`
	PendingReviews     int `json:"pending_reviews" gorm:"default:0"`

	// 评审明细的冗余快照，JSON 数组，评审变更时刷新。
	// 看板读取路径只依赖这一列，不再逐请求查评审表。
	ReviewDetails string `json:"review_details,omitempty" gorm:"type:text"`

	ValidatedAt *time.Time `json:"validated_at"`
	CompletedAt *time.Time `json:"completed_at"`
	DeliveredAt *time.Time `json:"delivered_at"`
	ClosedAt    *time.Time `json:"closed_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	// 关联
	Items     []MaterialRequestItem `json:"items,omitempty" gorm:"foreignKey:RequestID"`
	Requester *User                 `json:"requester,omitempty" gorm:"foreignKey:RequestedBy"`
}

func (MaterialRequest) TableName() string {
	return "material_requests"
}

// AgeDays 请求创建至今的天数
func (r *MaterialRequest) AgeDays(now time.Time) int {
	if r.CreatedAt.IsZero() {
		return 0
	}
	return int(now.Sub(r.CreatedAt).Hours() / 24)
}

// 物料项校验状态常量
const (
	ItemValidationPending  = "pending"
	ItemValidationApproved = "approved"
	ItemValidationRejected = "rejected"
)

// MaterialRequestItem 物料请求明细项
type MaterialRequestItem struct {
	ID                string     `json:"id" gorm:"primaryKey;size:36"`
	RequestID         string     `json:"request_id" gorm:"size:36;not null;index"`
	PartNumber        string     `json:"part_number" gorm:"size:100;not null"`
	Description       string     `json:"description" gorm:"type:text"`
	Quantity          float64    `json:"quantity" gorm:"not null;default:1"`
	Unit              string     `json:"unit" gorm:"size:20;default:'pcs'"`
	ValidationStatus  string     `json:"validation_status" gorm:"size:20;not null;default:'pending'"`
	ValidationComment string     `json:"validation_comment" gorm:"type:text"`
	ValidatedBy       string     `json:"validated_by" gorm:"size:36"`
	ValidatedAt       *time.Time `json:"validated_at"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`

	// 关联
	Reviews []ReviewAssignment `json:"reviews,omitempty" gorm:"foreignKey:ItemID"`
}

func (MaterialRequestItem) TableName() string {
	return "material_request_items"
}
