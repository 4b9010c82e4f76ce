package entity

import "time"

// 评审状态常量
const (
	ReviewStatusAssigned  = "assigned"
	ReviewStatusPending   = "pending_review"
	ReviewStatusReviewed  = "reviewed"
	ReviewStatusCancelled = "cancelled"
)

// 评审结论常量
const (
	ReviewDecisionApproved           = "approved"
	ReviewDecisionRejected           = "rejected"
	ReviewDecisionNeedsClarification = "needs_clarification"
)

// 评审优先级常量
const (
	ReviewPriorityLow    = "low"
	ReviewPriorityNormal = "normal"
	ReviewPriorityHigh   = "high"
	ReviewPriorityUrgent = "urgent"
)

// ReviewAssignment 物料项评审指派。
// 同一物料项可以同时存在多条评审（升级、二次意见），
// 各自独立创建、流转和取消。取消是终态，与完成互斥。
type ReviewAssignment struct {
	ID                 string     `json:"id" gorm:"primaryKey;size:36"`
	RequestID          string     `json:"request_id" gorm:"size:36;not null;index"`
	ItemID             string     `json:"item_id" gorm:"size:36;not null;index"`
	ReviewerID         string     `json:"reviewer_id" gorm:"size:36;not null"`
	ReviewerDepartment string     `json:"department" gorm:"size:100"`
	ReviewStatus       string     `json:"review_status" gorm:"size:20;not null;default:'assigned'"`
	ReviewDecision     string     `json:"review_decision" gorm:"size:30"`
	ReviewNote         string     `json:"review_note" gorm:"type:text"`
	Comment            string     `json:"comment" gorm:"type:text"`
	Priority           string     `json:"priority" gorm:"size:10;not null;default:'normal'"`
	DueDate            *time.Time `json:"due_date"`
	AssignedAt         time.Time  `json:"assigned_at"`
	ReviewedAt         *time.Time `json:"reviewed_at"`
	CancelledAt        *time.Time `json:"cancelled_at"`
	EscalatedFrom      string     `json:"escalated_from,omitempty" gorm:"size:36"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`

	// 关联
	Reviewer *User `json:"reviewer,omitempty" gorm:"foreignKey:ReviewerID"`
}

func (ReviewAssignment) TableName() string {
	return "review_assignments"
}

// IsTerminal 评审是否已到终态（完成或取消）
func (r *ReviewAssignment) IsTerminal() bool {
	return r.ReviewStatus == ReviewStatusReviewed || r.ReviewStatus == ReviewStatusCancelled
}
