package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/ritzdacanay24/the-fi-company-mrq/internal/mrq/entity"
	"github.com/ritzdacanay24/the-fi-company-mrq/internal/mrq/repository"
	"github.com/ritzdacanay24/the-fi-company-mrq/internal/shared/notify"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ReviewService 多部门评审服务
type ReviewService struct {
	db          *gorm.DB
	reviewRepo  *repository.ReviewRepository
	itemRepo    *repository.ItemRepository
	requestRepo *repository.RequestRepository
	userRepo    *repository.UserRepository
	notifier    *notify.Client
	logger      *zap.Logger
}

// NewReviewService 创建评审服务
func NewReviewService(db *gorm.DB, reviewRepo *repository.ReviewRepository, itemRepo *repository.ItemRepository, requestRepo *repository.RequestRepository, userRepo *repository.UserRepository, notifier *notify.Client, logger *zap.Logger) *ReviewService {
	return &ReviewService{
		db:          db,
		reviewRepo:  reviewRepo,
		itemRepo:    itemRepo,
		requestRepo: requestRepo,
		userRepo:    userRepo,
		notifier:    notifier,
		logger:      logger,
	}
}

// 评审优先级对应的截止天数
var reviewDueDays = map[string]int{
	entity.ReviewPriorityUrgent: 1,
	entity.ReviewPriorityHigh:   2,
	entity.ReviewPriorityNormal: 5,
	entity.ReviewPriorityLow:    7,
}

// SendForReviewInput 批量送审入参
type SendForReviewInput struct {
	ReviewerID string   `json:"reviewer_id" binding:"required"`
	Department string   `json:"department"`
	Note       string   `json:"review_note"`
	Priority   string   `json:"priority"`
	ItemIDs    []string `json:"item_ids" binding:"required,min=1"`
}

// SendForReview 把选中的明细项批量指派给评审人。
// 所有指派在一个事务内创建，截止时间按优先级推算，
// 通知逐项发送且失败只记日志。
func (s *ReviewService) SendForReview(ctx context.Context, requestID string, input *SendForReviewInput) ([]entity.ReviewAssignment, error) {
	reviewer, err := s.userRepo.FindByID(ctx, input.ReviewerID)
	if err != nil {
		return nil, fmt.Errorf("获取评审人失败: %w", err)
	}

	req, err := s.requestRepo.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	priority := input.Priority
	if priority == "" {
		priority = entity.ReviewPriorityNormal
	}
	if _, ok := reviewDueDays[priority]; !ok {
		return nil, fmt.Errorf("无效的评审优先级: %s", priority)
	}

	now := time.Now()
	dueDate := now.Add(time.Duration(reviewDueDays[priority]) * 24 * time.Hour)

	items := make(map[string]*entity.MaterialRequestItem, len(input.ItemIDs))
	for _, itemID := range input.ItemIDs {
		if itemID == "" {
			return nil, ErrMissingIdentity
		}
		item, err := s.itemRepo.FindByID(ctx, itemID)
		if err != nil {
			return nil, fmt.Errorf("获取明细项失败: %w", err)
		}
		if item.RequestID != requestID {
			return nil, fmt.Errorf("明细项 %s 不属于请求 %s", itemID, requestID)
		}
		items[itemID] = item
	}

	created := make([]entity.ReviewAssignment, 0, len(input.ItemIDs))
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, itemID := range input.ItemIDs {
			review := entity.ReviewAssignment{
				ID:                 uuid.New().String(),
				RequestID:          requestID,
				ItemID:             itemID,
				ReviewerID:         input.ReviewerID,
				ReviewerDepartment: input.Department,
				ReviewStatus:       entity.ReviewStatusAssigned,
				ReviewNote:         input.Note,
				Priority:           priority,
				DueDate:            &dueDate,
				AssignedAt:         now,
			}
			if err := s.reviewRepo.CreateInTx(ctx, tx, &review); err != nil {
				return fmt.Errorf("创建评审指派失败: %w", err)
			}
			created = append(created, review)
		}
		return s.refreshRequestReviewState(ctx, tx, requestID)
	})
	if err != nil {
		return nil, err
	}

	for _, review := range created {
		item := items[review.ItemID]
		go s.notifyReviewer(reviewer.ID, notify.NewReviewAssignedMessage(reviewer.ID, notify.ReviewContext{
			RequestNumber: req.RequestNumber,
			PartNumber:    item.PartNumber,
			Department:    input.Department,
			Note:          input.Note,
			Priority:      priority,
			DueDate:       dueDate.Format("2006-01-02"),
		}))
	}

	return created, nil
}

// SubmitReview 提交评审结论。
// 已到终态的评审重复提交按无操作处理，返回信息提示而不是报错。
func (s *ReviewService) SubmitReview(ctx context.Context, reviewID, decision, comment string) (*entity.ReviewAssignment, bool, error) {
	switch decision {
	case entity.ReviewDecisionApproved, entity.ReviewDecisionRejected, entity.ReviewDecisionNeedsClarification:
	default:
		return nil, false, fmt.Errorf("无效的评审结论: %s", decision)
	}

	review, err := s.reviewRepo.FindByID(ctx, reviewID)
	if err != nil {
		return nil, false, err
	}
	if review.IsTerminal() {
		return review, true, nil
	}

	now := time.Now()
	review.ReviewStatus = entity.ReviewStatusReviewed
	review.ReviewDecision = decision
	review.Comment = comment
	review.ReviewedAt = &now

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.reviewRepo.UpdateInTx(ctx, tx, review); err != nil {
			return fmt.Errorf("更新评审失败: %w", err)
		}
		return s.refreshRequestReviewState(ctx, tx, review.RequestID)
	})
	if err != nil {
		return nil, false, err
	}
	return review, false, nil
}

// CancelReview 取消评审。
// 只有 assigned/pending_review 的评审可取消；取消是终态，
// 对已终态评审的重复取消按无操作处理。
func (s *ReviewService) CancelReview(ctx context.Context, reviewID string) (bool, error) {
	review, err := s.reviewRepo.FindByID(ctx, reviewID)
	if err != nil {
		return false, err
	}
	if review.IsTerminal() {
		return true, nil
	}

	now := time.Now()
	review.ReviewStatus = entity.ReviewStatusCancelled
	review.CancelledAt = &now

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.reviewRepo.UpdateInTx(ctx, tx, review); err != nil {
			return fmt.Errorf("取消评审失败: %w", err)
		}
		return s.refreshRequestReviewState(ctx, tx, review.RequestID)
	})
	if err != nil {
		return false, err
	}

	go s.notifyCancellation(review)
	return false, nil
}

// EscalateReview 评审升级：在原评审之外追加一条更高优先级的指派
func (s *ReviewService) EscalateReview(ctx context.Context, reviewID, newReviewerID, note string) (*entity.ReviewAssignment, error) {
	original, err := s.reviewRepo.FindByID(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if original.ReviewStatus == entity.ReviewStatusCancelled {
		return nil, fmt.Errorf("已取消的评审不能升级")
	}

	reviewer, err := s.userRepo.FindByID(ctx, newReviewerID)
	if err != nil {
		return nil, fmt.Errorf("获取评审人失败: %w", err)
	}

	priority := entity.ReviewPriorityHigh
	if original.Priority == entity.ReviewPriorityHigh || original.Priority == entity.ReviewPriorityUrgent {
		priority = entity.ReviewPriorityUrgent
	}

	now := time.Now()
	dueDate := now.Add(time.Duration(reviewDueDays[priority]) * 24 * time.Hour)
	escalated := &entity.ReviewAssignment{
		ID:                 uuid.New().String(),
		RequestID:          original.RequestID,
		ItemID:             original.ItemID,
		ReviewerID:         newReviewerID,
		ReviewerDepartment: original.ReviewerDepartment,
		ReviewStatus:       entity.ReviewStatusAssigned,
		ReviewNote:         note,
		Priority:           priority,
		DueDate:            &dueDate,
		AssignedAt:         now,
		EscalatedFrom:      original.ID,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.reviewRepo.CreateInTx(ctx, tx, escalated); err != nil {
			return fmt.Errorf("创建升级评审失败: %w", err)
		}
		return s.refreshRequestReviewState(ctx, tx, original.RequestID)
	})
	if err != nil {
		return nil, err
	}

	go s.notifyReviewer(reviewer.ID, notify.NewReviewAssignedMessage(reviewer.ID, notify.ReviewContext{
		RequestNumber: s.requestNumber(ctx, original.RequestID),
		Department:    original.ReviewerDepartment,
		Note:          note,
		Priority:      priority,
		DueDate:       dueDate.Format("2006-01-02"),
	}))
	return escalated, nil
}

// ReassignReview 改派评审：取消原指派并为新评审人创建同参数指派
func (s *ReviewService) ReassignReview(ctx context.Context, reviewID, newReviewerID, note string) (*entity.ReviewAssignment, error) {
	original, err := s.reviewRepo.FindByID(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if original.IsTerminal() {
		return nil, fmt.Errorf("已终态的评审不能改派")
	}

	reviewer, err := s.userRepo.FindByID(ctx, newReviewerID)
	if err != nil {
		return nil, fmt.Errorf("获取评审人失败: %w", err)
	}

	now := time.Now()
	replacement := &entity.ReviewAssignment{
		ID:                 uuid.New().String(),
		RequestID:          original.RequestID,
		ItemID:             original.ItemID,
		ReviewerID:         newReviewerID,
		ReviewerDepartment: original.ReviewerDepartment,
		ReviewStatus:       entity.ReviewStatusAssigned,
		ReviewNote:         note,
		Priority:           original.Priority,
		DueDate:            original.DueDate,
		AssignedAt:         now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		original.ReviewStatus = entity.ReviewStatusCancelled
		original.CancelledAt = &now
		if err := s.reviewRepo.UpdateInTx(ctx, tx, original); err != nil {
			return fmt.Errorf("取消原评审失败: %w", err)
		}
		if err := s.reviewRepo.CreateInTx(ctx, tx, replacement); err != nil {
			return fmt.Errorf("创建改派评审失败: %w", err)
		}
		return s.refreshRequestReviewState(ctx, tx, original.RequestID)
	})
	if err != nil {
		return nil, err
	}

	go s.notifyReviewer(reviewer.ID, notify.NewReviewAssignedMessage(reviewer.ID, notify.ReviewContext{
		RequestNumber: s.requestNumber(ctx, original.RequestID),
		Department:    original.ReviewerDepartment,
		Note:          note,
		Priority:      replacement.Priority,
	}))
	return replacement, nil
}

// SendReminder 给未完结评审的评审人发催办
func (s *ReviewService) SendReminder(ctx context.Context, reviewID string) error {
	review, err := s.reviewRepo.FindByID(ctx, reviewID)
	if err != nil {
		return err
	}
	if review.IsTerminal() {
		return fmt.Errorf("评审已完结，无需催办")
	}
	if s.notifier == nil {
		return fmt.Errorf("通知网关未配置")
	}

	dueDate := ""
	if review.DueDate != nil {
		dueDate = review.DueDate.Format("2006-01-02")
	}
	return s.notifier.Send(ctx, notify.NewReviewReminderMessage(review.ReviewerID, notify.ReviewContext{
		RequestNumber: s.requestNumber(ctx, review.RequestID),
		DueDate:       dueDate,
	}))
}

// RequestClarification 评审人向请求人发起澄清。
// 问题先落到评审备注上，通知发送失败只记日志。
func (s *ReviewService) RequestClarification(ctx context.Context, reviewID, question string) error {
	review, err := s.reviewRepo.FindByID(ctx, reviewID)
	if err != nil {
		return err
	}
	if review.IsTerminal() {
		return fmt.Errorf("已完结的评审不能发起澄清")
	}

	if review.ReviewNote != "" {
		review.ReviewNote += "\n"
	}
	review.ReviewNote += "Clarification requested: " + question
	if err := s.reviewRepo.Update(ctx, review); err != nil {
		return fmt.Errorf("更新评审备注失败: %w", err)
	}

	req, err := s.requestRepo.FindByID(ctx, review.RequestID)
	if err == nil && s.notifier != nil {
		go s.notifyReviewer(req.RequestedBy, notify.NewClarificationMessage(req.RequestedBy, notify.ReviewContext{
			RequestNumber: req.RequestNumber,
			Department:    review.ReviewerDepartment,
			Note:          question,
		}))
	}
	return nil
}

// GetBulkItemReviews 批量获取多个明细项的评审。
// 批量查询失败时退回逐项查询，单项失败跳过而不中断整批。
func (s *ReviewService) GetBulkItemReviews(ctx context.Context, itemIDs []string) (map[string][]entity.ReviewAssignment, error) {
	grouped, err := s.reviewRepo.ListByItems(ctx, itemIDs)
	if err == nil {
		return grouped, nil
	}
	s.logger.Warn("Bulk review query failed, falling back to per-item queries", zap.Error(err))

	grouped = make(map[string][]entity.ReviewAssignment, len(itemIDs))
	for _, itemID := range itemIDs {
		reviews, err := s.reviewRepo.ListByItem(ctx, itemID)
		if err != nil {
			s.logger.Warn("Per-item review query failed", zap.String("item_id", itemID), zap.Error(err))
			continue
		}
		grouped[itemID] = reviews
	}
	return grouped, nil
}

// ReviewerDashboard 评审人工作台数据
type ReviewerDashboard struct {
	PendingCount int                       `json:"pending_count"`
	OverdueCount int64                     `json:"overdue_count"`
	Assignments  []entity.ReviewAssignment `json:"assignments"`
}

// Dashboard 获取评审人的未完结评审与超期统计
func (s *ReviewService) Dashboard(ctx context.Context, reviewerID string) (*ReviewerDashboard, error) {
	pending, err := s.reviewRepo.ListPendingByReviewer(ctx, reviewerID)
	if err != nil {
		return nil, fmt.Errorf("获取待办评审失败: %w", err)
	}
	overdue, err := s.reviewRepo.CountOverdueByReviewer(ctx, reviewerID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("统计超期评审失败: %w", err)
	}
	return &ReviewerDashboard{
		PendingCount: len(pending),
		OverdueCount: overdue,
		Assignments:  pending,
	}, nil
}

// SummaryByDepartment 请求下按部门汇总评审
func (s *ReviewService) SummaryByDepartment(ctx context.Context, requestID string) ([]repository.DepartmentCount, error) {
	return s.reviewRepo.SummaryByDepartment(ctx, requestID)
}

// snapshotReview 写入请求评审快照的单条形态，与看板解析端字段一致
type snapshotReview struct {
	ID           string `json:"id"`
	ReviewStatus string `json:"review_status"`
	Decision     string `json:"review_decision,omitempty"`
	ReviewerName string `json:"reviewer_name,omitempty"`
	Department   string `json:"department,omitempty"`
	AssignedAt   string `json:"assigned_at,omitempty"`
}

// refreshRequestReviewState 评审变更后在同一事务内刷新请求的
// 聚合计数和评审明细快照
func (s *ReviewService) refreshRequestReviewState(ctx context.Context, tx *gorm.DB, requestID string) error {
	var reviews []entity.ReviewAssignment
	if err := tx.WithContext(ctx).
		Preload("Reviewer").
		Where("request_id = ?", requestID).
		Order("assigned_at ASC").
		Find(&reviews).Error; err != nil {
		return err
	}

	snapshot := make([]snapshotReview, 0, len(reviews))
	for _, r := range reviews {
		name := ""
		if r.Reviewer != nil {
			name = r.Reviewer.Name
		}
		snapshot = append(snapshot, snapshotReview{
			ID:           r.ID,
			ReviewStatus: r.ReviewStatus,
			Decision:     r.ReviewDecision,
			ReviewerName: name,
			Department:   r.ReviewerDepartment,
			AssignedAt:   r.AssignedAt.Format(time.RFC3339),
		})
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("序列化评审快照失败: %w", err)
	}
	if err := s.requestRepo.UpdateReviewDetails(ctx, tx, requestID, string(data)); err != nil {
		return fmt.Errorf("刷新评审快照失败: %w", err)
	}
	return s.requestRepo.RecalcCounters(ctx, tx, requestID)
}

// requestNumber 通知文案用的请求编号，查不到时退回ID
func (s *ReviewService) requestNumber(ctx context.Context, requestID string) string {
	req, err := s.requestRepo.FindByID(ctx, requestID)
	if err != nil {
		return requestID
	}
	return req.RequestNumber
}

func (s *ReviewService) notifyReviewer(userID string, msg *notify.Message) {
	if s.notifier == nil || userID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.notifier.Send(ctx, msg); err != nil {
		log.Printf("发送评审通知失败: user=%s err=%v", userID, err)
	}
}

func (s *ReviewService) notifyCancellation(review *entity.ReviewAssignment) {
	if s.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	msg := notify.NewReviewCancelledMessage(review.ReviewerID, notify.ReviewContext{
		RequestNumber: s.requestNumber(ctx, review.RequestID),
	})
	if err := s.notifier.Send(ctx, msg); err != nil {
		log.Printf("发送评审取消通知失败: review=%s err=%v", review.ID, err)
	}
}
