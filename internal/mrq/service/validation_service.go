package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ritzdacanay24/the-fi-company-mrq/internal/mrq/entity"
	"github.com/ritzdacanay24/the-fi-company-mrq/internal/mrq/repository"
	"github.com/ritzdacanay24/the-fi-company-mrq/internal/mrq/workflow"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 批量操作类型
const (
	opApprove      = "approve"
	opReject       = "reject"
	opComment      = "comment"
	opCancelReview = "cancel_review"
	opBusinessFlow = "business_flow"
)

// ValidationService 物料项校验服务，承载单项与批量的审定操作
type ValidationService struct {
	db          *gorm.DB
	itemRepo    *repository.ItemRepository
	requestRepo *repository.RequestRepository
	reviewSvc   *ReviewService
	requestSvc  *RequestService
	logger      *zap.Logger

	// 在途操作守卫：同一请求的同类操作同时只允许一个，
	// 这是系统里唯一的互斥要求，必须在任何落库调用之前检查
	mu       sync.Mutex
	inflight map[string]bool
}

// NewValidationService 创建校验服务
func NewValidationService(db *gorm.DB, itemRepo *repository.ItemRepository, requestRepo *repository.RequestRepository, logger *zap.Logger) *ValidationService {
	return &ValidationService{
		db:          db,
		itemRepo:    itemRepo,
		requestRepo: requestRepo,
		logger:      logger,
		inflight:    make(map[string]bool),
	}
}

// SetReviewService 注入评审服务（批量取消评审用）
func (s *ValidationService) SetReviewService(svc *ReviewService) {
	s.reviewSvc = svc
}

// SetRequestService 注入请求服务（看板缓存失效用）
func (s *ValidationService) SetRequestService(svc *RequestService) {
	s.requestSvc = svc
}

func (s *ValidationService) acquire(requestID, op string) error {
	key := requestID + ":" + op
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight[key] {
		return ErrOperationInFlight
	}
	s.inflight[key] = true
	return nil
}

func (s *ValidationService) release(requestID, op string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, requestID+":"+op)
}

func (s *ValidationService) invalidateBoard(ctx context.Context) {
	if s.requestSvc != nil {
		s.requestSvc.InvalidateBoard(ctx)
	}
}

// ApproveItem 审定通过单个明细项。
// 已通过的项重复通过是无操作，返回 noop=true 而不是报错。
func (s *ValidationService) ApproveItem(ctx context.Context, itemID, userID string) (*entity.MaterialRequestItem, bool, error) {
	if itemID == "" {
		return nil, false, ErrMissingIdentity
	}
	item, err := s.itemRepo.FindByID(ctx, itemID)
	if err != nil {
		return nil, false, err
	}
	if item.ValidationStatus == entity.ItemValidationApproved {
		return item, true, nil
	}

	now := time.Now()
	item.ValidationStatus = entity.ItemValidationApproved
	item.ValidatedBy = userID
	item.ValidatedAt = &now

	if err := s.saveItem(ctx, item); err != nil {
		return nil, false, err
	}
	return item, false, nil
}

// RejectItem 审定拒绝单个明细项，必须给出拒绝原因
func (s *ValidationService) RejectItem(ctx context.Context, itemID, reason, userID string) (*entity.MaterialRequestItem, bool, error) {
	if itemID == "" {
		return nil, false, ErrMissingIdentity
	}
	if reason == "" {
		return nil, false, fmt.Errorf("拒绝必须填写原因")
	}
	item, err := s.itemRepo.FindByID(ctx, itemID)
	if err != nil {
		return nil, false, err
	}
	if item.ValidationStatus == entity.ItemValidationRejected {
		return item, true, nil
	}

	now := time.Now()
	item.ValidationStatus = entity.ItemValidationRejected
	item.ValidationComment = reason
	item.ValidatedBy = userID
	item.ValidatedAt = &now

	if err := s.saveItem(ctx, item); err != nil {
		return nil, false, err
	}
	return item, false, nil
}

// ResetItem 撤销明细项的审定结论，回到待审状态
func (s *ValidationService) ResetItem(ctx context.Context, itemID string) (*entity.MaterialRequestItem, bool, error) {
	if itemID == "" {
		return nil, false, ErrMissingIdentity
	}
	item, err := s.itemRepo.FindByID(ctx, itemID)
	if err != nil {
		return nil, false, err
	}
	if item.ValidationStatus == entity.ItemValidationPending {
		return item, true, nil
	}

	item.ValidationStatus = entity.ItemValidationPending
	item.ValidationComment = ""
	item.ValidatedBy = ""
	item.ValidatedAt = nil

	if err := s.saveItem(ctx, item); err != nil {
		return nil, false, err
	}
	return item, false, nil
}

// CommentItem 给明细项写校验备注
func (s *ValidationService) CommentItem(ctx context.Context, itemID, comment string) (*entity.MaterialRequestItem, error) {
	if itemID == "" {
		return nil, ErrMissingIdentity
	}
	item, err := s.itemRepo.FindByID(ctx, itemID)
	if err != nil {
		return nil, err
	}

	item.ValidationComment = comment
	if err := s.itemRepo.Update(ctx, item); err != nil {
		return nil, fmt.Errorf("更新校验备注失败: %w", err)
	}
	return item, nil
}

// saveItem 更新明细项并在同一事务内重算请求聚合计数
func (s *ValidationService) saveItem(ctx context.Context, item *entity.MaterialRequestItem) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.itemRepo.UpdateInTx(ctx, tx, item); err != nil {
			return fmt.Errorf("更新明细项失败: %w", err)
		}
		return s.requestRepo.RecalcCounters(ctx, tx, item.RequestID)
	})
	if err != nil {
		return err
	}
	s.invalidateBoard(ctx)
	return nil
}

// BulkItemError 批量操作的单项失败记录
type BulkItemError struct {
	ItemID string `json:"item_id"`
	Error  string `json:"error"`
}

// BulkResult 批量操作的逐项结算。
// 批量操作永远不是整体事务：某一项失败后剩余项照常尝试，
// 幂等无操作按成功计并单独累计到 NoOpCount。
type BulkResult struct {
	SuccessCount int             `json:"success_count"`
	FailCount    int             `json:"fail_count"`
	NoOpCount    int             `json:"noop_count"`
	Errors       []BulkItemError `json:"errors,omitempty"`
}

func (r *BulkResult) recordSuccess(noop bool) {
	r.SuccessCount++
	if noop {
		r.NoOpCount++
	}
}

func (r *BulkResult) recordFailure(itemID string, err error) {
	r.FailCount++
	r.Errors = append(r.Errors, BulkItemError{ItemID: itemID, Error: err.Error()})
}

// BulkApprove 批量审定通过，按调用方给定顺序逐项处理
func (s *ValidationService) BulkApprove(ctx context.Context, requestID string, itemIDs []string, userID string) (*BulkResult, error) {
	if err := s.acquire(requestID, opApprove); err != nil {
		return nil, err
	}
	defer s.release(requestID, opApprove)

	result := &BulkResult{}
	for _, itemID := range itemIDs {
		_, noop, err := s.ApproveItem(ctx, itemID, userID)
		if err != nil {
			result.recordFailure(itemID, err)
			continue
		}
		result.recordSuccess(noop)
	}
	return result, nil
}

// BulkReject 批量审定拒绝
func (s *ValidationService) BulkReject(ctx context.Context, requestID string, itemIDs []string, reason, userID string) (*BulkResult, error) {
	if err := s.acquire(requestID, opReject); err != nil {
		return nil, err
	}
	defer s.release(requestID, opReject)

	result := &BulkResult{}
	for _, itemID := range itemIDs {
		_, noop, err := s.RejectItem(ctx, itemID, reason, userID)
		if err != nil {
			result.recordFailure(itemID, err)
			continue
		}
		result.recordSuccess(noop)
	}
	return result, nil
}

// BulkComment 批量写校验备注
func (s *ValidationService) BulkComment(ctx context.Context, requestID string, itemIDs []string, comment string) (*BulkResult, error) {
	if err := s.acquire(requestID, opComment); err != nil {
		return nil, err
	}
	defer s.release(requestID, opComment)

	result := &BulkResult{}
	for _, itemID := range itemIDs {
		if _, err := s.CommentItem(ctx, itemID, comment); err != nil {
			result.recordFailure(itemID, err)
			continue
		}
		result.recordSuccess(false)
	}
	return result, nil
}

// BulkCancelReviews 批量取消选中明细项上的未完结评审。
// 只有 assigned/pending_review 的评审会被取消，
// 没有可取消评审的项按无操作计。
func (s *ValidationService) BulkCancelReviews(ctx context.Context, requestID string, itemIDs []string) (*BulkResult, error) {
	if s.reviewSvc == nil {
		return nil, fmt.Errorf("评审服务未注入")
	}
	if err := s.acquire(requestID, opCancelReview); err != nil {
		return nil, err
	}
	defer s.release(requestID, opCancelReview)

	result := &BulkResult{}
	for _, itemID := range itemIDs {
		if itemID == "" {
			result.recordFailure(itemID, ErrMissingIdentity)
			continue
		}
		reviews, err := s.reviewSvc.reviewRepo.ListByItem(ctx, itemID)
		if err != nil {
			result.recordFailure(itemID, err)
			continue
		}

		cancelled := 0
		var itemErr error
		for _, review := range reviews {
			if review.IsTerminal() {
				continue
			}
			if _, err := s.reviewSvc.CancelReview(ctx, review.ID); err != nil {
				itemErr = err
				break
			}
			cancelled++
		}
		switch {
		case itemErr != nil:
			result.recordFailure(itemID, itemErr)
		case cancelled == 0:
			result.recordSuccess(true)
		default:
			result.recordSuccess(false)
		}
	}
	return result, nil
}

// AnalyzeBusinessFlow 分析请求的整单处理决议。
// 只做分类不执行动作；还有未终局的明细项时直接报错。
func (s *ValidationService) AnalyzeBusinessFlow(ctx context.Context, requestID string) (*workflow.BusinessFlow, error) {
	items, err := s.itemRepo.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("获取明细项失败: %w", err)
	}

	var approved, rejected int
	for _, item := range items {
		resolved := workflow.ResolveItemStatus(item.ValidationStatus, reviewInfos(item.Reviews))
		switch resolved {
		case workflow.ItemStatusApproved:
			approved++
		case workflow.ItemStatusRejected:
			rejected++
		default:
			return nil, fmt.Errorf("明细项 %s 尚未有终局结论(%s): %w", item.PartNumber, resolved, workflow.ErrUnresolvedItems)
		}
	}

	return workflow.ResolveBusinessFlow(approved, rejected, len(items))
}

// ExecuteBusinessFlow 执行整单决议：按决议动作更新请求状态。
// 混合结果不阻塞整单，通过的项去拣货，拒绝的项保持拒绝结论。
func (s *ValidationService) ExecuteBusinessFlow(ctx context.Context, requestID string) (*workflow.BusinessFlow, error) {
	if err := s.acquire(requestID, opBusinessFlow); err != nil {
		return nil, err
	}
	defer s.release(requestID, opBusinessFlow)

	flow, err := s.AnalyzeBusinessFlow(ctx, requestID)
	if err != nil {
		return nil, err
	}

	var newStatus string
	switch flow.Action {
	case workflow.FlowActionComplete:
		newStatus = entity.RequestStatusComplete
	default:
		// picking 与 partial_picking 都把请求送上拣货流程
		newStatus = entity.RequestStatusPicking
	}

	now := time.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"status":       newStatus,
			"validated_at": now,
			"updated_at":   now,
		}
		if newStatus == entity.RequestStatusComplete {
			updates["completed_at"] = now
		}
		return tx.Model(&entity.MaterialRequest{}).
			Where("id = ?", requestID).
			Updates(updates).Error
	})
	if err != nil {
		return nil, fmt.Errorf("执行整单决议失败: %w", err)
	}

	s.invalidateBoard(ctx)
	s.logger.Info("Business flow executed",
		zap.String("request_id", requestID),
		zap.String("type", flow.Type),
		zap.String("action", flow.Action),
		zap.Int("approved", flow.ApprovedItems),
		zap.Int("rejected", flow.RejectedItems))
	return flow, nil
}

// IsUnresolved 是否为存在未终局明细项的错误
func IsUnresolved(err error) bool {
	return errors.Is(err, workflow.ErrUnresolvedItems)
}
