package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/ritzdacanay24/the-fi-company-mrq/internal/mrq/entity"
	"github.com/ritzdacanay24/the-fi-company-mrq/internal/mrq/repository"
	"github.com/ritzdacanay24/the-fi-company-mrq/internal/mrq/workflow"
	"github.com/ritzdacanay24/the-fi-company-mrq/internal/shared/notify"
	"go.uber.org/zap"
)

const (
	boardCacheKey = "mrq:board:snapshot"
	boardCacheTTL = 45 * time.Second

	// BoardRefreshInterval 看板快照的后台刷新周期
	BoardRefreshInterval = 30 * time.Second
)

// RequestService 物料请求服务
type RequestService struct {
	requestRepo      *repository.RequestRepository
	itemRepo         *repository.ItemRepository
	rdb              *redis.Client
	notifier         *notify.Client
	logger           *zap.Logger
	recentWindowDays int
}

// NewRequestService 创建物料请求服务
func NewRequestService(requestRepo *repository.RequestRepository, itemRepo *repository.ItemRepository, rdb *redis.Client, notifier *notify.Client, logger *zap.Logger) *RequestService {
	return &RequestService{
		requestRepo:      requestRepo,
		itemRepo:         itemRepo,
		rdb:              rdb,
		notifier:         notifier,
		logger:           logger,
		recentWindowDays: workflow.DefaultRecentWindowDays,
	}
}

// SetRecentWindowDays 设置完结请求的看板保留窗口
func (s *RequestService) SetRecentWindowDays(days int) {
	if days > 0 {
		s.recentWindowDays = days
	}
}

// BoardCard 看板卡片
type BoardCard struct {
	ID                 string `json:"id"`
	RequestNumber      string `json:"request_number"`
	Status             string `json:"status"`
	Priority           string `json:"priority"`
	Department         string `json:"department"`
	RequesterName      string `json:"requester_name,omitempty"`
	Queue              string `json:"queue"`
	AgeDays            int    `json:"age_days"`
	Overdue            bool   `json:"overdue"`
	ItemCount          int    `json:"item_count"`
	ValidationProgress int    `json:"validation_progress"`
	PendingValidations int    `json:"pending_validations"`
	ApprovedItems      int    `json:"approved_items"`
	RejectedItems      int    `json:"rejected_items"`
	PendingReviews     int    `json:"pending_reviews"`
	OverdueReviews     int    `json:"overdue_reviews"`
	CompletedReviews   int    `json:"completed_reviews"`
}

// BoardColumn 看板列
type BoardColumn struct {
	ID       string      `json:"id"`
	Title    string      `json:"title"`
	Count    int         `json:"count"`
	Requests []BoardCard `json:"requests"`
}

// BoardSnapshot 整块看板的一次快照，每次读取整体替换
type BoardSnapshot struct {
	Columns     []BoardColumn `json:"columns"`
	Hidden      int           `json:"hidden"`
	GeneratedAt time.Time     `json:"generated_at"`
}

var boardColumnTitles = map[string]string{
	workflow.QueueValidation:   "Validation",
	workflow.QueueReadyPicking: "Ready for Picking",
	workflow.QueueInPicking:    "In Picking",
	workflow.QueueComplete:     "Complete",
}

// Board 获取看板快照，优先走Redis缓存
func (s *RequestService) Board(ctx context.Context) (*BoardSnapshot, error) {
	if s.rdb != nil {
		if cached, err := s.rdb.Get(ctx, boardCacheKey).Result(); err == nil {
			var snapshot BoardSnapshot
			if err := json.Unmarshal([]byte(cached), &snapshot); err == nil {
				return &snapshot, nil
			}
		}
	}
	return s.RefreshBoard(ctx)
}

// RefreshBoard 重建看板快照并写入缓存
func (s *RequestService) RefreshBoard(ctx context.Context) (*BoardSnapshot, error) {
	snapshot, err := s.BuildBoard(ctx)
	if err != nil {
		return nil, err
	}

	if s.rdb != nil {
		if data, err := json.Marshal(snapshot); err == nil {
			if err := s.rdb.Set(ctx, boardCacheKey, data, boardCacheTTL).Err(); err != nil {
				s.logger.Warn("Board cache write failed", zap.Error(err))
			}
		}
	}
	return snapshot, nil
}

// BuildBoard 把所有在途请求归类到队列。
// 队列归属每次都重新推导，评审信息来自请求上的冗余快照。
func (s *RequestService) BuildBoard(ctx context.Context) (*BoardSnapshot, error) {
	requests, err := s.requestRepo.List(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("获取请求列表失败: %w", err)
	}

	now := time.Now()
	columns := make(map[string][]BoardCard, 4)
	hidden := 0

	for i := range requests {
		req := &requests[i]

		reviews := workflow.ParseReviewDetails(req.ReviewDetails)
		if req.ReviewDetails != "" && len(reviews) == 0 {
			s.logger.Warn("Unparsable review details payload, treating as no reviews",
				zap.String("request_id", req.ID))
		}
		buckets := workflow.AggregateReviews(reviews, req.Priority, now)

		queue, ok := workflow.ClassifyQueue(requestState(req), s.recentWindowDays, now)
		if !ok {
			hidden++
			continue
		}

		card := BoardCard{
			ID:                 req.ID,
			RequestNumber:      req.RequestNumber,
			Status:             req.Status,
			Priority:           req.Priority,
			Department:         req.Department,
			Queue:              queue,
			AgeDays:            req.AgeDays(now),
			Overdue:            workflow.IsRequestOverdue(req.Priority, req.CreatedAt, now),
			ItemCount:          req.ItemCount,
			ValidationProgress: req.ValidationProgress,
			PendingValidations: req.PendingValidations,
			ApprovedItems:      req.ApprovedItems,
			RejectedItems:      req.RejectedItems,
			PendingReviews:     buckets.PendingTotal(),
			OverdueReviews:     len(buckets.Overdue),
			CompletedReviews:   len(buckets.Completed),
		}
		if req.Requester != nil {
			card.RequesterName = req.Requester.Name
		}
		columns[queue] = append(columns[queue], card)
	}

	snapshot := &BoardSnapshot{Hidden: hidden, GeneratedAt: now}
	for _, queue := range []string{workflow.QueueValidation, workflow.QueueReadyPicking, workflow.QueueInPicking, workflow.QueueComplete} {
		cards := columns[queue]
		if cards == nil {
			cards = []BoardCard{}
		}
		snapshot.Columns = append(snapshot.Columns, BoardColumn{
			ID:       queue,
			Title:    boardColumnTitles[queue],
			Count:    len(cards),
			Requests: cards,
		})
	}
	return snapshot, nil
}

// StartBoardRefresher 启动看板快照的后台刷新循环
func (s *RequestService) StartBoardRefresher(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = BoardRefreshInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.RefreshBoard(ctx); err != nil {
					s.logger.Warn("Board refresh failed", zap.Error(err))
				}
			}
		}
	}()
}

// InvalidateBoard 请求状态变更后使看板缓存失效
func (s *RequestService) InvalidateBoard(ctx context.Context) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, boardCacheKey).Err(); err != nil {
		s.logger.Warn("Board cache invalidation failed", zap.Error(err))
	}
}

// StatusUpdateResult 队列移动的处理结果。
// RequiresConfirmation 为真时未执行任何变更，调用方需带确认重发。
type StatusUpdateResult struct {
	RequiresConfirmation bool                    `json:"requires_confirmation"`
	Transition           workflow.Transition     `json:"transition"`
	Request              *entity.MaterialRequest `json:"request,omitempty"`
}

// UpdateQueue 把请求移动到目标队列。
// 移动先过 TransitionGuard：向后移动和跳步前进必须有操作者确认，
// 未确认时直接返回警告，不发起任何落库调用。
func (s *RequestService) UpdateQueue(ctx context.Context, id, targetQueue string, confirm bool) (*StatusUpdateResult, error) {
	req, err := s.requestRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	state := requestState(req)
	currentQueue, ok := workflow.ClassifyQueue(state, s.recentWindowDays, now)
	if !ok {
		// 看板上隐藏的老单子按完结处理，重开仍要走确认
		currentQueue = workflow.QueueComplete
	}

	transition, err := workflow.EvaluateTransition(currentQueue, targetQueue, state)
	if err != nil {
		return nil, err
	}

	if transition.RequiresConfirmation && !confirm {
		return &StatusUpdateResult{RequiresConfirmation: true, Transition: transition}, nil
	}

	newStatus := workflow.StatusForQueue(targetQueue)
	if err := s.requestRepo.UpdateStatus(ctx, id, newStatus, now); err != nil {
		return nil, fmt.Errorf("更新请求状态失败: %w", err)
	}
	s.InvalidateBoard(ctx)

	// 状态变更通知请求人，失败只记日志
	go s.notifyStatusChange(req, targetQueue)

	updated, err := s.requestRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &StatusUpdateResult{Transition: transition, Request: updated}, nil
}

func (s *RequestService) notifyStatusChange(req *entity.MaterialRequest, targetQueue string) {
	if s.notifier == nil || req.RequestedBy == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	msg := &notify.Message{
		Type:   notify.MessageStatusChanged,
		UserID: req.RequestedBy,
		Title:  "Request moved: " + req.RequestNumber,
		Body:   fmt.Sprintf("Material request %s was moved to %s.", req.RequestNumber, boardColumnTitles[targetQueue]),
	}
	if err := s.notifier.Send(ctx, msg); err != nil {
		log.Printf("发送状态变更通知失败: request=%s err=%v", req.ID, err)
	}
}

// CreateRequestInput 创建请求入参
type CreateRequestInput struct {
	Priority   string            `json:"priority"`
	Department string            `json:"department"`
	Comments   string            `json:"comments"`
	Items      []CreateItemInput `json:"items" binding:"required,min=1"`
}

// CreateItemInput 创建明细项入参
type CreateItemInput struct {
	PartNumber  string  `json:"part_number" binding:"required"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	Unit        string  `json:"unit"`
}

// Create 创建物料请求及其明细项
func (s *RequestService) Create(ctx context.Context, userID string, input *CreateRequestInput) (*entity.MaterialRequest, error) {
	priority := input.Priority
	if priority == "" {
		priority = entity.RequestPriorityMedium
	}

	req := &entity.MaterialRequest{
		ID:                 uuid.New().String(),
		RequestNumber:      generateRequestNumber(),
		Status:             entity.RequestStatusPendingValidation,
		Priority:           priority,
		Department:         input.Department,
		RequestedBy:        userID,
		Comments:           input.Comments,
		ItemCount:          len(input.Items),
		PendingValidations: len(input.Items),
	}

	for _, item := range input.Items {
		quantity := item.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		unit := item.Unit
		if unit == "" {
			unit = "pcs"
		}
		req.Items = append(req.Items, entity.MaterialRequestItem{
			ID:               uuid.New().String(),
			RequestID:        req.ID,
			PartNumber:       item.PartNumber,
			Description:      item.Description,
			Quantity:         quantity,
			Unit:             unit,
			ValidationStatus: entity.ItemValidationPending,
		})
	}

	if err := s.requestRepo.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("创建物料请求失败: %w", err)
	}
	s.InvalidateBoard(ctx)
	return req, nil
}

func generateRequestNumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:6])
	return fmt.Sprintf("MR-%s-%s", time.Now().Format("20060102"), suffix)
}

// ItemDetail 明细项及其合并后的评审结论
type ItemDetail struct {
	Item           entity.MaterialRequestItem `json:"item"`
	ResolvedStatus string                     `json:"resolved_status"`
	ReviewCounts   workflow.ItemReviewCounts  `json:"review_counts"`
}

// RequestDetail 请求详情
type RequestDetail struct {
	Request *entity.MaterialRequest `json:"request"`
	Queue   string                  `json:"queue"`
	Items   []ItemDetail            `json:"items"`
}

// GetDetail 获取请求详情，逐项合并真实评审记录
func (s *RequestService) GetDetail(ctx context.Context, id string) (*RequestDetail, error) {
	req, err := s.requestRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	queue, ok := workflow.ClassifyQueue(requestState(req), s.recentWindowDays, now)
	if !ok {
		queue = ""
	}

	detail := &RequestDetail{Request: req, Queue: queue}
	for _, item := range req.Items {
		reviews := reviewInfos(item.Reviews)
		detail.Items = append(detail.Items, ItemDetail{
			Item:           item,
			ResolvedStatus: workflow.ResolveItemStatus(item.ValidationStatus, reviews),
			ReviewCounts:   workflow.CountItemReviews(reviews),
		})
	}
	return detail, nil
}

// List 获取请求列表
func (s *RequestService) List(ctx context.Context, filters map[string]interface{}) ([]entity.MaterialRequest, error) {
	return s.requestRepo.List(ctx, filters)
}

// IsNotFound 是否为记录不存在错误
func IsNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}

// requestState 请求实体到队列判定快照的映射
func requestState(req *entity.MaterialRequest) workflow.RequestState {
	return workflow.RequestState{
		Status:             req.Status,
		Priority:           req.Priority,
		ValidationProgress: req.ValidationProgress,
		PendingValidations: req.PendingValidations,
		CompletedAt:        req.CompletedAt,
		DeliveredAt:        req.DeliveredAt,
		ClosedAt:           req.ClosedAt,
		CreatedAt:          req.CreatedAt,
	}
}

// reviewInfos 评审实体到聚合输入的映射
func reviewInfos(reviews []entity.ReviewAssignment) []workflow.ReviewInfo {
	infos := make([]workflow.ReviewInfo, 0, len(reviews))
	for _, r := range reviews {
		name := ""
		if r.Reviewer != nil {
			name = r.Reviewer.Name
		}
		infos = append(infos, workflow.ReviewInfo{
			ID:         r.ID,
			Status:     r.ReviewStatus,
			Decision:   r.ReviewDecision,
			Reviewer:   name,
			Department: r.ReviewerDepartment,
			AssignedAt: r.AssignedAt,
		})
	}
	return infos
}
