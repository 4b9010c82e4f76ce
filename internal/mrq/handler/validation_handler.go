package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/ritzdacanay24/the-fi-company-mrq/internal/mrq/service"
)

// ValidationHandler 明细项审定处理器
type ValidationHandler struct {
	svc *service.ValidationService
}

func NewValidationHandler(svc *service.ValidationService) *ValidationHandler {
	return &ValidationHandler{svc: svc}
}

// ApproveItem 审定通过单个明细项
// POST /api/v1/mrq/items/:id/approve
func (h *ValidationHandler) ApproveItem(c *gin.Context) {
	item, noop, err := h.svc.ApproveItem(c.Request.Context(), c.Param("id"), GetUserID(c))
	if err != nil {
		h.itemError(c, err, "审定通过失败")
		return
	}
	Success(c, gin.H{"item": item, "noop": noop})
}

// rejectItemRequest 拒绝入参
type rejectItemRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// RejectItem 审定拒绝单个明细项
// POST /api/v1/mrq/items/:id/reject
func (h *ValidationHandler) RejectItem(c *gin.Context) {
	var req rejectItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	item, noop, err := h.svc.RejectItem(c.Request.Context(), c.Param("id"), req.Reason, GetUserID(c))
	if err != nil {
		h.itemError(c, err, "审定拒绝失败")
		return
	}
	Success(c, gin.H{"item": item, "noop": noop})
}

// ResetItem 撤销明细项的审定结论
// POST /api/v1/mrq/items/:id/reset
func (h *ValidationHandler) ResetItem(c *gin.Context) {
	item, noop, err := h.svc.ResetItem(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.itemError(c, err, "撤销审定失败")
		return
	}
	Success(c, gin.H{"item": item, "noop": noop})
}

// commentItemRequest 备注入参
type commentItemRequest struct {
	Comment string `json:"comment"`
}

// CommentItem 给明细项写校验备注
// POST /api/v1/mrq/items/:id/comment
func (h *ValidationHandler) CommentItem(c *gin.Context) {
	var req commentItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	item, err := h.svc.CommentItem(c.Request.Context(), c.Param("id"), req.Comment)
	if err != nil {
		h.itemError(c, err, "更新备注失败")
		return
	}
	Success(c, item)
}

// bulkItemsRequest 批量操作入参
type bulkItemsRequest struct {
	ItemIDs []string `json:"item_ids" binding:"required,min=1"`
	Reason  string   `json:"reason"`
	Comment string   `json:"comment"`
}

// BulkApprove 批量审定通过
// POST /api/v1/mrq/requests/:id/items/bulk-approve
func (h *ValidationHandler) BulkApprove(c *gin.Context) {
	var req bulkItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.svc.BulkApprove(c.Request.Context(), c.Param("id"), req.ItemIDs, GetUserID(c))
	if err != nil {
		h.bulkError(c, err)
		return
	}
	Success(c, result)
}

// BulkReject 批量审定拒绝
// POST /api/v1/mrq/requests/:id/items/bulk-reject
func (h *ValidationHandler) BulkReject(c *gin.Context) {
	var req bulkItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	if req.Reason == "" {
		BadRequest(c, "批量拒绝必须填写原因")
		return
	}

	result, err := h.svc.BulkReject(c.Request.Context(), c.Param("id"), req.ItemIDs, req.Reason, GetUserID(c))
	if err != nil {
		h.bulkError(c, err)
		return
	}
	Success(c, result)
}

// BulkComment 批量写校验备注
// POST /api/v1/mrq/requests/:id/items/bulk-comment
func (h *ValidationHandler) BulkComment(c *gin.Context) {
	var req bulkItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.svc.BulkComment(c.Request.Context(), c.Param("id"), req.ItemIDs, req.Comment)
	if err != nil {
		h.bulkError(c, err)
		return
	}
	Success(c, result)
}

// BulkCancelReviews 批量取消明细项上的未完结评审
// POST /api/v1/mrq/requests/:id/items/bulk-cancel-reviews
func (h *ValidationHandler) BulkCancelReviews(c *gin.Context) {
	var req bulkItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.svc.BulkCancelReviews(c.Request.Context(), c.Param("id"), req.ItemIDs)
	if err != nil {
		h.bulkError(c, err)
		return
	}
	Success(c, result)
}

func (h *ValidationHandler) itemError(c *gin.Context, err error, prefix string) {
	switch {
	case service.IsNotFound(err):
		NotFound(c, "明细项不存在")
	case errors.Is(err, service.ErrMissingIdentity):
		BadRequest(c, err.Error())
	default:
		BadRequest(c, prefix+": "+err.Error())
	}
}

func (h *ValidationHandler) bulkError(c *gin.Context, err error) {
	if service.IsInFlight(err) {
		Conflict(c, err.Error(), nil)
		return
	}
	InternalError(c, "批量操作失败: "+err.Error())
}
