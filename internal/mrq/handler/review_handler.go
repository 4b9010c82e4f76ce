package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/ritzdacanay24/the-fi-company-mrq/internal/mrq/service"
)

// ReviewHandler 评审处理器
type ReviewHandler struct {
	svc *service.ReviewService
}

func NewReviewHandler(svc *service.ReviewService) *ReviewHandler {
	return &ReviewHandler{svc: svc}
}

// SendForReview 把选中明细项批量送审
// POST /api/v1/mrq/requests/:id/reviews
func (h *ReviewHandler) SendForReview(c *gin.Context) {
	var input service.SendForReviewInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	reviews, err := h.svc.SendForReview(c.Request.Context(), c.Param("id"), &input)
	if err != nil {
		if service.IsNotFound(err) {
			NotFound(c, "请求或明细项不存在")
			return
		}
		BadRequest(c, "送审失败: "+err.Error())
		return
	}
	Created(c, gin.H{"reviews": reviews, "count": len(reviews)})
}

// submitReviewRequest 提交评审入参
type submitReviewRequest struct {
	Decision string `json:"decision" binding:"required"`
	Comment  string `json:"comment"`
}

// Submit 提交评审结论
// POST /api/v1/mrq/reviews/:id/submit
func (h *ReviewHandler) Submit(c *gin.Context) {
	var req submitReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	review, noop, err := h.svc.SubmitReview(c.Request.Context(), c.Param("id"), req.Decision, req.Comment)
	if err != nil {
		if service.IsNotFound(err) {
			NotFound(c, "评审不存在")
			return
		}
		BadRequest(c, "提交评审失败: "+err.Error())
		return
	}
	Success(c, gin.H{"review": review, "noop": noop})
}

// Cancel 取消评审
// POST /api/v1/mrq/reviews/:id/cancel
func (h *ReviewHandler) Cancel(c *gin.Context) {
	noop, err := h.svc.CancelReview(c.Request.Context(), c.Param("id"))
	if err != nil {
		if service.IsNotFound(err) {
			NotFound(c, "评审不存在")
			return
		}
		InternalError(c, "取消评审失败: "+err.Error())
		return
	}
	Success(c, gin.H{"noop": noop})
}

// reassignRequest 升级/改派入参
type reassignRequest struct {
	ReviewerID string `json:"reviewer_id" binding:"required"`
	Note       string `json:"note"`
}

// Escalate 评审升级
// POST /api/v1/mrq/reviews/:id/escalate
func (h *ReviewHandler) Escalate(c *gin.Context) {
	var req reassignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	escalated, err := h.svc.EscalateReview(c.Request.Context(), c.Param("id"), req.ReviewerID, req.Note)
	if err != nil {
		if service.IsNotFound(err) {
			NotFound(c, "评审不存在")
			return
		}
		BadRequest(c, "评审升级失败: "+err.Error())
		return
	}
	Created(c, escalated)
}

// Reassign 评审改派
// POST /api/v1/mrq/reviews/:id/reassign
func (h *ReviewHandler) Reassign(c *gin.Context) {
	var req reassignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	replacement, err := h.svc.ReassignReview(c.Request.Context(), c.Param("id"), req.ReviewerID, req.Note)
	if err != nil {
		if service.IsNotFound(err) {
			NotFound(c, "评审不存在")
			return
		}
		BadRequest(c, "评审改派失败: "+err.Error())
		return
	}
	Created(c, replacement)
}

// Remind 催办评审
// POST /api/v1/mrq/reviews/:id/remind
func (h *ReviewHandler) Remind(c *gin.Context) {
	if err := h.svc.SendReminder(c.Request.Context(), c.Param("id")); err != nil {
		if service.IsNotFound(err) {
			NotFound(c, "评审不存在")
			return
		}
		BadRequest(c, "发送催办失败: "+err.Error())
		return
	}
	Success(c, gin.H{"message": "reminder sent"})
}

// clarifyRequest 澄清入参
type clarifyRequest struct {
	Question string `json:"question" binding:"required"`
}

// Clarify 评审人向请求人发起澄清
// POST /api/v1/mrq/reviews/:id/clarify
func (h *ReviewHandler) Clarify(c *gin.Context) {
	var req clarifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	if err := h.svc.RequestClarification(c.Request.Context(), c.Param("id"), req.Question); err != nil {
		if service.IsNotFound(err) {
			NotFound(c, "评审不存在")
			return
		}
		BadRequest(c, "发起澄清失败: "+err.Error())
		return
	}
	Success(c, gin.H{"message": "clarification sent"})
}

// bulkItemReviewsRequest 批量查询明细项评审入参
type bulkItemReviewsRequest struct {
	ItemIDs []string `json:"item_ids" binding:"required,min=1"`
}

// BulkItemReviews 批量查询多个明细项的评审
// POST /api/v1/mrq/reviews/bulk-items
func (h *ReviewHandler) BulkItemReviews(c *gin.Context) {
	var req bulkItemReviewsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	grouped, err := h.svc.GetBulkItemReviews(c.Request.Context(), req.ItemIDs)
	if err != nil {
		InternalError(c, "批量查询评审失败: "+err.Error())
		return
	}
	Success(c, grouped)
}

// DepartmentSummary 请求下按部门汇总评审
// GET /api/v1/mrq/requests/:id/reviews/summary
func (h *ReviewHandler) DepartmentSummary(c *gin.Context) {
	summary, err := h.svc.SummaryByDepartment(c.Request.Context(), c.Param("id"))
	if err != nil {
		InternalError(c, "获取部门汇总失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": summary})
}

// Dashboard 当前用户的评审工作台
// GET /api/v1/mrq/reviews/dashboard
func (h *ReviewHandler) Dashboard(c *gin.Context) {
	userID := GetUserID(c)
	if userID == "" {
		Unauthorized(c, "未登录")
		return
	}

	dashboard, err := h.svc.Dashboard(c.Request.Context(), userID)
	if err != nil {
		InternalError(c, "获取评审工作台失败: "+err.Error())
		return
	}
	Success(c, dashboard)
}
