package handler

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/ritzdacanay24/the-fi-company-mrq/internal/mrq/service"
)

// RequestHandler 物料请求处理器
type RequestHandler struct {
	requestSvc    *service.RequestService
	validationSvc *service.ValidationService
	exportSvc     *service.ExportService
}

func NewRequestHandler(requestSvc *service.RequestService, validationSvc *service.ValidationService, exportSvc *service.ExportService) *RequestHandler {
	return &RequestHandler{
		requestSvc:    requestSvc,
		validationSvc: validationSvc,
		exportSvc:     exportSvc,
	}
}

// Board 看板快照
// GET /api/v1/mrq/board
func (h *RequestHandler) Board(c *gin.Context) {
	snapshot, err := h.requestSvc.Board(c.Request.Context())
	if err != nil {
		InternalError(c, "获取看板失败: "+err.Error())
		return
	}
	Success(c, snapshot)
}

// ExportBoard 看板导出Excel
// GET /api/v1/mrq/board/export
func (h *RequestHandler) ExportBoard(c *gin.Context) {
	f, filename, err := h.exportSvc.ExportBoard(c.Request.Context())
	if err != nil {
		InternalError(c, "导出看板失败: "+err.Error())
		return
	}
	defer f.Close()

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := f.Write(c.Writer); err != nil {
		InternalError(c, "写出Excel失败: "+err.Error())
	}
}

// List 请求列表
// GET /api/v1/mrq/requests?status=xxx&priority=xxx&department=xxx
func (h *RequestHandler) List(c *gin.Context) {
	filters := make(map[string]interface{})
	if v := c.Query("status"); v != "" {
		filters["status"] = v
	}
	if v := c.Query("priority"); v != "" {
		filters["priority"] = v
	}
	if v := c.Query("department"); v != "" {
		filters["department"] = v
	}

	requests, err := h.requestSvc.List(c.Request.Context(), filters)
	if err != nil {
		InternalError(c, "获取请求列表失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": requests, "total": len(requests)})
}

// Create 创建物料请求
// POST /api/v1/mrq/requests
func (h *RequestHandler) Create(c *gin.Context) {
	var input service.CreateRequestInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	req, err := h.requestSvc.Create(c.Request.Context(), GetUserID(c), &input)
	if err != nil {
		InternalError(c, "创建请求失败: "+err.Error())
		return
	}
	Created(c, req)
}

// Get 请求详情
// GET /api/v1/mrq/requests/:id
func (h *RequestHandler) Get(c *gin.Context) {
	detail, err := h.requestSvc.GetDetail(c.Request.Context(), c.Param("id"))
	if err != nil {
		if service.IsNotFound(err) {
			NotFound(c, "请求不存在")
			return
		}
		InternalError(c, "获取请求详情失败: "+err.Error())
		return
	}
	Success(c, detail)
}

// updateStatusRequest 队列移动入参
type updateStatusRequest struct {
	Queue   string `json:"queue" binding:"required"`
	Confirm bool   `json:"confirm"`
}

// UpdateStatus 把请求移动到目标队列。
// 向后移动和跳步前进需要确认：未带 confirm 时返回409和警告文案，
// 调用方确认后带 confirm=true 重发。
// PATCH /api/v1/mrq/requests/:id/status
func (h *RequestHandler) UpdateStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.requestSvc.UpdateQueue(c.Request.Context(), c.Param("id"), req.Queue, req.Confirm)
	if err != nil {
		if service.IsNotFound(err) {
			NotFound(c, "请求不存在")
			return
		}
		BadRequest(c, "移动请求失败: "+err.Error())
		return
	}

	if result.RequiresConfirmation {
		Conflict(c, "此移动需要确认", result)
		return
	}
	Success(c, result)
}

// AnalyzeFlow 分析整单处理决议（只读）
// GET /api/v1/mrq/requests/:id/flow
func (h *RequestHandler) AnalyzeFlow(c *gin.Context) {
	flow, err := h.validationSvc.AnalyzeBusinessFlow(c.Request.Context(), c.Param("id"))
	if err != nil {
		if service.IsUnresolved(err) {
			BadRequest(c, err.Error())
			return
		}
		InternalError(c, "分析整单决议失败: "+err.Error())
		return
	}
	Success(c, flow)
}

// ExecuteFlow 执行整单处理决议
// POST /api/v1/mrq/requests/:id/flow
func (h *RequestHandler) ExecuteFlow(c *gin.Context) {
	flow, err := h.validationSvc.ExecuteBusinessFlow(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case service.IsInFlight(err):
			Conflict(c, err.Error(), nil)
		case service.IsUnresolved(err):
			BadRequest(c, err.Error())
		default:
			InternalError(c, "执行整单决议失败: "+err.Error())
		}
		return
	}
	Success(c, flow)
}
