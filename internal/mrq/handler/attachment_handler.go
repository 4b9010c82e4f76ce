package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/ritzdacanay24/the-fi-company-mrq/internal/mrq/service"
)

// AttachmentHandler 附件处理器
type AttachmentHandler struct {
	svc *service.AttachmentService
}

func NewAttachmentHandler(svc *service.AttachmentService) *AttachmentHandler {
	return &AttachmentHandler{svc: svc}
}

// Upload 上传请求附件
// POST /api/v1/mrq/requests/:id/attachments
func (h *AttachmentHandler) Upload(c *gin.Context) {
	if !h.svc.Enabled() {
		Error(c, 50300, "对象存储未配置")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "没有上传文件")
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		InternalError(c, "读取上传文件失败: "+err.Error())
		return
	}
	defer src.Close()

	key, err := h.svc.Upload(c.Request.Context(), c.Param("id"),
		fileHeader.Filename, fileHeader.Header.Get("Content-Type"), fileHeader.Size, src)
	if err != nil {
		InternalError(c, "上传附件失败: "+err.Error())
		return
	}

	Created(c, gin.H{
		"object_key": key,
		"filename":   fileHeader.Filename,
		"size":       fileHeader.Size,
	})
}

// DownloadURL 生成附件的临时下载链接
// GET /api/v1/mrq/attachments/url?key=xxx
func (h *AttachmentHandler) DownloadURL(c *gin.Context) {
	if !h.svc.Enabled() {
		Error(c, 50300, "对象存储未配置")
		return
	}

	key := c.Query("key")
	if key == "" {
		BadRequest(c, "缺少附件键")
		return
	}

	url, err := h.svc.PresignedURL(c.Request.Context(), key)
	if err != nil {
		InternalError(c, "生成下载链接失败: "+err.Error())
		return
	}
	Success(c, gin.H{"url": url})
}
