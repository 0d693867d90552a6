package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/codexalpha/blueprint_go_server/internal/api/middleware"
	"github.com/codexalpha/blueprint_go_server/internal/pkg/response"
	"github.com/codexalpha/blueprint_go_server/internal/service"
)

type CodexHandler struct {
	codexService *service.CodexService
	runService   *service.RunService
	retryService *service.RetryService
}

func NewCodexHandler(
	codexService *service.CodexService,
	runService *service.RunService,
	retryService *service.RetryService,
) *CodexHandler {
	return &CodexHandler{
		codexService: codexService,
		runService:   runService,
		retryService: retryService,
	}
}

// Get codex 详情（含章节内容，缺失章节不阻塞交付）
// GET /api/v1/codexes/:id
func (h *CodexHandler) Get(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	codexID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "invalid codex id")
		return
	}

	detail, err := h.codexService.GetDetail(codexID)
	if err != nil {
		if err == service.ErrCodexNotFound {
			response.NotFoundError(c, err.Error())
			return
		}
		response.ServerError(c, "")
		return
	}

	// 归属校验走 run
	if _, err := h.runService.GetDetail(userID, middleware.IsAdmin(c), detail.RunID); err != nil {
		if err == service.ErrRunPermission {
			response.PermissionError(c, err.Error())
			return
		}
		response.ServerError(c, "")
		return
	}

	response.Success(c, detail)
}

// Document 拼好的 markdown 文档（只含已完成章节）
// GET /api/v1/codexes/:id/document
func (h *CodexHandler) Document(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	codexID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "invalid codex id")
		return
	}

	detail, err := h.codexService.GetDetail(codexID)
	if err != nil {
		if err == service.ErrCodexNotFound {
			response.NotFoundError(c, err.Error())
			return
		}
		response.ServerError(c, "")
		return
	}

	if _, err := h.runService.GetDetail(userID, middleware.IsAdmin(c), detail.RunID); err != nil {
		if err == service.ErrRunPermission {
			response.PermissionError(c, err.Error())
			return
		}
		response.ServerError(c, "")
		return
	}

	document, err := h.codexService.AssembleDocument(codexID)
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.Success(c, gin.H{"document": document})
}

// RetrySection 单章节重试
// POST /api/v1/sections/:id/retry
func (h *CodexHandler) RetrySection(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	sectionID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "invalid section id")
		return
	}

	err = h.retryService.RetrySection(c.Request.Context(), userID, middleware.IsAdmin(c), sectionID)
	if err != nil {
		switch err {
		case service.ErrSectionNotFound:
			response.NotFoundError(c, err.Error())
		case service.ErrRunPermission:
			response.PermissionError(c, err.Error())
		case service.ErrSectionNotRetryable, service.ErrRunCancelled:
			response.ConflictError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.SuccessWithMessage(c, "section queued for retry", nil)
}
