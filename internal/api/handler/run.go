package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/codexalpha/blueprint_go_server/config"
	"github.com/codexalpha/blueprint_go_server/internal/api/middleware"
	"github.com/codexalpha/blueprint_go_server/internal/model/dto"
	"github.com/codexalpha/blueprint_go_server/internal/pkg/response"
	"github.com/codexalpha/blueprint_go_server/internal/service"
)

type RunHandler struct {
	runService *service.RunService
	cfg        *config.Config
}

func NewRunHandler(runService *service.RunService, cfg *config.Config) *RunHandler {
	return &RunHandler{
		runService: runService,
		cfg:        cfg,
	}
}

// Create 提交问卷答案创建 run
// POST /api/v1/runs
func (h *RunHandler) Create(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.CreateRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.runService.Create(userID, &req)
	if err != nil {
		switch err {
		case service.ErrNoActiveTemplates:
			response.ConflictError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.Success(c, resp)
}

// List run 列表
// GET /api/v1/runs
func (h *RunHandler) List(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	status := c.Query("status")

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	items, total, err := h.runService.List(userID, middleware.IsAdmin(c), page, pageSize, status)
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.SuccessPage(c, total, page, pageSize, items)
}

// Get run 详情
// GET /api/v1/runs/:id
func (h *RunHandler) Get(c *gin.Context) {
	userID, runID, ok := h.runParams(c)
	if !ok {
		return
	}

	detail, err := h.runService.GetDetail(userID, middleware.IsAdmin(c), runID)
	if err != nil {
		h.handleRunError(c, err)
		return
	}

	response.Success(c, detail)
}

// Status 轻量状态上卷，前端轮询用
// GET /api/v1/runs/:id/status
func (h *RunHandler) Status(c *gin.Context) {
	userID, runID, ok := h.runParams(c)
	if !ok {
		return
	}

	status, err := h.runService.GetStatus(userID, middleware.IsAdmin(c), runID)
	if err != nil {
		h.handleRunError(c, err)
		return
	}

	response.Success(c, status)
}

// Start 启动生成
// POST /api/v1/runs/:id/start
func (h *RunHandler) Start(c *gin.Context) {
	userID, runID, ok := h.runParams(c)
	if !ok {
		return
	}

	if err := h.runService.Start(c.Request.Context(), userID, middleware.IsAdmin(c), runID); err != nil {
		h.handleRunError(c, err)
		return
	}

	response.SuccessWithMessage(c, "generation started", nil)
}

// Cancel 取消 run
// POST /api/v1/runs/:id/cancel
func (h *RunHandler) Cancel(c *gin.Context) {
	userID, runID, ok := h.runParams(c)
	if !ok {
		return
	}

	if err := h.runService.Cancel(userID, middleware.IsAdmin(c), runID); err != nil {
		h.handleRunError(c, err)
		return
	}

	response.SuccessWithMessage(c, "run cancelled", nil)
}

// Retry 批量重试
// POST /api/v1/runs/:id/retry
func (h *RunHandler) Retry(c *gin.Context) {
	userID, runID, ok := h.runParams(c)
	if !ok {
		return
	}

	var req dto.RetryRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	stuckAfter := time.Duration(h.cfg.Generation.StuckAfterMinutes) * time.Minute
	reset, err := h.runService.RetrySections(c.Request.Context(), userID, middleware.IsAdmin(c), runID, req.Filter, stuckAfter)
	if err != nil {
		h.handleRunError(c, err)
		return
	}

	response.Success(c, &dto.RetryRunResponse{ResetCount: int(reset)})
}

// Resync 加法对账
// POST /api/v1/runs/:id/resync
func (h *RunHandler) Resync(c *gin.Context) {
	userID, runID, ok := h.runParams(c)
	if !ok {
		return
	}

	resp, err := h.runService.Resync(userID, middleware.IsAdmin(c), runID)
	if err != nil {
		h.handleRunError(c, err)
		return
	}

	response.Success(c, resp)
}

// Rerun 破坏式全量重建
// POST /api/v1/runs/:id/rerun
func (h *RunHandler) Rerun(c *gin.Context) {
	userID, runID, ok := h.runParams(c)
	if !ok {
		return
	}

	resp, err := h.runService.FullRerun(userID, middleware.IsAdmin(c), runID)
	if err != nil {
		h.handleRunError(c, err)
		return
	}

	response.Success(c, resp)
}

// ForceComplete 管理员强制完成
// POST /api/v1/admin/runs/:id/force-complete
func (h *RunHandler) ForceComplete(c *gin.Context) {
	runID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "invalid run id")
		return
	}

	forced, err := h.runService.ForceComplete(runID)
	if err != nil {
		h.handleRunError(c, err)
		return
	}

	response.Success(c, gin.H{"forced_sections": forced})
}

// Delete 删除 run
// DELETE /api/v1/runs/:id
func (h *RunHandler) Delete(c *gin.Context) {
	userID, runID, ok := h.runParams(c)
	if !ok {
		return
	}

	if err := h.runService.Delete(userID, middleware.IsAdmin(c), runID); err != nil {
		h.handleRunError(c, err)
		return
	}

	response.SuccessWithMessage(c, "run deleted", nil)
}

func (h *RunHandler) runParams(c *gin.Context) (userID, runID int64, ok bool) {
	userID, hasUser := middleware.GetUserID(c)
	if !hasUser {
		response.AuthError(c, "")
		return 0, 0, false
	}

	runID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "invalid run id")
		return 0, 0, false
	}

	return userID, runID, true
}

func (h *RunHandler) handleRunError(c *gin.Context, err error) {
	switch err {
	case service.ErrRunNotFound:
		response.NotFoundError(c, err.Error())
	case service.ErrRunPermission:
		response.PermissionError(c, err.Error())
	case service.ErrRunNotPending, service.ErrRunFinished, service.ErrRunCancelled, service.ErrNoActiveTemplates:
		response.ConflictError(c, err.Error())
	default:
		response.ServerError(c, "")
	}
}
