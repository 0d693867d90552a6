package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/codexalpha/blueprint_go_server/internal/model/dto"
	"github.com/codexalpha/blueprint_go_server/internal/pkg/response"
	"github.com/codexalpha/blueprint_go_server/internal/service"
)

type TemplateHandler struct {
	templateService *service.TemplateService
}

func NewTemplateHandler(templateService *service.TemplateService) *TemplateHandler {
	return &TemplateHandler{
		templateService: templateService,
	}
}

// List 模板列表
// GET /api/v1/admin/templates
func (h *TemplateHandler) List(c *gin.Context) {
	items, err := h.templateService.List()
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.Success(c, items)
}

// Get 模板详情
// GET /api/v1/admin/templates/:id
func (h *TemplateHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "invalid template id")
		return
	}

	detail, err := h.templateService.Get(id)
	if err != nil {
		if err == service.ErrTemplateNotFound {
			response.NotFoundError(c, err.Error())
			return
		}
		response.ServerError(c, "")
		return
	}

	response.Success(c, detail)
}

// Create 创建模板
// POST /api/v1/admin/templates
func (h *TemplateHandler) Create(c *gin.Context) {
	var req dto.CreateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	detail, err := h.templateService.Create(&req)
	if err != nil {
		if err == service.ErrDuplicateSectionIndex {
			response.ParamError(c, err.Error())
			return
		}
		response.ServerError(c, "")
		return
	}

	response.Success(c, detail)
}

// Update 更新模板；已有 run 通过 resync 拿到新增章节
// PUT /api/v1/admin/templates/:id
func (h *TemplateHandler) Update(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "invalid template id")
		return
	}

	var req dto.UpdateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	detail, err := h.templateService.Update(id, &req)
	if err != nil {
		switch err {
		case service.ErrTemplateNotFound:
			response.NotFoundError(c, err.Error())
		case service.ErrDuplicateSectionIndex:
			response.ParamError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.Success(c, detail)
}
