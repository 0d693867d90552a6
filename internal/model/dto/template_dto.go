package dto

import (
	"github.com/codexalpha/blueprint_go_server/internal/model"
)

// CreateTemplateRequest 创建提示词模板
type CreateTemplateRequest struct {
	CodexName  string                    `json:"codex_name" binding:"required,max=200"`
	CodexOrder int                       `json:"codex_order"`
	Sections   model.TemplateSectionList `json:"sections" binding:"required,min=1"`
}

// UpdateTemplateRequest 更新提示词模板
type UpdateTemplateRequest struct {
	CodexName  *string                    `json:"codex_name"`
	CodexOrder *int                       `json:"codex_order"`
	IsActive   *bool                      `json:"is_active"`
	Sections   *model.TemplateSectionList `json:"sections"`
}

// TemplateDetail 模板详情
type TemplateDetail struct {
	ID         int64                     `json:"id"`
	CodexName  string                    `json:"codex_name"`
	CodexOrder int                       `json:"codex_order"`
	IsActive   bool                      `json:"is_active"`
	Sections   model.TemplateSectionList `json:"sections"`
	CreatedAt  string                    `json:"created_at"`
	UpdatedAt  string                    `json:"updated_at"`
}
