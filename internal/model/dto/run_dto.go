package dto

import (
	"github.com/codexalpha/blueprint_go_server/internal/model"
)

// CreateRunRequest 创建 Persona Run
type CreateRunRequest struct {
	Title      string          `json:"title" binding:"required,max=200"`
	SourceType string          `json:"source_type" binding:"omitempty,oneof=questionnaire transcript"`
	Answers    model.AnswerMap `json:"answers" binding:"required"`
}

type CreateRunResponse struct {
	RunID    int64   `json:"run_id"`
	CodexIDs []int64 `json:"codex_ids"`
}

// RunListItem 列表项
type RunListItem struct {
	ID                int64  `json:"id"`
	Title             string `json:"title"`
	Status            string `json:"status"`
	SourceType        string `json:"source_type"`
	TotalCodexes      int    `json:"total_codexes"`
	ReadyCodexes      int    `json:"ready_codexes"`
	TotalSections     int    `json:"total_sections"`
	CompletedSections int    `json:"completed_sections"`
	CreatedAt         string `json:"created_at"`
	UpdatedAt         string `json:"updated_at"`
}

// CodexProgress run 详情中每个 codex 的进度
type CodexProgress struct {
	ID                int64  `json:"id"`
	Name              string `json:"name"`
	CodexOrder        int    `json:"codex_order"`
	Status            string `json:"status"`
	TotalSections     int    `json:"total_sections"`
	CompletedSections int    `json:"completed_sections"`
	ErroredSections   int    `json:"errored_sections"`
	ExportURL         string `json:"export_url,omitempty"`
}

// RunDetail 详情
type RunDetail struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"user_id"`
	Title       string          `json:"title"`
	Status      string          `json:"status"`
	SourceType  string          `json:"source_type"`
	Answers     model.AnswerMap `json:"answers,omitempty"`
	IsCancelled bool            `json:"is_cancelled"`
	Codexes     []CodexProgress `json:"codexes"`
	CreatedAt   string          `json:"created_at"`
	StartedAt   string          `json:"started_at,omitempty"`
	CompletedAt string          `json:"completed_at,omitempty"`
}

// RunStatusResponse 轻量状态上卷，供前端轮询
type RunStatusResponse struct {
	RunID       int64           `json:"run_id"`
	Status      string          `json:"status"`
	IsCancelled bool            `json:"is_cancelled"`
	Codexes     []CodexProgress `json:"codexes"`
}

// RetryRunRequest 批量重试
type RetryRunRequest struct {
	Filter string `json:"filter" binding:"required,oneof=error stuck"`
}

// RetryRunResponse 批量重试结果
type RetryRunResponse struct {
	ResetCount int `json:"reset_count"`
}

// SectionDetail 章节详情
type SectionDetail struct {
	ID           int64  `json:"id"`
	CodexID      int64  `json:"codex_id"`
	SectionIndex int    `json:"section_index"`
	Name         string `json:"name"`
	Status       string `json:"status"`
	Content      string `json:"content,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	UpdatedAt    string `json:"updated_at"`
}

// CodexDetail codex 详情（含章节）
type CodexDetail struct {
	ID                int64           `json:"id"`
	RunID             int64           `json:"run_id"`
	TemplateID        int64           `json:"template_id"`
	Name              string          `json:"name"`
	Status            string          `json:"status"`
	TotalSections     int             `json:"total_sections"`
	CompletedSections int             `json:"completed_sections"`
	ExportURL         string          `json:"export_url,omitempty"`
	Sections          []SectionDetail `json:"sections"`
}

// ResyncResponse resync 结果
type ResyncResponse struct {
	AddedSections int `json:"added_sections"`
	AddedCodexes  int `json:"added_codexes"`
}
