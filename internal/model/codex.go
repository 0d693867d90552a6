package model

import (
	"time"
)

// Codex 状态常量
const (
	CodexStatusNotStarted      = "not_started"
	CodexStatusAwaitingAnswers = "awaiting_answers"
	CodexStatusPending         = "pending"
	CodexStatusGenerating      = "generating"
	CodexStatusReady           = "ready"
	CodexStatusReadyWithErrors = "ready_with_errors"
	CodexStatusFailed          = "failed"
)

// Codex 一份多章节交付文档，隶属于一个 PersonaRun
type Codex struct {
	ID                int64     `gorm:"primaryKey" json:"id"`
	RunID             int64     `gorm:"not null;index" json:"run_id"`
	TemplateID        int64     `gorm:"not null;index" json:"template_id"`
	Name              string    `gorm:"size:200;not null" json:"name"`
	CodexOrder        int       `gorm:"not null" json:"codex_order"`
	Status            string    `gorm:"size:20;default:not_started;index" json:"status"`
	TotalSections     int       `gorm:"default:0" json:"total_sections"`
	CompletedSections int       `gorm:"default:0" json:"completed_sections"`
	ExportURL         string    `gorm:"size:500" json:"export_url,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`

	// 关联
	Sections []Section `gorm:"foreignKey:CodexID" json:"sections,omitempty"`
}

func (Codex) TableName() string {
	return "codexes"
}

// IsDeliverable ready 或 ready_with_errors 都视为可交付
func (c *Codex) IsDeliverable() bool {
	return c.Status == CodexStatusReady || c.Status == CodexStatusReadyWithErrors
}
