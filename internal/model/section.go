package model

import (
	"time"
)

// Section 状态常量
const (
	SectionStatusPending    = "pending"
	SectionStatusGenerating = "generating"
	SectionStatusCompleted  = "completed"
	SectionStatusError      = "error"
)

// ForceCompleteMessage 管理员强制完成时写入的固定错误信息
const ForceCompleteMessage = "Force completed by admin"

// Section 一个原子生成单元（对应一次 LLM 调用）
type Section struct {
	ID           int64     `gorm:"primaryKey" json:"id"`
	CodexID      int64     `gorm:"not null;index;uniqueIndex:idx_codex_section_index,priority:1" json:"codex_id"`
	SectionIndex int       `gorm:"not null;uniqueIndex:idx_codex_section_index,priority:2" json:"section_index"`
	Name         string    `gorm:"size:200;not null" json:"name"`
	Prompt       string    `gorm:"type:text" json:"prompt,omitempty"`
	Status       string    `gorm:"size:20;default:pending;index" json:"status"` // pending, generating, completed, error
	Content      *string   `gorm:"type:longtext" json:"content,omitempty"`
	ErrorMessage *string   `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `gorm:"index" json:"updated_at"`
}

func (Section) TableName() string {
	return "sections"
}

// IsFinished 是否已到达终态
func (s *Section) IsFinished() bool {
	return s.Status == SectionStatusCompleted || s.Status == SectionStatusError
}
