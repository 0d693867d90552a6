package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// TemplateSection 模板中的一个章节定义
type TemplateSection struct {
	Index  int    `json:"index"`
	Name   string `json:"name"`
	Prompt string `json:"prompt,omitempty"`
}

// TemplateSectionList 用于 JSON 数组字段
type TemplateSectionList []TemplateSection

func (l TemplateSectionList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	return json.Marshal(l)
}

func (l *TemplateSectionList) Scan(value interface{}) error {
	if value == nil {
		*l = TemplateSectionList{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if s, ok := value.(string); ok {
			bytes = []byte(s)
		} else {
			return nil
		}
	}
	return json.Unmarshal(bytes, l)
}

// PromptTemplate 一种 codex 的章节配置，创建与 resync 都以它为准
type PromptTemplate struct {
	ID         int64               `gorm:"primaryKey" json:"id"`
	CodexName  string              `gorm:"size:200;not null" json:"codex_name"`
	CodexOrder int                 `gorm:"not null;default:0" json:"codex_order"`
	IsActive   bool                `gorm:"index" json:"is_active"`
	Sections   TemplateSectionList `gorm:"type:json" json:"sections"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

func (PromptTemplate) TableName() string {
	return "prompt_templates"
}
