package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// PersonaRun 状态常量
const (
	RunStatusPending    = "pending"
	RunStatusGenerating = "generating"
	RunStatusCompleted  = "completed"
	RunStatusFailed     = "failed"
	RunStatusCancelled  = "cancelled"
)

// 答案来源类型
const (
	SourceTypeQuestionnaire = "questionnaire"
	SourceTypeTranscript    = "transcript"
)

// Answer 问卷答案条目，既是生成输入也用于回显
type Answer struct {
	Question   string `json:"question"`
	Answer     string `json:"answer"`
	Category   string `json:"category,omitempty"`
	QuestionID int64  `json:"question_id,omitempty"`
}

// AnswerMap 用于 JSON 对象字段（answer_key -> Answer）
type AnswerMap map[string]Answer

func (m AnswerMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	return json.Marshal(m)
}

func (m *AnswerMap) Scan(value interface{}) error {
	if value == nil {
		*m = AnswerMap{}
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
	return json.Unmarshal(bytes, m)
}

// PersonaRun 一次端到端的问卷到文档生成任务
type PersonaRun struct {
	ID          int64      `gorm:"primaryKey" json:"id"`
	UserID      int64      `gorm:"not null;index" json:"user_id"`
	Title       string     `gorm:"size:200;not null" json:"title"`
	Status      string     `gorm:"size:20;default:pending;index" json:"status"` // pending, generating, completed, failed, cancelled
	SourceType  string     `gorm:"size:20;default:questionnaire" json:"source_type"`
	Answers     AnswerMap  `gorm:"type:json" json:"answers,omitempty"`
	IsCancelled bool       `gorm:"default:false;index" json:"is_cancelled"`
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// 关联
	User    *User   `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Codexes []Codex `gorm:"foreignKey:RunID" json:"codexes,omitempty"`
}

func (PersonaRun) TableName() string {
	return "persona_runs"
}
