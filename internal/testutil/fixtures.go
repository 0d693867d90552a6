package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"gorm.io/gorm"

	"github.com/codexalpha/blueprint_go_server/internal/model"
)

var seq int64

func nextSeq() int64 {
	return atomic.AddInt64(&seq, 1)
}

// TestUser 创建测试用户
func TestUser(t *testing.T, db *gorm.DB, opts ...func(*model.User)) *model.User {
	t.Helper()

	n := nextSeq()
	email := fmt.Sprintf("test_%d@example.com", n)
	passwordHash := "$2a$10$abcdefghijklmnopqrstuvwxyz123456" // bcrypt hash placeholder
	user := &model.User{
		Username:     fmt.Sprintf("testuser_%d", n),
		Email:        &email,
		PasswordHash: &passwordHash,
	}

	for _, opt := range opts {
		opt(user)
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	return user
}

// WithAdmin 设置管理员标记
func WithAdmin() func(*model.User) {
	return func(u *model.User) {
		u.IsAdmin = true
	}
}

// WithUsername 设置用户名
func WithUsername(username string) func(*model.User) {
	return func(u *model.User) {
		u.Username = username
	}
}

// TestTemplate 创建测试模板（默认 3 个章节）
func TestTemplate(t *testing.T, db *gorm.DB, opts ...func(*model.PromptTemplate)) *model.PromptTemplate {
	t.Helper()

	n := nextSeq()
	template := &model.PromptTemplate{
		CodexName:  fmt.Sprintf("Test Codex %d", n),
		CodexOrder: 1,
		IsActive:   true,
		Sections: model.TemplateSectionList{
			{Index: 1, Name: "Section 1", Prompt: "Write section 1"},
			{Index: 2, Name: "Section 2", Prompt: "Write section 2"},
			{Index: 3, Name: "Section 3", Prompt: "Write section 3"},
		},
	}

	for _, opt := range opts {
		opt(template)
	}

	if err := db.Create(template).Error; err != nil {
		t.Fatalf("Failed to create test template: %v", err)
	}

	return template
}

// WithSections 替换模板章节定义
func WithSections(sections ...model.TemplateSection) func(*model.PromptTemplate) {
	return func(tpl *model.PromptTemplate) {
		tpl.Sections = sections
	}
}

// WithInactive 停用模板
func WithInactive() func(*model.PromptTemplate) {
	return func(tpl *model.PromptTemplate) {
		tpl.IsActive = false
	}
}

// TestRun 创建测试 run
func TestRun(t *testing.T, db *gorm.DB, userID int64, opts ...func(*model.PersonaRun)) *model.PersonaRun {
	t.Helper()

	run := &model.PersonaRun{
		UserID:     userID,
		Title:      fmt.Sprintf("Test Run %d", nextSeq()),
		Status:     model.RunStatusPending,
		SourceType: model.SourceTypeQuestionnaire,
		Answers: model.AnswerMap{
			"q1": {Question: "What is your coaching style?", Answer: "Direct and practical"},
		},
	}

	for _, opt := range opts {
		opt(run)
	}

	if err := db.Create(run).Error; err != nil {
		t.Fatalf("Failed to create test run: %v", err)
	}

	return run
}

// WithRunStatus 设置 run 状态
func WithRunStatus(status string) func(*model.PersonaRun) {
	return func(r *model.PersonaRun) {
		r.Status = status
	}
}

// WithCancelled 标记 run 已取消
func WithCancelled() func(*model.PersonaRun) {
	return func(r *model.PersonaRun) {
		r.IsCancelled = true
		r.Status = model.RunStatusCancelled
	}
}

// WithAnswers 设置问卷答案
func WithAnswers(answers model.AnswerMap) func(*model.PersonaRun) {
	return func(r *model.PersonaRun) {
		r.Answers = answers
	}
}

// TestCodex 创建测试 codex
func TestCodex(t *testing.T, db *gorm.DB, runID, templateID int64, opts ...func(*model.Codex)) *model.Codex {
	t.Helper()

	codex := &model.Codex{
		RunID:      runID,
		TemplateID: templateID,
		Name:       fmt.Sprintf("Test Codex %d", nextSeq()),
		CodexOrder: 1,
		Status:     model.CodexStatusPending,
	}

	for _, opt := range opts {
		opt(codex)
	}

	if err := db.Create(codex).Error; err != nil {
		t.Fatalf("Failed to create test codex: %v", err)
	}

	return codex
}

// WithCodexStatus 设置 codex 状态
func WithCodexStatus(status string) func(*model.Codex) {
	return func(c *model.Codex) {
		c.Status = status
	}
}

// WithTotals 设置聚合计数
func WithTotals(total, completed int) func(*model.Codex) {
	return func(c *model.Codex) {
		c.TotalSections = total
		c.CompletedSections = completed
	}
}

// TestSection 创建测试章节
func TestSection(t *testing.T, db *gorm.DB, codexID int64, index int, opts ...func(*model.Section)) *model.Section {
	t.Helper()

	section := &model.Section{
		CodexID:      codexID,
		SectionIndex: index,
		Name:         fmt.Sprintf("Section %d", index),
		Prompt:       fmt.Sprintf("Write section %d", index),
		Status:       model.SectionStatusPending,
	}

	for _, opt := range opts {
		opt(section)
	}

	if err := db.Create(section).Error; err != nil {
		t.Fatalf("Failed to create test section: %v", err)
	}

	return section
}

// WithSectionStatus 设置章节状态
func WithSectionStatus(status string) func(*model.Section) {
	return func(s *model.Section) {
		s.Status = status
	}
}

// WithContent 设置章节内容并标记完成
func WithContent(content string) func(*model.Section) {
	return func(s *model.Section) {
		s.Status = model.SectionStatusCompleted
		s.Content = &content
	}
}

// WithError 设置错误信息并标记失败
func WithError(message string) func(*model.Section) {
	return func(s *model.Section) {
		s.Status = model.SectionStatusError
		s.ErrorMessage = &message
	}
}
