package repository

import (
	"gorm.io/gorm"

	"github.com/codexalpha/blueprint_go_server/internal/model"
)

type TemplateRepository struct {
	db *gorm.DB
}

func NewTemplateRepository(db *gorm.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

func (r *TemplateRepository) Create(template *model.PromptTemplate) error {
	return r.db.Create(template).Error
}

func (r *TemplateRepository) GetByID(id int64) (*model.PromptTemplate, error) {
	var template model.PromptTemplate
	err := r.db.Where("id = ?", id).First(&template).Error
	if err != nil {
		return nil, err
	}
	return &template, nil
}

func (r *TemplateRepository) Update(template *model.PromptTemplate) error {
	return r.db.Save(template).Error
}

// ListActive 当前启用的模板，按 codex_order 排序；run 创建与 resync 都以此为准
func (r *TemplateRepository) ListActive() ([]*model.PromptTemplate, error) {
	var templates []*model.PromptTemplate
	err := r.db.Where("is_active = ?", true).
		Order("codex_order ASC").
		Find(&templates).Error
	return templates, err
}

func (r *TemplateRepository) ListAll() ([]*model.PromptTemplate, error) {
	var templates []*model.PromptTemplate
	err := r.db.Order("codex_order ASC").Find(&templates).Error
	return templates, err
}
