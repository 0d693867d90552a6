package repository

import (
	"gorm.io/gorm"

	"github.com/codexalpha/blueprint_go_server/internal/model"
)

type CodexRepository struct {
	db *gorm.DB
}

func NewCodexRepository(db *gorm.DB) *CodexRepository {
	return &CodexRepository{db: db}
}

func (r *CodexRepository) Create(codex *model.Codex) error {
	return r.db.Create(codex).Error
}

func (r *CodexRepository) GetByID(id int64) (*model.Codex, error) {
	var codex model.Codex
	err := r.db.Where("id = ?", id).First(&codex).Error
	if err != nil {
		return nil, err
	}
	return &codex, nil
}

// ListByRunID 按 codex_order 返回 run 下所有 codex
func (r *CodexRepository) ListByRunID(runID int64) ([]*model.Codex, error) {
	var codexes []*model.Codex
	err := r.db.Where("run_id = ?", runID).
		Order("codex_order ASC").
		Find(&codexes).Error
	return codexes, err
}

func (r *CodexRepository) Update(codex *model.Codex) error {
	return r.db.Save(codex).Error
}

// UpdateAggregates 写入重算后的聚合状态与计数
func (r *CodexRepository) UpdateAggregates(id int64, status string, total, completed int) error {
	return r.db.Model(&model.Codex{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":             status,
		"total_sections":     total,
		"completed_sections": completed,
	}).Error
}

func (r *CodexRepository) UpdateExportURL(id int64, url string) error {
	return r.db.Model(&model.Codex{}).Where("id = ?", id).Update("export_url", url).Error
}

func (r *CodexRepository) DeleteByRunID(runID int64) error {
	return r.db.Where("run_id = ?", runID).Delete(&model.Codex{}).Error
}

// ListIDsByRunID run 下的 codex id 列表
func (r *CodexRepository) ListIDsByRunID(runID int64) ([]int64, error) {
	var ids []int64
	err := r.db.Model(&model.Codex{}).
		Where("run_id = ?", runID).
		Pluck("id", &ids).Error
	return ids, err
}
