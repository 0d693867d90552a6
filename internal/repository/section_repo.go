package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/codexalpha/blueprint_go_server/internal/model"
)

type SectionRepository struct {
	db *gorm.DB
}

func NewSectionRepository(db *gorm.DB) *SectionRepository {
	return &SectionRepository{db: db}
}

func (r *SectionRepository) Create(section *model.Section) error {
	return r.db.Create(section).Error
}

func (r *SectionRepository) CreateBatch(sections []*model.Section) error {
	if len(sections) == 0 {
		return nil
	}
	return r.db.Create(sections).Error
}

func (r *SectionRepository) GetByID(id int64) (*model.Section, error) {
	var section model.Section
	err := r.db.Where("id = ?", id).First(&section).Error
	if err != nil {
		return nil, err
	}
	return &section, nil
}

// ListByCodexID 按 section_index 升序返回 codex 下所有章节
func (r *SectionRepository) ListByCodexID(codexID int64) ([]*model.Section, error) {
	var sections []*model.Section
	err := r.db.Where("codex_id = ?", codexID).
		Order("section_index ASC").
		Find(&sections).Error
	return sections, err
}

// StatusCounts codex 下各状态的章节数
type StatusCounts struct {
	Total      int
	Pending    int
	Generating int
	Completed  int
	Errored    int
}

// CountByStatus 统计 codex 下各状态数量，聚合状态始终由此重算而非增量维护
func (r *SectionRepository) CountByStatus(codexID int64) (*StatusCounts, error) {
	var rows []struct {
		Status string
		Count  int
	}
	err := r.db.Model(&model.Section{}).
		Select("status, count(*) as count").
		Where("codex_id = ?", codexID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := &StatusCounts{}
	for _, row := range rows {
		counts.Total += row.Count
		switch row.Status {
		case model.SectionStatusPending:
			counts.Pending = row.Count
		case model.SectionStatusGenerating:
			counts.Generating = row.Count
		case model.SectionStatusCompleted:
			counts.Completed = row.Count
		case model.SectionStatusError:
			counts.Errored = row.Count
		}
	}
	return counts, nil
}

// Claim 以条件更新抢占章节（pending -> generating）。
// 返回 false 表示已被其他 worker 抢走或状态已变化。
func (r *SectionRepository) Claim(id int64) (bool, error) {
	result := r.db.Model(&model.Section{}).
		Where("id = ? AND status = ?", id, model.SectionStatusPending).
		Update("status", model.SectionStatusGenerating)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Complete 写入生成内容并置为 completed，错误信息清空
func (r *SectionRepository) Complete(id int64, content string) error {
	return r.db.Model(&model.Section{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":        model.SectionStatusCompleted,
		"content":       content,
		"error_message": nil,
	}).Error
}

// Fail 记录生成失败
func (r *SectionRepository) Fail(id int64, message string) error {
	return r.db.Model(&model.Section{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":        model.SectionStatusError,
		"error_message": message,
	}).Error
}

// ResetToPending 单个重试：回到 pending 并清空错误
func (r *SectionRepository) ResetToPending(id int64) error {
	return r.db.Model(&model.Section{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":        model.SectionStatusPending,
		"error_message": nil,
	}).Error
}

// ResetErroredByRunID 批量重试 run 下所有 error 章节，返回影响行数
func (r *SectionRepository) ResetErroredByRunID(runID int64) (int64, error) {
	result := r.db.Model(&model.Section{}).
		Where("codex_id IN (?)", r.codexIDsOfRun(runID)).
		Where("status = ?", model.SectionStatusError).
		Updates(map[string]interface{}{
			"status":        model.SectionStatusPending,
			"error_message": nil,
		})
	return result.RowsAffected, result.Error
}

// ResetStuckByRunID 批量重试 run 下卡在 pending/generating 超过 olderThan 的章节
func (r *SectionRepository) ResetStuckByRunID(runID int64, olderThan time.Time) (int64, error) {
	result := r.db.Model(&model.Section{}).
		Where("codex_id IN (?)", r.codexIDsOfRun(runID)).
		Where("status IN ?", []string{model.SectionStatusPending, model.SectionStatusGenerating}).
		Where("updated_at < ?", olderThan).
		Update("status", model.SectionStatusPending)
	return result.RowsAffected, result.Error
}

// ForceFailUnfinishedByRunID 强制完成：run 下所有未完成章节置为 error（固定信息）
func (r *SectionRepository) ForceFailUnfinishedByRunID(runID int64) (int64, error) {
	result := r.db.Model(&model.Section{}).
		Where("codex_id IN (?)", r.codexIDsOfRun(runID)).
		Where("status IN ?", []string{model.SectionStatusPending, model.SectionStatusGenerating}).
		Updates(map[string]interface{}{
			"status":        model.SectionStatusError,
			"error_message": model.ForceCompleteMessage,
		})
	return result.RowsAffected, result.Error
}

// ListStuck 全局扫描卡住的章节（恢复扫描用）
func (r *SectionRepository) ListStuck(olderThan time.Time, limit int) ([]*model.Section, error) {
	var sections []*model.Section
	err := r.db.Where("status IN ?", []string{model.SectionStatusPending, model.SectionStatusGenerating}).
		Where("updated_at < ?", olderThan).
		Order("updated_at ASC").
		Limit(limit).
		Find(&sections).Error
	return sections, err
}

// ListPendingByRunID run 下所有 pending 章节（入队用）
func (r *SectionRepository) ListPendingByRunID(runID int64) ([]*model.Section, error) {
	var sections []*model.Section
	err := r.db.Where("codex_id IN (?)", r.codexIDsOfRun(runID)).
		Where("status = ?", model.SectionStatusPending).
		Order("codex_id ASC, section_index ASC").
		Find(&sections).Error
	return sections, err
}

// MaxIndexByCodexID codex 下已有的最大 section_index，空则 -1
func (r *SectionRepository) MaxIndexByCodexID(codexID int64) (int, error) {
	var max *int
	err := r.db.Model(&model.Section{}).
		Select("MAX(section_index)").
		Where("codex_id = ?", codexID).
		Scan(&max).Error
	if err != nil {
		return -1, err
	}
	if max == nil {
		return -1, nil
	}
	return *max, nil
}

// ListIndexesByCodexID codex 下已有的全部 section_index
func (r *SectionRepository) ListIndexesByCodexID(codexID int64) ([]int, error) {
	var indexes []int
	err := r.db.Model(&model.Section{}).
		Where("codex_id = ?", codexID).
		Order("section_index ASC").
		Pluck("section_index", &indexes).Error
	return indexes, err
}

func (r *SectionRepository) DeleteByCodexIDs(codexIDs []int64) error {
	if len(codexIDs) == 0 {
		return nil
	}
	return r.db.Where("codex_id IN ?", codexIDs).Delete(&model.Section{}).Error
}

// codexIDsOfRun 子查询：run 下的 codex id 集合
func (r *SectionRepository) codexIDsOfRun(runID int64) *gorm.DB {
	return r.db.Model(&model.Codex{}).Select("id").Where("run_id = ?", runID)
}
