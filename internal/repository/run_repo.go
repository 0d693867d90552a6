package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/codexalpha/blueprint_go_server/internal/model"
)

type RunRepository struct {
	db *gorm.DB
}

func NewRunRepository(db *gorm.DB) *RunRepository {
	return &RunRepository{db: db}
}

func (r *RunRepository) Create(run *model.PersonaRun) error {
	return r.db.Create(run).Error
}

func (r *RunRepository) GetByID(id int64) (*model.PersonaRun, error) {
	var run model.PersonaRun
	err := r.db.Where("id = ?", id).First(&run).Error
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *RunRepository) Update(run *model.PersonaRun) error {
	return r.db.Save(run).Error
}

func (r *RunRepository) UpdateStatus(id int64, status string) error {
	return r.db.Model(&model.PersonaRun{}).Where("id = ?", id).Update("status", status).Error
}

// MarkStarted 进入 generating 并记录 started_at
func (r *RunRepository) MarkStarted(id int64) error {
	now := time.Now()
	return r.db.Model(&model.PersonaRun{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":     model.RunStatusGenerating,
		"started_at": &now,
	}).Error
}

// MarkCompleted 置为 completed 并记录 completed_at
func (r *RunRepository) MarkCompleted(id int64) error {
	now := time.Now()
	return r.db.Model(&model.PersonaRun{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":       model.RunStatusCompleted,
		"completed_at": &now,
	}).Error
}

// MarkCancelled 置为取消；is_cancelled 是终态覆盖，worker 抢占前必须检查
func (r *RunRepository) MarkCancelled(id int64) error {
	return r.db.Model(&model.PersonaRun{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":       model.RunStatusCancelled,
		"is_cancelled": true,
	}).Error
}

// IsCancelled 协作式取消检查
func (r *RunRepository) IsCancelled(id int64) (bool, error) {
	var cancelled bool
	err := r.db.Model(&model.PersonaRun{}).
		Where("id = ?", id).
		Pluck("is_cancelled", &cancelled).Error
	return cancelled, err
}

func (r *RunRepository) Delete(id int64) error {
	return r.db.Delete(&model.PersonaRun{}, id).Error
}

// ListByUserID 用户的 run 列表
func (r *RunRepository) ListByUserID(userID int64, page, pageSize int, status string) ([]*model.PersonaRun, int64, error) {
	var runs []*model.PersonaRun
	var total int64

	query := r.db.Model(&model.PersonaRun{}).Where("user_id = ?", userID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	if err := query.Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&runs).Error; err != nil {
		return nil, 0, err
	}

	return runs, total, nil
}

// ListAll 管理员视图：全部 run
func (r *RunRepository) ListAll(page, pageSize int, status string) ([]*model.PersonaRun, int64, error) {
	var runs []*model.PersonaRun
	var total int64

	query := r.db.Model(&model.PersonaRun{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	if err := query.Preload("User").Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&runs).Error; err != nil {
		return nil, 0, err
	}

	return runs, total, nil
}
