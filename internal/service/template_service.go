package service

import (
	"errors"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/codexalpha/blueprint_go_server/internal/model"
	"github.com/codexalpha/blueprint_go_server/internal/model/dto"
	"github.com/codexalpha/blueprint_go_server/internal/repository"
)

var ErrDuplicateSectionIndex = errors.New("template sections contain duplicate indexes")

type TemplateService struct {
	templateRepo *repository.TemplateRepository
}

func NewTemplateService(templateRepo *repository.TemplateRepository) *TemplateService {
	return &TemplateService{templateRepo: templateRepo}
}

// Create 创建模板；章节按 index 排序存储，index 不允许重复
func (s *TemplateService) Create(req *dto.CreateTemplateRequest) (*dto.TemplateDetail, error) {
	sections, err := normalizeSections(req.Sections)
	if err != nil {
		return nil, err
	}

	template := &model.PromptTemplate{
		CodexName:  req.CodexName,
		CodexOrder: req.CodexOrder,
		IsActive:   true,
		Sections:   sections,
	}
	if err := s.templateRepo.Create(template); err != nil {
		return nil, err
	}

	return buildTemplateDetail(template), nil
}

// Update 更新模板；改动章节列表后由 resync 补齐已有 run
func (s *TemplateService) Update(id int64, req *dto.UpdateTemplateRequest) (*dto.TemplateDetail, error) {
	template, err := s.templateRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}

	if req.CodexName != nil {
		template.CodexName = *req.CodexName
	}
	if req.CodexOrder != nil {
		template.CodexOrder = *req.CodexOrder
	}
	if req.IsActive != nil {
		template.IsActive = *req.IsActive
	}
	if req.Sections != nil {
		sections, err := normalizeSections(*req.Sections)
		if err != nil {
			return nil, err
		}
		template.Sections = sections
	}

	if err := s.templateRepo.Update(template); err != nil {
		return nil, err
	}

	return buildTemplateDetail(template), nil
}

// List 全部模板（管理端）
func (s *TemplateService) List() ([]*dto.TemplateDetail, error) {
	templates, err := s.templateRepo.ListAll()
	if err != nil {
		return nil, err
	}

	items := make([]*dto.TemplateDetail, 0, len(templates))
	for _, template := range templates {
		items = append(items, buildTemplateDetail(template))
	}
	return items, nil
}

func (s *TemplateService) Get(id int64) (*dto.TemplateDetail, error) {
	template, err := s.templateRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}
	return buildTemplateDetail(template), nil
}

func normalizeSections(sections model.TemplateSectionList) (model.TemplateSectionList, error) {
	seen := make(map[int]struct{}, len(sections))
	for _, section := range sections {
		if _, ok := seen[section.Index]; ok {
			return nil, ErrDuplicateSectionIndex
		}
		seen[section.Index] = struct{}{}
	}

	sorted := make(model.TemplateSectionList, len(sections))
	copy(sorted, sections)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Index < sorted[j].Index
	})
	return sorted, nil
}

func buildTemplateDetail(template *model.PromptTemplate) *dto.TemplateDetail {
	return &dto.TemplateDetail{
		ID:         template.ID,
		CodexName:  template.CodexName,
		CodexOrder: template.CodexOrder,
		IsActive:   template.IsActive,
		Sections:   template.Sections,
		CreatedAt:  template.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  template.UpdatedAt.Format(time.RFC3339),
	}
}
