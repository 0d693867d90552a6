package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/codexalpha/blueprint_go_server/internal/model"
	"github.com/codexalpha/blueprint_go_server/internal/model/dto"
	"github.com/codexalpha/blueprint_go_server/internal/repository"
)

var (
	ErrCodexNotFound    = errors.New("codex not found")
	ErrTemplateNotFound = errors.New("prompt template not found")
)

type CodexService struct {
	codexRepo    *repository.CodexRepository
	sectionRepo  *repository.SectionRepository
	templateRepo *repository.TemplateRepository
}

func NewCodexService(
	codexRepo *repository.CodexRepository,
	sectionRepo *repository.SectionRepository,
	templateRepo *repository.TemplateRepository,
) *CodexService {
	return &CodexService{
		codexRepo:    codexRepo,
		sectionRepo:  sectionRepo,
		templateRepo: templateRepo,
	}
}

// AggregateStatus 由章节状态多重集推导 codex 状态，纯函数
func AggregateStatus(counts *repository.StatusCounts) string {
	switch {
	case counts.Total == 0:
		return model.CodexStatusNotStarted
	case counts.Completed == counts.Total:
		return model.CodexStatusReady
	case counts.Completed+counts.Errored == counts.Total && counts.Errored > 0:
		return model.CodexStatusReadyWithErrors
	case counts.Generating > 0:
		return model.CodexStatusGenerating
	default:
		return model.CodexStatusPending
	}
}

// RecomputeStatus 重新统计章节并写回聚合字段。
// 计数永远来自 COUNT 查询，不做增量维护，杜绝计数漂移。
func (s *CodexService) RecomputeStatus(codexID int64) (string, *repository.StatusCounts, error) {
	counts, err := s.sectionRepo.CountByStatus(codexID)
	if err != nil {
		return "", nil, err
	}

	status := AggregateStatus(counts)
	if err := s.codexRepo.UpdateAggregates(codexID, status, counts.Total, counts.Completed); err != nil {
		return "", nil, err
	}

	return status, counts, nil
}

// InstantiateForRun 按模板为 run 创建一个 codex 及其全部 pending 章节
func (s *CodexService) InstantiateForRun(run *model.PersonaRun, template *model.PromptTemplate) (*model.Codex, error) {
	codex := &model.Codex{
		RunID:         run.ID,
		TemplateID:    template.ID,
		Name:          template.CodexName,
		CodexOrder:    template.CodexOrder,
		Status:        model.CodexStatusPending,
		TotalSections: len(template.Sections),
	}
	if len(template.Sections) == 0 {
		codex.Status = model.CodexStatusNotStarted
	}
	if err := s.codexRepo.Create(codex); err != nil {
		return nil, err
	}

	sections := make([]*model.Section, 0, len(template.Sections))
	for _, ts := range template.Sections {
		sections = append(sections, &model.Section{
			CodexID:      codex.ID,
			SectionIndex: ts.Index,
			Name:         ts.Name,
			Prompt:       ts.Prompt,
			Status:       model.SectionStatusPending,
		})
	}
	if err := s.sectionRepo.CreateBatch(sections); err != nil {
		return nil, err
	}

	return codex, nil
}

// Resync 将 codex 与模板的当前章节列表做加法对账：
// 只补缺失的 section_index，绝不动已有章节。幂等。
func (s *CodexService) Resync(codex *model.Codex) (int, error) {
	template, err := s.templateRepo.GetByID(codex.TemplateID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrTemplateNotFound
		}
		return 0, err
	}

	existing, err := s.sectionRepo.ListIndexesByCodexID(codex.ID)
	if err != nil {
		return 0, err
	}
	have := make(map[int]struct{}, len(existing))
	for _, idx := range existing {
		have[idx] = struct{}{}
	}

	var missing []*model.Section
	for _, ts := range template.Sections {
		if _, ok := have[ts.Index]; ok {
			continue
		}
		missing = append(missing, &model.Section{
			CodexID:      codex.ID,
			SectionIndex: ts.Index,
			Name:         ts.Name,
			Prompt:       ts.Prompt,
			Status:       model.SectionStatusPending,
		})
	}

	if len(missing) > 0 {
		if err := s.sectionRepo.CreateBatch(missing); err != nil {
			return 0, err
		}
	}

	if _, _, err := s.RecomputeStatus(codex.ID); err != nil {
		return len(missing), err
	}

	return len(missing), nil
}

// GetDetail codex 详情与全部章节
func (s *CodexService) GetDetail(codexID int64) (*dto.CodexDetail, error) {
	codex, err := s.codexRepo.GetByID(codexID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCodexNotFound
		}
		return nil, err
	}

	sections, err := s.sectionRepo.ListByCodexID(codexID)
	if err != nil {
		return nil, err
	}

	detail := &dto.CodexDetail{
		ID:                codex.ID,
		RunID:             codex.RunID,
		TemplateID:        codex.TemplateID,
		Name:              codex.Name,
		Status:            codex.Status,
		TotalSections:     codex.TotalSections,
		CompletedSections: codex.CompletedSections,
		ExportURL:         codex.ExportURL,
		Sections:          make([]dto.SectionDetail, 0, len(sections)),
	}

	for _, section := range sections {
		item := dto.SectionDetail{
			ID:           section.ID,
			CodexID:      section.CodexID,
			SectionIndex: section.SectionIndex,
			Name:         section.Name,
			Status:       section.Status,
			UpdatedAt:    section.UpdatedAt.Format(time.RFC3339),
		}
		if section.Content != nil {
			item.Content = *section.Content
		}
		if section.ErrorMessage != nil {
			item.ErrorMessage = *section.ErrorMessage
		}
		detail.Sections = append(detail.Sections, item)
	}

	return detail, nil
}

// AssembleDocument 按章节顺序拼出可交付文档，缺失章节直接跳过
func (s *CodexService) AssembleDocument(codexID int64) (string, error) {
	codex, err := s.codexRepo.GetByID(codexID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrCodexNotFound
		}
		return "", err
	}

	sections, err := s.sectionRepo.ListByCodexID(codexID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", codex.Name)
	for _, section := range sections {
		if section.Status != model.SectionStatusCompleted || section.Content == nil {
			continue
		}
		fmt.Fprintf(&b, "\n## %s\n\n%s\n", section.Name, *section.Content)
	}

	return b.String(), nil
}
