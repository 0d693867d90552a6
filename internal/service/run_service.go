package service

import (
	"context"
	"errors"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/codexalpha/blueprint_go_server/internal/model"
	"github.com/codexalpha/blueprint_go_server/internal/model/dto"
	"github.com/codexalpha/blueprint_go_server/internal/pkg/pubsub"
	"github.com/codexalpha/blueprint_go_server/internal/pkg/queue"
	"github.com/codexalpha/blueprint_go_server/internal/repository"
)

var (
	ErrRunNotFound       = errors.New("persona run not found")
	ErrRunPermission     = errors.New("not allowed to operate on this persona run")
	ErrRunNotPending     = errors.New("persona run has already been started")
	ErrRunFinished       = errors.New("persona run is already in a terminal state")
	ErrRunCancelled      = errors.New("persona run has been cancelled")
	ErrNoActiveTemplates = errors.New("no active prompt templates configured")
)

type RunService struct {
	runRepo      *repository.RunRepository
	codexRepo    *repository.CodexRepository
	sectionRepo  *repository.SectionRepository
	templateRepo *repository.TemplateRepository
	codexService *CodexService
	sectionQueue *queue.Queue
	publisher    *pubsub.Publisher
}

func NewRunService(
	runRepo *repository.RunRepository,
	codexRepo *repository.CodexRepository,
	sectionRepo *repository.SectionRepository,
	templateRepo *repository.TemplateRepository,
	codexService *CodexService,
	sectionQueue *queue.Queue,
	publisher *pubsub.Publisher,
) *RunService {
	return &RunService{
		runRepo:      runRepo,
		codexRepo:    codexRepo,
		sectionRepo:  sectionRepo,
		templateRepo: templateRepo,
		codexService: codexService,
		sectionQueue: sectionQueue,
		publisher:    publisher,
	}
}

// Create 提交问卷答案，创建 run 及其全部 codex/章节（均为 pending）
func (s *RunService) Create(userID int64, req *dto.CreateRunRequest) (*dto.CreateRunResponse, error) {
	templates, err := s.templateRepo.ListActive()
	if err != nil {
		return nil, err
	}
	if len(templates) == 0 {
		return nil, ErrNoActiveTemplates
	}

	sourceType := req.SourceType
	if sourceType == "" {
		sourceType = model.SourceTypeQuestionnaire
	}

	run := &model.PersonaRun{
		UserID:     userID,
		Title:      req.Title,
		Status:     model.RunStatusPending,
		SourceType: sourceType,
		Answers:    req.Answers,
	}
	if err := s.runRepo.Create(run); err != nil {
		return nil, err
	}

	resp := &dto.CreateRunResponse{RunID: run.ID}
	for _, template := range templates {
		codex, err := s.codexService.InstantiateForRun(run, template)
		if err != nil {
			return nil, err
		}
		resp.CodexIDs = append(resp.CodexIDs, codex.ID)
	}

	return resp, nil
}

// Start 启动生成：pending -> generating，所有 pending 章节入队
func (s *RunService) Start(ctx context.Context, actorID int64, isAdmin bool, runID int64) error {
	run, err := s.getOwned(actorID, isAdmin, runID)
	if err != nil {
		return err
	}

	if run.IsCancelled {
		return ErrRunCancelled
	}
	if run.Status != model.RunStatusPending {
		return ErrRunNotPending
	}

	if err := s.runRepo.MarkStarted(runID); err != nil {
		return err
	}

	if err := s.enqueuePending(ctx, run); err != nil {
		return err
	}

	s.publishRunEvent(ctx, run.UserID, runID, model.RunStatusGenerating)
	return nil
}

// Cancel 协作式取消：置位 is_cancelled，worker 抢占前会检查；
// 已在途的章节不撤回，它们完成后不再派发新的。
func (s *RunService) Cancel(actorID int64, isAdmin bool, runID int64) error {
	run, err := s.getOwned(actorID, isAdmin, runID)
	if err != nil {
		return err
	}

	if run.Status == model.RunStatusCompleted || run.Status == model.RunStatusCancelled {
		return ErrRunFinished
	}

	if err := s.runRepo.MarkCancelled(runID); err != nil {
		return err
	}

	s.publishRunEvent(context.Background(), run.UserID, runID, model.RunStatusCancelled)
	return nil
}

// ForceComplete 运维逃生口：所有未完成章节强制置为 error（固定信息），
// codex 重新聚合后 run 直接标记 completed。会丢掉在途工作，换取有界延迟。
func (s *RunService) ForceComplete(runID int64) (int64, error) {
	run, err := s.runRepo.GetByID(runID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrRunNotFound
		}
		return 0, err
	}

	if run.Status == model.RunStatusCompleted {
		return 0, ErrRunFinished
	}

	forced, err := s.sectionRepo.ForceFailUnfinishedByRunID(runID)
	if err != nil {
		return 0, err
	}

	if err := s.recomputeAllCodexes(runID); err != nil {
		return forced, err
	}

	if err := s.runRepo.MarkCompleted(runID); err != nil {
		return forced, err
	}

	s.publishRunEvent(context.Background(), run.UserID, runID, model.RunStatusCompleted)
	log.Printf("Run %d force completed, %d sections failed with sentinel", runID, forced)
	return forced, nil
}

// FullRerun 破坏式重建：删掉全部 codex/章节，按当前模板重建。
// 与 Resync 的区别是一个全量重来、一个加法补齐。
func (s *RunService) FullRerun(actorID int64, isAdmin bool, runID int64) (*dto.CreateRunResponse, error) {
	run, err := s.getOwned(actorID, isAdmin, runID)
	if err != nil {
		return nil, err
	}

	if run.IsCancelled {
		return nil, ErrRunCancelled
	}

	templates, err := s.templateRepo.ListActive()
	if err != nil {
		return nil, err
	}
	if len(templates) == 0 {
		return nil, ErrNoActiveTemplates
	}

	codexIDs, err := s.codexRepo.ListIDsByRunID(runID)
	if err != nil {
		return nil, err
	}
	if err := s.sectionRepo.DeleteByCodexIDs(codexIDs); err != nil {
		return nil, err
	}
	if err := s.codexRepo.DeleteByRunID(runID); err != nil {
		return nil, err
	}

	run.Status = model.RunStatusPending
	run.StartedAt = nil
	run.CompletedAt = nil
	if err := s.runRepo.Update(run); err != nil {
		return nil, err
	}

	resp := &dto.CreateRunResponse{RunID: runID}
	for _, template := range templates {
		codex, err := s.codexService.InstantiateForRun(run, template)
		if err != nil {
			return nil, err
		}
		resp.CodexIDs = append(resp.CodexIDs, codex.ID)
	}

	return resp, nil
}

// Resync 对 run 下每个 codex 做加法对账，并为新增的启用模板补建 codex
func (s *RunService) Resync(actorID int64, isAdmin bool, runID int64) (*dto.ResyncResponse, error) {
	run, err := s.getOwned(actorID, isAdmin, runID)
	if err != nil {
		return nil, err
	}

	codexes, err := s.codexRepo.ListByRunID(runID)
	if err != nil {
		return nil, err
	}

	resp := &dto.ResyncResponse{}
	covered := make(map[int64]struct{}, len(codexes))
	for _, codex := range codexes {
		covered[codex.TemplateID] = struct{}{}
		added, err := s.codexService.Resync(codex)
		if err != nil {
			if errors.Is(err, ErrTemplateNotFound) {
				// 模板被删除：保留已生成内容，不做任何改动
				continue
			}
			return nil, err
		}
		resp.AddedSections += added
	}

	templates, err := s.templateRepo.ListActive()
	if err != nil {
		return nil, err
	}
	for _, template := range templates {
		if _, ok := covered[template.ID]; ok {
			continue
		}
		if _, err := s.codexService.InstantiateForRun(run, template); err != nil {
			return nil, err
		}
		resp.AddedCodexes++
	}

	return resp, nil
}

// Delete 级联删除 run 及其全部 codex/章节
func (s *RunService) Delete(actorID int64, isAdmin bool, runID int64) error {
	run, err := s.getOwned(actorID, isAdmin, runID)
	if err != nil {
		return err
	}

	codexIDs, err := s.codexRepo.ListIDsByRunID(run.ID)
	if err != nil {
		return err
	}
	if err := s.sectionRepo.DeleteByCodexIDs(codexIDs); err != nil {
		return err
	}
	if err := s.codexRepo.DeleteByRunID(run.ID); err != nil {
		return err
	}
	return s.runRepo.Delete(run.ID)
}

// RetrySections 批量重试：filter=error 重置出错章节，filter=stuck 重置卡住章节
func (s *RunService) RetrySections(ctx context.Context, actorID int64, isAdmin bool, runID int64, filter string, stuckAfter time.Duration) (int64, error) {
	run, err := s.getOwned(actorID, isAdmin, runID)
	if err != nil {
		return 0, err
	}

	if run.IsCancelled {
		return 0, ErrRunCancelled
	}

	var reset int64
	switch filter {
	case "error":
		reset, err = s.sectionRepo.ResetErroredByRunID(runID)
	case "stuck":
		reset, err = s.sectionRepo.ResetStuckByRunID(runID, time.Now().Add(-stuckAfter))
	default:
		return 0, errors.New("unknown retry filter")
	}
	if err != nil {
		return 0, err
	}

	if reset == 0 {
		return 0, nil
	}

	if err := s.recomputeAllCodexes(runID); err != nil {
		return reset, err
	}

	// 重试后 run 回到 generating
	if run.Status == model.RunStatusCompleted || run.Status == model.RunStatusFailed {
		if err := s.runRepo.UpdateStatus(runID, model.RunStatusGenerating); err != nil {
			return reset, err
		}
	}

	if err := s.enqueuePending(ctx, run); err != nil {
		return reset, err
	}

	return reset, nil
}

// RecomputeRunStatus 由 codex 状态上卷 run 状态；worker 在章节终态写入后调用
func (s *RunService) RecomputeRunStatus(ctx context.Context, runID int64) error {
	run, err := s.runRepo.GetByID(runID)
	if err != nil {
		return err
	}

	// 取消是终态覆盖
	if run.IsCancelled || run.Status != model.RunStatusGenerating {
		return nil
	}

	codexes, err := s.codexRepo.ListByRunID(runID)
	if err != nil {
		return err
	}
	if len(codexes) == 0 {
		return nil
	}

	for _, codex := range codexes {
		if !codex.IsDeliverable() {
			return nil
		}
	}

	if err := s.runRepo.MarkCompleted(runID); err != nil {
		return err
	}
	s.publishRunEvent(ctx, run.UserID, runID, model.RunStatusCompleted)
	return nil
}

// GetDetail run 详情（含答案回显与各 codex 进度）
func (s *RunService) GetDetail(actorID int64, isAdmin bool, runID int64) (*dto.RunDetail, error) {
	run, err := s.getOwned(actorID, isAdmin, runID)
	if err != nil {
		return nil, err
	}

	codexes, err := s.codexRepo.ListByRunID(runID)
	if err != nil {
		return nil, err
	}

	detail := &dto.RunDetail{
		ID:          run.ID,
		UserID:      run.UserID,
		Title:       run.Title,
		Status:      run.Status,
		SourceType:  run.SourceType,
		Answers:     run.Answers,
		IsCancelled: run.IsCancelled,
		Codexes:     make([]dto.CodexProgress, 0, len(codexes)),
		CreatedAt:   run.CreatedAt.Format(time.RFC3339),
	}
	if run.StartedAt != nil {
		detail.StartedAt = run.StartedAt.Format(time.RFC3339)
	}
	if run.CompletedAt != nil {
		detail.CompletedAt = run.CompletedAt.Format(time.RFC3339)
	}

	for _, codex := range codexes {
		counts, err := s.sectionRepo.CountByStatus(codex.ID)
		if err != nil {
			return nil, err
		}
		detail.Codexes = append(detail.Codexes, dto.CodexProgress{
			ID:                codex.ID,
			Name:              codex.Name,
			CodexOrder:        codex.CodexOrder,
			Status:            codex.Status,
			TotalSections:     counts.Total,
			CompletedSections: counts.Completed,
			ErroredSections:   counts.Errored,
			ExportURL:         codex.ExportURL,
		})
	}

	return detail, nil
}

// GetStatus 轻量状态上卷，不带答案和内容
func (s *RunService) GetStatus(actorID int64, isAdmin bool, runID int64) (*dto.RunStatusResponse, error) {
	run, err := s.getOwned(actorID, isAdmin, runID)
	if err != nil {
		return nil, err
	}

	codexes, err := s.codexRepo.ListByRunID(runID)
	if err != nil {
		return nil, err
	}

	resp := &dto.RunStatusResponse{
		RunID:       run.ID,
		Status:      run.Status,
		IsCancelled: run.IsCancelled,
		Codexes:     make([]dto.CodexProgress, 0, len(codexes)),
	}
	for _, codex := range codexes {
		counts, err := s.sectionRepo.CountByStatus(codex.ID)
		if err != nil {
			return nil, err
		}
		resp.Codexes = append(resp.Codexes, dto.CodexProgress{
			ID:                codex.ID,
			Name:              codex.Name,
			CodexOrder:        codex.CodexOrder,
			Status:            codex.Status,
			TotalSections:     counts.Total,
			CompletedSections: counts.Completed,
			ErroredSections:   counts.Errored,
		})
	}

	return resp, nil
}

// List run 列表（管理员可看全部）
func (s *RunService) List(actorID int64, isAdmin bool, page, pageSize int, status string) ([]*dto.RunListItem, int64, error) {
	var runs []*model.PersonaRun
	var total int64
	var err error

	if isAdmin {
		runs, total, err = s.runRepo.ListAll(page, pageSize, status)
	} else {
		runs, total, err = s.runRepo.ListByUserID(actorID, page, pageSize, status)
	}
	if err != nil {
		return nil, 0, err
	}

	items := make([]*dto.RunListItem, 0, len(runs))
	for _, run := range runs {
		item := &dto.RunListItem{
			ID:         run.ID,
			Title:      run.Title,
			Status:     run.Status,
			SourceType: run.SourceType,
			CreatedAt:  run.CreatedAt.Format(time.RFC3339),
			UpdatedAt:  run.UpdatedAt.Format(time.RFC3339),
		}

		codexes, err := s.codexRepo.ListByRunID(run.ID)
		if err != nil {
			return nil, 0, err
		}
		item.TotalCodexes = len(codexes)
		for _, codex := range codexes {
			if codex.IsDeliverable() {
				item.ReadyCodexes++
			}
			item.TotalSections += codex.TotalSections
			item.CompletedSections += codex.CompletedSections
		}

		items = append(items, item)
	}

	return items, total, nil
}

// getOwned 归属校验：所有者或管理员
func (s *RunService) getOwned(actorID int64, isAdmin bool, runID int64) (*model.PersonaRun, error) {
	run, err := s.runRepo.GetByID(runID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}

	if run.UserID != actorID && !isAdmin {
		return nil, ErrRunPermission
	}

	return run, nil
}

func (s *RunService) recomputeAllCodexes(runID int64) error {
	codexes, err := s.codexRepo.ListByRunID(runID)
	if err != nil {
		return err
	}
	for _, codex := range codexes {
		if _, _, err := s.codexService.RecomputeStatus(codex.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *RunService) enqueuePending(ctx context.Context, run *model.PersonaRun) error {
	if s.sectionQueue == nil {
		return nil
	}

	sections, err := s.sectionRepo.ListPendingByRunID(run.ID)
	if err != nil {
		return err
	}

	msgs := make([]*queue.SectionMessage, 0, len(sections))
	for _, section := range sections {
		msgs = append(msgs, &queue.SectionMessage{
			SectionID: section.ID,
			CodexID:   section.CodexID,
			RunID:     run.ID,
			UserID:    run.UserID,
		})
	}
	return s.sectionQueue.PushBatch(ctx, msgs)
}

func (s *RunService) publishRunEvent(ctx context.Context, userID, runID int64, status string) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishProgress(ctx, &pubsub.ProgressMessage{
		Scope:  pubsub.ScopeRun,
		UserID: userID,
		RunID:  runID,
		Status: status,
	})
	if err != nil {
		log.Printf("Failed to publish run %d event: %v", runID, err)
	}
}
