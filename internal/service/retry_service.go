package service

import (
	"context"
	"errors"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/codexalpha/blueprint_go_server/internal/model"
	"github.com/codexalpha/blueprint_go_server/internal/pkg/queue"
	"github.com/codexalpha/blueprint_go_server/internal/repository"
)

var (
	ErrSectionNotFound     = errors.New("section not found")
	ErrSectionNotRetryable = errors.New("section is not in a retryable state")
)

// RetryService 单章节重试与全局卡死恢复扫描
type RetryService struct {
	runRepo      *repository.RunRepository
	codexRepo    *repository.CodexRepository
	sectionRepo  *repository.SectionRepository
	codexService *CodexService
	sectionQueue *queue.Queue
}

func NewRetryService(
	runRepo *repository.RunRepository,
	codexRepo *repository.CodexRepository,
	sectionRepo *repository.SectionRepository,
	codexService *CodexService,
	sectionQueue *queue.Queue,
) *RetryService {
	return &RetryService{
		runRepo:      runRepo,
		codexRepo:    codexRepo,
		sectionRepo:  sectionRepo,
		codexService: codexService,
		sectionQueue: sectionQueue,
	}
}

// RetrySection 单个章节重试：error/generating -> pending，重新入队
func (s *RetryService) RetrySection(ctx context.Context, actorID int64, isAdmin bool, sectionID int64) error {
	section, err := s.sectionRepo.GetByID(sectionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSectionNotFound
		}
		return err
	}

	codex, err := s.codexRepo.GetByID(section.CodexID)
	if err != nil {
		return err
	}

	run, err := s.runRepo.GetByID(codex.RunID)
	if err != nil {
		return err
	}
	if run.UserID != actorID && !isAdmin {
		return ErrRunPermission
	}
	if run.IsCancelled {
		return ErrRunCancelled
	}

	if section.Status != model.SectionStatusError && section.Status != model.SectionStatusGenerating {
		return ErrSectionNotRetryable
	}

	if err := s.sectionRepo.ResetToPending(sectionID); err != nil {
		return err
	}

	if _, _, err := s.codexService.RecomputeStatus(codex.ID); err != nil {
		return err
	}

	// 重试让已完成的 run 回到 generating
	if run.Status == model.RunStatusCompleted || run.Status == model.RunStatusFailed {
		if err := s.runRepo.UpdateStatus(run.ID, model.RunStatusGenerating); err != nil {
			return err
		}
	}

	return s.enqueue(ctx, section, run)
}

// SweepStuck 恢复扫描：重置卡在 pending/generating 超时的章节并重新入队。
// 卡住的判定只看状态的墙钟年龄，不是租约协议；可行的前提是
// 生成调用按章节 id 幂等。
func (s *RetryService) SweepStuck(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	sections, err := s.sectionRepo.ListStuck(time.Now().Add(-olderThan), limit)
	if err != nil {
		return 0, err
	}

	reset := 0
	for _, section := range sections {
		codex, err := s.codexRepo.GetByID(section.CodexID)
		if err != nil {
			log.Printf("Sweep: failed to load codex %d: %v", section.CodexID, err)
			continue
		}

		run, err := s.runRepo.GetByID(codex.RunID)
		if err != nil {
			log.Printf("Sweep: failed to load run %d: %v", codex.RunID, err)
			continue
		}
		// 只回收生成中的 run；未启动的 run 等待显式 start，已取消/终态的不再派发
		if run.IsCancelled || run.Status != model.RunStatusGenerating {
			continue
		}

		if err := s.sectionRepo.ResetToPending(section.ID); err != nil {
			log.Printf("Sweep: failed to reset section %d: %v", section.ID, err)
			continue
		}
		if _, _, err := s.codexService.RecomputeStatus(codex.ID); err != nil {
			log.Printf("Sweep: failed to recompute codex %d: %v", codex.ID, err)
		}

		if err := s.enqueue(ctx, section, run); err != nil {
			log.Printf("Sweep: failed to enqueue section %d: %v", section.ID, err)
			continue
		}
		reset++
	}

	return reset, nil
}

func (s *RetryService) enqueue(ctx context.Context, section *model.Section, run *model.PersonaRun) error {
	if s.sectionQueue == nil {
		return nil
	}
	return s.sectionQueue.Push(ctx, &queue.SectionMessage{
		SectionID: section.ID,
		CodexID:   section.CodexID,
		RunID:     run.ID,
		UserID:    run.UserID,
	})
}
