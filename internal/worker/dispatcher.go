package worker

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/codexalpha/blueprint_go_server/config"
	"github.com/codexalpha/blueprint_go_server/internal/model"
	"github.com/codexalpha/blueprint_go_server/internal/pkg/oss"
	"github.com/codexalpha/blueprint_go_server/internal/pkg/pubsub"
	"github.com/codexalpha/blueprint_go_server/internal/pkg/queue"
	"github.com/codexalpha/blueprint_go_server/internal/repository"
	"github.com/codexalpha/blueprint_go_server/internal/service"
)

// Generator 内容生成接口，生产实现是 llm.Client
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Dispatcher 章节生成派发器
type Dispatcher struct {
	runRepo      *repository.RunRepository
	codexRepo    *repository.CodexRepository
	sectionRepo  *repository.SectionRepository
	codexService *service.CodexService
	runService   *service.RunService
	generator    Generator
	ossClient    *oss.Client
	publisher    *pubsub.Publisher
	cfg          *config.Config
}

// NewDispatcher 创建派发器
func NewDispatcher(
	runRepo *repository.RunRepository,
	codexRepo *repository.CodexRepository,
	sectionRepo *repository.SectionRepository,
	codexService *service.CodexService,
	runService *service.RunService,
	generator Generator,
	ossClient *oss.Client,
	publisher *pubsub.Publisher,
	cfg *config.Config,
) *Dispatcher {
	return &Dispatcher{
		runRepo:      runRepo,
		codexRepo:    codexRepo,
		sectionRepo:  sectionRepo,
		codexService: codexService,
		runService:   runService,
		generator:    generator,
		ossClient:    ossClient,
		publisher:    publisher,
		cfg:          cfg,
	}
}

// Process 处理一条章节生成任务
func (d *Dispatcher) Process(ctx context.Context, msg *queue.SectionMessage) error {
	// 协作式取消：抢占前检查 run 是否已取消
	cancelled, err := d.runRepo.IsCancelled(msg.RunID)
	if err != nil {
		return fmt.Errorf("failed to check run %d: %w", msg.RunID, err)
	}
	if cancelled {
		log.Printf("Section %d: run %d cancelled, skipping", msg.SectionID, msg.RunID)
		return nil
	}

	// 原子抢占：pending -> generating，抢不到说明已被处理
	claimed, err := d.sectionRepo.Claim(msg.SectionID)
	if err != nil {
		return fmt.Errorf("failed to claim section %d: %w", msg.SectionID, err)
	}
	if !claimed {
		log.Printf("Section %d: already claimed or finished, skipping", msg.SectionID)
		return nil
	}

	d.publishProgress(ctx, msg, model.SectionStatusGenerating, "")

	section, err := d.sectionRepo.GetByID(msg.SectionID)
	if err != nil {
		return fmt.Errorf("failed to get section %d: %w", msg.SectionID, err)
	}

	run, err := d.runRepo.GetByID(msg.RunID)
	if err != nil {
		return fmt.Errorf("failed to get run %d: %w", msg.RunID, err)
	}

	// 调用提供商；失败以数据形式记录在章节上，不向上传播
	content, genErr := d.generator.Generate(ctx, section.Prompt, buildAnswerContext(run))
	if genErr != nil {
		log.Printf("Section %d: generation failed: %v", msg.SectionID, genErr)
		if err := d.sectionRepo.Fail(msg.SectionID, genErr.Error()); err != nil {
			return fmt.Errorf("failed to record section %d error: %w", msg.SectionID, err)
		}
		d.finishSection(ctx, msg, model.SectionStatusError, genErr.Error())
		return nil
	}

	if err := d.sectionRepo.Complete(msg.SectionID, content); err != nil {
		return fmt.Errorf("failed to store section %d content: %w", msg.SectionID, err)
	}
	log.Printf("Section %d: completed (%d chars)", msg.SectionID, len(content))
	d.finishSection(ctx, msg, model.SectionStatusCompleted, "")
	return nil
}

// finishSection 章节到达终态后的聚合与通知
func (d *Dispatcher) finishSection(ctx context.Context, msg *queue.SectionMessage, status, errMsg string) {
	d.publishProgress(ctx, msg, status, errMsg)

	codexStatus, counts, err := d.codexService.RecomputeStatus(msg.CodexID)
	if err != nil {
		log.Printf("Section %d: failed to recompute codex %d: %v", msg.SectionID, msg.CodexID, err)
		return
	}

	d.publishCodexProgress(ctx, msg, codexStatus)

	if codexStatus == model.CodexStatusReady {
		d.exportCodex(msg.RunID, msg.CodexID)
	}

	if codexStatus == model.CodexStatusReady || codexStatus == model.CodexStatusReadyWithErrors {
		log.Printf("Codex %d: %s (%d/%d sections)", msg.CodexID, codexStatus, counts.Completed, counts.Total)
		if err := d.runService.RecomputeRunStatus(ctx, msg.RunID); err != nil {
			log.Printf("Section %d: failed to roll up run %d: %v", msg.SectionID, msg.RunID, err)
		}
	}
}

// exportCodex codex 就绪时上传文档快照（OSS 未配置则跳过）
func (d *Dispatcher) exportCodex(runID, codexID int64) {
	if d.ossClient == nil {
		return
	}

	document, err := d.codexService.AssembleDocument(codexID)
	if err != nil {
		log.Printf("Codex %d: failed to assemble document: %v", codexID, err)
		return
	}

	url, err := d.ossClient.UploadCodexDocument(runID, codexID, []byte(document))
	if err != nil {
		log.Printf("Codex %d: failed to upload document: %v", codexID, err)
		return
	}

	if err := d.codexRepo.UpdateExportURL(codexID, url); err != nil {
		log.Printf("Codex %d: failed to store export url: %v", codexID, err)
		return
	}
	log.Printf("Codex %d: document exported to %s", codexID, url)
}

func (d *Dispatcher) publishProgress(ctx context.Context, msg *queue.SectionMessage, status, errMsg string) {
	if d.publisher == nil {
		return
	}
	err := d.publisher.PublishProgress(ctx, &pubsub.ProgressMessage{
		Scope:     pubsub.ScopeSection,
		UserID:    msg.UserID,
		RunID:     msg.RunID,
		CodexID:   msg.CodexID,
		SectionID: msg.SectionID,
		Status:    status,
		Error:     errMsg,
	})
	if err != nil {
		log.Printf("Section %d: failed to publish progress: %v", msg.SectionID, err)
	}
}

func (d *Dispatcher) publishCodexProgress(ctx context.Context, msg *queue.SectionMessage, status string) {
	if d.publisher == nil {
		return
	}
	err := d.publisher.PublishProgress(ctx, &pubsub.ProgressMessage{
		Scope:   pubsub.ScopeCodex,
		UserID:  msg.UserID,
		RunID:   msg.RunID,
		CodexID: msg.CodexID,
		Status:  status,
	})
	if err != nil {
		log.Printf("Codex %d: failed to publish progress: %v", msg.CodexID, err)
	}
}

// buildAnswerContext 把问卷答案拼成生成输入
func buildAnswerContext(run *model.PersonaRun) string {
	keys := make([]string, 0, len(run.Answers))
	for key := range run.Answers {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "Client: %s\n\n", run.Title)
	for _, key := range keys {
		answer := run.Answers[key]
		fmt.Fprintf(&b, "[%s] %s\n%s\n\n", key, answer.Question, answer.Answer)
	}
	return b.String()
}
