package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/codexalpha/blueprint_go_server/config"
	"github.com/codexalpha/blueprint_go_server/internal/database"
	"github.com/codexalpha/blueprint_go_server/internal/pkg/llm"
	"github.com/codexalpha/blueprint_go_server/internal/pkg/oss"
	"github.com/codexalpha/blueprint_go_server/internal/pkg/pubsub"
	"github.com/codexalpha/blueprint_go_server/internal/pkg/queue"
	"github.com/codexalpha/blueprint_go_server/internal/repository"
	"github.com/codexalpha/blueprint_go_server/internal/service"
	"github.com/codexalpha/blueprint_go_server/internal/worker"
)

func main() {
	// 加载配置
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化数据库
	db, err := database.NewMySQL(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}
	log.Println("Database connected")

	// 初始化 Redis
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect redis: %v", err)
	}
	log.Println("Redis connected")

	// 初始化 OSS（可选，用于 codex 文档快照归档）
	var ossClient *oss.Client
	if cfg.OSS.Endpoint != "" && cfg.OSS.AccessKeyID != "" {
		ossClient, err = oss.NewClient(&cfg.OSS)
		if err != nil {
			log.Printf("Warning: Failed to init OSS client: %v", err)
		} else {
			log.Println("OSS client initialized")
		}
	}

	// 初始化 Queue 和 Pub/Sub
	sectionQueue := queue.NewQueue(rdb, cfg.Queue.SectionQueue)
	publisher := pubsub.NewPublisher(rdb)

	// 初始化 Repository 和 Service
	runRepo := repository.NewRunRepository(db)
	codexRepo := repository.NewCodexRepository(db)
	sectionRepo := repository.NewSectionRepository(db)
	templateRepo := repository.NewTemplateRepository(db)
	codexService := service.NewCodexService(codexRepo, sectionRepo, templateRepo)
	runService := service.NewRunService(runRepo, codexRepo, sectionRepo, templateRepo, codexService, sectionQueue, publisher)

	// 创建章节派发器
	generator := llm.NewClient(&cfg.LLM)
	dispatcher := worker.NewDispatcher(runRepo, codexRepo, sectionRepo, codexService, runService, generator, ossClient, publisher, cfg)

	// 创建 context 用于优雅关闭
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 监听退出信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("Received shutdown signal")
		cancel()
	}()

	log.Printf("Worker started, max workers: %d", cfg.Queue.MaxWorkers)

	// 启动 worker 循环
	for i := 0; i < cfg.Queue.MaxWorkers; i++ {
		go func(workerID int) {
			for {
				select {
				case <-ctx.Done():
					log.Printf("Worker %d shutting down", workerID)
					return
				default:
					// 从队列获取任务
					msg, err := sectionQueue.Pop(ctx, 5*time.Second)
					if err != nil {
						if ctx.Err() != nil {
							return
						}
						log.Printf("Worker %d: failed to pop section: %v", workerID, err)
						continue
					}

					if msg == nil {
						continue // 超时，继续等待
					}

					log.Printf("Worker %d: processing section %d (run %d)", workerID, msg.SectionID, msg.RunID)
					if err := dispatcher.Process(ctx, msg); err != nil {
						log.Printf("Worker %d: section %d failed: %v", workerID, msg.SectionID, err)
					}
				}
			}
		}(i)
	}

	// 等待 context 取消
	<-ctx.Done()
	log.Println("Worker shutdown complete")
}
