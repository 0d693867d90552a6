package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"github.com/codexalpha/blueprint_go_server/config"
	"github.com/codexalpha/blueprint_go_server/internal/database"
	"github.com/codexalpha/blueprint_go_server/internal/pkg/queue"
	"github.com/codexalpha/blueprint_go_server/internal/repository"
	"github.com/codexalpha/blueprint_go_server/internal/service"
)

var (
	dryRun     = flag.Bool("dry-run", true, "Dry run mode, only list stuck sections without resetting")
	stuckAfter = flag.Int("stuck-after", 0, "Minutes after which a pending/generating section counts as stuck (0 = use config)")
	limit      = flag.Int("limit", 500, "Maximum sections to reset in one pass")
)

func main() {
	flag.Parse()

	log.Println("🧹 Starting stuck section sweep...")
	log.Printf("Mode: dry-run=%v", *dryRun)

	// 加载配置
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	threshold := cfg.Generation.StuckAfterMinutes
	if *stuckAfter > 0 {
		threshold = *stuckAfter
	}
	olderThan := time.Duration(threshold) * time.Minute

	// 连接数据库
	db, err := database.NewMySQL(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}

	sectionRepo := repository.NewSectionRepository(db)

	if *dryRun {
		// 只列出，不动数据
		sections, err := sectionRepo.ListStuck(time.Now().Add(-olderThan), *limit)
		if err != nil {
			log.Fatalf("Failed to list stuck sections: %v", err)
		}

		log.Printf("\nFound %d stuck sections (older than %d minutes):", len(sections), threshold)
		for _, s := range sections {
			log.Printf("  - section %d (codex %d, status %s, updated %s ago)",
				s.ID, s.CodexID, s.Status, time.Since(s.UpdatedAt).Round(time.Minute))
		}
		log.Println("\n⚠️  DRY RUN MODE - No sections were reset")
		log.Println("   Run with -dry-run=false to reset and re-enqueue them")
		return
	}

	// 实际重置需要 Redis 用于重新入队
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect redis: %v", err)
	}

	runRepo := repository.NewRunRepository(db)
	codexRepo := repository.NewCodexRepository(db)
	templateRepo := repository.NewTemplateRepository(db)
	sectionQueue := queue.NewQueue(rdb, cfg.Queue.SectionQueue)
	codexService := service.NewCodexService(codexRepo, sectionRepo, templateRepo)
	retryService := service.NewRetryService(runRepo, codexRepo, sectionRepo, codexService, sectionQueue)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	reset, err := retryService.SweepStuck(ctx, olderThan, *limit)
	if err != nil {
		log.Fatalf("Sweep failed: %v", err)
	}

	log.Println("\n" + strings.Repeat("=", 60))
	log.Printf("✅ Sweep completed: %d sections reset and re-enqueued", reset)
	log.Println(strings.Repeat("=", 60))
}
