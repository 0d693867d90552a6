package main

import (
	"context"
	"fmt"
	"log"

	"github.com/codexalpha/blueprint_go_server/config"
	"github.com/codexalpha/blueprint_go_server/internal/api"
	"github.com/codexalpha/blueprint_go_server/internal/api/handler"
	"github.com/codexalpha/blueprint_go_server/internal/database"
	"github.com/codexalpha/blueprint_go_server/internal/pkg/cron"
	"github.com/codexalpha/blueprint_go_server/internal/pkg/pubsub"
	"github.com/codexalpha/blueprint_go_server/internal/pkg/queue"
	"github.com/codexalpha/blueprint_go_server/internal/pkg/ws"
	"github.com/codexalpha/blueprint_go_server/internal/repository"
	"github.com/codexalpha/blueprint_go_server/internal/service"
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

	// 初始化 Queue 和 Pub/Sub
	sectionQueue := queue.NewQueue(rdb, cfg.Queue.SectionQueue)
	publisher := pubsub.NewPublisher(rdb)
	subscriber := pubsub.NewSubscriber(rdb)

	// 初始化 WebSocket Hub
	wsHub := ws.NewHub()
	log.Println("WebSocket hub started")

	// 订阅生成进度，转发给对应用户的 websocket 连接
	go func() {
		err := subscriber.Subscribe(context.Background(), func(msg *pubsub.ProgressMessage) {
			_ = wsHub.SendToUser(msg.UserID, &ws.Message{
				Type: msg.Type,
				Data: msg,
			})
		})
		if err != nil {
			log.Printf("Progress subscriber stopped: %v", err)
		}
	}()

	// 初始化 Repository
	userRepo := repository.NewUserRepository(db)
	templateRepo := repository.NewTemplateRepository(db)
	runRepo := repository.NewRunRepository(db)
	codexRepo := repository.NewCodexRepository(db)
	sectionRepo := repository.NewSectionRepository(db)

	// 初始化 Service
	authService := service.NewAuthService(userRepo, cfg)
	templateService := service.NewTemplateService(templateRepo)
	codexService := service.NewCodexService(codexRepo, sectionRepo, templateRepo)
	runService := service.NewRunService(runRepo, codexRepo, sectionRepo, templateRepo, codexService, sectionQueue, publisher)
	retryService := service.NewRetryService(runRepo, codexRepo, sectionRepo, codexService, sectionQueue)

	// 初始化 Handler
	authHandler := handler.NewAuthHandler(authService)
	runHandler := handler.NewRunHandler(runService, cfg)
	codexHandler := handler.NewCodexHandler(codexService, runService, retryService)
	templateHandler := handler.NewTemplateHandler(templateService)
	websocketHandler := handler.NewWebSocketHandler(wsHub, userRepo, cfg.JWT.Secret)

	// 启动卡死恢复扫描
	cronService := cron.NewService(retryService, cfg.Generation.StuckAfterMinutes, cfg.Generation.SweepIntervalMin)
	cronService.Start()
	defer cronService.Stop()

	// 初始化 Router
	router := api.NewRouter(
		authHandler,
		runHandler,
		codexHandler,
		templateHandler,
		websocketHandler,
		userRepo,
		cfg,
	)
	engine := router.Setup()

	// 启动服务器
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Server starting on %s", addr)
	if err := engine.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
