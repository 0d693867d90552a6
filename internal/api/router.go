package api

import (
	"github.com/gin-gonic/gin"

	"github.com/codexalpha/blueprint_go_server/config"
	"github.com/codexalpha/blueprint_go_server/internal/api/handler"
	"github.com/codexalpha/blueprint_go_server/internal/api/middleware"
	"github.com/codexalpha/blueprint_go_server/internal/repository"
)

type Router struct {
	authHandler      *handler.AuthHandler
	runHandler       *handler.RunHandler
	codexHandler     *handler.CodexHandler
	templateHandler  *handler.TemplateHandler
	websocketHandler *handler.WebSocketHandler
	userRepo         *repository.UserRepository
	cfg              *config.Config
}

func NewRouter(
	authHandler *handler.AuthHandler,
	runHandler *handler.RunHandler,
	codexHandler *handler.CodexHandler,
	templateHandler *handler.TemplateHandler,
	websocketHandler *handler.WebSocketHandler,
	userRepo *repository.UserRepository,
	cfg *config.Config,
) *Router {
	return &Router{
		authHandler:      authHandler,
		runHandler:       runHandler,
		codexHandler:     codexHandler,
		templateHandler:  templateHandler,
		websocketHandler: websocketHandler,
		userRepo:         userRepo,
		cfg:              cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(r.cfg.CORS))

	api := engine.Group("/api/v1")
	{
		// WebSocket
		api.GET("/ws", r.websocketHandler.Handle)

		// 公开接口 - 认证
		auth := api.Group("/auth")
		{
			auth.POST("/register", r.authHandler.Register)
			auth.POST("/login", r.authHandler.Login)
		}

		// 需要认证的接口
		authenticated := api.Group("")
		authenticated.Use(middleware.Auth(r.cfg.JWT.Secret))
		authenticated.Use(middleware.LoadAdminFlag(r.userRepo))
		{
			// 用户
			authenticated.GET("/user/profile", r.authHandler.Profile)

			// 模板（读取对所有用户开放）
			authenticated.GET("/templates", r.templateHandler.List)
			authenticated.GET("/templates/:id", r.templateHandler.Get)

			// 生成运行
			runs := authenticated.Group("/runs")
			{
				runs.POST("", r.runHandler.Create)
				runs.GET("", r.runHandler.List)
				runs.GET("/:id", r.runHandler.Get)
				runs.GET("/:id/status", r.runHandler.Status)
				runs.DELETE("/:id", r.runHandler.Delete)
				runs.POST("/:id/start", r.runHandler.Start)
				runs.POST("/:id/cancel", r.runHandler.Cancel)
				runs.POST("/:id/retry", r.runHandler.Retry)
				runs.POST("/:id/resync", r.runHandler.Resync)
				runs.POST("/:id/rerun", r.runHandler.Rerun)
			}

			// Codex
			codexes := authenticated.Group("/codexes")
			{
				codexes.GET("/:id", r.codexHandler.Get)
				codexes.GET("/:id/document", r.codexHandler.Document)
			}

			// 章节重试
			authenticated.POST("/sections/:id/retry", r.codexHandler.RetrySection)
		}

		// 管理接口
		admin := api.Group("/admin")
		admin.Use(middleware.Auth(r.cfg.JWT.Secret))
		admin.Use(middleware.AdminAuth(r.userRepo))
		{
			admin.POST("/templates", r.templateHandler.Create)
			admin.PUT("/templates/:id", r.templateHandler.Update)
			admin.POST("/runs/:id/force-complete", r.runHandler.ForceComplete)
		}
	}

	return engine
}
