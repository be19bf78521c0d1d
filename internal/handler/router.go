package handler

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"pyx-backend/internal/config"
	"pyx-backend/internal/metrics"
	"pyx-backend/internal/service"
)

func NewRouter(cfg *config.Config, manager *service.Manager, m *metrics.Metrics) *gin.Engine {
	// 设置gin模式
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// 中间件
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// CORS配置
	if len(cfg.CORS.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     cfg.CORS.AllowedMethods,
			AllowHeaders:     cfg.CORS.AllowedHeaders,
			ExposeHeaders:    cfg.CORS.ExposedHeaders,
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           time.Duration(cfg.CORS.MaxAge) * time.Second,
		}))
	}

	// 健康检查
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"visitors":  manager.Active(),
			"timestamp": time.Now().Unix(),
		})
	})

	if cfg.Metrics.Enabled {
		path := cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		router.GET(path, gin.WrapH(m.Handler()))
	}

	chatHandler := NewChatHandler(manager, cfg.Server.StreamTimeout)
	liveChat := NewLiveChat(chatHandler, cfg.CORS.AllowedOrigins)

	// API路由
	api := router.Group("/api")
	{
		api.GET("/page-context", PageContext)
		api.POST("/intent", ClassifyIntent)
		api.GET("/intents", ListIntents)

		visitor := api.Group("/visitors/:visitor_id")
		{
			visitor.DELETE("", chatHandler.Forget)
			visitor.GET("/chat", chatHandler.GetState)
			visitor.POST("/chat/open", chatHandler.Open)
			visitor.POST("/chat/close", chatHandler.Close)
			visitor.POST("/chat/page", chatHandler.Navigate)
			visitor.POST("/chat/message", chatHandler.SendMessage)
			visitor.POST("/chat/stream", chatHandler.StreamMessage)
			visitor.POST("/chat/clear", chatHandler.Clear)
			visitor.POST("/chat/save", chatHandler.Save)
			visitor.GET("/chat/stats", chatHandler.Stats)
			visitor.POST("/chat/rating", chatHandler.Rate)

			visitor.GET("/conversations", chatHandler.ListConversations)
			visitor.GET("/conversations/search", chatHandler.SearchConversations)
			visitor.POST("/conversations/:session_id/load", chatHandler.LoadConversation)

			visitor.GET("/preferences", chatHandler.GetPreferences)
			visitor.PUT("/preferences", chatHandler.UpdatePreferences)
			visitor.GET("/profile", chatHandler.GetProfile)
			visitor.PUT("/profile", chatHandler.UpdateProfile)
			visitor.GET("/ai-config", chatHandler.GetAIConfig)
			visitor.PUT("/ai-config", chatHandler.UpdateAIConfig)
			visitor.GET("/recommendations", chatHandler.Recommendations)

			visitor.GET("/ws", liveChat.Handle)
		}
	}

	return router
}
