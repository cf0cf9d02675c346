package v1

import (
	"github.com/gin-gonic/gin"

	authapi "go_ticketbot/api/v1/auth"
	"go_ticketbot/api/v1/carts"
	"go_ticketbot/api/v1/checkout"
	"go_ticketbot/api/v1/games"
	"go_ticketbot/api/v1/middleware"
	"go_ticketbot/api/v1/schedules"
	"go_ticketbot/api/v1/tasks"
	"go_ticketbot/internal/auth"
	"go_ticketbot/internal/config"
	"go_ticketbot/internal/engine"
	"go_ticketbot/internal/httpx"
	"go_ticketbot/internal/scraper"
	"go_ticketbot/internal/store"
)

// Deps bundles everything the API layer needs
type Deps struct {
	Cfg        *config.Config
	Store      *store.Store
	Supervisor *engine.Supervisor
	Sessions   *auth.SessionStore
	Catalog    *scraper.Catalog
}

// SetupRouter sets up the API v1 routes
func SetupRouter(r *gin.Engine, deps Deps) {
	// Public cart handoff page lives outside /api; the token is the auth.
	checkoutHandler := checkout.NewHandler(deps.Store, deps.Cfg.Bot.BaseURL)
	r.GET("/checkout/:token", checkoutHandler.Page)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", healthHandler)

		authHandler := authapi.NewHandler(deps.Cfg, deps.Sessions)
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/login", authHandler.Login)
		}

		protected := v1.Group("")
		protected.Use(middleware.AuthRequired(deps.Sessions))
		{
			protected.POST("/auth/logout", authHandler.Logout)
			protected.GET("/auth/verify", authHandler.Verify)

			protected.GET("/status", statusHandler(deps))

			tasksHandler := tasks.NewHandler(deps.Store, deps.Supervisor, deps.Cfg.Bot.BaseURL)
			tasksGroup := protected.Group("/tasks")
			{
				tasksGroup.POST("", tasksHandler.Create)
				tasksGroup.GET("", tasksHandler.List)
				tasksGroup.GET("/:id", tasksHandler.Get)
				tasksGroup.POST("/:id/start", tasksHandler.Start)
				tasksGroup.POST("/:id/stop", tasksHandler.Stop)
				tasksGroup.DELETE("/:id", tasksHandler.Delete)
				tasksGroup.GET("/:id/logs", tasksHandler.Logs)
			}

			cartsHandler := carts.NewHandler(deps.Store)
			protected.GET("/carts", cartsHandler.List)

			gamesHandler := games.NewHandler(deps.Catalog, deps.Store)
			gamesGroup := protected.Group("/games")
			{
				gamesGroup.GET("", gamesHandler.List)
				gamesGroup.POST("/refresh", gamesHandler.Refresh)
			}

			schedulesHandler := schedules.NewHandler(deps.Catalog, deps.Store)
			schedulesGroup := protected.Group("/schedules")
			{
				schedulesGroup.POST("", schedulesHandler.Create)
				schedulesGroup.GET("", schedulesHandler.List)
				schedulesGroup.DELETE("/:id", schedulesHandler.Delete)
			}
		}
	}
}

// healthHandler reports liveness
func healthHandler(c *gin.Context) {
	httpx.OK(c, gin.H{"healthy": true})
}

// statusHandler reports the live runtime picture
func statusHandler(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		active := deps.Supervisor.ActiveIDs()
		httpx.OK(c, gin.H{
			"active_tasks": active,
			"active_count": len(active),
		})
	}
}
