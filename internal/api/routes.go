package api

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/playmatatu/poolphys/internal/api/handlers"
	"github.com/playmatatu/poolphys/internal/config"
	"github.com/playmatatu/poolphys/internal/middleware"
	"github.com/redis/go-redis/v9"
)

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, db *sqlx.DB, rdb *redis.Client, cfg *config.Config) {
	router.Use(middleware.CORSMiddleware(cfg))

	if cfg.Environment != "production" {
		router.Use(func(c *gin.Context) {
			c.Header("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
			c.Header("Pragma", "no-cache")
			c.Header("Expires", "0")
			c.Next()
		})
		log.Println("[DEV MODE] no-cache headers enabled for all routes")
	}

	router.GET("/health", handlers.HealthCheck)

	// API v1 group
	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", handlers.HealthCheck)
		v1.POST("/auth/token", handlers.IssueOperatorToken(db, cfg))
		v1.GET("/table-config", handlers.GetTableConfig(cfg))

		auth := middleware.AuthMiddleware(cfg, rdb)
		// Shots, placement and re-racks also accept the table's own token
		tableAuth := middleware.TableAuthMiddleware(cfg, rdb, handlers.VerifyTableToken)

		tables := v1.Group("/tables")
		{
			// Read-only views are public
			tables.GET("/:id", handlers.GetTable)
			tables.GET("/:id/shots", handlers.GetShotHistory)
			tables.GET("/:id/ws", middleware.WebSocketCORSCheck(cfg), handlers.HandleTableWebSocket(cfg))

			tables.GET("", auth, handlers.ListTables)
			tables.POST("", auth, handlers.CreateTable(db))
			tables.POST("/:id/shots", tableAuth, handlers.TakeShot(db))
			tables.POST("/:id/cue-ball", tableAuth, handlers.PlaceCueBall(db))
			tables.POST("/:id/reset", tableAuth, handlers.ResetTable(db))
			tables.DELETE("/:id", auth, handlers.EndTable(db))
		}

		settings := v1.Group("/config", auth)
		{
			settings.GET("", handlers.GetRuntimeConfig(db))
			settings.PUT("/:key", handlers.UpdateRuntimeConfig(db, cfg))
		}

		v1.GET("/audit", auth, handlers.GetAuditLogs(db))
	}
}
