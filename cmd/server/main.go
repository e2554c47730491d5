package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/playmatatu/poolphys/internal/api"
	"github.com/playmatatu/poolphys/internal/config"
	"github.com/playmatatu/poolphys/internal/database"
	"github.com/playmatatu/poolphys/internal/game"
	"github.com/playmatatu/poolphys/internal/migrations"
	"github.com/playmatatu/poolphys/internal/operator"
	"github.com/playmatatu/poolphys/internal/redis"
	"github.com/playmatatu/poolphys/internal/ws"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Run migrations on start if requested
	if cfg.MigrateOnStart {
		log.Println("↗ Running DB migrations on startup...")
		if err := migrations.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	}

	// Operator-tuned physics settings override the environment
	if err := operator.ApplyRuntimeConfig(db, cfg); err != nil {
		log.Printf("[CONFIG] Runtime config not applied: %v", err)
	}

	// Initialize Redis
	rdb, err := redis.Connect(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer rdb.Close()

	ctx := context.Background()

	// Table manager, with the websocket hub as its live broadcaster
	game.InitializeManager(db, rdb, cfg)
	hub := ws.StartHub(game.Manager, db)

	// Shots published by any instance reach this instance's viewers
	ws.SetRedisClient(rdb)
	ws.StartShotEventSubscriber(ctx, hub)

	// Close tables nobody has touched for SESSION_TTL_MINUTES
	game.StartIdleWorker(ctx, game.Manager, cfg)

	// Set up Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	api.SetupRoutes(router, db, rdb, cfg)

	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	log.Printf("Starting poolphys server on port %s (physics %d Hz, max %d entities)", port, cfg.TimeStepHz, cfg.MaxEntities)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
