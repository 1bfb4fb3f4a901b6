package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/liveboard/api/internal/config"
	"github.com/liveboard/api/internal/database"
	"github.com/liveboard/api/internal/handler"
	"github.com/liveboard/api/internal/live"
	"github.com/liveboard/api/internal/middleware"
	"github.com/liveboard/api/internal/store"
	"github.com/liveboard/api/internal/sweeper"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Load .env if present (local development)
	_ = godotenv.Load()

	cfg := config.Load()

	// Initialize database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Auto migrate
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// Live query hub: Redis fans invalidations out across instances;
	// without it subscribers on this instance still get kicked.
	hub, err := live.NewWithRedis(cfg.RedisURL)
	if err != nil {
		log.Printf("Warning: Failed to connect to Redis, live updates stay instance-local: %v", err)
		hub = live.New()
	}
	defer hub.Close()

	// Initialize stores
	sessions := store.NewSessionStore(db, cfg.CodeAttempts)
	strokes := store.NewStrokeStore(db)
	presence := store.NewPresenceStore(db, cfg.StalenessWindow)
	events := store.NewEventStore(db, cfg.EventRetention)

	// Initialize handlers
	sessionHandler := handler.NewSessionHandler(sessions, hub)
	drawingHandler := handler.NewDrawingHandler(strokes, hub)
	presenceHandler := handler.NewPresenceHandler(presence, hub)
	eventHandler := handler.NewEventHandler(events, hub)

	// Background presence sweeper
	var presenceSweeper *sweeper.PresenceSweeper
	if cfg.SweeperEnabled {
		presenceSweeper = sweeper.New(db, sweeper.Config{
			Staleness: cfg.StalenessWindow,
			Interval:  cfg.SweeperInterval,
		})
		go presenceSweeper.Start(context.Background())
		log.Println("Background presence sweeper started")
	}

	// Setup router
	r := gin.Default()
	r.Use(middleware.MetricsMiddleware())

	// CORS middleware
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	// Health check
	r.GET("/api/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Bootstrap config for clients: where the API lives
	r.GET("/api/config", func(c *gin.Context) {
		c.JSON(200, gin.H{"apiUrl": cfg.PublicAPIURL})
	})

	// Sweeper status
	r.GET("/api/sweeper/status", func(c *gin.Context) {
		if presenceSweeper != nil {
			c.JSON(200, presenceSweeper.GetStatus())
		} else {
			c.JSON(200, gin.H{"enabled": false, "message": "Sweeper is disabled"})
		}
	})

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes
	api := r.Group("/api")
	{
		// Sessions
		api.POST("/sessions", sessionHandler.Create)
		api.POST("/sessions/:id/end", sessionHandler.End)
		api.GET("/join/:code", sessionHandler.LookupByCode)

		// Drawing
		api.POST("/sessions/:id/strokes", drawingHandler.Append)
		api.GET("/sessions/:id/strokes", drawingHandler.List)
		api.POST("/sessions/:id/undo", drawingHandler.Undo)
		api.POST("/sessions/:id/redo", drawingHandler.Redo)
		api.POST("/sessions/:id/clear", drawingHandler.Clear)

		// Presence
		api.POST("/sessions/:id/heartbeat", presenceHandler.Heartbeat)
		api.GET("/sessions/:id/participants", presenceHandler.List)
		api.POST("/participants/:id/offline", presenceHandler.MarkOffline)

		// Broadcast channels
		api.POST("/channels/:channel/events", eventHandler.Publish)
		api.GET("/channels/:channel/events", eventHandler.Stream)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "4000"
	}

	log.Printf("API server starting on port %s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
