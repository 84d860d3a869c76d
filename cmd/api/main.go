package main

import (
	"fmt"
	"os"

	"bidding-arena/internal/api/handlers"
	"bidding-arena/internal/api/middleware"
	"bidding-arena/internal/logging"

	"github.com/gin-gonic/gin"
)

func main() {
	// Get configuration from environment
	port := os.Getenv("API_PORT")
	if port == "" {
		port = "8080"
	}
	log := logging.NewLogger(logging.Config{
		Level:  os.Getenv("LOG_LEVEL"),
		Format: os.Getenv("LOG_FORMAT"),
	})

	// Set up Gin router
	if os.Getenv("API_ENV") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Apply middleware
	router.Use(middleware.CORS())
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery())

	// Initialize handlers
	store := handlers.NewRunStore()
	runHandler := handlers.NewRunHandler(store, log)
	strategyHandler, err := handlers.NewStrategyHandler()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build strategy environment")
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// API routes
	api := router.Group("/api/v1")
	{
		api.POST("/runs", runHandler.CreateRun)
		api.GET("/runs/:id", runHandler.GetRun)
		api.GET("/runs/:id/results", runHandler.GetResults)
		api.GET("/runs/:id/scoreboard", runHandler.GetScoreboard)

		api.GET("/strategies", strategyHandler.ListPresets)
		api.POST("/strategies/validate", strategyHandler.ValidateStrategy)
	}

	// Start server
	addr := fmt.Sprintf(":%s", port)
	log.Info().Str("addr", addr).Msg("starting API server")
	if err := router.Run(addr); err != nil {
		log.Fatal().Err(err).Msg("failed to start server")
	}
}
