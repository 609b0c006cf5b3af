package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/JustinAIDistuptors/instabids-agent-platform/agent"
	"github.com/JustinAIDistuptors/instabids-agent-platform/bus"
	"github.com/JustinAIDistuptors/instabids-agent-platform/config"
	"github.com/JustinAIDistuptors/instabids-agent-platform/dispatch"
	"github.com/JustinAIDistuptors/instabids-agent-platform/handler"
	"github.com/JustinAIDistuptors/instabids-agent-platform/matching"
	"github.com/JustinAIDistuptors/instabids-agent-platform/middleware"
	"github.com/JustinAIDistuptors/instabids-agent-platform/model"
	"github.com/JustinAIDistuptors/instabids-agent-platform/pkg/logger"
	"github.com/JustinAIDistuptors/instabids-agent-platform/repo"
	"github.com/JustinAIDistuptors/instabids-agent-platform/service"
	"github.com/JustinAIDistuptors/instabids-agent-platform/state"
	"github.com/JustinAIDistuptors/instabids-agent-platform/workflow"
	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	slog.Info("configuration loaded successfully")

	// Project photo storage
	imageSvc, err := service.NewImageService(&cfg.Minio)
	if err != nil {
		slog.Error("failed to initialize image storage", "error", err)
		os.Exit(1)
	}
	if err := imageSvc.EnsureBucket(context.Background()); err != nil {
		slog.Error("failed to ensure image bucket", "error", err)
		os.Exit(1)
	}

	// External services
	analysisSvc := service.NewAnalysisService(&cfg.Analysis)
	deliverySvc := service.NewDeliveryService(&cfg.Delivery)

	// Persistence
	projects := repo.NewMemoryProjectRepo()
	bidcards := repo.NewMemoryBidCardRepo()
	contractors := repo.NewMemoryContractorRepo()
	invitations := repo.NewMemoryInvitationRepo()

	// Seed the contractor pool from config, the same way users are
	// provisioned; profiles are externally maintained and read-only here
	for _, c := range cfg.Contractors {
		err := contractors.Create(context.Background(), &model.ContractorProfile{
			ID:             c.ID,
			Name:           c.Name,
			Categories:     c.Categories,
			ServiceZips:    c.ServiceZips,
			Responsiveness: c.Responsiveness,
			Available:      c.Available,
			UpdatedAt:      time.Now(),
		})
		if err != nil {
			slog.Error("failed to seed contractor", "contractor_id", c.ID, "error", err)
			os.Exit(1)
		}
	}
	slog.Info("contractor pool seeded", "count", len(cfg.Contractors))

	// Event bus and scoped state, retried on transient failures
	eventBus := bus.New(256)
	defer eventBus.Close()
	store := state.NewRetryingStore(state.NewMemoryStore(), cfg.Workflow.StateMaxAttempts, 100*time.Millisecond)

	// Pipeline wiring
	composer := workflow.NewComposer(eventBus, store, &cfg.Workflow)
	engine := matching.NewEngine(&cfg.Matching)
	dispatcher := dispatch.NewDispatcher(deliverySvc, invitations, &cfg.Dispatch, cfg.Delivery.Channel)

	pipeline := agent.NewPipeline(composer,
		agent.NewIntakeStage(projects),
		agent.NewBidCardStage(analysisSvc, bidcards, cfg.Analysis.MinConfidence),
		agent.NewMatchingStage(engine, projects, bidcards, contractors, store),
		agent.NewRecruitmentStage(dispatcher, projects, store),
	)
	agent.RegisterAll(eventBus, agent.Observers(projects, store))

	// Initialize handlers
	authHandler := handler.NewAuthHandler(cfg)
	projectHandler := handler.NewProjectHandler(projects, bidcards, invitations, pipeline, composer, imageSvc)
	contractorHandler := handler.NewContractorHandler(contractors)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New() // Use New() instead of Default() to avoid default middleware

	// Add custom middleware
	router.Use(middleware.RequestID())                 // Request ID for tracing
	router.Use(middleware.Recovery())                  // Panic recovery
	router.Use(middleware.RequestLogger())             // Access logging
	router.Use(corsMiddleware())                       // CORS
	router.Use(middleware.RateLimit(&cfg.Server)) // Rate limiting per client IP

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	// Public routes
	api := router.Group("/api")
	{
		api.POST("/auth/login", authHandler.Login)
	}

	// Protected routes
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(&cfg.Auth))
	{
		protected.GET("/auth/me", authHandler.GetCurrentUser)
		protected.POST("/projects", projectHandler.Create)
		protected.GET("/projects", projectHandler.List)
		protected.GET("/projects/:id", projectHandler.Get)
		protected.GET("/projects/:id/status", projectHandler.Status)
		protected.GET("/projects/:id/invitations", projectHandler.Invitations)
		protected.POST("/projects/:id/cancel", projectHandler.Cancel)
		protected.GET("/contractors", contractorHandler.List)
	}

	// Create server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server exited gracefully")
}

// corsMiddleware handles CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
