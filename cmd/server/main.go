package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"whatsapp-assistant/internal/api"
	"whatsapp-assistant/internal/assistant"
	"whatsapp-assistant/internal/config"
	"whatsapp-assistant/internal/database"
	"whatsapp-assistant/internal/disposition"
	"whatsapp-assistant/internal/eligibility"
	"whatsapp-assistant/internal/scheduler"
	"whatsapp-assistant/internal/store"
	"whatsapp-assistant/internal/webhook"
	"whatsapp-assistant/internal/whatsapp"
	"whatsapp-assistant/internal/ws"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.LoadConfig()
	db := database.InitGorm(cfg)
	database.SyncConfig(db, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	prompt, err := assistant.LoadPrompt(cfg.PromptPath)
	if err != nil {
		log.Fatalf("Failed to load prompt: %v", err)
	}
	if cfg.OpenAIAPIKey == "" {
		log.Println("Warning: OPENAI_API_KEY not set, every message will be escalated to an agent")
	}

	st := store.New(db)
	whatsappClient := whatsapp.NewClient(cfg)
	generator := assistant.NewOpenAIGenerator(assistant.OpenAIConfig{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
		Timeout: cfg.GenerateTimeout,
	}, prompt)
	guard := eligibility.NewGuard(st, eligibility.Options{
		AgentWindow: cfg.AgentWindow,
		DailyLimit:  cfg.DailyInboundLimit,
		Location:    cfg.Location(),
		CountryCode: cfg.CountryCode,
	})
	engine := disposition.NewEngine(st, guard, generator, whatsappClient, disposition.Options{
		ReplyDelay:      cfg.ReplyDelay,
		AgentWindow:     cfg.AgentWindow,
		HistoryTurns:    cfg.HistoryTurns,
		GenerateTimeout: cfg.GenerateTimeout,
		SendTimeout:     cfg.SendTimeout,
		CountryCode:     cfg.CountryCode,
		FollowUpMessage: cfg.FollowUpMessage,
	})

	hub := ws.NewHub()
	engine.SetNotifier(hub)

	worker := scheduler.NewWorker(engine, scheduler.Options{
		PollInterval:  cfg.JobPollInterval,
		Concurrency:   cfg.WorkerConcurrency,
		SweepInterval: cfg.SweepInterval,
	})

	r := gin.Default()

	// CORS Middleware
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	webhookHandler := webhook.NewHandler(cfg, engine)
	dashboardHandler := api.NewDashboardHandler(st, cfg.CountryCode)
	customerHandler := api.NewCustomerHandler(st)
	whatsappHandler := api.NewWhatsAppHandler(engine)
	sweepHandler := api.NewSweepHandler(ctx, engine, cfg.SweepToken)

	// Webhook Routes
	r.POST("/webhook", webhookHandler.HandleMessage)
	r.GET("/ws", func(c *gin.Context) {
		hub.ServeWs(c.Writer, c.Request)
	})

	// Dashboard API Routes
	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/conversations", dashboardHandler.GetConversations)
		apiGroup.GET("/messages", dashboardHandler.GetMessages)
		apiGroup.POST("/send", whatsappHandler.SendMessage)
		apiGroup.POST("/sweeps", sweepHandler.TriggerSweep)

		// CRM Routes
		apiGroup.GET("/customers", customerHandler.GetCustomers)
		apiGroup.POST("/customers", customerHandler.CreateCustomer)
		apiGroup.PUT("/customers/:id", customerHandler.UpdateCustomer)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		worker.Start(gctx)
		<-gctx.Done()
		worker.Stop()
		return nil
	})
	g.Go(func() error {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		log.Println("Shutting down server...")
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("Server stopped")
}
