// Package main is the entry point for the API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/responderhq/opschat/internal/config"
	"github.com/responderhq/opschat/internal/handler"
	"github.com/responderhq/opschat/internal/middleware"
	natsclient "github.com/responderhq/opschat/internal/nats"
	"github.com/responderhq/opschat/internal/push"
	"github.com/responderhq/opschat/internal/service"
	"github.com/responderhq/opschat/internal/store"
	"github.com/responderhq/opschat/internal/store/memory"
	"github.com/responderhq/opschat/pkg/logger"
	"github.com/responderhq/opschat/pkg/tracing"
)

type readyFunc func() error

func (f readyFunc) Ready() error { return f() }

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting API server", zap.String("backend", cfg.ChatBackend))

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "opschat", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Select the chat backend
	var (
		backend store.Backend
		ready   handler.ReadyChecker
		client  *natsclient.Client
	)
	switch cfg.ChatBackend {
	case config.BackendNATS:
		client, err = natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Error("failed to connect to NATS", zap.Error(err))
			os.Exit(1)
		}
		defer client.Close()

		natsBackend, err := natsclient.NewBackend(ctx, client)
		if err != nil {
			log.Error("failed to initialize NATS backend", zap.Error(err))
			os.Exit(1)
		}
		backend = natsBackend
		ready = natsBackend
	case config.BackendMemory:
		backend = memory.New()
		ready = readyFunc(func() error { return nil })
	default:
		log.Error("unknown chat backend", zap.String("backend", cfg.ChatBackend))
		os.Exit(1)
	}

	// Select the push sink
	var sink push.Sink = push.NewLogSink(log)
	if cfg.PushSink == "nats" {
		if client == nil {
			log.Error("PUSH_SINK=nats requires CHAT_BACKEND=nats")
			os.Exit(1)
		}
		sink = natsclient.NewSink(client)
	}

	// Initialize services
	groupSvc := service.NewGroupService(backend, log)
	unread := service.NewUnreadTracker(backend)
	messageSvc := service.NewMessageService(backend, groupSvc, unread, sink, log)
	directory := service.NewDirectory(backend, groupSvc, unread)
	ingestSvc := service.NewIngestService(backend, groupSvc, sink, log)

	// Provision the predefined groups before serving traffic
	if err := groupSvc.ProvisionPredefined(ctx); err != nil {
		log.Error("failed to provision predefined groups", zap.Error(err))
		os.Exit(1)
	}

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(ready)
	conversationHandler := handler.NewConversationHandler(directory, log)
	messageHandler := handler.NewMessageHandler(messageSvc, log)
	groupHandler := handler.NewGroupHandler(groupSvc, log)
	ingestHandler := handler.NewIngestHandler(ingestSvc, log)
	notificationHandler := handler.NewNotificationHandler(sink, log)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With", "X-Client-Message-ID"},
		ExposedHeaders:   []string{"Link", "X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// API routes with authentication
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Get("/conversations", conversationHandler.List)
		r.Route("/conversations/{key}", func(r chi.Router) {
			r.Get("/messages", messageHandler.List)
			r.Delete("/messages", messageHandler.Clear)
		})

		r.Post("/messages", messageHandler.Send)

		r.Route("/groups", func(r chi.Router) {
			r.Get("/", groupHandler.List)
			r.Post("/", groupHandler.Create)
			r.Post("/{ref}/members", groupHandler.AddMembers)
			r.Delete("/{ref}", groupHandler.Delete)
		})

		r.Post("/notification-token", notificationHandler.RegisterToken)
	})

	// Ingestion routes for the external gateway
	r.Route("/ingest/v1", func(r chi.Router) {
		r.Use(middleware.GatewayAuth(cfg.IngestGatewayKey))
		r.Post("/messages", ingestHandler.Ingest)
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
