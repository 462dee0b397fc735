package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/nvi-digital/livechat/internal/auth"
	"github.com/nvi-digital/livechat/internal/config"
	"github.com/nvi-digital/livechat/internal/handlers"
	"github.com/nvi-digital/livechat/internal/history"
	"github.com/nvi-digital/livechat/internal/presence"
	"github.com/nvi-digital/livechat/internal/websocket"
)

func main() {
	// Load configuration from environment
	cfg := config.Load()

	// Restore chat history from the last durable snapshot
	store := history.NewStore(cfg.HistoryFile, cfg.HistoryLimit)
	store.Restore()

	// Initialize core services
	registry := presence.NewRegistry()
	authService := auth.NewService(cfg.AdminPassword)
	hub := websocket.NewHub(registry, store, authService, cfg.TypingIdleTimeout)
	wsHandler := websocket.NewHandler(hub)

	// Start the background snapshot worker
	snapshotService := history.NewSnapshotService(store, cfg.SnapshotInterval)
	go snapshotService.Start()

	// Initialize HTTP handlers
	statusHandler := handlers.NewStatusHandler(registry)
	adminHandler := handlers.NewAdminHandler(authService, store, registry)

	// Set up router with middleware
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	// CORS configuration - reads from CORS_ORIGINS env var
	// Format: comma-separated list of origins, e.g., "http://localhost:5173,https://chat.example.com"
	corsOrigins := getCorsOrigins()
	log.Printf("CORS allowed origins: %v", corsOrigins)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Status and health endpoints
	r.Get("/", statusHandler.Status)
	r.Get("/health", handlers.HealthCheck)

	// Real-time channel
	r.Get("/ws", wsHandler.ServeWS)

	// Admin dashboard routes
	r.Route("/admin", func(r chi.Router) {
		r.Post("/auth", adminHandler.Authenticate)
		r.Get("/chat-history/{userId}", adminHandler.ChatHistory)
		r.Get("/conversations", adminHandler.Conversations)
	})

	// Start server
	addr := fmt.Sprintf(":%s", cfg.ServerPort)
	server := &http.Server{Addr: addr, Handler: r}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("🚀 Live chat server starting on %s", addr)
		log.Printf("📝 Chat history file: %s", cfg.HistoryFile)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	// Flush one final snapshot so nothing received since the last tick is lost
	snapshotService.Stop()
	log.Println("Server closed.")
}

// getCorsOrigins returns allowed CORS origins from environment or defaults
func getCorsOrigins() []string {
	originsEnv := os.Getenv("CORS_ORIGINS")
	if originsEnv == "" {
		// Default to localhost for development
		return []string{"http://localhost:5173", "http://localhost:3000"}
	}

	// Split comma-separated origins and trim whitespace
	origins := strings.Split(originsEnv, ",")
	for i, origin := range origins {
		origins[i] = strings.TrimSpace(origin)
	}
	return origins
}
