package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/subhive/subhive/backend/internal/auth"
	"github.com/subhive/subhive/backend/internal/chat"
	"github.com/subhive/subhive/backend/internal/config"
	"github.com/subhive/subhive/backend/internal/conversations"
	"github.com/subhive/subhive/backend/internal/mailer"
	"github.com/subhive/subhive/backend/internal/messages"
	"github.com/subhive/subhive/backend/internal/notifications"
	"github.com/subhive/subhive/backend/internal/storage"
	"github.com/subhive/subhive/backend/internal/storage/memory"
	"github.com/subhive/subhive/backend/internal/storage/postgres"
	"github.com/subhive/subhive/backend/internal/storage/sqlite"
)

func main() {
	migrate := flag.Bool("migrate", false, "run migrations and exit")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "err", err)
	}
	cfg := config.MustLoad()

	store, migrator, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Error opening store: %v", err)
	}
	defer store.Close()

	if migrator != nil {
		if err := migrator(); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		if *migrate {
			slog.Info("migration completed")
			return
		}
	}

	hub := chat.NewHub()
	router := chat.NewRouter(hub, store)
	m := mailer.New(cfg.SendGridAPIKey, cfg.SendGridFrom)

	r := gin.Default()

	// websocket endpoint lives at the root, everything else under /api
	chat.RegisterWS(r.Group(""), hub, router)

	api := r.Group("/api")
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"service":   "subhive-realtime",
		})
	})
	api.GET("/websocket-test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"active":      hub.ConnectionCount() > 0,
			"connections": hub.ConnectionCount(),
			"path":        "/ws",
			"serverUrl":   c.Request.Host,
		})
	})
	if cfg.JWTSecret != "" {
		auth.RegisterPublic(api, cfg.JWTSecret, cfg.JWTTTLMin)
	}

	guarded := api.Group("", auth.JWTMiddleware(cfg.JWTSecret))
	notifications.Register(guarded, store, hub, router, m)
	messages.Register(guarded, store, router)
	conversations.Register(guarded, store)

	server := &http.Server{
		Addr:    cfg.Addr,
		Handler: r,
	}

	go func() {
		slog.Info("server starting", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutting down", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Shutdown failed: %v", err)
	}
}

func openStore(cfg config.Config) (storage.Store, func() error, error) {
	switch cfg.DBDriver {
	case "postgres":
		pg, err := postgres.New(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Migrate, nil
	case "memory":
		return memory.New(), nil, nil
	default:
		sq, err := sqlite.New(cfg.SQLiteDSN)
		if err != nil {
			return nil, nil, err
		}
		return sq, sq.Migrate, nil
	}
}
