package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/garagedesk/internal/config"
	"github.com/garagedesk/internal/handler"
	"github.com/garagedesk/internal/logger"
	"github.com/garagedesk/internal/middleware"
	"github.com/garagedesk/internal/push"
	"github.com/garagedesk/internal/repository"
	"github.com/garagedesk/internal/startup"
	"github.com/garagedesk/internal/ws"
	"github.com/garagedesk/migrations"
)

func main() {
	logger.SetPrefix("hub")
	migrate := flag.Bool("migrate", false, "run database migrations and exit")
	dev := flag.Bool("dev", false, "start with embedded PostgreSQL (no external DB required)")
	flag.Parse()

	logger.Info("starting hub service")
	cfg := config.Load()

	var embeddedDB *embeddedpostgres.EmbeddedPostgres
	if *dev {
		var err error
		embeddedDB, err = startEmbeddedPostgres(cfg)
		if err != nil {
			logger.Errorf("embedded postgres: %v", err)
			os.Exit(1)
		}
		defer func() {
			logger.Info("stopping embedded postgres...")
			if err := embeddedDB.Stop(); err != nil {
				logger.Errorf("embedded postgres stop: %v", err)
			}
		}()
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL())
	if err != nil {
		logger.Errorf("parse db config: %v", err)
		os.Exit(1)
	}
	poolCfg.MaxConns = int32(cfg.DBMaxConnections())
	poolCfg.MinConns = 4

	pool := startup.ConnectDBWithRetry(poolCfg, 60*time.Second, "")
	defer pool.Close()

	runMigrations(pool)
	if *migrate && !*dev {
		return
	}
	logger.Info("database connected, migrations applied")

	chatRepo := repository.NewChatRepository(pool)
	msgRepo := repository.NewMessageRepository(pool)

	hubCtx, hubCancel := context.WithCancel(context.Background())
	hub := ws.NewHub(chatRepo, cfg.MaxWSConnections)

	var hubWg sync.WaitGroup
	hubWg.Add(1)
	go func() {
		defer hubWg.Done()
		hub.Run(hubCtx)
	}()

	// Web Push needs Redis for subscriptions and a VAPID key pair. Either
	// failing only disables the offline fallback, sockets still work.
	var pushSvc *push.Service
	var offline handler.OfflineNotifier
	vapidPublic := cfg.PushVAPIDPublicKey
	if keys, err := push.EnsureVAPIDKeys(""); err != nil {
		logger.Errorf("vapid keys: %v (web push disabled)", err)
	} else {
		rdb := startup.ConnectRedisWithRetry(cfg.Redis.URL, 60*time.Second, "")
		defer rdb.Close()
		pushSvc = push.NewService(rdb, keys, envOr("PUSH_SUBSCRIBER", "mailto:ops@garagedesk.local"))
		offline = pushSvc
		vapidPublic = keys.PublicKey
	}

	chatH := handler.NewChatHandler(chatRepo, msgRepo, hub)
	notifyH := handler.NewNotifyHandler(hub, offline)
	pushH := handler.NewPushHandler(pushSvc, vapidPublic)
	wsH := handler.NewWSHandler(hub, cfg.CORSAllowedOrigins)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(middleware.RecoverJSON)
	// Skip compression for WebSocket, otherwise the ResponseWriter loses
	// http.Hijacker and the upgrade fails with a 500.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if strings.EqualFold(req.Header.Get("Upgrade"), "websocket") {
				next.ServeHTTP(w, req)
				return
			}
			chimw.Compress(5)(next).ServeHTTP(w, req)
		})
	})
	r.Use(middleware.RequestLog)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.CORSAllowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Session-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK); w.Write([]byte("ok")) })

	r.Post("/api/chats", chatH.CreateChat)
	r.Get("/api/chats/{id}", chatH.GetChat)
	r.Post("/api/chats/{id}/messages", chatH.PostMessage)
	r.Post("/api/chats/{id}/assign", chatH.Assign)
	r.Put("/api/chats/{id}/status", chatH.UpdateStatus)
	r.Post("/api/chats/{id}/read", chatH.MarkRead)

	r.Post("/api/notify", notifyH.Notify)

	r.Get("/api/push/key", pushH.VAPIDPublic)
	r.Post("/api/push/subscribe", pushH.Subscribe)
	r.Delete("/api/push/subscribe", pushH.Unsubscribe)

	r.Get("/ws", wsH.ServeWS)

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	var srvWg sync.WaitGroup
	errCh := make(chan error, 1)
	srvWg.Add(1)
	go func() {
		defer srvWg.Done()
		logger.Infof("server listening on %s", cfg.ServerAddr)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Errorf("server error: %v", err)
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server shutdown: %v", err)
	}
	logger.Info("server stopped accepting connections")
	hubCancel()
	hubWg.Wait()
	logger.Info("hub stopped")
	srvWg.Wait()
	logger.Info("server goroutine exited")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func runMigrations(pool *pgxpool.Pool) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	files := []string{"001_init.sql"}
	for _, f := range files {
		data, err := migrations.Files.ReadFile(f)
		if err != nil {
			logger.Errorf("read migration %s: %v", f, err)
			os.Exit(1)
		}
		if _, err := pool.Exec(ctx, string(data)); err != nil {
			logger.Errorf("run migration %s: %v", f, err)
			os.Exit(1)
		}
	}
	logger.Info("migrations applied")
}

func startEmbeddedPostgres(cfg *config.Config) (*embeddedpostgres.EmbeddedPostgres, error) {
	const (
		port     = 5432
		user     = "garagedesk"
		password = "garagedesk_secret"
		database = "garagedesk"
	)

	dataDir := filepath.Join(".", ".pgdata")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create pgdata dir: %w", err)
	}

	db := embeddedpostgres.NewDatabase(
		embeddedpostgres.DefaultConfig().
			Port(port).
			Username(user).
			Password(password).
			Database(database).
			DataPath(dataDir).
			RuntimePath(filepath.Join(os.TempDir(), "embedded-pg-runtime")),
	)

	logger.Info("starting embedded PostgreSQL...")
	if err := db.Start(); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}

	cfg.Database.URL = fmt.Sprintf(
		"postgres://%s:%s@localhost:%d/%s?sslmode=disable",
		user, password, port, database,
	)
	logger.Infof("embedded PostgreSQL running on port %d", port)
	return db, nil
}
