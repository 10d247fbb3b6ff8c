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

	"github.com/chatify/internal/config"
	"github.com/chatify/internal/email"
	"github.com/chatify/internal/events"
	"github.com/chatify/internal/handler"
	"github.com/chatify/internal/logger"
	"github.com/chatify/internal/middleware"
	"github.com/chatify/internal/push"
	"github.com/chatify/internal/repository"
	"github.com/chatify/internal/service"
	"github.com/chatify/internal/startup"
	"github.com/chatify/internal/storage"
	"github.com/chatify/internal/storage/devstore"
	"github.com/chatify/internal/ws"
	"github.com/chatify/migrations"
)

const sessionSweepInterval = time.Hour

func main() {
	logger.SetPrefix("api")
	migrate := flag.Bool("migrate", false, "run database migrations and exit")
	dev := flag.Bool("dev", false, "start with embedded PostgreSQL and in-memory session store/event bus")
	flag.Parse()

	logger.Info("starting API service")
	cfg := config.Load()
	logger.SetLevel(cfg.LogLevel)

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
	poolCfg.MinConns = 2

	pool := startup.ConnectDBWithRetry(poolCfg, 60*time.Second, "")
	defer pool.Close()

	if err := runMigrations(pool); err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
	if *migrate {
		return
	}
	logger.Info("database connected, migrations applied")

	userRepo := repository.NewUserRepository(pool)
	sessionRepo := repository.NewSessionRepository(pool)
	chatRepo := repository.NewChatRepository(pool)
	msgRepo := repository.NewMessageRepository(pool)

	store, bus := sessionStoreAndBus(cfg, *dev, sessionRepo)
	defer store.Close()
	defer bus.Close()

	pushClient := push.NewClient(cfg.PushServiceURL).WithSecret(cfg.InternalSecret)
	var notifier service.Notifier
	if pushClient.Enabled() {
		notifier = pushClient
	}
	mailer := email.NewSender(&cfg.SMTP)

	authSvc := service.NewAuthService(userRepo, sessionRepo, store, bus, mailer, cfg.JWTSecret, cfg.SessionTTL)
	chatSvc := service.NewChatService(chatRepo, userRepo, bus)
	msgSvc := service.NewMessageService(chatSvc, msgRepo, bus, notifier)

	bgCtx, bgCancel := context.WithCancel(context.Background())
	hub := ws.NewHub(chatSvc, msgSvc, bus, cfg.MaxWSConnections)

	var bgWg sync.WaitGroup
	bgWg.Add(2)
	go func() {
		defer bgWg.Done()
		hub.Run(bgCtx)
	}()
	go func() {
		defer bgWg.Done()
		sweepSessions(bgCtx, sessionRepo)
	}()

	hs := &handler.Handlers{
		Auth:     handler.NewAuthHandler(authSvc),
		Chats:    handler.NewChatHandler(chatSvc),
		Messages: handler.NewMessageHandler(msgSvc),
		WS:       handler.NewWSHandler(hub, cfg.CORSAllowedOrigins),
		Push:     handler.NewPushHandler(pushClient),
		Config:   handler.NewConfigHandler(cfg),
	}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.HideQueryToken)
	r.Use(chimw.Logger)
	r.Use(middleware.RecoverJSON)
	// Не сжимать WebSocket - иначе ResponseWriter не реализует http.Hijacker и upgrade даёт 500.
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
	r.Use(middleware.RateLimitAPI)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSAllowedOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	hs.Mount(r, middleware.SessionAuth(authSvc), middleware.RateLimitUser)

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
	bgCancel()
	bgWg.Wait()
	logger.Info("hub stopped")
	srvWg.Wait()
	logger.Info("server goroutine exited")
}

// sessionStoreAndBus: в -dev сессии из БД с кэшем в памяти и шина в памяти;
// иначе Redis (шина - Redis pub/sub, если EVENT_BUS=redis).
func sessionStoreAndBus(cfg *config.Config, dev bool, sessions *repository.SessionRepository) (storage.SessionStore, events.Bus) {
	if dev {
		logger.Info("dev mode: in-memory session cache and event bus")
		return devstore.New(sessions), events.NewMemoryBus()
	}
	rdb := startup.ConnectRedisWithRetry(cfg.Redis.URL, 60*time.Second, "")
	if cfg.EventBus == "memory" {
		return rdb, events.NewMemoryBus()
	}
	return rdb, events.NewRedisBus(rdb.Redis(), events.DefaultChannel)
}

// sweepSessions периодически удаляет истёкшие строки sessions.
func sweepSessions(ctx context.Context, repo *repository.SessionRepository) {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := repo.DeleteExpired(ctx, now)
			if err != nil {
				logger.Errorf("session sweep: %v", err)
				continue
			}
			if n > 0 {
				logger.Infof("session sweep: removed %d expired", n)
			}
		}
	}
}

func runMigrations(pool *pgxpool.Pool) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	names, err := migrations.Names()
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	return startup.Migrate(ctx, pool, migrations.Files, names)
}

func startEmbeddedPostgres(cfg *config.Config) (*embeddedpostgres.EmbeddedPostgres, error) {
	const (
		port     = 5432
		user     = "chatify"
		password = "chatify_secret"
		database = "chatify"
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
