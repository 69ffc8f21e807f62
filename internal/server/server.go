package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/taskhub/apiserver/config"
	"github.com/taskhub/apiserver/internal/db"
	"github.com/taskhub/apiserver/internal/handlers"
	"github.com/taskhub/apiserver/internal/logger"
	"github.com/taskhub/apiserver/internal/metrics"
	"github.com/taskhub/apiserver/internal/notify"
	"github.com/taskhub/apiserver/internal/services"
	"github.com/taskhub/apiserver/internal/storage"
	"github.com/taskhub/apiserver/internal/tokens"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	closers    []func() error
	log        *zap.Logger
}

// New connects every backend selected by cfg and mounts the API.
func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	s := &Server{db: dbConn, log: log}

	denylist, err := s.openDenylist(ctx, cfg.Redis)
	if err != nil {
		s.release()
		return nil, err
	}

	var images services.ImageStore
	backend, err := storage.New(ctx, cfg.Storage)
	switch {
	case errors.Is(err, storage.ErrDisabled):
		log.Info("object storage disabled, profile images are not accepted")
	case err != nil:
		s.release()
		return nil, fmt.Errorf("open object storage: %w", err)
	default:
		s.closers = append(s.closers, backend.Close)
		images = storage.NewImages(backend)
	}

	notifier, closeNotifier, err := notify.New(ctx, cfg.Notifier, log)
	if err != nil {
		s.release()
		return nil, fmt.Errorf("open notifier: %w", err)
	}
	s.closers = append(s.closers, closeNotifier)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	httpMetrics, err := metrics.NewHTTP(metrics.Options{Registry: registry})
	if err != nil {
		s.release()
		return nil, err
	}

	pg := NewStore(dbConn)
	issuer := tokens.NewIssuer(cfg.JWT)

	authService := services.NewAuthService(pg, issuer, denylist, log.Named("auth"))
	registrationService := services.NewRegistrationService(pg, issuer, images, cfg.RegistrationMode, log.Named("registration"))
	recoveryService := services.NewRecoveryService(pg, notifier, cfg.OTPTTL, log.Named("recovery"))
	profileService := services.NewProfileService(pg, images, log.Named("profiles"))
	categoryService := services.NewCategoryService(pg, log.Named("categories"))
	taskService := services.NewTaskService(pg, log.Named("tasks"))
	accountService := services.NewAccountService(pg, log.Named("accounts"))

	authMiddleware := handlers.RequireAuth(issuer, authService, log)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		logger.Middleware(log.Named("http")),
		httpMetrics.Middleware,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Method(http.MethodGet, "/metrics", httpMetrics.Handler())
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, handlers.NewAuthHandler(authService, registrationService, log), authMiddleware)
	})
	router.Route("/password", func(r chi.Router) {
		handlers.PasswordRouter(r, handlers.NewPasswordHandler(recoveryService, log), authMiddleware)
	})
	router.Route("/profile", func(r chi.Router) {
		handlers.ProfileRouter(r, handlers.NewProfileHandler(profileService, log), authMiddleware)
	})
	router.Route("/categories", func(r chi.Router) {
		handlers.CategoryRouter(r, handlers.NewCategoryHandler(categoryService, log), authMiddleware)
	})
	router.Route("/tasks", func(r chi.Router) {
		handlers.TaskRouter(r, handlers.NewTaskHandler(taskService, log), authMiddleware)
	})
	router.Route("/admin", func(r chi.Router) {
		handlers.AdminRouter(r, handlers.NewAdminHandler(accountService, registrationService, log), authMiddleware)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	s.router = router
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	log.Info("server configured",
		zap.Int("port", port),
		zap.String("registration_mode", cfg.RegistrationMode),
		zap.String("storage", cfg.Storage.Backend),
		zap.String("notifier", cfg.Notifier.Backend),
		zap.Bool("refresh_denylist", cfg.Redis.Addr != ""),
	)
	return s, nil
}

// openDenylist connects to Redis when configured. Without Redis refresh
// tokens stay reusable until they expire.
func (s *Server) openDenylist(ctx context.Context, cfg config.RedisConfig) (tokens.Denylist, error) {
	if cfg.Addr == "" {
		s.log.Warn("REDIS_ADDR not set, refresh token rotation is not enforced")
		return tokens.NopDenylist{}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	s.closers = append(s.closers, client.Close)
	return tokens.NewRedisDenylist(client, ""), nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server. It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	s.log.Info("listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then releases the backends.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.release()
	return err
}

func (s *Server) release() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.log.Warn("failed to release backend", zap.Error(err))
		}
	}
	s.closers = nil
	if s.db != nil {
		_ = s.db.Close()
		s.db = nil
	}
}
