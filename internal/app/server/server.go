package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"perfreview/internal/domain/audit"
	"perfreview/internal/domain/review"
	"perfreview/internal/platform/config"
	"perfreview/internal/platform/db"
	"perfreview/internal/platform/metrics"
	"perfreview/internal/transport/http/api"
	audithandler "perfreview/internal/transport/http/handlers/audit"
	cycleshandler "perfreview/internal/transport/http/handlers/cycles"
	evaluationshandler "perfreview/internal/transport/http/handlers/evaluations"
	itemshandler "perfreview/internal/transport/http/handlers/items"
	usershandler "perfreview/internal/transport/http/handlers/users"
	"perfreview/internal/transport/http/middleware"
)

type App struct {
	Config  config.Config
	Log     *zap.Logger
	Store   review.Store
	Service *review.Service
	Metrics *metrics.Collector
	Router  http.Handler
	Seeded  db.SeedResult

	pool  *pgxpool.Pool
	redis *redis.Client
}

// New wires the store selected by cfg.StoreDriver, applies migrations and the seed when
// enabled, and builds the router.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	app := &App{Config: cfg, Log: logger, Metrics: metrics.New()}

	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		app.Store = review.NewMemoryStore()
		logger.Warn("using in-memory store; data is lost on restart")
	default:
		pool, err := db.Connect(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("db connect: %w", err)
		}
		app.pool = pool
		if cfg.RunMigrations {
			if _, err := db.Migrate(ctx, pool, cfg.MigrationsDir, logger); err != nil {
				app.Close()
				return nil, fmt.Errorf("migrations: %w", err)
			}
		}
		app.Store = review.NewPGStore(pool)
	}

	if cfg.RunSeed {
		result, err := db.Seed(ctx, app.Store, cfg)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("seed: %w", err)
		}
		app.Seeded = result
		logger.Info("seed complete",
			zap.String("companyId", result.CompanyID),
			zap.String("adminId", result.AdminID),
			zap.Bool("adminCreated", result.AdminCreated),
		)
	}

	limiter, err := app.limiter(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}

	app.Service = review.NewService(app.Store, logger.Named("review"), review.WithCascadeConcurrency(cfg.CascadeConcurrency))
	app.Router = app.routes(limiter)
	return app, nil
}

func (a *App) limiter(ctx context.Context) (middleware.Limiter, error) {
	window := time.Minute
	if a.Config.RateLimitBackend != config.RateLimitRedis {
		return middleware.NewMemoryLimiter(a.Config.RateLimitPerMinute, window), nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     a.Config.RedisAddr,
		Password: a.Config.RedisPassword,
		DB:       a.Config.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	a.redis = client
	return middleware.NewRedisLimiter(client, a.Config.RateLimitPerMinute, window, ""), nil
}

func (a *App) routes(limiter middleware.Limiter) http.Handler {
	cfg := a.Config
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(a.Log.Named("http"), a.Metrics))
	router.Use(middleware.Recoverer(a.Log))
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.Auth(cfg.JWTSecret, a.Log))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.Service.Ping(ctx); err != nil {
			http.Error(w, "store not ready", http.StatusServiceUnavailable)
			return
		}
		if a.redis != nil {
			if err := a.redis.Ping(ctx).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if cfg.MetricsEnabled {
		router.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			api.Success(w, a.Metrics.Snapshot(), middleware.GetRequestID(r.Context()))
		})
	}

	sensitive := middleware.NewMemoryLimiter(max(cfg.RateLimitPerMinute/10, 1), time.Minute)
	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RequireActor)
		r.Use(middleware.RateLimit(limiter, middleware.WithRateLimitLogger(a.Log)))
		r.Use(middleware.SensitiveMutationRateLimit(sensitive, middleware.WithRateLimitLogger(a.Log)))

		usershandler.NewHandler(a.Service, a.Log).RegisterRoutes(r)
		itemshandler.NewHandler(a.Service, a.Metrics, a.Log).RegisterRoutes(r)
		cycleshandler.NewHandler(a.Service, a.Log).RegisterRoutes(r)
		evaluationshandler.NewHandler(a.Service, a.Log).RegisterRoutes(r)
		audithandler.NewHandler(audit.NewService(a.Store), a.Log).RegisterRoutes(r)
	})

	return router
}

// Run serves until ctx is cancelled, then drains in-flight requests for ShutdownTimeout.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.Config.Addr,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Log.Info("server listening", zap.String("addr", a.Config.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.ShutdownTimeout)
	defer cancel()
	a.Log.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *App) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
		a.redis = nil
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
}
