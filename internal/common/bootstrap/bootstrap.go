package bootstrap

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"

	authhttp "github.com/trackfit/backend/internal/auth/http"
	authservice "github.com/trackfit/backend/internal/auth/service"
	"github.com/trackfit/backend/internal/common/clock"
	"github.com/trackfit/backend/internal/common/config"
	"github.com/trackfit/backend/internal/common/constants"
	commoncrypto "github.com/trackfit/backend/internal/common/crypto"
	"github.com/trackfit/backend/internal/common/db"
	commonhttp "github.com/trackfit/backend/internal/common/http"
	"github.com/trackfit/backend/internal/common/jwtverify"
	"github.com/trackfit/backend/internal/common/logger"
	srv "github.com/trackfit/backend/internal/common/server"
	"github.com/trackfit/backend/internal/docs"
	fitnesshttp "github.com/trackfit/backend/internal/fitness/http"
	fitnessrepo "github.com/trackfit/backend/internal/fitness/repository"
	fitnessservice "github.com/trackfit/backend/internal/fitness/service"
	userrepo "github.com/trackfit/backend/internal/user/repository"
	"github.com/trackfit/backend/internal/web"
)

type APIApp struct {
	Log     *logger.Logger
	Config  config.APIConfig
	Handler http.Handler

	pool    *pgxpool.Pool
	redis   *redis.Client
	limiter *commonhttp.StrictRateLimiter
	cancel  context.CancelFunc
}

type WebApp struct {
	Log     *logger.Logger
	Config  config.WebConfig
	Handler http.Handler
}

// APIComponents are the storage-independent pieces of the API. Tests build
// them over in-memory repositories.
type APIComponents struct {
	Config  config.APIConfig
	Log     *logger.Logger
	Users   userrepo.Repository
	Fitness fitnessrepo.Repository
	Limiter *commonhttp.StrictRateLimiter
	Clock   clock.Clock
	Health  []commonhttp.HealthCheck
}

func NewAPIApp(ctx context.Context) (*APIApp, error) {
	cfg, err := config.LoadAPIConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.LogDir, "api", cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	if cfg.MigrateOnStart {
		if err := db.Migrate(ctx, log, cfg.DatabaseURL); err != nil {
			return nil, err
		}
	}

	pool, err := db.NewPool(ctx, log, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		return nil, err
	}

	metricsCtx, cancel := context.WithCancel(context.Background())
	db.StartPoolMetrics(metricsCtx, pool, constants.DBPoolMetricsInterval)

	app := &APIApp{
		Log:    log,
		Config: cfg,
		pool:   pool,
		cancel: cancel,
	}

	clientIPs, err := commonhttp.NewClientIPResolver(cfg.TrustedProxies)
	if err != nil {
		app.Close()
		return nil, err
	}

	errs := commonhttp.NewErrorHandler(log)
	if cfg.RedisAddr != "" {
		client, err := commonhttp.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.redis = client
		app.limiter = commonhttp.NewRedisStrictRateLimiter(client, log, errs)
		log.Infof("rate limiting backed by redis at %s", cfg.RedisAddr)
	} else {
		app.limiter = commonhttp.NewInMemoryStrictRateLimiter(errs)
		log.Infof("rate limiting kept in process memory")
	}
	app.limiter.WithClientIPResolver(clientIPs)

	app.Handler, err = NewAPIHandler(APIComponents{
		Config:  cfg,
		Log:     log,
		Users:   userrepo.NewPgRepository(pool),
		Fitness: fitnessrepo.NewPgRepository(pool),
		Limiter: app.limiter,
		Health: []commonhttp.HealthCheck{
			{Name: "database", Check: pool.Ping},
		},
	})
	if err != nil {
		app.Close()
		return nil, err
	}

	return app, nil
}

func NewAPIHandler(c APIComponents) (http.Handler, error) {
	clk := c.Clock
	if clk == nil {
		clk = clock.NewRealClock()
	}

	idGenerator := commoncrypto.NewUUIDGenerator()
	authSvc := authservice.NewAuthService(
		authservice.AuthServiceDeps{
			Repo:        c.Users,
			Hasher:      commoncrypto.NewBcryptHasher(c.Config.BcryptCost),
			IDGenerator: idGenerator,
			Clock:       clk,
			Log:         c.Log,
		},
		authservice.AuthServiceConfig{
			JWTSecret:               c.Config.JWTSecret,
			CircuitBreakerThreshold: c.Config.CircuitBreakerThreshold,
			CircuitBreakerTimeout:   c.Config.CircuitBreakerTimeout,
			CircuitBreakerReset:     c.Config.CircuitBreakerReset,
		},
	)
	verifier := jwtverify.NewVerifier(c.Config.JWTSecret, clk)
	authHandler := authhttp.NewHandler(authSvc, verifier, c.Log, c.Config.RequestTimeout)

	fitnessSvc := fitnessservice.NewFitnessService(c.Fitness, c.Log)
	fitnessHandler := fitnesshttp.NewHandler(fitnessSvc, c.Log, c.Config.RequestTimeout)

	docsHandler, err := docs.NewHandler()
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   c.Config.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", commonhttp.TraceIDHeader},
		ExposedHeaders:   []string{commonhttp.TraceIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.NotFound(commonhttp.NotFoundHandler)
	r.MethodNotAllowed(commonhttp.MethodNotAllowedHandler)

	r.Get("/health", commonhttp.HealthHandler(c.Log, c.Health...))
	r.Handle("/metrics", promhttp.Handler())
	r.Mount("/auth", authHandler.Routes())
	r.Mount("/docs", docsHandler.Routes())
	fitnessHandler.Register(r)

	var handler http.Handler = r
	if c.Limiter != nil {
		handler = c.Limiter.Middleware(handler)
	}
	return commonhttp.BuildBaseHandler("api", c.Log, handler), nil
}

func (a *APIApp) Run() {
	server := srv.New(srv.DefaultConfig(a.Config.HTTPPort), a.Handler)
	srv.Run(server, a.Log, "api", func(ctx context.Context) error {
		a.Log.Infof("api service: stopping background workers")
		a.cancel()
		a.limiter.Stop()
		return nil
	})
}

// Close releases the pool and the redis client once the server has stopped.
func (a *APIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.limiter != nil {
		a.limiter.Stop()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.Log.Warnf("failed to close redis client: %v", err)
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

func NewWebApp() (*WebApp, error) {
	cfg, err := config.LoadWebConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.LogDir, "web", cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	router, err := web.NewRouter(web.RouterConfig{
		Clients:       web.NewClientFactory(cfg.APIBaseURL, cfg.ClientTimeout, http.DefaultTransport, cfg.SecureCookies),
		CSRFKey:       []byte(cfg.CSRFKey),
		SecureCookies: cfg.SecureCookies,
		GuardTimeout:  cfg.GuardTimeout,
		Log:           log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build web router: %w", err)
	}

	return &WebApp{
		Log:     log,
		Config:  cfg,
		Handler: commonhttp.BuildBaseHandler("web", log, router),
	}, nil
}

func (a *WebApp) Run() {
	srv.Run(srv.New(srv.DefaultConfig(a.Config.HTTPPort), a.Handler), a.Log, "web")
}
