// Package server wires the session service together and runs it until an
// interrupt: HTTP API, session coordinator, caches and the audit exporter.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/sessionkeeper/internal/dbx"
	"github.com/dmitrijs2005/sessionkeeper/internal/logging"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/api"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/auditexport"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/auth"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/config"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/credentials"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/sessioncache"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/sessions"
	"github.com/dmitrijs2005/sessionkeeper/internal/timex"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const redisKeyPrefix = "sessionkeeper:session:"

// Seams for tests.
var (
	openDB         = repomanager.Open
	newRepoManager = repomanager.NewPostgresRepositoryManager
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	redis    redis.UniversalClient
	http     *api.HTTPServer
	exporter *auditexport.Exporter
}

// NewApp opens the database, applies migrations and builds every component.
// Configuration errors wrap common.ErrConfiguration.
func NewApp(ctx context.Context, c *config.Config, out io.Writer) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	logger := logging.NewJSONLogger(out, c.LogLevel)
	clock := timex.SystemClock{}
	m := metrics.New()

	db, err := openDB(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app := &App{config: c, logger: logger, db: db}

	rm := newRepoManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		app.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	params := auth.Params{
		SecretKey:      []byte(c.SecretKey),
		Algorithm:      c.SigningAlgorithm,
		Issuer:         c.Issuer,
		Audience:       c.Audience,
		AccessLifetime: c.AccessTokenLifetime,
	}
	issuer, err := auth.NewIssuer(params, clock)
	if err != nil {
		app.Close()
		return nil, err
	}
	validator, err := auth.NewValidator(params, clock)
	if err != nil {
		app.Close()
		return nil, err
	}

	health := map[string]api.HealthCheck{"database": db.PingContext}

	var backend sessioncache.Cache
	switch c.CacheBackend {
	case config.CacheRedis:
		app.redis = redis.NewClient(&redis.Options{Addr: c.RedisAddr, Password: c.RedisPassword, DB: c.RedisDB})
		rc := sessioncache.NewRedisCache(app.redis, redisKeyPrefix)
		health["cache"] = rc.Ping
		backend = rc
	default:
		backend = sessioncache.NewMemoryCache(clock)
	}

	svc, err := sessions.NewService(sessions.Deps{
		Users:     credentials.NewStore(rm.Users(db), credentials.DefaultHashParams),
		Repos:     rm,
		DB:        dbx.NewSQLTxRunner(db, nil),
		Issuer:    issuer,
		Validator: validator,
		Cache:     sessioncache.New(backend, clock, c.AccessTokenLifetime),
		Clock:     clock,
		Logger:    logger,
		Metrics:   m,
	}, sessions.Config{RefreshLifetime: c.RefreshTokenLifetime})
	if err != nil {
		app.Close()
		return nil, err
	}

	handler := api.NewHandler(svc, validator, logger, api.HandlerOptions{
		RefreshLifetime: c.RefreshTokenLifetime,
		SecureCookies:   c.SecureCookies,
		HealthChecks:    health,
	})
	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(handler, logger, m, api.NewRateLimiter(c.LoginRateLimit, clock))
	app.http = api.NewHTTPServer(c.HTTPAddress, router, logger)

	var store auditexport.ObjectPutter
	if c.AuditExportInterval > 0 {
		store, err = auditexport.NewS3Client(ctx, auditexport.S3Settings{
			AccessKey:    c.S3AccessKey,
			SecretKey:    c.S3SecretKey,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
		})
		if err != nil {
			app.Close()
			return nil, err
		}
	}
	app.exporter, err = auditexport.New(rm.RefreshTokens(db), store, auditexport.Config{
		Interval: c.AuditExportInterval,
		Bucket:   c.S3Bucket,
		Prefix:   c.AuditExportPrefix,
	}, clock, logger, m)
	if err != nil {
		app.Close()
		return nil, err
	}

	return app, nil
}

// Run serves until SIGINT/SIGTERM/SIGQUIT or until a component fails.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	app.logger.Info(ctx, "Starting app...")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.http.Run(ctx) })
	g.Go(func() error {
		app.exporter.Run(ctx)
		return nil
	})

	err := g.Wait()
	app.logger.Info(context.WithoutCancel(ctx), "App stopped")
	return err
}

func (app *App) Close() {
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Warn(context.Background(), "closing redis", "error", err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Warn(context.Background(), "closing database", "error", err)
		}
	}
}
