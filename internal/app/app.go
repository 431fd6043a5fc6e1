package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/marksync/internal/account"
	"github.com/MrSnakeDoc/marksync/internal/analyze"
	"github.com/MrSnakeDoc/marksync/internal/auth"
	"github.com/MrSnakeDoc/marksync/internal/config"
	"github.com/MrSnakeDoc/marksync/internal/httpserver"
	"github.com/MrSnakeDoc/marksync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marksync/internal/lock"
	"github.com/MrSnakeDoc/marksync/internal/logger"
	"github.com/MrSnakeDoc/marksync/internal/reconcile"
	"github.com/MrSnakeDoc/marksync/internal/redis"
	"github.com/MrSnakeDoc/marksync/internal/scheduler"
	"github.com/MrSnakeDoc/marksync/internal/sources/homepage"
	redisstore "github.com/MrSnakeDoc/marksync/internal/store/redis"
	"github.com/MrSnakeDoc/marksync/internal/store/sqlite"
	"github.com/MrSnakeDoc/marksync/internal/version"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	db          *sqlite.Store
	redisClient *goredis.Client
	accounts    *account.Service
	reconciler  *reconcile.Reconciler
	stats       *scheduler.StatsRefresher
	importer    *scheduler.HomepageImporter
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	// Open the record store early - fail fast if unavailable
	loggerClient.Info("opening database", logger.String("path", cfg.DBPath))
	db, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		loggerClient.Errorf("Failed to open database: %v", err)
		os.Exit(1)
	}

	tokens, err := auth.NewIssuer(cfg.JWTSecret, cfg.JWTExpire)
	if err != nil {
		loggerClient.Errorf("Failed to initialize token issuer: %v", err)
		os.Exit(1)
	}
	accounts := account.New(db, tokens, loggerClient)

	if cfg.AdminEmail != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := accounts.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword)
		cancel()
		if err != nil {
			loggerClient.Errorf("Failed to bootstrap admin account: %v", err)
			os.Exit(1)
		}
	}

	// Redis is optional: without it locks are in-process and pages are not cached
	var (
		redisClient *goredis.Client
		locker      reconcile.Locker
		pageCache   analyze.PageCache
		lockMode    = "local"
	)
	if cfg.RedisEnabled() {
		loggerClient.Infof("Connecting to Redis at %s", cfg.RedisAddr)
		redisClient, err = redis.New(context.Background(), redis.ConnectOptions{
			Addr:           cfg.RedisAddr,
			User:           cfg.RedisUser,
			Password:       cfg.RedisPassword,
			RedisDB:        cfg.RedisDB,
			DialTimeout:    cfg.RedisDT,
			ReadTimeout:    cfg.RedisRT,
			WriteTimeout:   cfg.RedisWT,
			PoolSize:       cfg.RedisPoolSize,
			ConnectTimeout: cfg.RedisConnectTimeout,
			RetryInterval:  cfg.RedisRetryInterval,
			MaxWait:        cfg.RedisMaxWait,
			PingTimeout:    cfg.RedisPingTimeout,
			WarnThreshold:  cfg.RedisWarnThreshold,
		}, loggerClient)
		if err != nil {
			loggerClient.Errorf("Failed to connect to Redis: %v", err)
			os.Exit(1)
		}
		loggerClient.Info("Redis initialized successfully")

		store := redisstore.NewStore(redisClient, cfg.LockTTL, cfg.PageCacheTTL)
		locker, pageCache, lockMode = store, store, "redis"
	} else {
		loggerClient.Info("redis not configured, using in-process merge locks")
		locker = lock.NewLocal()
	}

	reconciler := reconcile.New(db, locker, loggerClient, reconcile.WithLockWait(cfg.LockWait))

	analyzer := analyze.NewService(
		analyze.NewFetcher(cfg.FetchTimeout),
		analyze.NewClassifier(cfg.ClassifyTimeout),
		loggerClient,
		analyze.Options{Concurrency: cfg.AnalyzeConcurrency, Cache: pageCache},
	)

	// Create manual refresh trigger channel
	statsTrigger := make(chan struct{}, 1)
	stats := scheduler.NewStatsRefresher(db, loggerClient, cfg.StatsInterval, statsTrigger)

	// Dependencies passed to routes (extend as needed).
	d := deps.Deps{
		Logger:            loggerClient,
		StartTime:         time.Now(),
		Version:           version.Version,
		Commit:            version.Commit,
		BuildDate:         version.BuildDate,
		GoVersion:         version.GoVersion,
		TimeNow:           time.Now,
		AllowedHosts:      cfg.AllowedHosts,
		AllowedCIDRS:      cfg.AllowedCIDRS,
		TrustProxy:        cfg.TrustProxy,
		CORSOrigins:       cfg.CORSOrigins,
		MaxSnapshotSize:   cfg.MaxSnapshotSize,
		MaxBodyBytes:      cfg.MaxBodyBytes,
		MaxAnalyzeURLs:    cfg.MaxAnalyzeURLs,
		RequestTimeout:    cfg.RequestTimeout,
		AnalyzeTimeout:    cfg.AnalyzeTimeout,
		LoginBurst:        cfg.LoginBurst,
		LoginRefillPerMin: cfg.LoginRefillPerMin,
		DB:                db,
		RedisClient:       redisClient,
		LockMode:          lockMode,
		Reconciler:        reconciler,
		Accounts:          accounts,
		Analyzer:          analyzer,
		Stats:             stats,
		StatsTrigger:      statsTrigger,
	}

	server := httpserver.New(cfg, loggerClient, d)

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		server:      server,
		db:          db,
		redisClient: redisClient,
		accounts:    accounts,
		reconciler:  reconciler,
		stats:       stats,
	}
}

// newImporter resolves the account receiving the Homepage import. The
// account must exist; it is never created implicitly.
func (a *App) newImporter(ctx context.Context) (*scheduler.HomepageImporter, error) {
	u, err := a.accounts.Lookup(ctx, a.cfg.HomepageUser)
	if err != nil {
		return nil, fmt.Errorf("homepage import user %q: %w", a.cfg.HomepageUser, err)
	}
	return scheduler.NewHomepageImporter(
		a.reconciler,
		a.cfg.HomepageFile,
		homepage.Kind(a.cfg.HomepageKind),
		u.ID,
		a.logger,
		a.cfg.HomepageInterval,
	), nil
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting marksync v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Info(version.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start stats refresher (first snapshot, then periodic refresh)
	if err := a.stats.Start(ctx); err != nil {
		return fmt.Errorf("failed to start stats refresher: %w", err)
	}
	a.logger.Info("stats refresher started",
		logger.Duration("interval", a.cfg.StatsInterval))

	// Start homepage importer (if a file is configured)
	if a.cfg.HomepageFile != "" {
		importer, err := a.newImporter(ctx)
		if err != nil {
			return fmt.Errorf("failed to configure homepage importer: %w", err)
		}
		if err := importer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start homepage importer: %w", err)
		}
		a.importer = importer
		a.logger.Info("homepage importer started",
			logger.String("file", a.cfg.HomepageFile),
			logger.Duration("interval", a.cfg.HomepageInterval))
	}

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case runErr = <-errCh:
	}

	a.stats.Stop()
	if a.importer != nil {
		a.importer.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("failed to stop server: %w", err))
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warnf("failed to close redis: %v", err)
		} else {
			a.logger.Info("✅ Redis closed cleanly")
		}
	}

	if err := a.db.Close(); err != nil {
		a.logger.Warnf("failed to close database: %v", err)
	} else {
		a.logger.Info("✅ Database closed cleanly")
	}

	if runErr != nil {
		return runErr
	}
	a.logger.Info("✅ marksync stopped cleanly")
	return nil
}
