// Package runtime assembles the stores, services and HTTP server from
// configuration and manages the process lifecycle.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	app "github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/httpapi"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/storage/postgres"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/cache"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/config"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/platform/migrations"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/pkg/logger"
)

const connectTimeout = 5 * time.Second

// Application wires core dependencies and manages the HTTP server lifecycle.
type Application struct {
	cfg        *config.Config
	log        *logger.Logger
	app        *app.Application
	api        *httpapi.API
	httpServer *http.Server
	db         *sqlx.DB
	redis      *cache.Redis

	mu   sync.Mutex
	addr string
}

// NewApplication constructs the application from cfg. Nothing listens until Run.
func NewApplication(cfg *config.Config, log *logger.Logger) (*Application, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = logger.New(cfg.Logging)
	}

	stores, db, redisCache, err := buildStores(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("configure stores: %w", err)
	}
	closeStores := func() {
		if redisCache != nil {
			_ = redisCache.Close()
		}
		if db != nil {
			_ = db.Close()
		}
	}

	application, err := app.New(stores, cfg, log.Named("app"))
	if err != nil {
		closeStores()
		return nil, fmt.Errorf("build application: %w", err)
	}
	api, err := httpapi.NewHandler(application, cfg, log.Named("httpapi"))
	if err != nil {
		closeStores()
		return nil, fmt.Errorf("build http api: %w", err)
	}

	return &Application{
		cfg: cfg,
		log: log,
		app: application,
		api: api,
		httpServer: &http.Server{
			Addr:              cfg.Server.Addr(),
			Handler:           api,
			ReadTimeout:       cfg.Server.ReadTimeout,
			ReadHeaderTimeout: cfg.Server.ReadTimeout,
			WriteTimeout:      cfg.Server.WriteTimeout,
		},
		db:    db,
		redis: redisCache,
	}, nil
}

// App exposes the wired services.
func (a *Application) App() *app.Application {
	return a.app
}

// Addr returns the bound listen address once Run has started listening.
func (a *Application) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.addr
}

// Run starts the services and the HTTP server and blocks until the context
// is cancelled or the server fails.
func (a *Application) Run(ctx context.Context) error {
	if err := a.app.Start(ctx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}
	a.api.StartBackground(ctx)

	ln, err := net.Listen("tcp", a.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.httpServer.Addr, err)
	}
	a.mu.Lock()
	a.addr = ln.Addr().String()
	a.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		a.log.Infof("HTTP server listening on %s", ln.Addr())
		if err := a.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown drains the HTTP server, stops the services and closes the stores.
func (a *Application) Shutdown(ctx context.Context) error {
	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var errs []error
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown http server: %w", err))
	}
	if err := a.app.Stop(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("stop services: %w", err))
	}
	if err := a.api.Close(); err != nil {
		a.log.WithError(err).Warn("error closing audit log")
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.WithError(err).Warn("error closing redis connection")
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.WithError(err).Warn("error closing database connection")
		}
	}
	return errors.Join(errs...)
}

// buildStores selects the persistence and cache backends. The memory driver
// leaves Stores empty so the application falls back to in-process stores.
func buildStores(cfg *config.Config, log *logger.Logger) (app.Stores, *sqlx.DB, *cache.Redis, error) {
	var (
		stores app.Stores
		db     *sqlx.DB
		rc     *cache.Redis
	)

	switch cfg.Database.Driver {
	case "", "memory":
		log.Warn("using in-memory storage; data is lost on restart")
	case "postgres":
		var err error
		db, err = openDatabase(cfg.Database, log)
		if err != nil {
			return app.Stores{}, nil, nil, err
		}
		stores.Store = postgres.New(db)
	default:
		return app.Stores{}, nil, nil, fmt.Errorf("database driver %q not supported", cfg.Database.Driver)
	}

	if cfg.Redis.Addr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		var err error
		rc, err = cache.NewRedis(ctx, cache.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   "revibes:",
		})
		if err != nil {
			if db != nil {
				_ = db.Close()
			}
			return app.Stores{}, nil, nil, err
		}
		stores.Cache = rc
		log.Infof("catalog cache backed by redis at %s", cfg.Redis.Addr)
	}

	return stores, db, rc, nil
}

func openDatabase(cfg config.DatabaseConfig, log *logger.Logger) (*sqlx.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database dsn not configured")
	}
	if cfg.AutoMigrate {
		if err := migrations.Up(cfg.DSN); err != nil {
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		if version, dirty, err := migrations.Version(cfg.DSN); err == nil {
			log.Infof("database schema at version %d (dirty=%v)", version, dirty)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	return postgres.Open(ctx, cfg.DSN, cfg.MaxOpenConns, cfg.MaxIdleConns, cfg.ConnMaxLifetime)
}
