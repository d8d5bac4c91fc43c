package app

import (
	"context"
	"fmt"

	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/services/dropoff"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/services/exchange"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/services/logistics"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/services/maintenance"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/services/missions"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/services/points"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/services/users"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/services/vouchers"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/storage"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/storage/memory"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/system"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/cache"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/config"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/pkg/logger"
)

// Stores encapsulates persistence dependencies. A nil Store defaults to the
// in-memory implementation and a nil Cache to the in-process cache.
type Stores struct {
	Store storage.Store
	Cache cache.Cache
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Users       *users.Service
	Points      *points.Service
	Logistics   *logistics.Service
	DropPoints  *dropoff.Service
	Missions    *missions.Service
	Vouchers    *vouchers.Service
	Exchange    *exchange.Service
	Maintenance *maintenance.Scheduler
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, cfg *config.Config, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if stores.Store == nil {
		stores.Store = memory.New()
	}
	if stores.Cache == nil {
		stores.Cache = cache.NewMemory()
	}
	ttl := cfg.Redis.CacheTTL

	manager := system.NewManager()

	userService := users.New(stores.Store, log.Named("users"))
	ledger := points.New(stores.Store, log.Named("points"))
	dropService := dropoff.New(stores.Store, stores.Cache, ttl, log.Named("dropoff"))
	missionService := missions.New(stores.Store, ledger, stores.Cache, ttl, log.Named("missions"))
	voucherService := vouchers.New(stores.Store, ledger, missionService, cfg.Rewards.VoucherClaimValidDays, log.Named("vouchers"))
	logisticsService := logistics.New(stores.Store, ledger, missionService, log.Named("logistics"))
	exchangeService := exchange.New(stores.Store, ledger, voucherService, missionService, log.Named("exchange"))
	sweeper := maintenance.New(cfg.Scheduler, cfg.Rewards.ExchangePendingTTL, voucherService, exchangeService, missionService, log.Named("maintenance"))

	for _, name := range []string{"users", "points", "logistics", "dropoff", "missions", "vouchers", "exchange"} {
		if err := manager.Register(system.NoopService{ServiceName: name}); err != nil {
			return nil, fmt.Errorf("register %s service: %w", name, err)
		}
	}
	if cfg.Scheduler.Enabled {
		if err := manager.Register(sweeper); err != nil {
			return nil, fmt.Errorf("register %s: %w", sweeper.Name(), err)
		}
	} else {
		log.Warn("scheduler disabled; maintenance sweeps only run on demand")
	}

	return &Application{
		manager:     manager,
		log:         log,
		Users:       userService,
		Points:      ledger,
		Logistics:   logisticsService,
		DropPoints:  dropService,
		Missions:    missionService,
		Vouchers:    voucherService,
		Exchange:    exchangeService,
		Maintenance: sweeper,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	a.log.Infof("starting services: %v", a.manager.Services())
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
