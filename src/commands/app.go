package commands

import (
	"context"
	"fmt"

	"github.com/patrickmn/go-cache"

	"github.com/username/brokerbridge/src/brokers"
	"github.com/username/brokerbridge/src/config"
	"github.com/username/brokerbridge/src/database"
	"github.com/username/brokerbridge/src/logger"
	"github.com/username/brokerbridge/src/processors"
	"github.com/username/brokerbridge/src/security"
	"github.com/username/brokerbridge/src/services"
)

// app is the wired service graph shared by the commands.
type app struct {
	cfg     *config.AppConfig
	db      *database.DB
	store   *database.HoldingStore
	members *config.MemberMapping

	holdings services.HoldingsService
	imports  services.ImportService
	logins   services.LoginService
}

func newApp(ctx context.Context, cfg *config.AppConfig) (*app, error) {
	members, err := config.LoadMemberMapping(cfg.MemberMappingPath)
	if err != nil {
		return nil, fmt.Errorf("loading member mapping: %w", err)
	}

	sealer, err := security.NewTokenSealer(cfg.TokenSealKey)
	if err != nil {
		return nil, fmt.Errorf("token seal key: %w", err)
	}

	registry, err := brokers.NewRegistryFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("building broker registry: %w", err)
	}

	logger.L.Info("Initializing database...", "driver", cfg.DatabaseDriver)
	db, err := database.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	logger.L.Info("Database initialized successfully.")

	store := database.NewHoldingStore(db)
	holdingsCache := cache.New(cfg.HoldingsCacheTTL, services.CacheCleanupInterval)
	holdings := services.NewHoldingsService(store, holdingsCache, cfg.HoldingsCacheTTL)

	return &app{
		cfg:      cfg,
		db:       db,
		store:    store,
		members:  members,
		holdings: holdings,
		imports: services.NewImportService(store, processors.NewHoldingProcessor(true), cfg.StoreTimeout,
			services.WithCacheInvalidator(holdings)),
		logins: services.NewLoginService(registry, sealer, cfg.LoginSessionTTL, cfg.BrokerSessionTTL),
	}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}
