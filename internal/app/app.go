// Package app assembles the process from a config.Config: storage backend,
// hashing and token policy, services, guard chain and HTTP router.
package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/pasal-api/internal/cache"
	"github.com/iliyamo/pasal-api/internal/config"
	"github.com/iliyamo/pasal-api/internal/database"
	"github.com/iliyamo/pasal-api/internal/handler"
	"github.com/iliyamo/pasal-api/internal/metrics"
	"github.com/iliyamo/pasal-api/internal/middleware"
	"github.com/iliyamo/pasal-api/internal/repository"
	"github.com/iliyamo/pasal-api/internal/repository/memory"
	"github.com/iliyamo/pasal-api/internal/router"
	"github.com/iliyamo/pasal-api/internal/service"
	"github.com/iliyamo/pasal-api/internal/tenant"
	"github.com/iliyamo/pasal-api/internal/utils"
)

// App is a fully wired server.
type App struct {
	Echo     *echo.Echo
	Sessions *service.SessionManager
	Stores   *service.StoreRegistry
	Products *service.ProductService

	db  *sql.DB
	rdb *redis.Client
}

type storage struct {
	users    service.UserStore
	stores   service.StoreStorage
	products service.ProductStorage
	db       *sql.DB
}

func openStorage(ctx context.Context, cfg config.Config) (storage, error) {
	if cfg.Storage == "memory" {
		mem := memory.New()
		return storage{users: mem.Users(), stores: mem.Stores(), products: mem.Products()}, nil
	}
	db, err := database.Open(ctx, database.Options{
		User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
	})
	if err != nil {
		return storage{}, fmt.Errorf("open mysql: %w", err)
	}
	return storage{
		users:    repository.NewUserRepo(db),
		stores:   repository.NewStoreRepo(db),
		products: repository.NewProductRepo(db),
		db:       db,
	}, nil
}

// Build wires every component described by cfg.
func Build(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	st, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	tokens, err := utils.NewTokenService(utils.TokenConfig{
		AccessSecret:  cfg.JWTSecret,
		AccessTTL:     cfg.AccessTTL,
		RefreshSecret: cfg.RefreshSecret,
		RefreshTTL:    cfg.RefreshTTL,
		Issuer:        "pasal",
	})
	if err != nil {
		closeDB(st.db)
		return nil, err
	}
	hasher := utils.NewHasher(utils.Argon2Params{
		Memory:  cfg.Argon2MemoryKiB,
		Time:    cfg.Argon2Time,
		Threads: cfg.Argon2Threads,
	})

	var events service.EventPublisher = service.NoopPublisher{}
	if cfg.EventsEnabled {
		events = service.NewAMQPPublisher(cfg.RabbitMQURL, cfg.EventsQueue)
	}

	metricsOn := true
	if err := metrics.Register(nil); err != nil {
		log.Warn("metrics disabled", zap.Error(err))
		metricsOn = false
	}

	var rdb *redis.Client
	if cfg.Cache.Enabled {
		rdb = config.NewRedisClient(ctx, cfg.Redis, log)
	}

	// Both caches key their entries by tenant version.  Only Redis shares
	// versions between instances; without it a shared database would let
	// one instance serve stores another has already changed.
	var versions cache.Versions = cache.NewLocal()
	tenantTTL := cfg.TenantCacheTTL
	if rdb != nil {
		versions = cache.NewRedis(rdb, cfg.Cache.Prefix)
	} else if st.db != nil && tenantTTL > 0 {
		log.Warn("tenant cache disabled: no redis to share invalidations with other instances")
		tenantTTL = 0
	}

	sessions := service.NewSessionManager(st.users, hasher, tokens, events, log)
	stores := service.NewStoreRegistry(st.stores, st.products, service.StoreRegistryOptions{
		CacheTTL: tenantTTL,
		Versions: versions,
		Events:   events,
		Logger:   log,
	})
	products := service.NewProductService(st.products, versions, log)

	var allow []string
	if cfg.PublicWebURL != "" {
		allow = []string{cfg.PublicWebURL}
	}

	var pinger handler.Pinger
	if st.db != nil {
		pinger = st.db
	}

	e := router.New(router.Deps{
		Logger:       log,
		Guard:        middleware.NewGuard(tokens, sessions),
		Tenants:      tenant.NewResolver(cfg.BaseDomain, cfg.LocalDevSuffix, nil),
		Auth:         handler.NewAuthHandler(sessions, cfg.IsProduction()),
		Stores:       handler.NewStoreHandler(stores),
		Products:     handler.NewProductHandler(products),
		Cache:        middleware.NewRedisCache(cfg.Cache, rdb, versions),
		DB:           pinger,
		Deadline:     cfg.RequestTimeout,
		AllowOrigins: allow,
		Metrics:      metricsOn,
	})

	return &App{
		Echo:     e,
		Sessions: sessions,
		Stores:   stores,
		Products: products,
		db:       st.db,
		rdb:      rdb,
	}, nil
}

// Close releases the database pool and the Redis client.
func (a *App) Close() {
	closeDB(a.db)
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
}

func closeDB(db *sql.DB) {
	if db != nil {
		_ = db.Close()
	}
}
