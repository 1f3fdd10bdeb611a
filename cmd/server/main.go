package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/table-ordering/internal/config"
	"github.com/iliyamo/table-ordering/internal/database"
	"github.com/iliyamo/table-ordering/internal/handler"
	"github.com/iliyamo/table-ordering/internal/logger"
	"github.com/iliyamo/table-ordering/internal/middleware"
	"github.com/iliyamo/table-ordering/internal/model"
	"github.com/iliyamo/table-ordering/internal/notify"
	"github.com/iliyamo/table-ordering/internal/queue"
	"github.com/iliyamo/table-ordering/internal/repository"
	"github.com/iliyamo/table-ordering/internal/router"
	"github.com/iliyamo/table-ordering/internal/service"
)

func main() {
	cfg := config.Load()
	log := logger.New("table-ordering", cfg.LogLevel)
	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("service_failed", "server stopped with error", err)
		os.Exit(1)
	}
	log.Info("service_stopped", "server stopped gracefully")
}

func run(ctx context.Context, cfg config.Config, log *logger.Logger) error {
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.RunMigrations(ctx, db, log); err != nil {
		return err
	}

	users := repository.NewUserRepo(db)
	if err := ensureAdmin(ctx, cfg, users, log); err != nil {
		return err
	}

	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb == nil {
		log.Warn("redis_unavailable", "running without menu cache, rate limiting and shared staff calls")
	} else {
		defer rdb.Close()
	}

	ncfg := config.LoadNotifyConfig()
	hub := notify.NewHub(cfg.InstanceID,
		notify.WithDefaultBuffer(ncfg.Buffer),
		notify.WithReorderWait(ncfg.ReorderWait),
		notify.WithLogger(log),
	)
	defer hub.Close()

	var calls *notify.RedisCalls
	if ncfg.StaffCallsViaRedis {
		calls = notify.NewRedisCalls(hub, rdb, log)
	} else {
		calls = notify.NewRedisCalls(hub, nil, log)
	}
	go func() {
		if err := calls.Run(ctx); err != nil {
			log.Error("staff_call.subscribe", "staff call relay stopped", err)
		}
	}()

	if ncfg.BrokerEnabled {
		pub := queue.NewPublisher(ncfg.AMQPURL, ncfg.Exchange, log)
		defer pub.Close()
		unforward, err := pub.Forward(hub)
		if err != nil {
			return err
		}
		defer unforward()
		relay := queue.NewRelay(ncfg.AMQPURL, ncfg.Exchange, hub, log)
		go func() { _ = relay.Run(ctx) }()
	}

	store := repository.NewStore(db, cfg.LockWait)
	coord := service.NewTableCoordinator(store, hub)
	manager := service.NewOrderManager(store, coord, hub)
	go sweepPaidOrders(ctx, manager, cfg.PaidRetention, log)

	tables := repository.NewTableRepo(db)
	catalog := repository.NewCatalogRepo(db)
	orders := repository.NewOrderRepo(db)
	settings := repository.NewSettingsRepo(db)

	cacheCfg := config.LoadCacheConfig()
	purge := func(ctx context.Context) error { return middleware.PurgeCache(ctx, rdb, cacheCfg.Prefix) }

	stream := handler.NewStreamHandler(hub, ncfg.CoalesceWindow, log)
	customerH := handler.NewCustomerHandler(tables, catalog, orders, settings, coord, manager, calls)
	ordersH := handler.NewOrderAdminHandler(orders, repository.NewStatsRepo(db), coord, manager, cfg.PaidRetention)
	catalogH := handler.NewCatalogHandler(tables, catalog, settings, purge)
	authH := handler.NewAuthHandler(cfg, users, repository.NewTokenRepo(db))

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())

	router.RegisterRoutes(e, db)
	router.RegisterAuth(e, authH, cfg.JWTSecret)
	router.RegisterCustomer(e, customerH, stream, router.Customer{
		MenuCache: middleware.NewRedisCache(cacheCfg, rdb, log),
		Limiter:   middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log),
	})
	router.RegisterStaff(e, ordersH, stream, cfg.JWTSecret)
	router.RegisterAdmin(e, ordersH, catalogH, authH, cfg.JWTSecret)

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		log.Info("service_started", "listening", "addr", addr, "env", cfg.Env, "instance", cfg.InstanceID)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("graceful_shutdown", "received shutdown signal")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// ensureAdmin creates the first admin account from ADMIN_EMAIL and
// ADMIN_PASSWORD when the staff table is empty.
func ensureAdmin(ctx context.Context, cfg config.Config, users *repository.UserRepo, log *logger.Logger) error {
	n, err := users.Count(ctx)
	if err != nil || n > 0 {
		return err
	}
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		log.Warn("seed_admin", "no staff accounts and ADMIN_EMAIL/ADMIN_PASSWORD unset; nobody can sign in")
		return nil
	}
	id, err := users.Create(ctx, cfg.AdminEmail, cfg.AdminPassword, model.RoleAdmin, cfg.BcryptCost)
	if err != nil {
		return err
	}
	log.Info("seed_admin", "created initial admin", "user_id", id)
	return nil
}

// sweepPaidOrders deletes paid orders past retention once a day.
func sweepPaidOrders(ctx context.Context, m *service.OrderManager, retention time.Duration, log *logger.Logger) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		orders, items, err := m.CleanupPaid(ctx, retention)
		if err != nil {
			log.Error("cleanup", "paid order cleanup failed", err)
			continue
		}
		log.Info("cleanup", "removed paid orders", "orders", orders, "items", items)
	}
}
