package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/Ugender2729/F1-Mart-sub001/internal/cache"
	"github.com/Ugender2729/F1-Mart-sub001/internal/config"
	"github.com/Ugender2729/F1-Mart-sub001/internal/consumer"
	"github.com/Ugender2729/F1-Mart-sub001/internal/coupon"
	"github.com/Ugender2729/F1-Mart-sub001/internal/delivery"
	h "github.com/Ugender2729/F1-Mart-sub001/internal/http"
	"github.com/Ugender2729/F1-Mart-sub001/internal/logger"
	"github.com/Ugender2729/F1-Mart-sub001/internal/publisher"
	"github.com/Ugender2729/F1-Mart-sub001/internal/repository"
	"github.com/Ugender2729/F1-Mart-sub001/internal/service"
	"github.com/Ugender2729/F1-Mart-sub001/internal/verification"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the checkout HTTP API and background workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}
}

// verificationBackend is what the memory and PostgreSQL stores both provide.
type verificationBackend interface {
	verification.Store
	repository.OutboxRepository
	Close() error
}

func postgresCredentials(cfg *config.Config) *repository.Credentials {
	return &repository.Credentials{
		Host:              cfg.Postgres.Host,
		Port:              cfg.Postgres.Port,
		User:              cfg.Postgres.User,
		Password:          cfg.Postgres.Password,
		DBName:            cfg.Postgres.DBName,
		MigrationsDirPath: cfg.Postgres.MigrationsDir,
	}
}

func mongoSettings(cfg *config.Config) repository.MongoSettings {
	return repository.MongoSettings{
		URI:                    cfg.Mongo.URI,
		Database:               cfg.Mongo.Database,
		ConnectTimeout:         cfg.Mongo.ConnectTimeout,
		ServerSelectionTimeout: cfg.Mongo.ServerSelectionTimeout,
		MaxPoolSize:            cfg.Mongo.MaxPoolSize,
		MinPoolSize:            cfg.Mongo.MinPoolSize,
	}
}

func openVerificationBackend(cfg *config.Config) (verificationBackend, error) {
	if cfg.Storage.Backend != config.BackendPostgres {
		return repository.NewMemoryStore(), nil
	}
	creds := postgresCredentials(cfg)
	repo, err := repository.NewRepository(creds)
	if err != nil {
		return nil, err
	}
	if err := repo.RunMigrations(creds); err != nil {
		repo.Close()
		return nil, err
	}
	return repo, nil
}

func openSlots(ctx context.Context, cfg *config.Config, log *slog.Logger) (repository.SlotRepository, func(), error) {
	if cfg.Mongo.URI == "" {
		log.Info("cart slots kept in memory")
		return repository.NewMemorySlots(), func() {}, nil
	}
	db, err := repository.ConnectMongoDB(ctx, mongoSettings(cfg))
	if err != nil {
		return nil, nil, err
	}
	slots := repository.NewMongoRepository(db)
	if err := slots.CreateIndexes(ctx); err != nil {
		log.Warn("failed to create cart slot indexes", "error", err)
	}
	closeFn := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.Client().Disconnect(ctx); err != nil {
			log.Error("mongo disconnect failed", "error", err)
		}
	}
	return slots, closeFn, nil
}

func openCache(ctx context.Context, cfg *config.Config, log *slog.Logger) (cache.SlotCache, func()) {
	if cfg.Redis.Addr == "" {
		return cache.NoopCache{}, func() {}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		// carts still work from the durable slot
		log.Warn("redis unreachable, cart cache disabled", "addr", cfg.Redis.Addr, "error", err)
		client.Close()
		return cache.NoopCache{}, func() {}
	}
	return cache.NewRedisCache(client, cfg.Redis.TTL), func() { client.Close() }
}

func newResolver(cfg *config.Config, log *slog.Logger) coupon.Resolver {
	if cfg.Coupons.BaseURL != "" {
		return coupon.NewHTTPClient(cfg.CouponClient(), log)
	}
	return coupon.NewStaticResolver(cfg.StaticCoupons(time.Now()), cfg.Coupons.FirstOrderCode)
}

// app is everything serve runs, built from config.
type app struct {
	router    http.Handler
	carts     *service.CartService
	workflow  *verification.Workflow
	scheduler *verification.Scheduler
	store     verificationBackend
	closers   []func()
}

func newApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (*app, error) {
	store, err := openVerificationBackend(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open verification store: %w", err)
	}
	a := &app{store: store}
	a.closers = append(a.closers, func() { store.Close() })

	slots, closeSlots, err := openSlots(ctx, cfg, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open cart slots: %w", err)
	}
	a.closers = append(a.closers, closeSlots)

	slotCache, closeCache := openCache(ctx, cfg, log)
	a.closers = append(a.closers, closeCache)

	a.carts = service.NewCartService(slots, slotCache, log)
	a.carts.SetSessionIdleTimeout(cfg.Storage.SessionIdleTimeout)
	checkout := service.NewCheckoutService(a.carts, delivery.NewAcquirer(cfg.Location.Timeout),
		cfg.DeliveryRecord(), cfg.PricingEngine(), newResolver(cfg, log), log)

	a.workflow = verification.NewWorkflow(store,
		verification.WithWindow(cfg.Verification.WindowSeconds),
		verification.WithLogger(log))
	a.scheduler = verification.NewScheduler(a.workflow, cfg.Verification.RecoveryTick)

	a.router = h.NewRouter(h.Handlers{
		Cart:         h.NewCartHandler(a.carts, cfg.Server.RequestTimeout, log),
		Checkout:     h.NewCheckoutHandler(checkout, cfg.Server.RequestTimeout, log),
		Verification: h.NewVerificationHandler(a.workflow, cfg.Server.RequestTimeout, log),
	}, h.RouterConfig{
		RequestTimeout: cfg.Server.RequestTimeout,
		RateLimit:      cfg.Server.RateLimit,
		RateBurst:      cfg.Server.RateBurst,
	}, log)
	return a, nil
}

// Close releases backends in reverse order of opening.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func serve(cfg *config.Config) error {
	log := logger.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	var wg sync.WaitGroup
	run := func(fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(ctx)
		}()
	}

	run(a.scheduler.Run)
	run(func(ctx context.Context) { a.carts.RunFlusher(ctx, cfg.Storage.FlushInterval) })

	if len(cfg.Kafka.Brokers) > 0 {
		poller := publisher.NewOutboxPoller(a.store, log, cfg.Kafka.Brokers...)
		defer poller.Close()
		run(poller.Run)

		delivered := consumer.NewDeliveredConsumer(a.workflow, log, cfg.Kafka.Brokers...)
		defer delivered.Close()
		run(delivered.Run)
	} else {
		log.Info("kafka brokers not configured, deliveries arrive via POST /api/v1/orders/{order_id}/delivered")
	}

	srv := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      a.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.Server.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("checkout API starting", "addr", srv.Addr, "storage", cfg.Storage.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		log.Error("server error", "error", err)
	}

	log.Info("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	cancel()
	wg.Wait()
	log.Info("server exited")
	return nil
}
