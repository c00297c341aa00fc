package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/RaikyD/krusty-orders-service/internal/application"
	"github.com/RaikyD/krusty-orders-service/internal/auth"
	"github.com/RaikyD/krusty-orders-service/internal/catalog"
	"github.com/RaikyD/krusty-orders-service/internal/config"
	"github.com/RaikyD/krusty-orders-service/internal/domain"
	"github.com/RaikyD/krusty-orders-service/internal/identity"
	"github.com/RaikyD/krusty-orders-service/internal/kafka"
	"github.com/RaikyD/krusty-orders-service/internal/logger"
	"github.com/RaikyD/krusty-orders-service/internal/migrate"
	"github.com/RaikyD/krusty-orders-service/internal/presentation"
	"github.com/RaikyD/krusty-orders-service/internal/rabbitmq"
	"github.com/RaikyD/krusty-orders-service/internal/repository"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Init(false)
		logger.Error("config load failed", "err", err)
		os.Exit(1)
	}
	logger.Init(cfg.LOG_DEV)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage
	var store repository.Store
	if cfg.DB_STRING != "" {
		if err := migrate.Up(cfg.DB_STRING); err != nil {
			logger.Error("migrations failed", "err", err)
			os.Exit(1)
		}
		pool, err := pgxpool.New(ctx, cfg.DB_STRING)
		if err != nil {
			logger.Error("pgxpool new failed", "err", err)
			os.Exit(1)
		}
		defer pool.Close()

		if err := pool.Ping(ctx); err != nil {
			logger.Error("db ping failed", "err", err)
			os.Exit(1)
		}
		logger.Info("db connected")
		store = repository.NewOrderRepository(pool)
	} else {
		logger.Warn("DB_STRING is empty, orders are kept in memory")
		store = repository.NewMemoryStore()
	}

	// Menu and identity
	var (
		upstream catalog.Catalog
		ids      identity.Resolver
	)
	if cfg.REDIS_ADDR != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.REDIS_ADDR})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Error("redis ping failed", "addr", cfg.REDIS_ADDR, "err", err)
			os.Exit(1)
		}
		rc := catalog.NewRedisCatalog(rdb, catalog.DefaultMenuKey)
		seedMenu(ctx, rc)
		upstream = rc
		ids = identity.NewRedisResolver(rdb)
	} else {
		upstream = catalog.NewStatic(demoMenu()...)
		ids = identity.NewStatic(staticTokens(cfg.IDENTITY_TOKENS))
	}
	menu := catalog.NewCached(upstream, cfg.CATALOG_TTL)

	// Event sinks
	var producer *kafka.Producer
	if cfg.KAFKA_BROKERS != "" {
		producer = kafka.NewProducer(cfg.KAFKA_BROKERS, cfg.KAFKA_TOPIC)
		defer producer.Close()
	}
	var notifier *rabbitmq.Publisher
	if cfg.RABBITMQ_URL != "" {
		conn, ch, err := rabbitmq.SetupConn(cfg.RABBITMQ_URL)
		if err != nil {
			logger.Error("rabbitmq setup failed", "err", err)
			os.Exit(1)
		}
		defer conn.Close()
		defer ch.Close()
		notifier = rabbitmq.NewPublisher(ch)
	}

	// Wiring
	gate := auth.NewGate()
	kitchen := application.NewKitchenQueue(store, gate, cfg.KITCHEN_POLL_INTERVAL)

	var sinks []application.EventPublisher
	if producer != nil {
		sinks = append(sinks, producer)
	}
	if notifier != nil {
		sinks = append(sinks, notifier)
	}
	sinks = append(sinks, kitchen)

	orders := application.NewOrdersService(store, gate, menu, application.FanOut(sinks...))
	payments := application.NewPaymentsService(store, gate, orders)
	carts := application.NewCartSessions(menu)

	if err := orders.RestoreCache(ctx, 1000); err != nil {
		logger.Warn("restore cache failed", "err", err)
	}

	go kitchen.Run(ctx)

	if cfg.KAFKA_BROKERS != "" {
		if _, err := kafka.StartConsumer(ctx, kitchen, kafka.ConsumerConfig{
			Brokers: cfg.KAFKA_BROKERS,
			Topic:   cfg.KAFKA_TOPIC,
			GroupID: cfg.KAFKA_GROUP_ID,
		}); err != nil {
			logger.Warn("kafka consumer not started", "err", err)
		}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	h := presentation.NewOrdersHandler(orders, payments, kitchen, carts, menu, ids)
	h.Register(r)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTP_PORT,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting http", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server crashed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown failed", "err", err)
	}
}

func staticTokens(tokens []config.StaticToken) map[string]domain.Actor {
	out := make(map[string]domain.Actor, len(tokens))
	for _, t := range tokens {
		out[t.Token] = t.Actor
	}
	return out
}

// seedMenu fills an empty menu hash so a fresh Redis is usable.
func seedMenu(ctx context.Context, rc *catalog.RedisCatalog) {
	items, err := rc.ListItems(ctx)
	if err != nil {
		logger.Warn("menu read failed", "err", err)
		return
	}
	if len(items) > 0 {
		return
	}
	if err := rc.Put(ctx, demoMenu()...); err != nil {
		logger.Warn("menu seed failed", "err", err)
		return
	}
	logger.Info("menu seeded", "items", len(demoMenu()))
}

func demoMenu() []domain.MenuItem {
	return []domain.MenuItem{
		{ID: 1, Name: "Krabby Patty", Price: decimal.RequireFromString("2.99"), Available: true},
		{ID: 2, Name: "Double Krabby Patty", Price: decimal.RequireFromString("3.99"), Available: true},
		{ID: 3, Name: "Kelp Rings", Price: decimal.RequireFromString("1.50"), Available: true},
		{ID: 4, Name: "Coral Bits", Price: decimal.RequireFromString("1.95"), Available: true},
		{ID: 5, Name: "Kelp Shake", Price: decimal.RequireFromString("2.00"), Available: true},
		{ID: 6, Name: "Seafoam Soda", Price: decimal.RequireFromString("1.25"), Available: false},
	}
}
