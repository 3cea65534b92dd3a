package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/egannguyen/go-food-ordering/internal/broadcast"
	"github.com/egannguyen/go-food-ordering/internal/config"
	httpDelivery "github.com/egannguyen/go-food-ordering/internal/delivery/http"
	"github.com/egannguyen/go-food-ordering/internal/delivery/ws"
	"github.com/egannguyen/go-food-ordering/internal/messaging"
	"github.com/egannguyen/go-food-ordering/internal/messaging/kafka"
	"github.com/egannguyen/go-food-ordering/internal/repository"
	"github.com/egannguyen/go-food-ordering/internal/repository/memory"
	"github.com/egannguyen/go-food-ordering/internal/repository/postgres"
	"github.com/egannguyen/go-food-ordering/internal/service"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load config", "err", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid config", "err", err)
		os.Exit(1)
	}

	level, _ := cfg.Server.Level()
	slog.SetLogLoggerLevel(level)
	logger := slog.Default()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// --- Storage ---
	var (
		productRepo repository.ProductRepository
		orderRepo   repository.OrderRepository
	)
	if cfg.Database.URL != "" {
		db, err := postgres.InitDB(cfg.Database.URL)
		if err != nil {
			slog.Error("Failed to init database", "err", err)
			os.Exit(1)
		}
		defer db.Close()
		productRepo = postgres.NewProductRepository(db)
		orderRepo = postgres.NewOrderRepository(db)
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store")
		store := memory.NewStore()
		productRepo = store.Products()
		orderRepo = store.Orders()
	}

	if cfg.Server.SeedProducts {
		if err := productRepo.Seed(ctx, seedMenu()); err != nil {
			slog.Error("Failed to seed products", "err", err)
			os.Exit(1)
		}
	}

	// --- Broadcasting ---
	broadcaster := broadcast.New(logger)
	defer broadcaster.Close()

	var (
		events    broadcast.Publisher = broadcaster
		publisher messaging.Publisher = messaging.Discard{}
	)
	if len(cfg.Kafka.Brokers) > 0 {
		broker := kafka.NewKafkaBroker(cfg.Kafka.Brokers, cfg.Kafka.BatchTimeout)
		defer broker.Close()

		relay := broadcast.NewRelay(broker, broker, broadcaster, cfg.Kafka.ChangeTopic, cfg.Kafka.GroupID, logger)
		go relay.Run(ctx)

		events = relay
		publisher = broker
		slog.Info("🔄 Kafka relay enabled", "kafka", cfg.Kafka.String())
	}

	// --- Services ---
	productSvc := service.NewProductService(productRepo, events)
	orderSvc := service.NewOrderService(orderRepo, productRepo, events, publisher)

	// --- HTTP API ---
	mux := http.NewServeMux()
	httpDelivery.NewHandler(productSvc, orderSvc).RegisterRoutes(mux)
	ws.NewHandler(broadcaster, logger, cfg.Server.PingInterval, cfg.Server.PongWait).RegisterRoutes(mux)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: httpDelivery.EnableCORS(mux),
	}

	go func() {
		slog.Info("🚀 HTTP server starting", "addr", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down...")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "err", err)
	}
}
