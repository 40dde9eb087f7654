package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/jcmexdev/order-inventory/internal/order-service/adapters/cache"
	"github.com/jcmexdev/order-inventory/internal/order-service/adapters/httpx"
	"github.com/jcmexdev/order-inventory/internal/order-service/adapters/memory"
	"github.com/jcmexdev/order-inventory/internal/order-service/adapters/postgres"
	"github.com/jcmexdev/order-inventory/internal/order-service/adapters/sqlite"
	"github.com/jcmexdev/order-inventory/internal/order-service/app"
	"github.com/jcmexdev/order-inventory/internal/order-service/domain"
	rediscache "github.com/jcmexdev/order-inventory/internal/pkg/cache"
	"github.com/jcmexdev/order-inventory/internal/pkg/config"
	"github.com/jcmexdev/order-inventory/internal/pkg/kafka"
	"github.com/jcmexdev/order-inventory/internal/pkg/metrics"
	"github.com/jcmexdev/order-inventory/internal/pkg/outbox"
	"github.com/jcmexdev/order-inventory/internal/pkg/telemetry"
)

// store is what every storage driver provides.
type store interface {
	domain.CustomerDirectory
	domain.ProductCatalog
	domain.Transactor
	Orders() domain.OrderStore
	Seed(ctx context.Context, customers []domain.Customer, products []domain.Product) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	telemetry.InitLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		shutdown, err := telemetry.SetupTracer(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
		if err != nil {
			slog.Error("failed to initialise tracer", "error", err)
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				slog.Error("tracer shutdown error", "error", err)
			}
		}()
	} else {
		telemetry.SetupPropagation()
	}

	st, source, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to open store", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	if cfg.SeedDemoData {
		customers, products := demoData()
		if err := st.Seed(ctx, customers, products); err != nil {
			slog.Error("failed to seed demo data", "error", err)
			os.Exit(1)
		}
		slog.Info("demo data seeded", "customers", len(customers), "products", len(products))
	}

	var customers domain.CustomerDirectory = st
	if cfg.RedisAddr != "" {
		c := rediscache.NewRedisCache(cfg.RedisAddr, "order")
		if err := rediscache.Ping(ctx, c); err != nil {
			slog.Warn("redis unreachable, customer lookups will bypass the cache", "addr", cfg.RedisAddr, "error", err)
		}
		customers = cache.NewCustomerDirectory(st, c, cfg.CustomerCacheTTL)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svc := app.NewOrderService(customers, st, st.Orders(), st,
		app.WithStoreTimeout(cfg.StoreTimeout),
		app.WithMetrics(metrics.NewOrderMetrics(reg)),
	)

	relayDone := startRelay(ctx, cfg, source)

	handler := httpx.NewHandler(svc)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpx.NewRouter(handler, metrics.NewServerMetrics(reg), metrics.Handler(reg)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("order service HTTP running", "addr", srv.Addr, "driver", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}
	<-relayDone
}

func openStore(ctx context.Context, cfg *config.Config) (store, outbox.Source, func(), error) {
	retryWindow := cfg.StoreTimeout

	switch cfg.StoreDriver {
	case config.DriverSQLite:
		s, err := sqlite.Open(cfg.SQLitePath,
			sqlite.WithEventsTopic(cfg.OrderEventsTopic),
			sqlite.WithRetryWindow(retryWindow),
		)
		if err != nil {
			return nil, nil, nil, err
		}
		return s, s, func() {
			if err := s.Close(); err != nil {
				slog.Error("sqlite close error", "error", err)
			}
		}, nil
	case config.DriverPostgres:
		s, err := postgres.Open(ctx, cfg.DatabaseURL,
			postgres.WithEventsTopic(cfg.OrderEventsTopic),
			postgres.WithRetryWindow(retryWindow),
		)
		if err != nil {
			return nil, nil, nil, err
		}
		return s, s, s.Close, nil
	default:
		return memory.NewStore(), nil, func() {}, nil
	}
}

// startRelay publishes outbox rows to Kafka until ctx is cancelled. The
// returned channel closes once the relay has stopped.
func startRelay(ctx context.Context, cfg *config.Config, source outbox.Source) <-chan struct{} {
	done := make(chan struct{})
	client := kafka.NewClient(cfg.KafkaBrokers)
	if source == nil || !client.Enabled() {
		if client.Enabled() {
			slog.Warn("kafka configured but the store has no outbox", "driver", cfg.StoreDriver)
		}
		close(done)
		return done
	}

	writer := client.NewWriter()
	relay := outbox.NewRelay(source, kafka.NewPublisher(writer), cfg.OutboxPollInterval, 100)
	go func() {
		defer close(done)
		defer func() {
			if err := writer.Close(); err != nil {
				slog.Error("kafka writer close error", "error", err)
			}
		}()
		slog.Info("outbox relay running", "brokers", client.Brokers, "topic", cfg.OrderEventsTopic)
		if err := relay.Run(ctx); err != nil {
			slog.Error("outbox relay stopped", "error", err)
		}
	}()
	return done
}
