package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-storefront-orders/internal/cart"
	"github.com/ariefcatur/go-storefront-orders/internal/catalog"
	"github.com/ariefcatur/go-storefront-orders/internal/checkout"
	"github.com/ariefcatur/go-storefront-orders/internal/config"
	"github.com/ariefcatur/go-storefront-orders/internal/httpx"
	kafkax "github.com/ariefcatur/go-storefront-orders/internal/kafka"
	"github.com/ariefcatur/go-storefront-orders/internal/logging"
	"github.com/ariefcatur/go-storefront-orders/internal/metrics"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/postgres"
	"github.com/ariefcatur/go-storefront-orders/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// prices go out as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024)
	prod.Start(ctx)

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	serverMetrics := metrics.NewServerMetrics(reg, "api")
	orderMetrics := metrics.NewOrders(reg)

	logf := logging.Printf(cfg.ServiceName)
	products := &catalog.Repo{DB: db}
	svc := &orders.Service{
		Repo:      &orders.Repo{DB: db},
		Catalog:   products,
		Replays:   &redisx.ReplayIndex{Client: rdb},
		Events:    prod,
		Cache:     &redisx.StatusCache{Client: rdb},
		Lifecycle: orders.Lifecycle{Policy: orders.ParsePolicy(cfg.OrderStatusPolicy), Logf: logf},
		Metrics:   orderMetrics,
		Producer:  cfg.ServiceName,
	}

	api := &httpx.API{
		Catalog: products,
		Orders:  svc,
		Carts: func(ctx context.Context, session string) *cart.Store {
			return cart.Open(ctx, redisx.NewCartStorage(rdb, session, cfg.CartTTL),
				cart.WithLogf(logf), cart.WithPersistHook(orderMetrics.CartPersisted))
		},
		Checkout: &checkout.Service{Orders: svc, Phone: cfg.HandoffPhone},
		Drafts:   httpx.NewDraftStore(12 * time.Hour),
		Timeout:  cfg.RequestTimeout,
	}
	router := httpx.NewRouter(serverMetrics, reg)
	api.Register(router)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logging.Log(logging.Fields{Service: cfg.ServiceName, Status: "listening", Message: cfg.HTTPAddr})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logging.Log(logging.Fields{Service: cfg.ServiceName, Status: "shutting_down"})

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close() // flush queued events and close the writer
	prod.WaitClosed()
}
