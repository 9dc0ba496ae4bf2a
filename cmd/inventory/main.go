package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ariefcatur/go-storefront-orders/internal/config"
	"github.com/ariefcatur/go-storefront-orders/internal/inventory"
	kafkax "github.com/ariefcatur/go-storefront-orders/internal/kafka"
	"github.com/ariefcatur/go-storefront-orders/internal/logging"
	"github.com/ariefcatur/go-storefront-orders/internal/postgres"
	"github.com/ariefcatur/go-storefront-orders/internal/redisx"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// reserved, rejected and released events share one producer
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024)
	prod.Start(ctx)

	name := strings.TrimSuffix(cfg.ServiceName, "-api") + "-inventory"
	svc := &inventory.Service{
		Repo:        &inventory.Repo{DB: db},
		Redis:       rdb,
		Events:      prod,
		ServiceName: name,
	}

	topics := inventory.Topics()
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.InventoryGroup, topics, cfg.InventoryWorkers)
	cons.Attempts = cfg.InventoryAttempts
	done := make(chan struct{})
	go func() {
		defer close(done)
		logging.Log(logging.Fields{Service: name, Status: "consuming",
			Message: "group=" + cfg.InventoryGroup + " topics=" + strings.Join(topics, ",")})
		if err := cons.Start(ctx, svc.Handle); err != nil {
			logging.Log(logging.Fields{Service: name, Status: "consumer_exit", Error: err.Error()})
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	logging.Log(logging.Fields{Service: name, Status: "shutting_down"})
	cancel()
	<-done
	prod.Close()
	prod.WaitClosed()
}
