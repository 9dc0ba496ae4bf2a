package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/ariefcatur/go-storefront-orders/internal/kafka"
	"github.com/ariefcatur/go-storefront-orders/internal/logging"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/redisx"
)

// Store holds stock reservations per order.
type Store interface {
	Reserved(ctx context.Context, orderID int64, lines int) (bool, error)
	ReserveAll(ctx context.Context, orderID int64, items []orders.Line) (ok bool, short []orders.StockShortage, err error)
	ReleaseAll(ctx context.Context, orderID int64) (released int, err error)
}

const ReasonOutOfStock = "OUT_OF_STOCK"

// Service reserves stock when an order is created and returns it when the
// order is cancelled. An order brought back from CANCELADO reserves again.
// A shortage is reported on order.stock.rejected; the order status is left
// for the operator to change.
type Service struct {
	Repo        Store
	Redis       redis.Cmdable
	Events      orders.Publisher
	ServiceName string
}

// Topics lists what the consumer must subscribe to.
func Topics() []string {
	return []string{orders.TopicOrderCreated, orders.TopicOrderStatusChanged}
}

// Handle is installed as the consumer handler.
func (s *Service) Handle(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		logging.Log(fields(s.ServiceName, 0, "", "bad_envelope", err.Error()))
		return nil
	}
	if env.EventType != orders.EventOrderCreated && env.EventType != orders.EventOrderStatusChanged {
		return nil
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID)
	fresh, err := redisx.Claim(ctx, s.Redis, dkey, redisx.TTLDedup)
	if err != nil {
		return fmt.Errorf("dedup %s: %w", env.EventID, err)
	}
	if !fresh {
		return nil
	}

	start := time.Now()
	switch env.EventType {
	case orders.EventOrderCreated:
		err = s.reserve(ctx, env)
	case orders.EventOrderStatusChanged:
		err = s.statusChanged(ctx, env)
	}
	if err != nil {
		// release the claim so the consumer's retry runs again
		_ = s.Redis.Del(ctx, dkey).Err()
		return err
	}
	f := fields(s.ServiceName, 0, env.EventID, "handled", env.EventType)
	f.DurationMS = time.Since(start).Milliseconds()
	logging.Log(f)
	return nil
}

func (s *Service) reserve(ctx context.Context, env orders.Envelope) error {
	p, err := kafkax.UnwrapPayload[orders.OrderCreatedPayload](env.Payload)
	if err != nil {
		return err
	}
	return s.reserveOrder(ctx, env, p.OrderID, p.Items)
}

func (s *Service) reserveOrder(ctx context.Context, env orders.Envelope, orderID int64, items []orders.Line) error {
	if ok, err := s.Repo.Reserved(ctx, orderID, len(items)); err != nil {
		return err
	} else if ok {
		s.publish(env, orderID, orders.TopicStockReserved, orders.EventStockReserved,
			orders.StockReservedPayload{OrderID: orderID, Items: items})
		return nil
	}

	ok, short, err := s.Repo.ReserveAll(ctx, orderID, items)
	if err != nil {
		return err
	}
	if ok {
		s.publish(env, orderID, orders.TopicStockReserved, orders.EventStockReserved,
			orders.StockReservedPayload{OrderID: orderID, Items: items})
		return nil
	}
	logging.Log(fields(s.ServiceName, orderID, env.EventID, "rejected", fmt.Sprintf("%d line(s) short", len(short))))
	s.publish(env, orderID, orders.TopicStockRejected, orders.EventStockRejected,
		orders.StockRejectedPayload{OrderID: orderID, Reason: ReasonOutOfStock, Details: short})
	return nil
}

func (s *Service) statusChanged(ctx context.Context, env orders.Envelope) error {
	p, err := kafkax.UnwrapPayload[orders.StatusChangedPayload](env.Payload)
	if err != nil {
		return err
	}
	switch {
	case p.To == orders.StatusCancelled && p.From != orders.StatusCancelled:
		return s.release(ctx, env, p.OrderID)
	case p.From == orders.StatusCancelled && p.To != orders.StatusCancelled:
		if len(p.Items) == 0 {
			logging.Log(fields(s.ServiceName, p.OrderID, env.EventID, "skipped", "reopened order without items"))
			return nil
		}
		return s.reserveOrder(ctx, env, p.OrderID, p.Items)
	}
	return nil
}

func (s *Service) release(ctx context.Context, env orders.Envelope, orderID int64) error {
	n, err := s.Repo.ReleaseAll(ctx, orderID)
	if err != nil {
		return err
	}
	if n > 0 {
		s.publish(env, orderID, orders.TopicStockReleased, orders.EventStockReleased,
			orders.StockReleasedPayload{OrderID: orderID})
	}
	return nil
}

func (s *Service) publish(cause orders.Envelope, orderID int64, topic, eventType string, payload any) {
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		TraceID:       cause.TraceID,
		CorrelationID: cause.CorrelationID,
		Payload:       kafkax.MustMarshal(payload),
	}
	s.Events.PublishEvent(topic, orders.PartitionKey(orderID), eventType, kafkax.MustMarshal(ev))
}

func fields(service string, orderID int64, eventID, status, msg string) logging.Fields {
	return logging.Fields{Service: service, OrderID: orderID, EventID: eventID, Status: status, Message: msg}
}
