package kafka

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// Handler returns nil only when the message was processed and its offset may
// be committed.
type Handler func(ctx context.Context, m kafka.Message) error

type reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	r       reader
	workers int
	logf    func(format string, args ...any)

	// Attempts bounds how often one message is handed to the handler before
	// the worker gives up on it; Backoff is the first pause between attempts
	// and doubles up to MaxBackoff.
	Attempts   int
	Backoff    time.Duration
	MaxBackoff time.Duration
}

func NewConsumer(brokers []string, group string, topics []string, workers int) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		GroupTopics:    topics,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	return newConsumer(r, workers)
}

func newConsumer(r reader, workers int) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{
		r:          r,
		workers:    workers,
		logf:       log.Printf,
		Attempts:   5,
		Backoff:    200 * time.Millisecond,
		MaxBackoff: 5 * time.Second,
	}
}

// Start dispatches messages to a worker pool until ctx is cancelled. Messages
// sharing a key always go to the same worker so one order's events are
// handled in order. A failing message is retried in place up to Attempts
// times before its worker moves on.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	jobs := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup
	for i := range jobs {
		jobs[i] = make(chan kafka.Message, 128)
		wg.Add(1)
		go func(in <-chan kafka.Message) {
			defer wg.Done()
			for m := range in {
				if err := c.handle(ctx, h, m); err != nil {
					c.logf("worker error: %v", err)
					continue
				}
				if err := c.r.CommitMessages(ctx, m); err != nil {
					c.logf("commit error: %v", err)
				}
			}
		}(jobs[i])
	}
	stop := func() {
		for _, ch := range jobs {
			close(ch)
		}
		wg.Wait()
	}

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			stop()
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case jobs[shard(m.Key, c.workers)] <- m:
		case <-ctx.Done():
			stop()
			return nil
		}
	}
}

func (c *Consumer) handle(ctx context.Context, h Handler, m kafka.Message) error {
	wait := c.Backoff
	for attempt := 1; ; attempt++ {
		err := h(ctx, m)
		if err == nil {
			return nil
		}
		if attempt >= c.Attempts || ctx.Err() != nil {
			return fmt.Errorf("giving up on %s/%d@%d after %d attempt(s): %w",
				m.Topic, m.Partition, m.Offset, attempt, err)
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
		}
		if wait *= 2; c.MaxBackoff > 0 && wait > c.MaxBackoff {
			wait = c.MaxBackoff
		}
	}
}

func shard(key []byte, n int) int {
	var h uint32 = 2166136261
	for _, b := range key {
		h ^= uint32(b)
		h *= 16777619
	}
	return int(h % uint32(n))
}
