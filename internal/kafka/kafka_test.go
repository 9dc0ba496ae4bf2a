package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	fail   error
	closed bool
}

func (w *memWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail != nil {
		return w.fail
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *memWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func TestProducerFlushesOnClose(t *testing.T) {
	w := &memWriter{}
	p := newProducer(w, 8)
	p.Start(context.Background())

	p.PublishEvent("order.created", []byte("7"), "OrderCreated", []byte(`{}`))
	p.Publish("order.status.changed", []byte("7"), []byte(`{}`))
	p.Close()
	p.WaitClosed()

	require.Len(t, w.msgs, 2)
	assert.True(t, w.closed)
	assert.Equal(t, "order.created", w.msgs[0].Topic)
	assert.Equal(t, "OrderCreated", Header(w.msgs[0], HeaderEventType))
	assert.Equal(t, "1", Header(w.msgs[0], HeaderEventVersion))
	assert.Equal(t, "order.status.changed", w.msgs[1].Topic)
	assert.Empty(t, Header(w.msgs[1], HeaderEventType))
}

func TestProducerLogsWriteErrors(t *testing.T) {
	w := &memWriter{fail: errors.New("broker down")}
	p := newProducer(w, 1)
	var logged []string
	p.logf = func(format string, args ...any) { logged = append(logged, format) }
	p.Start(context.Background())
	p.Publish("t", nil, []byte("x"))
	p.Close()
	p.WaitClosed()
	assert.Len(t, logged, 1)
}

type chanReader struct {
	in        chan kafka.Message
	mu        sync.Mutex
	committed []kafka.Message
}

func (r *chanReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.in:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *chanReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *chanReader) Close() error { return nil }

func (r *chanReader) commits() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.committed)
}

func TestConsumerCommitsOnlyHandledMessages(t *testing.T) {
	r := &chanReader{in: make(chan kafka.Message, 4)}
	c := newConsumer(r, 2)
	c.logf = func(string, ...any) {}
	c.Attempts = 1

	r.in <- kafka.Message{Key: []byte("1"), Value: []byte("ok")}
	r.in <- kafka.Message{Key: []byte("2"), Value: []byte("bad")}
	r.in <- kafka.Message{Key: []byte("1"), Value: []byte("ok")}

	ctx, cancel := context.WithCancel(context.Background())
	var (
		mu   sync.Mutex
		seen int
	)
	done := make(chan error, 1)
	go func() {
		done <- c.Start(ctx, func(_ context.Context, m kafka.Message) error {
			mu.Lock()
			seen++
			mu.Unlock()
			if string(m.Value) == "bad" {
				return errors.New("boom")
			}
			return nil
		})
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return seen == 3
	}, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, 2, r.commits())
}

func TestConsumerRetriesBeforeMovingOn(t *testing.T) {
	r := &chanReader{in: make(chan kafka.Message, 4)}
	c := newConsumer(r, 2)
	c.Attempts = 3
	c.Backoff = time.Millisecond
	var (
		mu     sync.Mutex
		calls  = map[string]int{}
		logged []string
	)
	c.logf = func(format string, args ...any) {
		mu.Lock()
		logged = append(logged, fmt.Sprintf(format, args...))
		mu.Unlock()
	}

	r.in <- kafka.Message{Key: []byte("5"), Value: []byte("flaky"), Offset: 10}
	r.in <- kafka.Message{Key: []byte("7"), Value: []byte("broken"), Offset: 11}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.Start(ctx, func(_ context.Context, m kafka.Message) error {
			mu.Lock()
			defer mu.Unlock()
			v := string(m.Value)
			calls[v]++
			if v == "broken" || calls[v] < 3 {
				return errors.New("deadlock detected")
			}
			return nil
		})
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls["flaky"] == 3 && calls["broken"] == 3
	}, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(logged) == 1
	}, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	require.Equal(t, 1, r.commits())
	assert.Equal(t, int64(10), r.committed[0].Offset)
	assert.Contains(t, logged[0], "after 3 attempt(s)")
	assert.Contains(t, logged[0], "@11")
}

func TestShardIsStablePerKey(t *testing.T) {
	for _, k := range []string{"1", "42", "order-9"} {
		assert.Equal(t, shard([]byte(k), 8), shard([]byte(k), 8))
		assert.Less(t, shard([]byte(k), 8), 8)
	}
	assert.Equal(t, 0, shard([]byte("x"), 1))
}
