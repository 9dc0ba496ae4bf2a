package kafka

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

// Producer buffers messages and writes them from a single goroutine. The
// writer has no fixed topic; every message names its own.
type Producer struct {
	w       writer
	inbox   chan kafka.Message
	closeCh chan struct{}
	logf    func(format string, args ...any)
}

type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

func NewProducer(brokers []string, buf int) *Producer {
	return newProducer(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}, buf)
}

func newProducer(w writer, buf int) *Producer {
	if buf <= 0 {
		buf = 1
	}
	return &Producer{
		w:       w,
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
		logf:    log.Printf,
	}
}

// Start runs the write loop until Close is called. Pending messages are
// flushed before the writer closes.
func (p *Producer) Start(ctx context.Context) {
	go func() {
		defer close(p.closeCh)
		for m := range p.inbox {
			p.write(m)
		}
		if err := p.w.Close(); err != nil {
			p.logf("kafka writer close: %v", err)
		}
	}()
}

func (p *Producer) write(m kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.w.WriteMessages(ctx, m); err != nil {
		p.logf("kafka publish topic=%s key=%s: %v", m.Topic, m.Key, err)
	}
}

func (p *Producer) Publish(topic string, key, value []byte, headers ...kafka.Header) {
	p.inbox <- kafka.Message{
		Topic:   topic,
		Key:     key,
		Value:   value,
		Time:    time.Now(),
		Headers: headers,
	}
}

// PublishEvent publishes an envelope with the x-event-type and
// x-event-version headers.
func (p *Producer) PublishEvent(topic string, key []byte, eventType string, value []byte) {
	p.Publish(topic, key, value, EventHeaders(eventType, 1)...)
}

func EventHeaders(eventType string, version int) []kafka.Header {
	return []kafka.Header{
		{Key: HeaderEventType, Value: []byte(eventType)},
		{Key: HeaderEventVersion, Value: []byte(strconv.Itoa(version))},
	}
}

const (
	HeaderEventType    = "x-event-type"
	HeaderEventVersion = "x-event-version"
)

// Close stops accepting messages; the loop flushes what is queued and exits.
func (p *Producer) Close() { close(p.inbox) }

// WaitClosed blocks until the write loop has exited.
func (p *Producer) WaitClosed() { <-p.closeCh }
