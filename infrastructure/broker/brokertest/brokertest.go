// Package brokertest provides an in-memory queue transport for tests of
// code that announces through a broker.
package brokertest

import (
	"context"
	"sync"
	"time"

	"github.com/hilthontt/letschat/infrastructure/broker"
	"github.com/hilthontt/letschat/infrastructure/logger"
	"github.com/hilthontt/letschat/infrastructure/metrics"
	"github.com/hilthontt/letschat/infrastructure/sqsio"
	"go.opentelemetry.io/otel/trace/noop"
)

// Sent is one recorded send.
type Sent struct {
	QueueURL string
	Envelope sqsio.Envelope
}

// Transport keeps one queue per registered user and records every send.
type Transport struct {
	mu   sync.Mutex
	urls map[string]string
	sent []Sent
}

func NewTransport(userIDs ...string) *Transport {
	t := &Transport{urls: make(map[string]string)}
	for _, id := range userIDs {
		t.AddQueue(id)
	}
	return t
}

// URL is the queue URL the transport assigns to userID.
func URL(userID string) string {
	return "queue://" + userID
}

func (t *Transport) AddQueue(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.urls[userID] = URL(userID)
}

// RemoveQueue drops userID's queue, the way the reaper does.
func (t *Transport) RemoveQueue(_ context.Context, userID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.urls[userID]; !ok {
		return sqsio.ErrQueueNotFound
	}
	delete(t.urls, userID)
	return nil
}

func (t *Transport) GetURL(_ context.Context, userID string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	url, ok := t.urls[userID]
	if !ok {
		return "", sqsio.ErrQueueNotFound
	}
	return url, nil
}

func (t *Transport) ListQueues(context.Context) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	urls := make([]string, 0, len(t.urls))
	for _, url := range t.urls {
		urls = append(urls, url)
	}
	return urls, nil
}

func (t *Transport) Send(_ context.Context, queueURL string, env sqsio.Envelope) sqsio.SendOutcome {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = append(t.sent, Sent{QueueURL: queueURL, Envelope: env})
	return sqsio.SendOutcome{QueueURL: queueURL, MessageID: "m"}
}

// Sent returns a copy of every send so far.
func (t *Transport) Sent() []Sent {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Sent{}, t.sent...)
}

// Events returns the sends of one event name.
func (t *Transport) Events(event string) []Sent {
	var out []Sent
	for _, s := range t.Sent() {
		if s.Envelope.Event == event {
			out = append(out, s)
		}
	}
	return out
}

// NewBroker returns a broker over tr with noop metrics, tracing and logging.
func NewBroker(tr broker.Transport) *broker.Broker {
	return broker.New(tr, broker.Options{WaitTimeout: 5 * time.Second}, metrics.NewNopManager(), noop.NewTracerProvider().Tracer("brokertest"), logger.NewNop())
}
