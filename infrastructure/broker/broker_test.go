package broker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hilthontt/letschat/domain/model"
	"github.com/hilthontt/letschat/infrastructure/logger"
	"github.com/hilthontt/letschat/infrastructure/metrics"
	"github.com/hilthontt/letschat/infrastructure/sqsio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type sent struct {
	url string
	env sqsio.Envelope
}

type fakeTransport struct {
	mu      sync.Mutex
	urls    map[string]string
	queues  []string
	listErr error
	sent    []sent
	// gate, when set, blocks every Send until it is closed.
	gate chan struct{}
	fail map[string]bool
}

func (f *fakeTransport) GetURL(_ context.Context, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	url, ok := f.urls[userID]
	if !ok {
		return "", sqsio.ErrQueueNotFound
	}
	return url, nil
}

func (f *fakeTransport) ListQueues(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]string{}, f.queues...), nil
}

func (f *fakeTransport) Send(_ context.Context, url string, env sqsio.Envelope) sqsio.SendOutcome {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{url: url, env: env})
	if f.fail[url] {
		return sqsio.SendOutcome{QueueURL: url, Err: errors.New("boom")}
	}
	return sqsio.SendOutcome{QueueURL: url, MessageID: "m"}
}

func (f *fakeTransport) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func newTestBroker(tr Transport, timeout time.Duration) *Broker {
	return New(tr, Options{WaitTimeout: timeout, MaxConcurrentSends: 2}, metrics.NewNopManager(), noop.NewTracerProvider().Tracer("test"), logger.NewNop())
}

func TestBroadcastCompletesOnlyAfterEverySend(t *testing.T) {
	tr := &fakeTransport{
		queues: []string{"q1", "q2", "q3", "q4"},
		gate:   make(chan struct{}),
		fail:   map[string]bool{"q2": true},
	}
	b := newTestBroker(tr, time.Second)

	c := b.Emit(context.Background(), model.EventUsersUpdate, map[string]string{"id": "u1"})

	time.Sleep(20 * time.Millisecond)
	_, done := c.Status()
	assert.False(t, done)

	close(tr.gate)
	require.True(t, b.Wait(context.Background(), c))
	assert.Equal(t, 4, tr.sentCount())

	pending, done := c.Status()
	assert.True(t, done)
	assert.Zero(t, pending)
}

func TestUnicastToRoomAlwaysFails(t *testing.T) {
	tr := &fakeTransport{urls: map[string]string{"u1": "q1"}}
	b := newTestBroker(tr, time.Second)

	target, err := b.Queue("u1").To("r1")
	assert.Nil(t, target)
	assert.ErrorIs(t, err, ErrUnicastRoom)
	assert.Zero(t, tr.sentCount())
}

func TestWaitNilReturnsImmediately(t *testing.T) {
	b := newTestBroker(&fakeTransport{}, time.Hour)

	start := time.Now()
	assert.True(t, b.Wait(context.Background(), nil))
	assert.True(t, b.Wait(context.Background()))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestBroadcastWithNoQueues(t *testing.T) {
	tr := &fakeTransport{}
	b := newTestBroker(tr, time.Second)

	c := b.To("r1").Emit(context.Background(), model.EventMessagesNew, nil)

	require.True(t, b.Wait(context.Background(), c))
	assert.Zero(t, tr.sentCount())
}

func TestBroadcastListFailureStillCompletes(t *testing.T) {
	tr := &fakeTransport{listErr: errors.New("throttled")}
	b := newTestBroker(tr, time.Second)

	c := b.Emit(context.Background(), model.EventRoomsNew, nil)
	assert.True(t, b.Wait(context.Background(), c))
	assert.Zero(t, tr.sentCount())
}

func TestRoomBroadcastTagsEveryQueue(t *testing.T) {
	tr := &fakeTransport{queues: []string{"letschat_a", "letschat_b"}}
	b := newTestBroker(tr, time.Second)

	payload := model.PresenceUser{ID: "ua", Username: "alice", Room: "R"}
	c := b.To("R").Emit(context.Background(), model.EventUsersJoin, payload)
	require.True(t, b.Wait(context.Background(), c))

	require.Len(t, tr.sent, 2)
	urls := []string{}
	for _, s := range tr.sent {
		urls = append(urls, s.url)
		assert.Equal(t, sqsio.Envelope{Event: model.EventUsersJoin, Room: "R", Payload: payload}, s.env)
	}
	assert.ElementsMatch(t, []string{"letschat_a", "letschat_b"}, urls)
}

func TestRetargetBroadcast(t *testing.T) {
	tr := &fakeTransport{queues: []string{"q1"}}
	b := newTestBroker(tr, time.Second)

	target, err := b.To("r1").To("r2")
	require.NoError(t, err)
	require.True(t, b.Wait(context.Background(), target.Emit(context.Background(), model.EventMessagesNew, 1)))
	assert.Equal(t, "r2", tr.sent[0].env.Room)
}

func TestUnicastSendsToOneQueue(t *testing.T) {
	tr := &fakeTransport{urls: map[string]string{"u1": "q1"}, queues: []string{"q1", "q2"}}
	b := newTestBroker(tr, time.Second)

	c := b.Queue("u1").Emit(context.Background(), model.EventUsersJoin, "x")
	require.True(t, b.Wait(context.Background(), c))

	require.Len(t, tr.sent, 1)
	assert.Equal(t, "q1", tr.sent[0].url)
	assert.Empty(t, tr.sent[0].env.Room)
}

func TestUnicastMissingQueueCompletes(t *testing.T) {
	tr := &fakeTransport{}
	b := newTestBroker(tr, time.Second)

	c := b.Queue("ghost").Emit(context.Background(), model.EventUsersJoin, "x")
	assert.True(t, b.Wait(context.Background(), c))
	assert.Zero(t, tr.sentCount())
}

func TestWaitTimesOutAndSendsContinue(t *testing.T) {
	tr := &fakeTransport{queues: []string{"q1"}, gate: make(chan struct{})}
	b := newTestBroker(tr, 20*time.Millisecond)

	c := b.Emit(context.Background(), model.EventUsersUpdate, nil)
	assert.False(t, b.Wait(context.Background(), c))

	close(tr.gate)
	<-c.Done()
	assert.Equal(t, 1, tr.sentCount())
}

type countingMetrics struct {
	metrics.Manager

	mu     sync.Mutex
	counts map[string]int
}

func (m *countingMetrics) IncrementCounter(_ context.Context, name string, _ ...attribute.KeyValue) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = make(map[string]int)
	}
	m.counts[name]++
}

func (m *countingMetrics) count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[name]
}

func TestWaitCountsOnlyExpiredTimeouts(t *testing.T) {
	tr := &fakeTransport{queues: []string{"q1"}, gate: make(chan struct{})}
	defer close(tr.gate)
	m := &countingMetrics{Manager: metrics.NewNopManager()}
	core, logs := observer.New(zap.InfoLevel)
	b := New(tr, Options{WaitTimeout: time.Hour}, m, noop.NewTracerProvider().Tracer("test"), &logger.Logger{Log: zap.New(core)})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	c := b.Emit(context.Background(), model.EventUsersUpdate, nil)
	assert.False(t, b.Wait(ctx, c))
	assert.Zero(t, m.count(metrics.WaitTimeouts))

	ended := logs.FilterMessage("request ended with deliveries still pending").All()
	require.Len(t, ended, 1)
	waited, ok := ended[0].ContextMap()["waited"].(time.Duration)
	require.True(t, ok)
	assert.Less(t, waited, time.Minute)

	b.opts.WaitTimeout = 10 * time.Millisecond
	assert.False(t, b.Wait(context.Background(), c))
	assert.Equal(t, 1, m.count(metrics.WaitTimeouts))
	assert.Equal(t, 1, logs.FilterMessage("responding with deliveries still pending").Len())
}

func TestSendsOutliveRequestContext(t *testing.T) {
	tr := &fakeTransport{queues: []string{"q1", "q2"}}
	b := newTestBroker(tr, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	c := b.Emit(ctx, model.EventUsersUpdate, nil)
	cancel()

	<-c.Done()
	assert.Equal(t, 2, tr.sentCount())
}

func TestShutdownWaitsForInflight(t *testing.T) {
	tr := &fakeTransport{queues: []string{"q1"}, gate: make(chan struct{})}
	b := newTestBroker(tr, time.Second)
	b.Emit(context.Background(), model.EventUsersUpdate, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, b.Shutdown(ctx), context.DeadlineExceeded)

	close(tr.gate)
	require.NoError(t, b.Shutdown(context.Background()))
	assert.Equal(t, 1, tr.sentCount())
}
