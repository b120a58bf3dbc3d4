package broker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hilthontt/letschat/infrastructure/logger"
	"github.com/hilthontt/letschat/infrastructure/metrics"
	"github.com/hilthontt/letschat/infrastructure/sqsio"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ErrUnicastRoom is returned when a room is requested on a single-user
// target. A unicast has no room sub-target.
var ErrUnicastRoom = errors.New("room targeting is not available on a unicast target")

// Transport is the part of the queue adapter the broker sends through.
type Transport interface {
	GetURL(ctx context.Context, userID string) (string, error)
	ListQueues(ctx context.Context) ([]string, error)
	Send(ctx context.Context, queueURL string, env sqsio.Envelope) sqsio.SendOutcome
}

type Options struct {
	WaitTimeout        time.Duration
	MaxConcurrentSends int
}

// Broker addresses announces to one user's queue, to every queue tagged
// with a room, or to every queue.
type Broker struct {
	transport Transport
	opts      Options
	metrics   metrics.Manager
	tracer    trace.Tracer
	logger    *logger.Logger

	inflight sync.WaitGroup
}

func New(
	transport Transport,
	opts Options,
	metricsManager metrics.Manager,
	tracer trace.Tracer,
	logger *logger.Logger,
) *Broker {
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = 10 * time.Second
	}
	if opts.MaxConcurrentSends <= 0 {
		opts.MaxConcurrentSends = 16
	}
	return &Broker{
		transport: transport,
		opts:      opts,
		metrics:   metricsManager,
		tracer:    tracer,
		logger:    logger,
	}
}

// Target is an addressed destination. Build one with Queue or To.
type Target struct {
	broker  *Broker
	userID  string
	room    string
	unicast bool
}

// Queue addresses the queue of a single user.
func (b *Broker) Queue(userID string) *Target {
	return &Target{broker: b, userID: userID, unicast: true}
}

// To addresses every active queue, tagging envelopes with room.
func (b *Broker) To(room string) *Target {
	return &Target{broker: b, room: room}
}

// To retags a broadcast target. It always fails on a unicast target.
func (t *Target) To(room string) (*Target, error) {
	if t.unicast {
		return nil, ErrUnicastRoom
	}
	return &Target{broker: t.broker, room: room}, nil
}

// Emit announces event to the target. Sends continue after ctx is cancelled.
func (t *Target) Emit(ctx context.Context, event string, payload any) *Completion {
	env := sqsio.Envelope{Event: event, Room: t.room, Payload: payload}
	if t.unicast {
		return t.broker.unicast(ctx, t.userID, env)
	}
	return t.broker.broadcast(ctx, env)
}

// Emit announces event to every active queue without a room tag.
func (b *Broker) Emit(ctx context.Context, event string, payload any) *Completion {
	return b.broadcast(ctx, sqsio.Envelope{Event: event, Payload: payload})
}

func (b *Broker) unicast(ctx context.Context, userID string, env sqsio.Envelope) *Completion {
	c := newCompletion()
	ctx = context.WithoutCancel(ctx)

	b.inflight.Add(1)
	go func() {
		defer b.inflight.Done()
		defer c.finish()

		ctx, span := b.tracer.Start(ctx, "broker.unicast")
		defer span.End()
		span.SetAttributes(attribute.String("event", env.Event), attribute.String("user.id", userID))

		url, err := b.transport.GetURL(ctx, userID)
		if err != nil {
			b.logger.Warn("unicast target has no queue",
				zap.String("event", env.Event),
				zap.String("userID", userID),
				zap.Error(err),
			)
			span.RecordError(err)
			return
		}

		b.metrics.RecordHistogram(ctx, metrics.FanoutRecipients, 1, attribute.String("mode", "unicast"))
		b.transport.Send(ctx, url, env)
	}()
	return c
}

func (b *Broker) broadcast(ctx context.Context, env sqsio.Envelope) *Completion {
	c := newCompletion()
	ctx = context.WithoutCancel(ctx)

	mode := "global"
	if env.Room != "" {
		mode = "room"
	}

	b.inflight.Add(1)
	go func() {
		defer b.inflight.Done()
		defer c.finish()

		ctx, span := b.tracer.Start(ctx, "broker.broadcast")
		defer span.End()
		span.SetAttributes(
			attribute.String("event", env.Event),
			attribute.String("room", env.Room),
			attribute.String("mode", mode),
		)

		urls, err := b.transport.ListQueues(ctx)
		if err != nil {
			b.logger.Error("broadcast could not list queues", zap.String("event", env.Event), zap.Error(err))
			span.RecordError(err)
			return
		}

		span.SetAttributes(attribute.Int("recipients", len(urls)))
		b.metrics.RecordHistogram(ctx, metrics.FanoutRecipients, float64(len(urls)), attribute.String("mode", mode))
		c.add(len(urls))

		p := pool.New().WithMaxGoroutines(b.opts.MaxConcurrentSends)
		for _, url := range urls {
			p.Go(func() {
				defer c.finish()
				b.transport.Send(ctx, url, env)
			})
		}
		p.Wait()
	}()
	return c
}

// Waiter is what request handlers need from the broker: announce, then
// hold the response until the announce is delivered.
type Waiter interface {
	Wait(ctx context.Context, cs ...*Completion) bool
}

// Wait blocks until every completion is done, ctx ends, or the configured
// wait timeout passes. It reports whether everything completed. Only an
// expired wait timeout is counted; the sends keep going in the background
// either way.
func (b *Broker) Wait(ctx context.Context, cs ...*Completion) bool {
	all := All(cs...)
	if _, done := all.Status(); done {
		return true
	}

	start := time.Now()
	timer := time.NewTimer(b.opts.WaitTimeout)
	defer timer.Stop()

	timedOut := false
	select {
	case <-all.Done():
		return true
	case <-timer.C:
		timedOut = true
	case <-ctx.Done():
	}

	pending, _ := all.Status()
	fields := []zap.Field{
		zap.Int("pendingAnnounces", pending),
		zap.Duration("waited", time.Since(start)),
	}
	if !timedOut {
		b.logger.Info("request ended with deliveries still pending", append(fields, zap.Error(ctx.Err()))...)
		return false
	}

	b.metrics.IncrementCounter(ctx, metrics.WaitTimeouts)
	b.logger.Warn("responding with deliveries still pending", fields...)
	return false
}

// Shutdown waits for in-flight announces to finish or ctx to end.
func (b *Broker) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
