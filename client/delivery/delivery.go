// Package delivery polls a user's own queue with temporary credentials and
// hands every received event to a local handler.
package delivery

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/aws/aws-sdk-go/service/sqs/sqsiface"
	"github.com/cenkalti/backoff/v4"
	"github.com/hilthontt/letschat/client"
	"github.com/hilthontt/letschat/domain/model"
	"github.com/hilthontt/letschat/infrastructure/logger"
	"github.com/hilthontt/letschat/infrastructure/sqsio"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrNotReady is returned by Poll before the queue URL and a live
// credential are both known.
var ErrNotReady = errors.New("delivery loop is not ready")

// Session is the gateway side of the loop. *client.Client implements it.
type Session interface {
	QueueURL(ctx context.Context) (string, error)
	Credentials(ctx context.Context) (model.TemporaryCredential, error)
}

// Handler applies one event. It must tolerate seeing the same event twice.
type Handler interface {
	Apply(event, room string, body []byte) error
}

// ClientFactory builds a queue client from a temporary credential.
type ClientFactory func(cred model.TemporaryCredential) (sqsiface.SQSAPI, error)

type Options struct {
	PollInterval time.Duration
	// MaxMessages is the receive batch size, at most 10.
	MaxMessages     int64
	WaitTimeSeconds int64
	// RefreshMargin is how long before expiry credentials are renewed.
	RefreshMargin time.Duration
	Endpoint      string
	NewClient     ClientFactory
}

type Loop struct {
	session Session
	handler Handler
	opts    Options
	logger  *logger.Logger

	now        func() time.Time
	newBackOff func() backoff.BackOff

	mu      sync.RWMutex
	url     string
	api     sqsiface.SQSAPI
	expires time.Time
}

func New(session Session, handler Handler, opts Options, log *logger.Logger) *Loop {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.MaxMessages <= 0 || opts.MaxMessages > 10 {
		opts.MaxMessages = 10
	}
	if opts.RefreshMargin <= 0 {
		opts.RefreshMargin = 5 * time.Minute
	}
	if opts.NewClient == nil {
		endpoint := opts.Endpoint
		opts.NewClient = func(cred model.TemporaryCredential) (sqsiface.SQSAPI, error) {
			return sqsio.NewClientFromCredential(cred, endpoint)
		}
	}

	return &Loop{
		session:    session,
		handler:    handler,
		opts:       opts,
		logger:     log,
		now:        time.Now,
		newBackOff: retryBackOff,
	}
}

func retryBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 1 * time.Second
	b.MaxInterval = 30 * time.Second
	b.Multiplier = 2.0
	b.RandomizationFactor = 0.2
	b.MaxElapsedTime = 0
	return b
}

// Run resolves the queue and keeps credentials fresh in the background
// while polling every PollInterval. Polls never overlap: the next one is
// scheduled only after the previous receive and delete have finished. Run
// returns when ctx is cancelled or setup fails permanently.
func (l *Loop) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	setupErr := make(chan error, 1)
	go func() {
		if err := l.setup(ctx); err != nil && ctx.Err() == nil {
			setupErr <- err
		}
	}()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-setupErr:
			return err
		case <-timer.C:
		}

		if _, err := l.Poll(ctx); err != nil && !errors.Is(err, ErrNotReady) && ctx.Err() == nil {
			l.logger.Warn("poll failed", zap.Error(err))
		}
		timer.Reset(l.opts.PollInterval)
	}
}

// setup resolves the queue URL once, then renews credentials until ctx is
// done.
func (l *Loop) setup(ctx context.Context) error {
	var url string
	err := l.retry(ctx, "resolve queue url", func() error {
		var err error
		url, err = l.session.QueueURL(ctx)
		return err
	})
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.url = url
	l.mu.Unlock()
	l.logger.Info("resolved queue", zap.String("queueURL", url))

	for {
		if err := l.retry(ctx, "refresh credentials", func() error { return l.Refresh(ctx) }); err != nil {
			return err
		}

		timer := time.NewTimer(l.untilRefresh())
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (l *Loop) retry(ctx context.Context, op string, fn func() error) error {
	return backoff.RetryNotify(func() error {
		err := fn()
		var status *client.StatusError
		if errors.As(err, &status) && status.StatusCode == http.StatusUnauthorized {
			return backoff.Permanent(err)
		}
		if errors.Is(err, client.ErrNotLoggedIn) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(l.newBackOff(), ctx), func(err error, wait time.Duration) {
		l.logger.Warn(op+" failed", zap.Error(err), zap.Duration("retryIn", wait.Round(time.Second)))
	})
}

func (l *Loop) untilRefresh() time.Duration {
	l.mu.RLock()
	expires := l.expires
	l.mu.RUnlock()

	wait := expires.Sub(l.now()) - l.opts.RefreshMargin
	if wait < l.opts.PollInterval {
		wait = l.opts.PollInterval
	}
	return wait
}

// Refresh fetches a new credential and swaps in a queue client built from
// it.
func (l *Loop) Refresh(ctx context.Context) error {
	cred, err := l.session.Credentials(ctx)
	if err != nil {
		return err
	}
	api, err := l.opts.NewClient(cred)
	if err != nil {
		return errors.Wrap(err, "build queue client")
	}

	l.mu.Lock()
	l.api = api
	l.expires = cred.ExpireTime
	l.mu.Unlock()

	l.logger.Debug("refreshed queue credentials", zap.Time("expires", cred.ExpireTime))
	return nil
}

// SetQueueURL records the queue to poll without asking the gateway.
func (l *Loop) SetQueueURL(url string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.url = url
}

func (l *Loop) ready() (string, sqsiface.SQSAPI, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.url == "" || l.api == nil || !l.now().Before(l.expires) {
		return "", nil, false
	}
	return l.url, l.api, true
}

// Poll runs one receive, dispatch and delete round and reports how many
// messages were received. Every received message is deleted, including
// those the handler rejected, so a bad payload is not redelivered forever.
func (l *Loop) Poll(ctx context.Context) (int, error) {
	url, api, ok := l.ready()
	if !ok {
		return 0, ErrNotReady
	}

	out, err := api.ReceiveMessageWithContext(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:              aws.String(url),
		MaxNumberOfMessages:   aws.Int64(l.opts.MaxMessages),
		MessageAttributeNames: aws.StringSlice([]string{model.AttributeEvent, model.AttributeRoom}),
		WaitTimeSeconds:       aws.Int64(l.opts.WaitTimeSeconds),
	})
	if err != nil {
		return 0, errors.Wrap(err, "receive")
	}

	entries := make([]*sqs.DeleteMessageBatchRequestEntry, 0, len(out.Messages))
	for i, msg := range out.Messages {
		l.dispatch(msg)
		entries = append(entries, &sqs.DeleteMessageBatchRequestEntry{
			Id:            aws.String(strconv.Itoa(i)),
			ReceiptHandle: msg.ReceiptHandle,
		})
	}

	if len(entries) == 0 {
		return 0, nil
	}

	del, err := api.DeleteMessageBatchWithContext(ctx, &sqs.DeleteMessageBatchInput{
		QueueUrl: aws.String(url),
		Entries:  entries,
	})
	if err != nil {
		return len(entries), errors.Wrap(err, "delete batch")
	}
	for _, failed := range del.Failed {
		l.logger.Warn("message not deleted",
			zap.String("entry", aws.StringValue(failed.Id)),
			zap.String("code", aws.StringValue(failed.Code)),
			zap.String("message", aws.StringValue(failed.Message)),
		)
	}
	return len(entries), nil
}

func (l *Loop) dispatch(msg *sqs.Message) {
	event := attribute(msg, model.AttributeEvent)
	if event == "" {
		l.logger.Warn("message without event attribute", zap.String("messageID", aws.StringValue(msg.MessageId)))
		return
	}
	room := attribute(msg, model.AttributeRoom)

	if err := l.handler.Apply(event, room, []byte(aws.StringValue(msg.Body))); err != nil {
		l.logger.Warn("failed to apply event",
			zap.String("event", event),
			zap.String("room", room),
			zap.Error(err),
		)
		return
	}
	l.logger.Debug("applied event", zap.String("event", event), zap.String("room", room))
}

func attribute(msg *sqs.Message, name string) string {
	if v, ok := msg.MessageAttributes[name]; ok && v != nil {
		return aws.StringValue(v.StringValue)
	}
	return ""
}
