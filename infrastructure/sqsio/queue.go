package sqsio

import (
	"context"
	"errors"
	"slices"
	"strconv"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/hilthontt/letschat/infrastructure/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// CreateQueue creates the queue for userID. Creating an existing queue with
// the same attributes succeeds. A recreate inside the provider's cooldown
// returns ErrQueueDeletedRecently.
func (t *Transport) CreateQueue(ctx context.Context, userID string) error {
	name := t.QueueName(userID)
	ctx, span := t.tracer.Start(ctx, "sqsio.CreateQueue")
	defer span.End()
	span.SetAttributes(attribute.String("queue.name", name))

	out, err := t.api.CreateQueueWithContext(ctx, &sqs.CreateQueueInput{
		QueueName: aws.String(name),
		Attributes: map[string]*string{
			sqs.QueueAttributeNameMessageRetentionPeriod:        aws.String(strconv.Itoa(t.opts.MessageRetentionPeriod)),
			sqs.QueueAttributeNameReceiveMessageWaitTimeSeconds: aws.String(strconv.Itoa(t.opts.LongPollingPeriod)),
		},
	})
	if err != nil {
		code := ProviderCode(err)
		err = classify(err, "create queue", name)
		if errors.Is(err, ErrQueueDeletedRecently) {
			t.logger.Info("queue still in post-delete cooldown", zap.String("queue", name))
		} else {
			t.logger.Error("failed to create queue",
				zap.String("queue", name),
				zap.String("code", code),
				zap.Error(err),
			)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "create queue failed")
		return err
	}

	url := aws.StringValue(out.QueueUrl)
	t.forget(userID)
	t.cacheURL(userID, url)

	t.logger.Info("created queue", zap.String("queue", name), zap.String("url", url))
	return nil
}

// DeleteQueue removes the queue of userID in the background. It never
// blocks and never reports failure; errors are logged.
func (t *Transport) DeleteQueue(userID string) {
	t.forget(userID)

	t.deletes.Add(1)
	go func() {
		defer t.deletes.Done()

		ctx, cancel := context.WithTimeout(context.Background(), t.opts.DeleteTimeout)
		defer cancel()

		if err := t.RemoveQueue(ctx, userID); err != nil {
			t.logger.Error("failed to delete queue",
				zap.String("queue", t.QueueName(userID)),
				zap.Error(err),
			)
		}
	}()
}

// RemoveQueue resolves the queue URL of userID and deletes the queue,
// returning any failure to the caller.
func (t *Transport) RemoveQueue(ctx context.Context, userID string) error {
	t.forget(userID)

	url, err := t.GetURL(ctx, userID)
	if err != nil {
		return err
	}
	// GetURL may have re-cached the URL we are about to delete.
	t.forget(userID)

	if _, err := t.api.DeleteQueueWithContext(ctx, &sqs.DeleteQueueInput{QueueUrl: aws.String(url)}); err != nil {
		return classify(err, "delete queue", url)
	}

	t.logger.Info("deleted queue", zap.String("url", url))
	return nil
}

// GetURL resolves the current queue URL of userID by its deterministic name.
func (t *Transport) GetURL(ctx context.Context, userID string) (string, error) {
	if v, ok := t.urls.Get(urlKey(userID)); ok {
		return v.(string), nil
	}

	name := t.QueueName(userID)
	out, err := t.api.GetQueueUrlWithContext(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(name)})
	if err != nil {
		err = classify(err, "get queue url", name)
		if errors.Is(err, ErrQueueNotFound) {
			t.logger.Debug("queue not found", zap.String("queue", name))
		} else {
			t.logger.Error("failed to resolve queue url", zap.String("queue", name), zap.Error(err))
		}
		return "", err
	}

	url := aws.StringValue(out.QueueUrl)
	t.cacheURL(userID, url)
	return url, nil
}

// ListQueues enumerates every queue under the configured prefix. An empty
// result is not an error.
func (t *Transport) ListQueues(ctx context.Context) ([]string, error) {
	if v, ok := t.urls.Get(listCacheKey); ok {
		return slices.Clone(v.([]string)), nil
	}

	ctx, span := t.tracer.Start(ctx, "sqsio.ListQueues")
	defer span.End()

	t.metrics.IncrementCounter(ctx, metrics.ActiveQueueLookups)

	prefix := t.opts.QueuePrefix + "_"
	urls := []string{}
	err := t.api.ListQueuesPagesWithContext(ctx, &sqs.ListQueuesInput{
		QueueNamePrefix: aws.String(prefix),
		MaxResults:      aws.Int64(1000),
	}, func(page *sqs.ListQueuesOutput, _ bool) bool {
		for _, u := range page.QueueUrls {
			urls = append(urls, aws.StringValue(u))
		}
		return true
	})
	if err != nil {
		err = classify(err, "list queues", prefix)
		t.logger.Error("failed to list queues", zap.String("prefix", prefix), zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "list queues failed")
		return nil, err
	}

	span.SetAttributes(attribute.Int("queue.count", len(urls)))
	if t.opts.QueueURLTTL > 0 {
		t.urls.Set(listCacheKey, slices.Clone(urls), t.opts.QueueURLTTL)
	}
	return urls, nil
}
