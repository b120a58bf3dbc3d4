package sqsio

import (
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/goccy/go-json"
	"github.com/hilthontt/letschat/domain/model"
	"github.com/hilthontt/letschat/infrastructure/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// Envelope is the unit of transport. Event travels as a message attribute,
// Room too when set, and Payload is the JSON body.
type Envelope struct {
	Event   string
	Room    string
	Payload any
}

// SendOutcome reports one attempted send. A failed send is still a
// completed attempt.
type SendOutcome struct {
	QueueURL  string
	MessageID string
	Err       error
}

func (o SendOutcome) OK() bool {
	return o.Err == nil
}

// Send dispatches env to one queue. It always returns an outcome; failures
// are logged and recorded, never panicked or retried.
func (t *Transport) Send(ctx context.Context, queueURL string, env Envelope) SendOutcome {
	out := SendOutcome{QueueURL: queueURL}

	ctx, span := t.tracer.Start(ctx, "sqsio.Send")
	defer span.End()
	span.SetAttributes(
		attribute.String("event", env.Event),
		attribute.String("room", env.Room),
		attribute.String("queue.url", queueURL),
	)

	fail := func(err error) SendOutcome {
		out.Err = err
		t.metrics.IncrementCounter(ctx, metrics.SendFailures, attribute.String("event", env.Event))
		span.RecordError(err)
		span.SetStatus(codes.Error, "send failed")
		t.logger.Error("failed to send envelope",
			zap.String("event", env.Event),
			zap.String("room", env.Room),
			zap.String("url", queueURL),
			zap.String("code", ProviderCode(err)),
			zap.Error(err),
		)
		return out
	}

	if env.Event == "" {
		return fail(ErrMissingEvent)
	}

	body, err := json.Marshal(env.Payload)
	if err != nil {
		return fail(err)
	}

	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return fail(err)
		}
	}

	attrs := map[string]*sqs.MessageAttributeValue{
		model.AttributeEvent: {
			DataType:    aws.String("String"),
			StringValue: aws.String(env.Event),
		},
	}
	if env.Room != "" {
		attrs[model.AttributeRoom] = &sqs.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(env.Room),
		}
	}

	res, err := t.api.SendMessageWithContext(ctx, &sqs.SendMessageInput{
		QueueUrl:          aws.String(queueURL),
		MessageBody:       aws.String(string(body)),
		MessageAttributes: attrs,
	})
	if err != nil {
		return fail(err)
	}

	out.MessageID = aws.StringValue(res.MessageId)
	t.metrics.IncrementCounter(ctx, metrics.MessagesSent, attribute.String("event", env.Event))
	return out
}
