package sqsio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/sts"
	"github.com/aws/aws-sdk-go/service/sts/stsiface"
	"github.com/goccy/go-json"
	"github.com/hilthontt/letschat/domain/model"
	"github.com/hilthontt/letschat/infrastructure/metrics"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// credentialHolder issues temporary credentials for one user's queue.
// Issuance is serialized and every caller receives its own bundle, so a
// bundle is never read while it is being filled.
type credentialHolder struct {
	api  stsiface.STSAPI
	opts Options

	mu sync.Mutex
}

func newCredentialHolder(api stsiface.STSAPI, opts Options) *credentialHolder {
	return &credentialHolder{api: api, opts: opts}
}

// issue asks the token service for credentials limited to queueName. Without
// a federation name the credentials come from GetSessionToken and carry the
// gateway's own permissions; configuration only allows that outside
// production.
func (h *credentialHolder) issue(ctx context.Context, queueName string) (model.TemporaryCredential, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	seconds := aws.Int64(int64(h.opts.CredentialDuration / time.Second))

	var c *sts.Credentials
	if h.opts.FederationName != "" {
		policy, err := queuePolicy(h.opts.Region, queueName)
		if err != nil {
			return model.TemporaryCredential{}, err
		}
		out, err := h.api.GetFederationTokenWithContext(ctx, &sts.GetFederationTokenInput{
			Name:            aws.String(h.opts.FederationName),
			DurationSeconds: seconds,
			Policy:          aws.String(policy),
		})
		if err != nil {
			return model.TemporaryCredential{}, errors.Wrap(err, "get federation token")
		}
		c = out.Credentials
	} else {
		out, err := h.api.GetSessionTokenWithContext(ctx, &sts.GetSessionTokenInput{
			DurationSeconds: seconds,
		})
		if err != nil {
			return model.TemporaryCredential{}, errors.Wrap(err, "get session token")
		}
		c = out.Credentials
	}
	if c == nil {
		return model.TemporaryCredential{}, errors.New("token service returned no credentials")
	}

	return model.TemporaryCredential{
		AccessKeyID:     aws.StringValue(c.AccessKeyId),
		SecretAccessKey: aws.StringValue(c.SecretAccessKey),
		SessionToken:    aws.StringValue(c.SessionToken),
		ExpireTime:      aws.TimeValue(c.Expiration),
		Region:          h.opts.Region,
	}, nil
}

type policyDocument struct {
	Version   string            `json:"Version"`
	Statement []policyStatement `json:"Statement"`
}

type policyStatement struct {
	Effect   string   `json:"Effect"`
	Action   []string `json:"Action"`
	Resource string   `json:"Resource"`
}

// queuePolicy limits federated credentials to reading and deleting from a
// single queue. Sending stays with the gateway.
func queuePolicy(region, queueName string) (string, error) {
	doc := policyDocument{
		Version: "2012-10-17",
		Statement: []policyStatement{{
			Effect: "Allow",
			Action: []string{
				"sqs:GetQueueUrl",
				"sqs:ReceiveMessage",
				"sqs:DeleteMessage",
				"sqs:DeleteMessageBatch",
			},
			Resource: fmt.Sprintf("arn:aws:sqs:%s:*:%s", region, queueName),
		}},
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// GetTemporaryCredentials issues fresh credentials for userID's queue on
// every call so the returned expiry is always as late as possible.
func (t *Transport) GetTemporaryCredentials(ctx context.Context, userID string) (model.TemporaryCredential, error) {
	ctx, span := t.tracer.Start(ctx, "sqsio.GetTemporaryCredentials")
	defer span.End()

	if userID == "" {
		return model.TemporaryCredential{}, errors.New("temporary credentials need a user")
	}

	cred, err := t.creds.issue(ctx, t.QueueName(userID))
	if err != nil {
		span.RecordError(err)
		t.logger.Error("failed to issue temporary credentials",
			zap.String("userID", userID),
			zap.String("code", ProviderCode(errors.Cause(err))),
			zap.Error(err),
		)
		return model.TemporaryCredential{}, err
	}

	t.metrics.IncrementCounter(ctx, metrics.CredentialsIssued)
	return cred, nil
}
