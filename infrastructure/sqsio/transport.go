package sqsio

import (
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/service/sqs/sqsiface"
	"github.com/aws/aws-sdk-go/service/sts/stsiface"
	"github.com/hilthontt/letschat/infrastructure/cache"
	"github.com/hilthontt/letschat/infrastructure/config"
	"github.com/hilthontt/letschat/infrastructure/logger"
	"github.com/hilthontt/letschat/infrastructure/metrics"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const listCacheKey = "queues"

type Options struct {
	QueuePrefix            string
	Region                 string
	MessageRetentionPeriod int
	LongPollingPeriod      int
	CredentialDuration     time.Duration
	FederationName         string
	// QueueURLTTL bounds how long resolved URLs and the broadcast queue
	// list are reused. Zero disables caching.
	QueueURLTTL   time.Duration
	SendRate      float64
	DeleteTimeout time.Duration
}

func OptionsFromConfig(cfg config.SqsConfig) Options {
	return Options{
		QueuePrefix:            cfg.QueuePrefix,
		Region:                 cfg.Region,
		MessageRetentionPeriod: cfg.MessageRetentionPeriod,
		LongPollingPeriod:      cfg.LongPollingPeriod,
		CredentialDuration:     cfg.CredentialDuration,
		FederationName:         cfg.FederationName,
		QueueURLTTL:            cfg.QueueURLTTL,
		SendRate:               cfg.SendRate,
	}
}

// Transport owns the provider client and the temporary credential holder.
// It is constructed once per process and shared by every announce.
type Transport struct {
	api     sqsiface.SQSAPI
	creds   *credentialHolder
	opts    Options
	urls    *cache.Cache
	limiter *rate.Limiter

	metrics metrics.Manager
	tracer  trace.Tracer
	logger  *logger.Logger

	deletes sync.WaitGroup
}

func New(
	api sqsiface.SQSAPI,
	stsAPI stsiface.STSAPI,
	opts Options,
	metricsManager metrics.Manager,
	tracer trace.Tracer,
	logger *logger.Logger,
) *Transport {
	if opts.DeleteTimeout <= 0 {
		opts.DeleteTimeout = 30 * time.Second
	}
	if opts.CredentialDuration <= 0 {
		opts.CredentialDuration = time.Hour
	}

	t := &Transport{
		api:     api,
		opts:    opts,
		urls:    cache.NewCache(cache.DefaultOptions()),
		metrics: metricsManager,
		tracer:  tracer,
		logger:  logger,
	}
	t.creds = newCredentialHolder(stsAPI, opts)
	if opts.SendRate > 0 {
		t.limiter = rate.NewLimiter(rate.Limit(opts.SendRate), max(1, int(opts.SendRate)))
	}
	return t
}

// QueueName is the deterministic queue name for userID.
func (t *Transport) QueueName(userID string) string {
	return t.opts.QueuePrefix + "_" + userID
}

// Close waits for in-flight queue deletions and stops the URL cache.
func (t *Transport) Close() {
	t.deletes.Wait()
	t.urls.Close()
}

func (t *Transport) cacheURL(userID, url string) {
	if t.opts.QueueURLTTL > 0 {
		t.urls.Set(urlKey(userID), url, t.opts.QueueURLTTL)
	}
}

func (t *Transport) forget(userID string) {
	t.urls.Delete(urlKey(userID))
	t.urls.Delete(listCacheKey)
}

func urlKey(userID string) string {
	return "url:" + userID
}
