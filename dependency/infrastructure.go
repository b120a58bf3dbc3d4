package dependency

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/hilthontt/letschat/infrastructure/broker"
	"github.com/hilthontt/letschat/infrastructure/cache"
	"github.com/hilthontt/letschat/infrastructure/jobs"
	"github.com/hilthontt/letschat/infrastructure/metrics"
	"github.com/hilthontt/letschat/infrastructure/metrics/exporters"
	"github.com/hilthontt/letschat/infrastructure/sqsio"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

const tracerName = "github.com/hilthontt/letschat"

func (c *Container) initInfrastructure() error {
	tracerProvider, err := exporters.InitJaegerExporter(c.Config)
	if err != nil {
		c.Logger.Error("failed to initialize Jaeger exporter", zap.Error(err))
		c.Logger.Warn("Using noop tracer provider as fallback")
		c.Tracer = noop.NewTracerProvider().Tracer(tracerName)
	} else {
		c.TracerProvider = tracerProvider
		c.Tracer = tracerProvider.Tracer(tracerName)
		c.Logger.Info("Jaeger exporter initialized successfully",
			zap.String("endpoint", c.Config.Jaeger.Endpoint),
			zap.String("service", c.Config.Jaeger.ServiceName),
		)
	}

	meter, err := exporters.Prometheus(c.Config.Jaeger)
	if err != nil {
		return fmt.Errorf("failed to initialize Prometheus exporter: %w", err)
	}
	c.MetricsManager = metrics.NewMetricsManager(meter, c.Logger)
	metrics.RegisterDefaults(c.MetricsManager)

	c.Logger.Info("Metrics initialized successfully")

	if c.Config.Sentry.Dsn != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:            c.Config.Sentry.Dsn,
			Debug:          c.Config.Sentry.Debug,
			SendDefaultPII: c.Config.Sentry.SendDefaultPII,
			Environment:    c.Config.Server.RunMode,
			Release:        c.Config.Jaeger.ServiceVersion,
		})
		if err != nil {
			c.Logger.Error("failed to initialize sentry", zap.Error(err))
		}
	}

	redisClient, err := cache.NewRedisClient(c.ctx, c.Config)
	if err != nil {
		return err
	}
	c.Redis = redisClient
	c.DistributedCache = cache.NewDistributedCache(redisClient, c.Config.Redis.KeyPrefix, 0)

	return nil
}

// initMessaging wires the queue transport and the fan-out broker on top of
// it. Every announce in the process goes through this one broker.
func (c *Container) initMessaging() error {
	sqsAPI, stsAPI, err := sqsio.NewClients(c.Config.Sqs)
	if err != nil {
		return err
	}

	c.Transport = sqsio.New(sqsAPI, stsAPI, sqsio.OptionsFromConfig(c.Config.Sqs), c.MetricsManager, c.Tracer, c.Logger)
	c.Broker = broker.New(c.Transport, broker.Options{
		WaitTimeout:        c.Config.Broker.WaitTimeout,
		MaxConcurrentSends: c.Config.Broker.MaxConcurrentSends,
	}, c.MetricsManager, c.Tracer, c.Logger)

	c.Logger.Info("Queue transport initialized",
		zap.String("region", c.Config.Sqs.Region),
		zap.String("queuePrefix", c.Config.Sqs.QueuePrefix),
	)
	return nil
}

// StartBackgroundJobs starts the stale queue reaper. It stops when the
// container shuts down.
func (c *Container) StartBackgroundJobs() {
	c.QueueReaperJob = jobs.NewQueueReaperJob(
		c.PresenceRepo,
		c.Transport,
		c.MetricsManager,
		c.Logger,
		c.Config.Presence.ReapInterval,
		c.Config.Presence.StaleAfter,
	)

	go func() {
		time.Sleep(2 * time.Second) // Wait for the server to start accepting logins
		c.Logger.Info("Starting background jobs...")
		c.QueueReaperJob.Start(c.ctx)
	}()
}
