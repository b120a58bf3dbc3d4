package dependency

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/hilthontt/letschat/infrastructure/metrics"
	"github.com/hilthontt/letschat/presentation/controllers/account"
	"github.com/hilthontt/letschat/presentation/controllers/file"
	"github.com/hilthontt/letschat/presentation/controllers/message"
	"github.com/hilthontt/letschat/presentation/controllers/presence"
	"github.com/hilthontt/letschat/presentation/controllers/room"
	"github.com/hilthontt/letschat/presentation/controllers/sqs"
	"github.com/hilthontt/letschat/presentation/controllers/users"
	"github.com/hilthontt/letschat/presentation/middlewares"
	"github.com/hilthontt/letschat/presentation/routes"
	"go.uber.org/zap"
)

func (c *Container) initControllers() {
	c.AccountController = account.NewAccountController(c.SessionUC, c.UserUC, c.Broker)
	c.SqsController = sqs.NewSqsController(c.SessionUC)
	c.PresenceController = presence.NewPresenceController(c.SessionUC)
	c.RoomController = room.NewRoomController(c.RoomUC, c.Broker)
	c.MessageController = message.NewMessageController(c.MessageUC, c.Broker)
	c.FilesController = file.NewFilesController(c.FileUC, c.Broker)
	c.UsersController = users.NewUsersController(c.UserUC)

	c.Logger.Info("Controllers initialized successfully")
}

func (c *Container) SetupRouter() *gin.Engine {
	switch c.Config.Server.RunMode {
	case "release", "production":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	binding.Validator = new(middlewares.DefaultValidator)

	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(sentrygin.New(sentrygin.Options{
		Repanic:         true,
		WaitForDelivery: false,
		Timeout:         5 * time.Second,
	}))

	router.Use(middlewares.GinLogger(c.Logger))
	router.Use(middlewares.CorsMiddleware(c.Config))

	router.GET("/health", c.healthCheckHandler)

	c.registerObservabilityRoutes(router)

	c.registerAPIRoutes(router)

	c.Logger.Info("Router configured successfully")

	return router
}

func (c *Container) registerAPIRoutes(router *gin.Engine) {
	public := router.Group("")

	authed := router.Group("")
	{
		authed.Use(middlewares.RequireLogin(c.SessionUC, c.Logger))
		authed.Use(middlewares.RateLimiterMiddleware(c.Redis, c.Logger, middlewares.ModerateRateLimiterConfig()))

		authed.Use(func(ctx *gin.Context) {
			if hub := sentrygin.GetHubFromContext(ctx); hub != nil {
				if user, ok := middlewares.GetUserFromContext(ctx); ok {
					hub.Scope().SetUser(sentry.User{
						ID:        user.ID,
						Username:  user.Username,
						IPAddress: ctx.ClientIP(),
					})
				}
			}
			ctx.Next()
		})
	}

	loginLimiter := middlewares.RateLimiterMiddleware(c.Redis, c.Logger, middlewares.LoginRateLimiterConfig())
	postLimiter := middlewares.RateLimiterMiddleware(c.Redis, c.Logger, middlewares.MessageSendingRateLimiterConfig())

	routes.AccountRoutes(public, authed, c.AccountController, loginLimiter)
	routes.SqsRoutes(authed, c.SqsController)
	routes.PresenceRoutes(authed, c.PresenceController)
	routes.RoomRoutes(authed, c.RoomController)
	routes.MessageRoutes(authed, c.MessageController, postLimiter)
	routes.FilesRoutes(authed, c.FilesController, postLimiter)
	routes.UsersRoutes(authed, c.UsersController)
}

func (c *Container) healthCheckHandler(ctx *gin.Context) {
	ctx.JSON(200, gin.H{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (c *Container) registerObservabilityRoutes(router *gin.Engine) {
	metricsGroup := router.Group("/observability")
	{
		metrics.GetHandler(metricsGroup, c.MetricsManager, c.Config.IsDevelopment())
	}
}

// Shutdown stops background work, lets in-flight announces and queue
// deletions finish within ctx, then releases clients.
func (c *Container) Shutdown(ctx context.Context) error {
	c.Logger.Info("Shutting down dependencies...")

	if c.QueueReaperJob != nil {
		c.QueueReaperJob.Stop()
	}
	if c.cancel != nil {
		c.cancel()
	}

	if c.Broker != nil {
		if err := c.Broker.Shutdown(ctx); err != nil {
			c.Logger.Warn("announces still in flight at shutdown", zap.Error(err))
		}
	}
	if c.Transport != nil {
		c.Transport.Close()
	}

	if c.TracerProvider != nil {
		if err := c.TracerProvider.Shutdown(ctx); err != nil {
			c.Logger.Error("failed to shutdown tracer provider", zap.Error(err))
		}
	}

	if c.Config.Sentry.Dsn != "" {
		sentry.Flush(2 * time.Second)
	}

	if c.DistributedCache != nil {
		c.DistributedCache.Close()
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.Logger.Error("failed to close redis", zap.Error(err))
		}
	}

	c.Logger.Info("Dependencies shut down successfully")
	_ = c.Logger.Sync()

	return nil
}
