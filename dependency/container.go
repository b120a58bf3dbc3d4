package dependency

import (
	"context"
	"fmt"

	announceUseCase "github.com/hilthontt/letschat/application/usecases/announce"
	fileUseCase "github.com/hilthontt/letschat/application/usecases/file"
	messageUseCase "github.com/hilthontt/letschat/application/usecases/message"
	presenceUseCase "github.com/hilthontt/letschat/application/usecases/presence"
	roomUseCase "github.com/hilthontt/letschat/application/usecases/room"
	sessionUseCase "github.com/hilthontt/letschat/application/usecases/session"
	userUseCase "github.com/hilthontt/letschat/application/usecases/user"
	"github.com/hilthontt/letschat/domain/repository"
	"github.com/hilthontt/letschat/infrastructure/broker"
	"github.com/hilthontt/letschat/infrastructure/cache"
	"github.com/hilthontt/letschat/infrastructure/config"
	"github.com/hilthontt/letschat/infrastructure/jobs"
	"github.com/hilthontt/letschat/infrastructure/logger"
	"github.com/hilthontt/letschat/infrastructure/metrics"
	"github.com/hilthontt/letschat/infrastructure/sqsio"
	"github.com/hilthontt/letschat/presentation/controllers/account"
	"github.com/hilthontt/letschat/presentation/controllers/file"
	"github.com/hilthontt/letschat/presentation/controllers/message"
	"github.com/hilthontt/letschat/presentation/controllers/presence"
	"github.com/hilthontt/letschat/presentation/controllers/room"
	"github.com/hilthontt/letschat/presentation/controllers/sqs"
	"github.com/hilthontt/letschat/presentation/controllers/users"
	"github.com/redis/go-redis/v9"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Container builds every long-lived service of the gateway once, in
// dependency order.
type Container struct {
	Config *config.Config
	Logger *logger.Logger

	TracerProvider *sdktrace.TracerProvider
	Tracer         trace.Tracer
	MetricsManager metrics.Manager

	Redis            *redis.Client
	DistributedCache *cache.DistributedCache

	Transport *sqsio.Transport
	Broker    *broker.Broker

	UserRepo     repository.UserRepository
	RoomRepo     repository.RoomRepository
	MessageRepo  repository.MessageRepository
	FileRepo     repository.FileRepository
	PresenceRepo repository.PresenceRepository
	SessionRepo  repository.SessionRepository

	AnnounceUC announceUseCase.AnnounceUseCase
	PresenceUC presenceUseCase.PresenceUseCase
	SessionUC  sessionUseCase.SessionUseCase
	UserUC     userUseCase.UserUseCase
	RoomUC     roomUseCase.RoomUseCase
	MessageUC  messageUseCase.MessageUseCase
	FileUC     fileUseCase.FileUseCase

	AccountController  account.AccountController
	SqsController      sqs.SqsController
	PresenceController presence.PresenceController
	RoomController     room.RoomController
	MessageController  message.MessageController
	FilesController    file.FilesController
	UsersController    users.UsersController

	QueueReaperJob *jobs.QueueReaperJob

	ctx    context.Context
	cancel context.CancelFunc
}

func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	c := &Container{Config: cfg}
	c.ctx, c.cancel = context.WithCancel(ctx)

	loggerInstance, err := logger.NewLogger(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("error initializing logger: %w", err)
	}
	c.Logger = loggerInstance

	c.Logger.Info("Initializing letschat dependencies")

	if err := c.initInfrastructure(); err != nil {
		return nil, fmt.Errorf("error initializing infrastructure: %w", err)
	}

	if err := c.initMessaging(); err != nil {
		return nil, fmt.Errorf("error initializing queue transport: %w", err)
	}

	c.initRepositories()

	c.initUseCases()

	c.initControllers()

	c.Logger.Info("All dependencies initialized successfully")

	return c, nil
}
