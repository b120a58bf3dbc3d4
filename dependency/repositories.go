package dependency

import (
	"github.com/hilthontt/letschat/infrastructure/persistence/repository"
)

func (c *Container) initRepositories() {
	dc := c.DistributedCache

	c.UserRepo = repository.NewUserRepository(dc, c.Tracer)
	c.RoomRepo = repository.NewRoomRepository(dc, c.Tracer)
	c.MessageRepo = repository.NewMessageRepository(dc, c.Tracer)
	c.FileRepo = repository.NewFileRepository(dc, c.Tracer)
	c.PresenceRepo = repository.NewPresenceRepository(dc, c.Tracer)
	c.SessionRepo = repository.NewSessionRepository(dc, c.Tracer)

	c.Logger.Info("Repositories initialized successfully")
}
