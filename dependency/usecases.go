package dependency

import (
	announceUseCase "github.com/hilthontt/letschat/application/usecases/announce"
	fileUseCase "github.com/hilthontt/letschat/application/usecases/file"
	messageUseCase "github.com/hilthontt/letschat/application/usecases/message"
	presenceUseCase "github.com/hilthontt/letschat/application/usecases/presence"
	roomUseCase "github.com/hilthontt/letschat/application/usecases/room"
	sessionUseCase "github.com/hilthontt/letschat/application/usecases/session"
	userUseCase "github.com/hilthontt/letschat/application/usecases/user"
)

func (c *Container) initUseCases() {
	c.AnnounceUC = announceUseCase.NewAnnounceUseCase(c.Broker, c.Logger)
	c.PresenceUC = presenceUseCase.NewPresenceUseCase(c.UserRepo, c.Broker, c.Logger)
	c.SessionUC = sessionUseCase.NewSessionUseCase(c.UserRepo, c.SessionRepo, c.PresenceRepo, c.Transport, c.Logger)
	c.UserUC = userUseCase.NewUserUseCase(c.UserRepo, c.RoomRepo, c.AnnounceUC, c.PresenceUC, c.Logger, c.Config.Presence.ActiveWindow)
	c.RoomUC = roomUseCase.NewRoomUseCase(c.RoomRepo, c.UserRepo, c.AnnounceUC, c.PresenceUC, c.Logger)
	c.MessageUC = messageUseCase.NewMessageUseCase(c.MessageRepo, c.RoomRepo, c.AnnounceUC, c.Logger)
	c.FileUC = fileUseCase.NewFileUseCase(c.FileRepo, c.MessageRepo, c.RoomRepo, c.AnnounceUC, c.Logger)

	c.Logger.Info("Use cases initialized successfully")
}
