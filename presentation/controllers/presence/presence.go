package presence

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hilthontt/letschat/application/usecases/session"
	"github.com/hilthontt/letschat/domain/repository"
	"github.com/hilthontt/letschat/presentation/middlewares"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// PresenceController records client heartbeats. A client that stops
// heartbeating eventually has its queue reaped.
type PresenceController interface {
	Heartbeat(ctx *gin.Context)
	Clear(ctx *gin.Context)
}

type presenceController struct {
	sessions session.SessionUseCase
}

func NewPresenceController(sessions session.SessionUseCase) PresenceController {
	return &presenceController{sessions: sessions}
}

func (c *presenceController) Heartbeat(ctx *gin.Context) {
	c.respond(ctx, c.sessions.Heartbeat)
}

func (c *presenceController) Clear(ctx *gin.Context) {
	c.respond(ctx, c.sessions.ClearHeartbeat)
}

func (c *presenceController) respond(ctx *gin.Context, record func(ctx context.Context, userID string) error) {
	user, exists := middlewares.GetUserFromContext(ctx)
	if !exists {
		ctx.Status(http.StatusUnauthorized)
		return
	}

	if err := record(ctx.Request.Context(), user.ID); err != nil {
		_ = ctx.Error(err)
		if errors.Is(err, repository.ErrNotFound) {
			ctx.Status(http.StatusNotFound)
			return
		}
		if errors.Is(err, session.ErrLoginCooldown) {
			ctx.JSON(http.StatusConflict, ErrorResponse{
				Error:   "queue_cooldown",
				Message: "Your queue was removed less than 60 seconds ago. Retry shortly.",
			})
			return
		}
		ctx.Status(http.StatusInternalServerError)
		return
	}

	ctx.Status(http.StatusNoContent)
}
