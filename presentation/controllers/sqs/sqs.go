package sqs

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hilthontt/letschat/application/usecases/session"
	"github.com/hilthontt/letschat/infrastructure/sqsio"
	"github.com/hilthontt/letschat/presentation/middlewares"
)

type QueueURLResponse struct {
	URL string `json:"url"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// SqsController hands clients what they need to poll their own queue.
type SqsController interface {
	GetQueueURL(ctx *gin.Context)
	GetCredentials(ctx *gin.Context)
}

type sqsController struct {
	sessions session.SessionUseCase
}

func NewSqsController(sessions session.SessionUseCase) SqsController {
	return &sqsController{sessions: sessions}
}

func (c *sqsController) GetQueueURL(ctx *gin.Context) {
	user, exists := middlewares.GetUserFromContext(ctx)
	if !exists {
		ctx.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "user not found in context",
		})
		return
	}

	url, err := c.sessions.QueueURL(ctx.Request.Context(), user.ID)
	if err != nil {
		if errors.Is(err, sqsio.ErrQueueNotFound) {
			ctx.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "not_found",
				Message: "no queue exists for this session, log in again",
			})
			return
		}
		ctx.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "queue_unavailable",
			Message: "failed to look up queue",
		})
		return
	}

	ctx.JSON(http.StatusOK, QueueURLResponse{URL: url})
}

// GetCredentials issues credentials that can only read the caller's own
// queue.
func (c *sqsController) GetCredentials(ctx *gin.Context) {
	user, exists := middlewares.GetUserFromContext(ctx)
	if !exists {
		ctx.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "user not found in context",
		})
		return
	}

	creds, err := c.sessions.Credentials(ctx.Request.Context(), user.ID)
	if err != nil {
		ctx.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "credentials_unavailable",
			Message: "failed to issue queue credentials",
		})
		return
	}

	ctx.JSON(http.StatusOK, creds)
}
