package message

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/hilthontt/letschat/application/usecases/message"
	"github.com/hilthontt/letschat/infrastructure/broker"
	"github.com/hilthontt/letschat/presentation/middlewares"
)

type MessageController interface {
	SendMessage(ctx *gin.Context)
	GetMessages(ctx *gin.Context)
}

type messageController struct {
	usecase message.MessageUseCase
	waiter  broker.Waiter
}

func NewMessageController(usecase message.MessageUseCase, waiter broker.Waiter) MessageController {
	return &messageController{
		usecase: usecase,
		waiter:  waiter,
	}
}

func (c *messageController) SendMessage(ctx *gin.Context) {
	user, exists := middlewares.GetUserFromContext(ctx)
	if !exists {
		ctx.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "user not found in context",
		})
		return
	}

	var req SendMessageRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: middlewares.TranslateValidationError(err),
		})
		return
	}

	msg, completion, err := c.usecase.Post(ctx.Request.Context(), user, ctx.Param("room"), req.Text)
	if err != nil {
		respondError(ctx, err)
		return
	}

	c.waiter.Wait(ctx.Request.Context(), completion)
	ctx.JSON(http.StatusCreated, msg)
}

func (c *messageController) GetMessages(ctx *gin.Context) {
	user, exists := middlewares.GetUserFromContext(ctx)
	if !exists {
		ctx.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "user not found in context",
		})
		return
	}

	var limit int64
	if raw := ctx.Query("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 1 {
			ctx.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_request",
				Message: "limit must be a positive number",
			})
			return
		}
		limit = parsed
	}

	messages, err := c.usecase.List(ctx.Request.Context(), user.ID, ctx.Param("room"), limit)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, messages)
}

func respondError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, message.ErrRoomNotFound):
		ctx.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: err.Error()})
	case errors.Is(err, message.ErrForbidden):
		ctx.JSON(http.StatusForbidden, ErrorResponse{Error: "forbidden", Message: err.Error()})
	case errors.Is(err, message.ErrEmptyMessage):
		ctx.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: err.Error()})
	default:
		_ = ctx.Error(err)
		ctx.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "failed to handle message request",
		})
	}
}
