package room

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hilthontt/letschat/application/usecases/room"
	"github.com/hilthontt/letschat/infrastructure/broker"
	"github.com/hilthontt/letschat/presentation/middlewares"
)

type RoomController interface {
	ListRooms(ctx *gin.Context)
	CreateRoom(ctx *gin.Context)
	GetRoom(ctx *gin.Context)
	UpdateRoom(ctx *gin.Context)
	ArchiveRoom(ctx *gin.Context)
	GetUsers(ctx *gin.Context)
	JoinRoom(ctx *gin.Context)
	LeaveRoom(ctx *gin.Context)
}

type roomController struct {
	usecase room.RoomUseCase
	waiter  broker.Waiter
}

func NewRoomController(usecase room.RoomUseCase, waiter broker.Waiter) RoomController {
	return &roomController{
		usecase: usecase,
		waiter:  waiter,
	}
}

func (c *roomController) ListRooms(ctx *gin.Context) {
	user, ok := middlewares.GetUserFromContext(ctx)
	if !ok {
		unauthorized(ctx)
		return
	}

	views, err := c.usecase.List(ctx.Request.Context(), user.ID)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, views)
}

func (c *roomController) CreateRoom(ctx *gin.Context) {
	user, ok := middlewares.GetUserFromContext(ctx)
	if !ok {
		unauthorized(ctx)
		return
	}

	var req CreateRoomRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}

	created, completion, err := c.usecase.Create(ctx.Request.Context(), user, room.CreateInput{
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		Private:     req.Private,
		Password:    req.Password,
	})
	if err != nil {
		respondError(ctx, err)
		return
	}

	c.waiter.Wait(ctx.Request.Context(), completion)
	ctx.JSON(http.StatusCreated, created.ViewFor(user.ID))
}

func (c *roomController) GetRoom(ctx *gin.Context) {
	user, ok := middlewares.GetUserFromContext(ctx)
	if !ok {
		unauthorized(ctx)
		return
	}

	found, err := c.usecase.Get(ctx.Request.Context(), user.ID, ctx.Param("room"))
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, found.ViewFor(user.ID))
}

func (c *roomController) UpdateRoom(ctx *gin.Context) {
	user, ok := middlewares.GetUserFromContext(ctx)
	if !ok {
		unauthorized(ctx)
		return
	}

	var req UpdateRoomRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}

	updated, completion, err := c.usecase.Update(ctx.Request.Context(), user.ID, ctx.Param("room"), room.UpdateInput{
		Name:        req.Name,
		Description: req.Description,
		Password:    req.Password,
	})
	if err != nil {
		respondError(ctx, err)
		return
	}

	c.waiter.Wait(ctx.Request.Context(), completion)
	ctx.JSON(http.StatusOK, updated.ViewFor(user.ID))
}

func (c *roomController) ArchiveRoom(ctx *gin.Context) {
	user, ok := middlewares.GetUserFromContext(ctx)
	if !ok {
		unauthorized(ctx)
		return
	}

	_, completion, err := c.usecase.Archive(ctx.Request.Context(), user.ID, ctx.Param("room"))
	if err != nil {
		respondError(ctx, err)
		return
	}

	c.waiter.Wait(ctx.Request.Context(), completion)
	ctx.Status(http.StatusNoContent)
}

func (c *roomController) GetUsers(ctx *gin.Context) {
	user, ok := middlewares.GetUserFromContext(ctx)
	if !ok {
		unauthorized(ctx)
		return
	}

	users, err := c.usecase.Participants(ctx.Request.Context(), user.ID, ctx.Param("room"))
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, users)
}

// JoinRoom responds after the users:join announce reaches every recipient,
// so the joining client already sees itself in the room.
func (c *roomController) JoinRoom(ctx *gin.Context) {
	user, ok := middlewares.GetUserFromContext(ctx)
	if !ok {
		unauthorized(ctx)
		return
	}

	var req JoinRoomRequest
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			badRequest(ctx, err)
			return
		}
	}

	joined, completion, err := c.usecase.Join(ctx.Request.Context(), user.ID, ctx.Param("room"), req.Password)
	if err != nil {
		respondError(ctx, err)
		return
	}

	c.waiter.Wait(ctx.Request.Context(), completion)
	ctx.JSON(http.StatusOK, joined.ViewFor(user.ID))
}

func (c *roomController) LeaveRoom(ctx *gin.Context) {
	user, ok := middlewares.GetUserFromContext(ctx)
	if !ok {
		unauthorized(ctx)
		return
	}

	completion, err := c.usecase.Leave(ctx.Request.Context(), user.ID, ctx.Param("room"))
	if err != nil {
		respondError(ctx, err)
		return
	}

	c.waiter.Wait(ctx.Request.Context(), completion)
	ctx.Status(http.StatusNoContent)
}

func unauthorized(ctx *gin.Context) {
	ctx.JSON(http.StatusUnauthorized, ErrorResponse{
		Error:   "unauthorized",
		Message: "user not found in context",
	})
}

func badRequest(ctx *gin.Context, err error) {
	ctx.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "invalid_request",
		Message: middlewares.TranslateValidationError(err),
	})
}

func respondError(ctx *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "internal_error"
	message := "Something went wrong while handling the room."

	switch {
	case errors.Is(err, room.ErrRoomNotFound):
		status, code, message = http.StatusNotFound, "not_found", err.Error()
	case errors.Is(err, room.ErrInvalidPassword), errors.Is(err, room.ErrNotOwner):
		status, code, message = http.StatusForbidden, "forbidden", err.Error()
	case errors.Is(err, room.ErrSlugTaken), errors.Is(err, room.ErrRoomArchived):
		status, code, message = http.StatusConflict, "conflict", err.Error()
	case errors.Is(err, room.ErrNotParticipating):
		status, code, message = http.StatusBadRequest, "invalid_request", err.Error()
	default:
		_ = ctx.Error(err)
	}

	ctx.JSON(status, ErrorResponse{
		Error:   code,
		Message: message,
	})
}
