package file

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hilthontt/letschat/application/usecases/file"
	"github.com/hilthontt/letschat/infrastructure/broker"
	"github.com/hilthontt/letschat/presentation/middlewares"
)

type FilesController interface {
	CreateFile(ctx *gin.Context)
	GetRoomFiles(ctx *gin.Context)
}

type filesController struct {
	usecase file.FileUseCase
	waiter  broker.Waiter
}

func NewFilesController(usecase file.FileUseCase, waiter broker.Waiter) FilesController {
	return &filesController{
		usecase: usecase,
		waiter:  waiter,
	}
}

func (c *filesController) CreateFile(ctx *gin.Context) {
	user, exists := middlewares.GetUserFromContext(ctx)
	if !exists {
		ctx.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "user not found in context",
		})
		return
	}

	var req CreateFileRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: middlewares.TranslateValidationError(err),
		})
		return
	}

	created, completion, err := c.usecase.Create(ctx.Request.Context(), user, ctx.Param("room"), file.Input{
		Name: req.Name,
		Type: req.Type,
		Size: req.Size,
		URL:  req.URL,
		Post: req.Post,
	})
	if err != nil {
		respondError(ctx, err)
		return
	}

	c.waiter.Wait(ctx.Request.Context(), completion)
	ctx.JSON(http.StatusCreated, created)
}

func (c *filesController) GetRoomFiles(ctx *gin.Context) {
	user, exists := middlewares.GetUserFromContext(ctx)
	if !exists {
		ctx.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "user not found in context",
		})
		return
	}

	files, err := c.usecase.List(ctx.Request.Context(), user.ID, ctx.Param("room"))
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, files)
}

func respondError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, file.ErrRoomNotFound):
		ctx.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: err.Error()})
	case errors.Is(err, file.ErrForbidden):
		ctx.JSON(http.StatusForbidden, ErrorResponse{Error: "forbidden", Message: err.Error()})
	case errors.Is(err, file.ErrInvalidFile):
		ctx.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: err.Error()})
	default:
		_ = ctx.Error(err)
		ctx.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "failed to handle file request",
		})
	}
}
