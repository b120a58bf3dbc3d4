package users

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hilthontt/letschat/application/usecases/user"
	"github.com/hilthontt/letschat/domain/model"
	"github.com/hilthontt/letschat/domain/repository"
	"github.com/hilthontt/letschat/presentation/middlewares"
)

type UsersController interface {
	List(ctx *gin.Context)
	Get(ctx *gin.Context)
}

type usersController struct {
	users user.UserUseCase
}

func NewUsersController(users user.UserUseCase) UsersController {
	return &usersController{users: users}
}

// List answers GET /users. isActive=true keeps only users with a recent
// heartbeat.
func (c *usersController) List(ctx *gin.Context) {
	var req ListRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: middlewares.TranslateValidationError(err),
		})
		return
	}

	list, err := c.users.List(ctx.Request.Context(), req.IsActive)
	if err != nil {
		_ = ctx.Error(err)
		ctx.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "list_failed",
			Message: "Unable to list users.",
		})
		return
	}

	ctx.JSON(http.StatusOK, page(list, req.Skip, req.Take))
}

func page(list []*model.User, skip, take int) []*model.User {
	if skip >= len(list) {
		return []*model.User{}
	}
	list = list[skip:]
	if take > 0 && take < len(list) {
		list = list[:take]
	}
	return list
}

// Get answers GET /users/:id, where id is a user id or a username.
func (c *usersController) Get(ctx *gin.Context) {
	u, err := c.users.GetByIdentifier(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			ctx.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "not_found",
				Message: "user not found",
			})
			return
		}
		_ = ctx.Error(err)
		ctx.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "lookup_failed",
			Message: "Unable to look up user.",
		})
		return
	}

	ctx.JSON(http.StatusOK, u)
}
