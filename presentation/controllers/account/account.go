package account

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hilthontt/letschat/application/usecases/session"
	"github.com/hilthontt/letschat/application/usecases/user"
	"github.com/hilthontt/letschat/domain/repository"
	"github.com/hilthontt/letschat/infrastructure/broker"
	"github.com/hilthontt/letschat/infrastructure/security"
	"github.com/hilthontt/letschat/presentation/middlewares"
)

const (
	cooldownMessage = "You must wait 60 seconds after logging out to log in again."
	loginFailed     = "There were problems logging you in."
)

type AccountController interface {
	Login(ctx *gin.Context)
	Logout(ctx *gin.Context)
	GetAccount(ctx *gin.Context)
	UpdateProfile(ctx *gin.Context)
}

type accountController struct {
	sessions session.SessionUseCase
	users    user.UserUseCase
	waiter   broker.Waiter
}

func NewAccountController(sessions session.SessionUseCase, users user.UserUseCase, waiter broker.Waiter) AccountController {
	return &accountController{
		sessions: sessions,
		users:    users,
		waiter:   waiter,
	}
}

// Login creates the user's queue before the session exists, so the client
// can start polling as soon as it has the token.
func (c *accountController) Login(ctx *gin.Context) {
	var req LoginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: middlewares.TranslateValidationError(err),
		})
		return
	}

	u, token, err := c.sessions.Login(ctx.Request.Context(), req.Username)
	if err != nil {
		message := loginFailed
		switch {
		case errors.Is(err, session.ErrLoginCooldown):
			message = cooldownMessage
		case errors.Is(err, user.ErrInvalidUsername):
			message = err.Error()
		}
		ctx.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "login_failed",
			Message: message,
		})
		return
	}

	security.SetSessionToken(ctx.Writer, token)
	ctx.JSON(http.StatusOK, LoginResponse{
		Status:  "success",
		Message: "Logging you in...",
		Token:   token,
		User:    u,
	})
}

// Logout does not wait for the queue to be deleted.
func (c *accountController) Logout(ctx *gin.Context) {
	u, exists := middlewares.GetUserFromContext(ctx)
	if !exists {
		ctx.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "user not found in context",
		})
		return
	}

	c.sessions.Logout(ctx.Request.Context(), middlewares.GetSessionFromContext(ctx), u.ID)
	security.ClearSessionToken(ctx.Writer)

	ctx.Status(http.StatusNoContent)
}

func (c *accountController) GetAccount(ctx *gin.Context) {
	u, exists := middlewares.GetUserFromContext(ctx)
	if !exists {
		ctx.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "user not found in context",
		})
		return
	}

	ctx.JSON(http.StatusOK, u)
}

// UpdateProfile responds once the users:update announce and any rename
// leave/join pairs have been delivered.
func (c *accountController) UpdateProfile(ctx *gin.Context) {
	u, exists := middlewares.GetUserFromContext(ctx)
	if !exists {
		ctx.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "user not found in context",
		})
		return
	}

	var req ProfileRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: middlewares.TranslateValidationError(err),
		})
		return
	}

	updated, completion, err := c.users.UpdateProfile(ctx.Request.Context(), u.ID, user.ProfileUpdate{
		Username:    req.Username,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		status, message := http.StatusInternalServerError, "Unable to update your profile."
		switch {
		case errors.Is(err, user.ErrUsernameTaken):
			status, message = http.StatusConflict, err.Error()
		case errors.Is(err, user.ErrInvalidUsername):
			status, message = http.StatusBadRequest, err.Error()
		case errors.Is(err, repository.ErrNotFound):
			status, message = http.StatusNotFound, "user not found"
		}
		ctx.JSON(status, ErrorResponse{
			Error:   "update_failed",
			Message: message,
		})
		return
	}

	c.waiter.Wait(ctx.Request.Context(), completion)
	ctx.JSON(http.StatusOK, updated)
}
