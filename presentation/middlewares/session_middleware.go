package middlewares

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hilthontt/letschat/application/usecases/session"
	"github.com/hilthontt/letschat/domain/model"
	"github.com/hilthontt/letschat/infrastructure/logger"
	"github.com/hilthontt/letschat/infrastructure/security"
	"go.uber.org/zap"
)

const (
	UserContextKey    = "user"
	SessionContextKey = "session"
)

// RequireLogin resolves the session token to a user and rejects the request
// when there is none.
func RequireLogin(sessionUC session.SessionUseCase, logger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := security.GetSessionToken(c.Request)

		user, err := sessionUC.Authenticate(c.Request.Context(), token)
		if err != nil {
			if !errors.Is(err, session.ErrInvalidToken) {
				logger.Error("failed to authenticate session", zap.Error(err))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":   "internal_server_error",
					"message": "Failed to load user session",
				})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "You must be logged in.",
			})
			return
		}

		c.Set(UserContextKey, user)
		c.Set(SessionContextKey, token)

		c.Next()
	}
}

func GetUserFromContext(c *gin.Context) (*model.User, bool) {
	user, exists := c.Get(UserContextKey)
	if !exists {
		return nil, false
	}

	u, ok := user.(*model.User)
	return u, ok
}

func GetSessionFromContext(c *gin.Context) string {
	return c.GetString(SessionContextKey)
}
