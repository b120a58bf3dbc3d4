package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/hilthontt/letschat/presentation/controllers/account"
)

// AccountRoutes registers login on the public group and the rest on the
// authenticated one.
func AccountRoutes(public, authed *gin.RouterGroup, controller account.AccountController, loginLimiter gin.HandlerFunc) {
	public.POST("/account/login", loginLimiter, controller.Login)

	authed.GET("/account", controller.GetAccount)
	authed.POST("/account/profile", controller.UpdateProfile)
	authed.POST("/account/logout", controller.Logout)
	authed.GET("/logout", controller.Logout)
}
