package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/hilthontt/letschat/presentation/controllers/users"
)

func UsersRoutes(router *gin.RouterGroup, controller users.UsersController) {
	router.GET("/users", controller.List)
	router.GET("/users/:id", controller.Get)
}
