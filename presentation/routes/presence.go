package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/hilthontt/letschat/presentation/controllers/presence"
)

func PresenceRoutes(router *gin.RouterGroup, controller presence.PresenceController) {
	router.POST("/presence", controller.Heartbeat)
	router.DELETE("/presence", controller.Clear)
}
