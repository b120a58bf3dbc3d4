package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/hilthontt/letschat/presentation/controllers/message"
)

func MessageRoutes(router *gin.RouterGroup, controller message.MessageController, postLimiter gin.HandlerFunc) {
	router.GET("/rooms/:room/messages", controller.GetMessages)
	router.POST("/rooms/:room/messages", postLimiter, controller.SendMessage)
}
