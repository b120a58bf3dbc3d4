package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/hilthontt/letschat/presentation/controllers/room"
)

func RoomRoutes(router *gin.RouterGroup, controller room.RoomController) {
	router.GET("/rooms", controller.ListRooms)
	router.POST("/rooms", controller.CreateRoom)

	roomGroup := router.Group("/rooms/:room")
	{
		roomGroup.GET("", controller.GetRoom)
		roomGroup.PUT("", controller.UpdateRoom)
		roomGroup.DELETE("", controller.ArchiveRoom)
		roomGroup.GET("/users", controller.GetUsers)
		roomGroup.PUT("/users/me", controller.JoinRoom)
		roomGroup.DELETE("/users/me", controller.LeaveRoom)
	}
}
