package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/hilthontt/letschat/presentation/controllers/file"
)

func FilesRoutes(router *gin.RouterGroup, controller file.FilesController, postLimiter gin.HandlerFunc) {
	filesGroup := router.Group("/rooms/:room/files")
	{
		filesGroup.GET("", controller.GetRoomFiles)
		filesGroup.POST("", postLimiter, controller.CreateFile)
	}
}
