package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/hilthontt/letschat/presentation/controllers/sqs"
)

func SqsRoutes(router *gin.RouterGroup, controller sqs.SqsController) {
	router.GET("/sqs", controller.GetQueueURL)
	router.GET("/sqs/credentials", controller.GetCredentials)
}
