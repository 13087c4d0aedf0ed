package api

import (
	"net/http"

	"mailbridge/internal/auth/delivery"
	mailDelivery "mailbridge/internal/mail/delivery"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, mailHandler *mailDelivery.MailHandler, apiTokenSecret string) {
	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// Mail routes (protected when API_TOKEN_SECRET is set)
		mail := api.Group("/mail")
		mail.Use(delivery.AuthMiddleware(apiTokenSecret))
		{
			mail.POST("/send", mailHandler.SendEmail)
			mail.POST("/bulk", mailHandler.SendBulk)
			mail.GET("/sync", mailHandler.Synchronize)
			mail.GET("/sent", mailHandler.ListSent)
			mail.GET("/sent/:id/attachment", mailHandler.GetSentAttachment)
			mail.GET("/inbound", mailHandler.ListInbound)
			mail.POST("/watch", mailHandler.WatchMailbox)
		}
	}
}
