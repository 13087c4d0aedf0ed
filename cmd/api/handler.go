package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	mailDelivery "mailbridge/internal/mail/delivery"
	mailUsecasePkg "mailbridge/internal/mail/usecase"
	"mailbridge/pkg/config"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	mailUsecase mailUsecasePkg.MailUsecase
	config      *config.Config
	server      *http.Server
}

func NewHandler(mailUc mailUsecasePkg.MailUsecase, cfg *config.Config) *Handler {
	h := &Handler{
		mailUsecase: mailUc,
		config:      cfg,
	}
	h.server = &http.Server{
		Handler:           h.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return h
}

// Engine builds the gin engine with middleware and routes
func (h *Handler) Engine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.MaxMultipartMemory = h.config.MaxUploadBytes

	// CORS middleware
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	mailHandler := mailDelivery.NewMailHandler(h.mailUsecase, h.config.MaxUploadBytes)
	SetupRoutes(r, mailHandler, h.config.APITokenSecret)
	return r
}

// Start serves until Shutdown is called
func (h *Handler) Start(addr string) error {
	h.server.Addr = addr
	if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (h *Handler) Shutdown(ctx context.Context) error {
	log.Println("Shutting down HTTP server")
	return h.server.Shutdown(ctx)
}
