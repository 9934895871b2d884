package http

import (
	"github.com/gin-gonic/gin"

	httpH "github.com/pagopa/payment-notice-generator/internal/http/handlers"
	httpMW "github.com/pagopa/payment-notice-generator/internal/http/middleware"
	"github.com/pagopa/payment-notice-generator/internal/platform/logger"
)

type RouterConfig struct {
	Log *logger.Logger

	NoticeHandler *httpH.NoticeHandler
	HealthHandler *httpH.HealthHandler
	InfoHandler   *httpH.InfoHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS())

	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.InfoHandler != nil {
		r.GET("/info", cfg.InfoHandler.Info)
	}

	if cfg.NoticeHandler != nil {
		notices := r.Group("/notices")
		{
			notices.POST("/generate", cfg.NoticeHandler.Generate)
			notices.GET("/templates", cfg.NoticeHandler.GetTemplates)
		}
	}

	return r
}
