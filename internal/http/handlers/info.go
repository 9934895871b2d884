package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/pagopa/payment-notice-generator/internal/http/response"
	"github.com/pagopa/payment-notice-generator/internal/platform/envutil"
)

type ServiceInfo struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Environment string `json:"environment"`
}

type InfoHandler struct {
	info ServiceInfo
}

func NewInfoHandler(version string) *InfoHandler {
	return &InfoHandler{
		info: ServiceInfo{
			Name:        "payment-notice-generator",
			Version:     version,
			Environment: envutil.Str("APP_ENV", "dev"),
		},
	}
}

func (h *InfoHandler) Info(c *gin.Context) {
	response.RespondOK(c, h.info)
}
