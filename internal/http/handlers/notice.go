package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pagopa/payment-notice-generator/internal/domain"
	"github.com/pagopa/payment-notice-generator/internal/http/response"
	"github.com/pagopa/payment-notice-generator/internal/platform/apperr"
	"github.com/pagopa/payment-notice-generator/internal/platform/logger"
	"github.com/pagopa/payment-notice-generator/internal/services"
	"github.com/pagopa/payment-notice-generator/internal/storage"
)

type NoticeHandler struct {
	log       *logger.Logger
	svc       services.GenerationService
	templates storage.TemplateStorage
}

func NewNoticeHandler(log *logger.Logger, svc services.GenerationService, templates storage.TemplateStorage) *NoticeHandler {
	return &NoticeHandler{
		log:       log.With("handler", "NoticeHandler"),
		svc:       svc,
		templates: templates,
	}
}

// Generate renders one notice synchronously and streams the PDF back. An
// optional folderId query parameter attaches the item to a batch; errorId
// marks the call as the retry of a recorded failure.
func (h *NoticeHandler) Generate(c *gin.Context) {
	var item domain.NoticeGenerationRequestItem
	if err := c.ShouldBindJSON(&item); err != nil {
		response.RespondAppError(c, apperr.Wrap(apperr.MessageValidationError, err))
		return
	}
	if item.TemplateID == "" {
		response.RespondAppError(c, apperr.New(apperr.MessageValidationError, "missing template id"))
		return
	}

	folderID := c.Query("folderId")
	errorID := c.Query("errorId")

	pdf, err := h.svc.Generate(c.Request.Context(), item, folderID, errorID)
	if err != nil {
		response.RespondAppError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="notice.pdf"`)
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// GetTemplates lists the installed templates and their metadata.
func (h *NoticeHandler) GetTemplates(c *gin.Context) {
	templates, err := h.templates.GetTemplates(c.Request.Context())
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, templates)
}
