package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pagopa/payment-notice-generator/internal/platform/apperr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondAppError maps a pipeline error onto the wire through the error
// catalog: validation 400, folder/template 404, institution 412, template
// storage 503, everything else 500.
func RespondAppError(c *gin.Context, err error) {
	RespondError(c, apperr.StatusOf(err), apperr.CodeOf(err), err)
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
