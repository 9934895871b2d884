package pdfengine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/pagopa/payment-notice-generator/internal/platform/envutil"
	"github.com/pagopa/payment-notice-generator/internal/platform/logger"
)

// Response carries the PDF engine outcome back to the caller. A transport
// failure is folded into a synthetic 500-style response so the caller has a
// single shape to inspect.
type Response struct {
	StatusCode   int
	Pdf          []byte
	ErrorMessage string
}

func (r Response) OK() bool {
	return r.StatusCode == http.StatusOK && len(r.Pdf) > 0
}

// Client renders a notice PDF out of a template archive and its data payload.
type Client interface {
	GeneratePDF(ctx context.Context, template []byte, data []byte) Response
}

type client struct {
	log        *logger.Logger
	baseURL    string
	subKey     string
	httpClient *http.Client
}

func NewClient(log *logger.Logger) (Client, error) {
	baseURL := strings.TrimSpace(os.Getenv("PDF_ENGINE_BASE_URL"))
	if baseURL == "" {
		return nil, fmt.Errorf("missing PDF_ENGINE_BASE_URL")
	}
	baseURL = strings.TrimRight(baseURL, "/")

	timeout := envutil.Duration("PDF_ENGINE_TIMEOUT", 60*time.Second)

	return &client{
		log:        log.With("client", "PdfEngineClient"),
		baseURL:    baseURL,
		subKey:     strings.TrimSpace(os.Getenv("PDF_ENGINE_SUBSCRIPTION_KEY")),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (c *client) GeneratePDF(ctx context.Context, template []byte, data []byte) Response {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	templatePart, err := writer.CreateFormFile("template", "template.zip")
	if err != nil {
		return transportFailure(err)
	}
	if _, err := templatePart.Write(template); err != nil {
		return transportFailure(err)
	}
	dataPart, err := writer.CreateFormFile("data", "data.json")
	if err != nil {
		return transportFailure(err)
	}
	if _, err := dataPart.Write(data); err != nil {
		return transportFailure(err)
	}
	if err := writer.Close(); err != nil {
		return transportFailure(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generate-pdf", &body)
	if err != nil {
		return transportFailure(err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.subKey != "" {
		req.Header.Set("Ocp-Apim-Subscription-Key", c.subKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error("PDF engine request failed", "error", err)
		return transportFailure(err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportFailure(err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return Response{StatusCode: http.StatusOK, Pdf: payload}
	case http.StatusUnauthorized:
		c.log.Error("PDF engine rejected the subscription key")
		return Response{
			StatusCode:   http.StatusUnauthorized,
			ErrorMessage: "Unauthorized call to PDF engine function",
		}
	default:
		c.log.Error("PDF engine returned an error", "status", resp.StatusCode)
		return Response{
			StatusCode:   resp.StatusCode,
			ErrorMessage: string(payload),
		}
	}
}

func transportFailure(err error) Response {
	return Response{
		StatusCode:   http.StatusInternalServerError,
		ErrorMessage: fmt.Sprintf("pdf engine call failed: %v", err),
	}
}
