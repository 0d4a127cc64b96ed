package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"cvix/internal/api/middleware"
	"cvix/internal/api/respond"
	"cvix/internal/generation"
	"cvix/internal/generr"
	"cvix/internal/resume"
)

// Generator produces a document for one request.
type Generator interface {
	Generate(ctx context.Context, req generation.Request) (*generation.Document, error)
}

// GenerateHandler serves POST /v1/resume/generate.
type GenerateHandler struct {
	generator Generator
	maxBytes  int64
	timeout   time.Duration
}

func NewGenerateHandler(generator Generator, maxBytes int64, timeout time.Duration) *GenerateHandler {
	if maxBytes <= 0 || maxBytes > resume.MaxPayloadBytes {
		maxBytes = resume.MaxPayloadBytes
	}
	return &GenerateHandler{generator: generator, maxBytes: maxBytes, timeout: timeout}
}

type generateRequest struct {
	TemplateID string         `json:"templateId"`
	Locale     string         `json:"locale"`
	Resume     *resume.Resume `json:"resume"`
}

// POST /v1/resume/generate
// Validates and compiles the résumé and answers with the PDF itself; nothing is persisted.
func (h *GenerateHandler) Generate(c *gin.Context) {
	receivedAt := time.Now()

	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, h.maxBytes+1))
	if err != nil {
		if respond.IsBodyTooLarge(err) {
			respond.Generation(c, resume.CheckPayloadSizeLimit(int(h.maxBytes)+1, int(h.maxBytes)))
			return
		}
		invalidBody(c)
		return
	}
	if err := resume.CheckPayloadSizeLimit(len(raw), int(h.maxBytes)); err != nil {
		respond.Generation(c, err)
		return
	}

	var body generateRequest
	if err := json.Unmarshal(raw, &body); err != nil {
		invalidBody(c)
		return
	}
	body.TemplateID = strings.TrimSpace(body.TemplateID)
	if body.TemplateID == "" {
		respond.Generation(c, generr.Validation("template id is required",
			generr.FieldError{Field: "templateId", Rule: "required"}))
		return
	}

	locale := strings.TrimSpace(body.Locale)
	if locale == "" {
		locale = middleware.GetLocale(c)
	}

	ctx := c.Request.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	doc, err := h.generator.Generate(ctx, generation.Request{
		TemplateID:    body.TemplateID,
		Locale:        locale,
		Resume:        body.Resume,
		CallerID:      middleware.CallerID(c),
		CorrelationID: middleware.GetCorrelationID(c),
		ReceivedAt:    receivedAt,
		PayloadBytes:  len(raw),
	})
	if err != nil {
		respond.Generation(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="resume-%s-%s.pdf"`, doc.TemplateID, doc.Locale))
	c.Header("X-Generation-Duration-Ms", strconv.FormatInt(doc.Duration.Milliseconds(), 10))
	if doc.Pages > 0 {
		c.Header("X-Page-Count", strconv.Itoa(doc.Pages))
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "application/pdf", doc.PDF)
}
