package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cvix/internal/templates"
)

// TemplateLister lists the registered templates.
type TemplateLister interface {
	Templates() []templates.Metadata
}

type TemplatesHandler struct {
	lister TemplateLister
}

func NewTemplatesHandler(lister TemplateLister) *TemplatesHandler {
	return &TemplatesHandler{lister: lister}
}

// GET /v1/templates
func (h *TemplatesHandler) List(c *gin.Context) {
	list := h.lister.Templates()
	if list == nil {
		list = []templates.Metadata{}
	}
	c.JSON(http.StatusOK, gin.H{"templates": list})
}
