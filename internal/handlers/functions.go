package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/foliobase/foliobase/internal/functions"
	"github.com/foliobase/foliobase/internal/middleware"
)

// FunctionHandler invokes registered server functions.
type FunctionHandler struct {
	registry *functions.Registry
}

// NewFunctionHandler creates a FunctionHandler.
func NewFunctionHandler(registry *functions.Registry) *FunctionHandler {
	return &FunctionHandler{registry: registry}
}

// Invoke handles POST /v1/functions/:name.
func (h *FunctionHandler) Invoke(c *gin.Context) {
	principal, ok := middleware.RequirePrincipal(c)
	if !ok {
		return
	}

	var payload []byte
	if c.Request.Body != nil {
		payload, _ = io.ReadAll(c.Request.Body)
	}

	result, err := h.registry.Invoke(c.Request.Context(), c.Param("name"), principal, payload)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

// List handles GET /v1/functions.
func (h *FunctionHandler) List(c *gin.Context) {
	if _, ok := middleware.RequirePrincipal(c); !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"functions": h.registry.Names()})
}
