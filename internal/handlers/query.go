package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/foliobase/foliobase/internal/compiler"
	"github.com/foliobase/foliobase/pkg/query"
)

// QueryHandler serves the generic data endpoint: one QueryDescriptor in, one
// ResultEnvelope out.
type QueryHandler struct {
	executor *compiler.Executor
}

// NewQueryHandler creates a QueryHandler.
func NewQueryHandler(executor *compiler.Executor) *QueryHandler {
	return &QueryHandler{executor: executor}
}

// Execute handles POST /v1/query.
func (h *QueryHandler) Execute(c *gin.Context) {
	var d query.Descriptor
	if err := c.ShouldBindJSON(&d); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	res := h.executor.Execute(c.Request.Context(), &d)
	status := http.StatusOK
	if res.Error != nil {
		status = res.Error.HTTPStatus()
	}
	c.JSON(status, res)
}
