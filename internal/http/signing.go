package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nurpe/rental-contracts/internal/model"
	"github.com/nurpe/rental-contracts/internal/service"
)

func (h *Handler) signingStatus(c *gin.Context) {
	principal, id, ok := requestContext(c)
	if !ok {
		return
	}
	view, err := h.signings.Status(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, newSigningStatusResponse(view))
}

func (h *Handler) beginSigning(c *gin.Context) {
	principal, id, ok := requestContext(c)
	if !ok {
		return
	}
	role, err := service.ParseSigningRole(c.Param("role"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	rec, err := h.signings.BeginSigning(c.Request.Context(), principal, id, role)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, newSigningRecordResponse(rec))
}

// completeSigning takes the captured payload as produced by the signing
// client, hash included.
func (h *Handler) completeSigning(c *gin.Context) {
	principal, id, ok := requestContext(c)
	if !ok {
		return
	}
	role, err := service.ParseSigningRole(c.Param("role"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	var payload model.SignaturePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	view, err := h.signings.CompleteSigning(c.Request.Context(), principal, id, role, payload)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, newProcessView(view))
}
