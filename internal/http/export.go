package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nurpe/rental-contracts/internal/model"
	"github.com/nurpe/rental-contracts/internal/service"
)

type exportFunc func(ctx context.Context, principal model.Principal, processID uuid.UUID) (*service.ExportResult, error)

func (h *Handler) exportXLSX(c *gin.Context) { h.export(c, h.reports.ExportXLSX) }
func (h *Handler) exportPDF(c *gin.Context)  { h.export(c, h.reports.ExportAuditPDF) }

func (h *Handler) export(c *gin.Context, generate exportFunc) {
	principal, id, ok := requestContext(c)
	if !ok {
		return
	}
	result, err := generate(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=\""+result.FileName+"\"")
	c.Data(http.StatusOK, result.ContentType, result.Content)
}
