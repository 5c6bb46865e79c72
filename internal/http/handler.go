package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nurpe/rental-contracts/internal/http/middleware"
	"github.com/nurpe/rental-contracts/internal/model"
	"github.com/nurpe/rental-contracts/internal/service"
)

type Services struct {
	Matches    *service.MatchService
	Contracts  *service.ContractService
	Checklists *service.ChecklistService
	Signings   *service.SigningService
	Reports    *service.ReportService
}

type Handler struct {
	matches    *service.MatchService
	contracts  *service.ContractService
	checklists *service.ChecklistService
	signings   *service.SigningService
	reports    *service.ReportService
	log        zerolog.Logger
}

func NewHandler(services Services, log zerolog.Logger) *Handler {
	return &Handler{
		matches:    services.Matches,
		contracts:  services.Contracts,
		checklists: services.Checklists,
		signings:   services.Signings,
		reports:    services.Reports,
		log:        log,
	}
}

func (h *Handler) Register(router *gin.Engine, authMiddleware gin.HandlerFunc) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	protected := router.Group("/")
	protected.Use(authMiddleware)

	protected.POST("/properties/:id/matches", h.submitMatch)
	protected.GET("/properties/:id/matches", h.listPropertyMatches)
	protected.GET("/matches", h.listMyMatches)
	protected.GET("/matches/:id", h.getMatch)
	protected.POST("/matches/:id/view", h.markMatchViewed)
	protected.POST("/matches/:id/accept", h.acceptMatch)
	protected.POST("/matches/:id/reject", h.rejectMatch)
	protected.POST("/matches/:id/cancel", h.cancelMatch)

	protected.GET("/contracts/:id", h.getContract)
	protected.GET("/contracts/:id/history", h.getHistory)
	protected.GET("/contracts/:id/stage", h.getStage)
	protected.PUT("/contracts/:id/draft", h.updateDraft)
	protected.POST("/contracts/:id/visit", h.scheduleVisit)
	protected.POST("/contracts/:id/visit/complete", h.completeVisit)
	protected.POST("/contracts/:id/invite", h.invite)
	protected.POST("/invitations/accept", h.acceptInvitation)
	protected.POST("/contracts/:id/tenant-review", h.tenantReview)
	protected.POST("/contracts/:id/objections/respond", h.respondObjections)
	protected.POST("/contracts/:id/approve", h.approveContract)
	protected.POST("/contracts/:id/publish", h.publish)
	protected.POST("/contracts/:id/cancel", h.cancelContract)
	protected.POST("/contracts/:id/terminate", h.terminateContract)

	protected.POST("/contracts/:id/checklist", h.initializeChecklist)
	protected.GET("/contracts/:id/checklist", h.getChecklist)
	protected.POST("/contracts/:id/documents", h.uploadDocument)
	protected.POST("/contracts/:id/documents/request", h.requestDocument)
	protected.POST("/documents/:id/review", h.reviewDocument)
	protected.POST("/documents/:id/reopen", h.reopenDocument)
	protected.DELETE("/documents/:id", h.deleteDocument)

	protected.GET("/contracts/:id/signing", h.signingStatus)
	protected.POST("/contracts/:id/signing/:role/begin", h.beginSigning)
	protected.POST("/contracts/:id/signing/:role/complete", h.completeSigning)

	protected.GET("/contracts/:id/export/xlsx", h.exportXLSX)
	protected.GET("/contracts/:id/export/pdf", h.exportPDF)
}

// versionRequest is the body of commands that carry nothing but the
// optimistic concurrency guard.
type versionRequest struct {
	ExpectedVersion int64 `json:"expected_version"`
}

type reasonRequest struct {
	Reason          string `json:"reason"`
	ExpectedVersion int64  `json:"expected_version"`
}

// requestContext resolves the principal and the :id path parameter.
func requestContext(c *gin.Context) (model.Principal, uuid.UUID, bool) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return model.Principal{}, uuid.Nil, false
	}
	id, err := uuid.Parse(strings.TrimSpace(c.Param("id")))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return model.Principal{}, uuid.Nil, false
	}
	return principal, id, true
}

// bindOptionalJSON binds the body when there is one. Commands without a body
// skip the version check.
func bindOptionalJSON(c *gin.Context, dst interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

func (h *Handler) handleError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidState), errors.Is(err, service.ErrOrderViolation):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrPermissionDenied):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, service.ErrExpired), errors.Is(err, service.ErrTokenReused):
		status = http.StatusGone
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Str("request_id", middleware.GetRequestID(c)).Msg("request failed")
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	body := gin.H{"error": err.Error()}
	if missing := service.MissingOf(err); len(missing) > 0 {
		body["missing"] = missing
	}
	c.JSON(status, body)
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, service.ErrInvalidInput
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02",
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, service.ErrInvalidInput
}
