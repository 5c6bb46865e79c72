package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nurpe/rental-contracts/internal/http/middleware"
	"github.com/nurpe/rental-contracts/internal/model"
	"github.com/nurpe/rental-contracts/internal/service"
)

type termsRequest struct {
	MonthlyRent    float64  `json:"monthly_rent"`
	Deposit        float64  `json:"deposit"`
	StartDate      string   `json:"start_date"`
	DurationMonths int      `json:"duration_months"`
	PaymentDay     int      `json:"payment_day"`
	SpecialClauses []string `json:"special_clauses"`
}

func (r *termsRequest) toModel() (*model.ContractTerms, error) {
	if r == nil {
		return nil, nil
	}
	terms := &model.ContractTerms{
		MonthlyRent:    r.MonthlyRent,
		Deposit:        r.Deposit,
		DurationMonths: r.DurationMonths,
		PaymentDay:     r.PaymentDay,
		SpecialClauses: r.SpecialClauses,
	}
	if strings.TrimSpace(r.StartDate) != "" {
		start, err := parseDate(r.StartDate)
		if err != nil {
			return nil, err
		}
		terms.StartDate = start
	}
	return terms, nil
}

func (h *Handler) getContract(c *gin.Context) {
	principal, id, ok := requestContext(c)
	if !ok {
		return
	}
	view, err := h.contracts.Get(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, newProcessView(view))
}

func (h *Handler) getHistory(c *gin.Context) {
	principal, id, ok := requestContext(c)
	if !ok {
		return
	}
	history, err := h.contracts.History(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	if history == nil {
		history = []model.HistoryEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}

func (h *Handler) getStage(c *gin.Context) {
	principal, id, ok := requestContext(c)
	if !ok {
		return
	}
	stage, err := h.contracts.Stage(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, stage)
}

type updateDraftRequest struct {
	Landlord        *model.Party  `json:"landlord"`
	Tenant          *model.Party  `json:"tenant"`
	Terms           *termsRequest `json:"terms"`
	ExpectedVersion int64         `json:"expected_version"`
}

func (h *Handler) updateDraft(c *gin.Context) {
	principal, id, ok := requestContext(c)
	if !ok {
		return
	}
	var req updateDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	terms, err := req.Terms.toModel()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid terms.start_date"})
		return
	}
	p, err := h.contracts.UpdateDraft(c.Request.Context(), principal, id, service.UpdateDraftInput{
		Landlord:        req.Landlord,
		Tenant:          req.Tenant,
		Terms:           terms,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, newProcessResponse(p))
}

type scheduleVisitRequest struct {
	ScheduledAt     string `json:"scheduled_at" binding:"required"`
	ExpectedVersion int64  `json:"expected_version"`
}

func (h *Handler) scheduleVisit(c *gin.Context) {
	principal, id, ok := requestContext(c)
	if !ok {
		return
	}
	var req scheduleVisitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	at, err := parseDate(req.ScheduledAt)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scheduled_at"})
		return
	}
	p, err := h.contracts.ScheduleVisit(c.Request.Context(), principal, id, at, req.ExpectedVersion)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, newProcessResponse(p))
}

func (h *Handler) completeVisit(c *gin.Context) {
	principal, id, ok := requestContext(c)
	if !ok {
		return
	}
	var req versionRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	p, err := h.contracts.CompleteVisit(c.Request.Context(), principal, id, req.ExpectedVersion)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, newProcessResponse(p))
}

func (h *Handler) invite(c *gin.Context) {
	principal, id, ok := requestContext(c)
	if !ok {
		return
	}
	var req versionRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	result, err := h.contracts.Invite(c.Request.Context(), principal, id, req.ExpectedVersion)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"process": newProcessResponse(result.Process),
		"token":   result.Token,
	})
}

type acceptInvitationRequest struct {
	Token string `json:"token" binding:"required"`
}

func (h *Handler) acceptInvitation(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	var req acceptInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := h.contracts.AcceptInvitation(c.Request.Context(), principal, strings.TrimSpace(req.Token))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, newProcessResponse(p))
}

type tenantReviewRequest struct {
	Decision        string `json:"decision" binding:"required"`
	Comment         string `json:"comment"`
	ExpectedVersion int64  `json:"expected_version"`
}

func (h *Handler) tenantReview(c *gin.Context) {
	principal, id, ok := requestContext(c)
	if !ok {
		return
	}
	var req tenantReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := h.contracts.SubmitTenantReview(c.Request.Context(), principal, id, service.TenantReviewInput{
		Decision:        service.TenantReviewDecision(strings.ToLower(strings.TrimSpace(req.Decision))),
		Comment:         req.Comment,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, newProcessResponse(p))
}

type respondObjectionsRequest struct {
	Terms           *termsRequest `json:"terms"`
	Comment         string        `json:"comment"`
	ExpectedVersion int64         `json:"expected_version"`
}

func (h *Handler) respondObjections(c *gin.Context) {
	principal, id, ok := requestContext(c)
	if !ok {
		return
	}
	var req respondObjectionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	terms, err := req.Terms.toModel()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid terms.start_date"})
		return
	}
	p, err := h.contracts.RespondToObjections(c.Request.Context(), principal, id, service.RespondObjectionsInput{
		Terms:           terms,
		Comment:         req.Comment,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, newProcessResponse(p))
}

func (h *Handler) approveContract(c *gin.Context) {
	principal, id, ok := requestContext(c)
	if !ok {
		return
	}
	var req versionRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	p, err := h.contracts.ApproveContract(c.Request.Context(), principal, id, req.ExpectedVersion)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, newProcessResponse(p))
}

func (h *Handler) publish(c *gin.Context) {
	principal, id, ok := requestContext(c)
	if !ok {
		return
	}
	var req versionRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	p, err := h.contracts.Publish(c.Request.Context(), principal, id, req.ExpectedVersion)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, newProcessResponse(p))
}

func (h *Handler) cancelContract(c *gin.Context) {
	principal, id, ok := requestContext(c)
	if !ok {
		return
	}
	var req reasonRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	p, err := h.contracts.Cancel(c.Request.Context(), principal, id, req.Reason, req.ExpectedVersion)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, newProcessResponse(p))
}

func (h *Handler) terminateContract(c *gin.Context) {
	principal, id, ok := requestContext(c)
	if !ok {
		return
	}
	var req reasonRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	p, err := h.contracts.Terminate(c.Request.Context(), principal, id, req.Reason, req.ExpectedVersion)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, newProcessResponse(p))
}
