package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nurpe/rental-contracts/internal/http/middleware"
	"github.com/nurpe/rental-contracts/internal/model"
	"github.com/nurpe/rental-contracts/internal/service"
)

type submitMatchRequest struct {
	Priority string                 `json:"priority"`
	Profile  model.ApplicantProfile `json:"profile" binding:"required"`
	Message  string                 `json:"message"`
}

func (h *Handler) submitMatch(c *gin.Context) {
	principal, propertyID, ok := requestContext(c)
	if !ok {
		return
	}
	var req submitMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	match, err := h.matches.Submit(c.Request.Context(), principal, service.SubmitMatchInput{
		PropertyID: propertyID,
		Priority:   model.MatchPriority(req.Priority),
		Profile:    req.Profile,
		Message:    req.Message,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newMatchResponse(match))
}

func (h *Handler) listPropertyMatches(c *gin.Context) {
	principal, propertyID, ok := requestContext(c)
	if !ok {
		return
	}
	matches, err := h.matches.ListForProperty(c.Request.Context(), principal, propertyID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"matches": newMatchList(matches)})
}

func (h *Handler) listMyMatches(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	matches, err := h.matches.ListForTenant(c.Request.Context(), principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"matches": newMatchList(matches)})
}

type matchCommand func(ctx context.Context, principal model.Principal, id uuid.UUID) (*model.MatchRequest, error)

func (h *Handler) runMatchCommand(c *gin.Context, cmd matchCommand) {
	principal, id, ok := requestContext(c)
	if !ok {
		return
	}
	match, err := cmd(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, newMatchResponse(match))
}

func (h *Handler) getMatch(c *gin.Context)        { h.runMatchCommand(c, h.matches.Get) }
func (h *Handler) markMatchViewed(c *gin.Context) { h.runMatchCommand(c, h.matches.MarkViewed) }
func (h *Handler) rejectMatch(c *gin.Context)     { h.runMatchCommand(c, h.matches.Reject) }
func (h *Handler) cancelMatch(c *gin.Context)     { h.runMatchCommand(c, h.matches.Cancel) }

func (h *Handler) acceptMatch(c *gin.Context) {
	principal, id, ok := requestContext(c)
	if !ok {
		return
	}
	result, err := h.matches.Accept(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"match":   newMatchResponse(result.Match),
		"process": newProcessResponse(result.Process),
	})
}
