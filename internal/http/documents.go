package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nurpe/rental-contracts/internal/model"
	"github.com/nurpe/rental-contracts/internal/service"
)

type initializeChecklistRequest struct {
	GuaranteeType   string `json:"guarantee_type" binding:"required"`
	ExpectedVersion int64  `json:"expected_version"`
}

func (h *Handler) initializeChecklist(c *gin.Context) {
	principal, id, ok := requestContext(c)
	if !ok {
		return
	}
	var req initializeChecklistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	guarantee := model.GuaranteeType(strings.ToLower(strings.TrimSpace(req.GuaranteeType)))
	view, err := h.checklists.Initialize(c.Request.Context(), principal, id, guarantee, req.ExpectedVersion)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newChecklistResponse(view))
}

func (h *Handler) getChecklist(c *gin.Context) {
	principal, id, ok := requestContext(c)
	if !ok {
		return
	}
	view, err := h.checklists.Checklist(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, newChecklistResponse(view))
}

// uploadDocument takes a multipart form with the file under "file" and the
// target slot as slot_id or slot_type.
func (h *Handler) uploadDocument(c *gin.Context) {
	principal, id, ok := requestContext(c)
	if !ok {
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	var slotID uuid.UUID
	if raw := strings.TrimSpace(c.PostForm("slot_id")); raw != "" {
		slotID, err = uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid slot_id"})
			return
		}
	}
	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read file"})
		return
	}
	defer file.Close()

	slot, err := h.checklists.Upload(c.Request.Context(), principal, service.UploadInput{
		ProcessID:         id,
		SlotID:            slotID,
		SlotType:          c.PostForm("slot_type"),
		CustomName:        c.PostForm("custom_name"),
		CustomDescription: c.PostForm("custom_description"),
		FileName:          header.Filename,
		ContentType:       header.Header.Get("Content-Type"),
		Size:              header.Size,
		Content:           file,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newSlotResponse(slot))
}

type requestDocumentRequest struct {
	SlotType          string `json:"slot_type" binding:"required"`
	CustomName        string `json:"custom_name"`
	CustomDescription string `json:"custom_description"`
}

func (h *Handler) requestDocument(c *gin.Context) {
	principal, id, ok := requestContext(c)
	if !ok {
		return
	}
	var req requestDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	slot, err := h.checklists.RequestDocument(c.Request.Context(), principal, service.RequestDocumentInput{
		ProcessID:         id,
		SlotType:          req.SlotType,
		CustomName:        req.CustomName,
		CustomDescription: req.CustomDescription,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, newSlotResponse(slot))
}

type reviewDocumentRequest struct {
	Decision        string `json:"decision" binding:"required"`
	Notes           string `json:"notes"`
	ExpectedVersion int64  `json:"expected_version"`
}

func (h *Handler) reviewDocument(c *gin.Context) {
	principal, slotID, ok := requestContext(c)
	if !ok {
		return
	}
	var req reviewDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	slot, err := h.checklists.Review(c.Request.Context(), principal, service.ReviewInput{
		SlotID:          slotID,
		Decision:        model.ReviewDecision(strings.ToLower(strings.TrimSpace(req.Decision))),
		Notes:           req.Notes,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, newSlotResponse(slot))
}

type reopenDocumentRequest struct {
	Notes           string `json:"notes" binding:"required"`
	ExpectedVersion int64  `json:"expected_version"`
}

func (h *Handler) reopenDocument(c *gin.Context) {
	principal, slotID, ok := requestContext(c)
	if !ok {
		return
	}
	var req reopenDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	slot, err := h.checklists.Reopen(c.Request.Context(), principal, slotID, req.Notes, req.ExpectedVersion)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, newSlotResponse(slot))
}

func (h *Handler) deleteDocument(c *gin.Context) {
	principal, slotID, ok := requestContext(c)
	if !ok {
		return
	}
	var req versionRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	if err := h.checklists.DeleteDocument(c.Request.Context(), principal, slotID, req.ExpectedVersion); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
