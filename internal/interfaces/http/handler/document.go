package handler

import (
	"github.com/gin-gonic/gin"

	endorsementapp "github.com/averbaflow/backend/internal/application/endorsement"
)

// DocumentHandler handles document ledger API endpoints
type DocumentHandler struct {
	BaseHandler
	documentService *endorsementapp.DocumentService
}

// NewDocumentHandler creates a new DocumentHandler
func NewDocumentHandler(documentService *endorsementapp.DocumentService) *DocumentHandler {
	return &DocumentHandler{
		documentService: documentService,
	}
}

// Search queries the document ledger by tenant, issue date window,
// status or document number
func (h *DocumentHandler) Search(c *gin.Context) {
	var req endorsementapp.SearchRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	resp, err := h.documentService.Search(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, resp)
}

// Resubmit queues the given documents for another submission attempt
func (h *DocumentHandler) Resubmit(c *gin.Context) {
	var req endorsementapp.ResubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	resp, err := h.documentService.Resubmit(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, resp)
}

// Dashboard returns today's processing counts and documents
func (h *DocumentHandler) Dashboard(c *gin.Context) {
	resp, err := h.documentService.Dashboard(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, resp)
}
