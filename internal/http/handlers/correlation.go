package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	domainagg "github.com/oriadata/orgmaster/internal/domain/aggregates"
	"github.com/oriadata/orgmaster/internal/http/response"
	"github.com/oriadata/orgmaster/internal/services"
)

type CorrelationHandler struct {
	correlations domainagg.CorrelationAggregate
	reporting    services.ReportingService
}

func NewCorrelationHandler(correlations domainagg.CorrelationAggregate, reporting services.ReportingService) *CorrelationHandler {
	return &CorrelationHandler{correlations: correlations, reporting: reporting}
}

type correlateRequest struct {
	MasterID int64  `json:"master_id" binding:"required"`
	SchemeID int64  `json:"scheme_id" binding:"required"`
	OtherID  string `json:"other_id" binding:"required"`
	SourceID int64  `json:"source_id" binding:"required"`
	Comment  string `json:"comment"`
	Override bool   `json:"override"`
}

func (h *CorrelationHandler) Correlate(c *gin.Context) {
	var req correlateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	res, err := h.correlations.Correlate(c.Request.Context(), domainagg.CorrelateInput{
		MasterID: req.MasterID,
		SchemeID: req.SchemeID,
		OtherID:  req.OtherID,
		SourceID: req.SourceID,
		Comment:  req.Comment,
		Override: req.Override,
	})
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondCreated(c, res)
}

type retireCorrelationRequest struct {
	MasterID int64  `json:"master_id" binding:"required"`
	SchemeID int64  `json:"scheme_id"`
	OtherID  string `json:"other_id" binding:"required"`
	SourceID int64  `json:"source_id" binding:"required"`
	Comment  string `json:"comment"`
}

func (h *CorrelationHandler) Retire(c *gin.Context) {
	var req retireCorrelationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	res, err := h.correlations.Retire(c.Request.Context(), domainagg.RetireCorrelationInput{
		MasterID: req.MasterID,
		SchemeID: req.SchemeID,
		OtherID:  req.OtherID,
		SourceID: req.SourceID,
		Comment:  req.Comment,
	})
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, res)
}

// Resolve answers "which master org is scheme id X?". A miss is 404 with
// code not_found; feeds use it to decide create-vs-update.
func (h *CorrelationHandler) Resolve(c *gin.Context) {
	schemeID, err := strconv.ParseInt(c.Query("scheme_id"), 10, 64)
	if err != nil || schemeID <= 0 {
		response.RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	otherID := strings.TrimSpace(c.Query("other_id"))
	if otherID == "" {
		response.RespondError(c, http.StatusBadRequest, "validation", nil)
		return
	}
	at, err := asOfQuery(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	masterID, err := h.reporting.Resolve(c.Request.Context(), schemeID, otherID, at)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	if masterID == 0 {
		response.RespondError(c, http.StatusNotFound, "not_found", nil)
		return
	}
	response.RespondOK(c, gin.H{"master_id": masterID})
}

func (h *CorrelationHandler) List(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	at, err := asOfQuery(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	rows, err := h.reporting.CorrelationsOf(c.Request.Context(), id, at)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"correlations": rows})
}
