package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/oriadata/orgmaster/internal/http/response"
	"github.com/oriadata/orgmaster/internal/services"
)

type IngestHandler struct {
	ingest services.IngestService
}

func NewIngestHandler(ingest services.IngestService) *IngestHandler {
	return &IngestHandler{ingest: ingest}
}

type submitBatchRequest struct {
	SourceID    int64                 `json:"source_id" binding:"required"`
	SchemeID    int64                 `json:"scheme_id" binding:"required"`
	Records     []services.FeedRecord `json:"records" binding:"required"`
	Parallelism int                   `json:"parallelism"`
}

func (h *IngestHandler) SubmitBatch(c *gin.Context) {
	var req submitBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	res, err := h.ingest.SubmitBatch(c.Request.Context(), services.FeedBatchInput{
		SourceID:    req.SourceID,
		SchemeID:    req.SchemeID,
		Records:     req.Records,
		Parallelism: req.Parallelism,
	})
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondCreated(c, res)
}

func (h *IngestHandler) GetBatchRecords(c *gin.Context) {
	batchID, err := uuid.Parse(c.Param("batch_id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	rows, err := h.ingest.GetBatchRecords(c.Request.Context(), batchID)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"records": rows})
}
