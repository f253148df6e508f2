package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/oriadata/orgmaster/internal/domain"
	domainagg "github.com/oriadata/orgmaster/internal/domain/aggregates"
	"github.com/oriadata/orgmaster/internal/http/response"
	"github.com/oriadata/orgmaster/internal/services"
)

type RelationshipHandler struct {
	relationships domainagg.RelationshipAggregate
	reporting     services.ReportingService
}

func NewRelationshipHandler(relationships domainagg.RelationshipAggregate, reporting services.ReportingService) *RelationshipHandler {
	return &RelationshipHandler{relationships: relationships, reporting: reporting}
}

type linkRequest struct {
	Ext1      int64  `json:"ext1" binding:"required"`
	Ext2      int64  `json:"ext2" binding:"required"`
	RelTypeID int64  `json:"rel_type_id" binding:"required"`
	SourceID  int64  `json:"source_id" binding:"required"`
	Comment   string `json:"comment"`
}

func (h *RelationshipHandler) Link(c *gin.Context) {
	var req linkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	res, err := h.relationships.Link(c.Request.Context(), domainagg.LinkInput{
		Ext1:      req.Ext1,
		Ext2:      req.Ext2,
		RelTypeID: req.RelTypeID,
		SourceID:  req.SourceID,
		Comment:   req.Comment,
	})
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondCreated(c, res)
}

type unlinkRequest struct {
	Ext1      int64  `json:"ext1" binding:"required"`
	Ext2      int64  `json:"ext2"`
	Ext2All   bool   `json:"ext2_all"`
	RelTypeID int64  `json:"rel_type_id"`
	SourceID  int64  `json:"source_id" binding:"required"`
	Comment   string `json:"comment"`
}

func (h *RelationshipHandler) Unlink(c *gin.Context) {
	var req unlinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	res, err := h.relationships.Unlink(c.Request.Context(), domainagg.UnlinkInput{
		Ext1:      req.Ext1,
		Ext2:      req.Ext2,
		Ext2All:   req.Ext2All,
		RelTypeID: req.RelTypeID,
		SourceID:  req.SourceID,
		Comment:   req.Comment,
	})
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, res)
}

func directionQuery(c *gin.Context) domain.Direction {
	raw := strings.TrimSpace(strings.ToLower(c.Query("direction")))
	if raw == "" {
		return domain.DirectionBoth
	}
	return domain.Direction(raw)
}

func (h *RelationshipHandler) Neighbors(c *gin.Context) {
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
	relTypeID, _ := strconv.ParseInt(c.Query("rel_type_id"), 10, 64)
	rows, err := h.reporting.Neighbors(c.Request.Context(), id, relTypeID, directionQuery(c), at)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"neighbors": rows})
}

func (h *RelationshipHandler) Walk(c *gin.Context) {
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
	relTypeID, _ := strconv.ParseInt(c.Query("rel_type_id"), 10, 64)
	maxDepth, _ := strconv.Atoi(c.DefaultQuery("max_depth", "3"))
	rows, err := h.reporting.Walk(c.Request.Context(), id, relTypeID, directionQuery(c), maxDepth, at)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"steps": rows})
}
