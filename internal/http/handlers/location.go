package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	domainagg "github.com/oriadata/orgmaster/internal/domain/aggregates"
	"github.com/oriadata/orgmaster/internal/http/response"
	"github.com/oriadata/orgmaster/internal/services"
)

type LocationHandler struct {
	locations domainagg.LocationAggregate
	reporting services.ReportingService
}

func NewLocationHandler(locations domainagg.LocationAggregate, reporting services.ReportingService) *LocationHandler {
	return &LocationHandler{locations: locations, reporting: reporting}
}

type addLocationRequest struct {
	PostcodeID int64  `json:"postcode_id" binding:"required"`
	SourceID   int64  `json:"source_id" binding:"required"`
	Comment    string `json:"comment"`
}

func (h *LocationHandler) Add(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	var req addLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	res, err := h.locations.Add(c.Request.Context(), domainagg.AddLocationInput{
		OrgID:      id,
		PostcodeID: req.PostcodeID,
		SourceID:   req.SourceID,
		Comment:    req.Comment,
	})
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondCreated(c, res)
}

type removeLocationRequest struct {
	PostcodeID  int64  `json:"postcode_id"`
	PostcodeAll bool   `json:"postcode_all"`
	SourceID    int64  `json:"source_id" binding:"required"`
	Comment     string `json:"comment"`
}

func (h *LocationHandler) Remove(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	var req removeLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	res, err := h.locations.Remove(c.Request.Context(), domainagg.RemoveLocationInput{
		OrgID:       id,
		PostcodeID:  req.PostcodeID,
		PostcodeAll: req.PostcodeAll,
		SourceID:    req.SourceID,
		Comment:     req.Comment,
	})
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, res)
}

func (h *LocationHandler) List(c *gin.Context) {
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
	rows, err := h.reporting.LocationsOf(c.Request.Context(), id, at)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"locations": rows})
}
