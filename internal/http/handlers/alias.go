package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	domainagg "github.com/oriadata/orgmaster/internal/domain/aggregates"
	"github.com/oriadata/orgmaster/internal/http/response"
	"github.com/oriadata/orgmaster/internal/services"
)

type AliasHandler struct {
	aliases   domainagg.AliasAggregate
	reporting services.ReportingService
}

func NewAliasHandler(aliases domainagg.AliasAggregate, reporting services.ReportingService) *AliasHandler {
	return &AliasHandler{aliases: aliases, reporting: reporting}
}

type addAliasRequest struct {
	Alias    string `json:"alias" binding:"required"`
	Lang     string `json:"lang"`
	SourceID int64  `json:"source_id" binding:"required"`
	Comment  string `json:"comment"`
}

func (h *AliasHandler) Add(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	var req addAliasRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	res, err := h.aliases.Add(c.Request.Context(), domainagg.AddAliasInput{
		OrgID:    id,
		Alias:    req.Alias,
		Lang:     req.Lang,
		SourceID: req.SourceID,
		Comment:  req.Comment,
	})
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondCreated(c, res)
}

type retireAliasRequest struct {
	Alias    string `json:"alias" binding:"required"`
	Lang     string `json:"lang"`
	SourceID int64  `json:"source_id" binding:"required"`
	Comment  string `json:"comment"`
}

func (h *AliasHandler) Retire(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	var req retireAliasRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	res, err := h.aliases.Retire(c.Request.Context(), domainagg.RetireAliasInput{
		OrgID:    id,
		Alias:    req.Alias,
		Lang:     req.Lang,
		SourceID: req.SourceID,
		Comment:  req.Comment,
	})
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, res)
}

func (h *AliasHandler) List(c *gin.Context) {
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
	rows, err := h.reporting.AliasesOf(c.Request.Context(), id, at)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"aliases": rows})
}
