package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oriadata/orgmaster/internal/domain"
	domainagg "github.com/oriadata/orgmaster/internal/domain/aggregates"
	"github.com/oriadata/orgmaster/internal/http/response"
	"github.com/oriadata/orgmaster/internal/services"
)

type OrgHandler struct {
	orgs      domainagg.OrgAggregate
	reporting services.ReportingService
}

func NewOrgHandler(orgs domainagg.OrgAggregate, reporting services.ReportingService) *OrgHandler {
	return &OrgHandler{orgs: orgs, reporting: reporting}
}

type createOrgRequest struct {
	Name     string          `json:"name" binding:"required"`
	Flags    domain.OrgFlags `json:"flags"`
	SourceID int64           `json:"source_id" binding:"required"`
	Comment  string          `json:"comment"`
}

func (h *OrgHandler) Create(c *gin.Context) {
	var req createOrgRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	res, err := h.orgs.Create(c.Request.Context(), domainagg.CreateOrgInput{
		Name:     req.Name,
		Flags:    req.Flags,
		SourceID: req.SourceID,
		Comment:  req.Comment,
	})
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondCreated(c, res)
}

func (h *OrgHandler) Get(c *gin.Context) {
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
	var org *domain.ExternalOrg
	if at.IsZero() {
		org, err = h.reporting.Get(c.Request.Context(), id)
	} else {
		org, err = h.reporting.GetAsOf(c.Request.Context(), id, at)
	}
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	if org == nil {
		response.RespondError(c, http.StatusNotFound, "not_found", nil)
		return
	}
	response.RespondOK(c, org)
}

func (h *OrgHandler) History(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	rows, err := h.reporting.History(c.Request.Context(), id)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"versions": rows})
}

type renameOrgRequest struct {
	NewName      string `json:"new_name" binding:"required"`
	SourceID     int64  `json:"source_id" binding:"required"`
	Comment      string `json:"comment"`
	AliasOldName bool   `json:"alias_old_name"`
	OldNameLang  string `json:"old_name_lang"`
}

func (h *OrgHandler) Rename(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	var req renameOrgRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	res, err := h.orgs.Rename(c.Request.Context(), domainagg.RenameOrgInput{
		OrgID:        id,
		NewName:      req.NewName,
		SourceID:     req.SourceID,
		Comment:      req.Comment,
		AliasOldName: req.AliasOldName,
		OldNameLang:  req.OldNameLang,
	})
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, res)
}

type setFlagsRequest struct {
	Flags    domain.OrgFlags `json:"flags"`
	SourceID int64           `json:"source_id" binding:"required"`
	Comment  string          `json:"comment"`
}

func (h *OrgHandler) SetFlags(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	var req setFlagsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	res, err := h.orgs.SetFlags(c.Request.Context(), domainagg.SetOrgFlagsInput{
		OrgID:    id,
		Flags:    req.Flags,
		SourceID: req.SourceID,
		Comment:  req.Comment,
	})
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, res)
}

type sourcedRequest struct {
	SourceID int64  `json:"source_id" binding:"required"`
	Comment  string `json:"comment"`
}

func (h *OrgHandler) Dissolve(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	var req sourcedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	res, err := h.orgs.Dissolve(c.Request.Context(), domainagg.DissolveOrgInput{
		OrgID:    id,
		SourceID: req.SourceID,
		Comment:  req.Comment,
	})
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, res)
}

type mergeOrgsRequest struct {
	WinnerID int64  `json:"winner_id" binding:"required"`
	LoserID  int64  `json:"loser_id" binding:"required"`
	SourceID int64  `json:"source_id" binding:"required"`
	Comment  string `json:"comment"`
}

func (h *OrgHandler) Merge(c *gin.Context) {
	var req mergeOrgsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	res, err := h.orgs.Merge(c.Request.Context(), domainagg.MergeOrgsInput{
		WinnerID: req.WinnerID,
		LoserID:  req.LoserID,
		SourceID: req.SourceID,
		Comment:  req.Comment,
	})
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, res)
}

type splitOrgRequest struct {
	NewName     string          `json:"new_name" binding:"required"`
	Flags       domain.OrgFlags `json:"flags"`
	SourceID    int64           `json:"source_id" binding:"required"`
	Comment     string          `json:"comment"`
	Assignments []struct {
		Kind      string `json:"kind" binding:"required"`
		RowID     int64  `json:"row_id" binding:"required"`
		MoveToNew bool   `json:"move_to_new"`
	} `json:"assignments"`
}

func (h *OrgHandler) Split(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	var req splitOrgRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	in := domainagg.SplitOrgInput{
		OrgID:    id,
		NewName:  req.NewName,
		Flags:    req.Flags,
		SourceID: req.SourceID,
		Comment:  req.Comment,
	}
	for _, a := range req.Assignments {
		in.Assignments = append(in.Assignments, domainagg.FactAssignment{
			Kind:      domainagg.FactKind(a.Kind),
			RowID:     a.RowID,
			MoveToNew: a.MoveToNew,
		})
	}
	res, err := h.orgs.Split(c.Request.Context(), in)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, res)
}

func (h *OrgHandler) MergeHistory(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	rows, err := h.reporting.MergeHistory(c.Request.Context(), id)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"merges": rows})
}
