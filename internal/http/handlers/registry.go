package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oriadata/orgmaster/internal/domain"
	"github.com/oriadata/orgmaster/internal/http/response"
	"github.com/oriadata/orgmaster/internal/services"
)

type RegistryHandler struct {
	registry services.RegistryService
}

func NewRegistryHandler(registry services.RegistryService) *RegistryHandler {
	return &RegistryHandler{registry: registry}
}

type createNamedRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

func (h *RegistryHandler) ListSources(c *gin.Context) {
	rows, err := h.registry.ListSources(c.Request.Context())
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"sources": rows})
}

func (h *RegistryHandler) CreateSource(c *gin.Context) {
	var req createNamedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	row, err := h.registry.CreateSource(c.Request.Context(), req.Name, req.Description)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondCreated(c, row)
}

func (h *RegistryHandler) ListSchemes(c *gin.Context) {
	rows, err := h.registry.ListSchemes(c.Request.Context())
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"schemes": rows})
}

func (h *RegistryHandler) CreateScheme(c *gin.Context) {
	var req createNamedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	row, err := h.registry.CreateScheme(c.Request.Context(), req.Name, req.Description)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondCreated(c, row)
}

type createRelTypeRequest struct {
	Name         string `json:"name" binding:"required"`
	ForwardLabel string `json:"forward_label" binding:"required"`
	InverseLabel string `json:"inverse_label" binding:"required"`
	Reflexive    bool   `json:"reflexive"`
	Comment      string `json:"comment"`
}

func (h *RegistryHandler) ListRelationshipTypes(c *gin.Context) {
	rows, err := h.registry.ListRelationshipTypes(c.Request.Context())
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"relationship_types": rows})
}

func (h *RegistryHandler) CreateRelationshipType(c *gin.Context) {
	var req createRelTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	row, err := h.registry.CreateRelationshipType(c.Request.Context(), &domain.RelationshipType{
		Name:         req.Name,
		ForwardLabel: req.ForwardLabel,
		InverseLabel: req.InverseLabel,
		Reflexive:    req.Reflexive,
		Comment:      req.Comment,
	})
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondCreated(c, row)
}

type createPostcodeRequest struct {
	Code    string `json:"code" binding:"required"`
	City    string `json:"city"`
	State   string `json:"state"`
	Country string `json:"country"`
}

func (h *RegistryHandler) CreatePostcode(c *gin.Context) {
	var req createPostcodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	row, err := h.registry.CreatePostcode(c.Request.Context(), &domain.Postcode{
		Code:    req.Code,
		City:    req.City,
		State:   req.State,
		Country: req.Country,
	})
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondCreated(c, row)
}
