package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"invoice-reconciliation-backend/internal/services/invoices"
)

type TenantHandler struct {
	service *invoices.Service
	logger  *zap.Logger
}

func NewTenantHandler(s *invoices.Service, logger *zap.Logger) *TenantHandler {
	return &TenantHandler{service: s, logger: logger}
}

type nameRequest struct {
	Name string `json:"name"`
}

func (h *TenantHandler) CreateTenant(c *gin.Context) {
	var payload nameRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, "invalid payload")
		return
	}

	tenant, err := h.service.CreateTenant(c.Request.Context(), payload.Name)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, tenant)
}

func (h *TenantHandler) ListTenants(c *gin.Context) {
	skip, err := intQuery(c, "skip", 0)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	limit, err := intQuery(c, "limit", 0)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	tenants, err := h.service.ListTenants(c.Request.Context(), skip, limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tenants": tenants})
}

func (h *TenantHandler) GetTenant(c *gin.Context) {
	tenantID, ok := uuidParam(c, "tenantId")
	if !ok {
		return
	}

	tenant, err := h.service.GetTenant(c.Request.Context(), tenantID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, tenant)
}

func (h *TenantHandler) CreateVendor(c *gin.Context) {
	tenantID, ok := uuidParam(c, "tenantId")
	if !ok {
		return
	}
	var payload nameRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, "invalid payload")
		return
	}

	vendor, err := h.service.CreateVendor(c.Request.Context(), tenantID, payload.Name)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, vendor)
}

func (h *TenantHandler) ListVendors(c *gin.Context) {
	tenantID, ok := uuidParam(c, "tenantId")
	if !ok {
		return
	}

	vendors, err := h.service.ListVendors(c.Request.Context(), tenantID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"vendors": vendors})
}
