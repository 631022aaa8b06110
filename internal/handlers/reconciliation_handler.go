package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"invoice-reconciliation-backend/internal/models"
	service "invoice-reconciliation-backend/internal/services/reconciliation"
)

// ActorHeader names who performed a match decision, for the audit log.
const ActorHeader = "X-Actor"

type ReconciliationHandler struct {
	service *service.ReconciliationService
	logger  *zap.Logger
}

func NewReconciliationHandler(s *service.ReconciliationService, logger *zap.Logger) *ReconciliationHandler {
	return &ReconciliationHandler{service: s, logger: logger}
}

// Run proposes matches for the tenant's open invoices.
func (h *ReconciliationHandler) Run(c *gin.Context) {
	tenantID, ok := uuidParam(c, "tenantId")
	if !ok {
		return
	}

	matches, err := h.service.Reconcile(c.Request.Context(), tenantID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"matches": matches})
}

func (h *ReconciliationHandler) ListRuns(c *gin.Context) {
	tenantID, ok := uuidParam(c, "tenantId")
	if !ok {
		return
	}
	limit, err := intQuery(c, "limit", service.DefaultLimit)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	runs, err := h.service.ListRuns(c.Request.Context(), tenantID, limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (h *ReconciliationHandler) Explain(c *gin.Context) {
	tenantID, ok := uuidParam(c, "tenantId")
	if !ok {
		return
	}
	invoiceID, err := uuid.Parse(c.Query("invoice_id"))
	if err != nil {
		badRequest(c, "invoice_id query parameter is required")
		return
	}
	txID, err := uuid.Parse(c.Query("transaction_id"))
	if err != nil {
		badRequest(c, "transaction_id query parameter is required")
		return
	}

	explanation, err := h.service.Explain(c.Request.Context(), tenantID, invoiceID, txID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, explanation)
}

// GetMatches lists matches with per-status totals.
func (h *ReconciliationHandler) GetMatches(c *gin.Context) {
	tenantID, ok := uuidParam(c, "tenantId")
	if !ok {
		return
	}

	var status *models.MatchStatus
	if raw := c.Query("status"); raw != "" {
		s := models.MatchStatus(raw)
		status = &s
	}
	skip, err := intQuery(c, "skip", 0)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	limit, err := intQuery(c, "limit", service.DefaultLimit)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	list, err := h.service.ListMatches(c.Request.Context(), tenantID, status, skip, limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *ReconciliationHandler) GetMatch(c *gin.Context) {
	tenantID, ok := uuidParam(c, "tenantId")
	if !ok {
		return
	}
	matchID, ok := uuidParam(c, "matchId")
	if !ok {
		return
	}

	match, err := h.service.GetMatch(c.Request.Context(), tenantID, matchID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, match)
}

func (h *ReconciliationHandler) Confirm(c *gin.Context) {
	tenantID, ok := uuidParam(c, "tenantId")
	if !ok {
		return
	}
	matchID, ok := uuidParam(c, "matchId")
	if !ok {
		return
	}

	match, err := h.service.ConfirmMatch(c.Request.Context(), tenantID, matchID, c.GetHeader(ActorHeader))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, match)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

// Reject takes a proposed match out of consideration. The body is optional.
func (h *ReconciliationHandler) Reject(c *gin.Context) {
	tenantID, ok := uuidParam(c, "tenantId")
	if !ok {
		return
	}
	matchID, ok := uuidParam(c, "matchId")
	if !ok {
		return
	}

	var payload rejectRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&payload); err != nil {
			badRequest(c, "invalid payload: "+err.Error())
			return
		}
	}

	match, err := h.service.RejectMatch(c.Request.Context(), tenantID, matchID, c.GetHeader(ActorHeader), payload.Reason)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, match)
}

func (h *ReconciliationHandler) AuditTrail(c *gin.Context) {
	tenantID, ok := uuidParam(c, "tenantId")
	if !ok {
		return
	}
	matchID, ok := uuidParam(c, "matchId")
	if !ok {
		return
	}

	entries, err := h.service.AuditTrail(c.Request.Context(), tenantID, matchID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}
