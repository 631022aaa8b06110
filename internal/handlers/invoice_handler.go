package handler

import (
	"encoding/csv"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"invoice-reconciliation-backend/internal/apperrors"
	"invoice-reconciliation-backend/internal/models"
	"invoice-reconciliation-backend/internal/services/invoices"
)

type InvoiceHandler struct {
	service *invoices.Service
	logger  *zap.Logger
}

func NewInvoiceHandler(s *invoices.Service, logger *zap.Logger) *InvoiceHandler {
	return &InvoiceHandler{service: s, logger: logger}
}

type createInvoiceRequest struct {
	Amount        *decimal.Decimal `json:"amount"`
	Currency      string           `json:"currency"`
	VendorID      *uuid.UUID       `json:"vendor_id"`
	InvoiceNumber *string          `json:"invoice_number"`
	InvoiceDate   *Date            `json:"invoice_date"`
	Description   *string          `json:"description"`
}

func (h *InvoiceHandler) CreateInvoice(c *gin.Context) {
	tenantID, ok := uuidParam(c, "tenantId")
	if !ok {
		return
	}

	var payload createInvoiceRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, "invalid payload: "+err.Error())
		return
	}

	invoice, err := h.service.CreateInvoice(c.Request.Context(), tenantID, invoices.CreateInvoiceInput{
		Amount:        payload.Amount,
		Currency:      payload.Currency,
		VendorID:      payload.VendorID,
		InvoiceNumber: payload.InvoiceNumber,
		InvoiceDate:   payload.InvoiceDate.Ptr(),
		Description:   payload.Description,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, invoice)
}

func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
	tenantID, ok := uuidParam(c, "tenantId")
	if !ok {
		return
	}

	in, err := parseInvoiceFilter(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	items, err := h.service.ListInvoices(c.Request.Context(), tenantID, in)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoices": items})
}

func parseInvoiceFilter(c *gin.Context) (invoices.ListInvoicesInput, error) {
	var in invoices.ListInvoicesInput
	var err error

	if raw := c.Query("status"); raw != "" {
		status := models.InvoiceStatus(raw)
		in.Status = &status
	}
	if in.VendorID, err = optionalUUIDQuery(c, "vendor_id"); err != nil {
		return in, err
	}
	if in.StartDate, err = optionalDateQuery(c, "start_date"); err != nil {
		return in, err
	}
	if in.EndDate, err = optionalDateQuery(c, "end_date"); err != nil {
		return in, err
	}
	if in.MinAmount, err = optionalDecimalQuery(c, "min_amount"); err != nil {
		return in, err
	}
	if in.MaxAmount, err = optionalDecimalQuery(c, "max_amount"); err != nil {
		return in, err
	}
	if in.Skip, err = intQuery(c, "skip", 0); err != nil {
		return in, err
	}
	if in.Limit, err = intQuery(c, "limit", invoices.DefaultLimit); err != nil {
		return in, err
	}
	if in.Limit < 1 || in.Limit > invoices.MaxLimit {
		return in, errors.New("limit must be between 1 and 1000")
	}
	return in, nil
}

func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	tenantID, ok := uuidParam(c, "tenantId")
	if !ok {
		return
	}
	invoiceID, ok := uuidParam(c, "invoiceId")
	if !ok {
		return
	}

	invoice, err := h.service.GetInvoice(c.Request.Context(), tenantID, invoiceID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func (h *InvoiceHandler) DeleteInvoice(c *gin.Context) {
	tenantID, ok := uuidParam(c, "tenantId")
	if !ok {
		return
	}
	invoiceID, ok := uuidParam(c, "invoiceId")
	if !ok {
		return
	}

	if err := h.service.DeleteInvoice(c.Request.Context(), tenantID, invoiceID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// invoiceColumns are the CSV header names UploadInvoices understands.
// Only amount is required.
var invoiceColumns = []string{"invoice_number", "vendor_id", "amount", "currency", "invoice_date", "description"}

// UploadInvoices creates one invoice per CSV row. Rows that fail to parse
// or validate are skipped and reported; the rest are created.
func (h *InvoiceHandler) UploadInvoices(c *gin.Context) {
	tenantID, ok := uuidParam(c, "tenantId")
	if !ok {
		return
	}

	if _, err := h.service.GetTenant(c.Request.Context(), tenantID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		badRequest(c, "file required")
		return
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	headerRow, err := reader.Read()
	if err != nil {
		badRequest(c, "cannot read CSV header")
		return
	}
	index := columnIndex(headerRow)
	if _, ok := index["amount"]; !ok {
		badRequest(c, "CSV header must include amount; known columns: "+strings.Join(invoiceColumns, ", "))
		return
	}

	var created []models.Invoice
	var skipped []gin.H
	rowNum := 1

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		rowNum++
		if err != nil {
			skipped = append(skipped, gin.H{"row": rowNum, "reason": err.Error()})
			continue
		}
		if strings.Join(record, "") == "" {
			continue
		}

		in, err := invoiceFromRecord(record, index)
		if err != nil {
			skipped = append(skipped, gin.H{"row": rowNum, "reason": err.Error()})
			continue
		}

		invoice, err := h.service.CreateInvoice(c.Request.Context(), tenantID, in)
		if err != nil {
			// unknown vendor or invalid values only skip the row
			if errors.Is(err, apperrors.ErrNotFound) || errors.Is(err, apperrors.ErrValidation) {
				skipped = append(skipped, gin.H{"row": rowNum, "reason": err.Error()})
				continue
			}
			respondError(c, h.logger, err)
			return
		}
		created = append(created, *invoice)
	}

	h.logger.Info("invoice CSV processed",
		zap.String("tenant_id", tenantID.String()),
		zap.String("file", header.Filename),
		zap.Int("created", len(created)),
		zap.Int("skipped", len(skipped)),
	)

	c.JSON(http.StatusOK, gin.H{
		"file":     header.Filename,
		"created":  len(created),
		"invoices": created,
		"skipped":  skipped,
	})
}

func invoiceFromRecord(record []string, index map[string]int) (invoices.CreateInvoiceInput, error) {
	var in invoices.CreateInvoiceInput
	field := func(name string) string {
		if i, ok := index[name]; ok && i < len(record) {
			return strings.TrimSpace(record[i])
		}
		return ""
	}

	amount, err := decimal.NewFromString(field("amount"))
	if err != nil {
		return in, errors.New("invalid amount")
	}
	in.Amount = &amount
	in.Currency = field("currency")

	if v := field("invoice_number"); v != "" {
		in.InvoiceNumber = &v
	}
	if v := field("description"); v != "" {
		in.Description = &v
	}
	if v := field("vendor_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return in, errors.New("invalid vendor_id")
		}
		in.VendorID = &id
	}
	if v := field("invoice_date"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			return in, errors.New("invalid invoice_date")
		}
		in.InvoiceDate = &t
	}
	return in, nil
}

func columnIndex(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return index
}
