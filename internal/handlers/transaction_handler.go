package handler

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"invoice-reconciliation-backend/internal/services/transactions"
)

const IdempotencyKeyHeader = "Idempotency-Key"

type TransactionHandler struct {
	service *transactions.Service
	logger  *zap.Logger
}

func NewTransactionHandler(s *transactions.Service, logger *zap.Logger) *TransactionHandler {
	return &TransactionHandler{service: s, logger: logger}
}

type transactionRequest struct {
	ExternalID  *string          `json:"external_id"`
	PostedAt    *Date            `json:"posted_at"`
	Amount      *decimal.Decimal `json:"amount"`
	Currency    string           `json:"currency"`
	Description *string          `json:"description"`
}

type importRequest struct {
	Transactions []transactionRequest `json:"transactions"`
}

// Import bulk-loads transactions. A replay under the same Idempotency-Key
// answers 200 with duplicate=true instead of 201.
func (h *TransactionHandler) Import(c *gin.Context) {
	tenantID, ok := uuidParam(c, "tenantId")
	if !ok {
		return
	}

	var payload importRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, "invalid payload: "+err.Error())
		return
	}

	inputs := make([]transactions.TransactionInput, len(payload.Transactions))
	for i, tx := range payload.Transactions {
		inputs[i] = transactions.TransactionInput{
			ExternalID:  tx.ExternalID,
			PostedAt:    tx.PostedAt.Ptr(),
			Amount:      tx.Amount,
			Currency:    tx.Currency,
			Description: tx.Description,
		}
	}

	result, err := h.service.Import(c.Request.Context(), tenantID, inputs, c.GetHeader(IdempotencyKeyHeader))
	h.respondImport(c, result, err)
}

// Upload imports a bank statement CSV with columns posted_at, amount and
// optionally currency, description and external_id. Any bad row rejects
// the whole file.
func (h *TransactionHandler) Upload(c *gin.Context) {
	tenantID, ok := uuidParam(c, "tenantId")
	if !ok {
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		badRequest(c, "file required")
		return
	}
	defer file.Close()

	inputs, err := readStatement(file)
	if err != nil {
		writeError(c, http.StatusBadRequest, ErrorCodeValidation, err.Error())
		return
	}

	h.logger.Info("bank statement received",
		zap.String("tenant_id", tenantID.String()),
		zap.String("file", header.Filename),
		zap.Int("rows", len(inputs)),
	)

	result, err := h.service.Import(c.Request.Context(), tenantID, inputs, c.GetHeader(IdempotencyKeyHeader))
	h.respondImport(c, result, err)
}

func (h *TransactionHandler) respondImport(c *gin.Context, result *transactions.ImportResult, err error) {
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{
		"transactions": result.Transactions,
		"duplicate":    result.Duplicate,
	})
}

func readStatement(r io.Reader) ([]transactions.TransactionInput, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	headerRow, err := reader.Read()
	if err != nil {
		return nil, errors.New("cannot read CSV header")
	}
	index := columnIndex(headerRow)
	for _, required := range []string{"posted_at", "amount"} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("CSV header must include %s", required)
		}
	}

	var inputs []transactions.TransactionInput
	rowNum := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		rowNum++
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", rowNum, err)
		}
		if strings.Join(record, "") == "" {
			continue
		}

		field := func(name string) string {
			if i, ok := index[name]; ok && i < len(record) {
				return strings.TrimSpace(record[i])
			}
			return ""
		}

		posted, err := parseDate(field("posted_at"))
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid posted_at", rowNum)
		}
		amount, err := decimal.NewFromString(field("amount"))
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid amount", rowNum)
		}

		in := transactions.TransactionInput{
			PostedAt: &posted,
			Amount:   &amount,
			Currency: field("currency"),
		}
		if v := field("description"); v != "" {
			in.Description = &v
		}
		if v := field("external_id"); v != "" {
			in.ExternalID = &v
		}
		inputs = append(inputs, in)
	}
	return inputs, nil
}

func (h *TransactionHandler) ListTransactions(c *gin.Context) {
	tenantID, ok := uuidParam(c, "tenantId")
	if !ok {
		return
	}
	limit, err := intQuery(c, "limit", transactions.DefaultLimit)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	page, err := h.service.List(c.Request.Context(), tenantID, c.Query("cursor"), limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items":       page.Transactions,
		"next_cursor": page.NextCursor,
		"has_more":    page.HasMore,
	})
}

func (h *TransactionHandler) GetTransaction(c *gin.Context) {
	tenantID, ok := uuidParam(c, "tenantId")
	if !ok {
		return
	}
	txID, ok := uuidParam(c, "transactionId")
	if !ok {
		return
	}

	tx, err := h.service.Get(c.Request.Context(), tenantID, txID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, tx)
}
