package explanation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"invoice-reconciliation-backend/internal/config"
	"invoice-reconciliation-backend/internal/metrics"
	"invoice-reconciliation-backend/internal/models"
)

var day = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func pair() (*models.Invoice, *models.BankTransaction) {
	inv := &models.Invoice{
		Amount:      decimal.RequireFromString("100.00"),
		Currency:    "USD",
		InvoiceDate: ptr(day),
		Description: ptr("Office supplies"),
		Vendor:      &models.Vendor{Name: "Acme"},
	}
	tx := &models.BankTransaction{
		Amount:      decimal.RequireFromString("100.00"),
		Currency:    "USD",
		PostedAt:    day,
		Description: ptr("Payment to Acme - Office supplies"),
	}
	return inv, tx
}

func TestDescribe_AllSignals(t *testing.T) {
	inv, tx := pair()
	got := Describe(inv, tx, decimal.RequireFromString("82.5"))
	assert.Equal(t,
		"This match (score: 82.5/100) is suggested because of: exact amount match, same date, similar descriptions, vendor name appears in transaction.",
		got)
}

func TestDescribe_NearAmountAndDays(t *testing.T) {
	inv, tx := pair()
	tx.Amount = decimal.RequireFromString("100.50")
	tx.PostedAt = day.Add(-2 * 24 * time.Hour)
	tx.Description = ptr("wire")
	inv.Vendor = nil

	got := Describe(inv, tx, decimal.RequireFromString("40"))
	assert.Equal(t, "This match (score: 40.0/100) is suggested because of: amount within 1% tolerance, dates within 2 days.", got)
}

func TestDescribe_NoSignals(t *testing.T) {
	inv := &models.Invoice{Amount: decimal.Zero}
	tx := &models.BankTransaction{Amount: decimal.RequireFromString("10"), PostedAt: day}

	got := Describe(inv, tx, decimal.Zero)
	assert.Equal(t, "This match (score: 0.0/100) is suggested based on partial matching criteria.", got)
}

func TestBuildPrompt(t *testing.T) {
	inv, tx := pair()
	prompt := BuildPrompt(inv, tx, decimal.RequireFromString("82.5"))

	assert.Contains(t, prompt, "Invoice Details:\n- Amount: 100.00 USD\n- Date: 2024-03-01")
	assert.Contains(t, prompt, "- Vendor: Acme")
	assert.Contains(t, prompt, "- Description: Payment to Acme - Office supplies")
	assert.Contains(t, prompt, "Match Score: 82.50/100")
	assert.Contains(t, prompt, "Explain why these likely match:")
}

func newCompletionServer(t *testing.T, status int, body any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req ChatCompletionRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 200, req.MaxTokens)
		assert.Len(t, req.Messages, 2)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func serviceFor(srv *httptest.Server, m *metrics.Metrics) *Service {
	return NewService(config.ExplanationConfig{
		APIKey:    "test-key",
		Model:     "gpt-3.5-turbo",
		BaseURL:   srv.URL,
		Timeout:   2 * time.Second,
		MaxTokens: 200,
	}, zap.NewNop(), m)
}

func TestService_Remote(t *testing.T) {
	srv := newCompletionServer(t, http.StatusOK, map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"role": "assistant", "content": "  Amounts and dates agree.  "}},
		},
	})
	m := metrics.New(nil)

	inv, tx := pair()
	text, source := serviceFor(srv, m).Explain(context.Background(), inv, tx, decimal.NewFromInt(90))

	assert.Equal(t, "Amounts and dates agree.", text)
	assert.Equal(t, SourceRemote, source)
}

func TestService_FallsBackOnRemoteError(t *testing.T) {
	srv := newCompletionServer(t, http.StatusTooManyRequests, map[string]any{
		"error": map[string]string{"message": "rate limited", "type": "requests"},
	})

	inv, tx := pair()
	text, source := serviceFor(srv, nil).Explain(context.Background(), inv, tx, decimal.RequireFromString("82.5"))

	assert.Equal(t, SourceFallback, source)
	assert.Equal(t, Describe(inv, tx, decimal.RequireFromString("82.5")), text)
}

func TestService_FallsBackOnEmptyChoices(t *testing.T) {
	srv := newCompletionServer(t, http.StatusOK, map[string]any{"choices": []any{}})

	inv, tx := pair()
	_, source := serviceFor(srv, nil).Explain(context.Background(), inv, tx, decimal.NewFromInt(50))
	assert.Equal(t, SourceFallback, source)
}

func TestService_NoCredentialUsesFallback(t *testing.T) {
	svc := NewService(config.ExplanationConfig{Timeout: time.Second, MaxTokens: 200}, zap.NewNop(), nil)

	inv, tx := pair()
	text, source := svc.Explain(context.Background(), inv, tx, decimal.NewFromInt(60))
	assert.Equal(t, SourceFallback, source)
	assert.Contains(t, text, "score: 60.0/100")
}

func TestOpenAIClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	client := NewOpenAIClient("k", srv.URL, 50*time.Millisecond)
	_, err := client.CreateChatCompletion(context.Background(), ChatCompletionRequest{Model: "m"})
	require.Error(t, err)
}
