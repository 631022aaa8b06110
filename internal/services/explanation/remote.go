package explanation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"invoice-reconciliation-backend/internal/models"
)

const systemPrompt = "You are a financial reconciliation assistant. Provide brief, clear explanations (2-6 sentences) about why an invoice and bank transaction likely match."

// RemoteExplainer asks a chat completion model for the explanation.
type RemoteExplainer struct {
	client    ChatClient
	model     string
	maxTokens int
	timeout   time.Duration
}

func NewRemoteExplainer(client ChatClient, model string, maxTokens int, timeout time.Duration) *RemoteExplainer {
	return &RemoteExplainer{client: client, model: model, maxTokens: maxTokens, timeout: timeout}
}

func (e *RemoteExplainer) Explain(ctx context.Context, inv *models.Invoice, tx *models.BankTransaction, score decimal.Decimal) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.client.CreateChatCompletion(ctx, ChatCompletionRequest{
		Model: e.model,
		Messages: []ChatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: BuildPrompt(inv, tx, score)},
		},
		MaxTokens: e.maxTokens,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices in completion response")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("empty completion")
	}
	return text, nil
}

// BuildPrompt lays out both records and the score for the model.
func BuildPrompt(inv *models.Invoice, tx *models.BankTransaction, score decimal.Decimal) string {
	var b strings.Builder
	b.WriteString("Invoice Details:\n")
	fmt.Fprintf(&b, "- Amount: %s %s\n", inv.Amount.StringFixed(2), inv.Currency)
	fmt.Fprintf(&b, "- Date: %s\n", formatDate(inv.InvoiceDate))
	fmt.Fprintf(&b, "- Description: %s\n", orNA(inv.Description))
	if inv.Vendor != nil {
		fmt.Fprintf(&b, "- Vendor: %s\n", inv.Vendor.Name)
	}

	b.WriteString("\nBank Transaction Details:\n")
	fmt.Fprintf(&b, "- Amount: %s %s\n", tx.Amount.StringFixed(2), tx.Currency)
	fmt.Fprintf(&b, "- Date: %s\n", formatDate(&tx.PostedAt))
	fmt.Fprintf(&b, "- Description: %s\n", orNA(tx.Description))

	fmt.Fprintf(&b, "\nMatch Score: %s/100\n", score.StringFixed(2))
	b.WriteString("\nExplain why these likely match:")
	return b.String()
}

func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "N/A"
	}
	return t.UTC().Format("2006-01-02")
}

func orNA(s *string) string {
	if s == nil || *s == "" {
		return "N/A"
	}
	return *s
}
