package notifier

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/inboxrelay/inboxrelay/internal/models"
)

func strPtr(s string) *string { return &s }

func TestFormatPayment_AllFields(t *testing.T) {
	fields := models.PaymentFields{
		Name:   strPtr("Jane Doe"),
		Email:  strPtr("jane@x.com"),
		Amount: strPtr("USD 49.99"),
	}

	text := FormatPayment("Payment received", fields, "Customer: Jane Doe")

	assert.Contains(t, text, "<b>Payment received</b>")
	assert.Contains(t, text, "<b>Subject:</b> Payment received")
	assert.Contains(t, text, "<b>Customer:</b> Jane Doe")
	assert.Contains(t, text, "<b>Email:</b> jane@x.com")
	assert.Contains(t, text, "<b>Amount:</b> USD 49.99")
}

func TestFormatPayment_MissingFieldsGetPlaceholders(t *testing.T) {
	text := FormatPayment("Order confirmation", models.PaymentFields{}, "body")

	assert.Contains(t, text, "<b>Customer:</b> N/A")
	assert.Contains(t, text, "<b>Email:</b> N/A")
	assert.Contains(t, text, "<b>Amount:</b> N/A")
}

func TestFormatPayment_EscapesSubjectAndBody(t *testing.T) {
	text := FormatPayment("<script>alert(1)</script>", models.PaymentFields{}, "a < b & c > d")

	assert.NotContains(t, text, "<script>")
	assert.Contains(t, text, "&lt;script&gt;")
	assert.Contains(t, text, "a &lt; b &amp; c &gt; d")
}

func TestFormatPayment_TruncatesBodyExcerpt(t *testing.T) {
	longBody := strings.Repeat("x", 5000)

	text := FormatPayment("subject", models.PaymentFields{}, longBody)

	assert.Contains(t, text, strings.Repeat("x", bodyExcerptLimit))
	assert.NotContains(t, text, strings.Repeat("x", bodyExcerptLimit+1))
}

func TestFormatWorkerError(t *testing.T) {
	text := FormatWorkerError(errors.New("mailbox connection failed: EOF"))

	assert.Contains(t, text, "<b>Worker error:</b>")
	assert.Contains(t, text, "mailbox connection failed: EOF")
}
