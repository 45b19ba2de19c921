package notifier

import (
	"fmt"
	"html"
	"strings"

	"github.com/inboxrelay/inboxrelay/internal/models"
	"github.com/inboxrelay/inboxrelay/internal/utils"
)

const (
	// bodyExcerptLimit keeps oversized bodies inside Telegram's message
	// size limit
	bodyExcerptLimit = 1200

	missingFieldPlaceholder = "N/A"
)

// FormatPayment renders the notification text in Telegram HTML parse
// mode: marker, subject, extracted fields with placeholders for missing
// values, then a capped excerpt of the body.
func FormatPayment(subject string, fields models.PaymentFields, body string) string {
	var b strings.Builder

	b.WriteString("✅ <b>Payment received</b>\n")
	b.WriteString(fmt.Sprintf("🧾 <b>Subject:</b> %s\n", html.EscapeString(subject)))
	b.WriteString(fmt.Sprintf("👤 <b>Customer:</b> %s\n", html.EscapeString(orPlaceholder(fields.Name))))
	b.WriteString(fmt.Sprintf("📧 <b>Email:</b> %s\n", html.EscapeString(orPlaceholder(fields.Email))))
	b.WriteString(fmt.Sprintf("💵 <b>Amount:</b> %s\n", html.EscapeString(orPlaceholder(fields.Amount))))
	b.WriteString("—\n")
	b.WriteString(html.EscapeString(utils.Truncate(body, bodyExcerptLimit)))

	return b.String()
}

// FormatWorkerError renders a cycle-level failure for the soft-report
// channel.
func FormatWorkerError(err error) string {
	return fmt.Sprintf("⚠️ <b>Worker error:</b> %s", html.EscapeString(err.Error()))
}

func orPlaceholder(v *string) string {
	if v == nil || strings.TrimSpace(*v) == "" {
		return missingFieldPlaceholder
	}
	return *v
}
