package extractor

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/inboxrelay/inboxrelay/internal/models"
)

// Extraction is rule-driven: each field has a labeled-line matcher tried
// first and an optional whole-body fallback. New label phrasings are
// added to the alternations, not to control flow.

const (
	fieldName   = "name"
	fieldEmail  = "email"
	fieldAmount = "amount"
)

type fieldRule struct {
	field    string
	labeled  *regexp.Regexp
	fallback func(body string) string
}

// labeledLine matches "<label><sep><value>" at line start,
// case-insensitive. Longer labels come first in the alternation so
// "Customer Name" is not consumed by "Customer".
func labeledLine(labels, value string) *regexp.Regexp {
	return regexp.MustCompile(`(?im)^\s*(?:` + labels + `)\s*[:\-]\s*` + value)
}

const moneyPattern = `(?:(?:USD|US\$|EUR|€|GBP|£|\$)\s*)?[0-9][0-9,]*(?:\.[0-9]{2})?`

var (
	nameRule = fieldRule{
		field:   fieldName,
		labeled: labeledLine(`customer name|billing name|customer|buyer|recipient|name`, `(.+)`),
	}
	emailRule = fieldRule{
		field:    fieldEmail,
		labeled:  labeledLine(`[^:\-\n]*email[^:\-\n]*`, `(\S+@\S+)`),
		fallback: firstEmailAddress,
	}
	amountRule = fieldRule{
		field:    fieldAmount,
		labeled:  labeledLine(`amount paid|payment amount|total paid|amount|total|charged`, `(`+moneyPattern+`)`),
		fallback: largestAmount,
	}

	rules = []fieldRule{nameRule, emailRule, amountRule}
)

var (
	emailAddressRe = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9\-]+(?:\.[A-Za-z0-9\-]+)+`)
	moneyRe        = regexp.MustCompile(`(USD|US\$|EUR|€|GBP|£|\$)\s*([0-9][0-9,]*(?:\.[0-9]{2})?)`)
)

// Extract finds best-effort payment fields in a plain-text body. Any
// field may come back nil; malformed or empty input is not an error.
func Extract(body string) models.PaymentFields {
	values := make(map[string]string, len(rules))

	for _, rule := range rules {
		if m := rule.labeled.FindStringSubmatch(body); m != nil {
			values[rule.field] = strings.TrimSpace(m[1])
			continue
		}
		if rule.fallback != nil {
			if v := rule.fallback(body); v != "" {
				values[rule.field] = v
			}
		}
	}

	return models.PaymentFields{
		Name:   optional(values[fieldName]),
		Email:  optional(values[fieldEmail]),
		Amount: optional(values[fieldAmount]),
	}
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func firstEmailAddress(body string) string {
	return emailAddressRe.FindString(body)
}

// largestAmount scans for currency-marked numbers anywhere in the body
// and keeps the highest value, formatted as "CCY <value>" with two
// decimals. Applied only when no labeled amount line exists.
func largestAmount(body string) string {
	matches := moneyRe.FindAllStringSubmatch(body, -1)
	if len(matches) == 0 {
		return ""
	}

	best := -1.0
	bestCurrency := "USD"

	for _, m := range matches {
		value, err := strconv.ParseFloat(strings.ReplaceAll(m[2], ",", ""), 64)
		if err != nil {
			continue
		}
		if value > best {
			best = value
			bestCurrency = inferCurrency(m[1])
		}
	}

	if best < 0 {
		return ""
	}

	return fmt.Sprintf("%s %.2f", bestCurrency, best)
}

func inferCurrency(marker string) string {
	switch {
	case strings.Contains(marker, "€") || strings.Contains(marker, "EUR"):
		return "EUR"
	case strings.Contains(marker, "£") || strings.Contains(marker, "GBP"):
		return "GBP"
	default:
		return "USD"
	}
}
