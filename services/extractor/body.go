package extractor

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/jaytaylor/html2text"
	"github.com/jhillyerd/enmime"
)

var (
	htmlMarkerRe = regexp.MustCompile(`(?i)<\s*(!doctype\s+)?html`)
	blankRunsRe  = regexp.MustCompile(`\n{3,}`)
)

// BodyText reduces a raw RFC822 message to plain text suitable for
// line-based field extraction. Multipart messages prefer the text/plain
// part; HTML-only content is stripped to text with line breaks kept.
// Undecodable input degrades to best-effort text, never an error.
func BodyText(raw []byte) string {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		// not parseable as MIME, treat the payload itself as the body
		return normalize(sniffAndStrip(string(raw)))
	}

	// a part labeled text/plain may still carry an HTML document
	if text := strings.TrimSpace(env.Text); text != "" {
		return normalize(sniffAndStrip(text))
	}
	if env.HTML != "" {
		return normalize(stripHTML(env.HTML))
	}

	return ""
}

// sniffAndStrip converts content to text when it looks like an HTML
// document, otherwise returns it unchanged.
func sniffAndStrip(content string) string {
	if htmlMarkerRe.MatchString(content) {
		return stripHTML(content)
	}
	return content
}

func stripHTML(html string) string {
	text, err := html2text.FromString(html, html2text.Options{OmitLinks: true})
	if err != nil {
		return html
	}
	return text
}

// normalize collapses runs of blank lines; individual line breaks stay
// intact because label matching is line-based.
func normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = blankRunsRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
