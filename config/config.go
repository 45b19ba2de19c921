package config

import (
	"strings"

	"github.com/inboxrelay/inboxrelay/internal/logger"
)

type AppConfig struct {
	APIPort      string `env:"PORT" envDefault:"8080"`
	DebugPreview bool   `env:"DEBUG_PREVIEW" envDefault:"false"`
}

type IMAPConfig struct {
	Server         string `env:"IMAP_SERVER" envDefault:"imap.gmail.com"`
	Port           int    `env:"IMAP_PORT" envDefault:"993"`
	TLS            bool   `env:"IMAP_TLS" envDefault:"true"`
	Account        string `env:"EMAIL_ACCOUNT,required"`
	Password       string `env:"EMAIL_PASSWORD,required"`
	Folder         string `env:"IMAP_FOLDER" envDefault:"INBOX"`
	SearchFrom     string `env:"IMAP_SEARCH_FROM" envDefault:"@wix.com"`
	ProcessedLabel string `env:"PROCESSED_LABEL" envDefault:"WixProcessed"`
}

type TelegramConfig struct {
	BotToken string `env:"TELEGRAM_BOT_TOKEN,required"`
	ChatID   string `env:"TELEGRAM_CHAT_ID,required"`
	// APIBaseURL is overridable so tests can point the adapter at a local server
	APIBaseURL string `env:"TELEGRAM_API_BASE_URL" envDefault:"https://api.telegram.org"`
}

type PollerConfig struct {
	PollSeconds          int    `env:"POLL_SECONDS" envDefault:"60"`
	BatchSize            int    `env:"MAX_EMAILS_PER_RUN" envDefault:"20"`
	SubjectKeywords      string `env:"SUBJECT_KEYWORDS" envDefault:"payment,invoice,order"`
	AllowedSenderDomains string `env:"ALLOWED_SENDER_DOMAINS"`
	StateFile            string `env:"STATE_FILE" envDefault:"relay_state.json"`
}

// Keywords returns the lowercased subject keyword allow-list.
// An empty list means every subject matches.
func (c *PollerConfig) Keywords() []string {
	return splitAndTrim(c.SubjectKeywords)
}

// SenderDomains returns the lowercased sender-domain allow-list.
// An empty list disables the sender check.
func (c *PollerConfig) SenderDomains() []string {
	return splitAndTrim(c.AllowedSenderDomains)
}

func splitAndTrim(csv string) []string {
	var out []string
	for _, part := range strings.Split(csv, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

type Config struct {
	AppConfig *AppConfig
	IMAP      *IMAPConfig
	Telegram  *TelegramConfig
	Poller    *PollerConfig
	Logger    *logger.Config
}
