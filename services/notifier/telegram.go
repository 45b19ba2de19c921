package notifier

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/inboxrelay/inboxrelay/config"
	"github.com/inboxrelay/inboxrelay/internal/logger"
	"github.com/inboxrelay/inboxrelay/internal/utils"
)

const (
	sendTimeout       = 10 * time.Second
	responseBodyLimit = 300
)

// TelegramNotifier posts messages to a Telegram chat via the Bot API.
type TelegramNotifier struct {
	cfg        *config.TelegramConfig
	httpClient *http.Client
	log        logger.Logger
}

func NewTelegramNotifier(cfg *config.TelegramConfig, log logger.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: sendTimeout},
		log:        log,
	}
}

// Send delivers one message. It reports failure through the return value
// and logs; it never panics into the caller.
func (n *TelegramNotifier) Send(text string) bool {
	if n.cfg.BotToken == "" || n.cfg.ChatID == "" {
		n.log.Error("missing TELEGRAM_BOT_TOKEN or TELEGRAM_CHAT_ID, cannot send notification")
		return false
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(n.cfg.APIBaseURL, "/"), n.cfg.BotToken)

	form := url.Values{}
	form.Set("chat_id", n.cfg.ChatID)
	form.Set("text", text)
	form.Set("parse_mode", "HTML")
	form.Set("disable_web_page_preview", "true")

	resp, err := n.httpClient.PostForm(endpoint, form)
	if err != nil {
		n.log.Errorf("telegram send failed: %v", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyLimit))
		n.log.Errorf("telegram error: status %d, response %s", resp.StatusCode, utils.Truncate(string(body), responseBodyLimit))
		return false
	}

	return true
}
