package notifier

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inboxrelay/inboxrelay/config"
	"github.com/inboxrelay/inboxrelay/internal/logger"
)

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{
		DevMode: true,
	})
	appLogger.InitLogger()
	return appLogger
}

func TestSend_Success(t *testing.T) {
	var gotPath string
	var gotForm map[string][]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotPath = r.URL.Path
		gotForm = r.PostForm
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	n := NewTelegramNotifier(&config.TelegramConfig{
		BotToken:   "test-token",
		ChatID:     "12345",
		APIBaseURL: srv.URL,
	}, getLogger())

	ok := n.Send("hello")

	assert.True(t, ok)
	assert.Equal(t, "/bottest-token/sendMessage", gotPath)
	assert.Equal(t, []string{"12345"}, gotForm["chat_id"])
	assert.Equal(t, []string{"hello"}, gotForm["text"])
	assert.Equal(t, []string{"HTML"}, gotForm["parse_mode"])
}

func TestSend_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"ok":false,"description":"internal"}`))
	}))
	defer srv.Close()

	n := NewTelegramNotifier(&config.TelegramConfig{
		BotToken:   "test-token",
		ChatID:     "12345",
		APIBaseURL: srv.URL,
	}, getLogger())

	assert.False(t, n.Send("hello"))
}

func TestSend_MissingCredentials(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	n := NewTelegramNotifier(&config.TelegramConfig{
		APIBaseURL: srv.URL,
	}, getLogger())

	assert.False(t, n.Send("hello"))
	assert.False(t, called)
}

func TestSend_UnreachableTransport(t *testing.T) {
	n := NewTelegramNotifier(&config.TelegramConfig{
		BotToken:   "test-token",
		ChatID:     "12345",
		APIBaseURL: "http://127.0.0.1:1",
	}, getLogger())

	assert.False(t, n.Send("hello"))
}
