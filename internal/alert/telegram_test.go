package alert

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeTelegram struct {
	mu     sync.Mutex
	status int
	texts  []string
	paths  []string
}

func (f *fakeTelegram) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseMultipartForm(1 << 20)

	f.mu.Lock()
	f.paths = append(f.paths, r.URL.Path)
	f.texts = append(f.texts, r.FormValue("text"))
	status := f.status
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if status != 0 && status != http.StatusOK {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":500,"description":"Internal Server Error"}`))
		return
	}
	_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"},"text":"ok"}}`))
}

func TestNew_NoopWithoutCredentials(t *testing.T) {
	assert.IsType(t, Noop{}, New(TelegramConfig{Token: "x"}, zaptest.NewLogger(t)))
	assert.IsType(t, Noop{}, New(TelegramConfig{ChatID: "42"}, nil))

	// Noop никогда не падает
	Noop{}.Send(context.Background(), "ignored")
}

func TestTelegram_Send(t *testing.T) {
	fake := &fakeTelegram{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	n := New(TelegramConfig{Token: "123:abc", ChatID: "42", ServerURL: srv.URL}, zaptest.NewLogger(t))
	require.IsType(t, &Telegram{}, n)

	n.Send(context.Background(), "🚨 SafeScore ALERTA")

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.paths, 1)
	assert.True(t, strings.HasSuffix(fake.paths[0], "/sendMessage"), fake.paths[0])
	assert.Equal(t, "🚨 SafeScore ALERTA", fake.texts[0])
}

func TestTelegram_SendFailureIsSwallowed(t *testing.T) {
	fake := &fakeTelegram{status: http.StatusInternalServerError}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	n := New(TelegramConfig{Token: "123:abc", ChatID: "@alerts", ServerURL: srv.URL}, zaptest.NewLogger(t))
	assert.NotPanics(t, func() { n.Send(context.Background(), "x") })

	srv.Close()
	assert.NotPanics(t, func() { n.Send(context.Background(), "y") })
}

func TestParseChatID(t *testing.T) {
	assert.Equal(t, int64(-100123), parseChatID(" -100123 "))
	assert.Equal(t, "@channel", parseChatID("@channel"))
}
