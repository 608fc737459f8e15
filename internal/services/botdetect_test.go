package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"leadflow/pkg/config"
	"leadflow/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const browserUA = "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_0) AppleWebKit/537.36 Chrome/126.0 Safari/537.36"

func newSubmitRequest(ua string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/quiz/submit", nil)
	req.Header.Set("User-Agent", ua)
	return req
}

func TestHeuristicDetector(t *testing.T) {
	d := NewHeuristicDetector([]string{"curl", " Python-Requests "})
	ctx := context.Background()

	bot, _ := d.IsBot(ctx, newSubmitRequest(browserUA))
	assert.False(t, bot)

	for _, ua := range []string{"", "curl/8.4.0", "python-requests/2.31"} {
		bot, _ = d.IsBot(ctx, newSubmitRequest(ua))
		assert.True(t, bot, ua)
	}

	req := newSubmitRequest(browserUA)
	req.Header.Set(HoneypotHeader, "http://spam.example")
	bot, _ = d.IsBot(ctx, req)
	assert.True(t, bot)
}

func turnstileServer(t *testing.T, success bool) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "shh", r.PostForm.Get("secret"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"success": success && r.PostForm.Get("response") == "good"})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestTurnstileVerifier(t *testing.T) {
	srv := turnstileServer(t, true)
	v := NewTurnstileVerifier(config.BotConfig{TurnstileSecret: "shh", VerifyURL: srv.URL}, time.Second)
	ctx := context.Background()

	req := newSubmitRequest(browserUA)
	bot, err := v.IsBot(ctx, req)
	require.NoError(t, err)
	assert.True(t, bot, "missing token")

	req.Header.Set(TurnstileTokenHeader, "good")
	bot, err = v.IsBot(ctx, req)
	require.NoError(t, err)
	assert.False(t, bot)

	req.Header.Set(TurnstileTokenHeader, "forged")
	bot, err = v.IsBot(ctx, req)
	require.NoError(t, err)
	assert.True(t, bot)
}

func TestTurnstileVerifier_RemoteIPIgnoresForwardedFor(t *testing.T) {
	remoteIPs := make(chan string, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		remoteIPs <- r.PostForm.Get("remoteip")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
	}))
	t.Cleanup(srv.Close)
	v := NewTurnstileVerifier(config.BotConfig{TurnstileSecret: "shh", VerifyURL: srv.URL}, time.Second)

	req := newSubmitRequest(browserUA)
	req.RemoteAddr = "198.51.100.4:40000"
	req.Header.Set(TurnstileTokenHeader, "good")
	req.Header.Set("X-Forwarded-For", "203.0.113.9")

	_, err := v.IsBot(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "198.51.100.4", <-remoteIPs)

	_, err = v.IsBot(WithClientIP(context.Background(), "192.0.2.50"), req)
	require.NoError(t, err)
	assert.Equal(t, "192.0.2.50", <-remoteIPs)
}

type stubDetector struct {
	bot   bool
	err   error
	calls int
}

func (s *stubDetector) IsBot(context.Context, *http.Request) (bool, error) {
	s.calls++
	return s.bot, s.err
}

func TestChainDetector(t *testing.T) {
	broken := &stubDetector{err: errors.New("unreachable")}
	human := &stubDetector{}
	chain := NewChainDetector(logger.NewNop(), broken, human)

	bot, err := chain.IsBot(context.Background(), newSubmitRequest(browserUA))
	require.NoError(t, err)
	assert.False(t, bot, "detector errors fail open")
	assert.Equal(t, 1, human.calls)

	first := &stubDetector{bot: true}
	second := &stubDetector{}
	bot, _ = NewChainDetector(logger.NewNop(), first, second).IsBot(context.Background(), newSubmitRequest(browserUA))
	assert.True(t, bot)
	assert.Zero(t, second.calls, "short-circuits on the first positive signal")
}
