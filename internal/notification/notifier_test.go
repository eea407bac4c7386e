package notification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTelegramNotifier_Send(t *testing.T) {
	var gotPath string
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tg := NewTelegramNotifier("TOKEN", "42")
	tg.APIBase = srv.URL
	err := tg.Send(context.Background(), Alert{Level: AlertCritical, Title: "BANKNIFTY 09:31", Message: "BUY_CE (A+)"})
	require.NoError(t, err)

	assert.Equal(t, "/botTOKEN/sendMessage", gotPath)
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "MarkdownV2", got["parse_mode"])
	text := got["text"].(string)
	assert.True(t, strings.HasPrefix(text, "🔴"))
	assert.Contains(t, text, `BUY\_CE \(A\+\)`)
}

func TestTelegramNotifier_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	tg := NewTelegramNotifier("TOKEN", "42")
	tg.APIBase = srv.URL
	err := tg.Send(context.Background(), Alert{Title: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")

	assert.Error(t, NewTelegramNotifier("", "42").Send(context.Background(), Alert{}))
	assert.False(t, NewTelegramNotifier("TOKEN", "").Enabled())
}

func TestWebhookNotifier_ForwardsPayload(t *testing.T) {
	var got map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := NewWebhookNotifier(srv.URL).Send(context.Background(), Alert{
		Level:   AlertWarning,
		Title:   "NIFTY",
		Payload: json.RawMessage(`{"symbol":"NIFTY","confidence":72}`),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `"WARNING"`, string(got["level"]))
	assert.JSONEq(t, `{"symbol":"NIFTY","confidence":72}`, string(got["alert"]))
}

func TestWebhookNotifier_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	assert.Error(t, NewWebhookNotifier(srv.URL).Send(context.Background(), Alert{}))
}

type stubNotifier struct {
	calls int
	err   error
}

func (s *stubNotifier) Send(context.Context, Alert) error {
	s.calls++
	return s.err
}

func TestMulti_AttemptsAll(t *testing.T) {
	boom := errors.New("boom")
	a, b, c := &stubNotifier{err: boom}, &stubNotifier{}, NewLogNotifier()
	err := Multi{a, b, c}.Send(context.Background(), Alert{Title: "t"})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)

	assert.NoError(t, Multi{b}.Send(context.Background(), Alert{}))
}
