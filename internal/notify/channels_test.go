package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmailChannel_PostsToResend(t *testing.T) {
	var got resendEmail
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/emails", r.URL.Path)
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"em_1"}`))
	}))
	defer srv.Close()

	ch := NewEmailChannel(srv.URL, "re_key", "Portal <noreply@example.com>")
	err := ch.Send(context.Background(), Message{
		Subject: "Approved",
		Body:    "<p>ok</p>",
		Data:    map[string]string{"email": "owner@acme.test"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer re_key", auth)
	assert.Equal(t, []string{"owner@acme.test"}, got.To)
	assert.Equal(t, "Approved", got.Subject)
	assert.Equal(t, "<p>ok</p>", got.HTML)
	assert.Equal(t, "Portal <noreply@example.com>", got.From)
}

func TestEmailChannel_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"invalid from address"}`))
	}))
	defer srv.Close()

	ch := NewEmailChannel(srv.URL, "re_key", "bad")
	assert.ErrorIs(t, ch.Send(context.Background(), Message{}), ErrNoRecipient)

	err := ch.Send(context.Background(), Message{Data: map[string]string{"email": "a@b.test"}})
	assert.ErrorContains(t, err, "invalid from address")
}

func TestTelegramChannel_SendMessage(t *testing.T) {
	var body map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botT0KEN/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	ch := NewTelegramChannel(srv.URL, "T0KEN", "-100")
	require.NoError(t, ch.Send(context.Background(), Message{Body: "hello"}))
	assert.Equal(t, map[string]string{"chat_id": "-100", "text": "hello"}, body)
}

func TestTelegramChannel_NotOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	}))
	defer srv.Close()

	ch := NewTelegramChannel(srv.URL, "T0KEN", "nope")
	assert.ErrorContains(t, ch.Send(context.Background(), Message{Body: "x"}), "chat not found")
}
