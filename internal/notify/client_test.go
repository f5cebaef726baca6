package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testMessage() Message {
	return Message{
		Destination: "tech@example.com",
		Channel:     "email",
		TechName:    "Taylor Tech",
		CompanyName: "Acme",
		SignupLink:  "http://localhost/signup-tech?token=abc",
		ExpiresAt:   time.Now().Add(48 * time.Hour).Format(time.RFC3339),
	}
}

func TestSendDevModeWithoutProvider(t *testing.T) {
	client := NewClient("", 2000)
	require.True(t, client.Send(context.Background(), testMessage()))
}

func TestSendSuccess(t *testing.T) {
	var received Message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 2000)
	require.True(t, client.Send(context.Background(), testMessage()))
	require.Equal(t, "tech@example.com", received.Destination)
	require.Equal(t, "Taylor Tech", received.TechName)
}

func TestSendProviderFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 2000)
	require.False(t, client.Send(context.Background(), testMessage()))
}

func TestSendTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 50)
	require.False(t, client.Send(context.Background(), testMessage()))
}
