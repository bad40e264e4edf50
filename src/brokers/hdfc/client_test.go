package hdfc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/brokerbridge/src/brokers/upstream"
	"github.com/username/brokerbridge/src/models"
	"github.com/username/brokerbridge/src/parsers"
)

type fakeHDFC struct {
	t            *testing.T
	directWorks  bool
	holdingsHits []string
}

func (f *fakeHDFC) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /login", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(f.t, "key", r.URL.Query().Get("api_key"))
		json.NewEncoder(w).Encode(map[string]any{"tokenId": "tok-1"})
	})
	mux.HandleFunc("POST /login/validate", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(f.t, "tok-1", r.URL.Query().Get("token_id"))
		var body map[string]string
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(f.t, "alice", body["username"])
		json.NewEncoder(w).Encode(map[string]any{"twofa": map[string]any{"questions": []any{"OTP"}}})
	})
	mux.HandleFunc("POST /twofa/validate", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
		if body["answer"] != "123456" {
			json.NewEncoder(w).Encode(map[string]any{"authorised": false})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"authorised": true, "requestToken": "req-1", "callbackUrl": "https://cb"})
	})
	mux.HandleFunc("POST /access-token", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(f.t, "req-1", r.URL.Query().Get("request_token"))
		var body map[string]string
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(f.t, "secret", body["apiSecret"])
		json.NewEncoder(w).Encode(map[string]any{"accessToken": "acc-1"})
	})
	mux.HandleFunc("GET /portfolio/holdings", func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		f.holdingsHits = append(f.holdingsHits, auth)
		if auth == "Bearer req-1" && !f.directWorks {
			http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"data":[[{"security_id":"TCS","quantity":5,"average_price":3000.25,"close_price":3200}]]}`))
	})
	return mux
}

func newTestClient(t *testing.T, f *fakeHDFC) *Client {
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", "key", "secret", 5*time.Second)
}

func TestLoginFlowWithFallback(t *testing.T) {
	f := &fakeHDFC{t: t}
	c := newTestClient(t, f)
	ctx := context.Background()

	challenge, err := c.StartLogin(ctx, "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", challenge.TokenID)
	assert.NotNil(t, challenge.TwoFA)

	doc, token, err := c.CompleteLogin(ctx, challenge, "123456")
	require.NoError(t, err)
	assert.Equal(t, "acc-1", token)
	assert.Equal(t, []string{"Bearer req-1", "Bearer acc-1"}, f.holdingsHits)

	entries := parsers.Normalize(doc)
	require.Len(t, entries, 1)
	assert.Equal(t, json.Number("3000.25"), entries[0]["average_price"])
}

func TestDirectRequestTokenWorks(t *testing.T) {
	f := &fakeHDFC{t: t, directWorks: true}
	c := newTestClient(t, f)

	_, token, err := c.HoldingsWithFallback(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, "req-1", token)
	assert.Len(t, f.holdingsHits, 1)
}

func TestOTPRejected(t *testing.T) {
	c := newTestClient(t, &fakeHDFC{t: t})

	_, _, err := c.CompleteLogin(context.Background(), &models.LoginChallenge{TokenID: "tok-1"}, "000000")
	assert.ErrorIs(t, err, upstream.ErrOTPRejected)
}

func TestHoldingsUpstreamErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", "secret", time.Second)
	_, err := c.Holdings(context.Background(), "acc")
	require.Error(t, err)
	assert.ErrorIs(t, err, upstream.ErrUpstreamUnavailable)

	var se *upstream.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusServiceUnavailable, se.Status)
}

func TestHoldingsTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", "secret", 50*time.Millisecond)
	_, err := c.Holdings(context.Background(), "acc")
	assert.ErrorIs(t, err, upstream.ErrUpstreamUnavailable)
}

func TestNotConfigured(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "", "", time.Second)
	_, err := c.TokenID(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
}
