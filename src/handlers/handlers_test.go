package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/username/brokerbridge/src/brokers"
	"github.com/username/brokerbridge/src/config"
	"github.com/username/brokerbridge/src/database"
	"github.com/username/brokerbridge/src/models"
	"github.com/username/brokerbridge/src/parsers"
	"github.com/username/brokerbridge/src/processors"
	"github.com/username/brokerbridge/src/security"
	"github.com/username/brokerbridge/src/services"
)

const snapshot = `{"data": [
  [{"symbol": "TCS", "company_name": "Tata Consultancy", "isin": "INE467B01029",
    "quantity": "10", "average_price": "1500", "close_price": "1600"}],
  [{"scheme_name": "ABC Fund", "isin": "INF000A01011", "units": "50", "nav": "10"}]
]}`

const members = `
brokers:
  hdfc:
    platform: HDFC Securities
    equity_member: 3f1c2a44-8a3e-4c1e-9a55-0f6e7f0b1a01
    mutual_fund_member: 9b2d7c10-5e4f-4a3b-8c2d-1e0f9a8b7c02
`

type fakeBroker struct{}

func (fakeBroker) Slug() string { return "hdfc" }

func (fakeBroker) FetchHoldings(context.Context, string) (any, error) {
	return parsers.DecodePayload([]byte(snapshot))
}

func (fakeBroker) StartLogin(context.Context, string, string) (*models.LoginChallenge, error) {
	return &models.LoginChallenge{TokenID: "tok", TwoFA: "Enter OTP"}, nil
}

func (fakeBroker) CompleteLogin(_ context.Context, _ *models.LoginChallenge, otp string) (any, string, error) {
	if otp != "123456" {
		return nil, "", brokers.ErrOTPRejected
	}
	raw, err := parsers.DecodePayload([]byte(snapshot))
	return raw, "access-token", err
}

type testAPI struct {
	handler http.Handler
	auth    *security.AuthService
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, "sqlite", filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mapping, err := config.ParseMemberMapping([]byte(members))
	require.NoError(t, err)
	sealer, err := security.NewTokenSealer("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)

	store := database.NewHoldingStore(db)
	holdingsService := services.NewHoldingsService(store, cache.New(time.Minute, time.Minute), time.Minute)
	importService := services.NewImportService(store, processors.NewHoldingProcessor(false), time.Second,
		services.WithCacheInvalidator(holdingsService))
	loginService := services.NewLoginService(brokers.NewRegistry(fakeBroker{}), sealer, time.Minute, time.Hour)

	auth := security.NewAuthService("test-jwt-secret-that-is-at-least-32-bytes", time.Hour)
	router := NewRouter(
		NewAuthHandler(auth),
		NewBrokerHandler(loginService, importService, holdingsService, mapping, 1<<20),
		NewHoldingsHandler(holdingsService),
	)
	return &testAPI{handler: router, auth: auth}
}

func (a *testAPI) do(t *testing.T, userID, method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	for k, v := range header {
		req.Header[k] = v
	}
	if userID != "" {
		token, err := a.auth.GenerateToken(userID)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthIsPublic(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(t, "", http.MethodGet, "/api/health", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeJSON(t, rec)["status"])
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(t, "", http.MethodGet, "/api/holdings/equity", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(t, "", http.MethodGet, "/api/holdings/equity", nil, http.Header{"Authorization": {"Bearer nonsense"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOTPLoginImportsHoldings(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, "u1", http.MethodPost, "/api/brokers/hdfc/login", map[string]string{"username": "alice", "password": "pw"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	loginID, _ := decodeJSON(t, rec)["loginId"].(string)
	require.NotEmpty(t, loginID)

	rec = api.do(t, "u1", http.MethodPost, "/api/brokers/hdfc/otp", map[string]string{"loginId": loginID, "otp": "000000"}, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, string(services.KindOTPRejected), decodeJSON(t, rec)["kind"])

	rec = api.do(t, "u2", http.MethodPost, "/api/brokers/hdfc/otp", map[string]string{"loginId": loginID, "otp": "123456"}, nil)
	require.Equal(t, http.StatusNotFound, rec.Code, "another user cannot finish the login")

	rec = api.do(t, "u1", http.MethodPost, "/api/brokers/zerodha/otp", map[string]string{"loginId": loginID, "otp": "123456"}, nil)
	require.Equal(t, http.StatusNotFound, rec.Code, "login belongs to hdfc")
	assert.Equal(t, string(services.KindLoginNotFound), decodeJSON(t, rec)["kind"])

	rec = api.do(t, "u1", http.MethodPost, "/api/brokers/hdfc/otp", map[string]string{"loginId": loginID, "otp": "123456"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decodeJSON(t, rec)
	assert.EqualValues(t, 1, result["equity"])
	assert.EqualValues(t, 1, result["mutualFunds"])

	rec = api.do(t, "u1", http.MethodGet, "/api/brokers/hdfc/status", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decodeJSON(t, rec)
	assert.Equal(t, true, status["connected"])
	assert.NotEmpty(t, status["lastSync"])
	assert.NotEmpty(t, status["lastImportDate"])

	// the session is kept, so a sync needs no token
	rec = api.do(t, "u1", http.MethodPost, "/api/brokers/hdfc/sync", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 1, decodeJSON(t, rec)["equity"])
}

func TestHoldingsETag(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(t, "u1", http.MethodPost, "/api/brokers/hdfc/sync", map[string]string{"accessToken": "direct"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(t, "u1", http.MethodGet, "/api/holdings/equity", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var equity []models.EquityRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &equity))
	require.Len(t, equity, 1)
	assert.Equal(t, "TCS", equity[0].Symbol)
	assert.Equal(t, "15000", equity[0].InvestedAmount.String())
	assert.Equal(t, "16000", equity[0].CurrentValue.String())

	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)
	assert.Equal(t, "no-cache, private", rec.Header().Get("Cache-Control"))

	rec = api.do(t, "u1", http.MethodGet, "/api/holdings/equity", nil, http.Header{"If-None-Match": {`"stale", ` + etag}})
	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = api.do(t, "u1", http.MethodGet, "/api/holdings/mutual-funds?member_id=9b2d7c10-5e4f-4a3b-8c2d-1e0f9a8b7c02", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var funds []models.MutualFundRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &funds))
	require.Len(t, funds, 1)
	assert.Equal(t, "500", funds[0].InvestedAmount.String())

	rec = api.do(t, "u1", http.MethodGet, "/api/holdings/mutual-funds?member_id=not-a-uuid", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, "u2", http.MethodGet, "/api/holdings/equity", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func multipartBody(t *testing.T, filename, content string) ([]byte, http.Header) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return body.Bytes(), http.Header{"Content-Type": {mw.FormDataContentType()}}
}

func TestImportUpload(t *testing.T) {
	api := newTestAPI(t)

	body, header := multipartBody(t, "snapshot.json", snapshot)
	rec := api.do(t, "u1", http.MethodPost, "/api/brokers/hdfc/import", body, header)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 1, decodeJSON(t, rec)["equity"])

	body, header = multipartBody(t, "notes.txt", "hello there")
	rec = api.do(t, "u1", http.MethodPost, "/api/brokers/hdfc/import", body, header)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body, header = multipartBody(t, "broken.json", `{"data": [`)
	rec = api.do(t, "u1", http.MethodPost, "/api/brokers/hdfc/import", body, header)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(services.KindInvalidPayload), decodeJSON(t, rec)["kind"])

	body, header = multipartBody(t, "snapshot.json", snapshot)
	rec = api.do(t, "u1", http.MethodPost, "/api/brokers/zerodha/import", body, header)
	assert.Equal(t, http.StatusNotFound, rec.Code, "no member mapping for zerodha")
}

func TestBrokerErrors(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		kind   services.ErrorKind
	}{
		{"unknown broker login", http.MethodPost, "/api/brokers/nope/login", map[string]string{"username": "a", "password": "b"}, http.StatusNotFound, services.KindUnknownBroker},
		{"missing credentials", http.MethodPost, "/api/brokers/hdfc/login", map[string]string{"username": "a"}, http.StatusBadRequest, ""},
		{"expired login", http.MethodPost, "/api/brokers/hdfc/otp", map[string]string{"loginId": "gone", "otp": "1"}, http.StatusNotFound, services.KindLoginNotFound},
		{"sync without session", http.MethodPost, "/api/brokers/hdfc/sync", nil, http.StatusConflict, services.KindNotConnected},
		{"request token unsupported", http.MethodPost, "/api/brokers/hdfc/sync", map[string]string{"requestToken": "rt"}, http.StatusBadRequest, services.KindUnsupported},
		{"status unknown broker", http.MethodGet, "/api/brokers/nope/status", nil, http.StatusNotFound, services.KindUnknownBroker},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := api.do(t, "u1", tc.method, tc.path, tc.body, nil)
			require.Equal(t, tc.status, rec.Code, rec.Body.String())
			if tc.kind != "" {
				assert.Equal(t, string(tc.kind), decodeJSON(t, rec)["kind"])
			}
		})
	}
}

func TestStatusForError(t *testing.T) {
	assert.Equal(t, http.StatusBadGateway, StatusForError(&services.ImportError{Step: "insert_equity", Kind: services.KindUpstreamUnavailable}))
	assert.Equal(t, http.StatusBadRequest, StatusForError(services.ErrInvalidScope))
	assert.Equal(t, http.StatusInternalServerError, StatusForError(assert.AnError))
}

func TestRateLimitMiddleware(t *testing.T) {
	limited := RateLimitMiddleware(rate.NewLimiter(0, 1))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	limited.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	limited.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestCORSMiddleware(t *testing.T) {
	h := CORSMiddleware([]string{"http://localhost:3000"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/holdings/equity", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.True(t, strings.Contains(rec.Header().Get("Access-Control-Expose-Headers"), "ETag"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
