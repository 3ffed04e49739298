package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"podbroker/internal/auth"
	"podbroker/internal/auth/revocation"
	"podbroker/internal/authz"
	consentService "podbroker/internal/consent/service"
	consentMemory "podbroker/internal/consent/store/memory"
	dataService "podbroker/internal/data/service"
	dataMemory "podbroker/internal/data/store/memory"
	"podbroker/internal/platform/config"
)

type testServer struct {
	router http.Handler
	tokens *auth.Service
	trl    *revocation.MemoryTRL
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := config.Config{}
	cfg.Server.RequestTimeout = 5 * time.Second
	cfg.Auth.JWTSigningKey = "test-signing-key"
	cfg.Auth.Issuer = "podbroker"
	cfg.Auth.Audience = "podbroker-api"
	cfg.Auth.AccessTTL = time.Hour

	tokens := auth.NewService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience, cfg.Auth.AccessTTL)
	trl := revocation.NewMemoryTRL()

	consents := consentService.New(consentMemory.New(), consentMemory.NewTx(), nil, nil, logger)
	authorizer := authz.New(consents, nil, logger)
	data := dataService.New(dataMemory.New(), authorizer, nil, nil, logger)

	router := NewRouter(Deps{
		Config:      cfg,
		Logger:      logger,
		Metrics:     nil,
		Validator:   tokens,
		Revocations: trl,
		Consent:     consents,
		Data:        data,
	})
	return &testServer{router: router, tokens: tokens, trl: trl}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func (ts *testServer) tokenFor(t *testing.T, subject string) string {
	t.Helper()
	token, err := ts.tokens.IssueToken(subject)
	require.NoError(t, err)
	return token
}

func TestRouter_RequiresAuth(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/consent/history", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(t, http.MethodGet, "/api/data", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_HealthAndVerify(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	token := ts.tokenFor(t, "alice")
	w = ts.do(t, http.MethodGet, "/api/auth/verify", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "alice", resp["user_id"])
}

func TestRouter_ConsentLifecycle(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.tokenFor(t, "alice")
	acme := ts.tokenFor(t, "acme")

	// Seed alice's data.
	w := ts.do(t, http.MethodPost, "/api/data/update", alice, map[string]any{
		"data": map[string]any{
			"email": map[string]any{"type": "string", "value": "alice@example.com"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)

	// Without a grant, acme is denied.
	w = ts.do(t, http.MethodGet, "/api/data/alice?type=email", acme, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Alice grants.
	w = ts.do(t, http.MethodPost, "/api/consent/grant", alice, map[string]any{
		"third_party_id": "acme",
		"data_types":     []string{"email"},
		"purpose":        "marketing",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var grant map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &grant))
	consentID := grant["id"].(string)

	// Now the read succeeds.
	w = ts.do(t, http.MethodGet, "/api/data/alice?type=email", acme, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var read struct {
		Data map[string]struct {
			Type  string          `json:"type"`
			Value json.RawMessage `json:"value"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &read))
	assert.JSONEq(t, `"alice@example.com"`, string(read.Data["email"].Value))

	// Ungranted categories stay closed.
	w = ts.do(t, http.MethodGet, "/api/data/alice?type=address", acme, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Revoke flips the decision on the next call.
	w = ts.do(t, http.MethodPost, "/api/consent/revoke", alice, map[string]any{
		"consent_id": consentID,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodGet, "/api/data/alice?type=email", acme, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Double revoke conflicts.
	w = ts.do(t, http.MethodPost, "/api/consent/revoke", alice, map[string]any{
		"consent_id": consentID,
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	// Someone else revoking is forbidden even with a fresh grant.
	w = ts.do(t, http.MethodPost, "/api/consent/grant", alice, map[string]any{
		"third_party_id": "acme",
		"data_types":     []string{"email"},
		"purpose":        "marketing",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &grant))

	w = ts.do(t, http.MethodPost, "/api/consent/revoke", acme, map[string]any{
		"consent_id": grant["id"].(string),
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRouter_RevokedTokenIsRejected(t *testing.T) {
	ts := newTestServer(t)
	token := ts.tokenFor(t, "alice")

	w := ts.do(t, http.MethodGet, "/api/auth/verify", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	claims, err := ts.tokens.ValidateToken(token)
	require.NoError(t, err)
	require.NoError(t, ts.trl.Revoke(t.Context(), claims.JTI, time.Hour))

	w = ts.do(t, http.MethodGet, "/api/auth/verify", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_SelfAccessNeverGated(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.tokenFor(t, "alice")

	w := ts.do(t, http.MethodGet, "/api/data", alice, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodGet, "/api/data/alice?type=email", alice, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_AccessRequest(t *testing.T) {
	ts := newTestServer(t)
	acme := ts.tokenFor(t, "acme")

	w := ts.do(t, http.MethodPost, "/api/data/request", acme, map[string]any{
		"user_id":    "alice",
		"data_types": []string{"email"},
		"purpose":    "marketing",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "pending", resp["status"])

	// A pending request grants nothing.
	w = ts.do(t, http.MethodGet, "/api/data/alice?type=email", acme, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
