package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/RyanCardin15/counterplay/internal/config"
)

func newTestApp(t *testing.T) *App {
	t.Helper()

	cfg := config.Default()
	cfg.OAuth.Clients = []config.StaticClient{{
		ClientID:     "chatgpt-apps-sdk",
		ClientName:   "ChatGPT",
		RedirectURIs: []string{"https://chatgpt.com/oauth/callback"},
		Scopes:       []string{"loadouts:read", "loadouts:write"},
	}}
	// Keep the rate limiter out of the way for test volume.
	cfg.OAuth.RateLimitPerSecond = 1000
	cfg.OAuth.RateLimitBurst = 1000

	a, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func TestHealthEndpoint(t *testing.T) {
	a := newTestApp(t)

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestDiscoveryMetadataServed(t *testing.T) {
	a := newTestApp(t)

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/.well-known/oauth-authorization-server", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var meta map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &meta))
	assert.Equal(t, "http://localhost:8080", meta["issuer"])
}

func TestMCPRequiresBearerToken(t *testing.T) {
	a := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "resource_metadata")
}

func TestFullFlowAuthorizeExchangeInvoke(t *testing.T) {
	a := newTestApp(t)
	h := a.Handler()

	// Authorize with PKCE.
	verifier := oauth2.GenerateVerifier()
	params := url.Values{
		"response_type":         {"code"},
		"client_id":             {"chatgpt-apps-sdk"},
		"redirect_uri":          {"https://chatgpt.com/oauth/callback"},
		"scope":                 {"loadouts:read loadouts:write"},
		"state":                 {"abcdefgh"},
		"code_challenge":        {oauth2.S256ChallengeFromVerifier(verifier)},
		"code_challenge_method": {"S256"},
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/authorize?"+params.Encode(), nil))
	require.Equal(t, http.StatusFound, rec.Code, rec.Body.String())

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	code := loc.Query().Get("code")
	require.NotEmpty(t, code)

	// Exchange the code.
	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {"https://chatgpt.com/oauth/callback"},
		"code_verifier": {verifier},
		"client_id":     {"chatgpt-apps-sdk"},
	}
	tokenReq := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(form.Encode()))
	tokenReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, tokenReq)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var tokens struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tokens))
	require.NotEmpty(t, tokens.AccessToken)

	// Replaying the code fails.
	replay := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(form.Encode()))
	replay.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, replay)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_grant")

	// Invoke a tool through the MCP endpoint with the bearer token.
	rpc := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"search_weapons","arguments":{"category":"AR"}}}`
	mcpReq := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(rpc))
	mcpReq.Header.Set("Content-Type", "application/json")
	mcpReq.Header.Set("Accept", "application/json, text/event-stream")
	mcpReq.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, mcpReq)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "RAM-7")
}
