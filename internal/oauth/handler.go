package oauth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/RyanCardin15/counterplay/internal/instrumentation"
	"github.com/RyanCardin15/counterplay/internal/security"
	"github.com/RyanCardin15/counterplay/internal/storage"
)

// Handler adapts the OAuth server to HTTP. It owns request parsing, client
// authentication, CORS, and response encoding; all flow decisions live in
// Server.
type Handler struct {
	server *Server
	logger *slog.Logger
}

// NewHandler creates an HTTP handler for the OAuth server.
func NewHandler(server *Server, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{server: server, logger: logger}
}

// RegisterRoutes attaches the OAuth endpoints to a mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/authorize", h.ServeAuthorization)
	mux.HandleFunc("/token", h.ServeToken)
	mux.HandleFunc("/revoke", h.ServeTokenRevocation)
	mux.HandleFunc("/register", h.ServeClientRegistration)
	mux.HandleFunc(MetadataPathAuthorizationServer, h.ServeAuthorizationServerMetadata)
	mux.HandleFunc(MetadataPathProtectedResource, h.ServeProtectedResourceMetadata)
}

// identityContextKey is the context key identities are stored under.
type identityContextKey struct{}

// ContextWithIdentity returns a context carrying the authenticated identity.
func ContextWithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext returns the authenticated identity, if any.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(*Identity)
	return id, ok
}

// ServeAuthorization handles GET /authorize.
func (h *Handler) ServeAuthorization(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := h.startSpan(r.Context(), "oauth.authorize")
	defer span.End()

	if r.Method == http.MethodOptions {
		h.ServePreflightRequest(w, r)
		return
	}
	if r.Method != http.MethodGet {
		h.writeError(w, r, NewError(ErrorCodeInvalidRequest, "method not allowed", http.StatusMethodNotAllowed))
		return
	}

	if !h.allowIP(w, r) {
		h.recordHTTP(ctx, r.Method, "/authorize", http.StatusTooManyRequests, start)
		return
	}

	q := r.URL.Query()
	if rt := q.Get("response_type"); rt != "code" {
		h.writeError(w, r, ErrInvalidRequest("response_type must be code"))
		h.recordHTTP(ctx, r.Method, "/authorize", http.StatusBadRequest, start)
		return
	}

	redirectURL, err := h.server.Authorize(ctx, AuthorizeRequest{
		ClientID:            q.Get("client_id"),
		RedirectURI:         q.Get("redirect_uri"),
		Scope:               q.Get("scope"),
		State:               q.Get("state"),
		CodeChallenge:       q.Get("code_challenge"),
		CodeChallengeMethod: q.Get("code_challenge_method"),
	})
	if err != nil {
		instrumentation.RecordError(span, err)
		h.writeError(w, r, err)
		h.recordHTTP(ctx, r.Method, "/authorize", errorStatus(err), start)
		return
	}

	instrumentation.SetSpanSuccess(span)
	h.recordHTTP(ctx, r.Method, "/authorize", http.StatusFound, start)
	http.Redirect(w, r, redirectURL, http.StatusFound)
}

// ServeToken handles POST /token for the authorization_code and
// refresh_token grants. Requests may be form-encoded or JSON.
func (h *Handler) ServeToken(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := h.startSpan(r.Context(), "oauth.token")
	defer span.End()

	if r.Method == http.MethodOptions {
		h.ServePreflightRequest(w, r)
		return
	}
	if r.Method != http.MethodPost {
		h.writeError(w, r, NewError(ErrorCodeInvalidRequest, "method not allowed", http.StatusMethodNotAllowed))
		return
	}

	if !h.allowIP(w, r) {
		h.recordHTTP(ctx, r.Method, "/token", http.StatusTooManyRequests, start)
		return
	}

	req, err := h.parseTokenRequest(r)
	if err != nil {
		h.writeError(w, r, ErrInvalidRequest(err.Error()))
		h.recordHTTP(ctx, r.Method, "/token", http.StatusBadRequest, start)
		return
	}

	// Basic auth credentials take precedence over body credentials.
	if id, secret, ok := parseBasicAuth(r); ok {
		req.ClientID = id
		req.ClientSecret = secret
	}

	instrumentation.SetSpanAttributes(span,
		attribute.String(instrumentation.AttrClientID, req.ClientID),
		attribute.String(instrumentation.AttrGrantType, req.GrantType))

	if err := h.authenticateClient(ctx, req.ClientID, req.ClientSecret); err != nil {
		instrumentation.RecordError(span, err)
		h.writeError(w, r, err)
		h.recordHTTP(ctx, r.Method, "/token", errorStatus(err), start)
		return
	}

	var resp *TokenResponse
	switch req.GrantType {
	case GrantTypeAuthorizationCode:
		resp, err = h.server.ExchangeAuthorizationCode(ctx, req.Code, req.ClientID, req.RedirectURI, req.CodeVerifier)
	case GrantTypeRefreshToken:
		resp, err = h.server.RefreshAccessToken(ctx, req.RefreshToken, req.ClientID, req.Scope)
	default:
		err = ErrUnsupportedGrantType(fmt.Sprintf("unsupported grant_type: %s", req.GrantType))
	}
	if err != nil {
		instrumentation.RecordError(span, err)
		h.writeError(w, r, err)
		h.recordHTTP(ctx, r.Method, "/token", errorStatus(err), start)
		return
	}

	instrumentation.SetSpanSuccess(span)
	h.recordHTTP(ctx, r.Method, "/token", http.StatusOK, start)
	h.writeTokenResponse(w, r, resp)
}

// parseTokenRequest decodes a token endpoint request from either an
// application/x-www-form-urlencoded or application/json body.
func (h *Handler) parseTokenRequest(r *http.Request) (*tokenRequest, error) {
	contentType := r.Header.Get("Content-Type")
	mediaType, _, _ := mime.ParseMediaType(contentType)

	if mediaType == "application/json" {
		var req tokenRequest
		if err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20)).Decode(&req); err != nil {
			return nil, fmt.Errorf("malformed JSON body")
		}
		return &req, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("malformed form body")
	}
	return &tokenRequest{
		GrantType:    r.PostForm.Get("grant_type"),
		Code:         r.PostForm.Get("code"),
		RedirectURI:  r.PostForm.Get("redirect_uri"),
		CodeVerifier: r.PostForm.Get("code_verifier"),
		RefreshToken: r.PostForm.Get("refresh_token"),
		Scope:        r.PostForm.Get("scope"),
		ClientID:     r.PostForm.Get("client_id"),
		ClientSecret: r.PostForm.Get("client_secret"),
	}, nil
}

// authenticateClient verifies client credentials. Public clients
// authenticate with client_id alone; confidential clients must present
// their secret.
func (h *Handler) authenticateClient(ctx context.Context, clientID, clientSecret string) error {
	if clientID == "" {
		return ErrInvalidClient("client_id is required")
	}

	client, err := h.server.GetClient(ctx, clientID)
	if err != nil {
		return ErrInvalidClient("Unknown client")
	}

	if client.ClientType == ClientTypePublic {
		if clientSecret != "" {
			return ErrInvalidClient("public clients must not send a client_secret")
		}
		return nil
	}

	if err := h.server.ValidateClientCredentials(ctx, clientID, clientSecret); err != nil {
		return ErrInvalidClient("Invalid client credentials")
	}
	return nil
}

// ServeTokenRevocation handles POST /revoke per RFC 7009. Revocation is
// idempotent: the endpoint returns 200 regardless of whether the token
// existed. The only 400 cases are a missing token or client_id field and
// an unknown client_id.
func (h *Handler) ServeTokenRevocation(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := h.startSpan(r.Context(), "oauth.revoke")
	defer span.End()

	if r.Method == http.MethodOptions {
		h.ServePreflightRequest(w, r)
		return
	}
	if r.Method != http.MethodPost {
		h.writeError(w, r, NewError(ErrorCodeInvalidRequest, "method not allowed", http.StatusMethodNotAllowed))
		return
	}

	if !h.allowIP(w, r) {
		h.recordHTTP(ctx, r.Method, "/revoke", http.StatusTooManyRequests, start)
		return
	}

	req, err := h.parseRevocationRequest(r)
	if err != nil {
		h.writeError(w, r, ErrInvalidRequest(err.Error()))
		h.recordHTTP(ctx, r.Method, "/revoke", http.StatusBadRequest, start)
		return
	}
	if id, secret, ok := parseBasicAuth(r); ok {
		req.ClientID = id
		req.ClientSecret = secret
	}

	if req.Token == "" {
		h.writeError(w, r, ErrInvalidRequest("token parameter is required"))
		h.recordHTTP(ctx, r.Method, "/revoke", http.StatusBadRequest, start)
		return
	}
	if req.ClientID == "" {
		h.writeError(w, r, ErrInvalidRequest("client_id parameter is required"))
		h.recordHTTP(ctx, r.Method, "/revoke", http.StatusBadRequest, start)
		return
	}

	if _, err := h.server.GetClient(ctx, req.ClientID); err != nil {
		h.writeError(w, r, ErrInvalidClient("unknown client"))
		h.recordHTTP(ctx, r.Method, "/revoke", http.StatusBadRequest, start)
		return
	}

	// Beyond the missing-field and unknown-client cases this endpoint
	// always answers 200: a failure status would let callers probe which
	// tokens exist. Authentication and revocation failures are logged only.
	clientIP := security.GetClientIP(r, h.server.config.TrustProxy, h.server.config.TrustedProxyCount)
	if err := h.authenticateClient(ctx, req.ClientID, req.ClientSecret); err != nil {
		instrumentation.RecordError(span, err)
		h.logger.Debug("Revocation client authentication failed",
			"client_id", req.ClientID, "error", err)
	} else if err := h.server.RevokeToken(ctx, req.Token, req.ClientID, clientIP); err != nil {
		h.logger.Error("Revocation failed", "error", err)
	}

	instrumentation.SetSpanSuccess(span)
	h.recordHTTP(ctx, r.Method, "/revoke", http.StatusOK, start)
	security.SetSecurityHeaders(w, h.server.config.Issuer)
	h.setCORSHeaders(w, r)
	w.WriteHeader(http.StatusOK)
}

// revocationRequest is the RFC 7009 revocation request body.
type revocationRequest struct {
	Token         string `json:"token"`
	TokenTypeHint string `json:"token_type_hint,omitempty"`
	ClientID      string `json:"client_id"`
	ClientSecret  string `json:"client_secret,omitempty"`
}

// parseRevocationRequest decodes a revocation request from either a form
// or JSON body.
func (h *Handler) parseRevocationRequest(r *http.Request) (*revocationRequest, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "application/json" {
		var req revocationRequest
		if err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20)).Decode(&req); err != nil {
			return nil, fmt.Errorf("malformed JSON body")
		}
		return &req, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("malformed form body")
	}
	return &revocationRequest{
		Token:         r.PostForm.Get("token"),
		TokenTypeHint: r.PostForm.Get("token_type_hint"),
		ClientID:      r.PostForm.Get("client_id"),
		ClientSecret:  r.PostForm.Get("client_secret"),
	}, nil
}

// clientRegistrationRequest is the RFC 7591 registration request body.
type clientRegistrationRequest struct {
	ClientName   string   `json:"client_name"`
	ClientType   string   `json:"client_type,omitempty"`
	RedirectURIs []string `json:"redirect_uris"`
	Scope        string   `json:"scope,omitempty"`
}

// clientRegistrationResponse is the RFC 7591 registration response body.
type clientRegistrationResponse struct {
	ClientID                string   `json:"client_id"`
	ClientSecret            string   `json:"client_secret,omitempty"`
	ClientName              string   `json:"client_name,omitempty"`
	RedirectURIs            []string `json:"redirect_uris"`
	GrantTypes              []string `json:"grant_types"`
	ResponseTypes           []string `json:"response_types"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
	Scope                   string   `json:"scope,omitempty"`
	ClientIDIssuedAt        int64    `json:"client_id_issued_at"`
}

// ServeClientRegistration handles POST /register per RFC 7591.
func (h *Handler) ServeClientRegistration(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := h.startSpan(r.Context(), "oauth.register")
	defer span.End()

	if r.Method == http.MethodOptions {
		h.ServePreflightRequest(w, r)
		return
	}
	if r.Method != http.MethodPost {
		h.writeError(w, r, NewError(ErrorCodeInvalidRequest, "method not allowed", http.StatusMethodNotAllowed))
		return
	}

	if !h.server.config.EnableRegistration {
		h.writeError(w, r, NewError(ErrorCodeInvalidRequest, "dynamic client registration is disabled", http.StatusNotFound))
		return
	}

	if !h.allowIP(w, r) {
		h.recordHTTP(ctx, r.Method, "/register", http.StatusTooManyRequests, start)
		return
	}

	var req clientRegistrationRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		h.writeError(w, r, ErrInvalidRequest("malformed JSON body"))
		h.recordHTTP(ctx, r.Method, "/register", http.StatusBadRequest, start)
		return
	}

	clientIP := security.GetClientIP(r, h.server.config.TrustProxy, h.server.config.TrustedProxyCount)
	client, secret, err := h.server.RegisterClient(ctx, req.ClientName, req.ClientType, req.RedirectURIs, strings.Fields(req.Scope), clientIP)
	if err != nil {
		if errors.Is(err, storage.ErrIPLimitExceeded) {
			err = NewError(ErrorCodeRateLimitExceeded, "too many clients registered from this address", http.StatusTooManyRequests)
		}
		instrumentation.RecordError(span, err)
		h.writeError(w, r, err)
		h.recordHTTP(ctx, r.Method, "/register", errorStatus(err), start)
		return
	}

	resp := clientRegistrationResponse{
		ClientID:                client.ClientID,
		ClientSecret:            secret,
		ClientName:              client.ClientName,
		RedirectURIs:            client.RedirectURIs,
		GrantTypes:              client.GrantTypes,
		ResponseTypes:           client.ResponseTypes,
		TokenEndpointAuthMethod: client.TokenEndpointAuthMethod,
		Scope:                   strings.Join(client.Scopes, " "),
		ClientIDIssuedAt:        client.CreatedAt.Unix(),
	}

	instrumentation.SetSpanSuccess(span)
	h.recordHTTP(ctx, r.Method, "/register", http.StatusCreated, start)

	security.SetSecurityHeaders(w, h.server.config.Issuer)
	h.setCORSHeaders(w, r)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("Failed to encode registration response", "error", err)
	}
}

// authServerMetadata is the RFC 8414 authorization server metadata document.
type authServerMetadata struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	RevocationEndpoint                string   `json:"revocation_endpoint"`
	RegistrationEndpoint              string   `json:"registration_endpoint,omitempty"`
	ScopesSupported                   []string `json:"scopes_supported,omitempty"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported"`
}

// ServeAuthorizationServerMetadata handles the RFC 8414 discovery endpoint.
func (h *Handler) ServeAuthorizationServerMetadata(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		h.ServePreflightRequest(w, r)
		return
	}
	if r.Method != http.MethodGet {
		h.writeError(w, r, NewError(ErrorCodeInvalidRequest, "method not allowed", http.StatusMethodNotAllowed))
		return
	}

	cfg := h.server.config
	meta := authServerMetadata{
		Issuer:                            cfg.Issuer,
		AuthorizationEndpoint:             cfg.AuthorizationEndpoint(),
		TokenEndpoint:                     cfg.TokenEndpoint(),
		RevocationEndpoint:                cfg.RevocationEndpoint(),
		ScopesSupported:                   cfg.SupportedScopes,
		ResponseTypesSupported:            []string{"code"},
		GrantTypesSupported:               []string{GrantTypeAuthorizationCode, GrantTypeRefreshToken},
		TokenEndpointAuthMethodsSupported: SupportedTokenAuthMethods,
		CodeChallengeMethodsSupported:     []string{PKCEMethodS256},
	}
	if cfg.EnableRegistration {
		meta.RegistrationEndpoint = cfg.RegistrationEndpoint()
	}

	h.writeJSON(w, r, http.StatusOK, meta)
}

// protectedResourceMetadata is the RFC 9728 metadata document.
type protectedResourceMetadata struct {
	Resource               string   `json:"resource"`
	AuthorizationServers   []string `json:"authorization_servers"`
	ScopesSupported        []string `json:"scopes_supported,omitempty"`
	BearerMethodsSupported []string `json:"bearer_methods_supported"`
}

// ServeProtectedResourceMetadata handles the RFC 9728 discovery endpoint.
func (h *Handler) ServeProtectedResourceMetadata(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		h.ServePreflightRequest(w, r)
		return
	}
	if r.Method != http.MethodGet {
		h.writeError(w, r, NewError(ErrorCodeInvalidRequest, "method not allowed", http.StatusMethodNotAllowed))
		return
	}

	cfg := h.server.config
	meta := protectedResourceMetadata{
		Resource:               cfg.Issuer,
		AuthorizationServers:   []string{cfg.Issuer},
		ScopesSupported:        cfg.SupportedScopes,
		BearerMethodsSupported: []string{"header"},
	}

	h.writeJSON(w, r, http.StatusOK, meta)
}

// ValidateToken wraps a handler with bearer token authentication. The
// resolved identity is placed in the request context; unauthenticated
// requests get 401 with a WWW-Authenticate challenge pointing at the
// protected resource metadata.
func (h *Handler) ValidateToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if !h.allowIP(w, r) {
			return
		}

		token, err := extractBearerToken(r)
		if err != nil {
			h.writeError(w, r, ErrInvalidToken("Missing or malformed Authorization header"))
			return
		}

		identity, err := h.server.ValidateAccessToken(ctx, token)
		if err != nil {
			h.writeError(w, r, err)
			return
		}

		// Per-user rate limit on the authenticated surface.
		if h.server.rateLimiter != nil && !h.server.rateLimiter.Allow("user:"+identity.UserID) {
			ip := security.GetClientIP(r, h.server.config.TrustProxy, h.server.config.TrustedProxyCount)
			h.server.auditor.LogRateLimitExceeded(ip, identity.UserID)
			if h.server.instr != nil {
				h.server.instr.Metrics().RecordRateLimitExceeded(ctx, "user")
			}
			h.writeError(w, r, NewError(ErrorCodeRateLimitExceeded, "rate limit exceeded", http.StatusTooManyRequests))
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithIdentity(ctx, identity)))
	})
}

// extractBearerToken pulls the bearer token from the Authorization header.
func extractBearerToken(r *http.Request) (string, error) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", fmt.Errorf("missing Authorization header")
	}
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return "", fmt.Errorf("Authorization header is not a bearer token")
	}
	return auth[len(prefix):], nil
}

// parseBasicAuth extracts client credentials from HTTP Basic auth.
func parseBasicAuth(r *http.Request) (clientID, clientSecret string, ok bool) {
	auth := r.Header.Get("Authorization")
	const prefix = "Basic "
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return "", "", false
	}
	decoded, err := base64.StdEncoding.DecodeString(auth[len(prefix):])
	if err != nil {
		return "", "", false
	}
	id, secret, found := strings.Cut(string(decoded), ":")
	if !found {
		return "", "", false
	}
	return id, secret, true
}

// allowIP applies the per-IP rate limit, writing the 429 itself on rejection.
func (h *Handler) allowIP(w http.ResponseWriter, r *http.Request) bool {
	if h.server.rateLimiter == nil {
		return true
	}
	ip := security.GetClientIP(r, h.server.config.TrustProxy, h.server.config.TrustedProxyCount)
	if h.server.rateLimiter.Allow("ip:" + ip) {
		return true
	}
	h.server.auditor.LogRateLimitExceeded(ip, "")
	if h.server.instr != nil {
		h.server.instr.Metrics().RecordRateLimitExceeded(r.Context(), "ip")
	}
	h.writeError(w, r, NewError(ErrorCodeRateLimitExceeded, "rate limit exceeded", http.StatusTooManyRequests))
	return false
}

// writeTokenResponse writes a successful token response with the cache
// directives RFC 6749 section 5.1 requires.
func (h *Handler) writeTokenResponse(w http.ResponseWriter, r *http.Request, resp *TokenResponse) {
	security.SetSecurityHeaders(w, h.server.config.Issuer)
	h.setCORSHeaders(w, r)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("Failed to encode token response", "error", err)
	}
}

// writeError writes an OAuth error response. Non-*Error values are mapped
// to a generic server_error so internal details never reach clients.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	oauthErr := &Error{}
	if !errors.As(err, &oauthErr) {
		// Deep-layer errors that describe a client-fixable grant problem
		// stay 400; anything else is an opaque server_error.
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "invalid") || strings.Contains(msg, "expired") {
			h.logger.Debug("Remapped internal error to invalid_grant", "error", err, "path", r.URL.Path)
			oauthErr = ErrInvalidGrant("grant is invalid or expired")
		} else {
			h.logger.Error("Internal error on OAuth endpoint", "error", err, "path", r.URL.Path)
			oauthErr = NewError(ErrorCodeServerError, "internal server error", http.StatusInternalServerError)
		}
	}

	security.SetSecurityHeaders(w, h.server.config.Issuer)
	h.setCORSHeaders(w, r)
	w.Header().Set("Content-Type", "application/json")

	if oauthErr.Status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", fmt.Sprintf(
			`Bearer error=%q, error_description=%q, resource_metadata=%q`,
			oauthErr.Code, oauthErr.Description,
			h.server.config.ProtectedResourceMetadataEndpoint()))
	}

	w.WriteHeader(oauthErr.Status)
	body := map[string]string{
		"error":             oauthErr.Code,
		"error_description": oauthErr.Description,
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to encode error response", "error", err)
	}
}

// writeJSON writes a JSON response with security and CORS headers applied.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	security.SetSecurityHeaders(w, h.server.config.Issuer)
	h.setCORSHeaders(w, r)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
	}
}

// setCORSHeaders sets CORS headers when the request origin is allowed.
func (h *Handler) setCORSHeaders(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin == "" || !h.originAllowed(origin) {
		return
	}
	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Set("Vary", "Origin")
}

func (h *Handler) originAllowed(origin string) bool {
	for _, allowed := range h.server.config.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// ServePreflightRequest handles CORS preflight requests.
func (h *Handler) ServePreflightRequest(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w, r)
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Mcp-Session-Id, Mcp-Protocol-Version")
	w.Header().Set("Access-Control-Max-Age", "3600")
	w.WriteHeader(http.StatusOK)
}

// errorStatus extracts the HTTP status from an error for metrics.
func errorStatus(err error) int {
	oauthErr := &Error{}
	if errors.As(err, &oauthErr) {
		return oauthErr.Status
	}
	return http.StatusInternalServerError
}

func (h *Handler) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if h.server.instr != nil {
		return h.server.instr.Tracer("oauth").Start(ctx, name)
	}
	return noop.NewTracerProvider().Tracer("oauth").Start(ctx, name)
}

func (h *Handler) recordHTTP(ctx context.Context, method, endpoint string, status int, start time.Time) {
	if h.server.instr == nil {
		return
	}
	h.server.instr.Metrics().RecordHTTPRequest(ctx, method, endpoint, status, float64(time.Since(start).Milliseconds()))
}
