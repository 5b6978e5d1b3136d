// Package oauth implements a self-contained OAuth 2.1 authorization server
// with PKCE, refresh token rotation, and RFC 7009 revocation. It issues
// opaque bearer tokens backed by pluggable storage and guards the tool
// dispatch surface through the ValidateToken middleware.
package oauth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"

	"github.com/RyanCardin15/counterplay/internal/instrumentation"
	"github.com/RyanCardin15/counterplay/internal/security"
	"github.com/RyanCardin15/counterplay/internal/storage"
)

// Server implements the OAuth 2.1 authorization server logic. It coordinates
// the flow engines over the storage backends; the HTTP adapter lives in
// Handler.
type Server struct {
	clientStore storage.ClientStore
	flowStore   storage.FlowStore
	tokenStore  storage.TokenStore

	auditor     *security.Auditor
	rateLimiter *security.RateLimiter
	instr       *instrumentation.Instrumentation

	config *Config
	logger *slog.Logger
}

// Config holds authorization server configuration.
type Config struct {
	// Issuer is the server's issuer identifier (base URL)
	Issuer string

	// DefaultUserID is the identity authorization requests are approved for.
	// The server runs single-tenant: any valid authorization request is
	// auto-approved on behalf of this user.
	DefaultUserID string

	// AuthorizationCodeTTL is how long authorization codes are valid
	AuthorizationCodeTTL int64 // seconds, default: 600 (10 minutes)

	// AccessTokenTTL is how long access tokens are valid
	AccessTokenTTL int64 // seconds, default: 3600 (1 hour)

	// RefreshTokenTTL is how long refresh tokens are valid
	RefreshTokenTTL int64 // seconds, default: 7776000 (90 days)

	// SupportedScopes lists the scopes clients may request.
	// If empty, all scopes are allowed.
	SupportedScopes []string

	// TrustProxy enables trusting X-Forwarded-For and X-Real-IP headers.
	// Only enable behind a trusted reverse proxy.
	TrustProxy bool

	// TrustedProxyCount is the number of trusted proxies in front of this
	// server, used with TrustProxy to extract the client IP.
	TrustedProxyCount int // default: 1

	// MaxClientsPerIP limits dynamic client registrations per IP address
	MaxClientsPerIP int // default: 10

	// EnableRegistration enables the RFC 7591 dynamic registration endpoint
	EnableRegistration bool

	// AllowedOrigins lists origins permitted to make cross-origin requests.
	// Empty disables CORS headers entirely.
	AllowedOrigins []string
}

// applyDefaults fills zero-value config fields.
func (c *Config) applyDefaults() {
	if c.AuthorizationCodeTTL == 0 {
		c.AuthorizationCodeTTL = 600
	}
	if c.AccessTokenTTL == 0 {
		c.AccessTokenTTL = 3600
	}
	if c.RefreshTokenTTL == 0 {
		c.RefreshTokenTTL = 7776000
	}
	if c.TrustedProxyCount == 0 {
		c.TrustedProxyCount = 1
	}
	if c.MaxClientsPerIP == 0 {
		c.MaxClientsPerIP = 10
	}
	if c.DefaultUserID == "" {
		c.DefaultUserID = "operator"
	}
}

// Endpoint helpers derive absolute endpoint URLs from the issuer.

// AuthorizationEndpoint returns the absolute authorization endpoint URL.
func (c *Config) AuthorizationEndpoint() string { return c.Issuer + "/authorize" }

// TokenEndpoint returns the absolute token endpoint URL.
func (c *Config) TokenEndpoint() string { return c.Issuer + "/token" }

// RevocationEndpoint returns the absolute revocation endpoint URL.
func (c *Config) RevocationEndpoint() string { return c.Issuer + "/revoke" }

// RegistrationEndpoint returns the absolute registration endpoint URL.
func (c *Config) RegistrationEndpoint() string { return c.Issuer + "/register" }

// ProtectedResourceMetadataEndpoint returns the RFC 9728 metadata URL.
func (c *Config) ProtectedResourceMetadataEndpoint() string {
	return c.Issuer + MetadataPathProtectedResource
}

// NewServer creates a new OAuth server.
func NewServer(
	clientStore storage.ClientStore,
	flowStore storage.FlowStore,
	tokenStore storage.TokenStore,
	config *Config,
	logger *slog.Logger,
) (*Server, error) {
	if clientStore == nil {
		return nil, fmt.Errorf("client store is required")
	}
	if flowStore == nil {
		return nil, fmt.Errorf("flow store is required")
	}
	if tokenStore == nil {
		return nil, fmt.Errorf("token store is required")
	}
	if config == nil {
		config = &Config{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	config.applyDefaults()

	return &Server{
		clientStore: clientStore,
		flowStore:   flowStore,
		tokenStore:  tokenStore,
		config:      config,
		logger:      logger,
	}, nil
}

// SetAuditor sets the security auditor.
func (s *Server) SetAuditor(aud *security.Auditor) {
	s.auditor = aud
}

// SetRateLimiter sets the rate limiter used by the HTTP layer.
func (s *Server) SetRateLimiter(rl *security.RateLimiter) {
	s.rateLimiter = rl
}

// SetInstrumentation sets the OpenTelemetry instrumentation.
func (s *Server) SetInstrumentation(instr *instrumentation.Instrumentation) {
	s.instr = instr
}

// Configuration returns the server configuration.
func (s *Server) Configuration() *Config { return s.config }

// GetClient retrieves a client by ID (for use by the handler).
func (s *Server) GetClient(ctx context.Context, clientID string) (*storage.Client, error) {
	return s.clientStore.GetClient(ctx, clientID)
}

// ValidateClientCredentials validates client credentials for the token and
// revocation endpoints.
func (s *Server) ValidateClientCredentials(ctx context.Context, clientID, clientSecret string) error {
	return s.clientStore.ValidateClientSecret(ctx, clientID, clientSecret)
}

// generateRandomToken generates a cryptographically secure random token.
// Same construction as PKCE verifiers: 32 bytes of entropy, base64url.
func generateRandomToken() string {
	return oauth2.GenerateVerifier()
}

// AuthorizeRequest carries the validated-at-HTTP-layer parameters of an
// authorization request.
type AuthorizeRequest struct {
	ClientID            string
	RedirectURI         string
	Scope               string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
}

// Authorize validates an authorization request, auto-approves it for the
// configured user, and returns the redirect URL carrying the authorization
// code and, when the client supplied one, its state.
//
// The server has no login UI. Deployments are single-tenant: the operator
// runs it for themselves, so every valid request is approved for
// Config.DefaultUserID.
func (s *Server) Authorize(ctx context.Context, req AuthorizeRequest) (string, error) {
	// State is an optional opaque pass-through. When a client does send
	// one, reject trivially guessable values.
	if req.State != "" && len(req.State) < MinStateLength {
		s.auditor.LogAuthFailure("", req.ClientID, "", "state_too_short")
		return "", ErrInvalidRequest(fmt.Sprintf("state parameter must be at least %d characters", MinStateLength))
	}

	// PKCE is mandatory, S256 only.
	if req.CodeChallenge == "" {
		s.auditor.LogAuthFailure("", req.ClientID, "", "missing_pkce_parameters")
		return "", ErrInvalidRequest("code_challenge is required (PKCE is mandatory)")
	}
	if req.CodeChallengeMethod != PKCEMethodS256 {
		s.auditor.LogAuthFailure("", req.ClientID, "", fmt.Sprintf("invalid_pkce_method: %s", req.CodeChallengeMethod))
		return "", ErrInvalidRequest("code_challenge_method must be S256")
	}
	// S256 challenges are base64url(sha256) = 43 chars
	if len(req.CodeChallenge) != 43 {
		s.auditor.LogAuthFailure("", req.ClientID, "", "malformed_code_challenge")
		return "", ErrInvalidRequest("code_challenge is malformed")
	}

	client, err := s.clientStore.GetClient(ctx, req.ClientID)
	if err != nil {
		s.auditor.LogAuthFailure("", req.ClientID, "", "unknown_client")
		return "", ErrInvalidClient("Unknown client")
	}

	if err := s.validateRedirectURI(client, req.RedirectURI); err != nil {
		s.auditor.LogAuthFailure("", req.ClientID, "", "invalid_redirect_uri")
		s.logger.Debug("Redirect URI rejected", "client_id", req.ClientID, "error", err)
		return "", ErrInvalidRequest("redirect_uri is not registered for this client")
	}

	if err := s.validateScopes(client, req.Scope); err != nil {
		s.auditor.LogAuthFailure("", req.ClientID, "", fmt.Sprintf("invalid_scope: %v", err))
		return "", ErrInvalidScope(err.Error())
	}

	code := generateRandomToken()
	now := time.Now()
	authCode := &storage.AuthorizationCode{
		Code:                code,
		ClientID:            client.ClientID,
		RedirectURI:         req.RedirectURI,
		Scope:               req.Scope,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
		UserID:              s.config.DefaultUserID,
		SessionID:           uuid.NewString(),
		CreatedAt:           now,
		ExpiresAt:           now.Add(time.Duration(s.config.AuthorizationCodeTTL) * time.Second),
	}
	if err := s.flowStore.SaveAuthorizationCode(ctx, authCode); err != nil {
		return "", fmt.Errorf("failed to save authorization code: %w", err)
	}

	s.auditor.LogEvent(security.Event{
		Type:     security.EventCodeIssued,
		UserID:   authCode.UserID,
		ClientID: client.ClientID,
		Details: map[string]any{
			"scope": req.Scope,
		},
	})
	if s.instr != nil {
		s.instr.Metrics().RecordAuthorizationStarted(ctx, client.ClientID)
	}

	redirect, err := url.Parse(req.RedirectURI)
	if err != nil {
		return "", ErrInvalidRequest("redirect_uri is malformed")
	}
	q := redirect.Query()
	q.Set("code", code)
	if req.State != "" {
		q.Set("state", req.State)
	}
	redirect.RawQuery = q.Encode()

	return redirect.String(), nil
}

// validateRedirectURI checks that a redirect URI is registered for the
// client. Matching is exact: no prefix, port, or path relaxation.
func (s *Server) validateRedirectURI(client *storage.Client, redirectURI string) error {
	if redirectURI == "" {
		return fmt.Errorf("redirect_uri is required")
	}
	for _, uri := range client.RedirectURIs {
		if uri == redirectURI {
			return nil
		}
	}
	return fmt.Errorf("redirect URI not registered for client")
}

// validateScopes checks requested scopes against the client's registered
// scopes and the server's supported set.
func (s *Server) validateScopes(client *storage.Client, scope string) error {
	if scope == "" {
		return nil
	}

	requested := strings.Fields(scope)

	for _, req := range requested {
		if len(s.config.SupportedScopes) > 0 && !containsScope(s.config.SupportedScopes, req) {
			return fmt.Errorf("unsupported scope: %s", req)
		}
		if len(client.Scopes) > 0 && !containsScope(client.Scopes, req) {
			return fmt.Errorf("scope not granted to client: %s", req)
		}
	}
	return nil
}

func containsScope(set []string, scope string) bool {
	for _, s := range set {
		if s == scope {
			return true
		}
	}
	return false
}

// isScopeSubset reports whether every scope in narrow is present in wide.
func isScopeSubset(narrow, wide string) bool {
	wideSet := make(map[string]bool)
	for _, s := range strings.Fields(wide) {
		wideSet[s] = true
	}
	for _, s := range strings.Fields(narrow) {
		if !wideSet[s] {
			return false
		}
	}
	return true
}

// ExchangeAuthorizationCode exchanges an authorization code for a token pair.
//
// The code is consumed atomically: concurrent exchanges of the same code can
// only succeed once. A reused code is a token-theft indicator, so all tokens
// issued to that user+client pair are revoked before the request is rejected.
func (s *Server) ExchangeAuthorizationCode(ctx context.Context, code, clientID, redirectURI, codeVerifier string) (*TokenResponse, error) {
	authCode, err := s.flowStore.ConsumeAuthorizationCode(ctx, code)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrAuthorizationCodeUsed) && authCode != nil:
			s.auditor.LogEvent(security.Event{
				Type:     security.EventCodeReuseDetected,
				UserID:   authCode.UserID,
				ClientID: clientID,
				Details: map[string]any{
					"severity": "critical",
					"action":   "tokens_revoked",
				},
			})
			if s.instr != nil {
				s.instr.Metrics().RecordCodeReuseDetected(ctx)
			}
			revoked, revokeErr := s.tokenStore.RevokeAllForUserClient(ctx, authCode.UserID, authCode.ClientID)
			if revokeErr != nil {
				s.logger.Error("Failed to revoke tokens after code reuse", "error", revokeErr)
			} else {
				s.logger.Warn("Authorization code reuse detected, revoked issued tokens",
					"client_id", clientID,
					"revoked", revoked)
			}
		case errors.Is(err, storage.ErrAuthorizationCodeNotFound),
			errors.Is(err, storage.ErrAuthorizationCodeUsed),
			errors.Is(err, storage.ErrTokenExpired):
			s.auditor.LogAuthFailure("", clientID, "", "invalid_authorization_code")
			s.logger.Debug("Authorization code rejected", "error", err)
		default:
			// Backend failure; surfaces as server_error at the boundary.
			return nil, fmt.Errorf("failed to consume authorization code: %w", err)
		}
		return nil, ErrInvalidGrant("Authorization code is invalid or expired")
	}

	if subtle.ConstantTimeCompare([]byte(authCode.ClientID), []byte(clientID)) != 1 {
		s.auditor.LogAuthFailure(authCode.UserID, clientID, "", "client_id_mismatch")
		return nil, ErrInvalidGrant("Authorization code is invalid or expired")
	}
	if authCode.RedirectURI != redirectURI {
		s.auditor.LogAuthFailure(authCode.UserID, clientID, "", "redirect_uri_mismatch")
		return nil, ErrInvalidGrant("Authorization code is invalid or expired")
	}

	if err := s.validatePKCE(authCode.CodeChallenge, codeVerifier); err != nil {
		s.auditor.LogEvent(security.Event{
			Type:     security.EventPKCEFailed,
			UserID:   authCode.UserID,
			ClientID: clientID,
			Details:  map[string]any{"reason": err.Error()},
		})
		if s.instr != nil {
			s.instr.Metrics().RecordPKCEValidationFailed(ctx)
		}
		s.logger.Debug("PKCE validation failed", "client_id", clientID, "error", err)
		return nil, ErrInvalidGrant("Authorization code is invalid or expired")
	}

	resp, err := s.issueTokenPair(ctx, authCode.UserID, authCode.ClientID, authCode.SessionID, authCode.Scope)
	if err != nil {
		return nil, err
	}

	s.auditor.LogTokenIssued(authCode.UserID, clientID, "", authCode.Scope)
	if s.instr != nil {
		s.instr.Metrics().RecordCodeExchange(ctx, clientID)
	}

	return resp, nil
}

// RefreshAccessToken exchanges a refresh token for a new token pair with
// rotation: the presented token is atomically revoked and a new refresh
// token is issued. requestedScope, if non-empty, must be a subset of the
// original grant.
func (s *Server) RefreshAccessToken(ctx context.Context, refreshToken, clientID, requestedScope string) (*TokenResponse, error) {
	prior, err := s.tokenStore.ConsumeRefreshToken(ctx, refreshToken)
	if err != nil {
		if !errors.Is(err, storage.ErrTokenNotFound) &&
			!errors.Is(err, storage.ErrTokenRevoked) &&
			!errors.Is(err, storage.ErrTokenExpired) {
			return nil, fmt.Errorf("failed to consume refresh token: %w", err)
		}
		s.auditor.LogAuthFailure("", clientID, "", "invalid_refresh_token")
		s.logger.Debug("Refresh token rejected", "error", err)
		return nil, ErrInvalidGrant("Refresh token is invalid or expired")
	}

	if subtle.ConstantTimeCompare([]byte(prior.ClientID), []byte(clientID)) != 1 {
		s.auditor.LogAuthFailure(prior.UserID, clientID, "", "refresh_client_mismatch")
		return nil, ErrInvalidGrant("Refresh token is invalid or expired")
	}

	// Scope may only be narrowed on refresh, never widened.
	scope := prior.Scope
	if requestedScope != "" {
		if !isScopeSubset(requestedScope, prior.Scope) {
			s.auditor.LogAuthFailure(prior.UserID, clientID, "", "scope_widening_rejected")
			return nil, ErrInvalidScope("requested scope exceeds the original grant")
		}
		scope = requestedScope
	}

	resp, err := s.issueTokenPair(ctx, prior.UserID, prior.ClientID, prior.SessionID, scope)
	if err != nil {
		return nil, err
	}

	s.auditor.LogTokenRefreshed(prior.UserID, clientID, "", true)
	if s.instr != nil {
		s.instr.Metrics().RecordTokenRefresh(ctx, clientID, true)
	}

	return resp, nil
}

// issueTokenPair mints and stores an access+refresh token pair.
func (s *Server) issueTokenPair(ctx context.Context, userID, clientID, sessionID, scope string) (*TokenResponse, error) {
	now := time.Now()

	accessToken := &storage.Token{
		Value:     generateRandomToken(),
		Type:      storage.TokenTypeAccess,
		ClientID:  clientID,
		UserID:    userID,
		SessionID: sessionID,
		Scope:     scope,
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Duration(s.config.AccessTokenTTL) * time.Second),
	}
	refreshToken := &storage.Token{
		Value:     generateRandomToken(),
		Type:      storage.TokenTypeRefresh,
		ClientID:  clientID,
		UserID:    userID,
		SessionID: sessionID,
		Scope:     scope,
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Duration(s.config.RefreshTokenTTL) * time.Second),
	}

	if err := s.tokenStore.SaveToken(ctx, accessToken); err != nil {
		return nil, fmt.Errorf("failed to save access token: %w", err)
	}
	if err := s.tokenStore.SaveToken(ctx, refreshToken); err != nil {
		return nil, fmt.Errorf("failed to save refresh token: %w", err)
	}

	return &TokenResponse{
		AccessToken:  accessToken.Value,
		TokenType:    "Bearer",
		ExpiresIn:    s.config.AccessTokenTTL,
		RefreshToken: refreshToken.Value,
		Scope:        scope,
	}, nil
}

// RevokeToken revokes a token per RFC 7009. Unknown, expired, and
// already-revoked tokens are treated as success; a token bound to a
// different client is left untouched but still reported as success so the
// endpoint cannot be used to probe for other clients' tokens.
func (s *Server) RevokeToken(ctx context.Context, tokenValue, clientID, clientIP string) error {
	token, err := s.tokenStore.GetToken(ctx, tokenValue)
	if err != nil {
		// Already revoked tokens still get the idempotent no-op path.
		if err := s.tokenStore.RevokeToken(ctx, tokenValue); err != nil {
			s.logger.Warn("Failed to revoke token", "error", err)
		}
		return nil
	}

	if token.ClientID != clientID {
		s.auditor.LogAuthFailure(token.UserID, clientID, clientIP, "revocation_client_mismatch")
		s.logger.Warn("Revocation request for another client's token",
			"client_id", clientID, "ip", clientIP)
		return nil
	}

	if err := s.tokenStore.RevokeToken(ctx, tokenValue); err != nil {
		s.logger.Warn("Failed to revoke token", "error", err)
		return nil
	}

	s.auditor.LogTokenRevoked(token.UserID, clientID, clientIP, token.Type)
	if s.instr != nil {
		s.instr.Metrics().RecordTokenRevocation(ctx, clientID)
	}

	s.logger.Info("Token revoked", "client_id", clientID, "type", token.Type)
	return nil
}

// ValidateAccessToken resolves a bearer token to its identity. Revoked,
// expired, unknown, and non-access tokens are all rejected with the same
// generic error.
func (s *Server) ValidateAccessToken(ctx context.Context, value string) (*Identity, error) {
	token, err := s.tokenStore.GetToken(ctx, value)
	if err != nil {
		s.auditor.LogAuthFailure("", "", "", "invalid_access_token")
		s.logger.Debug("Access token rejected", "error", err)
		return nil, ErrInvalidToken("Token is invalid or expired")
	}
	if token.Type != storage.TokenTypeAccess {
		s.auditor.LogAuthFailure(token.UserID, token.ClientID, "", "wrong_token_type")
		return nil, ErrInvalidToken("Token is invalid or expired")
	}

	return &Identity{
		UserID:    token.UserID,
		ClientID:  token.ClientID,
		SessionID: token.SessionID,
		Scope:     token.Scope,
	}, nil
}

// validatePKCE validates the PKCE code verifier against the S256 challenge
// per RFC 7636.
func (s *Server) validatePKCE(challenge, verifier string) error {
	if verifier == "" {
		return fmt.Errorf("code_verifier is required")
	}

	// RFC 7636: code_verifier must be 43-128 characters
	if len(verifier) < 43 {
		return fmt.Errorf("code_verifier must be at least 43 characters")
	}
	if len(verifier) > 128 {
		return fmt.Errorf("code_verifier must be at most 128 characters")
	}

	// RFC 7636: only [A-Z] / [a-z] / [0-9] / "-" / "." / "_" / "~"
	for _, ch := range verifier {
		if (ch < 'A' || ch > 'Z') && (ch < 'a' || ch > 'z') && (ch < '0' || ch > '9') &&
			ch != '-' && ch != '.' && ch != '_' && ch != '~' {
			return fmt.Errorf("code_verifier contains invalid characters")
		}
	}

	hash := sha256.Sum256([]byte(verifier))
	computed := base64.RawURLEncoding.EncodeToString(hash[:])

	if subtle.ConstantTimeCompare([]byte(computed), []byte(challenge)) != 1 {
		return fmt.Errorf("code_verifier does not match code_challenge")
	}
	return nil
}

// RegisterClient registers a new OAuth client with IP-based DoS protection.
// Returns the client and, for confidential clients, the plaintext secret
// (shown exactly once).
func (s *Server) RegisterClient(ctx context.Context, clientName, clientType string, redirectURIs, scopes []string, clientIP string) (*storage.Client, string, error) {
	if err := s.clientStore.CheckIPLimit(ctx, clientIP, s.config.MaxClientsPerIP); err != nil {
		return nil, "", err
	}
	if len(redirectURIs) == 0 {
		return nil, "", ErrInvalidRequest("redirect_uris is required")
	}

	if clientType == "" {
		clientType = ClientTypeConfidential
	}
	if clientType != ClientTypePublic && clientType != ClientTypeConfidential {
		return nil, "", ErrInvalidRequest(fmt.Sprintf("unsupported client_type: %s", clientType))
	}

	clientID := generateRandomToken()

	var clientSecret, clientSecretHash string
	if clientType == ClientTypeConfidential {
		clientSecret = generateRandomToken()
		hash, err := bcrypt.GenerateFromPassword([]byte(clientSecret), bcrypt.DefaultCost)
		if err != nil {
			return nil, "", fmt.Errorf("failed to hash client secret: %w", err)
		}
		clientSecretHash = string(hash)
	}

	client := &storage.Client{
		ClientID:                clientID,
		ClientSecretHash:        clientSecretHash,
		ClientType:              clientType,
		RedirectURIs:            redirectURIs,
		TokenEndpointAuthMethod: TokenEndpointAuthMethodSecretBasic,
		GrantTypes:              []string{GrantTypeAuthorizationCode, GrantTypeRefreshToken},
		ResponseTypes:           []string{"code"},
		ClientName:              clientName,
		Scopes:                  scopes,
		CreatedAt:               time.Now(),
	}
	if clientType == ClientTypePublic {
		client.TokenEndpointAuthMethod = TokenEndpointAuthMethodNone
	}

	if err := s.clientStore.SaveClient(ctx, client); err != nil {
		return nil, "", fmt.Errorf("failed to save client: %w", err)
	}

	s.trackClientIP(ctx, clientIP)

	s.auditor.LogClientRegistered(clientID, clientType, clientIP)
	if s.instr != nil {
		s.instr.Metrics().RecordClientRegistration(ctx, clientType)
	}

	s.logger.Info("Registered new OAuth client",
		"client_id", clientID,
		"client_name", clientName,
		"client_type", clientType,
		"client_ip", clientIP)

	return client, clientSecret, nil
}

// trackClientIP records a registration against the IP limit. Both store
// implementations expose a tracker but with different signatures, so the
// lookup is structural.
func (s *Server) trackClientIP(ctx context.Context, clientIP string) {
	switch tracker := s.clientStore.(type) {
	case interface{ TrackClientIP(string) }:
		tracker.TrackClientIP(clientIP)
	case interface {
		TrackClientIP(context.Context, string) error
	}:
		if err := tracker.TrackClientIP(ctx, clientIP); err != nil {
			s.logger.Warn("Failed to track client IP", "error", err)
		}
	}
}
