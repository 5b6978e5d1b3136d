package storage

import (
	"context"
	"time"
)

// TokenTypeAccess and TokenTypeRefresh classify issued tokens.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Client represents a registered OAuth client.
type Client struct {
	ClientID                string
	ClientSecretHash        string // bcrypt hash, empty for public clients
	ClientType              string // "public" or "confidential"
	RedirectURIs            []string
	TokenEndpointAuthMethod string
	GrantTypes              []string
	ResponseTypes           []string
	ClientName              string
	Scopes                  []string
	CreatedAt               time.Time
}

// ClientUpdate describes a partial update to a registered client.
// Nil fields are left unchanged; ClientID is immutable.
type ClientUpdate struct {
	ClientName   *string
	RedirectURIs []string
	Scopes       []string
}

// AuthorizationCode represents an issued single-use authorization code.
// The code is bound to the client, redirect URI, scope set, and PKCE
// challenge it was issued for.
type AuthorizationCode struct {
	Code                string
	ClientID            string
	RedirectURI         string
	Scope               string
	CodeChallenge       string
	CodeChallengeMethod string
	UserID              string
	SessionID           string
	CreatedAt           time.Time
	ExpiresAt           time.Time
	Used                bool
}

// Token represents an issued access or refresh token. Tokens are looked up
// by value only; revocation flags the record rather than deleting it so
// repeated revocations stay idempotent.
type Token struct {
	Value     string
	Type      string // TokenTypeAccess or TokenTypeRefresh
	ClientID  string
	UserID    string
	SessionID string
	Scope     string
	IssuedAt  time.Time
	ExpiresAt time.Time // zero means no expiry (refresh tokens)
	Revoked   bool
	RevokedAt time.Time
}

// Expired reports whether the token is past its expiry. Tokens without an
// expiry never expire.
func (t *Token) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt)
}

// ClientStore manages OAuth client registrations.
// All methods accept context.Context for tracing and cancellation.
type ClientStore interface {
	// SaveClient saves a registered client.
	SaveClient(ctx context.Context, client *Client) error

	// GetClient retrieves a client by ID.
	GetClient(ctx context.Context, clientID string) (*Client, error)

	// UpdateClient applies a partial update to an existing client.
	// Returns ErrClientNotFound if the client does not exist.
	UpdateClient(ctx context.Context, clientID string, update ClientUpdate) error

	// DeleteClient removes a client registration.
	DeleteClient(ctx context.Context, clientID string) error

	// ListClients lists all registered clients (for admin purposes).
	ListClients(ctx context.Context) ([]*Client, error)

	// ValidateClientSecret validates a confidential client's secret.
	ValidateClientSecret(ctx context.Context, clientID, clientSecret string) error

	// CheckIPLimit checks if an IP has reached the client registration limit.
	CheckIPLimit(ctx context.Context, ip string, maxClientsPerIP int) error
}

// FlowStore manages authorization codes.
type FlowStore interface {
	// SaveAuthorizationCode saves an issued authorization code.
	SaveAuthorizationCode(ctx context.Context, code *AuthorizationCode) error

	// GetAuthorizationCode retrieves an authorization code without consuming it.
	// NOTE: For token exchange, use ConsumeAuthorizationCode instead to
	// preserve the single-use invariant under concurrency.
	GetAuthorizationCode(ctx context.Context, code string) (*AuthorizationCode, error)

	// ConsumeAuthorizationCode atomically checks that a code is unused and
	// marks it as used. Exactly one concurrent caller can succeed; all others
	// receive ErrAuthorizationCodeUsed. Expired codes are treated as absent.
	// SECURITY: This operation MUST be atomic, not read-then-write.
	ConsumeAuthorizationCode(ctx context.Context, code string) (*AuthorizationCode, error)

	// DeleteAuthorizationCode removes an authorization code.
	DeleteAuthorizationCode(ctx context.Context, code string) error
}

// TokenStore manages issued access and refresh tokens.
type TokenStore interface {
	// SaveToken saves an issued token.
	SaveToken(ctx context.Context, token *Token) error

	// GetToken retrieves a live token by value. Revoked tokens return
	// ErrTokenRevoked; expired tokens return ErrTokenExpired.
	GetToken(ctx context.Context, value string) (*Token, error)

	// RevokeToken flags a token as revoked. Revoking an already-revoked or
	// unknown token is a no-op, matching RFC 7009 semantics.
	RevokeToken(ctx context.Context, value string) error

	// ConsumeRefreshToken atomically validates a refresh token and flags it
	// revoked, returning the record as it was before consumption. Only one
	// concurrent caller can succeed; this is the rotation synchronization
	// point. SECURITY: This operation MUST be atomic.
	ConsumeRefreshToken(ctx context.Context, value string) (*Token, error)

	// RevokeAllForUserClient revokes every live token for a user+client pair.
	// Returns the number of tokens revoked.
	RevokeAllForUserClient(ctx context.Context, userID, clientID string) (int, error)
}
