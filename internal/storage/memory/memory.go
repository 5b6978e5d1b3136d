// Package memory provides an in-memory implementation of all storage
// interfaces. It is suitable for development, testing, and single-instance
// deployments.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/RyanCardin15/counterplay/internal/security"
	"github.com/RyanCardin15/counterplay/internal/storage"
)

// Store is an in-memory implementation of storage.ClientStore,
// storage.FlowStore, and storage.TokenStore.
//
// All mutating operations take the write lock, which is what makes
// ConsumeAuthorizationCode and ConsumeRefreshToken atomic check-and-set
// operations rather than read-then-write sequences.
type Store struct {
	mu sync.RWMutex

	clients      map[string]*storage.Client
	clientsPerIP map[string]int

	authCodes map[string]*storage.AuthorizationCode
	tokens    map[string]*storage.Token

	cleanupInterval time.Duration
	// revoked tokens are kept flagged for this long so repeated revocations
	// and reuse detection keep working, then garbage collected
	revokedRetention time.Duration
	stopCleanup      chan struct{}
	stopOnce         sync.Once
	logger           *slog.Logger
}

// Compile-time interface checks.
var (
	_ storage.ClientStore = (*Store)(nil)
	_ storage.FlowStore   = (*Store)(nil)
	_ storage.TokenStore  = (*Store)(nil)
)

// New creates a new in-memory store with the default cleanup interval
// (1 minute).
func New() *Store {
	return NewWithInterval(time.Minute)
}

// NewWithInterval creates a new in-memory store with a custom cleanup
// interval. A non-positive interval falls back to the default.
func NewWithInterval(cleanupInterval time.Duration) *Store {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}

	s := &Store{
		clients:          make(map[string]*storage.Client),
		clientsPerIP:     make(map[string]int),
		authCodes:        make(map[string]*storage.AuthorizationCode),
		tokens:           make(map[string]*storage.Token),
		cleanupInterval:  cleanupInterval,
		revokedRetention: 24 * time.Hour,
		stopCleanup:      make(chan struct{}),
		logger:           slog.Default(),
	}

	go s.cleanupLoop()

	return s
}

// SetLogger sets a custom logger.
func (s *Store) SetLogger(logger *slog.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if logger != nil {
		s.logger = logger
	}
}

// Stop stops the background cleanup goroutine.
func (s *Store) Stop() {
	s.stopOnce.Do(func() { close(s.stopCleanup) })
}

// ============================================================
// ClientStore
// ============================================================

// SaveClient saves a registered client.
func (s *Store) SaveClient(ctx context.Context, client *storage.Client) error {
	if client == nil || client.ClientID == "" {
		return fmt.Errorf("invalid client")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	clientCopy := *client
	s.clients[client.ClientID] = &clientCopy
	return nil
}

// GetClient retrieves a client by ID.
func (s *Store) GetClient(ctx context.Context, clientID string) (*storage.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	client, ok := s.clients[clientID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrClientNotFound, clientID)
	}

	clientCopy := *client
	return &clientCopy, nil
}

// UpdateClient applies a partial update to an existing client.
func (s *Store) UpdateClient(ctx context.Context, clientID string, update storage.ClientUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	client, ok := s.clients[clientID]
	if !ok {
		return fmt.Errorf("%w: %s", storage.ErrClientNotFound, clientID)
	}

	if update.ClientName != nil {
		client.ClientName = *update.ClientName
	}
	if update.RedirectURIs != nil {
		client.RedirectURIs = append([]string(nil), update.RedirectURIs...)
	}
	if update.Scopes != nil {
		client.Scopes = append([]string(nil), update.Scopes...)
	}
	return nil
}

// DeleteClient removes a client registration.
func (s *Store) DeleteClient(ctx context.Context, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clients[clientID]; !ok {
		return fmt.Errorf("%w: %s", storage.ErrClientNotFound, clientID)
	}
	delete(s.clients, clientID)
	return nil
}

// ListClients lists all registered clients.
func (s *Store) ListClients(ctx context.Context) ([]*storage.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clients := make([]*storage.Client, 0, len(s.clients))
	for _, client := range s.clients {
		clientCopy := *client
		clients = append(clients, &clientCopy)
	}
	return clients, nil
}

// ValidateClientSecret validates a confidential client's secret against its
// bcrypt hash. Public clients (no stored hash) only validate an empty secret.
func (s *Store) ValidateClientSecret(ctx context.Context, clientID, clientSecret string) error {
	s.mu.RLock()
	client, ok := s.clients[clientID]
	s.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", storage.ErrClientNotFound, clientID)
	}

	if client.ClientSecretHash == "" {
		if clientSecret == "" {
			return nil
		}
		return storage.ErrInvalidClientSecret
	}

	if err := bcrypt.CompareHashAndPassword([]byte(client.ClientSecretHash), []byte(clientSecret)); err != nil {
		return storage.ErrInvalidClientSecret
	}
	return nil
}

// CheckIPLimit checks if an IP has reached the client registration limit.
func (s *Store) CheckIPLimit(ctx context.Context, ip string, maxClientsPerIP int) error {
	if maxClientsPerIP <= 0 {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.clientsPerIP[ip] >= maxClientsPerIP {
		return fmt.Errorf("%w: %s", storage.ErrIPLimitExceeded, ip)
	}
	return nil
}

// TrackClientIP records a successful registration from an IP.
func (s *Store) TrackClientIP(ip string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clientsPerIP[ip]++
}

// ============================================================
// FlowStore
// ============================================================

// SaveAuthorizationCode saves an issued authorization code.
func (s *Store) SaveAuthorizationCode(ctx context.Context, code *storage.AuthorizationCode) error {
	if code == nil || code.Code == "" {
		return fmt.Errorf("invalid authorization code")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	codeCopy := *code
	s.authCodes[code.Code] = &codeCopy
	return nil
}

// GetAuthorizationCode retrieves an authorization code without consuming it.
func (s *Store) GetAuthorizationCode(ctx context.Context, code string) (*storage.AuthorizationCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	authCode, ok := s.authCodes[code]
	if !ok {
		return nil, storage.ErrAuthorizationCodeNotFound
	}
	if security.IsExpired(authCode.ExpiresAt) {
		return nil, fmt.Errorf("%w: authorization code expired", storage.ErrTokenExpired)
	}

	codeCopy := *authCode
	return &codeCopy, nil
}

// ConsumeAuthorizationCode atomically checks that a code is unused and marks
// it as used. Exactly one concurrent caller succeeds.
//
// The record for an already-used code is returned alongside
// ErrAuthorizationCodeUsed so the caller can revoke the tokens issued from
// the first exchange (reuse is a token-theft indicator). Unknown and expired
// codes return nil to avoid leaking anything.
func (s *Store) ConsumeAuthorizationCode(ctx context.Context, code string) (*storage.AuthorizationCode, error) {
	s.mu.Lock() // write lock: this is the atomic check-and-set
	defer s.mu.Unlock()

	authCode, ok := s.authCodes[code]
	if !ok {
		return nil, storage.ErrAuthorizationCodeNotFound
	}
	if security.IsExpired(authCode.ExpiresAt) {
		return nil, fmt.Errorf("%w: authorization code expired", storage.ErrTokenExpired)
	}
	if authCode.Used {
		codeCopy := *authCode
		return &codeCopy, storage.ErrAuthorizationCodeUsed
	}

	authCode.Used = true

	codeCopy := *authCode
	return &codeCopy, nil
}

// DeleteAuthorizationCode removes an authorization code.
func (s *Store) DeleteAuthorizationCode(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.authCodes, code)
	return nil
}

// ============================================================
// TokenStore
// ============================================================

// SaveToken saves an issued token.
func (s *Store) SaveToken(ctx context.Context, token *storage.Token) error {
	if token == nil || token.Value == "" {
		return fmt.Errorf("invalid token")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tokenCopy := *token
	s.tokens[token.Value] = &tokenCopy
	return nil
}

// GetToken retrieves a live token by value.
func (s *Store) GetToken(ctx context.Context, value string) (*storage.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	token, ok := s.tokens[value]
	if !ok {
		return nil, storage.ErrTokenNotFound
	}
	if token.Revoked {
		return nil, storage.ErrTokenRevoked
	}
	if security.IsExpired(token.ExpiresAt) {
		return nil, fmt.Errorf("%w: %s token expired", storage.ErrTokenExpired, token.Type)
	}

	tokenCopy := *token
	return &tokenCopy, nil
}

// RevokeToken flags a token as revoked. Unknown and already-revoked tokens
// are a no-op, per RFC 7009.
func (s *Store) RevokeToken(ctx context.Context, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.tokens[value]
	if !ok || token.Revoked {
		return nil
	}

	token.Revoked = true
	token.RevokedAt = time.Now()
	return nil
}

// ConsumeRefreshToken atomically validates a refresh token and flags it
// revoked, returning the record as it was before consumption. This is the
// rotation synchronization point: only one concurrent caller succeeds.
func (s *Store) ConsumeRefreshToken(ctx context.Context, value string) (*storage.Token, error) {
	s.mu.Lock() // write lock: atomic check-and-revoke
	defer s.mu.Unlock()

	token, ok := s.tokens[value]
	if !ok {
		return nil, storage.ErrTokenNotFound
	}
	if token.Type != storage.TokenTypeRefresh {
		return nil, storage.ErrTokenNotFound
	}
	if token.Revoked {
		return nil, storage.ErrTokenRevoked
	}
	if security.IsExpired(token.ExpiresAt) {
		return nil, fmt.Errorf("%w: refresh token expired", storage.ErrTokenExpired)
	}

	tokenCopy := *token

	token.Revoked = true
	token.RevokedAt = time.Now()

	return &tokenCopy, nil
}

// RevokeAllForUserClient revokes every live token for a user+client pair.
func (s *Store) RevokeAllForUserClient(ctx context.Context, userID, clientID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	revoked := 0
	for _, token := range s.tokens {
		if token.UserID == userID && token.ClientID == clientID && !token.Revoked {
			token.Revoked = true
			token.RevokedAt = now
			revoked++
		}
	}
	return revoked, nil
}

// ============================================================
// Cleanup
// ============================================================

func (s *Store) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCleanup:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *Store) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	cleaned := 0

	// Used codes linger until expiry so reuse attempts remain detectable.
	for code, authCode := range s.authCodes {
		if security.IsExpired(authCode.ExpiresAt) {
			delete(s.authCodes, code)
			cleaned++
		}
	}

	for value, token := range s.tokens {
		switch {
		case token.Revoked && now.Sub(token.RevokedAt) > s.revokedRetention:
			delete(s.tokens, value)
			cleaned++
		case !token.Revoked && security.IsExpired(token.ExpiresAt):
			delete(s.tokens, value)
			cleaned++
		}
	}

	if cleaned > 0 {
		s.logger.Debug("Cleaned up expired records", "count", cleaned)
	}
}
