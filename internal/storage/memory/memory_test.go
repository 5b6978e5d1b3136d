package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/RyanCardin15/counterplay/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewWithInterval(time.Hour)
	t.Cleanup(s.Stop)
	return s
}

func TestClientCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	client := &storage.Client{
		ClientID:     "client-1",
		ClientName:   "Test Client",
		RedirectURIs: []string{"https://example.com/callback"},
		Scopes:       []string{"loadouts:read"},
		CreatedAt:    time.Now(),
	}

	if err := s.SaveClient(ctx, client); err != nil {
		t.Fatalf("SaveClient failed: %v", err)
	}

	got, err := s.GetClient(ctx, "client-1")
	if err != nil {
		t.Fatalf("GetClient failed: %v", err)
	}
	if got.ClientName != "Test Client" {
		t.Errorf("expected client name 'Test Client', got %q", got.ClientName)
	}

	// Mutating the returned copy must not affect the stored record.
	got.ClientName = "mutated"
	got2, err := s.GetClient(ctx, "client-1")
	if err != nil {
		t.Fatalf("GetClient failed: %v", err)
	}
	if got2.ClientName != "Test Client" {
		t.Errorf("stored client mutated through returned copy")
	}

	name := "Renamed"
	if err := s.UpdateClient(ctx, "client-1", storage.ClientUpdate{ClientName: &name}); err != nil {
		t.Fatalf("UpdateClient failed: %v", err)
	}
	got3, _ := s.GetClient(ctx, "client-1")
	if got3.ClientName != "Renamed" {
		t.Errorf("expected updated name 'Renamed', got %q", got3.ClientName)
	}

	clients, err := s.ListClients(ctx)
	if err != nil {
		t.Fatalf("ListClients failed: %v", err)
	}
	if len(clients) != 1 {
		t.Errorf("expected 1 client, got %d", len(clients))
	}

	if err := s.DeleteClient(ctx, "client-1"); err != nil {
		t.Fatalf("DeleteClient failed: %v", err)
	}
	if _, err := s.GetClient(ctx, "client-1"); !errors.Is(err, storage.ErrClientNotFound) {
		t.Errorf("expected ErrClientNotFound, got %v", err)
	}
}

func TestGetClientNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetClient(context.Background(), "missing")
	if !errors.Is(err, storage.ErrClientNotFound) {
		t.Errorf("expected ErrClientNotFound, got %v", err)
	}
}

func TestValidateClientSecret(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt failed: %v", err)
	}

	if err := s.SaveClient(ctx, &storage.Client{
		ClientID:         "confidential",
		ClientSecretHash: string(hash),
	}); err != nil {
		t.Fatalf("SaveClient failed: %v", err)
	}
	if err := s.SaveClient(ctx, &storage.Client{ClientID: "public"}); err != nil {
		t.Fatalf("SaveClient failed: %v", err)
	}

	if err := s.ValidateClientSecret(ctx, "confidential", "s3cret"); err != nil {
		t.Errorf("expected valid secret, got %v", err)
	}
	if err := s.ValidateClientSecret(ctx, "confidential", "wrong"); !errors.Is(err, storage.ErrInvalidClientSecret) {
		t.Errorf("expected ErrInvalidClientSecret, got %v", err)
	}
	if err := s.ValidateClientSecret(ctx, "public", ""); err != nil {
		t.Errorf("expected public client to validate empty secret, got %v", err)
	}
	if err := s.ValidateClientSecret(ctx, "public", "anything"); !errors.Is(err, storage.ErrInvalidClientSecret) {
		t.Errorf("expected ErrInvalidClientSecret for public client with secret, got %v", err)
	}
}

func TestCheckIPLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CheckIPLimit(ctx, "10.0.0.1", 2); err != nil {
		t.Fatalf("expected no error below limit, got %v", err)
	}
	s.TrackClientIP("10.0.0.1")
	s.TrackClientIP("10.0.0.1")

	if err := s.CheckIPLimit(ctx, "10.0.0.1", 2); !errors.Is(err, storage.ErrIPLimitExceeded) {
		t.Errorf("expected ErrIPLimitExceeded, got %v", err)
	}
	// Other IPs are unaffected.
	if err := s.CheckIPLimit(ctx, "10.0.0.2", 2); err != nil {
		t.Errorf("expected no error for other IP, got %v", err)
	}
	// Zero limit disables the check.
	if err := s.CheckIPLimit(ctx, "10.0.0.1", 0); err != nil {
		t.Errorf("expected no error with limit disabled, got %v", err)
	}
}

func TestConsumeAuthorizationCode(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	code := &storage.AuthorizationCode{
		Code:      "code-1",
		ClientID:  "client-1",
		UserID:    "user-1",
		ExpiresAt: time.Now().Add(10 * time.Minute),
		CreatedAt: time.Now(),
	}
	if err := s.SaveAuthorizationCode(ctx, code); err != nil {
		t.Fatalf("SaveAuthorizationCode failed: %v", err)
	}

	got, err := s.ConsumeAuthorizationCode(ctx, "code-1")
	if err != nil {
		t.Fatalf("first consume failed: %v", err)
	}
	if got.ClientID != "client-1" {
		t.Errorf("expected client-1, got %q", got.ClientID)
	}
	if got.Used {
		t.Errorf("returned record should reflect pre-consumption state on first use")
	}

	// Second consume must fail and still return the record for reuse handling.
	got2, err := s.ConsumeAuthorizationCode(ctx, "code-1")
	if !errors.Is(err, storage.ErrAuthorizationCodeUsed) {
		t.Fatalf("expected ErrAuthorizationCodeUsed, got %v", err)
	}
	if got2 == nil || got2.ClientID != "client-1" {
		t.Errorf("expected record returned with reuse error")
	}
}

func TestConsumeAuthorizationCodeExpired(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveAuthorizationCode(ctx, &storage.AuthorizationCode{
		Code:      "stale",
		ClientID:  "client-1",
		ExpiresAt: time.Now().Add(-time.Minute),
	}); err != nil {
		t.Fatalf("SaveAuthorizationCode failed: %v", err)
	}

	_, err := s.ConsumeAuthorizationCode(ctx, "stale")
	if !errors.Is(err, storage.ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}

func TestConsumeAuthorizationCodeNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.ConsumeAuthorizationCode(context.Background(), "missing")
	if !errors.Is(err, storage.ErrAuthorizationCodeNotFound) {
		t.Errorf("expected ErrAuthorizationCodeNotFound, got %v", err)
	}
}

// TestConcurrentCodeConsumption verifies exactly one of N concurrent
// exchanges of the same code succeeds.
func TestConcurrentCodeConsumption(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveAuthorizationCode(ctx, &storage.AuthorizationCode{
		Code:      "contested",
		ClientID:  "client-1",
		ExpiresAt: time.Now().Add(10 * time.Minute),
	}); err != nil {
		t.Fatalf("SaveAuthorizationCode failed: %v", err)
	}

	const workers = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.ConsumeAuthorizationCode(ctx, "contested"); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("expected exactly 1 successful consumption, got %d", successes)
	}
}

func TestTokenLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	token := &storage.Token{
		Value:     "tok-1",
		Type:      storage.TokenTypeAccess,
		ClientID:  "client-1",
		UserID:    "user-1",
		Scope:     "loadouts:read",
		IssuedAt:  time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := s.SaveToken(ctx, token); err != nil {
		t.Fatalf("SaveToken failed: %v", err)
	}

	got, err := s.GetToken(ctx, "tok-1")
	if err != nil {
		t.Fatalf("GetToken failed: %v", err)
	}
	if got.UserID != "user-1" {
		t.Errorf("expected user-1, got %q", got.UserID)
	}

	if err := s.RevokeToken(ctx, "tok-1"); err != nil {
		t.Fatalf("RevokeToken failed: %v", err)
	}
	if _, err := s.GetToken(ctx, "tok-1"); !errors.Is(err, storage.ErrTokenRevoked) {
		t.Errorf("expected ErrTokenRevoked, got %v", err)
	}

	// Revocation is idempotent, including for unknown tokens.
	if err := s.RevokeToken(ctx, "tok-1"); err != nil {
		t.Errorf("repeated revoke should be a no-op, got %v", err)
	}
	if err := s.RevokeToken(ctx, "never-existed"); err != nil {
		t.Errorf("revoking unknown token should be a no-op, got %v", err)
	}
}

func TestGetTokenExpired(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveToken(ctx, &storage.Token{
		Value:     "old",
		Type:      storage.TokenTypeAccess,
		ExpiresAt: time.Now().Add(-time.Hour),
	}); err != nil {
		t.Fatalf("SaveToken failed: %v", err)
	}

	_, err := s.GetToken(ctx, "old")
	if !errors.Is(err, storage.ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}

func TestGetTokenNoExpiry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// A zero ExpiresAt means the token never expires.
	if err := s.SaveToken(ctx, &storage.Token{
		Value: "eternal",
		Type:  storage.TokenTypeRefresh,
	}); err != nil {
		t.Fatalf("SaveToken failed: %v", err)
	}

	if _, err := s.GetToken(ctx, "eternal"); err != nil {
		t.Errorf("expected no error for token without expiry, got %v", err)
	}
}

func TestConsumeRefreshToken(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveToken(ctx, &storage.Token{
		Value:     "refresh-1",
		Type:      storage.TokenTypeRefresh,
		ClientID:  "client-1",
		UserID:    "user-1",
		Scope:     "loadouts:read loadouts:write",
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}); err != nil {
		t.Fatalf("SaveToken failed: %v", err)
	}

	got, err := s.ConsumeRefreshToken(ctx, "refresh-1")
	if err != nil {
		t.Fatalf("ConsumeRefreshToken failed: %v", err)
	}
	if got.Revoked {
		t.Errorf("returned record should reflect pre-consumption state")
	}
	if got.Scope != "loadouts:read loadouts:write" {
		t.Errorf("unexpected scope %q", got.Scope)
	}

	// The stored token is now revoked, so a second consume fails.
	if _, err := s.ConsumeRefreshToken(ctx, "refresh-1"); !errors.Is(err, storage.ErrTokenRevoked) {
		t.Errorf("expected ErrTokenRevoked on reuse, got %v", err)
	}
}

func TestConsumeRefreshTokenRejectsAccessToken(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveToken(ctx, &storage.Token{
		Value:     "access-as-refresh",
		Type:      storage.TokenTypeAccess,
		ExpiresAt: time.Now().Add(time.Hour),
	}); err != nil {
		t.Fatalf("SaveToken failed: %v", err)
	}

	_, err := s.ConsumeRefreshToken(ctx, "access-as-refresh")
	if !errors.Is(err, storage.ErrTokenNotFound) {
		t.Errorf("expected ErrTokenNotFound for access token, got %v", err)
	}
}

// TestConcurrentRefreshConsumption verifies rotation is a synchronization
// point: exactly one concurrent refresh wins.
func TestConcurrentRefreshConsumption(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveToken(ctx, &storage.Token{
		Value:     "contested-refresh",
		Type:      storage.TokenTypeRefresh,
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}); err != nil {
		t.Fatalf("SaveToken failed: %v", err)
	}

	const workers = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.ConsumeRefreshToken(ctx, "contested-refresh"); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("expected exactly 1 successful refresh, got %d", successes)
	}
}

func TestRevokeAllForUserClient(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tokens := []*storage.Token{
		{Value: "a1", Type: storage.TokenTypeAccess, UserID: "u1", ClientID: "c1", ExpiresAt: time.Now().Add(time.Hour)},
		{Value: "r1", Type: storage.TokenTypeRefresh, UserID: "u1", ClientID: "c1", ExpiresAt: time.Now().Add(time.Hour)},
		{Value: "a2", Type: storage.TokenTypeAccess, UserID: "u1", ClientID: "c2", ExpiresAt: time.Now().Add(time.Hour)},
	}
	for _, token := range tokens {
		if err := s.SaveToken(ctx, token); err != nil {
			t.Fatalf("SaveToken failed: %v", err)
		}
	}

	revoked, err := s.RevokeAllForUserClient(ctx, "u1", "c1")
	if err != nil {
		t.Fatalf("RevokeAllForUserClient failed: %v", err)
	}
	if revoked != 2 {
		t.Errorf("expected 2 revoked, got %d", revoked)
	}

	// The other client's token survives.
	if _, err := s.GetToken(ctx, "a2"); err != nil {
		t.Errorf("expected token for other client to remain valid, got %v", err)
	}
}

func TestCleanup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveAuthorizationCode(ctx, &storage.AuthorizationCode{
		Code:      "expired-code",
		ExpiresAt: time.Now().Add(-time.Hour),
	}); err != nil {
		t.Fatalf("SaveAuthorizationCode failed: %v", err)
	}
	if err := s.SaveToken(ctx, &storage.Token{
		Value:     "expired-token",
		Type:      storage.TokenTypeAccess,
		ExpiresAt: time.Now().Add(-time.Hour),
	}); err != nil {
		t.Fatalf("SaveToken failed: %v", err)
	}
	if err := s.SaveToken(ctx, &storage.Token{
		Value:     "live-token",
		Type:      storage.TokenTypeAccess,
		ExpiresAt: time.Now().Add(time.Hour),
	}); err != nil {
		t.Fatalf("SaveToken failed: %v", err)
	}

	s.cleanup()

	s.mu.RLock()
	_, codeExists := s.authCodes["expired-code"]
	_, expiredExists := s.tokens["expired-token"]
	_, liveExists := s.tokens["live-token"]
	s.mu.RUnlock()

	if codeExists {
		t.Errorf("expired code should have been cleaned up")
	}
	if expiredExists {
		t.Errorf("expired token should have been cleaned up")
	}
	if !liveExists {
		t.Errorf("live token should have survived cleanup")
	}
}
