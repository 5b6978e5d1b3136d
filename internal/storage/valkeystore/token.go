package valkeystore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/RyanCardin15/counterplay/internal/storage"
)

// luaRevokeToken flags a token as revoked in place. Unknown and
// already-revoked tokens are a no-op, which makes revocation idempotent
// across instances.
//
// KEYS[1] = token key
// ARGV[1] = revocation Unix timestamp in seconds
// ARGV[2] = retention TTL in seconds for the revoked record
//
// Returns "OK" in all cases.
const luaRevokeToken = `
local data = redis.call('GET', KEYS[1])
if not data then
    return 'OK'
end

local token = cjson.decode(data)
if token.revoked then
    return 'OK'
end

token.revoked = true
token.revoked_at = tonumber(ARGV[1])
redis.call('SET', KEYS[1], cjson.encode(token), 'EX', tonumber(ARGV[2]))

return 'OK'
`

// luaConsumeRefreshToken atomically validates a refresh token and flags it
// revoked, returning the record as it was before consumption. This is the
// rotation synchronization point: only ONE concurrent caller can succeed.
//
// KEYS[1] = token key
// ARGV[1] = current Unix timestamp in seconds
// ARGV[2] = revocation retention TTL in seconds
//
// Returns:
//   - Original JSON data on success
//   - "NOT_FOUND" if the key doesn't exist or is not a refresh token
//   - "REVOKED" if the token was already consumed or revoked
//   - "EXPIRED" if the token has expired
const luaConsumeRefreshToken = `
local data = redis.call('GET', KEYS[1])
if not data then
    return 'NOT_FOUND'
end

local token = cjson.decode(data)
if token.type ~= 'refresh' then
    return 'NOT_FOUND'
end

if token.revoked then
    return 'REVOKED'
end

local now = tonumber(ARGV[1])
local expiresAt = tonumber(token.expires_at)
if expiresAt and expiresAt > 0 and now > expiresAt then
    return 'EXPIRED'
end

token.revoked = true
token.revoked_at = now
redis.call('SET', KEYS[1], cjson.encode(token), 'EX', tonumber(ARGV[2]))

return data
`

// ============================================================
// TokenStore Implementation
// ============================================================

// SaveToken saves an issued token and indexes it for per-user+client revocation.
func (s *Store) SaveToken(ctx context.Context, token *storage.Token) error {
	if token == nil || token.Value == "" {
		return fmt.Errorf("invalid token")
	}

	data, err := json.Marshal(toTokenJSON(token))
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	key := s.tokenKey(token.Value)

	var saveErr error
	if token.ExpiresAt.IsZero() {
		saveErr = s.client.Do(ctx, s.client.B().Set().Key(key).Value(string(data)).Build()).Error()
	} else {
		ttl := calculateTTL(token.ExpiresAt)
		if ttl <= 0 {
			return fmt.Errorf("token already expired")
		}
		// Revoked records outlive the token so revocation stays idempotent.
		saveErr = s.client.Do(ctx,
			s.client.B().Set().Key(key).Value(string(data)).Ex(ttl+s.revokedRetention).Build(),
		).Error()
	}
	if saveErr != nil {
		return fmt.Errorf("failed to save token: %w", saveErr)
	}

	if token.UserID != "" && token.ClientID != "" {
		ucKey := s.userClientKey(token.UserID, token.ClientID)
		if err := s.client.Do(ctx,
			s.client.B().Sadd().Key(ucKey).Member(token.Value).Build(),
		).Error(); err != nil {
			s.logger.Warn("Failed to index token for user+client",
				"user_id", token.UserID,
				"client_id", token.ClientID,
				"error", err)
		}
	}

	s.logger.Debug("Saved token",
		"type", token.Type,
		"token_prefix", safeTruncate(token.Value, tokenIDLogLength))
	return nil
}

// GetToken retrieves a live token by value.
func (s *Store) GetToken(ctx context.Context, value string) (*storage.Token, error) {
	key := s.tokenKey(value)

	data, err := s.client.Do(ctx, s.client.B().Get().Key(key).Build()).ToString()
	if err != nil {
		if isNilError(err) {
			return nil, storage.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	var j tokenJSON
	if err := json.Unmarshal([]byte(data), &j); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token: %w", err)
	}

	token := fromTokenJSON(&j)
	if token.Revoked {
		return nil, storage.ErrTokenRevoked
	}
	if !token.ExpiresAt.IsZero() && time.Now().After(token.ExpiresAt) {
		return nil, fmt.Errorf("%w: %s token expired", storage.ErrTokenExpired, token.Type)
	}

	return token, nil
}

// RevokeToken flags a token as revoked. Unknown and already-revoked tokens
// are a no-op, per RFC 7009.
func (s *Store) RevokeToken(ctx context.Context, value string) error {
	key := s.tokenKey(value)

	if err := s.client.Do(ctx,
		s.client.B().Eval().Script(luaRevokeToken).
			Numkeys(1).
			Key(key).
			Arg(fmt.Sprintf("%d", time.Now().Unix())).
			Arg(fmt.Sprintf("%d", int64(s.revokedRetention.Seconds()))).
			Build(),
	).Error(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	s.logger.Debug("Revoked token",
		"token_prefix", safeTruncate(value, tokenIDLogLength))
	return nil
}

// ConsumeRefreshToken atomically validates a refresh token and flags it
// revoked, returning the record as it was before consumption.
func (s *Store) ConsumeRefreshToken(ctx context.Context, value string) (*storage.Token, error) {
	key := s.tokenKey(value)

	result, err := s.client.Do(ctx,
		s.client.B().Eval().Script(luaConsumeRefreshToken).
			Numkeys(1).
			Key(key).
			Arg(fmt.Sprintf("%d", time.Now().Unix())).
			Arg(fmt.Sprintf("%d", int64(s.revokedRetention.Seconds()))).
			Build(),
	).ToString()
	if err != nil {
		return nil, fmt.Errorf("failed to execute atomic refresh consumption: %w", err)
	}

	switch result {
	case "NOT_FOUND":
		return nil, storage.ErrTokenNotFound
	case "REVOKED":
		return nil, storage.ErrTokenRevoked
	case "EXPIRED":
		return nil, fmt.Errorf("%w: refresh token expired", storage.ErrTokenExpired)
	}

	var j tokenJSON
	if err := json.Unmarshal([]byte(result), &j); err != nil {
		return nil, fmt.Errorf("failed to parse refresh token: %w", err)
	}

	s.logger.Debug("Consumed refresh token",
		"token_prefix", safeTruncate(value, tokenIDLogLength))

	return fromTokenJSON(&j), nil
}

// RevokeAllForUserClient revokes every live token for a user+client pair
// using the index maintained by SaveToken.
func (s *Store) RevokeAllForUserClient(ctx context.Context, userID, clientID string) (int, error) {
	ucKey := s.userClientKey(userID, clientID)

	values, err := s.client.Do(ctx, s.client.B().Smembers().Key(ucKey).Build()).AsStrSlice()
	if err != nil {
		if isNilError(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to list tokens for user+client: %w", err)
	}

	revoked := 0
	var errs []string
	for _, value := range values {
		if err := s.RevokeToken(ctx, value); err != nil {
			errs = append(errs, err.Error())
			continue
		}
		revoked++
	}

	if err := s.client.Do(ctx, s.client.B().Del().Key(ucKey).Build()).Error(); err != nil {
		s.logger.Warn("Failed to clear user+client token index",
			"user_id", userID,
			"client_id", clientID,
			"error", err)
	}

	if len(errs) > 0 {
		return revoked, fmt.Errorf("failed to revoke %d tokens: %s", len(errs), strings.Join(errs, "; "))
	}
	return revoked, nil
}
