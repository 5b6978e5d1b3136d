package storage

import "errors"

// Sentinel errors returned by storage backends. Callers should match with
// errors.Is; backends wrap these with additional detail.
var (
	// ErrClientNotFound indicates the client ID is not registered.
	ErrClientNotFound = errors.New("client not found")

	// ErrAuthorizationCodeNotFound indicates the code is unknown.
	ErrAuthorizationCodeNotFound = errors.New("authorization code not found")

	// ErrAuthorizationCodeUsed indicates the code was already consumed.
	ErrAuthorizationCodeUsed = errors.New("authorization code already used")

	// ErrTokenNotFound indicates the token value is unknown.
	ErrTokenNotFound = errors.New("token not found")

	// ErrTokenExpired indicates the code or token is past its expiry.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenRevoked indicates the token has been revoked.
	ErrTokenRevoked = errors.New("token revoked")

	// ErrInvalidClientSecret indicates client secret validation failed.
	ErrInvalidClientSecret = errors.New("invalid client secret")

	// ErrIPLimitExceeded indicates an IP reached the registration limit.
	ErrIPLimitExceeded = errors.New("client registration limit reached for IP")
)
