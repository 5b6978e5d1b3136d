package security

import "time"

// DefaultClockSkewGracePeriod is the grace period applied to expiry checks.
// It prevents false expiration errors from NTP drift between the machines
// that issue and present credentials. Tokens may be used up to this long
// past their nominal expiry.
const DefaultClockSkewGracePeriod = 5 * time.Second

// IsExpired checks whether an absolute expiry is past, with the default
// clock skew grace period. A zero expiry means no expiration.
func IsExpired(expiresAt time.Time) bool {
	return IsExpiredWithGracePeriod(expiresAt, DefaultClockSkewGracePeriod)
}

// IsExpiredWithGracePeriod checks expiry with a custom grace period.
func IsExpiredWithGracePeriod(expiresAt time.Time, gracePeriod time.Duration) bool {
	if expiresAt.IsZero() {
		return false
	}
	return time.Now().After(expiresAt.Add(gracePeriod))
}
