// Package storage defines the persistence contracts for the OAuth core:
// client registrations, single-use authorization codes, and revocable
// bearer tokens.
//
// The single-use and rotation invariants depend on two atomic primitives
// every backend must provide: ConsumeAuthorizationCode (check-and-mark-used)
// and ConsumeRefreshToken (check-and-revoke). Both guarantee that exactly
// one of any number of concurrent callers succeeds.
package storage
