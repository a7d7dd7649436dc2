// Package ledger implements the Redis-backed refresh token ledger.
//
// # Token model
//
// A refresh token's signature proves authenticity; the ledger proves it is
// still live. Every minted refresh token is recorded here under the SHA-256
// of its wire form, and every refresh consults the ledger before honoring
// the token. Revocation removes the entry, which invalidates the token
// immediately regardless of its remaining signed lifetime.
//
// # Architecture boundaries
//
// This package owns ledger persistence only. It never parses, signs, or
// verifies tokens, and it never decides rotation policy. The Engine hands
// it raw token strings and account IDs.
//
// # What this package must NOT do
//
//   - Import authcore or token.
//   - Inspect token contents.
//   - Decide whether a revoked token is an attack signal.
package ledger
