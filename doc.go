// Package authcore implements a credential and token lifecycle engine: local
// and Google-backed login, JWT access tokens, ledger-backed refresh tokens,
// email confirmation, and password reset.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build]. The engine holds no mutable in-process state of its own;
// all durable state lives behind the [CredentialStore] and the Redis-backed
// refresh ledger.
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config],
// and value types ([Account], [TokenPair], [RegisterResult], ...). Token
// signing lives in token/, the refresh ledger in ledger/, password hashing in
// password/, and credential store adapters in store/. HTTP routing, request
// validation, and OAuth handshakes are the caller's concern: the engine
// consumes an already-verified [ExternalIdentity] and an abstract
// [MailSender].
//
// # Token model
//
// Access tokens are self-describing signed structures verifiable without any
// store round trip ([Engine.ValidateAccess]). Refresh tokens carry the same
// signed payload but are additionally gated by the ledger: a refresh token
// that verifies cryptographically is still rejected once revoked. This
// asymmetry is what makes logout and session invalidation possible.
package authcore
