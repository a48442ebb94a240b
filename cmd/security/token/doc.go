// Package token issues and validates the session tokens used by webapp.
//
// A token is self-describing and signed: validation needs only the verification key,
// never a server-side lookup table. Two formats are supported:
//   - paseto (default): PASETO v4.public signed with an Ed25519 key.
//   - jwt: HS256 JWT stamped with a shared secret.
//
// The package is also the single source of truth for at-rest token hashing.
// Servers persist HashHex(token), never the token itself:
//   - SHA-256(token) when WEBAPP_TOKEN_HMAC_KEY is unset (dev).
//   - HMAC-SHA256(token, key) when WEBAPP_TOKEN_HMAC_KEY is set.
package token
