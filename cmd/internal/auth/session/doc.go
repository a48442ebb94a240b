// Package session implements server-side session login.
//
// A client presents the token it holds (LoginSession). The Service validates
// the token, checks it against the session-state Store (subject binding and
// revocation), optionally renews it, and answers with the Session the client
// must keep from now on.
//
// Session state is keyed by the token hash (HMAC-SHA256 when
// WEBAPP_TOKEN_HMAC_KEY is set; otherwise SHA-256). Plain tokens are never
// persisted.
//
// Transport (HTTP/WS) integration lives in the api and realtime packages.
package session
