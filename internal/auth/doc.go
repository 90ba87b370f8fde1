// Package auth issues and validates the bearer tokens that guard the
// state-changing API routes (status overrides, mode transitions and
// execution triggers).
//
// Tokens are HS256-signed JWTs scoped to one simulation ID. Read-only routes
// never require a token, and when no secret is configured the API is open.
package auth
