// Package auth provides authentication for the AirCore API.
//
// It implements a flat two-tier model (user / admin) with:
//   - Argon2id password hashing (OWASP 2025 recommendation)
//   - Stateless JWT access tokens (HS256, signature-only validation)
//   - Generated device API credentials for purifier status ingestion
//
// Tokens carry the username and admin flag as custom claims, so most
// requests are authorised without a database lookup. The trade-off is
// that deleting a user does not invalidate tokens already issued; the
// short token TTL bounds the exposure.
package auth
