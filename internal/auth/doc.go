// Package auth issues and verifies the bearer tokens of the HTTP API.
//
// Tokens are HS256-signed JWTs. An operator token carries no customer and
// grants the whole API. A customer token is bound to one smart home user
// and only opens that user's live event stream.
package auth
