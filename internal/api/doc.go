// Package api implements the HTTP REST API of the pet tracker core.
//
// This package provides:
//   - CRUD endpoints for doors, rooms and smart homes, with list filters
//   - Pet position, room analytics and service listing per smart home
//   - Prometheus metrics and a JSON system summary
//   - A WebSocket event stream of pet moves and door power changes
//   - The audit trail of changes
//   - Middleware stack (request ID, logging, recovery, CORS, body limit, bearer auth)
//
// # Architecture
//
// The server is a thin layer over home.Manager. Every mutation goes through
// the manager, which takes the smart home's lock shared with the telemetry
// reactions and republishes door settings when associations change.
//
// # Authentication
//
// With api.auth.jwt_secret set, every route except /health and /metrics
// needs a bearer token. Customer tokens may only open /ws, which they bind
// to their own smart home.
//
// # Errors
//
// Failures are returned as {"status", "code", "message"}. Schema
// violations add a "violations" list. Missing entities map to 404,
// blocked changes to 409 and inconsistent smart homes to 500 with code
// "consistency_error".
package api
