// Package notify delivers user notifications for smart home events.
//
// Two notifiers are provided:
//   - Telegram sends messages through the Bot API, with a token bucket per chat
//   - Log writes messages to the service log when no transport is configured
//
// Delivery is best effort. A failed or rate-limited notification never
// aborts the reaction that produced it.
package notify
