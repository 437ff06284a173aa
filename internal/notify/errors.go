package notify

import "errors"

// Domain errors for the notify package.
var (
	// ErrDisabled is returned by NewTelegram when Telegram is not enabled.
	ErrDisabled = errors.New("notify: telegram disabled")

	// ErrNoAddressee is returned when a notification has no recipient.
	ErrNoAddressee = errors.New("notify: no addressee")

	// ErrRateLimited is returned when a chat exceeded its message budget;
	// the message is dropped.
	ErrRateLimited = errors.New("notify: rate limited")

	// ErrSendFailed is returned when the Bot API rejects a message.
	ErrSendFailed = errors.New("notify: send failed")
)
