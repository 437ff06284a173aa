package auth

import "errors"

var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrNoSecret     = errors.New("no signing secret configured")
	ErrNoSubject    = errors.New("token subject is required")
)
