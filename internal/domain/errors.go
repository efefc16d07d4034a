package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrRateLimited       = errors.New("rate limited")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidOrder      = errors.New("invalid order parameters")
	ErrSigningFailed     = errors.New("signing failed")
	ErrWSDisconnect      = errors.New("websocket disconnected")
	ErrLockHeld          = errors.New("lock already held")
	ErrNoMidpoint        = errors.New("no midpoint available")
	ErrOrderRejected     = errors.New("order rejected by venue")
	ErrMissingCredential = errors.New("missing credential")
	ErrUnknownEnum       = errors.New("unknown enum value")
)
