package store

import "errors"

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrNoLinkedAccount      = errors.New("no linked account")
	ErrSubscriptionNotFound = errors.New("subscription not found")
)
