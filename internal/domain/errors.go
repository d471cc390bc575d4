package domain

import "errors"

var (
	ErrInvalidSession  = errors.New("invalid session")
	ErrSessionNotFound = errors.New("session not found")
	ErrCapacity        = errors.New("session capacity exceeded")
	ErrEmptyRoom       = errors.New("empty room name")
	ErrRoomTooLong     = errors.New("room name too long")
	ErrEmptyOfflineID  = errors.New("empty offline id")
	ErrEmptyPayload    = errors.New("empty payload")
	ErrPayloadTooLong  = errors.New("payload too long")
)
