package bridge

import "errors"

// Sentinel errors returned by message handlers.
var (
	ErrInvalidPayload = errors.New("bridge: invalid payload")
	ErrInvalidTopic   = errors.New("bridge: invalid command topic")
)
