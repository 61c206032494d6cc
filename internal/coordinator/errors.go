package coordinator

import "errors"

var (
	// ErrMalformedMessage is returned for payloads that do not match any known shape.
	ErrMalformedMessage = errors.New("coordinator: malformed message")

	// ErrUnexpectedTopic is returned for messages on topics the coordinator does not route.
	ErrUnexpectedTopic = errors.New("coordinator: unexpected topic")
)
