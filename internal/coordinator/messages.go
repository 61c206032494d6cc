package coordinator

import (
	"encoding/json"
	"fmt"
)

// ConnectMessage is published by a device on <root>/connect.
type ConnectMessage struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	HP   int    `json:"hp"`
	// Restart asks for a fresh game on an existing session.
	Restart bool `json:"restart,omitempty"`
}

// DisconnectMessage is published by a device on <root>/disconnect.
type DisconnectMessage struct {
	ID string `json:"id"`
}

// Response is a decoded payload from <root>/<id>/response:
// either AckResponse or GuessResponse.
type Response interface {
	isResponse()
}

// AckResponse confirms the device received the challenge with Sequence.
type AckResponse struct {
	Sequence int
}

// GuessResponse answers the challenge with Sequence.
type GuessResponse struct {
	Guess    int
	Sequence int
}

func (AckResponse) isResponse()   {}
func (GuessResponse) isResponse() {}

type rawResponse struct {
	Ack      *int `json:"ack"`
	Guess    *int `json:"guess"`
	Sequence *int `json:"sequence"`
}

// DecodeResponse parses a response payload. Exactly one of {"ack": n} or
// {"guess": g, "sequence": n} is accepted; anything else is ErrMalformedMessage.
func DecodeResponse(payload []byte) (Response, error) {
	var raw rawResponse
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}

	switch {
	case raw.Ack != nil && raw.Guess == nil:
		return AckResponse{Sequence: *raw.Ack}, nil
	case raw.Guess != nil && raw.Ack == nil:
		if raw.Sequence == nil {
			return nil, fmt.Errorf("%w: guess without sequence", ErrMalformedMessage)
		}
		return GuessResponse{Guess: *raw.Guess, Sequence: *raw.Sequence}, nil
	case raw.Ack != nil && raw.Guess != nil:
		return nil, fmt.Errorf("%w: both ack and guess present", ErrMalformedMessage)
	default:
		return nil, fmt.Errorf("%w: neither ack nor guess present", ErrMalformedMessage)
	}
}

func decodeConnect(payload []byte) (ConnectMessage, error) {
	var msg ConnectMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return msg, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	if msg.ID == "" {
		return msg, fmt.Errorf("%w: connect without id", ErrMalformedMessage)
	}
	return msg, nil
}

func decodeDisconnect(payload []byte) (DisconnectMessage, error) {
	var msg DisconnectMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return msg, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	if msg.ID == "" {
		return msg, fmt.Errorf("%w: disconnect without id", ErrMalformedMessage)
	}
	return msg, nil
}
