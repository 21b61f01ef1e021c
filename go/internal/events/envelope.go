package events

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Envelope wraps every message in both directions.
type Envelope struct {
	Type      Type            `json:"type"`
	RequestID string          `json:"requestId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// ErrMalformed is returned for frames that are not a valid envelope.
var ErrMalformed = errors.New("malformed message")

// Decode parses a client frame.
func Decode(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	return env, nil
}

// Encode builds a server frame carrying payload.
func Encode(t Type, payload any) ([]byte, error) {
	return EncodeReply(t, "", payload)
}

// EncodeReply is Encode tagged with the id of the request being answered.
func EncodeReply(t Type, requestID string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", t, err)
	}
	return json.Marshal(Envelope{Type: t, RequestID: requestID, Data: data})
}

// ParseRequest decodes the envelope data into the request struct for its type.
func ParseRequest(env Envelope) (any, error) {
	switch env.Type {
	case TypeCreateRoom:
		return parse[CreateRoomRequest](env)
	case TypeJoinRoom:
		return parse[JoinRoomRequest](env)
	case TypeLeaveRoom:
		return parse[LeaveRoomRequest](env)
	case TypePlayerReady:
		return parse[PlayerReadyRequest](env)
	case TypeStartGame:
		return parse[StartGameRequest](env)
	case TypeGuessSubmitted:
		return parse[GuessSubmittedRequest](env)
	case TypeRematchRequest:
		return parse[RematchRequest](env)
	case TypeRestoreSession:
		return parse[RestoreSessionRequest](env)
	case TypePing:
		return parse[PingRequest](env)
	default:
		return nil, fmt.Errorf("unknown event type: %s", env.Type)
	}
}

func parse[T any](env Envelope) (T, error) {
	var payload T
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return payload, nil
	}
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return payload, fmt.Errorf("%w: %s data: %v", ErrMalformed, env.Type, err)
	}
	return payload, nil
}
