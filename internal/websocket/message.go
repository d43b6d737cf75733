package websocket

import (
	"encoding/json"
	"time"
)

type MessageType string

const (
	// Client to Server
	MessageTypeWatchSession   MessageType = "WATCH_SESSION"
	MessageTypeUnwatchSession MessageType = "UNWATCH_SESSION"
	MessageTypePing           MessageType = "PING"

	// Server to Client
	MessageTypeSessionUpdated MessageType = "SESSION_UPDATED"
	MessageTypeBalanceUpdated MessageType = "BALANCE_UPDATED"
	MessageTypeWatching       MessageType = "WATCHING"
	MessageTypePong           MessageType = "PONG"
	MessageTypeError          MessageType = "ERROR"
)

type Message struct {
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp"`
}

func NewMessage(msgType MessageType, payload interface{}) (*Message, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type:      msgType,
		Payload:   payloadBytes,
		Timestamp: time.Now().UnixMilli(),
	}, nil
}

// Client to Server payloads

type WatchSessionPayload struct {
	SessionID string `json:"sessionId"`
}

// Server to Client payloads

type SessionEventPayload struct {
	SessionID string `json:"sessionId"`
	Event     string `json:"event"`
	Data      any    `json:"data,omitempty"`
}

type BalanceEventPayload struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
