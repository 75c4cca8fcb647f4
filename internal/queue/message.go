package queue

import (
	"context"
	"encoding/json"

	"persona-backend/internal/llm"
)

// Client hands queued analyses to a worker. Analyses stay "queued" until a
// worker picks the message up, which is what the resolver polls through.
type Client interface {
	Send(ctx context.Context, msg Message) error
}

// MessageVersion is bumped whenever the payload shape changes.
const MessageVersion = 2

// Message asks a worker to run the provider for a queued analysis.
type Message struct {
	AnalysisID string              `json:"analysisId"`
	UserID     string              `json:"userId,omitempty"`
	RequestID  string              `json:"requestId,omitempty"`
	EnqueuedAt string              `json:"enqueuedAt"`
	Version    int                 `json:"version"`
	Request    llm.AnalysisRequest `json:"request"`
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}
