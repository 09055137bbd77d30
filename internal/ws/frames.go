// Package ws hosts the live session endpoint: the upgrade handshake, the
// per-session reader and writer goroutines, and the client/server frame
// vocabulary.
package ws

import (
	"encoding/json"
	"time"

	"github.com/driftchat/drift/internal/domain"
)

// Client frame types.
const (
	ClientFrameSendMessage = "send_message"
	ClientFramePing        = "ping"
)

// ClientFrame is the tag-on-type union sent by clients. Only the fields
// for the tagged variant are populated.
type ClientFrame struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

type newMessageFrame struct {
	Type      string    `json:"type"`
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type connectedFrame struct {
	Type      string `json:"type"`
	ChannelID string `json:"channel_id"`
}

type pongFrame struct {
	Type string `json:"type"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// NewMessageFrame renders a fanned-out message for delivery to watchers.
func NewMessageFrame(ev domain.MessageSentEvent) ([]byte, error) {
	return json.Marshal(newMessageFrame{
		Type:      "new_message",
		ID:        ev.MessageID.String(),
		UserID:    ev.UserID.String(),
		Content:   ev.Content,
		Timestamp: ev.Timestamp,
	})
}

// ConnectedFrame acknowledges a completed upgrade.
func ConnectedFrame(channel domain.ChannelID) []byte {
	data, _ := json.Marshal(connectedFrame{Type: "connected", ChannelID: channel.String()})
	return data
}

// PongFrame answers a client ping.
func PongFrame() []byte {
	data, _ := json.Marshal(pongFrame{Type: "pong"})
	return data
}

// ErrorFrame reports a per-frame failure to the sender only.
func ErrorFrame(message string) []byte {
	data, _ := json.Marshal(errorFrame{Type: "error", Message: message})
	return data
}
