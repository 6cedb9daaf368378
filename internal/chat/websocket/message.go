package websocket

import (
	"encoding/json"
)

type MessageType string

const (
	TypeSendMessage    MessageType = "sendMessage"
	TypeOpenChat       MessageType = "openChat"
	TypeBookingCreated MessageType = "bookingCreated"
	TypeTyping         MessageType = "typing"
	TypeJoinRoom       MessageType = "joinRoom"
	TypeLeaveRoom      MessageType = "leaveRoom"

	TypeMessageReceived MessageType = "messageReceived"
	TypeBookingsUpdated MessageType = "bookingsUpdated"
	TypeMessagesRead    MessageType = "messagesRead"
	TypeTokenExpired    MessageType = "tokenExpired"
	TypeMessageError    MessageType = "messageError"
	TypeUserJoined      MessageType = "userJoined"
	TypeUserLeft        MessageType = "userLeft"
	TypeAck             MessageType = "ack"
	TypeError           MessageType = "error"
	TypeShutdown        MessageType = "shutdown"
)

func (mt MessageType) String() string {
	return string(mt)
}

// IsInbound reports whether clients may send this type.
func (mt MessageType) IsInbound() bool {
	switch mt {
	case TypeSendMessage, TypeOpenChat, TypeBookingCreated, TypeTyping, TypeJoinRoom, TypeLeaveRoom:
		return true
	default:
		return false
	}
}

// WSMessage is the frame envelope in both directions. ID is set by the client
// when it wants an ack and is echoed back on the ack or error frame.
type WSMessage struct {
	Type    MessageType     `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type RoomPayload struct {
	ConversationID string `json:"conversationId" validate:"required,max=128"`
}

type TypingPayload struct {
	ConversationID string `json:"conversationId" validate:"required,max=128"`
	IsTyping       bool   `json:"isTyping"`
}

type TypingEventPayload struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	IsTyping       bool   `json:"isTyping"`
}

type MessagesReadPayload struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
}

type PresencePayload struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
}

type MessageErrorPayload struct {
	Error           string `json:"error"`
	OriginalMessage any    `json:"originalMessage"`
}

type TokenExpiredPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type AckPayload struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// metricLabel keeps client-chosen type strings out of metric labels.
func (mt MessageType) metricLabel() string {
	if mt.IsInbound() {
		return string(mt)
	}
	return "unknown"
}
