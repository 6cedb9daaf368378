package websocket

import (
	"context"

	"github.com/AlibekovAA/booking-chat-relay/internal/chat/domain"
)

type SendResult int

const (
	SendOK SendResult = iota
	SendAuthExpired
	SendUnavailable
)

func (r SendResult) String() string {
	switch r {
	case SendOK:
		return "ok"
	case SendAuthExpired:
		return "auth_expired"
	default:
		return "unavailable"
	}
}

// Controller is what the router drives once a connection is active.
type Controller interface {
	SendMessage(ctx context.Context, conn Connection, req domain.MessageRequest) SendResult
	OpenChat(ctx context.Context, conn Connection, conversationID string)
	BookingCreated(ctx context.Context, conn Connection, booking domain.Booking)
	Typing(ctx context.Context, conn Connection, conversationID string, isTyping bool)
	JoinRoom(ctx context.Context, conn Connection, conversationID string)
	LeaveRoom(ctx context.Context, conn Connection, conversationID string)
}
