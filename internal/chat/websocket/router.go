package websocket

import (
	"context"
	"encoding/json"

	"github.com/AlibekovAA/booking-chat-relay/internal/chat/domain"
	commonerrors "github.com/AlibekovAA/booking-chat-relay/internal/common/errors"
	"github.com/AlibekovAA/booking-chat-relay/internal/common/logger"
	"github.com/AlibekovAA/booking-chat-relay/internal/observability/metrics"
)

type MessageRouter interface {
	Route(ctx context.Context, conn Connection, msg *WSMessage) error
}

// messageRouter decodes and validates inbound events, hands them to the
// controller and answers with ack or error frames.
type messageRouter struct {
	controller Controller
	validator  MessageValidator
	log        *logger.Logger
}

func NewMessageRouter(controller Controller, validator MessageValidator, log *logger.Logger) MessageRouter {
	return &messageRouter{
		controller: controller,
		validator:  validator,
		log:        log,
	}
}

func (r *messageRouter) Route(ctx context.Context, conn Connection, msg *WSMessage) error {
	metrics.ChatWebSocketMessagesTotal.WithLabelValues(msg.Type.metricLabel()).Inc()

	switch msg.Type {
	case TypeSendMessage:
		return r.routeSendMessage(ctx, conn, msg)

	case TypeOpenChat:
		var p RoomPayload
		if err := r.decode(ctx, conn, msg, &p); err != nil {
			return err
		}
		r.controller.OpenChat(ctx, conn, p.ConversationID)
		r.ack(ctx, conn, msg, AckPayload{Success: true})
		return nil

	case TypeBookingCreated:
		return r.routeBookingCreated(ctx, conn, msg)

	case TypeTyping:
		var p TypingPayload
		if err := r.decode(ctx, conn, msg, &p); err != nil {
			return err
		}
		r.controller.Typing(ctx, conn, p.ConversationID, p.IsTyping)
		return nil

	case TypeJoinRoom:
		var p RoomPayload
		if err := r.decode(ctx, conn, msg, &p); err != nil {
			return err
		}
		r.controller.JoinRoom(ctx, conn, p.ConversationID)
		r.ack(ctx, conn, msg, AckPayload{Success: true})
		return nil

	case TypeLeaveRoom:
		var p RoomPayload
		if err := r.decode(ctx, conn, msg, &p); err != nil {
			return err
		}
		r.controller.LeaveRoom(ctx, conn, p.ConversationID)
		r.ack(ctx, conn, msg, AckPayload{Success: true})
		return nil

	default:
		metrics.ChatWebSocketErrors.WithLabelValues("unknown_message_type").Inc()
		r.sendError(ctx, conn, msg.ID, commonerrors.ErrUnknownMessageType, "unknown message type: "+string(msg.Type))
		return commonerrors.ErrUnknownMessageType
	}
}

func (r *messageRouter) routeSendMessage(ctx context.Context, conn Connection, msg *WSMessage) error {
	var req domain.MessageRequest
	if err := r.decode(ctx, conn, msg, &req); err != nil {
		return err
	}

	switch r.controller.SendMessage(ctx, conn, req) {
	case SendOK:
		r.ack(ctx, conn, msg, AckPayload{Success: true})
	case SendUnavailable:
		r.ack(ctx, conn, msg, AckPayload{Success: false, Error: messageUnavailableText})
	case SendAuthExpired:
		// the connection is gone; no ack
	}
	return nil
}

func (r *messageRouter) routeBookingCreated(ctx context.Context, conn Connection, msg *WSMessage) error {
	var booking domain.Booking
	if err := json.Unmarshal(msg.Payload, &booking); err != nil {
		return r.protocolMisuse(ctx, conn, msg, err)
	}
	if len(booking.Stakeholders()) == 0 {
		return r.protocolMisuse(ctx, conn, msg, errNoStakeholders)
	}

	r.controller.BookingCreated(ctx, conn, booking)
	r.ack(ctx, conn, msg, AckPayload{Success: true})
	return nil
}

func (r *messageRouter) decode(ctx context.Context, conn Connection, msg *WSMessage, payload any) error {
	if len(msg.Payload) == 0 {
		return r.protocolMisuse(ctx, conn, msg, errEmptyPayload)
	}
	if err := json.Unmarshal(msg.Payload, payload); err != nil {
		return r.protocolMisuse(ctx, conn, msg, err)
	}
	if err := r.validator.Validate(payload); err != nil {
		return r.protocolMisuse(ctx, conn, msg, err)
	}
	return nil
}

// protocolMisuse reports a malformed event to the sender. The connection
// stays open.
func (r *messageRouter) protocolMisuse(ctx context.Context, conn Connection, msg *WSMessage, err error) error {
	wsErr := commonerrors.ErrInvalidPayload.WithCause(err)

	r.log.WithFields(ctx, logger.Fields{
		"conn_id": conn.ID(),
		"user_id": conn.UserID(),
		"type":    string(msg.Type),
		"action":  "ws_invalid_payload",
	}).Warnf("websocket invalid payload: %v", err)
	metrics.ChatWebSocketErrors.WithLabelValues("invalid_payload").Inc()

	r.sendError(ctx, conn, msg.ID, commonerrors.ErrInvalidPayload, err.Error())
	return wsErr
}

func (r *messageRouter) sendError(ctx context.Context, conn Connection, id string, code commonerrors.DomainError, message string) {
	frame, err := marshalMessage(TypeError, id, ErrorPayload{Code: code.Code(), Message: message})
	if err != nil {
		return
	}
	if err := conn.Send(frame); err != nil {
		r.log.WithFields(ctx, logger.Fields{
			"conn_id": conn.ID(),
			"action":  "ws_error_send_failed",
		}).Debugf("websocket failed to send error frame: %v", err)
	}
}

func (r *messageRouter) ack(ctx context.Context, conn Connection, msg *WSMessage, payload AckPayload) {
	if msg.ID == "" {
		return
	}
	frame, err := marshalMessage(TypeAck, msg.ID, payload)
	if err != nil {
		return
	}
	if err := conn.Send(frame); err != nil {
		r.log.WithFields(ctx, logger.Fields{
			"conn_id": conn.ID(),
			"type":    string(msg.Type),
			"action":  "ws_ack_send_failed",
		}).Debugf("websocket failed to send ack: %v", err)
	}
}
