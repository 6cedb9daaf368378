package websocket

import (
	"encoding/json"

	commonerrors "github.com/AlibekovAA/booking-chat-relay/internal/common/errors"
)

func marshalMessage(msgType MessageType, id string, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, commonerrors.ErrMarshalError.WithCause(err)
		}
		raw = b
	}

	frame, err := json.Marshal(&WSMessage{Type: msgType, ID: id, Payload: raw})
	if err != nil {
		return nil, commonerrors.ErrMarshalError.WithCause(err)
	}
	return frame, nil
}
