package domain

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// Message is the relayed and persisted form of a chat message. The copy sent
// to the backend and the copy multicast to the room are the same value.
type Message struct {
	ConversationID string    `json:"conversationId"`
	From           string    `json:"from"`
	To             string    `json:"to"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
}

type MessageRequest struct {
	ConversationID string          `json:"conversationId" validate:"required,max=128"`
	From           string          `json:"from,omitempty" validate:"max=128"`
	To             string          `json:"to" validate:"required,max=128"`
	Content        string          `json:"content" validate:"notblank,max=5000"`
	Timestamp      ClientTimestamp `json:"timestamp"`
}

// ClientTimestamp is the sender's clock reading. It accepts RFC3339 strings
// and epoch milliseconds. Anything else decodes to the zero time so the
// relay clock is used instead of rejecting the message.
type ClientTimestamp struct {
	time.Time
}

func (t *ClientTimestamp) UnmarshalJSON(data []byte) error {
	t.Time = time.Time{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		if parsed, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s)); err == nil {
			t.Time = parsed
		}
		return nil
	}

	var millis json.Number
	if err := json.Unmarshal(data, &millis); err != nil {
		return nil
	}
	if ms, err := millis.Int64(); err == nil && ms > 0 {
		t.Time = time.UnixMilli(ms)
	}
	return nil
}

// NormalizeMessage binds the request to the authenticated sender: from is
// always the connection's user, content is trimmed and a missing or
// unreadable timestamp becomes now.
func NormalizeMessage(req MessageRequest, senderID string, now time.Time) Message {
	ts := req.Timestamp.Time
	if ts.IsZero() {
		ts = now
	}
	return Message{
		ConversationID: req.ConversationID,
		From:           senderID,
		To:             req.To,
		Content:        strings.TrimSpace(req.Content),
		Timestamp:      ts.UTC(),
	}
}
