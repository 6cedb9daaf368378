package domain

import (
	"encoding/json"
	"errors"
)

var ErrInvalidUserRef = errors.New("user reference must be a string or an object with id")

// UserRef is a user id that the backend may send either as a plain string
// or as a populated user object.
type UserRef string

func (u *UserRef) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*u = ""
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*u = UserRef(s)
		return nil
	}

	var obj struct {
		ID      string `json:"id"`
		MongoID string `json:"_id"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return ErrInvalidUserRef
	}
	*u = UserRef(firstNonEmpty(obj.ID, obj.MongoID))
	return nil
}

type Property struct {
	ID    string  `json:"id,omitempty"`
	Owner UserRef `json:"owner"`
}

func (p *Property) UnmarshalJSON(b []byte) error {
	type alias Property
	var aux struct {
		alias
		MongoID string `json:"_id"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*p = Property(aux.alias)
	p.ID = firstNonEmpty(p.ID, aux.MongoID)
	return nil
}

type Conversation struct {
	ID       string            `json:"id"`
	Active   bool              `json:"active"`
	Messages []json.RawMessage `json:"messages,omitempty"`
}

func (c *Conversation) UnmarshalJSON(b []byte) error {
	type alias Conversation
	var aux struct {
		alias
		MongoID string `json:"_id"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*c = Conversation(aux.alias)
	c.ID = firstNonEmpty(c.ID, aux.MongoID)
	return nil
}

// Booking is the backend's read-only booking projection. The relay only
// reads the stakeholders and the conversation; the original JSON is kept so
// it can be forwarded to clients untouched.
type Booking struct {
	ID           string        `json:"id"`
	Property     Property      `json:"property"`
	Guest        UserRef       `json:"guest"`
	Conversation *Conversation `json:"conversation,omitempty"`

	raw json.RawMessage
}

func (bk *Booking) UnmarshalJSON(b []byte) error {
	type alias Booking
	var aux struct {
		alias
		MongoID string `json:"_id"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*bk = Booking(aux.alias)
	bk.ID = firstNonEmpty(bk.ID, aux.MongoID)
	bk.raw = append(json.RawMessage(nil), b...)
	return nil
}

func (bk Booking) MarshalJSON() ([]byte, error) {
	if len(bk.raw) > 0 {
		return bk.raw, nil
	}
	type alias Booking
	return json.Marshal(alias(bk))
}

// ConversationRoom returns the room for the booking's conversation when it is active.
func (bk Booking) ConversationRoom() (string, bool) {
	if bk.Conversation == nil || !bk.Conversation.Active || bk.Conversation.ID == "" {
		return "", false
	}
	return bk.Conversation.ID, true
}

// Stakeholders returns the guest and the property owner, without blanks or duplicates.
func (bk Booking) Stakeholders() []string {
	out := make([]string, 0, 2)
	for _, id := range []UserRef{bk.Guest, bk.Property.Owner} {
		if id == "" {
			continue
		}
		if len(out) == 1 && out[0] == string(id) {
			continue
		}
		out = append(out, string(id))
	}
	return out
}

// BookingsToRooms maps bookings to the rooms their participants belong in:
// one per active conversation, deduplicated, in first-seen order.
func BookingsToRooms(bookings []Booking) []string {
	seen := make(map[string]struct{}, len(bookings))
	rooms := make([]string, 0, len(bookings))
	for _, bk := range bookings {
		roomID, ok := bk.ConversationRoom()
		if !ok {
			continue
		}
		if _, dup := seen[roomID]; dup {
			continue
		}
		seen[roomID] = struct{}{}
		rooms = append(rooms, roomID)
	}
	return rooms
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
