package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activeBooking(id, guest, owner, conversationID string) Booking {
	return Booking{
		ID:           id,
		Guest:        UserRef(guest),
		Property:     Property{Owner: UserRef(owner)},
		Conversation: &Conversation{ID: conversationID, Active: true},
	}
}

func TestBookingsToRooms_ActiveOnlyDeduplicated(t *testing.T) {
	bookings := []Booking{
		activeBooking("b1", "guest", "owner", "conv-1"),
		{ID: "b2", Conversation: &Conversation{ID: "conv-2", Active: false}},
		{ID: "b3"},
		activeBooking("b4", "guest", "owner", "conv-3"),
		activeBooking("b5", "guest", "owner", "conv-1"),
		{ID: "b6", Conversation: &Conversation{Active: true}},
	}

	assert.Equal(t, []string{"conv-1", "conv-3"}, BookingsToRooms(bookings))
}

func TestBookingsToRooms_Empty(t *testing.T) {
	assert.Empty(t, BookingsToRooms(nil))
}

func TestBooking_Stakeholders(t *testing.T) {
	assert.Equal(t, []string{"guest", "owner"}, activeBooking("b", "guest", "owner", "c").Stakeholders())
	assert.Equal(t, []string{"same"}, activeBooking("b", "same", "same", "c").Stakeholders())
	assert.Equal(t, []string{"owner"}, activeBooking("b", "", "owner", "c").Stakeholders())
}

func TestBooking_UnmarshalPopulatedRefs(t *testing.T) {
	payload := `{
		"_id": "65a1f0c2e4b0a1b2c3d4e5f6",
		"guest": {"_id": "guest-1", "name": "Ann"},
		"property": {"_id": "prop-1", "owner": "owner-1", "title": "Loft"},
		"conversation": {"_id": "conv-9", "active": true, "messages": [{"content": "hi"}]},
		"checkIn": "2026-10-20"
	}`

	var bk Booking
	require.NoError(t, json.Unmarshal([]byte(payload), &bk))

	assert.Equal(t, "65a1f0c2e4b0a1b2c3d4e5f6", bk.ID)
	assert.Equal(t, UserRef("guest-1"), bk.Guest)
	assert.Equal(t, "prop-1", bk.Property.ID)
	assert.Equal(t, UserRef("owner-1"), bk.Property.Owner)
	room, ok := bk.ConversationRoom()
	require.True(t, ok)
	assert.Equal(t, "conv-9", room)
	assert.Len(t, bk.Conversation.Messages, 1)
}

func TestBooking_MarshalKeepsBackendFields(t *testing.T) {
	payload := `{"id":"b1","guest":"g","property":{"owner":"o"},"checkIn":"2026-10-20"}`

	var bookings []Booking
	require.NoError(t, json.Unmarshal([]byte("["+payload+"]"), &bookings))

	out, err := json.Marshal(bookings)
	require.NoError(t, err)
	assert.JSONEq(t, "["+payload+"]", string(out))
}

func TestBooking_MarshalWithoutRaw(t *testing.T) {
	out, err := json.Marshal(activeBooking("b1", "g", "o", "c1"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"b1","guest":"g","property":{"owner":"o"},"conversation":{"id":"c1","active":true}}`, string(out))
}

func TestUserRef_RejectsNumbers(t *testing.T) {
	var ref UserRef
	assert.ErrorIs(t, json.Unmarshal([]byte(`42`), &ref), ErrInvalidUserRef)
}
