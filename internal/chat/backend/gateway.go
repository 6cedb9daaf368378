// Package backend talks to the service that owns bookings and messages.
package backend

import (
	"context"
	"errors"

	"github.com/AlibekovAA/booking-chat-relay/internal/chat/domain"
	commonerrors "github.com/AlibekovAA/booking-chat-relay/internal/common/errors"
)

type Gateway interface {
	FetchBookings(ctx context.Context, userID, token string) ([]domain.Booking, error)
	PostMessage(ctx context.Context, msg domain.Message, token string) error
	MarkRead(ctx context.Context, conversationID, token string) error
}

type Result int

const (
	ResultOK Result = iota
	ResultAuthExpired
	ResultUnavailable
)

func (r Result) String() string {
	switch r {
	case ResultOK:
		return "ok"
	case ResultAuthExpired:
		return "auth_expired"
	default:
		return "unavailable"
	}
}

// Classify maps a gateway error onto the three outcomes callers act on.
// Anything that is not an authorization failure counts as unavailable.
func Classify(err error) Result {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, commonerrors.ErrAuthExpired):
		return ResultAuthExpired
	default:
		return ResultUnavailable
	}
}
