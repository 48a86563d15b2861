package status

import "errors"

var (
	ErrEventNotFound       = errors.New("event: event not found")
	ErrTicketBatchNotFound = errors.New("ticket batch: ticket batch not found")
	ErrBookingNotFound     = errors.New("booking: booking not found")

	ErrInsufficientInventory = errors.New("ticket batch: not enough tickets available")
	ErrCapacityExceeded      = errors.New("ticket batch: total tickets exceed the event's max attendance")
	ErrBatchMismatch         = errors.New("booking: ticket batch does not belong to the event")
	ErrInvalidTicketCount    = errors.New("booking: ticket count must be greater than zero")
	ErrBookingFailed         = errors.New("booking: booking could not be processed")

	ErrTokenRequired = errors.New("queue token: token is required to continue booking")
	ErrTokenInvalid  = errors.New("queue token: token is invalid")
	ErrTokenExpired  = errors.New("queue token: token is expired")

	ErrNotQueued = errors.New("queue: user is not in the queue")
)
