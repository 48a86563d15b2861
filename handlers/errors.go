package handlers

import (
	"errors"

	"event-ticketing/internal/status"

	"github.com/pocketbase/pocketbase/apis"
)

// apiError maps service errors to HTTP responses.
func apiError(err error) error {
	switch {
	case errors.Is(err, status.ErrEventNotFound),
		errors.Is(err, status.ErrTicketBatchNotFound),
		errors.Is(err, status.ErrBookingNotFound):
		return apis.NewNotFoundError(err.Error(), nil)

	case errors.Is(err, status.ErrTokenRequired),
		errors.Is(err, status.ErrTokenInvalid),
		errors.Is(err, status.ErrTokenExpired):
		return apis.NewForbiddenError(err.Error(), nil)

	case errors.Is(err, status.ErrInsufficientInventory):
		return apis.NewApiError(409, err.Error(), nil)

	case errors.Is(err, status.ErrBatchMismatch),
		errors.Is(err, status.ErrInvalidTicketCount),
		errors.Is(err, status.ErrCapacityExceeded),
		errors.Is(err, status.ErrNotQueued):
		return apis.NewBadRequestError(err.Error(), nil)

	default:
		return apis.NewBadRequestError("Request could not be processed", err)
	}
}
