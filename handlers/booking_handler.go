package handlers

import (
	"net/http"

	"event-ticketing/services"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type BookingHandler struct {
	bookingService *services.BookingService
}

func NewBookingHandler(bookingService *services.BookingService) *BookingHandler {
	return &BookingHandler{bookingService: bookingService}
}

type bookRequest struct {
	TicketBatchID string `json:"ticket_batch_id"`
	TicketCount   int    `json:"ticket_count"`
	BookingToken  string `json:"booking_token"`
}

// StartBooking - gate check before the booking form: proceed directly, or
// join the waiting room
func (h *BookingHandler) StartBooking(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	eventID := e.Request.PathValue("eventId")
	if eventID == "" {
		return apis.NewBadRequestError("Event ID required", nil)
	}

	result, err := h.bookingService.StartBooking(e.Request.Context(), e.Auth.Id, eventID)
	if err != nil {
		return apiError(err)
	}

	if result.Allowed {
		return e.JSON(http.StatusOK, map[string]any{
			"message": "You can proceed with booking",
			"allowed": true,
		})
	}

	message := "You have been added to the queue"
	if !result.Added {
		message = "You are already in the queue"
	}
	return e.JSON(http.StatusOK, map[string]any{
		"message":  message,
		"queued":   true,
		"position": result.Position,
	})
}

// Book - reserve tickets and record the booking
func (h *BookingHandler) Book(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	eventID := e.Request.PathValue("eventId")
	if eventID == "" {
		return apis.NewBadRequestError("Event ID required", nil)
	}

	var req bookRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request body", err)
	}
	if req.TicketBatchID == "" {
		return apis.NewBadRequestError("Ticket batch ID required", nil)
	}

	booking, err := h.bookingService.Book(e.Request.Context(), e.Auth.Id, eventID, req.TicketBatchID, req.TicketCount, req.BookingToken)
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusCreated, map[string]any{
		"message": "Booking confirmed",
		"booking": booking,
	})
}

// ListBookings - the caller's bookings, all bookings for superusers
func (h *BookingHandler) ListBookings(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	bookings, err := h.bookingService.ListBookings(e.Auth.Id, e.HasSuperuserAuth())
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{"bookings": bookings})
}

// GetBooking - a single booking, owner or superuser only
func (h *BookingHandler) GetBooking(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	bookingID := e.Request.PathValue("bookingId")
	if bookingID == "" {
		return apis.NewBadRequestError("Booking ID required", nil)
	}

	booking, err := h.bookingService.GetBooking(bookingID, e.Auth.Id, e.HasSuperuserAuth())
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, booking)
}

// GetQRCode - the payload rendered into the booking's QR code
func (h *BookingHandler) GetQRCode(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	bookingID := e.Request.PathValue("bookingId")
	if bookingID == "" {
		return apis.NewBadRequestError("Booking ID required", nil)
	}

	payload, err := h.bookingService.QRPayload(bookingID, e.Auth.Id, e.HasSuperuserAuth())
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{"qr_code": payload})
}
