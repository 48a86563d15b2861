package handlers

import (
	"net/http"

	"event-ticketing/services"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"
)

type EventHandler struct {
	eventService *services.EventService
}

func NewEventHandler(eventService *services.EventService) *EventHandler {
	return &EventHandler{eventService: eventService}
}

type setQueueActiveRequest struct {
	Active bool `json:"active"`
}

type createTicketBatchRequest struct {
	TicketType      string `json:"ticket_type"`
	Price           string `json:"price"`
	NumberOfTickets int    `json:"number_of_tickets"`
}

// SetQueueActive - toggle the waiting room for an event. Host or
// superuser only; activating one event deactivates every other.
func (h *EventHandler) SetQueueActive(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	eventID := e.Request.PathValue("eventId")
	if eventID == "" {
		return apis.NewBadRequestError("Event ID required", nil)
	}

	event, err := h.eventService.Get(eventID)
	if err != nil {
		return apiError(err)
	}
	if event.HostID != e.Auth.Id && !e.HasSuperuserAuth() {
		return apis.NewForbiddenError("Only the event host can manage the queue", nil)
	}

	var req setQueueActiveRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request body", err)
	}

	if err := h.eventService.SetQueueActive(e.Request.Context(), eventID, req.Active); err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"event_id":     eventID,
		"queue_active": req.Active,
	})
}

// CreateTicketBatch - add a priced ticket allotment to a hosted event
func (h *EventHandler) CreateTicketBatch(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	eventID := e.Request.PathValue("eventId")
	if eventID == "" {
		return apis.NewBadRequestError("Event ID required", nil)
	}

	var req createTicketBatchRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request body", err)
	}

	price, err := decimal.NewFromString(req.Price)
	if err != nil || price.IsNegative() {
		return apis.NewBadRequestError("Invalid price", nil)
	}

	batch, err := h.eventService.CreateTicketBatch(e.Auth.Id, eventID, req.TicketType, price, req.NumberOfTickets)
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusCreated, batch)
}
