package handlers

import (
	"net/http"

	"event-ticketing/services"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type QueueHandler struct {
	queueService   *services.QueueService
	bookingService *services.BookingService
}

func NewQueueHandler(queueService *services.QueueService, bookingService *services.BookingService) *QueueHandler {
	return &QueueHandler{
		queueService:   queueService,
		bookingService: bookingService,
	}
}

// GetQueueStatus - waiting room poll: booking token if admitted, queue
// position otherwise
func (h *QueueHandler) GetQueueStatus(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	eventID := e.Request.PathValue("eventId")
	if eventID == "" {
		return apis.NewBadRequestError("Event ID required", nil)
	}

	result, err := h.bookingService.QueueStatus(e.Request.Context(), e.Auth.Id, eventID)
	if err != nil {
		return apiError(err)
	}

	if result.Allowed {
		return e.JSON(http.StatusOK, map[string]any{
			"message":       "You are allowed to start the booking",
			"booking_token": result.BookingToken,
		})
	}

	return e.JSON(http.StatusOK, map[string]any{
		"message":  "You are in the queue",
		"position": result.Position,
	})
}

// LeaveQueue - explicit withdrawal from the waiting room
func (h *QueueHandler) LeaveQueue(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	eventID := e.Request.PathValue("eventId")
	if eventID == "" {
		return apis.NewBadRequestError("Event ID required", nil)
	}

	if err := h.queueService.Dequeue(e.Request.Context(), eventID, e.Auth.Id); err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{"message": "You have left the queue"})
}

// GetQueueMetrics - queue length and allowed count for an event
func (h *QueueHandler) GetQueueMetrics(e *core.RequestEvent) error {
	eventID := e.Request.PathValue("eventId")
	if eventID == "" {
		return apis.NewBadRequestError("Event ID required", nil)
	}

	metrics, err := h.queueService.Metrics(e.Request.Context(), eventID)
	if err != nil {
		return apis.NewBadRequestError("Failed to get metrics", err)
	}

	return e.JSON(http.StatusOK, metrics)
}
