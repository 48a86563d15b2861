package handlers

import (
	"net/http"

	"event-ticketing/services"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type AdminHandler struct {
	queueService     *services.QueueService
	eventService     *services.EventService
	admissionService *services.AdmissionService
}

func NewAdminHandler(queueService *services.QueueService, eventService *services.EventService, admissionService *services.AdmissionService) *AdminHandler {
	return &AdminHandler{
		queueService:     queueService,
		eventService:     eventService,
		admissionService: admissionService,
	}
}

func (h *AdminHandler) requireSuperuser(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}
	if !e.HasSuperuserAuth() {
		return apis.NewForbiddenError("Superuser access required", nil)
	}
	return nil
}

// QueueDashboard - waiting room stats for the currently active queue
func (h *AdminHandler) QueueDashboard(e *core.RequestEvent) error {
	if err := h.requireSuperuser(e); err != nil {
		return err
	}

	eventID, err := h.eventService.ActiveQueueEventID()
	if err != nil {
		return apis.NewBadRequestError("Failed to resolve active queue", err)
	}
	if eventID == "" {
		return e.JSON(http.StatusOK, map[string]any{
			"active": false,
		})
	}

	metrics, err := h.queueService.Metrics(e.Request.Context(), eventID)
	if err != nil {
		return apis.NewBadRequestError("Failed to get queue metrics", err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"active":  true,
		"metrics": metrics,
	})
}

// ForcePromote - run one admission cycle immediately instead of waiting
// for the next tick
func (h *AdminHandler) ForcePromote(e *core.RequestEvent) error {
	if err := h.requireSuperuser(e); err != nil {
		return err
	}

	h.admissionService.RunCycle(e.Request.Context())

	return e.JSON(http.StatusOK, map[string]any{"message": "Admission cycle executed"})
}

// ClearQueue - drop every waiting and allowed user for an event
func (h *AdminHandler) ClearQueue(e *core.RequestEvent) error {
	if err := h.requireSuperuser(e); err != nil {
		return err
	}

	eventID := e.Request.PathValue("eventId")
	if eventID == "" {
		return apis.NewBadRequestError("Event ID required", nil)
	}

	if err := h.queueService.Clear(e.Request.Context(), eventID); err != nil {
		return apis.NewBadRequestError("Failed to clear queue", err)
	}

	return e.JSON(http.StatusOK, map[string]any{"message": "Queue cleared"})
}
