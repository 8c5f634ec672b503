package handlers

import (
	"log/slog"
	"net/http"

	"eventpass/internal/store"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type EventHandler struct {
	app   *pocketbase.PocketBase
	store *store.Store
}

func NewEventHandler(app *pocketbase.PocketBase, store *store.Store) *EventHandler {
	return &EventHandler{app: app, store: store}
}

// GetEvent - Get event details with live remaining capacity
func (h *EventHandler) GetEvent(e *core.RequestEvent) error {
	eventID := e.Request.PathValue("eventId")
	ctx := e.Request.Context()

	event, err := h.store.FindEvent(ctx, eventID)
	if err != nil {
		return toAPIError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"status": "success",
		"data": map[string]any{
			"id":                 event.ID,
			"name":               event.Name,
			"description":        event.Description,
			"location":           event.Location,
			"event_date":         event.EventDate,
			"event_time":         event.EventTime,
			"duration":           event.Duration,
			"thumbnail":          event.Thumbnail,
			"ticket_price":       event.TicketPrice,
			"capacity":           event.Capacity,
			"attending":          event.Attending,
			"remaining":          event.Remaining(),
			"creator_name":       event.CreatorName,
			"age_restriction":    event.AgeRestriction,
			"gender_restriction": event.GenderRestriction,
		},
	})
}

// UpdateCapacity - Organizer-only capacity edit, rejected below sold count
func (h *EventHandler) UpdateCapacity(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	eventID := e.Request.PathValue("eventId")
	ctx := e.Request.Context()

	event, err := h.store.FindEvent(ctx, eventID)
	if err != nil {
		return toAPIError(err)
	}
	if event.CreatorID != e.Auth.Id {
		return apis.NewForbiddenError("Only the event creator can edit capacity", nil)
	}

	var req struct {
		Capacity int `json:"capacity"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.Capacity < 1 {
		return apis.NewBadRequestError("capacity must be at least 1", nil)
	}

	if err := h.store.UpdateCapacity(ctx, eventID, req.Capacity); err != nil {
		slog.Error("h.store.UpdateCapacity()", "event_id", eventID, "capacity", req.Capacity, "error", err)
		return toAPIError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{"status": "success", "capacity": req.Capacity})
}
