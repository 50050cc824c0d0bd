package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/resource-booking/internal/application"
	"github.com/example/resource-booking/internal/availability"
)

type availabilityService interface {
	Periods() []availability.Period
	SlotDetail(ctx context.Context, actor application.Actor, resourceID string, period availability.Period, date time.Time) (application.SlotAvailability, error)
	ResourceDay(ctx context.Context, actor application.Actor, resourceID string, date time.Time) ([]application.SlotAvailability, error)
	RoomsOverview(ctx context.Context, actor application.Actor, period availability.Period, date time.Time) (availability.RoomUsage, error)
	DevicesOverview(ctx context.Context, actor application.Actor, period availability.Period, date time.Time) (availability.DeviceUsage, error)
}

type AvailabilityHandler struct {
	service   availabilityService
	responder responder
	logger    *slog.Logger
}

func NewAvailabilityHandler(service availabilityService, logger *slog.Logger) *AvailabilityHandler {
	base := defaultLogger(logger)
	return &AvailabilityHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *AvailabilityHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "AvailabilityHandler", operation, attrs...)
}

// Periods lists the fixed daily booking grid.
func (h *AvailabilityHandler) Periods(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	periods := h.service.Periods()
	out := make([]periodDTO, 0, len(periods))
	for _, period := range periods {
		out = append(out, periodDTO{
			Name:  period.Name,
			Label: period.Label,
			Start: period.Start,
			End:   period.End,
		})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listPeriodsResponse{Periods: out})
}

// ResourceSlots describes one resource's availability: a single slot when the
// period query parameter is present, otherwise the whole day.
func (h *AvailabilityHandler) ResourceSlots(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resourceID, ok := ResourceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(resourceID) == "" {
		h.log(r.Context(), "ResourceSlots", "error_kind", "bad_request").ErrorContext(r.Context(), "missing resource id for availability lookup")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidResourceID)
		return
	}

	actor, _ := ActorFromContext(r.Context())
	query := r.URL.Query()
	logger := h.log(r.Context(), "ResourceSlots", "actor_id", actor.UserID, "resource_id", resourceID)

	date, err := parseDate(query.Get("date"))
	if err != nil {
		logger.ErrorContext(r.Context(), "invalid date in availability request", "date", query.Get("date"), "error_kind", "bad_request")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidDate)
		return
	}

	periodName := strings.TrimSpace(query.Get("period"))
	if periodName != "" {
		period, ok := availability.FindPeriod(h.service.Periods(), periodName)
		if !ok {
			logger.ErrorContext(r.Context(), "unknown period in availability request", "period", periodName, "error_kind", "bad_request")
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errUnknownPeriod)
			return
		}

		detail, err := h.service.SlotDetail(r.Context(), actor, resourceID, period, date)
		if err != nil {
			logger.ErrorContext(r.Context(), "slot detail failed", "error", err, "error_kind", application.ErrorKind(err))
			h.responder.handleServiceError(r.Context(), w, err)
			return
		}
		h.responder.writeJSON(r.Context(), w, http.StatusOK, slotListResponse{Slots: []slotAvailabilityDTO{toSlotAvailabilityDTO(detail)}})
		return
	}

	details, err := h.service.ResourceDay(r.Context(), actor, resourceID, date)
	if err != nil {
		logger.ErrorContext(r.Context(), "resource day failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]slotAvailabilityDTO, 0, len(details))
	for _, detail := range details {
		out = append(out, toSlotAvailabilityDTO(detail))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, slotListResponse{Slots: out})
}

// RoomsOverview summarizes room occupancy for one slot across the room catalog.
func (h *AvailabilityHandler) RoomsOverview(w http.ResponseWriter, r *http.Request) {
	h.classOverview(w, r, availability.ResourceRoom)
}

// DevicesOverview summarizes device unit usage for one slot across the device catalog.
func (h *AvailabilityHandler) DevicesOverview(w http.ResponseWriter, r *http.Request) {
	h.classOverview(w, r, availability.ResourceDevice)
}

func (h *AvailabilityHandler) classOverview(w http.ResponseWriter, r *http.Request, resourceType availability.ResourceType) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	actor, _ := ActorFromContext(r.Context())
	query := r.URL.Query()
	logger := h.log(r.Context(), "Overview", "actor_id", actor.UserID, "type", string(resourceType))

	date, err := parseDate(query.Get("date"))
	if err != nil {
		logger.ErrorContext(r.Context(), "invalid date in overview request", "date", query.Get("date"), "error_kind", "bad_request")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidDate)
		return
	}

	period, ok := availability.FindPeriod(h.service.Periods(), strings.TrimSpace(query.Get("period")))
	if !ok {
		logger.ErrorContext(r.Context(), "unknown period in overview request", "period", query.Get("period"), "error_kind", "bad_request")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errUnknownPeriod)
		return
	}

	if resourceType == availability.ResourceRoom {
		usage, err := h.service.RoomsOverview(r.Context(), actor, period, date)
		if err != nil {
			logger.ErrorContext(r.Context(), "rooms overview failed", "error", err, "error_kind", application.ErrorKind(err))
			h.responder.handleServiceError(r.Context(), w, err)
			return
		}
		h.responder.writeJSON(r.Context(), w, http.StatusOK, roomUsageResponse{
			TotalRooms:  usage.TotalRooms,
			BookedRooms: usage.BookedRooms,
		})
		return
	}

	usage, err := h.service.DevicesOverview(r.Context(), actor, period, date)
	if err != nil {
		logger.ErrorContext(r.Context(), "devices overview failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, deviceUsageResponse{
		TotalUnits:     usage.TotalUnits,
		BookedUnits:    usage.BookedUnits,
		AvailableUnits: usage.AvailableUnits,
	})
}

type periodDTO struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	Start string `json:"start"`
	End   string `json:"end"`
}

type listPeriodsResponse struct {
	Periods []periodDTO `json:"periods"`
}

type slotAvailabilityDTO struct {
	ResourceID  string           `json:"resource_id"`
	Period      string           `json:"period"`
	Date        string           `json:"date"`
	Committed   int              `json:"committed"`
	Remaining   int              `json:"remaining"`
	Past        bool             `json:"past"`
	Overlapping []reservationDTO `json:"overlapping,omitempty"`
}

type slotListResponse struct {
	Slots []slotAvailabilityDTO `json:"slots"`
}

type roomUsageResponse struct {
	TotalRooms  int `json:"total_rooms"`
	BookedRooms int `json:"booked_rooms"`
}

type deviceUsageResponse struct {
	TotalUnits     int `json:"total_units"`
	BookedUnits    int `json:"booked_units"`
	AvailableUnits int `json:"available_units"`
}

func toSlotAvailabilityDTO(detail application.SlotAvailability) slotAvailabilityDTO {
	// Oversubscribed slots can report negative remaining internally; clients
	// only ever see zero.
	remaining := detail.Remaining
	if remaining < 0 {
		remaining = 0
	}
	return slotAvailabilityDTO{
		ResourceID:  detail.Resource.ID,
		Period:      detail.Period.Name,
		Date:        detail.Date.UTC().Format("2006-01-02"),
		Committed:   detail.Committed,
		Remaining:   remaining,
		Past:        detail.Past,
		Overlapping: toReservationDTOs(detail.Overlapping),
	}
}
