package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/resource-booking/internal/application"
	"github.com/example/resource-booking/internal/availability"
)

type bookingService interface {
	Book(ctx context.Context, params application.BookParams) (application.Reservation, error)
	BookMany(ctx context.Context, params application.BookManyParams) (application.BatchResult, error)
	Update(ctx context.Context, params application.UpdateReservationParams) (application.Reservation, error)
	Delete(ctx context.Context, actor application.Actor, reservationID string) error
	Approve(ctx context.Context, actor application.Actor, reservationID string) (application.Reservation, error)
	Reject(ctx context.Context, actor application.Actor, reservationID string) (application.Reservation, error)
	Cancel(ctx context.Context, actor application.Actor, reservationID string) (application.Reservation, error)
	ListReservations(ctx context.Context, params application.ListReservationsParams) ([]application.Reservation, error)
}

type BookingHandler struct {
	service   bookingService
	periods   []availability.Period
	responder responder
	logger    *slog.Logger
}

// NewBookingHandler constructs the reservation endpoints. The period catalog
// is used to resolve slot names from request payloads; a nil slice falls back
// to the default daily grid.
func NewBookingHandler(service bookingService, periods []availability.Period, logger *slog.Logger) *BookingHandler {
	base := defaultLogger(logger)
	if len(periods) == 0 {
		periods = availability.DefaultPeriods()
	}
	return &BookingHandler{service: service, periods: periods, responder: newResponder(base), logger: base}
}

func (h *BookingHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "BookingHandler", operation, attrs...)
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	actor, _ := ActorFromContext(r.Context())

	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "actor_id", actor.UserID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode reservation request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Create", "actor_id", actor.UserID, "resource_id", req.ResourceID)

	period, ok := availability.FindPeriod(h.periods, strings.TrimSpace(req.Period))
	if !ok {
		logger.ErrorContext(r.Context(), "unknown period in reservation request", "period", req.Period, "error_kind", "bad_request")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errUnknownPeriod)
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		logger.ErrorContext(r.Context(), "invalid date in reservation request", "date", req.Date, "error_kind", "bad_request")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidDate)
		return
	}

	reservation, err := h.service.Book(r.Context(), application.BookParams{
		Actor:      actor,
		ResourceID: strings.TrimSpace(req.ResourceID),
		Period:     period,
		Date:       date,
		Details:    req.toDetails(),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "reservation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("reservation_id", reservation.ID, "status", string(reservation.Status)).InfoContext(r.Context(), "reservation created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, reservationResponse{Reservation: toReservationDTO(reservation)})
}

func (h *BookingHandler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	actor, _ := ActorFromContext(r.Context())

	var req bookBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "CreateBatch", "actor_id", actor.UserID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode batch request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "CreateBatch", "actor_id", actor.UserID, "resource_id", req.ResourceID, "slot_count", len(req.Slots))

	slots := make([]application.Slot, 0, len(req.Slots))
	for _, slot := range req.Slots {
		period, ok := availability.FindPeriod(h.periods, strings.TrimSpace(slot.Period))
		if !ok {
			logger.ErrorContext(r.Context(), "unknown period in batch request", "period", slot.Period, "error_kind", "bad_request")
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errUnknownPeriod)
			return
		}
		date, err := parseDate(slot.Date)
		if err != nil {
			logger.ErrorContext(r.Context(), "invalid date in batch request", "date", slot.Date, "error_kind", "bad_request")
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidDate)
			return
		}
		slots = append(slots, application.Slot{Period: period, Date: date})
	}

	result, err := h.service.BookMany(r.Context(), application.BookManyParams{
		Actor:      actor,
		ResourceID: strings.TrimSpace(req.ResourceID),
		Slots:      slots,
		Details:    req.toDetails(),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "batch reservation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	status := http.StatusCreated
	if len(result.Succeeded) == 0 {
		status = http.StatusConflict
	} else if len(result.Failed) > 0 {
		status = http.StatusMultiStatus
	}

	logger.With("succeeded", len(result.Succeeded), "failed", len(result.Failed)).InfoContext(r.Context(), "batch reservation processed")
	h.responder.writeJSON(r.Context(), w, status, toBatchResultDTO(result))
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	actor, ok := ActorFromContext(r.Context())
	if !ok || strings.TrimSpace(actor.UserID) == "" {
		h.log(r.Context(), "List", "error_kind", "unauthenticated").ErrorContext(r.Context(), "missing authenticated actor")
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	query := r.URL.Query()
	logger := h.log(r.Context(), "List", "actor_id", actor.UserID)

	reservations, err := h.service.ListReservations(r.Context(), application.ListReservationsParams{
		Actor:        actor,
		ResourceID:   strings.TrimSpace(query.Get("resource_id")),
		ResourceType: availability.ResourceType(strings.TrimSpace(query.Get("type"))),
		UserID:       strings.TrimSpace(query.Get("user_id")),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "reservation list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(reservations)).InfoContext(r.Context(), "reservations listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listReservationsResponse{Reservations: toReservationDTOs(reservations)})
}

func (h *BookingHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	reservationID, ok := ReservationIDFromContext(r.Context())
	if !ok || strings.TrimSpace(reservationID) == "" {
		h.log(r.Context(), "Update", "error_kind", "bad_request").ErrorContext(r.Context(), "missing reservation id for update")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidReservationID)
		return
	}

	actor, _ := ActorFromContext(r.Context())

	var req updateReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Update", "actor_id", actor.UserID, "reservation_id", reservationID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode reservation update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Update", "actor_id", actor.UserID, "reservation_id", reservationID)

	reservation, err := h.service.Update(r.Context(), application.UpdateReservationParams{
		Actor:         actor,
		ReservationID: reservationID,
		Patch: application.ReservationPatch{
			Purpose:        req.Purpose,
			DevicePurposes: req.DevicePurposes,
			Notes:          req.Notes,
			Quantity:       req.Quantity,
		},
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "reservation update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "reservation updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, reservationResponse{Reservation: toReservationDTO(reservation)})
}

func (h *BookingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	reservationID, ok := ReservationIDFromContext(r.Context())
	if !ok || strings.TrimSpace(reservationID) == "" {
		h.log(r.Context(), "Delete", "error_kind", "bad_request").ErrorContext(r.Context(), "missing reservation id for delete")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidReservationID)
		return
	}

	actor, _ := ActorFromContext(r.Context())
	logger := h.log(r.Context(), "Delete", "actor_id", actor.UserID, "reservation_id", reservationID)

	if err := h.service.Delete(r.Context(), actor, reservationID); err != nil {
		logger.ErrorContext(r.Context(), "reservation delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "reservation deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// Review dispatches approve/reject/cancel lifecycle actions addressed as
// POST /reservations/{id}/{action}.
func (h *BookingHandler) Review(w http.ResponseWriter, r *http.Request, action string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	reservationID, ok := ReservationIDFromContext(r.Context())
	if !ok || strings.TrimSpace(reservationID) == "" {
		h.log(r.Context(), "Review", "error_kind", "bad_request").ErrorContext(r.Context(), "missing reservation id for lifecycle action")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidReservationID)
		return
	}

	actor, _ := ActorFromContext(r.Context())
	logger := h.log(r.Context(), "Review", "actor_id", actor.UserID, "reservation_id", reservationID, "action", action)

	var reservation application.Reservation
	var err error
	switch action {
	case "approve":
		reservation, err = h.service.Approve(r.Context(), actor, reservationID)
	case "reject":
		reservation, err = h.service.Reject(r.Context(), actor, reservationID)
	case "cancel":
		reservation, err = h.service.Cancel(r.Context(), actor, reservationID)
	default:
		http.NotFound(w, r)
		return
	}
	if err != nil {
		logger.ErrorContext(r.Context(), "reservation lifecycle action failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("status", string(reservation.Status)).InfoContext(r.Context(), "reservation lifecycle action applied")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, reservationResponse{Reservation: toReservationDTO(reservation)})
}

type bookingDetailsRequest struct {
	Quantity       int      `json:"quantity"`
	Purpose        string   `json:"purpose"`
	DevicePurposes []string `json:"device_purposes"`
	Notes          string   `json:"notes"`
}

func (r bookingDetailsRequest) toDetails() application.BookingDetails {
	return application.BookingDetails{
		Quantity:       r.Quantity,
		Purpose:        strings.TrimSpace(r.Purpose),
		DevicePurposes: r.DevicePurposes,
		Notes:          strings.TrimSpace(r.Notes),
	}
}

type bookRequest struct {
	ResourceID string `json:"resource_id"`
	Period     string `json:"period"`
	Date       string `json:"date"`
	bookingDetailsRequest
}

type slotRequest struct {
	Period string `json:"period"`
	Date   string `json:"date"`
}

type bookBatchRequest struct {
	ResourceID string        `json:"resource_id"`
	Slots      []slotRequest `json:"slots"`
	bookingDetailsRequest
}

type updateReservationRequest struct {
	Purpose        *string   `json:"purpose"`
	DevicePurposes *[]string `json:"device_purposes"`
	Notes          *string   `json:"notes"`
	Quantity       *int      `json:"quantity"`
}

type reservationResponse struct {
	Reservation reservationDTO `json:"reservation"`
}

type listReservationsResponse struct {
	Reservations []reservationDTO `json:"reservations"`
}

type batchResultDTO struct {
	Succeeded []reservationDTO `json:"succeeded"`
	Failed    []slotFailureDTO `json:"failed"`
}

type slotFailureDTO struct {
	Period  string `json:"period"`
	Date    string `json:"date"`
	Message string `json:"message"`
}

type reservationDTO struct {
	ID             string   `json:"id"`
	UserID         string   `json:"user_id"`
	BookedBy       string   `json:"booked_by"`
	ResourceID     string   `json:"resource_id"`
	ResourceType   string   `json:"resource_type"`
	Start          string   `json:"start"`
	End            string   `json:"end"`
	Status         string   `json:"status"`
	Quantity       int      `json:"quantity"`
	Purpose        string   `json:"purpose,omitempty"`
	DevicePurposes []string `json:"device_purposes,omitempty"`
	Notes          string   `json:"notes,omitempty"`
	CreatedAt      string   `json:"created_at"`
	UpdatedAt      string   `json:"updated_at"`
}

func toReservationDTO(reservation application.Reservation) reservationDTO {
	return reservationDTO{
		ID:             reservation.ID,
		UserID:         reservation.UserID,
		BookedBy:       reservation.BookedBy,
		ResourceID:     reservation.ResourceID,
		ResourceType:   string(reservation.ResourceType),
		Start:          reservation.Start.UTC().Format(time.RFC3339Nano),
		End:            reservation.End.UTC().Format(time.RFC3339Nano),
		Status:         string(reservation.Status),
		Quantity:       reservation.Quantity,
		Purpose:        reservation.Purpose,
		DevicePurposes: reservation.DevicePurposes,
		Notes:          reservation.Notes,
		CreatedAt:      reservation.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:      reservation.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toReservationDTOs(reservations []application.Reservation) []reservationDTO {
	if len(reservations) == 0 {
		return nil
	}
	out := make([]reservationDTO, 0, len(reservations))
	for _, reservation := range reservations {
		out = append(out, toReservationDTO(reservation))
	}
	return out
}

func toBatchResultDTO(result application.BatchResult) batchResultDTO {
	dto := batchResultDTO{
		Succeeded: toReservationDTOs(result.Succeeded),
	}
	for _, failure := range result.Failed {
		message := ""
		if failure.Err != nil {
			message = failure.Err.Error()
		}
		dto.Failed = append(dto.Failed, slotFailureDTO{
			Period:  failure.Slot.Period.Name,
			Date:    failure.Slot.Date.UTC().Format("2006-01-02"),
			Message: message,
		})
	}
	return dto
}

func parseDate(value string) (time.Time, error) {
	return time.Parse("2006-01-02", strings.TrimSpace(value))
}
