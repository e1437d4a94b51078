package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"bookingdesk/internal/booking"
	"bookingdesk/internal/bookingapi"
	"bookingdesk/internal/service"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg, RequestID: RequestIDFromContext(r.Context())})
}

// writeServiceError maps service, validation and upstream errors to statuses.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if ve, ok := booking.AsValidationError(err); ok {
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:     booking.UserMessage(ve),
			Kind:      string(ve.Kind),
			RequestID: RequestIDFromContext(r.Context()),
		})
		return
	}

	switch {
	case errors.Is(err, service.ErrStale):
		writeError(w, r, http.StatusConflict, "superseded by a newer request")
	case errors.Is(err, service.ErrForbidden):
		writeError(w, r, http.StatusForbidden, "booking belongs to another customer")
	case errors.Is(err, service.ErrBookingCanceled):
		writeError(w, r, http.StatusConflict, "booking is canceled")
	case errors.Is(err, service.ErrLifecycle):
		writeError(w, r, http.StatusConflict, "booking change already in progress")
	case bookingapi.IsNotFound(err):
		writeError(w, r, http.StatusNotFound, "not found")
	case bookingapi.IsUpstream(err):
		s.logger.Error().Err(err).Str("request_id", RequestIDFromContext(r.Context())).Msg("booking api failed")
		writeError(w, r, http.StatusBadGateway, booking.UserMessage(err))
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, r, http.StatusGatewayTimeout, "booking api timed out")
	default:
		s.logger.Error().Err(err).Str("request_id", RequestIDFromContext(r.Context())).Msg("request failed")
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
