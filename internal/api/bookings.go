package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"bookingdesk/internal/booking"
	"bookingdesk/internal/journal"
	"bookingdesk/internal/metrics"
	"bookingdesk/internal/models"
	"bookingdesk/internal/service"
	"bookingdesk/internal/timeutil"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// BookingRequest is the body of POST /api/bookings and PATCH /api/bookings/{id}.
type BookingRequest struct {
	ResourceID string `json:"resource_id,omitempty"`
	DraftKey   string `json:"draft_key,omitempty"`
	Date       string `json:"date"`       // YYYY-MM-DD
	StartTime  string `json:"start_time"` // HH:MM
	EndTime    string `json:"end_time,omitempty"`
}

type bookingWindow struct {
	date  timeutil.Date
	start timeutil.TimeOfDay
	end   *timeutil.TimeOfDay
}

func decodeBookingRequest(r *http.Request) (*BookingRequest, *bookingWindow, error) {
	var req BookingRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		return nil, nil, fmt.Errorf("invalid JSON body")
	}

	if req.Date == "" || req.StartTime == "" {
		return nil, nil, fmt.Errorf("date and start_time are required")
	}
	date, err := timeutil.ParseDate(req.Date)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid date format; expected YYYY-MM-DD")
	}
	start, err := timeutil.ParseTimeOfDay(req.StartTime)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid start_time format; expected HH:MM")
	}

	win := &bookingWindow{date: date, start: start}
	if req.EndTime != "" {
		end, err := timeutil.ParseTimeOfDay(req.EndTime)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid end_time format; expected HH:MM")
		}
		win.end = &end
	}
	return &req, win, nil
}

// handleCreateBooking validates and submits a new booking.
// POST /api/bookings
func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request, customer models.Customer) {
	metrics.IncHTTP("create_booking")

	req, win, err := decodeBookingRequest(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.ResourceID == "" {
		writeError(w, r, http.StatusBadRequest, "resource_id is required")
		return
	}

	res, err := s.bookings.Create(r.Context(), service.CreateInput{
		DraftKey:   req.DraftKey,
		ResourceID: req.ResourceID,
		Date:       win.date,
		Start:      win.start,
		End:        win.end,
		Customer:   customer,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// handleUpdateBooking moves a booking to a new window.
// PATCH /api/bookings/{id}
func (s *HTTPServer) handleUpdateBooking(w http.ResponseWriter, r *http.Request, customer models.Customer) {
	metrics.IncHTTP("update_booking")

	_, win, err := decodeBookingRequest(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.bookings.Update(r.Context(), service.UpdateInput{
		BookingID: r.PathValue("id"),
		Date:      win.date,
		Start:     win.start,
		End:       win.end,
		Customer:  customer,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleCancelBooking cancels a booking.
// DELETE /api/bookings/{id}
func (s *HTTPServer) handleCancelBooking(w http.ResponseWriter, r *http.Request, customer models.Customer) {
	metrics.IncHTTP("cancel_booking")

	if err := s.bookings.Cancel(r.Context(), r.PathValue("id"), customer); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleMyBookings lists the customer's bookings.
// GET /api/me/bookings?from=&to=&status=&page=&page_size=
func (s *HTTPServer) handleMyBookings(w http.ResponseWriter, r *http.Request, customer models.Customer) {
	metrics.IncHTTP("my_bookings")

	filter, err := historyFilter(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	page, size, ok := pageParams(r)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "page must be >= 0 and page_size between 1 and 100")
		return
	}

	entries, err := s.bookings.History(r.Context(), customer, filter)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if entries == nil {
		entries = []booking.HistoryEntry{}
	}
	current, meta := paginate(entries, page, size)
	writeJSON(w, http.StatusOK, map[string]any{"bookings": current, "page": meta})
}

// handleExport downloads the customer's history as a workbook.
// GET /api/me/bookings/export
func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request, customer models.Customer) {
	metrics.IncHTTP("export")

	filter, err := historyFilter(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	var buf bytes.Buffer
	if err := s.bookings.Export(r.Context(), &buf, customer, filter); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="bookings.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// handleActivity lists the customer's recent lifecycle transitions.
// GET /api/me/activity?limit=
func (s *HTTPServer) handleActivity(w http.ResponseWriter, r *http.Request, customer models.Customer) {
	metrics.IncHTTP("activity")

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, r, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := s.bookings.Activity(r.Context(), customer, limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"activity": entries})
}

// handleBookingActivity lists the lifecycle transitions of one booking.
// GET /api/bookings/{id}/activity
func (s *HTTPServer) handleBookingActivity(w http.ResponseWriter, r *http.Request, customer models.Customer) {
	metrics.IncHTTP("booking_activity")

	entries, err := s.bookings.BookingActivity(r.Context(), r.PathValue("id"), customer)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"activity": entries})
}

func historyFilter(r *http.Request) (booking.HistoryFilter, error) {
	q := r.URL.Query()
	var f booking.HistoryFilter

	if raw := q.Get("from"); raw != "" {
		d, err := timeutil.ParseDate(raw)
		if err != nil {
			return f, fmt.Errorf("invalid from; expected YYYY-MM-DD")
		}
		f.From = d
	}
	if raw := q.Get("to"); raw != "" {
		d, err := timeutil.ParseDate(raw)
		if err != nil {
			return f, fmt.Errorf("invalid to; expected YYYY-MM-DD")
		}
		f.To = d
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return f, fmt.Errorf("from must be before or equal to to")
	}

	status, ok := booking.ParseHistoryStatus(q.Get("status"))
	if !ok {
		return f, fmt.Errorf("status must be one of completed, ongoing, upcoming, canceled")
	}
	f.Status = status
	return f, nil
}
