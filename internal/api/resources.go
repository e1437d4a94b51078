package api

import (
	"context"
	"net"
	"net/http"

	"bookingdesk/internal/metrics"
	"bookingdesk/internal/service"
	"bookingdesk/internal/timeutil"
)

// ValidDatesResponse is the body of GET /api/resources/{id}/dates.
type ValidDatesResponse struct {
	ResourceID string          `json:"resource_id"`
	From       timeutil.Date   `json:"from"`
	To         timeutil.Date   `json:"to"`
	Dates      []timeutil.Date `json:"dates"`
}

// handleResources lists bookable resources.
// GET /api/resources
func (s *HTTPServer) handleResources(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("resources")

	resources, err := s.slots.Resources(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"resources": resources})
}

// handleDaySlots returns the slot groups of one resource and date. A newer
// request from the same viewer for the same resource supersedes this one.
// GET /api/resources/{id}/slots?date=YYYY-MM-DD
func (s *HTTPServer) handleDaySlots(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("day_slots")

	id := r.PathValue("id")
	date, ok := s.dateParam(w, r, "date")
	if !ok {
		return
	}

	view, err := service.Load(s.loader, r.Context(), viewerKey(r, id), func(ctx context.Context) (*service.DayView, error) {
		return s.slots.DayView(ctx, id, date)
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleGrid returns the fixed display window of a resource. Grid loads are
// superseded only by newer grid loads of the same view.
// GET /api/resources/{id}/grid?date=YYYY-MM-DD
func (s *HTTPServer) handleGrid(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("grid")

	id := r.PathValue("id")
	date, ok := s.dateParam(w, r, "date")
	if !ok {
		return
	}

	grid, err := service.Load(s.loader, r.Context(), viewerKey(r, id)+"|grid", func(ctx context.Context) (*service.GridView, error) {
		return s.slots.Grid(ctx, id, date)
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, grid)
}

// handleValidDates lists the bookable dates of a resource.
// GET /api/resources/{id}/dates?from=&to=
func (s *HTTPServer) handleValidDates(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("valid_dates")

	id := r.PathValue("id")
	from, ok := s.dateParam(w, r, "from")
	if !ok {
		return
	}
	to := from.AddDays(s.opts.ValidDays)
	if raw := r.URL.Query().Get("to"); raw != "" {
		d, err := timeutil.ParseDate(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid to; expected YYYY-MM-DD")
			return
		}
		to = d
	}
	if to.Before(from) {
		writeError(w, r, http.StatusBadRequest, "from must be before or equal to to")
		return
	}

	dates, err := s.slots.ValidDates(r.Context(), id, from, to)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if dates == nil {
		dates = []timeutil.Date{}
	}
	writeJSON(w, http.StatusOK, ValidDatesResponse{ResourceID: id, From: from, To: to, Dates: dates})
}

// dateParam reads a YYYY-MM-DD query parameter, defaulting to today.
func (s *HTTPServer) dateParam(w http.ResponseWriter, r *http.Request, name string) (timeutil.Date, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return s.slots.Today(), true
	}
	d, err := timeutil.ParseDate(raw)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid "+name+"; expected YYYY-MM-DD")
		return timeutil.Date{}, false
	}
	return d, true
}

// viewerKey identifies the view a load belongs to. Anonymous viewers are
// keyed by host so every connection from one client shares a view.
func viewerKey(r *http.Request, resourceID string) string {
	viewer := r.Header.Get(UserEmailHeader)
	if viewer == "" {
		viewer = r.RemoteAddr
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			viewer = host
		}
	}
	return viewer + "|" + resourceID
}
