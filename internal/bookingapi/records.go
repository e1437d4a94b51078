package bookingapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"bookingdesk/internal/models"
	"bookingdesk/internal/schedule"
	"bookingdesk/internal/timeutil"
)

// flexString decodes JSON strings and numbers alike.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// decodeData accepts both {"data": ...} envelopes and bare payloads.
func decodeData(body []byte, out any) error {
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err == nil && len(env.Data) > 0 && string(env.Data) != "null" {
		return json.Unmarshal(env.Data, out)
	}
	return json.Unmarshal(body, out)
}

type blockRecord struct {
	Weekday   string `json:"weekday"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type scheduleInfo struct {
	ScheduleBlocks []blockRecord `json:"schedule_blocks"`
}

func (r blockRecord) toBlock() (schedule.Block, error) {
	return schedule.NewBlock(r.Weekday, r.StartTime, r.EndTime)
}

type bookingRecord struct {
	ID           flexString `json:"id"`
	ResourceID   flexString `json:"resource_id"`
	ServiceID    flexString `json:"service_id"`
	LocationID   flexString `json:"location_id"`
	StartsAt     string     `json:"starts_at"`
	EndsAt       string     `json:"ends_at"`
	CustomerID   string     `json:"customer_id"`
	CustomerName string     `json:"customer_name"`
	Price        flexString `json:"price"`
	IsCanceled   bool       `json:"is_canceled"`
	Metadata     struct {
		CustomerID   string `json:"customer_id"`
		CustomerName string `json:"customer_name"`
	} `json:"metadata"`
}

func (r *bookingRecord) toModel(loc *time.Location) (models.Booking, error) {
	start, err := timeutil.ToZonedDateTime(r.StartsAt, loc)
	if err != nil {
		return models.Booking{}, fmt.Errorf("booking %s starts_at: %w", r.ID, err)
	}
	end, err := timeutil.ToZonedDateTime(r.EndsAt, loc)
	if err != nil {
		return models.Booking{}, fmt.Errorf("booking %s ends_at: %w", r.ID, err)
	}

	b := models.Booking{
		ID:           string(r.ID),
		ResourceID:   string(r.ResourceID),
		ServiceID:    string(r.ServiceID),
		LocationID:   string(r.LocationID),
		StartsAt:     start,
		EndsAt:       end,
		CustomerID:   r.CustomerID,
		CustomerName: r.CustomerName,
		Price:        string(r.Price),
		IsCanceled:   r.IsCanceled,
	}
	if b.CustomerID == "" {
		b.CustomerID = r.Metadata.CustomerID
	}
	if b.CustomerName == "" {
		b.CustomerName = r.Metadata.CustomerName
	}
	return b, nil
}

type rateRecord struct {
	Name  string     `json:"name"`
	Price flexString `json:"price"`
}

type resourceRecord struct {
	ID                      flexString `json:"id"`
	Name                    string     `json:"name"`
	Type                    string     `json:"type"`
	Capacity                int        `json:"capacity"`
	MaxSimultaneousBookings int        `json:"max_simultaneous_bookings"`
	LocationID              flexString `json:"location_id"`
	Timezone                string     `json:"timezone"`
	Metadata                struct {
		Rates []rateRecord `json:"rates"`
	} `json:"metadata"`
}

func (r *resourceRecord) toModel() models.Resource {
	res := models.Resource{
		ID:                      string(r.ID),
		Name:                    r.Name,
		Type:                    r.Type,
		Capacity:                r.Capacity,
		MaxSimultaneousBookings: r.MaxSimultaneousBookings,
		LocationID:              string(r.LocationID),
		Timezone:                r.Timezone,
	}
	for _, rate := range r.Metadata.Rates {
		price, _ := strconv.ParseFloat(string(rate.Price), 64)
		res.Rates = append(res.Rates, models.Rate{Name: rate.Name, Price: price})
	}
	return res
}

type serviceRecord struct {
	ID               flexString `json:"id"`
	Name             string     `json:"name"`
	Duration         string     `json:"duration"`
	BookableInterval string     `json:"bookable_interval"`
}

func (r *serviceRecord) toModel() models.Service {
	return models.Service{
		ID:               string(r.ID),
		Name:             r.Name,
		Duration:         r.Duration,
		BookableInterval: r.BookableInterval,
	}
}

// CreateBookingRequest is the body of POST /createBookings.
type CreateBookingRequest struct {
	ResourceID   string `json:"resource_id"`
	ServiceID    string `json:"service_id"`
	LocationID   string `json:"location_id"`
	StartsAt     string `json:"starts_at"`
	EndsAt       string `json:"ends_at"`
	Price        string `json:"price"`
	CustomerID   string `json:"customer_id"`
	CustomerName string `json:"customer_name"`
}

// UpdateBookingRequest is the body of PATCH /updateBooking/{id}.
type UpdateBookingRequest struct {
	StartsAt string `json:"starts_at,omitempty"`
	EndsAt   string `json:"ends_at,omitempty"`
}

// BookingFilter narrows ListBookings. Empty fields are not sent.
type BookingFilter struct {
	ResourceID string
	LocationID string
	ServiceID  string
}

func (f BookingFilter) empty() bool {
	return f.ResourceID == "" && f.LocationID == "" && f.ServiceID == ""
}
