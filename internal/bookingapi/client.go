// Package bookingapi is the HTTP client for the remote booking API.
package bookingapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"bookingdesk/internal/metrics"
	"bookingdesk/internal/models"
	"bookingdesk/internal/schedule"
)

// DefaultTimeout bounds every request to the booking API.
const DefaultTimeout = 10 * time.Second

const cachePrefix = "bookingdesk:"

// Client calls the booking API. Schedule, service and resource lookups may be
// cached in Redis; bookings are always fetched live.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	loc        *time.Location

	redis    *redis.Client
	cacheTTL time.Duration
}

// NewClient constructs a client. A non-positive timeout means DefaultTimeout.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		loc: time.UTC,
	}
}

// UseRedisCache configures optional Redis caching for read-only lookups.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

// UseRateLimit throttles outgoing requests. Zero rps disables limiting.
func (c *Client) UseRateLimit(rps float64, burst int) {
	if rps <= 0 {
		c.limiter = nil
		return
	}
	if burst <= 0 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
}

// UseLocation sets the zone used for timestamps that carry no offset.
func (c *Client) UseLocation(loc *time.Location) {
	if loc != nil {
		c.loc = loc
	}
}

// ListResources returns all bookable resources.
func (c *Client) ListResources(ctx context.Context) ([]models.Resource, error) {
	const op = "list_resources"
	cacheKey := "resources"
	var records []resourceRecord

	if !c.readCache(ctx, cacheKey, &records) {
		if err := c.doGet(ctx, op, c.baseURL+"/viewAllresources", &records); err != nil {
			return nil, err
		}
		c.writeCache(ctx, cacheKey, records)
	}

	out := make([]models.Resource, 0, len(records))
	for i := range records {
		out = append(out, records[i].toModel())
	}
	return out, nil
}

// GetResource finds one resource by id.
func (c *Client) GetResource(ctx context.Context, id string) (*models.Resource, error) {
	resources, err := c.ListResources(ctx)
	if err != nil {
		return nil, err
	}
	for i := range resources {
		if resources[i].ID == id {
			return &resources[i], nil
		}
	}
	return nil, &UpstreamError{Op: "get_resource", StatusCode: http.StatusNotFound, Message: "resource " + id + " not found"}
}

// GetScheduleBlocks returns the weekly blocks of a resource. An empty weekday
// returns every block.
func (c *Client) GetScheduleBlocks(ctx context.Context, resourceName string, weekday schedule.Weekday) ([]schedule.Block, error) {
	const op = "get_schedule"
	endpoint := fmt.Sprintf("%s/getResourceScheduleInfo/%s", c.baseURL, url.PathEscape(resourceName))
	if weekday != "" {
		endpoint += "?weekday=" + url.QueryEscape(string(weekday))
	}
	cacheKey := fmt.Sprintf("schedule:%s:%s", resourceName, weekday)
	var info scheduleInfo

	if !c.readCache(ctx, cacheKey, &info) {
		if err := c.doGet(ctx, op, endpoint, &info); err != nil {
			return nil, err
		}
		c.writeCache(ctx, cacheKey, info)
	}

	blocks := make([]schedule.Block, 0, len(info.ScheduleBlocks))
	for i, rec := range info.ScheduleBlocks {
		b, err := rec.toBlock()
		if err != nil {
			return nil, fmt.Errorf("schedule %s block %d: %w", resourceName, i, err)
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}

// GetServiceIDForResource resolves the service attached to a resource. The
// API answers with the bare id as text.
func (c *Client) GetServiceIDForResource(ctx context.Context, resourceID string) (string, error) {
	const op = "get_service_id"
	cacheKey := "service-id:" + resourceID
	var id string
	if c.readCache(ctx, cacheKey, &id) {
		return id, nil
	}

	body, err := c.send(ctx, op, http.MethodPost, c.baseURL+"/getServiceIdbyResourceId", map[string]string{"resource_id": resourceID})
	if err != nil {
		return "", err
	}
	id = strings.Trim(strings.TrimSpace(string(body)), `"`)
	if id == "" {
		return "", &UpstreamError{Op: op, Message: "empty service id for resource " + resourceID}
	}
	c.writeCache(ctx, cacheKey, id)
	return id, nil
}

// GetService fetches a service by id.
func (c *Client) GetService(ctx context.Context, id string) (*models.Service, error) {
	const op = "get_service"
	endpoint := fmt.Sprintf("%s/getService/%s", c.baseURL, url.PathEscape(id))
	cacheKey := "service:" + id
	var rec serviceRecord

	if !c.readCache(ctx, cacheKey, &rec) {
		if err := c.doGet(ctx, op, endpoint, &rec); err != nil {
			return nil, err
		}
		c.writeCache(ctx, cacheKey, rec)
	}
	svc := rec.toModel()
	if svc.ID == "" {
		svc.ID = id
	}
	return &svc, nil
}

// ListBookings fetches bookings, filtered server-side when f is set.
func (c *Client) ListBookings(ctx context.Context, f BookingFilter) ([]models.Booking, error) {
	const op = "list_bookings"
	endpoint := c.baseURL + "/viewAllBookings"
	if !f.empty() {
		q := url.Values{}
		if f.ResourceID != "" {
			q.Set("resource_id", f.ResourceID)
		}
		if f.LocationID != "" {
			q.Set("location_id", f.LocationID)
		}
		if f.ServiceID != "" {
			q.Set("service_id", f.ServiceID)
		}
		endpoint = c.baseURL + "/viewFilteredBookings?" + q.Encode()
	}

	var records []bookingRecord
	if err := c.doGet(ctx, op, endpoint, &records); err != nil {
		return nil, err
	}
	return c.toBookings(records)
}

// ListCustomerBookings returns the bookings made by customerID. The API
// cannot filter by customer, so this filters client-side.
func (c *Client) ListCustomerBookings(ctx context.Context, customerID string) ([]models.Booking, error) {
	all, err := c.ListBookings(ctx, BookingFilter{})
	if err != nil {
		return nil, err
	}
	var mine []models.Booking
	for _, b := range all {
		if b.CustomerID == customerID {
			mine = append(mine, b)
		}
	}
	return mine, nil
}

// GetBooking fetches one booking.
func (c *Client) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	const op = "get_booking"
	var rec bookingRecord
	if err := c.doGet(ctx, op, fmt.Sprintf("%s/viewBooking/%s", c.baseURL, url.PathEscape(id)), &rec); err != nil {
		return nil, err
	}
	b, err := rec.toModel(c.loc)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// CreateBooking submits a new booking.
func (c *Client) CreateBooking(ctx context.Context, req CreateBookingRequest) (*models.Booking, error) {
	const op = "create_booking"
	body, err := c.send(ctx, op, http.MethodPost, c.baseURL+"/createBookings", req)
	if err != nil {
		return nil, err
	}
	return c.bookingFromBody(op, body, req.StartsAt, req.EndsAt)
}

// UpdateBooking changes the window of an existing booking.
func (c *Client) UpdateBooking(ctx context.Context, id string, req UpdateBookingRequest) (*models.Booking, error) {
	const op = "update_booking"
	endpoint := fmt.Sprintf("%s/updateBooking/%s", c.baseURL, url.PathEscape(id))
	body, err := c.send(ctx, op, http.MethodPatch, endpoint, req)
	if err != nil {
		return nil, err
	}
	b, err := c.bookingFromBody(op, body, req.StartsAt, req.EndsAt)
	if err != nil {
		return nil, err
	}
	if b.ID == "" {
		b.ID = id
	}
	return b, nil
}

// DeleteBooking cancels a booking.
func (c *Client) DeleteBooking(ctx context.Context, id string) error {
	_, err := c.send(ctx, "delete_booking", http.MethodDelete, fmt.Sprintf("%s/deleteBooking/%s", c.baseURL, url.PathEscape(id)), nil)
	return err
}

// HealthCheck checks that the booking API answers.
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.send(ctx, "health", http.MethodGet, c.baseURL+"/viewAllresources", nil)
	return err
}

// InvalidateResource drops cached lookups for a resource.
func (c *Client) InvalidateResource(ctx context.Context, resourceName, resourceID string) {
	if c.redis == nil {
		return
	}
	keys := []string{cachePrefix + "resources", cachePrefix + "service-id:" + resourceID}
	iter := c.redis.Scan(ctx, 0, cachePrefix+"schedule:"+resourceName+":*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	_ = c.redis.Del(ctx, keys...).Err()
}

func (c *Client) toBookings(records []bookingRecord) ([]models.Booking, error) {
	out := make([]models.Booking, 0, len(records))
	for i := range records {
		b, err := records[i].toModel(c.loc)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// bookingFromBody decodes a mutation response. Some deployments answer with
// an empty body or a bare acknowledgement, so missing times fall back to
// what was sent.
func (c *Client) bookingFromBody(op string, body []byte, startsAt, endsAt string) (*models.Booking, error) {
	var rec bookingRecord
	if len(bytes.TrimSpace(body)) > 0 {
		if err := decodeData(body, &rec); err != nil {
			return nil, &UpstreamError{Op: op, Message: "invalid response body", Err: err}
		}
	}
	if rec.StartsAt == "" {
		rec.StartsAt = startsAt
	}
	if rec.EndsAt == "" {
		rec.EndsAt = endsAt
	}
	b, err := rec.toModel(c.loc)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, cachePrefix+key).Result()
	if err != nil {
		metrics.IncCache("miss")
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		metrics.IncCache("miss")
		return false
	}
	metrics.IncCache("hit")
	return true
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, cachePrefix+key, data, c.cacheTTL).Err()
}

func (c *Client) doGet(ctx context.Context, op, endpoint string, out any) error {
	body, err := c.send(ctx, op, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	if err := decodeData(body, out); err != nil {
		return &UpstreamError{Op: op, Message: "invalid response body", Err: err}
	}
	return nil
}

// send performs one request and returns the body of a 2xx response.
func (c *Client) send(ctx context.Context, op, method, endpoint string, payload any) ([]byte, error) {
	var reader io.Reader = http.NoBody
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &UpstreamError{Op: op, Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", op, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	c.addHeaders(req)

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ObserveUpstream(op, "error", time.Since(started))
		return nil, &UpstreamError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	metrics.ObserveUpstream(op, strconv.Itoa(resp.StatusCode), time.Since(started))
	if err != nil {
		return nil, &UpstreamError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode >= 300 {
		return nil, &UpstreamError{Op: op, StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}
	return body, nil
}

func (c *Client) addHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
}
