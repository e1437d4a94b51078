// Package identity resolves the signed-in user against the identity
// provider's management API.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/clientcredentials"

	"bookingdesk/internal/models"
)

// DefaultRole is assigned when the provider carries no role for a user.
const DefaultRole = "User"

// ErrUserNotFound is returned when no provider user has the email.
var ErrUserNotFound = errors.New("identity: user not found")

// Config holds the provider credentials.
type Config struct {
	Domain       string // e.g. tenant.us.auth0.com
	ClientID     string
	ClientSecret string
	Audience     string // management API base, ends with "/"
	Scopes       []string
	CacheTTL     time.Duration
	Timeout      time.Duration
}

type cachedCustomer struct {
	customer models.Customer
	expires  time.Time
}

// Client looks users up by email.
type Client struct {
	httpClient *http.Client
	audience   string
	ttl        time.Duration
	logger     zerolog.Logger

	mu    sync.Mutex
	cache map[string]cachedCustomer
}

// NewClient builds a client that authenticates with the client-credentials grant.
func NewClient(ctx context.Context, cfg Config, logger *zerolog.Logger) *Client {
	cc := clientcredentials.Config{
		ClientID:       cfg.ClientID,
		ClientSecret:   cfg.ClientSecret,
		TokenURL:       tokenURL(cfg.Domain),
		Scopes:         cfg.Scopes,
		EndpointParams: url.Values{"audience": {cfg.Audience}},
	}
	httpClient := cc.Client(ctx)
	httpClient.Timeout = cfg.Timeout
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = 10 * time.Second
	}

	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	audience := cfg.Audience
	if !strings.HasSuffix(audience, "/") {
		audience += "/"
	}
	return &Client{
		httpClient: httpClient,
		audience:   audience,
		ttl:        ttl,
		logger:     logger.With().Str("component", "identity").Logger(),
		cache:      make(map[string]cachedCustomer),
	}
}

func tokenURL(domain string) string {
	if strings.HasPrefix(domain, "http://") || strings.HasPrefix(domain, "https://") {
		return strings.TrimRight(domain, "/") + "/oauth/token"
	}
	return "https://" + domain + "/oauth/token"
}

type providerUser struct {
	Email        string `json:"email"`
	Username     string `json:"username"`
	UserMetadata struct {
		Username string `json:"username"`
	} `json:"user_metadata"`
	AppMetadata struct {
		Role string `json:"role"`
	} `json:"app_metadata"`
}

func (u providerUser) toCustomer() models.Customer {
	name := u.UserMetadata.Username
	if name == "" {
		name = u.Username
	}
	role := u.AppMetadata.Role
	if role == "" {
		role = DefaultRole
	}
	return models.Customer{
		ID:    u.Email,
		Email: u.Email,
		Name:  models.DisplayNameFor(name, u.Email),
		Role:  role,
	}
}

// Lookup returns the customer for email. Results are cached for the TTL.
func (c *Client) Lookup(ctx context.Context, email string) (*models.Customer, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, ErrUserNotFound
	}

	c.mu.Lock()
	if hit, ok := c.cache[email]; ok && time.Now().Before(hit.expires) {
		c.mu.Unlock()
		cust := hit.customer
		return &cust, nil
	}
	c.mu.Unlock()

	users, err := c.listUsers(ctx, email)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if strings.EqualFold(u.Email, email) {
			cust := u.toCustomer()
			c.mu.Lock()
			c.cache[email] = cachedCustomer{customer: cust, expires: time.Now().Add(c.ttl)}
			c.mu.Unlock()
			return &cust, nil
		}
	}
	c.logger.Debug().Str("email", email).Msg("user not found at identity provider")
	return nil, ErrUserNotFound
}

func (c *Client) listUsers(ctx context.Context, email string) ([]providerUser, error) {
	q := url.Values{}
	q.Set("q", fmt.Sprintf("email:%q", email))
	q.Set("search_engine", "v3")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.audience+"users?"+q.Encode(), http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity users request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("identity users request: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var users []providerUser
	if err := json.NewDecoder(resp.Body).Decode(&users); err != nil {
		return nil, fmt.Errorf("decode identity users: %w", err)
	}
	return users, nil
}
