package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"bookingdesk/internal/identity"
	"bookingdesk/internal/models"
	"bookingdesk/internal/tracing"
)

const (
	RequestIDHeader = "X-Request-Id"
	APIKeyHeader    = "X-Api-Key"
	UserEmailHeader = "X-User-Email"
)

type ctxKey int

const (
	ctxKeyRequestID ctxKey = iota
	ctxKeyCustomer
)

type middleware func(http.Handler) http.Handler

func chain(h http.Handler, m ...middleware) http.Handler {
	// Apply in reverse so chain(h, a, b) becomes a(b(h)).
	for i := len(m) - 1; i >= 0; i-- {
		h = m[i](h)
	}
	return h
}

// RequestIDFromContext returns the id assigned by withRequestID.
func RequestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyRequestID).(string)
	return v
}

func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), ctxKeyRequestID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type statusCapturingResponseWriter struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (w *statusCapturingResponseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusCapturingResponseWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.bytes += int64(n)
	return n, err
}

func withAccessLog(logger *zerolog.Logger) middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusCapturingResponseWriter{ResponseWriter: w}

			next.ServeHTTP(sw, r)

			event := logger.Info()
			if sw.status >= http.StatusInternalServerError {
				event = logger.Warn()
			}
			event.
				Str("request_id", RequestIDFromContext(r.Context())).
				Str("trace_id", tracing.TraceID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", sw.status).
				Int64("bytes", sw.bytes).
				Dur("duration", time.Since(start)).
				Msg("http request")
		})
	}
}

func withAPIKey(key string) middleware {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(APIKeyHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				writeError(w, r, http.StatusUnauthorized, "invalid or missing API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func withBodyLimit(limitBytes int64) middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, limitBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// customerHandler is a handler that needs the signed-in customer.
type customerHandler func(w http.ResponseWriter, r *http.Request, customer models.Customer)

// withCustomer resolves X-User-Email into a customer.
func (s *HTTPServer) withCustomer(next customerHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		email := strings.ToLower(strings.TrimSpace(r.Header.Get(UserEmailHeader)))
		if email == "" {
			writeError(w, r, http.StatusUnauthorized, "missing "+UserEmailHeader+" header")
			return
		}

		customer := models.Customer{
			ID:    email,
			Email: email,
			Name:  models.DisplayNameFor("", email),
			Role:  identity.DefaultRole,
		}
		if s.customers != nil {
			found, err := s.customers.Lookup(r.Context(), email)
			switch {
			case errors.Is(err, identity.ErrUserNotFound):
				writeError(w, r, http.StatusUnauthorized, "unknown user")
				return
			case err != nil:
				s.logger.Error().Err(err).Str("email", email).Msg("identity lookup failed")
				writeError(w, r, http.StatusBadGateway, "identity provider unavailable")
				return
			}
			customer = *found
		}

		ctx := context.WithValue(r.Context(), ctxKeyCustomer, customer)
		next(w, r.WithContext(ctx), customer)
	})
}

// CustomerFromContext returns the customer resolved by withCustomer.
func CustomerFromContext(ctx context.Context) (models.Customer, bool) {
	c, ok := ctx.Value(ctxKeyCustomer).(models.Customer)
	return c, ok
}
