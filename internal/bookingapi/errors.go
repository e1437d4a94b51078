package bookingapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// UpstreamError reports a failed call to the booking API: transport
// failure, timeout or a non-2xx response.
type UpstreamError struct {
	Op         string
	StatusCode int // 0 when no response was received
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("booking api %s: http %d: %s", e.Op, e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("booking api %s: http %d", e.Op, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("booking api %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("booking api %s failed", e.Op)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// IsUpstream reports whether err came from the booking API.
func IsUpstream(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}

// IsNotFound reports whether the booking API answered 404.
func IsNotFound(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.StatusCode == 404
}

const maxErrorText = 512

// errorMessage prefers a JSON "message" (or "error") field and falls back to
// the raw body text.
func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorText {
		text = text[:maxErrorText]
	}
	return text
}
