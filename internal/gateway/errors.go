package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// ErrUnavailable wraps transport failures: the backend could not be
// reached or did not answer in time.
var ErrUnavailable = errors.New("backend unavailable")

// FallbackMessage is shown when the backend gives no message of its own.
const FallbackMessage = "The operation could not be completed. Please try again."

// APIError is a non-2xx backend response. Message is the backend's own
// text, kept verbatim.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) NotFound() bool { return e.StatusCode == http.StatusNotFound }

// Conflict reports a locked or terminal entity.
func (e *APIError) Conflict() bool { return e.StatusCode == http.StatusConflict }

func newAPIError(status int, body []byte) *APIError {
	return &APIError{StatusCode: status, Message: extractMessage(body)}
}

// extractMessage reads {message}, {error} or {errors:{field:[...]}} bodies.
func extractMessage(body []byte) string {
	var payload struct {
		Message string          `json:"message"`
		Error   json.RawMessage `json:"error"`
		Errors  map[string]any  `json:"errors"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return strings.TrimSpace(string(body))
	}
	if payload.Message != "" {
		return payload.Message
	}
	if len(payload.Error) > 0 {
		var s string
		if json.Unmarshal(payload.Error, &s) == nil && s != "" {
			return s
		}
		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(payload.Error, &nested) == nil && nested.Message != "" {
			return nested.Message
		}
	}
	if len(payload.Errors) > 0 {
		fields := make([]string, 0, len(payload.Errors))
		for f := range payload.Errors {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		parts := make([]string, 0, len(fields))
		for _, f := range fields {
			parts = append(parts, fmt.Sprintf("%s: %v", f, flatten(payload.Errors[f])))
		}
		return strings.Join(parts, "; ")
	}
	return ""
}

func flatten(v any) string {
	switch x := v.(type) {
	case []any:
		parts := make([]string, 0, len(x))
		for _, p := range x {
			parts = append(parts, fmt.Sprint(p))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(x)
	}
}

// UserMessage is the text shown to the user for a backend failure.
func UserMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return FallbackMessage
}
