package evalapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoData marks an empty result that persisted through fallback widening
// and bounded re-fetches. It is a display state, not a transport failure.
var ErrNoData = errors.New("evalapi: no windows materialised for range")

// HTTPError is a non-2xx response from the evaluation service.
type HTTPError struct {
	Status int
	Detail string
}

func (e *HTTPError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("evaluation api error (%d): %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("evaluation api error (%d)", e.Status)
}

type errorResponse struct {
	ErrorType   string `json:"errorType"`
	Description string `json:"description"`
	Message     string `json:"message"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		switch {
		case apiErr.Description != "":
			return &HTTPError{Status: status, Detail: apiErr.Description}
		case apiErr.Message != "":
			return &HTTPError{Status: status, Detail: apiErr.Message}
		case apiErr.ErrorType != "":
			return &HTTPError{Status: status, Detail: apiErr.ErrorType}
		}
	}
	return &HTTPError{Status: status, Detail: strings.TrimSpace(string(payload))}
}
