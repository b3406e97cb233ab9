package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound is matched by errors.Is for any 404 returned by Graph.
	ErrNotFound = errors.New("directory object not found")

	ErrMissingAssertion   = errors.New("on-behalf-of credentials require a user assertion")
	ErrMissingAccessToken = errors.New("delegated credentials require an access token")
)

// APIError represents a non-2xx answer from the Graph API
type APIError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// NewAPIError creates a new API error
func NewAPIError(statusCode int, message string, err error) *APIError {
	return &APIError{
		StatusCode: statusCode,
		Message:    message,
		Err:        err,
	}
}

// errorBody is the error payload Graph returns on failure.
type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// apiErrorFromBody builds an *APIError for status, using the Graph error
// payload in body when it can be decoded.
func apiErrorFromBody(status int, body []byte) *APIError {
	msg := fmt.Sprintf("graph returned %d", status)
	var eb errorBody
	if json.Unmarshal(body, &eb) == nil && eb.Error.Code != "" {
		msg = fmt.Sprintf("graph returned %d (%s): %s", status, eb.Error.Code, eb.Error.Message)
	}

	var wrapped error
	if status == http.StatusNotFound {
		wrapped = ErrNotFound
	}
	return NewAPIError(status, msg, wrapped)
}
