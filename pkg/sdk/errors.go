package observatory

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors matching the server's error codes. Use errors.Is.
var (
	// ErrNotSubmittable marks a rejected direct query payload.
	ErrNotSubmittable = errors.New("direct query is not submittable")
	// ErrNoEndpoint marks an engine with no store endpoint configured.
	ErrNoEndpoint = errors.New("no document-store endpoint configured")
	// ErrNotFound marks a missing resource, e.g. no saved configuration.
	ErrNotFound = errors.New("not found")
)

// APIError is a non-2xx response decoded from the server's error body.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("observatory: %s (%d %s)", e.Message, e.Status, e.Code)
}

// Is maps well-known error codes onto the sentinel errors above.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotSubmittable:
		return e.Code == "not_submittable"
	case ErrNoEndpoint:
		return e.Code == "no_endpoint"
	case ErrNotFound:
		return e.Code == "not_found"
	}
	return false
}

func decodeAPIError(res *http.Response) error {
	apiErr := &APIError{Status: res.StatusCode, Code: "unknown", Message: res.Status}
	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err == nil && body.Code != "" {
		apiErr.Code = body.Code
		apiErr.Message = body.Message
	}
	return apiErr
}
