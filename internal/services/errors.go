package services

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/desertthunder/rdex/internal/models"
	"github.com/desertthunder/rdex/internal/shared"
	"github.com/go-resty/resty/v2"
)

const maxErrorBody = 512

// APIError describes a non-2xx response. Errors holds the JSON:API errors array when the body
// carried one.
type APIError struct {
	Method string
	URL    string
	Status int
	Errors []models.ErrorObject
	Body   string
}

func (e *APIError) Error() string {
	detail := e.Body
	if len(e.Errors) > 0 {
		msgs := make([]string, 0, len(e.Errors))
		for _, obj := range e.Errors {
			msgs = append(msgs, obj.String())
		}
		detail = strings.Join(msgs, "; ")
	}
	if detail == "" {
		return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.URL, e.Status)
	}
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.URL, e.Status, detail)
}

// newAPIError joins the [APIError] with the sentinels matching its status so callers can use
// errors.Is and errors.As.
//
// Writes answered with 404 are reported as [shared.ErrForbidden] as well: the backend hides
// resources the account cannot modify.
func newAPIError(method string, resp *resty.Response) error {
	return newAPIErrorBody(method, resp, resp.Body())
}

// newAPIErrorBody is [newAPIError] for responses read outside resty, such as streamed downloads.
func newAPIErrorBody(method string, resp *resty.Response, raw []byte) error {
	apiErr := &APIError{
		Method: method,
		URL:    resp.Request.URL,
		Status: resp.StatusCode(),
	}
	if resp.Request.RawRequest != nil {
		apiErr.URL = resp.Request.RawRequest.URL.String()
	}
	if doc, err := models.ParseDocument(raw); err == nil && len(doc.Errors) > 0 {
		apiErr.Errors = doc.Errors
	} else {
		body := strings.TrimSpace(string(raw))
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody] + "..."
		}
		apiErr.Body = body
	}

	errs := []error{shared.ErrAPIRequest}
	switch apiErr.Status {
	case http.StatusUnauthorized:
		errs = append(errs, shared.ErrTokenExpired)
	case http.StatusForbidden:
		errs = append(errs, shared.ErrForbidden)
	case http.StatusNotFound:
		errs = append(errs, shared.ErrNotFound)
		if method != http.MethodGet {
			errs = append(errs, shared.ErrForbidden)
		}
	case http.StatusServiceUnavailable:
		errs = append(errs, shared.ErrServiceUnavailable)
	}
	return errors.Join(append(errs, apiErr)...)
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}
