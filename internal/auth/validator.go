package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/desertthunder/rdex/internal/shared"
	"github.com/go-resty/resty/v2"
)

const (
	DefaultValidateURL = "https://rde-user-api.nims.go.jp/users/self"
	DefaultSiteOrigin  = "https://rde.nims.go.jp"

	validateTimeout = 10 * time.Second
)

// Validator checks a bearer token against the users/self endpoint.
type Validator struct {
	client *resty.Client
	url    string
	origin string
}

// NewValidator returns a Validator. A nil httpClient uses a default client. The client is copied so
// the 10s validation timeout does not leak into other callers.
func NewValidator(httpClient *http.Client, validateURL, origin string) *Validator {
	var hc http.Client
	if httpClient != nil {
		hc = *httpClient
	}
	hc.Timeout = validateTimeout

	if validateURL == "" {
		validateURL = DefaultValidateURL
	}
	if origin == "" {
		origin = DefaultSiteOrigin
	}
	origin = strings.TrimRight(origin, "/")

	client := resty.NewWithClient(&hc).
		SetHeader("Accept", "application/vnd.api+json").
		SetHeader("Origin", origin).
		SetHeader("Referer", origin+"/")
	return &Validator{client: client, url: validateURL, origin: origin}
}

// Validate reports whether token is accepted by the API.
//
// Only HTTP 200 is valid. 401 returns false with [shared.ErrTokenExpired]; any other status or a
// transport failure returns false with [shared.ErrAuthFailed]. There is no retry.
func (v *Validator) Validate(ctx context.Context, token string) (bool, error) {
	if strings.TrimSpace(token) == "" {
		return false, fmt.Errorf("%w: empty token", shared.ErrNotAuthenticated)
	}

	resp, err := v.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		Get(v.url)
	if err != nil {
		return false, fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		return true, nil
	case http.StatusUnauthorized:
		return false, shared.ErrTokenExpired
	default:
		return false, fmt.Errorf("%w: users/self returned HTTP %d", shared.ErrAuthFailed, resp.StatusCode())
	}
}
