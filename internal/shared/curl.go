// Utilities for importing credentials from a cURL command copied out of browser dev tools.
package shared

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
)

var (
	curlHeaderRe = regexp.MustCompile(`(?:-H|--header)\s+'([^']+)'|(?:-H|--header)\s+"([^"]+)"`)
	curlCookieRe = regexp.MustCompile(`(?:-b|--cookie)\s+'([^']+)'|(?:-b|--cookie)\s+"([^"]+)"`)
	curlDataRe   = regexp.MustCompile(`(?:--data-raw|--data-binary|--data|-d)\s+'[^']*'|(?:--data-raw|--data-binary|--data|-d)\s+"[^"]*"`)
	curlURLRe    = regexp.MustCompile(`'(https?://[^']+)'|"(https?://[^"]+)"|(https?://\S+)`)
)

// CurlRequest is the subset of a cURL command rdex cares about: target, headers and cookies.
type CurlRequest struct {
	URL     string
	Headers map[string]string
	Cookie  string
}

// ParseCurlFile reads a file containing a cURL command and parses it.
func ParseCurlFile(path string) (*CurlRequest, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read curl file: %w", err)
	}

	return ParseCurlCommand(string(content))
}

// ParseCurlCommand extracts the URL, headers and cookie string from a cURL command.
//
// Cookie headers are reported through Cookie, with -b taking precedence over -H 'cookie: ...'.
func ParseCurlCommand(cmd string) (*CurlRequest, error) {
	cmd = strings.ReplaceAll(cmd, "\\\n", " ")
	cmd = strings.ReplaceAll(cmd, "\\", "")

	req := &CurlRequest{Headers: make(map[string]string)}
	var headerCookie string

	for _, m := range curlHeaderRe.FindAllStringSubmatch(cmd, -1) {
		line := firstNonEmpty(m[1:]...)
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if strings.EqualFold(key, "cookie") {
			if headerCookie == "" {
				headerCookie = value
			}
			continue
		}
		req.Headers[key] = value
	}

	if m := curlCookieRe.FindStringSubmatch(cmd); m != nil {
		req.Cookie = firstNonEmpty(m[1:]...)
	}
	if req.Cookie == "" {
		req.Cookie = headerCookie
	}

	rest := curlHeaderRe.ReplaceAllString(cmd, "")
	rest = curlCookieRe.ReplaceAllString(rest, "")
	rest = curlDataRe.ReplaceAllString(rest, "")
	if m := curlURLRe.FindStringSubmatch(rest); m != nil {
		req.URL = firstNonEmpty(m[1:]...)
	}

	if len(req.Headers) == 0 && req.Cookie == "" {
		return nil, fmt.Errorf("%w: no headers found in curl command", ErrInvalidInput)
	}

	return req, nil
}

// Header looks a header up case-insensitively.
func (c *CurlRequest) Header(name string) string {
	for k, v := range c.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// BearerToken returns the token from the Authorization header.
func (c *CurlRequest) BearerToken() (string, error) {
	auth := c.Header("Authorization")
	scheme, token, ok := strings.Cut(auth, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
		return "", fmt.Errorf("%w: no bearer token in curl command", ErrMissingCredentials)
	}
	return strings.TrimSpace(token), nil
}

// Host returns the hostname of the request URL, or "" when it has none.
func (c *CurlRequest) Host() string {
	u, err := url.Parse(c.URL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
