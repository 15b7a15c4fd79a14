package auth

import (
	"net/url"
	"strings"
)

// B2C application client IDs per site host.
const (
	ClientIDRDE      = "6ff53d1d-7aee-445e-a01a-2b4c82ea84e1"
	ClientIDMaterial = "329b7bb7-02c9-4437-a5cf-9742d238d3bf"
)

// HostForURL picks the token host for an API URL. Material hosts (rde-material, rde-material-api)
// use the material token; every other RDE host, and anything unrecognised, uses the primary token.
func HostForURL(rawURL string) string {
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = u.Hostname()
	}
	if strings.Contains(strings.ToLower(host), "rde-material") {
		return HostMaterial
	}
	return HostRDE
}

// ClientIDFor returns the B2C client ID for a site host.
func ClientIDFor(host string) string {
	if host == HostMaterial {
		return ClientIDMaterial
	}
	return ClientIDRDE
}

// IsKnownHost reports whether host is one rdex stores tokens for.
func IsKnownHost(host string) bool {
	for _, h := range Hosts {
		if h == host {
			return true
		}
	}
	return false
}
