package shared

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Proxy modes accepted in network.yaml.
const (
	ProxyDirect = "DIRECT"
	ProxyStatic = "STATIC"
	ProxySystem = "SYSTEM"
)

// NetworkConfig mirrors network.yaml: proxy selection, certificate policy, timeouts and retry policy
// shared by every outbound HTTP client.
type NetworkConfig struct {
	Mode     string        `yaml:"mode"`
	Proxies  ProxyConfig   `yaml:"proxies"`
	Cert     CertConfig    `yaml:"cert"`
	Timeouts TimeoutConfig `yaml:"timeouts"`
	Retries  RetryConfig   `yaml:"retries"`
}

type ProxyConfig struct {
	HTTP    string `yaml:"http"`
	HTTPS   string `yaml:"https"`
	NoProxy string `yaml:"no_proxy"`
}

type CertConfig struct {
	Verify   bool   `yaml:"verify"`
	CABundle string `yaml:"ca_bundle"`
}

// TimeoutConfig values are seconds.
type TimeoutConfig struct {
	Connect int `yaml:"connect"`
	Read    int `yaml:"read"`
}

type RetryConfig struct {
	Total           int     `yaml:"total"`
	BackoffFactor   float64 `yaml:"backoff_factor"`
	StatusForcelist []int   `yaml:"status_forcelist"`
}

// DefaultNetworkConfig connects directly with certificate verification, 10s connect and 30s read
// timeouts and three retries on throttling and gateway errors.
func DefaultNetworkConfig() *NetworkConfig {
	return &NetworkConfig{
		Mode:     ProxyDirect,
		Cert:     CertConfig{Verify: true},
		Timeouts: TimeoutConfig{Connect: 10, Read: 30},
		Retries: RetryConfig{
			Total:           3,
			BackoffFactor:   0.5,
			StatusForcelist: []int{429, 500, 502, 503, 504},
		},
	}
}

// LoadNetworkConfig reads network.yaml. A missing file yields [DefaultNetworkConfig].
func LoadNetworkConfig(path string) (*NetworkConfig, error) {
	cfg := DefaultNetworkConfig()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read network config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse network config: %v", ErrInvalidConfig, err)
	}
	cfg.Mode = strings.ToUpper(strings.TrimSpace(cfg.Mode))
	if cfg.Mode == "" {
		cfg.Mode = ProxyDirect
	}

	switch cfg.Mode {
	case ProxyDirect, ProxyStatic, ProxySystem:
	default:
		return nil, fmt.Errorf("%w: unknown proxy mode %q", ErrInvalidConfig, cfg.Mode)
	}
	return cfg, nil
}

// Save writes the config back to path as YAML.
func (c *NetworkConfig) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode network config: %w", err)
	}
	return WriteFileAtomic(path, data, 0o644)
}

// ConnectTimeout returns the dial timeout.
func (c *NetworkConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.Timeouts.Connect) * time.Second
}

// ReadTimeout returns how long to wait for response headers. API clients also derive their
// per-call bound from it.
func (c *NetworkConfig) ReadTimeout() time.Duration {
	return time.Duration(c.Timeouts.Read) * time.Second
}

// Backoff returns the wait before retry attempt n (1-based): factor * 2^(n-1) seconds.
func (c *NetworkConfig) Backoff(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	secs := c.Retries.BackoffFactor * math.Pow(2, float64(n-1))
	return time.Duration(secs * float64(time.Second))
}

// ShouldRetryStatus reports whether an HTTP status is in the retry forcelist.
func (c *NetworkConfig) ShouldRetryStatus(code int) bool {
	return slices.Contains(c.Retries.StatusForcelist, code)
}

// ProxyFunc returns the proxy selector for the configured mode.
func (c *NetworkConfig) ProxyFunc() (func(*http.Request) (*url.URL, error), error) {
	switch c.Mode {
	case ProxySystem:
		return http.ProxyFromEnvironment, nil
	case ProxyStatic:
		var httpProxy, httpsProxy *url.URL
		var err error
		if c.Proxies.HTTP != "" {
			if httpProxy, err = url.Parse(c.Proxies.HTTP); err != nil {
				return nil, fmt.Errorf("%w: bad http proxy: %v", ErrInvalidConfig, err)
			}
		}
		if c.Proxies.HTTPS != "" {
			if httpsProxy, err = url.Parse(c.Proxies.HTTPS); err != nil {
				return nil, fmt.Errorf("%w: bad https proxy: %v", ErrInvalidConfig, err)
			}
		}
		noProxy := splitNoProxy(c.Proxies.NoProxy)
		return func(r *http.Request) (*url.URL, error) {
			if bypassProxy(r.URL.Hostname(), noProxy) {
				return nil, nil
			}
			if r.URL.Scheme == "https" && httpsProxy != nil {
				return httpsProxy, nil
			}
			return httpProxy, nil
		}, nil
	default:
		return nil, nil
	}
}

// TLSConfig builds the client TLS settings, appending ca_bundle to the system roots when set.
func (c *NetworkConfig) TLSConfig() (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if !c.Cert.Verify {
		cfg.InsecureSkipVerify = true
		return cfg, nil
	}
	if c.Cert.CABundle == "" {
		return cfg, nil
	}

	pem, err := os.ReadFile(c.Cert.CABundle)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA bundle: %w", err)
	}
	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("%w: no certificates in %s", ErrInvalidConfig, c.Cert.CABundle)
	}
	cfg.RootCAs = pool
	return cfg, nil
}

// Transport builds an [http.Transport] honoring proxy, TLS and connect timeout settings.
func (c *NetworkConfig) Transport() (*http.Transport, error) {
	proxy, err := c.ProxyFunc()
	if err != nil {
		return nil, err
	}
	tlsCfg, err := c.TLSConfig()
	if err != nil {
		return nil, err
	}
	dialer := &net.Dialer{Timeout: c.ConnectTimeout(), KeepAlive: 30 * time.Second}
	return &http.Transport{
		Proxy:                 proxy,
		DialContext:           dialer.DialContext,
		TLSClientConfig:       tlsCfg,
		TLSHandshakeTimeout:   c.ConnectTimeout(),
		// Response bodies are not bounded here so long downloads can finish.
		ResponseHeaderTimeout: c.ReadTimeout(),
		MaxIdleConns:          20,
		IdleConnTimeout:       90 * time.Second,
	}, nil
}

// HTTPClient returns an [http.Client] built from [NetworkConfig.Transport]. It sets no overall
// timeout; callers bound JSON calls with a context deadline.
func (c *NetworkConfig) HTTPClient() (*http.Client, error) {
	tr, err := c.Transport()
	if err != nil {
		return nil, err
	}
	return &http.Client{Transport: tr}, nil
}

func splitNoProxy(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.ToLower(p))
		}
	}
	return out
}

func bypassProxy(host string, noProxy []string) bool {
	host = strings.ToLower(host)
	for _, p := range noProxy {
		if p == "*" || host == strings.TrimPrefix(p, ".") || strings.HasSuffix(host, "."+strings.TrimPrefix(p, ".")) {
			return true
		}
	}
	return false
}
