package shared

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNetworkConfig(t *testing.T) {
	t.Run("missing file yields defaults", func(t *testing.T) {
		cfg, err := LoadNetworkConfig(filepath.Join(t.TempDir(), "network.yaml"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Mode != ProxyDirect {
			t.Errorf("expected DIRECT, got %s", cfg.Mode)
		}
		if !cfg.Cert.Verify {
			t.Error("expected certificate verification on by default")
		}
		if cfg.Retries.Total != 3 || cfg.Retries.BackoffFactor != 0.5 {
			t.Errorf("unexpected retry defaults %+v", cfg.Retries)
		}
	})

	t.Run("static proxy with no_proxy", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "network.yaml")
		data := `mode: static
proxies:
  http: http://proxy.local:8080
  https: http://secure-proxy.local:8443
  no_proxy: localhost, .internal.example
timeouts:
  connect: 5
  read: 60
`
		if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
			t.Fatalf("failed to write network config: %v", err)
		}

		cfg, err := LoadNetworkConfig(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Mode != ProxyStatic {
			t.Errorf("expected mode to be upper-cased, got %s", cfg.Mode)
		}
		if cfg.ReadTimeout() != 60*time.Second {
			t.Errorf("expected 60s read timeout, got %s", cfg.ReadTimeout())
		}
		if !cfg.Cert.Verify {
			t.Error("verify should keep its default when omitted")
		}

		proxy, err := cfg.ProxyFunc()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		tt := []struct {
			url  string
			want string
		}{
			{"https://rde-api.nims.go.jp/datasets", "http://secure-proxy.local:8443"},
			{"http://example.com/", "http://proxy.local:8080"},
			{"http://localhost:3070/health", ""},
			{"https://api.internal.example/x", ""},
		}
		for _, tc := range tt {
			req, _ := http.NewRequest(http.MethodGet, tc.url, nil)
			got, err := proxy(req)
			if err != nil {
				t.Fatalf("proxy(%s) error: %v", tc.url, err)
			}
			gotStr := ""
			if got != nil {
				gotStr = got.String()
			}
			if gotStr != tc.want {
				t.Errorf("proxy(%s) = %q, want %q", tc.url, gotStr, tc.want)
			}
		}
	})

	t.Run("unknown mode", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "network.yaml")
		if err := os.WriteFile(path, []byte("mode: PAC\n"), 0o644); err != nil {
			t.Fatalf("failed to write network config: %v", err)
		}
		if _, err := LoadNetworkConfig(path); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("Backoff and retry statuses", func(t *testing.T) {
		cfg := DefaultNetworkConfig()
		if got := cfg.Backoff(1); got != 500*time.Millisecond {
			t.Errorf("Backoff(1) = %s", got)
		}
		if got := cfg.Backoff(3); got != 2*time.Second {
			t.Errorf("Backoff(3) = %s", got)
		}
		if !cfg.ShouldRetryStatus(503) || cfg.ShouldRetryStatus(404) {
			t.Error("unexpected retry status classification")
		}
	})

	t.Run("HTTPClient bounds headers not bodies", func(t *testing.T) {
		cfg := DefaultNetworkConfig()
		hc, err := cfg.HTTPClient()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if hc.Timeout != 0 {
			t.Errorf("expected no overall client timeout, got %s", hc.Timeout)
		}
		tr, ok := hc.Transport.(*http.Transport)
		if !ok {
			t.Fatalf("unexpected transport %T", hc.Transport)
		}
		if tr.ResponseHeaderTimeout != 30*time.Second {
			t.Errorf("expected 30s header timeout, got %s", tr.ResponseHeaderTimeout)
		}
	})

	t.Run("Save round trip", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "network.yaml")
		cfg := DefaultNetworkConfig()
		cfg.Mode = ProxySystem
		if err := cfg.Save(path); err != nil {
			t.Fatalf("failed to save: %v", err)
		}
		loaded, err := LoadNetworkConfig(path)
		if err != nil {
			t.Fatalf("failed to load: %v", err)
		}
		if loaded.Mode != ProxySystem {
			t.Errorf("expected SYSTEM, got %s", loaded.Mode)
		}
	})
}

func TestLoadDotenv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("RDEX_TEST_KEY=from-file\nRDEX_TEST_SET=from-file\n"), 0o644); err != nil {
		t.Fatalf("failed to write .env: %v", err)
	}
	t.Setenv("RDEX_TEST_SET", "from-env")
	t.Setenv("RDEX_TEST_KEY", "")
	os.Unsetenv("RDEX_TEST_KEY")

	if err := LoadDotenv(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := os.Getenv("RDEX_TEST_KEY"); got != "from-file" {
		t.Errorf("expected from-file, got %q", got)
	}
	if got := os.Getenv("RDEX_TEST_SET"); got != "from-env" {
		t.Errorf("existing variable should win, got %q", got)
	}
	if err := LoadDotenv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("missing file should not be an error: %v", err)
	}
	if got := EnvOr("RDEX_TEST_UNSET_VALUE", "fallback"); got != "fallback" {
		t.Errorf("EnvOr fallback = %q", got)
	}
}

func TestMaskSecret(t *testing.T) {
	if got := MaskSecret("abcdefghijkl", 4); got != "abcd..." {
		t.Errorf("MaskSecret = %q", got)
	}
	if got := MaskSecret("abc", 4); got != "***" {
		t.Errorf("MaskSecret short = %q", got)
	}
}
