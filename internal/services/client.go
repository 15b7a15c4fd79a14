package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/rdex/internal/models"
	"github.com/desertthunder/rdex/internal/shared"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

const (
	DefaultRDEAPI        = "https://rde-api.nims.go.jp"
	DefaultUserAPI       = "https://rde-user-api.nims.go.jp"
	DefaultMaterialAPI   = "https://rde-material-api.nims.go.jp"
	DefaultInstrumentAPI = "https://rde-instrument-api.nims.go.jp"
	DefaultEntryAPI      = "https://rde-entry-api-arim.nims.go.jp"
	DefaultSiteOrigin    = "https://rde.nims.go.jp"
	DefaultEntryOrigin   = "https://rde-entry-arim.nims.go.jp"

	groupWriteTimeout = 15 * time.Second
	entryTimeout      = 60 * time.Second
)

// TokenSource picks the bearer token for a request URL. [auth.Manager] satisfies it.
type TokenSource interface {
	TokenForURL(rawURL string) (string, error)
}

// Recorder receives one record per completed request attempt.
type Recorder interface {
	Create(call *models.APICall) error
}

// Endpoints holds the base URL of each RDE API host.
type Endpoints struct {
	RDE        string
	User       string
	Material   string
	Instrument string
	Entry      string
}

// DefaultEndpoints returns the production hosts.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		RDE:        DefaultRDEAPI,
		User:       DefaultUserAPI,
		Material:   DefaultMaterialAPI,
		Instrument: DefaultInstrumentAPI,
		Entry:      DefaultEntryAPI,
	}
}

// EndpointsFromConfig overlays configured base URLs onto the defaults.
func EndpointsFromConfig(cfg shared.APIConfig) Endpoints {
	e := DefaultEndpoints()
	set := func(dst *string, v string) {
		if v = strings.TrimRight(strings.TrimSpace(v), "/"); v != "" {
			*dst = v
		}
	}
	set(&e.RDE, cfg.RDEAPI)
	set(&e.User, cfg.UserAPI)
	set(&e.Material, cfg.MaterialAPI)
	set(&e.Instrument, cfg.InstrumentAPI)
	set(&e.Entry, cfg.EntryAPI)
	return e
}

// Options configures a [Client].
type Options struct {
	Endpoints Endpoints
	Origin    string
	// HTTPClient overrides the client built from Network.
	HTTPClient *http.Client
	Network    *shared.NetworkConfig
	Recorder   Recorder
	Logger     *log.Logger
}

// Client calls the RDE JSON:API backend. Each request carries the bearer token chosen for its host.
type Client struct {
	http      *resty.Client
	download  *resty.Client
	timeout   time.Duration
	endpoints Endpoints
	tokens    TokenSource
	recorder  Recorder
	logger    *log.Logger
	origin    string
}

// Response is a successful API response. Body holds the raw bytes so snapshots keep every field.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Document decodes the body as a JSON:API document.
func (r *Response) Document() (*models.Document, error) {
	return models.ParseDocument(r.Body)
}

// NewClient returns a Client. Proxy, TLS, timeouts and retry policy come from opts.Network, or
// [shared.DefaultNetworkConfig] when nil.
func NewClient(tokens TokenSource, opts Options) (*Client, error) {
	network := opts.Network
	if network == nil {
		network = shared.DefaultNetworkConfig()
	}

	hc := opts.HTTPClient
	if hc == nil {
		var err error
		if hc, err = network.HTTPClient(); err != nil {
			return nil, err
		}
	} else {
		copied := *hc
		hc = &copied
	}

	if opts.Endpoints == (Endpoints{}) {
		opts.Endpoints = DefaultEndpoints()
	}
	if opts.Origin == "" {
		opts.Origin = DefaultSiteOrigin
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	c := &Client{
		endpoints: opts.Endpoints,
		tokens:    tokens,
		recorder:  opts.Recorder,
		logger:    opts.Logger.WithPrefix("api"),
		origin:    strings.TrimRight(opts.Origin, "/"),
	}

	// The read timeout bounds each whole JSON call, retries included. Downloads have no overall timeout.
	if read := network.ReadTimeout(); read > 0 {
		c.timeout = read * time.Duration(network.Retries.Total+1)
	}
	dl := *hc
	dl.Timeout = 0

	c.http = c.newResty(hc, network)
	c.download = c.newResty(&dl, network)
	return c, nil
}

func (c *Client) newResty(hc *http.Client, network *shared.NetworkConfig) *resty.Client {
	rc := resty.NewWithClient(hc).
		SetHeader("Accept", models.MediaType).
		SetHeader("Origin", c.origin).
		SetHeader("Referer", c.origin+"/").
		SetRetryCount(network.Retries.Total).
		SetRetryWaitTime(network.Backoff(1)).
		SetRetryMaxWaitTime(network.Backoff(max(network.Retries.Total, 1))).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if r == nil || r.Request == nil || !retrySafe(r.Request.Method) {
				return false
			}
			if err != nil {
				return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
			}
			return network.ShouldRetryStatus(r.StatusCode())
		})
	rc.OnAfterResponse(c.recordResponse)
	rc.OnError(c.recordError)
	return rc
}

// retrySafe reports whether method may be re-sent. Writes are never retried.
func retrySafe(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// Endpoints returns the configured base URLs.
func (c *Client) Endpoints() Endpoints { return c.endpoints }

// request prepares a request for rawURL with the host's bearer token.
func (c *Client) request(ctx context.Context, rawURL string) (*resty.Request, error) {
	return c.requestOn(ctx, c.http, rawURL)
}

func (c *Client) requestOn(ctx context.Context, rc *resty.Client, rawURL string) (*resty.Request, error) {
	token, err := c.tokens.TokenForURL(rawURL)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, fmt.Errorf("%w: no bearer token for %s", shared.ErrNotAuthenticated, rawURL)
	}
	return rc.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("X-Request-Id", uuid.NewString()), nil
}

// call performs method against rawURL. timeout bounds the whole call including retries; zero uses
// the client default derived from the read timeout. Non-2xx responses become an [APIError].
func (c *Client) call(ctx context.Context, method, rawURL string, query map[string]string, body any, timeout time.Duration, mods ...func(*resty.Request)) (*Response, error) {
	if timeout <= 0 {
		timeout = c.timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := c.request(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if len(query) > 0 {
		req.SetQueryParams(query)
	}
	if body != nil {
		req.SetHeader("Content-Type", models.MediaType).SetBody(body)
	}
	for _, mod := range mods {
		mod(req)
	}

	resp, err := req.Execute(method, rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", shared.ErrAPIRequest, method, rawURL, err)
	}
	if !resp.IsSuccess() {
		return nil, newAPIError(method, resp)
	}

	c.logger.Debug("request complete", "method", method, "url", rawURL, "status", resp.StatusCode(), "elapsed", resp.Time())
	return &Response{Status: resp.StatusCode(), Header: resp.Header(), Body: resp.Body()}, nil
}

func (c *Client) get(ctx context.Context, rawURL string, query map[string]string) (*Response, error) {
	return c.call(ctx, http.MethodGet, rawURL, query, nil, 0)
}

// Do sends an arbitrary request. Used by the raw api commands.
func (c *Client) Do(ctx context.Context, method, rawURL string, body []byte) (*Response, error) {
	var payload any
	if len(body) > 0 {
		payload = body
	}
	return c.call(ctx, strings.ToUpper(method), rawURL, nil, payload, 0)
}

func (c *Client) recordResponse(_ *resty.Client, r *resty.Response) error {
	if c.recorder == nil {
		return nil
	}
	c.record(r.Request, r, nil)
	return nil
}

func (c *Client) recordError(req *resty.Request, err error) {
	if c.recorder == nil {
		return
	}
	var respErr *resty.ResponseError
	if errors.As(err, &respErr) {
		return
	}
	c.record(req, nil, err)
}

func (c *Client) record(req *resty.Request, r *resty.Response, err error) {
	call := &models.APICall{
		CallID:  uuid.NewString(),
		Method:  req.Method,
		URL:     req.URL,
		Created: time.Now().UTC(),
	}
	if req.RawRequest != nil && req.RawRequest.URL != nil {
		call.URL = req.RawRequest.URL.String()
		call.Host = req.RawRequest.URL.Host
	}
	if r != nil {
		call.Status = r.StatusCode()
		call.Elapsed = r.Time()
		call.ResponseSize = int64(len(r.Body()))
		call.ContentType = r.Header().Get("Content-Type")
		call.Success = r.IsSuccess()
		if !call.Success {
			call.ErrorMessage = r.Status()
		}
	}
	if err != nil {
		call.ErrorMessage = err.Error()
	}

	if err := c.recorder.Create(call); err != nil {
		c.logger.Warn("failed to record api call", "err", err)
	}
}
