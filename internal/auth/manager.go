package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/rdex/internal/shared"
)

// EventKind names a background refresh outcome.
type EventKind string

const (
	EventRefreshed     EventKind = "token_refreshed"
	EventRefreshFailed EventKind = "token_refresh_failed"
	EventExpired       EventKind = "token_expired"
)

// Event is emitted by [Manager.Run] and [Manager.Refresh].
type Event struct {
	Kind EventKind
	Host string
	Err  error
	At   time.Time
}

// ManagerOpts tunes background refresh. Zero values take the defaults noted per field.
type ManagerOpts struct {
	Interval time.Duration // 60s between checks
	Attempts int           // 3 refresh attempts
	Backoff  time.Duration // 30s between attempts
	Margin   time.Duration // refresh this long before expiry, 300s
}

func (o ManagerOpts) withDefaults() ManagerOpts {
	if o.Interval <= 0 {
		o.Interval = 60 * time.Second
	}
	if o.Attempts <= 0 {
		o.Attempts = 3
	}
	if o.Backoff <= 0 {
		o.Backoff = 30 * time.Second
	}
	if o.Margin <= 0 {
		o.Margin = DefaultExpiryMargin
	}
	return o
}

// HostStatus summarises the stored token for one host. The token value itself is never included.
type HostStatus struct {
	Host       string    `json:"host"`
	Present    bool      `json:"present"`
	ExpiresAt  time.Time `json:"expires_at,omitzero"`
	UpdatedAt  time.Time `json:"updated_at,omitzero"`
	Expired    bool      `json:"expired"`
	CanRefresh bool      `json:"can_refresh"`
	Validated  bool      `json:"validated"`
	Valid      bool      `json:"valid"`
	Error      string    `json:"error,omitempty"`
}

// Manager owns the token lifecycle for every host.
type Manager struct {
	store     *Store
	validator *Validator
	refresher *Refresher
	logger    *log.Logger
	opts      ManagerOpts
	events    chan Event
	now       func() time.Time
}

// NewManager wires a [Store], [Validator] and [Refresher]. refresher may be nil to disable refresh.
func NewManager(store *Store, validator *Validator, refresher *Refresher, logger *log.Logger, opts ManagerOpts) *Manager {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Manager{
		store:     store,
		validator: validator,
		refresher: refresher,
		logger:    logger.WithPrefix("auth"),
		opts:      opts.withDefaults(),
		events:    make(chan Event, 16),
		now:       time.Now,
	}
}

// Store returns the underlying token store.
func (m *Manager) Store() *Store { return m.store }

// Events returns the channel that receives refresh outcomes. Sends never block; events are dropped
// when nobody drains the channel.
func (m *Manager) Events() <-chan Event { return m.events }

// ValidateToken checks token against users/self.
func (m *Manager) ValidateToken(ctx context.Context, token string) (bool, error) {
	return m.validator.Validate(ctx, token)
}

// GetValidToken loads host's token and returns it only when the API answers 200.
//
// When the API answers 401 and a refresh token is stored, one refresh is attempted and the new token
// is validated again before being returned.
func (m *Manager) GetValidToken(ctx context.Context, host string) (string, error) {
	t, err := m.store.Load(host)
	if err != nil {
		return "", err
	}

	ok, err := m.validator.Validate(ctx, t.AccessToken)
	if ok {
		return t.AccessToken, nil
	}
	if !errors.Is(err, shared.ErrTokenExpired) || !t.CanRefresh() || m.refresher == nil {
		return "", err
	}

	m.logger.Info("token rejected, attempting refresh", "host", host)
	refreshed, rerr := m.refresher.Refresh(ctx, host, t)
	if rerr != nil {
		return "", errors.Join(err, rerr)
	}
	if err := m.store.Save(host, refreshed); err != nil {
		return "", err
	}
	if ok, err := m.validator.Validate(ctx, refreshed.AccessToken); !ok {
		return "", err
	}
	return refreshed.AccessToken, nil
}

// TokenForURL returns the stored access token for the host serving rawURL, without validating it.
// Material hosts fall back to the primary token when no material token is stored.
func (m *Manager) TokenForURL(rawURL string) (string, error) {
	host := HostForURL(rawURL)
	t, err := m.store.Load(host)
	if err == nil {
		return t.AccessToken, nil
	}
	if host != HostMaterial {
		return "", err
	}

	m.logger.Warn("material token not found, using primary token", "url", rawURL)
	t, err = m.store.Load(HostRDE)
	if err != nil {
		return "", err
	}
	return t.AccessToken, nil
}

// Status reports on every known host. When validate is set each present token is checked against
// the API.
func (m *Manager) Status(ctx context.Context, validate bool) []HostStatus {
	out := make([]HostStatus, 0, len(Hosts))
	for _, host := range Hosts {
		st := HostStatus{Host: host}
		t, err := m.store.Load(host)
		if err != nil {
			if !errors.Is(err, shared.ErrNotAuthenticated) {
				st.Error = err.Error()
			}
			out = append(out, st)
			continue
		}

		st.Present = true
		st.ExpiresAt = t.ExpiresAt
		st.UpdatedAt = t.UpdatedAt
		st.Expired = t.IsExpired(m.opts.Margin, m.now())
		st.CanRefresh = t.CanRefresh()
		if validate {
			st.Validated = true
			st.Valid, err = m.validator.Validate(ctx, t.AccessToken)
			if err != nil {
				st.Error = err.Error()
			}
		}
		out = append(out, st)
	}
	return out
}

// Refresh refreshes host's token, retrying with the configured backoff, and saves the result.
func (m *Manager) Refresh(ctx context.Context, host string) (Token, error) {
	if m.refresher == nil {
		return Token{}, fmt.Errorf("%w: refresh disabled", shared.ErrServiceUnavailable)
	}
	current, err := m.store.Load(host)
	if err != nil {
		return Token{}, err
	}

	var lastErr error
attempts:
	for attempt := 1; attempt <= m.opts.Attempts; attempt++ {
		refreshed, err := m.refresher.Refresh(ctx, host, current)
		if err == nil {
			if err := m.store.Save(host, refreshed); err != nil {
				return Token{}, err
			}
			m.logger.Info("token refreshed", "host", host, "attempt", attempt, "expires_at", refreshed.ExpiresAt)
			m.emit(Event{Kind: EventRefreshed, Host: host})
			return refreshed, nil
		}

		lastErr = err
		m.logger.Warn("token refresh failed", "host", host, "attempt", attempt, "err", err)
		if errors.Is(err, shared.ErrNoRefreshToken) || attempt == m.opts.Attempts {
			break attempts
		}

		select {
		case <-ctx.Done():
			lastErr = errors.Join(lastErr, ctx.Err())
			break attempts
		case <-time.After(m.opts.Backoff):
		}
	}

	m.emit(Event{Kind: EventRefreshFailed, Host: host, Err: lastErr})
	return Token{}, lastErr
}

// Run checks every host each interval until ctx is cancelled, refreshing tokens that are inside the
// expiry margin. Tokens that are expired with no refresh token produce [EventExpired].
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.opts.Interval)
	defer ticker.Stop()

	m.logger.Info("auto refresh started", "interval", m.opts.Interval)
	for {
		m.Check(ctx)
		select {
		case <-ctx.Done():
			m.logger.Info("auto refresh stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Check runs one pass of the auto-refresh loop.
func (m *Manager) Check(ctx context.Context) {
	for _, host := range Hosts {
		t, err := m.store.Load(host)
		if err != nil || !t.IsExpired(m.opts.Margin, m.now()) {
			continue
		}
		if !t.CanRefresh() || m.refresher == nil {
			m.logger.Warn("token expired and cannot be refreshed", "host", host)
			m.emit(Event{Kind: EventExpired, Host: host, Err: shared.ErrTokenExpired})
			continue
		}
		_, _ = m.Refresh(ctx, host)
	}
}

func (m *Manager) emit(e Event) {
	e.At = m.now()
	select {
	case m.events <- e:
	default:
		m.logger.Debug("dropping token event", "kind", e.Kind, "host", e.Host)
	}
}
