package login

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/rdex/internal/auth"
	"github.com/desertthunder/rdex/internal/shared"
)

// State is a step of the sign-in flow.
type State int

const (
	StateStart State = iota
	StateAwaitDiceButton
	StateClickDiceButton
	StateAwaitIdentifier
	StateSubmitIdentifier
	StateAwaitPassword
	StateSubmitPassword
	StateAwaitRedirect
	StateCaptureCookies
	StateExtractToken
	StateNavigateSecondary
	StateExtractSecondaryToken
	StateReturnPrimary
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateStart:                 "start",
	StateAwaitDiceButton:       "await_dice_button",
	StateClickDiceButton:       "click_dice_button",
	StateAwaitIdentifier:       "await_identifier",
	StateSubmitIdentifier:      "submit_identifier",
	StateAwaitPassword:         "await_password",
	StateSubmitPassword:        "submit_password",
	StateAwaitRedirect:         "await_redirect",
	StateCaptureCookies:        "capture_cookies",
	StateExtractToken:          "extract_token",
	StateNavigateSecondary:     "navigate_secondary",
	StateExtractSecondaryToken: "extract_secondary_token",
	StateReturnPrimary:         "return_primary",
	StateDone:                  "done",
	StateFailed:                "failed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether the machine stops in s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// SecondaryOutcome records what happened on the material portal visit.
type SecondaryOutcome int

const (
	// SecondaryPending means no visit has completed yet.
	SecondaryPending SecondaryOutcome = iota
	// SecondaryCaptured is terminal: later runs never navigate to the portal again.
	SecondaryCaptured
	// SecondarySkipped means the token was not found; the next run tries again.
	SecondarySkipped
)

func (o SecondaryOutcome) String() string {
	switch o {
	case SecondaryCaptured:
		return "captured"
	case SecondarySkipped:
		return "skipped"
	default:
		return "pending"
	}
}

// TokenSaver persists captured tokens. [auth.Store] satisfies it.
type TokenSaver interface {
	Save(host string, t auth.Token) error
}

// Credentials are the sign-in name and password. They are dropped once a token is captured.
type Credentials struct {
	Username string
	Password string
}

// Clear drops both values.
func (c *Credentials) Clear() {
	c.Username = ""
	c.Password = ""
}

// Transition is reported to [Options.Observer] on every state change.
type Transition struct {
	From State
	To   State
	Err  error
	At   time.Time
}

// Options configures a [Machine]. Zero values take defaults.
type Options struct {
	StartURL       string
	SecondaryURL   string
	DatasetsMarker string
	CookieFile     string

	// MaxAttempts bounds every polling state.
	MaxAttempts   int
	TokenAttempts int

	ButtonBackoff   Backoff
	FieldBackoff    Backoff
	RedirectBackoff Backoff
	TokenBackoff    Backoff

	Observer func(Transition)
}

const (
	DefaultStartURL       = "https://rde.nims.go.jp/rde/datasets"
	DefaultSecondaryURL   = "https://rde-material.nims.go.jp/samples/samples"
	DefaultDatasetsMarker = "/rde/datasets"

	// DefaultJitter spreads each poll delay by up to 20% either side.
	DefaultJitter = 0.2
)

func (o Options) withDefaults() Options {
	if o.StartURL == "" {
		o.StartURL = DefaultStartURL
	}
	if o.DatasetsMarker == "" {
		o.DatasetsMarker = DefaultDatasetsMarker
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 40
	}
	if o.TokenAttempts <= 0 {
		o.TokenAttempts = 3
	}
	def := func(b Backoff, initial time.Duration) Backoff {
		if b.Initial <= 0 {
			b.Initial = initial
		}
		if b.Max <= 0 {
			b.Max = 5 * time.Second
		}
		if b.Factor < 1 {
			b.Factor = 2
		}
		if b.Jitter <= 0 {
			b.Jitter = DefaultJitter
		}
		return b
	}
	o.ButtonBackoff = def(o.ButtonBackoff, 500*time.Millisecond)
	o.FieldBackoff = def(o.FieldBackoff, 300*time.Millisecond)
	o.RedirectBackoff = def(o.RedirectBackoff, 500*time.Millisecond)
	o.TokenBackoff = def(o.TokenBackoff, time.Second)
	return o
}

// Result describes a finished run.
type Result struct {
	State          State
	Token          auth.Token
	Secondary      SecondaryOutcome
	SecondaryToken auth.Token
	Cookies        []Cookie
	Transitions    []Transition
}

// Machine is the sign-in state machine. It is not safe for concurrent use.
type Machine struct {
	page      Page
	tokens    TokenSaver
	creds     Credentials
	opts      Options
	logger    *log.Logger
	state     State
	secondary SecondaryOutcome
	rnd       func() float64
	sleep     func(context.Context, time.Duration) error
}

// NewMachine builds a Machine over page that saves tokens through tokens.
func NewMachine(page Page, tokens TokenSaver, creds Credentials, logger *log.Logger, opts Options) *Machine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Machine{
		page:   page,
		tokens: tokens,
		creds:  creds,
		opts:   opts.withDefaults(),
		logger: logger.WithPrefix("login"),
		rnd:    defaultRand,
		sleep:  sleepCtx,
	}
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Secondary returns the material portal outcome so far.
func (m *Machine) Secondary() SecondaryOutcome { return m.secondary }

// Run drives the flow to [StateDone] or [StateFailed].
//
// A session that is already on the dataset listing skips straight to cookie capture, so calling Run
// again on a signed-in browser only re-reads the primary token.
func (m *Machine) Run(ctx context.Context) (*Result, error) {
	m.state = StateStart
	res := &Result{}

	for !m.state.Terminal() {
		next, err := m.step(ctx, res)
		if err != nil {
			m.transition(res, StateFailed, err)
			res.State = StateFailed
			res.Secondary = m.secondary
			return res, err
		}
		m.transition(res, next, nil)
	}

	res.State = m.state
	res.Secondary = m.secondary
	return res, nil
}

func (m *Machine) transition(res *Result, to State, err error) {
	tr := Transition{From: m.state, To: to, Err: err, At: time.Now()}
	res.Transitions = append(res.Transitions, tr)
	if err != nil {
		m.logger.Error("login failed", "state", m.state, "err", err)
	} else {
		m.logger.Debug("transition", "from", m.state, "to", to)
	}
	m.state = to
	if m.opts.Observer != nil {
		m.opts.Observer(tr)
	}
}

func (m *Machine) step(ctx context.Context, res *Result) (State, error) {
	if err := ctx.Err(); err != nil {
		return StateFailed, err
	}

	switch m.state {
	case StateStart:
		if current, err := m.page.URL(ctx); err == nil && strings.Contains(current, m.opts.DatasetsMarker) {
			m.logger.Info("session already signed in", "url", current)
			return StateCaptureCookies, nil
		}
		if err := m.page.Navigate(ctx, m.opts.StartURL); err != nil {
			return StateFailed, fmt.Errorf("%w: open %s: %v", shared.ErrLoginFailed, m.opts.StartURL, err)
		}
		return StateAwaitDiceButton, nil

	case StateAwaitDiceButton:
		return StateClickDiceButton, m.pollScript(ctx, scriptPollDice, m.opts.ButtonBackoff)

	case StateClickDiceButton:
		var clicked bool
		if err := m.page.Evaluate(ctx, loadScript(scriptClickDice), &clicked); err != nil {
			return StateFailed, err
		}
		if !clicked {
			return StateFailed, fmt.Errorf("%w: DICE button click failed", shared.ErrLoginFailed)
		}
		m.logger.Info("clicked DICE account button")
		return StateAwaitIdentifier, nil

	case StateAwaitIdentifier:
		return StateSubmitIdentifier, m.pollScript(ctx, scriptPollIdentifier, m.opts.FieldBackoff)

	case StateSubmitIdentifier:
		if m.creds.Username == "" {
			return StateFailed, fmt.Errorf("%w: login username", shared.ErrMissingArgument)
		}
		result, err := m.fill(ctx, scriptSetIdentifier, m.creds.Username)
		if err != nil {
			return StateFailed, err
		}
		switch result {
		case resultSetAndSubmitted:
			m.logger.Info("identifier submitted")
		case resultSetOnly:
			m.logger.Warn("identifier set but no submit button found")
		default:
			return StateFailed, fmt.Errorf("%w: identifier field not found (%q)", shared.ErrLoginFailed, result)
		}
		return StateAwaitPassword, nil

	case StateAwaitPassword:
		return StateSubmitPassword, m.pollScript(ctx, scriptPollPassword, m.opts.FieldBackoff)

	case StateSubmitPassword:
		if m.creds.Password == "" {
			return StateFailed, fmt.Errorf("%w: login password", shared.ErrMissingArgument)
		}
		result, err := m.fill(ctx, scriptSetPassword, m.creds.Password)
		if err != nil {
			return StateFailed, err
		}
		switch result {
		case resultSetAndSubmitted, resultSetAndClicked:
			m.logger.Info("password submitted", "via", result)
		case resultSetOnly:
			m.logger.Warn("password set but form could not be submitted")
		default:
			return StateFailed, fmt.Errorf("%w: password field not found (%q)", shared.ErrLoginFailed, result)
		}
		return StateAwaitRedirect, nil

	case StateAwaitRedirect:
		err := m.poll(ctx, m.opts.RedirectBackoff, m.opts.MaxAttempts, func(ctx context.Context) (bool, error) {
			current, err := m.page.URL(ctx)
			return err == nil && strings.Contains(current, m.opts.DatasetsMarker), err
		})
		if err == nil {
			m.logger.Info("reached dataset listing")
		}
		return StateCaptureCookies, err

	case StateCaptureCookies:
		m.captureCookies(ctx, res)
		return StateExtractToken, nil

	case StateExtractToken:
		tok, err := m.extractToken(ctx, auth.ClientIDRDE)
		if err != nil {
			return StateFailed, err
		}
		if err := m.tokens.Save(auth.HostRDE, tok); err != nil {
			return StateFailed, err
		}
		res.Token = tok
		m.creds.Clear()
		m.logger.Info("bearer token captured", "host", auth.HostRDE, "token", shared.MaskSecret(tok.AccessToken, 12))
		return StateNavigateSecondary, nil

	case StateNavigateSecondary:
		if m.secondary == SecondaryCaptured || m.opts.SecondaryURL == "" {
			return StateDone, nil
		}
		if err := m.page.Navigate(ctx, m.opts.SecondaryURL); err != nil {
			m.skipSecondary(err)
			return StateReturnPrimary, nil
		}
		return StateExtractSecondaryToken, nil

	case StateExtractSecondaryToken:
		tok, err := m.extractToken(ctx, auth.ClientIDMaterial)
		if err == nil {
			err = m.tokens.Save(auth.HostMaterial, tok)
		}
		if err != nil {
			m.skipSecondary(err)
			return StateReturnPrimary, nil
		}
		res.SecondaryToken = tok
		m.secondary = SecondaryCaptured
		m.logger.Info("bearer token captured", "host", auth.HostMaterial, "token", shared.MaskSecret(tok.AccessToken, 12))
		return StateReturnPrimary, nil

	case StateReturnPrimary:
		if err := m.page.Navigate(ctx, m.opts.StartURL); err != nil {
			m.logger.Warn("could not return to dataset listing", "err", err)
		}
		return StateDone, nil
	}

	return StateFailed, fmt.Errorf("%w: no step for state %s", shared.ErrLoginFailed, m.state)
}

func (m *Machine) skipSecondary(err error) {
	m.secondary = SecondarySkipped
	m.logger.Warn("material token not captured, skipping", "err", err)
}

func (m *Machine) fill(ctx context.Context, script, value string) (string, error) {
	js, err := scriptWithValue(script, value)
	if err != nil {
		return "", err
	}
	var result string
	if err := m.page.Evaluate(ctx, js, &result); err != nil {
		return "", err
	}
	return result, nil
}

func (m *Machine) captureCookies(ctx context.Context, res *Result) {
	cookies, err := m.page.Cookies(ctx)
	if err != nil || len(cookies) == 0 {
		m.logger.Warn("no cookies captured", "err", err)
		return
	}
	res.Cookies = cookies
	if m.opts.CookieFile == "" {
		return
	}
	if err := shared.WriteFileAtomic(m.opts.CookieFile, []byte(FormatCookies(cookies)), 0o600); err != nil {
		m.logger.Warn("failed to save cookies", "err", err)
		return
	}
	m.logger.Info("cookies saved", "count", len(cookies), "path", m.opts.CookieFile)
}

func (m *Machine) extractToken(ctx context.Context, clientID string) (auth.Token, error) {
	var tok auth.Token
	err := m.poll(ctx, m.opts.TokenBackoff, m.opts.TokenAttempts, func(ctx context.Context) (bool, error) {
		items, err := m.page.SessionStorage(ctx)
		if err != nil {
			return false, err
		}
		var ok bool
		tok, ok = ParseStorageTokens(items, clientID)
		return ok, nil
	})
	if err != nil {
		return auth.Token{}, fmt.Errorf("%w: no access token in sessionStorage: %v", shared.ErrLoginFailed, err)
	}
	return tok, nil
}

func (m *Machine) pollScript(ctx context.Context, name string, b Backoff) error {
	script := loadScript(name)
	return m.poll(ctx, b, m.opts.MaxAttempts, func(ctx context.Context) (bool, error) {
		var ready bool
		err := m.page.Evaluate(ctx, script, &ready)
		return ready, err
	})
}

// poll calls probe until it reports true, sleeping b.Next between attempts. Probe errors count as a
// failed attempt. Exhausting attempts returns [shared.ErrTimeout] naming the current state.
func (m *Machine) poll(ctx context.Context, b Backoff, attempts int, probe func(context.Context) (bool, error)) error {
	var lastErr error
	for n := 1; n <= attempts; n++ {
		ok, err := probe(ctx)
		if err == nil && ok {
			return nil
		}
		if err != nil {
			lastErr = err
		}
		if n == attempts {
			break
		}
		if err := m.sleep(ctx, b.Next(n, m.rnd)); err != nil {
			return err
		}
	}

	err := fmt.Errorf("%w: %s gave up after %d attempts", shared.ErrTimeout, m.state, attempts)
	if lastErr != nil {
		err = errors.Join(err, lastErr)
	}
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
