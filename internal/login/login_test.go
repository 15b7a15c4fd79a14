package login

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/rdex/internal/auth"
	"github.com/desertthunder/rdex/internal/shared"
	tu "github.com/desertthunder/rdex/internal/testing"
)

const loginPageURL = "https://login.example.com/authorize"

// fakePage simulates the RDE sign-in pages. Poll scripts report ready once they have been called
// readyAfter[name] times.
type fakePage struct {
	url         string
	loggedIn    bool
	readyAfter  map[string]int
	calls       map[string]int
	navigations []string
	filled      []string
	rdeItems    []StorageItem
	matItems    []StorageItem
	cookies     []Cookie
	identResult string
	passResult  string
}

func newFakePage() *fakePage {
	return &fakePage{
		readyAfter:  map[string]int{},
		calls:       map[string]int{},
		identResult: resultSetAndSubmitted,
		passResult:  resultSetAndSubmitted,
		cookies:     []Cookie{{Domain: "rde.nims.go.jp", Name: "a", Value: "1"}, {Domain: "rde.nims.go.jp", Name: "b", Value: "2"}},
	}
}

func (p *fakePage) Navigate(_ context.Context, url string) error {
	p.navigations = append(p.navigations, url)
	if strings.Contains(url, DefaultDatasetsMarker) && !p.loggedIn {
		p.url = loginPageURL
		return nil
	}
	p.url = url
	return nil
}

func (p *fakePage) URL(context.Context) (string, error) { return p.url, nil }

func (p *fakePage) Cookies(context.Context) ([]Cookie, error) { return p.cookies, nil }

func (p *fakePage) SessionStorage(context.Context) ([]StorageItem, error) {
	p.calls[scriptSessionStorage]++
	switch {
	case strings.Contains(p.url, "rde-material"):
		return p.matItems, nil
	case p.loggedIn:
		return p.rdeItems, nil
	default:
		return []StorageItem{}, nil
	}
}

func (p *fakePage) Evaluate(_ context.Context, script string, out any) error {
	name := identifyScript(script)
	p.calls[name]++

	var result any
	switch name {
	case scriptPollDice, scriptPollIdentifier, scriptPollPassword:
		result = p.calls[name] >= p.readyAfter[name]
	case scriptClickDice:
		result = true
	case scriptSetIdentifier:
		p.filled = append(p.filled, script)
		result = p.identResult
	case scriptSetPassword:
		p.filled = append(p.filled, script)
		result = p.passResult
		if p.passResult != "not_found" {
			p.loggedIn = true
			p.url = DefaultStartURL
		}
	default:
		return errors.New("unknown script")
	}

	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (p *fakePage) countNavigations(url string) int {
	n := 0
	for _, u := range p.navigations {
		if u == url {
			n++
		}
	}
	return n
}

// identifyScript maps script text back to its name, including scripts with an embedded value.
func identifyScript(script string) string {
	for _, name := range []string{
		scriptPollDice, scriptClickDice, scriptPollIdentifier, scriptSetIdentifier,
		scriptPollPassword, scriptSetPassword, scriptSessionStorage,
	} {
		tmpl := loadScript(name)
		if tmpl == script {
			return name
		}
		if before, after, ok := strings.Cut(tmpl, valuePlaceholder); ok &&
			strings.HasPrefix(script, before) && strings.HasSuffix(script, after) {
			return name
		}
	}
	return ""
}

func storageEntry(key, credType, secret, clientID string) StorageItem {
	v, _ := json.Marshal(map[string]string{
		"credentialType": credType,
		"secret":         secret,
		"clientId":       clientID,
		"expiresOn":      "1999999999",
	})
	return StorageItem{Key: key, Value: string(v)}
}

func quietLogger() *log.Logger {
	l := shared.NewLogger(&strings.Builder{})
	l.SetLevel(log.FatalLevel)
	return l
}

type harness struct {
	page   *fakePage
	store  *auth.Store
	dir    string
	delays []time.Duration
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	page := newFakePage()
	page.rdeItems = []StorageItem{
		storageEntry("uid-accesstoken-rde", "AccessToken", "rde-access", auth.ClientIDRDE),
		storageEntry("uid-refreshtoken-rde", "RefreshToken", "rde-refresh", auth.ClientIDRDE),
	}
	page.matItems = []StorageItem{storageEntry("uid-accesstoken-mat", "AccessToken", "mat-access", auth.ClientIDMaterial)}
	return &harness{
		page:  page,
		store: auth.NewStore(filepath.Join(dir, "bearer_tokens.json"), filepath.Join(dir, "bearer_token.txt")),
		dir:   dir,
	}
}

func (h *harness) machine(creds Credentials, opts Options) *Machine {
	if opts.SecondaryURL == "" {
		opts.SecondaryURL = DefaultSecondaryURL
	}
	if opts.CookieFile == "" {
		opts.CookieFile = filepath.Join(h.dir, ".cookies.txt")
	}
	m := NewMachine(h.page, h.store, creds, quietLogger(), opts)
	m.rnd = func() float64 { return 0.5 }
	m.sleep = func(_ context.Context, d time.Duration) error {
		h.delays = append(h.delays, d)
		return nil
	}
	return m
}

var testCreds = Credentials{Username: "user@example.com", Password: `pa"ss\word`}

func TestBackoff(t *testing.T) {
	b := Backoff{Initial: 300 * time.Millisecond, Max: 5 * time.Second, Factor: 2, Jitter: 0.2}

	t.Run("grows exponentially", func(t *testing.T) {
		expected := []time.Duration{300 * time.Millisecond, 600 * time.Millisecond, 1200 * time.Millisecond, 2400 * time.Millisecond, 4800 * time.Millisecond}
		for i, want := range expected {
			if got := b.Delay(i + 1); got != want {
				t.Errorf("attempt %d: expected %v, got %v", i+1, want, got)
			}
		}
	})

	t.Run("caps at max", func(t *testing.T) {
		for _, n := range []int{6, 10, 40} {
			if got := b.Delay(n); got != 5*time.Second {
				t.Errorf("attempt %d: expected cap 5s, got %v", n, got)
			}
		}
	})

	t.Run("jitter stays within bounds", func(t *testing.T) {
		d := b.Delay(2)
		if got := b.Next(2, func() float64 { return 0 }); got != time.Duration(float64(d)*0.8) {
			t.Errorf("expected lower bound %v, got %v", time.Duration(float64(d)*0.8), got)
		}
		if got := b.Next(2, func() float64 { return 0.5 }); got != d {
			t.Errorf("expected un-jittered %v, got %v", d, got)
		}
		if got := b.Next(2, func() float64 { return 0.999 }); got > time.Duration(float64(d)*1.2) {
			t.Errorf("expected at most %v, got %v", time.Duration(float64(d)*1.2), got)
		}
	})

	t.Run("zero attempt treated as first", func(t *testing.T) {
		if b.Delay(0) != b.Initial {
			t.Errorf("expected %v, got %v", b.Initial, b.Delay(0))
		}
	})

	t.Run("option defaults jitter every poll", func(t *testing.T) {
		o := Options{}.withDefaults()
		for name, got := range map[string]Backoff{
			"button":   o.ButtonBackoff,
			"field":    o.FieldBackoff,
			"redirect": o.RedirectBackoff,
			"token":    o.TokenBackoff,
		} {
			if got.Jitter != DefaultJitter {
				t.Errorf("%s: expected jitter %v, got %v", name, DefaultJitter, got.Jitter)
			}
			if got.Factor != 2 || got.Max != 5*time.Second {
				t.Errorf("%s: unexpected backoff %+v", name, got)
			}
		}
		if o.ButtonBackoff.Initial != 500*time.Millisecond || o.FieldBackoff.Initial != 300*time.Millisecond {
			t.Errorf("unexpected initial delays %v %v", o.ButtonBackoff.Initial, o.FieldBackoff.Initial)
		}
	})

	t.Run("explicit jitter is kept", func(t *testing.T) {
		o := Options{FieldBackoff: Backoff{Jitter: 0.5}}.withDefaults()
		if o.FieldBackoff.Jitter != 0.5 {
			t.Errorf("expected 0.5, got %v", o.FieldBackoff.Jitter)
		}
	})
}

func TestState(t *testing.T) {
	if StateAwaitDiceButton.String() != "await_dice_button" {
		t.Errorf("unexpected name %s", StateAwaitDiceButton)
	}
	if State(99).String() != "state(99)" {
		t.Errorf("unexpected name %s", State(99))
	}
	for s := StateStart; s <= StateFailed; s++ {
		if s.Terminal() != (s == StateDone || s == StateFailed) {
			t.Errorf("unexpected terminal flag for %s", s)
		}
	}
}

func TestMachine(t *testing.T) {
	t.Run("full sign-in captures both hosts", func(t *testing.T) {
		h := newHarness(t)
		h.page.readyAfter[scriptPollDice] = 3
		h.page.readyAfter[scriptPollIdentifier] = 2

		var observed []Transition
		m := h.machine(testCreds, Options{Observer: func(tr Transition) { observed = append(observed, tr) }})

		res, err := m.Run(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.State != StateDone || m.State() != StateDone {
			t.Errorf("expected done, got %s", res.State)
		}
		if res.Secondary != SecondaryCaptured {
			t.Errorf("expected secondary captured, got %s", res.Secondary)
		}

		primary, err := h.store.Load(auth.HostRDE)
		if err != nil {
			t.Fatalf("expected primary token saved, got %v", err)
		}
		if primary.AccessToken != "rde-access" || primary.RefreshToken != "rde-refresh" {
			t.Errorf("unexpected primary token %+v", primary)
		}
		material, err := h.store.Load(auth.HostMaterial)
		if err != nil || material.AccessToken != "mat-access" {
			t.Errorf("expected material token saved, got %+v (%v)", material, err)
		}

		cookies := tu.MustReadFile(t, filepath.Join(h.dir, ".cookies.txt"))
		if cookies != "a=1; b=2; " {
			t.Errorf("unexpected cookie file %q", cookies)
		}

		if len(observed) != len(res.Transitions) {
			t.Errorf("expected observer to see %d transitions, got %d", len(res.Transitions), len(observed))
		}
		last := res.Transitions[len(res.Transitions)-1]
		if last.From != StateReturnPrimary || last.To != StateDone {
			t.Errorf("unexpected final transition %s -> %s", last.From, last.To)
		}

		if len(h.delays) != 3 {
			t.Errorf("expected 3 backoff sleeps, got %d", len(h.delays))
		}
		if h.delays[0] != 500*time.Millisecond || h.delays[1] != time.Second {
			t.Errorf("expected button backoff 500ms then 1s, got %v", h.delays[:2])
		}
		if h.delays[2] != 300*time.Millisecond {
			t.Errorf("expected field backoff 300ms, got %v", h.delays[2])
		}
	})

	t.Run("credentials are embedded as literals and cleared", func(t *testing.T) {
		h := newHarness(t)
		m := h.machine(testCreds, Options{})

		if _, err := m.Run(context.Background()); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(h.page.filled) != 2 {
			t.Fatalf("expected 2 filled fields, got %d", len(h.page.filled))
		}
		if !strings.Contains(h.page.filled[0], `"user@example.com"`) {
			t.Errorf("identifier not embedded: %s", h.page.filled[0])
		}
		if !strings.Contains(h.page.filled[1], `"pa\"ss\\word"`) {
			t.Errorf("password not escaped: %s", h.page.filled[1])
		}
		if m.creds.Username != "" || m.creds.Password != "" {
			t.Error("expected credentials cleared after token capture")
		}
	})

	t.Run("second run does not revisit the material portal", func(t *testing.T) {
		h := newHarness(t)
		m := h.machine(testCreds, Options{})

		if _, err := m.Run(context.Background()); err != nil {
			t.Fatalf("first run: %v", err)
		}
		res, err := m.Run(context.Background())
		if err != nil {
			t.Fatalf("second run: %v", err)
		}

		if got := h.page.countNavigations(DefaultSecondaryURL); got != 1 {
			t.Errorf("expected 1 navigation to the material portal, got %d", got)
		}
		if res.Transitions[0].To != StateCaptureCookies {
			t.Errorf("expected signed-in session to skip the form, got %s", res.Transitions[0].To)
		}
		if h.page.calls[scriptSetPassword] != 1 {
			t.Errorf("expected the form to be filled once, got %d", h.page.calls[scriptSetPassword])
		}
		if res.Secondary != SecondaryCaptured {
			t.Errorf("expected outcome to stay captured, got %s", res.Secondary)
		}
	})

	t.Run("missing material token is skipped and retried next run", func(t *testing.T) {
		h := newHarness(t)
		h.page.matItems = nil
		m := h.machine(testCreds, Options{})

		res, err := m.Run(context.Background())
		if err != nil {
			t.Fatalf("expected skip without error, got %v", err)
		}
		if res.Secondary != SecondarySkipped {
			t.Errorf("expected skipped, got %s", res.Secondary)
		}
		if _, err := h.store.Load(auth.HostMaterial); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected no material token, got %v", err)
		}
		if h.page.url != DefaultStartURL {
			t.Errorf("expected return to dataset listing, got %s", h.page.url)
		}

		h.page.matItems = []StorageItem{storageEntry("k-accesstoken", "AccessToken", "mat-later", auth.ClientIDMaterial)}
		res, err = m.Run(context.Background())
		if err != nil {
			t.Fatalf("second run: %v", err)
		}
		if res.Secondary != SecondaryCaptured {
			t.Errorf("expected captured on retry, got %s", res.Secondary)
		}
		if got := h.page.countNavigations(DefaultSecondaryURL); got != 2 {
			t.Errorf("expected 2 portal visits, got %d", got)
		}
	})

	t.Run("attempt budget ends in failed state", func(t *testing.T) {
		h := newHarness(t)
		h.page.readyAfter[scriptPollDice] = 1000
		m := h.machine(testCreds, Options{MaxAttempts: 5})

		res, err := m.Run(context.Background())
		if !errors.Is(err, shared.ErrTimeout) {
			t.Fatalf("expected ErrTimeout, got %v", err)
		}
		if !strings.Contains(err.Error(), "await_dice_button") {
			t.Errorf("expected error to name the state, got %v", err)
		}
		if res.State != StateFailed {
			t.Errorf("expected failed, got %s", res.State)
		}
		if h.page.calls[scriptPollDice] != 5 {
			t.Errorf("expected 5 polls, got %d", h.page.calls[scriptPollDice])
		}
		if len(h.delays) != 4 {
			t.Errorf("expected 4 sleeps, got %d", len(h.delays))
		}
		for _, d := range h.delays {
			if d > 5*time.Second {
				t.Errorf("delay %v exceeds cap", d)
			}
		}
	})

	t.Run("default polling is jittered", func(t *testing.T) {
		h := newHarness(t)
		h.page.readyAfter[scriptPollDice] = 3
		m := h.machine(testCreds, Options{})
		m.rnd = func() float64 { return 0 }

		if _, err := m.Run(context.Background()); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		want := []time.Duration{400 * time.Millisecond, 800 * time.Millisecond}
		if len(h.delays) < len(want) {
			t.Fatalf("expected at least %d sleeps, got %v", len(want), h.delays)
		}
		for i, d := range want {
			if h.delays[i] != d {
				t.Errorf("sleep %d: expected %v, got %v", i, d, h.delays[i])
			}
		}
	})

	t.Run("missing username", func(t *testing.T) {
		h := newHarness(t)
		m := h.machine(Credentials{Password: "pw"}, Options{})

		_, err := m.Run(context.Background())
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
		if m.State() != StateFailed {
			t.Errorf("expected failed, got %s", m.State())
		}
	})

	t.Run("identifier field not found", func(t *testing.T) {
		h := newHarness(t)
		h.page.identResult = "not_found"
		m := h.machine(testCreds, Options{})

		if _, err := m.Run(context.Background()); !errors.Is(err, shared.ErrLoginFailed) {
			t.Errorf("expected ErrLoginFailed, got %v", err)
		}
	})

	t.Run("no token in storage", func(t *testing.T) {
		h := newHarness(t)
		h.page.rdeItems = []StorageItem{{Key: "unrelated", Value: "{}"}}
		m := h.machine(testCreds, Options{})

		if _, err := m.Run(context.Background()); !errors.Is(err, shared.ErrLoginFailed) {
			t.Errorf("expected ErrLoginFailed, got %v", err)
		}
		if h.page.calls[scriptSessionStorage] != 3 {
			t.Errorf("expected 3 storage scans, got %d", h.page.calls[scriptSessionStorage])
		}
		if m.creds.Password == "" {
			t.Error("credentials should be kept when no token was captured")
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		h := newHarness(t)
		m := h.machine(testCreds, Options{})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		res, err := m.Run(ctx)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if res.State != StateFailed {
			t.Errorf("expected failed, got %s", res.State)
		}
	})
}

func TestParseStorageTokens(t *testing.T) {
	t.Run("prefers matching client", func(t *testing.T) {
		items := []StorageItem{
			storageEntry("a-accesstoken-other", "AccessToken", "other", "other-client"),
			storageEntry("b-AccessToken-rde", "AccessToken", "mine", auth.ClientIDRDE),
		}
		tok, ok := ParseStorageTokens(items, auth.ClientIDRDE)
		if !ok || tok.AccessToken != "mine" {
			t.Errorf("expected matching client token, got %+v", tok)
		}
	})

	t.Run("falls back to first entry", func(t *testing.T) {
		items := []StorageItem{storageEntry("x-accesstoken", "AccessToken", "first", "other")}
		tok, ok := ParseStorageTokens(items, auth.ClientIDRDE)
		if !ok || tok.AccessToken != "first" {
			t.Errorf("expected fallback token, got %+v", tok)
		}
	})

	t.Run("ignores wrong credential type and bad json", func(t *testing.T) {
		items := []StorageItem{
			storageEntry("x-accesstoken", "IdToken", "id", auth.ClientIDRDE),
			{Key: "y-accesstoken", Value: "not json"},
		}
		if _, ok := ParseStorageTokens(items, auth.ClientIDRDE); ok {
			t.Error("expected no token")
		}
	})

	t.Run("reads expiry", func(t *testing.T) {
		items := []StorageItem{storageEntry("x-accesstoken", "AccessToken", "opaque", "")}
		tok, _ := ParseStorageTokens(items, "")
		if tok.ExpiresAt.Unix() != 1999999999 {
			t.Errorf("expected expiresOn to be used, got %v", tok.ExpiresAt)
		}
	})
}

func TestScripts(t *testing.T) {
	t.Run("every script is embedded", func(t *testing.T) {
		for _, name := range []string{
			scriptPollDice, scriptClickDice, scriptPollIdentifier, scriptSetIdentifier,
			scriptPollPassword, scriptSetPassword, scriptSessionStorage,
		} {
			if loadScript(name) == "" {
				t.Errorf("script %s is empty", name)
			}
		}
	})

	t.Run("value is a JSON literal", func(t *testing.T) {
		js, err := scriptWithValue(scriptSetIdentifier, `a"b\c`)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if strings.Contains(js, valuePlaceholder) {
			t.Error("placeholder left in script")
		}
		if !strings.Contains(js, `"a\"b\\c"`) {
			t.Errorf("value not escaped: %s", js)
		}
	})
}

func TestFormatCookies(t *testing.T) {
	got := FormatCookies([]Cookie{{Name: "s", Value: "1"}, {Name: "t", Value: "x=y"}})
	if got != "s=1; t=x=y; " {
		t.Errorf("unexpected cookie string %q", got)
	}
	if FormatCookies(nil) != "" {
		t.Error("expected empty string for no cookies")
	}
}
