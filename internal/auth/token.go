package auth

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	HostRDE      = "rde.nims.go.jp"
	HostMaterial = "rde-material.nims.go.jp"

	// DefaultExpiryMargin treats a token as expired this long before its real expiry.
	DefaultExpiryMargin = 300 * time.Second
)

// Hosts lists every host rdex keeps a token for, primary first.
var Hosts = []string{HostRDE, HostMaterial}

// Token is the persisted form of a bearer token.
type Token struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	TokenType    string    `json:"token_type"`
}

// NewToken builds a Bearer token, deriving ExpiresAt from the JWT exp claim when possible.
func NewToken(access, refresh string) Token {
	t := Token{
		AccessToken:  access,
		RefreshToken: refresh,
		UpdatedAt:    time.Now().UTC(),
		TokenType:    "Bearer",
	}
	if exp, ok := ExpiryFromJWT(access); ok {
		t.ExpiresAt = exp
	}
	return t
}

// UnmarshalJSON accepts both the object form and a bare string, which is how older token files
// stored each host's access token.
func (t *Token) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = Token{AccessToken: s, TokenType: "Bearer"}
		return nil
	}

	type alias Token
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*t = Token(a)
	if t.TokenType == "" {
		t.TokenType = "Bearer"
	}
	return nil
}

// Empty reports whether there is no access token.
func (t Token) Empty() bool {
	return strings.TrimSpace(t.AccessToken) == ""
}

// IsExpired reports whether now is within margin of ExpiresAt. Tokens without a known expiry are
// never considered expired here; validation against the API decides.
func (t Token) IsExpired(margin time.Duration, now time.Time) bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(t.ExpiresAt.Add(-margin))
}

// CanRefresh reports whether a refresh token is present.
func (t Token) CanRefresh() bool {
	return t.RefreshToken != ""
}

// OAuth2 converts to an [oauth2.Token].
func (t Token) OAuth2() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       t.ExpiresAt,
	}
}

// FromOAuth2 converts an [oauth2.Token], keeping the previous refresh token when the server did
// not rotate it.
func FromOAuth2(ot *oauth2.Token, previous Token) Token {
	t := Token{
		AccessToken:  ot.AccessToken,
		RefreshToken: ot.RefreshToken,
		ExpiresAt:    ot.Expiry,
		UpdatedAt:    time.Now().UTC(),
		TokenType:    "Bearer",
	}
	if t.RefreshToken == "" {
		t.RefreshToken = previous.RefreshToken
	}
	if t.ExpiresAt.IsZero() {
		if exp, ok := ExpiryFromJWT(t.AccessToken); ok {
			t.ExpiresAt = exp
		}
	}
	return t
}

// ExpiryFromJWT reads the exp claim of a JWT without verifying it.
func ExpiryFromJWT(token string) (time.Time, bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return time.Time{}, false
	}
	payload, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return time.Time{}, false
	}
	var claims struct {
		Exp int64 `json:"exp"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil || claims.Exp == 0 {
		return time.Time{}, false
	}
	return time.Unix(claims.Exp, 0).UTC(), true
}
