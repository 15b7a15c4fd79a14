package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/rdex/internal/shared"
	"golang.org/x/oauth2"
)

const DefaultTokenURL = "https://dicelogin.b2clogin.com/dicelogin.onmicrosoft.com/b2c_1a_dpf_signin/oauth2/v2.0/token"

// Refresher performs the OAuth2 refresh_token grant against the B2C token endpoint.
type Refresher struct {
	tokenURL   string
	httpClient *http.Client
}

// NewRefresher returns a Refresher. A nil httpClient uses [http.DefaultClient].
func NewRefresher(tokenURL string, httpClient *http.Client) *Refresher {
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	return &Refresher{tokenURL: tokenURL, httpClient: httpClient}
}

// Config returns the [oauth2.Config] for host's public client. Scopes are not sent on refresh
// grants.
func (r *Refresher) Config(host string) *oauth2.Config {
	id := ClientIDFor(host)
	return &oauth2.Config{
		ClientID: id,
		Endpoint: oauth2.Endpoint{
			TokenURL:  r.tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		Scopes: []string{"openid", "profile", "offline_access", id},
	}
}

// Refresh exchanges current's refresh token for a new access token.
func (r *Refresher) Refresh(ctx context.Context, host string, current Token) (Token, error) {
	if !current.CanRefresh() {
		return Token{}, fmt.Errorf("%w: %s", shared.ErrNoRefreshToken, host)
	}
	if r.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, r.httpClient)
	}

	// Force the token source to hit the endpoint even when the stored expiry is still ahead.
	stale := current.OAuth2()
	stale.Expiry = time.Now().Add(-time.Minute)

	ot, err := r.Config(host).TokenSource(ctx, stale).Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			return Token{}, fmt.Errorf("%w: %s: HTTP %d %s", shared.ErrRefreshFailed, host, re.Response.StatusCode, re.ErrorCode)
		}
		return Token{}, fmt.Errorf("%w: %s: %v", shared.ErrRefreshFailed, host, err)
	}

	return FromOAuth2(ot, current), nil
}
