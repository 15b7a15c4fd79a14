package login

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/rdex/internal/auth"
)

// msalCredential is the shape of MSAL cache entries kept in sessionStorage.
type msalCredential struct {
	CredentialType string          `json:"credentialType"`
	Secret         string          `json:"secret"`
	ClientID       string          `json:"clientId"`
	ExpiresOn      json.RawMessage `json:"expiresOn"`
}

func (c msalCredential) expiry() (time.Time, bool) {
	raw := strings.Trim(string(c.ExpiresOn), `"`)
	if raw == "" {
		return time.Time{}, false
	}
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || secs <= 0 {
		return time.Time{}, false
	}
	return time.Unix(secs, 0).UTC(), true
}

// ParseStorageTokens finds the access and refresh tokens among sessionStorage entries.
//
// An access token entry has a key containing "accesstoken" (any case) and a JSON value with
// credentialType "AccessToken" and a secret. Entries issued to clientID are preferred when several
// are present. Refresh tokens are matched the same way with "refreshtoken" / "RefreshToken".
func ParseStorageTokens(items []StorageItem, clientID string) (auth.Token, bool) {
	access, accessOK := pickCredential(items, "accesstoken", "AccessToken", clientID)
	if !accessOK {
		return auth.Token{}, false
	}
	refresh, _ := pickCredential(items, "refreshtoken", "RefreshToken", clientID)

	tok := auth.NewToken(access.Secret, refresh.Secret)
	if exp, ok := access.expiry(); ok {
		tok.ExpiresAt = exp
	}
	return tok, true
}

func pickCredential(items []StorageItem, keyPart, credType, clientID string) (msalCredential, bool) {
	var fallback msalCredential
	found := false
	for _, item := range items {
		if item.Value == "" || !strings.Contains(strings.ToLower(item.Key), keyPart) {
			continue
		}

		var cred msalCredential
		if err := json.Unmarshal([]byte(item.Value), &cred); err != nil {
			continue
		}
		if cred.CredentialType != credType || cred.Secret == "" {
			continue
		}
		if clientID != "" && strings.EqualFold(cred.ClientID, clientID) {
			return cred, true
		}
		if !found {
			fallback, found = cred, true
		}
	}
	return fallback, found
}

// FormatCookies renders cookies as "name=value; " pairs, the format of the cookie file.
func FormatCookies(cookies []Cookie) string {
	var b strings.Builder
	for _, c := range cookies {
		b.WriteString(c.Name)
		b.WriteByte('=')
		b.WriteString(c.Value)
		b.WriteString("; ")
	}
	return b.String()
}
