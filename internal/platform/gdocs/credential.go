package gdocs

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
)

// ErrMalformedCredential is returned when a stored credential blob cannot be used.
var ErrMalformedCredential = errors.New("malformed credential")

// naiveExpiryLayout matches expiry values written without a zone, which are UTC.
const naiveExpiryLayout = "2006-01-02T15:04:05.999999999"

// Credential is an authorized-user OAuth2 credential.
type Credential struct {
	Token        string
	RefreshToken string
	TokenURI     string
	ClientID     string
	ClientSecret string
	Scopes       []string

	// Expiry is zero when the access token carries no known expiry.
	Expiry time.Time
}

// credentialJSON is the persisted form of a Credential.
type credentialJSON struct {
	Token        string   `json:"token,omitempty"`
	RefreshToken string   `json:"refresh_token,omitempty"`
	TokenURI     string   `json:"token_uri,omitempty"`
	ClientID     string   `json:"client_id,omitempty"`
	ClientSecret string   `json:"client_secret,omitempty"`
	Scopes       []string `json:"scopes,omitempty"`
	Expiry       string   `json:"expiry,omitempty"`
}

// ParseCredential decodes a credential blob. It accepts both the persisted
// authorized-user layout ("token", "scopes") and raw OAuth token responses
// ("access_token", space separated "scope").
func ParseCredential(data []byte) (*Credential, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: not valid JSON", ErrMalformedCredential)
	}

	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrMalformedCredential)
	}

	cred := &Credential{
		Token:        firstString(root, "token", "access_token"),
		RefreshToken: root.Get("refresh_token").String(),
		TokenURI:     root.Get("token_uri").String(),
		ClientID:     root.Get("client_id").String(),
		ClientSecret: root.Get("client_secret").String(),
		Scopes:       parseScopes(root),
	}

	if raw := root.Get("expiry").String(); raw != "" {
		expiry, err := parseExpiry(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid expiry %q", ErrMalformedCredential, raw)
		}
		cred.Expiry = expiry
	}

	if cred.Token == "" && cred.RefreshToken == "" {
		return nil, fmt.Errorf("%w: neither token nor refresh_token present", ErrMalformedCredential)
	}

	return cred, nil
}

func firstString(root gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := root.Get(p); v.Type == gjson.String && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

func parseScopes(root gjson.Result) []string {
	for _, p := range []string{"scopes", "scope"} {
		v := root.Get(p)
		switch {
		case v.IsArray():
			var scopes []string
			for _, s := range v.Array() {
				if s.String() != "" {
					scopes = append(scopes, s.String())
				}
			}
			return scopes
		case v.Type == gjson.String:
			return strings.Fields(v.String())
		}
	}
	return nil
}

func parseExpiry(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.ParseInLocation(naiveExpiryLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

// MarshalJSON writes the authorized-user layout.
func (c *Credential) MarshalJSON() ([]byte, error) {
	out := credentialJSON{
		Token:        c.Token,
		RefreshToken: c.RefreshToken,
		TokenURI:     c.TokenURI,
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Scopes:       c.Scopes,
	}
	if !c.Expiry.IsZero() {
		out.Expiry = c.Expiry.UTC().Format(time.RFC3339Nano)
	}
	return json.Marshal(out)
}

// OAuthToken converts the credential into an oauth2 token.
func (c *Credential) OAuthToken() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.Token,
		TokenType:    "Bearer",
		RefreshToken: c.RefreshToken,
		Expiry:       c.Expiry,
	}
}

// Valid reports whether the access token is present and not about to expire.
func (c *Credential) Valid() bool {
	return c != nil && c.OAuthToken().Valid()
}

// CanRefresh reports whether a refresh token is available.
func (c *Credential) CanRefresh() bool {
	return c != nil && c.RefreshToken != ""
}

// withToken returns a copy of c carrying the access token, expiry and (when
// issued) refresh token of tok.
func (c *Credential) withToken(tok *oauth2.Token) *Credential {
	out := *c
	out.Token = tok.AccessToken
	out.Expiry = tok.Expiry
	if tok.RefreshToken != "" {
		out.RefreshToken = tok.RefreshToken
	}
	return &out
}

// LoadCredentialFile reads a persisted credential. A missing file is reported
// with an error satisfying errors.Is(err, os.ErrNotExist).
func LoadCredentialFile(path string) (*Credential, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseCredential(data)
}

// SaveCredentialFile persists cred to path with owner-only permissions.
func SaveCredentialFile(path string, cred *Credential) error {
	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("failed to encode credential: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("failed to create token directory: %w", err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".token-*")
	if err != nil {
		return fmt.Errorf("failed to create token file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to restrict token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace token file: %w", err)
	}
	return nil
}
