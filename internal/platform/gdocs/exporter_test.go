package gdocs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/phrazzld/prdgen/internal/config"
	"github.com/phrazzld/prdgen/internal/export"
	"github.com/phrazzld/prdgen/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// mapSecrets is an in-memory SecretStore. The errKey entry, when set, makes
// every lookup fail with its value.
type mapSecrets map[string]string

const errKey = "\x00err"

func (m mapSecrets) Secret(key string) (string, bool, error) {
	if msg, ok := m[errKey]; ok {
		return "", false, errors.New(msg)
	}
	v, ok := m[key]
	return v, ok, nil
}

// fakeConsent records invocations and returns a scripted result.
type fakeConsent struct {
	calls int
	cfg   *oauth2.Config
	tok   *oauth2.Token
	err   error
}

func (f *fakeConsent) Run(_ context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	f.calls++
	f.cfg = cfg
	return f.tok, f.err
}

// docsRecorder is a fake Docs API.
type docsRecorder struct {
	mu          sync.Mutex
	auth        []string
	title       string
	insertIndex float64
	insertText  string
	batchCalls  int
	failCreate  bool
}

func (d *docsRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.auth = append(d.auth, r.Header.Get("Authorization"))
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/v1/documents":
		if d.failCreate {
			w.WriteHeader(http.StatusForbidden)
			_, _ = io.WriteString(w, `{"error":{"code":403,"message":"The caller does not have permission","status":"PERMISSION_DENIED"}}`)
			return
		}
		var body struct {
			Title string `json:"title"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		d.title = body.Title
		_, _ = io.WriteString(w, `{"documentId":"doc-abc_123","title":"`+body.Title+`"}`)

	case r.Method == http.MethodPost && r.URL.Path == "/v1/documents/doc-abc_123:batchUpdate":
		d.batchCalls++
		var body struct {
			Requests []struct {
				InsertText struct {
					Location struct {
						Index float64 `json:"index"`
					} `json:"location"`
					Text string `json:"text"`
				} `json:"insertText"`
			} `json:"requests"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if len(body.Requests) == 1 {
			d.insertIndex = body.Requests[0].InsertText.Location.Index
			d.insertText = body.Requests[0].InsertText.Text
		}
		_, _ = io.WriteString(w, `{"documentId":"doc-abc_123","replies":[{}]}`)

	default:
		http.NotFound(w, r)
	}
}

// tokenServer is a fake OAuth token endpoint.
type tokenServer struct {
	*httptest.Server
	calls     atomic.Int32
	grantType atomic.Value
}

func newTokenServer(t *testing.T, status int, body string) *tokenServer {
	t.Helper()
	ts := &tokenServer{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.calls.Add(1)
		_ = r.ParseForm()
		ts.grantType.Store(r.Form.Get("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(ts.Close)
	return ts
}

type exporterFixture struct {
	dir      string
	cfg      config.DocsConfig
	docs     *docsRecorder
	docsSrv  *httptest.Server
	consent  *fakeConsent
	secrets  mapSecrets
	logs     *logger.TestLogBuffer
	exporter *Exporter
}

func newFixture(t *testing.T) *exporterFixture {
	t.Helper()

	dir := t.TempDir()
	f := &exporterFixture{
		dir:     dir,
		docs:    &docsRecorder{},
		consent: &fakeConsent{err: errors.New("consent should not run")},
		secrets: mapSecrets{},
	}
	f.docsSrv = httptest.NewServer(f.docs)
	t.Cleanup(f.docsSrv.Close)

	f.cfg = config.DocsConfig{
		CredentialsFile: filepath.Join(dir, "credentials.json"),
		TokenFile:       filepath.Join(dir, "token.json"),
		SecretKey:       "google_token",
		Scopes:          []string{config.DefaultDocsScope},
		ConsentTimeout:  time.Second,
		Endpoint:        f.docsSrv.URL + "/",
	}

	log, buf := logger.NewTestLogger(t)
	f.logs = buf

	exp, err := NewExporter(log, f.cfg,
		WithSecretStore(f.secrets),
		WithConsentFlow(f.consent))
	require.NoError(t, err)
	f.exporter = exp
	return f
}

func (f *exporterFixture) writeRegistration(t *testing.T, tokenURL string) {
	t.Helper()
	reg := fmt.Sprintf(`{"installed":{"client_id":"reg-client","client_secret":"reg-secret",`+
		`"auth_uri":"https://accounts.example.com/auth","token_uri":%q,"redirect_uris":["http://localhost"]}}`, tokenURL)
	require.NoError(t, os.WriteFile(f.cfg.CredentialsFile, []byte(reg), 0o600))
}

func credentialBlob(t *testing.T, cred *Credential) string {
	t.Helper()
	data, err := json.Marshal(cred)
	require.NoError(t, err)
	return string(data)
}

var docURLPattern = regexp.MustCompile(`^https://docs\.google\.com/document/d/([^/]+)/edit$`)

func TestCreateDocumentWithValidSecretCredential(t *testing.T) {
	f := newFixture(t)
	f.secrets["google_token"] = credentialBlob(t, &Credential{
		Token:  "valid-access",
		Expiry: time.Now().Add(time.Hour),
	})

	body := "# PRD\n\n* literal markdown *"
	link, err := f.exporter.CreateDocument(context.Background(), "My PRD", body)

	require.NoError(t, err)
	m := docURLPattern.FindStringSubmatch(link)
	require.NotNil(t, m, "unexpected URL %q", link)
	assert.Equal(t, "doc-abc_123", m[1], "URL carries the id returned by create")

	assert.Equal(t, "My PRD", f.docs.title)
	assert.Equal(t, 1, f.docs.batchCalls, "exactly one batch update")
	assert.Equal(t, float64(1), f.docs.insertIndex)
	assert.Equal(t, body, f.docs.insertText, "body is inserted verbatim")
	for _, h := range f.docs.auth {
		assert.Equal(t, "Bearer valid-access", h)
	}
	assert.Equal(t, 0, f.consent.calls)
	assert.NoFileExists(t, f.cfg.TokenFile, "a valid stored credential is not rewritten")
}

func TestCreateDocumentRefreshesExpiredSecretCredential(t *testing.T) {
	f := newFixture(t)
	tokens := newTokenServer(t, http.StatusOK,
		`{"access_token":"refreshed-access","token_type":"Bearer","expires_in":3600}`)

	f.secrets["google_token"] = credentialBlob(t, &Credential{
		Token:        "stale-access",
		RefreshToken: "1//refresh",
		TokenURI:     tokens.URL,
		ClientID:     "cid",
		ClientSecret: "csecret",
		Expiry:       time.Now().Add(-time.Hour),
	})

	link, err := f.exporter.CreateDocument(context.Background(), "T", "body")

	require.NoError(t, err)
	assert.Regexp(t, docURLPattern, link)
	assert.Equal(t, int32(1), tokens.calls.Load())
	assert.Equal(t, "refresh_token", tokens.grantType.Load())

	require.NotEmpty(t, f.docs.auth)
	for _, h := range f.docs.auth {
		assert.Equal(t, "Bearer refreshed-access", h, "document calls use the refreshed token")
	}

	persisted, err := LoadCredentialFile(f.cfg.TokenFile)
	require.NoError(t, err)
	assert.Equal(t, "refreshed-access", persisted.Token)
	assert.Equal(t, "1//refresh", persisted.RefreshToken)
	assert.Equal(t, tokens.URL, persisted.TokenURI)
	assert.True(t, persisted.Valid())

	logger.AssertLogNotContains(t, f.logs, "refreshed-access")
	logger.AssertLogNotContains(t, f.logs, "1//refresh")
}

func TestCreateDocumentUsesTokenFile(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, SaveCredentialFile(f.cfg.TokenFile, &Credential{
		Token:  "file-access",
		Expiry: time.Now().Add(time.Hour),
	}))

	_, err := f.exporter.CreateDocument(context.Background(), "T", "body")

	require.NoError(t, err)
	assert.Equal(t, "Bearer file-access", f.docs.auth[0])
}

func TestCreateDocumentMalformedSecretFallsThrough(t *testing.T) {
	f := newFixture(t)
	f.secrets["google_token"] = "{not json"
	require.NoError(t, SaveCredentialFile(f.cfg.TokenFile, &Credential{
		Token:  "file-access",
		Expiry: time.Now().Add(time.Hour),
	}))

	_, err := f.exporter.CreateDocument(context.Background(), "T", "body")

	require.NoError(t, err)
	assert.Equal(t, "Bearer file-access", f.docs.auth[0])
	logger.AssertLogContains(t, f.logs, "Ignoring stored secret credential")
}

func TestCreateDocumentCredentialsNotFound(t *testing.T) {
	f := newFixture(t)

	link, err := f.exporter.CreateDocument(context.Background(), "T", "body")

	assert.Empty(t, link)
	assert.ErrorIs(t, err, export.ErrCredentialsNotFound)
	assert.Empty(t, f.docs.auth, "no document calls are attempted")
	assert.Equal(t, 0, f.consent.calls, "no consent without a registration file")
}

func TestCreateDocumentRefreshFailureFallsToConsent(t *testing.T) {
	f := newFixture(t)
	tokens := newTokenServer(t, http.StatusBadRequest, `{"error":"invalid_grant"}`)
	f.writeRegistration(t, tokens.URL)

	require.NoError(t, SaveCredentialFile(f.cfg.TokenFile, &Credential{
		Token:        "stale",
		RefreshToken: "revoked",
		TokenURI:     tokens.URL,
		ClientID:     "cid",
		Expiry:       time.Now().Add(-time.Hour),
	}))
	f.consent.err = nil
	f.consent.tok = &oauth2.Token{
		AccessToken:  "consent-access",
		RefreshToken: "consent-refresh",
		Expiry:       time.Now().Add(time.Hour),
	}

	_, err := f.exporter.CreateDocument(context.Background(), "T", "body")

	require.NoError(t, err)
	assert.Equal(t, 1, f.consent.calls)
	assert.Equal(t, "reg-client", f.consent.cfg.ClientID)
	assert.Equal(t, []string{config.DefaultDocsScope}, f.consent.cfg.Scopes)
	assert.Equal(t, "Bearer consent-access", f.docs.auth[0])

	persisted, err := LoadCredentialFile(f.cfg.TokenFile)
	require.NoError(t, err)
	assert.Equal(t, "consent-access", persisted.Token)
	assert.Equal(t, "consent-refresh", persisted.RefreshToken)
	assert.Equal(t, "reg-client", persisted.ClientID)
	assert.Equal(t, "reg-secret", persisted.ClientSecret)
	assert.Equal(t, tokens.URL, persisted.TokenURI)

	info, err := os.Stat(f.cfg.TokenFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestCreateDocumentConsentUnavailable(t *testing.T) {
	f := newFixture(t)
	f.writeRegistration(t, "https://oauth2.example.com/token")
	f.consent.err = errors.New("cannot launch a browser for consent: exec: \"xdg-open\": executable file not found in $PATH")

	_, err := f.exporter.CreateDocument(context.Background(), "T", "body")

	require.Error(t, err)
	assert.ErrorIs(t, err, export.ErrAuthenticationFailed)
	assert.NotErrorIs(t, err, export.ErrCredentialsNotFound)
	assert.Contains(t, err.Error(), "browser")
	assert.Empty(t, f.docs.auth)
}

func TestCreateDocumentInvalidRegistration(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(f.cfg.CredentialsFile, []byte(`{"nope":true}`), 0o600))

	_, err := f.exporter.CreateDocument(context.Background(), "T", "body")

	assert.ErrorIs(t, err, export.ErrAuthenticationFailed)
	assert.Equal(t, 0, f.consent.calls)
}

func TestCreateDocumentProviderError(t *testing.T) {
	f := newFixture(t)
	f.docs.failCreate = true
	f.secrets["google_token"] = credentialBlob(t, &Credential{Token: "valid", Expiry: time.Now().Add(time.Hour)})

	_, err := f.exporter.CreateDocument(context.Background(), "T", "body")

	require.Error(t, err)
	assert.ErrorIs(t, err, export.ErrProviderAPI)
	assert.Contains(t, err.Error(), "The caller does not have permission")
	assert.Equal(t, 0, f.docs.batchCalls)
}

func TestCreateDocumentRejectsEmptyBody(t *testing.T) {
	f := newFixture(t)

	_, err := f.exporter.CreateDocument(context.Background(), "T", "")

	assert.ErrorIs(t, err, export.ErrInvalidDocument)
}

func TestAuthorizeRunsConsentOnce(t *testing.T) {
	f := newFixture(t)
	f.writeRegistration(t, "https://oauth2.example.com/token")
	f.consent.err = nil
	f.consent.tok = &oauth2.Token{AccessToken: "a", RefreshToken: "r", Expiry: time.Now().Add(time.Hour)}

	location, err := f.exporter.Authorize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, f.cfg.TokenFile, location)

	location, err = f.exporter.Authorize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, f.cfg.TokenFile, location)

	assert.Equal(t, 1, f.consent.calls, "second call reuses the persisted token")
}

func TestAuthorizeReportsSecretsStore(t *testing.T) {
	f := newFixture(t)
	f.secrets["google_token"] = credentialBlob(t, &Credential{Token: "valid", Expiry: time.Now().Add(time.Hour)})

	location, err := f.exporter.Authorize(context.Background())

	require.NoError(t, err)
	assert.Equal(t, `secrets store key "google_token"`, location)
	assert.NoFileExists(t, f.cfg.TokenFile)
}

func TestCreateDocumentExpiredSecretFallsBackToTokenFile(t *testing.T) {
	tests := []struct {
		name   string
		secret func(tokenURL string) *Credential
	}{
		{
			name: "no refresh token",
			secret: func(string) *Credential {
				return &Credential{Token: "stale-secret", Expiry: time.Now().Add(-time.Hour)}
			},
		},
		{
			name: "refresh token present",
			secret: func(tokenURL string) *Credential {
				return &Credential{
					Token:        "stale-secret",
					RefreshToken: "1//secret-refresh",
					TokenURI:     tokenURL,
					ClientID:     "cid",
					Expiry:       time.Now().Add(-time.Hour),
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tokens := newTokenServer(t, http.StatusOK,
				`{"access_token":"unexpected","token_type":"Bearer","expires_in":3600}`)
			f.secrets["google_token"] = credentialBlob(t, tt.secret(tokens.URL))
			require.NoError(t, SaveCredentialFile(f.cfg.TokenFile, &Credential{
				Token:  "good-file-token",
				Expiry: time.Now().Add(time.Hour),
			}))

			_, err := f.exporter.CreateDocument(context.Background(), "T", "body")

			require.NoError(t, err)
			require.NotEmpty(t, f.docs.auth)
			assert.Equal(t, "Bearer good-file-token", f.docs.auth[0])
			assert.Equal(t, int32(0), tokens.calls.Load(), "a valid token file is used before refreshing")
			assert.Equal(t, 0, f.consent.calls)
		})
	}
}

func TestCreateDocumentSecretRefreshFailureTriesTokenFile(t *testing.T) {
	f := newFixture(t)
	failing := newTokenServer(t, http.StatusBadRequest, `{"error":"invalid_grant"}`)
	working := newTokenServer(t, http.StatusOK,
		`{"access_token":"file-refreshed","token_type":"Bearer","expires_in":3600}`)

	f.secrets["google_token"] = credentialBlob(t, &Credential{
		Token:        "stale-secret",
		RefreshToken: "revoked",
		TokenURI:     failing.URL,
		ClientID:     "cid",
		Expiry:       time.Now().Add(-time.Hour),
	})
	require.NoError(t, SaveCredentialFile(f.cfg.TokenFile, &Credential{
		Token:        "stale-file",
		RefreshToken: "1//file-refresh",
		TokenURI:     working.URL,
		ClientID:     "cid",
		Expiry:       time.Now().Add(-time.Hour),
	}))

	_, err := f.exporter.CreateDocument(context.Background(), "T", "body")

	require.NoError(t, err)
	assert.Equal(t, int32(1), failing.calls.Load())
	assert.Equal(t, int32(1), working.calls.Load())
	assert.Equal(t, "Bearer file-refreshed", f.docs.auth[0])
	assert.Equal(t, 0, f.consent.calls)

	persisted, err := LoadCredentialFile(f.cfg.TokenFile)
	require.NoError(t, err)
	assert.Equal(t, "file-refreshed", persisted.Token)
	assert.Equal(t, "1//file-refresh", persisted.RefreshToken)
}

func TestCreateDocumentRefreshedSecretIsReusedFromTokenFile(t *testing.T) {
	f := newFixture(t)
	tokens := newTokenServer(t, http.StatusOK,
		`{"access_token":"refreshed-access","token_type":"Bearer","expires_in":3600}`)
	f.secrets["google_token"] = credentialBlob(t, &Credential{
		Token:        "stale-secret",
		RefreshToken: "1//refresh",
		TokenURI:     tokens.URL,
		ClientID:     "cid",
		Expiry:       time.Now().Add(-time.Hour),
	})

	_, err := f.exporter.CreateDocument(context.Background(), "T", "first")
	require.NoError(t, err)
	_, err = f.exporter.CreateDocument(context.Background(), "T", "second")
	require.NoError(t, err)

	assert.Equal(t, int32(1), tokens.calls.Load(), "second export reuses the persisted refresh")
	for _, h := range f.docs.auth {
		assert.Equal(t, "Bearer refreshed-access", h)
	}
}

func TestCreateDocumentUnreadableSecretsStoreIsLogged(t *testing.T) {
	f := newFixture(t)
	f.secrets[errKey] = "failed to read secrets file: toml: line 1: expected '='"
	require.NoError(t, SaveCredentialFile(f.cfg.TokenFile, &Credential{
		Token:  "file-access",
		Expiry: time.Now().Add(time.Hour),
	}))

	_, err := f.exporter.CreateDocument(context.Background(), "T", "body")

	require.NoError(t, err)
	assert.Equal(t, "Bearer file-access", f.docs.auth[0])
	logger.AssertLogContains(t, f.logs, "Ignoring unreadable secrets store")
	logger.AssertLogContains(t, f.logs, "expected '='")
}

func TestNewExporterValidation(t *testing.T) {
	log, _ := logger.NewTestLogger(t)

	_, err := NewExporter(nil, config.DocsConfig{TokenFile: "t.json"})
	assert.Error(t, err)

	_, err = NewExporter(log, config.DocsConfig{})
	assert.Error(t, err)

	exp, err := NewExporter(log, config.DocsConfig{TokenFile: "t.json"})
	require.NoError(t, err)
	assert.Equal(t, []string{config.DefaultDocsScope}, exp.cfg.Scopes)
}

func TestLocalServerFlow(t *testing.T) {
	var exchanged url.Values
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		exchanged = r.Form
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"granted","refresh_token":"granted-refresh","token_type":"Bearer","expires_in":3600}`)
	}))
	defer tokenSrv.Close()

	var authURL *url.URL
	flow := &LocalServerFlow{
		Out:     io.Discard,
		Timeout: 5 * time.Second,
		OpenBrowser: func(target string) error {
			u, err := url.Parse(target)
			if err != nil {
				return err
			}
			authURL = u
			q := u.Query()
			cb := q.Get("redirect_uri") + "?code=the-code&state=" + url.QueryEscape(q.Get("state"))
			resp, err := http.Get(cb)
			if err != nil {
				return err
			}
			return resp.Body.Close()
		},
	}

	cfg := &oauth2.Config{
		ClientID:     "cid",
		ClientSecret: "cs",
		Scopes:       []string{config.DefaultDocsScope},
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://accounts.example.com/auth",
			TokenURL: tokenSrv.URL,
		},
	}

	tok, err := flow.Run(context.Background(), cfg)

	require.NoError(t, err)
	assert.Equal(t, "granted", tok.AccessToken)
	assert.Equal(t, "granted-refresh", tok.RefreshToken)

	q := authURL.Query()
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "consent", q.Get("prompt"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.Regexp(t, `^http://localhost:\d+/$`, q.Get("redirect_uri"))

	assert.Equal(t, "the-code", exchanged.Get("code"))
	assert.NotEmpty(t, exchanged.Get("code_verifier"))
	assert.Empty(t, cfg.RedirectURL, "caller config is not mutated")
}

func TestLocalServerFlowDenied(t *testing.T) {
	flow := &LocalServerFlow{
		Out:     io.Discard,
		Timeout: 5 * time.Second,
		OpenBrowser: func(target string) error {
			u, _ := url.Parse(target)
			resp, err := http.Get(u.Query().Get("redirect_uri") + "?error=access_denied")
			if err != nil {
				return err
			}
			return resp.Body.Close()
		},
	}

	_, err := flow.Run(context.Background(), &oauth2.Config{ClientID: "cid"})

	assert.ErrorIs(t, err, ErrConsentDenied)
}

func TestLocalServerFlowStateMismatch(t *testing.T) {
	flow := &LocalServerFlow{
		Out:     io.Discard,
		Timeout: 5 * time.Second,
		OpenBrowser: func(target string) error {
			u, _ := url.Parse(target)
			resp, err := http.Get(u.Query().Get("redirect_uri") + "?code=c&state=forged")
			if err != nil {
				return err
			}
			return resp.Body.Close()
		},
	}

	_, err := flow.Run(context.Background(), &oauth2.Config{ClientID: "cid"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "state mismatch")
}

func TestLocalServerFlowBrowserFailure(t *testing.T) {
	flow := &LocalServerFlow{
		Out:         io.Discard,
		OpenBrowser: func(string) error { return errors.New("no display") },
	}

	_, err := flow.Run(context.Background(), &oauth2.Config{ClientID: "cid"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot launch a browser")
}

func TestLocalServerFlowTimeout(t *testing.T) {
	flow := &LocalServerFlow{
		Out:       io.Discard,
		NoBrowser: true,
		Timeout:   50 * time.Millisecond,
	}

	_, err := flow.Run(context.Background(), &oauth2.Config{ClientID: "cid"})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
