package gdocs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/phrazzld/prdgen/internal/config"
	"github.com/phrazzld/prdgen/internal/export"
	"github.com/phrazzld/prdgen/internal/redact"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/docs/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Credential sources, used in logs.
const (
	sourceSecrets = "secrets"
	sourceFile    = "token_file"
	sourceRefresh = "refresh"
	sourceConsent = "consent"
)

// Exporter implements export.Exporter against the Google Docs API.
type Exporter struct {
	logger *slog.Logger
	cfg    config.DocsConfig

	secrets    SecretStore
	consent    ConsentFlow
	httpClient *http.Client
}

var _ export.Exporter = (*Exporter)(nil)

// Option customizes an Exporter.
type Option func(*Exporter)

// WithSecretStore replaces the secrets store consulted first.
func WithSecretStore(store SecretStore) Option {
	return func(e *Exporter) {
		e.secrets = store
	}
}

// WithConsentFlow replaces the interactive consent flow.
func WithConsentFlow(flow ConsentFlow) Option {
	return func(e *Exporter) {
		e.consent = flow
	}
}

// WithHTTPClient sets the base HTTP client for token and Docs API calls.
func WithHTTPClient(client *http.Client) Option {
	return func(e *Exporter) {
		e.httpClient = client
	}
}

// NewExporter creates an Exporter from the Docs configuration.
func NewExporter(logger *slog.Logger, cfg config.DocsConfig, opts ...Option) (*Exporter, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.TokenFile == "" {
		return nil, errors.New("token file path cannot be empty")
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{config.DefaultDocsScope}
	}

	e := &Exporter{
		logger:     logger,
		cfg:        cfg,
		secrets:    NewFileSecretStore(cfg.SecretsFile),
		httpClient: http.DefaultClient,
		consent: &LocalServerFlow{
			NoBrowser: cfg.NoBrowser,
			Timeout:   cfg.ConsentTimeout,
			Logger:    logger,
		},
	}

	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// CreateDocument implements export.Exporter. It creates a blank document
// titled title and inserts body at index 1 as literal text.
func (e *Exporter) CreateDocument(ctx context.Context, title, body string) (string, error) {
	if body == "" {
		return "", export.ErrInvalidDocument
	}

	cred, _, err := e.resolveCredential(ctx)
	if err != nil {
		return "", err
	}

	srv, err := e.docsService(ctx, cred)
	if err != nil {
		return "", fmt.Errorf("%w: %s", export.ErrProviderAPI, redact.Error(err))
	}

	doc, err := srv.Documents.Create(&docs.Document{Title: title}).Context(ctx).Do()
	if err != nil {
		return "", e.providerError(ctx, "create", err)
	}

	e.logger.InfoContext(ctx, "Created document", "document_id", doc.DocumentId)

	update := &docs.BatchUpdateDocumentRequest{
		Requests: []*docs.Request{{
			InsertText: &docs.InsertTextRequest{
				Location: &docs.Location{Index: 1},
				Text:     body,
			},
		}},
	}
	if _, err := srv.Documents.BatchUpdate(doc.DocumentId, update).Context(ctx).Do(); err != nil {
		return "", e.providerError(ctx, "batch_update", err)
	}

	e.logger.InfoContext(ctx, "Inserted document body",
		"document_id", doc.DocumentId,
		"body_length", len(body))

	return export.DocumentURL(doc.DocumentId), nil
}

// Authorize resolves a usable credential, running consent if necessary, so
// that later exports do not block on the browser. It returns where the
// credential is stored.
func (e *Exporter) Authorize(ctx context.Context) (string, error) {
	_, location, err := e.resolveCredential(ctx)
	return location, err
}

func (e *Exporter) docsService(ctx context.Context, cred *Credential) (*docs.Service, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, e.httpClient)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(cred.OAuthToken()))

	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if e.cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(e.cfg.Endpoint))
	}
	return docs.NewService(ctx, opts...)
}

func (e *Exporter) providerError(ctx context.Context, op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		e.logger.ErrorContext(ctx, "Docs API returned an error",
			"operation", op,
			"status", apiErr.Code,
			"error", redact.String(apiErr.Message))
		return fmt.Errorf("%w: %s", export.ErrProviderAPI, redact.Error(apiErr))
	}

	e.logger.ErrorContext(ctx, "Docs API call failed",
		"operation", op,
		"error", redact.Error(err))
	return fmt.Errorf("%w: %s", export.ErrProviderAPI, redact.Error(err))
}

// storedCredential is a credential read from one of the local sources.
type storedCredential struct {
	cred     *Credential
	source   string
	location string
}

// resolveCredential returns the first viable credential and where it now
// lives. Any valid stored credential wins over a refreshable one; a refresh is
// persisted to the token file, so the next resolution finds it valid. Consent
// runs only when no source is viable.
func (e *Exporter) resolveCredential(ctx context.Context) (*Credential, string, error) {
	stored := e.storedCredentials(ctx)

	for _, sc := range stored {
		if sc.cred.Valid() {
			e.logger.DebugContext(ctx, "Using stored credential", "source", sc.source)
			return sc.cred, sc.location, nil
		}
	}

	for _, sc := range stored {
		if !sc.cred.CanRefresh() {
			e.logger.DebugContext(ctx, "Skipping expired credential without refresh token", "source", sc.source)
			continue
		}

		refreshed, err := e.refresh(ctx, sc.cred)
		if err != nil {
			e.logger.WarnContext(ctx, "Credential refresh failed, discarding credential",
				"source", sc.source,
				"error", redact.Error(err))
			continue
		}

		e.logger.InfoContext(ctx, "Refreshed credential", "source", sc.source)
		location := sc.location
		if e.persist(ctx, refreshed, sourceRefresh) {
			location = e.cfg.TokenFile
		}
		return refreshed, location, nil
	}

	return e.consentCredential(ctx)
}

// storedCredentials returns the parseable credentials from the secrets store
// and the token file, in that order.
func (e *Exporter) storedCredentials(ctx context.Context) []storedCredential {
	var stored []storedCredential

	if e.secrets != nil && e.cfg.SecretKey != "" {
		blob, ok, err := e.secrets.Secret(e.cfg.SecretKey)
		switch {
		case err != nil:
			e.logger.WarnContext(ctx, "Ignoring unreadable secrets store",
				"key", e.cfg.SecretKey,
				"error", err)
		case ok:
			cred, err := ParseCredential([]byte(blob))
			if err == nil {
				stored = append(stored, storedCredential{
					cred:     cred,
					source:   sourceSecrets,
					location: fmt.Sprintf("secrets store key %q", e.cfg.SecretKey),
				})
				break
			}
			e.logger.WarnContext(ctx, "Ignoring stored secret credential",
				"key", e.cfg.SecretKey,
				"error", err)
		}
	}

	cred, err := LoadCredentialFile(e.cfg.TokenFile)
	switch {
	case err == nil:
		stored = append(stored, storedCredential{cred: cred, source: sourceFile, location: e.cfg.TokenFile})
	case errors.Is(err, os.ErrNotExist):
	default:
		e.logger.WarnContext(ctx, "Ignoring unreadable token file",
			"path", e.cfg.TokenFile,
			"error", err)
	}

	return stored
}

func (e *Exporter) refresh(ctx context.Context, cred *Credential) (*Credential, error) {
	oauthCfg := e.refreshConfig(cred)

	ctx = context.WithValue(ctx, oauth2.HTTPClient, e.httpClient)
	tok, err := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cred.RefreshToken}).Token()
	if err != nil {
		return nil, err
	}

	refreshed := cred.withToken(tok)
	if refreshed.TokenURI == "" {
		refreshed.TokenURI = oauthCfg.Endpoint.TokenURL
	}
	if refreshed.ClientID == "" {
		refreshed.ClientID = oauthCfg.ClientID
		refreshed.ClientSecret = oauthCfg.ClientSecret
	}
	if len(refreshed.Scopes) == 0 {
		refreshed.Scopes = e.cfg.Scopes
	}
	return refreshed, nil
}

// refreshConfig builds the OAuth client used for a refresh. Client identity
// comes from the credential, falling back to the registration file.
func (e *Exporter) refreshConfig(cred *Credential) *oauth2.Config {
	oauthCfg := &oauth2.Config{
		ClientID:     cred.ClientID,
		ClientSecret: cred.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       e.cfg.Scopes,
	}

	if cred.ClientID == "" {
		if reg, err := e.registration(); err == nil {
			oauthCfg.ClientID = reg.ClientID
			oauthCfg.ClientSecret = reg.ClientSecret
			oauthCfg.Endpoint = reg.Endpoint
		}
	}

	if cred.TokenURI != "" {
		oauthCfg.Endpoint.TokenURL = cred.TokenURI
	}
	return oauthCfg
}

// registration parses the client registration file.
func (e *Exporter) registration() (*oauth2.Config, error) {
	data, err := os.ReadFile(e.cfg.CredentialsFile)
	if err != nil {
		return nil, err
	}
	return google.ConfigFromJSON(data, e.cfg.Scopes...)
}

func (e *Exporter) consentCredential(ctx context.Context) (*Credential, string, error) {
	reg, err := e.registration()
	if errors.Is(err, os.ErrNotExist) {
		e.logger.WarnContext(ctx, "No usable credential and no client registration file",
			"credentials_file", e.cfg.CredentialsFile)
		return nil, "", export.ErrCredentialsNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("%w: invalid client registration file: %s", export.ErrAuthenticationFailed, err)
	}

	if e.consent == nil {
		return nil, "", fmt.Errorf("%w: interactive consent is not available", export.ErrAuthenticationFailed)
	}

	e.logger.InfoContext(ctx, "Starting interactive consent flow")

	ctx = context.WithValue(ctx, oauth2.HTTPClient, e.httpClient)
	tok, err := e.consent.Run(ctx, reg)
	if err != nil {
		e.logger.ErrorContext(ctx, "Consent flow failed", "error", redact.Error(err))
		return nil, "", fmt.Errorf("%w: %s", export.ErrAuthenticationFailed, redact.Error(err))
	}

	cred := (&Credential{
		TokenURI:     reg.Endpoint.TokenURL,
		ClientID:     reg.ClientID,
		ClientSecret: reg.ClientSecret,
		Scopes:       reg.Scopes,
	}).withToken(tok)

	location := "not persisted"
	if e.persist(ctx, cred, sourceConsent) {
		location = e.cfg.TokenFile
	}
	return cred, location, nil
}

// persist writes cred to the token file and reports whether it succeeded. A
// write failure is logged; the credential is still usable for the current
// export.
func (e *Exporter) persist(ctx context.Context, cred *Credential, source string) bool {
	if err := SaveCredentialFile(e.cfg.TokenFile, cred); err != nil {
		e.logger.WarnContext(ctx, "Failed to persist credential",
			"path", e.cfg.TokenFile,
			"source", source,
			"error", err)
		return false
	}
	e.logger.InfoContext(ctx, "Persisted credential", "path", e.cfg.TokenFile, "source", source)
	return true
}
