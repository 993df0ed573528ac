package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server ServerConfig `mapstructure:"server" validate:"required"`
	Log    LogConfig    `mapstructure:"log"    validate:"required"`
	LLM    LLMConfig    `mapstructure:"llm"    validate:"required"`
	Docs   DocsConfig   `mapstructure:"docs"   validate:"required"`
}

// ServerConfig contains the HTTP server settings used by `prdgen serve`.
type ServerConfig struct {
	Port        int `mapstructure:"port"          validate:"required,gt=0,lt=65536"`
	MaxUploadMB int `mapstructure:"max_upload_mb" validate:"required,gt=0,lte=100"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"  validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

// LLMConfig contains all LLM integration related settings.
type LLMConfig struct {
	// GeminiAPIKey is optional here; requests may carry their own key and the
	// service rejects a call when neither is present.
	GeminiAPIKey string `mapstructure:"gemini_api_key"`

	ModelName string `mapstructure:"model_name" validate:"required"`
	BaseURL   string `mapstructure:"base_url"   validate:"required,url"`

	// MaxRetries bounds how many times a rate-limited (HTTP 429) call is retried.
	MaxRetries int `mapstructure:"max_retries" validate:"gte=0,lte=10"`

	// RetryDelay is the first backoff delay; it doubles on every retry.
	RetryDelay time.Duration `mapstructure:"retry_delay" validate:"gt=0"`

	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"gte=0"`
}

// DocsConfig contains the Google Docs export settings.
type DocsConfig struct {
	// CredentialsFile is the OAuth client registration (client secret) file.
	CredentialsFile string `mapstructure:"credentials_file" validate:"required"`

	// TokenFile is where the authorized-user credential is persisted.
	TokenFile string `mapstructure:"token_file" validate:"required"`

	// SecretsFile and SecretKey locate a stored credential blob in a secrets store.
	SecretsFile string `mapstructure:"secrets_file"`
	SecretKey   string `mapstructure:"secret_key"   validate:"required"`

	Scopes []string `mapstructure:"scopes" validate:"required,min=1,dive,required"`

	// NoBrowser prints the consent URL instead of launching a browser.
	NoBrowser      bool          `mapstructure:"no_browser"`
	ConsentTimeout time.Duration `mapstructure:"consent_timeout" validate:"gt=0"`

	// Endpoint overrides the Docs API base URL. Empty means the public endpoint.
	Endpoint string `mapstructure:"endpoint" validate:"omitempty,url"`
}
