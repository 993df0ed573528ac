package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable read by Load.
const EnvPrefix = "PRDGEN"

// DefaultDocsScope grants create/edit access to Google Docs documents.
const DefaultDocsScope = "https://www.googleapis.com/auth/documents"

var validate = validator.New()

// Load configuration from environment variables and optionally a config file.
// Environment variables take precedence over values from config files.
// A .env file in the working directory, when present, is loaded into the
// process environment first.
//
// If path is empty, a file named "prdgen" (any extension viper understands) is
// looked up in the working directory; a missing file is not an error.
// Returns a populated Config struct or an error if loading/validation fails.
func Load(path string) (*Config, error) {
	// Missing .env is the common case.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("prdgen")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The bare variable is what most Gemini tooling documents.
	if err := v.BindEnv("llm.gemini_api_key", EnvPrefix+"_LLM_GEMINI_API_KEY", "GEMINI_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_upload_mb", 20)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("llm.gemini_api_key", "")
	v.SetDefault("llm.model_name", "gemini-1.5-flash")
	v.SetDefault("llm.base_url", "https://generativelanguage.googleapis.com")
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_delay", "2s")
	v.SetDefault("llm.request_timeout", "5m")

	v.SetDefault("docs.credentials_file", "credentials.json")
	v.SetDefault("docs.token_file", "token.json")
	v.SetDefault("docs.secrets_file", ".streamlit/secrets.toml")
	v.SetDefault("docs.secret_key", "google_token")
	v.SetDefault("docs.scopes", []string{DefaultDocsScope})
	v.SetDefault("docs.no_browser", false)
	v.SetDefault("docs.consent_timeout", "5m")
	v.SetDefault("docs.endpoint", "")
}
