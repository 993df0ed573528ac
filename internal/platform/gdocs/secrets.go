package gdocs

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// SecretStore looks up named secret values.
type SecretStore interface {
	// Secret returns the value stored under key and whether it was found. An
	// error means the store itself could not be read.
	Secret(key string) (string, bool, error)
}

// FileSecretStore reads secrets from a TOML/YAML/JSON file, with
// PRDGEN_<KEY> environment variables taking precedence. A table value is
// returned re-encoded as JSON so a credential can be stored either as a JSON
// string or as a native table.
type FileSecretStore struct {
	path string
}

var _ SecretStore = (*FileSecretStore)(nil)

// NewFileSecretStore returns a store backed by path. The file is read on every
// lookup and may be absent.
func NewFileSecretStore(path string) *FileSecretStore {
	return &FileSecretStore{path: path}
}

// Secret implements SecretStore.
func (s *FileSecretStore) Secret(key string) (string, bool, error) {
	v, err := s.load()
	if err != nil {
		return "", false, err
	}

	if !v.IsSet(key) {
		return "", false, nil
	}

	switch val := v.Get(key).(type) {
	case string:
		return val, strings.TrimSpace(val) != "", nil
	case map[string]interface{}:
		data, err := json.Marshal(val)
		if err != nil {
			return "", false, fmt.Errorf("failed to encode secret %s: %w", key, err)
		}
		return string(data), true, nil
	default:
		return "", false, nil
	}
}

func (s *FileSecretStore) load() (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("PRDGEN")
	v.AutomaticEnv()

	if s.path == "" {
		return v, nil
	}

	if _, err := os.Stat(s.path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return v, nil
		}
		return nil, err
	}

	v.SetConfigFile(s.path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read secrets file: %w", err)
	}
	return v, nil
}
