package secrets

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// ErrMissing is returned when a required key has no value.
var ErrMissing = errors.New("secret not set")

// Provider resolves named secrets at startup.
type Provider interface {
	Get(key string) (string, error)
}

// EnvProvider reads the process environment, falling back to values parsed
// from dotenv files. The environment always wins.
type EnvProvider struct {
	file map[string]string
}

// NewEnvProvider loads the given dotenv files in order; later files override
// earlier ones. Files that do not exist are skipped.
func NewEnvProvider(files ...string) (*EnvProvider, error) {
	merged := make(map[string]string)
	for _, name := range files {
		if _, err := os.Stat(name); errors.Is(err, os.ErrNotExist) {
			continue
		}
		values, err := godotenv.Read(name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		for k, v := range values {
			merged[k] = v
		}
	}
	return &EnvProvider{file: merged}, nil
}

// Get returns the value for key or ErrMissing when it is unset or empty.
func (p *EnvProvider) Get(key string) (string, error) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v, nil
	}
	if v := p.file[key]; v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%s: %w", key, ErrMissing)
}

// MapProvider serves secrets from a fixed map.
type MapProvider map[string]string

// Get returns the value for key or ErrMissing.
func (m MapProvider) Get(key string) (string, error) {
	if v := m[key]; v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%s: %w", key, ErrMissing)
}

// Require resolves every key, reporting the first that is missing.
func Require(p Provider, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	for _, key := range keys {
		v, err := p.Get(key)
		if err != nil {
			return nil, err
		}
		out[key] = v
	}
	return out, nil
}
