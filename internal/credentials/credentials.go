// internal/credentials/credentials.go

// Package credentials resolves and stores API tokens. Lookup order:
// environment variable, OS keyring, token file under the config directory.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zalando/go-keyring"

	"projtrack/internal/config"
	"projtrack/internal/model"
)

const serviceName = "projtrack"

// ErrNoToken is returned when no token is stored for a platform anywhere in
// the fallback chain.
var ErrNoToken = errors.New("no token found")

// Token returns the API token for a platform, trying the environment
// (PROJTRACK_GITHUB_TOKEN, then GITHUB_TOKEN), the OS keyring, and finally
// the token file.
func Token(platform model.Platform) (string, error) {
	upper := strings.ToUpper(string(platform))
	for _, key := range []string{"PROJTRACK_" + upper + "_TOKEN", upper + "_TOKEN"} {
		if v := os.Getenv(key); v != "" {
			return v, nil
		}
	}

	if v, err := keyring.Get(serviceName, string(platform)); err == nil && v != "" {
		return v, nil
	}

	tokens, err := readTokenFile()
	if err == nil {
		if v := tokens[string(platform)]; v != "" {
			return v, nil
		}
	}

	return "", fmt.Errorf("%w for %s", ErrNoToken, platform)
}

// StoreToken writes the token to the OS keyring, falling back to the token
// file when no keyring backend is available.
func StoreToken(platform model.Platform, token string) error {
	if err := keyring.Set(serviceName, string(platform), token); err == nil {
		return nil
	}

	tokens, err := readTokenFile()
	if err != nil {
		tokens = map[string]string{}
	}
	tokens[string(platform)] = token
	return writeTokenFile(tokens)
}

// DeleteToken removes the token from both the keyring and the token file.
func DeleteToken(platform model.Platform) error {
	_ = keyring.Delete(serviceName, string(platform))

	tokens, err := readTokenFile()
	if err != nil {
		return nil
	}
	if _, ok := tokens[string(platform)]; !ok {
		return nil
	}
	delete(tokens, string(platform))
	return writeTokenFile(tokens)
}

func tokenFilePath() string {
	return filepath.Join(config.DefaultConfigDir(), "tokens.json")
}

func readTokenFile() (map[string]string, error) {
	data, err := os.ReadFile(tokenFilePath())
	if err != nil {
		return nil, err
	}
	tokens := map[string]string{}
	if err := json.Unmarshal(data, &tokens); err != nil {
		return nil, err
	}
	return tokens, nil
}

func writeTokenFile(tokens map[string]string) error {
	path := tokenFilePath()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := json.Marshal(tokens)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}
