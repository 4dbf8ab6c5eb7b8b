// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys from a directory of plain-text files.
// Each file in the directory represents one secret: the filename is the key name and the
// file contents (trimmed) are the value.
//
// Supported key files: anthropic-api-key, anthropic-api-key-secondary,
// openai-api-key, openai-api-key-secondary.
package secrets

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/deck-engine/pkg/types"
)

// DefaultDir is where the CLI looks for key files.
const DefaultDir = ".secrets"

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files are logged and skipped.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			slog.Warn("could not read secret", "name", name, "error", err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// KeyName returns the key file name of provider's primary credential.
func KeyName(provider types.Provider) string {
	return string(provider) + "-api-key"
}

// Credentials returns provider's credentials in rotation order: the primary
// key, then the secondary key when present. Environment variables
// ANTHROPIC_API_KEY and OPENAI_API_KEY stand in for a missing primary file.
func Credentials(secrets map[string]string, provider types.Provider) []string {
	var keys []string
	primary := secrets[KeyName(provider)]
	if primary == "" {
		primary = strings.TrimSpace(os.Getenv(strings.ToUpper(string(provider)) + "_API_KEY"))
	}
	if primary != "" {
		keys = append(keys, primary)
	}
	if secondary := secrets[KeyName(provider)+"-secondary"]; secondary != "" && secondary != primary {
		keys = append(keys, secondary)
	}
	return keys
}
